package publish

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/pyx-ai/pyx-cli/cmd/pyx/pipeline"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/project"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/common"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/upload"
	"github.com/youta-t/flarc"
)

type Flags struct {
	MakeAvailable bool `flag:"make-available" help:"make the listing available after verification"`
	Multipart     bool `flag:"multipart" help:"send the project as a multipart/form-data at once, instead of streaming chunks"`
}

var Preconditions = []common.Precondition{common.RequireAuth, common.RequireProject}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Publish the project to pyx.ai.",
		Flags{},
		flarc.Args{},
		common.NewTask(Task(), Preconditions...),
		flarc.WithDescription(`
Register (or update) the model listing with metadata in pyx.json,
and upload files of the project.

pyx-web/description.md is sent as the full description.
Fields in "required_fields" of your pyx config should be filled before
(see "pyx configure").

The model id given by pyx.ai is saved into pyx.json.
`),
	)
}

func Task(options ...pipeline.Option) common.Task[Flags] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		session *common.Session,
		cl flarc.Commandline[Flags],
		params []any,
	) error {
		flags := cl.Flags()
		stdout := cl.Stdout()
		desc := session.Project

		descfile := filepath.Join(session.ProjectRoot, project.DescriptionFile)
		if buf, err := os.ReadFile(descfile); err == nil {
			desc.DescriptionFull = string(buf)
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}

		if err := desc.CheckPublishable(session.Config.RequiredFields); err != nil {
			return err
		}

		var resp []byte
		var err error
		if desc.Published() {
			fmt.Fprintln(stdout, "Updating project:")
			resp, err = session.Client.UpdateModel(ctx, desc.ID.String(), desc)
		} else {
			fmt.Fprintln(stdout, "Creating project:")
			resp, err = session.Client.CreateModel(ctx, desc)
		}
		if err != nil {
			return err
		}
		ignored, err := desc.Merge(resp)
		if err != nil {
			return err
		}
		for _, key := range ignored {
			logger.Printf("[WARN] %s in the response is not saved: unexpected value", key)
		}
		if err := session.Persist(); err != nil {
			return err
		}
		logger.Printf("model id: %s", desc.ID)

		if err := upload.Project(ctx, logger, session, cl.Stderr(), flags.Multipart, options...); err != nil {
			return err
		}
		fmt.Fprintln(stdout, "Successfully uploaded.")

		if !flags.MakeAvailable {
			fmt.Fprint(stdout, `After verification you can call the following to make your listing available:
$ pyx publish --make-available
`)
			return nil
		}
		if err := session.Client.PublishModel(ctx, desc.ID.String()); err != nil {
			return err
		}
		_, err = fmt.Fprintf(stdout, "Model %s is available.\n", desc.ID)
		return err
	}
}
