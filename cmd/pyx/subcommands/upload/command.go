package upload

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/pyx-ai/pyx-cli/cmd/pyx/pipeline"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/rest"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/common"
	"github.com/youta-t/flarc"
)

type Flags struct {
	Multipart bool `flag:"multipart" help:"send the project as a multipart/form-data at once, instead of streaming chunks"`
}

var Preconditions = []common.Precondition{
	common.RequireAuth, common.RequireProject, common.RequirePublished,
}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Upload files of the project to pyx.ai.",
		Flags{},
		flarc.Args{},
		common.NewTask(Task(), Preconditions...),
		flarc.WithDescription(`
Pack the project and upload it as files of the model in pyx.json.

Files in the project are placed under "models/{framework}/" in the archive,
except pyx-web and pyx-testing-data.

The project should have been published ("pyx publish") before.
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
		if err := Project(ctx, logger, session, cl.Stderr(), cl.Flags().Multipart, options...); err != nil {
			return err
		}
		_, err := fmt.Fprintln(cl.Stdout(), "Successfully uploaded.")
		return err
	}
}

// Project uploads the project in the session as files of its model.
//
// Progress is shown on progress. options are applied after defaults.
func Project(
	ctx context.Context,
	logger *log.Logger,
	session *common.Session,
	progress io.Writer,
	multipart bool,
	options ...pipeline.Option,
) error {
	if err := session.Project.CheckUploadable(); err != nil {
		return err
	}

	mode := rest.Chunked
	if multipart {
		mode = rest.Multipart
	}
	display := pipeline.NewConsole(progress)
	defer display.Close()

	p := pipeline.New(
		session.Client,
		append(
			[]pipeline.Option{
				pipeline.WithLogger(logger),
				pipeline.WithUploadMode(mode),
				pipeline.WithDisplay(display),
				pipeline.WithObserver(func(t pipeline.Transition) {
					logger.Println(t)
				}),
			},
			options...,
		)...,
	)

	logger.Println("packing current project ...")
	return p.UploadProject(
		ctx, session.ProjectRoot, session.Project.ID.String(), session.Project.Framework,
	)
}
