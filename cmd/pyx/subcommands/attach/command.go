package attach

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/pyx-ai/pyx-cli/cmd/pyx/boilerplate"
	perrors "github.com/pyx-ai/pyx-cli/cmd/pyx/errors"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/project"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/common"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/internal/ask"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/wizard"
	"github.com/youta-t/flarc"
)

type Flags struct {
	Category    string `flag:"category" metavar:"ID" help:"id of the category. If not given, it is asked."`
	Subcategory string `flag:"subcategory" metavar:"ID" help:"id of the subcategory. If not given, it is asked."`
	ModelId     string `flag:"model-id" metavar:"ID" help:"id of the existing model on pyx.ai. If not given, it is asked."`
	Framework   string `flag:"framework" metavar:"NAME" help:"framework of the boilerplate. If not given, it is asked."`
}

var Preconditions = []common.Precondition{common.SyncCategories}

var ErrEmptyModelId = fmt.Errorf("%w: model id is empty", perrors.ErrConfiguration)

func New() (flarc.Command, error) {
	prov, err := boilerplate.Default()
	if err != nil {
		return nil, err
	}
	return flarc.NewCommand(
		"Attach an existing pyx.ai model to the project (using wizard).",
		Flags{},
		flarc.Args{},
		common.NewTask(Task(prov), Preconditions...),
		flarc.WithDescription(`
Write the model id and the framework into pyx.json, and place the boilerplate.

Other fields in pyx.json are kept, if it exists.
`),
	)
}

func Task(prov *boilerplate.Provisioner) common.Task[Flags] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		session *common.Session,
		cl flarc.Commandline[Flags],
		params []any,
	) error {
		flags := cl.Flags()
		stdout := cl.Stdout()
		p := wizard.New(cl.Stdin(), stdout)

		cats := session.Config.Categories
		sub, err := ask.Subcategory(p, cats, flags.Category, flags.Subcategory)
		if err != nil {
			return err
		}
		modelId := flags.ModelId
		if modelId == "" {
			if modelId, err = p.Text("Set existing model id", ""); err != nil {
				return err
			}
		}
		if modelId = strings.TrimSpace(modelId); modelId == "" {
			return ErrEmptyModelId
		}
		framework, err := ask.Framework(p, session.Config.Frameworks, flags.Framework)
		if err != nil {
			return err
		}

		if err := session.LoadProject(); errors.Is(err, project.ErrProjectNotFound) {
			session.Project = &project.Descriptor{}
		} else if err != nil {
			return err
		}
		session.Project.Framework = framework
		session.Project.Set("id", modelId)
		if err := session.Persist(); err != nil {
			return err
		}
		logger.Printf("model %s (%s) is attached to %s", modelId, framework, session.ProjectPath())

		return ask.AddFramework(stdout, prov, cats, sub.ID, framework, session.ProjectRoot)
	}
}
