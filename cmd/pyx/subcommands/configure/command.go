package configure

import (
	"context"
	"fmt"
	"io"
	"log"

	"github.com/pyx-ai/pyx-cli/cmd/pyx/project"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/common"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/wizard"
	"github.com/youta-t/flarc"
)

var Preconditions = []common.Precondition{common.RequireProject}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Edit metadata of the pyx project.",
		struct{}{},
		flarc.Args{},
		common.NewTask(Task(), Preconditions...),
		flarc.WithDescription(`
Ask metadata of the model listing one by one, and save them into pyx.json.

Current values are defaults. Just press Enter to keep them.
`),
	)
}

func Task() common.Task[struct{}] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		session *common.Session,
		cl flarc.Commandline[struct{}],
		params []any,
	) error {
		return Configure(wizard.New(cl.Stdin(), cl.Stdout()), session.Project, cl.Stdout())
	}
}

var questions = map[string]string{
	"name":              "Please, specify model name",
	"paper_url":         "Please, specify paper url if you have one",
	"dataset":           "Please, specify dataset you used",
	"license":           "Please, specify license",
	"price":             "Please, specify price (0.0 for free models)",
	"description_short": "Please, specify short description of your model",
}

// Configure asks metadata fields of desc, and prints the updated descriptor to w.
//
// desc is updated only when all questions are answered.
func Configure(p *wizard.Prompter, desc *project.Descriptor, w io.Writer) error {
	answers := make(map[string]string, len(project.MetadataFields))
	for _, field := range project.MetadataFields {
		q, ok := questions[field]
		if !ok {
			q = field
		}
		ans, err := p.Text(q, desc.Get(field))
		if err != nil {
			return err
		}
		answers[field] = ans
	}
	for _, field := range project.MetadataFields {
		desc.Set(field, answers[field])
	}

	_, err := fmt.Fprintf(w, "%s:\n%s\n", project.FileName, desc)
	return err
}
