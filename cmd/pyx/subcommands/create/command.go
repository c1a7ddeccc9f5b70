package create

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/pyx-ai/pyx-cli/cmd/pyx/boilerplate"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/project"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/common"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/configure"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/internal/ask"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/wizard"
	"github.com/youta-t/flarc"
)

type Flags struct {
	Category    string `flag:"category" metavar:"ID" help:"id of the category. If not given, it is asked."`
	Subcategory string `flag:"subcategory" metavar:"ID" help:"id of the subcategory. If not given, it is asked."`
	Framework   string `flag:"framework" metavar:"NAME" help:"framework of the boilerplate. If not given, it is asked."`
}

var Preconditions = []common.Precondition{common.SyncCategories}

func New() (flarc.Command, error) {
	prov, err := boilerplate.Default()
	if err != nil {
		return nil, err
	}
	return flarc.NewCommand(
		"Create a new pyx project (using wizard).",
		Flags{},
		flarc.Args{},
		common.NewTask(Task(prov), Preconditions...),
		flarc.WithDescription(`
Create a new pyx project in the project directory (default: the working directory).

The name of the directory is the name of the project. It makes:

- pyx.json: the project descriptor.
- pyx-web/description.md: the description of your model listing.
- pyx-testing-data/: place testing samples here.
- pyx_endpoints.py: the boilerplate for the framework.

Then, metadata of the model are asked as "pyx configure" does.
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
		framework, err := ask.Framework(p, session.Config.Frameworks, flags.Framework)
		if err != nil {
			return err
		}

		root := session.ProjectRoot
		name := filepath.Base(root)
		fmt.Fprintln(stdout, "Creating project ...")

		desc := &project.Descriptor{Name: name, Framework: framework}
		desc.Set("category_id", fmt.Sprint(sub.ID))
		if err := scaffold(root, name, desc); err != nil {
			return err
		}
		session.Project = desc
		if err := session.MarkProjectSaved(); err != nil {
			return err
		}

		fmt.Fprint(stdout, `...
Your project is ready to use.
Please, place testing samples to:
./pyx-testing-data
If you want to attach any images / gifs, place them to:
./pyx-web
`)

		if err := ask.AddFramework(stdout, prov, cats, sub.ID, framework, root); err != nil {
			return err
		}

		fmt.Fprint(stdout, `Configuring project:
You can change these parameters after by running:
$ pyx configure
`)
		return configure.Configure(p, session.Project, stdout)
	}
}

// scaffold makes directories and files of a new project.
//
// It fails with project.ErrProjectExists when any of them exists.
func scaffold(root string, name string, desc *project.Descriptor) error {
	if err := os.MkdirAll(root, os.FileMode(0755)); err != nil {
		return err
	}
	for _, d := range []string{project.WebDir, project.TestingDataDir} {
		if _, err := os.Lstat(filepath.Join(root, d)); err == nil {
			return fmt.Errorf(
				"%w: destination directory %s already exists. Consider another name of the project",
				project.ErrProjectExists, d,
			)
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	path := filepath.Join(root, project.FileName)
	if err := desc.Create(path); err != nil {
		return err
	}

	for _, d := range []string{project.WebDir, project.TestingDataDir} {
		if err := os.MkdirAll(filepath.Join(root, d), os.FileMode(0755)); err != nil {
			return err
		}
	}
	return os.WriteFile(
		filepath.Join(root, project.DescriptionFile),
		[]byte(fmt.Sprintf("# %s\n", name)),
		os.FileMode(0644),
	)
}
