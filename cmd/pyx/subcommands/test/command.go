package test

import (
	"context"
	"fmt"
	"log"

	"github.com/pyx-ai/pyx-cli/cmd/pyx/harness"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/common"
	kos "github.com/pyx-ai/pyx-cli/pkg/utils/os"
	"github.com/youta-t/flarc"
)

type Flags struct {
	Times  int    `flag:"times" alias:"n" metavar:"N" help:"how many times predict runs"`
	Device string `flag:"device" metavar:"DEVICE" help:"device passed to predict"`
	Python string `flag:"python" metavar:"PATH" help:"python interpreter running pyx_endpoints.py. Default: $PYX_PYTHON, or python3"`
}

var Preconditions = []common.Precondition{common.RequireProject}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Test the model of the project locally.",
		Flags{
			Times:  harness.DefaultTimes,
			Device: harness.DefaultDevice,
			Python: kos.GetEnvOr(harness.EnvPython, harness.DefaultPython),
		},
		flarc.Args{},
		common.NewTask(Task(harness.StartPython), Preconditions...),
		flarc.WithDescription(`
Run predict of pyx_endpoints.py for files in pyx-testing-data repeatedly,
and measure inference time.

When all predictions are passed, weight paths and the mean inference time
are recorded into "meta" of pyx.json.
`),
	)
}

func Task(start harness.Starter) common.Task[Flags] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		session *common.Session,
		cl flarc.Commandline[Flags],
		params []any,
	) error {
		flags := cl.Flags()
		stdout := cl.Stdout()
		fmt.Fprintln(stdout, "Testing project ...")

		endpoint, err := start(ctx, flags.Python, session.ProjectRoot, cl.Stderr())
		if err != nil {
			return err
		}
		defer endpoint.Close()

		h := harness.New(endpoint, session.ProjectRoot, harness.WithLogger(logger))
		report, err := h.Test(ctx, harness.TestOptions{Times: flags.Times, Device: flags.Device})
		if err != nil {
			fmt.Fprintln(stdout, "....\nAn error occurred.")
			return err
		}

		session.Project.Meta = report.Meta()
		fmt.Fprintf(stdout, "Mean inference time: %s\n....\nPASSED\n", report.Mean())
		return nil
	}
}
