package run

import (
	"context"
	"fmt"
	"log"

	"github.com/pyx-ai/pyx-cli/cmd/pyx/harness"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/common"
	kos "github.com/pyx-ai/pyx-cli/pkg/utils/os"
	kpath "github.com/pyx-ai/pyx-cli/pkg/utils/path"
	"github.com/youta-t/flarc"
)

const (
	ARG_INPUT  = "INPUT"
	ARG_OUTPUT = "OUTPUT"
)

type Flags struct {
	Device string `flag:"device" metavar:"DEVICE" help:"device passed to predict"`
	Python string `flag:"python" metavar:"PATH" help:"python interpreter running pyx_endpoints.py. Default: $PYX_PYTHON, or python3"`
}

var Preconditions = []common.Precondition{common.RequireProject}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Perform inference locally.",
		Flags{
			Device: harness.DefaultDevice,
			Python: kos.GetEnvOr(harness.EnvPython, harness.DefaultPython),
		},
		flarc.Args{
			{
				Name: ARG_INPUT, Required: true,
				Help: "directory with input samples",
			},
			{
				Name: ARG_OUTPUT, Required: true,
				Help: "directory where results are written. It is created if missing.",
			},
		},
		common.NewTask(Task(harness.StartPython), Preconditions...),
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

		input, err := kpath.Resolve(cl.Args()[ARG_INPUT][0])
		if err != nil {
			return err
		}
		output, err := kpath.Resolve(cl.Args()[ARG_OUTPUT][0])
		if err != nil {
			return err
		}

		endpoint, err := start(ctx, flags.Python, session.ProjectRoot, cl.Stderr())
		if err != nil {
			return err
		}
		defer endpoint.Close()

		h := harness.New(endpoint, session.ProjectRoot, harness.WithLogger(logger))
		d, err := h.Run(ctx, input, output, flags.Device)
		if err != nil {
			fmt.Fprintln(stdout, "....\nAn error occurred.")
			return err
		}
		fmt.Fprintf(stdout, "Inference time: %s\n....\nPASSED\n", d)
		return nil
	}
}
