package cloudrun

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/pyx-ai/pyx-cli/cmd/pyx/pipeline"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/rest"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/common"
	kpath "github.com/pyx-ai/pyx-cli/pkg/utils/path"
	"github.com/youta-t/flarc"
)

const (
	ARG_MODEL  = "MODEL"
	ARG_INPUT  = "INPUT"
	ARG_OUTPUT = "OUTPUT"
)

type Flags struct {
	Timeout   time.Duration `flag:"timeout" metavar:"DURATION" help:"give up waiting for the task after this duration"`
	Multipart bool          `flag:"multipart" help:"send inputs as a multipart/form-data at once, instead of streaming chunks"`
}

var Preconditions = []common.Precondition{common.RequireAuth}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Run model using pyx.ai cloud.",
		Flags{Timeout: pipeline.DefaultPollTimeout},
		flarc.Args{
			{
				Name: ARG_MODEL, Required: true,
				Help: "a model on pyx.ai, as MODEL_ID/FRAMEWORK[:VERSION]. VERSION is latest by default.",
			},
			{
				Name: ARG_INPUT, Required: true,
				Help: "directory with input samples",
			},
			{
				Name: ARG_OUTPUT, Required: true,
				Help: "directory where results are extracted. It is created if missing.",
			},
		},
		common.NewTask(Task(), Preconditions...),
		flarc.WithDescription(`
Send files in INPUT to pyx.ai as a task of the model, wait for it, and
extract its results into OUTPUT.

Status of the task is polled with growing intervals (up to 10 seconds).
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

		target, err := rest.ParseTaskTarget(cl.Args()[ARG_MODEL][0])
		if err != nil {
			return err
		}
		input, err := kpath.Resolve(cl.Args()[ARG_INPUT][0])
		if err != nil {
			return err
		}
		output, err := kpath.Resolve(cl.Args()[ARG_OUTPUT][0])
		if err != nil {
			return err
		}

		policy := pipeline.DefaultPollPolicy()
		if 0 < flags.Timeout {
			policy.Timeout = flags.Timeout
		}
		mode := rest.Chunked
		if flags.Multipart {
			mode = rest.Multipart
		}
		display := pipeline.NewConsole(cl.Stderr())
		defer display.Close()

		p := pipeline.New(
			session.Client,
			append(
				[]pipeline.Option{
					pipeline.WithLogger(logger),
					pipeline.WithPollPolicy(policy),
					pipeline.WithUploadMode(mode),
					pipeline.WithDisplay(display),
					pipeline.WithObserver(func(t pipeline.Transition) {
						switch t.To {
						case pipeline.Packaging:
							fmt.Fprintln(stdout, "Packing current input directory ...")
						case pipeline.Submitting:
							fmt.Fprintln(stdout, "Uploading data ...")
						case pipeline.Queued:
							fmt.Fprintf(stdout, "Assigned %s...\n", t.Detail)
						case pipeline.Polling:
							fmt.Fprintln(stdout, "Polling for data to be processed...")
						case pipeline.ResultFetching:
							fmt.Fprintln(stdout, "Unpacking results ...")
						}
						logger.Println(t)
					}),
				},
				options...,
			)...,
		)

		result, err := p.CloudRun(ctx, target, input, output)
		if err != nil {
			fmt.Fprintln(stdout, "An error occurred.")
			return err
		}
		_, err = fmt.Fprintf(
			stdout, "Successfully predicted: %d files in %s (task %s)\n",
			result.Files, output, result.TaskId,
		)
		return err
	}
}
