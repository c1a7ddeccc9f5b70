package download

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	perrors "github.com/pyx-ai/pyx-cli/cmd/pyx/errors"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/pipeline"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/rest"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/common"
	kpath "github.com/pyx-ai/pyx-cli/pkg/utils/path"
	"github.com/youta-t/flarc"
)

const (
	ARG_MODEL   = "MODEL"
	ARG_PROJECT = "PROJECT"

	DefaultVersion = "latest"
)

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Pull a published workspace.",
		struct{}{},
		flarc.Args{
			{
				Name: ARG_MODEL, Required: true,
				Help: "MODEL_ID[:VERSION] of the model on pyx.ai. VERSION is latest by default.",
			},
			{
				Name: ARG_PROJECT, Required: true,
				Help: "destination directory. It is created if missing.",
			},
		},
		common.NewTask(Task()),
	)
}

// ParseModel parses "MODEL_ID[:VERSION]".
func ParseModel(s string) (string, string, error) {
	modelId, version, _ := strings.Cut(s, ":")
	if modelId == "" || strings.Contains(version, ":") {
		return "", "", fmt.Errorf(
			"%w: model should be MODEL_ID[:VERSION]: %s", perrors.ErrConfiguration, s,
		)
	}
	if version == "" {
		version = DefaultVersion
	}
	return modelId, version, nil
}

func Task() common.Task[struct{}] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		session *common.Session,
		cl flarc.Commandline[struct{}],
		params []any,
	) error {
		modelId, version, err := ParseModel(cl.Args()[ARG_MODEL][0])
		if err != nil {
			return err
		}
		dest, err := kpath.Resolve(cl.Args()[ARG_PROJECT][0])
		if err != nil {
			return err
		}

		stdout := cl.Stdout()
		fmt.Fprintln(stdout, "Downloading data ...")
		n, err := pipeline.Download(ctx, session.Client, modelId, version, dest, cl.Stderr())
		if errors.Is(err, rest.ErrChecksumUnmatch) {
			logger.Printf("[WARN] checksum unmatch: %d files are saved into %s, but they may be corrupted", n, dest)
			return err
		}
		if err != nil {
			fmt.Fprintln(stdout, "An error occurred.")
			return err
		}
		logger.Printf("%d files are extracted into %s", n, dest)
		_, err = fmt.Fprintln(stdout, "....\nDONE")
		return err
	}
}
