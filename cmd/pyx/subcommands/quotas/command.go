package quotas

import (
	"context"
	"fmt"
	"log"

	"github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/common"
	"github.com/youta-t/flarc"
)

// Preconditions of `pyx quotas`.
var Preconditions = []common.Precondition{common.RequireAuth}

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Show how many cloud-run requests are left.",
		struct{}{},
		flarc.Args{},
		common.NewTask(Task(), Preconditions...),
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
		q, err := session.Client.GetQuotas(ctx)
		if err != nil {
			return err
		}
		_, err = fmt.Fprintf(cl.Stdout(), "Requests left: %s\n", q.Requests)
		return err
	}
}
