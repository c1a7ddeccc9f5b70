package auth

import (
	"context"
	"fmt"
	"log"

	perrors "github.com/pyx-ai/pyx-cli/cmd/pyx/errors"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/common"
	"github.com/youta-t/flarc"
)

const ARG_TOKEN = "TOKEN"

var ErrWrongToken = fmt.Errorf("%w: wrong token", perrors.ErrPermission)

func New() (flarc.Command, error) {
	return flarc.NewCommand(
		"Authorize pyx with your user token.",
		struct{}{},
		flarc.Args{
			{
				Name: ARG_TOKEN, Required: true,
				Help: "user token issued by pyx.ai",
			},
		},
		common.NewTask(Task()),
		flarc.WithDescription(`
Save your user token into the pyx config, and check it with pyx.ai.

If pyx.ai rejects the token, it is not kept.
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
		token := cl.Args()[ARG_TOKEN][0]
		previous := session.Config.UserToken
		if err := session.SetToken(token); err != nil {
			return err
		}

		ok, err := session.Client.CheckAuth(ctx)
		if err != nil {
			// not judged. keep the token as it was.
			session.Config.UserToken = previous
			return err
		}
		if !ok {
			session.Config.UserToken = ""
			fmt.Fprintln(cl.Stdout(), "Wrong token.")
			return ErrWrongToken
		}
		fmt.Fprintln(cl.Stdout(), "Authorized.")
		return nil
	}
}
