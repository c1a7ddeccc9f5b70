package auth_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/pyx-ai/pyx-cli/cmd/pyx/config"
	perrors "github.com/pyx-ai/pyx-cli/cmd/pyx/errors"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/rest/mock"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/auth"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/common"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/internal/commandline"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/internal/sessiontest"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/logger"
	"github.com/pyx-ai/pyx-cli/pkg/utils/try"
)

func TestAuth(t *testing.T) {
	type when struct {
		previousToken string
		token         string
		ok            bool
		err           error
	}
	type then struct {
		stdout string
		token  string
		err    error
	}

	theory := func(when when, then then) func(*testing.T) {
		return func(t *testing.T) {
			client := mock.New(t)
			client.Impl.CheckAuth = func(ctx context.Context) (bool, error) {
				return when.ok, when.err
			}
			conf := config.Default()
			conf.UserToken = when.previousToken
			session := sessiontest.New(t, conf, t.TempDir(), client)

			stdout := new(strings.Builder)
			err := common.Run(
				context.Background(), logger.Null(), session,
				commandline.MockCommandline[struct{}]{
					Fullname_: "pyx auth",
					Stdout_:   stdout,
					Stderr_:   new(strings.Builder),
					Args_:     map[string][]string{auth.ARG_TOKEN: {when.token}},
				},
				nil, auth.Task(),
			)

			if then.err == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			} else if !errors.Is(err, then.err) {
				t.Errorf("err: (actual, expected) = (%v, %v)", err, then.err)
			}
			if got := stdout.String(); got != then.stdout {
				t.Errorf("stdout: %q, want %q", got, then.stdout)
			}
			if client.Calls.CheckAuth != 1 {
				t.Errorf("CheckAuth is called %d times", client.Calls.CheckAuth)
			}

			saved := try.To(config.Load(session.ConfigPath)).OrFatal(t)
			if saved.UserToken != then.token {
				t.Errorf("saved token: %q, want %q", saved.UserToken, then.token)
			}
		}
	}

	t.Run("accepted token is saved", theory(
		when{token: "t0ken", ok: true},
		then{stdout: "Authorized.\n", token: "t0ken"},
	))

	t.Run("rejected token is cleared", theory(
		when{previousToken: "old", token: "wr0ng", ok: false},
		then{stdout: "Wrong token.\n", token: "", err: perrors.ErrPermission},
	))

	t.Run("previous token is kept when pyx.ai is unreachable", theory(
		when{previousToken: "old", token: "t0ken", err: perrors.ErrTransport},
		then{stdout: "", token: "old", err: perrors.ErrTransport},
	))
}
