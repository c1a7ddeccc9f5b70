package sessiontest

import (
	"testing"

	"github.com/pyx-ai/pyx-cli/cmd/pyx/config"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/config/testutils"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/rest"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/common"
	"github.com/pyx-ai/pyx-cli/pkg/utils/try"
)

// New opens a session with the config saved in a temporary file,
// the project directory root and the client.
func New(
	t *testing.T,
	conf *config.Config,
	root string,
	client rest.PyxClient,
	options ...common.SessionOption,
) *common.Session {
	t.Helper()
	if conf == nil {
		conf = config.Default()
	}
	options = append(
		[]common.SessionOption{
			common.WithClientFactory(func(string, string) (rest.PyxClient, error) {
				return client, nil
			}),
		},
		options...,
	)
	return try.To(common.OpenSession(
		common.CommonFlags{Config: testutils.TempConfig(t, conf), Project: root},
		options...,
	)).OrFatal(t)
}
