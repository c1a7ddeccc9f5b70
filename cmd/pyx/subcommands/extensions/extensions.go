package extensions

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/common"
	"github.com/youta-t/flarc"
)

// Prefix of executables to be found as extension commands.
const Prefix = "pyx-"

// ExtensionCommand is an executable "pyx-NAME" in PATH, invoked as "pyx NAME".
type ExtensionCommand struct {
	Name string
	Path string
}

// FindSubcommand lists executables in PATH whose name starts with prefix.
//
// When names conflict, the one found earlier wins.
func FindSubcommand(prefix string) []ExtensionCommand {
	subcommands := []ExtensionCommand{}

	pathes := strings.Split(os.Getenv("PATH"), string(os.PathListSeparator))
	known := map[string]struct{}{}

	for _, p := range pathes {
		if p == "" {
			p = "."
		}
		files, err := os.ReadDir(p)
		if err != nil {
			continue
		}
		for _, f := range files {
			if f.IsDir() || !strings.HasPrefix(f.Name(), prefix) {
				continue
			}
			abspath, err := exec.LookPath(filepath.Join(p, f.Name()))
			if err != nil {
				continue
			}
			if abspath, err = filepath.Abs(abspath); err != nil {
				continue
			}
			name := strings.TrimPrefix(f.Name(), prefix)
			for _, executableExt := range []string{".exe", ".bat", ".cmd", ".com"} {
				if strings.HasSuffix(name, executableExt) {
					name = strings.TrimSuffix(name, executableExt)
					break
				}
			}
			if _, ok := known[name]; ok || name == "" {
				continue
			}
			subcommands = append(
				subcommands,
				ExtensionCommand{Name: name, Path: abspath},
			)
			known[name] = struct{}{}
		}
	}

	return subcommands
}

const PARAMS = "PARAMS"

func New(ext ExtensionCommand) (flarc.Command, error) {
	return flarc.NewCommand(
		fmt.Sprintf("(= %s)", ext.Path),
		struct{}{},
		flarc.Args{
			{
				Name: PARAMS, Required: false, Repeatable: true,
				Help: "parameters for the extension command",
			},
		},
		common.NewTaskWithCommonFlag(Task(ext)),
	)
}

// Task runs the extension with the standard streams of cl.
//
// The extension gets common flags as environment variables.
func Task(ext ExtensionCommand) common.PyxTaskWithCommonFlag[struct{}] {
	return func(
		ctx context.Context,
		logger *log.Logger,
		cf common.CommonFlags,
		cl flarc.Commandline[struct{}],
		params []any,
	) error {
		args := cl.Args()[PARAMS]
		cmd := exec.CommandContext(ctx, ext.Path, args...)
		cmd.Stdin = cl.Stdin()
		cmd.Stdout = cl.Stdout()
		cmd.Stderr = cl.Stderr()
		environ := append(
			os.Environ(),
			common.EnvConfig+"="+cf.Config,
			common.EnvProject+"="+cf.Project,
		)
		if cf.APIURL != "" {
			environ = append(environ, common.EnvAPIURL+"="+cf.APIURL)
		}
		cmd.Env = environ
		if err := cmd.Run(); err != nil {
			logger.Printf("%s: %s", ext.Name, err)
			return err
		}
		return nil
	}
}
