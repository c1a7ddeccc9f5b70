//go:generate go run github.com/Songmu/gocredits/cmd/gocredits@v0.3.0 -w
package main

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"os/signal"
	"path"

	subattach "github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/attach"
	subauth "github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/auth"
	subcloudrun "github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/cloudrun"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/common"
	subconf "github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/configure"
	subcreate "github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/create"
	subdownload "github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/download"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/extensions"
	sublic "github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/license"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/logger"
	submodels "github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/models"
	subpublish "github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/publish"
	subquotas "github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/quotas"
	subrun "github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/run"
	subtest "github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/test"
	subupload "github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/upload"
	subver "github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/version"
	"github.com/pyx-ai/pyx-cli/pkg/utils/try"
	"github.com/youta-t/flarc"
)

//go:embed CREDITS
var CREDITS string

func main() {
	name := path.Base(os.Args[0])
	logger := logger.Default()
	logger.SetPrefix(fmt.Sprintf("[%s] ", name))

	ctx, cancel := signal.NotifyContext(
		context.Background(), os.Interrupt, os.Kill,
	)
	defer cancel()

	cf := try.To(common.Flags(".")).OrFatal(logger)

	builtins := []struct {
		name string
		new  func() (flarc.Command, error)
	}{
		{"auth", subauth.New},
		{"create", subcreate.New},
		{"attach", subattach.New},
		{"configure", subconf.New},
		{"test", subtest.New},
		{"run", subrun.New},
		{"publish", subpublish.New},
		{"upload", subupload.New},
		{"download", subdownload.New},
		{"cloud-run", subcloudrun.New},
		{"quotas", subquotas.New},
		{"my-remote-models", submodels.New},
		{"version", subver.New},
		{"license", func() (flarc.Command, error) { return sublic.New(CREDITS) }},
	}

	known := map[string]struct{}{}
	subcommand := func(name string, new func() (flarc.Command, error)) flarc.Command {
		known[name] = struct{}{}
		return try.To(new()).OrFatal(logger)
	}
	options := collect(flarc.WithSubcommand(
		builtins[0].name, subcommand(builtins[0].name, builtins[0].new),
	))
	for _, b := range builtins[1:] {
		options = append(options, flarc.WithSubcommand(b.name, subcommand(b.name, b.new)))
	}
	for _, ext := range extensions.FindSubcommand(extensions.Prefix) {
		if _, ok := known[ext.Name]; ok {
			continue
		}
		cmd := try.To(extensions.New(ext)).OrFatal(logger)
		options = append(options, flarc.WithSubcommand(ext.Name, cmd))
		known[ext.Name] = struct{}{}
	}

	pyx := try.To(
		flarc.NewCommandGroup("pyx.ai command line interface", cf, options...),
	).OrFatal(logger)

	os.Exit(flarc.Run(ctx, pyx, flarc.WithHelp(true)))
}

func collect[O any](o ...O) []O {
	return o
}
