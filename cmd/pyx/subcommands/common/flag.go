package common

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/pyx-ai/pyx-cli/cmd/pyx/config"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/project"
	kos "github.com/pyx-ai/pyx-cli/pkg/utils/os"
	kpath "github.com/pyx-ai/pyx-cli/pkg/utils/path"
)

const (
	EnvConfig  = "PYX_CONFIG"
	EnvProject = "PYX_PROJECT"
	EnvAPIURL  = "PYX_API_URL"
)

type CommonFlags struct {
	Config  string `flag:"config" metavar:"PATH" help:"path to pyx config file"`
	Project string `flag:"project" metavar:"DIR" help:"project directory. Default: the nearest directory with pyx.json, from the working directory upward"`
	APIURL  string `flag:"api-url" metavar:"URL" help:"base URL of pyx.ai API. It overrides the config file."`
}

type commonFlagDetection struct {
	home string
}

type CommonFlagDetectionOption func(*commonFlagDetection) *commonFlagDetection

func WithHome(home string) CommonFlagDetectionOption {
	return func(opt *commonFlagDetection) *commonFlagDetection {
		opt.home = home
		return opt
	}
}

// Flags detects default values of CommonFlags.
//
// - Config: $PYX_CONFIG, or ~/.pyx/pyx.json
//
// - Project: $PYX_PROJECT, or the nearest directory having pyx.json from `from` upward, or `from` itself.
//
// - APIURL: $PYX_API_URL, or empty (the config file is used).
func Flags(from string, opt ...CommonFlagDetectionOption) (CommonFlags, error) {
	detparam := commonFlagDetection{home: ""}
	for _, o := range opt {
		detparam = *o(&detparam)
	}

	conf := kos.GetEnvOr(EnvConfig, "")
	if conf == "" {
		if detparam.home != "" {
			conf = filepath.Join(detparam.home, ".pyx", "pyx.json")
		} else {
			p, err := config.DefaultPath()
			if err != nil {
				return CommonFlags{}, err
			}
			conf = p
		}
	}

	if p := kos.GetEnvOr(EnvProject, ""); p != "" {
		from = p
	}
	if _from, err := filepath.Abs(from); err == nil {
		from = _from
	}
	root := from
	if found, err := kpath.SearchUpward(from, project.FileName); err == nil {
		root = filepath.Dir(found)
	} else if !errors.Is(err, kpath.ErrNotFound) && !errors.Is(err, os.ErrNotExist) {
		return CommonFlags{}, err
	}

	return CommonFlags{
		Config:  conf,
		Project: root,
		APIURL:  kos.GetEnvOr(EnvAPIURL, ""),
	}, nil
}
