package test_test

import (
	"context"
	"errors"
	"io"
	"path/filepath"
	"strings"
	"testing"

	perrors "github.com/pyx-ai/pyx-cli/cmd/pyx/errors"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/harness"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/project"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/rest/mock"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/common"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/internal/commandline"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/internal/sessiontest"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/logger"
	pyxtest "github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/test"
	"github.com/pyx-ai/pyx-cli/pkg/utils/try"
)

type endpoint struct {
	ok     bool
	err    error
	calls  []harness.PredictRequest
	closed bool
}

func (e *endpoint) GetWeightPaths(context.Context) (map[string]string, error) {
	return map[string]string{"model": "weights/model.onnx"}, nil
}

func (e *endpoint) Predict(ctx context.Context, req harness.PredictRequest) (bool, error) {
	e.calls = append(e.calls, req)
	return e.ok, e.err
}

func (e *endpoint) Close() error {
	e.closed = true
	return nil
}

type startCall struct {
	interpreter string
	root        string
}

func starter(ep harness.Endpoint, calls *[]startCall) harness.Starter {
	return func(ctx context.Context, interpreter string, root string, stderr io.Writer) (harness.Endpoint, error) {
		*calls = append(*calls, startCall{interpreter: interpreter, root: root})
		return ep, nil
	}
}

func TestTest(t *testing.T) {
	type when struct {
		flags pyxtest.Flags
		ok    bool
		err   error
	}
	type then struct {
		predicts int
		device   string
		meta     bool
		stdout   string
		err      error
	}

	theory := func(when when, then then) func(*testing.T) {
		return func(t *testing.T) {
			root := t.TempDir()
			path := filepath.Join(root, project.FileName)
			if err := (&project.Descriptor{Framework: "onnx", Name: "resnet"}).Save(path); err != nil {
				t.Fatal(err)
			}
			session := sessiontest.New(t, nil, root, mock.New(t))

			ep := &endpoint{ok: when.ok, err: when.err}
			starts := []startCall{}
			stdout := new(strings.Builder)
			err := common.Run(
				context.Background(), logger.Null(), session,
				commandline.MockCommandline[pyxtest.Flags]{
					Fullname_: "pyx test",
					Stdout_:   stdout,
					Stderr_:   new(strings.Builder),
					Flags_:    when.flags,
				},
				nil, pyxtest.Task(starter(ep, &starts)), pyxtest.Preconditions...,
			)
			if then.err == nil {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			} else if !errors.Is(err, then.err) {
				t.Errorf("err: (actual, expected) = (%v, %v)", err, then.err)
			}

			if len(starts) != 1 || starts[0].root != root || starts[0].interpreter != when.flags.Python {
				t.Errorf("endpoint is started as %+v", starts)
			}
			if !ep.closed {
				t.Error("endpoint is not closed")
			}
			if len(ep.calls) != then.predicts {
				t.Errorf("predict is called %d times, want %d", len(ep.calls), then.predicts)
			}
			for _, c := range ep.calls {
				if c.Device != then.device {
					t.Errorf("device: %s", c.Device)
				}
				if c.InputDir != filepath.Join(root, project.TestingDataDir) {
					t.Errorf("input dir: %s", c.InputDir)
				}
				if c.WeightPaths["model"] != filepath.Join(root, "weights", "model.onnx") {
					t.Errorf("weight paths: %v", c.WeightPaths)
				}
			}
			if !strings.HasPrefix(stdout.String(), "Testing project ...\n") ||
				!strings.HasSuffix(stdout.String(), then.stdout) {
				t.Errorf("stdout:\n%s", stdout)
			}

			saved := try.To(project.Load(path)).OrFatal(t)
			if (saved.Meta != nil) != then.meta {
				t.Fatalf("meta: %+v", saved.Meta)
			}
			if then.meta && saved.Meta.WeightPaths["model"] != "weights/model.onnx" {
				t.Errorf("weight paths in meta: %v", saved.Meta.WeightPaths)
			}
		}
	}

	t.Run("passing test records meta", theory(
		when{
			flags: pyxtest.Flags{Times: 10, Device: "cuda", Python: "python3"},
			ok:    true,
		},
		then{predicts: 10, device: "cuda", meta: true, stdout: "....\nPASSED\n"},
	))

	t.Run("times and device are configurable", theory(
		when{
			flags: pyxtest.Flags{Times: 3, Device: "cpu", Python: "/opt/venv/bin/python"},
			ok:    true,
		},
		then{predicts: 3, device: "cpu", meta: true, stdout: "....\nPASSED\n"},
	))

	t.Run("falsy predict fails the test", theory(
		when{flags: pyxtest.Flags{Times: 10, Device: "cuda", Python: "python3"}, ok: false},
		then{
			predicts: 1, device: "cuda", meta: false,
			stdout: "An error occurred.\n", err: harness.ErrPredictFailed,
		},
	))

	t.Run("raising predict fails the test", theory(
		when{
			flags: pyxtest.Flags{Times: 10, Device: "cuda", Python: "python3"},
			err:   perrors.NewCuiError("ZeroDivisionError", perrors.WithKind(perrors.ErrHarness)),
		},
		then{
			predicts: 1, device: "cuda", meta: false,
			stdout: "An error occurred.\n", err: perrors.ErrHarness,
		},
	))
}
