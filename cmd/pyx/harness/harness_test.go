package harness_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	perrors "github.com/pyx-ai/pyx-cli/cmd/pyx/errors"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/harness"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/project"
	"github.com/pyx-ai/pyx-cli/pkg/utils/try"
)

type fakeEndpoint struct {
	weightPaths map[string]string
	weightErr   error

	// results of predict in order. The last one is repeated.
	results []bool
	errs    []error

	calls  []harness.PredictRequest
	closed bool

	// called in predict.
	onPredict func(req harness.PredictRequest)
}

func (f *fakeEndpoint) GetWeightPaths(context.Context) (map[string]string, error) {
	return f.weightPaths, f.weightErr
}

func (f *fakeEndpoint) Predict(ctx context.Context, req harness.PredictRequest) (bool, error) {
	n := len(f.calls)
	f.calls = append(f.calls, req)
	if f.onPredict != nil {
		f.onPredict(req)
	}
	var err error
	if n < len(f.errs) {
		err = f.errs[n]
	}
	if n < len(f.results) {
		return f.results[n], err
	}
	return f.results[len(f.results)-1], err
}

func (f *fakeEndpoint) Close() error {
	f.closed = true
	return nil
}

// clock advances by step every call.
func clock(step time.Duration) func() time.Time {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	return func() time.Time {
		now = now.Add(step)
		return now
	}
}

func TestHarness_Test(t *testing.T) {
	t.Run("predict is measured 10 times by default", func(t *testing.T) {
		root := t.TempDir()
		scratches := []string{}
		ep := &fakeEndpoint{
			weightPaths: map[string]string{"model": "weights/model.onnx", "abs": "/opt/labels.txt"},
			results:     []bool{true},
			onPredict: func(req harness.PredictRequest) {
				if _, err := os.Stat(req.OutputDir); err != nil {
					t.Errorf("scratch dir is not ready: %v", err)
				}
				scratches = append(scratches, req.OutputDir)
			},
		}
		testee := harness.New(ep, root, harness.WithClock(clock(250*time.Millisecond)))

		report := try.To(testee.Test(context.Background(), harness.TestOptions{})).OrFatal(t)

		if len(ep.calls) != harness.DefaultTimes || len(report.Durations) != harness.DefaultTimes {
			t.Fatalf("predictions: calls %d, durations %d", len(ep.calls), len(report.Durations))
		}
		wantWeights := map[string]string{
			"model": filepath.Join(root, "weights/model.onnx"),
			"abs":   "/opt/labels.txt",
		}
		for _, c := range ep.calls {
			if c.InputDir != filepath.Join(root, project.TestingDataDir) {
				t.Errorf("input dir: %s", c.InputDir)
			}
			if c.Device != harness.DefaultDevice {
				t.Errorf("device: %s", c.Device)
			}
			if !reflect.DeepEqual(c.WeightPaths, wantWeights) {
				t.Errorf("weight paths: %v", c.WeightPaths)
			}
		}
		seen := map[string]struct{}{}
		for _, s := range scratches {
			if _, ok := seen[s]; ok {
				t.Errorf("scratch dir is reused: %s", s)
			}
			seen[s] = struct{}{}
			if _, err := os.Stat(s); !errors.Is(err, os.ErrNotExist) {
				t.Errorf("scratch dir is left: %s", s)
			}
		}

		if report.Mean() != 250*time.Millisecond {
			t.Errorf("mean: %s", report.Mean())
		}
		meta := report.Meta()
		if meta.MeanInferenceTime != 0.25 {
			t.Errorf("meta mean: %f", meta.MeanInferenceTime)
		}
		if !reflect.DeepEqual(meta.WeightPaths, ep.weightPaths) {
			t.Errorf("meta weight paths should be as written in the project: %v", meta.WeightPaths)
		}
	})

	t.Run("options are passed", func(t *testing.T) {
		ep := &fakeEndpoint{weightPaths: map[string]string{}, results: []bool{true}}
		testee := harness.New(ep, t.TempDir())
		report := try.To(testee.Test(context.Background(), harness.TestOptions{
			Times: 3, Device: "cpu", InputDir: "/data/in",
		})).OrFatal(t)
		if len(report.Durations) != 3 || len(ep.calls) != 3 {
			t.Errorf("predictions: %d", len(ep.calls))
		}
		if ep.calls[0].Device != "cpu" || ep.calls[0].InputDir != "/data/in" {
			t.Errorf("request: %+v", ep.calls[0])
		}
	})

	t.Run("falsy predict fails the test", func(t *testing.T) {
		ep := &fakeEndpoint{weightPaths: map[string]string{}, results: []bool{true, true, false}}
		testee := harness.New(ep, t.TempDir())
		_, err := testee.Test(context.Background(), harness.TestOptions{})
		if !errors.Is(err, harness.ErrPredictFailed) || !errors.Is(err, perrors.ErrHarness) {
			t.Errorf("unexpected error: %v", err)
		}
		if len(ep.calls) != 3 {
			t.Errorf("predictions after failure: %d", len(ep.calls))
		}
	})

	t.Run("raising predict fails the test", func(t *testing.T) {
		raised := perrors.NewCuiError("RuntimeError: CUDA is not available", perrors.WithKind(perrors.ErrHarness))
		ep := &fakeEndpoint{weightPaths: map[string]string{}, results: []bool{false}, errs: []error{raised}}
		testee := harness.New(ep, t.TempDir())
		_, err := testee.Test(context.Background(), harness.TestOptions{})
		if !errors.Is(err, raised) || !errors.Is(err, perrors.ErrHarness) {
			t.Errorf("unexpected error: %v", err)
		}
	})

	t.Run("broken get_weight_paths fails the test", func(t *testing.T) {
		broken := errors.New("FileNotFoundError")
		ep := &fakeEndpoint{weightErr: broken, results: []bool{true}}
		testee := harness.New(ep, t.TempDir())
		if _, err := testee.Test(context.Background(), harness.TestOptions{}); !errors.Is(err, broken) {
			t.Errorf("unexpected error: %v", err)
		}
		if len(ep.calls) != 0 {
			t.Errorf("predict is called")
		}
	})
}

func TestHarness_Run(t *testing.T) {
	root := t.TempDir()
	out := filepath.Join(t.TempDir(), "out", "nested")
	ep := &fakeEndpoint{
		weightPaths: map[string]string{"model": "model.pt"},
		results:     []bool{true},
		onPredict: func(req harness.PredictRequest) {
			if err := os.WriteFile(filepath.Join(req.OutputDir, "result.txt"), []byte("cat"), 0o644); err != nil {
				t.Error(err)
			}
		},
	}
	testee := harness.New(ep, root, harness.WithClock(clock(time.Second)))

	d := try.To(testee.Run(context.Background(), "/data/in", out, "")).OrFatal(t)
	if d != time.Second {
		t.Errorf("duration: %s", d)
	}
	if len(ep.calls) != 1 {
		t.Fatalf("predictions: %d", len(ep.calls))
	}
	want := harness.PredictRequest{
		InputDir:    "/data/in",
		OutputDir:   out,
		WeightPaths: map[string]string{"model": filepath.Join(root, "model.pt")},
		Device:      harness.DefaultDevice,
	}
	if !reflect.DeepEqual(ep.calls[0], want) {
		t.Errorf("request: %+v", ep.calls[0])
	}
	if b := try.To(os.ReadFile(filepath.Join(out, "result.txt"))).OrFatal(t); string(b) != "cat" {
		t.Errorf("output: %s", b)
	}

	t.Run("falsy predict is an error", func(t *testing.T) {
		ep := &fakeEndpoint{weightPaths: map[string]string{}, results: []bool{false}}
		testee := harness.New(ep, root)
		if _, err := testee.Run(context.Background(), "/data/in", t.TempDir(), "cpu"); !errors.Is(err, harness.ErrPredictFailed) {
			t.Errorf("unexpected error: %v", err)
		}
	})
}
