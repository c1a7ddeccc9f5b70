// Package harness runs endpoints of a project locally.
package harness

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"time"

	perrors "github.com/pyx-ai/pyx-cli/cmd/pyx/errors"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/project"
)

const (
	DefaultTimes  = 10
	DefaultDevice = "cuda"
)

var ErrPredictFailed = fmt.Errorf("%w: predict has not completed", perrors.ErrHarness)

type Harness struct {
	endpoint Endpoint
	root     string
	logger   *log.Logger
	now      func() time.Time
}

type Option func(*Harness) *Harness

func WithLogger(logger *log.Logger) Option {
	return func(h *Harness) *Harness {
		h.logger = logger
		return h
	}
}

// WithClock replaces time source used for measurement.
func WithClock(now func() time.Time) Option {
	return func(h *Harness) *Harness {
		h.now = now
		return h
	}
}

// New creates a Harness for a project at root.
func New(endpoint Endpoint, root string, options ...Option) *Harness {
	h := &Harness{
		endpoint: endpoint,
		root:     root,
		logger:   log.New(io.Discard, "", log.LstdFlags),
		now:      time.Now,
	}
	for _, o := range options {
		h = o(h)
	}
	return h
}

// WeightPaths returns weight paths of the endpoint.
//
// # Returns
//
// - map[string]string: weight paths as the endpoint returns.
//
// - map[string]string: weight paths resolved from the project root.
//
// - error
func (h *Harness) WeightPaths(ctx context.Context) (map[string]string, map[string]string, error) {
	raw, err := h.endpoint.GetWeightPaths(ctx)
	if err != nil {
		return nil, nil, err
	}
	resolved := make(map[string]string, len(raw))
	for name, p := range raw {
		if !filepath.IsAbs(p) {
			p = filepath.Join(h.root, p)
		}
		resolved[name] = p
	}
	return raw, resolved, nil
}

type TestOptions struct {
	// number of predictions. If not positive, DefaultTimes.
	Times int

	// device passed to predict. If empty, DefaultDevice.
	Device string

	// directory of input files. If empty, pyx-testing-data in the project.
	InputDir string
}

type Report struct {
	WeightPaths map[string]string
	Durations   []time.Duration
}

// Mean returns the mean of Durations.
func (r Report) Mean() time.Duration {
	if len(r.Durations) == 0 {
		return 0
	}
	var sum time.Duration
	for _, d := range r.Durations {
		sum += d
	}
	return sum / time.Duration(len(r.Durations))
}

// Meta is the record of the test for the project descriptor.
func (r Report) Meta() *project.Meta {
	return &project.Meta{
		WeightPaths:       r.WeightPaths,
		MeanInferenceTime: r.Mean().Seconds(),
	}
}

// Test runs predict repeatedly for testing data, and measures time for each.
//
// Each prediction writes into a fresh scratch directory, removed after that.
func (h *Harness) Test(ctx context.Context, opts TestOptions) (Report, error) {
	times := opts.Times
	if times <= 0 {
		times = DefaultTimes
	}
	device := opts.Device
	if device == "" {
		device = DefaultDevice
	}
	input := opts.InputDir
	if input == "" {
		input = filepath.Join(h.root, project.TestingDataDir)
	}

	h.logger.Println("initializing model...")
	raw, weights, err := h.WeightPaths(ctx)
	if err != nil {
		return Report{}, err
	}
	h.logger.Printf("weight paths: %v", raw)

	report := Report{WeightPaths: raw, Durations: make([]time.Duration, 0, times)}
	for n := 1; n <= times; n++ {
		d, err := h.predictInScratch(ctx, input, weights, device)
		if err != nil {
			return report, fmt.Errorf("[%d/%d] %w", n, times, err)
		}
		report.Durations = append(report.Durations, d)
		h.logger.Printf("[%d/%d] inference time: %s", n, times, d)
	}
	h.logger.Printf("mean inference time: %s", report.Mean())
	return report, nil
}

func (h *Harness) predictInScratch(ctx context.Context, input string, weights map[string]string, device string) (time.Duration, error) {
	scratch, err := os.MkdirTemp("", "pyx-test-")
	if err != nil {
		return 0, err
	}
	defer os.RemoveAll(scratch)
	return h.predict(ctx, input, scratch, weights, device)
}

func (h *Harness) predict(ctx context.Context, input string, output string, weights map[string]string, device string) (time.Duration, error) {
	start := h.now()
	ok, err := h.endpoint.Predict(ctx, PredictRequest{
		InputDir:    input,
		OutputDir:   output,
		WeightPaths: weights,
		Device:      device,
	})
	elapsed := h.now().Sub(start)
	if err != nil {
		return elapsed, err
	}
	if !ok {
		return elapsed, ErrPredictFailed
	}
	return elapsed, nil
}

// Run runs predict once for files in inputDir, writing results into outputDir.
//
// outputDir is created when missing.
func (h *Harness) Run(ctx context.Context, inputDir string, outputDir string, device string) (time.Duration, error) {
	if device == "" {
		device = DefaultDevice
	}
	if err := os.MkdirAll(outputDir, os.FileMode(0755)); err != nil {
		return 0, err
	}

	h.logger.Println("initializing model...")
	raw, weights, err := h.WeightPaths(ctx)
	if err != nil {
		return 0, err
	}
	h.logger.Printf("weight paths: %v", raw)

	d, err := h.predict(ctx, inputDir, outputDir, weights, device)
	if err != nil {
		return d, err
	}
	h.logger.Printf("inference time: %s", d)
	return d, nil
}
