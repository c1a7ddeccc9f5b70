// Package pipeline drives remote jobs on pyx.ai: packaging local files,
// submitting them, polling the task and fetching its result.
//
// A Pipeline runs one job at a time and never has more than one request in flight.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"path/filepath"
	"time"

	perrors "github.com/pyx-ai/pyx-cli/cmd/pyx/errors"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/project"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/rest"
	"github.com/pyx-ai/pyx-cli/pkg/utils/archive"
	kio "github.com/pyx-ai/pyx-cli/pkg/utils/io"
	"github.com/pyx-ai/pyx-cli/pkg/utils/retry"
)

var (
	ErrSubmitFailed = fmt.Errorf("%w: submission failed", perrors.ErrTransport)
	ErrPollFailed   = fmt.Errorf("%w: polling task failed", perrors.ErrTransport)
	ErrFetchFailed  = fmt.Errorf("%w: fetching task result failed", perrors.ErrTransport)
	ErrPollTimeout  = errors.New("task is not finished in time")
)

const (
	DefaultMaxConsecutivePollFailures = 5
	DefaultPollTimeout                = 30 * time.Minute
)

// PollPolicy controls the polling loop.
type PollPolicy struct {
	// Backoff creates a backoff for a polling loop.
	// It is awaited before each poll, including the first one.
	Backoff func() retry.Backoff

	// MaxConsecutiveFailures is how many failed polls in a row are tolerated.
	MaxConsecutiveFailures int

	// Timeout bounds the whole polling loop. Non-positive means no limit.
	Timeout time.Duration
}

// DefaultPollPolicy polls with backoff from 500ms, x1.5 each poll, up to 10s.
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{
		Backoff: func() retry.Backoff {
			return retry.ExponentialBackoff(500*time.Millisecond, 1.5, 10*time.Second)
		},
		MaxConsecutiveFailures: DefaultMaxConsecutivePollFailures,
		Timeout:                DefaultPollTimeout,
	}
}

type Pipeline struct {
	client   rest.PyxClient
	logger   *log.Logger
	observer Observer
	policy   PollPolicy
	mode     rest.UploadMode

	onChunk  func(kio.ChunkProgress)
	onStatus func(rest.TaskStatus)

	state State
}

type Option func(*Pipeline) *Pipeline

func WithLogger(logger *log.Logger) Option {
	return func(p *Pipeline) *Pipeline {
		p.logger = logger
		return p
	}
}

// WithObserver sets a function called on every state transition.
func WithObserver(o Observer) Option {
	return func(p *Pipeline) *Pipeline {
		p.observer = o
		return p
	}
}

func WithPollPolicy(policy PollPolicy) Option {
	return func(p *Pipeline) *Pipeline {
		p.policy = policy
		return p
	}
}

// WithUploadMode sets how archives are sent. Default is rest.Chunked.
func WithUploadMode(mode rest.UploadMode) Option {
	return func(p *Pipeline) *Pipeline {
		p.mode = mode
		return p
	}
}

// WithDisplay reports upload progress and task status to d.
func WithDisplay(d Display) Option {
	return func(p *Pipeline) *Pipeline {
		p.onChunk = d.OnChunk
		p.onStatus = d.OnStatus
		return p
	}
}

func New(client rest.PyxClient, options ...Option) *Pipeline {
	p := &Pipeline{
		client:   client,
		logger:   log.New(io.Discard, "", log.LstdFlags),
		observer: func(Transition) {},
		policy:   DefaultPollPolicy(),
		mode:     rest.Chunked,
		onChunk:  func(kio.ChunkProgress) {},
		onStatus: func(rest.TaskStatus) {},
		state:    Idle,
	}
	for _, o := range options {
		p = o(p)
	}
	return p
}

// State returns the current state.
func (p *Pipeline) State() State {
	return p.state
}

func (p *Pipeline) transit(to State, detail string) {
	from := p.state
	if !CanTransit(from, to) {
		panic(fmt.Sprintf("invalid transition: %s -> %s", from, to))
	}
	p.state = to
	p.observer(Transition{From: from, To: to, Detail: detail})
}

// fail moves to a failure state, and returns err wrapped with kind.
func (p *Pipeline) fail(to State, kind error, err error) error {
	p.transit(to, err.Error())
	return fmt.Errorf("%w: %w", kind, err)
}

func (p *Pipeline) start() error {
	if p.state != Idle {
		return fmt.Errorf("pipeline is used already (state: %s)", p.state)
	}
	p.transit(Packaging, "")
	return nil
}

// ProjectEntryName tells where a project file at relpath is placed in the upload archive.
func ProjectEntryName(framework string, relpath string) string {
	return archive.EntryName(relpath, projectLayout(framework))
}

func projectLayout(framework string) archive.TarOption {
	return archive.WithPrefix(
		path.Join("models", framework),
		project.WebDir, project.TestingDataDir,
	)
}

// UploadProject packages the project directory and uploads it as files of the model.
//
// Every file other than in pyx-web and pyx-testing-data is placed under
// "models/{framework}/" in the archive.
func (p *Pipeline) UploadProject(ctx context.Context, root string, modelId string, framework string) error {
	if err := p.start(); err != nil {
		return err
	}

	tmp, err := os.MkdirTemp("", "pyx-upload-")
	if err != nil {
		return p.fail(SubmitFailed, ErrSubmitFailed, err)
	}
	defer os.RemoveAll(tmp)

	tarball := filepath.Join(tmp, "project.tar")
	n, err := archive.TarFile(ctx, root, tarball, projectLayout(framework))
	if err != nil {
		return p.fail(SubmitFailed, ErrSubmitFailed, fmt.Errorf("packaging %s: %w", root, err))
	}
	p.logger.Printf("packaged %d files from %s", n, root)

	p.transit(Submitting, fmt.Sprintf("model %s", modelId))
	if err := p.client.UploadModel(ctx, modelId, rest.Upload{
		File:       tarball,
		Mode:       p.mode,
		ChunkSize:  rest.ProjectChunkSize,
		OnProgress: p.onChunk,
	}); err != nil {
		return p.fail(SubmitFailed, ErrSubmitFailed, err)
	}
	p.transit(Done, "")
	return nil
}

// Result is an outcome of CloudRun.
type Result struct {
	TaskId string

	// Polls is the number of polls sent.
	Polls int

	// Files is the number of files extracted into the output directory.
	Files int
}

// CloudRun runs a task with files in inputDir, and extracts its output into outputDir.
func (p *Pipeline) CloudRun(ctx context.Context, target rest.TaskTarget, inputDir string, outputDir string) (Result, error) {
	if err := p.start(); err != nil {
		return Result{}, err
	}

	tmp, err := os.MkdirTemp("", "pyx-cloud-run-")
	if err != nil {
		return Result{}, p.fail(SubmitFailed, ErrSubmitFailed, err)
	}
	defer os.RemoveAll(tmp)

	input := filepath.Join(tmp, "input.zip")
	n, err := archive.ZipFile(ctx, inputDir, input)
	if err != nil {
		return Result{}, p.fail(SubmitFailed, ErrSubmitFailed, fmt.Errorf("packaging %s: %w", inputDir, err))
	}
	p.logger.Printf("packaged %d input files from %s", n, inputDir)

	p.transit(Submitting, target.String())
	task, err := p.client.EnqueueTask(ctx, target, rest.Upload{
		File:       input,
		Mode:       p.mode,
		ChunkSize:  rest.TaskInputChunkSize,
		OnProgress: p.onChunk,
	})
	if err != nil {
		return Result{}, p.fail(SubmitFailed, ErrSubmitFailed, err)
	}
	result := Result{TaskId: task.TaskId.String()}
	p.transit(Queued, "task "+result.TaskId)

	p.transit(Polling, "")
	status, polls, err := p.poll(ctx, result.TaskId)
	result.Polls = polls
	if err != nil {
		return result, p.fail(PollFailed, ErrPollFailed, err)
	}
	p.transit(Terminal, fmt.Sprintf("after %d polls", polls))

	p.transit(ResultFetching, "")
	files, err := p.fetch(ctx, tmp, status, outputDir)
	if err != nil {
		return result, p.fail(FetchFailed, ErrFetchFailed, err)
	}
	result.Files = files
	p.transit(Done, fmt.Sprintf("%d files", files))
	return result, nil
}

// poll queries task status until it gets a result.
//
// Failed polls are tolerated up to MaxConsecutiveFailures in a row.
func (p *Pipeline) poll(ctx context.Context, taskId string) (rest.TaskStatus, int, error) {
	if 0 < p.policy.Timeout {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeoutCause(ctx, p.policy.Timeout, ErrPollTimeout)
		defer cancel()
	}

	polls := 0
	failures := 0
	status, err := retry.Blocking(ctx, p.policy.Backoff(), func() (rest.TaskStatus, error) {
		polls += 1
		st, err := p.client.GetTaskStatus(ctx, taskId)
		if err != nil {
			if ctx.Err() != nil {
				return st, err
			}
			failures += 1
			if p.policy.MaxConsecutiveFailures < failures {
				return st, fmt.Errorf("%d polls failed in a row: %w", failures, err)
			}
			p.logger.Printf(
				"polling task %s failed (%d/%d): %s",
				taskId, failures, p.policy.MaxConsecutiveFailures, err,
			)
			return st, retry.ErrRetry
		}
		failures = 0
		p.onStatus(st)
		if st.Terminal() {
			return st, nil
		}
		return st, retry.ErrRetry
	})
	if err != nil {
		if cause := context.Cause(ctx); errors.Is(cause, ErrPollTimeout) {
			return status, polls, fmt.Errorf("%w (%s)", cause, p.policy.Timeout)
		}
		return status, polls, err
	}
	return status, polls, nil
}

// fetch decodes the output archive in the result, and extracts it into outputDir.
func (p *Pipeline) fetch(ctx context.Context, tmp string, status rest.TaskStatus, outputDir string) (int, error) {
	payload, err := status.Output()
	if err != nil {
		return 0, fmt.Errorf("%w (result: %s)", err, status.Result)
	}
	output := filepath.Join(tmp, "output")
	if err := os.WriteFile(output, payload.Bytes(), os.FileMode(0600)); err != nil {
		return 0, err
	}
	return archive.Extract(ctx, output, outputDir)
}
