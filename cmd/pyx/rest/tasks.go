package rest

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	perrors "github.com/pyx-ai/pyx-cli/cmd/pyx/errors"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/project"
	"github.com/pyx-ai/pyx-cli/pkg/utils/base64marshall"
)

var ErrNoOutput = fmt.Errorf("%w: task result has no output", perrors.ErrTransport)

// TaskTarget is a model to run a task with.
type TaskTarget struct {
	ModelId   string
	Framework string

	// version of the model. "latest" if empty.
	Version string
}

// ParseTaskTarget parses "MODEL_ID/FRAMEWORK[:VERSION]".
func ParseTaskTarget(s string) (TaskTarget, error) {
	modelId, rest, ok := strings.Cut(s, "/")
	if !ok || modelId == "" || rest == "" || strings.Contains(rest, "/") {
		return TaskTarget{}, fmt.Errorf(
			"%w: model should be MODEL_ID/FRAMEWORK[:VERSION]: %s", perrors.ErrConfiguration, s,
		)
	}
	framework, version, _ := strings.Cut(rest, ":")
	if framework == "" {
		return TaskTarget{}, fmt.Errorf(
			"%w: framework is empty: %s", perrors.ErrConfiguration, s,
		)
	}
	if version == "" {
		version = "latest"
	}
	return TaskTarget{ModelId: modelId, Framework: framework, Version: version}, nil
}

func (t TaskTarget) String() string {
	return fmt.Sprintf("%s/%s:%s", t.ModelId, t.Framework, t.Version)
}

// Task is a response of task submission.
type Task struct {
	TaskId    project.Scalar `json:"task_id"`
	StatusMsg string         `json:"status_msg"`
}

// TaskStatus is a response of task polling.
type TaskStatus struct {
	// progress label. Only for display.
	Status string `json:"status"`

	// present when the task is over.
	Result json.RawMessage `json:"result"`

	// HTTP status code of the response.
	StatusCode int `json:"-"`
}

// Terminal tells the task is over: result is neither null nor empty.
func (ts TaskStatus) Terminal() bool {
	r := bytes.TrimSpace(ts.Result)
	if len(r) == 0 {
		return false
	}
	for _, empty := range []string{"null", "{}", "[]", `""`, "false", "0"} {
		if string(r) == empty {
			return false
		}
	}
	return true
}

// Output decodes the output archive from the result.
func (ts TaskStatus) Output() (base64marshall.Bytes, error) {
	out := struct {
		OutputDir *base64marshall.Bytes `json:"output_dir"`
	}{}
	if err := json.Unmarshal(ts.Result, &out); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoOutput, err)
	}
	if out.OutputDir == nil {
		return nil, ErrNoOutput
	}
	return *out.OutputDir, nil
}

func (c *client) EnqueueTask(ctx context.Context, target TaskTarget, upload Upload) (Task, error) {
	if upload.ChunkSize <= 0 {
		upload.ChunkSize = TaskInputChunkSize
	}
	b, err := upload.open(ctx)
	if err != nil {
		return Task{}, err
	}
	defer b.close()

	version := target.Version
	if version == "" {
		version = "latest"
	}
	req, err := c.newUploadRequest(
		ctx,
		c.apipath(
			"tasks", "enqueue",
			url.PathEscape(target.ModelId),
			url.PathEscape(target.Framework),
			url.PathEscape(version),
		),
		b,
	)
	if err != nil {
		return Task{}, err
	}
	resp, err := c.do(req)
	if err != nil {
		return Task{}, err
	}
	defer resp.Body.Close()

	task := Task{}
	if err := unmarshalJsonResponse(resp, &task, defaultMessages("submitting task", resp)); err != nil {
		return Task{}, err
	}
	if task.TaskId.IsZero() {
		return Task{}, perrors.NewCuiError(
			"unexpected response: no task_id",
			perrors.WithKind(perrors.ErrTransport),
		)
	}
	return task, nil
}

func (c *client) GetTaskStatus(ctx context.Context, taskId string) (TaskStatus, error) {
	req, err := c.newRequest(
		ctx, http.MethodGet, c.apipath("tasks", "status", url.PathEscape(taskId)), nil,
	)
	if err != nil {
		return TaskStatus{}, err
	}
	resp, err := c.do(req)
	if err != nil {
		return TaskStatus{}, err
	}
	defer resp.Body.Close()

	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return TaskStatus{}, perrors.NewCuiError(
			fmt.Sprintf("cannot read task status (status code = %d)", resp.StatusCode),
			perrors.WithKind(perrors.ErrTransport),
			perrors.WithCause(err),
		)
	}

	status := TaskStatus{}
	decodeErr := json.Unmarshal(buf, &status)
	status.StatusCode = resp.StatusCode
	if decodeErr == nil && status.Terminal() {
		return status, nil
	}

	resp.Body = io.NopCloser(bytes.NewReader(buf))
	if StatusCodeRangeOf(resp) > Status2xx {
		return status, errorResponse(resp, defaultMessages("polling task", resp))
	}
	if decodeErr != nil {
		return status, perrors.NewCuiError(
			fmt.Sprintf("unexpected task status: %s (status code = %d)", decodeErr, resp.StatusCode),
			perrors.WithKind(perrors.ErrTransport),
			perrors.WithCause(decodeErr),
		)
	}
	return status, nil
}
