package cloudrun_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pyx-ai/pyx-cli/cmd/pyx/config"
	perrors "github.com/pyx-ai/pyx-cli/cmd/pyx/errors"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/pipeline"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/rest"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/rest/mock"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/cloudrun"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/common"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/internal/commandline"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/internal/sessiontest"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/logger"
	"github.com/pyx-ai/pyx-cli/pkg/utils/archive"
	"github.com/pyx-ai/pyx-cli/pkg/utils/retry"
	"github.com/pyx-ai/pyx-cli/pkg/utils/try"
)

func noWait() pipeline.Option {
	return pipeline.WithPollPolicy(pipeline.PollPolicy{
		Backoff:                retry.NoWait,
		MaxConsecutiveFailures: 2,
	})
}

func zipped(t *testing.T, name string, content string) json.RawMessage {
	t.Helper()
	src := t.TempDir()
	if err := os.WriteFile(filepath.Join(src, name), []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	z := filepath.Join(t.TempDir(), "out.zip")
	try.To(archive.ZipFile(context.Background(), src, z)).OrFatal(t)
	b := try.To(os.ReadFile(z)).OrFatal(t)
	return json.RawMessage(fmt.Sprintf(`{"output_dir": %q}`, base64.StdEncoding.EncodeToString(b)))
}

func TestCloudRun(t *testing.T) {
	type when struct {
		token string
		model string
		polls []rest.TaskStatus
	}
	type then struct {
		target rest.TaskTarget
		polls  int
		output string
		err    error
	}

	result := zipped(t, "prediction.json", `{"label": "cat"}`)

	theory := func(when when, then then) func(*testing.T) {
		return func(t *testing.T) {
			input := t.TempDir()
			if err := os.WriteFile(filepath.Join(input, "cat.jpg"), []byte("JPEG"), 0o644); err != nil {
				t.Fatal(err)
			}
			output := filepath.Join(t.TempDir(), "out")

			client := mock.New(t)
			client.Impl.EnqueueTask = func(ctx context.Context, target rest.TaskTarget, upload rest.Upload) (rest.Task, error) {
				return rest.Task{TaskId: "abc123"}, nil
			}
			client.Impl.GetTaskStatus = func(ctx context.Context, taskId string) (rest.TaskStatus, error) {
				n := len(client.Calls.GetTaskStatus) - 1
				if len(when.polls) <= n {
					t.Fatalf("too many polls: %d", n+1)
				}
				return when.polls[n], nil
			}
			conf := config.Default()
			conf.UserToken = when.token
			session := sessiontest.New(t, conf, t.TempDir(), client)

			stdout := new(strings.Builder)
			err := common.Run(
				context.Background(), logger.Null(), session,
				commandline.MockCommandline[cloudrun.Flags]{
					Fullname_: "pyx cloud-run",
					Stdout_:   stdout,
					Stderr_:   new(strings.Builder),
					Args_: map[string][]string{
						cloudrun.ARG_MODEL:  {when.model},
						cloudrun.ARG_INPUT:  {input},
						cloudrun.ARG_OUTPUT: {output},
					},
				},
				nil,
				cloudrun.Task(pipeline.WithDisplay(pipeline.NullDisplay()), noWait()),
				cloudrun.Preconditions...,
			)
			if then.err != nil {
				if !errors.Is(err, then.err) {
					t.Errorf("err: (actual, expected) = (%v, %v)", err, then.err)
				}
				if len(client.Calls.EnqueueTask) != 0 && then.polls == 0 {
					t.Errorf("task is enqueued: %+v", client.Calls.EnqueueTask)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}

			if len(client.Calls.EnqueueTask) != 1 {
				t.Fatalf("EnqueueTask is called %d times", len(client.Calls.EnqueueTask))
			}
			if got := client.Calls.EnqueueTask[0].Target; got != then.target {
				t.Errorf("target: %+v", got)
			}
			if len(client.Calls.GetTaskStatus) != then.polls {
				t.Errorf("polls: %d", len(client.Calls.GetTaskStatus))
			}
			got := try.To(os.ReadFile(filepath.Join(output, "prediction.json"))).OrFatal(t)
			if string(got) != then.output {
				t.Errorf("output: %q", got)
			}
			for _, line := range []string{
				"Assigned task abc123...",
				"Successfully predicted: 1 files in " + output + " (task abc123)",
			} {
				if !strings.Contains(stdout.String(), line) {
					t.Errorf("stdout does not contain %q:\n%s", line, stdout)
				}
			}
		}
	}

	t.Run("results of a task are extracted", theory(
		when{
			token: "t0ken",
			model: "101/onnx",
			polls: []rest.TaskStatus{
				{Status: "queued"},
				{Status: "done", Result: result},
			},
		},
		then{
			target: rest.TaskTarget{ModelId: "101", Framework: "onnx", Version: "latest"},
			polls:  2,
			output: `{"label": "cat"}`,
		},
	))
	t.Run("version of model is passed", theory(
		when{
			token: "t0ken",
			model: "101/pytorch:3",
			polls: []rest.TaskStatus{{Status: "done", Result: result}},
		},
		then{
			target: rest.TaskTarget{ModelId: "101", Framework: "pytorch", Version: "3"},
			polls:  1,
			output: `{"label": "cat"}`,
		},
	))
	t.Run("model without framework is rejected", theory(
		when{token: "t0ken", model: "101"},
		then{err: perrors.ErrConfiguration},
	))
	t.Run("unauthenticated user cannot run tasks", theory(
		when{token: "", model: "101/onnx"},
		then{err: common.ErrNotAuthenticated},
	))
}
