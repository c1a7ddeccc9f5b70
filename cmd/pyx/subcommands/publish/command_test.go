package publish_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pyx-ai/pyx-cli/cmd/pyx/config"
	perrors "github.com/pyx-ai/pyx-cli/cmd/pyx/errors"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/pipeline"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/project"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/rest"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/rest/mock"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/common"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/internal/commandline"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/internal/sessiontest"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/logger"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/subcommands/publish"
	"github.com/pyx-ai/pyx-cli/pkg/utils/try"
)

func filled() project.Descriptor {
	return project.Descriptor{
		CategoryID:       "42",
		Framework:        "onnx",
		Name:             "resnet",
		PaperURL:         "https://arxiv.org/abs/1512.03385",
		Dataset:          "ImageNet",
		License:          "MIT",
		Price:            "0.0",
		DescriptionShort: "a classifier",
	}
}

type fixture struct {
	root    string
	path    string
	session *common.Session
}

// setup places the project and opens a session with client.
func setup(t *testing.T, desc project.Descriptor, client rest.PyxClient) fixture {
	t.Helper()
	root := t.TempDir()
	path := filepath.Join(root, project.FileName)
	if err := desc.Save(path); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(root, project.WebDir), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(root, project.DescriptionFile), []byte("# resnet\n\ndeep residual net.\n"), 0o644); err != nil {
		t.Fatal(err)
	}

	conf := config.Default()
	conf.UserToken = "t0ken"
	return fixture{
		root:    root,
		path:    path,
		session: sessiontest.New(t, conf, root, client),
	}
}

func run(f fixture, flags publish.Flags) (string, error) {
	stdout := new(strings.Builder)
	err := common.Run(
		context.Background(), logger.Null(), f.session,
		commandline.MockCommandline[publish.Flags]{
			Fullname_: "pyx publish",
			Stdout_:   stdout,
			Stderr_:   new(strings.Builder),
			Flags_:    flags,
		},
		nil, publish.Task(pipeline.WithDisplay(pipeline.NullDisplay())), publish.Preconditions...,
	)
	return stdout.String(), err
}

func TestPublish_CreateThenUpdate(t *testing.T) {
	client := mock.New(t)
	client.Impl.CreateModel = func(ctx context.Context, desc *project.Descriptor) ([]byte, error) {
		return []byte(`{"id": 101, "slug": "resnet"}`), nil
	}
	client.Impl.UpdateModel = func(ctx context.Context, modelId string, desc *project.Descriptor) ([]byte, error) {
		return []byte(`{"id": 101, "approved": false}`), nil
	}
	client.Impl.UploadModel = func(ctx context.Context, modelId string, upload rest.Upload) error {
		return nil
	}
	f := setup(t, filled(), client)

	if _, err := run(f, publish.Flags{}); err != nil {
		t.Fatal(err)
	}
	if len(client.Calls.CreateModel) != 1 || len(client.Calls.UpdateModel) != 0 {
		t.Fatalf("calls: %+v", client.Calls)
	}
	if got := client.Calls.CreateModel[0].DescriptionFull; got != "# resnet\n\ndeep residual net.\n" {
		t.Errorf("description_full: %q", got)
	}

	saved := try.To(project.Load(f.path)).OrFatal(t)
	if saved.ID != "101" || saved.Get("slug") != "resnet" {
		t.Errorf("response is not merged:\n%s", saved)
	}
	if len(client.Calls.UploadModel) != 1 || client.Calls.UploadModel[0].ModelId != "101" {
		t.Errorf("upload: %+v", client.Calls.UploadModel)
	}

	// second publish updates the model.
	again := fixture{
		root: f.root, path: f.path,
		session: sessiontest.New(t, f.session.Config, f.root, client),
	}
	stdout, err := run(again, publish.Flags{})
	if err != nil {
		t.Fatal(err)
	}
	if len(client.Calls.UpdateModel) != 1 || client.Calls.UpdateModel[0].ModelId != "101" {
		t.Errorf("update: %+v", client.Calls.UpdateModel)
	}
	if len(client.Calls.CreateModel) != 1 {
		t.Errorf("created again: %+v", client.Calls.CreateModel)
	}
	if !strings.HasPrefix(stdout, "Updating project:\n") {
		t.Errorf("stdout: %s", stdout)
	}
	if len(client.Calls.PublishModel) != 0 {
		t.Errorf("published without --make-available")
	}
}

func TestPublish_MakeAvailable(t *testing.T) {
	client := mock.New(t)
	client.Impl.UpdateModel = func(ctx context.Context, modelId string, desc *project.Descriptor) ([]byte, error) {
		return []byte(`{}`), nil
	}
	client.Impl.UploadModel = func(ctx context.Context, modelId string, upload rest.Upload) error {
		return nil
	}
	client.Impl.PublishModel = func(ctx context.Context, modelId string) error {
		return nil
	}
	desc := filled()
	desc.ID = "101"
	f := setup(t, desc, client)

	stdout, err := run(f, publish.Flags{MakeAvailable: true})
	if err != nil {
		t.Fatal(err)
	}
	if len(client.Calls.PublishModel) != 1 || client.Calls.PublishModel[0] != "101" {
		t.Errorf("publish: %+v", client.Calls.PublishModel)
	}
	if !strings.HasSuffix(stdout, "Model 101 is available.\n") {
		t.Errorf("stdout: %s", stdout)
	}
}

func TestPublish_MissingFields(t *testing.T) {
	client := mock.New(t)
	desc := filled()
	desc.License = "  "
	desc.Dataset = ""
	f := setup(t, desc, client)

	_, err := run(f, publish.Flags{})
	if !errors.Is(err, project.ErrMissingFields) || !errors.Is(err, perrors.ErrConfiguration) {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, field := range []string{"dataset", "license"} {
		if !strings.Contains(err.Error(), field) {
			t.Errorf("%s is not reported: %v", field, err)
		}
	}
	if len(client.Calls.CreateModel) != 0 || len(client.Calls.UploadModel) != 0 {
		t.Errorf("requests are sent: %+v", client.Calls)
	}
}

func TestPublish_IdIsKeptWhenUploadFails(t *testing.T) {
	client := mock.New(t)
	client.Impl.CreateModel = func(ctx context.Context, desc *project.Descriptor) ([]byte, error) {
		return []byte(`{"id": 101}`), nil
	}
	client.Impl.UploadModel = func(ctx context.Context, modelId string, upload rest.Upload) error {
		return perrors.ErrTransport
	}
	f := setup(t, filled(), client)

	_, err := run(f, publish.Flags{})
	if !errors.Is(err, pipeline.ErrSubmitFailed) {
		t.Fatalf("unexpected error: %v", err)
	}
	if saved := try.To(project.Load(f.path)).OrFatal(t); saved.ID != "101" {
		t.Errorf("id is not saved:\n%s", saved)
	}
}

func TestPublish_RejectedCreation(t *testing.T) {
	client := mock.New(t)
	client.Impl.CreateModel = func(ctx context.Context, desc *project.Descriptor) ([]byte, error) {
		return nil, &rest.ServerError{
			StatusCode: 400,
			Message:    "name is taken",
			CUIError:   perrors.NewCuiError("bad request", perrors.WithKind(perrors.ErrTransport)),
		}
	}
	f := setup(t, filled(), client)

	_, err := run(f, publish.Flags{})
	se := new(rest.ServerError)
	if !errors.As(err, &se) || se.Message != "name is taken" {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(client.Calls.UploadModel) != 0 {
		t.Errorf("uploaded: %+v", client.Calls.UploadModel)
	}
}

func TestPublish_ResponseWithStructuredValues(t *testing.T) {
	client := mock.New(t)
	client.Impl.CreateModel = func(ctx context.Context, desc *project.Descriptor) ([]byte, error) {
		return []byte(`{"id": 101, "license": {"id": 3, "name": "MIT"}, "framework": ["onnx"]}`), nil
	}
	client.Impl.UpdateModel = func(ctx context.Context, modelId string, desc *project.Descriptor) ([]byte, error) {
		return []byte(`{"id": 101}`), nil
	}
	client.Impl.UploadModel = func(ctx context.Context, modelId string, upload rest.Upload) error {
		return nil
	}
	f := setup(t, filled(), client)

	if _, err := run(f, publish.Flags{}); err != nil {
		t.Fatal(err)
	}
	saved := try.To(project.Load(f.path)).OrFatal(t)
	if saved.ID != "101" {
		t.Fatalf("id is not saved:\n%s", saved)
	}
	if saved.License != "MIT" || saved.Framework != "onnx" {
		t.Errorf("fields are broken by the response:\n%s", saved)
	}
	if len(client.Calls.UploadModel) != 1 || client.Calls.UploadModel[0].ModelId != "101" {
		t.Errorf("upload: %+v", client.Calls.UploadModel)
	}

	// the next publish updates the same model, instead of creating another.
	again := fixture{
		root: f.root, path: f.path,
		session: sessiontest.New(t, f.session.Config, f.root, client),
	}
	if _, err := run(again, publish.Flags{}); err != nil {
		t.Fatal(err)
	}
	if len(client.Calls.CreateModel) != 1 {
		t.Errorf("created again: %d times", len(client.Calls.CreateModel))
	}
	if len(client.Calls.UpdateModel) != 1 || client.Calls.UpdateModel[0].ModelId != "101" {
		t.Errorf("update: %+v", client.Calls.UpdateModel)
	}
}
