package mock

import (
	"context"
	"io"
	"testing"

	"github.com/pyx-ai/pyx-cli/cmd/pyx/config"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/project"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/rest"
)

type ModelArgs struct {
	ModelId    string
	Descriptor project.Descriptor
}

type UploadModelArgs struct {
	ModelId string
	Upload  rest.Upload
}

type DownloadModelArgs struct {
	ModelId string
	Version string
}

type EnqueueTaskArgs struct {
	Target rest.TaskTarget
	Upload rest.Upload
}

func New(t *testing.T) *mockPyxClient {
	return &mockPyxClient{t: t}
}

type mockPyxClient struct {
	t    *testing.T
	Impl struct {
		CheckAuth     func(ctx context.Context) (bool, error)
		GetCategories func(ctx context.Context) (config.Categories, error)
		CreateModel   func(ctx context.Context, desc *project.Descriptor) ([]byte, error)
		UpdateModel   func(ctx context.Context, modelId string, desc *project.Descriptor) ([]byte, error)
		PublishModel  func(ctx context.Context, modelId string) error
		UploadModel   func(ctx context.Context, modelId string, upload rest.Upload) error
		DownloadModel func(ctx context.Context, modelId string, version string, handler func(io.Reader) error) error
		EnqueueTask   func(ctx context.Context, target rest.TaskTarget, upload rest.Upload) (rest.Task, error)
		GetTaskStatus func(ctx context.Context, taskId string) (rest.TaskStatus, error)
		GetQuotas     func(ctx context.Context) (rest.Quotas, error)
		GetUser       func(ctx context.Context) (rest.User, error)
	}
	Calls struct {
		CheckAuth     int
		GetCategories int
		CreateModel   []project.Descriptor
		UpdateModel   []ModelArgs
		PublishModel  []string
		UploadModel   []UploadModelArgs
		DownloadModel []DownloadModelArgs
		EnqueueTask   []EnqueueTaskArgs
		GetTaskStatus []string
		GetQuotas     int
		GetUser       int
	}
}

var _ rest.PyxClient = &mockPyxClient{}

func (m *mockPyxClient) CheckAuth(ctx context.Context) (bool, error) {
	m.t.Helper()
	m.Calls.CheckAuth += 1
	if m.Impl.CheckAuth == nil {
		m.t.Fatal("CheckAuth is not ready to be called")
	}
	return m.Impl.CheckAuth(ctx)
}

func (m *mockPyxClient) GetCategories(ctx context.Context) (config.Categories, error) {
	m.t.Helper()
	m.Calls.GetCategories += 1
	if m.Impl.GetCategories == nil {
		m.t.Fatal("GetCategories is not ready to be called")
	}
	return m.Impl.GetCategories(ctx)
}

func (m *mockPyxClient) CreateModel(ctx context.Context, desc *project.Descriptor) ([]byte, error) {
	m.t.Helper()
	m.Calls.CreateModel = append(m.Calls.CreateModel, *desc)
	if m.Impl.CreateModel == nil {
		m.t.Fatal("CreateModel is not ready to be called")
	}
	return m.Impl.CreateModel(ctx, desc)
}

func (m *mockPyxClient) UpdateModel(ctx context.Context, modelId string, desc *project.Descriptor) ([]byte, error) {
	m.t.Helper()
	m.Calls.UpdateModel = append(m.Calls.UpdateModel, ModelArgs{ModelId: modelId, Descriptor: *desc})
	if m.Impl.UpdateModel == nil {
		m.t.Fatal("UpdateModel is not ready to be called")
	}
	return m.Impl.UpdateModel(ctx, modelId, desc)
}

func (m *mockPyxClient) PublishModel(ctx context.Context, modelId string) error {
	m.t.Helper()
	m.Calls.PublishModel = append(m.Calls.PublishModel, modelId)
	if m.Impl.PublishModel == nil {
		m.t.Fatal("PublishModel is not ready to be called")
	}
	return m.Impl.PublishModel(ctx, modelId)
}

func (m *mockPyxClient) UploadModel(ctx context.Context, modelId string, upload rest.Upload) error {
	m.t.Helper()
	m.Calls.UploadModel = append(m.Calls.UploadModel, UploadModelArgs{ModelId: modelId, Upload: upload})
	if m.Impl.UploadModel == nil {
		m.t.Fatal("UploadModel is not ready to be called")
	}
	return m.Impl.UploadModel(ctx, modelId, upload)
}

func (m *mockPyxClient) DownloadModel(ctx context.Context, modelId string, version string, handler func(io.Reader) error) error {
	m.t.Helper()
	m.Calls.DownloadModel = append(m.Calls.DownloadModel, DownloadModelArgs{ModelId: modelId, Version: version})
	if m.Impl.DownloadModel == nil {
		m.t.Fatal("DownloadModel is not ready to be called")
	}
	return m.Impl.DownloadModel(ctx, modelId, version, handler)
}

func (m *mockPyxClient) EnqueueTask(ctx context.Context, target rest.TaskTarget, upload rest.Upload) (rest.Task, error) {
	m.t.Helper()
	m.Calls.EnqueueTask = append(m.Calls.EnqueueTask, EnqueueTaskArgs{Target: target, Upload: upload})
	if m.Impl.EnqueueTask == nil {
		m.t.Fatal("EnqueueTask is not ready to be called")
	}
	return m.Impl.EnqueueTask(ctx, target, upload)
}

func (m *mockPyxClient) GetTaskStatus(ctx context.Context, taskId string) (rest.TaskStatus, error) {
	m.t.Helper()
	m.Calls.GetTaskStatus = append(m.Calls.GetTaskStatus, taskId)
	if m.Impl.GetTaskStatus == nil {
		m.t.Fatal("GetTaskStatus is not ready to be called")
	}
	return m.Impl.GetTaskStatus(ctx, taskId)
}

func (m *mockPyxClient) GetQuotas(ctx context.Context) (rest.Quotas, error) {
	m.t.Helper()
	m.Calls.GetQuotas += 1
	if m.Impl.GetQuotas == nil {
		m.t.Fatal("GetQuotas is not ready to be called")
	}
	return m.Impl.GetQuotas(ctx)
}

func (m *mockPyxClient) GetUser(ctx context.Context) (rest.User, error) {
	m.t.Helper()
	m.Calls.GetUser += 1
	if m.Impl.GetUser == nil {
		m.t.Fatal("GetUser is not ready to be called")
	}
	return m.Impl.GetUser(ctx)
}
