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

	"github.com/google/uuid"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/config"
	perrors "github.com/pyx-ai/pyx-cli/cmd/pyx/errors"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/project"
	"github.com/pyx-ai/pyx-cli/pkg/buildtime"
)

const (
	HeaderUserToken = "user-token"
	HeaderRequestId = "X-Request-Id"
	TrailerChecksum = "x-checksum-md5"
)

type PyxClient interface {
	// CheckAuth tells whether pyx.ai accepts the user token.
	//
	// # Returns
	//
	// - bool: true if accepted.
	//
	// - error: pyx.ai is not reachable.
	CheckAuth(ctx context.Context) (bool, error)

	// GetCategories returns the category taxonomy.
	GetCategories(ctx context.Context) (config.Categories, error)

	// CreateModel registers a new model listing with metadata in the descriptor.
	//
	// # Returns
	//
	// - []byte: JSON object of the created model. It has "id".
	//
	// - error
	CreateModel(ctx context.Context, desc *project.Descriptor) ([]byte, error)

	// UpdateModel updates metadata of the model listing.
	//
	// # Returns
	//
	// - []byte: JSON object of the updated model.
	//
	// - error
	UpdateModel(ctx context.Context, modelId string, desc *project.Descriptor) ([]byte, error)

	// PublishModel makes the model listing available.
	PublishModel(ctx context.Context, modelId string) error

	// UploadModel sends a project archive as the model files.
	UploadModel(ctx context.Context, modelId string, upload Upload) error

	// DownloadModel downloads the archive of the model files.
	//
	// # Args
	//
	// - modelId, version: model to be downloaded. version may be "latest".
	//
	// - handler: function to be called for raw stream.
	// If handler returns an error, downloading is stopped and the error is returned.
	//
	// # Returns
	//
	// - error: error occured when downloading, or ErrChecksumUnmatch.
	DownloadModel(ctx context.Context, modelId string, version string, handler func(io.Reader) error) error

	// EnqueueTask sends an input archive for inference with the model.
	EnqueueTask(ctx context.Context, target TaskTarget, upload Upload) (Task, error)

	// GetTaskStatus polls the task once.
	//
	// When the response has a result, it is returned without error
	// regardless of its HTTP status.
	GetTaskStatus(ctx context.Context, taskId string) (TaskStatus, error)

	// GetQuotas returns the quotas of the user.
	GetQuotas(ctx context.Context) (Quotas, error)

	// GetUser returns orders and models of the user.
	GetUser(ctx context.Context) (User, error)
}

type client struct {
	httpclient *http.Client
	api        string
	token      string
}

type Option func(*client) *client

// WithHTTPClient replaces http.Client used for requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *client) *client {
		c.httpclient = hc
		return c
	}
}

// create new pyx client
//
// # Args
//
// - apiURL: base URL of the pyx.ai API, like "https://beta.pyx.ai/api/"
//
// - token: user token. Empty if not authenticated.
//
// # Return
//
// - PyxClient: created client
//
// - error: If apiURL is not an absolute URL, config.ErrConfigInvalid is returned.
func NewClient(apiURL string, token string, options ...Option) (PyxClient, error) {
	u, err := url.Parse(apiURL)
	if err != nil || !u.IsAbs() {
		return nil, fmt.Errorf("%w: api url is not URL: %s", config.ErrConfigInvalid, apiURL)
	}

	c := &client{
		httpclient: new(http.Client),
		api:        strings.TrimSuffix(apiURL, "/"),
		token:      token,
	}
	for _, o := range options {
		c = o(c)
	}
	return c, nil
}

// build URL with path.
//
// Trailing slash of the last element is kept, since some endpoints require that.
func (c *client) apipath(path ...string) string {
	elems := []string{c.api}
	for i, p := range path {
		p = strings.TrimPrefix(p, "/")
		if i < len(path)-1 {
			p = strings.TrimSuffix(p, "/")
		}
		elems = append(elems, p)
	}
	return strings.Join(elems, "/")
}

// newRequest builds a request to pyx.ai with common headers.
func (c *client) newRequest(ctx context.Context, method string, url string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set(HeaderUserToken, c.token)
	}
	req.Header.Set(HeaderRequestId, uuid.NewString())
	req.Header.Set("User-Agent", buildtime.UserAgent())
	return req, nil
}

func (c *client) newJsonRequest(ctx context.Context, method string, url string, v any) (*http.Request, error) {
	body, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	req, err := c.newRequest(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// do sends req. Failures before getting response are ErrTransport.
func (c *client) do(req *http.Request) (*http.Response, error) {
	resp, err := c.httpclient.Do(req)
	if err != nil {
		return nil, perrors.NewCuiError(
			fmt.Sprintf("cannot reach pyx.ai (%s %s)", req.Method, req.URL.Redacted()),
			perrors.WithKind(perrors.ErrTransport),
			perrors.WithCause(err),
		)
	}
	return resp, nil
}
