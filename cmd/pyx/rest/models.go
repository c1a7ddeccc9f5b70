package rest

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"

	perrors "github.com/pyx-ai/pyx-cli/cmd/pyx/errors"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/project"
	kio "github.com/pyx-ai/pyx-cli/pkg/utils/io"
)

var (
	ErrChecksumUnmatch = fmt.Errorf("%w: checksum unmatch", perrors.ErrTransport)
)

func (c *client) CreateModel(ctx context.Context, desc *project.Descriptor) ([]byte, error) {
	req, err := c.newJsonRequest(ctx, http.MethodPost, c.apipath("models"), desc)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return unmarshalRawResponse(resp, defaultMessages("creating model", resp))
}

func (c *client) UpdateModel(ctx context.Context, modelId string, desc *project.Descriptor) ([]byte, error) {
	req, err := c.newJsonRequest(
		ctx, http.MethodPut, c.apipath("models", url.PathEscape(modelId)), desc,
	)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return unmarshalRawResponse(resp, defaultMessages("updating model", resp))
}

func (c *client) PublishModel(ctx context.Context, modelId string) error {
	req, err := c.newJsonRequest(
		ctx, http.MethodPut, c.apipath("models", url.PathEscape(modelId), "publish"), struct{}{},
	)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return unmarshalResponseDiscardingPayload(resp, defaultMessages("publishing model", resp))
}

func (c *client) UploadModel(ctx context.Context, modelId string, upload Upload) error {
	b, err := upload.open(ctx)
	if err != nil {
		return err
	}
	defer b.close()

	req, err := c.newUploadRequest(
		ctx, c.apipath("models", url.PathEscape(modelId), "upload"), b,
	)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	return unmarshalResponseDiscardingPayload(resp, defaultMessages("uploading model", resp))
}

func (c *client) DownloadModel(ctx context.Context, modelId string, version string, handler func(io.Reader) error) error {
	req, err := c.newRequest(
		ctx, http.MethodGet,
		c.apipath("models", url.PathEscape(modelId), "download", url.PathEscape(version)),
		nil,
	)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	r, err := unmarshalStreamResponse(resp, defaultMessages("downloading model", resp))
	if err != nil {
		return err
	}

	chr := kio.NewMD5Reader(r)
	tr := kio.NewTriggerReader(chr)
	var hasherr error
	tr.OnEnd(func() {
		// trailer is optional.
		serverChecksum := resp.Trailer.Get(TrailerChecksum)
		if serverChecksum == "" {
			return
		}
		if actual := chr.HexSum(); serverChecksum != actual {
			hasherr = fmt.Errorf(
				"%w: server sent: %s, calcurated: %s",
				ErrChecksumUnmatch, serverChecksum, actual,
			)
		}
	})

	if err := handler(tr); err != nil {
		return err
	}
	// drain rest of the stream, to reach trailers.
	if _, err := io.Copy(io.Discard, tr); err != nil {
		return err
	}

	return hasherr
}
