package rest

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"

	kio "github.com/pyx-ai/pyx-cli/pkg/utils/io"
)

// UploadMode is how a file is sent to pyx.ai.
type UploadMode int

const (
	// Chunked sends the file as a raw application/octet-stream body,
	// in chunked transfer encoding.
	Chunked UploadMode = iota

	// Multipart sends the file as a field of multipart/form-data.
	Multipart
)

func (m UploadMode) String() string {
	switch m {
	case Chunked:
		return "chunked"
	case Multipart:
		return "multipart"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

const (
	ProjectChunkSize   = 16 * 1024 * 1024
	TaskInputChunkSize = 1 * 1024 * 1024

	// form field name of multipart upload.
	MultipartField = "project_files"
)

// Upload is a file to be sent.
type Upload struct {
	// path to the file.
	File string

	Mode UploadMode

	// size of chunks read from File. If not positive, ProjectChunkSize is used.
	ChunkSize int

	// called after each chunk is read. nil is allowed.
	OnProgress func(kio.ChunkProgress)
}

// body is a request body made from Upload.
type body struct {
	reader      io.Reader
	contentType string
	checksum    kio.ChecksumReader
	trigger     kio.TriggerReader
	close       func() error
}

// open prepares request body for the upload.
//
// Returned body should be closed by caller.
func (u Upload) open(ctx context.Context) (*body, error) {
	f, err := os.Open(u.File)
	if err != nil {
		return nil, err
	}
	stat, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	chunkSize := u.ChunkSize
	if chunkSize <= 0 {
		chunkSize = ProjectChunkSize
	}
	chunks := kio.NewChunkReader(f, chunkSize, stat.Size(), u.OnProgress)

	switch u.Mode {
	case Chunked:
		md5 := kio.NewMD5Reader(chunks)
		trigger := kio.NewTriggerReader(md5)
		return &body{
			reader:      trigger,
			contentType: "application/octet-stream",
			checksum:    md5,
			trigger:     trigger,
			close:       f.Close,
		}, nil
	case Multipart:
		r, w := io.Pipe()
		mw := multipart.NewWriter(w)
		go func() {
			part, err := mw.CreateFormFile(MultipartField, filepath.Base(u.File))
			if err != nil {
				w.CloseWithError(err)
				return
			}
			if _, err := io.Copy(part, chunks); err != nil {
				w.CloseWithError(err)
				return
			}
			if err := ctx.Err(); err != nil {
				w.CloseWithError(err)
				return
			}
			w.CloseWithError(mw.Close())
		}()
		return &body{
			reader:      r,
			contentType: mw.FormDataContentType(),
			close: func() error {
				r.Close()
				return f.Close()
			},
		}, nil
	default:
		f.Close()
		return nil, fmt.Errorf("unknown upload mode: %s", u.Mode)
	}
}

// newUploadRequest builds POST request sending the upload.
func (c *client) newUploadRequest(ctx context.Context, url string, b *body) (*http.Request, error) {
	req, err := c.newRequest(ctx, http.MethodPost, url, b.reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", b.contentType)

	if b.checksum != nil && b.trigger != nil {
		req.Trailer = http.Header{}
		req.Header.Add("Trailer", TrailerChecksum)
		b.trigger.OnEnd(func() {
			req.Trailer.Set(TrailerChecksum, b.checksum.HexSum())
		})
	}
	return req, nil
}
