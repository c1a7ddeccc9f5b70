package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/cheggaaa/pb/v3"
	"github.com/pyx-ai/pyx-cli/cmd/pyx/rest"
	"github.com/pyx-ai/pyx-cli/pkg/utils/archive"
)

const counterOnly pb.ProgressBarTemplate = `{{with string . "prefix"}}{{.}} {{end}}{{counters . }} {{with string . "suffix"}} {{.}}{{end}}`

// Download fetches files of a model and extracts them into dest.
//
// Download progress is written to progressOut.
// It returns the number of extracted files.
//
// When the checksum does not match, extracted files are left
// and an error wrapping rest.ErrChecksumUnmatch is returned.
func Download(
	ctx context.Context,
	client rest.PyxClient,
	modelId string,
	version string,
	dest string,
	progressOut io.Writer,
) (int, error) {
	tmp, err := os.MkdirTemp("", "pyx-download-")
	if err != nil {
		return 0, err
	}
	defer os.RemoveAll(tmp)

	tarball := filepath.Join(tmp, "_project.tar")
	dlerr := client.DownloadModel(ctx, modelId, version, func(r io.Reader) error {
		f, err := os.OpenFile(tarball, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, os.FileMode(0600))
		if err != nil {
			return err
		}
		defer f.Close()

		bar := counterOnly.New(-1)
		bar.Set(pb.Bytes, true)
		bar.SetWriter(progressOut)
		bar.Set("prefix", fmt.Sprintf("downloading %s:%s:", modelId, version))
		bar.Start()
		defer bar.Finish()

		_, err = io.Copy(f, bar.NewProxyReader(r))
		return err
	})
	if dlerr != nil && !isChecksumError(dlerr) {
		return 0, dlerr
	}

	n, err := archive.Extract(ctx, tarball, dest)
	if err != nil {
		return n, fmt.Errorf("extracting into %s: %w", dest, err)
	}
	return n, dlerr
}

func isChecksumError(err error) bool {
	return err != nil && errors.Is(err, rest.ErrChecksumUnmatch)
}
