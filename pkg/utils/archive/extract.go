package archive

import (
	"bufio"
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"io"
	"os"
)

type Format int

const (
	FormatTar Format = iota
	FormatTarGz
	FormatZip
)

func (f Format) String() string {
	switch f {
	case FormatTar:
		return "tar"
	case FormatTarGz:
		return "tar.gz"
	case FormatZip:
		return "zip"
	default:
		return "unknown"
	}
}

var (
	zipMagic      = []byte("PK\x03\x04")
	emptyZipMagic = []byte("PK\x05\x06")
	gzipMagic     = []byte{0x1f, 0x8b}
)

// Detect tells the archive format from its leading bytes.
//
// Anything not zip nor gzip is assumed to be a plain tar.
func Detect(head []byte) Format {
	switch {
	case bytes.HasPrefix(head, zipMagic), bytes.HasPrefix(head, emptyZipMagic):
		return FormatZip
	case bytes.HasPrefix(head, gzipMagic):
		return FormatTarGz
	default:
		return FormatTar
	}
}

// Extract extracts an archive file at src (zip, tar or tar.gz) into dest.
//
// dest is created when missing.
func Extract(ctx context.Context, src string, dest string) (int, error) {
	if err := os.MkdirAll(dest, os.FileMode(0755)); err != nil {
		return 0, err
	}

	f, err := os.Open(src)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	br := bufio.NewReader(f)
	head, err := br.Peek(4)
	if err != nil && !errors.Is(err, io.EOF) {
		return 0, err
	}

	switch Detect(head) {
	case FormatZip:
		return Unzip(ctx, src, dest)
	case FormatTarGz:
		gzr, err := gzip.NewReader(br)
		if err != nil {
			return 0, err
		}
		defer gzr.Close()
		return Untar(ctx, gzr, dest)
	default:
		return Untar(ctx, br, dest)
	}
}
