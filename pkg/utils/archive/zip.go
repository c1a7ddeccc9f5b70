package archive

import (
	"archive/zip"
	"context"
	"io"
	"io/fs"
	"os"
	"path/filepath"
)

// Zip archives files under root into dest as a flat zip: entry names are
// relative to root.
//
// It returns the number of entries in the archive.
func Zip(ctx context.Context, root string, dest io.Writer) (int, error) {
	absroot, err := filepath.Abs(root)
	if err != nil {
		return 0, err
	}
	if _, err := os.Stat(absroot); err != nil {
		return 0, err
	}

	zipWriter := zip.NewWriter(dest)
	entries := 0
	err = findFiles(absroot, false, func(fullpath string, fi fs.FileInfo) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !fi.Mode().IsRegular() {
			return nil
		}

		relpath, err := filepath.Rel(absroot, fullpath)
		if err != nil {
			return err
		}

		hdr, err := zip.FileInfoHeader(fi)
		if err != nil {
			return err
		}
		hdr.Name = filepath.ToSlash(relpath)
		hdr.Method = zip.Deflate

		w, err := zipWriter.CreateHeader(hdr)
		if err != nil {
			return err
		}

		fp, err := ctxOpen(ctx, fullpath)
		if err != nil {
			return err
		}
		defer fp.Close()
		if _, err := io.Copy(w, fp); err != nil {
			return err
		}
		entries += 1
		return nil
	})
	if err != nil {
		zipWriter.Close()
		return 0, err
	}
	if err := zipWriter.Close(); err != nil {
		return 0, err
	}
	return entries, nil
}

// ZipFile is Zip into a newly created file at destPath.
func ZipFile(ctx context.Context, root string, destPath string) (int, error) {
	f, err := os.Create(destPath)
	if err != nil {
		return 0, err
	}
	n, err := Zip(ctx, root, f)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}

// Unzip extracts a zip file at src into dest.
//
// Entries pointing outside of dest cause ErrUnsafePath.
func Unzip(ctx context.Context, src string, dest string) (int, error) {
	zr, err := zip.OpenReader(src)
	if err != nil {
		return 0, err
	}
	defer zr.Close()

	entries := 0
	for _, zf := range zr.File {
		if err := ctx.Err(); err != nil {
			return entries, err
		}

		fullpath, err := securejoin(dest, zf.Name)
		if err != nil {
			return entries, err
		}
		if zf.FileInfo().IsDir() {
			if err := os.MkdirAll(fullpath, os.FileMode(0755)); err != nil {
				return entries, err
			}
			continue
		}

		mode := zf.Mode().Perm()
		if mode == 0 {
			mode = os.FileMode(0644)
		}
		if err := func() error {
			r, err := zf.Open()
			if err != nil {
				return err
			}
			defer r.Close()
			return writeFile(fullpath, mode, &ctxReader{ctx: ctx, r: r}, nil)
		}(); err != nil {
			return entries, err
		}
		entries += 1
	}
	return entries, nil
}
