package archive

import (
	"archive/tar"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
)

var (
	ErrLoopSymlink = errors.New("symlink loop detected")

	// ErrUnsafePath is caused when an archive entry points outside of the destination.
	ErrUnsafePath = errors.New("archive entry escapes destination")
)

type Progress interface {
	// EstimatedTotalSize returns the total size of files to be archived.
	//
	// This is estimated and not compressed size.
	EstimatedTotalSize() int64

	// ProgressedSize returns the size of archived files.
	//
	// This is raw (not compressed) size.
	ProgressedSize() int64

	// ProgressingFile returns the file name which is currently being archived.
	ProgressingFile() string

	// Entries returns the number of entries written (or extracted) so far.
	Entries() int

	// Error returns error caused during archiving.
	Error() error

	// Done returns a channel which is closed when archiving is done.
	Done() <-chan struct{}

	// EstimateDone returns a channel which is closed when EstimatedTotalSize is calcurated.
	EstimateDone() <-chan struct{}
}

type progress struct {
	totalSize atomic.Int64
	doneSize  atomic.Int64
	entries   atomic.Int64

	mu   sync.Mutex
	file string
	err  error

	done    chan struct{}
	estDone chan struct{}
}

func newProgress() *progress {
	return &progress{
		done:    make(chan struct{}),
		estDone: make(chan struct{}),
	}
}

func (m *progress) EstimatedTotalSize() int64 { return m.totalSize.Load() }
func (m *progress) ProgressedSize() int64 { return m.doneSize.Load() }
func (m *progress) Entries() int { return int(m.entries.Load()) }
func (m *progress) Done() <-chan struct{} { return m.done }
func (m *progress) EstimateDone() <-chan struct{} {
	return m.estDone
}

func (m *progress) ProgressingFile() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.file
}

func (m *progress) setFile(f string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.file = f
}

func (m *progress) Error() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

func (m *progress) setError(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err == nil {
		m.err = err
	}
}

type tarOption struct {
	followSymlinks bool
	prefix         string
	except         map[string]struct{}
}

type TarOption func(*tarOption) *tarOption

func FollowSymlinks() TarOption {
	return func(o *tarOption) *tarOption {
		o.followSymlinks = true
		return o
	}
}

// WithPrefix relocates archive entries under prefix.
//
// Entries whose first path element is one of except keep their path.
//
//	WithPrefix("models/onnx", "pyx-web")
//	// weights/a.onnx  -> models/onnx/weights/a.onnx
//	// pyx-web/logo.png -> pyx-web/logo.png
func WithPrefix(prefix string, except ...string) TarOption {
	return func(o *tarOption) *tarOption {
		o.prefix = strings.Trim(filepath.ToSlash(prefix), "/")
		o.except = map[string]struct{}{}
		for _, e := range except {
			o.except[strings.Trim(filepath.ToSlash(e), "/")] = struct{}{}
		}
		return o
	}
}

// entryName maps a path relative to the archive root into the name in the archive.
func (o *tarOption) entryName(relpath string) string {
	name := filepath.ToSlash(relpath)
	if o.prefix == "" {
		return name
	}
	head, _, _ := strings.Cut(name, "/")
	if _, ok := o.except[head]; ok {
		return name
	}
	return path.Join(o.prefix, name)
}

// EntryName tells where a file at relpath (relative to the archive root) is placed
// in an archive built with options.
func EntryName(relpath string, options ...TarOption) string {
	opt := &tarOption{}
	for _, o := range options {
		opt = o(opt)
	}
	return opt.entryName(relpath)
}

// GoTar archives files under root into dest in background goroutine.
//
// Only regular files and symlinks are archived. Directories are implied by entry names.
//
// # Args
//
// - ctx context.Context: context to be used for archiving.
//
// - root string: root directory where it collects files from.
//
// - dest io.Writer: where tar stream is to be written.
//
// # Returns
//
// - Progress: monitor object to watch the progress of archiving.
func GoTar(ctx context.Context, root string, dest io.Writer, options ...TarOption) Progress {
	opt := &tarOption{}
	for _, o := range options {
		opt = o(opt)
	}

	started := false
	prog := newProgress()
	defer func() {
		if !started {
			close(prog.estDone)
			close(prog.done)
		}
	}()

	absroot, err := filepath.Abs(root)
	if err != nil {
		prog.setError(err)
		return prog
	}
	if _, err := os.Stat(absroot); err != nil {
		prog.setError(err)
		return prog
	}

	go func() {
		defer close(prog.estDone)
		if err := findFiles(absroot, opt.followSymlinks, func(_ string, info fs.FileInfo) error {
			if err := ctx.Err(); err != nil {
				return err
			}
			if info.Mode().IsRegular() {
				prog.totalSize.Add(info.Size())
			}
			return nil
		}); err != nil {
			prog.setError(err)
		}
	}()

	started = true
	go func() {
		defer close(prog.done)
		defer func() {
			switch pan := recover().(type) {
			case nil:
			case error:
				prog.setError(pan)
			default:
				prog.setError(fmt.Errorf("%v", pan))
			}
		}()

		tarWriter := tar.NewWriter(dest)
		writer := &reportingWriter{dest: tarWriter, prog: prog}

		err := findFiles(
			absroot, opt.followSymlinks,
			func(fullpath string, fi fs.FileInfo) error {
				if err := ctx.Err(); err != nil {
					return err
				}

				relpath, err := filepath.Rel(absroot, fullpath)
				if err != nil {
					return err
				}
				prog.setFile(relpath)

				linkname := ""
				if fi.Mode()&os.ModeSymlink != 0 {
					ln, err := os.Readlink(fullpath)
					if err != nil {
						return err
					}
					linkname = ln
				} else if !fi.Mode().IsRegular() {
					// sockets, devices and so on.
					return nil
				}

				hdr, err := tar.FileInfoHeader(fi, linkname)
				if err != nil {
					return err
				}
				hdr.Name = opt.entryName(relpath)

				if err := tarWriter.WriteHeader(hdr); err != nil {
					return err
				}
				prog.entries.Add(1)

				if fi.Mode().IsRegular() {
					fp, err := ctxOpen(ctx, fullpath)
					if err != nil {
						return err
					}
					defer fp.Close()
					if _, err := io.Copy(writer, fp); err != nil {
						return err
					}
				}
				return nil
			},
		)
		if err != nil {
			prog.setError(err)
			return
		}
		if err := tarWriter.Close(); err != nil {
			prog.setError(err)
		}
	}()

	return prog
}

// Tar archives files under root into dest, and waits for it.
//
// It returns the number of entries in the archive.
func Tar(ctx context.Context, root string, dest io.Writer, options ...TarOption) (int, error) {
	prog := GoTar(ctx, root, dest, options...)
	<-prog.Done()
	if err := prog.Error(); err != nil {
		return 0, err
	}
	return prog.Entries(), nil
}

// TarFile is Tar into a newly created file at destPath.
func TarFile(ctx context.Context, root string, destPath string, options ...TarOption) (int, error) {
	f, err := os.Create(destPath)
	if err != nil {
		return 0, err
	}
	n, err := Tar(ctx, root, f, options...)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}

// GoUntar extracts a tar stream into dest in background goroutine.
//
// Entries pointing outside of dest cause ErrUnsafePath.
func GoUntar(ctx context.Context, src io.Reader, dest string) Progress {
	prog := newProgress()

	go func() {
		defer close(prog.done)
		defer close(prog.estDone)
		tarr := tar.NewReader(src)
		carr := &ctxReader{ctx: ctx, r: tarr}
		for {
			if err := ctx.Err(); err != nil {
				prog.setError(err)
				return
			}

			hdr, err := tarr.Next()
			if errors.Is(err, io.EOF) {
				return
			}
			if err != nil {
				prog.setError(err)
				return
			}
			if hdr.Name == "" {
				continue
			}

			fullpath, err := securejoin(dest, hdr.Name)
			if err != nil {
				prog.setError(err)
				return
			}
			prog.setFile(hdr.Name)

			switch hdr.Typeflag {
			case tar.TypeDir:
				if err := os.MkdirAll(fullpath, os.FileMode(0755)); err != nil {
					prog.setError(err)
					return
				}
				continue
			case tar.TypeSymlink:
				if err := securelink(hdr.Name, hdr.Linkname); err != nil {
					prog.setError(err)
					return
				}
				if err := os.MkdirAll(filepath.Dir(fullpath), os.FileMode(0755)); err != nil {
					prog.setError(err)
					return
				}
				if err := os.Symlink(hdr.Linkname, fullpath); err != nil {
					prog.setError(err)
					return
				}
				prog.entries.Add(1)
				continue
			case tar.TypeReg:
			default:
				continue
			}

			if err := writeFile(fullpath, os.FileMode(hdr.Mode).Perm(), carr, prog); err != nil {
				prog.setError(err)
				return
			}
			prog.entries.Add(1)
		}
	}()

	return prog
}

// Untar extracts a tar stream into dest, and waits for it.
func Untar(ctx context.Context, src io.Reader, dest string) (int, error) {
	prog := GoUntar(ctx, src, dest)
	<-prog.Done()
	if err := prog.Error(); err != nil {
		return 0, err
	}
	return prog.Entries(), nil
}

func writeFile(fullpath string, mode os.FileMode, r io.Reader, prog *progress) error {
	if err := os.MkdirAll(filepath.Dir(fullpath), os.FileMode(0755)); err != nil {
		return err
	}
	fp, err := os.OpenFile(fullpath, os.O_CREATE|os.O_RDWR|os.O_TRUNC, mode)
	if err != nil {
		return err
	}
	defer fp.Close()

	var w io.Writer = fp
	if prog != nil {
		w = &reportingWriter{dest: fp, prog: prog}
	}
	if _, err := io.Copy(w, r); err != nil {
		return err
	}
	return nil
}

// securejoin joins name onto root, refusing names escaping root.
//
// Paths going through a symlink under root are refused as well.
func securejoin(root string, name string) (string, error) {
	cleaned := filepath.Clean(filepath.FromSlash(name))
	if escapes(cleaned) {
		return "", fmt.Errorf("%w: %s", ErrUnsafePath, name)
	}

	current := root
	for _, elem := range strings.Split(cleaned, string(filepath.Separator)) {
		if elem == "" || elem == "." {
			continue
		}
		current = filepath.Join(current, elem)
		stat, err := os.Lstat(current)
		if errors.Is(err, fs.ErrNotExist) {
			break
		} else if err != nil {
			return "", err
		}
		if stat.Mode()&os.ModeSymlink != 0 {
			return "", fmt.Errorf("%w: %s (via symlink %s)", ErrUnsafePath, name, current)
		}
	}
	return filepath.Join(root, cleaned), nil
}

// securelink checks a symlink entry at name pointing linkname stays in the archive root.
func securelink(name string, linkname string) error {
	target := filepath.FromSlash(linkname)
	if filepath.IsAbs(target) || strings.HasPrefix(linkname, "/") {
		return fmt.Errorf("%w: %s -> %s", ErrUnsafePath, name, linkname)
	}
	resolved := filepath.Clean(filepath.Join(filepath.Dir(filepath.FromSlash(name)), target))
	if escapes(resolved) {
		return fmt.Errorf("%w: %s -> %s", ErrUnsafePath, name, linkname)
	}
	return nil
}

func escapes(cleaned string) bool {
	return filepath.IsAbs(cleaned) ||
		cleaned == ".." ||
		strings.HasPrefix(cleaned, ".."+string(filepath.Separator))
}

func findFiles(from string, followLink bool, callback func(string, fs.FileInfo) error) error {
	stat, err := os.Lstat(from)
	if err != nil {
		return err
	}

	via := map[string]struct{}{}
	if stat.Mode()&os.ModeSymlink != 0 && followLink {
		s, err := os.Stat(from)
		if err != nil {
			return err
		}
		stat = s

		rpath, err := filepath.EvalSymlinks(from)
		if err != nil {
			return err
		}
		via[rpath] = struct{}{}
	}

	if !stat.IsDir() {
		return callback(from, stat)
	}

	return findFilesInDirectory(from, followLink, via, callback)
}

func findFilesInDirectory(from string, followLink bool, viaSymlink map[string]struct{}, callback func(string, fs.FileInfo) error) error {
	entries, err := os.ReadDir(from)
	if err != nil {
		return err
	}

	for _, entry := range entries {
		err := func() error {
			fullpath := filepath.Join(from, entry.Name())
			stat, err := os.Lstat(fullpath)
			if err != nil {
				return err
			}

			if stat.Mode()&os.ModeSymlink != 0 && followLink {
				realpath, err := filepath.EvalSymlinks(fullpath)
				if err != nil {
					return err
				}
				if _, ok := viaSymlink[realpath]; ok {
					return ErrLoopSymlink
				}
				viaSymlink[realpath] = struct{}{}
				defer delete(viaSymlink, realpath)

				s, err := os.Stat(fullpath)
				if err != nil {
					return err
				}
				stat = s
			}

			if stat.IsDir() {
				return findFilesInDirectory(fullpath, followLink, viaSymlink, callback)
			}
			return callback(fullpath, stat)
		}()

		if err != nil {
			return err
		}
	}
	return nil
}

// open file as long as ctx is alive.
func ctxOpen(ctx context.Context, p string) (io.ReadCloser, error) {
	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	return &ctxReader{ctx: ctx, r: f}, nil
}

type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (r *ctxReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		r.Close()
		return 0, err
	}
	return r.r.Read(p)
}

func (r *ctxReader) Close() error {
	if closer, ok := r.r.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

type reportingWriter struct {
	dest io.Writer
	prog *progress
}

func (w *reportingWriter) Write(p []byte) (int, error) {
	n, err := w.dest.Write(p)
	w.prog.doneSize.Add(int64(n))
	return n, err
}
