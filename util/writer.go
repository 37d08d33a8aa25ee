package util

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-crop/images"
)

// WriterOptions configures a Writer. Zero values select defaults.
type WriterOptions struct {
	// Dir is the output directory. Required.
	Dir string
	// Atomic writes to a temporary file in Dir and renames it into place
	// (default: true).
	Atomic *bool
	// PermFile and PermDir default to 0o644 and 0o755.
	PermFile os.FileMode
	PermDir  os.FileMode
	// BufSize is the write buffer size (default: 64KiB).
	BufSize int
}

// Writer stores encoded images under an output directory, keeping only the base
// name of each file.
type Writer struct {
	dir     string
	atomic  bool
	permF   os.FileMode
	permD   os.FileMode
	bufSize int
}

// NewWriter creates a Writer. The directory is created on first write.
func NewWriter(opts WriterOptions) (*Writer, error) {
	if strings.TrimSpace(opts.Dir) == "" {
		return nil, errors.New("output directory is required")
	}
	w := &Writer{
		dir:     opts.Dir,
		atomic:  true,
		permF:   opts.PermFile,
		permD:   opts.PermDir,
		bufSize: opts.BufSize,
	}
	if opts.Atomic != nil {
		w.atomic = *opts.Atomic
	}
	if w.permF == 0 {
		w.permF = 0o644
	}
	if w.permD == 0 {
		w.permD = 0o755
	}
	if w.bufSize <= 0 {
		w.bufSize = 64 * 1024
	}
	return w, nil
}

// Dir returns the output directory.
func (w *Writer) Dir() string { return w.dir }

// Path returns the destination path for a file name.
func (w *Writer) Path(name string) (string, error) {
	base := filepath.Base(filepath.Clean(name))
	if base == "." || base == ".." || base == string(filepath.Separator) || base == "" {
		return "", errors.Wrapf(images.ErrUnsupported, "invalid output name %q", name)
	}
	return filepath.Join(w.dir, base), nil
}

// Write creates the output directory if needed and stores what encode produces
// under name.
//
// Arguments:
//   - ctx: Checked before any file is touched.
//   - name: The output file name. Only its base name is used.
//   - encode: Writes the encoded image to the supplied writer.
//
// Returns:
//   - string: The destination path.
//   - error: A *images.FileError on I/O failure, or the error from encode.
func (w *Writer) Write(ctx context.Context, name string, encode func(io.Writer) error) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	dest, err := w.Path(name)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(w.dir, w.permD); err != nil {
		return "", images.NoFile("mkdir", w.dir, err)
	}

	if w.atomic {
		return dest, w.writeAtomic(dest, encode)
	}
	return dest, w.writeOverwrite(dest, encode)
}

func (w *Writer) writeOverwrite(dest string, encode func(io.Writer) error) error {
	f, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, w.permF)
	if err != nil {
		return images.NoFile("create", dest, err)
	}
	fail := func(err error) error {
		_ = f.Close()
		_ = os.Remove(dest)
		return err
	}

	bw := bufio.NewWriterSize(f, w.bufSize)
	if err := encode(bw); err != nil {
		return fail(err)
	}
	if err := bw.Flush(); err != nil {
		return fail(images.NoFile("write", dest, err))
	}
	if err := f.Close(); err != nil {
		_ = os.Remove(dest)
		return images.NoFile("close", dest, err)
	}
	return nil
}

func (w *Writer) writeAtomic(dest string, encode func(io.Writer) error) error {
	tmp, err := os.CreateTemp(w.dir, ".tmp-*")
	if err != nil {
		return images.NoFile("create", dest, err)
	}
	tmpPath := tmp.Name()
	fail := func(err error) error {
		_ = tmp.Close()
		_ = os.Remove(tmpPath)
		return err
	}

	bw := bufio.NewWriterSize(tmp, w.bufSize)
	if err := encode(bw); err != nil {
		return fail(err)
	}
	if err := bw.Flush(); err != nil {
		return fail(images.NoFile("write", dest, err))
	}
	if err := tmp.Chmod(w.permF); err != nil {
		return fail(images.NoFile("chmod", dest, err))
	}
	if err := tmp.Sync(); err != nil {
		return fail(images.NoFile("sync", dest, err))
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return images.NoFile("close", dest, err)
	}
	if err := os.Rename(tmpPath, dest); err != nil {
		_ = os.Remove(tmpPath)
		return images.NoFile("rename", dest, err)
	}
	return nil
}
