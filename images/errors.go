package images

import (
	"github.com/pkg/errors"
)

// Error kinds. Match them with errors.Is.
var (
	// ErrNoFile indicates an I/O failure (missing file, permission, write error).
	ErrNoFile = errors.New("no such file or unreadable")
	// ErrUnsupported indicates an operation or format the asset cannot be used with.
	ErrUnsupported = errors.New("unsupported operation")
	// ErrDecode indicates malformed image content.
	ErrDecode = errors.New("decode failed")
	// ErrEncode indicates the buffer could not be encoded.
	ErrEncode = errors.New("encode failed")
	// ErrInvalidGeometry indicates a zero-sized dimension, a non-positive aspect
	// ratio, or an offset that does not fit.
	ErrInvalidGeometry = errors.New("invalid geometry")
)

// FileError records a failed operation on a single file.
type FileError struct {
	// Op is the operation that failed, e.g. "decode" or "write".
	Op string
	// Path is the file the operation was applied to.
	Path string
	// Err is the underlying cause. It usually wraps one of the kinds above.
	Err error
}

func (e *FileError) Error() string {
	return e.Op + " " + e.Path + ": " + e.Err.Error()
}

func (e *FileError) Unwrap() error { return e.Err }

// NoFile wraps an I/O cause as ErrNoFile while keeping the cause reachable.
func NoFile(op, path string, cause error) error {
	return &FileError{Op: op, Path: path, Err: &kindError{kind: ErrNoFile, cause: cause}}
}

// kindError joins a sentinel kind with its underlying cause so that both match
// errors.Is.
type kindError struct {
	kind  error
	cause error
}

func (e *kindError) Error() string {
	return e.kind.Error() + ": " + e.cause.Error()
}

func (e *kindError) Is(target error) bool { return target == e.kind }

func (e *kindError) Unwrap() error { return e.cause }

// WithKind attaches a sentinel kind to cause.
func WithKind(kind, cause error) error {
	if cause == nil {
		return kind
	}
	return &kindError{kind: kind, cause: cause}
}
