// Package codec converts between encoded image bytes and images.PixelBuffer.
package codec

import (
	"io"
	"sort"
	"sync"

	"github.com/pkg/errors"

	"github.com/nvr-ai/go-crop/images"
)

// Codec decodes and encodes images.
type Codec interface {
	// Name returns the registry name of the codec.
	Name() string
	// Decode reads an encoded image of the given format.
	Decode(r io.Reader, format images.ImageFormat) (*images.PixelBuffer, error)
	// Encode writes buf to w in the given format.
	Encode(w io.Writer, buf *images.PixelBuffer, format images.ImageFormat) error
}

// Options configures codec behavior. Zero values select defaults.
type Options struct {
	// JPEGQuality is the JPEG encode quality in [1, 100] (default: 95).
	JPEGQuality int `json:"jpeg_quality" yaml:"jpeg_quality"`
	// WebPQuality is the lossy WebP quality in [0, 100] (default: 90).
	WebPQuality float32 `json:"webp_quality" yaml:"webp_quality"`
	// WebPLossless selects lossless WebP encoding.
	WebPLossless bool `json:"webp_lossless" yaml:"webp_lossless"`
	// AutoOrient applies the EXIF orientation tag while decoding JPEGs.
	AutoOrient bool `json:"auto_orient" yaml:"auto_orient"`
}

// Default codec settings.
const (
	DefaultJPEGQuality = 95
	DefaultWebPQuality = 90
	// DefaultCodec is the pure Go codec.
	DefaultCodec = "imaging"
)

func (o Options) withDefaults() Options {
	if o.JPEGQuality <= 0 || o.JPEGQuality > 100 {
		o.JPEGQuality = DefaultJPEGQuality
	}
	if o.WebPQuality <= 0 || o.WebPQuality > 100 {
		o.WebPQuality = DefaultWebPQuality
	}
	return o
}

// Factory builds a codec from options.
type Factory func(Options) (Codec, error)

var (
	mu       sync.RWMutex
	registry = map[string]Factory{}
)

// Register makes a codec available to New under name.
func Register(name string, f Factory) {
	mu.Lock()
	defer mu.Unlock()
	registry[name] = f
}

// Available returns the registered codec names in sorted order.
func Available() []string {
	mu.RLock()
	defer mu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// New creates the codec registered under name.
//
// Arguments:
//   - name: The codec name, e.g. "imaging" or "gocv".
//   - opts: Codec options.
//
// Returns:
//   - Codec: The codec.
//   - error: ErrUnsupported when no codec has that name.
func New(name string, opts Options) (Codec, error) {
	mu.RLock()
	f, ok := registry[name]
	mu.RUnlock()
	if !ok {
		return nil, errors.Wrapf(images.ErrUnsupported, "unknown codec %q (available: %v)", name, Available())
	}
	return f(opts.withDefaults())
}

func unsupportedFormat(codec string, format images.ImageFormat) error {
	return errors.Wrapf(images.ErrUnsupported, "codec %s cannot handle format %q", codec, format)
}
