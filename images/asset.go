package images

import "github.com/pkg/errors"

// Provenance records where an asset's buffer came from.
type Provenance int

const (
	// Decoded buffers come straight from a codec.
	Decoded Provenance = iota
	// Derived buffers were produced by Extract.
	Derived
)

func (p Provenance) String() string {
	switch p {
	case Decoded:
		return "decoded"
	case Derived:
		return "derived"
	default:
		return "unknown"
	}
}

// ImageAsset is one unit of work: an image buffer and the file name it is known by.
// The file name is carried unchanged from input to output.
type ImageAsset struct {
	Buffer     *PixelBuffer
	Filename   string
	Provenance Provenance
}

// NewImageAsset wraps a freshly decoded buffer.
func NewImageAsset(filename string, buf *PixelBuffer) (ImageAsset, error) {
	if buf == nil {
		return ImageAsset{}, errors.Errorf("asset %q has no buffer", filename)
	}
	return ImageAsset{Buffer: buf, Filename: filename, Provenance: Decoded}, nil
}

// Dimension returns the asset's buffer size.
func (a ImageAsset) Dimension() Dimension {
	if a.Buffer == nil {
		return Dimension{}
	}
	return a.Buffer.Dimension()
}

// Derive returns a new asset holding buf under the same file name. a is left as is.
func (a ImageAsset) Derive(buf *PixelBuffer) ImageAsset {
	return ImageAsset{Buffer: buf, Filename: a.Filename, Provenance: Derived}
}
