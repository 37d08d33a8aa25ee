package images

import (
	"image"
	"image/draw"

	"github.com/pkg/errors"
)

// BytesPerPixel is the channel count of a PixelBuffer: R, G, B, A at 8 bits each.
const BytesPerPixel = 4

// Pixel is one non-premultiplied RGBA pixel.
type Pixel [BytesPerPixel]uint8

// PixelBuffer is a rectangular grid of RGBA pixels stored row-major with no padding
// between rows. The same representation holds freshly decoded images and buffers
// produced by Extract.
type PixelBuffer struct {
	dim Dimension
	pix []uint8
}

// NewPixelBuffer allocates a buffer of the given dimension with every pixel set to
// transparent black.
//
// Arguments:
//   - dim: The buffer dimension. Both sides must be non-zero.
//
// Returns:
//   - *PixelBuffer: The zeroed buffer.
//   - error: ErrInvalidGeometry for a zero-sized dimension.
func NewPixelBuffer(dim Dimension) (*PixelBuffer, error) {
	if !dim.Valid() {
		return nil, errors.Wrapf(ErrInvalidGeometry, "cannot allocate a %s buffer", dim)
	}
	n := uint64(dim.Width) * uint64(dim.Height) * BytesPerPixel
	if n > uint64(maxInt) {
		return nil, errors.Wrapf(ErrInvalidGeometry, "buffer %s is too large", dim)
	}
	return &PixelBuffer{dim: dim, pix: make([]uint8, n)}, nil
}

const maxInt = int(^uint(0) >> 1)

// PixelBufferFromImage copies img into a new PixelBuffer, converting any color model
// to non-premultiplied RGBA. The buffer origin is img.Bounds().Min.
func PixelBufferFromImage(img image.Image) (*PixelBuffer, error) {
	if img == nil {
		return nil, errors.New("image is nil")
	}
	b := img.Bounds()
	if b.Dx() <= 0 || b.Dy() <= 0 {
		return nil, errors.Wrapf(ErrInvalidGeometry, "decoded image has bounds %v", b)
	}
	buf, err := NewPixelBuffer(Dimension{Width: uint32(b.Dx()), Height: uint32(b.Dy())})
	if err != nil {
		return nil, err
	}

	// Fast path for the layout most decoders already produce.
	if src, ok := img.(*image.NRGBA); ok {
		rowLen := b.Dx() * BytesPerPixel
		for y := 0; y < b.Dy(); y++ {
			off := src.PixOffset(b.Min.X, b.Min.Y+y)
			copy(buf.pix[y*rowLen:(y+1)*rowLen], src.Pix[off:off+rowLen])
		}
		return buf, nil
	}

	draw.Draw(buf.Image(), buf.Image().Bounds(), img, b.Min, draw.Src)
	return buf, nil
}

// Dimension returns the size of the buffer.
func (b *PixelBuffer) Dimension() Dimension {
	return b.dim
}

// Stride returns the number of bytes per row.
func (b *PixelBuffer) Stride() int {
	return int(b.dim.Width) * BytesPerPixel
}

// Pix returns the raw pixel bytes. The slice aliases the buffer.
func (b *PixelBuffer) Pix() []uint8 {
	return b.pix
}

// In reports whether (x, y) lies within the buffer.
func (b *PixelBuffer) In(x, y uint32) bool {
	return x < b.dim.Width && y < b.dim.Height
}

func (b *PixelBuffer) offset(x, y uint32) int {
	return int(y)*b.Stride() + int(x)*BytesPerPixel
}

// At returns the pixel at (x, y), or the zero Pixel outside the buffer.
func (b *PixelBuffer) At(x, y uint32) Pixel {
	var px Pixel
	if !b.In(x, y) {
		return px
	}
	copy(px[:], b.pix[b.offset(x, y):])
	return px
}

// Set writes px at (x, y). Coordinates outside the buffer are ignored.
func (b *PixelBuffer) Set(x, y uint32, px Pixel) {
	if !b.In(x, y) {
		return
	}
	copy(b.pix[b.offset(x, y):], px[:])
}

// Image returns an *image.NRGBA view sharing the buffer's memory.
func (b *PixelBuffer) Image() *image.NRGBA {
	return &image.NRGBA{
		Pix:    b.pix,
		Stride: b.Stride(),
		Rect:   image.Rect(0, 0, int(b.dim.Width), int(b.dim.Height)),
	}
}
