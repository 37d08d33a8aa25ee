package images

import (
	"github.com/pkg/errors"
)

// Extract allocates a buffer of size target and fills it from source, where the
// destination pixel (dx, dy) takes the source pixel (dx+offset.X, dy+offset.Y).
//
// Destination pixels whose source coordinate falls outside source stay transparent
// black, so a window that only partly overlaps source is padded rather than
// rejected. The returned buffer always has exactly the target dimension. No
// resampling takes place.
//
// Arguments:
//   - source: The buffer to read from.
//   - target: The size of the new buffer.
//   - offset: The position of the window's top-left corner within source.
//
// Returns:
//   - *PixelBuffer: The new buffer. It never aliases source.
//   - error: ErrInvalidGeometry for a zero-sized target.
func Extract(source *PixelBuffer, target Dimension, offset Point) (*PixelBuffer, error) {
	if source == nil {
		return nil, errors.New("source buffer is nil")
	}
	dst, err := NewPixelBuffer(target)
	if err != nil {
		return nil, err
	}

	window := RectAt(offset, target)
	overlap := window.Intersect(RectAt(Point{}, source.dim))
	if overlap.Empty() {
		return dst, nil
	}

	// The same overlap expressed in destination coordinates.
	into := overlap.Translate(-int64(offset.X), -int64(offset.Y))

	rowLen := int(overlap.Dx()) * BytesPerPixel
	srcStride, dstStride := source.Stride(), dst.Stride()
	for row := int64(0); row < overlap.Dy(); row++ {
		srcOff := int(overlap.Y1+row)*srcStride + int(overlap.X1)*BytesPerPixel
		dstOff := int(into.Y1+row)*dstStride + int(into.X1)*BytesPerPixel
		copy(dst.pix[dstOff:dstOff+rowLen], source.pix[srcOff:srcOff+rowLen])
	}
	return dst, nil
}

// CropCenter extracts the centered window of source at the given aspect ratio.
func CropCenter(source *PixelBuffer, aspectRatio float64) (*PixelBuffer, error) {
	if source == nil {
		return nil, errors.New("source buffer is nil")
	}
	target, offset, err := CropWindow(aspectRatio, source.dim)
	if err != nil {
		return nil, err
	}
	return Extract(source, target, offset)
}
