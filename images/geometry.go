// Package images provides the geometry, pixel buffer and extraction primitives used
// to crop images to a fixed aspect ratio.
package images

import (
	"fmt"
	"math"

	"github.com/pkg/errors"
)

// Dimension is the width and height of an image in pixels.
type Dimension struct {
	Width  uint32 `json:"width" yaml:"width"`
	Height uint32 `json:"height" yaml:"height"`
}

// Valid reports whether both sides are non-zero.
func (d Dimension) Valid() bool {
	return d.Width > 0 && d.Height > 0
}

// Fits reports whether d fits within o on both axes.
func (d Dimension) Fits(o Dimension) bool {
	return d.Width <= o.Width && d.Height <= o.Height
}

// Ratio returns width/height, or 0 for a zero height.
func (d Dimension) Ratio() float64 {
	if d.Height == 0 {
		return 0
	}
	return float64(d.Width) / float64(d.Height)
}

func (d Dimension) String() string {
	return fmt.Sprintf("%dx%d", d.Width, d.Height)
}

// Point is a top-left placement offset.
type Point struct {
	X uint32 `json:"x" yaml:"x"`
	Y uint32 `json:"y" yaml:"y"`
}

func (p Point) String() string {
	return fmt.Sprintf("(%d,%d)", p.X, p.Y)
}

// ValidateAspectRatio returns ErrInvalidGeometry unless ratio is finite and positive.
func ValidateAspectRatio(ratio float64) error {
	if math.IsNaN(ratio) || math.IsInf(ratio, 0) || ratio <= 0 {
		return errors.Wrapf(ErrInvalidGeometry, "aspect ratio %v must be a positive number", ratio)
	}
	return nil
}

// ScaleToAspectRatio computes the largest rectangle with the given aspect ratio
// (width/height) that fits within source.
//
// The binding axis is kept at its full length and the other axis is derived from it
// and floored, so the result never exceeds source. A source already at the ratio is
// returned unchanged.
//
// Arguments:
//   - aspectRatio: The target width/height ratio. Must be positive.
//   - source: The natural dimension of the image.
//
// Returns:
//   - Dimension: The crop window size.
//   - error: ErrInvalidGeometry for a zero-sized source, a bad ratio, or a window that
//     would collapse to zero pixels.
//
// Example:
//
// ```go
//
//	d, _ := ScaleToAspectRatio(0.75, Dimension{Width: 800, Height: 600})
//	fmt.Println(d) // 450x600
//
// ```
func ScaleToAspectRatio(aspectRatio float64, source Dimension) (Dimension, error) {
	if err := ValidateAspectRatio(aspectRatio); err != nil {
		return Dimension{}, err
	}
	if !source.Valid() {
		return Dimension{}, errors.Wrapf(ErrInvalidGeometry, "source dimension %s", source)
	}

	q := source.Ratio()
	if q == aspectRatio {
		return source, nil
	}

	var result Dimension
	if q < aspectRatio {
		// Narrower than the target: keep the width, trim the height.
		result.Width = source.Width
		result.Height = floorUint32(float64(source.Width) / aspectRatio)
	} else {
		// Wider than the target: keep the height, trim the width.
		result.Height = source.Height
		result.Width = floorUint32(float64(source.Height) * aspectRatio)
	}

	result.Width = min(result.Width, source.Width)
	result.Height = min(result.Height, source.Height)

	if !result.Valid() {
		return Dimension{}, errors.Wrapf(ErrInvalidGeometry,
			"source %s cannot hold a %v crop", source, aspectRatio)
	}
	return result, nil
}

// CenterOffset returns the offset that centers inner within outer, using truncating
// integer division. outer must be at least as large as inner on both axes.
func CenterOffset(outer, inner Dimension) (Point, error) {
	if !inner.Fits(outer) {
		return Point{}, errors.Wrapf(ErrInvalidGeometry, "%s does not fit within %s", inner, outer)
	}
	return Point{
		X: (outer.Width - inner.Width) / 2,
		Y: (outer.Height - inner.Height) / 2,
	}, nil
}

// CropWindow computes the centered crop of source at the given aspect ratio. It
// returns the crop size and its offset within source.
func CropWindow(aspectRatio float64, source Dimension) (Dimension, Point, error) {
	target, err := ScaleToAspectRatio(aspectRatio, source)
	if err != nil {
		return Dimension{}, Point{}, err
	}
	offset, err := CenterOffset(source, target)
	if err != nil {
		return Dimension{}, Point{}, err
	}
	return target, offset, nil
}

// floorUint32 truncates v toward zero and saturates at the uint32 range.
func floorUint32(v float64) uint32 {
	v = math.Floor(v)
	switch {
	case v <= 0 || math.IsNaN(v):
		return 0
	case v >= math.MaxUint32:
		return math.MaxUint32
	default:
		return uint32(v)
	}
}
