// Package images - Rectangle helpers used by extraction and coverage reporting.
package images

// Rect is a lightweight axis-aligned rectangle in signed pixel coordinates.
type Rect struct {
	// X2,Y2 are exclusive (like image.Rectangle).
	X1, Y1, X2, Y2 int64
}

// RectAt returns the rectangle of size d whose top-left corner is p.
func RectAt(p Point, d Dimension) Rect {
	x, y := int64(p.X), int64(p.Y)
	return Rect{X1: x, Y1: y, X2: x + int64(d.Width), Y2: y + int64(d.Height)}
}

// Dx returns the width of r, or 0 if r is empty.
func (r Rect) Dx() int64 {
	return max(r.X2-r.X1, 0)
}

// Dy returns the height of r, or 0 if r is empty.
func (r Rect) Dy() int64 {
	return max(r.Y2-r.Y1, 0)
}

// Area returns the number of pixels covered by r.
func (r Rect) Area() int64 {
	return r.Dx() * r.Dy()
}

// Empty reports whether r covers no pixels.
func (r Rect) Empty() bool {
	return r.X1 >= r.X2 || r.Y1 >= r.Y2
}

// Intersect returns the largest rectangle contained by both r and o. The result is
// the zero Rect when they do not overlap.
func (r Rect) Intersect(o Rect) Rect {
	ix := Rect{
		X1: max(r.X1, o.X1),
		Y1: max(r.Y1, o.Y1),
		X2: min(r.X2, o.X2),
		Y2: min(r.Y2, o.Y2),
	}
	if ix.Empty() {
		return Rect{}
	}
	return ix
}

// Translate returns r moved by (dx, dy).
func (r Rect) Translate(dx, dy int64) Rect {
	return Rect{X1: r.X1 + dx, Y1: r.Y1 + dy, X2: r.X2 + dx, Y2: r.Y2 + dy}
}

// CalculateIoU returns the intersection over union of r and o, a value between 0.0
// (disjoint) and 1.0 (identical).
//
// For a crop window lying inside its source this is the fraction of the source that
// the crop retains.
//
// Example Usage:
// ```go
//
//	src := Rect{X1: 0, Y1: 0, X2: 800, Y2: 600}
//	crop := Rect{X1: 175, Y1: 0, X2: 625, Y2: 600}
//	fmt.Printf("%.4f\n", CalculateIoU(src, crop)) // 0.5625
//
// ```
func CalculateIoU(r, o Rect) float32 {
	inter := r.Intersect(o).Area()
	if inter == 0 {
		return 0.0
	}
	// Inclusion-exclusion: |A ∪ B| = |A| + |B| - |A ∩ B|.
	union := r.Area() + o.Area() - inter
	return float32(inter) / float32(union)
}
