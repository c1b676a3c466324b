// Package geometry provides the axis-aligned rectangle and fit math used by the marker.
//
// A Rect carries no coordinate space of its own. Package viewport wraps it in
// space-tagged types; code outside the mapper should use those instead.
package geometry

import (
	"fmt"
	"math"
)

// Rect is an axis-aligned rectangle. W and H may be negative while a drag is
// in progress; call Normalize before deriving anything from it.
type Rect struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// NewRect creates a new Rect.
func NewRect(x, y, w, h float64) Rect {
	return Rect{X: x, Y: y, W: w, H: h}
}

// Normalize reorders the corners so that W and H are non-negative.
func (r Rect) Normalize() Rect {
	x1, x2 := r.X, r.X+r.W
	y1, y2 := r.Y, r.Y+r.H
	return Rect{
		X: math.Min(x1, x2),
		Y: math.Min(y1, y2),
		W: math.Abs(r.W),
		H: math.Abs(r.H),
	}
}

// Shift translates the rectangle.
func (r Rect) Shift(dx, dy float64) Rect {
	return Rect{X: r.X + dx, Y: r.Y + dy, W: r.W, H: r.H}
}

// ScaleBy multiplies every field by k and rounds to the nearest pixel.
// Halves round away from zero (math.Round), so 2.5 becomes 3 and -2.5 becomes -3.
func (r Rect) ScaleBy(k float64) Rect {
	return Rect{
		X: math.Round(r.X * k),
		Y: math.Round(r.Y * k),
		W: math.Round(r.W * k),
		H: math.Round(r.H * k),
	}
}

// Scale multiplies every field by k without rounding.
func (r Rect) Scale(k float64) Rect {
	return Rect{X: r.X * k, Y: r.Y * k, W: r.W * k, H: r.H * k}
}

// FlipVertical converts a Y measured from the top of a container of the given
// height into one measured from the bottom. Applying it twice is a no-op.
func (r Rect) FlipVertical(containerHeight float64) Rect {
	return Rect{X: r.X, Y: containerHeight - r.Y - r.H, W: r.W, H: r.H}
}

// PadByWidth grows both W and H by 2*W*p. The pad is derived from the width
// alone and applied to both axes.
func (r Rect) PadByWidth(p float64) Rect {
	pad := r.W * p * 2
	return Rect{X: r.X, Y: r.Y, W: r.W + pad, H: r.H + pad}
}

// Limit caps W and H.
func (r Rect) Limit(maxW, maxH float64) Rect {
	return Rect{X: r.X, Y: r.Y, W: math.Min(r.W, maxW), H: math.Min(r.H, maxH)}
}

// CenterOn moves r so that its center coincides with other's center.
func (r Rect) CenterOn(other Rect) Rect {
	cx, cy := other.Center()
	return Rect{X: cx - r.W/2, Y: cy - r.H/2, W: r.W, H: r.H}
}

// MoveInside clamps the position of r so it lies within container. On an axis
// where r is larger than container, r is placed at container's origin.
func (r Rect) MoveInside(container Rect) Rect {
	return Rect{
		X: clampAxis(r.X, r.W, container.X, container.W),
		Y: clampAxis(r.Y, r.H, container.Y, container.H),
		W: r.W,
		H: r.H,
	}
}

func clampAxis(pos, size, origin, extent float64) float64 {
	if size > extent {
		return origin
	}
	return math.Min(math.Max(pos, origin), origin+extent-size)
}

// Center returns the center point.
func (r Rect) Center() (float64, float64) {
	return r.X + r.W/2, r.Y + r.H/2
}

// Right returns X+W.
func (r Rect) Right() float64 { return r.X + r.W }

// Bottom returns Y+H.
func (r Rect) Bottom() float64 { return r.Y + r.H }

// Empty reports whether the rectangle has zero width or height.
func (r Rect) Empty() bool {
	return r.W == 0 || r.H == 0
}

// Contains reports whether other lies fully inside r. Both must be normalized.
func (r Rect) Contains(other Rect) bool {
	return other.X >= r.X && other.Y >= r.Y &&
		other.Right() <= r.Right() && other.Bottom() <= r.Bottom()
}

func (r Rect) String() string {
	return fmt.Sprintf("(%g,%g %gx%g)", r.X, r.Y, r.W, r.H)
}

// ContainRatio returns the smallest w', h' with w'/h' == ratio that contains
// a w x h box, keeping one dimension unchanged.
func ContainRatio(w, h, ratio float64) (float64, float64) {
	if w/h > ratio {
		return w, w / ratio
	}
	return h * ratio, h
}
