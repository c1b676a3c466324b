// Package viewport maps rectangles between window space and image space.
//
// Window space is the display surface as input events report it: origin at
// the bottom-left corner, y increasing upward. Image space is the unscaled
// source image: origin at the top-left corner, y increasing downward.
//
// WindowRect and ImageRect are distinct types so a rectangle can only change
// space through Viewport.ToImage and Viewport.ToWindow.
package viewport

import (
	"fmt"

	"github.com/menta2k/image-marker/pkg/geometry"
)

// WindowRect is a rectangle in window pixels (bottom-left origin).
type WindowRect struct {
	geometry.Rect
}

// ImageRect is a rectangle in image pixels (top-left origin).
type ImageRect struct {
	geometry.Rect
}

// NewWindowRect creates a WindowRect.
func NewWindowRect(x, y, w, h float64) WindowRect {
	return WindowRect{geometry.NewRect(x, y, w, h)}
}

// NewImageRect creates an ImageRect.
func NewImageRect(x, y, w, h float64) ImageRect {
	return ImageRect{geometry.NewRect(x, y, w, h)}
}

// ImageBounds returns the full extent of a w x h image.
func ImageBounds(w, h int) ImageRect {
	return NewImageRect(0, 0, float64(w), float64(h))
}

func (r WindowRect) String() string { return "window" + r.Rect.String() }

func (r ImageRect) String() string { return "image" + r.Rect.String() }

// Viewport describes how an image is currently shown in the window.
type Viewport struct {
	Fit    geometry.Fit
	Height float64 // window height
}

// New fits an imageW x imageH image into a windowW x windowH window.
func New(imageW, imageH, windowW, windowH float64) Viewport {
	return Viewport{
		Fit:    geometry.FitInto(imageW, imageH, windowW, windowH),
		Height: windowH,
	}
}

// ToImage converts a window-space rectangle, possibly with negative size,
// into a normalized image-space rectangle rounded to whole pixels.
//
// The flip happens about the full window before the margin is removed. Fit
// margins are symmetric, so this equals flipping within the displayed image.
func (v Viewport) ToImage(r WindowRect) ImageRect {
	out := r.Normalize().
		FlipVertical(v.Height).
		Shift(-v.Fit.OffsetX, -v.Fit.OffsetY).
		ScaleBy(1 / v.Fit.Scale)
	return ImageRect{out}
}

// ToWindow is the inverse of ToImage. r must already be normalized.
// The result is not rounded: window positions only feed drawing, and keeping
// them exact makes ToImage(ToWindow(r)) == r for whole-pixel r at any scale.
func (v Viewport) ToWindow(r ImageRect) WindowRect {
	out := r.Scale(v.Fit.Scale).
		Shift(v.Fit.OffsetX, v.Fit.OffsetY).
		FlipVertical(v.Height)
	return WindowRect{out}
}

// ImageArea returns the part of the window covered by the image.
func (v Viewport) ImageArea(imageW, imageH int) WindowRect {
	return NewWindowRect(
		v.Fit.OffsetX,
		v.Fit.OffsetY,
		float64(imageW)*v.Fit.Scale,
		float64(imageH)*v.Fit.Scale,
	)
}

func (v Viewport) String() string {
	return fmt.Sprintf("scale=%.4f offset=(%.1f,%.1f) height=%g",
		v.Fit.Scale, v.Fit.OffsetX, v.Fit.OffsetY, v.Height)
}
