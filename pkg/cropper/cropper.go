package cropper

import (
	"fmt"
	"image"
	"math"
	"strconv"
	"strings"

	"github.com/disintegration/imaging"

	"github.com/menta2k/image-marker/pkg/geometry"
	"github.com/menta2k/image-marker/pkg/viewport"
)

// BoxCropper derives fixed-ratio crop boxes from selections and cuts them out of images
type BoxCropper struct {
	config BoxConfig
}

// BoxConfig holds configuration for box derivation
type BoxConfig struct {
	// Ratio is the target width/height. Zero disables derivation.
	Ratio float64
	// PadPercent grows the box by 2*w*PadPercent on both axes.
	PadPercent float64
}

// DefaultPadPercent matches the marker's --box-pad default.
const DefaultPadPercent = 0.2

// AspectRatio represents common aspect ratios
type AspectRatio struct {
	Width  int
	Height int
	Name   string
}

// Value returns Width/Height.
func (a AspectRatio) Value() float64 {
	return float64(a.Width) / float64(a.Height)
}

// Common aspect ratios
var (
	Square     = AspectRatio{1, 1, "square"}
	Portrait   = AspectRatio{3, 4, "portrait"}
	Landscape  = AspectRatio{4, 3, "landscape"}
	Widescreen = AspectRatio{16, 9, "widescreen"}
	Instagram  = AspectRatio{4, 5, "instagram"}
	Story      = AspectRatio{9, 16, "story"}
)

// CommonAspectRatios returns a list of commonly used aspect ratios
func CommonAspectRatios() []AspectRatio {
	return []AspectRatio{Square, Portrait, Landscape, Widescreen, Instagram, Story}
}

// ParseAspectRatio accepts a preset name, "w:h", or a plain number.
// An empty string or "0" means no ratio.
func ParseAspectRatio(s string) (float64, error) {
	s = strings.TrimSpace(strings.ToLower(s))
	if s == "" {
		return 0, nil
	}
	for _, r := range CommonAspectRatios() {
		if r.Name == s {
			return r.Value(), nil
		}
	}
	if w, h, ok := strings.Cut(s, ":"); ok {
		fw, err := strconv.ParseFloat(w, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid aspect ratio %q: %w", s, err)
		}
		fh, err := strconv.ParseFloat(h, 64)
		if err != nil {
			return 0, fmt.Errorf("invalid aspect ratio %q: %w", s, err)
		}
		if fw <= 0 || fh <= 0 {
			return 0, fmt.Errorf("invalid aspect ratio %q: sides must be positive", s)
		}
		return fw / fh, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid aspect ratio %q: %w", s, err)
	}
	if v < 0 || math.IsInf(v, 0) || math.IsNaN(v) {
		return 0, fmt.Errorf("invalid aspect ratio %q", s)
	}
	return v, nil
}

// New creates a new BoxCropper with derivation disabled
func New() *BoxCropper {
	return &BoxCropper{
		config: BoxConfig{
			Ratio:      0,
			PadPercent: DefaultPadPercent,
		},
	}
}

// NewWithConfig creates a new BoxCropper with custom configuration
func NewWithConfig(config BoxConfig) *BoxCropper {
	return &BoxCropper{config: config}
}

// Config returns the cropper configuration.
func (c *BoxCropper) Config() BoxConfig {
	return c.config
}

// Derive runs DeriveBox with the cropper's configuration.
func (c *BoxCropper) Derive(selection, bounds viewport.ImageRect) viewport.ImageRect {
	return DeriveBox(selection, bounds, c.config)
}

// DeriveBox expands a selection to the configured aspect ratio, pads it,
// recenters it on the selection and clamps it inside bounds. selection and
// bounds are both in image space. With a zero ratio the selection is returned
// unchanged.
func DeriveBox(selection, bounds viewport.ImageRect, cfg BoxConfig) viewport.ImageRect {
	if cfg.Ratio == 0 {
		return selection
	}
	sel := selection.Normalize()
	w, h := geometry.ContainRatio(sel.W, sel.H, cfg.Ratio)
	box := sel
	box.W, box.H = w, h
	box = box.PadByWidth(cfg.PadPercent).
		Limit(bounds.W, bounds.H).
		CenterOn(sel).
		MoveInside(bounds.Rect)
	return viewport.ImageRect{Rect: box}
}

// CropResult contains the result of a cropping operation
type CropResult struct {
	Image       image.Image
	Region      viewport.ImageRect
	AspectRatio float64
}

// CropToBox cuts box out of img. The box is rounded to whole pixels and
// intersected with the image bounds.
func (c *BoxCropper) CropToBox(img image.Image, box viewport.ImageRect) (CropResult, error) {
	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return CropResult{}, fmt.Errorf("invalid image dimensions")
	}

	b := box.Normalize()
	x0 := int(math.Round(b.X)) + bounds.Min.X
	y0 := int(math.Round(b.Y)) + bounds.Min.Y
	x1 := int(math.Round(b.Right())) + bounds.Min.X
	y1 := int(math.Round(b.Bottom())) + bounds.Min.Y

	rect := image.Rect(x0, y0, x1, y1).Intersect(bounds)
	if rect.Empty() {
		return CropResult{}, fmt.Errorf("crop box %v is outside the image", box)
	}

	return CropResult{
		Image:       imaging.Crop(img, rect),
		Region:      viewport.NewImageRect(float64(rect.Min.X-bounds.Min.X), float64(rect.Min.Y-bounds.Min.Y), float64(rect.Dx()), float64(rect.Dy())),
		AspectRatio: float64(rect.Dx()) / float64(rect.Dy()),
	}, nil
}
