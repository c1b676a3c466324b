package types

import (
	"github.com/menta2k/image-marker/pkg/viewport"
)

// Mark is the annotation recorded for one image. Rect is the user's selection
// and Box the derived crop region, both in image pixels. Either may be nil
// when nothing has been drawn yet.
type Mark struct {
	Rect *viewport.ImageRect `json:"rect,omitempty"`
	Box  *viewport.ImageRect `json:"box,omitempty"`
	Note string              `json:"note"`
}

// HasRect reports whether the mark carries a selection.
func (m Mark) HasRect() bool {
	return m.Rect != nil
}

// Clone returns a deep copy so callers can't mutate the session's marks.
func (m Mark) Clone() Mark {
	out := Mark{Note: m.Note}
	if m.Rect != nil {
		r := *m.Rect
		out.Rect = &r
	}
	if m.Box != nil {
		b := *m.Box
		out.Box = &b
	}
	return out
}

// BoxOrRect returns the derived box, falling back to the rect.
func (m Mark) BoxOrRect() *viewport.ImageRect {
	if m.Box != nil {
		return m.Box
	}
	return m.Rect
}

// Box represents a normalized bounding box with coordinates in [0,1] range
type Box struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// ToImage scales a normalized box to a w x h image, rounding to whole pixels.
func (b Box) ToImage(w, h int) viewport.ImageRect {
	r := viewport.NewImageRect(b.X*float64(w), b.Y*float64(h), b.W*float64(w), b.H*float64(h))
	return viewport.ImageRect{Rect: r.ScaleBy(1)}
}

// Primary represents the primary subject detected in an image
type Primary struct {
	Label      string  `json:"label"`
	Confidence float64 `json:"confidence"`
	Box        Box     `json:"box"`
	Cx         float64 `json:"cx"`
	Cy         float64 `json:"cy"`
}

// AnalysisResult contains the complete analysis result from the vision model
type AnalysisResult struct {
	Primary     Primary  `json:"primary"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}
