package session

import (
	"fmt"
	"image/color"

	"github.com/menta2k/image-marker/pkg/viewport"
)

// RenderSink draws outlines and text in window space (bottom-left origin).
type RenderSink interface {
	DrawRect(r viewport.WindowRect, c color.Color)
	DrawText(text string, x, y float64, c color.Color)
}

// Palette holds the colors used by Render.
type Palette struct {
	Rect      color.Color
	Box       color.Color
	Selection color.Color
	Text      color.Color
}

// DefaultPalette returns red rects, green boxes, a yellow live selection and
// white text.
func DefaultPalette() Palette {
	return Palette{
		Rect:      color.NRGBA{R: 255, A: 255},
		Box:       color.NRGBA{G: 255, A: 255},
		Selection: color.NRGBA{R: 255, G: 255, A: 255},
		Text:      color.NRGBA{R: 255, G: 255, B: 255, A: 255},
	}
}

func (p Palette) withDefaults() Palette {
	d := DefaultPalette()
	if p.Rect == nil {
		p.Rect = d.Rect
	}
	if p.Box == nil {
		p.Box = d.Box
	}
	if p.Selection == nil {
		p.Selection = d.Selection
	}
	if p.Text == nil {
		p.Text = d.Text
	}
	return p
}

// TextMargin is the distance of the status line from the bottom-left corner.
const TextMargin = 8

// Render draws the current mark, its derived box, the live selection and a
// status line. It does not change the session.
func (s *Session) Render(sink RenderSink) {
	p := s.opts.Palette

	if s.state == Viewing || s.state == Selecting {
		if s.pending.Rect != nil {
			sink.DrawRect(s.view.ToWindow(*s.pending.Rect), p.Rect)
		}
		if s.pending.Box != nil && (s.pending.Rect == nil || *s.pending.Box != *s.pending.Rect) {
			sink.DrawRect(s.view.ToWindow(*s.pending.Box), p.Box)
		}
		if s.selection != nil {
			sink.DrawRect(viewport.WindowRect{Rect: s.selection.Normalize()}, p.Selection)
		}
	}

	sink.DrawText(s.Status(), TextMargin, TextMargin, p.Text)
}

// Status returns the one-line status shown under the image.
func (s *Session) Status() string {
	switch s.state {
	case Closed:
		return "closed"
	case Idle:
		return fmt.Sprintf("%d/%d %s (not loaded)", s.cursor+1, s.source.Len(), s.source.Path(s.cursor))
	}
	line := fmt.Sprintf("%d/%d %s", s.cursor+1, s.source.Len(), s.source.Path(s.cursor))
	if s.dirty {
		line += " *"
	}
	if s.pending.Note != "" {
		line += " | " + s.pending.Note
	}
	return line
}
