package ui

import (
	"image"
	"image/color"
	"log/slog"
	"sync"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/driver/desktop"
	"fyne.io/fyne/v2/widget"

	"github.com/menta2k/image-marker/pkg/session"
	"github.com/menta2k/image-marker/pkg/viewport"
)

const statusTextSize = 14

// ImageLoader decodes the image at path for display.
type ImageLoader func(path string) (image.Image, error)

// MarkerView shows the current image with its mark and feeds mouse input to
// the session. Fyne reports positions from the top-left corner; the view
// flips them into the session's bottom-left window space.
type MarkerView struct {
	widget.BaseWidget

	mu      sync.Mutex
	sess    *session.Session
	load    ImageLoader
	logger  *slog.Logger
	onError func(error)

	// press is where the current drag started, in fyne coordinates.
	press    fyne.Position
	pressed  bool
	sentDrag fyne.Delta

	imgPath string
	img     image.Image
}

var (
	_ desktop.Mouseable = (*MarkerView)(nil)
	_ fyne.Draggable    = (*MarkerView)(nil)
)

// NewMarkerView creates the view for sess.
func NewMarkerView(sess *session.Session, load ImageLoader, logger *slog.Logger) *MarkerView {
	if logger == nil {
		logger = slog.Default()
	}
	v := &MarkerView{sess: sess, load: load, logger: logger}
	v.ExtendBaseWidget(v)
	return v
}

// OnError sets the callback for errors that should reach the user.
func (v *MarkerView) OnError(fn func(error)) {
	v.onError = fn
}

// Do runs fn with exclusive access to the session and redraws.
func (v *MarkerView) Do(fn func(s *session.Session) error) error {
	v.mu.Lock()
	err := fn(v.sess)
	v.mu.Unlock()
	v.Refresh()
	return err
}

// MouseDown starts a selection with the primary button.
func (v *MarkerView) MouseDown(ev *desktop.MouseEvent) {
	button := toButton(ev.Button)
	h := v.Size().Height
	v.mu.Lock()
	v.press = ev.Position
	v.pressed = button == session.ButtonPrimary
	v.sentDrag = fyne.Delta{}
	x, y := toWindowSpace(ev.Position, h)
	v.sess.Press(button, x, y)
	v.mu.Unlock()
	v.Refresh()
}

// MouseUp finishes the selection.
func (v *MarkerView) MouseUp(ev *desktop.MouseEvent) {
	v.release()
}

// Dragged grows the selection to the pointer.
func (v *MarkerView) Dragged(ev *fyne.DragEvent) {
	v.mu.Lock()
	if !v.pressed {
		v.mu.Unlock()
		return
	}
	// Fyne's first drag delta may not include the movement before the drag
	// threshold, so deltas are derived from the press position instead.
	total := fyne.Delta{DX: ev.Position.X - v.press.X, DY: ev.Position.Y - v.press.Y}
	dx := total.DX - v.sentDrag.DX
	dy := total.DY - v.sentDrag.DY
	v.sentDrag = total
	v.sess.Drag(float64(dx), -float64(dy))
	v.mu.Unlock()
	v.Refresh()
}

// DragEnd finishes the selection.
func (v *MarkerView) DragEnd() {
	v.release()
}

func (v *MarkerView) release() {
	v.mu.Lock()
	v.pressed = false
	v.sess.Release()
	v.mu.Unlock()
	v.Refresh()
}

// MinSize keeps the view usable when the window is shrunk.
func (v *MarkerView) MinSize() fyne.Size {
	return fyne.NewSize(100, 100)
}

// CreateRenderer implements fyne.Widget.
func (v *MarkerView) CreateRenderer() fyne.WidgetRenderer {
	r := &markerRenderer{
		view:       v,
		background: canvas.NewRectangle(color.Black),
		image:      canvas.NewImageFromImage(nil),
	}
	r.image.FillMode = canvas.ImageFillStretch
	r.image.Hide()
	return r
}

// currentImage returns the decoded image for the session's cursor, loading
// it on cursor change. Must be called with v.mu held.
func (v *MarkerView) currentImage() image.Image {
	if v.sess.State() == session.Idle || v.sess.State() == session.Closed {
		return nil
	}
	path := v.sess.Path()
	if path == v.imgPath {
		return v.img
	}
	v.imgPath = path
	v.img = nil
	img, err := v.load(path)
	if err != nil {
		v.logger.Error("Failed to decode image", "path", path, "error", err)
		if v.onError != nil {
			go v.onError(err)
		}
		return nil
	}
	v.img = img
	return img
}

func toButton(b desktop.MouseButton) session.Button {
	switch b {
	case desktop.MouseButtonPrimary:
		return session.ButtonPrimary
	case desktop.MouseButtonSecondary:
		return session.ButtonSecondary
	default:
		return session.ButtonTertiary
	}
}

// toWindowSpace converts a fyne position to bottom-left window space.
func toWindowSpace(p fyne.Position, height float32) (float64, float64) {
	return float64(p.X), float64(height - p.Y)
}

// toFyne converts a window-space rectangle into a fyne position and size.
func toFyne(r viewport.WindowRect, height float32) (fyne.Position, fyne.Size) {
	n := r.Normalize()
	top := float64(height) - (n.Y + n.H)
	return fyne.NewPos(float32(n.X), float32(top)), fyne.NewSize(float32(n.W), float32(n.H))
}

type markerRenderer struct {
	view       *MarkerView
	background *canvas.Rectangle
	image      *canvas.Image
	outlines   []*canvas.Rectangle
	labels     []*canvas.Text
	size       fyne.Size
}

func (r *markerRenderer) Layout(size fyne.Size) {
	r.size = size
	r.background.Resize(size)
	r.view.mu.Lock()
	r.view.sess.Resize(float64(size.Width), float64(size.Height))
	r.view.mu.Unlock()
	r.Refresh()
}

func (r *markerRenderer) MinSize() fyne.Size {
	return r.view.MinSize()
}

func (r *markerRenderer) Refresh() {
	r.view.mu.Lock()
	defer r.view.mu.Unlock()

	sess := r.view.sess
	img := r.view.currentImage()
	if img != nil {
		w, h := sess.ImageSize()
		pos, size := toFyne(sess.Viewport().ImageArea(w, h), r.size.Height)
		if r.image.Image != img {
			r.image.Image = img
		}
		r.image.Move(pos)
		r.image.Resize(size)
		r.image.Show()
	} else {
		r.image.Hide()
	}

	sink := &fyneSink{height: r.size.Height}
	sess.Render(sink)
	r.apply(sink)

	r.background.Refresh()
	r.image.Refresh()
}

// apply resizes the outline and label pools to the drawn shapes.
func (r *markerRenderer) apply(sink *fyneSink) {
	for len(r.outlines) < len(sink.rects) {
		o := canvas.NewRectangle(color.Transparent)
		o.StrokeWidth = 2
		r.outlines = append(r.outlines, o)
	}
	for i, o := range r.outlines {
		if i >= len(sink.rects) {
			o.Hide()
			continue
		}
		d := sink.rects[i]
		o.StrokeColor = d.color
		o.Move(d.pos)
		o.Resize(d.size)
		o.Show()
		o.Refresh()
	}

	for len(r.labels) < len(sink.texts) {
		l := canvas.NewText("", color.White)
		l.TextSize = statusTextSize
		r.labels = append(r.labels, l)
	}
	for i, l := range r.labels {
		if i >= len(sink.texts) {
			l.Hide()
			continue
		}
		d := sink.texts[i]
		l.Text = d.text
		l.Color = d.color
		l.Move(d.pos)
		l.Show()
		l.Refresh()
	}
}

func (r *markerRenderer) Objects() []fyne.CanvasObject {
	objects := []fyne.CanvasObject{r.background, r.image}
	for _, o := range r.outlines {
		objects = append(objects, o)
	}
	for _, l := range r.labels {
		objects = append(objects, l)
	}
	return objects
}

func (r *markerRenderer) Destroy() {}

type sinkRect struct {
	pos   fyne.Position
	size  fyne.Size
	color color.Color
}

type sinkText struct {
	text  string
	pos   fyne.Position
	color color.Color
}

// fyneSink records session drawing calls in fyne coordinates.
type fyneSink struct {
	height float32
	rects  []sinkRect
	texts  []sinkText
}

func (s *fyneSink) DrawRect(r viewport.WindowRect, c color.Color) {
	pos, size := toFyne(r, s.height)
	s.rects = append(s.rects, sinkRect{pos: pos, size: size, color: c})
}

// DrawText places text with its baseline-side edge at window y.
func (s *fyneSink) DrawText(text string, x, y float64, c color.Color) {
	top := s.height - float32(y) - statusTextSize*1.4
	s.texts = append(s.texts, sinkText{text: text, pos: fyne.NewPos(float32(x), top), color: c})
}
