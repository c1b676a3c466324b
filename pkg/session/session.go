// Package session implements the annotation state machine: one image at a
// time, one selection per image, committed through a save callback when the
// user navigates away or quits.
//
// All input coordinates are window space: origin at the bottom-left corner of
// the window, y increasing upward. Marks are kept in image space (top-left
// origin) and are only converted back for drawing.
//
// A Session is not safe for concurrent use; the caller serializes events.
package session

import (
	"fmt"
	"log/slog"
	"unicode/utf8"

	"github.com/menta2k/image-marker/pkg/cropper"
	"github.com/menta2k/image-marker/pkg/types"
	"github.com/menta2k/image-marker/pkg/viewport"
)

// State is the phase of the session.
type State int

const (
	// Idle: no image is loaded for the cursor.
	Idle State = iota
	// Viewing: the image at the cursor is shown with its mark, if any.
	Viewing
	// Selecting: a drag is in progress.
	Selecting
	// Closed: Quit committed successfully; no further events are accepted.
	Closed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Viewing:
		return "viewing"
	case Selecting:
		return "selecting"
	case Closed:
		return "closed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Button identifies a mouse button.
type Button int

const (
	ButtonPrimary Button = iota + 1
	ButtonSecondary
	ButtonTertiary
)

// Key is a navigation or editing key.
type Key int

const (
	KeyNext Key = iota + 1
	KeyPrev
	KeyQuit
	KeyBackspace
)

// ImageSource supplies the ordered images and their pixel dimensions.
type ImageSource interface {
	Len() int
	Path(i int) string
	Size(i int) (width, height int, err error)
}

// SaveFunc persists one committed mark. It is called synchronously and must
// not keep references into m.
type SaveFunc func(path string, m types.Mark) error

// Options configures a Session.
type Options struct {
	Box          cropper.BoxConfig
	Palette      Palette
	Logger       *slog.Logger
	WindowWidth  float64
	WindowHeight float64
}

// Default window size used until the first Resize.
const (
	DefaultWindowWidth  = 800
	DefaultWindowHeight = 600
)

// Session is the annotation state machine.
type Session struct {
	source ImageSource
	marks  map[string]types.Mark
	save   SaveFunc
	opts   Options
	logger *slog.Logger

	state          State
	cursor         int
	imageW, imageH int
	winW, winH     float64
	view           viewport.Viewport

	// selection is the live drag in window space; nil outside Selecting.
	selection *viewport.WindowRect
	// pending is the mark being edited for the image at the cursor.
	pending types.Mark
	dirty   bool
}

// New creates a Session in the Idle state at the first image. marks is copied.
// Call Load to show the first image.
func New(source ImageSource, marks map[string]types.Mark, save SaveFunc, opts Options) (*Session, error) {
	if source == nil || source.Len() == 0 {
		return nil, ErrNoImages
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	opts.Palette = opts.Palette.withDefaults()
	if opts.WindowWidth <= 0 {
		opts.WindowWidth = DefaultWindowWidth
	}
	if opts.WindowHeight <= 0 {
		opts.WindowHeight = DefaultWindowHeight
	}
	if save == nil {
		save = func(string, types.Mark) error { return nil }
	}

	owned := make(map[string]types.Mark, len(marks))
	for p, m := range marks {
		owned[p] = m.Clone()
	}

	return &Session{
		source: source,
		marks:  owned,
		save:   save,
		opts:   opts,
		logger: opts.Logger,
		state:  Idle,
		winW:   opts.WindowWidth,
		winH:   opts.WindowHeight,
	}, nil
}

// Load shows the image at the cursor: it drops any live selection, fetches
// the image size, fits it to the window and loads the stored mark, deriving
// its box when missing. Unsaved edits of the previous image are discarded;
// navigation commits them before calling Load.
func (s *Session) Load() error {
	if s.state == Closed {
		return ErrClosed
	}

	s.state = Idle
	s.selection = nil
	s.pending = types.Mark{}
	s.dirty = false

	path := s.source.Path(s.cursor)
	w, h, err := s.source.Size(s.cursor)
	if err != nil {
		return fmt.Errorf("failed to load %s: %w", path, err)
	}
	if w <= 0 || h <= 0 {
		return fmt.Errorf("%w: %s is %dx%d", ErrInvalidGeometry, path, w, h)
	}

	s.imageW, s.imageH = w, h
	s.view = viewport.New(float64(w), float64(h), s.winW, s.winH)

	if m, ok := s.marks[path]; ok {
		s.pending = m.Clone()
		if s.pending.Rect != nil && s.pending.Box == nil {
			box := s.deriveBox(*s.pending.Rect)
			s.pending.Box = &box
		}
	}
	s.state = Viewing

	s.logger.Info("loaded image",
		"index", s.cursor+1,
		"total", s.source.Len(),
		"path", path,
		"size", fmt.Sprintf("%dx%d", w, h))
	return nil
}

// Press starts a selection at (x, y). Only the primary button selects.
func (s *Session) Press(button Button, x, y float64) {
	if s.state != Viewing || button != ButtonPrimary {
		return
	}
	r := viewport.NewWindowRect(x, y, 0, 0)
	s.selection = &r
	s.state = Selecting
}

// Drag grows the live selection by (dx, dy).
func (s *Session) Drag(dx, dy float64) {
	if s.state != Selecting {
		return
	}
	s.selection.W += dx
	s.selection.H += dy
}

// Release finishes the selection. A selection without area leaves the
// current mark untouched; otherwise it becomes the pending mark's rect and
// its box is derived.
func (s *Session) Release() {
	if s.state != Selecting {
		return
	}
	sel := *s.selection
	s.selection = nil
	s.state = Viewing

	if sel.Normalize().Empty() {
		s.logger.Debug("Ignoring empty selection", "path", s.Path())
		return
	}

	rect := s.view.ToImage(sel)
	if rect.Empty() {
		s.logger.Debug("Ignoring selection smaller than a pixel", "path", s.Path())
		return
	}
	box := s.deriveBox(rect)
	s.pending.Rect = &rect
	s.pending.Box = &box
	s.dirty = true

	s.logger.Debug("Selected", "path", s.Path(), "rect", rect, "box", box)
}

// Text appends to the note of the pending mark.
func (s *Session) Text(text string) {
	if text == "" || (s.state != Viewing && s.state != Selecting) {
		return
	}
	s.pending.Note += text
	s.dirty = true
}

// Backspace removes the last character of the note.
func (s *Session) Backspace() {
	if s.state != Viewing && s.state != Selecting {
		return
	}
	if s.pending.Note == "" {
		return
	}
	_, size := utf8.DecodeLastRuneInString(s.pending.Note)
	s.pending.Note = s.pending.Note[:len(s.pending.Note)-size]
	s.dirty = true
}

// Key dispatches a key press.
func (s *Session) Key(k Key) error {
	switch k {
	case KeyNext:
		return s.Next()
	case KeyPrev:
		return s.Prev()
	case KeyQuit:
		return s.Quit()
	case KeyBackspace:
		s.Backspace()
	}
	return nil
}

// Next commits and moves to the following image, wrapping to the first.
func (s *Session) Next() error {
	return s.move(1)
}

// Prev commits and moves to the preceding image, wrapping to the last.
func (s *Session) Prev() error {
	return s.move(-1)
}

func (s *Session) move(delta int) error {
	switch s.state {
	case Closed:
		return ErrClosed
	case Selecting:
		return nil
	}
	if err := s.commit(); err != nil {
		return err
	}
	n := s.source.Len()
	s.cursor = ((s.cursor+delta)%n + n) % n
	return s.Load()
}

// Quit finishes a drag in progress, commits the pending mark and closes the
// session. On a save error the session stays open.
func (s *Session) Quit() error {
	if s.state == Closed {
		return nil
	}
	if s.state == Selecting {
		s.Release()
	}
	if err := s.commit(); err != nil {
		return err
	}
	s.state = Closed
	s.logger.Debug("Session closed", "marks", len(s.marks))
	return nil
}

// Resize refits the image to a new window size. A drag in progress is
// dropped since its window coordinates no longer line up with the image.
func (s *Session) Resize(width, height float64) {
	if width <= 0 || height <= 0 {
		return
	}
	s.winW, s.winH = width, height
	if s.state == Idle || s.state == Closed {
		return
	}
	s.view = viewport.New(float64(s.imageW), float64(s.imageH), width, height)
	if s.state == Selecting {
		s.selection = nil
		s.state = Viewing
	}
}

// commit hands a dirty pending mark to the save callback and records it.
// Marks without a rect are not committed.
func (s *Session) commit() error {
	if !s.dirty {
		return nil
	}
	if s.pending.Rect == nil {
		s.dirty = false
		return nil
	}
	path := s.source.Path(s.cursor)
	if err := s.save(path, s.pending.Clone()); err != nil {
		s.logger.Error("Save failed", "path", path, "error", err)
		return &SaveError{Path: path, Err: err}
	}
	s.marks[path] = s.pending.Clone()
	s.dirty = false
	s.logger.Debug("Committed mark", "path", path, "rect", *s.pending.Rect)
	return nil
}

func (s *Session) deriveBox(rect viewport.ImageRect) viewport.ImageRect {
	return cropper.DeriveBox(rect, viewport.ImageBounds(s.imageW, s.imageH), s.opts.Box)
}

// State returns the current state.
func (s *Session) State() State { return s.state }

// Cursor returns the index of the current image.
func (s *Session) Cursor() int { return s.cursor }

// Path returns the path of the current image.
func (s *Session) Path() string { return s.source.Path(s.cursor) }

// Len returns the number of images.
func (s *Session) Len() int { return s.source.Len() }

// Dirty reports whether the pending mark has uncommitted changes.
func (s *Session) Dirty() bool { return s.dirty }

// Viewport returns the current image placement.
func (s *Session) Viewport() viewport.Viewport { return s.view }

// ImageSize returns the pixel size of the loaded image.
func (s *Session) ImageSize() (int, int) { return s.imageW, s.imageH }

// WindowSize returns the window size the session fits images into.
func (s *Session) WindowSize() (float64, float64) { return s.winW, s.winH }

// Mark returns a copy of the pending mark for the current image.
func (s *Session) Mark() types.Mark { return s.pending.Clone() }

// Selection returns the live drag, if any.
func (s *Session) Selection() (viewport.WindowRect, bool) {
	if s.selection == nil {
		return viewport.WindowRect{}, false
	}
	return *s.selection, true
}

// Marks returns a copy of all committed marks.
func (s *Session) Marks() map[string]types.Mark {
	out := make(map[string]types.Mark, len(s.marks))
	for p, m := range s.marks {
		out[p] = m.Clone()
	}
	return out
}
