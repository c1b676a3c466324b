// Package ui runs the marking session in a fyne window.
package ui

import (
	"fmt"
	"image"
	"log/slog"
	"path/filepath"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/dialog"

	"github.com/menta2k/image-marker/pkg/processing"
	"github.com/menta2k/image-marker/pkg/session"
)

const appID = "com.github.menta2k.image-marker"

// Options configures the window.
type Options struct {
	Title       string
	Width       float32
	Height      float32
	MaxImageDim int
	Logger      *slog.Logger
}

// Window binds a session to a fyne window.
type Window struct {
	fyne.Window
	view   *MarkerView
	title  string
	logger *slog.Logger
}

// NewLoader returns an ImageLoader that decodes with processor and shrinks
// the result so its longer side is at most maxDim pixels.
func NewLoader(processor *processing.Processor, maxDim int) ImageLoader {
	return func(path string) (image.Image, error) {
		img, err := processor.LoadImage(path)
		if err != nil {
			return nil, err
		}
		return processor.PrepareForDisplay(img, maxDim), nil
	}
}

// NewWindow creates the marking window for sess inside fyneApp.
func NewWindow(fyneApp fyne.App, sess *session.Session, opts Options) *Window {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Title == "" {
		opts.Title = "Image Marker"
	}

	w := &Window{
		Window: fyneApp.NewWindow(opts.Title),
		title:  opts.Title,
		logger: opts.Logger,
	}
	w.view = NewMarkerView(sess, NewLoader(processing.NewProcessor(), opts.MaxImageDim), opts.Logger)
	w.view.OnError(w.showError)

	w.SetContent(w.view)
	if opts.Width > 0 && opts.Height > 0 {
		w.Resize(fyne.NewSize(opts.Width, opts.Height))
	}

	w.Canvas().SetOnTypedKey(w.onKey)
	w.Canvas().SetOnTypedRune(func(r rune) {
		w.view.Do(func(s *session.Session) error {
			s.Text(string(r))
			return nil
		})
	})
	w.SetCloseIntercept(w.quit)

	return w
}

// Run shows sess in a new application window and blocks until it closes.
func Run(sess *session.Session, opts Options) error {
	fyneApp := app.NewWithID(appID)
	w := NewWindow(fyneApp, sess, opts)
	if err := w.Start(); err != nil {
		return err
	}
	w.ShowAndRun()
	return nil
}

// Start loads the first image.
func (w *Window) Start() error {
	err := w.view.Do(func(s *session.Session) error { return s.Load() })
	if err != nil {
		return fmt.Errorf("failed to load first image: %w", err)
	}
	w.updateTitle()
	return nil
}

func (w *Window) onKey(ev *fyne.KeyEvent) {
	key, ok := keyFor(ev.Name)
	if !ok {
		return
	}
	if key == session.KeyQuit {
		w.quit()
		return
	}

	err := w.view.Do(func(s *session.Session) error { return s.Key(key) })
	w.updateTitle()
	if err != nil {
		w.logger.Error("Navigation failed", "error", err)
		w.showError(err)
	}
}

// quit commits the pending mark and closes the window. A failed save keeps
// the window open so the mark is not lost.
func (w *Window) quit() {
	err := w.view.Do(func(s *session.Session) error { return s.Quit() })
	if err != nil {
		w.logger.Error("Failed to save on quit", "error", err)
		w.showError(err)
		return
	}
	w.Close()
}

func (w *Window) updateTitle() {
	var path string
	var index, total int
	w.view.Do(func(s *session.Session) error {
		if s.State() != session.Closed {
			path = s.Path()
		}
		index, total = s.Cursor(), s.Len()
		return nil
	})
	if path == "" {
		w.SetTitle(w.title)
		return
	}
	w.SetTitle(fmt.Sprintf("%s - %s (%d/%d)", w.title, filepath.Base(path), index+1, total))
}

func (w *Window) showError(err error) {
	dialog.ShowError(err, w.Window)
}

// keyFor maps the navigation keys to session keys. Printable keys reach the
// session through the rune handler instead.
func keyFor(name fyne.KeyName) (session.Key, bool) {
	switch name {
	case fyne.KeyReturn, fyne.KeyEnter, fyne.KeyRight, fyne.KeyDown:
		return session.KeyNext, true
	case fyne.KeyLeft, fyne.KeyUp:
		return session.KeyPrev, true
	case fyne.KeyEscape:
		return session.KeyQuit, true
	case fyne.KeyBackspace:
		return session.KeyBackspace, true
	}
	return 0, false
}
