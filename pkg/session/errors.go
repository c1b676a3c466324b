package session

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidGeometry is returned when an image reports a zero dimension.
	ErrInvalidGeometry = errors.New("invalid image geometry")
	// ErrNoImages is returned by New for an empty image source.
	ErrNoImages = errors.New("no images to mark")
	// ErrClosed is returned for events that arrive after Quit succeeded.
	ErrClosed = errors.New("session closed")
)

// SaveError wraps a failure of the save callback. The session keeps the
// pending mark and stays on the same image so the commit can be retried.
type SaveError struct {
	Path string
	Err  error
}

func (e *SaveError) Error() string {
	return fmt.Sprintf("failed to save mark for %s: %v", e.Path, e.Err)
}

func (e *SaveError) Unwrap() error {
	return e.Err
}
