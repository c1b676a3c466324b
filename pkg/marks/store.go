// Package marks holds annotation marks keyed by image path and reads and
// writes them in the space-delimited record format:
//
//	path x y w h note
//
// One line per image. Coordinates are image pixels.
package marks

import (
	"github.com/menta2k/image-marker/pkg/types"
)

// Store is a path -> Mark mapping that remembers first-insertion order.
// Overwriting a path keeps its original position.
type Store struct {
	order []string
	marks map[string]types.Mark
}

// NewStore creates an empty Store.
func NewStore() *Store {
	return &Store{marks: make(map[string]types.Mark)}
}

// Set stores a copy of m under path.
func (s *Store) Set(path string, m types.Mark) {
	if _, ok := s.marks[path]; !ok {
		s.order = append(s.order, path)
	}
	s.marks[path] = m.Clone()
}

// Get returns a copy of the mark for path.
func (s *Store) Get(path string) (types.Mark, bool) {
	m, ok := s.marks[path]
	if !ok {
		return types.Mark{}, false
	}
	return m.Clone(), true
}

// Len returns the number of stored marks.
func (s *Store) Len() int {
	return len(s.order)
}

// Paths returns the stored paths in insertion order.
func (s *Store) Paths() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Entry is one path and its mark.
type Entry struct {
	Path string
	Mark types.Mark
}

// Snapshot returns copies of all entries in insertion order.
func (s *Store) Snapshot() []Entry {
	out := make([]Entry, 0, len(s.order))
	for _, p := range s.order {
		out = append(out, Entry{Path: p, Mark: s.marks[p].Clone()})
	}
	return out
}

// Map returns a copy of the marks as a plain map.
func (s *Store) Map() map[string]types.Mark {
	out := make(map[string]types.Mark, len(s.marks))
	for p, m := range s.marks {
		out[p] = m.Clone()
	}
	return out
}
