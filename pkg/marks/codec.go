package marks

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/menta2k/image-marker/pkg/types"
	"github.com/menta2k/image-marker/pkg/viewport"
)

const delimiter = ' '

// ErrMalformedRecord is wrapped by every RecordError.
var ErrMalformedRecord = errors.New("malformed mark record")

// RecordError reports a line that does not parse as path x y w h note.
type RecordError struct {
	Line int
	Err  error
}

func (e *RecordError) Error() string {
	return fmt.Sprintf("line %d: %v: %v", e.Line, ErrMalformedRecord, e.Err)
}

func (e *RecordError) Unwrap() []error {
	return []error{ErrMalformedRecord, e.Err}
}

// Field selects which rectangle of a Mark a Writer emits.
type Field int

const (
	FieldRect Field = iota
	FieldBox
)

// Read parses records from r. Any malformed line aborts the read.
func Read(r io.Reader) (*Store, error) {
	cr := csv.NewReader(r)
	cr.Comma = delimiter
	cr.FieldsPerRecord = -1
	cr.ReuseRecord = true

	store := NewStore()
	for {
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			var pe *csv.ParseError
			if errors.As(err, &pe) {
				return nil, &RecordError{Line: pe.Line, Err: pe.Err}
			}
			return nil, err
		}
		line, _ := cr.FieldPos(0)
		path, mark, err := parseRecord(record)
		if err != nil {
			return nil, &RecordError{Line: line, Err: err}
		}
		store.Set(path, mark)
	}
	return store, nil
}

func parseRecord(record []string) (string, types.Mark, error) {
	if len(record) != 6 {
		return "", types.Mark{}, fmt.Errorf("expected 6 fields, got %d", len(record))
	}
	if record[0] == "" {
		return "", types.Mark{}, errors.New("empty path")
	}
	var coords [4]float64
	for i := range coords {
		v, err := strconv.ParseFloat(record[i+1], 64)
		if err != nil {
			return "", types.Mark{}, fmt.Errorf("field %d: %w", i+2, err)
		}
		coords[i] = v
	}
	rect := viewport.NewImageRect(coords[0], coords[1], coords[2], coords[3])
	return record[0], types.Mark{Rect: &rect, Note: record[5]}, nil
}

// ReadFile loads marks from path. An empty path or a missing file yields an
// empty store; the latter is logged.
func ReadFile(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		return NewStore(), nil
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		logger.Warn("Marks file not found, starting empty", "path", path)
		return NewStore(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to open marks file: %w", err)
	}
	defer f.Close()

	store, err := Read(f)
	if err != nil {
		return nil, fmt.Errorf("failed to read marks file %s: %w", path, err)
	}
	logger.Debug("Loaded marks", "path", path, "count", store.Len())
	return store, nil
}

// Writer writes marks as records.
type Writer struct {
	cw    *csv.Writer
	field Field
}

// NewWriter creates a Writer emitting the given rectangle of each mark.
func NewWriter(w io.Writer, field Field) *Writer {
	cw := csv.NewWriter(w)
	cw.Comma = delimiter
	return &Writer{cw: cw, field: field}
}

// Write writes one record. Marks without the selected rectangle are skipped.
func (w *Writer) Write(path string, m types.Mark) error {
	var r *viewport.ImageRect
	switch w.field {
	case FieldBox:
		r = m.BoxOrRect()
	default:
		r = m.Rect
	}
	if r == nil {
		return nil
	}
	record := []string{
		path,
		formatCoord(r.X),
		formatCoord(r.Y),
		formatCoord(r.W),
		formatCoord(r.H),
		m.Note,
	}
	return w.cw.Write(record)
}

// WriteAll writes every entry and flushes.
func (w *Writer) WriteAll(entries []Entry) error {
	for _, e := range entries {
		if err := w.Write(e.Path, e.Mark); err != nil {
			return err
		}
	}
	return w.Flush()
}

// Flush flushes buffered records and reports any write error.
func (w *Writer) Flush() error {
	w.cw.Flush()
	return w.cw.Error()
}

func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
