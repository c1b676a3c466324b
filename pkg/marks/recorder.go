package marks

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/menta2k/image-marker/pkg/types"
)

// RecorderConfig says where committed marks go.
type RecorderConfig struct {
	// OutputPath receives the rect records, rewritten on every commit.
	OutputPath string
	// BoxOutputPath receives the box records, rewritten on every commit.
	BoxOutputPath string
	// Stdout receives the box record of each commit as it happens.
	Stdout io.Writer
	// Verbose receives the box record of each commit as it happens.
	Verbose io.Writer
}

// Recorder accumulates committed marks and persists them. Its Save method is
// the session's save callback.
type Recorder struct {
	mu     sync.Mutex
	config RecorderConfig
	marks  *Store
	logger *slog.Logger
}

// NewRecorder creates a Recorder. seed, if non-nil, pre-populates the
// accumulated marks so a rewrite of the input file keeps untouched entries.
func NewRecorder(config RecorderConfig, seed *Store, logger *slog.Logger) *Recorder {
	if logger == nil {
		logger = slog.Default()
	}
	store := NewStore()
	if seed != nil {
		for _, e := range seed.Snapshot() {
			store.Set(e.Path, e.Mark)
		}
	}
	return &Recorder{config: config, marks: store, logger: logger}
}

// Save records the mark for path and flushes every configured output.
func (r *Recorder) Save(path string, m types.Mark) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.marks.Set(path, m)
	entries := r.marks.Snapshot()

	if r.config.OutputPath != "" {
		if err := writeFileAtomic(r.config.OutputPath, entries, FieldRect); err != nil {
			return fmt.Errorf("failed to write marks: %w", err)
		}
	}
	if r.config.BoxOutputPath != "" {
		if err := writeFileAtomic(r.config.BoxOutputPath, entries, FieldBox); err != nil {
			return fmt.Errorf("failed to write boxes: %w", err)
		}
	}
	single := []Entry{{Path: path, Mark: m}}
	if r.config.Stdout != nil {
		if err := NewWriter(r.config.Stdout, FieldBox).WriteAll(single); err != nil {
			return fmt.Errorf("failed to write box to stdout: %w", err)
		}
	}
	if r.config.Verbose != nil {
		if err := NewWriter(r.config.Verbose, FieldBox).WriteAll(single); err != nil {
			return fmt.Errorf("failed to write box to verbose output: %w", err)
		}
	}

	r.logger.Debug("Saved mark", "path", path, "total", len(entries))
	return nil
}

// Marks returns a snapshot of everything recorded so far.
func (r *Recorder) Marks() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.marks.Snapshot()
}

// WriteFile rewrites path with the given entries.
func WriteFile(path string, entries []Entry, field Field) error {
	return writeFileAtomic(path, entries, field)
}

// writeFileAtomic writes to a temp file next to path and renames it over
// path, so readers never see a half-written file.
func writeFileAtomic(path string, entries []Entry, field Field) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())

	if err := NewWriter(tmp, field).WriteAll(entries); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmp.Name(), 0644); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
