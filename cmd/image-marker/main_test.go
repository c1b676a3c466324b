package main

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/disintegration/imaging"

	"github.com/menta2k/image-marker/internal/config"
	"github.com/menta2k/image-marker/pkg/cropper"
	"github.com/menta2k/image-marker/pkg/detection"
	"github.com/menta2k/image-marker/pkg/marks"
	"github.com/menta2k/image-marker/pkg/source"
	"github.com/menta2k/image-marker/pkg/types"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewNRGBA(image.Rect(0, 0, w, h))); err != nil {
		t.Fatal(err)
	}
}

func imageDir(t *testing.T, names ...string) string {
	t.Helper()
	dir := t.TempDir()
	for _, name := range names {
		writePNG(t, filepath.Join(dir, name), 200, 100)
	}
	return dir
}

func TestRootFlagsOverrideConfig(t *testing.T) {
	cmd := newRootCmd()
	if err := cmd.ParseFlags([]string{"-o", "out.txt", "-r", "4:3", "--width", "1024"}); err != nil {
		t.Fatal(err)
	}

	cfg := config.Default()
	cfg.Marker.BoxPad = 0.5
	applyMarkFlags(cmd, cfg, markOptions{output: "out.txt", boxRatio: "4:3", width: 1024})

	if cfg.Marker.Output != "out.txt" || cfg.Marker.BoxRatio != "4:3" || cfg.Display.Width != 1024 {
		t.Errorf("Expected flags to override config, got %+v", cfg)
	}
	if cfg.Marker.BoxPad != 0.5 {
		t.Errorf("Expected unset flag to keep config pad, got %f", cfg.Marker.BoxPad)
	}
	if cfg.Display.Height != config.Default().Display.Height {
		t.Errorf("Expected default height, got %d", cfg.Display.Height)
	}
}

func TestLoadConfigExplicitPath(t *testing.T) {
	path := filepath.Join(t.TempDir(), "marker.yaml")
	if err := os.WriteFile(path, []byte("crop:\n  format: png\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := loadConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Crop.Format != "png" {
		t.Errorf("Expected png, got %s", cfg.Crop.Format)
	}

	if _, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for a missing explicit config")
	}
}

func TestNewRecorderSeedsWhenOverwritingMarks(t *testing.T) {
	dir := t.TempDir()
	marksPath := filepath.Join(dir, "marks.txt")
	if err := os.WriteFile(marksPath, []byte("old.jpg 1 2 3 4 kept\n"), 0644); err != nil {
		t.Fatal(err)
	}
	loaded, err := marks.ReadFile(marksPath, quietLogger())
	if err != nil {
		t.Fatal(err)
	}

	var stdout bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)

	cfg := config.Default()
	cfg.Marker.Output = filepath.Join(dir, ".", "marks.txt")
	opts := markOptions{marksPath: marksPath, stdout: true}

	rec := newRecorder(cmd, cfg, opts, loaded, false, quietLogger())
	mark := types.Mark{Rect: loaded.Map()["old.jpg"].Rect, Note: "new"}
	if err := rec.Save("new.jpg", mark); err != nil {
		t.Fatal(err)
	}

	data, err := os.ReadFile(marksPath)
	if err != nil {
		t.Fatal(err)
	}
	expected := "old.jpg 1 2 3 4 kept\nnew.jpg 1 2 3 4 new\n"
	if string(data) != expected {
		t.Errorf("Expected %q, got %q", expected, string(data))
	}
	if stdout.String() != "new.jpg 1 2 3 4 new\n" {
		t.Errorf("Unexpected stdout %q", stdout.String())
	}
}

func TestRunCrop(t *testing.T) {
	dir := imageDir(t, "a.png", "b.png", "c.png")
	marksPath := filepath.Join(t.TempDir(), "marks.txt")
	data := filepath.Join(dir, "a.png") + " 10 20 50 30 cat\nb.png 0 0 20 10 dog\n"
	if err := os.WriteFile(marksPath, []byte(data), 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name  string
		box   cropper.BoxConfig
		wantW int
		wantH int
	}{
		{"rect", cropper.BoxConfig{}, 50, 30},
		{"square box", cropper.BoxConfig{Ratio: 1}, 50, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := t.TempDir()
			opts := cropOptions{marksPath: marksPath, outDir: out, ext: "png", quality: 90, overlay: true}

			n, err := runCrop(context.Background(), dir, opts, tt.box, quietLogger())
			if err != nil {
				t.Fatalf("runCrop failed: %v", err)
			}
			if n != 2 {
				t.Errorf("Expected 2 crops, got %d", n)
			}

			img, err := imaging.Open(filepath.Join(out, "a.png"))
			if err != nil {
				t.Fatal(err)
			}
			if img.Bounds().Dx() != tt.wantW || img.Bounds().Dy() != tt.wantH {
				t.Errorf("Expected %dx%d crop, got %v", tt.wantW, tt.wantH, img.Bounds())
			}
			if _, err := os.Stat(filepath.Join(out, "a_overlay.png")); err != nil {
				t.Errorf("Expected overlay: %v", err)
			}
			if _, err := os.Stat(filepath.Join(out, "c.png")); !os.IsNotExist(err) {
				t.Error("Expected no crop for an unmarked image")
			}
		})
	}
}

type fakeVision struct {
	results map[string]*types.AnalysisResult
	calls   int
}

func (f *fakeVision) SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	return "", nil
}

func (f *fakeVision) AnalyzeImage(ctx context.Context, model, prompt, imgB64 string) (*types.AnalysisResult, error) {
	f.calls++
	r := *f.results["any"]
	return &r, nil
}

func TestRunSuggest(t *testing.T) {
	dir := imageDir(t, "a.png", "b.png")
	src, err := source.FromDir(dir)
	if err != nil {
		t.Fatal(err)
	}

	fv := &fakeVision{results: map[string]*types.AnalysisResult{
		"any": {Primary: types.Primary{Label: "Red Car", Confidence: 0.9, Box: types.Box{X: 0.1, Y: 0.2, W: 0.5, H: 0.5}}},
	}}
	d := detection.NewDetector(fv)

	entries, err := runSuggest(context.Background(), d, src, suggestOptions{sendSize: 64, sendQuality: 80}, cropper.BoxConfig{}, quietLogger())
	if err != nil {
		t.Fatalf("runSuggest failed: %v", err)
	}
	if len(entries) != 2 || fv.calls != 2 {
		t.Fatalf("Expected 2 suggestions from 2 calls, got %d from %d", len(entries), fv.calls)
	}
	if entries[0].Path != src.Path(0) || entries[1].Path != src.Path(1) {
		t.Errorf("Expected source order, got %s, %s", entries[0].Path, entries[1].Path)
	}

	var buf bytes.Buffer
	if err := marks.NewWriter(&buf, marks.FieldRect).WriteAll(entries[:1]); err != nil {
		t.Fatal(err)
	}
	if !strings.HasSuffix(buf.String(), " 20 20 100 50 red-car\n") {
		t.Errorf("Unexpected record %q", buf.String())
	}
}

func TestRunSuggestNothingFound(t *testing.T) {
	dir := imageDir(t, "a.png")
	src, _ := source.FromDir(dir)
	fv := &fakeVision{results: map[string]*types.AnalysisResult{
		"any": {Primary: types.Primary{Label: "none", Box: types.Box{X: 0.25, Y: 0.25, W: 0.5, H: 0.5}}},
	}}

	entries, err := runSuggest(context.Background(), detection.NewDetector(fv), src, suggestOptions{concurrency: 4}, cropper.BoxConfig{}, quietLogger())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 0 {
		t.Errorf("Expected no suggestions, got %v", entries)
	}
}

func TestNewVisionClient(t *testing.T) {
	if _, err := newVisionClient("llamacpp", ""); err != nil {
		t.Errorf("Expected llamacpp client, got %v", err)
	}
	if _, err := newVisionClient("openai", ""); err == nil {
		t.Error("Expected error for unknown backend")
	}
}
