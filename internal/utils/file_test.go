package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestIsImageFile(t *testing.T) {
	tests := []struct {
		name     string
		expected bool
	}{
		{"a.jpg", true},
		{"a.JPEG", true},
		{"dir/b.png", true},
		{"c.webp", true},
		{"d.tif", true},
		{"e.txt", false},
		{"noext", false},
		{".png.bak", false},
	}

	for _, tt := range tests {
		if got := IsImageFile(tt.name); got != tt.expected {
			t.Errorf("IsImageFile(%q) = %v, expected %v", tt.name, got, tt.expected)
		}
	}
}

func TestListImageFiles(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"c.png", "a.jpg", "b.txt", "B.webp"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0644); err != nil {
			t.Fatal(err)
		}
	}
	sub := filepath.Join(dir, "nested")
	if err := os.Mkdir(sub, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(sub, "d.png"), nil, 0644); err != nil {
		t.Fatal(err)
	}

	files, err := ListImageFiles(dir)
	if err != nil {
		t.Fatalf("ListImageFiles failed: %v", err)
	}

	expected := []string{
		filepath.Join(dir, "B.webp"),
		filepath.Join(dir, "a.jpg"),
		filepath.Join(dir, "c.png"),
	}
	if len(files) != len(expected) {
		t.Fatalf("Expected %v, got %v", expected, files)
	}
	for i := range expected {
		if files[i] != expected[i] {
			t.Errorf("Entry %d: expected %s, got %s", i, expected[i], files[i])
		}
	}
}

func TestGenerateOutputFilename(t *testing.T) {
	tests := []struct {
		input, dir, prefix, suffix, format string
		expected                           string
	}{
		{"in/photo.jpg", "out", "", "_crop", "png", filepath.Join("out", "photo_crop.png")},
		{"photo.webp", "out", "x_", "", "", filepath.Join("out", "x_photo.webp")},
		{"noext", "out", "", "", "", filepath.Join("out", "noext.jpg")},
	}

	for _, tt := range tests {
		got := GenerateOutputFilename(tt.input, tt.dir, tt.prefix, tt.suffix, tt.format)
		if got != tt.expected {
			t.Errorf("GenerateOutputFilename(%q) = %q, expected %q", tt.input, got, tt.expected)
		}
	}
}

func TestSamePath(t *testing.T) {
	if !SamePath("marks.txt", "./marks.txt") {
		t.Error("Expected relative spellings of one path to match")
	}
	if SamePath("a.txt", "b.txt") {
		t.Error("Expected different paths not to match")
	}
	if SamePath("", "") {
		t.Error("Expected empty paths never to match")
	}
}

func TestFormatFileSize(t *testing.T) {
	tests := []struct {
		size     int64
		expected string
	}{
		{512, "512 B"},
		{1024, "1.0 KB"},
		{1536, "1.5 KB"},
		{5 * 1024 * 1024, "5.0 MB"},
	}
	for _, tt := range tests {
		if got := FormatFileSize(tt.size); got != tt.expected {
			t.Errorf("FormatFileSize(%d) = %q, expected %q", tt.size, got, tt.expected)
		}
	}
}

func TestEnsureDirAndExists(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "a", "b")
	if err := EnsureDir(dir); err != nil {
		t.Fatal(err)
	}
	if !DirExists(dir) {
		t.Error("Expected directory to exist")
	}
	if FileExists(dir) {
		t.Error("A directory is not a file")
	}
}
