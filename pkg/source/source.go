package source

import (
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"sync"

	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/menta2k/image-marker/internal/utils"
)

// Source is an ordered list of image paths with lazily probed dimensions.
type Source struct {
	config Config
	paths  []string

	mu    sync.Mutex
	sizes map[int]ImageInfo
}

// Config holds configuration for the image source
type Config struct {
	MinImageSize int
}

// ImageInfo contains basic image metadata
type ImageInfo struct {
	Width       int
	Height      int
	Format      string
	AspectRatio float64
	Area        int
}

// New creates a Source over paths in the given order.
func New(paths []string) *Source {
	return NewWithConfig(paths, Config{MinImageSize: 1})
}

// NewWithConfig creates a Source with custom configuration
func NewWithConfig(paths []string, config Config) *Source {
	p := make([]string, len(paths))
	copy(p, paths)
	return &Source{
		config: config,
		paths:  p,
		sizes:  make(map[int]ImageInfo),
	}
}

// FromDir lists the image files directly inside dir, sorted by name.
func FromDir(dir string) (*Source, error) {
	if !utils.DirExists(dir) {
		return nil, fmt.Errorf("image directory not found: %s", dir)
	}
	paths, err := utils.ListImageFiles(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list images in %s: %w", dir, err)
	}
	if len(paths) == 0 {
		return nil, fmt.Errorf("no images found in %s", dir)
	}
	return New(paths), nil
}

// Len returns the number of images.
func (s *Source) Len() int {
	return len(s.paths)
}

// Path returns the i-th path.
func (s *Source) Path(i int) string {
	return s.paths[i]
}

// Paths returns a copy of all paths.
func (s *Source) Paths() []string {
	out := make([]string, len(s.paths))
	copy(out, s.paths)
	return out
}

// Size returns the pixel dimensions of the i-th image.
func (s *Source) Size(i int) (int, int, error) {
	info, err := s.Info(i)
	if err != nil {
		return 0, 0, err
	}
	return info.Width, info.Height, nil
}

// Info decodes only the header of the i-th image and caches the result.
func (s *Source) Info(i int) (ImageInfo, error) {
	if i < 0 || i >= len(s.paths) {
		return ImageInfo{}, fmt.Errorf("image index %d out of range [0, %d)", i, len(s.paths))
	}

	s.mu.Lock()
	info, ok := s.sizes[i]
	s.mu.Unlock()
	if ok {
		return info, nil
	}

	info, err := probe(s.paths[i])
	if err != nil {
		return ImageInfo{}, err
	}

	s.mu.Lock()
	s.sizes[i] = info
	s.mu.Unlock()
	return info, nil
}

// Validate checks if an image meets minimum requirements
func (s *Source) Validate(i int) error {
	info, err := s.Info(i)
	if err != nil {
		return err
	}
	if info.Width < s.config.MinImageSize || info.Height < s.config.MinImageSize {
		return fmt.Errorf("image too small: %dx%d (minimum: %d)",
			info.Width, info.Height, s.config.MinImageSize)
	}
	return nil
}

func probe(path string) (ImageInfo, error) {
	file, err := os.Open(path)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("failed to open image file: %w", err)
	}
	defer file.Close()

	cfg, format, err := image.DecodeConfig(file)
	if err != nil {
		return ImageInfo{}, fmt.Errorf("failed to decode image header %s: %w", path, err)
	}

	info := ImageInfo{
		Width:  cfg.Width,
		Height: cfg.Height,
		Format: format,
		Area:   cfg.Width * cfg.Height,
	}
	if cfg.Height > 0 {
		info.AspectRatio = float64(cfg.Width) / float64(cfg.Height)
	}
	return info, nil
}
