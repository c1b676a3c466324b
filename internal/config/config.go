package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
	"gopkg.in/yaml.v3"

	"github.com/menta2k/image-marker/pkg/cropper"
	"github.com/menta2k/image-marker/pkg/session"
)

// Config holds the application configuration
type Config struct {
	Marker  MarkerConfig  `json:"marker" yaml:"marker"`
	Display DisplayConfig `json:"display" yaml:"display"`
	Crop    CropConfig    `json:"crop" yaml:"crop"`
	Suggest SuggestConfig `json:"suggest" yaml:"suggest"`
}

// MarkerConfig holds configuration for the marking session
type MarkerConfig struct {
	BoxRatio  string  `json:"box_ratio" yaml:"box_ratio"`
	BoxPad    float64 `json:"box_pad" yaml:"box_pad"`
	Output    string  `json:"output" yaml:"output"`
	BoxOutput string  `json:"box_output" yaml:"box_output"`
}

// DisplayConfig holds configuration for the window
type DisplayConfig struct {
	Width          int    `json:"width" yaml:"width"`
	Height         int    `json:"height" yaml:"height"`
	MaxImageDim    int    `json:"max_image_dim" yaml:"max_image_dim"`
	RectColor      string `json:"rect_color" yaml:"rect_color"`
	BoxColor       string `json:"box_color" yaml:"box_color"`
	SelectionColor string `json:"selection_color" yaml:"selection_color"`
	TextColor      string `json:"text_color" yaml:"text_color"`
}

// CropConfig holds configuration for crop export
type CropConfig struct {
	Format    string `json:"format" yaml:"format"`
	Quality   int    `json:"quality" yaml:"quality"`
	Lossless  bool   `json:"lossless" yaml:"lossless"`
	OutputDir string `json:"output_dir" yaml:"output_dir"`
	Suffix    string `json:"suffix" yaml:"suffix"`
}

// SuggestConfig holds configuration for model suggestions
type SuggestConfig struct {
	Backend       string  `json:"backend" yaml:"backend"`
	URL           string  `json:"url" yaml:"url"`
	// Model is the model name; empty picks the backend's default.
	Model         string  `json:"model" yaml:"model"`
	SendSize      int     `json:"send_size" yaml:"send_size"`
	SendQuality   int     `json:"send_quality" yaml:"send_quality"`
	MinConfidence float64 `json:"min_confidence" yaml:"min_confidence"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		Marker: MarkerConfig{
			BoxRatio: "",
			BoxPad:   cropper.DefaultPadPercent,
		},
		Display: DisplayConfig{
			Width:          session.DefaultWindowWidth,
			Height:         session.DefaultWindowHeight,
			MaxImageDim:    2048,
			RectColor:      "#ff0000",
			BoxColor:       "#00ff00",
			SelectionColor: "#ffff00",
			TextColor:      "#ffffff",
		},
		Crop: CropConfig{
			Format:    "jpg",
			Quality:   90,
			OutputDir: "./crops",
			Suffix:    "",
		},
		Suggest: SuggestConfig{
			Backend:       "ollama",
			URL:           "",
			Model:         "",
			SendSize:      1024,
			SendQuality:   85,
			MinConfidence: 0.2,
		},
	}
}

func isYAML(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return ext == ".yaml" || ext == ".yml"
}

// LoadFromFile loads configuration from a YAML (.yaml/.yml) or JSON file.
// Missing keys keep their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := Default()
	if isYAML(filename) {
		err = yaml.Unmarshal(data, config)
	} else {
		err = json.Unmarshal(data, config)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return config, nil
}

// SaveToFile saves configuration as YAML or JSON depending on the extension
func (c *Config) SaveToFile(filename string) error {
	// Create directory if it doesn't exist
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	var (
		data []byte
		err  error
	)
	if isYAML(filename) {
		data, err = yaml.Marshal(c)
	} else {
		data, err = json.MarshalIndent(c, "", "  ")
	}
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if _, err := cropper.ParseAspectRatio(c.Marker.BoxRatio); err != nil {
		return fmt.Errorf("marker.box_ratio: %w", err)
	}

	if c.Marker.BoxPad < 0 {
		return fmt.Errorf("marker.box_pad must not be negative")
	}

	if c.Display.Width < 1 || c.Display.Height < 1 {
		return fmt.Errorf("display.width and display.height must be positive")
	}

	if c.Display.MaxImageDim < 0 {
		return fmt.Errorf("display.max_image_dim must not be negative")
	}

	if _, err := c.Display.Palette(); err != nil {
		return err
	}

	switch strings.ToLower(c.Crop.Format) {
	case "jpg", "jpeg", "png", "webp":
	default:
		return fmt.Errorf("crop.format must be jpg, png or webp")
	}

	if c.Crop.Quality < 1 || c.Crop.Quality > 100 {
		return fmt.Errorf("crop.quality must be between 1 and 100")
	}

	switch c.Suggest.Backend {
	case "ollama", "gemini", "llamacpp", "saliency":
	default:
		return fmt.Errorf("suggest.backend must be ollama, gemini, llamacpp or saliency")
	}

	if c.Suggest.SendQuality < 1 || c.Suggest.SendQuality > 100 {
		return fmt.Errorf("suggest.send_quality must be between 1 and 100")
	}

	if c.Suggest.MinConfidence < 0 || c.Suggest.MinConfidence > 1 {
		return fmt.Errorf("suggest.min_confidence must be between 0 and 1")
	}

	return nil
}

// BoxConfig returns the box derivation settings.
func (c *Config) BoxConfig() (cropper.BoxConfig, error) {
	ratio, err := cropper.ParseAspectRatio(c.Marker.BoxRatio)
	if err != nil {
		return cropper.BoxConfig{}, err
	}
	return cropper.BoxConfig{Ratio: ratio, PadPercent: c.Marker.BoxPad}, nil
}

// Palette parses the configured hex colors.
func (d DisplayConfig) Palette() (session.Palette, error) {
	fields := []struct {
		name string
		hex  string
	}{
		{"display.rect_color", d.RectColor},
		{"display.box_color", d.BoxColor},
		{"display.selection_color", d.SelectionColor},
		{"display.text_color", d.TextColor},
	}

	var parsed [4]colorful.Color
	for i, f := range fields {
		c, err := colorful.Hex(f.hex)
		if err != nil {
			return session.Palette{}, fmt.Errorf("%s: %w", f.name, err)
		}
		parsed[i] = c
	}

	return session.Palette{
		Rect:      parsed[0],
		Box:       parsed[1],
		Selection: parsed[2],
		Text:      parsed[3],
	}, nil
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "./config.yaml"
	}
	return filepath.Join(dir, "image-marker", "config.yaml")
}
