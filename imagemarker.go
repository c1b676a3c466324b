// Package imagemarker records one rectangular region and a short note per
// image, and derives fixed-aspect boxes and crops from those regions.
//
// Basic usage:
//
//	package main
//
//	import (
//		"fmt"
//		"log"
//
//		imagemarker "github.com/menta2k/image-marker"
//		"github.com/menta2k/image-marker/pkg/cropper"
//		"github.com/menta2k/image-marker/pkg/viewport"
//	)
//
//	func main() {
//		marker := imagemarker.NewWithConfig(cropper.BoxConfig{Ratio: 1, PadPercent: 0.2})
//
//		// A drag in an 800x600 window showing a 1600x1200 photo
//		mark := marker.Select(viewport.NewWindowRect(100, 400, 200, -150), 1600, 1200, 800, 600)
//		mark.Note = "cat"
//
//		if _, err := marker.CropFile("photo.jpg", mark, "photo_cat.jpg"); err != nil {
//			log.Fatal(err)
//		}
//		fmt.Println(marker.Record("photo.jpg", mark))
//	}
//
// The package consists of these components:
//
//  1. Viewport (pkg/viewport): maps selections between window and image space
//  2. Cropper (pkg/cropper): derives padded fixed-ratio boxes and crops them
//  3. Session (pkg/session): the interactive marking state machine
//  4. Marks (pkg/marks): the marks file codec and the save recorder
//  5. Detection (pkg/detection): vision-model suggestions for pre-annotation
//
// The image-marker command in cmd/image-marker puts these together in a
// desktop window.
package imagemarker

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	"github.com/menta2k/image-marker/internal/utils"
	"github.com/menta2k/image-marker/pkg/cropper"
	"github.com/menta2k/image-marker/pkg/marks"
	"github.com/menta2k/image-marker/pkg/processing"
	"github.com/menta2k/image-marker/pkg/types"
	"github.com/menta2k/image-marker/pkg/viewport"
)

// Version of the image marker
const Version = "0.3.0"

// Marker provides a high-level interface for turning selections into marks
// and crops
type Marker struct {
	processor *processing.Processor
	box       cropper.BoxConfig
}

// New creates a Marker that does not derive boxes
func New() *Marker {
	return NewWithConfig(cropper.BoxConfig{})
}

// NewWithConfig creates a Marker deriving boxes with box
func NewWithConfig(box cropper.BoxConfig) *Marker {
	return &Marker{
		processor: processing.NewProcessor(),
		box:       box,
	}
}

// Select maps a window-space selection over an imageW x imageH image shown
// fitted in a windowW x windowH window to a mark with its derived box.
func (m *Marker) Select(selection viewport.WindowRect, imageW, imageH int, windowW, windowH float64) types.Mark {
	vp := viewport.New(float64(imageW), float64(imageH), windowW, windowH)
	rect := vp.ToImage(selection)
	box := m.DeriveBox(rect, imageW, imageH)
	return types.Mark{Rect: &rect, Box: &box}
}

// DeriveBox derives the box of rect inside an imageW x imageH image
func (m *Marker) DeriveBox(rect viewport.ImageRect, imageW, imageH int) viewport.ImageRect {
	return cropper.DeriveBox(rect, viewport.ImageBounds(imageW, imageH), m.box)
}

// LoadImage loads an image from file
func (m *Marker) LoadImage(path string) (image.Image, error) {
	return m.processor.LoadImage(path)
}

// LoadMarks reads a marks file. A missing file yields no marks.
func (m *Marker) LoadMarks(path string) (*marks.Store, error) {
	return marks.ReadFile(path, nil)
}

// Crop cuts the mark's box out of img, deriving it first when unset
func (m *Marker) Crop(img image.Image, mark types.Mark) (cropper.CropResult, error) {
	if !mark.HasRect() {
		return cropper.CropResult{}, fmt.Errorf("mark has no rectangle")
	}
	if mark.Box == nil {
		b := img.Bounds()
		box := m.DeriveBox(*mark.Rect, b.Dx(), b.Dy())
		mark.Box = &box
	}
	return m.processor.CropMark(img, mark)
}

// CropFile loads inputPath, crops the mark and saves it to outputPath in the
// format given by its extension
func (m *Marker) CropFile(inputPath string, mark types.Mark, outputPath string) (cropper.CropResult, error) {
	img, err := m.LoadImage(inputPath)
	if err != nil {
		return cropper.CropResult{}, fmt.Errorf("failed to load image: %w", err)
	}

	result, err := m.Crop(img, mark)
	if err != nil {
		return cropper.CropResult{}, fmt.Errorf("cropping failed: %w", err)
	}

	format := utils.GetFileExtension(outputPath)
	if err := m.processor.SaveImage(result.Image, outputPath, format, 90, false); err != nil {
		return cropper.CropResult{}, fmt.Errorf("failed to save crop: %w", err)
	}
	return result, nil
}

// Record formats the mark as one marks file line without the newline
func (m *Marker) Record(path string, mark types.Mark) string {
	var buf bytes.Buffer
	w := marks.NewWriter(&buf, marks.FieldRect)
	if err := w.Write(path, mark); err != nil {
		return ""
	}
	if err := w.Flush(); err != nil {
		return ""
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
