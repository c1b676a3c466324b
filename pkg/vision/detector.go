// Package vision locates the most salient region of an image without a
// model. SubjectDetector satisfies client.VisionClient so it can serve as an
// offline suggestion backend.
package vision

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"sort"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/lucasb-eyer/go-colorful"
	"gonum.org/v1/gonum/mat"

	"github.com/menta2k/image-marker/pkg/client"
	"github.com/menta2k/image-marker/pkg/types"
)

// Label reported for a located region
const Label = "salient region"

// SubjectDetector finds high-contrast, bright regions of an image
type SubjectDetector struct {
	config DetectionConfig
}

var _ client.VisionClient = (*SubjectDetector)(nil)

// DetectionConfig holds configuration for subject detection
type DetectionConfig struct {
	ContrastWeight   float64
	BrightnessWeight float64
	// MinSubjectRatio is the smallest window area as a share of the image.
	MinSubjectRatio float64
	// MinConfidence is the confidence below which nothing is reported.
	MinConfidence float64
	// MaxDim bounds the working resolution.
	MaxDim int
}

// New creates a new SubjectDetector with default configuration
func New() *SubjectDetector {
	return &SubjectDetector{
		config: DetectionConfig{
			ContrastWeight:   0.3,
			BrightnessWeight: 0.2,
			MinSubjectRatio:  0.05,
			MinConfidence:    0.1,
			MaxDim:           256,
		},
	}
}

// NewWithConfig creates a new SubjectDetector with custom configuration
func NewWithConfig(config DetectionConfig) *SubjectDetector {
	return &SubjectDetector{config: config}
}

// Region represents a rectangular region of interest
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
	Score  float64
}

// Center returns the center point of the region
func (r Region) Center() (int, int) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Area returns the area of the region
func (r Region) Area() int {
	return r.Width * r.Height
}

// Locate returns the most salient window of img in img's pixel space and a
// confidence in [0,1] measuring how much it stands out from the whole image.
// ok is false when nothing stands out.
func (d *SubjectDetector) Locate(img image.Image) (region Region, confidence float64, ok bool) {
	work, scale := d.workingImage(img)
	saliency := d.saliencyMap(work)
	regions := d.regions(saliency)
	if len(regions) == 0 {
		return Region{}, 0, false
	}

	best := regions[0]
	rows, cols := saliency.Dims()
	mean := mat.Sum(saliency) / float64(rows*cols)
	if best.Score <= 0 {
		return Region{}, 0, false
	}
	confidence = 1 - mean/best.Score
	if confidence < d.config.MinConfidence {
		return Region{}, confidence, false
	}

	return Region{
		X:      int(float64(best.X) * scale),
		Y:      int(float64(best.Y) * scale),
		Width:  int(float64(best.Width) * scale),
		Height: int(float64(best.Height) * scale),
		Score:  best.Score,
	}, confidence, true
}

// workingImage shrinks img to MaxDim and reports the factor back to img
func (d *SubjectDetector) workingImage(img image.Image) (image.Image, float64) {
	b := img.Bounds()
	if d.config.MaxDim <= 0 || (b.Dx() <= d.config.MaxDim && b.Dy() <= d.config.MaxDim) {
		return img, 1
	}
	small := imaging.Fit(img, d.config.MaxDim, d.config.MaxDim, imaging.Box)
	return small, float64(b.Dx()) / float64(small.Bounds().Dx())
}

// saliencyMap scores each pixel by its mean luminance difference to its 8
// neighbors and its brightness. Border pixels only count brightness.
func (d *SubjectDetector) saliencyMap(img image.Image) *mat.Dense {
	gray := imaging.Grayscale(img)
	w, h := gray.Bounds().Dx(), gray.Bounds().Dy()
	lum := func(x, y int) float64 {
		return float64(gray.Pix[y*gray.Stride+x*4]) / 255
	}

	s := mat.NewDense(h, w, nil)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			v := lum(x, y)
			var edge float64
			if x > 0 && y > 0 && x < w-1 && y < h-1 {
				for dy := -1; dy <= 1; dy++ {
					for dx := -1; dx <= 1; dx++ {
						diff := v - lum(x+dx, y+dy)
						if diff < 0 {
							diff = -diff
						}
						edge += diff
					}
				}
				edge /= 8
			}
			s.Set(y, x, d.config.ContrastWeight*edge+d.config.BrightnessWeight*v)
		}
	}
	return s
}

// integral returns the summed-area table of s with a zero first row and column.
func integral(s *mat.Dense) *mat.Dense {
	rows, cols := s.Dims()
	in := mat.NewDense(rows+1, cols+1, nil)
	for y := 1; y <= rows; y++ {
		var row float64
		for x := 1; x <= cols; x++ {
			row += s.At(y-1, x-1)
			in.Set(y, x, in.At(y-1, x)+row)
		}
	}
	return in
}

// regions slides square windows over the map and returns those larger than
// MinSubjectRatio sorted by mean saliency, best first.
func (d *SubjectDetector) regions(s *mat.Dense) []Region {
	rows, cols := s.Dims()
	in := integral(s)
	minArea := float64(rows*cols) * d.config.MinSubjectRatio
	short := min(rows, cols)

	var regions []Region
	for _, div := range []int{8, 6, 4, 3, 2} {
		size := short / div
		if size < 4 || float64(size*size) < minArea {
			continue
		}
		step := max(size/8, 1)
		for y := 0; y+size <= rows; y += step {
			for x := 0; x+size <= cols; x += step {
				sum := in.At(y+size, x+size) - in.At(y, x+size) - in.At(y+size, x) + in.At(y, x)
				regions = append(regions, Region{X: x, Y: y, Width: size, Height: size, Score: sum / float64(size*size)})
			}
		}
	}

	sort.SliceStable(regions, func(i, j int) bool {
		return regions[i].Score > regions[j].Score
	})
	return regions
}

// DominantColors returns up to five frequent colors of the region, most
// frequent first.
func (d *SubjectDetector) DominantColors(img image.Image, region Region) []colorful.Color {
	bounds := img.Bounds()
	r := image.Rect(region.X, region.Y, region.X+region.Width, region.Y+region.Height).
		Add(bounds.Min).
		Intersect(bounds)

	counts := make(map[uint32]int)
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			cr, cg, cb, _ := img.At(x, y).RGBA()
			// Quantize colors to reduce noise
			key := ((cr>>8)&0xf0)<<16 | ((cg>>8)&0xf0)<<8 | (cb>>8)&0xf0
			counts[key]++
		}
	}

	keys := make([]uint32, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > 5 {
		keys = keys[:5]
	}

	colors := make([]colorful.Color, 0, len(keys))
	for _, k := range keys {
		colors = append(colors, colorful.Color{
			R: float64((k>>16)&0xff) / 255,
			G: float64((k>>8)&0xff) / 255,
			B: float64(k&0xff) / 255,
		})
	}
	return colors
}

// AnalyzeImage locates the salient region of a base64 image. model and
// prompt are ignored.
func (d *SubjectDetector) AnalyzeImage(ctx context.Context, model, prompt, imgB64 string) (*types.AnalysisResult, error) {
	img, err := decode(imgB64)
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	region, confidence, ok := d.Locate(img)
	if !ok {
		return &types.AnalysisResult{
			Primary:     types.Primary{Label: client.FallbackLabel, Box: types.Box{X: 0.25, Y: 0.25, W: 0.5, H: 0.5}, Cx: 0.5, Cy: 0.5},
			Description: "no distinct subject",
			Tags:        []string{"generic"},
		}, nil
	}

	b := img.Bounds()
	w, h := float64(b.Dx()), float64(b.Dy())
	cx, cy := region.Center()
	tags := make([]string, 0, 5)
	for _, c := range d.DominantColors(img, region) {
		tags = append(tags, c.Hex())
	}

	return &types.AnalysisResult{
		Primary: types.Primary{
			Label:      Label,
			Confidence: confidence,
			Box: types.Box{
				X: float64(region.X) / w,
				Y: float64(region.Y) / h,
				W: float64(region.Width) / w,
				H: float64(region.Height) / h,
			},
			Cx: float64(cx) / w,
			Cy: float64(cy) / h,
		},
		Description: fmt.Sprintf("salient %dx%d region", region.Width, region.Height),
		Tags:        tags,
	}, nil
}

// SimpleQuery describes the salient region in a sentence.
func (d *SubjectDetector) SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	result, err := d.AnalyzeImage(ctx, model, prompt, imgB64)
	if err != nil {
		return "", err
	}
	if result.Primary.Label == client.FallbackLabel {
		return "No region stands out.", nil
	}
	p := result.Primary
	return fmt.Sprintf("A region at %.2f,%.2f of size %.2fx%.2f stands out (confidence %.2f), colors %s.",
		p.Box.X, p.Box.Y, p.Box.W, p.Box.H, p.Confidence, strings.Join(result.Tags, " ")), nil
}

func decode(imgB64 string) (image.Image, error) {
	data, err := base64.StdEncoding.DecodeString(imgB64)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 image: %w", err)
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}
	return img, nil
}
