package detection

import (
	"context"
	"strings"

	"github.com/menta2k/image-marker/pkg/client"
	"github.com/menta2k/image-marker/pkg/cropper"
	"github.com/menta2k/image-marker/pkg/types"
	"github.com/menta2k/image-marker/pkg/viewport"
)

// SimpleTestPrompt for testing if the model can see images
const SimpleTestPrompt = `What do you see in this image? Describe it briefly.`

// DefaultPrompt asks for the box of the single most prominent subject
const DefaultPrompt = `You are an image subject locator.

Return JSON only:
{
  "primary": {
    "label": "string",
    "confidence": 0.0,
    "box": {"x": 0.0, "y": 0.0, "w": 0.0, "h": 0.0},
    "cx": 0.0,
    "cy": 0.0
  },
  "description": "short neutral sentence (≤ 20 words)",
  "tags": ["tag1", "tag2", "tag3"]
}

HARD RULES
- All coordinates are normalized to [0,1] (NOT pixels), origin at the top-left corner.
- The box should tightly include the visually dominant subject (prefer people/vehicles/animals; else the most central salient object).
- label is one or two lowercase words naming the subject.
- Description must be brief and factual. Do not guess real identities.
- Tags: lowercase, concise, no punctuation or duplicates.
- If no subject is found, return:
  {
    "primary":{"label":"none","confidence":0.0,"box":{"x":0.25,"y":0.25,"w":0.50,"h":0.50},"cx":0.5,"cy":0.5},
    "description":"no distinct subject",
    "tags":["generic"]
  }
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// DefaultMinConfidence is the confidence below which no mark is proposed.
const DefaultMinConfidence = 0.2

// Detector handles image subject detection using vision models
type Detector struct {
	client        client.VisionClient
	minConfidence float64
}

// NewDetector creates a new detector with a vision client
func NewDetector(c client.VisionClient) *Detector {
	return &Detector{client: c, minConfidence: DefaultMinConfidence}
}

// WithMinConfidence sets the confidence threshold of Suggest.
func (d *Detector) WithMinConfidence(v float64) *Detector {
	d.minConfidence = v
	return d
}

// DetectSubject analyzes an image and detects the primary subject
func (d *Detector) DetectSubject(ctx context.Context, model, imageB64 string) (*types.AnalysisResult, error) {
	result, err := d.DetectSubjectWithPrompt(ctx, model, imageB64, DefaultPrompt)
	if err != nil {
		return nil, err
	}
	return d.validateResult(result), nil
}

// DetectSubjectWithPrompt analyzes an image with a custom prompt
func (d *Detector) DetectSubjectWithPrompt(ctx context.Context, model, imageB64, prompt string) (*types.AnalysisResult, error) {
	result, err := d.client.AnalyzeImage(ctx, model, prompt, imageB64)
	if err != nil {
		return nil, err
	}

	result.Primary.Box = normalizeBox(result.Primary.Box)
	result.Tags = normalizeTags(result.Tags)

	return result, nil
}

// TestVision tests if the model can actually see the image with a simple prompt
func (d *Detector) TestVision(ctx context.Context, model, imageB64 string) (string, error) {
	return d.client.SimpleQuery(ctx, model, SimpleTestPrompt, imageB64)
}

// Suggest detects the primary subject and turns it into a mark for a
// width x height image. ok is false when the model found nothing usable.
func (d *Detector) Suggest(ctx context.Context, model, imageB64 string, width, height int, box cropper.BoxConfig) (types.Mark, *types.AnalysisResult, bool, error) {
	result, err := d.DetectSubject(ctx, model, imageB64)
	if err != nil {
		return types.Mark{}, nil, false, err
	}
	if result.Primary.Confidence < d.minConfidence {
		return types.Mark{}, result, false, nil
	}
	mark, ok := MarkFromResult(result, width, height, box)
	return mark, result, ok, nil
}

// MarkFromResult converts the normalized subject box into an image-space
// mark with the label as note and the box derived with cfg.
func MarkFromResult(result *types.AnalysisResult, width, height int, cfg cropper.BoxConfig) (types.Mark, bool) {
	if result == nil || strings.EqualFold(result.Primary.Label, client.FallbackLabel) {
		return types.Mark{}, false
	}
	rect := result.Primary.Box.ToImage(width, height)
	if rect.Empty() {
		return types.Mark{}, false
	}
	box := cropper.DeriveBox(rect, viewport.ImageBounds(width, height), cfg)
	return types.Mark{
		Rect: &rect,
		Box:  &box,
		Note: noteFromLabel(result.Primary.Label),
	}, true
}

// validateResult marks results that look like fallbacks as "none"
func (d *Detector) validateResult(result *types.AnalysisResult) *types.AnalysisResult {
	if strings.EqualFold(result.Primary.Label, client.FallbackLabel) {
		return result
	}

	fallbackIndicators := []string{"unclear", "empty", "parse", "error", "fallback", "non-json"}
	label := strings.ToLower(result.Primary.Label)
	for _, indicator := range fallbackIndicators {
		if strings.Contains(label, indicator) {
			result.Primary.Label = client.FallbackLabel
			result.Primary.Confidence = 0.0
			break
		}
	}

	return result
}

// noteFromLabel makes a label safe for the single note field
func noteFromLabel(label string) string {
	return strings.Join(strings.Fields(strings.ToLower(label)), "-")
}

// clamp ensures a value is within the given bounds
func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// normalizeBox clamps the box into the unit square
func normalizeBox(b types.Box) types.Box {
	x := clamp(b.X, 0, 1)
	y := clamp(b.Y, 0, 1)
	return types.Box{
		X: x,
		Y: y,
		W: clamp(b.W, 0, 1-x),
		H: clamp(b.H, 0, 1-y),
	}
}

// normalizeTags ensures tags are cleaned and limited to 5 entries
func normalizeTags(tags []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, 5)
	for _, t := range tags {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" {
			continue
		}
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
		if len(out) == 5 {
			break
		}
	}
	return out
}
