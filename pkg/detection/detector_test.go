package detection

import (
	"context"
	"errors"
	"testing"

	"github.com/menta2k/image-marker/pkg/cropper"
	"github.com/menta2k/image-marker/pkg/types"
	"github.com/menta2k/image-marker/pkg/viewport"
)

type fakeClient struct {
	result *types.AnalysisResult
	err    error
	prompt string
}

func (f *fakeClient) SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	f.prompt = prompt
	return "a picture", f.err
}

func (f *fakeClient) AnalyzeImage(ctx context.Context, model, prompt, imgB64 string) (*types.AnalysisResult, error) {
	f.prompt = prompt
	if f.err != nil {
		return nil, f.err
	}
	r := *f.result
	return &r, nil
}

func result(label string, confidence float64, box types.Box) *types.AnalysisResult {
	return &types.AnalysisResult{
		Primary: types.Primary{Label: label, Confidence: confidence, Box: box},
		Tags:    []string{"A", "a", " b ", "", "c", "d", "e", "f"},
	}
}

func TestDetectSubjectNormalizes(t *testing.T) {
	fc := &fakeClient{result: result("Dog", 0.9, types.Box{X: -0.1, Y: 0.5, W: 0.5, H: 0.8})}
	d := NewDetector(fc)

	res, err := d.DetectSubject(context.Background(), "m", "img")
	if err != nil {
		t.Fatalf("DetectSubject failed: %v", err)
	}
	if fc.prompt != DefaultPrompt {
		t.Error("Expected the default prompt")
	}
	if res.Primary.Box != (types.Box{X: 0, Y: 0.5, W: 0.5, H: 0.5}) {
		t.Errorf("Expected box clamped into the image, got %+v", res.Primary.Box)
	}
	expectedTags := []string{"a", "b", "c", "d", "e"}
	if len(res.Tags) != len(expectedTags) {
		t.Fatalf("Expected tags %v, got %v", expectedTags, res.Tags)
	}
	for i := range expectedTags {
		if res.Tags[i] != expectedTags[i] {
			t.Errorf("Tag %d: expected %q, got %q", i, expectedTags[i], res.Tags[i])
		}
	}
}

func TestDetectSubjectFlagsFallbacks(t *testing.T) {
	fc := &fakeClient{result: result("unclear image", 0.4, types.Box{W: 1, H: 1})}
	res, err := NewDetector(fc).DetectSubject(context.Background(), "m", "img")
	if err != nil {
		t.Fatal(err)
	}
	if res.Primary.Label != "none" || res.Primary.Confidence != 0 {
		t.Errorf("Expected fallback to be relabelled none, got %+v", res.Primary)
	}
}

func TestSuggest(t *testing.T) {
	fc := &fakeClient{result: result("Red Car", 0.8, types.Box{X: 0.1, Y: 0.2, W: 0.5, H: 0.25})}
	d := NewDetector(fc)

	mark, res, ok, err := d.Suggest(context.Background(), "m", "img", 200, 100, cropper.BoxConfig{Ratio: 1})
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	if !ok || res == nil {
		t.Fatal("Expected a suggestion")
	}
	if *mark.Rect != viewport.NewImageRect(20, 20, 100, 25) {
		t.Errorf("Unexpected rect %v", *mark.Rect)
	}
	// 100x25 at ratio 1 becomes 100x100, limited to the 100 px image height
	if *mark.Box != viewport.NewImageRect(20, 0, 100, 100) {
		t.Errorf("Unexpected box %v", *mark.Box)
	}
	if mark.Note != "red-car" {
		t.Errorf("Expected note red-car, got %q", mark.Note)
	}
}

func TestSuggestNothing(t *testing.T) {
	tests := []struct {
		name   string
		result *types.AnalysisResult
	}{
		{"none label", result("none", 0, types.Box{X: 0.25, Y: 0.25, W: 0.5, H: 0.5})},
		{"low confidence", result("cat", 0.05, types.Box{X: 0.25, Y: 0.25, W: 0.5, H: 0.5})},
		{"empty box", result("cat", 0.9, types.Box{X: 0.5, Y: 0.5})},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDetector(&fakeClient{result: tt.result})
			_, _, ok, err := d.Suggest(context.Background(), "m", "img", 100, 100, cropper.BoxConfig{})
			if err != nil {
				t.Fatal(err)
			}
			if ok {
				t.Error("Expected no suggestion")
			}
		})
	}
}

func TestSuggestError(t *testing.T) {
	boom := errors.New("backend down")
	d := NewDetector(&fakeClient{err: boom})
	if _, _, _, err := d.Suggest(context.Background(), "m", "img", 10, 10, cropper.BoxConfig{}); !errors.Is(err, boom) {
		t.Errorf("Expected backend error, got %v", err)
	}
}

func TestWithMinConfidence(t *testing.T) {
	fc := &fakeClient{result: result("cat", 0.05, types.Box{X: 0, Y: 0, W: 1, H: 1})}
	d := NewDetector(fc).WithMinConfidence(0)
	_, _, ok, err := d.Suggest(context.Background(), "m", "img", 10, 10, cropper.BoxConfig{})
	if err != nil || !ok {
		t.Errorf("Expected suggestion with a zero threshold, got ok=%v err=%v", ok, err)
	}
}

func TestTestVision(t *testing.T) {
	fc := &fakeClient{}
	answer, err := NewDetector(fc).TestVision(context.Background(), "m", "img")
	if err != nil || answer != "a picture" {
		t.Errorf("Unexpected answer %q, %v", answer, err)
	}
	if fc.prompt != SimpleTestPrompt {
		t.Error("Expected the simple test prompt")
	}
}
