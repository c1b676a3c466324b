package viewport

import (
	"math"
	"math/rand"
	"testing"

	"github.com/menta2k/image-marker/pkg/geometry"
)

func TestToImageFlipsDragIntoImageSpace(t *testing.T) {
	v := Viewport{Fit: geometry.Fit{Scale: 1}, Height: 800}
	got := v.ToImage(NewWindowRect(100, 300, 50, -40))
	expected := NewImageRect(100, 500, 50, 40)
	if got != expected {
		t.Errorf("Expected %v, got %v", expected, got)
	}
}

func TestToImageLetterboxed(t *testing.T) {
	// 1000x500 image in an 800x800 window: scale 0.8, 200px bands top and bottom
	v := New(1000, 500, 800, 800)

	// Top-left corner of the shown image, as seen from the bottom-left origin
	// the image top edge sits at y = 800 - 200 = 600.
	got := v.ToImage(NewWindowRect(0, 600, 80, -40))
	expected := NewImageRect(0, 0, 100, 50)
	if got != expected {
		t.Errorf("Expected %v, got %v", expected, got)
	}

	// Drag started at the bottom-right corner of the image and went up-left.
	got = v.ToImage(NewWindowRect(800, 200, -400, 200))
	expected = NewImageRect(500, 250, 500, 250)
	if got != expected {
		t.Errorf("Expected %v, got %v", expected, got)
	}
}

func TestToImagePillarboxed(t *testing.T) {
	// 500x1000 image in an 800x800 window: scale 0.8, 200px bands left and right
	v := New(500, 1000, 800, 800)
	got := v.ToImage(NewWindowRect(200, 800, 400, -800))
	expected := NewImageRect(0, 0, 500, 1000)
	if got != expected {
		t.Errorf("Expected %v, got %v", expected, got)
	}
}

func TestToImageMatchesDirectFormula(t *testing.T) {
	// left - offsetX, H - top - offsetY, w, h all divided by scale
	v := New(1024, 683, 900, 700)
	win := NewWindowRect(150, 420, 230, -170)
	left := math.Min(win.X, win.X+win.W)
	top := math.Max(win.Y, win.Y+win.H)
	k := 1 / v.Fit.Scale
	expected := NewImageRect(
		math.Round((left-v.Fit.OffsetX)*k),
		math.Round((v.Height-top-v.Fit.OffsetY)*k),
		math.Round(math.Abs(win.W)*k),
		math.Round(math.Abs(win.H)*k),
	)
	if got := v.ToImage(win); got != expected {
		t.Errorf("Expected %v, got %v", expected, got)
	}
}

func TestToWindowDrawsWhereTheImageIs(t *testing.T) {
	v := New(1000, 500, 800, 800)
	got := v.ToWindow(ImageBounds(1000, 500))
	area := v.ImageArea(1000, 500)
	if got != area {
		t.Errorf("Expected full image to cover %v, got %v", area, got)
	}
}

func TestRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	windows := [][2]float64{{800, 800}, {1280, 720}, {300, 900}, {1920, 1080}, {200, 150}}
	for i := 0; i < 2000; i++ {
		imgW := float64(rng.Intn(4000) + 1)
		imgH := float64(rng.Intn(4000) + 1)
		win := windows[rng.Intn(len(windows))]
		v := New(imgW, imgH, win[0], win[1])

		r := NewImageRect(
			float64(rng.Intn(int(imgW))),
			float64(rng.Intn(int(imgH))),
			float64(rng.Intn(500)),
			float64(rng.Intn(500)),
		)
		back := v.ToImage(v.ToWindow(r))
		if math.Abs(back.X-r.X) > 1 || math.Abs(back.Y-r.Y) > 1 ||
			math.Abs(back.W-r.W) > 1 || math.Abs(back.H-r.H) > 1 {
			t.Fatalf("round trip of %v through %v gave %v", r, v, back)
		}
	}
}

func TestRoundTripArbitraryFit(t *testing.T) {
	fits := []geometry.Fit{
		{Scale: 1},
		{Scale: 0.05, OffsetX: 13.5},
		{Scale: 3.7, OffsetY: 91.25},
		{Scale: 0.333, OffsetX: 7, OffsetY: 7},
	}
	r := NewImageRect(17, 29, 311, 5)
	for _, fit := range fits {
		v := Viewport{Fit: fit, Height: 640}
		back := v.ToImage(v.ToWindow(r))
		if back != r {
			t.Errorf("round trip through %v: expected %v, got %v", v, r, back)
		}
	}
}
