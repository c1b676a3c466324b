package geometry

import (
	"testing"

	"gonum.org/v1/gonum/floats/scalar"
)

func TestNormalize(t *testing.T) {
	tests := []struct {
		name     string
		rect     Rect
		expected Rect
	}{
		{"already normalized", NewRect(10, 20, 30, 40), NewRect(10, 20, 30, 40)},
		{"negative width", NewRect(50, 20, -30, 40), NewRect(20, 20, 30, 40)},
		{"negative height", NewRect(100, 300, 50, -40), NewRect(100, 260, 50, 40)},
		{"both negative", NewRect(10, 10, -10, -10), NewRect(0, 0, 10, 10)},
		{"zero size", NewRect(5, 5, 0, 0), NewRect(5, 5, 0, 0)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.rect.Normalize()
			if got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
			if again := got.Normalize(); again != got {
				t.Errorf("Normalize not idempotent: %v then %v", got, again)
			}
		})
	}
}

func TestShift(t *testing.T) {
	got := NewRect(10, 20, 80, 50).Shift(-10, -20)
	if got.X != 0 || got.Y != 0 {
		t.Errorf("Expected origin (0,0), got (%g,%g)", got.X, got.Y)
	}
	if got.W != 80 || got.H != 50 {
		t.Errorf("Shift changed size: %v", got)
	}
}

func TestFlipVertical(t *testing.T) {
	r := NewRect(10, 20, 80, 50)
	got := r.FlipVertical(100)
	if got.X != 10 || got.Y != 30 {
		t.Errorf("Expected (10,30), got (%g,%g)", got.X, got.Y)
	}
	if back := got.FlipVertical(100); back != r {
		t.Errorf("FlipVertical is not an involution: %v -> %v", r, back)
	}
}

func TestScaleByRounding(t *testing.T) {
	tests := []struct {
		name     string
		rect     Rect
		k        float64
		expected Rect
	}{
		{"half rounds away from zero", NewRect(2.5, 0.5, 1.5, 3.5), 1, NewRect(3, 1, 2, 4)},
		{"negative half rounds away from zero", NewRect(-2.5, -0.5, 1, 1), 1, NewRect(-3, -1, 1, 1)},
		{"below half rounds down", NewRect(1.49, 0, 0, 0), 1, NewRect(1, 0, 0, 0)},
		{"shrink", NewRect(10, 20, 30, 40), 0.8, NewRect(8, 16, 24, 32)},
		{"grow", NewRect(8, 16, 24, 32), 1.25, NewRect(10, 20, 30, 40)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rect.ScaleBy(tt.k); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestPadByWidth(t *testing.T) {
	got := NewRect(0, 0, 100, 50).PadByWidth(0.2)
	// 2 * 100 * 0.2 = 40 on both axes
	if got.W != 140 || got.H != 90 {
		t.Errorf("Expected 140x90, got %gx%g", got.W, got.H)
	}
	if got.X != 0 || got.Y != 0 {
		t.Errorf("PadByWidth moved the origin: %v", got)
	}
}

func TestLimit(t *testing.T) {
	got := NewRect(0, 0, 150, 40).Limit(100, 100)
	if got.W != 100 || got.H != 40 {
		t.Errorf("Expected 100x40, got %gx%g", got.W, got.H)
	}
}

func TestCenterOn(t *testing.T) {
	got := NewRect(0, 0, 40, 40).CenterOn(NewRect(10, 10, 40, 20))
	if got != NewRect(10, 0, 40, 40) {
		t.Errorf("Expected (10,0 40x40), got %v", got)
	}
}

func TestMoveInside(t *testing.T) {
	container := NewRect(0, 0, 100, 100)
	tests := []struct {
		name     string
		rect     Rect
		expected Rect
	}{
		{"inside untouched", NewRect(10, 10, 20, 20), NewRect(10, 10, 20, 20)},
		{"past left and top", NewRect(-5, -7, 20, 20), NewRect(0, 0, 20, 20)},
		{"past right and bottom", NewRect(90, 95, 20, 20), NewRect(80, 80, 20, 20)},
		{"wider than container", NewRect(30, 10, 120, 20), NewRect(0, 10, 120, 20)},
		{"taller than container", NewRect(30, 50, 20, 130), NewRect(30, 0, 20, 130)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.rect.MoveInside(container); got != tt.expected {
				t.Errorf("Expected %v, got %v", tt.expected, got)
			}
		})
	}
}

func TestContainRatio(t *testing.T) {
	tests := []struct {
		w, h, ratio  float64
		wantW, wantH float64
	}{
		{40, 20, 1, 40, 40},
		{20, 40, 1, 40, 40},
		{100, 100, 16.0 / 9.0, 177.77777777777777, 100},
		{160, 90, 0.75, 160, 213.33333333333334},
		{30, 20, 1.5, 30, 20},
	}

	for _, tt := range tests {
		w, h := ContainRatio(tt.w, tt.h, tt.ratio)
		if !scalar.EqualWithinAbs(w, tt.wantW, 1e-9) || !scalar.EqualWithinAbs(h, tt.wantH, 1e-9) {
			t.Errorf("ContainRatio(%g, %g, %g): expected %gx%g, got %gx%g",
				tt.w, tt.h, tt.ratio, tt.wantW, tt.wantH, w, h)
		}
	}
}

func TestContainRatioProperties(t *testing.T) {
	ratios := []float64{0.25, 0.5, 0.75, 1, 4.0 / 3.0, 1.5, 16.0 / 9.0, 3}
	for w := 1.0; w <= 400; w += 37 {
		for h := 1.0; h <= 400; h += 41 {
			for _, ratio := range ratios {
				cw, ch := ContainRatio(w, h, ratio)
				if !scalar.EqualWithinRel(cw/ch, ratio, 1e-9) {
					t.Fatalf("ContainRatio(%g, %g, %g) ratio %g", w, h, ratio, cw/ch)
				}
				if cw < w || ch < h {
					t.Fatalf("ContainRatio(%g, %g, %g) = %gx%g does not contain input", w, h, ratio, cw, ch)
				}
				if cw != w && ch != h {
					t.Fatalf("ContainRatio(%g, %g, %g) = %gx%g changed both dimensions", w, h, ratio, cw, ch)
				}
			}
		}
	}
}

func TestContains(t *testing.T) {
	outer := NewRect(0, 0, 100, 100)
	if !outer.Contains(NewRect(0, 0, 100, 100)) {
		t.Error("Expected rect to contain itself")
	}
	if outer.Contains(NewRect(50, 50, 60, 10)) {
		t.Error("Expected overflowing rect not to be contained")
	}
}

func TestEmpty(t *testing.T) {
	if !NewRect(3, 3, 0, 10).Empty() {
		t.Error("Expected zero width to be empty")
	}
	if NewRect(3, 3, -1, 10).Empty() {
		t.Error("Expected negative width not to be empty")
	}
}
