package client

import (
	"testing"
)

func TestSanitizeModelJSON(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"plain", `{"a": 1}`, `{"a": 1}`},
		{"fenced", "```json\n{\"a\": 1}\n```", `{"a": 1}`},
		{"trailing comma", `{"a": [1, 2,], }`, `{"a": [1, 2] }`},
		{"block comment", `{"a": /* one */ 1}`, `{"a":  1}`},
		{"prose around", `Sure! {"a": 1} Hope that helps`, `{"a": 1}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeModelJSON(tt.input); got != tt.expected {
				t.Errorf("Expected %q, got %q", tt.expected, got)
			}
		})
	}
}

func TestParseAnalysisResult(t *testing.T) {
	raw := "```json\n" + `{
  "primary": {"label": "dog", "confidence": 0.9, "box": {"x": 0.1, "y": 0.2, "w": 0.3, "h": 0.4}, "cx": 0.25, "cy": 0.4},
  "description": "a dog on grass",
  "tags": ["dog", "grass",],
}` + "\n```"

	result := ParseAnalysisResult(raw)
	if result.Primary.Label != "dog" {
		t.Fatalf("Expected label dog, got %q", result.Primary.Label)
	}
	if result.Primary.Box.W != 0.3 || result.Primary.Box.H != 0.4 {
		t.Errorf("Unexpected box %+v", result.Primary.Box)
	}
	if len(result.Tags) != 2 {
		t.Errorf("Expected 2 tags, got %v", result.Tags)
	}
}

func TestParseAnalysisResultFallback(t *testing.T) {
	for _, raw := range []string{"I see a cat.", `{"primary": {"label": 3}}`, ""} {
		result := ParseAnalysisResult(raw)
		if result.Primary.Label != FallbackLabel {
			t.Errorf("Expected fallback for %q, got %q", raw, result.Primary.Label)
		}
	}
}
