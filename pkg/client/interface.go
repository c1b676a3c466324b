package client

import (
	"context"

	"github.com/menta2k/image-marker/pkg/types"
)

// VisionClient is a vision model backend used to propose selections.
type VisionClient interface {
	SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error)
	AnalyzeImage(ctx context.Context, model, prompt, imgB64 string) (*types.AnalysisResult, error)
}
