package gemini

import (
	"context"
	"encoding/base64"
	"fmt"
	"os"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"github.com/menta2k/image-marker/pkg/client"
	"github.com/menta2k/image-marker/pkg/types"
)

// APIKeyEnv names the environment variable holding the API key.
const APIKeyEnv = "GEMINI_API_KEY"

// Client is a VisionClient backed by Google Gemini
type Client struct {
	apiKey      string
	temperature float32
}

var _ client.VisionClient = (*Client)(nil)

// NewClient returns a Gemini client. An empty apiKey is read from GEMINI_API_KEY.
func NewClient(apiKey string) (*Client, error) {
	if apiKey == "" {
		apiKey = os.Getenv(APIKeyEnv)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%s environment variable not set", APIKeyEnv)
	}
	return &Client{apiKey: apiKey, temperature: 0.2}, nil
}

// SimpleQuery sends prompt and image and returns the text answer
func (c *Client) SimpleQuery(ctx context.Context, model, prompt, imgB64 string) (string, error) {
	return c.generate(ctx, model, prompt, imgB64, false)
}

// AnalyzeImage asks the model for the primary subject of an image
func (c *Client) AnalyzeImage(ctx context.Context, model, prompt, imgB64 string) (*types.AnalysisResult, error) {
	text, err := c.generate(ctx, model, prompt, imgB64, true)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty response from Gemini")
	}
	return client.ParseAnalysisResult(text), nil
}

func (c *Client) generate(ctx context.Context, model, prompt, imgB64 string, jsonOut bool) (string, error) {
	imgBytes, err := base64.StdEncoding.DecodeString(imgB64)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64 image: %w", err)
	}

	gc, err := genai.NewClient(ctx, option.WithAPIKey(c.apiKey))
	if err != nil {
		return "", fmt.Errorf("failed to create new gemini client: %w", err)
	}
	defer gc.Close()

	m := gc.GenerativeModel(model)
	m.SetTemperature(c.temperature)
	if jsonOut {
		m.ResponseMIMEType = "application/json"
	}

	resp, err := m.GenerateContent(ctx, genai.ImageData(imageFormat(imgBytes), imgBytes), genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", err)
	}
	return responseText(resp)
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("no candidates returned from Gemini")
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("empty content returned from Gemini")
	}

	var sb strings.Builder
	for _, part := range candidate.Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			sb.WriteString(string(txt))
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("unexpected response format from Gemini")
	}
	return sb.String(), nil
}

// imageFormat sniffs the genai image format ("jpeg", "png", "webp") from
// the encoded bytes.
func imageFormat(data []byte) string {
	switch {
	case len(data) >= 8 && string(data[:8]) == "\x89PNG\r\n\x1a\n":
		return "png"
	case len(data) >= 12 && string(data[:4]) == "RIFF" && string(data[8:12]) == "WEBP":
		return "webp"
	default:
		return "jpeg"
	}
}
