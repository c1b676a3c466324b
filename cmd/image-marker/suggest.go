package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/spf13/cobra"

	"github.com/menta2k/image-marker/internal/config"
	"github.com/menta2k/image-marker/pkg/client"
	"github.com/menta2k/image-marker/pkg/cropper"
	"github.com/menta2k/image-marker/pkg/detection"
	"github.com/menta2k/image-marker/pkg/gemini"
	"github.com/menta2k/image-marker/pkg/llamacpp"
	"github.com/menta2k/image-marker/pkg/marks"
	"github.com/menta2k/image-marker/pkg/ollama"
	"github.com/menta2k/image-marker/pkg/processing"
	"github.com/menta2k/image-marker/pkg/source"
	"github.com/menta2k/image-marker/pkg/vision"
)

// Default models per backend
var defaultModels = map[string]string{
	"ollama":   "qwen2.5vl:7b",
	"gemini":   "gemini-2.0-flash",
	"llamacpp": "default",
	"saliency": "local",
}

type suggestOptions struct {
	output        string
	backend       string
	url           string
	model         string
	sendSize      int
	sendQuality   int
	minConfidence float64
	concurrency   int
	boxRatio      string
}

func newSuggestCmd(global *globalOptions) *cobra.Command {
	var opts suggestOptions

	cmd := &cobra.Command{
		Use:   "suggest IMAGES_DIR",
		Short: "Pre-annotate images with a vision model",
		Long: `Ask a vision model for the primary subject of every image and write its
box as a marks file. Review and correct the result interactively with

  image-marker IMAGES_DIR -m suggested.txt -o suggested.txt

Images where the model finds no subject, or answers below --min-confidence,
get no mark.`,
		Example: `  # Local Ollama
  image-marker suggest ./photos -o suggested.txt

  # Gemini (GEMINI_API_KEY from the environment or .env)
  image-marker suggest ./photos -o suggested.txt --backend gemini

  # No model at all: pick the most salient region
  image-marker suggest ./photos -o suggested.txt --backend saliency

  # llama-server with four requests in flight
  image-marker suggest ./photos -o suggested.txt --backend llamacpp --url http://localhost:8080 -c 4`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(global.configPath)
			if err != nil {
				return err
			}
			applySuggestFlags(cmd, cfg, &opts)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			box, err := cfg.BoxConfig()
			if err != nil {
				return err
			}

			vc, err := newVisionClient(cfg.Suggest.Backend, cfg.Suggest.URL)
			if err != nil {
				return err
			}
			detector := detection.NewDetector(vc).WithMinConfidence(cfg.Suggest.MinConfidence)

			src, err := source.FromDir(args[0])
			if err != nil {
				return err
			}

			entries, err := runSuggest(cmd.Context(), detector, src, opts, box, slog.Default())
			if err != nil {
				return err
			}
			if err := marks.WriteFile(opts.output, entries, marks.FieldRect); err != nil {
				return fmt.Errorf("failed to write suggestions: %w", err)
			}
			slog.Info("Suggestions saved", "output", opts.output, "marks", len(entries), "images", src.Len())
			return nil
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "file receiving the suggested marks")
	cmd.Flags().StringVar(&opts.backend, "backend", "", "vision backend: ollama, gemini, llamacpp or saliency (default ollama)")
	cmd.Flags().StringVar(&opts.url, "url", "", "backend server URL (ollama: OLLAMA_HOST, llamacpp: http://localhost:8080)")
	cmd.Flags().StringVar(&opts.model, "model", "", "model name (defaults to the backend's default)")
	cmd.Flags().IntVar(&opts.sendSize, "send-size", 0, "max long side of the image sent to the model, 0 = original (default 1024)")
	cmd.Flags().IntVar(&opts.sendQuality, "send-quality", 0, "JPEG quality of the image sent to the model (default 85)")
	cmd.Flags().Float64Var(&opts.minConfidence, "min-confidence", 0, "ignore answers below this confidence (default 0.2)")
	cmd.Flags().IntVarP(&opts.concurrency, "concurrency", "c", 1, "number of images analyzed in parallel")
	cmd.Flags().StringVarP(&opts.boxRatio, "box-ratio", "r", "", "box aspect ratio for the suggested marks")
	cmd.MarkFlagRequired("output")

	return cmd
}

// applySuggestFlags merges config and flags into opts.
func applySuggestFlags(cmd *cobra.Command, cfg *config.Config, opts *suggestOptions) {
	flags := cmd.Flags()
	if flags.Changed("backend") {
		cfg.Suggest.Backend = opts.backend
	}
	if flags.Changed("url") {
		cfg.Suggest.URL = opts.url
	}
	if flags.Changed("model") {
		cfg.Suggest.Model = opts.model
	}
	if flags.Changed("send-size") {
		cfg.Suggest.SendSize = opts.sendSize
	}
	if flags.Changed("send-quality") {
		cfg.Suggest.SendQuality = opts.sendQuality
	}
	if flags.Changed("min-confidence") {
		cfg.Suggest.MinConfidence = opts.minConfidence
	}
	if flags.Changed("box-ratio") {
		cfg.Marker.BoxRatio = opts.boxRatio
	}
	if cfg.Suggest.Model == "" {
		cfg.Suggest.Model = defaultModels[cfg.Suggest.Backend]
	}

	opts.backend = cfg.Suggest.Backend
	opts.model = cfg.Suggest.Model
	opts.sendSize = cfg.Suggest.SendSize
	opts.sendQuality = cfg.Suggest.SendQuality
}

// newVisionClient creates the client for backend.
func newVisionClient(backend, url string) (client.VisionClient, error) {
	switch backend {
	case "ollama":
		c, err := ollama.NewClient(url)
		if err != nil {
			return nil, fmt.Errorf("failed to create Ollama client: %w", err)
		}
		return c, nil
	case "gemini":
		c, err := gemini.NewClient("")
		if err != nil {
			return nil, fmt.Errorf("failed to create Gemini client: %w", err)
		}
		return c, nil
	case "llamacpp":
		c, err := llamacpp.NewClient(url)
		if err != nil {
			return nil, fmt.Errorf("failed to create llama.cpp client: %w", err)
		}
		return c, nil
	case "saliency":
		return vision.New(), nil
	default:
		return nil, fmt.Errorf("unknown backend: %s (use ollama, gemini, llamacpp or saliency)", backend)
	}
}

type suggestion struct {
	entry marks.Entry
	ok    bool
}

// runSuggest analyzes every image of src and returns the proposed marks in
// source order. A failing image is logged and skipped.
func runSuggest(ctx context.Context, detector *detection.Detector, src *source.Source, opts suggestOptions, box cropper.BoxConfig, logger *slog.Logger) ([]marks.Entry, error) {
	concurrency := opts.concurrency
	if concurrency < 1 {
		concurrency = 1
	}

	processor := processing.NewProcessor()
	results := make([]suggestion, src.Len())

	var wg sync.WaitGroup
	semaphore := make(chan struct{}, concurrency)

	for i, path := range src.Paths() {
		wg.Add(1)
		go func(idx int, path string) {
			defer wg.Done()
			semaphore <- struct{}{}        // Acquire
			defer func() { <-semaphore }() // Release

			if ctx.Err() != nil {
				return
			}
			logger.Info("Analyzing image", "path", path, "progress", fmt.Sprintf("%d/%d", idx+1, src.Len()))
			if err := src.Validate(idx); err != nil {
				logger.Warn("Skipping image", "path", path, "error", err)
				return
			}

			img, err := processor.LoadImage(path)
			if err != nil {
				logger.Warn("Failed to load image", "path", path, "error", err)
				return
			}
			b := img.Bounds()
			imgB64, err := processor.PrepareImageForModel(img, "jpg", opts.sendSize, opts.sendQuality)
			if err != nil {
				logger.Warn("Failed to encode image", "path", path, "error", err)
				return
			}

			mark, result, ok, err := detector.Suggest(ctx, opts.model, imgB64, b.Dx(), b.Dy(), box)
			if err != nil {
				logger.Warn("Detection failed", "path", path, "error", err)
				return
			}
			if !ok {
				label := ""
				if result != nil {
					label = result.Primary.Label
				}
				logger.Info("No subject found", "path", path, "label", label)
				return
			}
			logger.Debug("Suggested mark",
				"path", path,
				"label", result.Primary.Label,
				"confidence", result.Primary.Confidence,
				"rect", *mark.Rect)
			results[idx] = suggestion{entry: marks.Entry{Path: path, Mark: mark}, ok: true}
		}(i, path)
	}

	wg.Wait()
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries := make([]marks.Entry, 0, len(results))
	for _, r := range results {
		if r.ok {
			entries = append(entries, r.entry)
		}
	}
	return entries, nil
}
