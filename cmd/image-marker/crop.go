package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/menta2k/image-marker/internal/config"
	"github.com/menta2k/image-marker/internal/utils"
	"github.com/menta2k/image-marker/pkg/cropper"
	"github.com/menta2k/image-marker/pkg/marks"
	"github.com/menta2k/image-marker/pkg/processing"
	"github.com/menta2k/image-marker/pkg/source"
	"github.com/menta2k/image-marker/pkg/types"
	"github.com/menta2k/image-marker/pkg/viewport"
)

type cropOptions struct {
	marksPath string
	outDir    string
	ext       string
	quality   int
	lossless  bool
	overlay   bool
	boxRatio  string
	boxPad    float64
	suffix    string
}

func newCropCmd(global *globalOptions) *cobra.Command {
	var opts cropOptions

	cmd := &cobra.Command{
		Use:   "crop IMAGES_DIR",
		Short: "Export the marked region of every image",
		Long: `Crop each image of IMAGES_DIR that has a mark in the marks file. The rect
is cropped as recorded, or a box of --box-ratio is derived around it first.`,
		Example: `  image-marker crop ./photos -m marks.txt -d ./crops
  image-marker crop ./photos -m marks.txt -d ./crops -r 16:9 --ext webp --overlay`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(global.configPath)
			if err != nil {
				return err
			}
			applyCropFlags(cmd, cfg, &opts)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			box, err := cfg.BoxConfig()
			if err != nil {
				return err
			}

			_, err = runCrop(cmd.Context(), args[0], opts, box, slog.Default())
			return err
		},
	}

	cmd.Flags().StringVarP(&opts.marksPath, "marks", "m", "", "marks file to crop from")
	cmd.Flags().StringVarP(&opts.outDir, "out", "d", "", "output directory (default ./crops)")
	cmd.Flags().StringVar(&opts.ext, "ext", "", "output format: jpg|png|webp (default jpg)")
	cmd.Flags().IntVar(&opts.quality, "quality", 0, "JPEG/WebP quality 1-100 (default 90)")
	cmd.Flags().BoolVar(&opts.lossless, "lossless", false, "lossless WebP output")
	cmd.Flags().BoolVar(&opts.overlay, "overlay", false, "also write the image with rect and box outlined")
	cmd.Flags().StringVarP(&opts.boxRatio, "box-ratio", "r", "", "derive a box of this aspect ratio around each rect")
	cmd.Flags().Float64VarP(&opts.boxPad, "box-pad", "p", 0, "box padding as a fraction of the rect (default 0.2)")
	cmd.MarkFlagRequired("marks")

	return cmd
}

// applyCropFlags merges config and flags into opts.
func applyCropFlags(cmd *cobra.Command, cfg *config.Config, opts *cropOptions) {
	flags := cmd.Flags()
	if flags.Changed("box-ratio") {
		cfg.Marker.BoxRatio = opts.boxRatio
	}
	if flags.Changed("box-pad") {
		cfg.Marker.BoxPad = opts.boxPad
	}
	if flags.Changed("out") {
		cfg.Crop.OutputDir = opts.outDir
	}
	if flags.Changed("ext") {
		cfg.Crop.Format = opts.ext
	}
	if flags.Changed("quality") {
		cfg.Crop.Quality = opts.quality
	}
	if flags.Changed("lossless") {
		cfg.Crop.Lossless = opts.lossless
	}

	opts.outDir = cfg.Crop.OutputDir
	opts.ext = strings.ToLower(cfg.Crop.Format)
	opts.quality = cfg.Crop.Quality
	opts.lossless = cfg.Crop.Lossless
	opts.suffix = cfg.Crop.Suffix
}

// runCrop writes one crop per marked image and returns how many were written.
func runCrop(ctx context.Context, dir string, opts cropOptions, box cropper.BoxConfig, logger *slog.Logger) (int, error) {
	loaded, err := marks.ReadFile(opts.marksPath, logger)
	if err != nil {
		return 0, err
	}
	src, err := source.FromDir(dir)
	if err != nil {
		return 0, err
	}
	if err := utils.EnsureDir(opts.outDir); err != nil {
		return 0, err
	}

	lookup := newMarkLookup(loaded)
	processor := processing.NewProcessor()
	written := 0

	for i, path := range src.Paths() {
		if err := ctx.Err(); err != nil {
			return written, err
		}

		mark, ok := lookup.find(path)
		if !ok {
			logger.Debug("No mark, skipping", "path", path)
			continue
		}

		img, err := processor.LoadImage(path)
		if err != nil {
			logger.Warn("Failed to load image", "path", path, "error", err)
			continue
		}
		b := img.Bounds()
		if box.Ratio > 0 {
			derived := cropper.DeriveBox(*mark.Rect, viewport.ImageBounds(b.Dx(), b.Dy()), box)
			mark.Box = &derived
		}

		result, err := processor.CropMark(img, mark)
		if err != nil {
			logger.Warn("Crop failed", "path", path, "error", err)
			continue
		}

		out := utils.GenerateOutputFilename(path, opts.outDir, "", opts.suffix, opts.ext)
		if err := processor.SaveImage(result.Image, out, opts.ext, opts.quality, opts.lossless); err != nil {
			return written, fmt.Errorf("failed to save %s: %w", out, err)
		}
		written++

		size := int64(0)
		if fi, err := os.Stat(out); err == nil {
			size = fi.Size()
		}
		logger.Info("Wrote crop",
			"progress", fmt.Sprintf("%d/%d", i+1, src.Len()),
			"path", out,
			"region", result.Region,
			"size", utils.FormatFileSize(size))

		if opts.overlay {
			overlay := processor.CreateDebugOverlay(img, mark, processing.DefaultOverlayColors())
			dbg := utils.GenerateOutputFilename(path, opts.outDir, "", "_overlay", "png")
			if err := processor.SaveImage(overlay, dbg, "png", 0, false); err != nil {
				logger.Warn("Overlay save failed", "path", dbg, "error", err)
			}
		}
	}

	logger.Info("Crop finished", "written", written, "marks", loaded.Len())
	return written, nil
}

// markLookup finds the mark of an image by its path, falling back to the
// file name so marks recorded from another working directory still match.
type markLookup struct {
	byPath map[string]types.Mark
	byName map[string]types.Mark
}

func newMarkLookup(store *marks.Store) markLookup {
	l := markLookup{
		byPath: make(map[string]types.Mark, store.Len()),
		byName: make(map[string]types.Mark, store.Len()),
	}
	for _, e := range store.Snapshot() {
		if !e.Mark.HasRect() {
			continue
		}
		l.byPath[filepath.Clean(e.Path)] = e.Mark
		l.byName[filepath.Base(e.Path)] = e.Mark
	}
	return l
}

func (l markLookup) find(path string) (types.Mark, bool) {
	if m, ok := l.byPath[filepath.Clean(path)]; ok {
		return m, true
	}
	m, ok := l.byName[filepath.Base(path)]
	return m, ok
}
