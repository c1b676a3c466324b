package main

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/menta2k/image-marker/internal/config"
	"github.com/menta2k/image-marker/internal/ui"
	"github.com/menta2k/image-marker/internal/utils"
	"github.com/menta2k/image-marker/pkg/marks"
	"github.com/menta2k/image-marker/pkg/session"
	"github.com/menta2k/image-marker/pkg/source"
)

type globalOptions struct {
	configPath string
	verbose    bool
}

type markOptions struct {
	output    string
	marksPath string
	boxRatio  string
	boxPad    float64
	boxOutput string
	stdout    bool
	width     int
	height    int
}

func newRootCmd() *cobra.Command {
	var global globalOptions
	var opts markOptions

	cmd := &cobra.Command{
		Use:   "image-marker IMAGES_DIR",
		Short: "Mark a rectangle and a note on every image of a directory",
		Long: `image-marker shows the images of a directory one at a time. Drag with the
left mouse button to select a region, type to attach a note, and move on with
Enter or the arrow keys. Every selection is written to the output file as

  path x y w h note

in image pixels with the origin at the top-left corner. With --box-ratio a
padded box of that aspect ratio is derived around each selection.`,
		Example: `  # Mark photos, reusing and updating earlier marks
  image-marker ./photos -m marks.txt -o marks.txt

  # Square boxes with 10% padding, printed as they are committed
  image-marker ./photos -o marks.txt -r square -p 0.1 -s`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
			slog.SetDefault(newLogger(cmd.ErrOrStderr(), global.verbose))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(global.configPath)
			if err != nil {
				return err
			}
			applyMarkFlags(cmd, cfg, opts)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			return runMark(cmd, cfg, args[0], opts, global.verbose)
		},
	}

	cmd.PersistentFlags().StringVar(&global.configPath, "config", "", "config file (default "+config.GetConfigPath()+" when present)")
	cmd.PersistentFlags().BoolVarP(&global.verbose, "verbose", "v", false, "debug logging; committed boxes are echoed to stderr")

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "file receiving the rect records")
	cmd.Flags().StringVarP(&opts.marksPath, "marks", "m", "", "existing marks to start from")
	cmd.Flags().StringVarP(&opts.boxRatio, "box-ratio", "r", "", "box aspect ratio: number, w:h or preset (0 or empty disables)")
	cmd.Flags().Float64VarP(&opts.boxPad, "box-pad", "p", 0, "box padding as a fraction of the selection (default 0.2)")
	cmd.Flags().StringVar(&opts.boxOutput, "box-output", "", "file receiving the box records")
	cmd.Flags().BoolVarP(&opts.stdout, "stdout", "s", false, "print each committed box record on stdout")
	cmd.Flags().IntVar(&opts.width, "width", 0, "initial window width")
	cmd.Flags().IntVar(&opts.height, "height", 0, "initial window height")

	cmd.AddCommand(newCropCmd(&global))
	cmd.AddCommand(newSuggestCmd(&global))

	return cmd
}

// newLogger installs a text handler at Info, or Debug when verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// loadConfig reads path, or the default config file when it exists.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		path = config.GetConfigPath()
		if !utils.FileExists(path) {
			return config.Default(), nil
		}
	}
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	slog.Debug("Loaded config", "path", path)
	return cfg, nil
}

// applyMarkFlags overrides config values with the flags set on cmd.
func applyMarkFlags(cmd *cobra.Command, cfg *config.Config, opts markOptions) {
	flags := cmd.Flags()
	if flags.Changed("output") {
		cfg.Marker.Output = opts.output
	}
	if flags.Changed("box-output") {
		cfg.Marker.BoxOutput = opts.boxOutput
	}
	if flags.Changed("box-ratio") {
		cfg.Marker.BoxRatio = opts.boxRatio
	}
	if flags.Changed("box-pad") {
		cfg.Marker.BoxPad = opts.boxPad
	}
	if flags.Changed("width") {
		cfg.Display.Width = opts.width
	}
	if flags.Changed("height") {
		cfg.Display.Height = opts.height
	}
}

func runMark(cmd *cobra.Command, cfg *config.Config, dir string, opts markOptions, verbose bool) error {
	logger := slog.Default()

	box, err := cfg.BoxConfig()
	if err != nil {
		return err
	}
	palette, err := cfg.Display.Palette()
	if err != nil {
		return err
	}

	loaded, err := marks.ReadFile(opts.marksPath, logger)
	if err != nil {
		return err
	}
	src, err := source.FromDir(dir)
	if err != nil {
		return err
	}
	logger.Info("Starting session", "dir", dir, "images", src.Len(), "marks", loaded.Len())

	recorder := newRecorder(cmd, cfg, opts, loaded, verbose, logger)

	sess, err := session.New(src, loaded.Map(), recorder.Save, session.Options{
		Box:          box,
		Palette:      palette,
		Logger:       logger,
		WindowWidth:  float64(cfg.Display.Width),
		WindowHeight: float64(cfg.Display.Height),
	})
	if err != nil {
		return err
	}

	if err := ui.Run(sess, ui.Options{
		Title:       "Image Marker",
		Width:       float32(cfg.Display.Width),
		Height:      float32(cfg.Display.Height),
		MaxImageDim: cfg.Display.MaxImageDim,
		Logger:      logger,
	}); err != nil {
		return err
	}

	logger.Info("Session finished", "marks", len(recorder.Marks()))
	return nil
}

// newRecorder builds the save callback. When the output replaces the marks
// input, the loaded marks seed it so unvisited images keep their entries.
func newRecorder(cmd *cobra.Command, cfg *config.Config, opts markOptions, loaded *marks.Store, verbose bool, logger *slog.Logger) *marks.Recorder {
	rc := marks.RecorderConfig{
		OutputPath:    cfg.Marker.Output,
		BoxOutputPath: cfg.Marker.BoxOutput,
	}
	if opts.stdout {
		rc.Stdout = cmd.OutOrStdout()
	}
	if verbose {
		rc.Verbose = cmd.ErrOrStderr()
	}

	var seed *marks.Store
	if rc.OutputPath != "" && opts.marksPath != "" && utils.SamePath(rc.OutputPath, opts.marksPath) {
		seed = loaded
	}
	return marks.NewRecorder(rc, seed, logger)
}
