package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/indii/reelstudio/internal/audio"
	"github.com/indii/reelstudio/internal/compositor"
	"github.com/indii/reelstudio/internal/config"
	"github.com/indii/reelstudio/internal/encoder"
	"github.com/indii/reelstudio/internal/export"
	"github.com/indii/reelstudio/internal/ffmpeg"
	"github.com/indii/reelstudio/internal/logging"
	"github.com/indii/reelstudio/internal/media"
)

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "reelstudio",
		Short: "Local studio for narrated image reels",
		Long: `reelstudio lays images and tap annotations over a voice track and
renders the result to a portrait video.

It runs as a local daemon serving the editor API, or renders saved
project files straight from the command line.`,
		SilenceUsage: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()
		},
	}

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newExportCmd())
	cmd.AddCommand(newFrameCmd())
	cmd.AddCommand(newEDLCmd())

	return cmd
}

// toolkit is the render stack shared by the daemon and the offline commands.
type toolkit struct {
	cfg       *config.EnvConfig
	logger    *slog.Logger
	ffmpeg    *ffmpeg.Runner
	probe     *ffmpeg.CachedProbe
	loader    *media.Loader
	decoder   audio.Decoder
	style     compositor.Style
	sequencer *export.Sequencer
}

func newToolkit() (*toolkit, error) {
	cfg, err := config.New()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	logger := logging.NewLogger(cfg.LogLevel())

	style := compositor.DefaultStyle()
	if path := cfg.StyleFile(); path != "" {
		style, err = compositor.LoadStyleFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to load style file: %w", err)
		}
		logger.Info("render style loaded", "path", logging.SanitizePath(path))
	}

	tk := &toolkit{
		cfg:    cfg,
		logger: logger,
		loader: media.NewLoader(cfg.AssetTimeout(), logging.WithComponent(logger, "media")),
		style:  style,
	}

	var caps export.CapabilitySource
	decoder := audio.AutoDecoder{}
	runner, err := ffmpeg.NewRunner(ffmpeg.Config{Binary: cfg.FFmpegBinary(), Logger: logger})
	if err != nil {
		logger.Warn("ffmpeg unavailable, only frame exports and WAV audio will work", "error", err)
	} else {
		tk.ffmpeg = runner
		tk.probe = ffmpeg.NewCachedProbe(runner, logger)
		caps = tk.probe
		decoder.FFmpeg = audio.NewFFmpegDecoder(runner)
	}
	tk.decoder = decoder

	sinkLogger := logging.WithComponent(logger, "encoder")
	tk.sequencer = export.NewSequencer(caps, tk.loader,
		func(p encoder.Profile) (encoder.Sink, error) {
			return encoder.NewSink(p, tk.ffmpeg, sinkLogger)
		},
		export.Config{
			Pace:  cfg.ExportPace(),
			Grace: cfg.ExportGrace(),
			Style: style,
		},
		logging.WithComponent(logger, "export"),
	)
	return tk, nil
}

func ensureDir(path string) error {
	if err := os.MkdirAll(path, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	return nil
}
