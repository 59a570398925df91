package main

import (
	"context"
	"fmt"
	"image"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/indii/reelstudio/internal/audio"
	"github.com/indii/reelstudio/internal/compositor"
	"github.com/indii/reelstudio/internal/export"
	"github.com/indii/reelstudio/internal/frameindex"
	"github.com/indii/reelstudio/internal/logging"
	"github.com/indii/reelstudio/internal/playback"
	"github.com/indii/reelstudio/internal/project"
	"github.com/indii/reelstudio/internal/timeline"
)

// loadedProject is a saved project opened outside the daemon.
type loadedProject struct {
	Name     string
	Snapshot timeline.Snapshot
	Audio    *audio.Buffer
}

func loadProjectFile(ctx context.Context, tk *toolkit, path string) (*loadedProject, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open project: %w", err)
	}
	defer f.Close()

	doc, err := project.Load(f)
	if err != nil {
		return nil, err
	}
	if tk.loader.BaseDir == "" {
		tk.loader.BaseDir = filepath.Dir(path)
	}
	store := timeline.NewStore()
	doc.Apply(store)

	lp := &loadedProject{Name: doc.Name}
	if doc.AudioFile != nil {
		buf, err := decodeAudio(ctx, tk, doc.AudioFile.Src)
		if err != nil {
			tk.logger.Warn("saved audio unavailable, exporting over silence", "name", doc.AudioFile.Name, "error", err)
		} else {
			lp.Audio = buf.PadSilence(timeline.SilencePrefix)
			if doc.AudioDuration <= 0 {
				store.SetAudioDuration(lp.Audio.Duration())
			}
		}
	}
	lp.Snapshot = store.Snapshot()
	return lp, nil
}

func decodeAudio(ctx context.Context, tk *toolkit, src string) (*audio.Buffer, error) {
	data, err := tk.loader.Read(ctx, src)
	if err != nil {
		return nil, err
	}
	return tk.decoder.Decode(ctx, data)
}

func newExportCmd() *cobra.Command {
	var (
		format string
		outDir string
		fps    int
	)
	cmd := &cobra.Command{
		Use:   "export <project.indii>",
		Short: "Render a saved project to a video file",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tk, err := newToolkit()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			lp, err := loadProjectFile(ctx, tk, args[0])
			if err != nil {
				return err
			}
			if format == "" {
				format = tk.cfg.ExportFormat()
			}
			if fps <= 0 {
				fps = tk.cfg.FrameRate()
			}
			if outDir == "" {
				outDir = filepath.Dir(args[0])
			}
			if err := export.EnsureOutputDir(outDir); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			obs := export.ObserverFuncs{
				State: func(s export.State) {
					fmt.Fprintf(out, "\n%s", s)
				},
				Progress: progressPrinter(out),
			}
			res, err := tk.sequencer.Run(ctx, export.Request{
				Snapshot:  lp.Snapshot,
				Audio:     lp.Audio,
				Format:    strings.ToLower(format),
				FrameRate: fps,
				Name:      lp.Name,
				OutputDir: outDir,
			}, obs)
			fmt.Fprintln(out)
			if err != nil {
				return fmt.Errorf("export failed: %w", err)
			}

			for _, w := range res.Warnings {
				tk.logger.Warn("export warning", "warning", w)
			}
			fmt.Fprintf(out, "wrote %s (%s, %d frames, %s)\n",
				res.Output.Path, res.Output.MIMEType, res.Frames, humanize.Bytes(uint64(res.Output.Size)))
			return nil
		},
	}
	cmd.Flags().StringVarP(&format, "format", "f", "", "export format: mp4, webm, avi or frames")
	cmd.Flags().StringVarP(&outDir, "out", "o", "", "output directory (defaults to the project's directory)")
	cmd.Flags().IntVar(&fps, "fps", 0, "frame rate (defaults to REEL_FRAME_RATE)")
	return cmd
}

// progressPrinter prints whole-percent steps only.
func progressPrinter(out io.Writer) func(float64) {
	last := -1
	return func(pct float64) {
		if p := int(pct); p > last {
			last = p
			fmt.Fprintf(out, "\rrecording %3d%%", p)
		}
	}
}

func newFrameCmd() *cobra.Command {
	var (
		at     float64
		output string
		width  int
		live   bool
	)
	cmd := &cobra.Command{
		Use:   "frame <project.indii>",
		Short: "Render one frame of a saved project as PNG",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tk, err := newToolkit()
			if err != nil {
				return err
			}
			ctx := cmd.Context()

			lp, err := loadProjectFile(ctx, tk, args[0])
			if err != nil {
				return err
			}

			assets := compositor.NewAssets(compositor.CanvasWidth, compositor.CanvasHeight)
			report := tk.loader.LoadAll(ctx, lp.Snapshot.Media)
			for _, l := range report.Loaded {
				assets.Put(l.ID, l.Image)
			}
			for _, f := range report.Failed {
				tk.logger.Warn("media unavailable", "media_id", f.ID, "src", logging.SanitizePath(f.Src), "error", f.Err)
			}

			comp, err := compositor.New(lp.Snapshot, assets, compositor.WithStyle(tk.style), compositor.WithLogger(tk.logger))
			if err != nil {
				return err
			}
			var frame *image.RGBA
			if live {
				frame = comp.RenderAt(at, compositor.PreviewState{Playing: true})
			} else {
				fr := tk.cfg.FrameRate()
				idx := frameindex.Build(lp.Snapshot, fr)
				if idx.FrameCount() == 0 {
					return fmt.Errorf("project has no audio: %w", timeline.ErrNoAudio)
				}
				f := min(int(at*float64(fr)), idx.FrameCount()-1)
				frame = comp.RenderFrame(max(f, 0), idx)
			}

			if output == "" {
				output = strings.TrimSuffix(filepath.Base(args[0]), filepath.Ext(args[0])) + fmt.Sprintf("_%.2fs.png", at)
			}
			fh, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("create output: %w", err)
			}
			if err := playback.WritePNG(fh, playback.Scale(frame, width)); err != nil {
				fh.Close()
				return err
			}
			if err := fh.Close(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", output)
			return nil
		},
	}
	cmd.Flags().Float64VarP(&at, "time", "t", 0, "timeline position in seconds")
	cmd.Flags().StringVarP(&output, "out", "o", "", "output PNG path")
	cmd.Flags().IntVar(&width, "width", 0, "downscale to this width")
	cmd.Flags().BoolVar(&live, "live", false, "render as the live preview instead of the export frame")
	return cmd
}

func newEDLCmd() *cobra.Command {
	var (
		fps    float64
		output string
	)
	cmd := &cobra.Command{
		Use:   "edl <project.indii>",
		Short: "Write a CMX3600 edit list for a saved project",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			tk, err := newToolkit()
			if err != nil {
				return err
			}
			lp, err := loadProjectFile(cmd.Context(), tk, args[0])
			if err != nil {
				return err
			}

			title := export.SanitizeName(lp.Name, 80)
			if title == "" {
				title = "export"
			}
			edl := export.GenerateEDL(lp.Snapshot, title, fps)
			if output == "" || output == "-" {
				_, err := fmt.Fprint(cmd.OutOrStdout(), edl)
				return err
			}
			return os.WriteFile(output, []byte(edl), 0o644)
		},
	}
	cmd.Flags().Float64Var(&fps, "fps", 30, "timecode frame rate (29.97 and 59.94 use drop frame)")
	cmd.Flags().StringVarP(&output, "out", "o", "", "output file, - for stdout")
	return cmd
}
