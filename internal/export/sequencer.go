// Package export drives the compositor across every frame of a snapshot and
// feeds the frames, together with the audio track, into an encoder sink.
package export

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/indii/reelstudio/internal/compositor"
	"github.com/indii/reelstudio/internal/encoder"
	"github.com/indii/reelstudio/internal/ffmpeg"
	"github.com/indii/reelstudio/internal/frameindex"
	"github.com/indii/reelstudio/internal/media"
	"github.com/indii/reelstudio/internal/timeline"
)

var (
	ErrBusy    = errors.New("an export is already running")
	ErrEncoder = errors.New("encoder failure")
	ErrEmpty   = errors.New("nothing to export")
)

// CapabilitySource reports what the installed encoder supports.
type CapabilitySource interface {
	Get(ctx context.Context) (*ffmpeg.Capabilities, error)
}

// SinkFactory creates the sink for a negotiated profile.
type SinkFactory func(p encoder.Profile) (encoder.Sink, error)

// AssetLoader loads every media item and reports per-item outcomes.
type AssetLoader interface {
	LoadAll(ctx context.Context, items []timeline.MediaItem) *media.LoadReport
}

// Config holds sequencer tuning.
type Config struct {
	// Pace is the minimum interval between frames. Zero relies on encoder
	// back-pressure alone.
	Pace    time.Duration
	Grace   time.Duration
	Bitrate int
	Style   compositor.Style
}

// Sequencer runs one export at a time.
type Sequencer struct {
	caps    CapabilitySource
	loader  AssetLoader
	newSink SinkFactory
	cfg     Config
	logger  *slog.Logger

	mu       sync.Mutex
	state    State
	progress float64
	running  bool
}

func NewSequencer(caps CapabilitySource, loader AssetLoader, newSink SinkFactory, cfg Config, logger *slog.Logger) *Sequencer {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.Style.Pulses == nil {
		cfg.Style = compositor.DefaultStyle()
	}
	return &Sequencer{
		caps:    caps,
		loader:  loader,
		newSink: newSink,
		cfg:     cfg,
		logger:  logger,
		state:   StateIdle,
	}
}

// State returns the current lifecycle state.
func (s *Sequencer) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Progress returns the last reported progress in percent.
func (s *Sequencer) Progress() float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

func (s *Sequencer) setState(st State, obs Observer) {
	s.mu.Lock()
	s.state = st
	s.mu.Unlock()
	obs.OnState(st)
}

func (s *Sequencer) setProgress(pct float64, obs Observer) {
	s.mu.Lock()
	s.progress = pct
	s.mu.Unlock()
	obs.OnProgress(pct)
}

// Negotiate resolves the profile for format without starting any work.
func (s *Sequencer) Negotiate(ctx context.Context, format string) (encoder.Profile, error) {
	var caps *ffmpeg.Capabilities
	if s.caps != nil {
		c, err := s.caps.Get(ctx)
		if err != nil {
			s.logger.Warn("encoder capabilities unavailable", "error", err)
		}
		caps = c
	}
	return encoder.Negotiate(format, caps)
}

// Run exports req. The snapshot is read only; the returned result may carry
// warnings for missing media.
func (s *Sequencer) Run(ctx context.Context, req Request, obs Observer) (*Result, error) {
	if obs == nil {
		obs = nopObserver{}
	}

	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil, ErrBusy
	}
	s.running = true
	s.progress = 0
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
	}()

	profile, err := s.Negotiate(ctx, req.Format)
	if err != nil {
		return nil, err
	}

	frameRate := req.FrameRate
	if frameRate <= 0 {
		frameRate = frameindex.DefaultFrameRate
	}
	start := time.Now()
	logger := s.logger.With("format", profile.Format, "mime_type", profile.MIMEType)

	s.setState(StatePreparing, obs)
	idx := frameindex.Build(req.Snapshot, frameRate)
	if idx.FrameCount() == 0 {
		s.setState(StateFailed, obs)
		return nil, fmt.Errorf("%w: %w", ErrEmpty, timeline.ErrNoAudio)
	}

	assets, report := s.prepareAssets(ctx, req.Snapshot)
	result := &Result{Profile: profile, Frames: idx.FrameCount(), Failures: report.Failed}
	if len(report.Loaded) == 0 && hasImageClips(req.Snapshot) {
		msg := "no media could be loaded; frames will show fallback content"
		logger.Warn(msg, "failed", len(report.Failed))
		result.Warnings = append(result.Warnings, msg)
	}
	for _, f := range report.Failed {
		result.Warnings = append(result.Warnings, fmt.Sprintf("media %s unavailable: %v", f.ID, f.Err))
	}

	comp, err := compositor.New(req.Snapshot, assets,
		compositor.WithStyle(s.cfg.Style),
		compositor.WithLogger(logger),
	)
	if err != nil {
		s.setState(StateFailed, obs)
		return nil, fmt.Errorf("prepare compositor: %w", err)
	}

	sink, err := s.newSink(profile)
	if err != nil {
		s.setState(StateFailed, obs)
		return nil, fmt.Errorf("%w: %w", ErrEncoder, err)
	}

	w, h := comp.Size()
	stream := encoder.Stream{
		Width:      w,
		Height:     h,
		FrameRate:  frameRate,
		FrameCount: idx.FrameCount(),
		Audio:      req.Audio,
		Profile:    profile,
		OutputPath: OutputPath(req.OutputDir, req.Name, profile),
		Bitrate:    s.cfg.Bitrate,
	}

	s.setState(StateRecording, obs)
	if err := sink.Begin(ctx, stream); err != nil {
		sink.Abort()
		s.setState(StateFailed, obs)
		return nil, fmt.Errorf("%w: %w", ErrEncoder, err)
	}
	logger.Info("export recording", "frames", stream.FrameCount, "frame_rate", frameRate, "output", stream.OutputPath)

	if err := s.record(ctx, comp, idx, sink, obs); err != nil {
		sink.Abort()
		s.setState(StateFailed, obs)
		if ctx.Err() != nil {
			logger.Info("export cancelled", "error", err)
			return nil, cancelled(ctx, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrEncoder, err)
	}
	s.setProgress(100, obs)

	s.setState(StateFinalizing, obs)
	if err := sleepCtx(ctx, s.cfg.Grace); err != nil {
		sink.Abort()
		s.setState(StateFailed, obs)
		return nil, err
	}
	out, err := sink.Finish(ctx)
	if err != nil {
		sink.Abort()
		s.setState(StateFailed, obs)
		if ctx.Err() != nil {
			return nil, cancelled(ctx, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrEncoder, err)
	}

	result.Output = out
	result.Elapsed = time.Since(start)
	s.setState(StateIdle, obs)
	logger.Info("export finished", "output", out.Path, "frames", out.Frames, "elapsed_ms", result.Elapsed.Milliseconds())
	return result, nil
}

// cancelled reports err as the context's error. A sink killed by the
// cancellation fails with its own error (typically a broken pipe).
func cancelled(ctx context.Context, err error) error {
	if errors.Is(err, ctx.Err()) {
		return err
	}
	return fmt.Errorf("%w: %v", ctx.Err(), err)
}

func (s *Sequencer) record(ctx context.Context, comp *compositor.Compositor, idx *frameindex.Index, sink encoder.Sink, obs Observer) error {
	var tick <-chan time.Time
	if s.cfg.Pace > 0 {
		t := time.NewTicker(s.cfg.Pace)
		defer t.Stop()
		tick = t.C
	}

	n := idx.FrameCount()
	canvas := comp.NewCanvas()
	for f := 0; f < n; f++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if tick != nil && f > 0 {
			select {
			case <-tick:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		comp.RenderFrameInto(canvas, f, idx)
		if err := sink.WriteFrame(canvas); err != nil {
			return err
		}
		s.setProgress(float64(f)/float64(n)*100, obs)
	}
	return nil
}

// prepareAssets loads every distinct image referenced by a clip plus the
// start screen and settles all loads before returning.
func (s *Sequencer) prepareAssets(ctx context.Context, snap timeline.Snapshot) (*compositor.Assets, *media.LoadReport) {
	assets := compositor.NewAssets(compositor.CanvasWidth, compositor.CanvasHeight)

	seen := make(map[string]bool)
	var items []timeline.MediaItem
	want := func(id string) {
		if id == "" || seen[id] {
			return
		}
		seen[id] = true
		if m, ok := snap.MediaByID(id); ok {
			items = append(items, m)
		}
	}
	want(snap.StartScreenID)
	for _, c := range snap.Clips {
		if c.Track == timeline.TrackImage {
			want(c.MediaID)
		}
	}

	if s.loader == nil || len(items) == 0 {
		return assets, &media.LoadReport{}
	}
	report := s.loader.LoadAll(ctx, items)
	for _, l := range report.Loaded {
		assets.Put(l.ID, l.Image)
	}
	return assets, report
}

func hasImageClips(snap timeline.Snapshot) bool {
	for _, c := range snap.Clips {
		if c.Track == timeline.TrackImage {
			return true
		}
	}
	return false
}

// OutputPath is where an export named name lands inside dir.
func OutputPath(dir, name string, p encoder.Profile) string {
	base := SanitizeName(name, maxNameLength)
	if base == "" {
		base = "export"
	}
	if p.Format == encoder.FormatFrames {
		return filepath.Join(dir, base+framesDirSuffix)
	}
	return filepath.Join(dir, base+p.Extension)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
