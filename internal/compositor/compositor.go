// Package compositor turns a timeline snapshot into raster frames. Rendering
// is a pure function of the frame number, the frame index, the snapshot and
// which assets are loaded.
package compositor

import (
	"cmp"
	"fmt"
	"image"
	"image/color"
	"log/slog"
	"math"
	"slices"
	"sync"

	"golang.org/x/image/draw"

	"github.com/indii/reelstudio/internal/frameindex"
	"github.com/indii/reelstudio/internal/timeline"
)

const (
	CanvasWidth  = 1284
	CanvasHeight = 2778

	// LiveTolerance is how far before its start an annotation already shows
	// in the live preview.
	LiveTolerance = 0.15

	// PlaceholderAfter is the time from which an empty playing preview shows
	// the placeholder.
	PlaceholderAfter = 3.0
)

// PreviewState is the playback state seen by the live render path.
type PreviewState struct {
	Playing bool
}

// Option configures a Compositor.
type Option func(*Compositor)

// WithStyle overrides DefaultStyle.
func WithStyle(st Style) Option {
	return func(c *Compositor) { c.style = st }
}

// WithLogger sets the logger used to report skipped media.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Compositor) { c.logger = logger }
}

// Compositor renders frames for one snapshot.
type Compositor struct {
	width  int
	height int
	style  Style
	snap   timeline.Snapshot
	assets *Assets
	logger *slog.Logger

	title  *image.RGBA
	labels map[string]*textRun

	placeholderOnce sync.Once
	placeholder     *textRun

	warnMu sync.Mutex
	warned map[string]bool
}

// New prepares a compositor for snap. The title layer and pulse labels are
// rendered here once, never per frame.
func New(snap timeline.Snapshot, assets *Assets, opts ...Option) (*Compositor, error) {
	if assets == nil {
		assets = NewAssets(CanvasWidth, CanvasHeight)
	}
	w, h := assets.Size()
	c := &Compositor{
		width:  w,
		height: h,
		style:  DefaultStyle(),
		snap:   snap,
		assets: assets,
		logger: slog.Default(),
		labels: make(map[string]*textRun),
		warned: make(map[string]bool),
	}
	for _, opt := range opts {
		opt(c)
	}

	if snap.VideoTitle != "" {
		layer, err := renderTitle(snap.VideoTitle, w, h, c.style)
		if err != nil {
			return nil, fmt.Errorf("render title: %w", err)
		}
		c.title = layer
	}

	for _, p := range c.style.Pulses {
		if p.Label == "" || c.labels[p.Label] != nil {
			continue
		}
		run, err := renderText(p.Label, labelFontSize)
		if err != nil {
			return nil, fmt.Errorf("render label: %w", err)
		}
		c.labels[p.Label] = run
	}

	return c, nil
}

// Size returns the canvas dimensions.
func (c *Compositor) Size() (int, int) {
	return c.width, c.height
}

// NewCanvas allocates a frame buffer of the canvas size.
func (c *Compositor) NewCanvas() *image.RGBA {
	return image.NewRGBA(image.Rect(0, 0, c.width, c.height))
}

// StartScreenFrames is the number of frames the start screen covers.
func StartScreenFrames(frameRate int) int {
	return int(math.Round(timeline.StartScreenDuration * float64(frameRate)))
}

// RenderFrame renders export frame f into a new canvas.
func (c *Compositor) RenderFrame(f int, idx *frameindex.Index) *image.RGBA {
	dst := c.NewCanvas()
	c.RenderFrameInto(dst, f, idx)
	return dst
}

// RenderFrameInto renders export frame f into dst, overwriting every pixel.
func (c *Compositor) RenderFrameInto(dst *image.RGBA, f int, idx *frameindex.Index) {
	c.fill(dst, c.style.Background)

	fr := idx.FrameRate()
	if f < StartScreenFrames(fr) {
		c.drawStartScreen(dst)
		return
	}

	for _, clip := range sortClips(idx.Clips(f)) {
		c.drawClip(dst, clip)
	}

	for _, ref := range idx.Annotations(f) {
		p := PulseAt(FrameProgress(f, ref.ExactFrame, ref.Annotation.Duration, fr))
		c.drawAnnotation(dst, ref.Annotation, p)
	}
}

// RenderAt renders the live preview at exact time t.
func (c *Compositor) RenderAt(t float64, ps PreviewState) *image.RGBA {
	dst := c.NewCanvas()
	c.RenderAtInto(dst, t, ps)
	return dst
}

// RenderAtInto is RenderAt into an existing canvas.
func (c *Compositor) RenderAtInto(dst *image.RGBA, t float64, ps PreviewState) {
	c.fill(dst, c.style.Background)

	if !ps.Playing && (t == 0 || c.startScreenActive(t)) {
		c.drawStartScreen(dst)
		return
	}

	var active []timeline.Clip
	for _, clip := range c.snap.Clips {
		if clip.Contains(t) {
			active = append(active, clip)
		}
	}

	if len(active) == 0 && ps.Playing && t >= PlaceholderAfter {
		c.drawPlaceholder(dst)
	}
	for _, clip := range sortClips(active) {
		c.drawClip(dst, clip)
	}

	for _, a := range c.snap.Annotations {
		if t < a.Time-LiveTolerance || t >= a.Time+a.Duration {
			continue
		}
		c.drawAnnotation(dst, a, PulseAt(TimeProgress(t, a.Time, a.Duration)))
	}
}

func (c *Compositor) startScreenActive(t float64) bool {
	clip, ok := c.snap.StartScreenClip()
	return ok && clip.Contains(t)
}

// drawStartScreen fills the accent color, then the start-screen image if it
// loaded, then the title. The title is drawn even without the image.
func (c *Compositor) drawStartScreen(dst *image.RGBA) {
	c.fill(dst, c.style.Accent)

	if id := c.snap.StartScreenID; id != "" {
		if img, ok := c.assets.Get(id); ok {
			draw.Draw(dst, img.Rect, img, img.Rect.Min, draw.Over)
		} else {
			c.warnOnce(id, "start screen image unavailable")
		}
	}

	if c.title != nil {
		draw.Draw(dst, c.title.Rect, c.title, c.title.Rect.Min, draw.Over)
	}
}

func (c *Compositor) drawClip(dst *image.RGBA, clip timeline.Clip) {
	item, ok := c.snap.MediaByID(clip.MediaID)
	if !ok {
		c.warnOnce(clip.MediaID, "clip references missing media", "clip_id", clip.ID)
		return
	}
	if !item.IsImage() {
		return
	}
	img, ok := c.assets.Get(item.ID)
	if !ok {
		c.warnOnce(item.ID, "media not loaded", "clip_id", clip.ID)
		return
	}
	draw.Draw(dst, img.Rect, img, img.Rect.Min, draw.Over)
}

func (c *Compositor) drawAnnotation(dst *image.RGBA, a timeline.Annotation, p Pulse) {
	st := c.style.Pulse(a.Style)
	cx := a.X / 100 * float64(c.width)
	cy := a.Y / 100 * float64(c.height)
	drawPulse(dst, cx, cy, p, st)

	if run := c.labels[st.Label]; run != nil {
		drawCenteredText(dst, run, cx, cy, white, p.Opacity)
	}
}

func (c *Compositor) drawPlaceholder(dst *image.RGBA) {
	c.fill(dst, c.style.Placeholder)

	c.placeholderOnce.Do(func() {
		msg := fmt.Sprintf("Portrait Preview (%d×%dpx)", c.width, c.height)
		run, err := renderText(msg, math.Max(12, float64(c.width)/30))
		if err != nil {
			c.logger.Warn("render placeholder text", "error", err)
			return
		}
		c.placeholder = run
	})
	if c.placeholder != nil {
		drawCenteredText(dst, c.placeholder, float64(c.width)/2, float64(c.height)/2, c.style.PlaceholderText, 1)
	}
}

func (c *Compositor) fill(dst *image.RGBA, col color.Color) {
	draw.Draw(dst, dst.Rect, image.NewUniform(col), image.Point{}, draw.Src)
}

// warnOnce logs a skipped-media condition the first time it is seen for key.
func (c *Compositor) warnOnce(key, msg string, args ...any) {
	c.warnMu.Lock()
	seen := c.warned[key]
	c.warned[key] = true
	c.warnMu.Unlock()
	if !seen {
		c.logger.Warn(msg, append([]any{"media_id", key}, args...)...)
	}
}

func trackRank(t timeline.Track) int {
	switch t {
	case timeline.TrackAudio:
		return 0
	case timeline.TrackImage:
		return 1
	default:
		return 2
	}
}

// sortClips orders audio-track clips before image-track clips, keeping the
// relative order within a track.
func sortClips(clips []timeline.Clip) []timeline.Clip {
	out := slices.Clone(clips)
	slices.SortStableFunc(out, func(a, b timeline.Clip) int {
		return cmp.Compare(trackRank(a.Track), trackRank(b.Track))
	})
	return out
}
