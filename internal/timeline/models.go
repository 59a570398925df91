package timeline

import "strings"

// Track identifies which timeline lane a clip lives on.
type Track string

const (
	TrackImage Track = "image"
	TrackAudio Track = "audio"
)

// Resize edges accepted by Store.ResizeClip.
type Edge string

const (
	EdgeLeft  Edge = "left"
	EdgeRight Edge = "right"
)

const (
	DefaultClipDuration       = 3.0
	DefaultAnnotationDuration = 2.0
	DefaultMinClipDuration    = 0.5
	StartScreenDuration       = 2.0

	// SilencePrefix is the silence prepended to imported audio so the start
	// screen plays over quiet.
	SilencePrefix = 3.0

	StyleHighlight = "highlight"
	StyleTouch     = "touch"
)

// MediaItem is an imported asset. Decoded pixels live in the media loader;
// the store only tracks identity and source.
type MediaItem struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	MimeType string `json:"type"`
	Src      string `json:"src"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
}

// IsImage reports whether the item can be drawn on the image track.
func (m MediaItem) IsImage() bool {
	return strings.HasPrefix(m.MimeType, "image/")
}

// Clip places one media item on the timeline.
type Clip struct {
	ID            string  `json:"id"`
	MediaID       string  `json:"mediaId"`
	StartTime     float64 `json:"startTime"`
	Duration      float64 `json:"duration"`
	Track         Track   `json:"track"`
	IsStartScreen bool    `json:"isStartScreen,omitempty"`
}

// End returns StartTime+Duration.
func (c Clip) End() float64 {
	return c.StartTime + c.Duration
}

// Contains reports whether t falls in [StartTime, End).
func (c Clip) Contains(t float64) bool {
	return t >= c.StartTime && t < c.End()
}

// Annotation is a timed pulse overlay. X and Y are percentages of the frame.
type Annotation struct {
	ID       string  `json:"id"`
	Time     float64 `json:"time"`
	X        float64 `json:"x"`
	Y        float64 `json:"y"`
	Duration float64 `json:"duration"`
	Style    string  `json:"style,omitempty"`
}

// Snapshot is an immutable copy of the store contents. Export reads only
// snapshots so edits made during an export never reach the frame loop.
type Snapshot struct {
	AudioDuration float64
	VideoTitle    string
	StartScreenID string
	Media         []MediaItem
	Clips         []Clip
	Annotations   []Annotation
}

// MediaByID returns the media item with the given id.
func (s *Snapshot) MediaByID(id string) (MediaItem, bool) {
	for _, m := range s.Media {
		if m.ID == id {
			return m, true
		}
	}
	return MediaItem{}, false
}

// StartScreenClip returns the pinned start-screen clip, if any.
func (s *Snapshot) StartScreenClip() (Clip, bool) {
	for _, c := range s.Clips {
		if c.IsStartScreen {
			return c, true
		}
	}
	return Clip{}, false
}

// PixelsToPercent converts an absolute position inside a w×h frame into the
// percentage coordinates annotations are stored in.
func PixelsToPercent(px, py float64, w, h int) (float64, float64) {
	if w <= 0 || h <= 0 {
		return 50, 50
	}
	return clampPercent(px / float64(w) * 100), clampPercent(py / float64(h) * 100)
}

func clampPercent(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
