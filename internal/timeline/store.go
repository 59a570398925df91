// Package timeline owns the mutable clip, annotation and media collections
// of a project and enforces their positional invariants.
package timeline

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/google/uuid"
)

var (
	ErrProtectedEntity = errors.New("start screen cannot be removed or resized")
	ErrNotFound        = errors.New("entity not found")
	ErrNoAudio         = errors.New("import audio before editing the timeline")
	ErrOutOfRange      = errors.New("position is beyond the end of the audio")
	ErrInvalidEdge     = errors.New("resize edge must be left or right")
)

// Store holds one project's timeline. Positional mutations never fail on
// bounds: requests past either end clamp to the boundary.
type Store struct {
	mu sync.RWMutex

	audioDuration float64
	minDuration   float64
	videoTitle    string

	media       []MediaItem
	clips       []Clip
	annotations []Annotation
}

func NewStore() *Store {
	return &Store{minDuration: DefaultMinClipDuration}
}

func newID() string {
	return uuid.NewString()
}

// SetAudioDuration sets the timeline length and re-clamps every entity to it.
func (s *Store) SetAudioDuration(d float64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if d < 0 || math.IsNaN(d) {
		d = 0
	}
	s.audioDuration = d
	for i := range s.clips {
		if s.clips[i].IsStartScreen {
			s.clips[i].StartTime = 0
			s.clips[i].Duration = s.startScreenLen()
			continue
		}
		s.clips[i] = s.fit(s.clips[i])
	}
	for i := range s.annotations {
		s.annotations[i].Time = s.clampTime(s.annotations[i].Time)
	}
}

func (s *Store) AudioDuration() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.audioDuration
}

// SetMinClipDuration sets the shortest duration a resize may produce. The
// editor derives it from a fixed minimum width in pixels at the current scale.
func (s *Store) SetMinClipDuration(d float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if d > 0 {
		s.minDuration = d
	}
}

func (s *Store) SetVideoTitle(title string) {
	s.mu.Lock()
	s.videoTitle = title
	s.mu.Unlock()
}

func (s *Store) VideoTitle() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.videoTitle
}

// AddMedia registers an asset and returns its id. An empty ID is assigned.
func (s *Store) AddMedia(item MediaItem) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if item.ID == "" {
		item.ID = newID()
	}
	for i, m := range s.media {
		if m.ID == item.ID {
			s.media[i] = item
			return item.ID
		}
	}
	s.media = append(s.media, item)
	return item.ID
}

func (s *Store) Media(id string) (MediaItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.media {
		if m.ID == id {
			return m, true
		}
	}
	return MediaItem{}, false
}

// MediaBySrc finds an already imported asset by its source.
func (s *Store) MediaBySrc(src string) (MediaItem, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.media {
		if m.Src == src {
			return m, true
		}
	}
	return MediaItem{}, false
}

// RemoveMedia drops an asset from the library. Clips that still reference
// it are kept and render as nothing.
func (s *Store) RemoveMedia(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, m := range s.media {
		if m.ID == id {
			s.media = append(s.media[:i], s.media[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("media %s: %w", id, ErrNotFound)
}

// PruneMedia removes every asset no clip references and returns how many
// were dropped.
func (s *Store) PruneMedia() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	used := make(map[string]bool, len(s.clips))
	for _, c := range s.clips {
		used[c.MediaID] = true
	}
	kept := s.media[:0]
	dropped := 0
	for _, m := range s.media {
		if used[m.ID] {
			kept = append(kept, m)
		} else {
			dropped++
		}
	}
	s.media = kept
	return dropped
}

// Reset clears the project back to an empty timeline.
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audioDuration = 0
	s.videoTitle = ""
	s.media = nil
	s.clips = nil
	s.annotations = nil
}

// AddClip inserts an image clip. A non-positive duration uses
// DefaultClipDuration; the duration is shortened to end at the audio end.
func (s *Store) AddClip(mediaID string, startTime, duration float64) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.audioDuration <= 0 {
		return "", ErrNoAudio
	}
	if !s.hasMedia(mediaID) {
		return "", fmt.Errorf("media %s: %w", mediaID, ErrNotFound)
	}
	if startTime < 0 {
		startTime = 0
	}
	if startTime >= s.audioDuration {
		return "", ErrOutOfRange
	}
	if duration <= 0 {
		duration = DefaultClipDuration
	}
	duration = math.Min(duration, s.audioDuration-startTime)

	clip := Clip{
		ID:        newID(),
		MediaID:   mediaID,
		StartTime: startTime,
		Duration:  duration,
		Track:     TrackImage,
	}
	s.clips = append(s.clips, clip)
	return clip.ID, nil
}

// InsertClip adds a fully specified clip, as read from a saved project.
// Bounds are enforced the same way as for interactive edits.
func (s *Store) InsertClip(c Clip) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if c.ID == "" {
		c.ID = newID()
	}
	if c.Track == "" {
		c.Track = TrackImage
	}
	if c.IsStartScreen {
		c.StartTime = 0
		c.Duration = s.startScreenLen()
	} else if s.audioDuration > 0 {
		c = s.fit(c)
	}
	s.clips = append(s.clips, c)
	return c.ID
}

// EnsureStartScreen creates the start-screen clip for mediaID, or re-pins
// the existing one to 0s with the fixed duration.
func (s *Store) EnsureStartScreen(mediaID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, c := range s.clips {
		if c.IsStartScreen || (c.StartTime == 0 && c.MediaID == mediaID) {
			s.clips[i].MediaID = mediaID
			s.clips[i].StartTime = 0
			s.clips[i].Duration = s.startScreenLen()
			s.clips[i].IsStartScreen = true
			return c.ID
		}
	}
	clip := Clip{
		ID:            newID(),
		MediaID:       mediaID,
		StartTime:     0,
		Duration:      s.startScreenLen(),
		Track:         TrackImage,
		IsStartScreen: true,
	}
	s.clips = append(s.clips, clip)
	return clip.ID
}

// startScreenLen is the start-screen duration, cut to the audio when the
// track is shorter. Must be called with mu held.
func (s *Store) startScreenLen() float64 {
	if s.audioDuration > 0 {
		return min(StartScreenDuration, s.audioDuration)
	}
	return StartScreenDuration
}

// MoveClip changes a clip's start, clamped into [0, audioDuration-duration].
func (s *Store) MoveClip(id string, newStart float64) (Clip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, err := s.clipIndex(id)
	if err != nil {
		return Clip{}, err
	}
	c := s.clips[i]
	if c.IsStartScreen {
		return c, ErrProtectedEntity
	}
	c.StartTime = newStart
	c = s.fit(c)
	s.clips[i] = c
	return c, nil
}

// ResizeClip drags one edge of a clip. For EdgeLeft value is the new start
// and the end stays put; for EdgeRight value is the new duration.
func (s *Store) ResizeClip(id string, edge Edge, value float64) (Clip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, err := s.clipIndex(id)
	if err != nil {
		return Clip{}, err
	}
	c := s.clips[i]
	if c.IsStartScreen {
		return c, ErrProtectedEntity
	}

	switch edge {
	case EdgeLeft:
		end := c.End()
		start := math.Max(0, value)
		if start > end-s.minDuration {
			start = math.Max(0, end-s.minDuration)
		}
		c.StartTime = start
		c.Duration = end - start
	case EdgeRight:
		maxDur := s.audioDuration - c.StartTime
		dur := math.Max(value, s.minDuration)
		if dur > maxDur {
			dur = maxDur
		}
		c.Duration = dur
	default:
		return c, ErrInvalidEdge
	}

	c = s.fit(c)
	s.clips[i] = c
	return c, nil
}

// DeleteClip removes a clip. The start screen is protected.
func (s *Store) DeleteClip(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, err := s.clipIndex(id)
	if err != nil {
		return err
	}
	if s.clips[i].IsStartScreen {
		return ErrProtectedEntity
	}
	s.clips = append(s.clips[:i], s.clips[i+1:]...)
	return nil
}

func (s *Store) Clip(id string) (Clip, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	i, err := s.clipIndex(id)
	if err != nil {
		return Clip{}, false
	}
	return s.clips[i], true
}

func (s *Store) Clips() []Clip {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Clip(nil), s.clips...)
}

// AddAnnotation records a pulse at time t and percentage position (x, y).
func (s *Store) AddAnnotation(t, x, y float64, style string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.audioDuration <= 0 {
		return "", ErrNoAudio
	}
	if style == "" {
		style = StyleHighlight
	}
	a := Annotation{
		ID:       newID(),
		Time:     s.clampTime(t),
		X:        clampPercent(x),
		Y:        clampPercent(y),
		Duration: DefaultAnnotationDuration,
		Style:    style,
	}
	s.annotations = append(s.annotations, a)
	return a.ID, nil
}

// InsertAnnotation adds a fully specified annotation from a saved project.
func (s *Store) InsertAnnotation(a Annotation) string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if a.ID == "" {
		a.ID = newID()
	}
	if a.Duration <= 0 {
		a.Duration = DefaultAnnotationDuration
	}
	if s.audioDuration > 0 {
		a.Time = s.clampTime(a.Time)
	}
	s.annotations = append(s.annotations, a)
	return a.ID
}

// MoveAnnotation changes an annotation's time, clamped to [0, audioDuration].
func (s *Store) MoveAnnotation(id string, newTime float64) (Annotation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, err := s.annotationIndex(id)
	if err != nil {
		return Annotation{}, err
	}
	s.annotations[i].Time = s.clampTime(newTime)
	return s.annotations[i], nil
}

func (s *Store) DeleteAnnotation(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	i, err := s.annotationIndex(id)
	if err != nil {
		return err
	}
	s.annotations = append(s.annotations[:i], s.annotations[i+1:]...)
	return nil
}

func (s *Store) Annotations() []Annotation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]Annotation(nil), s.annotations...)
}

// Snapshot returns a deep copy of the timeline.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := Snapshot{
		AudioDuration: s.audioDuration,
		VideoTitle:    s.videoTitle,
		Media:         append([]MediaItem(nil), s.media...),
		Clips:         append([]Clip(nil), s.clips...),
		Annotations:   append([]Annotation(nil), s.annotations...),
	}
	for _, c := range s.clips {
		if c.IsStartScreen {
			snap.StartScreenID = c.MediaID
			break
		}
	}
	return snap
}

// fit clamps a clip so that 0 <= start and start+duration <= audioDuration.
func (s *Store) fit(c Clip) Clip {
	if s.audioDuration <= 0 {
		return c
	}
	if c.Duration > s.audioDuration {
		c.Duration = s.audioDuration
	}
	if c.StartTime < 0 || math.IsNaN(c.StartTime) {
		c.StartTime = 0
	}
	if c.End() > s.audioDuration {
		c.StartTime = s.audioDuration - c.Duration
	}
	// Subtraction can leave the end one ulp past the boundary.
	if c.End() > s.audioDuration {
		c.Duration = s.audioDuration - c.StartTime
	}
	return c
}

func (s *Store) clampTime(t float64) float64 {
	if t < 0 || math.IsNaN(t) {
		return 0
	}
	if t > s.audioDuration {
		return s.audioDuration
	}
	return t
}

func (s *Store) hasMedia(id string) bool {
	for _, m := range s.media {
		if m.ID == id {
			return true
		}
	}
	return false
}

func (s *Store) clipIndex(id string) (int, error) {
	for i, c := range s.clips {
		if c.ID == id {
			return i, nil
		}
	}
	return -1, fmt.Errorf("clip %s: %w", id, ErrNotFound)
}

func (s *Store) annotationIndex(id string) (int, error) {
	for i, a := range s.annotations {
		if a.ID == id {
			return i, nil
		}
	}
	return -1, fmt.Errorf("annotation %s: %w", id, ErrNotFound)
}
