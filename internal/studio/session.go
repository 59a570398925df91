package studio

import (
	"sync"

	"github.com/indii/reelstudio/internal/audio"
	"github.com/indii/reelstudio/internal/playback"
	"github.com/indii/reelstudio/internal/project"
	"github.com/indii/reelstudio/internal/timeline"
	"github.com/indii/reelstudio/internal/timescale"
)

// Session is one open project: its entity store, decoded audio and the
// playback clock of its live preview.
type Session struct {
	ID    string
	Store *timeline.Store
	Clock *playback.Clock

	mu        sync.RWMutex
	name      string
	audio     *audio.Buffer
	audioFile *project.Asset
	scale     float64

	preview *previewCache
}

func newSession(id, name string, clock playback.AudioClock) *Session {
	return &Session{
		ID:    id,
		Store: timeline.NewStore(),
		Clock: playback.NewClock(clock),
		name:  name,
		scale: timescale.DefaultScale,

		preview: newPreviewCache(),
	}
}

func (s *Session) Name() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.name
}

func (s *Session) SetName(name string) {
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()
}

// Audio returns the padded audio track, or nil when none is decoded.
func (s *Session) Audio() *audio.Buffer {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.audio
}

func (s *Session) AudioFile() *project.Asset {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.audioFile == nil {
		return nil
	}
	a := *s.audioFile
	return &a
}

// SetAudio installs a decoded track. The silence prefix is prepended here,
// once, and the timeline length follows the padded buffer.
func (s *Session) SetAudio(buf *audio.Buffer, file *project.Asset) float64 {
	padded := buf.PadSilence(timeline.SilencePrefix)
	s.mu.Lock()
	s.audio = padded
	s.audioFile = file
	s.mu.Unlock()

	d := padded.Duration()
	s.Store.SetAudioDuration(d)
	s.Clock.SetDuration(d)
	return d
}

// setAudioFile records the source of a track that could not be decoded.
func (s *Session) setAudioFile(file *project.Asset) {
	s.mu.Lock()
	s.audioFile = file
	s.mu.Unlock()
}

func (s *Session) Scale() float64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scale
}

// Zoom multiplies the timeline scale by factor within the allowed range.
func (s *Session) Zoom(factor float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scale = timescale.Zoom(s.scale, factor)
	return s.scale
}

// FitToWidth picks the scale that shows the whole track in containerWidth
// pixels.
func (s *Session) FitToWidth(containerWidth float64) float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scale = timescale.FitScale(containerWidth, s.Store.AudioDuration())
	return s.scale
}

// Document captures the session as a saved project.
func (s *Session) Document() *project.Document {
	return project.FromStore(s.Name(), s.Store, s.AudioFile())
}

// load replaces the session contents with doc. Audio is decoded separately.
func (s *Session) load(doc *project.Document) {
	s.mu.Lock()
	s.name = doc.Name
	s.audio = nil
	s.audioFile = doc.AudioFile
	s.mu.Unlock()

	doc.Apply(s.Store)
	s.Clock.Stop()
	s.Clock.SetDuration(doc.AudioDuration)
}
