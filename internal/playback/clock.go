// Package playback tracks the live playhead against an audio clock, renders
// single preview frames at it and serves finished exports over HTTP.
package playback

import (
	"math"
	"sync"
	"time"

	"github.com/indii/reelstudio/internal/timeline"
)

// State is the transport state of a Clock.
type State string

const (
	StateStopped State = "stopped"
	StatePaused  State = "paused"
	StatePlaying State = "playing"
)

// AudioClock is a monotonically advancing time source in seconds.
type AudioClock interface {
	Now() float64
}

// WallClock reads the process monotonic clock.
type WallClock struct {
	origin time.Time
}

func NewWallClock() *WallClock {
	return &WallClock{origin: time.Now()}
}

func (c *WallClock) Now() float64 {
	return time.Since(c.origin).Seconds()
}

// Status is a point-in-time view of a Clock.
type Status struct {
	State    State   `json:"state"`
	Time     float64 `json:"time"`
	Duration float64 `json:"duration"`
}

// Clock derives the playhead from an audio clock while playing and freezes
// it otherwise. Reaching the end stops and rewinds to zero.
type Clock struct {
	src AudioClock

	mu       sync.Mutex
	state    State
	duration float64
	// offset is the audio-clock reading that corresponds to time zero while
	// playing, or the frozen position otherwise.
	offset float64
}

func NewClock(src AudioClock) *Clock {
	if src == nil {
		src = NewWallClock()
	}
	return &Clock{src: src, state: StateStopped}
}

// SetDuration sets the playable length. A position past the new end is
// pulled back to it.
func (c *Clock) SetDuration(d float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur := c.current()
	if math.IsNaN(d) || math.IsInf(d, 0) {
		d = 0
	}
	c.duration = max(0, d)
	if cur > c.duration {
		c.seek(c.duration)
	}
}

func (c *Clock) Duration() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.duration
}

// Play resumes from the frozen position, or from zero when stopped at the end.
func (c *Clock) Play() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.duration <= 0 {
		return timeline.ErrNoAudio
	}
	if c.state == StatePlaying {
		return nil
	}
	pos := c.offset
	if pos >= c.duration {
		pos = 0
	}
	c.offset = c.src.Now() - pos
	c.state = StatePlaying
	return nil
}

func (c *Clock) Pause() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StatePlaying {
		return
	}
	c.offset = c.current()
	c.state = StatePaused
}

// Stop halts playback and rewinds to zero.
func (c *Clock) Stop() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateStopped
	c.offset = 0
}

// Seek moves the playhead to t, clamped to [0, duration]. NaN seeks to 0.
func (c *Clock) Seek(t float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seek(t)
}

// SeekRelative moves the playhead by delta seconds.
func (c *Clock) SeekRelative(delta float64) float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.seek(c.current() + delta)
}

func (c *Clock) seek(t float64) float64 {
	if math.IsNaN(t) {
		t = 0
	}
	t = min(max(t, 0), c.duration)
	if c.state == StatePlaying {
		c.offset = c.src.Now() - t
	} else {
		c.offset = t
		if c.state == StateStopped && t > 0 {
			c.state = StatePaused
		}
	}
	return t
}

// CurrentTime returns the playhead position.
func (c *Clock) CurrentTime() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current()
}

func (c *Clock) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.current()
	return c.state
}

func (c *Clock) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := c.current()
	return Status{State: c.state, Time: t, Duration: c.duration}
}

// current must be called with mu held. It performs the end-of-track stop.
func (c *Clock) current() float64 {
	if c.state != StatePlaying {
		return c.offset
	}
	t := c.src.Now() - c.offset
	if t >= c.duration {
		c.state = StateStopped
		c.offset = 0
		return 0
	}
	return max(0, t)
}
