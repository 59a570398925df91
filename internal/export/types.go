package export

import (
	"time"

	"github.com/indii/reelstudio/internal/audio"
	"github.com/indii/reelstudio/internal/encoder"
	"github.com/indii/reelstudio/internal/media"
	"github.com/indii/reelstudio/internal/timeline"
)

// State is the sequencer lifecycle.
type State string

const (
	StateIdle       State = "idle"
	StatePreparing  State = "preparing"
	StateRecording  State = "recording"
	StateFinalizing State = "finalizing"
	StateFailed     State = "failed"
)

const (
	DefaultGrace    = 1000 * time.Millisecond
	maxNameLength   = 80
	framesDirSuffix = "_frames"
)

// Request is one export of an immutable snapshot.
type Request struct {
	Snapshot timeline.Snapshot
	// Audio is the track as imported, silence prefix included.
	Audio     *audio.Buffer
	Format    string
	FrameRate int
	Name      string
	OutputDir string
}

// Result is what a finished export hands back.
type Result struct {
	Output   encoder.Output  `json:"output"`
	Profile  encoder.Profile `json:"profile"`
	Frames   int             `json:"frames"`
	Warnings []string        `json:"warnings,omitempty"`
	Failures []media.Failure `json:"-"`
	Elapsed  time.Duration   `json:"elapsed"`
}

// Observer receives state transitions and progress in percent.
type Observer interface {
	OnState(s State)
	OnProgress(pct float64)
}

// ObserverFuncs adapts plain functions to Observer. Nil fields are skipped.
type ObserverFuncs struct {
	State    func(State)
	Progress func(float64)
}

func (o ObserverFuncs) OnState(s State) {
	if o.State != nil {
		o.State(s)
	}
}

func (o ObserverFuncs) OnProgress(pct float64) {
	if o.Progress != nil {
		o.Progress(pct)
	}
}

type nopObserver struct{}

func (nopObserver) OnState(State)      {}
func (nopObserver) OnProgress(float64) {}
