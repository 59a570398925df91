// Package audio holds decoded sample buffers and converts them to and from
// the formats the encoder consumes.
package audio

import (
	"errors"
	"fmt"
	"math"
)

const (
	DefaultSampleRate = 48000
	DefaultChannels   = 2
)

var ErrEmpty = errors.New("audio buffer has no channels")

// Buffer is planar float32 PCM. All channels have the same length.
type Buffer struct {
	SampleRate int
	Channels   [][]float32
}

// Silence returns a silent buffer of the given length in seconds.
func Silence(seconds float64, sampleRate, channels int) *Buffer {
	if sampleRate <= 0 {
		sampleRate = DefaultSampleRate
	}
	if channels <= 0 {
		channels = DefaultChannels
	}
	n := int(math.Round(max(0, seconds) * float64(sampleRate)))
	b := &Buffer{SampleRate: sampleRate, Channels: make([][]float32, channels)}
	for i := range b.Channels {
		b.Channels[i] = make([]float32, n)
	}
	return b
}

// Frames returns the number of samples per channel.
func (b *Buffer) Frames() int {
	if b == nil || len(b.Channels) == 0 {
		return 0
	}
	return len(b.Channels[0])
}

// Duration returns the length in seconds.
func (b *Buffer) Duration() float64 {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return float64(b.Frames()) / float64(b.SampleRate)
}

// PadSilence returns a copy of b with seconds of silence prepended.
func (b *Buffer) PadSilence(seconds float64) *Buffer {
	pad := int(math.Round(max(0, seconds) * float64(b.SampleRate)))
	out := &Buffer{SampleRate: b.SampleRate, Channels: make([][]float32, len(b.Channels))}
	for i, ch := range b.Channels {
		c := make([]float32, pad+len(ch))
		copy(c[pad:], ch)
		out.Channels[i] = c
	}
	return out
}

// Interleave returns samples as frame-interleaved float32 values.
func (b *Buffer) Interleave() []float32 {
	n, ch := b.Frames(), len(b.Channels)
	out := make([]float32, n*ch)
	for i := 0; i < n; i++ {
		for c := 0; c < ch; c++ {
			out[i*ch+c] = b.Channels[c][i]
		}
	}
	return out
}

// FromInterleaved splits frame-interleaved samples into a planar buffer.
func FromInterleaved(samples []float32, sampleRate, channels int) (*Buffer, error) {
	if channels <= 0 {
		return nil, ErrEmpty
	}
	if len(samples)%channels != 0 {
		return nil, fmt.Errorf("sample count %d not divisible by %d channels", len(samples), channels)
	}
	n := len(samples) / channels
	b := &Buffer{SampleRate: sampleRate, Channels: make([][]float32, channels)}
	for c := range b.Channels {
		b.Channels[c] = make([]float32, n)
	}
	for i := 0; i < n; i++ {
		for c := 0; c < channels; c++ {
			b.Channels[c][i] = samples[i*channels+c]
		}
	}
	return b, nil
}

