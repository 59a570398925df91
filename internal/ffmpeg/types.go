// Package ffmpeg runs the ffmpeg binary as a subprocess: capability probes,
// one-shot conversions and long-running streaming encodes.
package ffmpeg

import "time"

// Capabilities is what the installed ffmpeg can encode and mux, as parsed
// from `ffmpeg -encoders` and `ffmpeg -muxers`.
type Capabilities struct {
	Version  string          `json:"version"`
	Binary   string          `json:"binary"`
	Encoders map[string]bool `json:"encoders"`
	Muxers   map[string]bool `json:"muxers"`
	ProbedAt time.Time       `json:"probed_at"`
}

// HasEncoder reports whether name is an available encoder.
func (c *Capabilities) HasEncoder(name string) bool {
	return c != nil && c.Encoders[name]
}

// HasMuxer reports whether name is an available muxer.
func (c *Capabilities) HasMuxer(name string) bool {
	return c != nil && c.Muxers[name]
}

// RunResult is the structured outcome of one ffmpeg invocation.
type RunResult struct {
	ExitCode   int           `json:"exit_code"`
	StderrTail string        `json:"stderr_tail,omitempty"` // last N bytes of stderr
	Duration   time.Duration `json:"duration"`
}

// IsSuccess returns true when the subprocess exited cleanly.
func (r RunResult) IsSuccess() bool { return r.ExitCode == 0 }
