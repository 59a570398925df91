package audio

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/indii/reelstudio/internal/ffmpeg"
)

// Decoder turns encoded audio bytes into a sample buffer.
type Decoder interface {
	Decode(ctx context.Context, data []byte) (*Buffer, error)
}

// WAVDecoder decodes RIFF/WAVE input without external tools.
type WAVDecoder struct{}

func (WAVDecoder) Decode(_ context.Context, data []byte) (*Buffer, error) {
	return ReadWAV(bytes.NewReader(data))
}

// FFmpegDecoder pipes arbitrary audio through ffmpeg and reads back f32le.
type FFmpegDecoder struct {
	runner     *ffmpeg.Runner
	SampleRate int
	Channels   int
}

func NewFFmpegDecoder(runner *ffmpeg.Runner) *FFmpegDecoder {
	return &FFmpegDecoder{runner: runner, SampleRate: DefaultSampleRate, Channels: DefaultChannels}
}

func (d *FFmpegDecoder) Decode(ctx context.Context, data []byte) (*Buffer, error) {
	var out bytes.Buffer
	res := d.runner.Run(ctx, bytes.NewReader(data), &out,
		"-hide_banner", "-nostdin",
		"-i", "pipe:0",
		"-vn",
		"-f", "f32le",
		"-acodec", "pcm_f32le",
		"-ac", fmt.Sprint(d.Channels),
		"-ar", fmt.Sprint(d.SampleRate),
		"pipe:1",
	)
	if !res.IsSuccess() {
		return nil, fmt.Errorf("ffmpeg decode exited %d: %s", res.ExitCode, res.StderrTail)
	}

	raw := out.Bytes()
	samples := make([]float32, len(raw)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	samples = samples[:len(samples)-len(samples)%d.Channels]
	return FromInterleaved(samples, d.SampleRate, d.Channels)
}

// AutoDecoder tries WAV first and falls back to ffmpeg when one is
// configured.
type AutoDecoder struct {
	FFmpeg Decoder
}

func (a AutoDecoder) Decode(ctx context.Context, data []byte) (*Buffer, error) {
	if len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE" {
		if buf, err := ReadWAV(bytes.NewReader(data)); err == nil {
			return buf, nil
		}
	}
	if a.FFmpeg == nil {
		return nil, fmt.Errorf("audio is not WAV and no ffmpeg decoder is configured")
	}
	return a.FFmpeg.Decode(ctx, data)
}
