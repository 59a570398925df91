package encoder

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"image"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/indii/reelstudio/internal/audio"
	"github.com/indii/reelstudio/internal/ffmpeg"
	"github.com/indii/reelstudio/internal/logging"
)

var (
	ErrNotStarted = errors.New("sink not started")
	ErrFrameSize  = errors.New("frame size does not match stream")
)

// Stream describes what a sink is about to receive.
type Stream struct {
	Width      int
	Height     int
	FrameRate  int
	FrameCount int
	// Audio is the full, already padded track. Nil produces silence.
	Audio      *audio.Buffer
	Profile    Profile
	OutputPath string
	Bitrate    int
}

// Output is the finished container.
type Output struct {
	Path      string `json:"path"`
	MIMEType  string `json:"mime_type"`
	Extension string `json:"extension"`
	Size      int64  `json:"size"`
	Frames    int    `json:"frames"`
}

// Sink consumes frames in order and produces one output.
type Sink interface {
	Begin(ctx context.Context, s Stream) error
	WriteFrame(img *image.RGBA) error
	Finish(ctx context.Context) (Output, error)
	// Abort stops the sink and removes partial output.
	Abort()
}

// NewSink returns the sink implementation for a negotiated profile.
func NewSink(p Profile, runner *ffmpeg.Runner, logger *slog.Logger) (Sink, error) {
	if p.Format == FormatFrames {
		return &FrameDirSink{logger: logger}, nil
	}
	if runner == nil {
		return nil, fmt.Errorf("%w: ffmpeg is not available", ErrUnsupportedFormat)
	}
	return NewFFmpegSink(runner, logger), nil
}

func streamAudio(s Stream) *audio.Buffer {
	if s.Audio != nil && s.Audio.Frames() > 0 {
		return s.Audio
	}
	seconds := 0.0
	if s.FrameRate > 0 {
		seconds = float64(s.FrameCount) / float64(s.FrameRate)
	}
	return audio.Silence(seconds, audio.DefaultSampleRate, audio.DefaultChannels)
}

func writeWAVFile(path string, buf *audio.Buffer) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create audio file: %w", err)
	}
	if err := buf.WriteWAV(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// FFmpegSink streams raw RGBA frames into ffmpeg's stdin and muxes them with
// a WAV copy of the audio track.
type FFmpegSink struct {
	runner *ffmpeg.Runner
	logger *slog.Logger

	stream   Stream
	proc     *ffmpeg.Process
	w        *bufio.Writer
	wavPath  string
	partPath string
	frames   int
}

func NewFFmpegSink(runner *ffmpeg.Runner, logger *slog.Logger) *FFmpegSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &FFmpegSink{runner: runner, logger: logger}
}

// Args builds the ffmpeg command line for s, reading frames from pipe:0.
func Args(s Stream, wavPath, outPath string) []string {
	args := []string{
		"-hide_banner", "-loglevel", "error", "-y",
		"-f", "rawvideo",
		"-pix_fmt", "rgba",
		"-s", strconv.Itoa(s.Width) + "x" + strconv.Itoa(s.Height),
		"-framerate", strconv.Itoa(s.FrameRate),
		"-i", "pipe:0",
		"-i", wavPath,
		"-map", "0:v:0", "-map", "1:a:0",
		"-c:v", s.Profile.VideoCodec,
	}
	bitrate := s.Bitrate
	if bitrate <= 0 {
		bitrate = DefaultBitrate
	}
	switch s.Profile.VideoCodec {
	case "libx264":
		args = append(args, "-preset", "medium", "-crf", "23")
	default:
		args = append(args, "-b:v", strconv.Itoa(bitrate))
	}
	args = append(args,
		"-pix_fmt", "yuv420p",
		"-c:a", s.Profile.AudioCodec,
		"-shortest",
		"-f", s.Profile.Container,
		outPath,
	)
	return args
}

func (s *FFmpegSink) Begin(ctx context.Context, st Stream) error {
	if err := os.MkdirAll(filepath.Dir(st.OutputPath), 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	s.stream = st
	s.partPath = st.OutputPath + ".part"
	s.wavPath = st.OutputPath + ".audio.wav"

	if err := writeWAVFile(s.wavPath, streamAudio(st)); err != nil {
		return err
	}

	proc, err := s.runner.Start(ctx, Args(st, s.wavPath, s.partPath)...)
	if err != nil {
		os.Remove(s.wavPath)
		return err
	}
	s.proc = proc
	s.w = bufio.NewWriterSize(proc.Stdin(), 4*st.Width*16)
	s.logger.Info("encoder started",
		"mime_type", st.Profile.MIMEType,
		"video_codec", st.Profile.VideoCodec,
		"audio_codec", st.Profile.AudioCodec,
		"frames", st.FrameCount,
	)
	return nil
}

func (s *FFmpegSink) WriteFrame(img *image.RGBA) error {
	if s.proc == nil {
		return ErrNotStarted
	}
	if err := writeRGBA(s.w, img, s.stream.Width, s.stream.Height); err != nil {
		return fmt.Errorf("write frame %d: %w", s.frames, err)
	}
	s.frames++
	return nil
}

func writeRGBA(w io.Writer, img *image.RGBA, width, height int) error {
	b := img.Rect
	if b.Dx() != width || b.Dy() != height {
		return ErrFrameSize
	}
	if img.Stride == 4*width {
		_, err := w.Write(img.Pix[:4*width*height])
		return err
	}
	for y := 0; y < height; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+4*width]
		if _, err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

func (s *FFmpegSink) Finish(ctx context.Context) (Output, error) {
	if s.proc == nil {
		return Output{}, ErrNotStarted
	}
	defer os.Remove(s.wavPath)

	flushErr := s.w.Flush()
	res := s.proc.Wait()
	if flushErr != nil || !res.IsSuccess() {
		os.Remove(s.partPath)
		return Output{}, fmt.Errorf("ffmpeg exited %d: %s", res.ExitCode, res.StderrTail)
	}
	if err := ctx.Err(); err != nil {
		os.Remove(s.partPath)
		return Output{}, err
	}
	if err := os.Rename(s.partPath, s.stream.OutputPath); err != nil {
		os.Remove(s.partPath)
		return Output{}, fmt.Errorf("finalize output: %w", err)
	}

	info, err := os.Stat(s.stream.OutputPath)
	if err != nil {
		return Output{}, fmt.Errorf("stat output: %w", err)
	}
	s.logger.Info("encoder finished",
		"frames", s.frames,
		logging.Bytes("size", info.Size()),
		"duration_ms", res.Duration.Milliseconds(),
	)
	return Output{
		Path:      s.stream.OutputPath,
		MIMEType:  s.stream.Profile.MIMEType,
		Extension: s.stream.Profile.Extension,
		Size:      info.Size(),
		Frames:    s.frames,
	}, nil
}

func (s *FFmpegSink) Abort() {
	if s.proc != nil {
		s.proc.Kill()
	}
	os.Remove(s.partPath)
	os.Remove(s.wavPath)
}

// FrameDirSink writes every frame as frame_%05d.png plus audio.wav into a
// directory. It needs no encoder.
type FrameDirSink struct {
	logger *slog.Logger

	stream  Stream
	dir     string
	enc     png.Encoder
	frames  int
	started bool
}

func (s *FrameDirSink) Begin(_ context.Context, st Stream) error {
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if err := os.MkdirAll(st.OutputPath, 0755); err != nil {
		return fmt.Errorf("create frame dir: %w", err)
	}
	s.stream = st
	s.dir = st.OutputPath
	s.enc = png.Encoder{CompressionLevel: png.BestSpeed}
	s.frames = 0
	s.started = true
	return writeWAVFile(filepath.Join(s.dir, "audio.wav"), streamAudio(st))
}

// FrameName returns the file name of frame n.
func FrameName(n int) string {
	return fmt.Sprintf("frame_%05d.png", n)
}

func (s *FrameDirSink) WriteFrame(img *image.RGBA) error {
	if !s.started {
		return ErrNotStarted
	}
	f, err := os.Create(filepath.Join(s.dir, FrameName(s.frames)))
	if err != nil {
		return fmt.Errorf("create frame: %w", err)
	}
	bw := bufio.NewWriter(f)
	if err := s.enc.Encode(bw, img); err != nil {
		f.Close()
		return fmt.Errorf("encode frame %d: %w", s.frames, err)
	}
	if err := bw.Flush(); err != nil {
		f.Close()
		return err
	}
	if err := f.Close(); err != nil {
		return err
	}
	s.frames++
	return nil
}

func (s *FrameDirSink) Finish(_ context.Context) (Output, error) {
	if !s.started {
		return Output{}, ErrNotStarted
	}
	var size int64
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return Output{}, fmt.Errorf("read frame dir: %w", err)
	}
	for _, e := range entries {
		if info, err := e.Info(); err == nil {
			size += info.Size()
		}
	}
	s.logger.Info("frame sequence written", "frames", s.frames, logging.Bytes("size", size))
	return Output{Path: s.dir, MIMEType: "image/png", Size: size, Frames: s.frames}, nil
}

func (s *FrameDirSink) Abort() {
	if s.dir != "" {
		os.RemoveAll(s.dir)
	}
}
