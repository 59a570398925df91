package encoder

import (
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/indii/reelstudio/internal/audio"
	"github.com/indii/reelstudio/internal/ffmpeg"
)

func caps(encoders, muxers []string) *ffmpeg.Capabilities {
	c := &ffmpeg.Capabilities{Encoders: map[string]bool{}, Muxers: map[string]bool{}}
	for _, e := range encoders {
		c.Encoders[e] = true
	}
	for _, m := range muxers {
		c.Muxers[m] = true
	}
	return c
}

func TestNegotiate(t *testing.T) {
	full := caps([]string{"libx264", "aac", "libvpx-vp9", "libvpx", "libopus", "libvorbis"}, []string{"mp4", "webm"})
	vpxOnly := caps([]string{"libvpx", "libvorbis"}, []string{"webm"})

	tests := []struct {
		name      string
		format    string
		caps      *ffmpeg.Capabilities
		wantMIME  string
		wantCodec string
		wantAudio string
		wantExt   string
		wantErr   bool
	}{
		{"mp4 h264", "mp4", full, "video/mp4", "libx264", "aac", ".mp4", false},
		{"mp4 falls back to webm", "MP4", vpxOnly, "video/webm", "libvpx", "libvorbis", ".webm", false},
		{"webm vp9 first", "webm", full, "video/webm;codecs=vp9", "libvpx-vp9", "libopus", ".webm", false},
		{"avi relabels webm", "avi", vpxOnly, "video/webm;codecs=vp8", "libvpx", "libvorbis", ".avi", false},
		{"frames needs nothing", "frames", nil, "image/png", "png", "", "", false},
		{"unknown format", "mov", full, "", "", "", "", true},
		{"nothing installed", "webm", caps(nil, nil), "", "", "", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Negotiate(tt.format, tt.caps)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupportedFormat) {
					t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Negotiate: %v", err)
			}
			if p.MIMEType != tt.wantMIME || p.VideoCodec != tt.wantCodec || p.AudioCodec != tt.wantAudio || p.Extension != tt.wantExt {
				t.Errorf("got %s/%s/%s/%s", p.MIMEType, p.VideoCodec, p.AudioCodec, p.Extension)
			}
		})
	}
}

func TestNegotiate_AVIMarkedRelabeled(t *testing.T) {
	p, err := Negotiate("avi", caps([]string{"libvpx-vp9", "libopus"}, []string{"webm"}))
	if err != nil {
		t.Fatalf("Negotiate: %v", err)
	}
	if !p.Relabeled || p.Container != "webm" {
		t.Errorf("avi profile = %+v, want relabeled webm payload", p)
	}
}

func TestCandidates_Order(t *testing.T) {
	var mimes []string
	for _, p := range Candidates("mp4") {
		mimes = append(mimes, p.MIMEType)
	}
	want := []string{"video/mp4", "video/mp4;codecs=h264", "video/mp4;codecs=avc1", "video/webm;codecs=vp9", "video/webm"}
	if !slices.Equal(mimes, want) {
		t.Errorf("mp4 candidates = %v, want %v", mimes, want)
	}
	if len(Candidates("nope")) != 0 {
		t.Error("unknown format should have no candidates")
	}
}

func TestArgs(t *testing.T) {
	s := Stream{
		Width: 1284, Height: 2778, FrameRate: 30,
		Profile: Profile{VideoCodec: "libx264", AudioCodec: "aac", Container: "mp4"},
	}
	args := Args(s, "a.wav", "out.mp4")
	for _, want := range []string{"rawvideo", "rgba", "1284x2778", "pipe:0", "a.wav", "libx264", "medium", "23", "yuv420p", "aac", "-shortest", "mp4"} {
		if !slices.Contains(args, want) {
			t.Errorf("args missing %q: %v", want, args)
		}
	}
	if args[len(args)-1] != "out.mp4" {
		t.Errorf("last arg = %q, want output path", args[len(args)-1])
	}

	s.Profile = Profile{VideoCodec: "libvpx-vp9", AudioCodec: "libopus", Container: "webm"}
	args = Args(s, "a.wav", "out.webm")
	i := slices.Index(args, "-b:v")
	if i < 0 || args[i+1] != "5000000" {
		t.Errorf("vpx args should carry default bitrate: %v", args)
	}
}

func TestWriteRGBA_RejectsWrongSize(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	if err := writeRGBA(&discard{}, img, 8, 4); !errors.Is(err, ErrFrameSize) {
		t.Errorf("err = %v, want ErrFrameSize", err)
	}
}

type discard struct{ n int }

func (d *discard) Write(p []byte) (int, error) { d.n += len(p); return len(p), nil }

func TestWriteRGBA_SubImage(t *testing.T) {
	big := image.NewRGBA(image.Rect(0, 0, 8, 8))
	sub := big.SubImage(image.Rect(2, 2, 6, 6)).(*image.RGBA)
	var d discard
	if err := writeRGBA(&d, sub, 4, 4); err != nil {
		t.Fatalf("writeRGBA: %v", err)
	}
	if d.n != 4*4*4 {
		t.Errorf("wrote %d bytes, want 64", d.n)
	}
}

func TestFrameDirSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "frames")
	var sink Sink = &FrameDirSink{}

	st := Stream{Width: 2, Height: 2, FrameRate: 30, FrameCount: 3, OutputPath: dir}
	if err := sink.Begin(context.Background(), st); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	for i := 0; i < 3; i++ {
		img := image.NewRGBA(image.Rect(0, 0, 2, 2))
		img.Set(0, 0, color.RGBA{uint8(i * 10), 0, 0, 255})
		if err := sink.WriteFrame(img); err != nil {
			t.Fatalf("WriteFrame %d: %v", i, err)
		}
	}
	out, err := sink.Finish(context.Background())
	if err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if out.Frames != 3 || out.Path != dir || out.Size == 0 {
		t.Errorf("output = %+v", out)
	}

	f, err := os.Open(filepath.Join(dir, FrameName(2)))
	if err != nil {
		t.Fatalf("open frame: %v", err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("decode frame: %v", err)
	}
	if r, _, _, _ := img.At(0, 0).RGBA(); r>>8 != 20 {
		t.Errorf("frame 2 red = %d, want 20", r>>8)
	}

	wav, err := os.Open(filepath.Join(dir, "audio.wav"))
	if err != nil {
		t.Fatalf("open audio: %v", err)
	}
	defer wav.Close()
	buf, err := audio.ReadWAV(wav)
	if err != nil {
		t.Fatalf("ReadWAV: %v", err)
	}
	if d := buf.Duration(); d < 0.099 || d > 0.101 {
		t.Errorf("silent track duration = %v, want 0.1", d)
	}
}

func TestFrameDirSink_AbortRemovesDir(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "frames")
	sink := &FrameDirSink{}
	if err := sink.Begin(context.Background(), Stream{Width: 1, Height: 1, FrameRate: 30, FrameCount: 1, OutputPath: dir}); err != nil {
		t.Fatalf("Begin: %v", err)
	}
	sink.Abort()
	if _, err := os.Stat(dir); !os.IsNotExist(err) {
		t.Errorf("frame dir still present: %v", err)
	}
}

func TestSinks_NotStarted(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1, 1))
	if err := (&FrameDirSink{}).WriteFrame(img); !errors.Is(err, ErrNotStarted) {
		t.Errorf("frame dir err = %v", err)
	}
	if err := NewFFmpegSink(nil, nil).WriteFrame(img); !errors.Is(err, ErrNotStarted) {
		t.Errorf("ffmpeg err = %v", err)
	}
}

func TestNewSink(t *testing.T) {
	s, err := NewSink(Profile{Format: FormatFrames}, nil, nil)
	if err != nil {
		t.Fatalf("NewSink frames: %v", err)
	}
	if _, ok := s.(*FrameDirSink); !ok {
		t.Errorf("got %T, want *FrameDirSink", s)
	}
	if _, err := NewSink(Profile{Format: FormatMP4}, nil, nil); !errors.Is(err, ErrUnsupportedFormat) {
		t.Errorf("mp4 without runner err = %v", err)
	}
}
