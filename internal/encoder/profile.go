// Package encoder negotiates an output format against the installed encoder
// and streams composited frames plus one audio track into a container.
package encoder

import (
	"errors"
	"fmt"
	"strings"

	"github.com/indii/reelstudio/internal/ffmpeg"
)

const (
	FormatMP4    = "mp4"
	FormatWebM   = "webm"
	FormatAVI    = "avi"
	FormatFrames = "frames"

	DefaultBitrate = 5_000_000
)

var ErrUnsupportedFormat = errors.New("no supported codec for export format")

// Profile is one codec/container combination a format can be produced with.
type Profile struct {
	Format      string   `json:"format"`
	MIMEType    string   `json:"mime_type"`
	Container   string   `json:"container"`
	VideoCodec  string   `json:"video_codec"`
	AudioCodecs []string `json:"-"`
	AudioCodec  string   `json:"audio_codec"`
	Extension   string   `json:"extension"`
	// Relabeled marks a profile whose payload is another container under a
	// different extension.
	Relabeled bool `json:"relabeled,omitempty"`
}

var (
	h264Audio = []string{"aac"}
	vpxAudio  = []string{"libopus", "libvorbis"}

	webmProfiles = []Profile{
		{MIMEType: "video/webm;codecs=vp9", Container: "webm", VideoCodec: "libvpx-vp9", AudioCodecs: vpxAudio, Extension: ".webm"},
		{MIMEType: "video/webm;codecs=vp8", Container: "webm", VideoCodec: "libvpx", AudioCodecs: vpxAudio, Extension: ".webm"},
		{MIMEType: "video/webm", Container: "webm", VideoCodec: "libvpx", AudioCodecs: vpxAudio, Extension: ".webm"},
	}

	profiles = map[string][]Profile{
		FormatMP4: append([]Profile{
			{MIMEType: "video/mp4", Container: "mp4", VideoCodec: "libx264", AudioCodecs: h264Audio, Extension: ".mp4"},
			{MIMEType: "video/mp4;codecs=h264", Container: "mp4", VideoCodec: "libx264", AudioCodecs: h264Audio, Extension: ".mp4"},
			{MIMEType: "video/mp4;codecs=avc1", Container: "mp4", VideoCodec: "libopenh264", AudioCodecs: h264Audio, Extension: ".mp4"},
		}, webmProfiles[0], webmProfiles[2]),
		FormatWebM: webmProfiles,
		FormatAVI:  relabel(webmProfiles, ".avi"),
	}
)

func relabel(src []Profile, ext string) []Profile {
	out := make([]Profile, len(src))
	for i, p := range src {
		p.Extension = ext
		p.Relabeled = true
		out[i] = p
	}
	return out
}

// Formats lists the export formats accepted by Negotiate.
func Formats() []string {
	return []string{FormatMP4, FormatWebM, FormatAVI, FormatFrames}
}

// Candidates returns the ordered fallback list for format.
func Candidates(format string) []Profile {
	list := profiles[strings.ToLower(format)]
	out := make([]Profile, len(list))
	for i, p := range list {
		p.Format = strings.ToLower(format)
		out[i] = p
	}
	return out
}

// Negotiate picks the first candidate of format the capabilities support.
// The frames format needs no encoder.
func Negotiate(format string, caps *ffmpeg.Capabilities) (Profile, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == FormatFrames {
		return Profile{Format: FormatFrames, MIMEType: "image/png", Container: "image2", VideoCodec: "png", Extension: ""}, nil
	}

	list := Candidates(format)
	if len(list) == 0 {
		return Profile{}, fmt.Errorf("%w: unknown format %q", ErrUnsupportedFormat, format)
	}
	for _, p := range list {
		if !caps.HasMuxer(p.Container) || !caps.HasEncoder(p.VideoCodec) {
			continue
		}
		for _, ac := range p.AudioCodecs {
			if caps.HasEncoder(ac) {
				p.AudioCodec = ac
				return p, nil
			}
		}
	}
	return Profile{}, fmt.Errorf("%w: %s", ErrUnsupportedFormat, format)
}
