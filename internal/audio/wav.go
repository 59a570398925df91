package audio

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

const (
	wavBitDepth  = 16
	wavFormatPCM = 1
)

var ErrNotWAV = errors.New("not a PCM RIFF/WAVE stream")

// WriteWAV writes b as a 16-bit PCM RIFF/WAVE stream. Writers that cannot
// seek get the stream assembled in memory first.
func (b *Buffer) WriteWAV(w io.Writer) error {
	if len(b.Channels) == 0 {
		return ErrEmpty
	}
	if ws, ok := w.(io.WriteSeeker); ok {
		return b.encodeWAV(ws)
	}
	var mem seekBuffer
	if err := b.encodeWAV(&mem); err != nil {
		return err
	}
	_, err := w.Write(mem.buf)
	return err
}

func (b *Buffer) encodeWAV(w io.WriteSeeker) error {
	channels := len(b.Channels)
	frames := b.Frames()
	data := make([]int, frames*channels)
	for i := 0; i < frames; i++ {
		for c := 0; c < channels; c++ {
			data[i*channels+c] = int(toPCM16(b.Channels[c][i]))
		}
	}

	enc := wav.NewEncoder(w, b.SampleRate, wavBitDepth, channels, wavFormatPCM)
	buf := &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: channels, SampleRate: b.SampleRate},
		Data:           data,
		SourceBitDepth: wavBitDepth,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write wav data: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("finish wav: %w", err)
	}
	return nil
}

func toPCM16(v float32) int16 {
	if v > 1 {
		v = 1
	} else if v < -1 {
		v = -1
	}
	if v < 0 {
		return int16(math.Round(float64(v) * 32768))
	}
	return int16(math.Round(float64(v) * 32767))
}

// ReadWAV decodes an integer PCM WAVE stream (8, 16, 24 or 32 bit). Float
// and compressed payloads are rejected so callers can hand them to ffmpeg.
func ReadWAV(r io.Reader) (*Buffer, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read wav: %w", err)
	}
	data, err = boundChunkSizes(data)
	if err != nil {
		return nil, err
	}

	dec := wav.NewDecoder(bytes.NewReader(data))
	if !dec.IsValidFile() {
		return nil, ErrNotWAV
	}
	if dec.WavAudioFormat != wavFormatPCM {
		return nil, fmt.Errorf("%w: format %d", ErrNotWAV, dec.WavAudioFormat)
	}
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		return nil, fmt.Errorf("decode wav: %w", err)
	}
	return fromIntBuffer(pcm, int(dec.BitDepth))
}

func fromIntBuffer(pcm *goaudio.IntBuffer, bits int) (*Buffer, error) {
	if pcm.Format == nil || pcm.Format.NumChannels <= 0 {
		return nil, ErrEmpty
	}
	if bits < 8 || bits > 32 {
		return nil, fmt.Errorf("unsupported bit depth %d", bits)
	}
	channels := pcm.Format.NumChannels
	count := len(pcm.Data) - len(pcm.Data)%channels
	samples := make([]float32, count)
	scale := float32(math.Ldexp(1, bits-1))
	for i, v := range pcm.Data[:count] {
		if bits == 8 {
			samples[i] = float32(v-128) / 128
		} else {
			samples[i] = float32(v) / scale
		}
	}
	return FromInterleaved(samples, pcm.Format.SampleRate, channels)
}

// boundChunkSizes checks the top-level chunk table against the input length
// before the decoder allocates from it. Chunks other than data must fit. A
// data size past the end (streamed WAVs write 0xFFFFFFFF) is cut to the
// whole sample frames present.
func boundChunkSizes(data []byte) ([]byte, error) {
	if len(data) < 12 || string(data[0:4]) != "RIFF" || string(data[8:12]) != "WAVE" {
		return nil, ErrNotWAV
	}
	blockAlign := 1
	for off := 12; off+8 <= len(data); {
		id := string(data[off : off+4])
		size := int64(binary.LittleEndian.Uint32(data[off+4 : off+8]))
		body := int64(len(data) - off - 8)

		if id == "data" {
			if size <= body {
				return data, nil
			}
			fixed := body - body%int64(blockAlign)
			out := bytes.Clone(data[:off+8+int(fixed)])
			binary.LittleEndian.PutUint32(out[off+4:off+8], uint32(fixed))
			binary.LittleEndian.PutUint32(out[4:8], uint32(len(out)-8))
			return out, nil
		}
		if size > body {
			return nil, fmt.Errorf("%w: %q chunk claims %d bytes, %d remain", ErrNotWAV, id, size, body)
		}
		if id == "fmt " && size >= 16 {
			if ba := int(binary.LittleEndian.Uint16(data[off+20 : off+22])); ba > 0 {
				blockAlign = ba
			}
		}
		off += 8 + int(size) + int(size%2)
	}
	return nil, fmt.Errorf("%w: no data chunk", ErrNotWAV)
}

// seekBuffer is an in-memory io.WriteSeeker for the encoder, which patches
// its header sizes on Close.
type seekBuffer struct {
	buf []byte
	pos int
}

func (s *seekBuffer) Write(p []byte) (int, error) {
	if end := s.pos + len(p); end > len(s.buf) {
		s.buf = append(s.buf, make([]byte, end-len(s.buf))...)
	}
	n := copy(s.buf[s.pos:], p)
	s.pos += n
	return n, nil
}

func (s *seekBuffer) Seek(offset int64, whence int) (int64, error) {
	var base int64
	switch whence {
	case io.SeekStart:
	case io.SeekCurrent:
		base = int64(s.pos)
	case io.SeekEnd:
		base = int64(len(s.buf))
	default:
		return 0, errors.New("invalid whence")
	}
	p := base + offset
	if p < 0 {
		return 0, errors.New("negative position")
	}
	s.pos = int(p)
	return p, nil
}
