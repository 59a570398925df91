// Package media resolves asset sources and decodes images for compositing.
package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/sync/errgroup"

	// Registered decoders.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/indii/reelstudio/internal/timeline"
)

const (
	DefaultTimeout     = 30 * time.Second
	DefaultConcurrency = 4

	// MaxSourceBytes caps how much of one source is read.
	MaxSourceBytes = 128 << 20
)

var (
	ErrUnsupportedSource = errors.New("unsupported media source")
	ErrNotImage          = errors.New("media is not an image")
	ErrTooLarge          = errors.New("media source exceeds size limit")
)

// Loaded is a successfully decoded image.
type Loaded struct {
	ID     string
	Image  image.Image
	Format string
}

// Failure records why one asset could not be loaded.
type Failure struct {
	ID  string
	Src string
	Err error
}

// LoadReport is the settled outcome of LoadAll.
type LoadReport struct {
	Loaded []Loaded
	Failed []Failure
}

// Loader reads media from data URIs, http(s) URLs and local paths.
type Loader struct {
	HTTPClient  *http.Client
	Timeout     time.Duration
	Concurrency int
	// BaseDir resolves relative file paths.
	BaseDir string

	logger *slog.Logger
}

// NewLoader creates a loader whose individual loads give up after timeout.
func NewLoader(timeout time.Duration, logger *slog.Logger) *Loader {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Loader{
		HTTPClient:  &http.Client{Timeout: timeout},
		Timeout:     timeout,
		Concurrency: DefaultConcurrency,
		logger:      logger,
	}
}

// Read returns the raw bytes behind src.
func (l *Loader) Read(ctx context.Context, src string) ([]byte, error) {
	switch {
	case strings.HasPrefix(src, "data:"):
		data, _, err := DecodeDataURI(src)
		return data, err
	case strings.HasPrefix(src, "http://"), strings.HasPrefix(src, "https://"):
		return l.fetch(ctx, src)
	case strings.HasPrefix(src, "file://"):
		u, err := url.Parse(src)
		if err != nil {
			return nil, fmt.Errorf("parse %q: %w", src, err)
		}
		return readFile(u.Path)
	case src == "":
		return nil, fmt.Errorf("empty source: %w", ErrUnsupportedSource)
	case strings.Contains(src, "://"):
		return nil, fmt.Errorf("%q: %w", src, ErrUnsupportedSource)
	default:
		path := src
		if !filepath.IsAbs(path) && l.BaseDir != "" {
			path = filepath.Join(l.BaseDir, path)
		}
		return readFile(path)
	}
}

func (l *Loader) fetch(ctx context.Context, src string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, src, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	resp, err := l.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("media URL returned status %d", resp.StatusCode)
	}
	return readLimited(resp.Body)
}

func readFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open media: %w", err)
	}
	defer f.Close()
	return readLimited(f)
}

func readLimited(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxSourceBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read media: %w", err)
	}
	if len(data) > MaxSourceBytes {
		return nil, ErrTooLarge
	}
	return data, nil
}

// Load reads and decodes one image, bounded by the loader timeout.
func (l *Loader) Load(ctx context.Context, item timeline.MediaItem) (image.Image, string, error) {
	if item.MimeType != "" && !item.IsImage() {
		return nil, "", fmt.Errorf("%s: %w", item.MimeType, ErrNotImage)
	}
	ctx, cancel := context.WithTimeout(ctx, l.Timeout)
	defer cancel()

	type result struct {
		img    image.Image
		format string
		err    error
	}
	done := make(chan result, 1)
	go func() {
		data, err := l.Read(ctx, item.Src)
		if err != nil {
			done <- result{err: err}
			return
		}
		img, format, err := Decode(data)
		done <- result{img: img, format: format, err: err}
	}()

	select {
	case r := <-done:
		return r.img, r.format, r.err
	case <-ctx.Done():
		return nil, "", fmt.Errorf("load %s: %w", item.ID, ctx.Err())
	}
}

// LoadAll loads every item concurrently and waits for all of them to settle.
// Individual failures are collected, never returned.
func (l *Loader) LoadAll(ctx context.Context, items []timeline.MediaItem) *LoadReport {
	results := make([]Loaded, len(items))
	failures := make([]*Failure, len(items))

	var g errgroup.Group
	g.SetLimit(max(1, l.Concurrency))
	for i, item := range items {
		g.Go(func() error {
			img, format, err := l.Load(ctx, item)
			if err != nil {
				failures[i] = &Failure{ID: item.ID, Src: item.Src, Err: err}
				l.logger.Warn("media load failed", "media_id", item.ID, "name", item.Name, "error", err)
				return nil
			}
			results[i] = Loaded{ID: item.ID, Image: img, Format: format}
			b := img.Bounds()
			l.logger.Debug("media loaded", "media_id", item.ID, "format", format, "width", b.Dx(), "height", b.Dy())
			return nil
		})
	}
	_ = g.Wait()

	report := &LoadReport{}
	for i := range items {
		if failures[i] != nil {
			report.Failed = append(report.Failed, *failures[i])
			continue
		}
		report.Loaded = append(report.Loaded, results[i])
	}
	return report
}

// Decode decodes png, jpeg, gif or webp bytes.
func Decode(data []byte) (image.Image, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", fmt.Errorf("decode image (%s): %w", humanize.Bytes(uint64(len(data))), err)
	}
	return img, format, nil
}

// DecodeConfig returns dimensions and format without decoding pixels.
func DecodeConfig(data []byte) (image.Config, string, error) {
	return image.DecodeConfig(bytes.NewReader(data))
}

// SniffMIME guesses the MIME type of data.
func SniffMIME(data []byte) string {
	return http.DetectContentType(data)
}

// DecodeDataURI returns the payload and media type of a data: URI.
func DecodeDataURI(uri string) ([]byte, string, error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return nil, "", fmt.Errorf("not a data URI: %w", ErrUnsupportedSource)
	}
	meta, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return nil, "", fmt.Errorf("malformed data URI: %w", ErrUnsupportedSource)
	}

	mediaType := meta
	isBase64 := false
	if mt, ok := strings.CutSuffix(meta, ";base64"); ok {
		mediaType = mt
		isBase64 = true
	}
	if i := strings.IndexByte(mediaType, ';'); i >= 0 {
		mediaType = mediaType[:i]
	}
	if mediaType == "" {
		mediaType = "text/plain"
	}

	if isBase64 {
		data, err := base64.StdEncoding.DecodeString(payload)
		if err != nil {
			data, err = base64.RawStdEncoding.DecodeString(payload)
		}
		if err != nil {
			return nil, "", fmt.Errorf("decode data URI: %w", err)
		}
		return data, mediaType, nil
	}
	text, err := url.PathUnescape(payload)
	if err != nil {
		return nil, "", fmt.Errorf("decode data URI: %w", err)
	}
	return []byte(text), mediaType, nil
}

// EncodeDataURI builds a base64 data: URI.
func EncodeDataURI(mediaType string, data []byte) string {
	return "data:" + mediaType + ";base64," + base64.StdEncoding.EncodeToString(data)
}
