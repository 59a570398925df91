package studio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/indii/reelstudio/internal/audio"
	"github.com/indii/reelstudio/internal/compositor"
	"github.com/indii/reelstudio/internal/logging"
	"github.com/indii/reelstudio/internal/media"
	"github.com/indii/reelstudio/internal/playback"
	"github.com/indii/reelstudio/internal/project"
	"github.com/indii/reelstudio/internal/timeline"
)

const DefaultProjectName = "New Project"

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrInvalidMedia    = errors.New("invalid media")
)

// Options configures a Service.
type Options struct {
	Loader  *media.Loader
	Decoder audio.Decoder
	// Clock creates the audio clock of each session. Nil uses the wall clock.
	Clock func() playback.AudioClock
	// StartScreen is the src of the start-screen image added to projects
	// that have none when audio is imported.
	StartScreen string
	// Style drives preview rendering. The zero value uses the default look.
	Style  compositor.Style
	Logger *slog.Logger
}

type Service struct {
	repo        Repository
	loader      *media.Loader
	decoder     audio.Decoder
	newClock    func() playback.AudioClock
	startScreen string
	style       compositor.Style
	logger      *slog.Logger

	mu       sync.Mutex
	sessions map[string]*Session
}

func NewService(repo Repository, opts Options) *Service {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Loader == nil {
		opts.Loader = media.NewLoader(media.DefaultTimeout, opts.Logger)
	}
	if opts.Decoder == nil {
		opts.Decoder = audio.AutoDecoder{}
	}
	if opts.Style.Pulses == nil {
		opts.Style = compositor.DefaultStyle()
	}
	if opts.Clock == nil {
		opts.Clock = func() playback.AudioClock { return playback.NewWallClock() }
	}
	return &Service{
		repo:        repo,
		loader:      opts.Loader,
		decoder:     opts.Decoder,
		newClock:    opts.Clock,
		startScreen: opts.StartScreen,
		style:       opts.Style,
		logger:      opts.Logger,
		sessions:    make(map[string]*Session),
	}
}

// Loader returns the media loader shared with exports.
func (s *Service) Loader() *media.Loader {
	return s.loader
}

func (s *Service) CreateProject(ctx context.Context, name string) (*Session, error) {
	if strings.TrimSpace(name) == "" {
		name = DefaultProjectName
	}
	sess := newSession(NewID(), name, s.newClock())
	if err := s.insert(ctx, sess); err != nil {
		return nil, err
	}
	s.logger.Info("project created", "project_id", sess.ID, "name", name)
	return sess, nil
}

func (s *Service) ListProjects(ctx context.Context) ([]*Project, error) {
	return s.repo.ListProjects(ctx)
}

func (s *Service) GetProject(ctx context.Context, id string) (*Project, error) {
	p, err := s.repo.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	if p == nil {
		return nil, ErrProjectNotFound
	}
	return p, nil
}

// Open returns the live session of a project, loading it on first use.
func (s *Service) Open(ctx context.Context, id string) (*Session, error) {
	s.mu.Lock()
	if sess, ok := s.sessions[id]; ok {
		s.mu.Unlock()
		return sess, nil
	}
	s.mu.Unlock()

	p, err := s.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}
	doc, err := project.Load(bytes.NewReader(p.Document))
	if err != nil {
		return nil, fmt.Errorf("project %s: %w", id, err)
	}

	sess := newSession(p.ID, p.Name, s.newClock())
	sess.load(doc)
	if doc.AudioFile != nil {
		s.restoreAudio(ctx, sess, doc.AudioFile)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.sessions[id]; ok {
		return existing, nil
	}
	s.sessions[id] = sess
	return sess, nil
}

// restoreAudio decodes a saved track. Failure keeps the saved duration so
// the timeline stays intact; exports then run over silence.
func (s *Service) restoreAudio(ctx context.Context, sess *Session, file *project.Asset) {
	duration := sess.Store.AudioDuration()
	buf, err := s.decodeSrc(ctx, file.Src)
	if err != nil {
		s.logger.Warn("saved audio unavailable", "project_id", sess.ID, "name", file.Name, "error", err)
		sess.setAudioFile(file)
		return
	}
	sess.SetAudio(buf, file)
	if d := sess.Store.AudioDuration(); duration > 0 && math.Abs(d-duration) > 0.05 {
		s.logger.Warn("decoded audio length differs from saved project",
			"project_id", sess.ID, "saved", duration, "decoded", d)
	}
}

func (s *Service) decodeSrc(ctx context.Context, src string) (*audio.Buffer, error) {
	data, err := s.loader.Read(ctx, src)
	if err != nil {
		return nil, err
	}
	return s.decoder.Decode(ctx, data)
}

// Save persists the current session state of a project.
func (s *Service) Save(ctx context.Context, id string) (*Project, error) {
	sess, err := s.Open(ctx, id)
	if err != nil {
		return nil, err
	}
	p, err := s.GetProject(ctx, id)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	if err := project.Save(&buf, sess.Document()); err != nil {
		return nil, err
	}
	p.Name = sess.Name()
	p.Document = buf.Bytes()
	p.AudioSrc = audioSrc(sess.AudioFile())
	p.UpdatedAt = time.Now()
	if err := s.repo.UpdateProject(ctx, p); err != nil {
		return nil, fmt.Errorf("save project: %w", err)
	}
	s.logger.Debug("project saved", "project_id", id, logging.Bytes("size", int64(len(p.Document))))
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.GetProject(ctx, id); err != nil {
		return err
	}
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
	return s.repo.DeleteProject(ctx, id)
}

// WriteDocument writes the saved-project JSON of a session.
func (s *Service) WriteDocument(ctx context.Context, id string, w io.Writer) error {
	sess, err := s.Open(ctx, id)
	if err != nil {
		return err
	}
	return project.Save(w, sess.Document())
}

// ImportDocument creates a new project from a saved-project document.
func (s *Service) ImportDocument(ctx context.Context, r io.Reader) (*Session, error) {
	doc, err := project.Load(r)
	if err != nil {
		return nil, err
	}
	sess := newSession(NewID(), doc.Name, s.newClock())
	sess.load(doc)
	if doc.AudioFile != nil {
		s.restoreAudio(ctx, sess, doc.AudioFile)
	}
	if err := s.insert(ctx, sess); err != nil {
		return nil, err
	}
	s.logger.Info("project imported", "project_id", sess.ID, "clips", len(doc.Clips), "highlights", len(doc.Highlights))
	return sess, nil
}

// ImportURL fetches a saved-project document and imports it.
func (s *Service) ImportURL(ctx context.Context, url string) (*Session, error) {
	data, err := s.loader.Read(ctx, url)
	if err != nil {
		return nil, fmt.Errorf("fetch project: %w", err)
	}
	return s.ImportDocument(ctx, bytes.NewReader(data))
}

func (s *Service) insert(ctx context.Context, sess *Session) error {
	var buf bytes.Buffer
	if err := project.Save(&buf, sess.Document()); err != nil {
		return err
	}
	now := time.Now()
	p := &Project{
		ID:        sess.ID,
		Name:      sess.Name(),
		Document:  buf.Bytes(),
		AudioSrc:  audioSrc(sess.AudioFile()),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateProject(ctx, p); err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	s.mu.Lock()
	s.sessions[sess.ID] = sess
	s.mu.Unlock()
	return nil
}

// ImportAudio decodes data into the project's track, replacing any previous
// one. It returns the padded timeline duration.
func (s *Service) ImportAudio(ctx context.Context, id, name, mimeType string, data []byte) (float64, error) {
	sess, err := s.Open(ctx, id)
	if err != nil {
		return 0, err
	}
	buf, err := s.decoder.Decode(ctx, data)
	if err != nil {
		return 0, fmt.Errorf("decode audio: %w", err)
	}
	if mimeType == "" {
		mimeType = media.SniffMIME(data)
	}
	file := &project.Asset{ID: NewID(), Name: name, Type: mimeType, Src: media.EncodeDataURI(mimeType, data)}
	d := sess.SetAudio(buf, file)

	if s.startScreen != "" {
		snap := sess.Store.Snapshot()
		if _, ok := snap.StartScreenClip(); !ok {
			item, ok := sess.Store.MediaBySrc(s.startScreen)
			if !ok {
				item = project.AssetFromSrc(s.startScreen)
				item.ID = sess.Store.AddMedia(item)
			}
			sess.Store.EnsureStartScreen(item.ID)
		}
	}

	s.logger.Info("audio imported", "project_id", id, "name", name,
		"duration", d, logging.Bytes("size", int64(len(data))))
	return d, nil
}

// AddImage registers image bytes in the media library as a data URI.
func (s *Service) AddImage(ctx context.Context, id, name string, data []byte) (timeline.MediaItem, error) {
	sess, err := s.Open(ctx, id)
	if err != nil {
		return timeline.MediaItem{}, err
	}
	cfg, format, err := media.DecodeConfig(data)
	if err != nil {
		return timeline.MediaItem{}, fmt.Errorf("%w: %w", ErrInvalidMedia, err)
	}
	mimeType := "image/" + format
	item := timeline.MediaItem{
		Name:     name,
		MimeType: mimeType,
		Src:      media.EncodeDataURI(mimeType, data),
		Width:    cfg.Width,
		Height:   cfg.Height,
	}
	item.ID = sess.Store.AddMedia(item)
	return item, nil
}

// AddImageURL registers a remote or local image by reference after checking
// that it decodes.
func (s *Service) AddImageURL(ctx context.Context, id, name, src string) (timeline.MediaItem, error) {
	sess, err := s.Open(ctx, id)
	if err != nil {
		return timeline.MediaItem{}, err
	}
	img, format, err := s.loader.Load(ctx, timeline.MediaItem{Src: src})
	if err != nil {
		return timeline.MediaItem{}, fmt.Errorf("%w: %w", ErrInvalidMedia, err)
	}
	if name == "" {
		name = project.AssetFromSrc(src).Name
	}
	b := img.Bounds()
	item := timeline.MediaItem{Name: name, MimeType: "image/" + format, Src: src, Width: b.Dx(), Height: b.Dy()}
	item.ID = sess.Store.AddMedia(item)
	return item, nil
}

// SetStartScreen pins mediaID as the start screen.
func (s *Service) SetStartScreen(ctx context.Context, id, mediaID string) (string, error) {
	sess, err := s.Open(ctx, id)
	if err != nil {
		return "", err
	}
	if _, ok := sess.Store.Media(mediaID); !ok {
		return "", fmt.Errorf("media %s: %w", mediaID, timeline.ErrNotFound)
	}
	return sess.Store.EnsureStartScreen(mediaID), nil
}

func audioSrc(a *project.Asset) string {
	if a == nil || strings.HasPrefix(a.Src, "data:") {
		return ""
	}
	return a.Src
}
