package api

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/indii/reelstudio/internal/encoder"
	"github.com/indii/reelstudio/internal/ffmpeg"
	"github.com/indii/reelstudio/internal/playback"
	"github.com/indii/reelstudio/internal/studio"
)

// MaxUploadBytes caps audio, image and project uploads.
const MaxUploadBytes = 256 << 20

type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// Negotiator resolves export formats against the installed encoder.
type Negotiator interface {
	Negotiate(ctx context.Context, format string) (encoder.Profile, error)
}

type ServerConfig struct {
	Port       int
	Version    string
	Service    *studio.Service
	Repository studio.Repository
	Runner     *studio.Runner
	Negotiator Negotiator
	Probe      *ffmpeg.CachedProbe
	Files      *playback.FileServer
	Logger     *slog.Logger
	StartTime  time.Time

	// DefaultFormat is used when an export request names no format.
	DefaultFormat string
}

func NewServer(cfg ServerConfig) *Server {
	router := NewRouter(cfg)

	return &Server{
		httpServer: &http.Server{
			Addr:         fmt.Sprintf("127.0.0.1:%d", cfg.Port),
			Handler:      router,
			ReadTimeout:  60 * time.Second,
			WriteTimeout: 0,
			IdleTimeout:  60 * time.Second,
		},
		logger: cfg.Logger,
	}
}

func (s *Server) Start() error {
	s.logger.Info("starting HTTP server", "addr", s.httpServer.Addr)
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) Addr() string {
	return s.httpServer.Addr
}
