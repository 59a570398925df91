package api

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/indii/reelstudio/internal/encoder"
	"github.com/indii/reelstudio/internal/studio"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))
	r.Use(CORSAllowlist())
	r.Use(LoopbackGuard())

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Repository, cfg.Logger))

		r.Get("/status", statusHandler(cfg))
		r.Get("/formats", formatsHandler(cfg))
		r.Get("/runner", runnerHandler(cfg))
		r.Post("/runner/pause", pauseRunnerHandler(cfg))
		r.Post("/runner/resume", resumeRunnerHandler(cfg))

		r.Get("/projects", listProjectsHandler(cfg))
		r.Post("/projects", createProjectHandler(cfg))
		r.Post("/projects/import", importProjectHandler(cfg))

		r.Route("/projects/{id}", func(r chi.Router) {
			r.Get("/", getProjectHandler(cfg))
			r.Patch("/", updateProjectHandler(cfg))
			r.Delete("/", deleteProjectHandler(cfg))
			r.Post("/save", saveProjectHandler(cfg))
			r.Get("/document", projectDocumentHandler(cfg))

			r.Post("/audio", importAudioHandler(cfg))
			r.Post("/media", uploadMediaHandler(cfg))
			r.Post("/media/url", addMediaURLHandler(cfg))
			r.Delete("/media/{mediaID}", deleteMediaHandler(cfg))
			r.Put("/start-screen", startScreenHandler(cfg))

			r.Post("/clips", addClipHandler(cfg))
			r.Patch("/clips/{clipID}", moveClipHandler(cfg))
			r.Post("/clips/{clipID}/resize", resizeClipHandler(cfg))
			r.Delete("/clips/{clipID}", deleteClipHandler(cfg))

			r.Post("/annotations", addAnnotationHandler(cfg))
			r.Patch("/annotations/{annotationID}", moveAnnotationHandler(cfg))
			r.Delete("/annotations/{annotationID}", deleteAnnotationHandler(cfg))

			r.Post("/zoom", zoomHandler(cfg))
			r.Post("/fit", fitHandler(cfg))

			r.Get("/preview.png", previewHandler(cfg))
			r.Get("/playback", playbackStatusHandler(cfg))
			r.Post("/playback/play", playHandler(cfg))
			r.Post("/playback/pause", pausePlaybackHandler(cfg))
			r.Post("/playback/stop", stopPlaybackHandler(cfg))
			r.Post("/playback/seek", seekHandler(cfg))

			r.Get("/exports", listExportsHandler(cfg))
			r.Post("/exports", startExportHandler(cfg))
			r.Get("/edl", edlHandler(cfg))
			r.Get("/events", eventsHandler(cfg))
		})

		r.Get("/exports/{exportID}", getExportHandler(cfg))
		r.Post("/exports/{exportID}/cancel", cancelExportHandler(cfg))
		r.Get("/exports/{exportID}/download", downloadExportHandler(cfg))
		r.Head("/exports/{exportID}/download", downloadExportHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:  "ok",
			Version: cfg.Version,
			UptimeS: uptime,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		state := "idle"
		if cfg.Runner != nil && cfg.Runner.IsPaused() {
			state = "paused"
		}

		resp := StatusResponse{}
		if projects, err := cfg.Service.ListProjects(ctx); err == nil {
			resp.ProjectCount = len(projects)
		}

		if cfg.Runner != nil {
			if id := cfg.Runner.ActiveJob(); id != "" {
				if job, err := cfg.Repository.GetExportJob(ctx, id); err == nil && job != nil {
					jr := ExportJobToResponse(job)
					resp.ActiveExport = &jr
					state = "exporting"
				}
			}
		}

		if jobs, err := cfg.Repository.ListExportJobs(ctx, "", 1); err == nil && len(jobs) > 0 {
			if jobs[0].Status == studio.JobStatusFailed {
				resp.LastError = jobs[0].Error
				if state == "idle" {
					state = "error"
				}
			}
		}
		resp.State = state

		if cfg.Probe != nil {
			if caps := cfg.Probe.Peek(); caps != nil {
				resp.FFmpeg = &FFmpegStatus{
					Version:     caps.Version,
					Binary:      caps.Binary,
					LastProbeAt: caps.ProbedAt.Format(time.RFC3339),
				}
			}
		}

		WriteJSON(w, http.StatusOK, resp)
	}
}

func formatsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp := FormatsResponse{Formats: []FormatResponse{}}
		for _, f := range encoder.Formats() {
			fr := FormatResponse{Format: f}
			if cfg.Negotiator != nil {
				if p, err := cfg.Negotiator.Negotiate(r.Context(), f); err == nil {
					fr.Supported = true
					fr.Profile = &p
				}
			}
			resp.Formats = append(resp.Formats, fr)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func runnerHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Runner == nil {
			WriteError(w, http.StatusServiceUnavailable, "export runner unavailable", "UNAVAILABLE")
			return
		}
		WriteJSON(w, http.StatusOK, RunnerResponse{Paused: cfg.Runner.IsPaused(), ActiveJob: cfg.Runner.ActiveJob()})
	}
}

func pauseRunnerHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Runner == nil {
			WriteError(w, http.StatusServiceUnavailable, "export runner unavailable", "UNAVAILABLE")
			return
		}
		cfg.Runner.Pause()
		WriteJSON(w, http.StatusOK, RunnerResponse{Paused: true, ActiveJob: cfg.Runner.ActiveJob()})
	}
}

func resumeRunnerHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Runner == nil {
			WriteError(w, http.StatusServiceUnavailable, "export runner unavailable", "UNAVAILABLE")
			return
		}
		cfg.Runner.Resume()
		WriteJSON(w, http.StatusOK, RunnerResponse{Paused: false, ActiveJob: cfg.Runner.ActiveJob()})
	}
}

// decodeBody reads a JSON request body into v, writing a 400 on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, MaxUploadBytes))
	if err := dec.Decode(v); err != nil {
		WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
		return false
	}
	return true
}

// openSession resolves the {id} project into its live session.
func openSession(cfg ServerConfig, w http.ResponseWriter, r *http.Request) (*studio.Session, bool) {
	sess, err := cfg.Service.Open(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, err)
		return nil, false
	}
	return sess, true
}

// decodeStrict decodes data into v, rejecting unknown fields.
func decodeStrict(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}
