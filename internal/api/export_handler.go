package api

import (
	"math"
	"mime"
	"net/http"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/indii/reelstudio/internal/encoder"
	"github.com/indii/reelstudio/internal/export"
	"github.com/indii/reelstudio/internal/studio"
)

func startExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Runner == nil {
			WriteError(w, http.StatusServiceUnavailable, "export runner unavailable", "UNAVAILABLE")
			return
		}
		var req StartExportRequest
		if r.ContentLength != 0 && !decodeBody(w, r, &req) {
			return
		}
		format := strings.ToLower(strings.TrimSpace(req.Format))
		if format == "" {
			format = cfg.DefaultFormat
		}
		if format == "" {
			WriteError(w, http.StatusBadRequest, "format is required", "BAD_REQUEST")
			return
		}

		job, err := cfg.Runner.Enqueue(r.Context(), chi.URLParam(r, "id"), format)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusAccepted, ExportJobToResponse(job))
	}
}

func listExportsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 50
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}
		jobs, err := cfg.Repository.ListExportJobs(r.Context(), chi.URLParam(r, "id"), limit)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list exports", "INTERNAL_ERROR")
			return
		}

		resp := ExportJobsResponse{Exports: make([]ExportJobResponse, len(jobs))}
		for i, j := range jobs {
			resp.Exports[i] = ExportJobToResponse(j)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func lookupJob(cfg ServerConfig, w http.ResponseWriter, r *http.Request) (*studio.ExportJob, bool) {
	job, err := cfg.Repository.GetExportJob(r.Context(), chi.URLParam(r, "exportID"))
	if err != nil {
		WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
		return nil, false
	}
	if job == nil {
		WriteError(w, http.StatusNotFound, "export not found", "NOT_FOUND")
		return nil, false
	}
	return job, true
}

func getExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, ok := lookupJob(cfg, w, r)
		if !ok {
			return
		}
		WriteJSON(w, http.StatusOK, ExportJobToResponse(job))
	}
}

func cancelExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if cfg.Runner == nil {
			WriteError(w, http.StatusServiceUnavailable, "export runner unavailable", "UNAVAILABLE")
			return
		}
		if err := cfg.Runner.Cancel(r.Context(), chi.URLParam(r, "exportID")); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}

// downloadExportHandler serves a finished export with range support. The
// Content-Type is the real payload type, which differs from the extension
// for relabeled formats.
func downloadExportHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		job, ok := lookupJob(cfg, w, r)
		if !ok {
			return
		}
		if job.Status != studio.JobStatusCompleted || job.OutputPath == "" {
			WriteError(w, http.StatusConflict, "export is not finished", "NOT_READY")
			return
		}
		if job.Format == encoder.FormatFrames {
			WriteError(w, http.StatusUnprocessableEntity, "frame sequences are written to "+job.OutputPath, "NOT_DOWNLOADABLE")
			return
		}

		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": filepath.Base(job.OutputPath)}))
		if err := cfg.Files.ServeFile(w, r, job.OutputPath, job.MIMEType); err != nil {
			cfg.Logger.Error("download error", "error", err, "export_id", job.ID)
		}
	}
}

func edlHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := openSession(cfg, w, r)
		if !ok {
			return
		}
		fps := 30.0
		if v := r.URL.Query().Get("fps"); v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil || !(f > 0) || math.IsInf(f, 0) {
				WriteError(w, http.StatusBadRequest, "fps must be a positive number", "BAD_REQUEST")
				return
			}
			fps = f
		}

		title := export.SanitizeName(sess.Name(), 80)
		if title == "" {
			title = "export"
		}
		edl := export.GenerateEDL(sess.Store.Snapshot(), title, fps)

		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": title + ".edl"}))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(edl))
	}
}
