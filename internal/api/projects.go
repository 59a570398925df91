package api

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/indii/reelstudio/internal/export"
	"github.com/indii/reelstudio/internal/project"
	"github.com/indii/reelstudio/internal/studio"
	"github.com/indii/reelstudio/internal/timeline"
	"github.com/indii/reelstudio/internal/timescale"
)

func listProjectsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		projects, err := cfg.Service.ListProjects(r.Context())
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to list projects", "INTERNAL_ERROR")
			return
		}

		resp := ProjectsResponse{Projects: make([]ProjectResponse, len(projects))}
		for i, p := range projects {
			resp.Projects[i] = ProjectToResponse(p)
		}
		WriteJSON(w, http.StatusOK, resp)
	}
}

func createProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateProjectRequest
		if r.ContentLength != 0 && !decodeBody(w, r, &req) {
			return
		}
		sess, err := cfg.Service.CreateProject(r.Context(), req.Name)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, timelineResponse(sess))
	}
}

// importProjectHandler accepts either a saved project document as the body
// or {"url": "..."} pointing at one.
func importProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxUploadBytes))
		if err != nil {
			WriteError(w, http.StatusRequestEntityTooLarge, "project document too large", "TOO_LARGE")
			return
		}

		var sess *studio.Session
		if url := r.URL.Query().Get("url"); url != "" {
			sess, err = cfg.Service.ImportURL(r.Context(), url)
		} else if u, ok := importURL(data); ok {
			sess, err = cfg.Service.ImportURL(r.Context(), u)
		} else {
			sess, err = cfg.Service.ImportDocument(r.Context(), bytes.NewReader(data))
		}
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, timelineResponse(sess))
	}
}

func importURL(data []byte) (string, bool) {
	var req ImportProjectRequest
	if err := decodeStrict(data, &req); err != nil || req.URL == "" {
		return "", false
	}
	return req.URL, true
}

func getProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := openSession(cfg, w, r)
		if !ok {
			return
		}
		WriteJSON(w, http.StatusOK, timelineResponse(sess))
	}
}

func updateProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req UpdateProjectRequest
		if !decodeBody(w, r, &req) {
			return
		}
		sess, ok := openSession(cfg, w, r)
		if !ok {
			return
		}
		if req.Name != nil {
			name := strings.TrimSpace(*req.Name)
			if name == "" {
				WriteError(w, http.StatusBadRequest, "name must not be empty", "BAD_REQUEST")
				return
			}
			sess.SetName(name)
		}
		if req.VideoTitle != nil {
			sess.Store.SetVideoTitle(*req.VideoTitle)
		}
		WriteJSON(w, http.StatusOK, timelineResponse(sess))
	}
}

func deleteProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := cfg.Service.Delete(r.Context(), chi.URLParam(r, "id")); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func saveProjectHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		p, err := cfg.Service.Save(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, ProjectToResponse(p))
	}
}

func projectDocumentHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := openSession(cfg, w, r)
		if !ok {
			return
		}
		var buf bytes.Buffer
		if err := project.Save(&buf, sess.Document()); err != nil {
			writeServiceError(w, err)
			return
		}
		name := export.SanitizeName(sess.Name(), 80)
		if name == "" {
			name = "project"
		}
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": name + project.Extension}))
		w.WriteHeader(http.StatusOK)
		w.Write(buf.Bytes())
	}
}

// importAudioHandler takes the track as a multipart "file" field or as the
// raw request body with ?name=.
func importAudioHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		uploads, err := readUploads(w, r)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}
		if len(uploads) != 1 {
			WriteError(w, http.StatusBadRequest, "exactly one audio file is required", "BAD_REQUEST")
			return
		}
		u := uploads[0]
		d, err := cfg.Service.ImportAudio(r.Context(), id, u.name, u.mimeType, u.data)
		if errors.Is(err, studio.ErrProjectNotFound) {
			writeServiceError(w, err)
			return
		}
		if err != nil {
			WriteError(w, http.StatusUnprocessableEntity, err.Error(), "INVALID_AUDIO")
			return
		}
		sess, ok := openSession(cfg, w, r)
		if !ok {
			return
		}
		WriteJSON(w, http.StatusOK, AudioResponse{Duration: d, Width: timescale.TimelineWidth(d, sess.Scale())})
	}
}

// uploadMediaHandler adds one or more images. Files that fail to decode are
// reported without rejecting the rest.
func uploadMediaHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		uploads, err := readUploads(w, r)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}
		if len(uploads) == 0 {
			WriteError(w, http.StatusBadRequest, "no files uploaded", "BAD_REQUEST")
			return
		}

		resp := MediaResponse{Media: []timeline.MediaItem{}}
		var lastErr error
		for _, u := range uploads {
			item, err := cfg.Service.AddImage(r.Context(), id, u.name, u.data)
			if err != nil {
				cfg.Logger.Warn("image upload rejected", "project_id", id, "name", u.name, "error", err)
				lastErr = err
				continue
			}
			resp.Media = append(resp.Media, item)
		}
		if len(resp.Media) == 0 && lastErr != nil {
			writeServiceError(w, lastErr)
			return
		}
		WriteJSON(w, http.StatusCreated, resp)
	}
}

func addMediaURLHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddMediaURLRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Src == "" {
			WriteError(w, http.StatusBadRequest, "src is required", "BAD_REQUEST")
			return
		}
		item, err := cfg.Service.AddImageURL(r.Context(), chi.URLParam(r, "id"), req.Name, req.Src)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusCreated, item)
	}
}

func deleteMediaHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := openSession(cfg, w, r)
		if !ok {
			return
		}
		if err := sess.Store.RemoveMedia(chi.URLParam(r, "mediaID")); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func startScreenHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StartScreenRequest
		if !decodeBody(w, r, &req) {
			return
		}
		clipID, err := cfg.Service.SetStartScreen(r.Context(), chi.URLParam(r, "id"), req.MediaID)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, IDResponse{ID: clipID})
	}
}

type upload struct {
	name     string
	mimeType string
	data     []byte
}

func readUploads(w http.ResponseWriter, r *http.Request) ([]upload, error) {
	r.Body = http.MaxBytesReader(w, r.Body, MaxUploadBytes)

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		if len(data) == 0 {
			return nil, nil
		}
		ct := mediaType
		if ct == "application/octet-stream" {
			ct = ""
		}
		return []upload{{name: r.URL.Query().Get("name"), mimeType: ct, data: data}}, nil
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		return nil, fmt.Errorf("parse form: %w", err)
	}
	var out []upload
	for _, fh := range r.MultipartForm.File["file"] {
		f, err := fh.Open()
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", fh.Filename, err)
		}
		data, err := io.ReadAll(f)
		f.Close()
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", fh.Filename, err)
		}
		ct := fh.Header.Get("Content-Type")
		if ct == "application/octet-stream" {
			ct = ""
		}
		out = append(out, upload{name: fh.Filename, mimeType: ct, data: data})
	}
	return out, nil
}

func timelineResponse(sess *studio.Session) TimelineResponse {
	snap := sess.Store.Snapshot()
	resp := TimelineResponse{
		ID:            sess.ID,
		Name:          sess.Name(),
		AudioDuration: snap.AudioDuration,
		VideoTitle:    snap.VideoTitle,
		StartScreenID: snap.StartScreenID,
		Scale:         sess.Scale(),
		Width:         timescale.TimelineWidth(snap.AudioDuration, sess.Scale()),
		Media:         snap.Media,
		Clips:         snap.Clips,
		Annotations:   snap.Annotations,
	}
	if resp.Media == nil {
		resp.Media = []timeline.MediaItem{}
	}
	if resp.Clips == nil {
		resp.Clips = []timeline.Clip{}
	}
	if resp.Annotations == nil {
		resp.Annotations = []timeline.Annotation{}
	}
	return resp
}
