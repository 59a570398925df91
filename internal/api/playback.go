package api

import (
	"bytes"
	"fmt"
	"image"
	"math"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/indii/reelstudio/internal/playback"
)

// previewHandler renders the live frame at the playhead as PNG. ?t= seeks
// first; ?width= downscales.
func previewHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := openSession(cfg, w, r)
		if !ok {
			return
		}
		q := r.URL.Query()
		if v := q.Get("t"); v != "" {
			t, err := strconv.ParseFloat(v, 64)
			if err != nil || math.IsNaN(t) || math.IsInf(t, 0) {
				WriteError(w, http.StatusBadRequest, "t must be a finite number", "BAD_REQUEST")
				return
			}
			sess.Clock.Seek(t)
		}
		width := 0
		if v := q.Get("width"); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil || n <= 0 {
				WriteError(w, http.StatusBadRequest, "width must be a positive integer", "BAD_REQUEST")
				return
			}
			width = n
		}

		frame, status, err := cfg.Service.Preview(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeServiceError(w, err)
			return
		}
		var img image.Image = frame
		if width > 0 {
			img = playback.Scale(frame, width)
		}

		var buf bytes.Buffer
		if err := playback.WritePNG(&buf, img); err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to encode preview", "INTERNAL_ERROR")
			return
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Cache-Control", "no-store")
		w.Header().Set("X-Playback-State", string(status.State))
		w.Header().Set("X-Playback-Time", fmt.Sprintf("%.3f", status.Time))
		w.WriteHeader(http.StatusOK)
		w.Write(buf.Bytes())
	}
}

func playbackStatusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := openSession(cfg, w, r)
		if !ok {
			return
		}
		WriteJSON(w, http.StatusOK, StatusToResponse(sess.Clock.Status()))
	}
}

func playHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := openSession(cfg, w, r)
		if !ok {
			return
		}
		if err := sess.Clock.Play(); err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, StatusToResponse(sess.Clock.Status()))
	}
}

func pausePlaybackHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := openSession(cfg, w, r)
		if !ok {
			return
		}
		sess.Clock.Pause()
		WriteJSON(w, http.StatusOK, StatusToResponse(sess.Clock.Status()))
	}
}

func stopPlaybackHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := openSession(cfg, w, r)
		if !ok {
			return
		}
		sess.Clock.Stop()
		WriteJSON(w, http.StatusOK, StatusToResponse(sess.Clock.Status()))
	}
}

func seekHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SeekRequest
		if !decodeBody(w, r, &req) {
			return
		}
		sess, ok := openSession(cfg, w, r)
		if !ok {
			return
		}
		switch {
		case req.Time != nil:
			sess.Clock.Seek(*req.Time)
		case req.Delta != nil:
			sess.Clock.SeekRelative(*req.Delta)
		default:
			WriteError(w, http.StatusBadRequest, "time or delta is required", "BAD_REQUEST")
			return
		}
		WriteJSON(w, http.StatusOK, StatusToResponse(sess.Clock.Status()))
	}
}
