package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/indii/reelstudio/internal/compositor"
	"github.com/indii/reelstudio/internal/timeline"
	"github.com/indii/reelstudio/internal/timescale"
)

// clipStart picks seconds over pixels when both are given.
func clipStart(seconds, px *float64, scale float64) (float64, bool) {
	switch {
	case seconds != nil:
		return *seconds, true
	case px != nil:
		return timescale.PixelsToTime(*px, scale), true
	}
	return 0, false
}

func addClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddClipRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.MediaID == "" {
			WriteError(w, http.StatusBadRequest, "media_id is required", "BAD_REQUEST")
			return
		}
		sess, ok := openSession(cfg, w, r)
		if !ok {
			return
		}
		start, _ := clipStart(req.StartTime, req.StartPx, sess.Scale())
		id, err := sess.Store.AddClip(req.MediaID, start, req.Duration)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		clip, _ := sess.Store.Clip(id)
		WriteJSON(w, http.StatusCreated, clip)
	}
}

func moveClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MoveClipRequest
		if !decodeBody(w, r, &req) {
			return
		}
		sess, ok := openSession(cfg, w, r)
		if !ok {
			return
		}
		start, ok := clipStart(req.StartTime, req.StartPx, sess.Scale())
		if !ok {
			WriteError(w, http.StatusBadRequest, "start_time or start_px is required", "BAD_REQUEST")
			return
		}
		clip, err := sess.Store.MoveClip(chi.URLParam(r, "clipID"), start)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, clip)
	}
}

func resizeClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ResizeClipRequest
		if !decodeBody(w, r, &req) {
			return
		}
		sess, ok := openSession(cfg, w, r)
		if !ok {
			return
		}
		clip, err := sess.Store.ResizeClip(chi.URLParam(r, "clipID"), req.Edge, req.Value)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, clip)
	}
}

func deleteClipHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := openSession(cfg, w, r)
		if !ok {
			return
		}
		if err := sess.Store.DeleteClip(chi.URLParam(r, "clipID")); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func addAnnotationHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req AddAnnotationRequest
		if !decodeBody(w, r, &req) {
			return
		}
		sess, ok := openSession(cfg, w, r)
		if !ok {
			return
		}

		var x, y float64
		switch {
		case req.X != nil && req.Y != nil:
			x, y = *req.X, *req.Y
		case req.FrameWidth > 0 && req.FrameHeight > 0:
			x, y = timeline.PixelsToPercent(req.PixelX, req.PixelY, req.FrameWidth, req.FrameHeight)
		default:
			x, y = timeline.PixelsToPercent(req.PixelX, req.PixelY, compositor.CanvasWidth, compositor.CanvasHeight)
		}

		id, err := sess.Store.AddAnnotation(req.Time, x, y, req.Style)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		for _, a := range sess.Store.Annotations() {
			if a.ID == id {
				WriteJSON(w, http.StatusCreated, a)
				return
			}
		}
		WriteJSON(w, http.StatusCreated, IDResponse{ID: id})
	}
}

func moveAnnotationHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MoveAnnotationRequest
		if !decodeBody(w, r, &req) {
			return
		}
		sess, ok := openSession(cfg, w, r)
		if !ok {
			return
		}
		a, err := sess.Store.MoveAnnotation(chi.URLParam(r, "annotationID"), req.Time)
		if err != nil {
			writeServiceError(w, err)
			return
		}
		WriteJSON(w, http.StatusOK, a)
	}
}

func deleteAnnotationHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := openSession(cfg, w, r)
		if !ok {
			return
		}
		if err := sess.Store.DeleteAnnotation(chi.URLParam(r, "annotationID")); err != nil {
			writeServiceError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func zoomHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req ZoomRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Factor <= 0 {
			WriteError(w, http.StatusBadRequest, "factor must be positive", "BAD_REQUEST")
			return
		}
		sess, ok := openSession(cfg, w, r)
		if !ok {
			return
		}
		scale := sess.Zoom(req.Factor)
		WriteJSON(w, http.StatusOK, ScaleResponse{Scale: scale, Width: timescale.TimelineWidth(sess.Store.AudioDuration(), scale)})
	}
}

func fitHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req FitRequest
		if !decodeBody(w, r, &req) {
			return
		}
		sess, ok := openSession(cfg, w, r)
		if !ok {
			return
		}
		scale := sess.FitToWidth(req.Width)
		WriteJSON(w, http.StatusOK, ScaleResponse{Scale: scale, Width: timescale.TimelineWidth(sess.Store.AudioDuration(), scale)})
	}
}
