package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/indii/reelstudio/internal/encoder"
	"github.com/indii/reelstudio/internal/export"
	"github.com/indii/reelstudio/internal/media"
	"github.com/indii/reelstudio/internal/project"
	"github.com/indii/reelstudio/internal/studio"
	"github.com/indii/reelstudio/internal/timeline"
)

type errorMapping struct {
	target error
	status int
	code   string
}

var errorMappings = []errorMapping{
	{studio.ErrProjectNotFound, http.StatusNotFound, "NOT_FOUND"},
	{studio.ErrJobNotFound, http.StatusNotFound, "NOT_FOUND"},
	{timeline.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
	{timeline.ErrProtectedEntity, http.StatusConflict, "PROTECTED_ENTITY"},
	{timeline.ErrNoAudio, http.StatusConflict, "NO_AUDIO"},
	{timeline.ErrOutOfRange, http.StatusUnprocessableEntity, "OUT_OF_RANGE"},
	{timeline.ErrInvalidEdge, http.StatusBadRequest, "BAD_REQUEST"},
	{studio.ErrJobDone, http.StatusConflict, "JOB_FINISHED"},
	{studio.ErrInvalidMedia, http.StatusUnprocessableEntity, "INVALID_MEDIA"},
	{project.ErrInvalid, http.StatusBadRequest, "INVALID_PROJECT"},
	{media.ErrUnsupportedSource, http.StatusBadRequest, "UNSUPPORTED_SOURCE"},
	{media.ErrNotImage, http.StatusUnprocessableEntity, "INVALID_MEDIA"},
	{media.ErrTooLarge, http.StatusRequestEntityTooLarge, "TOO_LARGE"},
	{encoder.ErrUnsupportedFormat, http.StatusUnprocessableEntity, "UNSUPPORTED_FORMAT"},
	{export.ErrBusy, http.StatusConflict, "EXPORT_BUSY"},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, "TIMEOUT"},
}

// writeServiceError maps a domain error onto a status and error code.
func writeServiceError(w http.ResponseWriter, err error) {
	for _, m := range errorMappings {
		if errors.Is(err, m.target) {
			WriteError(w, m.status, err.Error(), m.code)
			return
		}
	}
	WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
}
