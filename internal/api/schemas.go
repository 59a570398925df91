package api

import (
	"time"

	"github.com/indii/reelstudio/internal/encoder"
	"github.com/indii/reelstudio/internal/playback"
	"github.com/indii/reelstudio/internal/studio"
	"github.com/indii/reelstudio/internal/timeline"
)

type HealthResponse struct {
	Status  string `json:"status"`
	Version string `json:"version"`
	UptimeS int64  `json:"uptime_s"`
}

type StatusResponse struct {
	State        string             `json:"state"`
	LastError    string             `json:"last_error,omitempty"`
	ProjectCount int                `json:"project_count"`
	ActiveExport *ExportJobResponse `json:"active_export,omitempty"`
	FFmpeg       *FFmpegStatus      `json:"ffmpeg,omitempty"`
}

type FFmpegStatus struct {
	Version     string `json:"version"`
	Binary      string `json:"binary"`
	LastProbeAt string `json:"last_probe_at,omitempty"`
}

type FormatResponse struct {
	Format    string           `json:"format"`
	Supported bool             `json:"supported"`
	Profile   *encoder.Profile `json:"profile,omitempty"`
}

type FormatsResponse struct {
	Formats []FormatResponse `json:"formats"`
}

type CreateProjectRequest struct {
	Name string `json:"name"`
}

type UpdateProjectRequest struct {
	Name       *string `json:"name,omitempty"`
	VideoTitle *string `json:"video_title,omitempty"`
}

type ImportProjectRequest struct {
	URL string `json:"url"`
}

type ProjectResponse struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	AudioSrc  string `json:"audio_src,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

type ProjectsResponse struct {
	Projects []ProjectResponse `json:"projects"`
}

// TimelineResponse is the editable state of an open project.
type TimelineResponse struct {
	ID            string                `json:"id"`
	Name          string                `json:"name"`
	AudioDuration float64               `json:"audio_duration"`
	VideoTitle    string                `json:"video_title"`
	StartScreenID string                `json:"start_screen_id,omitempty"`
	Scale         float64               `json:"scale"`
	Width         int                   `json:"width"`
	Media         []timeline.MediaItem  `json:"media"`
	Clips         []timeline.Clip       `json:"clips"`
	Annotations   []timeline.Annotation `json:"annotations"`
}

type AudioResponse struct {
	Duration float64 `json:"duration"`
	Width    int     `json:"width"`
}

type AddMediaURLRequest struct {
	Src  string `json:"src"`
	Name string `json:"name,omitempty"`
}

type MediaResponse struct {
	Media []timeline.MediaItem `json:"media"`
}

type StartScreenRequest struct {
	MediaID string `json:"media_id"`
}

// AddClipRequest places a clip either at StartTime seconds or at StartPx
// pixels of the timeline at the current scale.
type AddClipRequest struct {
	MediaID   string   `json:"media_id"`
	StartTime *float64 `json:"start_time,omitempty"`
	StartPx   *float64 `json:"start_px,omitempty"`
	Duration  float64  `json:"duration,omitempty"`
}

type MoveClipRequest struct {
	StartTime *float64 `json:"start_time,omitempty"`
	StartPx   *float64 `json:"start_px,omitempty"`
}

type ResizeClipRequest struct {
	Edge  timeline.Edge `json:"edge"`
	Value float64       `json:"value"`
}

// AddAnnotationRequest takes X/Y as percentages, or PixelX/PixelY inside a
// FrameWidth×FrameHeight preview.
type AddAnnotationRequest struct {
	Time        float64  `json:"time"`
	X           *float64 `json:"x,omitempty"`
	Y           *float64 `json:"y,omitempty"`
	PixelX      float64  `json:"pixel_x,omitempty"`
	PixelY      float64  `json:"pixel_y,omitempty"`
	FrameWidth  int      `json:"frame_width,omitempty"`
	FrameHeight int      `json:"frame_height,omitempty"`
	Style       string   `json:"style,omitempty"`
}

type MoveAnnotationRequest struct {
	Time float64 `json:"time"`
}

type IDResponse struct {
	ID string `json:"id"`
}

type ZoomRequest struct {
	Factor float64 `json:"factor"`
}

type FitRequest struct {
	Width float64 `json:"width"`
}

type ScaleResponse struct {
	Scale float64 `json:"scale"`
	Width int     `json:"width"`
}

type SeekRequest struct {
	Time  *float64 `json:"time,omitempty"`
	Delta *float64 `json:"delta,omitempty"`
}

type PlaybackResponse struct {
	State    playback.State `json:"state"`
	Time     float64        `json:"time"`
	Duration float64        `json:"duration"`
}

type StartExportRequest struct {
	Format string `json:"format"`
}

type ExportJobResponse struct {
	ID         string   `json:"id"`
	ProjectID  string   `json:"project_id"`
	Format     string   `json:"format"`
	Status     string   `json:"status"`
	Stage      string   `json:"stage,omitempty"`
	Progress   float64  `json:"progress"`
	OutputPath string   `json:"output_path,omitempty"`
	MIMEType   string   `json:"mime_type,omitempty"`
	SizeBytes  int64    `json:"size_bytes,omitempty"`
	Warnings   []string `json:"warnings"`
	Error      string   `json:"error,omitempty"`
	CreatedAt  string   `json:"created_at"`
	UpdatedAt  string   `json:"updated_at"`
}

type ExportJobsResponse struct {
	Exports []ExportJobResponse `json:"exports"`
}

type RunnerResponse struct {
	Paused    bool   `json:"paused"`
	ActiveJob string `json:"active_job,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}

func ProjectToResponse(p *studio.Project) ProjectResponse {
	return ProjectResponse{
		ID:        p.ID,
		Name:      p.Name,
		AudioSrc:  p.AudioSrc,
		CreatedAt: p.CreatedAt.Format(time.RFC3339),
		UpdatedAt: p.UpdatedAt.Format(time.RFC3339),
	}
}

func ExportJobToResponse(j *studio.ExportJob) ExportJobResponse {
	warnings := j.Warnings
	if warnings == nil {
		warnings = []string{}
	}
	return ExportJobResponse{
		ID:         j.ID,
		ProjectID:  j.ProjectID,
		Format:     j.Format,
		Status:     j.Status,
		Stage:      j.Stage,
		Progress:   j.Progress,
		OutputPath: j.OutputPath,
		MIMEType:   j.MIMEType,
		SizeBytes:  j.SizeBytes,
		Warnings:   warnings,
		Error:      j.Error,
		CreatedAt:  j.CreatedAt.Format(time.RFC3339),
		UpdatedAt:  j.UpdatedAt.Format(time.RFC3339),
	}
}

func StatusToResponse(s playback.Status) PlaybackResponse {
	return PlaybackResponse{State: s.State, Time: s.Time, Duration: s.Duration}
}
