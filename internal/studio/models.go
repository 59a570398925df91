// Package studio owns projects: their persisted documents, the live editing
// sessions built from them, and the queue of export jobs.
package studio

import (
	"time"

	"github.com/google/uuid"
)

type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Document  []byte    `json:"-"`
	AudioSrc  string    `json:"audio_src,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

const (
	JobStatusPending   = "pending"
	JobStatusRunning   = "running"
	JobStatusCompleted = "completed"
	JobStatusFailed    = "failed"
	JobStatusCancelled = "cancelled"
)

type ExportJob struct {
	ID         string    `json:"id"`
	ProjectID  string    `json:"project_id"`
	Format     string    `json:"format"`
	Status     string    `json:"status"`
	Stage      string    `json:"stage"`
	Progress   float64   `json:"progress"`
	OutputPath string    `json:"output_path,omitempty"`
	MIMEType   string    `json:"mime_type,omitempty"`
	SizeBytes  int64     `json:"size_bytes"`
	Warnings   []string  `json:"warnings"`
	Error      string    `json:"error,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// Done reports whether the job reached a terminal status.
func (j *ExportJob) Done() bool {
	switch j.Status {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	}
	return false
}

func NewID() string {
	return uuid.NewString()
}
