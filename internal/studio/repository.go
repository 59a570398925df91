package studio

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

type Repository interface {
	CreateProject(ctx context.Context, p *Project) error
	GetProject(ctx context.Context, id string) (*Project, error)
	ListProjects(ctx context.Context) ([]*Project, error)
	UpdateProject(ctx context.Context, p *Project) error
	DeleteProject(ctx context.Context, id string) error

	CreateExportJob(ctx context.Context, job *ExportJob) error
	GetExportJob(ctx context.Context, id string) (*ExportJob, error)
	ListExportJobs(ctx context.Context, projectID string, limit int) ([]*ExportJob, error)
	ListPendingExportJobs(ctx context.Context) ([]*ExportJob, error)
	UpdateExportStatus(ctx context.Context, id, status, errorMsg string) error
	UpdateExportProgress(ctx context.Context, id, stage string, progress float64) error
	CompleteExportJob(ctx context.Context, id, outputPath, mimeType string, size int64, warnings []string) error

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}

type SQLiteRepository struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

func (r *SQLiteRepository) CreateProject(ctx context.Context, p *Project) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO projects (id, name, document, audio_src, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, p.ID, p.Name, string(p.Document), p.AudioSrc, p.CreatedAt.Format(time.RFC3339), p.UpdatedAt.Format(time.RFC3339))
	return err
}

const projectColumns = `id, name, document, audio_src, created_at, updated_at`

func (r *SQLiteRepository) GetProject(ctx context.Context, id string) (*Project, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+projectColumns+` FROM projects WHERE id = ?`, id)
	p, err := scanProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return p, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanProject(row scanner) (*Project, error) {
	var p Project
	var doc, createdAt, updatedAt string
	if err := row.Scan(&p.ID, &p.Name, &doc, &p.AudioSrc, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	p.Document = []byte(doc)
	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &p, nil
}

func (r *SQLiteRepository) ListProjects(ctx context.Context) ([]*Project, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+projectColumns+` FROM projects ORDER BY updated_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var projects []*Project
	for rows.Next() {
		p, err := scanProject(rows)
		if err != nil {
			return nil, err
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

func (r *SQLiteRepository) UpdateProject(ctx context.Context, p *Project) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE projects SET name = ?, document = ?, audio_src = ?, updated_at = ? WHERE id = ?
	`, p.Name, string(p.Document), p.AudioSrc, p.UpdatedAt.Format(time.RFC3339), p.ID)
	return err
}

func (r *SQLiteRepository) DeleteProject(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM projects WHERE id = ?", id)
	return err
}

func (r *SQLiteRepository) CreateExportJob(ctx context.Context, j *ExportJob) error {
	warnings, _ := json.Marshal(nonNil(j.Warnings))
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO export_jobs (id, project_id, format, status, stage, progress, warnings, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, j.ID, j.ProjectID, j.Format, j.Status, j.Stage, j.Progress, string(warnings),
		j.CreatedAt.Format(time.RFC3339), j.UpdatedAt.Format(time.RFC3339))
	return err
}

const jobColumns = `id, project_id, format, status, stage, progress, output_path, mime_type, size_bytes, warnings, error, created_at, updated_at`

func scanJob(row scanner) (*ExportJob, error) {
	var j ExportJob
	var warnings, createdAt, updatedAt string
	var errMsg sql.NullString
	if err := row.Scan(&j.ID, &j.ProjectID, &j.Format, &j.Status, &j.Stage, &j.Progress,
		&j.OutputPath, &j.MIMEType, &j.SizeBytes, &warnings, &errMsg, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	_ = json.Unmarshal([]byte(warnings), &j.Warnings)
	j.Warnings = nonNil(j.Warnings)
	j.Error = errMsg.String
	j.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	j.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &j, nil
}

func (r *SQLiteRepository) GetExportJob(ctx context.Context, id string) (*ExportJob, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+jobColumns+` FROM export_jobs WHERE id = ?`, id)
	j, err := scanJob(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return j, err
}

func (r *SQLiteRepository) listJobs(ctx context.Context, query string, args ...any) ([]*ExportJob, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*ExportJob
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// ListExportJobs returns the newest jobs first. An empty projectID lists
// jobs of every project.
func (r *SQLiteRepository) ListExportJobs(ctx context.Context, projectID string, limit int) ([]*ExportJob, error) {
	if limit <= 0 {
		limit = 50
	}
	if projectID == "" {
		return r.listJobs(ctx, `SELECT `+jobColumns+` FROM export_jobs ORDER BY created_at DESC LIMIT ?`, limit)
	}
	return r.listJobs(ctx, `SELECT `+jobColumns+` FROM export_jobs WHERE project_id = ? ORDER BY created_at DESC LIMIT ?`, projectID, limit)
}

// ListPendingExportJobs returns queued jobs oldest first.
func (r *SQLiteRepository) ListPendingExportJobs(ctx context.Context) ([]*ExportJob, error) {
	return r.listJobs(ctx, `SELECT `+jobColumns+` FROM export_jobs WHERE status = ? ORDER BY created_at ASC, rowid ASC`, JobStatusPending)
}

func (r *SQLiteRepository) UpdateExportStatus(ctx context.Context, id, status, errorMsg string) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE export_jobs SET status = ?, error = ?, updated_at = ? WHERE id = ?
	`, status, nullString(errorMsg), time.Now().Format(time.RFC3339), id)
	return err
}

func (r *SQLiteRepository) UpdateExportProgress(ctx context.Context, id, stage string, progress float64) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE export_jobs SET stage = ?, progress = ?, updated_at = ? WHERE id = ?
	`, stage, progress, time.Now().Format(time.RFC3339), id)
	return err
}

func (r *SQLiteRepository) CompleteExportJob(ctx context.Context, id, outputPath, mimeType string, size int64, warnings []string) error {
	w, _ := json.Marshal(nonNil(warnings))
	_, err := r.db.ExecContext(ctx, `
		UPDATE export_jobs
		SET status = ?, stage = 'idle', progress = 100, output_path = ?, mime_type = ?, size_bytes = ?, warnings = ?, error = NULL, updated_at = ?
		WHERE id = ?
	`, JobStatusCompleted, outputPath, mimeType, size, string(w), time.Now().Format(time.RFC3339), id)
	return err
}

func (r *SQLiteRepository) GetConfig(ctx context.Context, key string) (string, error) {
	var value string
	err := r.db.QueryRowContext(ctx, "SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	return value, err
}

func (r *SQLiteRepository) SetConfig(ctx context.Context, key, value string) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO config (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
