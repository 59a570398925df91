package studio

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/indii/reelstudio/internal/encoder"
	"github.com/indii/reelstudio/internal/export"
	"github.com/indii/reelstudio/internal/logging"
)

var (
	ErrJobNotFound = errors.New("export job not found")
	ErrJobDone     = errors.New("export job already finished")
)

// Exporter runs one export.
type Exporter interface {
	Negotiate(ctx context.Context, format string) (encoder.Profile, error)
	Run(ctx context.Context, req export.Request, obs export.Observer) (*export.Result, error)
}

// RunnerConfig tunes the export queue.
type RunnerConfig struct {
	OutputDir    string
	FrameRate    int
	PollInterval time.Duration
}

// Runner takes pending export jobs off the queue one at a time.
type Runner struct {
	service *Service
	repo    Repository
	export  Exporter
	broker  *Broker
	cfg     RunnerConfig
	logger  *slog.Logger

	running atomic.Bool
	paused  atomic.Bool
	wake    chan struct{}

	mu      sync.Mutex
	active  string
	cancels map[string]context.CancelFunc
}

func NewRunner(service *Service, repo Repository, exp Exporter, broker *Broker, cfg RunnerConfig, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = 2 * time.Second
	}
	if broker == nil {
		broker = NewBroker()
	}
	return &Runner{
		service: service,
		repo:    repo,
		export:  exp,
		broker:  broker,
		cfg:     cfg,
		logger:  logger,
		wake:    make(chan struct{}, 1),
		cancels: make(map[string]context.CancelFunc),
	}
}

func (r *Runner) Broker() *Broker { return r.broker }

// Start processes jobs until ctx is done.
func (r *Runner) Start(ctx context.Context) {
	if r.running.Swap(true) {
		return
	}
	defer r.running.Store(false)
	r.logger.Info("export runner started")

	ticker := time.NewTicker(r.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info("export runner stopping")
			return
		case <-ticker.C:
		case <-r.wake:
		}
		if r.paused.Load() {
			continue
		}
		for r.ProcessNext(ctx) {
			if ctx.Err() != nil || r.paused.Load() {
				break
			}
		}
	}
}

func (r *Runner) Pause() {
	r.paused.Store(true)
	r.logger.Info("export runner paused")
}

func (r *Runner) Resume() {
	r.paused.Store(false)
	r.logger.Info("export runner resumed")
	r.signal()
}

func (r *Runner) IsPaused() bool  { return r.paused.Load() }
func (r *Runner) IsRunning() bool { return r.running.Load() }

// ActiveJob returns the id of the export currently rendering, if any.
func (r *Runner) ActiveJob() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active
}

func (r *Runner) signal() {
	select {
	case r.wake <- struct{}{}:
	default:
	}
}

// Enqueue saves the project and queues an export of it. Unsupported formats
// are rejected here, before a job exists.
func (r *Runner) Enqueue(ctx context.Context, projectID, format string) (*ExportJob, error) {
	if _, err := r.export.Negotiate(ctx, format); err != nil {
		return nil, err
	}
	if _, err := r.service.Save(ctx, projectID); err != nil {
		return nil, err
	}

	now := time.Now()
	job := &ExportJob{
		ID:        NewID(),
		ProjectID: projectID,
		Format:    format,
		Status:    JobStatusPending,
		Stage:     string(export.StateIdle),
		Warnings:  []string{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := r.repo.CreateExportJob(ctx, job); err != nil {
		return nil, fmt.Errorf("create export job: %w", err)
	}
	r.logger.Info("export queued", "export_id", job.ID, "project_id", projectID, "format", format)
	r.broker.Publish(Event{Type: EventStatus, JobID: job.ID, ProjectID: projectID, Status: job.Status})
	r.signal()
	return job, nil
}

// Cancel stops a running job or withdraws a pending one.
func (r *Runner) Cancel(ctx context.Context, jobID string) error {
	job, err := r.repo.GetExportJob(ctx, jobID)
	if err != nil {
		return err
	}
	if job == nil {
		return ErrJobNotFound
	}
	if job.Done() {
		return ErrJobDone
	}

	r.mu.Lock()
	cancel, running := r.cancels[jobID]
	r.mu.Unlock()
	if running {
		cancel()
		return nil
	}
	if err := r.repo.UpdateExportStatus(ctx, jobID, JobStatusCancelled, "cancelled"); err != nil {
		return err
	}
	r.broker.Publish(Event{Type: EventStatus, JobID: jobID, ProjectID: job.ProjectID, Status: JobStatusCancelled})
	return nil
}

// ProcessNext runs the oldest pending job and reports whether there was one.
func (r *Runner) ProcessNext(ctx context.Context) bool {
	jobs, err := r.repo.ListPendingExportJobs(ctx)
	if err != nil {
		r.logger.Error("failed to list pending exports", "error", err)
		return false
	}
	if len(jobs) == 0 {
		return false
	}
	r.process(ctx, jobs[0])
	return true
}

func (r *Runner) process(ctx context.Context, job *ExportJob) {
	logger := logging.WithProjectID(logging.WithExportID(r.logger, job.ID), job.ProjectID)

	sess, err := r.service.Open(ctx, job.ProjectID)
	if err != nil {
		r.fail(ctx, job, fmt.Sprintf("open project: %v", err))
		return
	}

	jobCtx, cancel := context.WithCancel(ctx)
	r.mu.Lock()
	r.cancels[job.ID] = cancel
	r.active = job.ID
	r.mu.Unlock()
	defer func() {
		cancel()
		r.mu.Lock()
		delete(r.cancels, job.ID)
		r.active = ""
		r.mu.Unlock()
	}()

	if err := r.repo.UpdateExportStatus(ctx, job.ID, JobStatusRunning, ""); err != nil {
		logger.Error("failed to mark export running", "error", err)
		return
	}
	r.broker.Publish(Event{Type: EventStatus, JobID: job.ID, ProjectID: job.ProjectID, Status: JobStatusRunning})

	req := export.Request{
		Snapshot:  sess.Store.Snapshot(),
		Audio:     sess.Audio(),
		Format:    job.Format,
		FrameRate: r.cfg.FrameRate,
		Name:      sess.Name(),
		OutputDir: r.cfg.OutputDir,
	}
	obs := &jobObserver{runner: r, ctx: ctx, job: job, lastSaved: -1}

	logger.Info("export started")
	res, err := r.export.Run(jobCtx, req, obs)
	switch {
	case err == nil:
		if err := r.repo.CompleteExportJob(ctx, job.ID, res.Output.Path, res.Output.MIMEType, res.Output.Size, res.Warnings); err != nil {
			logger.Error("failed to record export result", "error", err)
		}
		r.broker.Publish(Event{Type: EventStatus, JobID: job.ID, ProjectID: job.ProjectID, Status: JobStatusCompleted, Progress: 100})
		logger.Info("export completed", "output", res.Output.Path, "warnings", len(res.Warnings))
	case errors.Is(err, context.Canceled) && ctx.Err() == nil:
		r.repo.UpdateExportStatus(ctx, job.ID, JobStatusCancelled, "cancelled")
		r.broker.Publish(Event{Type: EventStatus, JobID: job.ID, ProjectID: job.ProjectID, Status: JobStatusCancelled})
		logger.Info("export cancelled")
	case ctx.Err() != nil:
		// Shutdown: leave the job running so the next start marks it
		// interrupted.
		logger.Warn("export interrupted by shutdown")
	default:
		r.fail(ctx, job, err.Error())
		logger.Error("export failed", "error", err)
	}
}

func (r *Runner) fail(ctx context.Context, job *ExportJob, msg string) {
	r.repo.UpdateExportStatus(ctx, job.ID, JobStatusFailed, msg)
	r.broker.Publish(Event{Type: EventStatus, JobID: job.ID, ProjectID: job.ProjectID, Status: JobStatusFailed, Error: msg})
}

// jobObserver persists stage changes and whole-percent progress steps and
// forwards every update to the broker.
type jobObserver struct {
	runner    *Runner
	ctx       context.Context
	job       *ExportJob
	stage     export.State
	lastSaved float64
}

func (o *jobObserver) OnState(s export.State) {
	o.stage = s
	o.runner.repo.UpdateExportProgress(o.ctx, o.job.ID, string(s), math.Max(0, o.lastSaved))
	o.runner.broker.Publish(Event{Type: EventStage, JobID: o.job.ID, ProjectID: o.job.ProjectID, Stage: string(s)})
}

func (o *jobObserver) OnProgress(pct float64) {
	o.runner.broker.Publish(Event{Type: EventProgress, JobID: o.job.ID, ProjectID: o.job.ProjectID, Stage: string(o.stage), Progress: pct})
	if step := math.Floor(pct); step > o.lastSaved {
		o.lastSaved = step
		o.runner.repo.UpdateExportProgress(o.ctx, o.job.ID, string(o.stage), step)
	}
}
