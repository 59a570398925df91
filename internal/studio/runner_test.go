package studio

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/indii/reelstudio/internal/encoder"
	"github.com/indii/reelstudio/internal/export"
)

type fakeExporter struct {
	calls atomic.Int32
	runFn func(ctx context.Context, req export.Request, obs export.Observer) (*export.Result, error)
	got   export.Request
}

func (f *fakeExporter) Negotiate(_ context.Context, format string) (encoder.Profile, error) {
	switch format {
	case "mp4", "webm":
		return encoder.Profile{Format: format, Extension: "." + format}, nil
	}
	return encoder.Profile{}, encoder.ErrUnsupportedFormat
}

func (f *fakeExporter) Run(ctx context.Context, req export.Request, obs export.Observer) (*export.Result, error) {
	f.calls.Add(1)
	f.got = req
	if f.runFn != nil {
		return f.runFn(ctx, req, obs)
	}
	obs.OnState(export.StatePreparing)
	obs.OnState(export.StateRecording)
	for _, p := range []float64{0, 25.5, 50, 100} {
		obs.OnProgress(p)
	}
	obs.OnState(export.StateFinalizing)
	obs.OnState(export.StateIdle)
	return &export.Result{
		Output:   encoder.Output{Path: "/tmp/out/Reel.mp4", MIMEType: "video/mp4", Extension: ".mp4", Size: 2048, Frames: 30},
		Warnings: []string{"media a.png could not be loaded"},
	}, nil
}

func setupRunner(t *testing.T, exp *fakeExporter) (*Runner, *Service, Repository) {
	t.Helper()
	svc, repo := setupService(t, Options{})
	runner := NewRunner(svc, repo, exp, nil, RunnerConfig{OutputDir: "/tmp/out", FrameRate: 30}, quietLogger())
	return runner, svc, repo
}

func TestRunner_Enqueue_UnsupportedFormat(t *testing.T) {
	exp := &fakeExporter{}
	runner, svc, repo := setupRunner(t, exp)
	ctx := context.Background()
	sess, _ := svc.CreateProject(ctx, "Reel")

	_, err := runner.Enqueue(ctx, sess.ID, "mkv")
	if !errors.Is(err, encoder.ErrUnsupportedFormat) {
		t.Fatalf("Enqueue() error = %v, want ErrUnsupportedFormat", err)
	}
	jobs, _ := repo.ListExportJobs(ctx, sess.ID, 10)
	if len(jobs) != 0 {
		t.Errorf("jobs = %d, want 0", len(jobs))
	}
}

func TestRunner_Enqueue_UnknownProject(t *testing.T) {
	runner, _, _ := setupRunner(t, &fakeExporter{})
	if _, err := runner.Enqueue(context.Background(), "missing", "mp4"); !errors.Is(err, ErrProjectNotFound) {
		t.Errorf("Enqueue() error = %v, want ErrProjectNotFound", err)
	}
}

func TestRunner_ProcessNext_Completes(t *testing.T) {
	exp := &fakeExporter{}
	runner, svc, repo := setupRunner(t, exp)
	ctx := context.Background()
	sess, _ := svc.CreateProject(ctx, "Reel")

	events, unsubscribe := runner.Broker().Subscribe(sess.ID)
	defer unsubscribe()

	job, err := runner.Enqueue(ctx, sess.ID, "mp4")
	if err != nil {
		t.Fatalf("Enqueue() error = %v", err)
	}
	if job.Status != JobStatusPending {
		t.Errorf("Status = %s, want pending", job.Status)
	}

	if !runner.ProcessNext(ctx) {
		t.Fatal("ProcessNext() = false, want true")
	}
	if runner.ProcessNext(ctx) {
		t.Error("second ProcessNext() = true, want false")
	}
	if exp.got.Name != "Reel" || exp.got.FrameRate != 30 || exp.got.OutputDir != "/tmp/out" {
		t.Errorf("request = %+v", exp.got)
	}

	got, err := repo.GetExportJob(ctx, job.ID)
	if err != nil {
		t.Fatalf("GetExportJob() error = %v", err)
	}
	if got.Status != JobStatusCompleted {
		t.Errorf("Status = %s, want completed", got.Status)
	}
	if got.Progress != 100 {
		t.Errorf("Progress = %v, want 100", got.Progress)
	}
	if got.OutputPath != "/tmp/out/Reel.mp4" || got.MIMEType != "video/mp4" || got.SizeBytes != 2048 {
		t.Errorf("output = %s %s %d", got.OutputPath, got.MIMEType, got.SizeBytes)
	}
	if len(got.Warnings) != 1 {
		t.Errorf("Warnings = %v, want 1 entry", got.Warnings)
	}

	var last Event
	var stages, progress int
	for done := false; !done; {
		select {
		case ev := <-events:
			last = ev
			switch ev.Type {
			case EventStage:
				stages++
			case EventProgress:
				progress++
			}
		default:
			done = true
		}
	}
	if stages != 4 || progress != 4 {
		t.Errorf("stage events = %d, progress events = %d, want 4 and 4", stages, progress)
	}
	if last.Status != JobStatusCompleted {
		t.Errorf("last event = %+v, want completed status", last)
	}
}

func TestRunner_ProcessNext_Failure(t *testing.T) {
	exp := &fakeExporter{runFn: func(context.Context, export.Request, export.Observer) (*export.Result, error) {
		return nil, export.ErrEncoder
	}}
	runner, svc, repo := setupRunner(t, exp)
	ctx := context.Background()
	sess, _ := svc.CreateProject(ctx, "Reel")
	job, _ := runner.Enqueue(ctx, sess.ID, "webm")

	runner.ProcessNext(ctx)

	got, _ := repo.GetExportJob(ctx, job.ID)
	if got.Status != JobStatusFailed {
		t.Errorf("Status = %s, want failed", got.Status)
	}
	if got.Error == "" {
		t.Error("Error is empty")
	}
}

func TestRunner_Cancel_Pending(t *testing.T) {
	exp := &fakeExporter{}
	runner, svc, repo := setupRunner(t, exp)
	ctx := context.Background()
	sess, _ := svc.CreateProject(ctx, "Reel")
	job, _ := runner.Enqueue(ctx, sess.ID, "mp4")

	if err := runner.Cancel(ctx, job.ID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}
	if runner.ProcessNext(ctx) {
		t.Error("ProcessNext() ran a cancelled job")
	}
	if exp.calls.Load() != 0 {
		t.Errorf("Run calls = %d, want 0", exp.calls.Load())
	}
	got, _ := repo.GetExportJob(ctx, job.ID)
	if got.Status != JobStatusCancelled {
		t.Errorf("Status = %s, want cancelled", got.Status)
	}

	if err := runner.Cancel(ctx, job.ID); !errors.Is(err, ErrJobDone) {
		t.Errorf("second Cancel() error = %v, want ErrJobDone", err)
	}
	if err := runner.Cancel(ctx, "missing"); !errors.Is(err, ErrJobNotFound) {
		t.Errorf("Cancel(missing) error = %v, want ErrJobNotFound", err)
	}
}

func TestRunner_Cancel_Running(t *testing.T) {
	started := make(chan struct{})
	exp := &fakeExporter{runFn: func(ctx context.Context, _ export.Request, obs export.Observer) (*export.Result, error) {
		obs.OnState(export.StateRecording)
		close(started)
		<-ctx.Done()
		obs.OnState(export.StateIdle)
		return nil, ctx.Err()
	}}
	runner, svc, repo := setupRunner(t, exp)
	ctx := context.Background()
	sess, _ := svc.CreateProject(ctx, "Reel")
	job, _ := runner.Enqueue(ctx, sess.ID, "mp4")

	done := make(chan struct{})
	go func() {
		runner.ProcessNext(ctx)
		close(done)
	}()

	<-started
	if runner.ActiveJob() != job.ID {
		t.Errorf("ActiveJob() = %q, want %q", runner.ActiveJob(), job.ID)
	}
	if err := runner.Cancel(ctx, job.ID); err != nil {
		t.Fatalf("Cancel() error = %v", err)
	}

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not stop after cancel")
	}

	got, _ := repo.GetExportJob(ctx, job.ID)
	if got.Status != JobStatusCancelled {
		t.Errorf("Status = %s, want cancelled", got.Status)
	}
	if runner.ActiveJob() != "" {
		t.Errorf("ActiveJob() = %q after finish", runner.ActiveJob())
	}
}

func TestRunner_PauseResume(t *testing.T) {
	exp := &fakeExporter{}
	runner, svc, repo := setupRunner(t, exp)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	runner.Pause()
	if !runner.IsPaused() {
		t.Fatal("IsPaused() = false after Pause()")
	}

	go runner.Start(ctx)

	sess, _ := svc.CreateProject(ctx, "Reel")
	job, _ := runner.Enqueue(ctx, sess.ID, "mp4")

	time.Sleep(100 * time.Millisecond)
	if exp.calls.Load() != 0 {
		t.Fatalf("Run calls = %d while paused", exp.calls.Load())
	}

	runner.Resume()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		got, _ := repo.GetExportJob(context.Background(), job.ID)
		if got != nil && got.Status == JobStatusCompleted {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatal("job did not complete after Resume()")
}

func TestBroker_DropsSlowSubscriber(t *testing.T) {
	b := NewBroker()
	slow, _ := b.Subscribe("")
	other, unsubscribe := b.Subscribe("p2")
	defer unsubscribe()

	for i := 0; i < subscriberBuffer+1; i++ {
		b.Publish(Event{Type: EventProgress, ProjectID: "p1", Progress: float64(i)})
	}
	if b.Subscribers() != 1 {
		t.Errorf("Subscribers() = %d, want 1", b.Subscribers())
	}

	n := 0
	for range slow {
		n++
	}
	if n != subscriberBuffer {
		t.Errorf("delivered = %d, want %d", n, subscriberBuffer)
	}
	select {
	case ev := <-other:
		t.Errorf("filtered subscriber got %+v", ev)
	default:
	}
}

func TestBroker_UnsubscribeTwice(t *testing.T) {
	b := NewBroker()
	ch, unsubscribe := b.Subscribe("")
	unsubscribe()
	unsubscribe()
	if _, ok := <-ch; ok {
		t.Error("channel still open after unsubscribe")
	}
	b.Publish(Event{Type: EventStatus})
}
