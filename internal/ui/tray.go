package ui

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/getlantern/systray"

	"github.com/indii/reelstudio/internal/studio"
)

type Tray struct {
	runner *studio.Runner
	logger *slog.Logger

	statusItem *systray.MenuItem
	exportItem *systray.MenuItem
	pauseItem  *systray.MenuItem

	mu      sync.Mutex
	ready   bool
	summary Summary

	onOpenStudio func()
	onQuit       func()
}

type TrayConfig struct {
	Runner       *studio.Runner
	Logger       *slog.Logger
	OnOpenStudio func()
	OnQuit       func()
}

func NewTray(cfg TrayConfig) *Tray {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Tray{
		runner:       cfg.Runner,
		logger:       logger,
		onOpenStudio: cfg.OnOpenStudio,
		onQuit:       cfg.OnQuit,
	}
}

// Run blocks on the tray event loop, which must own the main thread on some
// platforms.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

func (t *Tray) onReady() {
	systray.SetIcon(iconBytes)
	systray.SetTitle("Reel")
	systray.SetTooltip("Reel Studio")

	t.statusItem = systray.AddMenuItem("Status: Idle", "Export queue status")
	t.statusItem.Disable()

	t.exportItem = systray.AddMenuItem("No export running", "Current export")
	t.exportItem.Disable()

	systray.AddSeparator()

	t.pauseItem = systray.AddMenuItem("Pause Exports", "Pause the export queue")
	openItem := systray.AddMenuItem("Open Studio", "Open the editor in a browser")

	systray.AddSeparator()

	quitItem := systray.AddMenuItem("Quit", "Quit Reel Studio")

	t.mu.Lock()
	t.ready = true
	t.render()
	t.mu.Unlock()

	go func() {
		for {
			select {
			case <-t.pauseItem.ClickedCh:
				t.togglePause()
			case <-openItem.ClickedCh:
				if t.onOpenStudio != nil {
					t.onOpenStudio()
				}
			case <-quitItem.ClickedCh:
				t.logger.Info("quit requested from tray")
				if t.onQuit != nil {
					t.onQuit()
				}
				systray.Quit()
				return
			}
		}
	}()

	t.logger.Info("system tray ready")
}

func (t *Tray) onExit() {
	t.logger.Info("system tray exiting")
}

func (t *Tray) togglePause() {
	if t.runner == nil {
		return
	}
	if t.runner.IsPaused() {
		t.runner.Resume()
	} else {
		t.runner.Pause()
	}

	t.mu.Lock()
	t.summary.Paused = t.runner.IsPaused()
	t.render()
	t.mu.Unlock()
}

// Watch mirrors export events into the menu until ctx is done.
func (t *Tray) Watch(ctx context.Context) {
	if t.runner == nil {
		return
	}
	for {
		events, unsubscribe := t.runner.Broker().Subscribe("")
		if !t.consume(ctx, events) {
			unsubscribe()
			return
		}
		// The broker dropped us for falling behind; subscribe again.
		unsubscribe()
	}
}

func (t *Tray) consume(ctx context.Context, events <-chan studio.Event) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-events:
			if !ok {
				return true
			}
			t.mu.Lock()
			t.summary = t.summary.Apply(ev)
			t.summary.Paused = t.runner.IsPaused()
			t.render()
			t.mu.Unlock()
		}
	}
}

// render must be called with mu held.
func (t *Tray) render() {
	if !t.ready {
		return
	}
	t.statusItem.SetTitle("Status: " + t.summary.Status())
	t.exportItem.SetTitle(t.summary.Detail())
	if t.summary.Paused {
		t.pauseItem.SetTitle("Resume Exports")
	} else {
		t.pauseItem.SetTitle("Pause Exports")
	}
}

func (t *Tray) Quit() {
	systray.Quit()
}

// Summary is the tray's view of the export queue.
type Summary struct {
	Paused    bool
	JobID     string
	Stage     string
	Progress  float64
	LastState string
	LastError string
}

// Apply folds one export event into the summary.
func (s Summary) Apply(ev studio.Event) Summary {
	switch ev.Type {
	case studio.EventStage:
		s.JobID = ev.JobID
		s.Stage = ev.Stage
	case studio.EventProgress:
		s.JobID = ev.JobID
		s.Progress = ev.Progress
	case studio.EventStatus:
		switch ev.Status {
		case studio.JobStatusRunning:
			s.JobID, s.Stage, s.Progress, s.LastError = ev.JobID, "", 0, ""
		case studio.JobStatusCompleted, studio.JobStatusFailed, studio.JobStatusCancelled:
			if ev.JobID == s.JobID || s.JobID == "" {
				s.JobID, s.Stage, s.Progress = "", "", 0
			}
			s.LastState = ev.Status
			s.LastError = ev.Error
		}
	}
	return s
}

func (s Summary) Status() string {
	switch {
	case s.JobID != "":
		return "Exporting"
	case s.Paused:
		return "Paused"
	case s.LastState == studio.JobStatusFailed:
		return "Export failed"
	}
	return "Idle"
}

func (s Summary) Detail() string {
	switch {
	case s.JobID != "" && s.Stage != "":
		return fmt.Sprintf("%s %.0f%%", s.Stage, s.Progress)
	case s.JobID != "":
		return fmt.Sprintf("Export %.0f%%", s.Progress)
	case s.LastError != "":
		return "Last error: " + truncate(s.LastError, 48)
	case s.LastState != "":
		return "Last export " + s.LastState
	}
	return "No export running"
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
