package ffmpeg

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"
	"time"
)

const (
	maxStderrBytes = 8 * 1024 // 8 KB tail of stderr kept for diagnostics

	DefaultBinary       = "ffmpeg"
	DefaultProbeTimeout = 15 * time.Second
)

var ErrNotFound = errors.New("ffmpeg binary not found")

// Config holds the runner's configuration.
type Config struct {
	Binary       string // path or name of the ffmpeg binary; empty = "ffmpeg" on PATH
	ProbeTimeout time.Duration
	Logger       *slog.Logger
}

// Runner executes ffmpeg subprocesses.
type Runner struct {
	cfg    Config
	binary string
}

// NewRunner resolves the ffmpeg binary and returns a runner for it.
func NewRunner(cfg Config) (*Runner, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}
	bin, err := resolveBinary(cfg.Binary)
	if err != nil {
		return nil, err
	}
	cfg.Logger.Info("ffmpeg runner initialised", "binary", bin)
	return &Runner{cfg: cfg, binary: bin}, nil
}

func (r *Runner) Binary() string { return r.binary }

// Probe lists the encoders and muxers of the installed ffmpeg.
func (r *Runner) Probe(ctx context.Context) (*Capabilities, error) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.ProbeTimeout)
	defer cancel()

	var out bytes.Buffer
	res := r.Run(ctx, nil, &out, "-hide_banner", "-version")
	if !res.IsSuccess() {
		return nil, fmt.Errorf("ffmpeg -version exited %d: %s", res.ExitCode, res.StderrTail)
	}
	version := parseVersion(out.String())

	out.Reset()
	res = r.Run(ctx, nil, &out, "-hide_banner", "-encoders")
	if !res.IsSuccess() {
		return nil, fmt.Errorf("ffmpeg -encoders exited %d: %s", res.ExitCode, res.StderrTail)
	}
	encoders := parseTable(out.String())

	out.Reset()
	res = r.Run(ctx, nil, &out, "-hide_banner", "-muxers")
	if !res.IsSuccess() {
		return nil, fmt.Errorf("ffmpeg -muxers exited %d: %s", res.ExitCode, res.StderrTail)
	}
	muxers := parseTable(out.String())

	caps := &Capabilities{
		Version:  version,
		Binary:   r.binary,
		Encoders: encoders,
		Muxers:   muxers,
		ProbedAt: time.Now(),
	}
	r.cfg.Logger.Info("ffmpeg probe complete",
		"version", version,
		"encoders", len(encoders),
		"muxers", len(muxers),
	)
	return caps, nil
}

// Run executes ffmpeg to completion.
func (r *Runner) Run(ctx context.Context, stdin io.Reader, stdout io.Writer, args ...string) RunResult {
	start := time.Now()

	cmd := exec.CommandContext(ctx, r.binary, args...)
	var stderrBuf bytes.Buffer
	cmd.Stderr = &limitedWriter{w: &stderrBuf, limit: maxStderrBytes}
	cmd.Stdin = stdin
	if stdout == nil {
		stdout = io.Discard
	}
	cmd.Stdout = stdout

	err := cmd.Run()
	res := RunResult{
		ExitCode:   exitCode(err),
		StderrTail: stderrBuf.String(),
		Duration:   time.Since(start),
	}
	if !res.IsSuccess() {
		r.cfg.Logger.Warn("ffmpeg command failed",
			"exit_code", res.ExitCode,
			"duration_ms", res.Duration.Milliseconds(),
			"stderr_tail", truncate(res.StderrTail, 512),
		)
	}
	return res
}

// Process is a running ffmpeg fed through its stdin.
type Process struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr *limitedWriter
	start  time.Time
	logger *slog.Logger

	once   sync.Once
	result RunResult
}

// Start launches ffmpeg with a writable stdin pipe.
func (r *Runner) Start(ctx context.Context, args ...string) (*Process, error) {
	cmd := exec.CommandContext(ctx, r.binary, args...)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("stdin pipe: %w", err)
	}
	lw := &limitedWriter{w: &bytes.Buffer{}, limit: maxStderrBytes}
	cmd.Stderr = lw
	cmd.Stdout = io.Discard

	r.cfg.Logger.Debug("starting ffmpeg", "args", args)
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start ffmpeg: %w", err)
	}
	return &Process{cmd: cmd, stdin: stdin, stderr: lw, start: time.Now(), logger: r.cfg.Logger}, nil
}

// Stdin is the pipe frames are written to.
func (p *Process) Stdin() io.Writer { return p.stdin }

// Wait closes stdin and waits for ffmpeg to exit.
func (p *Process) Wait() RunResult {
	p.once.Do(func() {
		p.stdin.Close()
		err := p.cmd.Wait()
		p.result = RunResult{
			ExitCode:   exitCode(err),
			StderrTail: p.stderr.String(),
			Duration:   time.Since(p.start),
		}
		if !p.result.IsSuccess() {
			p.logger.Warn("ffmpeg process failed",
				"exit_code", p.result.ExitCode,
				"stderr_tail", truncate(p.result.StderrTail, 512),
			)
		}
	})
	return p.result
}

// Kill terminates the process and reaps it.
func (p *Process) Kill() {
	if p.cmd.Process != nil {
		_ = p.cmd.Process.Kill()
	}
	p.Wait()
}

func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) && exitErr.ExitCode() >= 0 {
		return exitErr.ExitCode()
	}
	return -1
}

// resolveBinary finds a usable ffmpeg binary.
func resolveBinary(preferred string) (string, error) {
	name := preferred
	if name == "" {
		name = DefaultBinary
	}
	p, err := exec.LookPath(name)
	if err != nil {
		return "", fmt.Errorf("%w: %q", ErrNotFound, name)
	}
	return p, nil
}

func parseVersion(out string) string {
	line, _, _ := strings.Cut(out, "\n")
	fields := strings.Fields(line)
	if len(fields) >= 3 && fields[0] == "ffmpeg" && fields[1] == "version" {
		return fields[2]
	}
	return strings.TrimSpace(line)
}

// parseTable extracts the names column from `ffmpeg -encoders` or
// `ffmpeg -muxers` output: everything after the dashed separator line is
// "<flags> <name>[,<name>] <description>".
func parseTable(out string) map[string]bool {
	names := make(map[string]bool)
	inBody := false
	sc := bufio.NewScanner(strings.NewReader(out))
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if !inBody {
			if strings.HasPrefix(line, "--") || strings.HasPrefix(line, "-----") {
				inBody = true
			}
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		for _, n := range strings.Split(fields[1], ",") {
			names[n] = true
		}
	}
	return names
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return "..." + s[len(s)-maxLen:]
}

// limitedWriter is an io.Writer that keeps only the last `limit` bytes.
type limitedWriter struct {
	mu    sync.Mutex
	w     *bytes.Buffer
	limit int
}

func (lw *limitedWriter) Write(p []byte) (int, error) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	n := len(p)
	lw.w.Write(p)
	if lw.w.Len() > lw.limit {
		// Keep only the tail
		b := lw.w.Bytes()
		tail := append([]byte(nil), b[len(b)-lw.limit:]...)
		lw.w.Reset()
		lw.w.Write(tail)
	}
	return n, nil
}

func (lw *limitedWriter) String() string {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	return lw.w.String()
}
