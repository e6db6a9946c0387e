package process

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"
	"time"
)

// Status represents the current state of a managed process.
type Status string

const (
	StatusStopped  Status = "stopped"
	StatusStarting Status = "starting"
	StatusRunning  Status = "running"
	StatusFailed   Status = "failed"
)

// Defaults applied by NewManager to zero Config fields.
const (
	defaultRestartDelay    = 5 * time.Second
	defaultMaxRestartDelay = 5 * time.Minute
	defaultGracefulTimeout = 10 * time.Second
	defaultMaxLineBytes    = 4096

	// idleCheckDivisor sets how often the idle watchdog looks at the last
	// line time, as a fraction of IdleTimeout.
	idleCheckDivisor = 4
)

// ErrIdle is reported when a helper produced no output for IdleTimeout.
var ErrIdle = errors.New("process: no output within idle timeout")

// Config holds configuration for a managed helper.
type Config struct {
	// Name is a human-readable identifier for logging.
	Name string

	// Binary is the path to the executable.
	Binary string

	// Args are command-line arguments to pass to the binary.
	Args []string

	// Env are additional environment variables (key=value format).
	Env []string

	// WorkDir is the working directory. Empty inherits the parent's.
	WorkDir string

	// RestartOnFailure restarts the helper when it exits unexpectedly.
	RestartOnFailure bool

	// RestartDelay is the first back-off after a failure. It doubles on
	// each consecutive failure up to MaxRestartDelay.
	RestartDelay    time.Duration
	MaxRestartDelay time.Duration

	// MaxRestartAttempts limits consecutive restarts. 0 means unlimited.
	MaxRestartAttempts int

	// GracefulTimeout is how long to wait after SIGTERM before SIGKILL.
	GracefulTimeout time.Duration

	// IdleTimeout kills a helper that prints nothing on stdout for this
	// long. Zero disables the watchdog.
	IdleTimeout time.Duration

	// MaxLineBytes caps one stdout line. Longer lines end the stream.
	MaxLineBytes int

	// OnLine receives each stdout line. The slice is only valid for the
	// duration of the call.
	OnLine func(line []byte)

	// OnStart is called when the process starts successfully.
	OnStart func()

	// OnStop is called when the process exits.
	OnStop func(err error)
}

// DefaultConfig returns a Config that restarts forever with back-off.
func DefaultConfig(name, binary string, args []string) Config {
	return Config{
		Name:             name,
		Binary:           binary,
		Args:             args,
		RestartOnFailure: true,
		RestartDelay:     defaultRestartDelay,
		MaxRestartDelay:  defaultMaxRestartDelay,
		GracefulTimeout:  defaultGracefulTimeout,
		MaxLineBytes:     defaultMaxLineBytes,
	}
}

// Logger defines the logging interface for the process manager.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Manager supervises one helper process.
type Manager struct {
	config Config
	logger Logger

	mu            sync.RWMutex
	cmd           *exec.Cmd
	status        Status
	restartCount  int
	lastError     error
	startTime     time.Time
	stopRequested bool
	done          chan struct{}

	lines    atomic.Uint64
	lastLine atomic.Int64 // unix nanoseconds
}

// NewManager creates a new process manager with the given configuration.
func NewManager(cfg Config) *Manager {
	if cfg.RestartDelay <= 0 {
		cfg.RestartDelay = defaultRestartDelay
	}
	if cfg.MaxRestartDelay < cfg.RestartDelay {
		cfg.MaxRestartDelay = max(defaultMaxRestartDelay, cfg.RestartDelay)
	}
	if cfg.GracefulTimeout <= 0 {
		cfg.GracefulTimeout = defaultGracefulTimeout
	}
	if cfg.MaxLineBytes <= 0 {
		cfg.MaxLineBytes = defaultMaxLineBytes
	}

	return &Manager{
		config: cfg,
		logger: noopLogger{},
		status: StatusStopped,
	}
}

// SetLogger sets the logger for the manager.
func (m *Manager) SetLogger(logger Logger) {
	m.logger = logger
}

// Start launches the helper and begins supervising it. An error means the
// first launch failed; later failures are handled by restarts.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.status == StatusRunning || m.status == StatusStarting {
		m.mu.Unlock()
		return fmt.Errorf("process %s is already running", m.config.Name)
	}
	m.status = StatusStarting
	m.stopRequested = false
	m.done = make(chan struct{})
	m.mu.Unlock()

	exitCh, err := m.startProcess(ctx)
	if err != nil {
		m.mu.Lock()
		m.status = StatusFailed
		m.lastError = err
		close(m.done)
		m.mu.Unlock()
		return err
	}

	go m.monitor(ctx, exitCh)
	return nil
}

// startProcess launches the helper. The returned channel yields its exit
// error once stdout is drained.
func (m *Manager) startProcess(ctx context.Context) (<-chan error, error) {
	m.logger.Info("starting process",
		"name", m.config.Name,
		"binary", m.config.Binary,
		"args", m.config.Args,
	)

	cmd := exec.CommandContext(ctx, m.config.Binary, m.config.Args...) //nolint:gosec // Operator-configured helper
	// Own process group so shutdown reaches the helper's children.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}
	if m.config.Env != nil {
		cmd.Env = append(os.Environ(), m.config.Env...)
	}
	if m.config.WorkDir != "" {
		cmd.Dir = m.config.WorkDir
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stdout pipe: %w", err)
	}
	stderr, err := cmd.StderrPipe()
	if err != nil {
		return nil, fmt.Errorf("creating stderr pipe: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting %s: %w", m.config.Name, err)
	}

	m.mu.Lock()
	m.cmd = cmd
	m.status = StatusRunning
	m.startTime = time.Now()
	m.mu.Unlock()
	m.lastLine.Store(time.Now().UnixNano())

	var streams sync.WaitGroup
	streams.Add(2)
	go func() {
		defer streams.Done()
		m.readStdout(stdout)
	}()
	go func() {
		defer streams.Done()
		m.logStderr(stderr)
	}()

	exitCh := make(chan error, 1)
	go func() {
		// Wait closes the pipes, so drain them first.
		streams.Wait()
		exitCh <- cmd.Wait()
	}()

	m.logger.Info("process started",
		"name", m.config.Name,
		"pid", cmd.Process.Pid,
	)
	if m.config.OnStart != nil {
		m.config.OnStart()
	}
	return exitCh, nil
}

// readStdout hands each line to OnLine.
func (m *Manager) readStdout(r io.Reader) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, min(m.config.MaxLineBytes, defaultMaxLineBytes)), m.config.MaxLineBytes)
	for scanner.Scan() {
		m.lines.Add(1)
		m.lastLine.Store(time.Now().UnixNano())
		if line := scanner.Bytes(); len(line) > 0 && m.config.OnLine != nil {
			m.config.OnLine(line)
		}
	}
	if err := scanner.Err(); err != nil {
		m.logger.Warn("stdout stream ended", "name", m.config.Name, "error", err)
		// Unblock a helper stuck writing to a pipe nobody reads.
		io.Copy(io.Discard, r) //nolint:errcheck // Drain until exit
	}
}

// logStderr logs each stderr line.
func (m *Manager) logStderr(r io.Reader) {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		m.logger.Debug("process output",
			"name", m.config.Name,
			"stream", "stderr",
			"output", scanner.Text(),
		)
	}
}

// waitForExitOrIdle waits for the helper to exit, killing it first if it
// stays silent for IdleTimeout.
func (m *Manager) waitForExitOrIdle(ctx context.Context, cmd *exec.Cmd, exitCh <-chan error) error {
	if m.config.IdleTimeout <= 0 {
		return <-exitCh
	}

	ticker := time.NewTicker(max(m.config.IdleTimeout/idleCheckDivisor, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case err := <-exitCh:
			return err

		case <-ctx.Done():
			return <-exitCh

		case <-ticker.C:
			silent := time.Since(time.Unix(0, m.lastLine.Load()))
			if silent < m.config.IdleTimeout {
				continue
			}
			m.logger.Warn("process silent, killing",
				"name", m.config.Name,
				"silent_for", silent.Round(time.Millisecond),
			)
			if cmd.Process != nil {
				_ = syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL) //nolint:errcheck // May have exited
			}
			<-exitCh
			return ErrIdle
		}
	}
}

// monitor watches the helper and handles restarts.
func (m *Manager) monitor(ctx context.Context, exitCh <-chan error) {
	defer close(m.done)

	consecutive := 0
	for {
		m.mu.RLock()
		cmd := m.cmd
		startedAt := m.startTime
		m.mu.RUnlock()

		err := m.waitForExitOrIdle(ctx, cmd, exitCh)

		m.mu.Lock()
		stopRequested := m.stopRequested || ctx.Err() != nil
		m.mu.Unlock()

		if stopRequested {
			m.logger.Info("process stopped as requested", "name", m.config.Name)
			m.setStatus(StatusStopped, nil)
			if m.config.OnStop != nil {
				m.config.OnStop(nil)
			}
			return
		}

		if err == nil {
			err = errors.New("exited with status 0")
		}
		m.logger.Warn("process exited unexpectedly",
			"name", m.config.Name,
			"error", err,
			"ran_for", time.Since(startedAt).Round(time.Millisecond),
		)
		m.setStatus(StatusFailed, err)
		if m.config.OnStop != nil {
			m.config.OnStop(err)
		}

		if !m.config.RestartOnFailure {
			return
		}

		// A helper that ran for longer than the back-off cap was healthy;
		// start counting again.
		if time.Since(startedAt) > m.config.MaxRestartDelay {
			consecutive = 0
		}
		consecutive++

		m.mu.Lock()
		m.restartCount++
		m.mu.Unlock()

		if m.config.MaxRestartAttempts > 0 && consecutive > m.config.MaxRestartAttempts {
			m.logger.Error("max restart attempts reached",
				"name", m.config.Name,
				"attempts", consecutive-1,
			)
			return
		}

		delay := m.backoff(consecutive)
		m.logger.Info("restarting process",
			"name", m.config.Name,
			"attempt", consecutive,
			"delay", delay,
		)

		select {
		case <-ctx.Done():
			m.setStatus(StatusStopped, nil)
			return
		case <-time.After(delay):
		}

		m.mu.RLock()
		stopRequested = m.stopRequested
		m.mu.RUnlock()
		if stopRequested {
			m.setStatus(StatusStopped, nil)
			return
		}

		next, startErr := m.startProcess(ctx)
		for startErr != nil {
			m.logger.Error("failed to restart process", "name", m.config.Name, "error", startErr)
			m.setStatus(StatusFailed, startErr)
			consecutive++
			if m.config.MaxRestartAttempts > 0 && consecutive > m.config.MaxRestartAttempts {
				return
			}
			select {
			case <-ctx.Done():
				return
			case <-time.After(m.backoff(consecutive)):
			}
			next, startErr = m.startProcess(ctx)
		}
		exitCh = next
	}
}

// backoff returns RestartDelay doubled attempt-1 times, capped.
func (m *Manager) backoff(attempt int) time.Duration {
	d := m.config.RestartDelay
	for i := 1; i < attempt && d < m.config.MaxRestartDelay; i++ {
		d *= 2
	}
	return min(d, m.config.MaxRestartDelay)
}

func (m *Manager) setStatus(s Status, err error) {
	m.mu.Lock()
	m.status = s
	if err != nil {
		m.lastError = err
	}
	m.mu.Unlock()
}

// Stop terminates the helper: SIGTERM to its process group, then SIGKILL
// after GracefulTimeout. It waits for supervision to end.
func (m *Manager) Stop() error {
	m.mu.Lock()
	m.stopRequested = true
	cmd := m.cmd
	done := m.done
	m.mu.Unlock()

	if done == nil {
		return nil
	}

	if cmd != nil && cmd.Process != nil {
		pid := cmd.Process.Pid
		m.logger.Info("stopping process", "name", m.config.Name, "pid", pid)
		if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
			m.logger.Warn("failed to send SIGTERM to process group", "name", m.config.Name, "error", err)
		}

		select {
		case <-done:
			return nil
		case <-time.After(m.config.GracefulTimeout):
			m.logger.Warn("graceful shutdown timeout, sending SIGKILL",
				"name", m.config.Name,
				"timeout", m.config.GracefulTimeout,
			)
		}

		if err := syscall.Kill(-pid, syscall.SIGKILL); err != nil && !errors.Is(err, syscall.ESRCH) {
			return fmt.Errorf("killing process group %s: %w", m.config.Name, err)
		}
	}

	<-done
	return nil
}

// Status returns the current status of the managed process.
func (m *Manager) Status() Status {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.status
}

// IsRunning returns true if the process is currently running.
func (m *Manager) IsRunning() bool {
	return m.Status() == StatusRunning
}

// Stats describes a managed process.
type Stats struct {
	Name         string        `json:"name"`
	Status       Status        `json:"status"`
	PID          int           `json:"pid,omitempty"`
	Uptime       time.Duration `json:"uptime,omitempty"`
	RestartCount int           `json:"restart_count"`
	Lines        uint64        `json:"lines"`
	LastError    string        `json:"last_error,omitempty"`
}

// Stats returns current statistics for the process.
func (m *Manager) Stats() Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stats := Stats{
		Name:         m.config.Name,
		Status:       m.status,
		RestartCount: m.restartCount,
		Lines:        m.lines.Load(),
	}
	if m.cmd != nil && m.cmd.Process != nil && m.status == StatusRunning {
		stats.PID = m.cmd.Process.Pid
		stats.Uptime = time.Since(m.startTime)
	}
	if m.lastError != nil {
		stats.LastError = m.lastError.Error()
	}
	return stats
}
