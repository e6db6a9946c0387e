package feed

import (
	"context"
	"path/filepath"
	"time"

	"github.com/nerrad567/gray-logic-presence/internal/process"
)

// CommandConfig configures a CommandSource.
type CommandConfig struct {
	Binary       string
	Args         []string
	RestartDelay time.Duration
	IdleTimeout  time.Duration
	MaxLineBytes int
}

// CommandSource runs a scanner helper that prints one JSON advertisement
// per line and feeds its output to the ingestor. The helper is restarted
// when it exits or falls silent.
type CommandSource struct {
	manager *process.Manager
	source  string
}

// NewCommandSource creates a command source. Returns ErrNoCommand when no
// binary is configured.
func NewCommandSource(cfg CommandConfig, ingestor *Ingestor) (*CommandSource, error) {
	if cfg.Binary == "" {
		return nil, ErrNoCommand
	}

	name := filepath.Base(cfg.Binary)
	source := "command:" + name

	pcfg := process.DefaultConfig(name, cfg.Binary, cfg.Args)
	if cfg.RestartDelay > 0 {
		pcfg.RestartDelay = cfg.RestartDelay
	}
	if cfg.MaxLineBytes > 0 {
		pcfg.MaxLineBytes = cfg.MaxLineBytes
	}
	pcfg.IdleTimeout = cfg.IdleTimeout
	pcfg.OnLine = func(line []byte) {
		ingestor.HandleMessage(source, line)
	}

	return &CommandSource{
		manager: process.NewManager(pcfg),
		source:  source,
	}, nil
}

// SetLogger sets the logger for the helper's supervisor.
func (s *CommandSource) SetLogger(logger Logger) {
	s.manager.SetLogger(logger)
}

// Start launches the helper.
func (s *CommandSource) Start(ctx context.Context) error {
	return s.manager.Start(ctx)
}

// Stop terminates the helper.
func (s *CommandSource) Stop() error {
	return s.manager.Stop()
}

// Source returns the label used for ingest logging.
func (s *CommandSource) Source() string {
	return s.source
}

// Stats reports the helper's supervision state.
func (s *CommandSource) Stats() process.Stats {
	return s.manager.Stats()
}
