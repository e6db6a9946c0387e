package history

import (
	"context"
	"sync"
	"time"
)

const pruneTimeout = 30 * time.Second

// Logger is the logging interface used by this package.
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

// Pruner deletes entries older than the retention period at a fixed
// interval. The first prune runs immediately on Start.
type Pruner struct {
	repo      Repository
	retention time.Duration
	interval  time.Duration
	now       func() time.Time
	logger    Logger

	wg       sync.WaitGroup
	done     chan struct{}
	stopOnce sync.Once
}

// NewPruner creates a pruner. Returns ErrInvalidRetention when retention
// or interval is not positive.
func NewPruner(repo Repository, retention, interval time.Duration) (*Pruner, error) {
	if retention <= 0 || interval <= 0 {
		return nil, ErrInvalidRetention
	}
	return &Pruner{
		repo:      repo,
		retention: retention,
		interval:  interval,
		now:       time.Now,
		logger:    noopLogger{},
		done:      make(chan struct{}),
	}, nil
}

// SetLogger sets the logger for the pruner.
func (p *Pruner) SetLogger(logger Logger) {
	p.logger = logger
}

// PruneOnce deletes entries older than the retention period.
func (p *Pruner) PruneOnce(ctx context.Context) (int64, error) {
	ctx, cancel := context.WithTimeout(ctx, pruneTimeout)
	defer cancel()

	cutoff := p.now().Add(-p.retention)
	n, err := p.repo.Prune(ctx, cutoff)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		p.logger.Info("presence history pruned", "deleted", n, "cutoff", cutoff.UTC().Format(time.RFC3339))
	}
	return n, nil
}

// Start runs the prune loop until ctx is cancelled or Stop is called.
func (p *Pruner) Start(ctx context.Context) {
	p.wg.Add(1)
	go p.loop(ctx)
}

// Stop halts the loop and waits for it to exit. Safe to call multiple times.
func (p *Pruner) Stop() {
	p.stopOnce.Do(func() {
		close(p.done)
		p.wg.Wait()
	})
}

func (p *Pruner) loop(ctx context.Context) {
	defer p.wg.Done()

	p.prune(ctx)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-p.done:
			return
		case <-ticker.C:
			p.prune(ctx)
		}
	}
}

func (p *Pruner) prune(ctx context.Context) {
	if _, err := p.PruneOnce(ctx); err != nil {
		p.logger.Warn("presence history prune failed", "error", err)
	}
}
