package presence

import (
	"context"
	"sync"
	"time"
)

// DefaultSweepInterval is the sweep cadence used when none is configured.
const DefaultSweepInterval = time.Second

// Sweeper runs timeout sweeps at a fixed cadence. A late or missed tick only
// delays a loss transition; it never corrupts state.
type Sweeper struct {
	reader   *Reader
	interval time.Duration
	logger   Logger

	wg       sync.WaitGroup
	done     chan struct{}
	stopOnce sync.Once
}

// NewSweeper creates a Sweeper. A non-positive interval uses DefaultSweepInterval.
func NewSweeper(reader *Reader, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = DefaultSweepInterval
	}
	return &Sweeper{
		reader:   reader,
		interval: interval,
		logger:   noopLogger{},
		done:     make(chan struct{}),
	}
}

// SetLogger sets the logger for the sweeper.
func (s *Sweeper) SetLogger(logger Logger) {
	s.logger = logger
}

// Start begins sweeping in a background goroutine until ctx is cancelled
// or Stop is called.
func (s *Sweeper) Start(ctx context.Context) {
	s.wg.Add(1)
	go s.loop(ctx)
}

// Stop halts the sweeper and waits for the loop to exit.
// Safe to call multiple times.
func (s *Sweeper) Stop() {
	s.stopOnce.Do(func() {
		close(s.done)
		s.wg.Wait()
	})
}

func (s *Sweeper) loop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-ticker.C:
			if lost := s.reader.Sweep(); lost > 0 {
				s.logger.Debug("sweep complete", "newly_lost", lost)
			}
		}
	}
}
