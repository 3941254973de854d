package auth

import (
	"context"
	"sync/atomic"
	"time"

	"gatehouse-backend/internal/logger"
	"gatehouse-backend/internal/session"
)

// Sweeper periodically deletes expired sessions from the store. Sweeps
// are single-flight: a tick that fires while a sweep is still running is
// skipped. A failed sweep is logged and retried on the next tick.
type Sweeper struct {
	store       session.Store
	interval    time.Duration
	initialWait time.Duration
	logger      *logger.Logger
	sweeping    atomic.Bool
}

// NewSweeper creates a sweeper over the given store.
func NewSweeper(store session.Store, interval, initialWait time.Duration, l *logger.Logger) *Sweeper {
	return &Sweeper{
		store:       store,
		interval:    interval,
		initialWait: initialWait,
		logger:      l,
	}
}

// Run sweeps after a short initial wait and then on every interval tick
// until the context is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(s.initialWait):
	}
	s.trigger(ctx)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.trigger(ctx)
		}
	}
}

func (s *Sweeper) trigger(ctx context.Context) {
	if !s.sweeping.CompareAndSwap(false, true) {
		s.logger.Debug("session sweep still running, skipping tick")
		return
	}

	go func() {
		defer s.sweeping.Store(false)
		s.sweep(ctx)
	}()
}

func (s *Sweeper) sweep(ctx context.Context) {
	count, err := s.store.DeleteExpired(ctx, time.Now())
	if err != nil {
		s.logger.Error("session sweep failed", "error", err)
		return
	}
	if count > 0 {
		s.logger.Info("session sweep completed", "deleted", count)
	}
}
