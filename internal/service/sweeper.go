package service

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// ExpiredPurger deletes token rows whose expiry has passed.
// *repository.TokenRepo satisfies it.
type ExpiredPurger interface {
	DeleteExpired(ctx context.Context) (int64, error)
}

// Sweeper periodically purges expired token rows from the store. It
// is pure housekeeping: Validate and the listing queries enforce
// expiry on their own, so a lagging or stopped sweeper never makes
// an expired token usable.
type Sweeper struct {
	log      *zap.Logger
	store    ExpiredPurger
	interval time.Duration
	done     chan struct{}
	stopped  chan struct{}
}

func NewSweeper(log *zap.Logger, store ExpiredPurger, interval time.Duration) *Sweeper {
	if interval <= 0 {
		interval = 10 * time.Minute
	}
	return &Sweeper{
		log:      log,
		store:    store,
		interval: interval,
		done:     make(chan struct{}),
		stopped:  make(chan struct{}),
	}
}

// Start launches the sweep loop in its own goroutine. One sweep runs
// immediately so a restart does not wait a full interval to catch up.
func (s *Sweeper) Start() {
	go func() {
		defer close(s.stopped)
		s.sweep()
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				s.sweep()
			case <-s.done:
				return
			}
		}
	}()
}

// Stop terminates the loop and waits for the in-flight sweep, if
// any, to finish. Safe to call once.
func (s *Sweeper) Stop() {
	close(s.done)
	<-s.stopped
}

func (s *Sweeper) sweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	n, err := s.store.DeleteExpired(ctx)
	if err != nil {
		s.log.Warn("expiry sweep failed", zap.Error(err))
		return
	}
	if n > 0 {
		s.log.Info("expired tokens purged", zap.Int64("count", n))
	}
}
