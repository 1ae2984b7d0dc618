package revocation

import (
	"context"
	"time"

	"github.com/nkiryanov/calcboard/internal/logger"
)

const defaultSweepInterval = 10 * time.Minute

type sweepObserver interface {
	ObserveSweep(deleted int64, err error)
}

type Sweeper struct {
	registry *Registry
	interval time.Duration
	logger   logger.Logger
	observer sweepObserver
}

// Zero interval means default. Observer may be nil
func NewSweeper(registry *Registry, interval time.Duration, logger logger.Logger, observer sweepObserver) *Sweeper {
	if interval == 0 {
		interval = defaultSweepInterval
	}

	return &Sweeper{
		registry: registry,
		interval: interval,
		logger:   logger,
		observer: observer,
	}
}

// Run sweeps on every tick till context is done
func (s *Sweeper) Run(ctx context.Context) error {
	s.logger.Debug("Starting revocation sweeper", "interval", s.interval)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Revocation sweeper stopped by context")
			return nil

		case <-ticker.C:
			deleted, err := s.registry.Sweep(ctx)
			if s.observer != nil {
				s.observer.ObserveSweep(deleted, err)
			}
			if err != nil {
				s.logger.Error("Failed to sweep revoked tokens", "error", err)
				continue
			}

			s.logger.Debug("Revoked tokens swept", "deleted", deleted)
		}
	}
}
