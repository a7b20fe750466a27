package cleanup

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

const DefaultInterval = 15 * time.Minute

type expiredSweeper interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

// Job periodically deactivates sessions past their expiry. Validation
// already rejects them; the sweep keeps the active set honest for listings.
type Job struct {
	sweeper  expiredSweeper
	interval time.Duration
	now      func() time.Time
	logger   *zap.Logger
}

func New(sweeper expiredSweeper, interval time.Duration, logger *zap.Logger) *Job {
	if interval <= 0 {
		interval = DefaultInterval
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Job{
		sweeper:  sweeper,
		interval: interval,
		now:      time.Now,
		logger:   logger,
	}
}

// Run performs one sweep.
func (j *Job) Run(ctx context.Context) error {
	started := j.now()

	swept, err := j.sweeper.CleanupExpired(ctx)
	if err != nil {
		return fmt.Errorf("cleanup expired sessions: %w", err)
	}

	j.logger.Debug("cleanup expired sessions completed",
		zap.Int64("swept", swept),
		zap.Duration("took", j.now().Sub(started)),
	)
	return nil
}

// Loop sweeps once, then on every tick until ctx is done. A failed sweep is
// logged and retried on the next tick.
func (j *Job) Loop(ctx context.Context) {
	j.runLogged(ctx)

	ticker := time.NewTicker(j.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			j.runLogged(ctx)
		}
	}
}

func (j *Job) runLogged(ctx context.Context) {
	if err := j.Run(ctx); err != nil && ctx.Err() == nil {
		j.logger.Warn("cleanup job failed", zap.Error(err))
	}
}
