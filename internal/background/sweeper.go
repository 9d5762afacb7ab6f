package background

import (
	"context"
	"log/slog"
	"time"
)

// TokenSweeper is the sweep surface of the token service.
type TokenSweeper interface {
	SweepExpired(ctx context.Context, now time.Time) (int64, error)
	SweepUsed(ctx context.Context, olderThan time.Time) (int64, error)
}

// SweeperConfig controls sweep cadence and retention.
type SweeperConfig struct {
	Interval      time.Duration // time between sweep runs
	UsedRetention time.Duration // how long consumed tokens are kept for audit
}

// DefaultSweeperConfig returns the standard cadence: hourly sweeps,
// 30 days of consumed-token retention.
func DefaultSweeperConfig() SweeperConfig {
	return SweeperConfig{
		Interval:      time.Hour,
		UsedRetention: 30 * 24 * time.Hour,
	}
}

// Sweeper periodically removes expired and aged consumed tokens. Sweeps are
// idempotent and safe to run concurrently with live traffic; validity never
// depends on the sweeper having run.
type Sweeper struct {
	tokens TokenSweeper
	config SweeperConfig
	logger *slog.Logger
	stopCh chan struct{}
}

// NewSweeper creates a new token sweeper
func NewSweeper(tokens TokenSweeper, config SweeperConfig, logger *slog.Logger) *Sweeper {
	return &Sweeper{
		tokens: tokens,
		config: config,
		logger: logger,
		stopCh: make(chan struct{}),
	}
}

// Start begins the periodic sweep task
func (s *Sweeper) Start(ctx context.Context) {
	ticker := time.NewTicker(s.config.Interval)
	defer ticker.Stop()

	// Run immediately on startup
	s.runSweep(ctx)

	for {
		select {
		case <-ticker.C:
			s.runSweep(ctx)
		case <-s.stopCh:
			s.logger.Info("token sweeper stopped")
			return
		case <-ctx.Done():
			s.logger.Info("token sweeper context cancelled")
			return
		}
	}
}

// runSweep removes expired tokens and consumed tokens past retention
func (s *Sweeper) runSweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	now := time.Now()

	expired, err := s.tokens.SweepExpired(sweepCtx, now)
	if err != nil {
		s.logger.Error("failed to sweep expired tokens", slog.Any("error", err))
	} else if expired > 0 {
		s.logger.Info("expired token sweep completed", slog.Int64("rows_deleted", expired))
	}

	used, err := s.tokens.SweepUsed(sweepCtx, now.Add(-s.config.UsedRetention))
	if err != nil {
		s.logger.Error("failed to sweep consumed tokens", slog.Any("error", err))
	} else if used > 0 {
		s.logger.Info("consumed token sweep completed", slog.Int64("rows_deleted", used))
	}
}

// Stop signals the sweeper to stop
func (s *Sweeper) Stop() {
	close(s.stopCh)
}
