package worker

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/itsm-sla/internal/config"
	"github.com/spec-kit/itsm-sla/internal/persistence"
	"github.com/spec-kit/itsm-sla/internal/service"
)

// SweepLockKey guards the sweep across service instances.
const SweepLockKey = "itsm:sla:sweep"

// Sweeper runs the SLA breach and warning passes.
type Sweeper interface {
	SweepBreaches(ctx context.Context) (*service.BreachSweepResult, error)
	SweepWarnings(ctx context.Context, thresholdPercent int) (*service.WarningSweepResult, error)
}

// Locker hands out a short-lived lock; the returned func releases it.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(context.Context) error, error)
}

// SweepWorker runs the SLA sweeps on a fixed interval.
type SweepWorker struct {
	sweeper   Sweeper
	locker    Locker
	interval  time.Duration
	lockTTL   time.Duration
	threshold int
	logger    *zap.Logger
}

// NewSweepWorker builds the worker. A nil locker runs every tick unguarded.
func NewSweepWorker(sweeper Sweeper, locker Locker, cfg config.SLAConfig, logger *zap.Logger) *SweepWorker {
	interval := cfg.SweepInterval
	if interval <= 0 {
		interval = time.Minute
	}
	lockTTL := cfg.SweepLockTTL
	if lockTTL <= 0 {
		lockTTL = interval
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SweepWorker{
		sweeper:   sweeper,
		locker:    locker,
		interval:  interval,
		lockTTL:   lockTTL,
		threshold: cfg.WarningThresholdPercent,
		logger:    logger,
	}
}

// Run sweeps once right away and then on every tick until ctx is done.
func (w *SweepWorker) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	w.logger.Info("sla sweep worker started", zap.Duration("interval", w.interval))
	for {
		w.RunOnce(ctx)
		select {
		case <-ctx.Done():
			w.logger.Info("sla sweep worker stopped")
			return
		case <-ticker.C:
		}
	}
}

// RunOnce performs one breach pass followed by one warning pass. It reports
// whether the passes ran; a lock held elsewhere skips them.
func (w *SweepWorker) RunOnce(ctx context.Context) bool {
	if ctx.Err() != nil {
		return false
	}
	if w.locker != nil {
		release, err := w.locker.Acquire(ctx, SweepLockKey, w.lockTTL)
		switch {
		case errors.Is(err, persistence.ErrLockHeld):
			w.logger.Debug("sla sweep skipped, lock held elsewhere")
			return false
		case err != nil:
			w.logger.Warn("sla sweep lock unavailable, sweeping anyway", zap.Error(err))
		default:
			defer func() {
				releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
				defer cancel()
				if err := release(releaseCtx); err != nil {
					w.logger.Warn("sla sweep lock release failed", zap.Error(err))
				}
			}()
		}
	}

	if _, err := w.sweeper.SweepBreaches(ctx); err != nil {
		w.logger.Error("sla breach sweep failed", zap.Error(err))
	}
	if _, err := w.sweeper.SweepWarnings(ctx, w.threshold); err != nil {
		w.logger.Error("sla warning sweep failed", zap.Error(err))
	}
	return true
}
