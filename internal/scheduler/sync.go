package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/MrSnakeDoc/pinsync/internal/domain"
	"github.com/MrSnakeDoc/pinsync/internal/engine"
	"github.com/MrSnakeDoc/pinsync/internal/logger"
)

// Syncer starts full syncs.
type Syncer interface {
	Sync() *engine.Task
}

// SessionChecker reports whether an account is logged in.
type SessionChecker interface {
	LoggedIn(ctx context.Context) (bool, error)
}

// SyncScheduler asks the engine for a full sync on every tick and on
// manual triggers. The engine's rate limit still decides whether the
// remote is contacted.
type SyncScheduler struct {
	engine        Syncer
	account       SessionChecker
	logger        logger.Logger
	interval      time.Duration
	stopCh        chan struct{}
	manualTrigger chan struct{}
}

// NewSyncScheduler creates a scheduler. manualTrigger may be shared with
// callers that want an immediate run; sends should not block.
func NewSyncScheduler(
	eng Syncer,
	account SessionChecker,
	log logger.Logger,
	interval time.Duration,
	manualTrigger chan struct{},
) *SyncScheduler {
	return &SyncScheduler{
		engine:        eng,
		account:       account,
		logger:        log,
		interval:      interval,
		stopCh:        make(chan struct{}),
		manualTrigger: manualTrigger,
	}
}

// Start runs one tick immediately, then one per interval. A failing
// tick is logged and never stops the loop.
func (s *SyncScheduler) Start(ctx context.Context) {
	go func() {
		s.run(ctx)

		var tick <-chan time.Time
		if s.interval > 0 {
			ticker := time.NewTicker(s.interval)
			defer ticker.Stop()
			tick = ticker.C
		}

		for {
			select {
			case <-tick:
				s.run(ctx)
			case <-s.manualTrigger:
				s.logger.Info("manual sync triggered")
				s.run(ctx)
			case <-s.stopCh:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Stop stops the scheduler
func (s *SyncScheduler) Stop() {
	close(s.stopCh)
}

func (s *SyncScheduler) run(ctx context.Context) {
	if err := s.Tick(ctx); err != nil {
		s.logger.Error("scheduled sync failed", logger.Error(err))
	}
}

// Tick runs one scheduled sync and waits for it. Busy and logged out are
// not errors: the next tick retries.
func (s *SyncScheduler) Tick(ctx context.Context) error {
	loggedIn, err := s.account.LoggedIn(ctx)
	if err != nil {
		return err
	}
	if !loggedIn {
		s.logger.Debug("sync skipped, not logged in")
		return nil
	}

	err = s.engine.Sync().Wait(ctx)
	if errors.Is(err, domain.ErrBusy) {
		s.logger.Debug("sync skipped, engine busy")
		return nil
	}
	return err
}
