/*
scheduler.go - Automated finalization recovery

PURPOSE:
  A distribution that crashes between Finalize and MarkDistributed leaves
  its period in FINALIZING with no way for members to claim. The recovery
  scheduler periodically completes every such period.

DESIGN:
  - robfig/cron drives the runs; overlapping runs are skipped
  - Each run is bounded by a timeout
  - Runs act as the contract owner and stamp the clock's current marker
  - Recovered ids are logged; per-period failures are logged and retried
    on the next run

CONFIGURATION:
  - Schedule: cron expression or descriptor (default "@every 1m")

USAGE:
  s := NewRecoveryScheduler(finalizer, owner, clock, logger)
  if err := s.Start("@every 1m"); err != nil { ... }
  // ... later
  s.Stop()

SEE ALSO:
  - credit/finalizer.go: Finalizer.Recover
  - handlers.go: RecoverPeriods endpoint (manual recovery)
*/
package api

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/warp/solar-credits/calendar"
	"github.com/warp/solar-credits/credit"
	"go.uber.org/zap"
)

const recoveryTimeout = 25 * time.Second

// RecoveryScheduler runs Finalizer.Recover on a cron schedule.
type RecoveryScheduler struct {
	finalizer *credit.Finalizer
	caller    credit.Caller
	clock     calendar.Clock
	logger    *zap.Logger

	mu   sync.Mutex
	cron *cron.Cron
}

// NewRecoveryScheduler creates a scheduler acting as caller.
func NewRecoveryScheduler(finalizer *credit.Finalizer, caller credit.Caller, clock calendar.Clock, logger *zap.Logger) *RecoveryScheduler {
	if clock == nil {
		clock = calendar.SystemClock{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecoveryScheduler{finalizer: finalizer, caller: caller, clock: clock, logger: logger}
}

// Start runs RunOnce on the cron schedule until Stop.
func (s *RecoveryScheduler) Start(schedule string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return fmt.Errorf("recovery scheduler already started")
	}

	cl := cronLogger{s.logger.Sugar()}
	c := cron.New(cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl)))
	if _, err := c.AddFunc(schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), recoveryTimeout)
		defer cancel()
		s.RunOnce(ctx)
	}); err != nil {
		return fmt.Errorf("invalid recovery schedule %q: %w", schedule, err)
	}
	c.Start()
	s.cron = c
	s.logger.Info("recovery scheduler started", zap.String("schedule", schedule))
	return nil
}

// Stop stops scheduling and waits for a running recovery to finish.
func (s *RecoveryScheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.cron = nil
	s.logger.Info("recovery scheduler stopped")
}

// RunOnce performs a single recovery sweep.
func (s *RecoveryScheduler) RunOnce(ctx context.Context) []credit.PeriodID {
	ids, err := s.finalizer.Recover(ctx, s.caller, credit.MarkerAt(s.clock.Now(ctx)))
	if err != nil {
		s.logger.Warn("recovery sweep incomplete", zap.Error(err))
	}
	if len(ids) > 0 {
		recovered := make([]uint64, len(ids))
		for i, id := range ids {
			recovered[i] = uint64(id)
		}
		s.logger.Info("recovered periods", zap.Uint64s("periods", recovered))
	}
	return ids
}

// cronLogger adapts zap to cron.Logger.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...any) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...any) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
