// Package scheduler runs the periodic reconciliation sweep.
//
// Each run hands every pending reconciliation to the settlement dispatcher,
// then schedules housekeeping: pruning purchase intents that never reached
// payment and trimming the audit trail.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/mrlokans/ebookstore/internal/config"
	"github.com/mrlokans/ebookstore/internal/entities"
	"github.com/mrlokans/ebookstore/internal/tasks"
)

var scheduleParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// ValidateSchedule checks a five-field cron expression.
func ValidateSchedule(schedule string) error {
	_, err := scheduleParser.Parse(schedule)
	return err
}

// PendingLister lists reconciliations awaiting settlement.
type PendingLister interface {
	Pending(ctx context.Context, limit int) ([]entities.Reconciliation, error)
}

// Dispatcher accepts settlement and housekeeping work.
type Dispatcher interface {
	EnqueueSettlement(ctx context.Context, reconciliationID uint) error
	EnqueueMaintenance(ctx context.Context, m tasks.Maintenance) error
}

// SweepResult summarises one sweep.
type SweepResult struct {
	Dispatched int
	Failed     int
}

// ReconcileScheduler runs the sweep on a cron schedule.
type ReconcileScheduler struct {
	pending    PendingLister
	dispatcher Dispatcher
	cfg        config.Reconcile
	retention  int
	logger     *zap.Logger

	cron       *cron.Cron
	entryID    cron.EntryID
	mu         sync.RWMutex
	isRunning  bool
	isSweeping bool
	cancelFunc context.CancelFunc
}

// NewReconcileScheduler creates a new scheduler instance.
func NewReconcileScheduler(pending PendingLister, dispatcher Dispatcher, cfg config.Reconcile, auditRetentionDays int, logger *zap.Logger) *ReconcileScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 100
	}
	return &ReconcileScheduler{
		pending:    pending,
		dispatcher: dispatcher,
		cfg:        cfg,
		retention:  auditRetentionDays,
		logger:     logger.Named("reconcile-scheduler"),
		cron:       cron.New(cron.WithParser(scheduleParser)),
	}
}

// Start begins the scheduler if the sweep is enabled.
func (s *ReconcileScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return nil
	}

	if !s.cfg.Enabled {
		s.logger.Info("reconcile sweep disabled")
		return nil
	}

	if err := ValidateSchedule(s.cfg.Schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", s.cfg.Schedule, err)
	}

	entryID, err := s.cron.AddFunc(s.cfg.Schedule, func() {
		s.runSweep()
	})
	if err != nil {
		return fmt.Errorf("failed to schedule reconcile sweep: %w", err)
	}
	s.entryID = entryID

	var cancelCtx context.Context
	cancelCtx, s.cancelFunc = context.WithCancel(ctx)

	s.cron.Start()
	s.isRunning = true

	s.logger.Info("reconcile sweep scheduled",
		zap.String("schedule", s.cfg.Schedule),
		zap.Time("next_run", s.cron.Entry(entryID).Next))

	go func() {
		<-cancelCtx.Done()
		s.Stop()
	}()

	return nil
}

// Stop waits for a running sweep to finish and stops the scheduler.
func (s *ReconcileScheduler) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	s.isRunning = false
	cancel := s.cancelFunc
	s.cancelFunc = nil
	entryID := s.entryID
	s.mu.Unlock()

	// A running sweep takes s.mu, so wait for it without holding the lock.
	<-s.cron.Stop().Done()
	s.cron.Remove(entryID)
	if cancel != nil {
		cancel()
	}

	s.logger.Info("reconcile sweep stopped")
}

// RunNow triggers an immediate sweep in the background.
func (s *ReconcileScheduler) RunNow() {
	go s.runSweep()
}

// IsRunning returns whether the scheduler is active.
func (s *ReconcileScheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// IsSweeping returns whether a sweep is currently in progress.
func (s *ReconcileScheduler) IsSweeping() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isSweeping
}

// NextRunTime returns when the next sweep will occur.
func (s *ReconcileScheduler) NextRunTime() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if !s.isRunning {
		return nil
	}
	next := s.cron.Entry(s.entryID).Next
	return &next
}

func (s *ReconcileScheduler) runSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if _, err := s.Sweep(ctx); err != nil {
		s.logger.Error("reconcile sweep failed", zap.Error(err))
	}
}

// Sweep dispatches pending reconciliations and housekeeping once. Concurrent
// calls are skipped.
func (s *ReconcileScheduler) Sweep(ctx context.Context) (SweepResult, error) {
	s.mu.Lock()
	if s.isSweeping {
		s.mu.Unlock()
		s.logger.Debug("reconcile sweep skipped, already running")
		return SweepResult{}, nil
	}
	s.isSweeping = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.isSweeping = false
		s.mu.Unlock()
	}()

	start := time.Now()
	var result SweepResult

	pending, err := s.pending.Pending(ctx, s.cfg.BatchSize)
	if err != nil {
		return result, fmt.Errorf("list pending reconciliations: %w", err)
	}

	for _, rec := range pending {
		if err := s.dispatcher.EnqueueSettlement(ctx, rec.ID); err != nil {
			result.Failed++
			s.logger.Warn("failed to dispatch settlement",
				zap.Uint("reconciliation_id", rec.ID),
				zap.String("charge_ref", rec.ChargeRef),
				zap.Error(err))
			continue
		}
		result.Dispatched++
	}

	err = s.dispatcher.EnqueueMaintenance(ctx, tasks.Maintenance{
		IntentTTL:          s.cfg.IntentTTL,
		AuditRetentionDays: s.retention,
	})
	if err != nil {
		s.logger.Warn("failed to dispatch maintenance", zap.Error(err))
	}

	s.logger.Info("reconcile sweep finished",
		zap.Int("pending", len(pending)),
		zap.Int("dispatched", result.Dispatched),
		zap.Int("failed", result.Failed),
		zap.Duration("took", time.Since(start)))
	return result, nil
}
