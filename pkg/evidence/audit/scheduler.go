package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"aegis-hq/sentinel/pkg/evidence"
	"aegis-hq/sentinel/pkg/evidence/ledger"
)

// Scheduler runs full-chain verification on a schedule (e.g., daily at
// 3 AM) using cron syntax. A detected corruption is reported through the
// OnCorruption callback; the controller uses it to enter fail-safe mode.
type Scheduler struct {
	ledger   *ledger.Ledger
	schedule string
	cron     *cron.Cron
	mu       sync.Mutex
	logger   *slog.Logger
	running  bool

	// OnCorruption is called with the verification error when a scheduled
	// audit finds the chain broken. Optional.
	OnCorruption func(*evidence.CorruptionError)
}

// NewScheduler creates a new self-audit scheduler.
func NewScheduler(l *ledger.Ledger, schedule string) *Scheduler {
	return &Scheduler{
		ledger:   l,
		schedule: schedule,
		cron:     cron.New(),
		logger:   slog.Default().With("component", "evidence.audit"),
	}
}

// Start begins scheduled verification based on the cron expression.
//
// Common cron expressions:
//   - "0 3 * * *"    - Daily at 3 AM
//   - "0 */6 * * *"  - Every 6 hours
//
// If the schedule is empty, the scheduler does nothing.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.schedule == "" {
		s.logger.Info("audit schedule not configured, skipping scheduler")
		return nil
	}

	if _, err := cron.ParseStandard(s.schedule); err != nil {
		return fmt.Errorf("invalid cron schedule %q: %w", s.schedule, err)
	}

	if _, err := s.cron.AddFunc(s.schedule, func() {
		s.runAudit(ctx)
	}); err != nil {
		return fmt.Errorf("failed to schedule audit: %w", err)
	}

	s.cron.Start()
	s.running = true

	s.logger.Info("ledger self-audit scheduler started", "schedule", s.schedule)

	go func() {
		<-ctx.Done()
		s.Stop()
	}()

	return nil
}

// runAudit executes one verification cycle.
func (s *Scheduler) runAudit(ctx context.Context) {
	s.logger.Info("starting scheduled ledger audit")
	start := time.Now()

	verified, err := s.ledger.VerifyAll(ctx)
	if err != nil {
		var corruption *evidence.CorruptionError
		if errors.As(err, &corruption) {
			s.logger.Error("scheduled audit found ledger corruption",
				"sequence", corruption.Sequence,
				"detail", corruption.Detail,
			)
			if s.OnCorruption != nil {
				s.OnCorruption(corruption)
			}
			return
		}
		s.logger.Error("scheduled audit failed", "error", err)
		return
	}

	s.logger.Info("scheduled ledger audit passed",
		"records_verified", verified,
		"duration_ms", time.Since(start).Milliseconds(),
	)
}

// Stop stops the scheduler and waits for any running audit to complete.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil && s.running {
		ctx := s.cron.Stop()
		<-ctx.Done()
		s.running = false
		s.logger.Info("ledger self-audit scheduler stopped")
	}
}

// IsRunning returns true if the scheduler is running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.running
}

// NextRun returns the next scheduled audit time.
func (s *Scheduler) NextRun() *time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron == nil {
		return nil
	}
	entries := s.cron.Entries()
	if len(entries) == 0 {
		return nil
	}
	next := entries[0].Next
	return &next
}
