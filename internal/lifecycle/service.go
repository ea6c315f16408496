package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/ekow-ghana/payroll-core/internal/payrollerr"
)

// Service applies the Run and Period transitions validated by this
// package's pure functions against persistence: load, validate, write the
// new status, audit. Every cmd/payrollctl lifecycle subcommand (approve,
// pay, reopen) other than compute goes through here; compute itself stays
// owned by orchestrator.Service since it does far more than flip a status.
type Service struct {
	store Store
	locks RunLocker
	log   zerolog.Logger
}

func NewService(store Store, locks RunLocker, logger zerolog.Logger) *Service {
	return &Service{store: store, locks: locks, log: logger}
}

// withRunLock serializes a Run-scoped transition against any other
// lifecycle transition or compute(run) holding the same Run's lock (spec
// §5); the loser returns ConcurrencyConflict immediately rather than
// blocking or racing.
func (s *Service) withRunLock(ctx context.Context, runID string, fn func() error) error {
	release, acquired, err := s.locks.TryLock(ctx, runID)
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !acquired {
		return payrollerr.ConcurrencyConflict("Run " + runID)
	}
	defer release()
	return fn()
}

func (s *Service) loadRun(ctx context.Context, schemaName, tenantID, runID string) (*RunSummary, error) {
	run, err := s.store.LoadRun(ctx, schemaName, tenantID, runID)
	if err != nil {
		return nil, fmt.Errorf("load run: %w", err)
	}
	if run == nil {
		return nil, payrollerr.NotFound("Run", runID)
	}
	return run, nil
}

func (s *Service) loadPeriod(ctx context.Context, schemaName, tenantID, periodID string) (*PeriodSummary, error) {
	period, err := s.store.LoadPeriod(ctx, schemaName, tenantID, periodID)
	if err != nil {
		return nil, fmt.Errorf("load period: %w", err)
	}
	if period == nil {
		return nil, payrollerr.NotFound("Period", periodID)
	}
	return period, nil
}

// Approve implements approve(run) (spec §4.J): COMPUTED, error_item_count=0
// → APPROVED; period→APPROVED. No Item is written.
func (s *Service) Approve(ctx context.Context, schemaName, tenantID, runID, actorID string) error {
	return s.withRunLock(ctx, runID, func() error {
		run, err := s.loadRun(ctx, schemaName, tenantID, runID)
		if err != nil {
			return err
		}
		if err := CanApprove(run.Status, run.ErrorItemCount); err != nil {
			return err
		}

		if err := s.store.UpdateRunStatus(ctx, schemaName, runID, RunApproved); err != nil {
			return fmt.Errorf("mark run approved: %w", err)
		}
		if err := s.cascadeToPeriod(ctx, schemaName, tenantID, OpApprove, run.PeriodID); err != nil {
			return err
		}

		s.audit(ctx, schemaName, tenantID, "RUN_APPROVED", "Run", runID, actorID, nil)
		s.log.Info().Str("run_id", runID).Msg("run approved")
		return nil
	})
}

// Reject implements reject(run) (spec §4.J): COMPUTED or REVIEWING →
// REJECTED; period→OPEN.
func (s *Service) Reject(ctx context.Context, schemaName, tenantID, runID, actorID, reason string) error {
	return s.withRunLock(ctx, runID, func() error {
		run, err := s.loadRun(ctx, schemaName, tenantID, runID)
		if err != nil {
			return err
		}

		next, err := TransitionRun(OpReject, run.Status)
		if err != nil {
			return err
		}
		if err := s.store.UpdateRunStatus(ctx, schemaName, runID, next); err != nil {
			return fmt.Errorf("mark run rejected: %w", err)
		}
		if err := s.cascadeToPeriod(ctx, schemaName, tenantID, OpReject, run.PeriodID); err != nil {
			return err
		}

		s.audit(ctx, schemaName, tenantID, "RUN_REJECTED", "Run", runID, actorID, map[string]any{"reason": reason})
		s.log.Info().Str("run_id", runID).Str("reason", reason).Msg("run rejected")
		return nil
	})
}

// ProcessPayment implements process_payment(run) (spec §4.J): APPROVED →
// PROCESSING_PAYMENT → PAID; MarkItemsPaid stamps the paid date and
// reference on the run's Items (no Item status changes); period→PAID. The transient PROCESSING_PAYMENT state is written before the
// (here, synchronous) payment step so a crash mid-payment leaves the run
// discoverably stuck rather than silently still APPROVED.
func (s *Service) ProcessPayment(ctx context.Context, schemaName, tenantID, runID, actorID, paymentReference string) error {
	return s.withRunLock(ctx, runID, func() error {
		run, err := s.loadRun(ctx, schemaName, tenantID, runID)
		if err != nil {
			return err
		}

		if _, err := TransitionRun(OpProcessPayment, run.Status); err != nil {
			return err
		}
		if err := s.store.UpdateRunStatus(ctx, schemaName, runID, RunProcessingPayment); err != nil {
			return fmt.Errorf("mark run processing payment: %w", err)
		}

		paidAt := time.Now()
		if err := s.store.MarkItemsPaid(ctx, schemaName, runID, paymentReference, paidAt); err != nil {
			return fmt.Errorf("mark items paid: %w", err)
		}

		if err := s.store.UpdateRunStatus(ctx, schemaName, runID, RunPaid); err != nil {
			return fmt.Errorf("mark run paid: %w", err)
		}
		if err := s.cascadeToPeriod(ctx, schemaName, tenantID, OpProcessPayment, run.PeriodID); err != nil {
			return err
		}

		s.audit(ctx, schemaName, tenantID, "RUN_PAID", "Run", runID, actorID, map[string]any{"payment_reference": paymentReference})
		s.log.Info().Str("run_id", runID).Str("payment_reference", paymentReference).Msg("run payment processed")
		return nil
	})
}

// ResetToDraft implements reset_to_draft(run) (spec §4.J): COMPUTED or
// REJECTED, period not in {PAID,CLOSED} → DRAFT; Items deleted; summary
// zeroed.
func (s *Service) ResetToDraft(ctx context.Context, schemaName, tenantID, runID, actorID string) error {
	return s.withRunLock(ctx, runID, func() error {
		run, err := s.loadRun(ctx, schemaName, tenantID, runID)
		if err != nil {
			return err
		}
		period, err := s.loadPeriod(ctx, schemaName, tenantID, run.PeriodID)
		if err != nil {
			return err
		}
		if err := CanResetToDraft(run.Status, period.Status); err != nil {
			return err
		}

		if err := s.store.DeleteItems(ctx, schemaName, runID); err != nil {
			return fmt.Errorf("delete items: %w", err)
		}
		if err := s.store.ZeroRunTotals(ctx, schemaName, runID); err != nil {
			return fmt.Errorf("zero run totals: %w", err)
		}
		if err := s.store.UpdateRunStatus(ctx, schemaName, runID, RunDraft); err != nil {
			return fmt.Errorf("mark run draft: %w", err)
		}

		s.audit(ctx, schemaName, tenantID, "RUN_RESET_TO_DRAFT", "Run", runID, actorID, nil)
		s.log.Info().Str("run_id", runID).Msg("run reset to draft")
		return nil
	})
}

// Delete implements delete(run) (spec §4.J): DRAFT → soft-deleted.
func (s *Service) Delete(ctx context.Context, schemaName, tenantID, runID, actorID string) error {
	return s.withRunLock(ctx, runID, func() error {
		run, err := s.loadRun(ctx, schemaName, tenantID, runID)
		if err != nil {
			return err
		}

		if _, err := TransitionRun(OpDelete, run.Status); err != nil {
			return err
		}
		if err := s.store.SoftDeleteRun(ctx, schemaName, runID); err != nil {
			return fmt.Errorf("soft delete run: %w", err)
		}

		s.audit(ctx, schemaName, tenantID, "RUN_DELETED", "Run", runID, actorID, nil)
		s.log.Info().Str("run_id", runID).Msg("run soft-deleted")
		return nil
	})
}

// Reopen implements reopen(period) (spec §4.J): if the period is PAID or
// CLOSED, force and a non-empty reason are required; every Run in the
// period is reset per ReopenRunEffect; result is always period → OPEN. The
// audit log records previous_status, reason, force and runs_reset.
func (s *Service) Reopen(ctx context.Context, schemaName, tenantID, periodID, actorID string, force bool, reason string) error {
	period, err := s.loadPeriod(ctx, schemaName, tenantID, periodID)
	if err != nil {
		return err
	}

	next, err := Reopen(period.Status, force, reason)
	if err != nil {
		return err
	}
	previousStatus := period.Status

	runs, err := s.store.RunsForPeriod(ctx, schemaName, tenantID, periodID)
	if err != nil {
		return fmt.Errorf("list runs for period: %w", err)
	}

	// Each affected Run is locked individually, matching spec §5's "same
	// mutex" requirement without holding every run's lock for the whole
	// loop — a run busy elsewhere fails the reopen instead of silently
	// skipping or racing it.
	runsReset := 0
	for _, run := range runs {
		newStatus, changed := ReopenRunEffect(run.Status)
		if !changed {
			continue
		}
		if err := s.withRunLock(ctx, run.ID, func() error {
			return s.store.UpdateRunStatus(ctx, schemaName, run.ID, newStatus)
		}); err != nil {
			return fmt.Errorf("reset run %s on reopen: %w", run.ID, err)
		}
		runsReset++
	}

	if err := s.store.UpdatePeriodStatus(ctx, schemaName, periodID, next); err != nil {
		return fmt.Errorf("mark period open: %w", err)
	}

	s.audit(ctx, schemaName, tenantID, "PERIOD_REOPENED", "Period", periodID, actorID, map[string]any{
		"previous_status": string(previousStatus),
		"reason":          reason,
		"force":           force,
		"runs_reset":      runsReset,
	})
	s.log.Info().
		Str("period_id", periodID).
		Str("previous_status", string(previousStatus)).
		Int("runs_reset", runsReset).
		Msg("period reopened")
	return nil
}

// Close implements close(period) (spec §4.J): allowed only from PAID or
// APPROVED; result CLOSED.
func (s *Service) Close(ctx context.Context, schemaName, tenantID, periodID, actorID string) error {
	period, err := s.loadPeriod(ctx, schemaName, tenantID, periodID)
	if err != nil {
		return err
	}

	next, err := Close(period.Status)
	if err != nil {
		return err
	}
	if err := s.store.UpdatePeriodStatus(ctx, schemaName, periodID, next); err != nil {
		return fmt.Errorf("mark period closed: %w", err)
	}

	s.audit(ctx, schemaName, tenantID, "PERIOD_CLOSED", "Period", periodID, actorID, nil)
	s.log.Info().Str("period_id", periodID).Msg("period closed")
	return nil
}

// cascadeToPeriod applies PeriodFollowingRun's derived status, if any, after
// a successful Run-level transition.
func (s *Service) cascadeToPeriod(ctx context.Context, schemaName, tenantID string, op Operation, periodID string) error {
	period, err := s.loadPeriod(ctx, schemaName, tenantID, periodID)
	if err != nil {
		return err
	}
	next, changed := PeriodFollowingRun(op, period.Status)
	if !changed {
		return nil
	}
	if err := s.store.UpdatePeriodStatus(ctx, schemaName, periodID, next); err != nil {
		return fmt.Errorf("update period status: %w", err)
	}
	return nil
}

// audit writes the entry and logs (never fails) a write error, matching
// orchestrator.Service's treatment of audit logging as best-effort.
func (s *Service) audit(ctx context.Context, schemaName, tenantID, action, entity, entityID, actorID string, metadata map[string]any) {
	if err := s.store.RecordAudit(ctx, schemaName, tenantID, action, entity, entityID, actorID, metadata); err != nil {
		s.log.Warn().Err(err).Str("action", action).Msg("audit log write failed")
	}
}
