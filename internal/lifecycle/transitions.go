package lifecycle

import "github.com/ekow-ghana/payroll-core/internal/payrollerr"

// runPreconditions lists the allowed current Run states for each operation,
// and the resulting state, exactly per the table in spec §4.J. process_
// payment is modelled as its own terminal post-state (PAID), validated from
// APPROVED; Service.ProcessPayment checks that move first, then writes the
// transient PROCESSING_PAYMENT state before the payment step and PAID after.
var runPreconditions = map[Operation]struct {
	allowed []RunStatus
	next    RunStatus
}{
	OpCompute:        {allowed: []RunStatus{RunDraft, RunComputed, RunRejected}, next: RunComputed},
	OpApprove:        {allowed: []RunStatus{RunComputed}, next: RunApproved},
	OpReject:         {allowed: []RunStatus{RunComputed, RunReviewing}, next: RunRejected},
	OpProcessPayment: {allowed: []RunStatus{RunApproved}, next: RunPaid},
	OpResetToDraft:   {allowed: []RunStatus{RunComputed, RunRejected}, next: RunDraft},
	OpDelete:         {allowed: []RunStatus{RunDraft}, next: RunDeleted},
}

// TransitionRun validates and returns the next RunStatus for op given the
// run's current status, or a typed IllegalTransitionError.
func TransitionRun(op Operation, current RunStatus) (RunStatus, error) {
	rule, ok := runPreconditions[op]
	if !ok {
		return "", payrollerr.Validation("operation", "unknown run operation %q", op)
	}
	for _, allowed := range rule.allowed {
		if current == allowed {
			return rule.next, nil
		}
	}
	return "", payrollerr.IllegalTransition("Run", string(op), string(current), string(rule.next))
}

// CanApprove additionally requires error_item_count = 0 (spec §4.J) — a
// check the Run-status table alone can't express, so it's a separate guard
// that Service.Approve calls in place of TransitionRun(OpApprove, ...).
func CanApprove(current RunStatus, errorItemCount int) error {
	if current != RunComputed {
		return payrollerr.IllegalTransition("Run", string(OpApprove), string(current), string(RunApproved))
	}
	if errorItemCount > 0 {
		return payrollerr.Validation("error_item_count", "cannot approve a run with %d unresolved item errors", errorItemCount)
	}
	return nil
}

// CanResetToDraft additionally requires the period not be PAID or CLOSED.
func CanResetToDraft(runCurrent RunStatus, periodCurrent PeriodStatus) error {
	if runCurrent != RunComputed && runCurrent != RunRejected {
		return payrollerr.IllegalTransition("Run", string(OpResetToDraft), string(runCurrent), string(RunDraft))
	}
	if periodCurrent == PeriodPaid || periodCurrent == PeriodClosed {
		return payrollerr.IllegalTransition("Period", string(OpResetToDraft), string(periodCurrent), string(PeriodOpen))
	}
	return nil
}

// PeriodFollowingRun derives the Period status that follows a successful Run
// transition, per spec §4.J ("Period transitions are driven by Run
// transitions above except reopen/close").
func PeriodFollowingRun(op Operation, periodCurrent PeriodStatus) (PeriodStatus, bool) {
	switch op {
	case OpCompute:
		if periodCurrent == PeriodOpen || periodCurrent == PeriodProcessing {
			return PeriodComputed, true
		}
	case OpApprove:
		return PeriodApproved, true
	case OpReject:
		return PeriodOpen, true
	case OpProcessPayment:
		return PeriodPaid, true
	}
	return periodCurrent, false
}

// Reopen implements spec §4.J's reopen(period): only PAID/CLOSED periods
// require force+reason; the result is always OPEN.
func Reopen(current PeriodStatus, force bool, reason string) (PeriodStatus, error) {
	if current == PeriodPaid || current == PeriodClosed {
		if !force {
			return "", payrollerr.Validation("force", "reopening a %s period requires force=true", current)
		}
		if reason == "" {
			return "", payrollerr.Validation("reason", "reopening a %s period requires a non-empty reason", current)
		}
	}
	return PeriodOpen, nil
}

// ReopenRunEffect reports how an individual Run's status should change when
// its period is force-reopened, per spec §4.J's optional run-reset rule.
func ReopenRunEffect(current RunStatus) (RunStatus, bool) {
	switch current {
	case RunComputed, RunApproved, RunReviewing:
		return RunDraft, true
	case RunPaid, RunReversed:
		return RunRejected, true
	}
	return current, false
}

// Close implements spec §4.J's close(period): allowed only from PAID or
// APPROVED.
func Close(current PeriodStatus) (PeriodStatus, error) {
	if current != PeriodPaid && current != PeriodApproved {
		return "", payrollerr.IllegalTransition("Period", "close", string(current), string(PeriodClosed))
	}
	return PeriodClosed, nil
}
