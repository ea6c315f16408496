package lifecycle

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTransitionRun_ComputeFromDraft(t *testing.T) {
	next, err := TransitionRun(OpCompute, RunDraft)
	assert.NoError(t, err)
	assert.Equal(t, RunComputed, next)
}

func TestTransitionRun_ComputeFromApproved_Illegal(t *testing.T) {
	_, err := TransitionRun(OpCompute, RunApproved)
	assert.Error(t, err)
}

func TestCanApprove_RejectsWithErrors(t *testing.T) {
	err := CanApprove(RunComputed, 2)
	assert.Error(t, err)
}

func TestCanApprove_AllowsZeroErrors(t *testing.T) {
	err := CanApprove(RunComputed, 0)
	assert.NoError(t, err)
}

func TestCanResetToDraft_BlockedWhenPeriodPaid(t *testing.T) {
	err := CanResetToDraft(RunComputed, PeriodPaid)
	assert.Error(t, err)
}

func TestReopen_RequiresForceAndReasonWhenPaid(t *testing.T) {
	_, err := Reopen(PeriodPaid, false, "")
	assert.Error(t, err)

	_, err = Reopen(PeriodPaid, true, "")
	assert.Error(t, err)

	status, err := Reopen(PeriodPaid, true, "payroll correction")
	assert.NoError(t, err)
	assert.Equal(t, PeriodOpen, status)
}

func TestReopen_OpenPeriodNeedsNoForce(t *testing.T) {
	status, err := Reopen(PeriodOpen, false, "")
	assert.NoError(t, err)
	assert.Equal(t, PeriodOpen, status)
}

func TestClose_OnlyFromPaidOrApproved(t *testing.T) {
	_, err := Close(PeriodOpen)
	assert.Error(t, err)

	status, err := Close(PeriodPaid)
	assert.NoError(t, err)
	assert.Equal(t, PeriodClosed, status)
}

func TestReopenRunEffect(t *testing.T) {
	next, changed := ReopenRunEffect(RunComputed)
	assert.True(t, changed)
	assert.Equal(t, RunDraft, next)

	next, changed = ReopenRunEffect(RunPaid)
	assert.True(t, changed)
	assert.Equal(t, RunRejected, next)

	_, changed = ReopenRunEffect(RunDraft)
	assert.False(t, changed)
}
