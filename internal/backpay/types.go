// Package backpay implements the Retroactive Pay (Backpay) Engine (spec
// §4.K) and the Retroactive Change Detector (spec §4.L): restating what an
// employee should have been paid across a range of already-PAID/CLOSED
// periods against the facts and rates effective at each period, diffing
// against what was actually paid, and applying the resulting arrears onto a
// later run.
package backpay

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ekow-ghana/payroll-core/internal/payrollcalc"
)

// RequestStatus is a BackpayRequest's lifecycle state (spec §4.K:
// "PREVIEWED ... APPROVED → APPLIED is one-way; CANCELLED is available if
// unwanted prior to APPLIED").
type RequestStatus string

const (
	RequestPreviewed RequestStatus = "PREVIEWED"
	RequestApproved  RequestStatus = "APPROVED"
	RequestApplied   RequestStatus = "APPLIED"
	RequestCancelled RequestStatus = "CANCELLED"
	RequestRejected  RequestStatus = "REJECTED"
)

// DeltaRow is one component's (old, new, diff) across one period — the
// finest grain of the calculation spec §4.K steps 4–5 produce.
type DeltaRow struct {
	PeriodID      string
	ComponentCode string
	Bucket        payrollcalc.Bucket
	OldAmount     decimal.Decimal
	NewAmount     decimal.Decimal
	Diff          decimal.Decimal
}

// PeriodDelta is one period's restated facts: its delta rows plus the
// period-level earnings/deductions/net summary (spec §4.K step 6).
type PeriodDelta struct {
	PeriodID       string
	PeriodStart    time.Time
	PeriodEnd      time.Time
	Rows           []DeltaRow
	EarningsDiff   decimal.Decimal
	DeductionsDiff decimal.Decimal
	NetDiff        decimal.Decimal
	OldTaxable     decimal.Decimal
	NewTaxable     decimal.Decimal
}

// CalculationResult is the full output of Calculate: per-period deltas plus
// aggregate totals (spec §4.K "Aggregate totals").
type CalculationResult struct {
	EmployeeID string
	From       time.Time
	To         time.Time
	Reason     string

	Periods []PeriodDelta

	TotalEarningsArrears   decimal.Decimal
	TotalDeductionsArrears decimal.Decimal
	NetArrears             decimal.Decimal
}

// ComponentTotal is one component's diff summed across every period of a
// request — the grain apply_to_payroll writes as a single arrear Detail row
// (spec §4.K: "For each (component, total_diff) across all periods ...").
type ComponentTotal struct {
	ComponentCode string
	Bucket        payrollcalc.Bucket
	TotalDiff      decimal.Decimal
	PeriodCount    int
}

// Request is the persisted BackpayRequest aggregate.
type Request struct {
	ID             string
	TenantID       string
	EmployeeID     string
	From           time.Time
	To             time.Time
	Reason         string
	ReferencePeriodID *string

	NewSalary *decimal.Decimal
	OldSalary *decimal.Decimal

	Status RequestStatus

	Calculation CalculationResult

	AppliedToRunID *string
	AppliedAt      *time.Time

	CreatedBy string
	CreatedAt time.Time
}

// PreviewRow mirrors one DeltaRow shaped for the wire: the Python source's
// preview() step formats decimals as strings rather than leaving typed
// decimal.Decimal, since JSON consumers expect fixed-point strings, not
// floats.
type PreviewRow struct {
	PeriodID      string `json:"period_id"`
	ComponentCode string `json:"component_code"`
	OldAmount     string `json:"old_amount"`
	NewAmount     string `json:"new_amount"`
	Diff          string `json:"diff"`
}

// Preview is CalculationResult shaped for a wire consumer (CLI or future
// HTTP layer) — see Service.Preview.
type Preview struct {
	EmployeeID             string       `json:"employee_id"`
	From                   string       `json:"from"`
	To                     string       `json:"to"`
	Rows                   []PreviewRow `json:"rows"`
	TotalEarningsArrears   string       `json:"total_earnings_arrears"`
	TotalDeductionsArrears string       `json:"total_deductions_arrears"`
	NetArrears             string       `json:"net_arrears"`
}

// ChangeType names the kind of backdated edit the detector surfaces.
type ChangeType string

const (
	ChangeSalary      ChangeType = "SALARY"
	ChangeGrade       ChangeType = "GRADE"
	ChangeTransaction ChangeType = "TRANSACTION"
)

// ChangeEvent is one backdated edit touching a closed period.
type ChangeEvent struct {
	ChangeType      ChangeType
	Description     string
	AffectedPeriodID string
	CreatedAt       time.Time
}

// Candidate groups every ChangeEvent touching one employee's closed periods
// within the detection window (spec §4.L: "grouped by employee").
type Candidate struct {
	EmployeeID      string
	Events          []ChangeEvent
	AffectedPeriods []string
	EarliestFrom    time.Time
	LatestTo        time.Time
}

// excludedFromGenericDiff names the four employee-facing statutory codes
// spec §4.K step 4 carves out of the generic component diff because step 5
// restates them directly against the rate book rather than diffing paid
// vs should-have-paid. TIER2_EMP, the fifth non-deletable statutory code, is
// the employer's SSNIT Tier 2 contribution: it never reaches this map
// because arrearsMap only carries codes present in arrearsApplicable, and
// employer contributions aren't arrears-eligible earnings or deductions an
// employee is owed — backpay has nothing to restate for it.
var excludedFromGenericDiff = map[string]bool{
	"SSNIT_EMP":    true,
	"PAYE":         true,
	"OVERTIME_TAX": true,
	"BONUS_TAX":    true,
}
