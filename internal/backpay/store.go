package backpay

import (
	"context"
	"time"

	"github.com/ekow-ghana/payroll-core/internal/compgraph"
	"github.com/ekow-ghana/payroll-core/internal/lifecycle"
	"github.com/ekow-ghana/payroll-core/internal/overlay"
	"github.com/ekow-ghana/payroll-core/internal/payrollcalc"
)

// PeriodRef is the minimal period shape the backpay engine needs — a
// separate type from orchestrator.Period so this package has no dependency
// on the orchestrator.
type PeriodRef struct {
	ID       string
	Start    time.Time
	End      time.Time
	Status   lifecycle.PeriodStatus
}

// PaidItem is what was actually recorded for one employee in one period —
// the source of spec §4.K step 3's paid_map when it exists.
type PaidItem struct {
	RunID  string
	ItemID string
	Result payrollcalc.Result
}

// Store is everything Service needs from persistence. A single concrete
// Repository (repository.go) implements it against Postgres, composing
// compgraph.Repository, overlay.Service and ratebook.Service rather than
// re-querying their tables directly.
type Store interface {
	// PeriodsInRange returns every PAID/CLOSED, non-supplementary period for
	// the employee's tenant overlapping [from, to], ordered by start date —
	// spec §4.K: "For each PAID/CLOSED period P in [from, to] (non-
	// supplementary, ordered)".
	PeriodsInRange(ctx context.Context, schemaName, tenantID string, from, to time.Time) ([]PeriodRef, error)
	PeriodByID(ctx context.Context, schemaName, tenantID, periodID string) (*PeriodRef, error)

	EmployeeSnapshot(ctx context.Context, schemaName, tenantID, employeeID string) (compgraph.Employee, error)

	// ApplicableSalaryAsOf resolves the salary version effective on or
	// before asOf — spec §4.K step 1's "salary whose effective_from <=
	// reference_period.start_date (or P.start_date) with max effective_from".
	ApplicableSalaryAsOf(ctx context.Context, schemaName, tenantID, employeeID string, asOf time.Time) (*compgraph.EmployeeSalary, error)
	SalaryComponents(ctx context.Context, schemaName, employeeSalaryID string) ([]compgraph.EmployeeSalaryComponent, error)

	BasicComponent(ctx context.Context, schemaName, tenantID string) (compgraph.PayComponent, error)
	ComponentByID(ctx context.Context, schemaName, componentID string) (*compgraph.PayComponent, error)
	ArrearsApplicableComponents(ctx context.Context, schemaName, tenantID string) (map[string]compgraph.PayComponent, error)

	// GradeForPeriod implements the 3-tier fallback of spec §4.K step 1 /
	// SPEC_FULL.md §12.2: EmploymentHistory -> salary structure's grade ->
	// employee's current grade.
	GradeForPeriod(ctx context.Context, schemaName, tenantID, employeeID string, asOf time.Time, employee compgraph.Employee, salary *compgraph.EmployeeSalary) (*compgraph.Grade, error)
	LevelForNotch(ctx context.Context, schemaName string, notchID *string) (*compgraph.SalaryLevel, error)

	ApplicableTransactions(ctx context.Context, schemaName, tenantID string, employee compgraph.Employee, grade *compgraph.Grade, level *compgraph.SalaryLevel, period overlay.Period, covered map[string]bool) ([]overlay.EmployeeTransaction, error)

	// RateBookAt resolves the rate book effective at asOf — spec §4.K step
	// 5: "rates may have changed between P and now; backpay restates using
	// the rates effective at P".
	RateBookAt(ctx context.Context, schemaName, tenantID string, asOf time.Time) (payrollcalc.RateBook, error)

	// PaidItem returns the employee's recorded Item for a period, or nil if
	// none exists (spec §4.K step 3). Its Result already carries whatever
	// the actual paying Run computed, which is why a separate RunForPeriod
	// lookup isn't needed: PaidItem is that preference already applied.
	PaidItem(ctx context.Context, schemaName, tenantID, periodID, employeeID string) (*PaidItem, error)

	HasOverlappingApplied(ctx context.Context, schemaName, tenantID, employeeID string, from, to time.Time) (bool, error)

	InsertRequest(ctx context.Context, schemaName string, req Request) error
	LoadRequest(ctx context.Context, schemaName, tenantID, requestID string) (*Request, error)
	UpdateRequestStatus(ctx context.Context, schemaName, requestID string, status RequestStatus) error

	// ItemInRun resolves the target Item an approved request's arrears are
	// written onto.
	ItemInRun(ctx context.Context, schemaName, runID, employeeID string) (*PaidItem, error)
	// ApplyArrears writes one arrear Detail row per ComponentTotal onto the
	// target Item and updates its gross/deductions/net totals.
	ApplyArrears(ctx context.Context, schemaName, runID, employeeID, requestID string, totals []ComponentTotal) error
	MarkApplied(ctx context.Context, schemaName, requestID, runID string, appliedAt time.Time) error
}

// DetectorStore is what Detector needs — a narrower surface than Store,
// kept separate because the detector runs on a cron sweep independent of
// any specific Calculate/Apply call (spec §4.L).
type DetectorStore interface {
	ActivePeriod(ctx context.Context, schemaName, tenantID string) (*PeriodRef, error)
	ClosedPeriods(ctx context.Context, schemaName, tenantID string) ([]PeriodRef, error)
	EmployeeHasNonCancelledRequest(ctx context.Context, schemaName, tenantID, employeeID string) (bool, error)

	BackdatedSalaryChanges(ctx context.Context, schemaName, tenantID string, period PeriodRef, windowStart, windowEnd time.Time) ([]salaryChangeHit, error)
	BackdatedGradeChanges(ctx context.Context, schemaName, tenantID string, period PeriodRef, windowStart, windowEnd time.Time) ([]gradeChangeHit, error)
	BackdatedTransactionChanges(ctx context.Context, schemaName, tenantID string, period PeriodRef, windowStart, windowEnd time.Time) ([]transactionChangeHit, error)
}

type salaryChangeHit struct {
	EmployeeID    string
	EffectiveFrom time.Time
	CreatedAt     time.Time
}

type gradeChangeHit struct {
	EmployeeID    string
	ChangeType    compgraph.EmploymentHistoryChangeType
	EffectiveDate time.Time
	CreatedAt     time.Time
}

type transactionChangeHit struct {
	EmployeeID    string
	ComponentCode string
	EffectiveFrom time.Time
	CreatedAt     time.Time
}
