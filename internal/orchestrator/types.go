// Package orchestrator implements the Run Orchestrator (spec §4.I): the
// compute(run) operation that drives every eligible employee through the
// Employee Payroll Computer and assembles the Run-level summary.
package orchestrator

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ekow-ghana/payroll-core/internal/lifecycle"
	"github.com/ekow-ghana/payroll-core/internal/payrollcalc"
)

// Run is the payroll-run aggregate the orchestrator drives through
// COMPUTING → COMPUTED (spec §4.I, §4.J).
type Run struct {
	ID       string
	TenantID string
	PeriodID string
	Status   lifecycle.RunStatus

	ComputedBy *string
	ComputedAt *time.Time

	TotalGross          decimal.Decimal
	TotalDeductions     decimal.Decimal
	TotalNet            decimal.Decimal
	TotalEmployerCost    decimal.Decimal
	TotalPAYE           decimal.Decimal
	TotalOvertimeTax    decimal.Decimal
	TotalBonusTax       decimal.Decimal
	TotalSSNITEmployee  decimal.Decimal
	TotalSSNITEmployer  decimal.Decimal
	TotalTier2Employer  decimal.Decimal
	TotalEmployees      int
	ErrorItemCount      int
}

// Period is the payroll period a Run belongs to.
type Period struct {
	ID       string
	TenantID string
	Start    time.Time
	End      time.Time
	Status   lifecycle.PeriodStatus
}

// ItemStatus is one employee's computation outcome within a Run.
type ItemStatus string

const (
	ItemOK    ItemStatus = "OK"
	ItemError ItemStatus = "ERROR"
)

// Item is one employee's persisted result for a Run.
type Item struct {
	ID         string
	RunID      string
	EmployeeID string
	Status     ItemStatus
	Error      string
	Result     payrollcalc.Result

	BankAccountName    string
	BankAccountNumber  string
	BankBranch         string

	PaidAt            *time.Time
	PaymentReference   string
}

// ProgressStatus mirrors the progress record's status field (spec §4.I
// step 4/9).
type ProgressStatus string

const (
	ProgressComputing ProgressStatus = "computing"
	ProgressCompleted ProgressStatus = "completed"
)

// Progress is the run-keyed progress record the orchestrator publishes as
// employees are processed.
type Progress struct {
	RunID      string
	Status     ProgressStatus
	Total      int
	Processed  int
	Percentage int
	StartedAt  time.Time
}
