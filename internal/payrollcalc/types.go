// Package payrollcalc implements the Employee Payroll Computer (spec §4.F):
// the per-employee, per-period computation that turns a resolved salary,
// its overlays, and the active rate book into a net-pay result.
package payrollcalc

import (
	"github.com/shopspring/decimal"

	"github.com/ekow-ghana/payroll-core/internal/compgraph"
	"github.com/ekow-ghana/payroll-core/internal/overlay"
	"github.com/ekow-ghana/payroll-core/internal/ratebook"
)

// Bucket names the running accumulator a source amount belongs to (spec
// §4.F Step 3 table).
type Bucket string

const (
	BucketRegularTaxable  Bucket = "REGULAR_TAXABLE"
	BucketNonTaxable      Bucket = "NON_TAXABLE"
	BucketOvertime        Bucket = "OVERTIME"
	BucketBonus           Bucket = "BONUS"
	BucketPreTaxDeduction Bucket = "PRE_TAX_DEDUCTION"
	BucketOtherDeduction  Bucket = "OTHER_DEDUCTION"
	BucketEmployerContrib Bucket = "EMPLOYER_CONTRIB"
)

// DetailRow is one non-zero contribution to the result, persisted as a
// payroll Item Detail row.
type DetailRow struct {
	ComponentID   string
	ComponentCode string
	Bucket        Bucket
	Amount        decimal.Decimal
	IsArrear      bool
}

// AdHocPayment is an approved one-off payment for one (employee, period),
// always unprorated (spec §4.F Step 3.3).
type AdHocPayment struct {
	ID             string
	EmployeeID     string
	PeriodID       string
	PayComponentID string
	Amount         decimal.Decimal
	Status         string
}

// Input bundles everything the computer needs that the orchestrator has
// already resolved from the Compensation Graph, Transaction Overlay, and
// Rate Book — payrollcalc itself issues no queries, so its core algorithm
// is exercised by tests without a database.
type Input struct {
	Employee compgraph.Employee
	Period   overlay.Period

	CurrentSalary *compgraph.EmployeeSalary
	BasicComponent compgraph.PayComponent

	// SalaryComponents is the materialised, per-employee-salary-version
	// component set — structure defaults already merged with any
	// EmployeeSalaryComponent override, per compgraph's write path.
	SalaryComponents []compgraph.EmployeeSalaryComponent
	ComponentsByID   map[string]compgraph.PayComponent

	AdHocPayments []AdHocPayment

	ApplicableTransactions []overlay.EmployeeTransaction

	Grade *compgraph.Grade
	Level *compgraph.SalaryLevel

	Active RateBook
}

// RateBook is the subset of ratebook.Active the computer depends on,
// expressed as an interface so payrollcalc tests can supply a fixture
// without building a ratebook.Service.
type RateBook interface {
	CalculatePAYE(taxableIncome decimal.Decimal) decimal.Decimal
	CalculateTaxRelief(grossSalary decimal.Decimal) decimal.Decimal
	CalculateSSNIT(basicSalary decimal.Decimal) ratebook.SSNITResult
	CalculateOvertimeTax(overtime, basic, annualSalary decimal.Decimal, isResident bool) ratebook.OvertimeTaxResult
	CalculateBonusTax(bonus, annualBasic decimal.Decimal, isResident bool) ratebook.BonusTaxResult
}

// Status is the outcome of one employee's computation, mirrored onto the
// payroll Item row by the orchestrator.
type Status string

const (
	StatusOK    Status = "OK"
	StatusError Status = "ERROR"
)

// Result is the full output of Compute: the ten Run-level summary fields
// (spec §4.I step 7) at the employee grain, plus its Detail rows.
type Result struct {
	Status       Status
	ErrorMessage string

	BasicSalary    decimal.Decimal
	ProratedBasic  decimal.Decimal
	Factor         decimal.Decimal
	DaysPayable    int
	TotalDays      int

	GrossEarnings decimal.Decimal

	SSNITEmployee      decimal.Decimal
	SSNITEmployerTier1 decimal.Decimal
	SSNITEmployerTier2 decimal.Decimal

	TaxRelief     decimal.Decimal
	TaxableIncome decimal.Decimal
	PAYE          decimal.Decimal

	OvertimeTax decimal.Decimal
	BonusTax    decimal.Decimal

	TotalDeductions decimal.Decimal
	NetSalary       decimal.Decimal
	EmployerCost    decimal.Decimal

	Details []DetailRow
}

// ErrorResult builds the ERROR-status Result used when no current salary
// resolves (spec §4.F Step 1) or any other fatal precondition fails.
func ErrorResult(message string) Result {
	return Result{Status: StatusError, ErrorMessage: message}
}
