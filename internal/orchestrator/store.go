package orchestrator

import (
	"context"
	"time"

	"github.com/ekow-ghana/payroll-core/internal/compgraph"
	"github.com/ekow-ghana/payroll-core/internal/lifecycle"
	"github.com/ekow-ghana/payroll-core/internal/overlay"
	"github.com/ekow-ghana/payroll-core/internal/payrollcalc"
)

// BankSnapshot is the primary active bank account snapshot an Item freezes
// at compute time (spec §4.I step 5: "Snapshot the employee's primary
// active bank account").
type BankSnapshot struct {
	AccountName   string
	AccountNumber string
	Branch        string
}

// EmployeeContext bundles everything computeOne needs to build a
// payrollcalc.Input for one employee, resolved by the Store so the
// orchestrator itself issues no SQL.
type EmployeeContext struct {
	Employee               compgraph.Employee
	CurrentSalary          *compgraph.EmployeeSalary
	BasicComponent         compgraph.PayComponent
	SalaryComponents       []compgraph.EmployeeSalaryComponent
	ComponentsByID         map[string]compgraph.PayComponent
	AdHocPayments          []payrollcalc.AdHocPayment
	ApplicableTransactions []overlay.EmployeeTransaction
	Grade                  *compgraph.Grade
	Level                  *compgraph.SalaryLevel
	Bank                   BankSnapshot
}

// Store is everything the orchestrator needs from persistence. A single
// concrete Repository (store.go's sibling repository.go) implements it
// against Postgres; tests supply an in-memory fake.
type Store interface {
	LoadRun(ctx context.Context, schemaName, tenantID, runID string) (*Run, error)
	LoadPeriod(ctx context.Context, schemaName, tenantID, periodID string) (*Period, error)
	DeleteItems(ctx context.Context, schemaName, runID string) error
	UpdateRunStatus(ctx context.Context, schemaName, runID string, status lifecycle.RunStatus) error
	UpdatePeriodStatus(ctx context.Context, schemaName, periodID string, status lifecycle.PeriodStatus) error

	EligibleEmployees(ctx context.Context, schemaName, tenantID string, periodEnd time.Time) ([]compgraph.Employee, error)
	EmployeeContext(ctx context.Context, schemaName, tenantID, employeeID, periodID string, periodStart, periodEnd time.Time) (EmployeeContext, error)

	InsertItem(ctx context.Context, schemaName string, item Item) error
	UpdateRunTotals(ctx context.Context, schemaName, runID string, run Run) error

	RecordAudit(ctx context.Context, schemaName, tenantID, action, entity, entityID, actorID string) error
}

// BackpayApplier applies every APPROVED BackpayRequest with
// applied_to_run IS NULL against this run's matching Items (spec §4.I
// step 6). Implemented concretely by the backpay package; declared here as
// an interface to avoid a direct orchestrator→backpay import.
type BackpayApplier interface {
	ApplyApprovedRequests(ctx context.Context, schemaName, tenantID, runID, periodID string) (applied int, failed int, err error)
}
