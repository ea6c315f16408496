// Package compgraph implements the Compensation Graph (spec §4.B): pay
// components, the Band→Level→Notch salary structure hierarchy, and
// versioned per-employee salaries and salary components.
package compgraph

import (
	"time"

	"github.com/shopspring/decimal"
)

// ComponentType classifies a pay component for the payroll computer's
// bucketing (spec §3, §4.F).
type ComponentType string

const (
	ComponentEarning    ComponentType = "EARNING"
	ComponentDeduction  ComponentType = "DEDUCTION"
	ComponentEmployer   ComponentType = "EMPLOYER_CONTRIBUTION"
)

// ComponentCategory is a coarse grouping used for display and reporting.
type ComponentCategory string

const (
	CategoryBasic     ComponentCategory = "BASIC"
	CategoryAllowance ComponentCategory = "ALLOWANCE"
	CategoryBonus     ComponentCategory = "BONUS"
	CategoryStatutory ComponentCategory = "STATUTORY"
	CategoryOvertime  ComponentCategory = "OVERTIME"
	CategoryShift     ComponentCategory = "SHIFT"
	CategoryLoan      ComponentCategory = "LOAN"
	CategoryFund      ComponentCategory = "FUND"
	CategoryOther     ComponentCategory = "OTHER"
)

// CalculationKind names how a component's amount is derived absent an
// overriding transaction.
type CalculationKind string

const (
	CalcFixed           CalculationKind = "FIXED"
	CalcPercentBasic    CalculationKind = "PCT_OF_BASIC"
	CalcPercentGross    CalculationKind = "PCT_OF_GROSS"
	CalcFormula         CalculationKind = "FORMULA"
	CalcLookup          CalculationKind = "LOOKUP"
)

// Well-known statutory component codes. Exactly one component has code
// Basic; the five statutory codes below are non-deletable (spec §3).
const (
	CodeBasic       = "BASIC"
	CodePAYE        = "PAYE"
	CodeSSNITEmp    = "SSNIT_EMP"
	CodeOvertimeTax = "OVERTIME_TAX"
	CodeBonusTax    = "BONUS_TAX"
	CodeTier2Emp    = "TIER2_EMP"
)

// PayComponent is unique by Code within a tenant.
type PayComponent struct {
	ID       string
	TenantID string
	Code     string
	Name     string

	Type          ComponentType
	Category      ComponentCategory
	CalcKind      CalculationKind
	DefaultAmount decimal.Decimal
	Percentage    decimal.Decimal
	Formula       string

	IsTaxable           bool
	ReducesTaxable      bool
	IsOvertime          bool
	IsBonus             bool
	AffectsSSNIT        bool
	IsStatutory         bool
	IsRecurring         bool
	IsProrated          bool
	IsArrearsApplicable bool
	ShowOnPayslip       bool
	DisplayOrder        int

	IsActive bool
}

// Validate enforces the component-level invariants named in spec §3.
func (c PayComponent) Validate() error {
	if c.IsBonus && c.IsOvertime {
		return errComponentBonusAndOvertime
	}
	return nil
}

// SalaryBand is the top tier of the structure hierarchy.
type SalaryBand struct {
	ID       string
	TenantID string
	Code     string
	Name     string
	Min      decimal.Decimal
	Max      decimal.Decimal
}

// SalaryLevel belongs to exactly one Band.
type SalaryLevel struct {
	ID       string
	TenantID string
	BandID   string
	Code     string
	Name     string
	Min      decimal.Decimal
	Max      decimal.Decimal
}

// SalaryNotch belongs to exactly one Level and carries an absolute base
// amount.
type SalaryNotch struct {
	ID       string
	TenantID string
	LevelID  string
	Code     string
	Amount   decimal.Decimal
}

// SalaryStructure groups a set of SalaryStructureComponent rows, optionally
// tied to a grade.
type SalaryStructure struct {
	ID       string
	TenantID string
	Name     string
	GradeID  string
}

// SalaryStructureComponent is a structure-level default for one pay
// component.
type SalaryStructureComponent struct {
	ID                string
	TenantID          string
	SalaryStructureID string
	PayComponentID     string
	Amount            decimal.Decimal
	IsActive          bool
}

// EmployeeSalary is time-sliced: at most one row with IsCurrent=true per
// instant for a given employee (spec §3). New rows close out the prior one
// by setting EffectiveTo = new.EffectiveFrom - 1 day.
type EmployeeSalary struct {
	ID                string
	TenantID          string
	EmployeeID        string
	BasicSalary       decimal.Decimal
	SalaryStructureID *string
	EffectiveFrom     time.Time
	EffectiveTo       *time.Time
	IsCurrent         bool
	CreatedAt         time.Time
}

// EmployeeSalaryComponent overrides a structure amount for one employee
// salary version.
type EmployeeSalaryComponent struct {
	ID               string
	TenantID         string
	EmployeeSalaryID string
	PayComponentID   string
	Amount           decimal.Decimal
	IsActive         bool
}

// EmployeeStatus gates payroll eligibility (spec §4.I step 5).
type EmployeeStatus string

const (
	EmployeeActive    EmployeeStatus = "ACTIVE"
	EmployeeOnLeave   EmployeeStatus = "ON_LEAVE"
	EmployeeProbation EmployeeStatus = "PROBATION"
	EmployeeNotice    EmployeeStatus = "NOTICE"
	EmployeeExited    EmployeeStatus = "EXITED"
)

// Grade links an employee to a default salary band, independent of whichever
// notch they currently sit on (spec §4.C: "band(employee) resolves first via
// employee.grade.salary_band, then via employee.salary_notch.level.band").
type Grade struct {
	ID           string
	TenantID     string
	Code         string
	Name         string
	SalaryBandID *string
}

// EmploymentHistoryChangeType names the kinds of employment-history events
// the backpay engine's grade-resolution fallback chain inspects (spec §4.K:
// "newest EmploymentHistory change of type in {PROMOTION, GRADE_CHANGE,
// DEMOTION, HIRE} with effective_date <= P.start_date").
type EmploymentHistoryChangeType string

const (
	HistoryHire         EmploymentHistoryChangeType = "HIRE"
	HistoryPromotion    EmploymentHistoryChangeType = "PROMOTION"
	HistoryGradeChange  EmploymentHistoryChangeType = "GRADE_CHANGE"
	HistoryDemotion     EmploymentHistoryChangeType = "DEMOTION"
	HistoryTermination  EmploymentHistoryChangeType = "TERMINATION"
)

// EmploymentHistory is an append-only ledger of grade/status-affecting
// events. Only HIRE/PROMOTION/GRADE_CHANGE/DEMOTION rows participate in
// grade(P) resolution; TERMINATION exists for completeness (audit/reporting)
// but is never consulted there.
type EmploymentHistory struct {
	ID            string
	TenantID      string
	EmployeeID    string
	ChangeType    EmploymentHistoryChangeType
	GradeID       *string
	EffectiveDate time.Time
	CreatedAt     time.Time
}

// Employee carries the fields the payroll engine needs to resolve
// eligibility, proration bounds, and transaction-overlay targeting. It is
// deliberately minimal — HR profile data (name, contact, department) is out
// of scope for this module.
type Employee struct {
	ID         string
	TenantID   string
	GradeID    *string
	NotchID    *string // current SalaryNotch, used as the band(employee) fallback
	Status     EmployeeStatus
	IsResident bool

	DateOfJoining time.Time
	DateOfExit    *time.Time
}
