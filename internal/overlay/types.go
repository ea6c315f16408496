// Package overlay implements the Transaction Overlay (spec §4.C): dated,
// versioned employee/grade/band transactions that add or replace a pay
// component's value for one run or recurring.
package overlay

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ekow-ghana/payroll-core/internal/decimalx"
	"github.com/ekow-ghana/payroll-core/internal/formula"
)

// TargetType names which entity a transaction applies to.
type TargetType string

const (
	TargetIndividual TargetType = "INDIVIDUAL"
	TargetGrade      TargetType = "GRADE"
	TargetBand       TargetType = "BAND"
)

// OverrideType names how the transaction's amount is derived.
type OverrideType string

const (
	OverrideNone       OverrideType = "NONE"
	OverrideFixed      OverrideType = "FIXED"
	OverridePercentage OverrideType = "PCT"
	OverrideFormula    OverrideType = "FORMULA"
)

// Status is the transaction's approval/lifecycle status.
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusApproved  Status = "APPROVED"
	StatusActive    Status = "ACTIVE"
	StatusSuspended Status = "SUSPENDED"
	StatusCompleted Status = "COMPLETED"
	StatusCancelled Status = "CANCELLED"
)

// EmployeeTransaction is one versioned overlay row. Version-on-update: a
// change to EffectiveFrom or value fields closes the current row
// (EffectiveTo = new.EffectiveFrom - 1 day, IsCurrentVersion = false) and
// writes a new row with Version = old.Version + 1 (spec §3). Only the
// current version participates in computation.
type EmployeeTransaction struct {
	ID             string
	TenantID       string
	ReferenceNumber string

	TargetType TargetType
	EmployeeID *string
	GradeID    *string
	BandID     *string

	PayComponentID string

	OverrideType       OverrideType
	OverrideAmount     decimal.Decimal
	OverridePercentage decimal.Decimal
	Formula            string

	IsRecurring     bool
	EffectiveFrom   time.Time
	EffectiveTo     *time.Time
	PayrollPeriodID *string // set for one-shots bound to a specific period

	Status           Status
	IsCurrentVersion bool
	Version          int
}

// ComponentFlags carries only the pay-component fields CalculateAmount
// needs, so CalculateAmount takes these flags rather than a
// compgraph.PayComponent.
type ComponentFlags struct {
	CalcKind   string
	Percentage decimal.Decimal
	DefaultAmt decimal.Decimal
	Formula    string
}

// CalculateAmount resolves the transaction's contribution, mirroring
// EmployeeTransaction.calculate_amount in the original source exactly:
// dispatch on OverrideType first (percentage is of BASIC, not gross, per
// the source's actual behaviour despite the grossSalary parameter name);
// fall through to the component's own calculation kind only when
// OverrideType is NONE.
func (t EmployeeTransaction) CalculateAmount(basicSalary, grossSalary decimal.Decimal, component ComponentFlags, eval *formula.Evaluator) decimal.Decimal {
	hundred := decimalHundred

	switch t.OverrideType {
	case OverrideFixed:
		return decimalx.Money(t.OverrideAmount)
	case OverridePercentage:
		return decimalx.Money(basicSalary.Mul(t.OverridePercentage).Div(hundred))
	case OverrideFormula:
		if t.Formula == "" {
			return decimalx.Zero
		}
		result, err := eval.Evaluate(t.Formula, formula.Binding{Basic: basicSalary, Gross: grossSalary})
		if err != nil {
			return decimalx.Zero
		}
		return decimalx.Money(result)
	}

	switch component.CalcKind {
	case "FIXED":
		return decimalx.Money(component.DefaultAmt)
	case "PCT_OF_BASIC":
		return decimalx.Money(basicSalary.Mul(component.Percentage).Div(hundred))
	case "PCT_OF_GROSS":
		return decimalx.Money(grossSalary.Mul(component.Percentage).Div(hundred))
	case "FORMULA":
		if component.Formula == "" {
			return decimalx.Zero
		}
		result, err := eval.Evaluate(component.Formula, formula.Binding{Basic: basicSalary, Gross: grossSalary})
		if err != nil {
			return decimalx.Zero
		}
		return decimalx.Money(result)
	default:
		return decimalx.Zero
	}
}

var decimalHundred = decimal.NewFromInt(100)
