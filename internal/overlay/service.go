package overlay

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ekow-ghana/payroll-core/internal/compgraph"
	"github.com/ekow-ghana/payroll-core/internal/decimalx"
	"github.com/ekow-ghana/payroll-core/internal/formula"
)

// Service implements applicable_transactions (spec §4.C) on top of
// Repository's SQL-level prefiltering.
type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// Period is the minimal period shape applicable_transactions needs.
type Period struct {
	ID    string
	Start time.Time
	End   time.Time
}

// Applicable returns the transactions satisfying every rule in spec §4.C
// for one employee against one period. Transactions are returned one per
// row, not summed; AccumulatedByComponent adds up same-component amounts
// (rule: "if multiple transactions apply [to the same
// employee+component], they are accumulated unless a later-version row
// exists for the same logical parent" — already guaranteed by the
// repository only returning is_current_version=true rows).
//
// coveredComponentIDs names pay components for which the employee already
// has a structural EmployeeSalaryComponent override — those are skipped
// per "structural components win over transaction overlays for the same
// component".
func (s *Service) Applicable(ctx context.Context, schemaName, tenantID string, employee compgraph.Employee, grade *compgraph.Grade, level *compgraph.SalaryLevel, period Period, coveredComponentIDs map[string]bool) ([]EmployeeTransaction, error) {
	candidates, err := s.repo.CandidatesForPeriod(ctx, schemaName, tenantID, period.Start, period.End)
	if err != nil {
		return nil, err
	}

	bandID := compgraph.ResolveBandID(grade, level)

	var out []EmployeeTransaction
	for _, t := range candidates {
		if coveredComponentIDs[t.PayComponentID] {
			continue
		}
		if !targetMatches(t, employee, bandID) {
			continue
		}
		if !(t.IsRecurring || (t.PayrollPeriodID != nil && *t.PayrollPeriodID == period.ID)) {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

func targetMatches(t EmployeeTransaction, employee compgraph.Employee, bandID *string) bool {
	switch t.TargetType {
	case TargetIndividual:
		return t.EmployeeID != nil && *t.EmployeeID == employee.ID
	case TargetGrade:
		return t.GradeID != nil && employee.GradeID != nil && *t.GradeID == *employee.GradeID
	case TargetBand:
		return t.BandID != nil && bandID != nil && *t.BandID == *bandID
	}
	return false
}

// AccumulatedByComponent sums CalculateAmount across every applicable
// transaction that targets the same pay component, implementing the
// "accumulated if multiple apply" rule of spec §4.C.
func AccumulatedByComponent(txs []EmployeeTransaction, basicSalary, grossSalary decimal.Decimal, componentsByID map[string]ComponentFlags, eval *formula.Evaluator) map[string]decimal.Decimal {
	totals := make(map[string]decimal.Decimal)
	for _, t := range txs {
		flags := componentsByID[t.PayComponentID]
		amount := t.CalculateAmount(basicSalary, grossSalary, flags, eval)
		totals[t.PayComponentID] = decimalx.Money(totals[t.PayComponentID].Add(amount))
	}
	return totals
}
