package compgraph

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/ekow-ghana/payroll-core/internal/payrollerr"
)

// IncrementScope names what a Salary Increment operation touches (spec §3).
type IncrementScope string

const (
	ScopeAll   IncrementScope = "ALL"
	ScopeBand  IncrementScope = "BAND"
	ScopeLevel IncrementScope = "LEVEL"
)

// Service implements the Compensation Graph's write paths (spec §4.B: writes
// happen only through upgrade/increment workflows or bulk import; both
// create new rows, never UPDATE historical amounts).
type Service struct {
	repo *Repository
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo}
}

// CurrentSalary resolves current_salary(employee, as_of) per spec §4.B.
func (s *Service) CurrentSalary(ctx context.Context, schemaName, tenantID, employeeID string, asOf time.Time) (*EmployeeSalary, error) {
	return s.repo.CurrentSalary(ctx, schemaName, tenantID, employeeID, asOf)
}

// SalaryComponents resolves salary_components(employee_salary) per spec
// §4.B.
func (s *Service) SalaryComponents(ctx context.Context, schemaName string, salary *EmployeeSalary) ([]EmployeeSalaryComponent, error) {
	if salary == nil {
		return nil, nil
	}
	return s.repo.SalaryComponents(ctx, schemaName, salary.ID)
}

// StructureComponents resolves structure_components(structure) per spec
// §4.B.
func (s *Service) StructureComponents(ctx context.Context, schemaName, structureID string) ([]SalaryStructureComponent, error) {
	if structureID == "" {
		return nil, nil
	}
	return s.repo.StructureComponents(ctx, schemaName, structureID)
}

// SetBaseSalary versions the employee's basic salary: closes the prior
// current row (EffectiveTo = effectiveFrom - 1 day) and inserts a new one.
// EmployeeSalary is immutable once superseded (spec §3) — this is the only
// write path, never an UPDATE of BasicSalary in place.
func (s *Service) SetBaseSalary(ctx context.Context, schemaName, tenantID, employeeID string, amount decimal.Decimal, structureID *string, effectiveFrom time.Time) (*EmployeeSalary, error) {
	if amount.IsNegative() {
		return nil, payrollerr.Validation("amount", "basic salary cannot be negative")
	}

	current, err := s.repo.CurrentSalary(ctx, schemaName, tenantID, employeeID, effectiveFrom)
	if err != nil {
		return nil, fmt.Errorf("resolve current salary: %w", err)
	}
	if current != nil && current.IsCurrent {
		if err := s.repo.CloseSalary(ctx, schemaName, current.ID, effectiveFrom); err != nil {
			return nil, fmt.Errorf("close prior salary: %w", err)
		}
	}

	next := EmployeeSalary{
		ID:                uuid.NewString(),
		TenantID:          tenantID,
		EmployeeID:        employeeID,
		BasicSalary:       amount,
		SalaryStructureID: structureID,
		EffectiveFrom:     effectiveFrom,
		IsCurrent:         true,
		CreatedAt:         effectiveFrom,
	}
	if err := s.repo.InsertSalary(ctx, schemaName, next); err != nil {
		return nil, fmt.Errorf("insert new salary: %w", err)
	}
	return &next, nil
}

// Increment atomically scales or shifts every notch within scope (all/band/
// level) and reports the min/max that must cascade upward to the owning
// Level/Band rows (spec §3: "cascade min/max upward"). The caller persists
// the returned notches and recomputed band/level ranges; this method is
// pure computation so it can be exercised without a database in tests.
type Increment struct {
	Scope      IncrementScope
	ScopeID    string // band or level id when Scope != ScopeAll
	PercentPct decimal.Decimal // e.g. 10 means +10%; used when ShiftAmount is zero
	ShiftAmount decimal.Decimal // flat shift applied instead of percentage when non-zero
}

// Apply computes the new notch amounts for the given notches (already
// filtered to the requested scope by the caller) and the resulting
// band/level min/max that must cascade upward.
func (s *Service) Apply(inc Increment, notches []SalaryNotch) (updated []SalaryNotch, newMin, newMax decimal.Decimal) {
	updated = make([]SalaryNotch, len(notches))
	for i, n := range notches {
		next := n
		if !inc.ShiftAmount.IsZero() {
			next.Amount = n.Amount.Add(inc.ShiftAmount)
		} else {
			factor := decimal.NewFromInt(100).Add(inc.PercentPct).Div(decimal.NewFromInt(100))
			next.Amount = n.Amount.Mul(factor).Round(2)
		}
		updated[i] = next
	}

	if len(updated) == 0 {
		return updated, decimal.Zero, decimal.Zero
	}
	newMin, newMax = updated[0].Amount, updated[0].Amount
	for _, n := range updated[1:] {
		if n.Amount.LessThan(newMin) {
			newMin = n.Amount
		}
		if n.Amount.GreaterThan(newMax) {
			newMax = n.Amount
		}
	}
	return updated, newMin, newMax
}
