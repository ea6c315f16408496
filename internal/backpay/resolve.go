package backpay

import (
	"context"
	"fmt"
	"time"

	"github.com/ekow-ghana/payroll-core/internal/compgraph"
	"github.com/ekow-ghana/payroll-core/internal/overlay"
	"github.com/ekow-ghana/payroll-core/internal/payrollcalc"
)

// resolveFacts rebuilds a payrollcalc.Input "as it should have been" for one
// period, resolving every fact against asOf rather than the true current
// state (spec §4.K step 1). asOf is P.start_date, or the request's
// reference_period.start_date when an override is set (SPEC_FULL.md §12.1).
//
// Proration is recomputed fresh from the employee's actual join/exit dates
// rather than reusing a stored Item's factor even when one exists: the
// proration algorithm (internal/proration) is a pure, stable function of
// those dates and the period, so recomputing it reproduces the same factor
// the original Item carries.
func resolveFacts(ctx context.Context, store Store, schemaName, tenantID string, employee compgraph.Employee, period PeriodRef, asOf time.Time) (*payrollcalc.Input, bool, error) {
	salary, err := store.ApplicableSalaryAsOf(ctx, schemaName, tenantID, employee.ID, asOf)
	if err != nil {
		return nil, false, fmt.Errorf("resolve applicable salary: %w", err)
	}
	if salary == nil {
		// Employee was not yet employed as of asOf — nothing should have
		// been paid for this period.
		return nil, false, nil
	}

	basic, err := store.BasicComponent(ctx, schemaName, tenantID)
	if err != nil {
		return nil, false, fmt.Errorf("resolve basic component: %w", err)
	}

	salaryComponents, err := store.SalaryComponents(ctx, schemaName, salary.ID)
	if err != nil {
		return nil, false, fmt.Errorf("resolve salary components: %w", err)
	}

	componentsByID := map[string]compgraph.PayComponent{basic.ID: basic}
	covered := map[string]bool{basic.ID: true}
	for _, sc := range salaryComponents {
		covered[sc.PayComponentID] = true
		if _, ok := componentsByID[sc.PayComponentID]; ok {
			continue
		}
		c, err := store.ComponentByID(ctx, schemaName, sc.PayComponentID)
		if err != nil {
			return nil, false, fmt.Errorf("resolve salary component %s: %w", sc.PayComponentID, err)
		}
		if c != nil {
			componentsByID[c.ID] = *c
		}
	}

	grade, err := store.GradeForPeriod(ctx, schemaName, tenantID, employee.ID, asOf, employee, salary)
	if err != nil {
		return nil, false, fmt.Errorf("resolve grade(P): %w", err)
	}
	level, err := store.LevelForNotch(ctx, schemaName, employee.NotchID)
	if err != nil {
		return nil, false, fmt.Errorf("resolve level: %w", err)
	}

	transactions, err := store.ApplicableTransactions(ctx, schemaName, tenantID, employee, grade, level,
		overlay.Period{ID: period.ID, Start: period.Start, End: period.End}, covered)
	if err != nil {
		return nil, false, fmt.Errorf("resolve transactions(P): %w", err)
	}
	for _, t := range transactions {
		if _, ok := componentsByID[t.PayComponentID]; ok {
			continue
		}
		c, err := store.ComponentByID(ctx, schemaName, t.PayComponentID)
		if err != nil {
			return nil, false, fmt.Errorf("resolve transaction component %s: %w", t.PayComponentID, err)
		}
		if c != nil {
			componentsByID[c.ID] = *c
		}
	}

	rateBook, err := store.RateBookAt(ctx, schemaName, tenantID, asOf)
	if err != nil {
		return nil, false, fmt.Errorf("resolve rate book at %s: %w", asOf, err)
	}

	input := &payrollcalc.Input{
		Employee:               employee,
		Period:                 overlay.Period{ID: period.ID, Start: period.Start, End: period.End},
		CurrentSalary:          salary,
		BasicComponent:         basic,
		SalaryComponents:       salaryComponents,
		ComponentsByID:         componentsByID,
		ApplicableTransactions: transactions,
		Grade:                  grade,
		Level:                  level,
		Active:                 rateBook,
	}
	return input, true, nil
}
