package backpay

import (
	"context"
	"fmt"
	"sort"
	"time"
)

// Detector implements the Retroactive Change Detector (spec §4.L): it
// surfaces candidates for operator review but never creates a BackpayRequest
// itself.
type Detector struct {
	store DetectorStore
}

func NewDetector(store DetectorStore) *Detector {
	return &Detector{store: store}
}

// Scan runs the sweep for one tenant, bounded to the window
// [active_period.start_date, active_period.end_date] so the same historical
// edit is never re-surfaced on a later sweep (SPEC_FULL.md §12.7).
func (d *Detector) Scan(ctx context.Context, schemaName, tenantID string) ([]Candidate, error) {
	active, err := d.store.ActivePeriod(ctx, schemaName, tenantID)
	if err != nil {
		return nil, fmt.Errorf("resolve active period: %w", err)
	}
	if active == nil {
		return nil, nil
	}

	closed, err := d.store.ClosedPeriods(ctx, schemaName, tenantID)
	if err != nil {
		return nil, fmt.Errorf("resolve closed periods: %w", err)
	}

	byEmployee := map[string]*Candidate{}
	var order []string

	addEvent := func(employeeID string, event ChangeEvent) {
		c, ok := byEmployee[employeeID]
		if !ok {
			c = &Candidate{EmployeeID: employeeID}
			byEmployee[employeeID] = c
			order = append(order, employeeID)
		}
		c.Events = append(c.Events, event)
		if !containsString(c.AffectedPeriods, event.AffectedPeriodID) {
			c.AffectedPeriods = append(c.AffectedPeriods, event.AffectedPeriodID)
		}
		if c.EarliestFrom.IsZero() || event.CreatedAt.Before(c.EarliestFrom) {
			c.EarliestFrom = event.CreatedAt
		}
		if event.CreatedAt.After(c.LatestTo) {
			c.LatestTo = event.CreatedAt
		}
	}

	for _, period := range closed {
		salaryHits, err := d.detectSalaryChanges(ctx, schemaName, tenantID, period, active.Start, active.End)
		if err != nil {
			return nil, err
		}
		for _, h := range salaryHits {
			covered, err := d.store.EmployeeHasNonCancelledRequest(ctx, schemaName, tenantID, h.EmployeeID)
			if err != nil {
				return nil, fmt.Errorf("check existing request: %w", err)
			}
			if covered {
				continue
			}
			addEvent(h.EmployeeID, ChangeEvent{
				ChangeType:       ChangeSalary,
				Description:      fmt.Sprintf("salary effective %s created %s, after period %s closed", h.EffectiveFrom.Format("2006-01-02"), h.CreatedAt.Format("2006-01-02"), period.ID),
				AffectedPeriodID: period.ID,
				CreatedAt:        h.CreatedAt,
			})
		}

		gradeHits, err := d.detectGradeChanges(ctx, schemaName, tenantID, period, active.Start, active.End)
		if err != nil {
			return nil, err
		}
		for _, h := range gradeHits {
			covered, err := d.store.EmployeeHasNonCancelledRequest(ctx, schemaName, tenantID, h.EmployeeID)
			if err != nil {
				return nil, fmt.Errorf("check existing request: %w", err)
			}
			if covered {
				continue
			}
			addEvent(h.EmployeeID, ChangeEvent{
				ChangeType:       ChangeGrade,
				Description:      fmt.Sprintf("%s effective %s created %s, after period %s closed", h.ChangeType, h.EffectiveDate.Format("2006-01-02"), h.CreatedAt.Format("2006-01-02"), period.ID),
				AffectedPeriodID: period.ID,
				CreatedAt:        h.CreatedAt,
			})
		}

		txHits, err := d.detectTransactionChanges(ctx, schemaName, tenantID, period, active.Start, active.End)
		if err != nil {
			return nil, err
		}
		for _, h := range txHits {
			covered, err := d.store.EmployeeHasNonCancelledRequest(ctx, schemaName, tenantID, h.EmployeeID)
			if err != nil {
				return nil, fmt.Errorf("check existing request: %w", err)
			}
			if covered {
				continue
			}
			addEvent(h.EmployeeID, ChangeEvent{
				ChangeType:       ChangeTransaction,
				Description:      fmt.Sprintf("transaction on %s effective %s created %s, after period %s closed", h.ComponentCode, h.EffectiveFrom.Format("2006-01-02"), h.CreatedAt.Format("2006-01-02"), period.ID),
				AffectedPeriodID: period.ID,
				CreatedAt:        h.CreatedAt,
			})
		}
	}

	var out []Candidate
	for _, employeeID := range order {
		c := byEmployee[employeeID]
		sort.Strings(c.AffectedPeriods)
		out = append(out, *c)
	}
	return out, nil
}

// detectSalaryChanges mirrors the Python source's _detect_salary_changes:
// a new EmployeeSalary with effective_from <= P.end_date but created_at
// falling within the active period's window.
func (d *Detector) detectSalaryChanges(ctx context.Context, schemaName, tenantID string, period PeriodRef, windowStart, windowEnd time.Time) ([]salaryChangeHit, error) {
	return d.store.BackdatedSalaryChanges(ctx, schemaName, tenantID, period, windowStart, windowEnd)
}

// detectGradeChanges mirrors _detect_grade_changes: EmploymentHistory rows
// with the same "created after period end, within window" predicate.
func (d *Detector) detectGradeChanges(ctx context.Context, schemaName, tenantID string, period PeriodRef, windowStart, windowEnd time.Time) ([]gradeChangeHit, error) {
	return d.store.BackdatedGradeChanges(ctx, schemaName, tenantID, period, windowStart, windowEnd)
}

// detectTransactionChanges mirrors _detect_transaction_changes: ACTIVE
// EmployeeTransaction rows created after the period closed.
func (d *Detector) detectTransactionChanges(ctx context.Context, schemaName, tenantID string, period PeriodRef, windowStart, windowEnd time.Time) ([]transactionChangeHit, error) {
	return d.store.BackdatedTransactionChanges(ctx, schemaName, tenantID, period, windowStart, windowEnd)
}

func containsString(xs []string, x string) bool {
	for _, v := range xs {
		if v == x {
			return true
		}
	}
	return false
}
