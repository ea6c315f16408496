package backpay

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ekow-ghana/payroll-core/internal/compgraph"
	"github.com/ekow-ghana/payroll-core/internal/decimalx"
	"github.com/ekow-ghana/payroll-core/internal/lifecycle"
	"github.com/ekow-ghana/payroll-core/internal/overlay"
	"github.com/ekow-ghana/payroll-core/internal/payrollcalc"
	"github.com/ekow-ghana/payroll-core/internal/ratebook"
)

// Repository is the raw-pgx Store/DetectorStore implementation, composing
// compgraph.Repository, overlay.Service and ratebook.Service rather than
// re-querying their tables directly — grounded on orchestrator.Repository's
// composition style.
type Repository struct {
	db        *pgxpool.Pool
	compgraph *compgraph.Repository
	overlay   *overlay.Service
	ratebook  *ratebook.Service
}

func NewRepository(db *pgxpool.Pool, compgraphRepo *compgraph.Repository, overlaySvc *overlay.Service, ratebookSvc *ratebook.Service) *Repository {
	return &Repository{db: db, compgraph: compgraphRepo, overlay: overlaySvc, ratebook: ratebookSvc}
}

func (r *Repository) PeriodsInRange(ctx context.Context, schemaName, tenantID string, from, to time.Time) ([]PeriodRef, error) {
	query := fmt.Sprintf(`
		SELECT id, tenant_id, start_date, end_date, status
		FROM %s.payroll_periods
		WHERE tenant_id = $1 AND status IN ('PAID','CLOSED') AND is_supplementary = false
		  AND start_date <= $3 AND end_date >= $2
		ORDER BY start_date ASC`, schemaName)

	rows, err := r.db.Query(ctx, query, tenantID, from, to)
	if err != nil {
		return nil, fmt.Errorf("query periods in range: %w", err)
	}
	defer rows.Close()

	var out []PeriodRef
	for rows.Next() {
		var p PeriodRef
		var status string
		if err := rows.Scan(&p.ID, new(string), &p.Start, &p.End, &status); err != nil {
			return nil, fmt.Errorf("scan period: %w", err)
		}
		p.Status = lifecycle.PeriodStatus(status)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) PeriodByID(ctx context.Context, schemaName, tenantID, periodID string) (*PeriodRef, error) {
	query := fmt.Sprintf(`
		SELECT id, start_date, end_date, status
		FROM %s.payroll_periods
		WHERE tenant_id = $1 AND id = $2`, schemaName)
	var p PeriodRef
	var status string
	err := r.db.QueryRow(ctx, query, tenantID, periodID).Scan(&p.ID, &p.Start, &p.End, &status)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query period: %w", err)
	}
	p.Status = lifecycle.PeriodStatus(status)
	return &p, nil
}

func (r *Repository) EmployeeSnapshot(ctx context.Context, schemaName, tenantID, employeeID string) (compgraph.Employee, error) {
	query := fmt.Sprintf(`
		SELECT id, tenant_id, grade_id, current_notch_id, status, is_resident, date_of_joining, date_of_exit
		FROM %s.employees
		WHERE tenant_id = $1 AND id = $2`, schemaName)

	var e compgraph.Employee
	var status string
	err := r.db.QueryRow(ctx, query, tenantID, employeeID).Scan(
		&e.ID, &e.TenantID, &e.GradeID, &e.NotchID, &status, &e.IsResident, &e.DateOfJoining, &e.DateOfExit)
	if err != nil {
		return compgraph.Employee{}, fmt.Errorf("query employee: %w", err)
	}
	e.Status = compgraph.EmployeeStatus(status)
	return e, nil
}

func (r *Repository) ApplicableSalaryAsOf(ctx context.Context, schemaName, tenantID, employeeID string, asOf time.Time) (*compgraph.EmployeeSalary, error) {
	salaries, err := r.compgraph.SalariesEffectiveOnOrBefore(ctx, schemaName, tenantID, employeeID, asOf)
	if err != nil {
		return nil, err
	}
	if len(salaries) == 0 {
		return nil, nil
	}
	return &salaries[0], nil
}

func (r *Repository) SalaryComponents(ctx context.Context, schemaName, employeeSalaryID string) ([]compgraph.EmployeeSalaryComponent, error) {
	return r.compgraph.SalaryComponents(ctx, schemaName, employeeSalaryID)
}

func (r *Repository) BasicComponent(ctx context.Context, schemaName, tenantID string) (compgraph.PayComponent, error) {
	c, err := r.compgraph.PayComponentByCode(ctx, schemaName, tenantID, compgraph.CodeBasic)
	if err != nil {
		return compgraph.PayComponent{}, err
	}
	if c == nil {
		return compgraph.PayComponent{}, fmt.Errorf("no BASIC pay component configured for tenant %s", tenantID)
	}
	return *c, nil
}

func (r *Repository) ComponentByID(ctx context.Context, schemaName, componentID string) (*compgraph.PayComponent, error) {
	query := fmt.Sprintf(`
		SELECT id, tenant_id, code, name, component_type, category, calc_kind,
		       default_amount, percentage, formula, is_taxable, reduces_taxable,
		       is_overtime, is_bonus, affects_ssnit, is_statutory, is_recurring,
		       is_prorated, is_arrears_applicable, show_on_payslip, display_order, is_active
		FROM %s.pay_components
		WHERE id = $1`, schemaName)

	var c compgraph.PayComponent
	err := r.db.QueryRow(ctx, query, componentID).Scan(
		&c.ID, &c.TenantID, &c.Code, &c.Name, &c.Type, &c.Category, &c.CalcKind,
		&c.DefaultAmount, &c.Percentage, &c.Formula, &c.IsTaxable, &c.ReducesTaxable,
		&c.IsOvertime, &c.IsBonus, &c.AffectsSSNIT, &c.IsStatutory, &c.IsRecurring,
		&c.IsProrated, &c.IsArrearsApplicable, &c.ShowOnPayslip, &c.DisplayOrder, &c.IsActive)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return &c, err
}

func (r *Repository) ArrearsApplicableComponents(ctx context.Context, schemaName, tenantID string) (map[string]compgraph.PayComponent, error) {
	query := fmt.Sprintf(`
		SELECT id, tenant_id, code, name, component_type, category, calc_kind,
		       default_amount, percentage, formula, is_taxable, reduces_taxable,
		       is_overtime, is_bonus, affects_ssnit, is_statutory, is_recurring,
		       is_prorated, is_arrears_applicable, show_on_payslip, display_order, is_active
		FROM %s.pay_components
		WHERE tenant_id = $1 AND is_arrears_applicable = true`, schemaName)

	rows, err := r.db.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("query arrears-applicable components: %w", err)
	}
	defer rows.Close()

	out := map[string]compgraph.PayComponent{}
	for rows.Next() {
		var c compgraph.PayComponent
		if err := rows.Scan(
			&c.ID, &c.TenantID, &c.Code, &c.Name, &c.Type, &c.Category, &c.CalcKind,
			&c.DefaultAmount, &c.Percentage, &c.Formula, &c.IsTaxable, &c.ReducesTaxable,
			&c.IsOvertime, &c.IsBonus, &c.AffectsSSNIT, &c.IsStatutory, &c.IsRecurring,
			&c.IsProrated, &c.IsArrearsApplicable, &c.ShowOnPayslip, &c.DisplayOrder, &c.IsActive); err != nil {
			return nil, fmt.Errorf("scan arrears-applicable component: %w", err)
		}
		out[c.Code] = c
	}
	return out, rows.Err()
}

// GradeForPeriod implements the 3-tier fallback of spec §4.K step 1:
// EmploymentHistory -> salary structure's grade -> employee's current grade.
func (r *Repository) GradeForPeriod(ctx context.Context, schemaName, tenantID, employeeID string, asOf time.Time, employee compgraph.Employee, salary *compgraph.EmployeeSalary) (*compgraph.Grade, error) {
	history, err := r.compgraph.GradeChangeOnOrBefore(ctx, schemaName, tenantID, employeeID, asOf)
	if err != nil {
		return nil, fmt.Errorf("resolve grade change history: %w", err)
	}
	if history != nil && history.GradeID != nil {
		return r.compgraph.GradeByID(ctx, schemaName, *history.GradeID)
	}

	if salary != nil && salary.SalaryStructureID != nil {
		structure, err := r.compgraph.SalaryStructureByID(ctx, schemaName, *salary.SalaryStructureID)
		if err != nil {
			return nil, fmt.Errorf("resolve salary structure: %w", err)
		}
		if structure != nil && structure.GradeID != "" {
			return r.compgraph.GradeByID(ctx, schemaName, structure.GradeID)
		}
	}

	if employee.GradeID != nil {
		return r.compgraph.GradeByID(ctx, schemaName, *employee.GradeID)
	}
	return nil, nil
}

func (r *Repository) LevelForNotch(ctx context.Context, schemaName string, notchID *string) (*compgraph.SalaryLevel, error) {
	if notchID == nil {
		return nil, nil
	}
	return r.compgraph.LevelByNotch(ctx, schemaName, *notchID)
}

func (r *Repository) ApplicableTransactions(ctx context.Context, schemaName, tenantID string, employee compgraph.Employee, grade *compgraph.Grade, level *compgraph.SalaryLevel, period overlay.Period, covered map[string]bool) ([]overlay.EmployeeTransaction, error) {
	return r.overlay.Applicable(ctx, schemaName, tenantID, employee, grade, level, period, covered)
}

func (r *Repository) RateBookAt(ctx context.Context, schemaName, tenantID string, asOf time.Time) (payrollcalc.RateBook, error) {
	active, err := r.ratebook.Active(ctx, schemaName, tenantID, asOf)
	if err != nil {
		return nil, err
	}
	return active, nil
}

func (r *Repository) PaidItem(ctx context.Context, schemaName, tenantID, periodID, employeeID string) (*PaidItem, error) {
	query := fmt.Sprintf(`
		SELECT i.id, i.run_id,
		       i.basic_salary, i.prorated_basic, i.proration_factor, i.days_payable, i.total_days,
		       i.gross_earnings, i.ssnit_employee, i.ssnit_employer_tier1, i.ssnit_employer_tier2,
		       i.tax_relief, i.taxable_income, i.paye, i.overtime_tax, i.bonus_tax,
		       i.total_deductions, i.net_salary, i.employer_cost, i.details
		FROM %s.payroll_items i
		JOIN %s.payroll_runs r ON r.id = i.run_id
		WHERE r.tenant_id = $1 AND r.period_id = $2 AND i.employee_id = $3 AND i.status = 'OK'
		ORDER BY r.updated_at DESC
		LIMIT 1`, schemaName, schemaName)

	var item PaidItem
	var res payrollcalc.Result
	var detailsJSON []byte
	err := r.db.QueryRow(ctx, query, tenantID, periodID, employeeID).Scan(
		&item.ItemID, &item.RunID,
		&res.BasicSalary, &res.ProratedBasic, &res.Factor, &res.DaysPayable, &res.TotalDays,
		&res.GrossEarnings, &res.SSNITEmployee, &res.SSNITEmployerTier1, &res.SSNITEmployerTier2,
		&res.TaxRelief, &res.TaxableIncome, &res.PAYE, &res.OvertimeTax, &res.BonusTax,
		&res.TotalDeductions, &res.NetSalary, &res.EmployerCost, &detailsJSON)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query paid item: %w", err)
	}
	if len(detailsJSON) > 0 {
		if err := json.Unmarshal(detailsJSON, &res.Details); err != nil {
			return nil, fmt.Errorf("unmarshal item details: %w", err)
		}
	}
	res.Status = payrollcalc.StatusOK
	item.Result = res
	return &item, nil
}

func (r *Repository) HasOverlappingApplied(ctx context.Context, schemaName, tenantID, employeeID string, from, to time.Time) (bool, error) {
	query := fmt.Sprintf(`
		SELECT count(*) FROM %s.backpay_requests
		WHERE tenant_id = $1 AND employee_id = $2 AND status = 'APPLIED'
		  AND from_date <= $4 AND to_date >= $3`, schemaName)

	var n int
	err := r.db.QueryRow(ctx, query, tenantID, employeeID, from, to).Scan(&n)
	return n > 0, err
}

func (r *Repository) InsertRequest(ctx context.Context, schemaName string, req Request) error {
	calcJSON, err := json.Marshal(req.Calculation)
	if err != nil {
		return fmt.Errorf("marshal calculation: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s.backpay_requests
			(id, tenant_id, employee_id, from_date, to_date, reason, reference_period_id,
			 new_salary, old_salary, status, calculation, created_by, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`, schemaName)

	_, err = r.db.Exec(ctx, query,
		req.ID, req.TenantID, req.EmployeeID, req.From, req.To, req.Reason, req.ReferencePeriodID,
		req.NewSalary, req.OldSalary, req.Status, calcJSON, req.CreatedBy, req.CreatedAt)
	return err
}

func (r *Repository) LoadRequest(ctx context.Context, schemaName, tenantID, requestID string) (*Request, error) {
	query := fmt.Sprintf(`
		SELECT id, tenant_id, employee_id, from_date, to_date, reason, reference_period_id,
		       new_salary, old_salary, status, calculation, applied_to_run_id, applied_at, created_by, created_at
		FROM %s.backpay_requests
		WHERE tenant_id = $1 AND id = $2`, schemaName)

	var req Request
	var status string
	var calcJSON []byte
	err := r.db.QueryRow(ctx, query, tenantID, requestID).Scan(
		&req.ID, &req.TenantID, &req.EmployeeID, &req.From, &req.To, &req.Reason, &req.ReferencePeriodID,
		&req.NewSalary, &req.OldSalary, &status, &calcJSON, &req.AppliedToRunID, &req.AppliedAt, &req.CreatedBy, &req.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query backpay request: %w", err)
	}
	req.Status = RequestStatus(status)
	if len(calcJSON) > 0 {
		if err := json.Unmarshal(calcJSON, &req.Calculation); err != nil {
			return nil, fmt.Errorf("unmarshal calculation: %w", err)
		}
	}
	return &req, nil
}

func (r *Repository) UpdateRequestStatus(ctx context.Context, schemaName, requestID string, status RequestStatus) error {
	query := fmt.Sprintf(`UPDATE %s.backpay_requests SET status = $2 WHERE id = $1`, schemaName)
	_, err := r.db.Exec(ctx, query, requestID, string(status))
	return err
}

func (r *Repository) ItemInRun(ctx context.Context, schemaName, runID, employeeID string) (*PaidItem, error) {
	query := fmt.Sprintf(`
		SELECT id, gross_earnings, total_deductions, net_salary, details
		FROM %s.payroll_items
		WHERE run_id = $1 AND employee_id = $2`, schemaName)

	var item PaidItem
	item.RunID = runID
	var res payrollcalc.Result
	var detailsJSON []byte
	err := r.db.QueryRow(ctx, query, runID, employeeID).Scan(&item.ItemID, &res.GrossEarnings, &res.TotalDeductions, &res.NetSalary, &detailsJSON)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query target item: %w", err)
	}
	if len(detailsJSON) > 0 {
		if err := json.Unmarshal(detailsJSON, &res.Details); err != nil {
			return nil, fmt.Errorf("unmarshal item details: %w", err)
		}
	}
	item.Result = res
	return &item, nil
}

// ApplyArrears writes one PayrollItemDetail row per ComponentTotal with
// is_arrear = true, then updates the Item's gross/deductions/net totals
// (spec §4.K apply_to_payroll). The rows carry no arrear-month count;
// payrollcalc.DetailRow has no field for one.
func (r *Repository) ApplyArrears(ctx context.Context, schemaName, runID, employeeID, requestID string, totals []ComponentTotal) error {
	item, err := r.ItemInRun(ctx, schemaName, runID, employeeID)
	if err != nil {
		return err
	}
	if item == nil {
		return fmt.Errorf("no payroll item for employee %s in run %s", employeeID, runID)
	}

	grossDelta, deductionsDelta := decimalx.Zero, decimalx.Zero
	newDetails := append([]payrollcalc.DetailRow{}, item.Result.Details...)
	for _, t := range totals {
		newDetails = append(newDetails, payrollcalc.DetailRow{
			ComponentCode: t.ComponentCode,
			Bucket:        t.Bucket,
			Amount:        t.TotalDiff,
			IsArrear:      true,
		})
		if t.Bucket == payrollcalc.BucketPreTaxDeduction || t.Bucket == payrollcalc.BucketOtherDeduction {
			deductionsDelta = deductionsDelta.Add(t.TotalDiff)
		} else if t.Bucket != payrollcalc.BucketEmployerContrib {
			grossDelta = grossDelta.Add(t.TotalDiff)
		}
	}

	detailsJSON, err := json.Marshal(newDetails)
	if err != nil {
		return fmt.Errorf("marshal updated details: %w", err)
	}

	newGross := item.Result.GrossEarnings.Add(grossDelta)
	newDeductions := item.Result.TotalDeductions.Add(deductionsDelta)
	newNet := newGross.Sub(newDeductions)

	query := fmt.Sprintf(`
		UPDATE %s.payroll_items
		SET gross_earnings = $2, total_deductions = $3, net_salary = $4, details = $5
		WHERE id = $1`, schemaName)
	_, err = r.db.Exec(ctx, query, item.ItemID, newGross, newDeductions, newNet, detailsJSON)
	if err != nil {
		return err
	}

	linkQuery := fmt.Sprintf(`
		INSERT INTO %s.backpay_applications (request_id, item_id, created_at)
		VALUES ($1, $2, now())`, schemaName)
	_, err = r.db.Exec(ctx, linkQuery, requestID, item.ItemID)
	return err
}

func (r *Repository) MarkApplied(ctx context.Context, schemaName, requestID, runID string, appliedAt time.Time) error {
	query := fmt.Sprintf(`
		UPDATE %s.backpay_requests
		SET status = 'APPLIED', applied_to_run_id = $2, applied_at = $3
		WHERE id = $1`, schemaName)
	_, err := r.db.Exec(ctx, query, requestID, runID, appliedAt)
	return err
}

func (r *Repository) ApprovedUnappliedForPeriod(ctx context.Context, schemaName, tenantID, periodID string) ([]Request, error) {
	query := fmt.Sprintf(`
		SELECT br.id
		FROM %s.backpay_requests br
		WHERE br.tenant_id = $1 AND br.status = 'APPROVED' AND br.applied_to_run_id IS NULL
		  AND EXISTS (
		    SELECT 1 FROM %s.payroll_periods p
		    WHERE p.id = $2 AND br.to_date >= p.start_date AND br.from_date <= p.end_date)`, schemaName, schemaName)

	rows, err := r.db.Query(ctx, query, tenantID, periodID)
	if err != nil {
		return nil, fmt.Errorf("query approved unapplied requests: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan request id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []Request
	for _, id := range ids {
		req, err := r.LoadRequest(ctx, schemaName, tenantID, id)
		if err != nil {
			return nil, err
		}
		if req != nil {
			out = append(out, *req)
		}
	}
	return out, nil
}

// ActivePeriod resolves the tenant's single OPEN period — the detector's
// sweep boundary (spec §4.L).
func (r *Repository) ActivePeriod(ctx context.Context, schemaName, tenantID string) (*PeriodRef, error) {
	query := fmt.Sprintf(`
		SELECT id, start_date, end_date, status
		FROM %s.payroll_periods
		WHERE tenant_id = $1 AND status = 'OPEN'
		ORDER BY start_date DESC
		LIMIT 1`, schemaName)

	var p PeriodRef
	var status string
	err := r.db.QueryRow(ctx, query, tenantID).Scan(&p.ID, &p.Start, &p.End, &status)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query active period: %w", err)
	}
	p.Status = lifecycle.PeriodStatus(status)
	return &p, nil
}

func (r *Repository) ClosedPeriods(ctx context.Context, schemaName, tenantID string) ([]PeriodRef, error) {
	query := fmt.Sprintf(`
		SELECT id, start_date, end_date, status
		FROM %s.payroll_periods
		WHERE tenant_id = $1 AND status IN ('PAID','CLOSED') AND is_supplementary = false
		ORDER BY start_date ASC`, schemaName)

	rows, err := r.db.Query(ctx, query, tenantID)
	if err != nil {
		return nil, fmt.Errorf("query closed periods: %w", err)
	}
	defer rows.Close()

	var out []PeriodRef
	for rows.Next() {
		var p PeriodRef
		var status string
		if err := rows.Scan(&p.ID, &p.Start, &p.End, &status); err != nil {
			return nil, fmt.Errorf("scan closed period: %w", err)
		}
		p.Status = lifecycle.PeriodStatus(status)
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) EmployeeHasNonCancelledRequest(ctx context.Context, schemaName, tenantID, employeeID string) (bool, error) {
	query := fmt.Sprintf(`
		SELECT count(*) FROM %s.backpay_requests
		WHERE tenant_id = $1 AND employee_id = $2 AND status != 'CANCELLED'`, schemaName)
	var n int
	err := r.db.QueryRow(ctx, query, tenantID, employeeID).Scan(&n)
	return n > 0, err
}

func (r *Repository) BackdatedSalaryChanges(ctx context.Context, schemaName, tenantID string, period PeriodRef, windowStart, windowEnd time.Time) ([]salaryChangeHit, error) {
	query := fmt.Sprintf(`
		SELECT employee_id, effective_from, created_at
		FROM %s.employee_salaries
		WHERE tenant_id = $1 AND effective_from <= $2
		  AND created_at > $2 AND created_at BETWEEN $3 AND $4`, schemaName)

	rows, err := r.db.Query(ctx, query, tenantID, period.End, windowStart, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("query backdated salary changes: %w", err)
	}
	defer rows.Close()

	var out []salaryChangeHit
	for rows.Next() {
		var h salaryChangeHit
		if err := rows.Scan(&h.EmployeeID, &h.EffectiveFrom, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan backdated salary change: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// BackdatedGradeChanges scans every employee's history in one query rather
// than delegating to compgraph.Repository.GradeChangesCreatedAfter, which is
// scoped to a single known employee_id — the detector has none to scope by.
func (r *Repository) BackdatedGradeChanges(ctx context.Context, schemaName, tenantID string, period PeriodRef, windowStart, windowEnd time.Time) ([]gradeChangeHit, error) {
	query := fmt.Sprintf(`
		SELECT employee_id, change_type, effective_date, created_at
		FROM %s.employment_history
		WHERE tenant_id = $1
		  AND effective_date <= $2
		  AND created_at > $2 AND created_at BETWEEN $3 AND $4`, schemaName)

	rows, err := r.db.Query(ctx, query, tenantID, period.End, windowStart, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("query backdated grade changes: %w", err)
	}
	defer rows.Close()

	var out []gradeChangeHit
	for rows.Next() {
		var h gradeChangeHit
		var changeType string
		if err := rows.Scan(&h.EmployeeID, &changeType, &h.EffectiveDate, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan backdated grade change: %w", err)
		}
		h.ChangeType = compgraph.EmploymentHistoryChangeType(changeType)
		out = append(out, h)
	}
	return out, rows.Err()
}

func (r *Repository) BackdatedTransactionChanges(ctx context.Context, schemaName, tenantID string, period PeriodRef, windowStart, windowEnd time.Time) ([]transactionChangeHit, error) {
	query := fmt.Sprintf(`
		SELECT t.employee_id, c.code, t.effective_from, t.created_at
		FROM %s.employee_transactions t
		JOIN %s.pay_components c ON c.id = t.pay_component_id
		WHERE t.tenant_id = $1 AND t.status = 'ACTIVE' AND t.is_current_version = true
		  AND t.effective_from <= $2
		  AND t.created_at > $2 AND t.created_at BETWEEN $3 AND $4`, schemaName, schemaName)

	rows, err := r.db.Query(ctx, query, tenantID, period.End, windowStart, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("query backdated transaction changes: %w", err)
	}
	defer rows.Close()

	var out []transactionChangeHit
	for rows.Next() {
		var h transactionChangeHit
		var employeeID *string
		if err := rows.Scan(&employeeID, &h.ComponentCode, &h.EffectiveFrom, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan backdated transaction change: %w", err)
		}
		if employeeID == nil {
			continue // grade/band-targeted transactions have no single employee
		}
		h.EmployeeID = *employeeID
		out = append(out, h)
	}
	return out, rows.Err()
}

