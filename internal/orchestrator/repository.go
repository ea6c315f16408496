package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ekow-ghana/payroll-core/internal/compgraph"
	"github.com/ekow-ghana/payroll-core/internal/lifecycle"
	"github.com/ekow-ghana/payroll-core/internal/overlay"
	"github.com/ekow-ghana/payroll-core/internal/payrollcalc"
)

// Repository is the raw-pgx Store implementation, grounded on
// compgraph.Repository's schema-qualified query style.
type Repository struct {
	db        *pgxpool.Pool
	compgraph *compgraph.Repository
	overlay   *overlay.Service
}

func NewRepository(db *pgxpool.Pool, compgraphRepo *compgraph.Repository, overlaySvc *overlay.Service) *Repository {
	return &Repository{db: db, compgraph: compgraphRepo, overlay: overlaySvc}
}

func (r *Repository) gradeByID(ctx context.Context, schemaName, gradeID string) (*compgraph.Grade, error) {
	query := fmt.Sprintf(`SELECT id, tenant_id, code, name, salary_band_id FROM %s.grades WHERE id = $1`, schemaName)
	var g compgraph.Grade
	err := r.db.QueryRow(ctx, query, gradeID).Scan(&g.ID, &g.TenantID, &g.Code, &g.Name, &g.SalaryBandID)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return &g, err
}

func (r *Repository) levelByNotch(ctx context.Context, schemaName, notchID string) (*compgraph.SalaryLevel, error) {
	query := fmt.Sprintf(`
		SELECT l.id, l.tenant_id, l.band_id, l.code, l.name, l.min, l.max
		FROM %s.salary_levels l
		JOIN %s.salary_notches n ON n.level_id = l.id
		WHERE n.id = $1`, schemaName, schemaName)
	var lvl compgraph.SalaryLevel
	err := r.db.QueryRow(ctx, query, notchID).Scan(&lvl.ID, &lvl.TenantID, &lvl.BandID, &lvl.Code, &lvl.Name, &lvl.Min, &lvl.Max)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	return &lvl, err
}

func (r *Repository) approvedAdHocPayments(ctx context.Context, schemaName, employeeID, periodID string) ([]payrollcalc.AdHocPayment, error) {
	query := fmt.Sprintf(`
		SELECT id, employee_id, payroll_period_id, pay_component_id, amount, status
		FROM %s.ad_hoc_payments
		WHERE employee_id = $1 AND payroll_period_id = $2 AND status = 'APPROVED'`, schemaName)

	rows, err := r.db.Query(ctx, query, employeeID, periodID)
	if err != nil {
		return nil, fmt.Errorf("query ad hoc payments: %w", err)
	}
	defer rows.Close()

	var out []payrollcalc.AdHocPayment
	for rows.Next() {
		var p payrollcalc.AdHocPayment
		if err := rows.Scan(&p.ID, &p.EmployeeID, &p.PeriodID, &p.PayComponentID, &p.Amount, &p.Status); err != nil {
			return nil, fmt.Errorf("scan ad hoc payment: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repository) LoadRun(ctx context.Context, schemaName, tenantID, runID string) (*Run, error) {
	query := fmt.Sprintf(`
		SELECT id, tenant_id, period_id, status
		FROM %s.payroll_runs
		WHERE tenant_id = $1 AND id = $2`, schemaName)

	var run Run
	var status string
	err := r.db.QueryRow(ctx, query, tenantID, runID).Scan(&run.ID, &run.TenantID, &run.PeriodID, &status)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	run.Status = lifecycle.RunStatus(status)
	return &run, nil
}

func (r *Repository) LoadPeriod(ctx context.Context, schemaName, tenantID, periodID string) (*Period, error) {
	query := fmt.Sprintf(`
		SELECT id, tenant_id, start_date, end_date, status
		FROM %s.payroll_periods
		WHERE tenant_id = $1 AND id = $2`, schemaName)

	var p Period
	var status string
	err := r.db.QueryRow(ctx, query, tenantID, periodID).Scan(&p.ID, &p.TenantID, &p.Start, &p.End, &status)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query period: %w", err)
	}
	p.Status = lifecycle.PeriodStatus(status)
	return &p, nil
}

func (r *Repository) DeleteItems(ctx context.Context, schemaName, runID string) error {
	query := fmt.Sprintf(`DELETE FROM %s.payroll_items WHERE run_id = $1`, schemaName)
	_, err := r.db.Exec(ctx, query, runID)
	return err
}

func (r *Repository) UpdateRunStatus(ctx context.Context, schemaName, runID string, status lifecycle.RunStatus) error {
	query := fmt.Sprintf(`UPDATE %s.payroll_runs SET status = $2, updated_at = now() WHERE id = $1`, schemaName)
	_, err := r.db.Exec(ctx, query, runID, string(status))
	return err
}

func (r *Repository) UpdatePeriodStatus(ctx context.Context, schemaName, periodID string, status lifecycle.PeriodStatus) error {
	query := fmt.Sprintf(`UPDATE %s.payroll_periods SET status = $2, updated_at = now() WHERE id = $1`, schemaName)
	_, err := r.db.Exec(ctx, query, periodID, string(status))
	return err
}

// EligibleEmployees resolves spec §4.I step 5's eligibility predicate:
// status in {ACTIVE, ON_LEAVE, PROBATION, NOTICE} AND date_of_joining <=
// period.end_date.
func (r *Repository) EligibleEmployees(ctx context.Context, schemaName, tenantID string, periodEnd time.Time) ([]compgraph.Employee, error) {
	query := fmt.Sprintf(`
		SELECT id, tenant_id, grade_id, current_notch_id, status, is_resident, date_of_joining, date_of_exit
		FROM %s.employees
		WHERE tenant_id = $1
		  AND status IN ('ACTIVE','ON_LEAVE','PROBATION','NOTICE')
		  AND date_of_joining <= $2`, schemaName)

	rows, err := r.db.Query(ctx, query, tenantID, periodEnd)
	if err != nil {
		return nil, fmt.Errorf("query eligible employees: %w", err)
	}
	defer rows.Close()

	var out []compgraph.Employee
	for rows.Next() {
		var e compgraph.Employee
		var status string
		if err := rows.Scan(&e.ID, &e.TenantID, &e.GradeID, &e.NotchID, &status, &e.IsResident, &e.DateOfJoining, &e.DateOfExit); err != nil {
			return nil, fmt.Errorf("scan employee: %w", err)
		}
		e.Status = compgraph.EmployeeStatus(status)
		out = append(out, e)
	}
	return out, rows.Err()
}

// EmployeeContext resolves every piece of data payrollcalc.Input needs for
// one employee. It delegates the compensation-graph lookups to
// compgraph.Repository rather than re-querying those tables directly.
func (r *Repository) EmployeeContext(ctx context.Context, schemaName, tenantID, employeeID, periodID string, periodStart, periodEnd time.Time) (EmployeeContext, error) {
	salary, err := r.compgraph.CurrentSalary(ctx, schemaName, tenantID, employeeID, periodEnd)
	if err != nil {
		return EmployeeContext{}, fmt.Errorf("resolve current salary: %w", err)
	}

	basic, err := r.compgraph.PayComponentByCode(ctx, schemaName, tenantID, compgraph.CodeBasic)
	if err != nil {
		return EmployeeContext{}, fmt.Errorf("resolve basic component: %w", err)
	}
	if basic == nil {
		return EmployeeContext{}, fmt.Errorf("no BASIC pay component configured for tenant %s", tenantID)
	}

	var salaryComponents []compgraph.EmployeeSalaryComponent
	if salary != nil {
		salaryComponents, err = r.compgraph.SalaryComponents(ctx, schemaName, salary.ID)
		if err != nil {
			return EmployeeContext{}, fmt.Errorf("resolve salary components: %w", err)
		}
	}

	bank, err := r.primaryBankAccount(ctx, schemaName, employeeID)
	if err != nil {
		return EmployeeContext{}, fmt.Errorf("resolve bank account: %w", err)
	}

	componentsByID := map[string]compgraph.PayComponent{basic.ID: *basic}
	covered := map[string]bool{basic.ID: true}
	for _, sc := range salaryComponents {
		covered[sc.PayComponentID] = true
		if _, ok := componentsByID[sc.PayComponentID]; ok {
			continue
		}
		c, err := r.payComponentByID(ctx, schemaName, sc.PayComponentID)
		if err == nil && c != nil {
			componentsByID[c.ID] = *c
		}
	}

	adHoc, err := r.approvedAdHocPayments(ctx, schemaName, employeeID, periodID)
	if err != nil {
		return EmployeeContext{}, fmt.Errorf("resolve ad hoc payments: %w", err)
	}
	for _, p := range adHoc {
		if _, ok := componentsByID[p.PayComponentID]; ok {
			continue
		}
		c, err := r.payComponentByID(ctx, schemaName, p.PayComponentID)
		if err == nil && c != nil {
			componentsByID[c.ID] = *c
		}
	}

	var grade *compgraph.Grade
	employeeRecord, err := r.employeeByID(ctx, schemaName, tenantID, employeeID)
	if err != nil {
		return EmployeeContext{}, fmt.Errorf("resolve employee: %w", err)
	}
	if employeeRecord == nil {
		return EmployeeContext{}, fmt.Errorf("employee %s not found", employeeID)
	}
	if employeeRecord.GradeID != nil {
		grade, err = r.gradeByID(ctx, schemaName, *employeeRecord.GradeID)
		if err != nil {
			return EmployeeContext{}, fmt.Errorf("resolve grade: %w", err)
		}
	}

	var level *compgraph.SalaryLevel
	if employeeRecord.NotchID != nil {
		level, err = r.levelByNotch(ctx, schemaName, *employeeRecord.NotchID)
		if err != nil {
			return EmployeeContext{}, fmt.Errorf("resolve level: %w", err)
		}
	}

	var transactions []overlay.EmployeeTransaction
	if r.overlay != nil {
		transactions, err = r.overlay.Applicable(ctx, schemaName, tenantID, *employeeRecord, grade, level,
			overlay.Period{ID: periodID, Start: periodStart, End: periodEnd}, covered)
		if err != nil {
			return EmployeeContext{}, fmt.Errorf("resolve applicable transactions: %w", err)
		}
		for _, t := range transactions {
			if _, ok := componentsByID[t.PayComponentID]; ok {
				continue
			}
			c, err := r.payComponentByID(ctx, schemaName, t.PayComponentID)
			if err == nil && c != nil {
				componentsByID[c.ID] = *c
			}
		}
	}

	return EmployeeContext{
		Employee:               *employeeRecord,
		CurrentSalary:          salary,
		BasicComponent:         *basic,
		SalaryComponents:       salaryComponents,
		ComponentsByID:         componentsByID,
		AdHocPayments:          adHoc,
		ApplicableTransactions: transactions,
		Grade:                  grade,
		Level:                  level,
		Bank:                   bank,
	}, nil
}

func (r *Repository) employeeByID(ctx context.Context, schemaName, tenantID, employeeID string) (*compgraph.Employee, error) {
	query := fmt.Sprintf(`
		SELECT id, tenant_id, grade_id, current_notch_id, status, is_resident, date_of_joining, date_of_exit
		FROM %s.employees
		WHERE tenant_id = $1 AND id = $2`, schemaName)

	var e compgraph.Employee
	var status string
	err := r.db.QueryRow(ctx, query, tenantID, employeeID).Scan(
		&e.ID, &e.TenantID, &e.GradeID, &e.NotchID, &status, &e.IsResident, &e.DateOfJoining, &e.DateOfExit)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	e.Status = compgraph.EmployeeStatus(status)
	return &e, nil
}

func (r *Repository) primaryBankAccount(ctx context.Context, schemaName, employeeID string) (BankSnapshot, error) {
	query := fmt.Sprintf(`
		SELECT account_name, account_number, branch
		FROM %s.employee_bank_accounts
		WHERE employee_id = $1 AND is_primary = true AND is_active = true
		LIMIT 1`, schemaName)

	var snap BankSnapshot
	err := r.db.QueryRow(ctx, query, employeeID).Scan(&snap.AccountName, &snap.AccountNumber, &snap.Branch)
	if err == pgx.ErrNoRows {
		return BankSnapshot{}, nil
	}
	if err != nil {
		return BankSnapshot{}, err
	}
	return snap, nil
}

func (r *Repository) payComponentByID(ctx context.Context, schemaName, componentID string) (*compgraph.PayComponent, error) {
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

func (r *Repository) InsertItem(ctx context.Context, schemaName string, item Item) error {
	detailsJSON, err := json.Marshal(item.Result.Details)
	if err != nil {
		return fmt.Errorf("marshal item details: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s.payroll_items
			(id, run_id, employee_id, status, error_message,
			 basic_salary, prorated_basic, proration_factor, days_payable, total_days,
			 gross_earnings, ssnit_employee, ssnit_employer_tier1, ssnit_employer_tier2,
			 tax_relief, taxable_income, paye, overtime_tax, bonus_tax,
			 total_deductions, net_salary, employer_cost, details,
			 bank_account_name, bank_account_number, bank_branch)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26)`, schemaName)

	res := item.Result
	_, err = r.db.Exec(ctx, query,
		item.ID, item.RunID, item.EmployeeID, item.Status, item.Error,
		res.BasicSalary, res.ProratedBasic, res.Factor, res.DaysPayable, res.TotalDays,
		res.GrossEarnings, res.SSNITEmployee, res.SSNITEmployerTier1, res.SSNITEmployerTier2,
		res.TaxRelief, res.TaxableIncome, res.PAYE, res.OvertimeTax, res.BonusTax,
		res.TotalDeductions, res.NetSalary, res.EmployerCost, detailsJSON,
		item.BankAccountName, item.BankAccountNumber, item.BankBranch)
	return err
}

func (r *Repository) UpdateRunTotals(ctx context.Context, schemaName, runID string, run Run) error {
	query := fmt.Sprintf(`
		UPDATE %s.payroll_runs
		SET total_gross = $2, total_deductions = $3, total_net = $4, total_employer_cost = $5,
		    total_paye = $6, total_overtime_tax = $7, total_bonus_tax = $8,
		    total_ssnit_employee = $9, total_ssnit_employer = $10, total_tier2_employer = $11,
		    total_employees = $12, error_item_count = $13, updated_at = now()
		WHERE id = $1`, schemaName)

	_, err := r.db.Exec(ctx, query, runID,
		run.TotalGross, run.TotalDeductions, run.TotalNet, run.TotalEmployerCost,
		run.TotalPAYE, run.TotalOvertimeTax, run.TotalBonusTax,
		run.TotalSSNITEmployee, run.TotalSSNITEmployer, run.TotalTier2Employer,
		run.TotalEmployees, run.ErrorItemCount)
	return err
}

func (r *Repository) RecordAudit(ctx context.Context, schemaName, tenantID, action, entity, entityID, actorID string) error {
	query := fmt.Sprintf(`
		INSERT INTO %s.audit_logs (id, tenant_id, action, entity, entity_id, actor_id, created_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, now())`, schemaName)
	_, err := r.db.Exec(ctx, query, tenantID, action, entity, entityID, actorID)
	return err
}
