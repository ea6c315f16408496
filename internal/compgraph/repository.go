package compgraph

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the raw-pgx, schema-per-tenant store for the compensation
// graph, grounded on internal/payroll/service.go's query style in the
// teacher repo.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// CurrentSalary returns the EmployeeSalary row whose EffectiveFrom <= asOf
// with the maximum EffectiveFrom (spec §4.B).
func (r *Repository) CurrentSalary(ctx context.Context, schemaName, tenantID, employeeID string, asOf time.Time) (*EmployeeSalary, error) {
	query := fmt.Sprintf(`
		SELECT id, tenant_id, employee_id, basic_salary, salary_structure_id,
		       effective_from, effective_to, is_current, created_at
		FROM %s.employee_salaries
		WHERE tenant_id = $1 AND employee_id = $2 AND effective_from <= $3
		ORDER BY effective_from DESC
		LIMIT 1`, schemaName)

	var s EmployeeSalary
	err := r.db.QueryRow(ctx, query, tenantID, employeeID, asOf).Scan(
		&s.ID, &s.TenantID, &s.EmployeeID, &s.BasicSalary, &s.SalaryStructureID,
		&s.EffectiveFrom, &s.EffectiveTo, &s.IsCurrent, &s.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query current salary: %w", err)
	}
	return &s, nil
}

// SalaryComponents returns active EmployeeSalaryComponent rows for one
// EmployeeSalary version.
func (r *Repository) SalaryComponents(ctx context.Context, schemaName, employeeSalaryID string) ([]EmployeeSalaryComponent, error) {
	query := fmt.Sprintf(`
		SELECT id, tenant_id, employee_salary_id, pay_component_id, amount, is_active
		FROM %s.employee_salary_components
		WHERE employee_salary_id = $1 AND is_active = true`, schemaName)

	rows, err := r.db.Query(ctx, query, employeeSalaryID)
	if err != nil {
		return nil, fmt.Errorf("query salary components: %w", err)
	}
	defer rows.Close()

	var out []EmployeeSalaryComponent
	for rows.Next() {
		var c EmployeeSalaryComponent
		if err := rows.Scan(&c.ID, &c.TenantID, &c.EmployeeSalaryID, &c.PayComponentID, &c.Amount, &c.IsActive); err != nil {
			return nil, fmt.Errorf("scan salary component: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// StructureComponents returns active SalaryStructureComponent rows for a
// structure.
func (r *Repository) StructureComponents(ctx context.Context, schemaName, structureID string) ([]SalaryStructureComponent, error) {
	query := fmt.Sprintf(`
		SELECT id, tenant_id, salary_structure_id, pay_component_id, amount, is_active
		FROM %s.salary_structure_components
		WHERE salary_structure_id = $1 AND is_active = true`, schemaName)

	rows, err := r.db.Query(ctx, query, structureID)
	if err != nil {
		return nil, fmt.Errorf("query structure components: %w", err)
	}
	defer rows.Close()

	var out []SalaryStructureComponent
	for rows.Next() {
		var c SalaryStructureComponent
		if err := rows.Scan(&c.ID, &c.TenantID, &c.SalaryStructureID, &c.PayComponentID, &c.Amount, &c.IsActive); err != nil {
			return nil, fmt.Errorf("scan structure component: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CloseSalary ends a salary version (EffectiveTo = newEffectiveFrom - 1 day,
// IsCurrent = false) — the versioned-row pattern of spec §3.
func (r *Repository) CloseSalary(ctx context.Context, schemaName, salaryID string, newEffectiveFrom time.Time) error {
	query := fmt.Sprintf(`
		UPDATE %s.employee_salaries
		SET effective_to = $2, is_current = false
		WHERE id = $1`, schemaName)
	_, err := r.db.Exec(ctx, query, salaryID, newEffectiveFrom.AddDate(0, 0, -1))
	return err
}

// InsertSalary writes a new EmployeeSalary version.
func (r *Repository) InsertSalary(ctx context.Context, schemaName string, s EmployeeSalary) error {
	query := fmt.Sprintf(`
		INSERT INTO %s.employee_salaries
			(id, tenant_id, employee_id, basic_salary, salary_structure_id,
			 effective_from, effective_to, is_current, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`, schemaName)
	_, err := r.db.Exec(ctx, query, s.ID, s.TenantID, s.EmployeeID, s.BasicSalary, s.SalaryStructureID,
		s.EffectiveFrom, s.EffectiveTo, s.IsCurrent, s.CreatedAt)
	return err
}

// SalariesEffectiveOnOrBefore returns every salary version with
// EffectiveFrom <= lookupDate, newest first — used by the backpay engine to
// resolve "the salary that was applicable as of a historical period".
func (r *Repository) SalariesEffectiveOnOrBefore(ctx context.Context, schemaName, tenantID, employeeID string, lookupDate time.Time) ([]EmployeeSalary, error) {
	query := fmt.Sprintf(`
		SELECT id, tenant_id, employee_id, basic_salary, salary_structure_id,
		       effective_from, effective_to, is_current, created_at
		FROM %s.employee_salaries
		WHERE tenant_id = $1 AND employee_id = $2 AND effective_from <= $3
		ORDER BY effective_from DESC`, schemaName)

	rows, err := r.db.Query(ctx, query, tenantID, employeeID, lookupDate)
	if err != nil {
		return nil, fmt.Errorf("query historical salaries: %w", err)
	}
	defer rows.Close()

	var out []EmployeeSalary
	for rows.Next() {
		var s EmployeeSalary
		if err := rows.Scan(&s.ID, &s.TenantID, &s.EmployeeID, &s.BasicSalary, &s.SalaryStructureID,
			&s.EffectiveFrom, &s.EffectiveTo, &s.IsCurrent, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan historical salary: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}

// GradeChangeOnOrBefore returns the newest EmploymentHistory row of type
// HIRE/PROMOTION/GRADE_CHANGE/DEMOTION with EffectiveDate <= asOf — the
// first tier of the backpay engine's grade(P) fallback chain (spec §4.K).
func (r *Repository) GradeChangeOnOrBefore(ctx context.Context, schemaName, tenantID, employeeID string, asOf time.Time) (*EmploymentHistory, error) {
	query := fmt.Sprintf(`
		SELECT id, tenant_id, employee_id, change_type, grade_id, effective_date, created_at
		FROM %s.employment_history
		WHERE tenant_id = $1 AND employee_id = $2 AND effective_date <= $3
		  AND change_type IN ('HIRE','PROMOTION','GRADE_CHANGE','DEMOTION')
		ORDER BY effective_date DESC, created_at DESC
		LIMIT 1`, schemaName)

	var h EmploymentHistory
	err := r.db.QueryRow(ctx, query, tenantID, employeeID, asOf).Scan(
		&h.ID, &h.TenantID, &h.EmployeeID, &h.ChangeType, &h.GradeID, &h.EffectiveDate, &h.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query grade change history: %w", err)
	}
	return &h, nil
}

// GradeChangesCreatedAfter supports the Retroactive Change Detector (spec
// §4.L): rows whose EffectiveDate <= periodEnd but CreatedAt falls within
// the active-period detection window — i.e. backdated edits.
func (r *Repository) GradeChangesCreatedAfter(ctx context.Context, schemaName, tenantID, employeeID string, periodEnd, windowStart, windowEnd time.Time) ([]EmploymentHistory, error) {
	query := fmt.Sprintf(`
		SELECT id, tenant_id, employee_id, change_type, grade_id, effective_date, created_at
		FROM %s.employment_history
		WHERE tenant_id = $1 AND employee_id = $2
		  AND effective_date <= $3
		  AND created_at > $3
		  AND created_at BETWEEN $4 AND $5
		ORDER BY effective_date DESC`, schemaName)

	rows, err := r.db.Query(ctx, query, tenantID, employeeID, periodEnd, windowStart, windowEnd)
	if err != nil {
		return nil, fmt.Errorf("query backdated grade changes: %w", err)
	}
	defer rows.Close()

	var out []EmploymentHistory
	for rows.Next() {
		var h EmploymentHistory
		if err := rows.Scan(&h.ID, &h.TenantID, &h.EmployeeID, &h.ChangeType, &h.GradeID, &h.EffectiveDate, &h.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan backdated grade change: %w", err)
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

// GradeByID resolves a Grade by ID — needed standalone (not only via
// Employee.GradeID) by the backpay engine's grade(P) fallback chain.
func (r *Repository) GradeByID(ctx context.Context, schemaName, gradeID string) (*Grade, error) {
	query := fmt.Sprintf(`SELECT id, tenant_id, code, name, salary_band_id FROM %s.grades WHERE id = $1`, schemaName)
	var g Grade
	err := r.db.QueryRow(ctx, query, gradeID).Scan(&g.ID, &g.TenantID, &g.Code, &g.Name, &g.SalaryBandID)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query grade: %w", err)
	}
	return &g, nil
}

// SalaryStructureByID resolves a SalaryStructure — the second tier of the
// backpay engine's grade(P) fallback chain ("fallback to
// applicable_salary.structure.grade").
func (r *Repository) SalaryStructureByID(ctx context.Context, schemaName, structureID string) (*SalaryStructure, error) {
	query := fmt.Sprintf(`SELECT id, tenant_id, name, grade_id FROM %s.salary_structures WHERE id = $1`, schemaName)
	var s SalaryStructure
	err := r.db.QueryRow(ctx, query, structureID).Scan(&s.ID, &s.TenantID, &s.Name, &s.GradeID)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query salary structure: %w", err)
	}
	return &s, nil
}

// LevelByNotch resolves the SalaryLevel a notch belongs to — used by band(P)
// resolution when a grade carries no salary_band_id directly.
func (r *Repository) LevelByNotch(ctx context.Context, schemaName, notchID string) (*SalaryLevel, error) {
	query := fmt.Sprintf(`
		SELECT l.id, l.tenant_id, l.band_id, l.code, l.name, l.min, l.max
		FROM %s.salary_levels l
		JOIN %s.salary_notches n ON n.level_id = l.id
		WHERE n.id = $1`, schemaName, schemaName)
	var lvl SalaryLevel
	err := r.db.QueryRow(ctx, query, notchID).Scan(&lvl.ID, &lvl.TenantID, &lvl.BandID, &lvl.Code, &lvl.Name, &lvl.Min, &lvl.Max)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query salary level by notch: %w", err)
	}
	return &lvl, nil
}

// PayComponentByCode resolves one component by its tenant-unique code.
func (r *Repository) PayComponentByCode(ctx context.Context, schemaName, tenantID, code string) (*PayComponent, error) {
	query := fmt.Sprintf(`
		SELECT id, tenant_id, code, name, component_type, category, calc_kind,
		       default_amount, percentage, formula, is_taxable, reduces_taxable,
		       is_overtime, is_bonus, affects_ssnit, is_statutory, is_recurring,
		       is_prorated, is_arrears_applicable, show_on_payslip, display_order, is_active
		FROM %s.pay_components
		WHERE tenant_id = $1 AND code = $2 AND is_active = true`, schemaName)

	var c PayComponent
	err := r.db.QueryRow(ctx, query, tenantID, code).Scan(
		&c.ID, &c.TenantID, &c.Code, &c.Name, &c.Type, &c.Category, &c.CalcKind,
		&c.DefaultAmount, &c.Percentage, &c.Formula, &c.IsTaxable, &c.ReducesTaxable,
		&c.IsOvertime, &c.IsBonus, &c.AffectsSSNIT, &c.IsStatutory, &c.IsRecurring,
		&c.IsProrated, &c.IsArrearsApplicable, &c.ShowOnPayslip, &c.DisplayOrder, &c.IsActive)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query pay component %s: %w", code, err)
	}
	return &c, nil
}
