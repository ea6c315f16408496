package overlay

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the raw-pgx, schema-per-tenant store for transaction
// overlay rows, grounded on compgraph.Repository's query style.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func scanTransaction(row interface {
	Scan(dest ...any) error
}) (EmployeeTransaction, error) {
	var t EmployeeTransaction
	err := row.Scan(
		&t.ID, &t.TenantID, &t.ReferenceNumber, &t.TargetType, &t.EmployeeID, &t.GradeID, &t.BandID,
		&t.PayComponentID, &t.OverrideType, &t.OverrideAmount, &t.OverridePercentage, &t.Formula,
		&t.IsRecurring, &t.EffectiveFrom, &t.EffectiveTo, &t.PayrollPeriodID,
		&t.Status, &t.IsCurrentVersion, &t.Version)
	return t, err
}

// CandidatesForPeriod returns every current-version, ACTIVE transaction
// whose window could possibly overlap the period — rules 1, 3 and 4 of
// spec §4.C pushed into SQL; rules 2 (target match) and 5 (recurrence vs.
// period binding) are evaluated in Go by Service.Applicable since they
// depend on employee/grade/band resolution the repository doesn't own.
func (r *Repository) CandidatesForPeriod(ctx context.Context, schemaName, tenantID string, periodStart, periodEnd time.Time) ([]EmployeeTransaction, error) {
	query := fmt.Sprintf(`
		SELECT id, tenant_id, reference_number, target_type, employee_id, grade_id, band_id,
		       pay_component_id, override_type, override_amount, override_percentage, formula,
		       is_recurring, effective_from, effective_to, payroll_period_id,
		       status, is_current_version, version
		FROM %s.employee_transactions
		WHERE tenant_id = $1
		  AND is_current_version = true
		  AND status = 'ACTIVE'
		  AND effective_from <= $2
		  AND (effective_to IS NULL OR effective_to >= $3)`, schemaName)

	rows, err := r.db.Query(ctx, query, tenantID, periodEnd, periodStart)
	if err != nil {
		return nil, fmt.Errorf("query transaction candidates: %w", err)
	}
	defer rows.Close()

	var out []EmployeeTransaction
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// CloseTransaction implements version-on-update (spec §3): the current row
// is closed and superseded by a caller-inserted new version.
func (r *Repository) CloseTransaction(ctx context.Context, schemaName, transactionID string, newEffectiveFrom time.Time) error {
	query := fmt.Sprintf(`
		UPDATE %s.employee_transactions
		SET effective_to = $2, is_current_version = false
		WHERE id = $1`, schemaName)
	_, err := r.db.Exec(ctx, query, transactionID, newEffectiveFrom.AddDate(0, 0, -1))
	return err
}

// Insert writes a new (or newly-versioned) transaction row.
func (r *Repository) Insert(ctx context.Context, schemaName string, t EmployeeTransaction) error {
	query := fmt.Sprintf(`
		INSERT INTO %s.employee_transactions
			(id, tenant_id, reference_number, target_type, employee_id, grade_id, band_id,
			 pay_component_id, override_type, override_amount, override_percentage, formula,
			 is_recurring, effective_from, effective_to, payroll_period_id,
			 status, is_current_version, version)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19)`, schemaName)
	_, err := r.db.Exec(ctx, query,
		t.ID, t.TenantID, t.ReferenceNumber, t.TargetType, t.EmployeeID, t.GradeID, t.BandID,
		t.PayComponentID, t.OverrideType, t.OverrideAmount, t.OverridePercentage, t.Formula,
		t.IsRecurring, t.EffectiveFrom, t.EffectiveTo, t.PayrollPeriodID,
		t.Status, t.IsCurrentVersion, t.Version)
	return err
}
