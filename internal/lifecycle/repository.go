package lifecycle

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the raw-pgx Store implementation, grounded on
// orchestrator.Repository's schema-qualified query style (same
// fmt.Sprintf-schema, pgx.ErrNoRows-as-nil-not-found convention).
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func (r *Repository) LoadRun(ctx context.Context, schemaName, tenantID, runID string) (*RunSummary, error) {
	query := fmt.Sprintf(`
		SELECT id, tenant_id, period_id, status, error_item_count
		FROM %s.payroll_runs
		WHERE tenant_id = $1 AND id = $2`, schemaName)

	var run RunSummary
	var status string
	err := r.db.QueryRow(ctx, query, tenantID, runID).Scan(&run.ID, &run.TenantID, &run.PeriodID, &status, &run.ErrorItemCount)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	run.Status = RunStatus(status)
	return &run, nil
}

func (r *Repository) LoadPeriod(ctx context.Context, schemaName, tenantID, periodID string) (*PeriodSummary, error) {
	query := fmt.Sprintf(`
		SELECT id, tenant_id, status
		FROM %s.payroll_periods
		WHERE tenant_id = $1 AND id = $2`, schemaName)

	var p PeriodSummary
	var status string
	err := r.db.QueryRow(ctx, query, tenantID, periodID).Scan(&p.ID, &p.TenantID, &status)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query period: %w", err)
	}
	p.Status = PeriodStatus(status)
	return &p, nil
}

func (r *Repository) RunsForPeriod(ctx context.Context, schemaName, tenantID, periodID string) ([]RunSummary, error) {
	query := fmt.Sprintf(`
		SELECT id, tenant_id, period_id, status, error_item_count
		FROM %s.payroll_runs
		WHERE tenant_id = $1 AND period_id = $2 AND status != 'DELETED'`, schemaName)

	rows, err := r.db.Query(ctx, query, tenantID, periodID)
	if err != nil {
		return nil, fmt.Errorf("query runs for period: %w", err)
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var run RunSummary
		var status string
		if err := rows.Scan(&run.ID, &run.TenantID, &run.PeriodID, &status, &run.ErrorItemCount); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		run.Status = RunStatus(status)
		out = append(out, run)
	}
	return out, rows.Err()
}

func (r *Repository) UpdateRunStatus(ctx context.Context, schemaName, runID string, status RunStatus) error {
	query := fmt.Sprintf(`UPDATE %s.payroll_runs SET status = $2, updated_at = now() WHERE id = $1`, schemaName)
	_, err := r.db.Exec(ctx, query, runID, string(status))
	return err
}

func (r *Repository) UpdatePeriodStatus(ctx context.Context, schemaName, periodID string, status PeriodStatus) error {
	query := fmt.Sprintf(`UPDATE %s.payroll_periods SET status = $2, updated_at = now() WHERE id = $1`, schemaName)
	_, err := r.db.Exec(ctx, query, periodID, string(status))
	return err
}

func (r *Repository) MarkItemsPaid(ctx context.Context, schemaName, runID, paymentReference string, paidAt time.Time) error {
	query := fmt.Sprintf(`
		UPDATE %s.payroll_items
		SET paid_at = $2, payment_reference = $3
		WHERE run_id = $1 AND status = 'OK'`, schemaName)
	_, err := r.db.Exec(ctx, query, runID, paidAt, paymentReference)
	return err
}

func (r *Repository) DeleteItems(ctx context.Context, schemaName, runID string) error {
	query := fmt.Sprintf(`DELETE FROM %s.payroll_items WHERE run_id = $1`, schemaName)
	_, err := r.db.Exec(ctx, query, runID)
	return err
}

func (r *Repository) ZeroRunTotals(ctx context.Context, schemaName, runID string) error {
	query := fmt.Sprintf(`
		UPDATE %s.payroll_runs
		SET total_gross = 0, total_deductions = 0, total_net = 0, total_employer_cost = 0,
		    total_paye = 0, total_overtime_tax = 0, total_bonus_tax = 0,
		    total_ssnit_employee = 0, total_ssnit_employer = 0, total_tier2_employer = 0,
		    total_employees = 0, error_item_count = 0, updated_at = now()
		WHERE id = $1`, schemaName)
	_, err := r.db.Exec(ctx, query, runID)
	return err
}

func (r *Repository) SoftDeleteRun(ctx context.Context, schemaName, runID string) error {
	query := fmt.Sprintf(`UPDATE %s.payroll_runs SET status = 'DELETED', deleted_at = now() WHERE id = $1`, schemaName)
	_, err := r.db.Exec(ctx, query, runID)
	return err
}

func (r *Repository) RecordAudit(ctx context.Context, schemaName, tenantID, action, entity, entityID, actorID string, metadata map[string]any) error {
	var detailsJSON []byte
	if metadata != nil {
		var err error
		detailsJSON, err = json.Marshal(metadata)
		if err != nil {
			return fmt.Errorf("marshal audit metadata: %w", err)
		}
	}

	query := fmt.Sprintf(`
		INSERT INTO %s.audit_logs (id, tenant_id, action, entity, entity_id, actor_id, details, created_at)
		VALUES (gen_random_uuid(), $1, $2, $3, $4, $5, $6, now())`, schemaName)
	_, err := r.db.Exec(ctx, query, tenantID, action, entity, entityID, actorID, detailsJSON)
	return err
}
