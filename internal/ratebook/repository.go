package ratebook

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Repository is the raw-pgx, schema-per-tenant store for the rate book
// tables, grounded on internal/payroll/service.go's query style in the
// teacher repo (fmt.Sprintf schema qualification, $1.. placeholders,
// pgx.ErrNoRows translated to a domain error by the caller).
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// TaxBracketsActiveAt returns brackets active at asOf, ordered by Order then
// Min, per spec §4.A.
func (r *Repository) TaxBracketsActiveAt(ctx context.Context, schemaName, tenantID string, asOf time.Time) ([]TaxBracket, error) {
	query := fmt.Sprintf(`
		SELECT id, tenant_id, bracket_order, min_amount, max_amount, rate_pct,
		       cumulative_tax, effective_from, effective_to, is_active
		FROM %s.tax_brackets
		WHERE tenant_id = $1 AND is_active = true
		  AND effective_from <= $2
		  AND (effective_to IS NULL OR effective_to >= $2)
		ORDER BY bracket_order ASC, min_amount ASC`, schemaName)

	rows, err := r.db.Query(ctx, query, tenantID, asOf)
	if err != nil {
		return nil, fmt.Errorf("query tax brackets: %w", err)
	}
	defer rows.Close()

	var out []TaxBracket
	for rows.Next() {
		var b TaxBracket
		if err := rows.Scan(&b.ID, &b.TenantID, &b.Order, &b.Min, &b.Max, &b.RatePct,
			&b.CumulativeTax, &b.EffectiveFrom, &b.EffectiveTo, &b.IsActive); err != nil {
			return nil, fmt.Errorf("scan tax bracket: %w", err)
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// SSNITRatesActiveAt returns a map keyed by tier, per spec §4.A.
func (r *Repository) SSNITRatesActiveAt(ctx context.Context, schemaName, tenantID string, asOf time.Time) (map[SSNITTier]SSNITRate, error) {
	query := fmt.Sprintf(`
		SELECT id, tenant_id, tier, employer_pct, employee_pct, max_contribution,
		       effective_from, effective_to, is_active
		FROM %s.ssnit_rates
		WHERE tenant_id = $1 AND is_active = true
		  AND effective_from <= $2
		  AND (effective_to IS NULL OR effective_to >= $2)`, schemaName)

	rows, err := r.db.Query(ctx, query, tenantID, asOf)
	if err != nil {
		return nil, fmt.Errorf("query ssnit rates: %w", err)
	}
	defer rows.Close()

	out := make(map[SSNITTier]SSNITRate)
	for rows.Next() {
		var rate SSNITRate
		if err := rows.Scan(&rate.ID, &rate.TenantID, &rate.Tier, &rate.EmployerPct, &rate.EmployeePct,
			&rate.MaxContribution, &rate.EffectiveFrom, &rate.EffectiveTo, &rate.IsActive); err != nil {
			return nil, fmt.Errorf("scan ssnit rate: %w", err)
		}
		out[rate.Tier] = rate
	}
	return out, rows.Err()
}

// TaxReliefsActiveAt returns every active relief row at asOf.
func (r *Repository) TaxReliefsActiveAt(ctx context.Context, schemaName, tenantID string, asOf time.Time) ([]TaxRelief, error) {
	query := fmt.Sprintf(`
		SELECT id, tenant_id, kind, amount, percentage, max_amount,
		       effective_from, effective_to, is_active
		FROM %s.tax_reliefs
		WHERE tenant_id = $1 AND is_active = true
		  AND effective_from <= $2
		  AND (effective_to IS NULL OR effective_to >= $2)`, schemaName)

	rows, err := r.db.Query(ctx, query, tenantID, asOf)
	if err != nil {
		return nil, fmt.Errorf("query tax reliefs: %w", err)
	}
	defer rows.Close()

	var out []TaxRelief
	for rows.Next() {
		var rel TaxRelief
		if err := rows.Scan(&rel.ID, &rel.TenantID, &rel.Kind, &rel.Amount, &rel.Percentage,
			&rel.Max, &rel.EffectiveFrom, &rel.EffectiveTo, &rel.IsActive); err != nil {
			return nil, fmt.Errorf("scan tax relief: %w", err)
		}
		out = append(out, rel)
	}
	return out, rows.Err()
}

// OvertimeBonusConfigActiveAt returns the active config row at asOf, or
// DefaultOvertimeBonusTaxConfig() if none exists.
func (r *Repository) OvertimeBonusConfigActiveAt(ctx context.Context, schemaName, tenantID string, asOf time.Time) (OvertimeBonusTaxConfig, error) {
	query := fmt.Sprintf(`
		SELECT id, tenant_id, overtime_annual_threshold, overtime_basic_pct_threshold,
		       overtime_rate_below, overtime_rate_above, overtime_non_resident_rate,
		       bonus_annual_basic_pct_threshold, bonus_flat_rate, bonus_excess_to_paye,
		       bonus_non_resident_rate, effective_from, effective_to, is_active
		FROM %s.overtime_bonus_tax_configs
		WHERE tenant_id = $1 AND is_active = true
		  AND effective_from <= $2
		  AND (effective_to IS NULL OR effective_to >= $2)
		ORDER BY effective_from DESC
		LIMIT 1`, schemaName)

	var c OvertimeBonusTaxConfig
	err := r.db.QueryRow(ctx, query, tenantID, asOf).Scan(
		&c.ID, &c.TenantID, &c.OvertimeAnnualThreshold, &c.OvertimeBasicPctThreshold,
		&c.OvertimeRateBelow, &c.OvertimeRateAbove, &c.OvertimeNonResidentRate,
		&c.BonusAnnualBasicPctThreshold, &c.BonusFlatRate, &c.BonusExcessToPAYE,
		&c.BonusNonResidentRate, &c.EffectiveFrom, &c.EffectiveTo, &c.IsActive)
	if err == pgx.ErrNoRows {
		return DefaultOvertimeBonusTaxConfig(), nil
	}
	if err != nil {
		return OvertimeBonusTaxConfig{}, fmt.Errorf("query overtime/bonus config: %w", err)
	}
	return c, nil
}

// InsertTaxBracket seeds/records a new bracket (used by internal/seed).
func (r *Repository) InsertTaxBracket(ctx context.Context, schemaName string, b TaxBracket) error {
	query := fmt.Sprintf(`
		INSERT INTO %s.tax_brackets
			(id, tenant_id, bracket_order, min_amount, max_amount, rate_pct,
			 cumulative_tax, effective_from, effective_to, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`, schemaName)
	_, err := r.db.Exec(ctx, query, b.ID, b.TenantID, b.Order, b.Min, b.Max, b.RatePct,
		b.CumulativeTax, b.EffectiveFrom, b.EffectiveTo, b.IsActive)
	return err
}

// InsertSSNITRate seeds/records a new SSNIT rate row.
func (r *Repository) InsertSSNITRate(ctx context.Context, schemaName string, rate SSNITRate) error {
	query := fmt.Sprintf(`
		INSERT INTO %s.ssnit_rates
			(id, tenant_id, tier, employer_pct, employee_pct, max_contribution,
			 effective_from, effective_to, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`, schemaName)
	_, err := r.db.Exec(ctx, query, rate.ID, rate.TenantID, rate.Tier, rate.EmployerPct,
		rate.EmployeePct, rate.MaxContribution, rate.EffectiveFrom, rate.EffectiveTo, rate.IsActive)
	return err
}

// InsertTaxRelief seeds/records a new statutory relief row.
func (r *Repository) InsertTaxRelief(ctx context.Context, schemaName string, relief TaxRelief) error {
	query := fmt.Sprintf(`
		INSERT INTO %s.tax_reliefs
			(id, tenant_id, kind, amount, percentage, max_amount,
			 effective_from, effective_to, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`, schemaName)
	_, err := r.db.Exec(ctx, query, relief.ID, relief.TenantID, relief.Kind, relief.Amount,
		relief.Percentage, relief.Max, relief.EffectiveFrom, relief.EffectiveTo, relief.IsActive)
	return err
}

// InsertOvertimeBonusConfig seeds/records a new overtime/bonus tax config row.
func (r *Repository) InsertOvertimeBonusConfig(ctx context.Context, schemaName string, cfg OvertimeBonusTaxConfig) error {
	query := fmt.Sprintf(`
		INSERT INTO %s.overtime_bonus_tax_configs
			(id, tenant_id, overtime_annual_threshold, overtime_basic_pct_threshold,
			 overtime_rate_below, overtime_rate_above, overtime_non_resident_rate,
			 bonus_annual_basic_pct_threshold, bonus_flat_rate, bonus_excess_to_paye,
			 bonus_non_resident_rate, effective_from, effective_to, is_active)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`, schemaName)
	_, err := r.db.Exec(ctx, query, cfg.ID, cfg.TenantID, cfg.OvertimeAnnualThreshold,
		cfg.OvertimeBasicPctThreshold, cfg.OvertimeRateBelow, cfg.OvertimeRateAbove,
		cfg.OvertimeNonResidentRate, cfg.BonusAnnualBasicPctThreshold, cfg.BonusFlatRate,
		cfg.BonusExcessToPAYE, cfg.BonusNonResidentRate, cfg.EffectiveFrom, cfg.EffectiveTo, cfg.IsActive)
	return err
}
