// Package seed loads the Rate Book seed data (spec §6 "Rate Book seed
// data" contract) from an operator-editable YAML fixture, rather than
// hard-coded Go constants — seeding a new tax year needs a new YAML
// file, not a rebuild.
package seed

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/ekow-ghana/payroll-core/internal/ratebook"
)

// RateBook is the YAML document shape: one fiscal year's worth of
// statutory rates for one tenant.
type RateBook struct {
	TenantID      string         `yaml:"tenant_id"`
	EffectiveFrom string         `yaml:"effective_from"`
	TaxBrackets   []TaxBracket   `yaml:"tax_brackets"`
	SSNITRates    []SSNITRate    `yaml:"ssnit_rates"`
	TaxReliefs    []TaxRelief    `yaml:"tax_reliefs"`
	OvertimeBonus *OvertimeBonus `yaml:"overtime_bonus"`
}

// TaxBracket mirrors ratebook.TaxBracket in plain YAML-friendly types.
type TaxBracket struct {
	Order   int     `yaml:"order"`
	Min     string  `yaml:"min"`
	Max     *string `yaml:"max"` // absent/null means the top, unbounded bracket
	RatePct string  `yaml:"rate_pct"`
}

// SSNITRate mirrors ratebook.SSNITRate.
type SSNITRate struct {
	Tier            string  `yaml:"tier"`
	EmployerPct     string  `yaml:"employer_pct"`
	EmployeePct     string  `yaml:"employee_pct"`
	MaxContribution *string `yaml:"max_contribution"`
}

// TaxRelief mirrors ratebook.TaxRelief.
type TaxRelief struct {
	Kind       string  `yaml:"kind"`
	Amount     string  `yaml:"amount"`
	Percentage string  `yaml:"percentage"`
	Max        *string `yaml:"max"`
}

// OvertimeBonus mirrors ratebook.OvertimeBonusTaxConfig.
type OvertimeBonus struct {
	OvertimeAnnualThreshold      string `yaml:"overtime_annual_threshold"`
	OvertimeBasicPctThreshold    string `yaml:"overtime_basic_pct_threshold"`
	OvertimeRateBelow            string `yaml:"overtime_rate_below"`
	OvertimeRateAbove            string `yaml:"overtime_rate_above"`
	OvertimeNonResidentRate      string `yaml:"overtime_nonresident_rate"`
	BonusAnnualBasicPctThreshold string `yaml:"bonus_annual_basic_pct_threshold"`
	BonusFlatRate                string `yaml:"bonus_flat_rate"`
	BonusExcessToPAYE            bool   `yaml:"bonus_excess_to_paye"`
	BonusNonResidentRate         string `yaml:"bonus_nonresident_rate"`
}

// Parse reads a RateBook document out of r.
func Parse(r io.Reader) (*RateBook, error) {
	var rb RateBook
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&rb); err != nil {
		return nil, fmt.Errorf("parse rate book seed: %w", err)
	}
	if rb.TenantID == "" {
		return nil, fmt.Errorf("parse rate book seed: tenant_id is required")
	}
	return &rb, nil
}

// Inserter is the subset of ratebook.Repository a Loader writes through.
type Inserter interface {
	InsertTaxBracket(ctx context.Context, schemaName string, b ratebook.TaxBracket) error
	InsertSSNITRate(ctx context.Context, schemaName string, rate ratebook.SSNITRate) error
	InsertTaxRelief(ctx context.Context, schemaName string, relief ratebook.TaxRelief) error
	InsertOvertimeBonusConfig(ctx context.Context, schemaName string, cfg ratebook.OvertimeBonusTaxConfig) error
}

// Loader applies a parsed RateBook to a tenant's schema via an Inserter.
type Loader struct {
	repo Inserter
}

func NewLoader(repo Inserter) *Loader {
	return &Loader{repo: repo}
}

// Load inserts every row of rb into schemaName, all stamped with the same
// EffectiveFrom and left open-ended (EffectiveTo nil, IsActive true) — a
// later seed for the same tenant closes out the prior one by inserting a
// fresh row and explicit repository update, not handled here.
func (l *Loader) Load(ctx context.Context, schemaName string, rb *RateBook) error {
	effectiveFrom, err := time.Parse("2006-01-02", rb.EffectiveFrom)
	if err != nil {
		return fmt.Errorf("load rate book seed: effective_from: %w", err)
	}

	for _, b := range rb.TaxBrackets {
		min, err := decimal.NewFromString(b.Min)
		if err != nil {
			return fmt.Errorf("load tax bracket %d: min: %w", b.Order, err)
		}
		max, err := optionalDecimal(b.Max)
		if err != nil {
			return fmt.Errorf("load tax bracket %d: max: %w", b.Order, err)
		}
		ratePct, err := decimal.NewFromString(b.RatePct)
		if err != nil {
			return fmt.Errorf("load tax bracket %d: rate_pct: %w", b.Order, err)
		}

		bracket := ratebook.TaxBracket{
			ID:            uuid.NewString(),
			TenantID:      rb.TenantID,
			Order:         b.Order,
			Min:           min,
			Max:           max,
			RatePct:       ratePct,
			EffectiveFrom: effectiveFrom,
			IsActive:      true,
		}
		if err := l.repo.InsertTaxBracket(ctx, schemaName, bracket); err != nil {
			return fmt.Errorf("load tax bracket %d: %w", b.Order, err)
		}
	}

	for _, s := range rb.SSNITRates {
		employerPct, err := decimal.NewFromString(s.EmployerPct)
		if err != nil {
			return fmt.Errorf("load SSNIT rate %s: employer_pct: %w", s.Tier, err)
		}
		employeePct, err := decimal.NewFromString(s.EmployeePct)
		if err != nil {
			return fmt.Errorf("load SSNIT rate %s: employee_pct: %w", s.Tier, err)
		}
		maxContribution, err := optionalDecimal(s.MaxContribution)
		if err != nil {
			return fmt.Errorf("load SSNIT rate %s: max_contribution: %w", s.Tier, err)
		}

		rate := ratebook.SSNITRate{
			ID:              uuid.NewString(),
			TenantID:        rb.TenantID,
			Tier:            ratebook.SSNITTier(s.Tier),
			EmployerPct:     employerPct,
			EmployeePct:     employeePct,
			MaxContribution: maxContribution,
			EffectiveFrom:   effectiveFrom,
			IsActive:        true,
		}
		if err := l.repo.InsertSSNITRate(ctx, schemaName, rate); err != nil {
			return fmt.Errorf("load SSNIT rate %s: %w", s.Tier, err)
		}
	}

	for _, r := range rb.TaxReliefs {
		amount, err := decimalOrZero(r.Amount)
		if err != nil {
			return fmt.Errorf("load tax relief %s: amount: %w", r.Kind, err)
		}
		percentage, err := decimalOrZero(r.Percentage)
		if err != nil {
			return fmt.Errorf("load tax relief %s: percentage: %w", r.Kind, err)
		}
		max, err := optionalDecimal(r.Max)
		if err != nil {
			return fmt.Errorf("load tax relief %s: max: %w", r.Kind, err)
		}

		relief := ratebook.TaxRelief{
			ID:            uuid.NewString(),
			TenantID:      rb.TenantID,
			Kind:          ratebook.TaxReliefKind(r.Kind),
			Amount:        amount,
			Percentage:    percentage,
			Max:           max,
			EffectiveFrom: effectiveFrom,
			IsActive:      true,
		}
		if err := l.repo.InsertTaxRelief(ctx, schemaName, relief); err != nil {
			return fmt.Errorf("load tax relief %s: %w", r.Kind, err)
		}
	}

	if rb.OvertimeBonus != nil {
		cfg, err := toOvertimeBonusConfig(rb.TenantID, effectiveFrom, rb.OvertimeBonus)
		if err != nil {
			return fmt.Errorf("load overtime/bonus tax config: %w", err)
		}
		if err := l.repo.InsertOvertimeBonusConfig(ctx, schemaName, cfg); err != nil {
			return fmt.Errorf("load overtime/bonus tax config: %w", err)
		}
	}

	return nil
}

func toOvertimeBonusConfig(tenantID string, effectiveFrom time.Time, ob *OvertimeBonus) (ratebook.OvertimeBonusTaxConfig, error) {
	var cfg ratebook.OvertimeBonusTaxConfig
	var err error

	parse := func(name, src string, dst *decimal.Decimal) {
		if err != nil {
			return
		}
		*dst, err = decimal.NewFromString(src)
		if err != nil {
			err = fmt.Errorf("%s: %w", name, err)
		}
	}

	parse("overtime_annual_threshold", ob.OvertimeAnnualThreshold, &cfg.OvertimeAnnualThreshold)
	parse("overtime_basic_pct_threshold", ob.OvertimeBasicPctThreshold, &cfg.OvertimeBasicPctThreshold)
	parse("overtime_rate_below", ob.OvertimeRateBelow, &cfg.OvertimeRateBelow)
	parse("overtime_rate_above", ob.OvertimeRateAbove, &cfg.OvertimeRateAbove)
	parse("overtime_nonresident_rate", ob.OvertimeNonResidentRate, &cfg.OvertimeNonResidentRate)
	parse("bonus_annual_basic_pct_threshold", ob.BonusAnnualBasicPctThreshold, &cfg.BonusAnnualBasicPctThreshold)
	parse("bonus_flat_rate", ob.BonusFlatRate, &cfg.BonusFlatRate)
	parse("bonus_nonresident_rate", ob.BonusNonResidentRate, &cfg.BonusNonResidentRate)
	if err != nil {
		return ratebook.OvertimeBonusTaxConfig{}, err
	}

	cfg.ID = uuid.NewString()
	cfg.TenantID = tenantID
	cfg.BonusExcessToPAYE = ob.BonusExcessToPAYE
	cfg.EffectiveFrom = effectiveFrom
	cfg.IsActive = true
	return cfg, nil
}

func decimalOrZero(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func optionalDecimal(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}
