// Package ratebook implements the Statutory Rate Book (spec §4.A): the
// time-versioned tables of PAYE brackets, SSNIT tier rates, tax reliefs and
// overtime/bonus tax configuration, plus the as-of resolution query every
// other payroll component depends on.
package ratebook

import (
	"time"

	"github.com/shopspring/decimal"
)

// TaxBracket is one progressive PAYE band, ordered by Order then Min.
type TaxBracket struct {
	ID            string
	TenantID      string
	Order         int
	Min           decimal.Decimal
	Max           *decimal.Decimal // nil means unbounded upper edge
	RatePct       decimal.Decimal
	CumulativeTax decimal.Decimal // unused by the bracket-by-bracket path; kept for the closed-form alternative (spec §9 open question)
	EffectiveFrom time.Time
	EffectiveTo   *time.Time
	IsActive      bool
}

// SSNITTier names Ghana's three social-security tiers.
type SSNITTier string

const (
	Tier1 SSNITTier = "TIER_1"
	Tier2 SSNITTier = "TIER_2"
	Tier3 SSNITTier = "TIER_3"
)

// SSNITRate carries the employer/employee contribution rates for one tier.
type SSNITRate struct {
	ID              string
	TenantID        string
	Tier            SSNITTier
	EmployerPct     decimal.Decimal
	EmployeePct     decimal.Decimal
	MaxContribution *decimal.Decimal
	EffectiveFrom   time.Time
	EffectiveTo     *time.Time
	IsActive        bool
}

// TaxReliefKind distinguishes a flat-amount relief from a percentage-of-gross
// relief.
type TaxReliefKind string

const (
	ReliefFixed      TaxReliefKind = "FIXED"
	ReliefPercentage TaxReliefKind = "PERCENTAGE"
)

// TaxRelief is one statutory relief contributing to taxable-income
// reduction. Several may be active simultaneously; all active rows are
// summed.
type TaxRelief struct {
	ID            string
	TenantID      string
	Kind          TaxReliefKind
	Amount        decimal.Decimal // used when Kind == ReliefFixed
	Percentage    decimal.Decimal // used when Kind == ReliefPercentage
	Max           *decimal.Decimal
	EffectiveFrom time.Time
	EffectiveTo   *time.Time
	IsActive      bool
}

// OvertimeBonusTaxConfig holds every numeric parameter named in spec
// §4.G/§4.H. Exactly one row is active at a time per tenant.
type OvertimeBonusTaxConfig struct {
	ID       string
	TenantID string

	// Overtime (§4.G)
	OvertimeAnnualThreshold  decimal.Decimal
	OvertimeBasicPctThreshold decimal.Decimal
	OvertimeRateBelow        decimal.Decimal
	OvertimeRateAbove        decimal.Decimal
	OvertimeNonResidentRate  decimal.Decimal

	// Bonus (§4.H)
	BonusAnnualBasicPctThreshold decimal.Decimal
	BonusFlatRate                decimal.Decimal
	BonusExcessToPAYE            bool
	BonusNonResidentRate          decimal.Decimal

	EffectiveFrom time.Time
	EffectiveTo   *time.Time
	IsActive      bool
}

// DefaultOvertimeBonusTaxConfig returns the hard-coded fallback values named
// in spec §4.G/§4.H, used only when no active config row exists — the same
// role the Python source's class-level defaults play.
func DefaultOvertimeBonusTaxConfig() OvertimeBonusTaxConfig {
	return OvertimeBonusTaxConfig{
		OvertimeAnnualThreshold:       decimal.NewFromInt(18000),
		OvertimeBasicPctThreshold:     decimal.NewFromInt(50),
		OvertimeRateBelow:             decimal.NewFromInt(5),
		OvertimeRateAbove:             decimal.NewFromInt(10),
		OvertimeNonResidentRate:       decimal.NewFromInt(20),
		BonusAnnualBasicPctThreshold:  decimal.NewFromInt(15),
		BonusFlatRate:                 decimal.NewFromInt(5),
		BonusExcessToPAYE:             true,
		BonusNonResidentRate:          decimal.NewFromInt(20),
		IsActive:                      true,
	}
}

// activeAt reports whether a (from, to) window contains asOf, per spec §9's
// "(effective_from ≤ as_of) AND (effective_to IS NULL OR effective_to ≥
// as_of)" predicate.
func activeAt(from time.Time, to *time.Time, asOf time.Time) bool {
	if from.After(asOf) {
		return false
	}
	if to != nil && to.Before(asOf) {
		return false
	}
	return true
}
