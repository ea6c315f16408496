package ratebook

import (
	"github.com/shopspring/decimal"

	"github.com/ekow-ghana/payroll-core/internal/decimalx"
)

// CalculatePAYE iterates the progressive brackets in order, deducting each
// bracket's capacity from the remaining taxable income and accumulating
// portion × rate / 100 (spec §4.F Step 10). The closed-form alternative
// using CumulativeTax is equally valid per spec §9's open question; this
// module always uses the bracket-by-bracket path so results are traceable
// bracket by bracket in tests.
func (a Active) CalculatePAYE(taxableIncome decimal.Decimal) decimal.Decimal {
	if taxableIncome.LessThanOrEqual(decimalx.Zero) {
		return decimalx.Zero
	}

	remaining := taxableIncome
	total := decimalx.Zero
	hundred := decimal.NewFromInt(100)

	for _, b := range a.TaxBrackets {
		if remaining.LessThanOrEqual(decimalx.Zero) {
			break
		}
		capacity := remaining
		if b.Max != nil {
			bracketWidth := b.Max.Sub(b.Min)
			if bracketWidth.LessThan(capacity) {
				capacity = bracketWidth
			}
		}
		if capacity.GreaterThan(remaining) {
			capacity = remaining
		}
		if capacity.IsNegative() {
			continue
		}
		total = total.Add(capacity.Mul(b.RatePct).Div(hundred))
		remaining = remaining.Sub(capacity)
	}

	return decimalx.Money(total)
}

// CalculateTaxRelief sums every active relief against gross salary (spec
// §4.F Step 6): FIXED reliefs contribute their amount; PERCENTAGE reliefs
// contribute gross × pct / 100, capped at Max if set.
func (a Active) CalculateTaxRelief(grossSalary decimal.Decimal) decimal.Decimal {
	hundred := decimal.NewFromInt(100)
	total := decimalx.Zero
	for _, rel := range a.TaxReliefs {
		var amount decimal.Decimal
		switch rel.Kind {
		case ReliefFixed:
			amount = rel.Amount
		case ReliefPercentage:
			amount = grossSalary.Mul(rel.Percentage).Div(hundred)
			if rel.Max != nil && amount.GreaterThan(*rel.Max) {
				amount = *rel.Max
			}
		}
		total = total.Add(amount)
	}
	return decimalx.Money(total)
}

// SSNITResult is the three-way split spec §4.F Step 5 requires.
type SSNITResult struct {
	EmployeeContribution decimal.Decimal
	EmployerTier1        decimal.Decimal
	Tier2Employer        decimal.Decimal
}

// CalculateSSNIT computes the employee Tier 1 contribution (capped by
// MaxContribution if set), the employer Tier 1 contribution, and the Tier 2
// employer-only contribution — all on the supplied basic salary base (spec
// §4.F Step 5).
func (a Active) CalculateSSNIT(basicSalary decimal.Decimal) SSNITResult {
	hundred := decimal.NewFromInt(100)
	var result SSNITResult

	if tier1, ok := a.SSNITRates[Tier1]; ok {
		emp := basicSalary.Mul(tier1.EmployeePct).Div(hundred)
		if tier1.MaxContribution != nil && emp.GreaterThan(*tier1.MaxContribution) {
			emp = *tier1.MaxContribution
		}
		result.EmployeeContribution = decimalx.Money(emp)
		result.EmployerTier1 = decimalx.Money(basicSalary.Mul(tier1.EmployerPct).Div(hundred))
	}

	if tier2, ok := a.SSNITRates[Tier2]; ok {
		result.Tier2Employer = decimalx.Money(basicSalary.Mul(tier2.EmployerPct).Div(hundred))
	}

	return result
}

// OvertimeTaxResult carries the tax amount and whether the overtime
// qualifies for flat segregated taxation (spec §4.G).
type OvertimeTaxResult struct {
	Tax       decimal.Decimal
	Qualifies bool
}

// CalculateOvertimeTax implements spec §4.G exactly.
func (a Active) CalculateOvertimeTax(overtime, basic, annualSalary decimal.Decimal, isResident bool) OvertimeTaxResult {
	cfg := a.OvertimeBonus
	hundred := decimal.NewFromInt(100)

	if overtime.LessThanOrEqual(decimalx.Zero) {
		return OvertimeTaxResult{Tax: decimalx.Zero, Qualifies: true}
	}
	if !isResident {
		return OvertimeTaxResult{Tax: decimalx.Money(overtime.Mul(cfg.OvertimeNonResidentRate).Div(hundred)), Qualifies: true}
	}
	if annualSalary.GreaterThan(cfg.OvertimeAnnualThreshold) {
		return OvertimeTaxResult{Tax: decimalx.Zero, Qualifies: false}
	}

	threshold := basic.Mul(cfg.OvertimeBasicPctThreshold).Div(hundred)
	if overtime.LessThanOrEqual(threshold) {
		return OvertimeTaxResult{Tax: decimalx.Money(overtime.Mul(cfg.OvertimeRateBelow).Div(hundred)), Qualifies: true}
	}

	below := threshold.Mul(cfg.OvertimeRateBelow).Div(hundred)
	above := overtime.Sub(threshold).Mul(cfg.OvertimeRateAbove).Div(hundred)
	return OvertimeTaxResult{Tax: decimalx.Money(below.Add(above)), Qualifies: true}
}

// BonusTaxResult carries the flat-taxed amount and the excess that must be
// folded into PAYE-taxable income (spec §4.H).
type BonusTaxResult struct {
	Tax    decimal.Decimal
	Excess decimal.Decimal
}

// CalculateBonusTax implements spec §4.H exactly.
func (a Active) CalculateBonusTax(bonus, annualBasic decimal.Decimal, isResident bool) BonusTaxResult {
	cfg := a.OvertimeBonus
	hundred := decimal.NewFromInt(100)

	if bonus.LessThanOrEqual(decimalx.Zero) {
		return BonusTaxResult{Tax: decimalx.Zero, Excess: decimalx.Zero}
	}
	if !isResident {
		return BonusTaxResult{Tax: decimalx.Money(bonus.Mul(cfg.BonusNonResidentRate).Div(hundred)), Excess: decimalx.Zero}
	}

	threshold := annualBasic.Mul(cfg.BonusAnnualBasicPctThreshold).Div(hundred)
	if bonus.LessThanOrEqual(threshold) {
		return BonusTaxResult{Tax: decimalx.Money(bonus.Mul(cfg.BonusFlatRate).Div(hundred)), Excess: decimalx.Zero}
	}
	if cfg.BonusExcessToPAYE {
		return BonusTaxResult{
			Tax:    decimalx.Money(threshold.Mul(cfg.BonusFlatRate).Div(hundred)),
			Excess: decimalx.Money(bonus.Sub(threshold)),
		}
	}
	return BonusTaxResult{Tax: decimalx.Money(bonus.Mul(cfg.BonusFlatRate).Div(hundred)), Excess: decimalx.Zero}
}
