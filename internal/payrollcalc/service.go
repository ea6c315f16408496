package payrollcalc

import (
	"github.com/shopspring/decimal"

	"github.com/ekow-ghana/payroll-core/internal/compgraph"
	"github.com/ekow-ghana/payroll-core/internal/decimalx"
	"github.com/ekow-ghana/payroll-core/internal/formula"
	"github.com/ekow-ghana/payroll-core/internal/overlay"
	"github.com/ekow-ghana/payroll-core/internal/proration"
)

// Compute runs the eleven steps of spec §4.F for one employee and period.
// It is pure: every dependency (resolved salary, overlays, rate book) is
// supplied via Input, so it can be exercised without a database.
func Compute(in Input, eval *formula.Evaluator) Result {
	if in.CurrentSalary == nil {
		return ErrorResult("no current salary as of period end")
	}

	basic := in.CurrentSalary.BasicSalary

	prorationResult := proration.Calculate(in.Employee.DateOfJoining, in.Employee.DateOfExit, proration.Period{
		Start: in.Period.Start,
		End:   in.Period.End,
	})
	// Apply the full-precision ratio, not the 4dp-quantised display factor
	// (spec §8 scenario #2: 3000 * 16/31 = 1548.39, not 3000 *
	// round(16/31, 4) = 1548.30).
	factor := prorationResult.Ratio

	acc := newAccumulator()

	// Step 3.1 — BASIC.
	basicAmount := proration.ApplyIfProrated(basic, in.BasicComponent.IsProrated, factor)
	basicBucket := classify(in.BasicComponent)
	acc.add(basicBucket, DetailRow{
		ComponentID:   in.BasicComponent.ID,
		ComponentCode: in.BasicComponent.Code,
		Bucket:        basicBucket,
		Amount:        basicAmount,
	})

	covered := map[string]bool{in.BasicComponent.ID: true}

	// Step 3.2 — materialised salary components, excluding BASIC.
	for _, sc := range in.SalaryComponents {
		if sc.PayComponentID == in.BasicComponent.ID {
			continue
		}
		component, ok := in.ComponentsByID[sc.PayComponentID]
		if !ok || !sc.IsActive {
			continue
		}
		amount := proration.ApplyIfProrated(sc.Amount, component.IsProrated, factor)
		acc.add(classify(component), DetailRow{
			ComponentID:   component.ID,
			ComponentCode: component.Code,
			Bucket:        classify(component),
			Amount:        amount,
		})
		covered[component.ID] = true
	}

	// Step 3.3 — approved ad-hoc payments, always unprorated.
	for _, p := range in.AdHocPayments {
		if p.Status != "APPROVED" || p.PeriodID != in.Period.ID {
			continue
		}
		component, ok := in.ComponentsByID[p.PayComponentID]
		if !ok {
			continue
		}
		acc.add(classify(component), DetailRow{
			ComponentID:   component.ID,
			ComponentCode: component.Code,
			Bucket:        classify(component),
			Amount:        p.Amount,
		})
	}

	// Step 3.4 — applicable transactions not already covered by a salary
	// component, amount computed against the running gross accumulated so
	// far, prorated only when recurring AND the component is prorated.
	runningGross := acc.grossSoFar()
	for _, tx := range in.ApplicableTransactions {
		if covered[tx.PayComponentID] {
			continue
		}
		component, ok := in.ComponentsByID[tx.PayComponentID]
		if !ok {
			continue
		}
		flags := componentFlags(component)
		amount := tx.CalculateAmount(basic, runningGross, flags, eval)
		if tx.IsRecurring {
			amount = proration.ApplyIfProrated(amount, component.IsProrated, factor)
		}
		acc.add(classify(component), DetailRow{
			ComponentID:   component.ID,
			ComponentCode: component.Code,
			Bucket:        classify(component),
			Amount:        amount,
		})
	}

	// Step 4 — gross earnings.
	gross := decimalx.Money(acc.regularTaxable.Add(acc.nonTaxable).Add(acc.overtime).Add(acc.bonus))

	// Step 5 — SSNIT, against the (possibly prorated) basic.
	ssnitBasic := proration.ApplyIfProrated(basic, in.BasicComponent.IsProrated, factor)
	ssnit := in.Active.CalculateSSNIT(ssnitBasic)

	// Step 6 — tax relief.
	relief := in.Active.CalculateTaxRelief(gross)

	// Step 7 — overtime tax segregation.
	annualBasic := decimalx.Money(basic.Mul(decimal.NewFromInt(12)))
	overtimeResult := in.Active.CalculateOvertimeTax(acc.overtime, ssnitBasic, annualBasic, in.Employee.IsResident)
	overtimeToPAYE := decimalx.Zero
	if !overtimeResult.Qualifies {
		overtimeToPAYE = acc.overtime
	}

	// Step 8 — bonus tax segregation.
	bonusResult := in.Active.CalculateBonusTax(acc.bonus, annualBasic, in.Employee.IsResident)

	// Step 9 — taxable income for PAYE.
	taxableIncome := decimalx.MaxZero(decimalx.Money(
		acc.regularTaxable.Add(overtimeToPAYE).Add(bonusResult.Excess).
			Sub(ssnit.EmployeeContribution).Sub(relief).Sub(acc.preTaxDeductions)))

	// Step 10 — PAYE.
	paye := in.Active.CalculatePAYE(taxableIncome)

	// Step 11 — assemble statutory detail rows and totals.
	if !ssnit.EmployeeContribution.IsZero() {
		acc.details = append(acc.details, DetailRow{ComponentCode: compgraph.CodeSSNITEmp, Bucket: BucketPreTaxDeduction, Amount: ssnit.EmployeeContribution})
	}
	if !paye.IsZero() {
		acc.details = append(acc.details, DetailRow{ComponentCode: compgraph.CodePAYE, Bucket: BucketOtherDeduction, Amount: paye})
	}
	if !overtimeResult.Tax.IsZero() {
		acc.details = append(acc.details, DetailRow{ComponentCode: compgraph.CodeOvertimeTax, Bucket: BucketOtherDeduction, Amount: overtimeResult.Tax})
	}
	if !bonusResult.Tax.IsZero() {
		acc.details = append(acc.details, DetailRow{ComponentCode: compgraph.CodeBonusTax, Bucket: BucketOtherDeduction, Amount: bonusResult.Tax})
	}
	if !ssnit.Tier2Employer.IsZero() {
		acc.details = append(acc.details, DetailRow{ComponentCode: compgraph.CodeTier2Emp, Bucket: BucketEmployerContrib, Amount: ssnit.Tier2Employer})
	}

	totalDeductions := decimalx.Money(acc.otherDeductions.Add(acc.preTaxDeductions).
		Add(ssnit.EmployeeContribution).Add(paye).Add(overtimeResult.Tax).Add(bonusResult.Tax))
	netSalary := decimalx.Money(gross.Sub(totalDeductions))
	employerCost := decimalx.Money(gross.Add(ssnit.EmployerTier1).Add(ssnit.Tier2Employer).Add(acc.employerContrib))

	return Result{
		Status:             StatusOK,
		BasicSalary:        basic,
		ProratedBasic:      basicAmount,
		Factor:             prorationResult.Factor,
		DaysPayable:        prorationResult.DaysPayable,
		TotalDays:          prorationResult.TotalDays,
		GrossEarnings:      gross,
		SSNITEmployee:      ssnit.EmployeeContribution,
		SSNITEmployerTier1: ssnit.EmployerTier1,
		SSNITEmployerTier2: ssnit.Tier2Employer,
		TaxRelief:          relief,
		TaxableIncome:      taxableIncome,
		PAYE:               paye,
		OvertimeTax:        overtimeResult.Tax,
		BonusTax:           bonusResult.Tax,
		TotalDeductions:    totalDeductions,
		NetSalary:          netSalary,
		EmployerCost:       employerCost,
		Details:            acc.details,
	}
}

// classify implements the bucket precedence of spec §4.F Step 3:
// employer contributions and deductions are routed by type first;
// earnings are classified is_overtime → is_bonus → is_taxable.
func classify(c compgraph.PayComponent) Bucket {
	switch c.Type {
	case compgraph.ComponentEmployer:
		return BucketEmployerContrib
	case compgraph.ComponentDeduction:
		if c.ReducesTaxable {
			return BucketPreTaxDeduction
		}
		return BucketOtherDeduction
	default:
		switch {
		case c.IsOvertime:
			return BucketOvertime
		case c.IsBonus:
			return BucketBonus
		case c.IsTaxable:
			return BucketRegularTaxable
		default:
			return BucketNonTaxable
		}
	}
}

func componentFlags(c compgraph.PayComponent) overlay.ComponentFlags {
	return overlay.ComponentFlags{
		CalcKind:   string(c.CalcKind),
		Percentage: c.Percentage,
		DefaultAmt: c.DefaultAmount,
		Formula:    c.Formula,
	}
}

type accumulator struct {
	regularTaxable  decimal.Decimal
	nonTaxable      decimal.Decimal
	overtime        decimal.Decimal
	bonus           decimal.Decimal
	preTaxDeductions decimal.Decimal
	otherDeductions decimal.Decimal
	employerContrib decimal.Decimal
	details         []DetailRow
}

func newAccumulator() *accumulator {
	return &accumulator{
		regularTaxable:   decimalx.Zero,
		nonTaxable:       decimalx.Zero,
		overtime:         decimalx.Zero,
		bonus:            decimalx.Zero,
		preTaxDeductions: decimalx.Zero,
		otherDeductions:  decimalx.Zero,
		employerContrib:  decimalx.Zero,
	}
}

func (a *accumulator) add(bucket Bucket, row DetailRow) {
	if row.Amount.IsZero() {
		return
	}
	switch bucket {
	case BucketRegularTaxable:
		a.regularTaxable = a.regularTaxable.Add(row.Amount)
	case BucketNonTaxable:
		a.nonTaxable = a.nonTaxable.Add(row.Amount)
	case BucketOvertime:
		a.overtime = a.overtime.Add(row.Amount)
	case BucketBonus:
		a.bonus = a.bonus.Add(row.Amount)
	case BucketPreTaxDeduction:
		a.preTaxDeductions = a.preTaxDeductions.Add(row.Amount)
	case BucketOtherDeduction:
		a.otherDeductions = a.otherDeductions.Add(row.Amount)
	case BucketEmployerContrib:
		a.employerContrib = a.employerContrib.Add(row.Amount)
	}
	a.details = append(a.details, row)
}

func (a *accumulator) grossSoFar() decimal.Decimal {
	return decimalx.Money(a.regularTaxable.Add(a.nonTaxable).Add(a.overtime).Add(a.bonus))
}
