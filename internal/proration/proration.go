// Package proration implements the Proration Engine (spec §4.E): the
// fraction of a payroll period an employee is actually payable for, given
// their join/exit dates.
package proration

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/ekow-ghana/payroll-core/internal/decimalx"
)

// Period is the minimal period shape the engine needs.
type Period struct {
	Start time.Time
	End   time.Time
}

// Result carries the computed factor alongside the day counts it was
// derived from, since the payroll computer and payslip both need to show
// "N of M days".
type Result struct {
	// Factor is the 4dp-quantised ratio, for display/storage only.
	Factor decimal.Decimal
	// Ratio is the full-precision days_payable/total_days (original
	// services.py:448), the value ApplyIfProrated actually multiplies by —
	// quantising the factor before applying it would compound rounding
	// error into every prorated amount.
	Ratio          decimal.Decimal
	DaysPayable    int
	TotalDays      int
	EffectiveStart time.Time
	EffectiveEnd   time.Time
}

// Calculate runs the five steps of spec §4.E. dateOfExit is nil when the
// employee has not (yet) exited.
func Calculate(dateOfJoining time.Time, dateOfExit *time.Time, period Period) Result {
	totalDays := int(period.End.Sub(period.Start).Hours()/24) + 1

	effectiveStart := period.Start
	if dateOfJoining.After(period.Start) {
		fwd := firstWorkingDayOnOrAfter(period.Start)
		if dateOfJoining.After(fwd) {
			effectiveStart = dateOfJoining
		}
		// else: date_of_joining <= first_working_day -> no proration on the left.
	}

	effectiveEnd := period.End
	if dateOfExit != nil && dateOfExit.Before(period.End) {
		effectiveEnd = *dateOfExit
	}

	daysPayable := int(effectiveEnd.Sub(effectiveStart).Hours()/24) + 1
	if daysPayable < 0 {
		daysPayable = 0
	}

	ratio := decimal.NewFromInt(1)
	if daysPayable < totalDays {
		ratio = decimal.NewFromInt(int64(daysPayable)).Div(decimal.NewFromInt(int64(totalDays)))
	}

	return Result{
		Factor:         decimalx.Factor(ratio),
		Ratio:          ratio,
		DaysPayable:    daysPayable,
		TotalDays:      totalDays,
		EffectiveStart: effectiveStart,
		EffectiveEnd:   effectiveEnd,
	}
}

// firstWorkingDayOnOrAfter returns the first Monday–Friday date on or after d.
func firstWorkingDayOnOrAfter(d time.Time) time.Time {
	for d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
		d = d.AddDate(0, 0, 1)
	}
	return d
}

// ApplyIfProrated scales amount by ratio only when isProrated is true, per
// spec §4.E's rule that the factor applies to basic and prorated components
// only, never to one-shot transactions. ratio must be Result.Ratio (full
// precision), not Result.Factor, so only the final money amount is
// quantised.
func ApplyIfProrated(amount decimal.Decimal, isProrated bool, ratio decimal.Decimal) decimal.Decimal {
	if !isProrated {
		return amount
	}
	return decimalx.Money(amount.Mul(ratio))
}
