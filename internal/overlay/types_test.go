package overlay

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/ekow-ghana/payroll-core/internal/formula"
)

func TestCalculateAmount_NoneOverrideFallsThroughToComponentFormula(t *testing.T) {
	tx := EmployeeTransaction{OverrideType: OverrideNone}
	flags := ComponentFlags{CalcKind: "FORMULA", Formula: "basic * 0.1"}
	eval := formula.NewEvaluator()

	out := tx.CalculateAmount(decimal.NewFromInt(1000), decimal.NewFromInt(1200), flags, eval)

	assert.True(t, out.Equal(decimal.NewFromInt(100)), "got %s", out)
}

func TestCalculateAmount_NoneOverrideComponentFormulaEmptyIsZero(t *testing.T) {
	tx := EmployeeTransaction{OverrideType: OverrideNone}
	flags := ComponentFlags{CalcKind: "FORMULA", Formula: ""}
	eval := formula.NewEvaluator()

	out := tx.CalculateAmount(decimal.NewFromInt(1000), decimal.NewFromInt(1200), flags, eval)

	assert.True(t, out.IsZero())
}

func TestCalculateAmount_OverrideTakesPrecedenceOverComponentFormula(t *testing.T) {
	tx := EmployeeTransaction{OverrideType: OverrideFixed, OverrideAmount: decimal.NewFromInt(500)}
	flags := ComponentFlags{CalcKind: "FORMULA", Formula: "basic * 0.1"}
	eval := formula.NewEvaluator()

	out := tx.CalculateAmount(decimal.NewFromInt(1000), decimal.NewFromInt(1200), flags, eval)

	assert.True(t, out.Equal(decimal.NewFromInt(500)), "got %s", out)
}
