package seed

import (
	"context"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekow-ghana/payroll-core/internal/ratebook"
)

func TestParse_ValidFixture(t *testing.T) {
	f, err := os.Open("testdata/rates_2026.yaml")
	require.NoError(t, err)
	defer f.Close()

	rb, err := Parse(f)
	require.NoError(t, err)

	assert.Equal(t, "00000000-0000-0000-0000-000000000001", rb.TenantID)
	assert.Equal(t, "2026-01-01", rb.EffectiveFrom)
	assert.Len(t, rb.TaxBrackets, 7)
	assert.Len(t, rb.SSNITRates, 3)
	assert.Len(t, rb.TaxReliefs, 1)
	require.NotNil(t, rb.OvertimeBonus)
	assert.True(t, rb.OvertimeBonus.BonusExcessToPAYE)
	assert.Nil(t, rb.TaxBrackets[6].Max) // top bracket is unbounded
}

func TestParse_RejectsMissingTenantID(t *testing.T) {
	_, err := Parse(strings.NewReader(`effective_from: "2026-01-01"`))
	assert.Error(t, err)
}

func TestParse_RejectsUnknownFields(t *testing.T) {
	_, err := Parse(strings.NewReader(`
tenant_id: "t1"
effective_from: "2026-01-01"
not_a_real_field: true
`))
	assert.Error(t, err)
}

// fakeInserter records every call made to it, for assertion.
type fakeInserter struct {
	brackets []ratebook.TaxBracket
	rates    []ratebook.SSNITRate
	reliefs  []ratebook.TaxRelief
	configs  []ratebook.OvertimeBonusTaxConfig
}

func (f *fakeInserter) InsertTaxBracket(ctx context.Context, schemaName string, b ratebook.TaxBracket) error {
	f.brackets = append(f.brackets, b)
	return nil
}

func (f *fakeInserter) InsertSSNITRate(ctx context.Context, schemaName string, rate ratebook.SSNITRate) error {
	f.rates = append(f.rates, rate)
	return nil
}

func (f *fakeInserter) InsertTaxRelief(ctx context.Context, schemaName string, relief ratebook.TaxRelief) error {
	f.reliefs = append(f.reliefs, relief)
	return nil
}

func (f *fakeInserter) InsertOvertimeBonusConfig(ctx context.Context, schemaName string, cfg ratebook.OvertimeBonusTaxConfig) error {
	f.configs = append(f.configs, cfg)
	return nil
}

func TestLoader_Load_InsertsEveryRow(t *testing.T) {
	f, err := os.Open("testdata/rates_2026.yaml")
	require.NoError(t, err)
	defer f.Close()

	rb, err := Parse(f)
	require.NoError(t, err)

	inserter := &fakeInserter{}
	loader := NewLoader(inserter)

	err = loader.Load(context.Background(), "tenant_acme", rb)
	require.NoError(t, err)

	require.Len(t, inserter.brackets, 7)
	assert.Nil(t, inserter.brackets[6].Max)
	assert.True(t, inserter.brackets[0].RatePct.IsZero())

	require.Len(t, inserter.rates, 3)
	require.Len(t, inserter.reliefs, 1)
	require.Len(t, inserter.configs, 1)
	assert.True(t, inserter.configs[0].BonusExcessToPAYE)
	assert.True(t, inserter.configs[0].IsActive)
}

func TestLoader_Load_RejectsBadEffectiveDate(t *testing.T) {
	rb := &RateBook{TenantID: "t1", EffectiveFrom: "not-a-date"}
	loader := NewLoader(&fakeInserter{})

	err := loader.Load(context.Background(), "tenant_acme", rb)
	assert.Error(t, err)
}

func TestLoader_Load_RejectsBadDecimal(t *testing.T) {
	rb := &RateBook{
		TenantID:      "t1",
		EffectiveFrom: "2026-01-01",
		TaxBrackets: []TaxBracket{
			{Order: 1, Min: "not-a-number", RatePct: "0"},
		},
	}
	loader := NewLoader(&fakeInserter{})

	err := loader.Load(context.Background(), "tenant_acme", rb)
	assert.Error(t, err)
}
