package payslip

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewService(t *testing.T) {
	svc := NewService()
	require.NotNil(t, svc)
}

func TestDefaultSettings(t *testing.T) {
	s := DefaultSettings()
	assert.Equal(t, "#1d4ed8", s.PrimaryColor)
	assert.NotEmpty(t, s.FooterText)
}

func samplePayslip() *Payslip {
	paidOn := time.Date(2026, 7, 31, 0, 0, 0, 0, time.UTC)
	return &Payslip{
		RunNumber:   "PR-202607-001",
		PeriodLabel: "July 2026",
		PaymentDate: &paidOn,
		GeneratedAt: paidOn,
		Currency:    "GHS",
		Employee: EmployeeSnapshot{
			EmployeeNumber: "EMP-0042",
			FullName:       "Ama Owusu",
			JobTitle:       "Accountant",
			Department:     "Finance",
			GradeName:      "Level 6",
			TIN:            "GHA-TIN-0042",
			SSNITNumber:    "SSNIT-0042",
		},
		Bank: BankSnapshot{
			BankName:      "GCB Bank",
			BranchName:    "Accra Main",
			AccountName:   "Ama Owusu",
			AccountNumber: "1234567890",
		},
		BasicSalary:     decimal.NewFromInt(3000),
		ProratedBasic:   decimal.NewFromInt(3000),
		ProrationFactor: decimal.NewFromInt(1),
		DaysPayable:     31,
		TotalDays:       31,
		GrossEarnings:   decimal.NewFromFloat(3500.00),
		SSNITEmployee:   decimal.NewFromFloat(165.00),
		TaxableIncome:   decimal.NewFromFloat(3335.00),
		PAYE:            decimal.NewFromFloat(450.00),
		TotalDeductions: decimal.NewFromFloat(615.00),
		NetSalary:       decimal.NewFromFloat(2885.00),
		EmployerCost:    decimal.NewFromFloat(3850.00),
		Details: []DetailLine{
			{ComponentCode: "BASIC", ComponentName: "Basic Salary", DisplayOrder: 1, IsEarning: true, Amount: decimal.NewFromInt(3000)},
			{ComponentCode: "TRANSPORT", ComponentName: "Transport Allowance", DisplayOrder: 2, IsEarning: true, Amount: decimal.NewFromInt(500)},
			{ComponentCode: "SSNIT_EMP", ComponentName: "SSNIT (Employee)", DisplayOrder: 10, IsEarning: false, Amount: decimal.NewFromFloat(165.00)},
			{ComponentCode: "PAYE", ComponentName: "PAYE", DisplayOrder: 11, IsEarning: false, Amount: decimal.NewFromFloat(450.00)},
		},
		YTD: YTDAggregates{
			Earnings:              decimal.NewFromFloat(24500.00),
			SSNITEmployee:         decimal.NewFromFloat(1155.00),
			PAYE:                  decimal.NewFromFloat(3150.00),
			Net:                   decimal.NewFromFloat(20195.00),
			ProvidentFundEmployee: decimal.Zero,
			Loans:                 decimal.Zero,
		},
	}
}

func TestGeneratePayslipPDF(t *testing.T) {
	svc := NewService()
	p := samplePayslip()

	pdfBytes, err := svc.GeneratePayslipPDF("Acme Ghana Ltd", p, DefaultSettings())
	require.NoError(t, err)
	require.NotEmpty(t, pdfBytes)
	assert.Equal(t, "%PDF", string(pdfBytes[:4]))
}

func TestGeneratePayslipPDF_WithArrears(t *testing.T) {
	svc := NewService()
	p := samplePayslip()
	p.Details = append(p.Details, DetailLine{
		ComponentCode: "BASIC", ComponentName: "Basic Salary", DisplayOrder: 1,
		IsEarning: true, Amount: decimal.NewFromFloat(120.50), IsArrear: true, ArrearMonths: "2026-05",
	})

	pdfBytes, err := svc.GeneratePayslipPDF("Acme Ghana Ltd", p, DefaultSettings())
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(pdfBytes[:4]))
}

func TestGeneratePayslipPDF_NoBankDetails(t *testing.T) {
	svc := NewService()
	p := samplePayslip()
	p.Bank = BankSnapshot{}

	pdfBytes, err := svc.GeneratePayslipPDF("Acme Ghana Ltd", p, DefaultSettings())
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(pdfBytes[:4]))
}

func TestGeneratePayslipPDF_ProratedPeriod(t *testing.T) {
	svc := NewService()
	p := samplePayslip()
	p.DaysPayable = 15
	p.TotalDays = 31
	p.ProrationFactor = decimal.NewFromFloat(15.0 / 31.0)

	pdfBytes, err := svc.GeneratePayslipPDF("Acme Ghana Ltd", p, DefaultSettings())
	require.NoError(t, err)
	assert.Equal(t, "%PDF", string(pdfBytes[:4]))
}

func TestEarningLabel(t *testing.T) {
	d := DetailLine{ComponentName: "Basic Salary", IsArrear: true, ArrearMonths: "2026-05"}
	assert.Contains(t, earningLabel(d), "arrear: 2026-05")

	plain := DetailLine{ComponentName: "Basic Salary"}
	assert.Equal(t, "Basic Salary", earningLabel(plain))
}

func TestFormatMoney(t *testing.T) {
	assert.Equal(t, "GHS 100.00", formatMoney(decimal.NewFromFloat(100), "GHS"))
	assert.Equal(t, "GHS 0.00", formatMoney(decimal.Zero, "GHS"))
}
