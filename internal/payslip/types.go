// Package payslip renders a computed payroll Item as a PDF, adapted from
// an invoice layout engine. Per spec §6, layout is explicitly NOT part of
// the core: this package only consumes what the core (orchestrator +
// payrollcalc) already computed — Item fields, Detail rows ordered by
// component.display_order, YTD aggregates, and employee/department/bank
// snapshots. It issues no queries and owns no persistence.
package payslip

import (
	"time"

	"github.com/shopspring/decimal"
)

// Settings holds payslip-specific branding, tenant-overridable the same
// way an invoice layout's settings are.
type Settings struct {
	PrimaryColor string `json:"primary_color"`
	FooterText   string `json:"footer_text"`
	CompanyLogo  string `json:"company_logo"`
}

// DefaultSettings returns the built-in payslip branding.
func DefaultSettings() Settings {
	return Settings{
		PrimaryColor: "#1d4ed8",
		FooterText:   "This payslip is computer-generated and requires no signature.",
	}
}

// EmployeeSnapshot is the employee identity/header data printed on the
// payslip, frozen at generation time (spec §6: "employee ... snapshots").
type EmployeeSnapshot struct {
	EmployeeNumber string
	FullName       string
	JobTitle       string
	Department     string
	GradeName      string
	TIN            string
	SSNITNumber    string
}

// BankSnapshot is the bank detail printed on the payslip, frozen at
// generation time (spec §6: "... bank snapshots").
type BankSnapshot struct {
	BankName      string
	BranchName    string
	AccountName   string
	AccountNumber string
}

// DetailLine is one non-zero detail row, already resolved to a
// human-readable component name and ordered by display_order by the
// caller (spec §6: "Detail rows ordered by component display_order").
type DetailLine struct {
	ComponentCode string
	ComponentName string
	DisplayOrder  int
	IsEarning     bool // EARNING vs DEDUCTION/EMPLOYER_CONTRIBUTION
	Amount        decimal.Decimal
	IsArrear      bool
	ArrearMonths  string
}

// YTDAggregates are the year-to-date sums across COMPUTED/APPROVED/PAID
// Items in the same calendar year (spec §6 Payslip contract, exact field
// set).
type YTDAggregates struct {
	Earnings              decimal.Decimal
	SSNITEmployee         decimal.Decimal
	PAYE                  decimal.Decimal
	Net                   decimal.Decimal
	ProvidentFundEmployee decimal.Decimal
	Loans                 decimal.Decimal
}

// Payslip bundles everything the layout needs for one employee's one
// payroll Item. It is assembled by the orchestrator/caller from Item,
// DetailRow, employee, department and bank data; payslip itself never
// queries a store.
type Payslip struct {
	RunNumber   string
	PeriodLabel string // e.g. "July 2026"
	PaymentDate *time.Time
	GeneratedAt time.Time
	Currency    string

	Employee EmployeeSnapshot
	Bank     BankSnapshot

	BasicSalary     decimal.Decimal
	ProratedBasic   decimal.Decimal
	ProrationFactor decimal.Decimal
	DaysPayable     int
	TotalDays       int

	GrossEarnings decimal.Decimal

	SSNITEmployee      decimal.Decimal
	SSNITEmployerTier1 decimal.Decimal
	SSNITEmployerTier2 decimal.Decimal

	TaxableIncome decimal.Decimal
	PAYE          decimal.Decimal
	OvertimeTax   decimal.Decimal
	BonusTax      decimal.Decimal

	TotalDeductions decimal.Decimal
	NetSalary       decimal.Decimal
	EmployerCost    decimal.Decimal

	Details []DetailLine
	YTD     YTDAggregates
}
