package payslip

import (
	"fmt"
	"sort"

	"github.com/johnfercher/maroto/v2"
	"github.com/johnfercher/maroto/v2/pkg/components/col"
	"github.com/johnfercher/maroto/v2/pkg/components/line"
	"github.com/johnfercher/maroto/v2/pkg/components/text"
	"github.com/johnfercher/maroto/v2/pkg/config"
	"github.com/johnfercher/maroto/v2/pkg/consts/align"
	"github.com/johnfercher/maroto/v2/pkg/consts/border"
	"github.com/johnfercher/maroto/v2/pkg/consts/fontstyle"
	"github.com/johnfercher/maroto/v2/pkg/core"
	"github.com/johnfercher/maroto/v2/pkg/props"
	"github.com/shopspring/decimal"
)

// Service renders Payslip values to PDF, following the same maroto page
// layout conventions as an invoice renderer: left/top/right margins of
// 15, page-number footer, header/title/table/totals/footer row
// structure.
type Service struct{}

func NewService() *Service {
	return &Service{}
}

// GeneratePayslipPDF renders one employee's payslip for one run.
func (s *Service) GeneratePayslipPDF(companyName string, p *Payslip, settings Settings) ([]byte, error) {
	cfg := config.NewBuilder().
		WithPageNumber(props.PageNumber{
			Pattern: "Page {current} of {total}",
			Place:   props.RightBottom,
			Size:    8,
		}).
		WithLeftMargin(15).
		WithTopMargin(15).
		WithRightMargin(15).
		Build()

	m := maroto.New(cfg)

	s.addHeader(m, companyName, p)
	s.addEmployeeInfo(m, p)
	s.addEarningsAndDeductions(m, p)
	s.addTotals(m, p)
	s.addYTD(m, p)
	s.addFooter(m, settings)

	doc, err := m.Generate()
	if err != nil {
		return nil, fmt.Errorf("failed to generate payslip PDF: %w", err)
	}
	return doc.GetBytes(), nil
}

func (s *Service) addHeader(m core.Maroto, companyName string, p *Payslip) {
	m.AddRow(18,
		col.New(8).Add(
			text.New(companyName, props.Text{
				Size:  16,
				Style: fontstyle.Bold,
				Align: align.Left,
			}),
		),
		col.New(4).Add(
			text.New(fmt.Sprintf("Run: %s", p.RunNumber), props.Text{
				Size:  9,
				Align: align.Right,
			}),
		),
	)

	m.AddRow(7,
		col.New(8).Add(
			text.New("Payslip", props.Text{
				Size:  13,
				Style: fontstyle.Bold,
				Align: align.Left,
			}),
		),
		col.New(4).Add(
			text.New(fmt.Sprintf("Period: %s", p.PeriodLabel), props.Text{
				Size:  9,
				Align: align.Right,
			}),
		),
	)

	if p.PaymentDate != nil {
		m.AddRow(5,
			col.New(12).Add(
				text.New(fmt.Sprintf("Payment Date: %s", p.PaymentDate.Format("02.01.2006")), props.Text{
					Size:  9,
					Align: align.Right,
				}),
			),
		)
	}

	m.AddRow(5)
	m.AddRow(1,
		col.New(12).Add(line.New(props.Line{Thickness: 0.5})),
	)
	m.AddRow(5)
}

func (s *Service) addEmployeeInfo(m core.Maroto, p *Payslip) {
	e := p.Employee
	labelStyle := props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Left}
	valueStyle := props.Text{Size: 9, Align: align.Left}

	m.AddRow(6,
		col.New(3).Add(text.New("Employee:", labelStyle)),
		col.New(3).Add(text.New(e.FullName, valueStyle)),
		col.New(3).Add(text.New("Employee No.:", labelStyle)),
		col.New(3).Add(text.New(e.EmployeeNumber, valueStyle)),
	)
	m.AddRow(6,
		col.New(3).Add(text.New("Department:", labelStyle)),
		col.New(3).Add(text.New(e.Department, valueStyle)),
		col.New(3).Add(text.New("Grade:", labelStyle)),
		col.New(3).Add(text.New(e.GradeName, valueStyle)),
	)
	m.AddRow(6,
		col.New(3).Add(text.New("TIN:", labelStyle)),
		col.New(3).Add(text.New(e.TIN, valueStyle)),
		col.New(3).Add(text.New("SSNIT No.:", labelStyle)),
		col.New(3).Add(text.New(e.SSNITNumber, valueStyle)),
	)
	if p.Bank.BankName != "" {
		m.AddRow(6,
			col.New(3).Add(text.New("Bank:", labelStyle)),
			col.New(3).Add(text.New(p.Bank.BankName, valueStyle)),
			col.New(3).Add(text.New("Account No.:", labelStyle)),
			col.New(3).Add(text.New(p.Bank.AccountNumber, valueStyle)),
		)
	}
	if p.DaysPayable != p.TotalDays && p.TotalDays > 0 {
		m.AddRow(6,
			col.New(6).Add(text.New(
				fmt.Sprintf("Days Payable: %d / %d (factor %s)", p.DaysPayable, p.TotalDays, p.ProrationFactor.StringFixed(4)),
				valueStyle,
			)),
		)
	}

	m.AddRow(6)
}

// addEarningsAndDeductions renders the Detail rows in two side-by-side
// tables, each ordered by display_order per spec §6.
func (s *Service) addEarningsAndDeductions(m core.Maroto, p *Payslip) {
	details := make([]DetailLine, len(p.Details))
	copy(details, p.Details)
	sort.SliceStable(details, func(i, j int) bool { return details[i].DisplayOrder < details[j].DisplayOrder })

	headerStyle := props.Text{Size: 9, Style: fontstyle.Bold, Align: align.Left}

	m.AddRow(7,
		col.New(6).Add(text.New("Earnings", headerStyle)),
		col.New(6).Add(text.New("Deductions", headerStyle)),
	).WithStyle(&props.Cell{
		BackgroundColor: &props.Color{Red: 240, Green: 240, Blue: 240},
		BorderType:      border.Bottom,
		BorderThickness: 0.5,
	})

	var earnings, deductions []DetailLine
	for _, d := range details {
		if d.IsEarning {
			earnings = append(earnings, d)
		} else {
			deductions = append(deductions, d)
		}
	}

	rows := len(earnings)
	if len(deductions) > rows {
		rows = len(deductions)
	}

	for i := 0; i < rows; i++ {
		var earnName, earnAmt, dedName, dedAmt string
		if i < len(earnings) {
			earnName = earningLabel(earnings[i])
			earnAmt = formatMoney(earnings[i].Amount, p.Currency)
		}
		if i < len(deductions) {
			dedName = earningLabel(deductions[i])
			dedAmt = formatMoney(deductions[i].Amount, p.Currency)
		}

		m.AddRow(6,
			col.New(4).Add(text.New(earnName, props.Text{Size: 9, Align: align.Left})),
			col.New(2).Add(text.New(earnAmt, props.Text{Size: 9, Align: align.Right})),
			col.New(4).Add(text.New(dedName, props.Text{Size: 9, Align: align.Left})),
			col.New(2).Add(text.New(dedAmt, props.Text{Size: 9, Align: align.Right})),
		).WithStyle(&props.Cell{BorderType: border.Bottom, BorderThickness: 0.2})
	}

	m.AddRow(5)
}

func earningLabel(d DetailLine) string {
	if d.IsArrear {
		suffix := "arrear"
		if d.ArrearMonths != "" {
			suffix = fmt.Sprintf("arrear: %s", d.ArrearMonths)
		}
		return fmt.Sprintf("%s (%s)", d.ComponentName, suffix)
	}
	return d.ComponentName
}

func (s *Service) addTotals(m core.Maroto, p *Payslip) {
	labelStyle := props.Text{Size: 10, Align: align.Left}
	labelBoldStyle := props.Text{Size: 11, Style: fontstyle.Bold, Align: align.Left}
	valStyle := props.Text{Size: 10, Align: align.Right}
	valBoldStyle := props.Text{Size: 11, Style: fontstyle.Bold, Align: align.Right}

	m.AddRow(6,
		col.New(8),
		col.New(2).Add(text.New("Gross Earnings:", labelStyle)),
		col.New(2).Add(text.New(formatMoney(p.GrossEarnings, p.Currency), valStyle)),
	)
	m.AddRow(6,
		col.New(8),
		col.New(2).Add(text.New("Total Deductions:", labelStyle)),
		col.New(2).Add(text.New(formatMoney(p.TotalDeductions, p.Currency), valStyle)),
	)
	m.AddRow(1,
		col.New(8),
		col.New(4).Add(line.New(props.Line{Thickness: 0.5})),
	)
	m.AddRow(8,
		col.New(8),
		col.New(2).Add(text.New("NET PAY:", labelBoldStyle)),
		col.New(2).Add(text.New(formatMoney(p.NetSalary, p.Currency), valBoldStyle)),
	)
	m.AddRow(6,
		col.New(8),
		col.New(2).Add(text.New("Employer SSNIT (Tier 1+2):", labelStyle)),
		col.New(2).Add(text.New(formatMoney(p.SSNITEmployerTier1.Add(p.SSNITEmployerTier2), p.Currency), valStyle)),
	)
	m.AddRow(6,
		col.New(8),
		col.New(2).Add(text.New("Employer Cost:", labelStyle)),
		col.New(2).Add(text.New(formatMoney(p.EmployerCost, p.Currency), valStyle)),
	)
	m.AddRow(8)
}

func (s *Service) addYTD(m core.Maroto, p *Payslip) {
	m.AddRow(7,
		col.New(12).Add(text.New("Year-to-Date", props.Text{Size: 10, Style: fontstyle.Bold, Align: align.Left})),
	).WithStyle(&props.Cell{
		BackgroundColor: &props.Color{Red: 240, Green: 240, Blue: 240},
		BorderType:      border.Bottom,
		BorderThickness: 0.5,
	})

	cellStyle := props.Text{Size: 9, Align: align.Left}
	cellStyleRight := props.Text{Size: 9, Align: align.Right}

	rows := []struct {
		label string
		value decimal.Decimal
	}{
		{"Earnings", p.YTD.Earnings},
		{"SSNIT (Employee)", p.YTD.SSNITEmployee},
		{"PAYE", p.YTD.PAYE},
		{"Net Pay", p.YTD.Net},
		{"Provident Fund (Employee)", p.YTD.ProvidentFundEmployee},
		{"Loans", p.YTD.Loans},
	}

	for _, r := range rows {
		m.AddRow(5,
			col.New(8).Add(text.New(r.label, cellStyle)),
			col.New(4).Add(text.New(formatMoney(r.value, p.Currency), cellStyleRight)),
		)
	}
	m.AddRow(8)
}

func (s *Service) addFooter(m core.Maroto, settings Settings) {
	if settings.FooterText == "" {
		return
	}
	m.AddRow(10)
	m.AddRow(6,
		col.New(12).Add(
			text.New(settings.FooterText, props.Text{
				Size:  9,
				Style: fontstyle.Italic,
				Align: align.Center,
			}),
		),
	)
}

func formatMoney(amount decimal.Decimal, currency string) string {
	return fmt.Sprintf("%s %s", currency, amount.StringFixed(2))
}
