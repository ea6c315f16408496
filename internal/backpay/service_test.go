package backpay

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ekow-ghana/payroll-core/internal/compgraph"
	"github.com/ekow-ghana/payroll-core/internal/overlay"
	"github.com/ekow-ghana/payroll-core/internal/payrollcalc"
	"github.com/ekow-ghana/payroll-core/internal/ratebook"
)

func d(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func date(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func testRateBook() ratebook.Active {
	max1 := d("3896.67")
	return ratebook.Active{
		TaxBrackets: []ratebook.TaxBracket{
			{Order: 1, Min: d("0"), Max: &max1, RatePct: d("0")},
			{Order: 2, Min: max1, RatePct: d("25")},
		},
		SSNITRates: map[ratebook.SSNITTier]ratebook.SSNITRate{
			ratebook.Tier1: {Tier: ratebook.Tier1, EmployeePct: d("5.5"), EmployerPct: d("13")},
			ratebook.Tier2: {Tier: ratebook.Tier2, EmployeePct: d("5"), EmployerPct: d("0")},
		},
		OvertimeBonus: ratebook.DefaultOvertimeBonusTaxConfig(),
	}
}

func basicComponent() compgraph.PayComponent {
	return compgraph.PayComponent{
		ID: "basic", Code: compgraph.CodeBasic, Type: compgraph.ComponentEarning,
		CalcKind: compgraph.CalcFixed, IsTaxable: true, IsProrated: true, IsArrearsApplicable: true,
	}
}

// fakeStore is an in-memory Store used by service tests — no database.
type fakeStore struct {
	employee    compgraph.Employee
	periods     []PeriodRef
	salaries    map[string]*compgraph.EmployeeSalary // keyed by period ID via asOf lookup helper
	salaryAsOf  func(asOf time.Time) *compgraph.EmployeeSalary
	basic       compgraph.PayComponent
	components  map[string]compgraph.PayComponent
	arrears     map[string]compgraph.PayComponent
	rateBook    payrollcalc.RateBook
	paidItems   map[string]*PaidItem // keyed by period ID

	requests          map[string]Request
	overlapApplied    bool
	items             map[string]*PaidItem // keyed by runID+"/"+employeeID
	appliedArrears    map[string][]ComponentTotal
	approvedUnapplied []Request
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		components: map[string]compgraph.PayComponent{},
		arrears:    map[string]compgraph.PayComponent{},
		paidItems:  map[string]*PaidItem{},
		requests:   map[string]Request{},
		items:      map[string]*PaidItem{},
	}
}

func (f *fakeStore) PeriodsInRange(ctx context.Context, schemaName, tenantID string, from, to time.Time) ([]PeriodRef, error) {
	return f.periods, nil
}
func (f *fakeStore) PeriodByID(ctx context.Context, schemaName, tenantID, periodID string) (*PeriodRef, error) {
	for _, p := range f.periods {
		if p.ID == periodID {
			return &p, nil
		}
	}
	return nil, nil
}
func (f *fakeStore) EmployeeSnapshot(ctx context.Context, schemaName, tenantID, employeeID string) (compgraph.Employee, error) {
	return f.employee, nil
}
func (f *fakeStore) ApplicableSalaryAsOf(ctx context.Context, schemaName, tenantID, employeeID string, asOf time.Time) (*compgraph.EmployeeSalary, error) {
	if f.salaryAsOf == nil {
		return nil, nil
	}
	return f.salaryAsOf(asOf), nil
}
func (f *fakeStore) SalaryComponents(ctx context.Context, schemaName, employeeSalaryID string) ([]compgraph.EmployeeSalaryComponent, error) {
	return nil, nil
}
func (f *fakeStore) BasicComponent(ctx context.Context, schemaName, tenantID string) (compgraph.PayComponent, error) {
	return f.basic, nil
}
func (f *fakeStore) ComponentByID(ctx context.Context, schemaName, componentID string) (*compgraph.PayComponent, error) {
	if c, ok := f.components[componentID]; ok {
		return &c, nil
	}
	return nil, nil
}
func (f *fakeStore) ArrearsApplicableComponents(ctx context.Context, schemaName, tenantID string) (map[string]compgraph.PayComponent, error) {
	return f.arrears, nil
}
func (f *fakeStore) GradeForPeriod(ctx context.Context, schemaName, tenantID, employeeID string, asOf time.Time, employee compgraph.Employee, salary *compgraph.EmployeeSalary) (*compgraph.Grade, error) {
	return nil, nil
}
func (f *fakeStore) LevelForNotch(ctx context.Context, schemaName string, notchID *string) (*compgraph.SalaryLevel, error) {
	return nil, nil
}
func (f *fakeStore) ApplicableTransactions(ctx context.Context, schemaName, tenantID string, employee compgraph.Employee, grade *compgraph.Grade, level *compgraph.SalaryLevel, period overlay.Period, covered map[string]bool) ([]overlay.EmployeeTransaction, error) {
	return nil, nil
}
func (f *fakeStore) RateBookAt(ctx context.Context, schemaName, tenantID string, asOf time.Time) (payrollcalc.RateBook, error) {
	return f.rateBook, nil
}
func (f *fakeStore) PaidItem(ctx context.Context, schemaName, tenantID, periodID, employeeID string) (*PaidItem, error) {
	return f.paidItems[periodID], nil
}
func (f *fakeStore) HasOverlappingApplied(ctx context.Context, schemaName, tenantID, employeeID string, from, to time.Time) (bool, error) {
	return f.overlapApplied, nil
}
func (f *fakeStore) InsertRequest(ctx context.Context, schemaName string, req Request) error {
	f.requests[req.ID] = req
	return nil
}
func (f *fakeStore) LoadRequest(ctx context.Context, schemaName, tenantID, requestID string) (*Request, error) {
	req, ok := f.requests[requestID]
	if !ok {
		return nil, nil
	}
	return &req, nil
}
func (f *fakeStore) UpdateRequestStatus(ctx context.Context, schemaName, requestID string, status RequestStatus) error {
	req := f.requests[requestID]
	req.Status = status
	f.requests[requestID] = req
	return nil
}
func (f *fakeStore) ItemInRun(ctx context.Context, schemaName, runID, employeeID string) (*PaidItem, error) {
	return f.items[runID+"/"+employeeID], nil
}
func (f *fakeStore) ApplyArrears(ctx context.Context, schemaName, runID, employeeID, requestID string, totals []ComponentTotal) error {
	if f.appliedArrears == nil {
		f.appliedArrears = map[string][]ComponentTotal{}
	}
	f.appliedArrears[requestID] = totals
	return nil
}
func (f *fakeStore) MarkApplied(ctx context.Context, schemaName, requestID, runID string, appliedAt time.Time) error {
	req := f.requests[requestID]
	req.Status = RequestApplied
	req.AppliedToRunID = &runID
	f.requests[requestID] = req
	return nil
}
func (f *fakeStore) ApprovedUnappliedForPeriod(ctx context.Context, schemaName, tenantID, periodID string) ([]Request, error) {
	return f.approvedUnapplied, nil
}

func TestCalculate_NoPeriods_ReturnsZeroTotals(t *testing.T) {
	store := newFakeStore()
	store.employee = compgraph.Employee{ID: "e1", DateOfJoining: date("2018-01-01"), IsResident: true}
	svc := NewService(store)

	res, err := svc.Calculate(context.Background(), "tenant_acme", "t1", "e1", date("2026-01-01"), date("2026-12-31"), "salary revision", nil)
	require.NoError(t, err)
	assert.True(t, res.NetArrears.IsZero())
	assert.Empty(t, res.Periods)
}

// TestCalculate_SalaryIncreaseAfterClose_ProducesBasicAndSSNITArrears
// exercises spec §4.K end to end: a period was paid at the old basic salary;
// the employee's current (as-of) salary is higher, so Calculate must surface
// a BASIC delta plus a restated SSNIT_EMP delta, skipping PAYE/SSNIT from
// the generic diff in favour of the direct rate-book restatement.
func TestCalculate_SalaryIncreaseAfterClose_ProducesBasicAndSSNITArrears(t *testing.T) {
	store := newFakeStore()
	basic := basicComponent()
	store.basic = basic
	store.components[basic.ID] = basic
	store.arrears[basic.Code] = basic
	store.rateBook = testRateBook()

	period := PeriodRef{ID: "p1", Start: date("2026-01-01"), End: date("2026-01-31"), Status: "PAID"}
	store.periods = []PeriodRef{period}
	store.employee = compgraph.Employee{ID: "e1", DateOfJoining: date("2018-01-01"), IsResident: true}

	oldSalary := &compgraph.EmployeeSalary{ID: "sal-old", BasicSalary: d("2000"), EffectiveFrom: date("2018-01-01"), IsCurrent: false}
	newSalary := &compgraph.EmployeeSalary{ID: "sal-new", BasicSalary: d("2500"), EffectiveFrom: date("2026-01-01"), IsCurrent: true}
	store.salaryAsOf = func(asOf time.Time) *compgraph.EmployeeSalary {
		if !asOf.Before(newSalary.EffectiveFrom) {
			return newSalary
		}
		return oldSalary
	}

	oldInput := payrollcalc.Input{
		Employee: store.employee, Period: overlay.Period{ID: period.ID, Start: period.Start, End: period.End},
		CurrentSalary: oldSalary, BasicComponent: basic,
		ComponentsByID: map[string]compgraph.PayComponent{basic.ID: basic},
		Active:         testRateBook(),
	}
	oldResult := payrollcalc.Compute(oldInput, nil)
	require.Equal(t, payrollcalc.StatusOK, oldResult.Status)
	store.paidItems[period.ID] = &PaidItem{RunID: "run1", ItemID: "item1", Result: oldResult}

	svc := NewService(store)
	res, err := svc.Calculate(context.Background(), "tenant_acme", "t1", "e1", date("2026-01-01"), date("2026-01-31"), "salary revision", nil)
	require.NoError(t, err)
	require.Len(t, res.Periods, 1)

	var sawBasic, sawSSNIT bool
	for _, row := range res.Periods[0].Rows {
		if row.ComponentCode == compgraph.CodeBasic {
			sawBasic = true
			assert.True(t, row.Diff.GreaterThan(decimalZero()))
		}
		if row.ComponentCode == compgraph.CodeSSNITEmp {
			sawSSNIT = true
			assert.True(t, row.Diff.GreaterThan(decimalZero()))
		}
	}
	assert.True(t, sawBasic, "expected a BASIC delta row")
	assert.True(t, sawSSNIT, "expected an SSNIT_EMP delta row restated directly")
	assert.True(t, res.TotalEarningsArrears.GreaterThan(decimalZero()))
	assert.True(t, res.NetArrears.GreaterThan(decimalZero()))
}

func TestCalculate_EmployeeNotYetEmployed_SkipsPeriod(t *testing.T) {
	store := newFakeStore()
	store.basic = basicComponent()
	store.rateBook = testRateBook()
	period := PeriodRef{ID: "p1", Start: date("2026-01-01"), End: date("2026-01-31"), Status: "CLOSED"}
	store.periods = []PeriodRef{period}
	store.employee = compgraph.Employee{ID: "e1", DateOfJoining: date("2026-06-01"), IsResident: true}
	store.salaryAsOf = func(asOf time.Time) *compgraph.EmployeeSalary { return nil } // not hired yet

	svc := NewService(store)
	res, err := svc.Calculate(context.Background(), "tenant_acme", "t1", "e1", date("2026-01-01"), date("2026-01-31"), "backfill check", nil)
	require.NoError(t, err)
	assert.Empty(t, res.Periods)
	assert.True(t, res.NetArrears.IsZero())
}

func TestCreateRequest_RejectsOverlapWithAppliedRequest(t *testing.T) {
	store := newFakeStore()
	store.overlapApplied = true
	svc := NewService(store)

	_, err := svc.CreateRequest(context.Background(), "tenant_acme", "t1", "e1", "req1", "hr-admin",
		date("2026-01-01"), date("2026-01-31"), "dup", nil, nil, nil)
	assert.Error(t, err)
}

func TestApplyToPayroll_RequiresApprovedStatus(t *testing.T) {
	store := newFakeStore()
	store.requests["req1"] = Request{ID: "req1", Status: RequestPreviewed}
	svc := NewService(store)

	err := svc.ApplyToPayroll(context.Background(), "tenant_acme", "t1", "req1", "run1")
	assert.Error(t, err)
}

func TestApplyToPayroll_ApprovedWithArrears_MarksApplied(t *testing.T) {
	store := newFakeStore()
	basic := basicComponent()
	calc := CalculationResult{
		EmployeeID: "e1",
		Periods: []PeriodDelta{
			{PeriodID: "p1", Rows: []DeltaRow{
				{PeriodID: "p1", ComponentCode: basic.Code, Bucket: payrollcalc.BucketRegularTaxable, Diff: d("100")},
			}},
		},
	}
	store.requests["req1"] = Request{ID: "req1", EmployeeID: "e1", Status: RequestApproved, Calculation: calc}
	store.items["run1/e1"] = &PaidItem{RunID: "run1", ItemID: "item1", Result: payrollcalc.Result{
		GrossEarnings: d("3000"), TotalDeductions: d("300"), NetSalary: d("2700"),
	}}

	svc := NewService(store)
	err := svc.ApplyToPayroll(context.Background(), "tenant_acme", "t1", "req1", "run1")
	require.NoError(t, err)

	assert.Equal(t, RequestApplied, store.requests["req1"].Status)
	require.Len(t, store.appliedArrears["req1"], 1)
	assert.True(t, store.appliedArrears["req1"][0].TotalDiff.Equal(d("100")))
}

func TestApplyToPayroll_NoNonZeroArrears_Fails(t *testing.T) {
	store := newFakeStore()
	store.requests["req1"] = Request{ID: "req1", EmployeeID: "e1", Status: RequestApproved, Calculation: CalculationResult{}}
	store.items["run1/e1"] = &PaidItem{RunID: "run1", ItemID: "item1"}

	svc := NewService(store)
	err := svc.ApplyToPayroll(context.Background(), "tenant_acme", "t1", "req1", "run1")
	assert.Error(t, err)
}

func TestApplyApprovedRequests_IsolatesOneFailure(t *testing.T) {
	store := newFakeStore()
	calc := CalculationResult{Periods: []PeriodDelta{{PeriodID: "p1", Rows: []DeltaRow{
		{PeriodID: "p1", ComponentCode: "BASIC", Bucket: payrollcalc.BucketRegularTaxable, Diff: d("50")},
	}}}}
	store.requests["ok"] = Request{ID: "ok", EmployeeID: "e1", Status: RequestApproved, Calculation: calc}
	store.requests["bad"] = Request{ID: "bad", EmployeeID: "e2", Status: RequestApproved, Calculation: calc}
	store.items["run1/e1"] = &PaidItem{RunID: "run1", ItemID: "item1"}
	// no item for e2 in run1 -> ApplyToPayroll fails for "bad"
	store.approvedUnapplied = []Request{store.requests["ok"], store.requests["bad"]}

	svc := NewService(store)
	applied, failed, err := svc.ApplyApprovedRequests(context.Background(), "tenant_acme", "t1", "run1", "p1")
	require.NoError(t, err)
	assert.Equal(t, 1, applied)
	assert.Equal(t, 1, failed)
}

func decimalZero() decimal.Decimal { return decimal.NewFromInt(0) }
