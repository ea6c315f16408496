package backpay

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ekow-ghana/payroll-core/internal/compgraph"
	"github.com/ekow-ghana/payroll-core/internal/decimalx"
	"github.com/ekow-ghana/payroll-core/internal/formula"
	"github.com/ekow-ghana/payroll-core/internal/payrollcalc"
	"github.com/ekow-ghana/payroll-core/internal/payrollerr"
)

// Service implements calculate/preview/create_request/apply_to_payroll
// (spec §4.K).
type Service struct {
	store Store
	eval  *formula.Evaluator
}

func NewService(store Store) *Service {
	return &Service{store: store, eval: formula.NewEvaluator()}
}

// Calculate runs spec §4.K's per-period restatement across every PAID/CLOSED
// period in [from, to], then aggregates totals.
func (s *Service) Calculate(ctx context.Context, schemaName, tenantID, employeeID string, from, to time.Time, reason string, referencePeriodID *string) (CalculationResult, error) {
	employee, err := s.store.EmployeeSnapshot(ctx, schemaName, tenantID, employeeID)
	if err != nil {
		return CalculationResult{}, fmt.Errorf("resolve employee: %w", err)
	}

	periods, err := s.store.PeriodsInRange(ctx, schemaName, tenantID, from, to)
	if err != nil {
		return CalculationResult{}, fmt.Errorf("resolve periods: %w", err)
	}

	var referenceAsOf *time.Time
	if referencePeriodID != nil {
		ref, err := s.store.PeriodByID(ctx, schemaName, tenantID, *referencePeriodID)
		if err != nil {
			return CalculationResult{}, fmt.Errorf("resolve reference period: %w", err)
		}
		if ref == nil {
			return CalculationResult{}, payrollerr.NotFound("Period", *referencePeriodID)
		}
		referenceAsOf = &ref.Start
	}

	arrearsApplicable, err := s.store.ArrearsApplicableComponents(ctx, schemaName, tenantID)
	if err != nil {
		return CalculationResult{}, fmt.Errorf("resolve arrears-applicable components: %w", err)
	}

	result := CalculationResult{
		EmployeeID:             employeeID,
		From:                   from,
		To:                     to,
		Reason:                 reason,
		TotalEarningsArrears:   decimalx.Zero,
		TotalDeductionsArrears: decimalx.Zero,
	}

	for _, period := range periods {
		asOf := period.Start
		if referenceAsOf != nil {
			asOf = *referenceAsOf
		}

		delta, err := s.calculatePeriod(ctx, schemaName, tenantID, employee, period, asOf, arrearsApplicable)
		if err != nil {
			return CalculationResult{}, fmt.Errorf("calculate period %s: %w", period.ID, err)
		}
		if delta == nil {
			continue
		}
		result.Periods = append(result.Periods, *delta)
		result.TotalEarningsArrears = result.TotalEarningsArrears.Add(delta.EarningsDiff)
		result.TotalDeductionsArrears = result.TotalDeductionsArrears.Add(delta.DeductionsDiff)
	}

	result.TotalEarningsArrears = decimalx.Money(result.TotalEarningsArrears)
	result.TotalDeductionsArrears = decimalx.Money(result.TotalDeductionsArrears)
	result.NetArrears = decimalx.Money(result.TotalEarningsArrears.Sub(result.TotalDeductionsArrears))
	return result, nil
}

// calculatePeriod implements spec §4.K steps 1–6 for one period: resolve the
// facts as they should have been, build should_have_paid_map and paid_map,
// diff every non-statutory code, then restate SSNIT_EMP/PAYE directly
// against the rate book effective at asOf.
func (s *Service) calculatePeriod(ctx context.Context, schemaName, tenantID string, employee compgraph.Employee, period PeriodRef, asOf time.Time, arrearsApplicable map[string]compgraph.PayComponent) (*PeriodDelta, error) {
	newInput, employed, err := resolveFacts(ctx, s.store, schemaName, tenantID, employee, period, asOf)
	if err != nil {
		return nil, err
	}

	var newResult payrollcalc.Result
	if employed {
		newResult = payrollcalc.Compute(*newInput, s.eval)
		if newResult.Status != payrollcalc.StatusOK {
			return nil, fmt.Errorf("recompute period %s: %s", period.ID, newResult.ErrorMessage)
		}
	}

	paidItem, err := s.store.PaidItem(ctx, schemaName, tenantID, period.ID, employee.ID)
	if err != nil {
		return nil, fmt.Errorf("resolve paid item: %w", err)
	}

	shouldMap := arrearsMap(newResult.Details, arrearsApplicable)
	paidMap := map[string]decimal.Decimal{}
	if paidItem != nil {
		paidMap = arrearsMap(nonArrearDetails(paidItem.Result.Details), arrearsApplicable)
	}

	delta := &PeriodDelta{
		PeriodID:    period.ID,
		PeriodStart: period.Start,
		PeriodEnd:   period.End,
	}

	codes := unionKeys(shouldMap, paidMap)
	for _, code := range codes {
		if excludedFromGenericDiff[code] {
			continue
		}
		old := paidMap[code]
		newAmt := shouldMap[code]
		diff := newAmt.Sub(old)
		if diff.IsZero() {
			continue
		}
		bucket := bucketForCode(code, newResult.Details, paidItemDetails(paidItem))
		row := DeltaRow{PeriodID: period.ID, ComponentCode: code, Bucket: bucket, OldAmount: old, NewAmount: newAmt, Diff: decimalx.Money(diff)}
		delta.Rows = append(delta.Rows, row)
		if isDeductionBucket(bucket) {
			delta.DeductionsDiff = delta.DeductionsDiff.Add(row.Diff)
		} else if bucket != payrollcalc.BucketEmployerContrib {
			delta.EarningsDiff = delta.EarningsDiff.Add(row.Diff)
		}
	}

	// Step 5 — statutory restatement, direct from the rate book effective at
	// asOf rather than the generic diff above.
	oldSSNIT, oldPAYE := decimalx.Zero, decimalx.Zero
	oldTaxable := decimalx.Zero
	if paidItem != nil {
		oldSSNIT = paidItem.Result.SSNITEmployee
		oldPAYE = paidItem.Result.PAYE
		oldTaxable = paidItem.Result.TaxableIncome
	}
	newSSNIT, newPAYE, newTaxable := decimalx.Zero, decimalx.Zero, decimalx.Zero
	if employed {
		newSSNIT = newResult.SSNITEmployee
		newPAYE = newResult.PAYE
		newTaxable = newResult.TaxableIncome
	}
	delta.OldTaxable = oldTaxable
	delta.NewTaxable = newTaxable

	if diff := newSSNIT.Sub(oldSSNIT); !diff.IsZero() {
		row := DeltaRow{PeriodID: period.ID, ComponentCode: compgraph.CodeSSNITEmp, Bucket: payrollcalc.BucketPreTaxDeduction, OldAmount: oldSSNIT, NewAmount: newSSNIT, Diff: decimalx.Money(diff)}
		delta.Rows = append(delta.Rows, row)
		delta.DeductionsDiff = delta.DeductionsDiff.Add(row.Diff)
	}
	if diff := newPAYE.Sub(oldPAYE); !diff.IsZero() {
		row := DeltaRow{PeriodID: period.ID, ComponentCode: compgraph.CodePAYE, Bucket: payrollcalc.BucketOtherDeduction, OldAmount: oldPAYE, NewAmount: newPAYE, Diff: decimalx.Money(diff)}
		delta.Rows = append(delta.Rows, row)
		delta.DeductionsDiff = delta.DeductionsDiff.Add(row.Diff)
	}

	delta.EarningsDiff = decimalx.Money(delta.EarningsDiff)
	delta.DeductionsDiff = decimalx.Money(delta.DeductionsDiff)
	delta.NetDiff = decimalx.Money(delta.EarningsDiff.Sub(delta.DeductionsDiff))

	if len(delta.Rows) == 0 {
		return nil, nil
	}
	return delta, nil
}

// CreateRequest runs Calculate then persists a PREVIEWED BackpayRequest,
// rejecting date ranges overlapping an already-APPLIED request for the same
// employee (spec §4.K "create_request").
func (s *Service) CreateRequest(ctx context.Context, schemaName, tenantID, employeeID, requestID, createdBy string, from, to time.Time, reason string, referencePeriodID *string, newSalary, oldSalary *decimal.Decimal) (Request, error) {
	overlap, err := s.store.HasOverlappingApplied(ctx, schemaName, tenantID, employeeID, from, to)
	if err != nil {
		return Request{}, fmt.Errorf("check overlap: %w", err)
	}
	if overlap {
		return Request{}, payrollerr.Validation("date_range", "overlaps an already-applied backpay request for employee %s", employeeID)
	}

	calc, err := s.Calculate(ctx, schemaName, tenantID, employeeID, from, to, reason, referencePeriodID)
	if err != nil {
		return Request{}, err
	}

	req := Request{
		ID:                requestID,
		TenantID:          tenantID,
		EmployeeID:        employeeID,
		From:              from,
		To:                to,
		Reason:            reason,
		ReferencePeriodID: referencePeriodID,
		NewSalary:         newSalary,
		OldSalary:         oldSalary,
		Status:            RequestPreviewed,
		Calculation:       calc,
		CreatedBy:         createdBy,
		CreatedAt:         time.Now(),
	}
	if err := s.store.InsertRequest(ctx, schemaName, req); err != nil {
		return Request{}, fmt.Errorf("insert request: %w", err)
	}
	return req, nil
}

// Preview shapes a CalculationResult for the wire — decimals as strings,
// mirroring the Python source's preview() step (SPEC_FULL.md §12.4).
func (s *Service) Preview(calc CalculationResult) Preview {
	p := Preview{
		EmployeeID:             calc.EmployeeID,
		From:                   calc.From.Format("2006-01-02"),
		To:                     calc.To.Format("2006-01-02"),
		TotalEarningsArrears:   calc.TotalEarningsArrears.StringFixed(2),
		TotalDeductionsArrears: calc.TotalDeductionsArrears.StringFixed(2),
		NetArrears:             calc.NetArrears.StringFixed(2),
	}
	for _, period := range calc.Periods {
		for _, row := range period.Rows {
			p.Rows = append(p.Rows, PreviewRow{
				PeriodID:      row.PeriodID,
				ComponentCode: row.ComponentCode,
				OldAmount:     row.OldAmount.StringFixed(2),
				NewAmount:     row.NewAmount.StringFixed(2),
				Diff:          row.Diff.StringFixed(2),
			})
		}
	}
	return p
}

// ApplyToPayroll implements spec §4.K's apply_to_payroll: one arrear Detail
// row per component, totalled across every period of the request, written
// onto the employee's Item in the target run. The APPROVED -> APPLIED
// transition is one-way (idempotence invariant): a second call fails.
func (s *Service) ApplyToPayroll(ctx context.Context, schemaName, tenantID, requestID, runID string) error {
	req, err := s.store.LoadRequest(ctx, schemaName, tenantID, requestID)
	if err != nil {
		return fmt.Errorf("load request: %w", err)
	}
	if req == nil {
		return payrollerr.NotFound("BackpayRequest", requestID)
	}
	if req.Status != RequestApproved {
		return payrollerr.IllegalTransition("BackpayRequest", "apply", string(req.Status), string(RequestApplied))
	}

	item, err := s.store.ItemInRun(ctx, schemaName, runID, req.EmployeeID)
	if err != nil {
		return fmt.Errorf("resolve target item: %w", err)
	}
	if item == nil {
		return payrollerr.Validation("run_id", "no payroll item exists for employee %s in run %s", req.EmployeeID, runID)
	}

	totals := componentTotals(req.Calculation)
	if len(totals) == 0 {
		return payrollerr.Validation("request_id", "request %s has no non-zero arrears to apply", requestID)
	}

	if err := s.store.ApplyArrears(ctx, schemaName, runID, req.EmployeeID, requestID, totals); err != nil {
		return fmt.Errorf("apply arrears: %w", err)
	}
	if err := s.store.MarkApplied(ctx, schemaName, requestID, runID, time.Now()); err != nil {
		return fmt.Errorf("mark applied: %w", err)
	}
	return nil
}

// ApplyApprovedRequests implements spec §4.I step 6: every APPROVED request
// with applied_to_run IS NULL is attempted against this run; one request's
// failure is isolated and counted, never aborting the others. It satisfies
// orchestrator.BackpayApplier without the orchestrator importing this
// package directly.
func (s *Service) ApplyApprovedRequests(ctx context.Context, schemaName, tenantID, runID, periodID string) (applied int, failed int, err error) {
	requests, err := s.approvedUnappliedForPeriod(ctx, schemaName, tenantID, periodID)
	if err != nil {
		return 0, 0, err
	}
	for _, req := range requests {
		if applyErr := s.ApplyToPayroll(ctx, schemaName, tenantID, req.ID, runID); applyErr != nil {
			failed++
			continue
		}
		applied++
	}
	return applied, failed, nil
}

func (s *Service) approvedUnappliedForPeriod(ctx context.Context, schemaName, tenantID, periodID string) ([]Request, error) {
	lister, ok := s.store.(ApprovedRequestLister)
	if !ok {
		return nil, nil
	}
	return lister.ApprovedUnappliedForPeriod(ctx, schemaName, tenantID, periodID)
}

// ApprovedRequestLister is an optional Store extension implemented by the
// concrete Repository; kept separate from Store's required surface so unit
// tests exercising Calculate/ApplyToPayroll don't need to stub it.
type ApprovedRequestLister interface {
	ApprovedUnappliedForPeriod(ctx context.Context, schemaName, tenantID, periodID string) ([]Request, error)
}

func arrearsMap(details []payrollcalc.DetailRow, arrearsApplicable map[string]compgraph.PayComponent) map[string]decimal.Decimal {
	out := map[string]decimal.Decimal{}
	for _, d := range details {
		if d.ComponentCode == "" {
			continue
		}
		if _, ok := arrearsApplicable[d.ComponentCode]; !ok {
			continue
		}
		out[d.ComponentCode] = decimalx.Money(out[d.ComponentCode].Add(d.Amount))
	}
	return out
}

func nonArrearDetails(details []payrollcalc.DetailRow) []payrollcalc.DetailRow {
	var out []payrollcalc.DetailRow
	for _, d := range details {
		if d.IsArrear {
			continue
		}
		out = append(out, d)
	}
	return out
}

func paidItemDetails(item *PaidItem) []payrollcalc.DetailRow {
	if item == nil {
		return nil
	}
	return item.Result.Details
}

func bucketForCode(code string, newDetails, oldDetails []payrollcalc.DetailRow) payrollcalc.Bucket {
	for _, d := range newDetails {
		if d.ComponentCode == code {
			return d.Bucket
		}
	}
	for _, d := range oldDetails {
		if d.ComponentCode == code {
			return d.Bucket
		}
	}
	return payrollcalc.BucketRegularTaxable
}

func isDeductionBucket(b payrollcalc.Bucket) bool {
	return b == payrollcalc.BucketPreTaxDeduction || b == payrollcalc.BucketOtherDeduction
}

func unionKeys(a, b map[string]decimal.Decimal) []string {
	seen := map[string]bool{}
	var out []string
	for k := range a {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	for k := range b {
		if !seen[k] {
			seen[k] = true
			out = append(out, k)
		}
	}
	return out
}

// componentTotals sums every delta row's diff across all periods of a
// request, grouped by component code — the grain apply_to_payroll writes
// (spec §4.K: "For each (component, total_diff) across all periods of the
// request, emit one PayrollItemDetail row").
func componentTotals(calc CalculationResult) []ComponentTotal {
	totals := map[string]*ComponentTotal{}
	var order []string
	for _, period := range calc.Periods {
		seenInPeriod := map[string]bool{}
		for _, row := range period.Rows {
			t, ok := totals[row.ComponentCode]
			if !ok {
				t = &ComponentTotal{ComponentCode: row.ComponentCode, Bucket: row.Bucket, TotalDiff: decimalx.Zero}
				totals[row.ComponentCode] = t
				order = append(order, row.ComponentCode)
			}
			t.TotalDiff = t.TotalDiff.Add(row.Diff)
			if !seenInPeriod[row.ComponentCode] {
				seenInPeriod[row.ComponentCode] = true
				t.PeriodCount++
			}
		}
	}

	var out []ComponentTotal
	for _, code := range order {
		t := totals[code]
		t.TotalDiff = decimalx.Money(t.TotalDiff)
		if t.TotalDiff.IsZero() {
			continue
		}
		out = append(out, *t)
	}
	return out
}
