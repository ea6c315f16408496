package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/ekow-ghana/payroll-core/internal/compgraph"
	"github.com/ekow-ghana/payroll-core/internal/formula"
	"github.com/ekow-ghana/payroll-core/internal/lifecycle"
	"github.com/ekow-ghana/payroll-core/internal/overlay"
	"github.com/ekow-ghana/payroll-core/internal/payrollcalc"
	"github.com/ekow-ghana/payroll-core/internal/payrollerr"
	"github.com/ekow-ghana/payroll-core/internal/ratebook"
)

// Config tunes the employee-level worker pool compute(run) runs with.
type Config struct {
	Concurrency    int
	RequestsPerSec float64 // throttles employee computations against shared DB/connection capacity
}

func DefaultConfig() Config {
	return Config{Concurrency: 8, RequestsPerSec: 50}
}

// Service implements compute(run) (spec §4.I). It takes no global logger —
// the caller's zerolog.Logger is threaded in explicitly, per this
// repository's ambient-logging convention.
type Service struct {
	store    Store
	backpay  BackpayApplier
	rates    *ratebook.Service
	progress *ProgressStore
	eval     *formula.Evaluator
	locks    lifecycle.RunLocker
	cfg      Config
	log      zerolog.Logger
}

func NewService(store Store, backpay BackpayApplier, rates *ratebook.Service, progress *ProgressStore, locks lifecycle.RunLocker, cfg Config, logger zerolog.Logger) *Service {
	return &Service{
		store:    store,
		backpay:  backpay,
		rates:    rates,
		progress: progress,
		eval:     formula.NewEvaluator(),
		locks:    locks,
		cfg:      cfg,
		log:      logger,
	}
}

// Compute runs the nine steps of spec §4.I for one run. A concurrent compute
// or lifecycle transition already holding runID's lock makes the loser fail
// with ConcurrencyConflict (spec §5) instead of racing the same Run.
func (s *Service) Compute(ctx context.Context, schemaName, tenantID, runID, actorID string) error {
	release, acquired, err := s.locks.TryLock(ctx, runID)
	if err != nil {
		return fmt.Errorf("acquire run lock: %w", err)
	}
	if !acquired {
		return payrollerr.ConcurrencyConflict("Run " + runID)
	}
	defer release()

	run, err := s.store.LoadRun(ctx, schemaName, tenantID, runID)
	if err != nil {
		return fmt.Errorf("load run: %w", err)
	}
	if run == nil {
		return payrollerr.NotFound("Run", runID)
	}

	period, err := s.store.LoadPeriod(ctx, schemaName, tenantID, run.PeriodID)
	if err != nil {
		return fmt.Errorf("load period: %w", err)
	}
	if period == nil {
		return payrollerr.NotFound("Period", run.PeriodID)
	}

	// Step 1 — precondition.
	if _, err := lifecycle.TransitionRun(lifecycle.OpCompute, run.Status); err != nil {
		return err
	}
	if period.Status == lifecycle.PeriodPaid || period.Status == lifecycle.PeriodClosed {
		return payrollerr.IllegalTransition("Period", "compute", string(period.Status), string(lifecycle.PeriodComputed))
	}

	// Step 2 — idempotent recompute.
	if err := s.store.DeleteItems(ctx, schemaName, runID); err != nil {
		return fmt.Errorf("delete existing items: %w", err)
	}

	// Step 3 — mark COMPUTING.
	if err := s.store.UpdateRunStatus(ctx, schemaName, runID, lifecycle.RunComputing); err != nil {
		return fmt.Errorf("mark run computing: %w", err)
	}

	employees, err := s.store.EligibleEmployees(ctx, schemaName, tenantID, period.End)
	if err != nil {
		return fmt.Errorf("load eligible employees: %w", err)
	}

	// The Rate Book never changes mid-run (spec §4.A); resolve it once for
	// the whole period rather than once per employee.
	rates, err := s.rates.Active(ctx, schemaName, tenantID, period.End)
	if err != nil {
		return fmt.Errorf("resolve rate book: %w", err)
	}

	// Step 4 — progress record.
	startedAt := time.Now()
	s.progress.Set(Progress{RunID: runID, Status: ProgressComputing, Total: len(employees), StartedAt: startedAt})

	s.log.Info().Str("run_id", runID).Int("employee_count", len(employees)).Msg("payroll run compute started")

	// Step 5 — per-employee loop, concurrent with error isolation.
	items := s.computeItems(ctx, schemaName, tenantID, runID, period, rates, employees)
	for _, item := range items {
		if err := s.store.InsertItem(ctx, schemaName, item); err != nil {
			s.log.Error().Err(err).Str("employee_id", item.EmployeeID).Msg("failed to persist item")
		}
	}

	// Step 6 — apply approved backpay requests not yet applied to a run.
	appliedCount, failedCount := 0, 0
	if s.backpay != nil {
		appliedCount, failedCount, err = s.backpay.ApplyApprovedRequests(ctx, schemaName, tenantID, runID, period.ID)
		if err != nil {
			s.log.Error().Err(err).Str("run_id", runID).Msg("backpay application pass failed")
		}
	}

	// Step 7 — aggregate totals.
	totals := aggregateTotals(items)
	totals.ID = run.ID
	totals.TenantID = run.TenantID
	totals.PeriodID = run.PeriodID

	if err := s.store.UpdateRunTotals(ctx, schemaName, runID, totals); err != nil {
		return fmt.Errorf("update run totals: %w", err)
	}

	// Step 8 — mark COMPUTED, cascade to period.
	if err := s.store.UpdateRunStatus(ctx, schemaName, runID, lifecycle.RunComputed); err != nil {
		return fmt.Errorf("mark run computed: %w", err)
	}
	if next, changed := lifecycle.PeriodFollowingRun(lifecycle.OpCompute, period.Status); changed {
		if err := s.store.UpdatePeriodStatus(ctx, schemaName, period.ID, next); err != nil {
			return fmt.Errorf("update period status: %w", err)
		}
	}

	// Step 9 — summary progress and a single audit log entry.
	s.progress.Set(Progress{
		RunID: runID, Status: ProgressCompleted, Total: len(employees),
		Processed: len(employees), Percentage: 100, StartedAt: startedAt,
	})
	if err := s.store.RecordAudit(ctx, schemaName, tenantID, "RUN_COMPUTED", "Run", runID, actorID); err != nil {
		s.log.Warn().Err(err).Msg("audit log write failed")
	}

	s.log.Info().
		Str("run_id", runID).
		Int("total_employees", totals.TotalEmployees).
		Int("error_items", totals.ErrorItemCount).
		Int("backpay_applied", appliedCount).
		Int("backpay_failed", failedCount).
		Msg("payroll run compute finished")

	return nil
}

// computeItems runs payrollcalc.Compute across a bounded worker pool,
// throttled by a token bucket so a large run doesn't saturate the
// connection pool shared with interactive queries. One employee's failure
// never aborts the group (spec §4.I step 5: "on exception ... create the
// Item with status ERROR ... continue").
func (s *Service) computeItems(ctx context.Context, schemaName, tenantID, runID string, period *Period, rates ratebook.Active, employees []compgraph.Employee) []Item {
	if len(employees) == 0 {
		return nil
	}

	limiter := rate.NewLimiter(rate.Limit(s.cfg.RequestsPerSec), s.cfg.Concurrency)
	items := make([]Item, len(employees))

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(s.cfg.Concurrency)

	var processed int32
	var mu sync.Mutex

	for i, emp := range employees {
		i, emp := i, emp
		group.Go(func() error {
			if err := limiter.Wait(groupCtx); err != nil {
				items[i] = s.errorItem(runID, emp.ID, err)
				return nil
			}
			items[i] = s.computeOne(groupCtx, schemaName, tenantID, runID, period, rates, emp.ID)

			mu.Lock()
			processed++
			n := processed
			mu.Unlock()
			s.progress.Set(Progress{
				RunID: runID, Status: ProgressComputing, Total: len(employees),
				Processed: int(n), Percentage: int(n * 100 / int32(len(employees))),
			})
			return nil
		})
	}
	_ = group.Wait() // per-employee errors are captured into items, never escalated

	return items
}

func (s *Service) computeOne(ctx context.Context, schemaName, tenantID, runID string, period *Period, rates ratebook.Active, employeeID string) Item {
	empCtx, err := s.store.EmployeeContext(ctx, schemaName, tenantID, employeeID, period.ID, period.Start, period.End)
	if err != nil {
		return s.errorItem(runID, employeeID, err)
	}

	input := payrollcalc.Input{
		Employee:               empCtx.Employee,
		Period:                 periodAsOverlay(period),
		CurrentSalary:          empCtx.CurrentSalary,
		BasicComponent:         empCtx.BasicComponent,
		SalaryComponents:       empCtx.SalaryComponents,
		ComponentsByID:         empCtx.ComponentsByID,
		AdHocPayments:          empCtx.AdHocPayments,
		ApplicableTransactions: empCtx.ApplicableTransactions,
		Grade:                  empCtx.Grade,
		Level:                  empCtx.Level,
		Active:                 rates,
	}

	result := payrollcalc.Compute(input, s.eval)
	if result.Status == payrollcalc.StatusError {
		return Item{
			ID: uuid.NewString(), RunID: runID, EmployeeID: employeeID,
			Status: ItemError, Error: result.ErrorMessage, Result: result,
		}
	}

	return Item{
		ID: uuid.NewString(), RunID: runID, EmployeeID: employeeID,
		Status: ItemOK, Result: result,
		BankAccountName:   empCtx.Bank.AccountName,
		BankAccountNumber: empCtx.Bank.AccountNumber,
		BankBranch:        empCtx.Bank.Branch,
	}
}

func periodAsOverlay(period *Period) overlay.Period {
	return overlay.Period{ID: period.ID, Start: period.Start, End: period.End}
}

func (s *Service) errorItem(runID, employeeID string, err error) Item {
	s.log.Warn().Err(err).Str("employee_id", employeeID).Msg("employee compute failed, isolated as item error")
	return Item{ID: uuid.NewString(), RunID: runID, EmployeeID: employeeID, Status: ItemError, Error: err.Error()}
}

func aggregateTotals(items []Item) Run {
	var r Run
	for _, item := range items {
		if item.Status != ItemOK {
			r.ErrorItemCount++
			continue
		}
		res := item.Result
		r.TotalGross = r.TotalGross.Add(res.GrossEarnings)
		r.TotalDeductions = r.TotalDeductions.Add(res.TotalDeductions)
		r.TotalNet = r.TotalNet.Add(res.NetSalary)
		r.TotalEmployerCost = r.TotalEmployerCost.Add(res.EmployerCost)
		r.TotalPAYE = r.TotalPAYE.Add(res.PAYE)
		r.TotalOvertimeTax = r.TotalOvertimeTax.Add(res.OvertimeTax)
		r.TotalBonusTax = r.TotalBonusTax.Add(res.BonusTax)
		r.TotalSSNITEmployee = r.TotalSSNITEmployee.Add(res.SSNITEmployee)
		r.TotalSSNITEmployer = r.TotalSSNITEmployer.Add(res.SSNITEmployerTier1)
		r.TotalTier2Employer = r.TotalTier2Employer.Add(res.SSNITEmployerTier2)
		r.TotalEmployees++
	}
	return r
}
