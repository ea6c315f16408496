// Package scheduler runs the background jobs a payroll tenant needs
// outside of any single request: the Retroactive Change Detector sweep
// (spec §4.L) and a timeout watchdog around Run compute. Built on a
// robfig/cron/v3-driven "tick once a day, fan out over active tenants"
// shape, rewired from recurring-invoice generation to backdated-change
// detection.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"github.com/ekow-ghana/payroll-core/internal/backpay"
	"github.com/ekow-ghana/payroll-core/internal/notify"
	"github.com/ekow-ghana/payroll-core/internal/orchestrator"
)

// Config holds scheduler configuration.
type Config struct {
	// BackdatedSweepSchedule is a standard 5-field cron expression (e.g.
	// "0 2 * * *" for 2:00 AM daily) controlling the backdated-change
	// sweep (spec §4.L).
	BackdatedSweepSchedule string
	// RunComputeTimeout bounds a single ComputeWithTimeout invocation
	// (SPEC_FULL.md §10); a Run stuck past this is abandoned with an
	// error rather than left hanging forever.
	RunComputeTimeout time.Duration
	Enabled           bool
}

// DefaultConfig returns default scheduler configuration.
func DefaultConfig() Config {
	return Config{
		BackdatedSweepSchedule: "0 2 * * *", // 2:00 AM daily
		RunComputeTimeout:      10 * time.Minute,
		Enabled:                true,
	}
}

// Scheduler manages background jobs: the backdated-change sweep and, on
// demand, a timeout-bounded Run compute.
type Scheduler struct {
	cron     *cron.Cron
	repo     Repository
	detector *backpay.Detector
	notifier *notify.Service
	compute  *orchestrator.Service
	config   Config
	running  bool
	mu       sync.Mutex
}

// NewScheduler creates a new scheduler instance. notifier may be nil if
// backdated-change-found notifications are not wired for this
// deployment; compute may be nil if this scheduler instance only runs
// the sweep.
func NewScheduler(repo Repository, detectorStore backpay.DetectorStore, notifier *notify.Service, compute *orchestrator.Service, config Config) *Scheduler {
	return &Scheduler{
		cron:     cron.New(),
		repo:     repo,
		detector: backpay.NewDetector(detectorStore),
		notifier: notifier,
		compute:  compute,
		config:   config,
	}
}

// Start starts the scheduler.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}

	if !s.config.Enabled {
		log.Info().Msg("scheduler is disabled")
		return nil
	}

	if _, err := s.cron.AddFunc(s.config.BackdatedSweepSchedule, s.runBackdatedSweep); err != nil {
		return fmt.Errorf("add backdated-change sweep job: %w", err)
	}

	s.cron.Start()
	s.running = true

	log.Info().
		Str("schedule", s.config.BackdatedSweepSchedule).
		Msg("scheduler started - backdated-change sweep scheduled")

	return nil
}

// Stop stops the scheduler gracefully, returning a context cancelled
// once any in-flight job finishes.
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		return ctx
	}

	ctx := s.cron.Stop()
	s.running = false
	log.Info().Msg("scheduler stopped")
	return ctx
}

// runBackdatedSweep runs the Retroactive Change Detector (spec §4.L) for
// every active tenant and raises a notification per tenant with
// candidates found, for operator follow-up — the detector itself never
// creates a BackpayRequest.
func (s *Scheduler) runBackdatedSweep() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Minute)
	defer cancel()

	log.Info().Msg("starting scheduled backdated-change sweep")

	tenants, err := s.repo.ListActiveTenants(ctx)
	if err != nil {
		log.Error().Err(err).Msg("failed to list active tenants for backdated-change sweep")
		return
	}

	totalCandidates := 0
	totalErrors := 0

	for _, t := range tenants {
		candidates, err := s.detector.Scan(ctx, t.SchemaName, t.ID)
		if err != nil {
			log.Error().Err(err).Str("tenant_id", t.ID).Msg("backdated-change sweep failed for tenant")
			totalErrors++
			continue
		}
		if len(candidates) == 0 {
			continue
		}

		totalCandidates += len(candidates)
		log.Info().
			Str("tenant_id", t.ID).
			Int("candidates", len(candidates)).
			Msg("backdated-change sweep found candidates")

		s.notifyCandidatesFound(ctx, t, candidates)
	}

	log.Info().
		Int("tenants_swept", len(tenants)).
		Int("candidates_found", totalCandidates).
		Int("tenant_errors", totalErrors).
		Msg("completed scheduled backdated-change sweep")
}

func (s *Scheduler) notifyCandidatesFound(ctx context.Context, t TenantInfo, candidates []backpay.Candidate) {
	if s.notifier == nil || t.NotifyEmail == "" {
		return
	}

	data := notify.TemplateData{
		CompanyName:       t.CompanyName,
		AffectedEmployees: len(candidates),
		DetectedAt:        time.Now().Format(time.RFC3339),
	}

	if _, err := s.notifier.Send(ctx, t.SchemaName, t.ID, notify.TemplateBackdatedChangeFound, t.NotifyEmail, "", data, nil, ""); err != nil {
		log.Error().Err(err).Str("tenant_id", t.ID).Msg("failed to send backdated-change-found notification")
	}
}

// RunNow manually triggers the backdated-change sweep.
func (s *Scheduler) RunNow() {
	s.runBackdatedSweep()
}

// IsRunning returns whether the scheduler is currently running.
func (s *Scheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// ComputeWithTimeout runs the orchestrator's Compute bounded by
// Config.RunComputeTimeout, so a Run stuck mid-computation (a hung
// query, a pathological formula) is abandoned with a clear error
// instead of hanging indefinitely (SPEC_FULL.md §10).
func (s *Scheduler) ComputeWithTimeout(ctx context.Context, schemaName, tenantID, runID, actorID string) error {
	if s.compute == nil {
		return fmt.Errorf("scheduler: no orchestrator.Service configured")
	}

	timeout := s.config.RunComputeTimeout
	if timeout <= 0 {
		timeout = DefaultConfig().RunComputeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	err := s.compute.Compute(ctx, schemaName, tenantID, runID, actorID)
	if err != nil && ctx.Err() == context.DeadlineExceeded {
		return fmt.Errorf("run %s compute exceeded timeout of %s: %w", runID, timeout, ctx.Err())
	}
	return err
}
