package lifecycle

import (
	"context"
	"time"
)

// RunSummary is the minimal Run projection the lifecycle service needs to
// validate and apply a transition — persistence detail, not compute detail
// (contrast orchestrator.Run, which also carries the Run's totals).
type RunSummary struct {
	ID             string
	TenantID       string
	PeriodID       string
	Status         RunStatus
	ErrorItemCount int
}

// PeriodSummary is the minimal Period projection the lifecycle service needs.
type PeriodSummary struct {
	ID       string
	TenantID string
	Status   PeriodStatus
}

// Store is everything the lifecycle service needs from persistence to apply
// approve/reject/process_payment/reset_to_draft/delete/reopen/close (spec
// §4.J). Declared in this package (rather than reused from orchestrator,
// which already has a similarly-shaped Store) because orchestrator imports
// lifecycle — reusing it here would be a cycle.
type Store interface {
	LoadRun(ctx context.Context, schemaName, tenantID, runID string) (*RunSummary, error)
	LoadPeriod(ctx context.Context, schemaName, tenantID, periodID string) (*PeriodSummary, error)
	// RunsForPeriod lists every Run belonging to periodID, needed by reopen's
	// optional "reset runs" step, which applies to every Run in the period,
	// not just the one the caller happened to reference.
	RunsForPeriod(ctx context.Context, schemaName, tenantID, periodID string) ([]RunSummary, error)

	UpdateRunStatus(ctx context.Context, schemaName, runID string, status RunStatus) error
	UpdatePeriodStatus(ctx context.Context, schemaName, periodID string, status PeriodStatus) error

	// MarkItemsPaid stamps paid_at and payment_reference on every non-error
	// Item belonging to runID (spec §4.J: "Items APPROVED→PAID with
	// date+reference").
	MarkItemsPaid(ctx context.Context, schemaName, runID, paymentReference string, paidAt time.Time) error
	// DeleteItems and ZeroRunTotals together implement reset_to_draft's
	// "Items deleted; summary zeroed".
	DeleteItems(ctx context.Context, schemaName, runID string) error
	ZeroRunTotals(ctx context.Context, schemaName, runID string) error
	SoftDeleteRun(ctx context.Context, schemaName, runID string) error

	// RecordAudit writes one audit log entry. metadata is marshalled to the
	// row's JSONB details column and may be nil.
	RecordAudit(ctx context.Context, schemaName, tenantID, action, entity, entityID, actorID string, metadata map[string]any) error
}
