package ratebook

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// Kind names a rate-book table for the caching key, per spec §4.A
// ("Caching is permitted and encouraged per (kind, period.end_date)").
// Service.Active caches the whole snapshot under the single kind "all";
// the per-table kinds below are not used as cache keys.
type Kind string

const (
	KindTaxBrackets  Kind = "tax_brackets"
	KindSSNITRates   Kind = "ssnit_rates"
	KindTaxReliefs   Kind = "tax_reliefs"
	KindOvertimeBonus Kind = "overtime_bonus"
)

// cacheKey identifies one cached lookup.
type cacheKey struct {
	tenantID string
	kind     Kind
	asOf     time.Time
}

// Active is the complete resolved rate-book snapshot for one (tenant, date).
type Active struct {
	TaxBrackets   []TaxBracket
	SSNITRates    map[SSNITTier]SSNITRate
	TaxReliefs    []TaxRelief
	OvertimeBonus OvertimeBonusTaxConfig
}

// Service wraps Repository with an in-process cache. The Rate Book never
// mutates during a run (spec §4.A); the cache is read-mostly and safe to
// share across concurrent computes, following the same double-checked-
// locking pattern as database.TenantDBCache.
type Service struct {
	repo *Repository

	mu    sync.RWMutex
	cache map[cacheKey]Active
}

func NewService(repo *Repository) *Service {
	return &Service{repo: repo, cache: make(map[cacheKey]Active)}
}

// Active resolves the complete rate-book snapshot for schemaName/tenantID as
// of asOf, the single entry point every other payroll component calls
// instead of the four underlying repository queries directly.
func (s *Service) Active(ctx context.Context, schemaName, tenantID string, asOf time.Time) (Active, error) {
	key := cacheKey{tenantID: tenantID, kind: "all", asOf: asOf.Truncate(24 * time.Hour)}

	s.mu.RLock()
	if a, ok := s.cache[key]; ok {
		s.mu.RUnlock()
		return a, nil
	}
	s.mu.RUnlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	if a, ok := s.cache[key]; ok {
		return a, nil
	}

	brackets, err := s.repo.TaxBracketsActiveAt(ctx, schemaName, tenantID, asOf)
	if err != nil {
		return Active{}, fmt.Errorf("resolve tax brackets: %w", err)
	}
	ssnit, err := s.repo.SSNITRatesActiveAt(ctx, schemaName, tenantID, asOf)
	if err != nil {
		return Active{}, fmt.Errorf("resolve ssnit rates: %w", err)
	}
	reliefs, err := s.repo.TaxReliefsActiveAt(ctx, schemaName, tenantID, asOf)
	if err != nil {
		return Active{}, fmt.Errorf("resolve tax reliefs: %w", err)
	}
	otb, err := s.repo.OvertimeBonusConfigActiveAt(ctx, schemaName, tenantID, asOf)
	if err != nil {
		return Active{}, fmt.Errorf("resolve overtime/bonus config: %w", err)
	}

	a := Active{TaxBrackets: brackets, SSNITRates: ssnit, TaxReliefs: reliefs, OvertimeBonus: otb}
	s.cache[key] = a
	return a, nil
}

// Invalidate clears the cache. Called after any Rate Book write (seeding a
// new bracket year, adjusting SSNIT rates) so the next compute observes it;
// per spec §5 a write mid-compute MAY or MAY NOT be observed by that
// compute, but subsequent computes MUST see it.
func (s *Service) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cache = make(map[cacheKey]Active)
}
