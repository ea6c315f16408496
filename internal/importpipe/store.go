package importpipe

import "context"

// SessionStore persists ImportSession state across the Analyse/Preview/
// Execute calls, which may arrive as separate requests once an operator
// has reviewed a proposed mapping or a preview.
type SessionStore interface {
	Save(ctx context.Context, session ImportSession) error
	Load(ctx context.Context, tenantID, sessionID string) (*ImportSession, error)
	SaveResults(ctx context.Context, tenantID, sessionID string, results []Result) error
}

// TxRunner opens transactions for Execute, passing the transaction's
// Querier down to the registered Creator. Per-row savepoint mode (spec
// §4.M: "each row in its own transaction") calls WithTransaction once per
// row; all-or-nothing mode calls it once for the whole batch. Kept as an
// interface so this package doesn't hardcode *pgxpool.Pool into Service,
// mirroring internal/tenant/repository.go's tx.Begin()/Rollback() idiom one
// level up.
type TxRunner interface {
	// WithTransaction runs fn inside a new transaction, committing on nil
	// return and rolling back otherwise.
	WithTransaction(ctx context.Context, fn func(ctx context.Context, q Querier) error) error
}
