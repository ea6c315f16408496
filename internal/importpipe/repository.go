package importpipe

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// pgxTxRunner is the concrete TxRunner, grounded on
// internal/tenant/repository.go's tx.Begin()/defer Rollback()/Commit idiom.
type pgxTxRunner struct {
	pool *pgxpool.Pool
}

func NewTxRunner(pool *pgxpool.Pool) TxRunner {
	return &pgxTxRunner{pool: pool}
}

func (r *pgxTxRunner) WithTransaction(ctx context.Context, fn func(ctx context.Context, q Querier) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(ctx, tx); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Repository is the pgx-backed SessionStore, storing one row per
// ImportSession plus one row per Result (the audit trail SPEC_FULL.md
// §12.11 calls for).
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

func (r *Repository) Save(ctx context.Context, session ImportSession) error {
	mapping, err := json.Marshal(session.Mapping)
	if err != nil {
		return fmt.Errorf("marshal mapping: %w", err)
	}
	params, err := json.Marshal(session.Params)
	if err != nil {
		return fmt.Errorf("marshal params: %w", err)
	}
	header, err := json.Marshal(session.Header)
	if err != nil {
		return fmt.Errorf("marshal header: %w", err)
	}

	query := `
		INSERT INTO import_sessions
		    (id, tenant_id, entity_type, status, file_name, header, mapping, params,
		     total, to_create, to_update, to_error, to_skip, created_by, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		ON CONFLICT (id) DO UPDATE SET
		    status = EXCLUDED.status,
		    mapping = EXCLUDED.mapping,
		    params = EXCLUDED.params,
		    total = EXCLUDED.total,
		    to_create = EXCLUDED.to_create,
		    to_update = EXCLUDED.to_update,
		    to_error = EXCLUDED.to_error,
		    to_skip = EXCLUDED.to_skip`

	_, err = r.db.Exec(ctx, query, session.ID, session.TenantID, session.EntityType, session.Status,
		session.FileName, header, mapping, params, session.Total, session.ToCreate, session.ToUpdate,
		session.ToError, session.ToSkip, session.CreatedBy, session.CreatedAt)
	if err != nil {
		return fmt.Errorf("save import session: %w", err)
	}
	return nil
}

func (r *Repository) Load(ctx context.Context, tenantID, sessionID string) (*ImportSession, error) {
	query := `
		SELECT id, tenant_id, entity_type, status, file_name, header, mapping, params,
		       total, to_create, to_update, to_error, to_skip, created_by, created_at
		FROM import_sessions
		WHERE tenant_id = $1 AND id = $2`

	var s ImportSession
	var header, mapping, params []byte
	err := r.db.QueryRow(ctx, query, tenantID, sessionID).Scan(
		&s.ID, &s.TenantID, &s.EntityType, &s.Status, &s.FileName, &header, &mapping, &params,
		&s.Total, &s.ToCreate, &s.ToUpdate, &s.ToError, &s.ToSkip, &s.CreatedBy, &s.CreatedAt)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load import session: %w", err)
	}

	if err := json.Unmarshal(header, &s.Header); err != nil {
		return nil, fmt.Errorf("unmarshal header: %w", err)
	}
	if err := json.Unmarshal(mapping, &s.Mapping); err != nil {
		return nil, fmt.Errorf("unmarshal mapping: %w", err)
	}
	if err := json.Unmarshal(params, &s.Params); err != nil {
		return nil, fmt.Errorf("unmarshal params: %w", err)
	}
	return &s, nil
}

func (r *Repository) SaveResults(ctx context.Context, tenantID, sessionID string, results []Result) error {
	for _, res := range results {
		query := `
			INSERT INTO import_results
			    (tenant_id, session_id, row_number, action, record_id, record_type, error, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`
		_, err := r.db.Exec(ctx, query, tenantID, sessionID, res.RowNumber, res.Action,
			res.RecordID, res.RecordType, res.Error, time.Now())
		if err != nil {
			return fmt.Errorf("save import result for row %d: %w", res.RowNumber, err)
		}
	}
	return nil
}
