package importpipe

import (
	"context"
	"fmt"
)

// Creator persists one ParsedData row as a new record, returning its
// generated ID. Both methods take an explicit Querier so Execute's
// all-or-nothing mode can route every write through its single managed
// transaction.
type Creator interface {
	Create(ctx context.Context, q Querier, schemaName, tenantID string, row map[string]any) (string, error)
	Update(ctx context.Context, q Querier, schemaName, tenantID, recordID string, row map[string]any) error
}

// Validator checks one row's ParsedData against the entity's business
// rules (required fields, enum membership, referenced-record existence)
// before Preview decides CREATE/UPDATE/SKIP/ERROR.
type Validator interface {
	Validate(ctx context.Context, schemaName, tenantID string, row map[string]any) []string
}

// Matcher finds whether a row's ParsedData already has a corresponding
// record (natural-key lookup), returning its ID and a diff of changed
// fields when it does.
type Matcher interface {
	Match(ctx context.Context, schemaName, tenantID string, row map[string]any) (existingID *string, changes []Change, err error)
}

// Entity bundles the three collaborators one EntityType needs.
type Entity struct {
	Creator   Creator
	Validator Validator
	Matcher   Matcher
}

// Registry maps an EntityType to its registered Entity. Entries are
// registered once at process start (spec §4.M: "registered at startup, not
// per-request").
type Registry struct {
	entities map[EntityType]Entity
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{entities: make(map[EntityType]Entity)}
}

// Register wires one EntityType's collaborators.
func (r *Registry) Register(entityType EntityType, entity Entity) {
	r.entities[entityType] = entity
}

// Lookup returns the Entity registered for entityType, or an error if none
// is registered.
func (r *Registry) Lookup(entityType EntityType) (Entity, error) {
	e, ok := r.entities[entityType]
	if !ok {
		return Entity{}, fmt.Errorf("importpipe: no entity registered for %s", entityType)
	}
	return e, nil
}
