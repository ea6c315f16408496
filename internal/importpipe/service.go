package importpipe

import (
	"context"
	"fmt"
	"time"

	"github.com/ekow-ghana/payroll-core/internal/payrollerr"
)

// Service drives the three-phase Analyse/Preview/Execute flow (spec §4.M).
type Service struct {
	store    SessionStore
	registry *Registry
	tx       TxRunner
	ai       AIColumnMapper // nil is valid: Analyse then always uses the fuzzy fallback
	fallback AIColumnMapper
	progress *ProgressStore
}

func NewService(store SessionStore, registry *Registry, tx TxRunner, ai AIColumnMapper, progress *ProgressStore) *Service {
	return &Service{
		store:    store,
		registry: registry,
		tx:       tx,
		ai:       ai,
		fallback: newFuzzyMapper(),
		progress: progress,
	}
}

// Analyse is phase 1: classify the file's entity type and propose a column
// mapping, preferring the AI collaborator and falling back to fuzzy
// matching on any error (spec §4.M, SPEC_FULL.md §12.9).
func (s *Service) Analyse(ctx context.Context, schemaName, tenantID, sessionID, createdBy, fileName string, header []string, rows [][]string, params map[string]any) (*ImportSession, error) {
	if len(header) == 0 {
		return nil, payrollerr.Validation("header", "header row is required")
	}
	sample := sampleRows(rows)

	var entityType EntityType
	var err error
	if s.ai != nil {
		entityType, err = s.ai.DetectEntityType(ctx, header, sample)
	}
	if s.ai == nil || err != nil || entityType == "" {
		entityType, err = s.fallback.DetectEntityType(ctx, header, sample)
		if err != nil {
			return nil, fmt.Errorf("detect entity type: %w", err)
		}
	}
	if _, ok := TargetSchema[entityType]; !ok {
		return nil, payrollerr.Validation("entity_type", "detected entity type %q is not recognised", entityType)
	}

	var mapping map[string]*string
	if s.ai != nil {
		mapping, err = s.ai.MapColumns(ctx, entityType, header, sample)
	}
	if s.ai == nil || err != nil || len(mapping) == 0 {
		mapping, err = s.fallback.MapColumns(ctx, entityType, header, sample)
		if err != nil {
			return nil, fmt.Errorf("map columns: %w", err)
		}
	}
	mapping = validateMapping(entityType, mapping)

	if params == nil {
		params = map[string]any{}
	}

	session := ImportSession{
		ID:         sessionID,
		TenantID:   tenantID,
		SchemaName: schemaName,
		EntityType: entityType,
		Status:     SessionMapped,
		FileName:   fileName,
		Header:     header,
		Rows:       rows,
		Sample:     sample,
		Mapping:    mapping,
		Params:     params,
		CreatedBy:  createdBy,
		CreatedAt:  time.Now(),
	}

	if err := s.store.Save(ctx, session); err != nil {
		return nil, err
	}
	return &session, nil
}

// Preview is phase 2: apply the (operator-adjusted) mapping and run each
// row through the entity's Validator and Matcher, classifying it as
// CREATE/UPDATE/SKIP/ERROR. Preview mutates nothing.
func (s *Service) Preview(ctx context.Context, tenantID, sessionID string, mapping map[string]*string) (*ImportSession, error) {
	session, err := s.store.Load(ctx, tenantID, sessionID)
	if err != nil {
		return nil, err
	}
	if session == nil {
		return nil, payrollerr.NotFound("import session", sessionID)
	}
	if session.Status != SessionMapped && session.Status != SessionPreviewed {
		return nil, payrollerr.IllegalTransition("import session", "preview", string(session.Status), string(SessionPreviewed))
	}
	if mapping != nil {
		session.Mapping = validateMapping(session.EntityType, mapping)
	}

	entity, err := s.registry.Lookup(session.EntityType)
	if err != nil {
		return nil, err
	}

	previewRows := make([]PreviewRow, 0, len(session.Rows))
	var toCreate, toUpdate, toSkip, toError int

	for i, raw := range session.Rows {
		rowNumber := i + 1
		rawMap := rowToMap(session.Header, raw)
		parsed := applyMapping(rawMap, session.Mapping)

		pr := PreviewRow{
			RowNumber:  rowNumber,
			RawData:    rawMap,
			ParsedData: parsed,
		}

		if errs := entity.Validator.Validate(ctx, session.SchemaName, session.TenantID, parsed); len(errs) > 0 {
			pr.Action = ActionError
			pr.Errors = errs
			toError++
			previewRows = append(previewRows, pr)
			continue
		}

		existingID, changes, err := entity.Matcher.Match(ctx, session.SchemaName, session.TenantID, parsed)
		if err != nil {
			pr.Action = ActionError
			pr.Errors = []string{err.Error()}
			toError++
			previewRows = append(previewRows, pr)
			continue
		}

		switch {
		case existingID == nil:
			pr.Action = ActionCreate
			toCreate++
		case len(changes) == 0:
			pr.Action = ActionSkip
			pr.ExistingRecordID = existingID
			toSkip++
		default:
			pr.Action = ActionUpdate
			pr.ExistingRecordID = existingID
			pr.Changes = changes
			toUpdate++
		}
		previewRows = append(previewRows, pr)
	}

	session.PreviewRows = previewRows
	session.Total = len(previewRows)
	session.ToCreate = toCreate
	session.ToUpdate = toUpdate
	session.ToSkip = toSkip
	session.ToError = toError
	session.Status = SessionPreviewed

	if err := s.store.Save(ctx, *session); err != nil {
		return nil, err
	}
	return session, nil
}

// Confirm advances a PREVIEWED session to CONFIRMED, the only status
// Execute accepts (spec §4.M phase 3).
func (s *Service) Confirm(ctx context.Context, tenantID, sessionID string) error {
	session, err := s.store.Load(ctx, tenantID, sessionID)
	if err != nil {
		return err
	}
	if session == nil {
		return payrollerr.NotFound("import session", sessionID)
	}
	if session.Status != SessionPreviewed {
		return payrollerr.IllegalTransition("import session", "confirm", string(session.Status), string(SessionConfirmed))
	}
	session.Status = SessionConfirmed
	return s.store.Save(ctx, *session)
}

// applyMapping turns one row's raw source_column -> string map into a
// target_field -> typed value map the Validator/Matcher/Creator understand.
// Values stay strings (the entity-specific helpers in entities.go parse
// dates/decimals/bools from the string form); only unmapped or nil-mapped
// source columns are dropped.
func applyMapping(raw map[string]string, mapping map[string]*string) map[string]any {
	out := make(map[string]any, len(mapping))
	for source, target := range mapping {
		if target == nil {
			continue
		}
		out[*target] = raw[source]
	}
	return out
}

// Execute is phase 3: only from CONFIRMED, dispatch every non-SKIP,
// non-ERROR preview row to the registered Creator. Two atomicity modes
// (spec §4.M): per-row savepoint (default, each row its own transaction,
// failures recorded but non-fatal) or all-or-nothing (one transaction,
// first failure aborts and rolls back everything already applied).
func (s *Service) Execute(ctx context.Context, tenantID, sessionID string) (*ImportSession, []Result, error) {
	session, err := s.store.Load(ctx, tenantID, sessionID)
	if err != nil {
		return nil, nil, err
	}
	if session == nil {
		return nil, nil, payrollerr.NotFound("import session", sessionID)
	}
	if session.Status != SessionConfirmed {
		return nil, nil, payrollerr.IllegalTransition("import session", "execute", string(session.Status), "EXECUTING")
	}

	entity, err := s.registry.Lookup(session.EntityType)
	if err != nil {
		return nil, nil, err
	}

	workRows := make([]PreviewRow, 0, len(session.PreviewRows))
	for _, pr := range session.PreviewRows {
		if pr.Action == ActionCreate || pr.Action == ActionUpdate {
			workRows = append(workRows, pr)
		}
	}

	if s.progress != nil {
		s.progress.Set(Progress{SessionID: sessionID, Status: ProgressRunning, Total: len(workRows), StartedAt: nowFunc()})
	}

	var results []Result
	if session.RollbackOnError() {
		results, err = s.executeAllOrNothing(ctx, session, entity, workRows)
	} else {
		results = s.executePerRow(ctx, session, entity, workRows)
	}

	if err != nil {
		session.Status = SessionFailed
		if saveErr := s.store.Save(ctx, *session); saveErr != nil {
			return nil, nil, fmt.Errorf("%w (and failed to persist FAILED status: %v)", err, saveErr)
		}
		if s.progress != nil {
			s.progress.Set(Progress{SessionID: sessionID, Status: ProgressFailed, Total: len(workRows), Processed: len(results), StartedAt: nowFunc()})
		}
		if saveErr := s.store.SaveResults(ctx, tenantID, sessionID, results); saveErr != nil {
			return nil, nil, saveErr
		}
		return session, results, err
	}

	session.Status = SessionCompleted
	if err := s.store.Save(ctx, *session); err != nil {
		return nil, nil, err
	}
	if err := s.store.SaveResults(ctx, tenantID, sessionID, results); err != nil {
		return nil, nil, err
	}
	if s.progress != nil {
		s.progress.Set(Progress{SessionID: sessionID, Status: ProgressCompleted, Total: len(workRows), Processed: len(results), StartedAt: nowFunc()})
	}
	return session, results, nil
}

func (s *Service) executePerRow(ctx context.Context, session *ImportSession, entity Entity, rows []PreviewRow) []Result {
	results := make([]Result, 0, len(rows))
	for i, row := range rows {
		res := Result{RowNumber: row.RowNumber, Action: row.Action, RecordType: session.EntityType}

		err := s.tx.WithTransaction(ctx, func(ctx context.Context, q Querier) error {
			return applyRow(ctx, q, entity, session.SchemaName, session.TenantID, row, &res)
		})
		if err != nil {
			res.Error = err.Error()
		}
		results = append(results, res)

		if s.progress != nil {
			s.progress.Set(Progress{SessionID: session.ID, Status: ProgressRunning, Total: len(rows), Processed: i + 1, StartedAt: nowFunc()})
		}
	}
	return results
}

func (s *Service) executeAllOrNothing(ctx context.Context, session *ImportSession, entity Entity, rows []PreviewRow) ([]Result, error) {
	var results []Result

	err := s.tx.WithTransaction(ctx, func(ctx context.Context, q Querier) error {
		results = make([]Result, 0, len(rows))
		for i, row := range rows {
			res := Result{RowNumber: row.RowNumber, Action: row.Action, RecordType: session.EntityType}
			if err := applyRow(ctx, q, entity, session.SchemaName, session.TenantID, row, &res); err != nil {
				return &errRollback{rowNumber: row.RowNumber, cause: err}
			}
			results = append(results, res)

			if s.progress != nil {
				s.progress.Set(Progress{SessionID: session.ID, Status: ProgressRunning, Total: len(rows), Processed: i + 1, StartedAt: nowFunc()})
			}
		}
		return nil
	})

	if rb, ok := err.(*errRollback); ok {
		return nil, fmt.Errorf("row %d failed, rolled back entire import: %w", rb.rowNumber, rb.cause)
	}
	if err != nil {
		return nil, err
	}
	return results, nil
}

// applyRow dispatches one CREATE/UPDATE preview row to the entity's
// Creator, filling in res.RecordID on success.
func applyRow(ctx context.Context, q Querier, entity Entity, schemaName, tenantID string, row PreviewRow, res *Result) error {
	switch row.Action {
	case ActionCreate:
		id, err := entity.Creator.Create(ctx, q, schemaName, tenantID, row.ParsedData)
		if err != nil {
			return err
		}
		res.RecordID = id
		return nil
	case ActionUpdate:
		if row.ExistingRecordID == nil {
			return fmt.Errorf("update row %d has no existing record id", row.RowNumber)
		}
		if err := entity.Creator.Update(ctx, q, schemaName, tenantID, *row.ExistingRecordID, row.ParsedData); err != nil {
			return err
		}
		res.RecordID = *row.ExistingRecordID
		return nil
	default:
		return fmt.Errorf("row %d has non-executable action %s", row.RowNumber, row.Action)
	}
}
