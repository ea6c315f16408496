// Package importpipe implements the Bulk Import Pipeline (spec §4.M): a
// three-phase Analyse/Preview/Execute flow over a tabular data file, with an
// AI-assisted column mapper falling back to fuzzy string matching, a
// per-entity-type registry of (Creator, Validator, Matcher) triples, and two
// execute-time atomicity modes.
package importpipe

import "time"

// EntityType names the five importable entities (spec §4.M).
type EntityType string

const (
	EntityEmployee            EntityType = "EMPLOYEE"
	EntityEmployeeTransaction EntityType = "EMPLOYEE_TRANSACTION"
	EntityBank                EntityType = "BANK"
	EntityBankAccount         EntityType = "BANK_ACCOUNT"
	EntityPayComponent        EntityType = "PAY_COMPONENT"
)

// SessionStatus is an ImportSession's lifecycle state.
type SessionStatus string

const (
	SessionUploaded  SessionStatus = "UPLOADED"
	SessionMapped    SessionStatus = "MAPPED"
	SessionPreviewed SessionStatus = "PREVIEWED"
	SessionConfirmed SessionStatus = "CONFIRMED"
	SessionCompleted SessionStatus = "COMPLETED"
	SessionFailed    SessionStatus = "FAILED"
)

// PreviewAction is the action Preview decided for one input row.
type PreviewAction string

const (
	ActionCreate PreviewAction = "CREATE"
	ActionUpdate PreviewAction = "UPDATE"
	ActionSkip   PreviewAction = "SKIP"
	ActionError  PreviewAction = "ERROR"
)

// TargetSchema lists the declared target fields of one entity type — the
// canonical schema the column mapper's proposed mapping is validated
// against (spec §4.M: "every value must be a declared target-field of the
// entity's schema, or null").
var TargetSchema = map[EntityType][]string{
	EntityEmployee: {
		"employee_number", "first_name", "last_name", "date_of_joining",
		"grade_code", "notch_code", "is_resident", "status",
	},
	EntityEmployeeTransaction: {
		"employee_number", "component_code", "override_type", "override_amount",
		"override_percentage", "effective_from", "effective_to", "is_recurring",
	},
	EntityBank: {
		"bank_code", "bank_name",
	},
	EntityBankAccount: {
		"employee_number", "bank_code", "branch", "account_number", "account_name", "is_primary",
	},
	EntityPayComponent: {
		"code", "name", "component_type", "category", "calc_kind",
		"default_amount", "percentage", "is_taxable", "is_recurring",
	},
}

// ImportSession is the persisted aggregate a Analyse/Preview/Execute call
// reads and advances.
type ImportSession struct {
	ID         string
	TenantID   string
	SchemaName string
	EntityType EntityType
	Status     SessionStatus

	FileName string
	Header   []string
	Rows     [][]string // every data row, header excluded
	Sample   [][]string // first 3 data rows, for operator review (spec §4.M)

	// Mapping is source_column -> target_field, nil meaning "ignore this
	// source column". Operator-adjustable between Analyse and Preview.
	Mapping map[string]*string

	// Params carries execute-time options, notably rollback_on_error
	// (SPEC_FULL.md §12.8: "driven by import_params, not a separate API
	// parameter").
	Params map[string]any

	PreviewRows []PreviewRow

	Total      int
	ToCreate   int
	ToUpdate   int
	ToError    int
	ToSkip     int

	CreatedBy string
	CreatedAt time.Time
}

// RollbackOnError reads the all-or-nothing toggle out of Params, defaulting
// to false (per-row savepoint mode, spec §4.M's default).
func (s *ImportSession) RollbackOnError() bool {
	v, ok := s.Params["rollback_on_error"]
	if !ok {
		return false
	}
	b, _ := v.(bool)
	return b
}

// Change is one field's (old, new) value in an UPDATE preview row.
type Change struct {
	Field string
	Old   any
	New   any
}

// PreviewRow is one input row's computed Preview outcome (spec §4.M phase 2).
type PreviewRow struct {
	RowNumber int
	Action    PreviewAction

	RawData    map[string]string
	ParsedData map[string]any

	ExistingRecordID *string
	Changes          []Change

	Errors   []string
	Warnings []string
}

// Result is one input row's Execute outcome — the audit trail
// SPEC_FULL.md §12.11 names ("richer than spec.md's one-line mention").
type Result struct {
	RowNumber  int
	Action     PreviewAction
	RecordID   string
	RecordType EntityType
	Error      string
}

// errRollback is the typed sentinel an all-or-nothing Execute raises to
// unwind the single outer transaction cleanly (SPEC_FULL.md §12.12).
type errRollback struct {
	rowNumber int
	cause     error
}

func (e *errRollback) Error() string {
	return e.cause.Error()
}

func (e *errRollback) Unwrap() error {
	return e.cause
}
