package importpipe

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/ekow-ghana/payroll-core/internal/compgraph"
	"github.com/ekow-ghana/payroll-core/internal/overlay"
)

// Querier is the subset of *pgxpool.Pool and pgx.Tx that Create/Update need.
// Validate/Match always run against the pool directly (they only read
// reference data during Preview, before any Execute transaction opens);
// Create/Update take a Querier explicitly so Service.Execute can hand them
// either the pool (no special atomicity) or the one pgx.Tx it is managing
// for all-or-nothing mode, without this package importing Service's
// transaction-management concerns.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

func str(row map[string]any, key string) (string, bool) {
	v, ok := row[key]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

func boolVal(row map[string]any, key string) bool {
	v, ok := row[key]
	if !ok || v == nil {
		return false
	}
	b, _ := v.(bool)
	return b
}

func decVal(row map[string]any, key string) decimal.Decimal {
	v, ok := row[key]
	if !ok || v == nil {
		return decimal.Zero
	}
	switch t := v.(type) {
	case decimal.Decimal:
		return t
	case string:
		d, err := decimal.NewFromString(t)
		if err != nil {
			return decimal.Zero
		}
		return d
	}
	return decimal.Zero
}

func dateVal(row map[string]any, key string) (time.Time, bool) {
	v, ok := row[key]
	if !ok || v == nil {
		return time.Time{}, false
	}
	switch t := v.(type) {
	case time.Time:
		return t, true
	case string:
		d, err := time.Parse("2006-01-02", t)
		if err != nil {
			return time.Time{}, false
		}
		return d, true
	}
	return time.Time{}, false
}

// --- EMPLOYEE -----------------------------------------------------------

type employeeEntity struct{ db *pgxpool.Pool }

func NewEmployeeEntity(db *pgxpool.Pool) Entity {
	e := &employeeEntity{db: db}
	return Entity{Creator: e, Validator: e, Matcher: e}
}

func (e *employeeEntity) Validate(ctx context.Context, schemaName, tenantID string, row map[string]any) []string {
	var errs []string
	if _, ok := str(row, "employee_number"); !ok {
		errs = append(errs, "employee_number is required")
	}
	if _, ok := str(row, "first_name"); !ok {
		errs = append(errs, "first_name is required")
	}
	if _, ok := str(row, "last_name"); !ok {
		errs = append(errs, "last_name is required")
	}
	if _, ok := dateVal(row, "date_of_joining"); !ok {
		errs = append(errs, "date_of_joining must be a valid date (YYYY-MM-DD)")
	}
	if status, ok := str(row, "status"); ok {
		switch compgraph.EmployeeStatus(status) {
		case compgraph.EmployeeActive, compgraph.EmployeeOnLeave, compgraph.EmployeeProbation,
			compgraph.EmployeeNotice, compgraph.EmployeeExited:
		default:
			errs = append(errs, fmt.Sprintf("status %q is not a recognised employee status", status))
		}
	}
	if gradeCode, ok := str(row, "grade_code"); ok {
		query := fmt.Sprintf(`SELECT 1 FROM %s.grades WHERE tenant_id = $1 AND code = $2`, schemaName)
		var exists int
		if err := e.db.QueryRow(ctx, query, tenantID, gradeCode).Scan(&exists); err == pgx.ErrNoRows {
			errs = append(errs, fmt.Sprintf("grade_code %q does not exist", gradeCode))
		}
	}
	return errs
}

func (e *employeeEntity) Match(ctx context.Context, schemaName, tenantID string, row map[string]any) (*string, []Change, error) {
	number, ok := str(row, "employee_number")
	if !ok {
		return nil, nil, nil
	}
	query := fmt.Sprintf(`
		SELECT id, first_name, last_name, status, is_resident
		FROM %s.employees
		WHERE tenant_id = $1 AND employee_number = $2`, schemaName)

	var id, firstName, lastName, status string
	var isResident bool
	err := e.db.QueryRow(ctx, query, tenantID, number).Scan(&id, &firstName, &lastName, &status, &isResident)
	if err == pgx.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("match employee: %w", err)
	}

	var changes []Change
	if v, ok := str(row, "first_name"); ok && v != firstName {
		changes = append(changes, Change{Field: "first_name", Old: firstName, New: v})
	}
	if v, ok := str(row, "last_name"); ok && v != lastName {
		changes = append(changes, Change{Field: "last_name", Old: lastName, New: v})
	}
	if v, ok := str(row, "status"); ok && v != status {
		changes = append(changes, Change{Field: "status", Old: status, New: v})
	}
	return &id, changes, nil
}

func (e *employeeEntity) gradeID(ctx context.Context, schemaName, tenantID string, row map[string]any) *string {
	code, ok := str(row, "grade_code")
	if !ok {
		return nil
	}
	query := fmt.Sprintf(`SELECT id FROM %s.grades WHERE tenant_id = $1 AND code = $2`, schemaName)
	var id string
	if err := e.db.QueryRow(ctx, query, tenantID, code).Scan(&id); err != nil {
		return nil
	}
	return &id
}

func (e *employeeEntity) Create(ctx context.Context, q Querier, schemaName, tenantID string, row map[string]any) (string, error) {
	number, _ := str(row, "employee_number")
	firstName, _ := str(row, "first_name")
	lastName, _ := str(row, "last_name")
	joining, _ := dateVal(row, "date_of_joining")
	status, ok := str(row, "status")
	if !ok {
		status = string(compgraph.EmployeeActive)
	}
	isResident := boolVal(row, "is_resident")
	gradeID := e.gradeID(ctx, schemaName, tenantID, row)

	query := fmt.Sprintf(`
		INSERT INTO %s.employees (tenant_id, employee_number, first_name, last_name,
		                           date_of_joining, status, is_resident, grade_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`, schemaName)

	var id string
	err := q.QueryRow(ctx, query, tenantID, number, firstName, lastName,
		joining, status, isResident, gradeID).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert employee: %w", err)
	}
	return id, nil
}

func (e *employeeEntity) Update(ctx context.Context, q Querier, schemaName, tenantID, recordID string, row map[string]any) error {
	firstName, _ := str(row, "first_name")
	lastName, _ := str(row, "last_name")
	status, _ := str(row, "status")
	gradeID := e.gradeID(ctx, schemaName, tenantID, row)

	query := fmt.Sprintf(`
		UPDATE %s.employees
		SET first_name = COALESCE(NULLIF($1, ''), first_name),
		    last_name = COALESCE(NULLIF($2, ''), last_name),
		    status = COALESCE(NULLIF($3, ''), status),
		    grade_id = COALESCE($4, grade_id)
		WHERE tenant_id = $5 AND id = $6`, schemaName)

	_, err := q.Exec(ctx, query, firstName, lastName, status, gradeID, tenantID, recordID)
	if err != nil {
		return fmt.Errorf("update employee: %w", err)
	}
	return nil
}

// --- EMPLOYEE_TRANSACTION -------------------------------------------------

type transactionEntity struct{ db *pgxpool.Pool }

func NewEmployeeTransactionEntity(db *pgxpool.Pool) Entity {
	e := &transactionEntity{db: db}
	return Entity{Creator: e, Validator: e, Matcher: e}
}

func (e *transactionEntity) Validate(ctx context.Context, schemaName, tenantID string, row map[string]any) []string {
	var errs []string
	employeeNumber, ok := str(row, "employee_number")
	if !ok {
		errs = append(errs, "employee_number is required")
	}
	componentCode, ok := str(row, "component_code")
	if !ok {
		errs = append(errs, "component_code is required")
	}
	if _, ok := dateVal(row, "effective_from"); !ok {
		errs = append(errs, "effective_from must be a valid date (YYYY-MM-DD)")
	}
	if employeeNumber != "" {
		query := fmt.Sprintf(`SELECT 1 FROM %s.employees WHERE tenant_id = $1 AND employee_number = $2`, schemaName)
		var exists int
		if err := e.db.QueryRow(ctx, query, tenantID, employeeNumber).Scan(&exists); err == pgx.ErrNoRows {
			errs = append(errs, fmt.Sprintf("employee_number %q does not exist", employeeNumber))
		}
	}
	if componentCode != "" {
		if _, err := e.componentID(ctx, schemaName, tenantID, componentCode); err != nil {
			errs = append(errs, fmt.Sprintf("component_code %q does not exist", componentCode))
		}
	}
	if ot, ok := str(row, "override_type"); ok {
		switch overlay.OverrideType(ot) {
		case overlay.OverrideNone, overlay.OverrideFixed, overlay.OverridePercentage, overlay.OverrideFormula:
		default:
			errs = append(errs, fmt.Sprintf("override_type %q is not recognised", ot))
		}
	}
	return errs
}

func (e *transactionEntity) componentID(ctx context.Context, schemaName, tenantID, code string) (string, error) {
	query := fmt.Sprintf(`SELECT id FROM %s.pay_components WHERE tenant_id = $1 AND code = $2`, schemaName)
	var id string
	err := e.db.QueryRow(ctx, query, tenantID, code).Scan(&id)
	return id, err
}

func (e *transactionEntity) employeeID(ctx context.Context, schemaName, tenantID, number string) (string, error) {
	query := fmt.Sprintf(`SELECT id FROM %s.employees WHERE tenant_id = $1 AND employee_number = $2`, schemaName)
	var id string
	err := e.db.QueryRow(ctx, query, tenantID, number).Scan(&id)
	return id, err
}

// Match looks for a current-version transaction targeting the same
// employee + component + effective_from — imports never update a
// transaction in place (versioning is append-only, spec §3), so a match
// only ever reports it for SKIP, never UPDATE.
func (e *transactionEntity) Match(ctx context.Context, schemaName, tenantID string, row map[string]any) (*string, []Change, error) {
	employeeNumber, ok := str(row, "employee_number")
	if !ok {
		return nil, nil, nil
	}
	componentCode, _ := str(row, "component_code")
	effectiveFrom, ok := dateVal(row, "effective_from")
	if !ok {
		return nil, nil, nil
	}

	employeeID, err := e.employeeID(ctx, schemaName, tenantID, employeeNumber)
	if err != nil {
		return nil, nil, nil
	}
	componentID, err := e.componentID(ctx, schemaName, tenantID, componentCode)
	if err != nil {
		return nil, nil, nil
	}

	query := fmt.Sprintf(`
		SELECT id FROM %s.employee_transactions
		WHERE tenant_id = $1 AND employee_id = $2 AND pay_component_id = $3
		  AND effective_from = $4 AND is_current_version = true`, schemaName)

	var id string
	err = e.db.QueryRow(ctx, query, tenantID, employeeID, componentID, effectiveFrom).Scan(&id)
	if err == pgx.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("match transaction: %w", err)
	}
	return &id, nil, nil
}

func (e *transactionEntity) Create(ctx context.Context, q Querier, schemaName, tenantID string, row map[string]any) (string, error) {
	employeeNumber, _ := str(row, "employee_number")
	componentCode, _ := str(row, "component_code")
	employeeID, err := e.employeeID(ctx, schemaName, tenantID, employeeNumber)
	if err != nil {
		return "", fmt.Errorf("resolve employee_number %q: %w", employeeNumber, err)
	}
	componentID, err := e.componentID(ctx, schemaName, tenantID, componentCode)
	if err != nil {
		return "", fmt.Errorf("resolve component_code %q: %w", componentCode, err)
	}

	overrideType, ok := str(row, "override_type")
	if !ok {
		overrideType = string(overlay.OverrideFixed)
	}
	effectiveFrom, _ := dateVal(row, "effective_from")
	var effectiveTo *time.Time
	if v, ok := dateVal(row, "effective_to"); ok {
		effectiveTo = &v
	}

	query := fmt.Sprintf(`
		INSERT INTO %s.employee_transactions
		    (tenant_id, target_type, employee_id, pay_component_id, override_type,
		     override_amount, override_percentage, is_recurring, effective_from,
		     effective_to, status, is_current_version, version)
		VALUES ($1, 'INDIVIDUAL', $2, $3, $4, $5, $6, $7, $8, $9, $10, true, 1)
		RETURNING id`, schemaName)

	var id string
	err = q.QueryRow(ctx, query, tenantID, employeeID, componentID, overrideType,
		decVal(row, "override_amount"), decVal(row, "override_percentage"),
		boolVal(row, "is_recurring"), effectiveFrom, effectiveTo, overlay.StatusActive).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert transaction: %w", err)
	}
	return id, nil
}

// Update is unreachable in practice: Match never returns a non-nil ID for
// this entity, so Preview never classifies an EMPLOYEE_TRANSACTION row as
// UPDATE. Implemented to satisfy Creator and to fail loudly instead of
// silently no-op-ing if that assumption ever changes.
func (e *transactionEntity) Update(ctx context.Context, q Querier, schemaName, tenantID, recordID string, row map[string]any) error {
	return fmt.Errorf("importpipe: employee transactions are append-only and cannot be updated in place")
}

// --- PAY_COMPONENT --------------------------------------------------------

type payComponentEntity struct{ db *pgxpool.Pool }

func NewPayComponentEntity(db *pgxpool.Pool) Entity {
	e := &payComponentEntity{db: db}
	return Entity{Creator: e, Validator: e, Matcher: e}
}

func (e *payComponentEntity) Validate(ctx context.Context, schemaName, tenantID string, row map[string]any) []string {
	var errs []string
	if _, ok := str(row, "code"); !ok {
		errs = append(errs, "code is required")
	}
	if _, ok := str(row, "name"); !ok {
		errs = append(errs, "name is required")
	}
	if ct, ok := str(row, "component_type"); ok {
		switch compgraph.ComponentType(ct) {
		case compgraph.ComponentEarning, compgraph.ComponentDeduction, compgraph.ComponentEmployer:
		default:
			errs = append(errs, fmt.Sprintf("component_type %q is not recognised", ct))
		}
	} else {
		errs = append(errs, "component_type is required")
	}
	if ck, ok := str(row, "calc_kind"); ok {
		switch compgraph.CalculationKind(ck) {
		case compgraph.CalcFixed, compgraph.CalcPercentBasic, compgraph.CalcPercentGross,
			compgraph.CalcFormula, compgraph.CalcLookup:
		default:
			errs = append(errs, fmt.Sprintf("calc_kind %q is not recognised", ck))
		}
	}
	return errs
}

func (e *payComponentEntity) Match(ctx context.Context, schemaName, tenantID string, row map[string]any) (*string, []Change, error) {
	code, ok := str(row, "code")
	if !ok {
		return nil, nil, nil
	}
	query := fmt.Sprintf(`SELECT id, name, default_amount FROM %s.pay_components WHERE tenant_id = $1 AND code = $2`, schemaName)
	var id, name string
	var defaultAmount decimal.Decimal
	err := e.db.QueryRow(ctx, query, tenantID, code).Scan(&id, &name, &defaultAmount)
	if err == pgx.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("match pay component: %w", err)
	}

	var changes []Change
	if v, ok := str(row, "name"); ok && v != name {
		changes = append(changes, Change{Field: "name", Old: name, New: v})
	}
	if _, ok := row["default_amount"]; ok {
		newAmount := decVal(row, "default_amount")
		if !newAmount.Equal(defaultAmount) {
			changes = append(changes, Change{Field: "default_amount", Old: defaultAmount.String(), New: newAmount.String()})
		}
	}
	return &id, changes, nil
}

func (e *payComponentEntity) Create(ctx context.Context, q Querier, schemaName, tenantID string, row map[string]any) (string, error) {
	code, _ := str(row, "code")
	name, _ := str(row, "name")
	componentType, _ := str(row, "component_type")
	category, _ := str(row, "category")
	calcKind, ok := str(row, "calc_kind")
	if !ok {
		calcKind = string(compgraph.CalcFixed)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s.pay_components
		    (tenant_id, code, name, type, category, calc_kind, default_amount,
		     percentage, is_taxable, is_recurring)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		RETURNING id`, schemaName)

	var id string
	err := q.QueryRow(ctx, query, tenantID, code, name, componentType, category, calcKind,
		decVal(row, "default_amount"), decVal(row, "percentage"),
		boolVal(row, "is_taxable"), boolVal(row, "is_recurring")).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert pay component: %w", err)
	}
	return id, nil
}

func (e *payComponentEntity) Update(ctx context.Context, q Querier, schemaName, tenantID, recordID string, row map[string]any) error {
	name, _ := str(row, "name")
	query := fmt.Sprintf(`
		UPDATE %s.pay_components
		SET name = COALESCE(NULLIF($1, ''), name),
		    default_amount = COALESCE($2, default_amount),
		    percentage = COALESCE($3, percentage)
		WHERE tenant_id = $4 AND id = $5`, schemaName)
	_, err := q.Exec(ctx, query, name, decVal(row, "default_amount"), decVal(row, "percentage"), tenantID, recordID)
	if err != nil {
		return fmt.Errorf("update pay component: %w", err)
	}
	return nil
}

// --- BANK -----------------------------------------------------------------

type bankEntity struct{ db *pgxpool.Pool }

func NewBankEntity(db *pgxpool.Pool) Entity {
	e := &bankEntity{db: db}
	return Entity{Creator: e, Validator: e, Matcher: e}
}

func (e *bankEntity) Validate(ctx context.Context, schemaName, tenantID string, row map[string]any) []string {
	var errs []string
	if _, ok := str(row, "bank_code"); !ok {
		errs = append(errs, "bank_code is required")
	}
	if _, ok := str(row, "bank_name"); !ok {
		errs = append(errs, "bank_name is required")
	}
	return errs
}

func (e *bankEntity) Match(ctx context.Context, schemaName, tenantID string, row map[string]any) (*string, []Change, error) {
	code, ok := str(row, "bank_code")
	if !ok {
		return nil, nil, nil
	}
	query := fmt.Sprintf(`SELECT id, bank_name FROM %s.banks WHERE tenant_id = $1 AND bank_code = $2`, schemaName)
	var id, name string
	err := e.db.QueryRow(ctx, query, tenantID, code).Scan(&id, &name)
	if err == pgx.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("match bank: %w", err)
	}
	var changes []Change
	if v, ok := str(row, "bank_name"); ok && v != name {
		changes = append(changes, Change{Field: "bank_name", Old: name, New: v})
	}
	return &id, changes, nil
}

func (e *bankEntity) Create(ctx context.Context, q Querier, schemaName, tenantID string, row map[string]any) (string, error) {
	code, _ := str(row, "bank_code")
	name, _ := str(row, "bank_name")
	query := fmt.Sprintf(`INSERT INTO %s.banks (tenant_id, bank_code, bank_name) VALUES ($1, $2, $3) RETURNING id`, schemaName)
	var id string
	if err := q.QueryRow(ctx, query, tenantID, code, name).Scan(&id); err != nil {
		return "", fmt.Errorf("insert bank: %w", err)
	}
	return id, nil
}

func (e *bankEntity) Update(ctx context.Context, q Querier, schemaName, tenantID, recordID string, row map[string]any) error {
	name, _ := str(row, "bank_name")
	query := fmt.Sprintf(`UPDATE %s.banks SET bank_name = COALESCE(NULLIF($1, ''), bank_name) WHERE tenant_id = $2 AND id = $3`, schemaName)
	_, err := q.Exec(ctx, query, name, tenantID, recordID)
	if err != nil {
		return fmt.Errorf("update bank: %w", err)
	}
	return nil
}

// --- BANK_ACCOUNT -----------------------------------------------------------

// bankAccountEntity targets employee_bank_accounts, the table
// orchestrator.Repository.primaryBankAccount already reads from (spec
// grounding: internal/orchestrator/repository.go).
type bankAccountEntity struct{ db *pgxpool.Pool }

func NewBankAccountEntity(db *pgxpool.Pool) Entity {
	e := &bankAccountEntity{db: db}
	return Entity{Creator: e, Validator: e, Matcher: e}
}

func (e *bankAccountEntity) Validate(ctx context.Context, schemaName, tenantID string, row map[string]any) []string {
	var errs []string
	employeeNumber, ok := str(row, "employee_number")
	if !ok {
		errs = append(errs, "employee_number is required")
	}
	if _, ok := str(row, "account_number"); !ok {
		errs = append(errs, "account_number is required")
	}
	if _, ok := str(row, "account_name"); !ok {
		errs = append(errs, "account_name is required")
	}
	bankCode, ok := str(row, "bank_code")
	if !ok {
		errs = append(errs, "bank_code is required")
	}
	if employeeNumber != "" {
		query := fmt.Sprintf(`SELECT 1 FROM %s.employees WHERE tenant_id = $1 AND employee_number = $2`, schemaName)
		var exists int
		if err := e.db.QueryRow(ctx, query, tenantID, employeeNumber).Scan(&exists); err == pgx.ErrNoRows {
			errs = append(errs, fmt.Sprintf("employee_number %q does not exist", employeeNumber))
		}
	}
	if bankCode != "" {
		query := fmt.Sprintf(`SELECT 1 FROM %s.banks WHERE tenant_id = $1 AND bank_code = $2`, schemaName)
		var exists int
		if err := e.db.QueryRow(ctx, query, tenantID, bankCode).Scan(&exists); err == pgx.ErrNoRows {
			errs = append(errs, fmt.Sprintf("bank_code %q does not exist", bankCode))
		}
	}
	return errs
}

func (e *bankAccountEntity) employeeID(ctx context.Context, schemaName, tenantID, number string) (string, error) {
	query := fmt.Sprintf(`SELECT id FROM %s.employees WHERE tenant_id = $1 AND employee_number = $2`, schemaName)
	var id string
	err := e.db.QueryRow(ctx, query, tenantID, number).Scan(&id)
	return id, err
}

func (e *bankAccountEntity) Match(ctx context.Context, schemaName, tenantID string, row map[string]any) (*string, []Change, error) {
	employeeNumber, ok := str(row, "employee_number")
	if !ok {
		return nil, nil, nil
	}
	accountNumber, ok := str(row, "account_number")
	if !ok {
		return nil, nil, nil
	}
	employeeID, err := e.employeeID(ctx, schemaName, tenantID, employeeNumber)
	if err != nil {
		return nil, nil, nil
	}

	query := fmt.Sprintf(`
		SELECT id, account_name, branch, is_primary
		FROM %s.employee_bank_accounts
		WHERE tenant_id = $1 AND employee_id = $2 AND account_number = $3`, schemaName)

	var id, accountName, branch string
	var isPrimary bool
	err = e.db.QueryRow(ctx, query, tenantID, employeeID, accountNumber).Scan(&id, &accountName, &branch, &isPrimary)
	if err == pgx.ErrNoRows {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("match bank account: %w", err)
	}

	var changes []Change
	if v, ok := str(row, "account_name"); ok && v != accountName {
		changes = append(changes, Change{Field: "account_name", Old: accountName, New: v})
	}
	if v, ok := str(row, "branch"); ok && v != branch {
		changes = append(changes, Change{Field: "branch", Old: branch, New: v})
	}
	if v, present := row["is_primary"]; present {
		newPrimary, _ := v.(bool)
		if newPrimary != isPrimary {
			changes = append(changes, Change{Field: "is_primary", Old: isPrimary, New: newPrimary})
		}
	}
	return &id, changes, nil
}

func (e *bankAccountEntity) Create(ctx context.Context, q Querier, schemaName, tenantID string, row map[string]any) (string, error) {
	employeeNumber, _ := str(row, "employee_number")
	employeeID, err := e.employeeID(ctx, schemaName, tenantID, employeeNumber)
	if err != nil {
		return "", fmt.Errorf("resolve employee_number %q: %w", employeeNumber, err)
	}
	accountNumber, _ := str(row, "account_number")
	accountName, _ := str(row, "account_name")
	branch, _ := str(row, "branch")
	isPrimary := boolVal(row, "is_primary")

	query := fmt.Sprintf(`
		INSERT INTO %s.employee_bank_accounts
		    (tenant_id, employee_id, account_name, account_number, branch, is_primary, is_active)
		VALUES ($1, $2, $3, $4, $5, $6, true)
		RETURNING id`, schemaName)

	var id string
	err = q.QueryRow(ctx, query, tenantID, employeeID, accountName, accountNumber, branch, isPrimary).Scan(&id)
	if err != nil {
		return "", fmt.Errorf("insert bank account: %w", err)
	}
	return id, nil
}

func (e *bankAccountEntity) Update(ctx context.Context, q Querier, schemaName, tenantID, recordID string, row map[string]any) error {
	accountName, _ := str(row, "account_name")
	branch, _ := str(row, "branch")
	query := fmt.Sprintf(`
		UPDATE %s.employee_bank_accounts
		SET account_name = COALESCE(NULLIF($1, ''), account_name),
		    branch = COALESCE(NULLIF($2, ''), branch)
		WHERE tenant_id = $3 AND id = $4`, schemaName)
	_, err := q.Exec(ctx, query, accountName, branch, tenantID, recordID)
	if err != nil {
		return fmt.Errorf("update bank account: %w", err)
	}
	return nil
}
