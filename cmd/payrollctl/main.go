// Command payrollctl is the operator-facing CLI surface named in spec §6:
// compute, approve, pay and reopen drive a Run/Period through the
// lifecycle state machine; backpay preview previews a retroactive-pay
// calculation; import execute runs a previously-confirmed bulk import
// session. Grounded on cmd/migrate's flag-based, DATABASE_URL-driven
// shape — there is no CLI framework anywhere in the example pack, so this
// stays on the standard library's flag package rather than reaching for
// one.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/ekow-ghana/payroll-core/internal/apierror"
	"github.com/ekow-ghana/payroll-core/internal/backpay"
	"github.com/ekow-ghana/payroll-core/internal/compgraph"
	"github.com/ekow-ghana/payroll-core/internal/config"
	"github.com/ekow-ghana/payroll-core/internal/database"
	"github.com/ekow-ghana/payroll-core/internal/importpipe"
	"github.com/ekow-ghana/payroll-core/internal/lifecycle"
	"github.com/ekow-ghana/payroll-core/internal/orchestrator"
	"github.com/ekow-ghana/payroll-core/internal/overlay"
	"github.com/ekow-ghana/payroll-core/internal/payrollerr"
	"github.com/ekow-ghana/payroll-core/internal/ratebook"
	"github.com/ekow-ghana/payroll-core/internal/tenant"
)

func main() {
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(2)
	}

	cfg := config.Load()
	ctx := context.Background()

	pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
	if err != nil {
		fail(err)
	}
	defer pool.Close()

	if err := dispatch(ctx, pool, cfg, os.Args[1], os.Args[2:]); err != nil {
		fail(err)
	}
}

func dispatch(ctx context.Context, pool *pgxpool.Pool, cfg *config.Config, cmd string, args []string) error {
	switch cmd {
	case "compute":
		return runCompute(ctx, pool, cfg, args)
	case "approve":
		return runApprove(ctx, pool, args)
	case "pay":
		return runPay(ctx, pool, args)
	case "reopen":
		return runReopen(ctx, pool, args)
	case "backpay":
		return runBackpay(ctx, pool, args)
	case "import":
		return runImport(ctx, pool, args)
	default:
		printUsage()
		os.Exit(2)
		return nil
	}
}

func printUsage() {
	fmt.Fprintln(os.Stderr, `payrollctl <command> [args]

Commands:
  compute --tenant <id> [--actor <id>] <run_id>
  approve --tenant <id> [--actor <id>] <run_id>
  pay     --tenant <id> [--actor <id>] [--reference <ref>] <run_id>
  reopen  --tenant <id> [--actor <id>] [--force] [--reason <text>] <period_id>
  backpay preview --tenant <id> --from <YYYY-MM-DD> --to <YYYY-MM-DD> [--reason <text>] <employee_id>
  import execute --tenant <id> <session_id>`)
}

// newFlagSet returns a FlagSet that reports parse errors to the caller
// instead of exiting directly, so every failure — parse or business-logic
// — goes through fail's single JSON-error-object contract.
func newFlagSet(name string) *flag.FlagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	fs.SetOutput(os.Stderr)
	return fs
}

// requireArg returns the FlagSet's first positional argument, labelling a
// missing one as a Validation error.
func requireArg(fs *flag.FlagSet, label string) (string, error) {
	if fs.NArg() < 1 {
		return "", payrollerr.Validation(label, "missing required argument <%s>", label)
	}
	return fs.Arg(0), nil
}

// resolveTenant loads the tenant row so every subcommand can turn a
// tenant_id into the schema_name the schema-per-tenant store layer needs.
func resolveTenant(ctx context.Context, pool *pgxpool.Pool, tenantID string) (*tenant.Tenant, error) {
	repo := tenant.NewPostgresRepository(pool)
	t, err := repo.GetTenant(ctx, tenantID)
	if err != nil {
		return nil, fmt.Errorf("resolve tenant: %w", err)
	}
	if t == nil {
		return nil, payrollerr.NotFound("Tenant", tenantID)
	}
	return t, nil
}

func runCompute(ctx context.Context, pool *pgxpool.Pool, cfg *config.Config, args []string) error {
	fs := newFlagSet("compute")
	tenantID := fs.String("tenant", "", "tenant ID")
	actorID := fs.String("actor", "cli", "actor ID recorded on the audit log")
	if err := fs.Parse(args); err != nil {
		return err
	}
	runID, err := requireArg(fs, "run_id")
	if err != nil {
		return err
	}

	t, err := resolveTenant(ctx, pool, *tenantID)
	if err != nil {
		return err
	}

	compgraphRepo := compgraph.NewRepository(pool)
	overlaySvc := overlay.NewService(overlay.NewRepository(pool))
	ratebookSvc := ratebook.NewService(ratebook.NewRepository(pool))
	backpaySvc := backpay.NewService(backpay.NewRepository(pool, compgraphRepo, overlaySvc, ratebookSvc))
	store := orchestrator.NewRepository(pool, compgraphRepo, overlaySvc)
	progress := orchestrator.NewProgressStore(cfg.ProgressTTL)
	locks := database.NewAdvisoryRunLocker(pool)

	svc := orchestrator.NewService(store, backpaySvc, ratebookSvc, progress, locks, orchestrator.DefaultConfig(), log.Logger)

	if err := svc.Compute(ctx, t.SchemaName, t.ID, runID, *actorID); err != nil {
		return err
	}
	fmt.Printf("run %s computed\n", runID)
	return nil
}

func runApprove(ctx context.Context, pool *pgxpool.Pool, args []string) error {
	fs := newFlagSet("approve")
	tenantID := fs.String("tenant", "", "tenant ID")
	actorID := fs.String("actor", "cli", "actor ID recorded on the audit log")
	if err := fs.Parse(args); err != nil {
		return err
	}
	runID, err := requireArg(fs, "run_id")
	if err != nil {
		return err
	}

	t, err := resolveTenant(ctx, pool, *tenantID)
	if err != nil {
		return err
	}

	svc := lifecycle.NewService(lifecycle.NewRepository(pool), database.NewAdvisoryRunLocker(pool), log.Logger)
	if err := svc.Approve(ctx, t.SchemaName, t.ID, runID, *actorID); err != nil {
		return err
	}
	fmt.Printf("run %s approved\n", runID)
	return nil
}

func runPay(ctx context.Context, pool *pgxpool.Pool, args []string) error {
	fs := newFlagSet("pay")
	tenantID := fs.String("tenant", "", "tenant ID")
	actorID := fs.String("actor", "cli", "actor ID recorded on the audit log")
	reference := fs.String("reference", "", "payment reference stamped onto every paid item")
	if err := fs.Parse(args); err != nil {
		return err
	}
	runID, err := requireArg(fs, "run_id")
	if err != nil {
		return err
	}

	t, err := resolveTenant(ctx, pool, *tenantID)
	if err != nil {
		return err
	}

	svc := lifecycle.NewService(lifecycle.NewRepository(pool), database.NewAdvisoryRunLocker(pool), log.Logger)
	if err := svc.ProcessPayment(ctx, t.SchemaName, t.ID, runID, *actorID, *reference); err != nil {
		return err
	}
	fmt.Printf("run %s paid\n", runID)
	return nil
}

func runReopen(ctx context.Context, pool *pgxpool.Pool, args []string) error {
	fs := newFlagSet("reopen")
	tenantID := fs.String("tenant", "", "tenant ID")
	actorID := fs.String("actor", "cli", "actor ID recorded on the audit log")
	force := fs.Bool("force", false, "required to reopen a PAID or CLOSED period")
	reason := fs.String("reason", "", "required alongside --force")
	if err := fs.Parse(args); err != nil {
		return err
	}
	periodID, err := requireArg(fs, "period_id")
	if err != nil {
		return err
	}

	t, err := resolveTenant(ctx, pool, *tenantID)
	if err != nil {
		return err
	}

	svc := lifecycle.NewService(lifecycle.NewRepository(pool), database.NewAdvisoryRunLocker(pool), log.Logger)
	if err := svc.Reopen(ctx, t.SchemaName, t.ID, periodID, *actorID, *force, *reason); err != nil {
		return err
	}
	fmt.Printf("period %s reopened\n", periodID)
	return nil
}

func runBackpay(ctx context.Context, pool *pgxpool.Pool, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("backpay: expected a subcommand (preview)")
	}
	switch args[0] {
	case "preview":
		return runBackpayPreview(ctx, pool, args[1:])
	default:
		return fmt.Errorf("backpay: unknown subcommand %q", args[0])
	}
}

func runBackpayPreview(ctx context.Context, pool *pgxpool.Pool, args []string) error {
	fs := newFlagSet("backpay preview")
	tenantID := fs.String("tenant", "", "tenant ID")
	from := fs.String("from", "", "period range start, YYYY-MM-DD")
	to := fs.String("to", "", "period range end, YYYY-MM-DD")
	reason := fs.String("reason", "", "reason recorded if this preview is later turned into a request")
	referencePeriodID := fs.String("reference-period", "", "optional reference period ID")
	if err := fs.Parse(args); err != nil {
		return err
	}
	employeeID, err := requireArg(fs, "employee_id")
	if err != nil {
		return err
	}

	fromDate, err := time.Parse("2006-01-02", *from)
	if err != nil {
		return payrollerr.Validation("from", "invalid date %q: %v", *from, err)
	}
	toDate, err := time.Parse("2006-01-02", *to)
	if err != nil {
		return payrollerr.Validation("to", "invalid date %q: %v", *to, err)
	}

	t, err := resolveTenant(ctx, pool, *tenantID)
	if err != nil {
		return err
	}

	compgraphRepo := compgraph.NewRepository(pool)
	overlaySvc := overlay.NewService(overlay.NewRepository(pool))
	ratebookSvc := ratebook.NewService(ratebook.NewRepository(pool))
	svc := backpay.NewService(backpay.NewRepository(pool, compgraphRepo, overlaySvc, ratebookSvc))

	var refPeriod *string
	if *referencePeriodID != "" {
		refPeriod = referencePeriodID
	}

	calc, err := svc.Calculate(ctx, t.SchemaName, t.ID, employeeID, fromDate, toDate, *reason, refPeriod)
	if err != nil {
		return err
	}

	return printJSON(svc.Preview(calc))
}

func runImport(ctx context.Context, pool *pgxpool.Pool, args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("import: expected a subcommand (execute)")
	}
	switch args[0] {
	case "execute":
		return runImportExecute(ctx, pool, args[1:])
	default:
		return fmt.Errorf("import: unknown subcommand %q", args[0])
	}
}

func runImportExecute(ctx context.Context, pool *pgxpool.Pool, args []string) error {
	fs := newFlagSet("import execute")
	tenantID := fs.String("tenant", "", "tenant ID")
	if err := fs.Parse(args); err != nil {
		return err
	}
	sessionID, err := requireArg(fs, "session_id")
	if err != nil {
		return err
	}

	registry := importpipe.NewRegistry()
	registry.Register(importpipe.EntityEmployee, importpipe.NewEmployeeEntity(pool))
	registry.Register(importpipe.EntityEmployeeTransaction, importpipe.NewEmployeeTransactionEntity(pool))
	registry.Register(importpipe.EntityPayComponent, importpipe.NewPayComponentEntity(pool))
	registry.Register(importpipe.EntityBank, importpipe.NewBankEntity(pool))
	registry.Register(importpipe.EntityBankAccount, importpipe.NewBankAccountEntity(pool))

	svc := importpipe.NewService(
		importpipe.NewRepository(pool),
		registry,
		importpipe.NewTxRunner(pool),
		nil, // no AI column mapper wired for CLI-driven execute; Analyse/Preview already ran it
		importpipe.NewProgressStore(30*time.Minute),
	)

	session, results, err := svc.Execute(ctx, *tenantID, sessionID)
	if err != nil {
		return err
	}

	return printJSON(struct {
		Status  string                    `json:"status"`
		Results []importpipe.Result       `json:"results"`
		Session *importpipe.ImportSession `json:"session"`
	}{Status: string(session.Status), Results: results, Session: session})
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// errorEnvelope is the single JSON error object spec §6/§7 requires on
// stderr: {"kind": ..., "message": ...}.
type errorEnvelope struct {
	Kind    string `json:"kind"`
	Message string `json:"message"`
}

func errorKind(err error) string {
	var validation *payrollerr.ValidationError
	var illegal *payrollerr.IllegalTransitionError
	var notFound *payrollerr.NotFoundError
	var rateResolution *payrollerr.RateResolutionError
	var concurrency *payrollerr.ConcurrencyConflictError
	var external *payrollerr.ExternalError

	switch {
	case errors.As(err, &validation):
		return "Validation"
	case errors.As(err, &illegal):
		return "IllegalTransition"
	case errors.As(err, &notFound):
		return "NotFound"
	case errors.As(err, &rateResolution):
		return "RateResolution"
	case errors.As(err, &concurrency):
		return "ConcurrencyConflict"
	case errors.As(err, &external):
		return "External"
	default:
		return "Internal"
	}
}

// fail writes the single JSON error object spec §6/§7 requires to stderr
// and exits non-zero; 0 is reserved for success. An Internal-kind error
// (anything not already one of the typed payrollerr kinds) is routed
// through apierror.Sanitize first — operators run this CLI against a
// shared database, and a raw driver error can otherwise leak a
// connection string or stack frame onto stderr.
func fail(err error) {
	kind := errorKind(err)
	message := err.Error()
	if kind == "Internal" {
		message = apierror.Sanitize(message)
	}
	envelope := errorEnvelope{Kind: kind, Message: message}
	data, marshalErr := json.Marshal(envelope)
	if marshalErr != nil {
		fmt.Fprintln(os.Stderr, err.Error())
	} else {
		fmt.Fprintln(os.Stderr, string(data))
	}
	os.Exit(1)
}
