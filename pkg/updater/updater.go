// Package updater keeps a database schema in sync with directories of SQL
// migration files.
//
// Files are identified by logical name and compared by content hash rather
// than by sequence number. Every applied file has a row in the updates
// ledger; a run scans the include directories, compares each file with the
// ledger and applies what is new or changed, detects renamed files, repairs
// rows with missing hashes and finally deals with rows whose file is gone.
//
// # Usage
//
//	u := updater.New(db, updater.Options{
//		Database:  updater.DatabaseWorld,
//		SourceDir: "/srv/core",
//		Policy:    updater.DefaultPolicy(),
//	})
//	res, err := u.Update(ctx)
//
// Update is safe to run on every startup. It assumes it is the only writer
// of the ledger while it runs.
package updater

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
)

// Options configures an Updater.
type Options struct {
	// Database selects the module subdirectory and base snapshot to use.
	Database Database
	// SourceDir is the project data root. "$/" include paths, module
	// directories and the base snapshot resolve against it.
	SourceDir string
	// ModulesDir is the modules directory relative to SourceDir.
	ModulesDir string
	// Modules lists the enabled module names.
	Modules []string

	Policy Policy

	// Executor runs migration files. Defaults to FileExecutor.
	Executor Executor
	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultPolicy returns the policy used when nothing is configured.
func DefaultPolicy() Policy {
	return Policy{
		Redundancy:           true,
		ArchivedRedundancy:   false,
		AllowRehash:          true,
		CleanDeadRefMaxCount: 3,
	}
}

// Result summarizes one Update run.
type Result struct {
	// Applied counts files executed this run, including changed files
	// executed again.
	Applied      int
	Reapplied    int
	Rehashed     int
	Renamed      int
	StatePatched int
	Skipped      int

	// Released and Archived count ledger rows of that state at the start
	// of the run.
	Released int
	Archived int

	// Orphans counts ledger rows with no file this run, excluding module rows.
	Orphans int
	// CleanedUp is the number of orphaned rows deleted.
	CleanedUp int
}

func (r *Result) record(d Decision) {
	switch d.Action {
	case ActionApply:
		r.Applied++
		if d.Reapply() {
			r.Reapplied++
		}
	case ActionRehash:
		r.Rehashed++
	case ActionRename:
		r.Renamed++
	case ActionPatchState:
		r.StatePatched++
	case ActionSkip:
		r.Skipped++
	}
}

// Plan is the outcome of reconciling without writing anything.
type Plan struct {
	// Decisions holds one entry per candidate, in processing order.
	Decisions []Decision
	// Orphans are ledger rows with no file, excluding module rows.
	Orphans []AppliedRecord
	// CleanUp reports whether Update would delete the orphans.
	CleanUp bool
}

// Pending returns the decisions that would write to the database.
func (p *Plan) Pending() []Decision {
	var out []Decision
	for _, d := range p.Decisions {
		if d.Action != ActionSkip {
			out = append(out, d)
		}
	}
	return out
}

// Updater reconciles one database with its migration directories.
type Updater struct {
	db     DB
	opts   Options
	logger *slog.Logger
	ledger *Ledger
}

// New creates an Updater for db.
func New(db DB, opts Options) *Updater {
	if opts.Executor == nil {
		opts.Executor = FileExecutor{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("database", opts.Database.Name())
	return &Updater{
		db:     db,
		opts:   opts,
		logger: logger,
		ledger: NewLedger(logger),
	}
}

// Ledger returns the ledger store used by u.
func (u *Updater) Ledger() *Ledger {
	return u.ledger
}

// Policy returns the policy u reconciles with.
func (u *Updater) Policy() Policy {
	return u.opts.Policy
}

// Resolver returns the include resolver configured from u's options.
func (u *Updater) Resolver() *IncludeResolver {
	return &IncludeResolver{
		SourceDir:  u.opts.SourceDir,
		ModulesDir: u.opts.ModulesDir,
		Modules:    u.opts.Modules,
		Database:   u.opts.Database,
		Logger:     u.logger,
	}
}

// Update applies every new or changed migration file and reconciles the
// ledger. Each file is applied in its own transaction; a failure aborts the
// run but keeps everything committed before it.
//
// The context is checked before each file. On cancellation Update returns
// the counts so far together with the context error.
func (u *Updater) Update(ctx context.Context) (*Result, error) {
	logger := u.logger.With("run", uuid.NewString())

	if err := u.ledger.EnsureTables(ctx, u.db); err != nil {
		return nil, err
	}

	files, records, err := u.load(ctx)
	if err != nil {
		return nil, err
	}
	res := &Result{}
	if len(files) == 0 {
		logger.Info("no migration files found")
		return res, nil
	}
	for _, rec := range records {
		switch rec.State {
		case StateReleased:
			res.Released++
		case StateArchived:
			res.Archived++
		}
	}

	rc := newReconciler(u.opts.Policy, records, files, logger)
	ap := &applier{db: u.db, ledger: u.ledger, exec: u.opts.Executor}

	for _, f := range reconcileOrder(files) {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("update interrupted: %w", err)
		}
		d, err := rc.decide(f)
		if err != nil {
			return res, err
		}
		logDecision(logger, d)
		if err := ap.apply(ctx, d); err != nil {
			return res, err
		}
		rc.claim(d)
		res.record(d)
	}

	if err := ctx.Err(); err != nil {
		return res, fmt.Errorf("update interrupted: %w", err)
	}
	orphans := rc.orphans()
	res.Orphans = len(orphans)
	if len(orphans) > 0 {
		for _, rec := range orphans {
			logger.Warn("file was applied to the database but is missing from the source directories",
				"name", rec.Name,
				"state", rec.State.String())
		}
		if u.opts.Policy.ShouldCleanUp(len(orphans)) {
			if err := u.cleanUp(ctx, orphans); err != nil {
				return res, err
			}
			res.CleanedUp = len(orphans)
			logger.Info("deleted dead ledger references", "count", len(orphans))
		} else {
			logger.Warn("cleanup is disabled: dirty files were applied to the database but are missing from the source directories",
				"count", len(orphans),
				"clean_dead_ref_max_count", u.opts.Policy.CleanDeadRefMaxCount)
		}
	}

	logger.Info("update finished",
		"applied", res.Applied,
		"released", res.Released,
		"archived", res.Archived)
	return res, nil
}

// Plan runs the same reconciliation as Update but writes nothing. The
// ledger tables must already exist.
func (u *Updater) Plan(ctx context.Context) (*Plan, error) {
	files, records, err := u.load(ctx)
	if err != nil {
		return nil, err
	}
	plan := &Plan{}
	if len(files) == 0 {
		return plan, nil
	}

	rc := newReconciler(u.opts.Policy, records, files, u.logger)
	for _, f := range reconcileOrder(files) {
		d, err := rc.decide(f)
		if err != nil {
			return nil, err
		}
		rc.claim(d)
		plan.Decisions = append(plan.Decisions, d)
	}
	plan.Orphans = rc.orphans()
	plan.CleanUp = len(plan.Orphans) > 0 && u.opts.Policy.ShouldCleanUp(len(plan.Orphans))
	return plan, nil
}

// load resolves, scans and reads the ledger snapshot for a run.
func (u *Updater) load(ctx context.Context) ([]*MigrationFile, []AppliedRecord, error) {
	dirs, err := u.Resolver().Resolve(ctx, u.db)
	if err != nil {
		return nil, nil, err
	}
	files, err := Scan(dirs)
	if err != nil {
		return nil, nil, err
	}
	records, err := u.ledger.Load(ctx, u.db)
	if err != nil {
		return nil, nil, err
	}
	return files, records, nil
}

func (u *Updater) cleanUp(ctx context.Context, orphans []AppliedRecord) error {
	names := make([]string, len(orphans))
	for i, rec := range orphans {
		names[i] = rec.Name
	}
	return inTx(ctx, u.db, func(tx *sql.Tx) error {
		return u.ledger.DeleteMany(ctx, tx, names)
	})
}

func logDecision(logger *slog.Logger, d Decision) {
	switch d.Action {
	case ActionApply:
		msg := "applying file"
		if d.Reapply() {
			msg = "reapplying changed file"
		}
		logger.Info(msg, "name", d.File.Name, "path", d.File.Path, "state", d.File.State.String())
	case ActionRehash:
		logger.Info("rehashing file", "name", d.File.Name, "hash", d.Hash)
	case ActionRename:
		logger.Info("renaming ledger entry", "from", d.RenameFrom, "to", d.File.Name)
	case ActionPatchState:
		logger.Info("updating state",
			"name", d.File.Name,
			"from", d.Previous.State.String(),
			"to", d.File.State.String())
	default:
		logger.Debug("file up to date", "name", d.File.Name)
	}
}
