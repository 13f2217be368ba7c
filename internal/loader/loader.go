// Package loader runs the updater for every enabled database: it connects,
// creates missing databases, seeds empty ones from the base snapshot and
// applies pending migration files.
package loader

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"github.com/pthm/dbupdater/internal/cli"
	"github.com/pthm/dbupdater/pkg/updater"
)

// DefaultDriver is the database/sql driver used to open connections.
const DefaultDriver = "postgres"

// invalidCatalogName is the SQLSTATE postgres reports for a missing database.
const invalidCatalogName = "3D000"

// Step names the phase of a database run that failed.
type Step string

const (
	StepConfig   Step = "config"
	StepConnect  Step = "connect"
	StepSetup    Step = "setup"
	StepPopulate Step = "populate"
	StepUpdate   Step = "update"
)

// StepError reports which database and phase a failure belongs to.
type StepError struct {
	Database updater.Database
	Step     Step
	Err      error
}

func (e *StepError) Error() string {
	return fmt.Sprintf("%s database: %s: %v", e.Database.Name(), e.Step, e.Err)
}

func (e *StepError) Unwrap() error {
	return e.Err
}

// Report is the outcome for one database.
type Report struct {
	Database updater.Database
	// Created is set when the database did not exist and was created.
	Created bool
	// Populated is set when the base snapshot was applied.
	Populated bool
	Result    *updater.Result
}

// Loader runs updates for the databases enabled in a config.
type Loader struct {
	cfg    *cli.Config
	driver string
	logger *slog.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithDriver selects the database/sql driver name, "postgres" by default.
func WithDriver(name string) Option {
	return func(l *Loader) { l.driver = name }
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(l *Loader) { l.logger = logger }
}

// New creates a Loader for cfg.
func New(cfg *cli.Config, opts ...Option) *Loader {
	l := &Loader{cfg: cfg, driver: DefaultDriver, logger: slog.Default()}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Run updates every enabled database in order. The first failure stops the
// run; the reports of databases already finished are returned with it.
func (l *Loader) Run(ctx context.Context) ([]Report, error) {
	var reports []Report
	for _, db := range l.cfg.EnabledDatabases() {
		rep, err := l.load(ctx, db)
		if err != nil {
			return reports, err
		}
		reports = append(reports, *rep)
	}
	return reports, nil
}

func (l *Loader) load(ctx context.Context, db updater.Database) (*Report, error) {
	logger := l.logger.With("database", db.Name())
	rep := &Report{Database: db}
	fail := func(step Step, err error) (*Report, error) {
		return nil, &StepError{Database: db, Step: step, Err: err}
	}

	conn, err := l.Open(ctx, db)
	if err != nil && IsMissingDatabase(err) && l.cfg.Updates.AutoSetup {
		logger.Info("database does not exist, creating it")
		if err := l.create(ctx, db); err != nil {
			return fail(StepSetup, err)
		}
		rep.Created = true
		conn, err = l.Open(ctx, db)
	}
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Close() }()

	opts := l.cfg.Options(db)
	opts.Logger = l.logger
	u := updater.New(conn, opts)

	rep.Populated, err = u.Populate(ctx)
	if err != nil {
		return fail(StepPopulate, err)
	}

	rep.Result, err = u.Update(ctx)
	if err != nil {
		return fail(StepUpdate, err)
	}
	return rep, nil
}

// Open connects to db and verifies the connection. Failures are reported as
// a *StepError for StepConfig or StepConnect.
func (l *Loader) Open(ctx context.Context, db updater.Database) (*sql.DB, error) {
	dsn, err := l.cfg.Database(db).DSN()
	if err != nil {
		return nil, &StepError{Database: db, Step: StepConfig, Err: err}
	}
	conn, err := l.open(ctx, dsn)
	if err != nil {
		return nil, &StepError{Database: db, Step: StepConnect, Err: err}
	}
	return conn, nil
}

func (l *Loader) open(ctx context.Context, dsn string) (*sql.DB, error) {
	conn, err := sql.Open(l.driver, dsn)
	if err != nil {
		return nil, err
	}
	if err := conn.PingContext(ctx); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

// create issues CREATE DATABASE through the server's maintenance database.
func (l *Loader) create(ctx context.Context, db updater.Database) error {
	dc := l.cfg.Database(db)
	name, err := dc.DatabaseName()
	if err != nil {
		return err
	}
	dsn, err := dc.MaintenanceDSN()
	if err != nil {
		return err
	}

	admin, err := l.open(ctx, dsn)
	if err != nil {
		return fmt.Errorf("connecting to maintenance database: %w", err)
	}
	defer func() { _ = admin.Close() }()

	if _, err := admin.ExecContext(ctx, "CREATE DATABASE "+pq.QuoteIdentifier(name)); err != nil {
		return fmt.Errorf("creating database %s: %w", name, err)
	}
	return nil
}

// IsMissingDatabase reports whether err is the server saying the target
// database does not exist. Both lib/pq and pgx errors are recognized.
func IsMissingDatabase(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == invalidCatalogName
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == invalidCatalogName
	}
	return false
}
