package updater

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sort"
)

// BaseDir returns the base snapshot directory for u's database:
// <source>/data/sql/base/<db-module-name>.
func (u *Updater) BaseDir() string {
	return filepath.Join(u.opts.SourceDir, "data", "sql", "base", u.opts.Database.ModuleName())
}

// CountTables returns the number of base tables in the current schema.
func CountTables(ctx context.Context, db Execer) (int, error) {
	var n int
	err := db.QueryRowContext(ctx, `
		SELECT COUNT(*)
		FROM information_schema.tables
		WHERE table_schema = current_schema()
		AND table_type = 'BASE TABLE'
	`).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("counting tables: %w", err)
	}
	return n, nil
}

// Populate seeds an empty database from the base snapshot. It does nothing
// and returns false when the database already has tables.
func (u *Updater) Populate(ctx context.Context) (bool, error) {
	n, err := CountTables(ctx, u.db)
	if err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	u.logger.Info("database is empty, populating from base snapshot", "dir", u.BaseDir())
	if _, err := u.ApplyBase(ctx); err != nil {
		return true, err
	}
	return true, nil
}

// ApplyBase applies every *.sql and *.sql.gz file directly inside BaseDir in
// name order, one transaction per file, and returns how many were applied.
// A missing directory fails with ErrBaseDirMissing, a directory
// without files with ErrBaseDirEmpty.
func (u *Updater) ApplyBase(ctx context.Context) (int, error) {
	dir := u.BaseDir()
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return 0, fmt.Errorf("%w: %s", ErrBaseDirMissing, dir)
	}
	if err != nil {
		return 0, fmt.Errorf("reading base directory %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.Type().IsRegular() && isMigrationFile(e.Name()) {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	if len(paths) == 0 {
		return 0, fmt.Errorf("%w: %s", ErrBaseDirEmpty, dir)
	}
	sort.Strings(paths)

	for i, path := range paths {
		if err := ctx.Err(); err != nil {
			return i, fmt.Errorf("populate interrupted: %w", err)
		}
		u.logger.Info("applying base file", "path", path)
		err := inTx(ctx, u.db, func(tx *sql.Tx) error {
			return u.opts.Executor.Execute(ctx, tx, path)
		})
		if err != nil {
			return i, &FileError{Op: "populate", Path: path, Err: err}
		}
	}
	return len(paths), nil
}
