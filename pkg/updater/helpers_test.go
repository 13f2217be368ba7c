package updater

import (
	"context"
	"database/sql"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// newTestDB returns a file-backed sqlite database with the ledger tables.
// The ledger SQL is portable between postgres and sqlite.
func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	require.NoError(t, NewLedger(discardLogger()).EnsureTables(context.Background(), db))
	return db
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// writeFile writes content to dir/rel, creating parent directories.
func writeFile(t *testing.T, dir, rel, content string) string {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func includeDir(t *testing.T, db *sql.DB, path string, state State) {
	t.Helper()
	_, err := db.Exec(`INSERT INTO updates_include (path, state) VALUES ($1, $2)`, path, state.String())
	require.NoError(t, err)
}

func ledgerRows(t *testing.T, db *sql.DB) map[string]AppliedRecord {
	t.Helper()
	records, err := NewLedger(discardLogger()).Load(context.Background(), db)
	require.NoError(t, err)
	out := make(map[string]AppliedRecord, len(records))
	for _, rec := range records {
		out[rec.Name] = rec
	}
	return out
}

// recordingExecutor runs files with FileExecutor and remembers their names.
type recordingExecutor struct {
	mu    sync.Mutex
	names []string
}

func (e *recordingExecutor) Execute(ctx context.Context, tx Execer, path string) error {
	e.mu.Lock()
	e.names = append(e.names, LogicalName(path))
	e.mu.Unlock()
	return FileExecutor{}.Execute(ctx, tx, path)
}

func (e *recordingExecutor) executed() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.names...)
}

func (e *recordingExecutor) reset() {
	e.mu.Lock()
	e.names = nil
	e.mu.Unlock()
}

func newTestUpdater(db *sql.DB, exec Executor, policy Policy) *Updater {
	return New(db, Options{
		Database: DatabaseWorld,
		Policy:   policy,
		Executor: exec,
		Logger:   discardLogger(),
	})
}
