package updater

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeGzip(t *testing.T, path, content string) {
	t.Helper()
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, err := zw.Write([]byte(content))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func TestReadMigration_Gzip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "001.sql.gz")
	writeGzip(t, path, "CREATE TABLE z (id INTEGER);")

	content, err := ReadMigration(path)
	require.NoError(t, err)
	assert.Equal(t, "CREATE TABLE z (id INTEGER);", content)
}

func TestReadMigration_CorruptGzip(t *testing.T) {
	path := writeFile(t, t.TempDir(), "001.sql.gz", "not gzip")
	_, err := ReadMigration(path)
	assert.Error(t, err)
}

func TestFileExecutor_RunsGzipFile(t *testing.T) {
	db := newTestDB(t)
	path := filepath.Join(t.TempDir(), "001.sql.gz")
	writeGzip(t, path, "CREATE TABLE z (id INTEGER); INSERT INTO z (id) VALUES (7);")

	require.NoError(t, FileExecutor{}.Execute(context.Background(), db, path))

	var id int
	require.NoError(t, db.QueryRow(`SELECT id FROM z`).Scan(&id))
	assert.Equal(t, 7, id)
}

// failingExecer fails every statement it is handed.
type failingExecer struct {
	Execer
	calls int
}

func (f *failingExecer) ExecContext(context.Context, string, ...any) (sql.Result, error) {
	f.calls++
	return nil, errors.New("should not be called")
}

func TestFileExecutor_SkipsWhitespaceOnlyFile(t *testing.T) {
	path := writeFile(t, t.TempDir(), "001.sql", "  \n\t\n")
	ex := &failingExecer{}

	require.NoError(t, FileExecutor{}.Execute(context.Background(), ex, path))
	assert.Zero(t, ex.calls)
}

func TestFileExecutor_WrapsError(t *testing.T) {
	path := writeFile(t, t.TempDir(), "001.sql", "SELECT 1;")
	ex := &failingExecer{}

	err := FileExecutor{}.Execute(context.Background(), ex, path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), path)
	assert.Equal(t, 1, ex.calls)
}
