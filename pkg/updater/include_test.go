package updater

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIncludeResolver_Resolve(t *testing.T) {
	db := newTestDB(t)
	source := t.TempDir()

	require.NoError(t, os.MkdirAll(filepath.Join(source, "sql", "updates", "db-world"), 0o755))
	absolute := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(source, "modules", "mod-a", "data", "sql", "db-world"), 0o755))

	includeDir(t, db, "$/sql/updates/db-world", StateReleased)
	includeDir(t, db, absolute, StateCustom)
	includeDir(t, db, "$/sql/missing", StateReleased)
	_, err := db.Exec(`INSERT INTO updates_include (path, state) VALUES ($1, $2)`, "$/sql/updates", "FUTURE")
	require.NoError(t, err)

	r := &IncludeResolver{
		SourceDir:  source,
		ModulesDir: "modules",
		Modules:    []string{"mod-a", "mod-b"},
		Database:   DatabaseWorld,
		Logger:     discardLogger(),
	}
	dirs, err := r.Resolve(context.Background(), db)
	require.NoError(t, err)

	require.Len(t, dirs, 3)
	// Table rows come back in path order; "$/..." sorts before "/...".
	assert.Equal(t, IncludeDirectory{Path: filepath.Join(source, "sql", "updates", "db-world"), State: StateReleased}, dirs[0])
	assert.Equal(t, IncludeDirectory{Path: absolute, State: StateCustom}, dirs[1])
	// Modules come last; mod-b has no directory and is dropped.
	assert.Equal(t, IncludeDirectory{
		Path:  filepath.Join(source, "modules", "mod-a", "data", "sql", "db-world"),
		State: StateModule,
	}, dirs[2])
}

func TestIncludeResolver_ModuleDirectories(t *testing.T) {
	r := &IncludeResolver{
		SourceDir:  "/srv",
		ModulesDir: "modules",
		Modules:    []string{"mod-x"},
		Database:   DatabaseCharacters,
	}
	assert.Equal(t, []string{filepath.FromSlash("/srv/modules/mod-x/data/sql/db-characters")}, r.ModuleDirectories())
}

func TestIncludeResolver_Registered(t *testing.T) {
	db := newTestDB(t)
	source := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(source, "present"), 0o755))
	includeDir(t, db, "$/present", StateArchived)
	_, err := db.Exec(`INSERT INTO updates_include (path, state) VALUES ('$/absent', 'BOGUS')`)
	require.NoError(t, err)

	r := &IncludeResolver{SourceDir: source, Database: DatabaseAuth}
	got, err := r.Registered(context.Background(), db)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "$/absent", got[0].Raw)
	assert.False(t, got[0].Exists)
	assert.True(t, IsUnknownStateErr(got[0].StateErr))

	assert.Equal(t, filepath.Join(source, "present"), got[1].Path)
	assert.True(t, got[1].Exists)
	assert.NoError(t, got[1].StateErr)
	assert.Equal(t, StateArchived, got[1].State)
}
