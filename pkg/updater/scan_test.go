package updater

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func names(files []*MigrationFile) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Name
	}
	return out
}

func TestScan_OrderAndFilter(t *testing.T) {
	a := t.TempDir()
	b := t.TempDir()
	writeFile(t, a, "002_second.sql", "")
	writeFile(t, a, "001_first.sql", "")
	writeFile(t, a, "sub/003_nested.sql.gz", "")
	writeFile(t, a, "README.md", "")
	writeFile(t, a, "notes.txt", "")
	writeFile(t, b, "000_custom.sql", "")

	files, err := Scan([]IncludeDirectory{
		{Path: a, State: StateReleased},
		{Path: b, State: StateCustom},
	})
	require.NoError(t, err)

	// Directory order first, then path order within a directory.
	assert.Equal(t, []string{"001_first", "002_second", "003_nested", "000_custom"}, names(files))
	assert.Equal(t, StateReleased, files[0].State)
	assert.Equal(t, StateCustom, files[3].State)
}

func TestScan_DepthBounded(t *testing.T) {
	root := t.TempDir()
	tests := []struct {
		dirs int
		name string
	}{
		{3, "shallow"},
		{maxScanDepth - 1, "at_limit"},
		{maxScanDepth, "past_limit"},
		{maxScanDepth + 1, "deep"},
	}
	for i, tt := range tests {
		// Separate branches so every file is reached through its own chain.
		prefix := strings.Repeat(string(rune('a'+i))+"/", tt.dirs)
		writeFile(t, root, filepath.FromSlash(prefix+tt.name+".sql"), "")
	}

	files, err := Scan([]IncludeDirectory{{Path: root, State: StateReleased}})
	require.NoError(t, err)
	// A file under maxScanDepth-1 directories sits exactly at maxScanDepth.
	assert.Equal(t, []string{"shallow", "at_limit"}, names(files))
}

func TestScan_DuplicateAcrossDirectories(t *testing.T) {
	a := t.TempDir()
	b := t.TempDir()
	writeFile(t, a, "001_init.sql", "")
	writeFile(t, b, "001_init.sql", "")

	_, err := Scan([]IncludeDirectory{
		{Path: a, State: StateReleased},
		{Path: b, State: StateCustom},
	})
	require.Error(t, err)
	assert.True(t, IsDuplicateNameErr(err))
	assert.Contains(t, err.Error(), "001_init")
}

func TestScan_DuplicateCompressedAndPlain(t *testing.T) {
	a := t.TempDir()
	writeFile(t, a, "001_init.sql", "")
	writeFile(t, a, "001_init.sql.gz", "")

	_, err := Scan([]IncludeDirectory{{Path: a, State: StateReleased}})
	assert.True(t, IsDuplicateNameErr(err))
}
