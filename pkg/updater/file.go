package updater

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// MigrationFile is a candidate migration found on disk during a scan.
// It is rebuilt every run and never persisted as-is.
type MigrationFile struct {
	// Path is the filesystem path of the file.
	Path string
	// Name is the logical name used as the ledger key. See LogicalName.
	Name string
	// State is inherited from the include directory the file was found in.
	State State

	hash string
}

// NewMigrationFile returns a candidate for path tagged with state.
func NewMigrationFile(path string, state State) *MigrationFile {
	return &MigrationFile{Path: path, Name: LogicalName(path), State: state}
}

// Hash returns the hex-encoded SHA-256 of the file's raw on-disk bytes.
// Compressed files are hashed as stored, not decompressed. The result is
// computed on first use and cached.
func (f *MigrationFile) Hash() (string, error) {
	if f.hash != "" {
		return f.hash, nil
	}
	h, err := hashFile(f.Path)
	if err != nil {
		return "", &FileError{Op: "hash", Path: f.Path, Err: err}
	}
	f.hash = h
	return h, nil
}

func hashFile(path string) (string, error) {
	fh, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer func() { _ = fh.Close() }()

	h := sha256.New()
	if _, err := io.Copy(h, fh); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// LogicalName derives a migration's identity from its file name: a trailing
// ".gz" is removed, then the final extension. Both "2024_01_02_00.sql" and
// "2024_01_02_00.sql.gz" map to "2024_01_02_00".
func LogicalName(path string) string {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, ".gz")
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// isMigrationFile reports whether a file name has a supported extension.
func isMigrationFile(name string) bool {
	return strings.HasSuffix(name, ".sql") || strings.HasSuffix(name, ".sql.gz")
}
