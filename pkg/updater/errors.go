package updater

import (
	"errors"
	"fmt"
)

// Sentinel errors for the failure modes of a reconciliation run.
// Wrapped errors carry the offending file or directory; use the Is*Err
// helpers or errors.Is to classify them.
var (
	// ErrDuplicateName is returned when two candidate files reduce to the same
	// logical name. Ordering and ledger keys are name based, so the run aborts
	// before touching the ledger.
	ErrDuplicateName = errors.New("updater: duplicate migration filename")

	// ErrUnknownState is returned by ParseState for unrecognized state strings.
	ErrUnknownState = errors.New("updater: unknown state")

	// ErrBaseDirMissing is returned when an empty database needs bootstrapping
	// but the base snapshot directory does not exist.
	ErrBaseDirMissing = errors.New("updater: base directory missing")

	// ErrBaseDirEmpty is returned when the base snapshot directory holds no
	// *.sql or *.sql.gz files.
	ErrBaseDirEmpty = errors.New("updater: base directory empty")
)

// IsDuplicateNameErr returns true if err is or wraps ErrDuplicateName.
func IsDuplicateNameErr(err error) bool {
	return errors.Is(err, ErrDuplicateName)
}

// IsUnknownStateErr returns true if err is or wraps ErrUnknownState.
func IsUnknownStateErr(err error) bool {
	return errors.Is(err, ErrUnknownState)
}

// IsBaseDirErr returns true if err is or wraps ErrBaseDirMissing or ErrBaseDirEmpty.
func IsBaseDirErr(err error) bool {
	return errors.Is(err, ErrBaseDirMissing) || errors.Is(err, ErrBaseDirEmpty)
}

// FileError identifies the migration file a failure belongs to.
type FileError struct {
	Op   string // "hash", "populate" or an Action name
	Path string
	Err  error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *FileError) Unwrap() error {
	return e.Err
}
