// Package cli provides shared configuration and utilities for the dbupdater CLI.
package cli

import (
	"errors"
	"fmt"
	"os"
)

// Process exit codes. A failed database run exits with the code of the phase
// that failed, so a supervisor can tell an unreachable server from a broken
// migration file.
const (
	ExitSuccess   = 0
	ExitGeneral   = 1
	ExitConfig    = 2
	ExitMigration = 3
	ExitDBConnect = 4
	ExitSetup     = 5
	ExitPopulate  = 6
)

// ExitError is a command failure together with the code the process exits with.
type ExitError struct {
	Code    int
	Message string
	Err     error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode returns the code the process should exit with for err: the code
// of the first ExitError in its chain, ExitGeneral for any other error and
// ExitSuccess for nil.
func ExitCode(err error) int {
	if err == nil {
		return ExitSuccess
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitGeneral
}

// ExitWithError prints err to stderr and exits with ExitCode(err).
func ExitWithError(err error) {
	fmt.Fprintln(os.Stderr, "Error:", err)
	os.Exit(ExitCode(err))
}

// ConfigError reports an unusable config file, flag or connection setting.
func ConfigError(msg string, err error) *ExitError {
	return &ExitError{Code: ExitConfig, Message: msg, Err: err}
}

// MigrationError reports a migration file or ledger update that failed.
func MigrationError(msg string, err error) *ExitError {
	return &ExitError{Code: ExitMigration, Message: msg, Err: err}
}

// DBConnectError reports a database server that could not be reached.
func DBConnectError(msg string, err error) *ExitError {
	return &ExitError{Code: ExitDBConnect, Message: msg, Err: err}
}

// SetupError reports a missing database that could not be created.
func SetupError(msg string, err error) *ExitError {
	return &ExitError{Code: ExitSetup, Message: msg, Err: err}
}

// PopulateError reports a base snapshot that could not be applied.
func PopulateError(msg string, err error) *ExitError {
	return &ExitError{Code: ExitPopulate, Message: msg, Err: err}
}

// GeneralError reports any other failure.
func GeneralError(msg string, err error) *ExitError {
	return &ExitError{Code: ExitGeneral, Message: msg, Err: err}
}
