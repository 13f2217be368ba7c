package updater

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/klauspost/compress/gzip"
)

// Executor runs the statements of one migration file on the caller's
// transaction. Implementations must not commit or roll back.
type Executor interface {
	Execute(ctx context.Context, tx Execer, path string) error
}

// ExecutorFunc adapts a function to the Executor interface.
type ExecutorFunc func(ctx context.Context, tx Execer, path string) error

// Execute calls f(ctx, tx, path).
func (f ExecutorFunc) Execute(ctx context.Context, tx Execer, path string) error {
	return f(ctx, tx, path)
}

// FileExecutor reads a migration file and sends its whole content as a
// single exec. Files ending in ".gz" are decompressed first. Files that
// contain only whitespace are not sent at all.
//
// The statements are sent without arguments, which both postgres drivers
// run over the simple query protocol, so multi-statement files work.
type FileExecutor struct{}

// Execute implements Executor.
func (FileExecutor) Execute(ctx context.Context, tx Execer, path string) error {
	content, err := ReadMigration(path)
	if err != nil {
		return err
	}
	if strings.TrimSpace(content) == "" {
		return nil
	}
	if _, err := tx.ExecContext(ctx, content); err != nil {
		return fmt.Errorf("executing %s: %w", path, err)
	}
	return nil
}

// ReadMigration returns the SQL text of a migration file, decompressing
// gzip files.
func ReadMigration(path string) (string, error) {
	fh, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("opening %s: %w", path, err)
	}
	defer func() { _ = fh.Close() }()

	var r io.Reader = fh
	if strings.HasSuffix(path, ".gz") {
		zr, err := gzip.NewReader(fh)
		if err != nil {
			return "", fmt.Errorf("decompressing %s: %w", path, err)
		}
		defer func() { _ = zr.Close() }()
		r = zr
	}

	b, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	return string(b), nil
}
