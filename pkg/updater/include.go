package updater

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// dataRootPrefix marks updates_include paths relative to the source directory.
const dataRootPrefix = "$/"

// IncludeDirectory is a directory to scan and the state given to its files.
type IncludeDirectory struct {
	Path  string
	State State
}

// IncludeResolver builds the list of directories a run scans.
type IncludeResolver struct {
	// SourceDir is the project data root that "$/" paths resolve against.
	SourceDir string
	// ModulesDir is the modules directory, relative to SourceDir.
	ModulesDir string
	// Modules lists the enabled module names.
	Modules []string
	// Database selects the per-module subdirectory (db-auth, db-world, ...).
	Database Database

	Logger *slog.Logger
}

// RegisteredDirectory is one updates_include row as stored.
type RegisteredDirectory struct {
	// Raw is the path as written in the table.
	Raw string
	// Path is Raw with "$/" resolved.
	Path     string
	RawState string
	// State is valid only when StateErr is nil.
	State    State
	StateErr error
	Exists   bool
}

// Registered returns the rows of updates_include in path order, without
// filtering anything out.
func (r *IncludeResolver) Registered(ctx context.Context, db Execer) ([]RegisteredDirectory, error) {
	rows, err := db.QueryContext(ctx, `SELECT path, state FROM updates_include ORDER BY path`)
	if err != nil {
		return nil, fmt.Errorf("querying updates_include: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []RegisteredDirectory
	for rows.Next() {
		var rd RegisteredDirectory
		if err := rows.Scan(&rd.Raw, &rd.RawState); err != nil {
			return nil, fmt.Errorf("scanning updates_include row: %w", err)
		}
		rd.State, rd.StateErr = ParseState(rd.RawState)
		rd.Path = r.resolvePath(rd.Raw)
		rd.Exists = isDir(rd.Path)
		out = append(out, rd)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading updates_include: %w", err)
	}
	return out, nil
}

// Resolve reads updates_include and appends one directory per module.
// Table-sourced directories come first, in path order; module directories
// follow and are always tagged StateModule. Directories missing on disk are
// logged and left out so they never block the ones that exist.
func (r *IncludeResolver) Resolve(ctx context.Context, db Execer) ([]IncludeDirectory, error) {
	logger := r.logger()

	registered, err := r.Registered(ctx, db)
	if err != nil {
		return nil, err
	}

	var dirs []IncludeDirectory
	for _, rd := range registered {
		if rd.StateErr != nil {
			logger.Warn("ignoring include directory with unknown state",
				"path", rd.Raw,
				"state", rd.RawState)
			continue
		}
		if !rd.Exists {
			logger.Warn("include directory does not exist, skipping",
				"path", rd.Path)
			continue
		}
		dirs = append(dirs, IncludeDirectory{Path: rd.Path, State: rd.State})
	}

	for _, dir := range r.ModuleDirectories() {
		if !isDir(dir) {
			logger.Debug("module has no sql directory for this database",
				"path", dir)
			continue
		}
		dirs = append(dirs, IncludeDirectory{Path: dir, State: StateModule})
	}

	return dirs, nil
}

// ModuleDirectories returns the candidate directory of every configured
// module, whether or not it exists.
func (r *IncludeResolver) ModuleDirectories() []string {
	dirs := make([]string, 0, len(r.Modules))
	for _, m := range r.Modules {
		dirs = append(dirs, filepath.Join(r.SourceDir, r.ModulesDir, m, "data", "sql", r.Database.ModuleName()))
	}
	return dirs
}

// resolvePath maps "$/..." onto SourceDir and leaves other paths untouched.
func (r *IncludeResolver) resolvePath(path string) string {
	if rest, ok := strings.CutPrefix(path, dataRootPrefix); ok {
		return filepath.Join(r.SourceDir, filepath.FromSlash(rest))
	}
	return path
}

func (r *IncludeResolver) logger() *slog.Logger {
	if r.Logger == nil {
		return slog.Default()
	}
	return r.Logger
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
