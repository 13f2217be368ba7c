// Package doctor provides health checks for a database kept up to date by
// the updater.
//
// The doctor command validates that the ledger tables exist, that every
// registered include directory is present, that the number of dirty ledger
// entries is within the cleanup limit and reports pending work.
//
// Example usage:
//
//	d := doctor.New(db, updater.New(db, opts))
//	report, err := d.Run(ctx)
//	if err != nil {
//		log.Fatal(err)
//	}
//	report.Print(os.Stdout, true) // verbose=true
package doctor

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pthm/dbupdater/pkg/updater"
)

// Status represents the result of a health check.
type Status int

const (
	// StatusPass indicates the check passed.
	StatusPass Status = iota
	// StatusWarn indicates a non-critical issue.
	StatusWarn
	// StatusFail indicates a critical issue that will cause failures.
	StatusFail
)

func (s Status) String() string {
	switch s {
	case StatusPass:
		return "pass"
	case StatusWarn:
		return "warn"
	case StatusFail:
		return "fail"
	default:
		return "unknown"
	}
}

// Symbol returns a status indicator symbol for terminal output.
func (s Status) Symbol() string {
	switch s {
	case StatusPass:
		return "✓"
	case StatusWarn:
		return "⚠"
	case StatusFail:
		return "✗"
	default:
		return "?"
	}
}

// CheckResult represents the outcome of a single health check.
type CheckResult struct {
	// Category groups related checks (e.g., "Ledger", "Include Directories").
	Category string

	// Name is a short identifier for the check.
	Name string

	// Status is the check outcome.
	Status Status

	// Message is a human-readable description of the result.
	Message string

	// Details provides additional information for verbose output.
	Details string

	// FixHint suggests how to resolve issues.
	FixHint string
}

// Report contains all health check results.
type Report struct {
	Checks []CheckResult

	// Summary counts.
	Passed   int
	Warnings int
	Errors   int
}

// AddCheck adds a check result and updates summary counts.
func (r *Report) AddCheck(check CheckResult) {
	r.Checks = append(r.Checks, check)
	switch check.Status {
	case StatusPass:
		r.Passed++
	case StatusWarn:
		r.Warnings++
	case StatusFail:
		r.Errors++
	}
}

// Print writes the report to the given writer.
func (r *Report) Print(w io.Writer, verbose bool) {
	// Group checks by category
	categories := make(map[string][]CheckResult)
	var categoryOrder []string
	for _, check := range r.Checks {
		if _, exists := categories[check.Category]; !exists {
			categoryOrder = append(categoryOrder, check.Category)
		}
		categories[check.Category] = append(categories[check.Category], check)
	}

	// Print each category
	for _, cat := range categoryOrder {
		_, _ = fmt.Fprintf(w, "\n%s\n", cat)
		for _, check := range categories[cat] {
			_, _ = fmt.Fprintf(w, "  %s %s\n", check.Status.Symbol(), check.Message)
			if verbose && check.Details != "" {
				// Indent details
				for _, line := range strings.Split(check.Details, "\n") {
					_, _ = fmt.Fprintf(w, "      %s\n", line)
				}
			}
			if check.Status != StatusPass && check.FixHint != "" {
				_, _ = fmt.Fprintf(w, "      Fix: %s\n", check.FixHint)
			}
		}
	}

	// Print summary
	_, _ = fmt.Fprintf(w, "\nSummary: %d passed, %d warnings, %d errors\n",
		r.Passed, r.Warnings, r.Errors)
}

// HasErrors returns true if any check failed.
func (r *Report) HasErrors() bool {
	return r.Errors > 0
}

// Doctor performs health checks on one database.
type Doctor struct {
	db updater.Execer
	u  *updater.Updater

	// Cached data from checks (populated during Run)
	plan *updater.Plan
}

// New creates a new Doctor instance. u must be configured for the database
// behind db.
func New(db updater.Execer, u *updater.Updater) *Doctor {
	return &Doctor{db: db, u: u}
}

// Run executes all health checks and returns a report.
func (d *Doctor) Run(ctx context.Context) (*Report, error) {
	report := &Report{}

	if !d.checkLedgerTables(ctx, report) {
		return report, nil
	}
	if err := d.checkIncludeDirectories(ctx, report); err != nil {
		return nil, fmt.Errorf("checking include directories: %w", err)
	}
	d.checkPlan(ctx, report)
	d.checkDirtyEntries(report)

	return report, nil
}

// checkLedgerTables reports whether both ledger tables can be read.
func (d *Doctor) checkLedgerTables(ctx context.Context, report *Report) bool {
	ok := true
	for _, table := range []string{"updates", "updates_include"} {
		var n int
		// Table names are constants.
		err := d.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+table).Scan(&n)
		if err != nil {
			ok = false
			report.AddCheck(CheckResult{
				Category: "Ledger",
				Name:     table,
				Status:   StatusFail,
				Message:  fmt.Sprintf("%s table is not readable", table),
				Details:  err.Error(),
				FixHint:  "Run 'dbupdater update' to create it",
			})
			continue
		}
		report.AddCheck(CheckResult{
			Category: "Ledger",
			Name:     table,
			Status:   StatusPass,
			Message:  fmt.Sprintf("%s table exists (%d rows)", table, n),
		})
	}
	return ok
}

// checkIncludeDirectories validates every registered directory.
func (d *Doctor) checkIncludeDirectories(ctx context.Context, report *Report) error {
	r := d.u.Resolver()
	registered, err := r.Registered(ctx, d.db)
	if err != nil {
		return err
	}

	if len(registered) == 0 {
		report.AddCheck(CheckResult{
			Category: "Include Directories",
			Name:     "registered",
			Status:   StatusWarn,
			Message:  "No include directories registered in updates_include",
			FixHint:  "Insert the update directories of this database into updates_include",
		})
	}

	for _, rd := range registered {
		switch {
		case rd.StateErr != nil:
			report.AddCheck(CheckResult{
				Category: "Include Directories",
				Name:     rd.Raw,
				Status:   StatusWarn,
				Message:  fmt.Sprintf("%s has unknown state %q and is ignored", rd.Raw, rd.RawState),
				FixHint:  "Use one of RELEASED, CUSTOM, MODULE or ARCHIVED",
			})
		case !rd.Exists:
			report.AddCheck(CheckResult{
				Category: "Include Directories",
				Name:     rd.Raw,
				Status:   StatusWarn,
				Message:  fmt.Sprintf("%s does not exist and is skipped", rd.Path),
				FixHint:  "Check source_dir or remove the row from updates_include",
			})
		default:
			report.AddCheck(CheckResult{
				Category: "Include Directories",
				Name:     rd.Raw,
				Status:   StatusPass,
				Message:  fmt.Sprintf("%s (%s)", rd.Path, rd.State),
			})
		}
	}

	if dirs := r.ModuleDirectories(); len(dirs) > 0 {
		var found []string
		for _, dir := range dirs {
			if isDir(dir) {
				found = append(found, dir)
			}
		}
		report.AddCheck(CheckResult{
			Category: "Include Directories",
			Name:     "modules",
			Status:   StatusPass,
			Message:  fmt.Sprintf("%d of %d modules have migrations for this database", len(found), len(dirs)),
			Details:  strings.Join(found, "\n"),
		})
	}
	return nil
}

// checkPlan reconciles without writing and reports pending actions.
func (d *Doctor) checkPlan(ctx context.Context, report *Report) {
	plan, err := d.u.Plan(ctx)
	if err != nil {
		check := CheckResult{
			Category: "Pending Updates",
			Name:     "plan",
			Status:   StatusFail,
			Message:  "Reconciliation failed",
			Details:  err.Error(),
		}
		if updater.IsDuplicateNameErr(err) {
			check.FixHint = "Rename one of the files so every logical name is unique"
		}
		report.AddCheck(check)
		return
	}
	d.plan = plan

	pending := plan.Pending()
	if len(pending) == 0 {
		report.AddCheck(CheckResult{
			Category: "Pending Updates",
			Name:     "plan",
			Status:   StatusPass,
			Message:  fmt.Sprintf("Database is up to date (%d files)", len(plan.Decisions)),
		})
		return
	}

	lines := make([]string, 0, len(pending))
	for _, dec := range pending {
		line := fmt.Sprintf("%s %s", dec.Action, dec.File.Name)
		if dec.Action == updater.ActionRename {
			line += " (from " + dec.RenameFrom + ")"
		}
		lines = append(lines, line)
	}
	report.AddCheck(CheckResult{
		Category: "Pending Updates",
		Name:     "plan",
		Status:   StatusWarn,
		Message:  fmt.Sprintf("%d pending actions", len(pending)),
		Details:  strings.Join(lines, "\n"),
		FixHint:  "Run 'dbupdater update' to apply them",
	})
}

// checkDirtyEntries compares orphaned ledger rows with the cleanup limit.
// It needs the plan from checkPlan.
func (d *Doctor) checkDirtyEntries(report *Report) {
	if d.plan == nil {
		return
	}
	orphans := d.plan.Orphans
	if len(orphans) == 0 {
		report.AddCheck(CheckResult{
			Category: "Ledger",
			Name:     "dirty",
			Status:   StatusPass,
			Message:  "Every ledger entry has a file",
		})
		return
	}

	names := make([]string, len(orphans))
	for i, rec := range orphans {
		names[i] = rec.Name
	}
	check := CheckResult{
		Category: "Ledger",
		Name:     "dirty",
		Status:   StatusWarn,
		Details:  strings.Join(names, "\n"),
	}
	if d.plan.CleanUp {
		check.Message = fmt.Sprintf("%d dirty entries will be deleted by the next update", len(orphans))
	} else {
		check.Message = fmt.Sprintf("%d dirty entries exceed clean_dead_ref_max_count (%d) and will be kept",
			len(orphans), d.u.Policy().CleanDeadRefMaxCount)
		check.FixHint = "Restore the missing files or raise updates.clean_dead_ref_max_count"
	}
	report.AddCheck(check)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
