package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/pthm/dbupdater/internal/loader"
	"github.com/pthm/dbupdater/pkg/updater"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pending migration actions",
	Long:  `Reconcile each enabled database against its migration files without writing anything.`,
	Example: `  # Show what the next update would do
  dbupdater status`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runStatus(cmd.Context())
	},
}

func runStatus(ctx context.Context) error {
	l := loader.New(cfg, loader.WithLogger(logger))
	for _, db := range cfg.EnabledDatabases() {
		conn, err := l.Open(ctx, db)
		if err != nil {
			if loader.IsMissingDatabase(err) {
				fmt.Printf("%s: database does not exist\n", db.Name())
				continue
			}
			return exitErrorFor(err)
		}

		opts := cfg.Options(db)
		opts.Logger = logger
		plan, err := updater.New(conn, opts).Plan(ctx)
		_ = conn.Close()
		if err != nil {
			return exitErrorFor(&loader.StepError{Database: db, Step: loader.StepUpdate, Err: err})
		}
		printPlan(db, plan)
	}
	return nil
}

func printPlan(db updater.Database, plan *updater.Plan) {
	pending := plan.Pending()
	fmt.Printf("%s: %d files, %d pending, %d dirty\n", db.Name(), len(plan.Decisions), len(pending), len(plan.Orphans))
	for _, d := range pending {
		switch d.Action {
		case updater.ActionRename:
			fmt.Printf("  %-12s %s (from %s)\n", d.Action, d.File.Name, d.RenameFrom)
		default:
			fmt.Printf("  %-12s %s\n", d.Action, d.File.Name)
		}
	}
	if len(plan.Orphans) > 0 {
		verb := "kept"
		if plan.CleanUp {
			verb = "deleted"
		}
		for _, rec := range plan.Orphans {
			fmt.Printf("  %-12s %s (%s)\n", "dirty", rec.Name, verb)
		}
	}
}
