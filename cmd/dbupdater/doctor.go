package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/pthm/dbupdater/internal/cli"
	"github.com/pthm/dbupdater/internal/doctor"
	"github.com/pthm/dbupdater/internal/loader"
	"github.com/pthm/dbupdater/pkg/updater"
)

var doctorVerbose bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run health checks",
	Long:  `Run health checks on the ledger and include directories of every enabled database.`,
	Example: `  # Run health checks
  dbupdater doctor

  # Run with verbose output
  dbupdater doctor --verbose`,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDoctor(cmd.Context(), resolveBool(doctorVerbose, verbose > 0))
	},
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorVerbose, "verbose", false, "show detailed output")
}

func runDoctor(ctx context.Context, verboseFlag bool) error {
	if !quiet {
		fmt.Println("dbupdater doctor - Health Check")
	}

	l := loader.New(cfg, loader.WithLogger(logger))
	failed := false
	for _, db := range cfg.EnabledDatabases() {
		fmt.Printf("\n== %s ==\n", db.Name())

		conn, err := l.Open(ctx, db)
		if err != nil {
			fmt.Printf("  %s cannot connect: %v\n", doctor.StatusFail.Symbol(), err)
			failed = true
			continue
		}

		opts := cfg.Options(db)
		opts.Logger = logger
		report, err := doctor.New(conn, updater.New(conn, opts)).Run(ctx)
		_ = conn.Close()
		if err != nil {
			return cli.GeneralError("running doctor", err)
		}

		report.Print(os.Stdout, verboseFlag)
		failed = failed || report.HasErrors()
	}

	if failed {
		return cli.GeneralError("health checks failed", nil)
	}
	return nil
}
