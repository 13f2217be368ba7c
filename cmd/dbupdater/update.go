package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/pthm/dbupdater/internal/cli"
	"github.com/pthm/dbupdater/internal/loader"
)

var updateNoSetup bool

var updateCmd = &cobra.Command{
	Use:   "update",
	Short: "Apply pending migration files",
	Long: `Create missing databases, populate empty ones from the base snapshot and
apply every new or changed migration file, for each enabled database.`,
	Example: `  # Update every enabled database
  dbupdater update

  # Update only the world and hotfixes databases
  dbupdater update -d world,hotfixes`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if updateNoSetup {
			cfg.Updates.AutoSetup = false
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runUpdate(ctx)
	},
}

func init() {
	updateCmd.Flags().BoolVar(&updateNoSetup, "no-setup", false, "do not create missing databases")
}

func runUpdate(ctx context.Context) error {
	reports, err := loader.New(cfg, loader.WithLogger(logger)).Run(ctx)
	for _, rep := range reports {
		if quiet {
			continue
		}
		fmt.Println(summaryLine(rep))
	}
	if err != nil {
		return exitErrorFor(err)
	}
	return nil
}

// summaryLine formats the outcome of one database run.
func summaryLine(rep loader.Report) string {
	res := rep.Result
	var b strings.Builder
	fmt.Fprintf(&b, "%-10s", rep.Database.Name())
	if rep.Created {
		b.WriteString(" created,")
	}
	if rep.Populated {
		b.WriteString(" populated,")
	}
	fmt.Fprintf(&b, " applied %d (%d changed), up to date %d, renamed %d, rehashed %d, state updated %d; ledger has %d released and %d archived",
		res.Applied, res.Reapplied, res.Skipped, res.Renamed, res.Rehashed, res.StatePatched, res.Released, res.Archived)
	if res.Orphans > 0 {
		fmt.Fprintf(&b, ", dirty %d (deleted %d)", res.Orphans, res.CleanedUp)
	}
	return b.String()
}

// exitErrorFor maps a loader failure onto the exit code of the failed step.
func exitErrorFor(err error) error {
	var se *loader.StepError
	if !errors.As(err, &se) {
		return cli.GeneralError("update failed", err)
	}
	name := se.Database.Name()
	switch se.Step {
	case loader.StepConfig:
		return cli.ConfigError("invalid configuration for "+name+" database", se.Err)
	case loader.StepConnect:
		return cli.DBConnectError("connecting to "+name+" database", se.Err)
	case loader.StepSetup:
		return cli.SetupError("creating "+name+" database", se.Err)
	case loader.StepPopulate:
		return cli.PopulateError("populating "+name+" database", se.Err)
	default:
		return cli.MigrationError("updating "+name+" database", se.Err)
	}
}
