package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/pthm/dbupdater/internal/cli"
	"github.com/pthm/dbupdater/pkg/updater"
)

var (
	// Global state set during PersistentPreRunE
	cfg        *cli.Config
	configPath string
	logger     *slog.Logger

	// Persistent flags
	cfgFile   string
	verbose   int
	quiet     bool
	databases []string
	sourceDir string
)

var rootCmd = &cobra.Command{
	Use:   "dbupdater",
	Short: "Hash-based SQL migration updater",
	Long: `dbupdater - Hash-based SQL migration updater

dbupdater keeps databases in sync with directories of SQL files. Files are
tracked by logical name and content hash in an updates ledger, so changed
files are applied again, renamed files are recognized and removed files are
cleaned up.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		logger = newLogger(verbose, quiet)
		slog.SetDefault(logger)

		// Skip config loading for help/completion/version commands
		if cmd.Name() == "help" || cmd.Name() == "completion" || cmd.Name() == "version" {
			return nil
		}

		var err error
		cfg, configPath, err = cli.LoadConfig(cfgFile)
		if err != nil {
			return cli.ConfigError("loading configuration", err)
		}

		cfg.SourceDir = resolveString(sourceDir, cfg.SourceDir)
		if len(databases) > 0 {
			mask, err := databaseMask(databases)
			if err != nil {
				return cli.ConfigError("parsing --database", err)
			}
			cfg.Updates.EnableDatabases = mask
		}
		return nil
	},
	SilenceUsage:  true, // Don't show usage on errors
	SilenceErrors: true, // We handle errors ourselves
}

// Command group IDs
const (
	groupDatabase = "database"
	groupUtility  = "utility"
)

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVar(&cfgFile, "config", "", "config file (default: auto-discover dbupdater.yaml)")
	f.CountVarP(&verbose, "verbose", "v", "increase verbosity (can be repeated)")
	f.BoolVarP(&quiet, "quiet", "q", false, "suppress non-error output")
	f.StringSliceVarP(&databases, "database", "d", nil, "databases to process (auth, characters, world, hotfixes); overrides updates.enable_databases")
	f.StringVar(&sourceDir, "source-dir", "", "project data root (overrides source_dir)")

	rootCmd.AddGroup(
		&cobra.Group{ID: groupDatabase, Title: "Database:"},
		&cobra.Group{ID: groupUtility, Title: "Utility:"},
	)

	updateCmd.GroupID = groupDatabase
	statusCmd.GroupID = groupDatabase
	doctorCmd.GroupID = groupDatabase
	rootCmd.AddCommand(updateCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(doctorCmd)

	configCmd.GroupID = groupUtility
	versionCmd.GroupID = groupUtility
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(versionCmd)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		cli.ExitWithError(err)
	}
}

// newLogger builds the stderr logger: info by default, debug with -v, warn
// with -q.
func newLogger(verbosity int, quiet bool) *slog.Logger {
	level := slog.LevelInfo
	switch {
	case quiet:
		level = slog.LevelWarn
	case verbosity > 0:
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// databaseMask converts database names into an enable_databases mask.
func databaseMask(names []string) (int, error) {
	mask := 0
	for _, name := range names {
		db, err := updater.ParseDatabase(strings.TrimSpace(name))
		if err != nil {
			return 0, err
		}
		mask |= int(db)
	}
	if mask == 0 {
		return 0, fmt.Errorf("no databases selected")
	}
	return mask, nil
}

// resolveString returns the first non-empty string from the provided values.
// Used to implement precedence: flag > config > default.
func resolveString(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

// resolveBool returns true if any of the provided values is true.
// Used for boolean flags where any true value should win.
func resolveBool(values ...bool) bool {
	for _, v := range values {
		if v {
			return true
		}
	}
	return false
}
