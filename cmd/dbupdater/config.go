package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"sigs.k8s.io/yaml"

	"github.com/pthm/dbupdater/internal/cli"
)

var (
	configShowSource  bool
	configShowSecrets bool
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect dbupdater configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration as YAML",
	Long: `Print the configuration dbupdater would run with: defaults, overlaid by the
config file and DBUPDATER_* environment variables. Passwords are masked
unless --show-secrets is given.`,
	Example: `  # Print the merged configuration
  dbupdater config show

  # Include the path of the config file that was found
  dbupdater config show --source`,
	RunE: func(cmd *cobra.Command, args []string) error {
		w := cmd.OutOrStdout()
		if configShowSource {
			source := configPath
			if source == "" {
				source = "(none, defaults only)"
			}
			_, _ = fmt.Fprintf(w, "# config file: %s\n", source)
		}

		shown := cfg.Redacted()
		if configShowSecrets {
			shown = *cfg
		}
		out, err := yaml.Marshal(shown)
		if err != nil {
			return cli.GeneralError("encoding configuration", err)
		}
		_, err = w.Write(out)
		return err
	},
}

func init() {
	configShowCmd.Flags().BoolVar(&configShowSource, "source", false, "print the path of the loaded config file")
	configShowCmd.Flags().BoolVar(&configShowSecrets, "show-secrets", false, "do not redact passwords")
	configCmd.AddCommand(configShowCmd)
}
