package commands

import (
	"fmt"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Load and validate the configuration without serving",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, warnings, err := loadConfig()
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, warning := range warnings {
			fmt.Fprintf(out, "warning: %s\n", warning)
		}
		fmt.Fprintf(out, "config ok: version %s, origin %s, %d manifest entries, storage %s\n",
			cfg.Version, cfg.Origin, len(cfg.Manifest), cfg.Storage.Driver)
		return nil
	},
}
