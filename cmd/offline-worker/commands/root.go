// Package commands implements the offline-worker CLI.
package commands

import (
	"github.com/spf13/cobra"
)

var (
	Version = "dev"
	Commit  = "none"

	cfgFile string
	envFile string
)

var rootCmd = &cobra.Command{
	Use:   "offline-worker",
	Short: "Offline caching and request-interception worker",
	Long: `offline-worker sits in front of a site and answers requests cache-first.

Static assets and API responses are kept in versioned cache generations, a
failed page navigation falls back to a cached or synthesized offline page, and
a small control API delivers sync, push and notification-click events.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	return rootCmd.Execute()
}

func GetRootCmd() *cobra.Command {
	return rootCmd
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (json, yaml or toml); defaults and OFFLINE_WORKER_* env apply without one")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the config; ignored when missing")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateCmd)
}
