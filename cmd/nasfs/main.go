package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		logrus.Error(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "nasfs",
		Short: "nasfs - NAS file storage backend",
		Long: `nasfs stores files on a NAS mount. Files are either ingested (copied
under BASE_PATH/BUCKET/FILE_ID) or linked in place, and every file is
tracked in a local catalog by bucket and file id.`,
		Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, date),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringP("config", "c", "", "Configuration file path")
	rootCmd.PersistentFlags().StringP("base-path", "b", "", "NAS mount point")
	rootCmd.PersistentFlags().StringP("log-level", "", "info", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringP("log-format", "", "text", "Log format (json, text)")
	rootCmd.PersistentFlags().StringP("log-file", "", "", "Mirror log entries to this file as JSON lines")
	rootCmd.PersistentFlags().StringP("catalog-dir", "", "./catalog", "File catalog directory")
	rootCmd.PersistentFlags().StringP("metrics-file", "", "", "Write Prometheus metrics to this textfile on exit")

	rootCmd.AddCommand(
		newSaveCmd(),
		newLinkCmd(),
		newCatCmd(),
		newRmCmd(),
		newURLCmd(),
		newLsCmd(),
		newStatCmd(),
	)

	return rootCmd
}
