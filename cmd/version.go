package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spigell/jobscout/internal/ranking"
)

// Actual version can be specified in build command.
var version = "unknown"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(_ *cobra.Command, _ []string) {
		fmt.Printf("%s version: %s (ranking algorithm v%d)\n", app, version, ranking.AlgorithmVersion)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
