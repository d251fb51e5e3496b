// Package cmd implements the task-engine CLI.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/amitk432/Resolve25-sub002/pkg/logger"
)

// Version is the current release.
const Version = "0.1.0"

var (
	debug bool
	quiet bool
)

var rootCmd = &cobra.Command{
	Use:   "taskengine",
	Short: "Dependency-aware task execution engine",
	Long: `taskengine executes task plans: steps with dependencies, retries and
resource requirements, run sequentially, in parallel or adaptively.`,
	Version: Version,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		switch {
		case debug:
			logger.EnableDebug()
		case quiet:
			logger.SetLevelFromString("error")
		}
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("taskengine version %s\n", Version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false, "only log errors")

	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(versionCmd)
}
