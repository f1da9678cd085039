// Package cli implements the bakeassist command line.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bakeassist/bakeassist/internal/infra"
)

var (
	version   = "dev"
	buildDate = "unknown"
	gitCommit = "unknown"
)

// SetBuildInfo sets version info injected at build time.
func SetBuildInfo(v, date, commit string) {
	version = v
	buildDate = date
	gitCommit = commit
}

var rootCmd = &cobra.Command{
	Use:   "bakeassist",
	Short: "Bake Assist: a chat assistant for bakery customers",
	Long: `Bake Assist answers customer questions about their bakery orders.

A language model decides whether a question needs data from the bakery
database, calls one of a fixed set of read-only tools if so, and writes
the final answer from the tool's result.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		rt := infra.GetRuntimeInfo()
		fmt.Printf("bakeassist %s\n", version)
		fmt.Printf("  build:   %s\n", buildDate)
		fmt.Printf("  commit:  %s\n", gitCommit)
		fmt.Printf("  runtime: %s %s/%s\n", rt.GoVersion, rt.OS, rt.Arch)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (default ~/.bakeassist/bakeassist.yaml)")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(customersCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(tasksCmd)
}

// Execute runs the root cobra command.
func Execute() error {
	return rootCmd.Execute()
}
