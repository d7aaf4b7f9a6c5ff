// Package cli implements the edge controller's command-line interface
// using Cobra. Each subcommand maps to one operator-facing entry point:
// running the daemon, bootstrapping a new device, or inspecting a
// downloaded firmware image before it's installed.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "lifo4edge",
	Short: "lifo4edge — BESS edge controller",
	Long: `lifo4edge is the on-site control daemon for a lithium battery energy
storage system: it reads the field bus, enforces hard safety limits locally,
arbitrates grid-code, contractual, economic, and longevity objectives, and
keeps operating through a cloud outage.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.go.
func Execute(version string) {
	rootCmd.Version = version

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
