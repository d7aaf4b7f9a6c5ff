package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/lifo4/edge-controller/internal/daemon"
)

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "diagnostics API host (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "diagnostics API port (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the control loop and local diagnostics API",
	Long:  `Start the field bus control loop, cloud sync, self-healing checks, and the local status/metrics HTTP server.`,
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	daemon.SetVersion(rootCmd.Version)

	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	if serveHost != "" {
		d.Config.API.Host = serveHost
	}
	if servePort > 0 {
		d.Config.API.Port = servePort
	}

	ctx := context.Background()
	if err := d.Provision(ctx); err != nil {
		return err
	}

	return d.Serve(ctx)
}
