package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/lifo4/edge-controller/internal/daemon"
)

func init() {
	rootCmd.AddCommand(provisionCmd)
}

var provisionCmd = &cobra.Command{
	Use:   "provision",
	Short: "Run zero-touch bootstrap and exit",
	Long: `Register with the cloud over the bootstrap MQTT connection, wait for the
site configuration, pivot to the permanent certificate, and discover the
field bus devices. No-op if this device is already provisioned.`,
	RunE: runProvision,
}

func runProvision(cmd *cobra.Command, args []string) error {
	d, err := daemon.New()
	if err != nil {
		return err
	}
	defer d.Close()

	return d.Provision(context.Background())
}
