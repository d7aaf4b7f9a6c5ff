package messaging

import "fmt"

// Topic naming follows lifo4/{site}/... for site-scoped topics and
// lifo4/provisioning/... for the one-time bootstrap exchange.

func TopicTelemetry(site string) string  { return fmt.Sprintf("lifo4/%s/telemetry", site) }
func TopicDecisions(site string) string  { return fmt.Sprintf("lifo4/%s/decisions", site) }
func TopicAlarms(site string) string     { return fmt.Sprintf("lifo4/%s/alarms", site) }
func TopicHeartbeat(site string) string  { return fmt.Sprintf("lifo4/%s/heartbeat", site) }
func TopicCommands(site string) string   { return fmt.Sprintf("lifo4/%s/commands", site) }
func TopicConfig(site string) string     { return fmt.Sprintf("lifo4/%s/config", site) }
func TopicOTAUpdate(site string) string  { return fmt.Sprintf("lifo4/%s/ota/update", site) }
func TopicOTAStatus(site string) string  { return fmt.Sprintf("lifo4/%s/ota/status", site) }

const (
	TopicProvisioningRegister = "lifo4/provisioning/register"
)

// TopicProvisioningConfig is the per-device config topic the cloud
// publishes to once after accepting a registration.
func TopicProvisioningConfig(edgeID string) string {
	return fmt.Sprintf("lifo4/provisioning/%s/config", edgeID)
}
