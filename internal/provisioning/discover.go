package provisioning

import (
	"fmt"
	"time"

	"github.com/goburrow/modbus"
)

// DiscoveredDevice describes a Modbus unit that responded during discovery.
type DiscoveredDevice struct {
	UnitID        byte   `json:"unit_id"`
	RegisterType  string `json:"type"`
	RegisterCount int    `json:"register_count"`
}

// DiscoverModbusDevices probes unit IDs 1-10 on a Modbus TCP host for a
// readable holding-register bank, the same heuristic a technician would
// use to find the BMS/PCS on an unfamiliar panel.
func DiscoverModbusDevices(host string, port int, timeout time.Duration) []DiscoveredDevice {
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	handler := modbus.NewTCPClientHandler(fmtHostPort(host, port))
	handler.Timeout = timeout
	if err := handler.Connect(); err != nil {
		return nil
	}
	defer handler.Close()

	var found []DiscoveredDevice
	for unitID := byte(1); unitID <= 10; unitID++ {
		handler.SlaveId = unitID
		client := modbus.NewClient(handler)
		if _, err := client.ReadHoldingRegisters(0, 10); err == nil {
			found = append(found, DiscoveredDevice{
				UnitID:        unitID,
				RegisterType:  "holding_registers",
				RegisterCount: 10,
			})
		}
	}
	return found
}

func fmtHostPort(host string, port int) string {
	if port <= 0 {
		port = 502
	}
	return fmt.Sprintf("%s:%d", host, port)
}
