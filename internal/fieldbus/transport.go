package fieldbus

import (
	"time"

	"github.com/goburrow/modbus"
)

// Dial opens a Modbus TCP connection to addr (host:port) addressing the
// given unit (slave) ID.
func Dial(addr string, unitID byte, timeout time.Duration) (*Client, error) {
	handler := modbus.NewTCPClientHandler(addr)
	handler.SlaveId = unitID
	handler.Timeout = timeout
	if err := handler.Connect(); err != nil {
		return nil, classifyErr(err)
	}
	return newClient(modbus.NewClient(handler), handler), nil
}

// DialRTU opens a Modbus RTU connection over a serial device path
// addressing the given unit ID.
func DialRTU(devicePath string, unitID byte, baudRate int, timeout time.Duration) (*Client, error) {
	handler := modbus.NewRTUClientHandler(devicePath)
	handler.BaudRate = baudRate
	handler.DataBits = 8
	handler.Parity = "N"
	handler.StopBits = 1
	handler.SlaveId = unitID
	handler.Timeout = timeout
	if err := handler.Connect(); err != nil {
		return nil, classifyErr(err)
	}
	return newClient(modbus.NewClient(handler), handler), nil
}
