// Package fieldbus talks to the battery management system and power
// conversion system over Modbus. It maps a table of logical registers to
// physical addresses and never lets a partial or malformed read reach the
// rest of the daemon — a bad read becomes an error, not a corrupted
// TelemetrySnapshot.
package fieldbus

import (
	"encoding/binary"
	"io"
	"time"

	"github.com/lifo4/edge-controller/internal/domain"
)

// RegisterEntry describes one logical telemetry value's physical location
// on the BMS/PCS holding register map: its address (each entry is a single
// 16-bit word), whether the raw word is signed, and the scale/offset that turns
// the raw integer into an engineering unit (engineering = raw*Scale+Offset).
// Register/coil maps are data, not code — a different BMS variant is a new
// table, never a new code path.
type RegisterEntry struct {
	Name    string  // logical name, matched against TelemetrySnapshot fields
	Address uint16  // holding register address
	Signed  bool    // raw word is a signed int16 rather than uint16
	Scale   float64 // raw * Scale + Offset = engineering unit
	Offset  float64
}

// RegisterMap is an ordered table of register entries.
type RegisterMap []RegisterEntry

// CoilMap names the boolean coils the control loop writes, by logical name.
type CoilMap map[string]uint16

// DefaultRegisterMap is the telemetry register table for the reference
// BMS/PCS variant this controller was built against. A different variant's
// register layout is a different RegisterMap passed to SetRegisterMap, not
// a code change.
var DefaultRegisterMap = RegisterMap{
	{Name: "soc", Address: 0, Signed: false, Scale: 0.1},
	{Name: "soh", Address: 1, Signed: false, Scale: 0.1},
	{Name: "pack_voltage", Address: 2, Signed: false, Scale: 0.1},
	{Name: "current", Address: 3, Signed: true, Scale: 0.1},
	{Name: "power_kw", Address: 4, Signed: true, Scale: 0.1},
	{Name: "temp_min", Address: 5, Signed: true, Scale: 0.1},
	{Name: "temp_max", Address: 6, Signed: true, Scale: 0.1},
	{Name: "temp_avg", Address: 7, Signed: true, Scale: 0.1},
	{Name: "grid_frequency", Address: 8, Signed: false, Scale: 0.01},
	{Name: "grid_voltage", Address: 9, Signed: false, Scale: 0.1},
	{Name: "cell_voltage_min", Address: 10, Signed: false, Scale: 0.001},
	{Name: "cell_voltage_max", Address: 11, Signed: false, Scale: 0.001},
}

// DefaultCoilMap names the charge/discharge enable coils.
var DefaultCoilMap = CoilMap{
	"charge_enable":    0,
	"discharge_enable": 1,
}

// DefaultSetpointRegister is the signed power setpoint write register.
var DefaultSetpointRegister = RegisterEntry{Name: "power_setpoint", Address: 20, Signed: true, Scale: 0.1}

// modbusClient is the subset of goburrow/modbus.Client used here, factored
// out so tests can substitute an in-memory fake instead of real hardware.
type modbusClient interface {
	ReadHoldingRegisters(address, quantity uint16) ([]byte, error)
	WriteSingleRegister(address, value uint16) ([]byte, error)
	WriteSingleCoil(address uint16, value bool) ([]byte, error)
}

// Client is the read/write transport to the BMS/PCS.
type Client struct {
	mb     modbusClient
	closer io.Closer

	registers RegisterMap
	coils     CoilMap
	setpoint  RegisterEntry
}

// newClient wraps an already-constructed modbus client and its connection
// handler with the default register/coil map. Unexported: callers use Dial
// (TCP) or DialRTU.
func newClient(mb modbusClient, closer io.Closer) *Client {
	return &Client{
		mb:        mb,
		closer:    closer,
		registers: DefaultRegisterMap,
		coils:     DefaultCoilMap,
		setpoint:  DefaultSetpointRegister,
	}
}

// SetRegisterMap swaps the telemetry register table, e.g. for a BMS/PCS
// variant with a different holding register layout.
func (c *Client) SetRegisterMap(m RegisterMap) {
	c.registers = m
}

// SetCoilMap swaps the charge/discharge enable coil addresses.
func (c *Client) SetCoilMap(m CoilMap) {
	c.coils = m
}

// SetSetpointRegister swaps the power setpoint write register.
func (c *Client) SetSetpointRegister(r RegisterEntry) {
	c.setpoint = r
}

// Close releases the underlying transport connection.
func (c *Client) Close() error {
	if c.closer == nil {
		return nil
	}
	return c.closer.Close()
}

// ReadTelemetry reads every logical register in one round trip and decodes
// them into a TelemetrySnapshot according to the client's RegisterMap. The
// whole read is rejected (returns an error, no partial snapshot) on any
// transport failure or non-finite decoded value.
func (c *Client) ReadTelemetry() (domain.TelemetrySnapshot, error) {
	minAddr, maxAddr := registerSpan(c.registers)
	count := maxAddr - minAddr + 1

	raw, err := c.mb.ReadHoldingRegisters(minAddr, count)
	if err != nil {
		return domain.TelemetrySnapshot{}, classifyErr(err)
	}
	if len(raw) < int(count)*2 {
		return domain.TelemetrySnapshot{}, domain.ErrFieldBusException
	}

	values := make(map[string]float64, len(c.registers))
	for _, e := range c.registers {
		idx := int(e.Address - minAddr)
		raw16 := binary.BigEndian.Uint16(raw[idx*2 : idx*2+2])
		var word float64
		if e.Signed {
			word = float64(int16(raw16))
		} else {
			word = float64(raw16)
		}
		values[e.Name] = word*e.Scale + e.Offset
	}

	s := domain.TelemetrySnapshot{
		SOC:            values["soc"],
		SOH:            values["soh"],
		PackVoltage:    values["pack_voltage"],
		Current:        values["current"],
		PowerKW:        values["power_kw"],
		TempMin:        values["temp_min"],
		TempMax:        values["temp_max"],
		TempAvg:        values["temp_avg"],
		GridFrequency:  values["grid_frequency"],
		GridVoltage:    values["grid_voltage"],
		CellVoltageMin: values["cell_voltage_min"],
		CellVoltageMax: values["cell_voltage_max"],
		CapturedAt:     time.Now(),
	}

	if !s.Valid() {
		return domain.TelemetrySnapshot{}, domain.ErrTelemetryInvalid
	}
	return s, nil
}

// registerSpan returns the lowest and highest register address in m, so
// ReadTelemetry can fetch the whole table in one contiguous read.
func registerSpan(m RegisterMap) (min, max uint16) {
	if len(m) == 0 {
		return 0, 0
	}
	min, max = m[0].Address, m[0].Address
	for _, e := range m[1:] {
		if e.Address < min {
			min = e.Address
		}
		if e.Address > max {
			max = e.Address
		}
	}
	return min, max
}

// WritePowerSetpoint sends a signed power setpoint in kW. Positive values
// discharge, negative values charge — callers must enable the matching
// coil first via SetChargeEnable/SetDischargeEnable.
func (c *Client) WritePowerSetpoint(kw float64) error {
	raw := (kw - c.setpoint.Offset) / c.setpoint.Scale
	_, err := c.mb.WriteSingleRegister(c.setpoint.Address, uint16(int16(raw)))
	return classifyErr(err)
}

// SetChargeEnable toggles the charge-enable coil.
func (c *Client) SetChargeEnable(enable bool) error {
	_, err := c.mb.WriteSingleCoil(c.coils["charge_enable"], enable)
	return classifyErr(err)
}

// SetDischargeEnable toggles the discharge-enable coil.
func (c *Client) SetDischargeEnable(enable bool) error {
	_, err := c.mb.WriteSingleCoil(c.coils["discharge_enable"], enable)
	return classifyErr(err)
}

// EmergencyStop is the fast path: setpoint to zero and both coils
// disabled, in the order that cannot leave the PCS mid-command on a
// partial failure (setpoint first, then both enables).
func (c *Client) EmergencyStop() error {
	if err := c.WritePowerSetpoint(0); err != nil {
		return err
	}
	if err := c.SetChargeEnable(false); err != nil {
		return err
	}
	return c.SetDischargeEnable(false)
}

func classifyErr(err error) error {
	if err == nil {
		return nil
	}
	// goburrow/modbus returns *modbus.ModbusError for device exception
	// responses and plain errors (often wrapping net errors) for
	// transport failures; without importing the concrete type here we
	// classify by message shape so callers get a stable sentinel.
	msg := err.Error()
	switch {
	case containsAny(msg, "timeout", "i/o timeout", "deadline exceeded"):
		return domain.ErrFieldBusTimeout
	case containsAny(msg, "CRC", "crc"):
		return domain.ErrFieldBusCRC
	case containsAny(msg, "exception"):
		return domain.ErrFieldBusException
	case containsAny(msg, "refused", "reset by peer", "broken pipe"):
		return domain.ErrFieldBusRefused
	default:
		return err
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if indexOf(s, sub) >= 0 {
			return true
		}
	}
	return false
}

func indexOf(s, sub string) int {
	n, m := len(s), len(sub)
	if m == 0 {
		return 0
	}
	for i := 0; i+m <= n; i++ {
		if s[i:i+m] == sub {
			return i
		}
	}
	return -1
}
