// Package provisioning implements zero-touch bootstrap: a freshly flashed
// controller derives a stable identity from its hardware, registers with
// the cloud over a bootstrap (registration-only) certificate, waits for a
// site configuration, and pivots to its permanent certificate — all
// without a technician touching a keyboard.
package provisioning

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net"
	"os"
	"runtime"
	"strings"

	"github.com/lifo4/edge-controller/internal/domain"
)

var candidateInterfaces = []string{"eth0", "enp1s0", "ens3", "wlan0"}

// DetectMAC returns the primary network interface's MAC address, preferring
// the well-known Linux interface names and falling back to the first
// interface with a non-zero hardware address.
func DetectMAC() string {
	for _, name := range candidateInterfaces {
		if iface, err := net.InterfaceByName(name); err == nil && len(iface.HardwareAddr) > 0 {
			return strings.ToUpper(iface.HardwareAddr.String())
		}
	}
	ifaces, err := net.Interfaces()
	if err == nil {
		for _, iface := range ifaces {
			if len(iface.HardwareAddr) == 0 {
				continue
			}
			if iface.Flags&net.FlagLoopback != 0 {
				continue
			}
			return strings.ToUpper(iface.HardwareAddr.String())
		}
	}
	return "00:00:00:00:00:00"
}

// DetectSerial returns a hardware serial number read from /proc/cpuinfo
// (Raspberry Pi / Jetson convention), falling back to a stable hash of the
// MAC address when no serial line is present.
func DetectSerial(mac string) string {
	if serial := readCPUInfoSerial(); serial != "" {
		return serial
	}
	sum := sha256.Sum256([]byte(mac))
	return strings.ToUpper(hex.EncodeToString(sum[:])[:16])
}

func readCPUInfoSerial() string {
	data, err := os.ReadFile("/proc/cpuinfo")
	if err != nil {
		return ""
	}
	for _, line := range strings.Split(string(data), "\n") {
		if strings.HasPrefix(line, "Serial") {
			parts := strings.SplitN(line, ":", 2)
			if len(parts) == 2 {
				return strings.TrimSpace(parts[1])
			}
		}
	}
	return ""
}

// DetectHardwareModel reads the device-tree model string (Raspberry Pi /
// Jetson) or falls back to a generic label naming the Go build's GOARCH.
func DetectHardwareModel() string {
	data, err := os.ReadFile("/proc/device-tree/model")
	if err == nil {
		return strings.TrimRight(strings.TrimSpace(string(data)), "\x00")
	}
	return fmt.Sprintf("generic-%s", runtime.GOARCH)
}

// DetectLocalIP returns the outbound IP address the kernel would use to
// reach the public internet, without actually sending traffic.
func DetectLocalIP() string {
	conn, err := net.Dial("udp", "8.8.8.8:80")
	if err != nil {
		return "127.0.0.1"
	}
	defer conn.Close()
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return "127.0.0.1"
	}
	return addr.IP.String()
}

// BuildEdgeID derives a stable device identifier from MAC and serial: the
// first 12 hex characters of sha256(mac-serial), prefixed "edge-".
func BuildEdgeID(mac, serial string) string {
	sum := sha256.Sum256([]byte(mac + "-" + serial))
	return "edge-" + hex.EncodeToString(sum[:])[:12]
}

// DetectIdentity gathers the full hardware identity used in the
// registration payload.
func DetectIdentity() domain.DeviceIdentity {
	mac := DetectMAC()
	serial := DetectSerial(mac)
	return domain.DeviceIdentity{
		EdgeID:       BuildEdgeID(mac, serial),
		MAC:          mac,
		Serial:       serial,
		Model:        DetectHardwareModel(),
		Capabilities: []string{"modbus-tcp", "mqtt", "sqlite"},
	}
}
