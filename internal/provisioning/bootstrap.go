package provisioning

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/lifo4/edge-controller/internal/domain"
	"github.com/lifo4/edge-controller/internal/messaging"
)

// State is a step in the zero-touch provisioning flow.
type State string

const (
	StateInit          State = "init"
	StateConnecting    State = "connecting"
	StateRegistering   State = "registering"
	StateWaitingConfig State = "waiting_config"
	StateConfiguring   State = "configuring"
	StateDiscovering   State = "discovering"
	StateOperational   State = "operational"
	StateFailed        State = "failed"
)

// registrationPayload is published to the shared registration topic; the
// cloud replies on a per-device topic scoped by EdgeID.
type registrationPayload struct {
	EdgeID          string   `json:"edge_id"`
	MACAddress      string   `json:"mac_address"`
	Hardware        string   `json:"hardware"`
	SoftwareVersion string   `json:"software_version"`
	IPAddress       string   `json:"ip_address"`
	Timestamp       string   `json:"timestamp"`
	SerialNumber    string   `json:"serial_number"`
	Capabilities    []string `json:"capabilities"`
}

// Paths collects the filesystem locations the orchestrator reads from and
// writes to.
type Paths struct {
	DeviceConfigFile  string
	PermanentCertDir  string
}

// Orchestrator drives the bootstrap flow once per boot: skip if already
// provisioned, otherwise register over the bootstrap MQTT connection, wait
// for the cloud's site configuration, pivot to the permanent certificate,
// discover Modbus devices, and report operational.
type Orchestrator struct {
	mqtt            *messaging.Client
	paths           Paths
	softwareVersion string
	timeout         time.Duration

	mu            sync.Mutex
	state         State
	identity      domain.DeviceIdentity
	cloudCfg      CloudConfig
	configArrived chan struct{}
	once          sync.Once
}

// NewOrchestrator builds an Orchestrator bound to an already-constructed
// (but not yet connected) bootstrap MQTT client.
func NewOrchestrator(mqttClient *messaging.Client, paths Paths, softwareVersion string, timeout time.Duration) *Orchestrator {
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Orchestrator{
		mqtt:            mqttClient,
		paths:           paths,
		softwareVersion: softwareVersion,
		timeout:         timeout,
		state:           StateInit,
		configArrived:   make(chan struct{}),
	}
}

// State returns the orchestrator's current step.
func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

// AlreadyProvisioned reports whether a device config already exists on
// disk, making Run a no-op.
func (o *Orchestrator) AlreadyProvisioned() (string, bool) {
	edgeID, _, ok := LoadExistingConfig(o.paths.DeviceConfigFile)
	return edgeID, ok
}

// Run executes the full provisioning flow. It returns nil if the device
// was already provisioned (a no-op) or if provisioning completed; any
// other case returns an error and leaves State() at StateFailed.
func (o *Orchestrator) Run(ctx context.Context, modbusHost string, modbusPort int) error {
	if edgeID, ok := o.AlreadyProvisioned(); ok {
		log.Printf("[provisioning] device already provisioned as %s, skipping bootstrap", edgeID)
		return nil
	}

	o.identity = DetectIdentity()
	log.Printf("[provisioning] edge_id=%s mac=%s model=%s", o.identity.EdgeID, o.identity.MAC, o.identity.Model)

	o.setState(StateConnecting)
	if err := o.mqtt.Subscribe(messaging.TopicProvisioningConfig(o.identity.EdgeID), o.onConfigMessage); err != nil {
		o.setState(StateFailed)
		return fmt.Errorf("subscribe provisioning config: %w", err)
	}
	if err := o.mqtt.Connect(); err != nil {
		o.setState(StateFailed)
		return domain.ErrBootstrapRejected
	}

	o.setState(StateRegistering)
	if err := o.register(); err != nil {
		o.setState(StateFailed)
		return fmt.Errorf("publish registration: %w", err)
	}

	o.setState(StateWaitingConfig)
	if err := o.waitForConfig(ctx); err != nil {
		o.setState(StateFailed)
		return err
	}

	o.setState(StateConfiguring)
	if err := InstallPermanentCertificates(o.paths.PermanentCertDir, o.cloudCfg.MQTTConfig); err != nil {
		o.setState(StateFailed)
		return fmt.Errorf("install certificates: %w", err)
	}
	if err := SaveDeviceConfig(o.paths.DeviceConfigFile, o.identity.EdgeID, o.cloudCfg); err != nil {
		o.setState(StateFailed)
		return fmt.Errorf("save device config: %w", err)
	}

	o.setState(StateDiscovering)
	devices := DiscoverModbusDevices(modbusHost, modbusPort, 3*time.Second)
	log.Printf("[provisioning] discovered %d modbus device(s)", len(devices))

	if err := o.reportOperational(devices); err != nil {
		log.Printf("[provisioning] operational report failed (non-fatal): %v", err)
	}
	o.setState(StateOperational)
	return nil
}

func (o *Orchestrator) register() error {
	payload := registrationPayload{
		EdgeID:          o.identity.EdgeID,
		MACAddress:      o.identity.MAC,
		Hardware:        o.identity.Model,
		SoftwareVersion: o.softwareVersion,
		IPAddress:       DetectLocalIP(),
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
		SerialNumber:    o.identity.Serial,
		Capabilities:    o.identity.Capabilities,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return o.mqtt.Publish(messaging.TopicProvisioningRegister, body)
}

func (o *Orchestrator) onConfigMessage(_ string, payload []byte) {
	var cfg CloudConfig
	if err := json.Unmarshal(payload, &cfg); err != nil {
		log.Printf("[provisioning] malformed cloud config: %v", err)
		return
	}
	o.mu.Lock()
	o.cloudCfg = cfg
	o.mu.Unlock()
	o.once.Do(func() { close(o.configArrived) })
}

func (o *Orchestrator) waitForConfig(ctx context.Context) error {
	select {
	case <-o.configArrived:
		return nil
	case <-time.After(o.timeout):
		return domain.ErrBootstrapRejected
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (o *Orchestrator) reportOperational(devices []DiscoveredDevice) error {
	status := struct {
		EdgeID            string              `json:"edge_id"`
		Status            string              `json:"status"`
		DiscoveredDevices []DiscoveredDevice  `json:"discovered_devices"`
		Timestamp         string              `json:"timestamp"`
	}{
		EdgeID:            o.identity.EdgeID,
		Status:            "provisioned_and_operational",
		DiscoveredDevices: devices,
		Timestamp:         time.Now().UTC().Format(time.RFC3339),
	}
	body, err := json.Marshal(status)
	if err != nil {
		return err
	}
	return o.mqtt.Publish(messaging.TopicHeartbeat(o.cloudCfg.SystemID), body)
}
