// Package daemon owns the edge controller's lifecycle and static configuration.
package daemon

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/BurntSushi/toml"
)

// Config holds all operator-owned static configuration, loaded once at
// startup from config.toml. Values the cloud pushes after provisioning are
// not kept here: hourly prices and solar forecasts live in the daemon's TTL
// caches, and the latest cloud power setpoint is held by the decision engine.
type Config struct {
	Device    DeviceConfig    `toml:"device"`
	FieldBus  FieldBusConfig  `toml:"fieldbus"`
	Store     StoreConfig     `toml:"store"`
	Messaging MessagingConfig `toml:"messaging"`
	Safety    SafetyConfig    `toml:"safety"`
	Control   ControlConfig   `toml:"control"`
	Sync      SyncConfig      `toml:"sync"`
	SelfHeal  SelfHealConfig  `toml:"selfheal"`
	OTA       OTAConfig       `toml:"ota"`
	API       APIConfig       `toml:"api"`
}

// DeviceConfig names the on-disk home and the control loop cadence.
type DeviceConfig struct {
	Home               string `toml:"home"`
	SampleIntervalMS   int    `toml:"sample_interval_ms"`
	OptimizeEveryNLoop int    `toml:"optimize_every_n_loop"`
}

// FieldBusConfig addresses the Modbus-connected battery management system.
type FieldBusConfig struct {
	Transport   string `toml:"transport"` // "tcp" or "rtu"
	Address     string `toml:"address"`   // host:port for tcp, device path for rtu
	UnitID      byte   `toml:"unit_id"`
	TimeoutMS   int    `toml:"timeout_ms"`
}

// StoreConfig controls the local durable SQLite store.
type StoreConfig struct {
	Path             string `toml:"path"`
	RetentionDays    int    `toml:"retention_days"`
}

// MessagingConfig controls the MQTT cloud link.
type MessagingConfig struct {
	BrokerURL      string `toml:"broker_url"`
	ClientCertFile string `toml:"client_cert_file"`
	ClientKeyFile  string `toml:"client_key_file"`
	CAFile         string `toml:"ca_file"`
	KeepAliveSec   int    `toml:"keepalive_sec"`
}

// SafetyConfig holds the default threshold table (overridable per-device).
type SafetyConfig struct {
	CellVoltageMinV    float64 `toml:"cell_voltage_min_v"`
	CellVoltageMaxV    float64 `toml:"cell_voltage_max_v"`
	PackTempMaxC       float64 `toml:"pack_temp_max_c"`
	PackCurrentMaxA    float64 `toml:"pack_current_max_a"`
	SOCMinPercent      float64 `toml:"soc_min_percent"`
	SOCMaxPercent      float64 `toml:"soc_max_percent"`
	WatchdogMaxAgeMS   int     `toml:"watchdog_max_age_ms"`

	// Hysteresis margins: once a threshold trips, the reading must clear it
	// by this much before the verdict is allowed to recover, so a value
	// sitting on the boundary doesn't flap the action every cycle.
	CellVoltageHysteresisV float64 `toml:"cell_voltage_hysteresis_v"`
	PackTempHysteresisC    float64 `toml:"pack_temp_hysteresis_c"`
	PackCurrentHysteresisA float64 `toml:"pack_current_hysteresis_a"`
	SOCHysteresisPercent   float64 `toml:"soc_hysteresis_percent"`
}

// ControlConfig tunes the sub-controllers arbitrated by the decision engine.
type ControlConfig struct {
	PeakShavingThresholdKW    float64 `toml:"peak_shaving_threshold_kw"`    // demand_limit_kw
	PeakShavingTriggerPercent float64 `toml:"peak_shaving_trigger_percent"` // fraction of the limit that engages shaving
	ArbitrageMinSpreadPerKWh  float64 `toml:"arbitrage_min_spread_per_kwh"`
	SolarExportLimitKW       float64 `toml:"solar_export_limit_kw"`
	BatteryRatedPowerKW      float64 `toml:"battery_rated_power_kw"` // inverter's max charge/discharge power, bounds every sub-controller's output
	MaintenanceWindowStart   string  `toml:"maintenance_window_start"` // "HH:MM"
	MaintenanceWindowEnd     string  `toml:"maintenance_window_end"`
}

// SyncConfig controls outbound sync backpressure and downsampling.
type SyncConfig struct {
	BatchSize            int `toml:"batch_size"`
	TelemetryDownsampleN int `toml:"telemetry_downsample_n"` // keep 1-in-N under soft backpressure
	SoftQueueDepth       int `toml:"soft_queue_depth"`
	MediumQueueDepth     int `toml:"medium_queue_depth"`
	HardQueueDepth       int `toml:"hard_queue_depth"`
}

// SelfHealConfig carries the retry/backoff/threshold constants recovered
// from the original implementation.
type SelfHealConfig struct {
	FieldBusRetryDelaysSec []int   `toml:"fieldbus_retry_delays_sec"`
	MQTTBackoffDelaysSec   []int   `toml:"mqtt_backoff_delays_sec"`
	MemWarnPercent         float64 `toml:"mem_warn_percent"`
	MemCriticalPercent     float64 `toml:"mem_critical_percent"`
	DiskWarnPercent        float64 `toml:"disk_warn_percent"`
	DiskCriticalPercent    float64 `toml:"disk_critical_percent"`
	WatchdogTimeoutSec     int     `toml:"watchdog_timeout_sec"`
}

// OTAConfig gates and sources firmware updates.
type OTAConfig struct {
	AllowedHosts    []string `toml:"allowed_hosts"`
	AllowUnsigned   bool     `toml:"allow_unsigned"` // development-only override
	HealthcheckWait string   `toml:"healthcheck_wait"`
	SigningKeyFile  string   `toml:"signing_key_file"`
}

// APIConfig controls the local-only diagnostics HTTP surface.
type APIConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// DefaultConfig returns the baseline configuration used when no config.toml
// exists yet, and as the seed LoadConfig decodes over.
func DefaultConfig() Config {
	home := lifo4Home()
	return Config{
		Device: DeviceConfig{
			Home:               home,
			SampleIntervalMS:   1000,
			OptimizeEveryNLoop: 10,
		},
		FieldBus: FieldBusConfig{
			Transport: "tcp",
			Address:   "127.0.0.1:502",
			UnitID:    1,
			TimeoutMS: 500,
		},
		Store: StoreConfig{
			Path:          filepath.Join(home, "store", "edge.db"),
			RetentionDays: 30,
		},
		Messaging: MessagingConfig{
			BrokerURL:      "tls://fleet.lifo4.example:8883",
			ClientCertFile: filepath.Join(home, "certs", "device", "client.crt"),
			ClientKeyFile:  filepath.Join(home, "certs", "device", "client.key"),
			CAFile:         filepath.Join(home, "certs", "device", "ca.crt"),
			KeepAliveSec:   30,
		},
		Safety: SafetyConfig{
			CellVoltageMinV:  2.8,
			CellVoltageMaxV:  3.65,
			PackTempMaxC:     55,
			PackCurrentMaxA:  200,
			SOCMinPercent:    5,
			SOCMaxPercent:    95,
			CellVoltageHysteresisV: 0.02,
			PackTempHysteresisC:    3,
			PackCurrentHysteresisA: 5,
			SOCHysteresisPercent:   2,
			WatchdogMaxAgeMS: 5000,
		},
		Control: ControlConfig{
			PeakShavingThresholdKW:    50,
			PeakShavingTriggerPercent: 0.9,
			ArbitrageMinSpreadPerKWh:  0.05,
			SolarExportLimitKW:       20,
			BatteryRatedPowerKW:      100,
			MaintenanceWindowStart:   "02:00",
			MaintenanceWindowEnd:     "05:00",
		},
		Sync: SyncConfig{
			BatchSize:            50,
			TelemetryDownsampleN: 10,
			SoftQueueDepth:       500,
			MediumQueueDepth:     2000,
			HardQueueDepth:       5000,
		},
		SelfHeal: SelfHealConfig{
			FieldBusRetryDelaysSec: []int{5, 15, 60},
			MQTTBackoffDelaysSec:   []int{1, 2, 4, 8, 16, 30, 60},
			MemWarnPercent:         80,
			MemCriticalPercent:     90,
			DiskWarnPercent:        80,
			DiskCriticalPercent:    90,
			WatchdogTimeoutSec:     30,
		},
		OTA: OTAConfig{
			AllowedHosts:    []string{"ota.lifo4.example"},
			AllowUnsigned:   false,
			HealthcheckWait: "5m",
			SigningKeyFile:  filepath.Join(home, "keys", "ota_signing.pub"),
		},
		API: APIConfig{
			Host: "127.0.0.1",
			Port: 8090,
		},
	}
}

// LoadConfig reads config from $LIFO4_HOME/config.toml, falling back to
// defaults if the file does not exist yet, then applies the OTA_ALLOWED_HOSTS
// (comma-separated) and OTA_ALLOW_UNSIGNED environment overrides.
func LoadConfig() (Config, error) {
	cfg := DefaultConfig()
	path := filepath.Join(lifo4Home(), "config.toml")

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}

	if hosts := os.Getenv("OTA_ALLOWED_HOSTS"); hosts != "" {
		cfg.OTA.AllowedHosts = nil
		for _, h := range strings.Split(hosts, ",") {
			if h = strings.TrimSpace(h); h != "" {
				cfg.OTA.AllowedHosts = append(cfg.OTA.AllowedHosts, h)
			}
		}
	}
	if allow, err := strconv.ParseBool(os.Getenv("OTA_ALLOW_UNSIGNED")); err == nil {
		cfg.OTA.AllowUnsigned = allow
	}
	return cfg, nil
}

// SaveConfig writes cfg to $LIFO4_HOME/config.toml.
func SaveConfig(cfg Config) error {
	path := filepath.Join(lifo4Home(), "config.toml")
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return err
	}

	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

// lifo4Home returns the edge controller's data directory.
func lifo4Home() string {
	if env := os.Getenv("LIFO4_HOME"); env != "" {
		return env
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".lifo4edge")
}

// Lifo4Home is exported for use by other packages.
func Lifo4Home() string {
	return lifo4Home()
}
