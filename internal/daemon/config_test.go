package daemon

import (
	"os"
	"path/filepath"
	"testing"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.API.Host != "127.0.0.1" {
		t.Errorf("API.Host = %q, want %q", cfg.API.Host, "127.0.0.1")
	}
	if cfg.API.Port != 8090 {
		t.Errorf("API.Port = %d, want %d", cfg.API.Port, 8090)
	}
	if cfg.Safety.SOCMaxPercent != 95 {
		t.Errorf("Safety.SOCMaxPercent = %v, want 95", cfg.Safety.SOCMaxPercent)
	}
	if len(cfg.SelfHeal.FieldBusRetryDelaysSec) != 3 {
		t.Errorf("FieldBusRetryDelaysSec len = %d, want 3", len(cfg.SelfHeal.FieldBusRetryDelaysSec))
	}
	if len(cfg.SelfHeal.MQTTBackoffDelaysSec) != 7 {
		t.Errorf("MQTTBackoffDelaysSec len = %d, want 7", len(cfg.SelfHeal.MQTTBackoffDelaysSec))
	}
}

func TestLoadConfigMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("LIFO4_HOME", t.TempDir())

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.Device.SampleIntervalMS != 1000 {
		t.Errorf("SampleIntervalMS = %d, want 1000", cfg.Device.SampleIntervalMS)
	}
}

func TestSaveThenLoadConfigRoundTrips(t *testing.T) {
	home := t.TempDir()
	t.Setenv("LIFO4_HOME", home)

	cfg := DefaultConfig()
	cfg.FieldBus.UnitID = 7
	cfg.Control.PeakShavingThresholdKW = 42.5

	if err := SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	if _, err := os.Stat(filepath.Join(home, "config.toml")); err != nil {
		t.Fatalf("expected config.toml to exist: %v", err)
	}

	loaded, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if loaded.FieldBus.UnitID != 7 {
		t.Errorf("UnitID = %d, want 7", loaded.FieldBus.UnitID)
	}
	if loaded.Control.PeakShavingThresholdKW != 42.5 {
		t.Errorf("PeakShavingThresholdKW = %v, want 42.5", loaded.Control.PeakShavingThresholdKW)
	}
}
