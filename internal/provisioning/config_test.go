package provisioning

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadExistingConfigMissingFile(t *testing.T) {
	_, _, ok := LoadExistingConfig(filepath.Join(t.TempDir(), "device.json"))
	if ok {
		t.Error("LoadExistingConfig() on missing file = ok, want not ok")
	}
}

func TestSaveThenLoadDeviceConfigRoundTrips(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config", "device.json")
	cfg := CloudConfig{SiteID: "site-1", SystemID: "sys-1", OrganizationID: "org-1"}

	if err := SaveDeviceConfig(path, "edge-abc123", cfg); err != nil {
		t.Fatalf("SaveDeviceConfig() error: %v", err)
	}

	edgeID, loaded, ok := LoadExistingConfig(path)
	if !ok {
		t.Fatal("LoadExistingConfig() = not ok after save")
	}
	if edgeID != "edge-abc123" {
		t.Errorf("edgeID = %q, want edge-abc123", edgeID)
	}
	if loaded.SiteID != cfg.SiteID || loaded.SystemID != cfg.SystemID || loaded.OrganizationID != cfg.OrganizationID {
		t.Errorf("loaded config = %+v, want %+v", loaded, cfg)
	}
}

func TestLoadExistingConfigCorruptFileTreatedAsUnprovisioned(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "device.json")
	if err := os.WriteFile(path, []byte("not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	_, _, ok := LoadExistingConfig(path)
	if ok {
		t.Error("LoadExistingConfig() on corrupt file = ok, want not ok so device re-provisions")
	}
}

func TestInstallPermanentCertificatesWritesFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "certs")
	bundle := MQTTCertBundle{ClientCertPEM: "CERT", ClientKeyPEM: "KEY"}
	if err := InstallPermanentCertificates(dir, bundle); err != nil {
		t.Fatalf("InstallPermanentCertificates() error: %v", err)
	}
	if data, err := os.ReadFile(filepath.Join(dir, "client.crt")); err != nil || string(data) != "CERT" {
		t.Errorf("client.crt = %q, %v, want CERT", data, err)
	}
	if data, err := os.ReadFile(filepath.Join(dir, "client.key")); err != nil || string(data) != "KEY" {
		t.Errorf("client.key = %q, %v, want KEY", data, err)
	}
}
