package provisioning

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"
	"time"
)

func TestAlreadyProvisionedFalseWhenNoConfig(t *testing.T) {
	o := NewOrchestrator(nil, Paths{DeviceConfigFile: filepath.Join(t.TempDir(), "device.json")}, "1.0.0", time.Second)
	if _, ok := o.AlreadyProvisioned(); ok {
		t.Error("AlreadyProvisioned() = true with no saved config, want false")
	}
}

func TestAlreadyProvisionedTrueAfterSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.json")
	if err := SaveDeviceConfig(path, "edge-xyz", CloudConfig{SiteID: "s1"}); err != nil {
		t.Fatalf("SaveDeviceConfig() error: %v", err)
	}
	o := NewOrchestrator(nil, Paths{DeviceConfigFile: path}, "1.0.0", time.Second)
	edgeID, ok := o.AlreadyProvisioned()
	if !ok || edgeID != "edge-xyz" {
		t.Errorf("AlreadyProvisioned() = (%q, %v), want (edge-xyz, true)", edgeID, ok)
	}
}

func TestOnConfigMessageUnblocksWaitForConfig(t *testing.T) {
	o := NewOrchestrator(nil, Paths{DeviceConfigFile: filepath.Join(t.TempDir(), "device.json")}, "1.0.0", time.Second)

	cfg := CloudConfig{SiteID: "site-9", SystemID: "sys-9", OrganizationID: "org-9"}
	body, _ := json.Marshal(cfg)

	done := make(chan error, 1)
	go func() { done <- o.waitForConfig(context.Background()) }()

	o.onConfigMessage("ignored-topic", body)

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("waitForConfig() error: %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("waitForConfig() did not return after config arrived")
	}

	if o.cloudCfg.SiteID != "site-9" {
		t.Errorf("cloudCfg.SiteID = %q, want site-9", o.cloudCfg.SiteID)
	}
}

func TestWaitForConfigTimesOut(t *testing.T) {
	o := NewOrchestrator(nil, Paths{DeviceConfigFile: filepath.Join(t.TempDir(), "device.json")}, "1.0.0", 20*time.Millisecond)
	if err := o.waitForConfig(context.Background()); err == nil {
		t.Error("waitForConfig() = nil on timeout, want ErrBootstrapRejected")
	}
}

func TestOnConfigMessageIgnoresMalformedPayload(t *testing.T) {
	o := NewOrchestrator(nil, Paths{DeviceConfigFile: filepath.Join(t.TempDir(), "device.json")}, "1.0.0", 20*time.Millisecond)
	o.onConfigMessage("topic", []byte("not json"))
	select {
	case <-o.configArrived:
		t.Error("configArrived closed on malformed payload, want still open")
	default:
	}
}
