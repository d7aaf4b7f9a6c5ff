package ota

import (
	"context"
	"crypto/ed25519"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/lifo4/edge-controller/internal/messaging"
)

// Config addresses every filesystem location and policy knob the updater
// needs.
type Config struct {
	AllowedHosts       []string
	StagingDir         string
	PartitionAPath     string
	PartitionBPath     string
	ActiveMarkerPath   string
	PendingVersionFile string
	RunningVersionFile string
	SigningKeyPath     string
	AllowUnsigned      bool
	Window             MaintenanceWindow
	HealthcheckTimeout time.Duration
	SoftwareVersion    string
	SiteID             string
}

// Updater drives the install/verify/reboot/rollback lifecycle for one
// site. It never calls reboot itself in tests — Reboot is a replaceable
// field so tests can observe the intent without touching the host.
type Updater struct {
	cfg        Config
	mqtt       *messaging.Client
	partitions *PartitionManager
	signingKey ed25519.PublicKey

	mu    sync.Mutex
	state State

	Reboot func(reason string) error
}

// NewUpdater builds an Updater. signingKey may be nil only when
// cfg.AllowUnsigned is true (development).
func NewUpdater(cfg Config, mqttClient *messaging.Client, signingKey ed25519.PublicKey) *Updater {
	u := &Updater{
		cfg:        cfg,
		mqtt:       mqttClient,
		partitions: NewPartitionManager(cfg.PartitionAPath, cfg.PartitionBPath, cfg.ActiveMarkerPath),
		signingKey: signingKey,
		state:      StateIdle,
	}
	u.Reboot = u.defaultReboot
	return u
}

// State returns the updater's current step.
func (u *Updater) State() State {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.state
}

func (u *Updater) setState(s State) {
	u.mu.Lock()
	u.state = s
	u.mu.Unlock()
}

// ParseNotification decodes an OTA update notification payload.
func ParseNotification(payload []byte) (UpdatePackage, error) {
	var pkg UpdatePackage
	if err := json.Unmarshal(payload, &pkg); err != nil {
		return UpdatePackage{}, fmt.Errorf("parse ota notification: %w", err)
	}
	if pkg.Version == "" || pkg.URL == "" || pkg.Checksum == "" {
		return UpdatePackage{}, fmt.Errorf("ota notification missing required field")
	}
	return pkg, nil
}

// WaitForWindow blocks until the configured maintenance window opens, or
// ctx is cancelled.
func (u *Updater) WaitForWindow(ctx context.Context, now func() time.Time) error {
	wait := u.cfg.Window.UntilNextWindow(now())
	if wait <= 0 {
		return nil
	}
	log.Printf("[ota] waiting %s for the next maintenance window", wait)
	select {
	case <-time.After(wait):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ExecuteUpdate runs the full download/verify/install/reboot sequence.
// safetyCheck is polled every retryInterval until it reports the system
// safe to reboot, or ctx is cancelled.
func (u *Updater) ExecuteUpdate(ctx context.Context, pkg UpdatePackage, safetyCheck func() OperationalState, retryInterval time.Duration) error {
	if retryInterval <= 0 {
		retryInterval = 15 * time.Minute
	}

	for {
		safe, reason := IsSafeToUpdate(safetyCheck())
		if safe {
			break
		}
		log.Printf("[ota] update blocked — %s — retrying in %s", reason, retryInterval)
		select {
		case <-time.After(retryInterval):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	u.setState(StateDownloading)
	u.reportStatus("downloading", pkg.Version)

	imagePath, err := DownloadImage(ctx, pkg.URL, u.cfg.StagingDir, u.cfg.AllowedHosts, u.cfg.SoftwareVersion)
	if err != nil {
		u.setState(StateFailed)
		u.reportStatus("download_failed", pkg.Version)
		return err
	}

	u.setState(StateVerifying)
	if err := VerifyChecksum(imagePath, pkg.Checksum); err != nil {
		u.setState(StateFailed)
		u.reportStatus("checksum_failed", pkg.Version)
		return err
	}
	if err := VerifySignature(imagePath, pkg.Signature, u.signingKey, u.cfg.AllowUnsigned); err != nil {
		u.setState(StateFailed)
		u.reportStatus("signature_failed", pkg.Version)
		return err
	}

	u.setState(StateInstalling)
	u.reportStatus("installing", pkg.Version)
	inactive := u.partitions.Inactive()
	if err := u.partitions.Install(imagePath, inactive); err != nil {
		u.setState(StateFailed)
		u.reportStatus("install_failed", pkg.Version)
		return err
	}
	if err := u.partitions.SwitchActive(inactive); err != nil {
		u.setState(StateFailed)
		u.reportStatus("install_failed", pkg.Version)
		return err
	}

	if err := os.MkdirAll(filepath.Dir(u.cfg.PendingVersionFile), 0o755); err != nil {
		return fmt.Errorf("create pending version dir: %w", err)
	}
	if err := os.WriteFile(u.cfg.PendingVersionFile, []byte(pkg.Version), 0o644); err != nil {
		return fmt.Errorf("write pending version marker: %w", err)
	}

	u.setState(StateRebooting)
	u.reportStatus("rebooting", pkg.Version)
	return u.Reboot("ota update to " + pkg.Version)
}

// ApplyStagedUpdate is called after reboot into the new partition. It
// polls probes until they all pass or the healthcheck timeout elapses,
// then commits or rolls back.
func (u *Updater) ApplyStagedUpdate(ctx context.Context, probes HealthProbes) error {
	pending, err := os.ReadFile(u.cfg.PendingVersionFile)
	if err != nil {
		log.Printf("[ota] no pending update — nothing to verify")
		return nil
	}
	version := strings.TrimSpace(string(pending))

	u.setState(StateHealthcheck)
	timeout := u.cfg.HealthcheckTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		status := RunHealthcheck(ctx, probes)
		if status.AllOK() {
			return u.commit(version)
		}
		log.Printf("[ota] healthcheck not yet passing, retrying in 15s")
		select {
		case <-time.After(15 * time.Second):
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	log.Printf("[ota] healthcheck timed out — rolling back")
	return u.rollback(version)
}

func (u *Updater) commit(version string) error {
	u.setState(StateCommitted)
	_ = os.Remove(u.cfg.PendingVersionFile)
	if err := os.WriteFile(u.cfg.RunningVersionFile, []byte(version), 0o644); err != nil {
		return fmt.Errorf("write running version marker: %w", err)
	}
	u.reportStatus("update_success", version)
	return nil
}

func (u *Updater) rollback(version string) error {
	u.setState(StateRolledBack)
	inactive := u.partitions.Inactive()
	if err := u.partitions.SwitchActive(inactive); err != nil {
		return fmt.Errorf("switch partition for rollback: %w", err)
	}
	u.reportStatus("rollback_executed", version)
	return u.Reboot("ota rollback from " + version)
}

func (u *Updater) reportStatus(status, version string) {
	if u.mqtt == nil {
		return
	}
	body, err := json.Marshal(struct {
		Status          string `json:"status"`
		Version         string `json:"version"`
		ActivePartition string `json:"active_partition"`
		Timestamp       string `json:"timestamp"`
	}{
		Status:          status,
		Version:         version,
		ActivePartition: string(u.partitions.Active()),
		Timestamp:       time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	if err := u.mqtt.Publish(messaging.TopicOTAStatus(u.cfg.SiteID), body); err != nil {
		log.Printf("[ota] could not report status: %v", err)
	}
}

func (u *Updater) defaultReboot(reason string) error {
	log.Printf("[ota] rebooting: %s", reason)
	if err := exec.Command("reboot").Run(); err != nil {
		return exec.Command("shutdown", "-r", "now").Run()
	}
	return nil
}
