// Package daemon owns the edge controller's lifecycle: static
// configuration, and the composition root that wires the field bus,
// local store, cloud messaging, decision engine, sync manager, and
// self-healing checks into one running process.
package daemon

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/lifo4/edge-controller/internal/cache"
	"github.com/lifo4/edge-controller/internal/control"
	"github.com/lifo4/edge-controller/internal/domain"
	"github.com/lifo4/edge-controller/internal/fieldbus"
	"github.com/lifo4/edge-controller/internal/messaging"
	"github.com/lifo4/edge-controller/internal/metrics"
	"github.com/lifo4/edge-controller/internal/ota"
	"github.com/lifo4/edge-controller/internal/provisioning"
	"github.com/lifo4/edge-controller/internal/safety"
	"github.com/lifo4/edge-controller/internal/security"
	"github.com/lifo4/edge-controller/internal/selfheal"
	"github.com/lifo4/edge-controller/internal/statusapi"
	"github.com/lifo4/edge-controller/internal/store"
	"github.com/lifo4/edge-controller/internal/sync"
)

// softwareVersion is set at build time via -ldflags, propagated through
// SetVersion at process startup.
var softwareVersion = "dev"

// SetVersion records the running build's version string, reported in OTA
// status messages and the local diagnostics snapshot.
func SetVersion(v string) {
	softwareVersion = v
}

// Daemon is the edge controller's runtime. It wires every component and
// owns the control loop (C9) as a method set, since it is the one object
// holding handles to all the others.
type Daemon struct {
	Config Config

	Store     *store.DB
	FieldBus  *fieldbus.Client
	Messaging *messaging.Client
	Safety    *safety.Evaluator
	Engine    *control.Engine
	Sync      *sync.Manager
	Checker   *selfheal.Checker
	Watchdog  *selfheal.Watchdog
	Breaker   *selfheal.CircuitBreaker
	Resources *selfheal.ResourceMonitor
	OTA       *ota.Updater
	Identity  domain.DeviceIdentity
	Keypair   *security.Keypair

	priceCache    *cache.Manager[float64]
	forecastCache *cache.Manager[map[int]float64]

	lastTelemetry domain.TelemetrySnapshot
	lastDecision  domain.Decision
	lastVerdict   domain.SafetyVerdict
	lastSeq       int

	cancel context.CancelFunc
}

// New loads configuration and wires every component into a Daemon ready
// for Serve. It does not provision the device; Provision does that.
func New() (*Daemon, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return NewWithConfig(cfg)
}

// NewWithConfig wires a Daemon from an already-loaded Config.
func NewWithConfig(cfg Config) (*Daemon, error) {
	identity := provisioning.DetectIdentity()

	kp, err := security.LoadOrCreateKeypair(cfg.Device.Home)
	if err != nil {
		log.Printf("[daemon] WARNING: failed to load device keypair: %v (OTA signing identity unavailable)", err)
	} else {
		identity.PublicKeyHex = kp.PublicKeyHex()
	}

	db, err := store.Open(cfg.Store.Path)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	fb, err := dialFieldBus(cfg.FieldBus)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("dial field bus: %w", err)
	}

	mqttCfg := messaging.Config{
		BrokerURL:      cfg.Messaging.BrokerURL,
		ClientID:       identity.EdgeID,
		ClientCertFile: cfg.Messaging.ClientCertFile,
		ClientKeyFile:  cfg.Messaging.ClientKeyFile,
		CAFile:         cfg.Messaging.CAFile,
		KeepAlive:      time.Duration(cfg.Messaging.KeepAliveSec) * time.Second,
		BackoffDelays:  secondsToDurations(cfg.SelfHeal.MQTTBackoffDelaysSec),
	}
	lastWill := fmt.Sprintf(`{"edge_id":%q,"status":"offline"}`, identity.EdgeID)
	mqttClient, err := messaging.New(mqttCfg, messaging.TopicHeartbeat(identity.EdgeID), []byte(lastWill))
	if err != nil {
		fb.Close()
		db.Close()
		return nil, fmt.Errorf("build mqtt client: %w", err)
	}

	evaluator := safety.New(safety.Thresholds{
		CellVoltageMinV: cfg.Safety.CellVoltageMinV,
		CellVoltageMaxV: cfg.Safety.CellVoltageMaxV,
		PackTempMaxC:    cfg.Safety.PackTempMaxC,
		PackCurrentMaxA: cfg.Safety.PackCurrentMaxA,
		SOCMinPercent:   cfg.Safety.SOCMinPercent,
		SOCMaxPercent:   cfg.Safety.SOCMaxPercent,

		CellVoltageHysteresisV: cfg.Safety.CellVoltageHysteresisV,
		PackTempHysteresisC:    cfg.Safety.PackTempHysteresisC,
		PackCurrentHysteresisA: cfg.Safety.PackCurrentHysteresisA,
		SOCHysteresisPercent:   cfg.Safety.SOCHysteresisPercent,
	})

	engine := buildEngine(cfg)

	syncMgr := sync.New(db, mqttClient, sync.Config{
		BatchSize:            cfg.Sync.BatchSize,
		TelemetryDownsampleN: cfg.Sync.TelemetryDownsampleN,
		Thresholds: sync.Thresholds{
			Soft:   cfg.Sync.SoftQueueDepth,
			Medium: cfg.Sync.MediumQueueDepth,
			Hard:   cfg.Sync.HardQueueDepth,
		},
	})

	breaker := selfheal.NewCircuitBreaker(selfheal.DefaultBreakerConfig())
	watchdog := selfheal.NewWatchdog(time.Duration(cfg.SelfHeal.WatchdogTimeoutSec) * time.Second)
	resources := selfheal.NewResourceMonitor(cfg.Device.Home)

	checker := selfheal.NewChecker(10*time.Second, []selfheal.Check{
		selfheal.FieldBusCheck(breaker, func(ctx context.Context) error {
			_, err := fb.ReadTelemetry()
			return err
		}),
		selfheal.MQTTCheck(mqttClient.IsConnected, func(ctx context.Context) error {
			return mqttClient.Connect()
		}),
		selfheal.ResourceCheck("memory", resources.MemUsedPercent, selfheal.ResourceThresholds{
			WarnPercent: cfg.SelfHeal.MemWarnPercent, CriticalPercent: cfg.SelfHeal.MemCriticalPercent,
		}),
		selfheal.ResourceCheck("disk", resources.DiskUsedPercent, selfheal.ResourceThresholds{
			WarnPercent: cfg.SelfHeal.DiskWarnPercent, CriticalPercent: cfg.SelfHeal.DiskCriticalPercent,
		}),
	})

	var signingKey ed25519.PublicKey
	if cfg.OTA.SigningKeyFile != "" {
		signingKey, err = security.LoadSigningPublicKeyHex(cfg.OTA.SigningKeyFile)
		if err != nil && !cfg.OTA.AllowUnsigned {
			log.Printf("[daemon] WARNING: could not load OTA signing key: %v", err)
		}
	}
	otaUpdater := ota.NewUpdater(ota.Config{
		AllowedHosts:       cfg.OTA.AllowedHosts,
		StagingDir:         filepath.Join(cfg.Device.Home, "ota", "staging"),
		PartitionAPath:     filepath.Join(cfg.Device.Home, "ota", "partition-a"),
		PartitionBPath:     filepath.Join(cfg.Device.Home, "ota", "partition-b"),
		ActiveMarkerPath:   filepath.Join(cfg.Device.Home, "ota", "active_partition.txt"),
		PendingVersionFile: filepath.Join(cfg.Device.Home, "ota", "pending_version"),
		RunningVersionFile: filepath.Join(cfg.Device.Home, "ota", "running_version"),
		SigningKeyPath:     cfg.OTA.SigningKeyFile,
		AllowUnsigned:      cfg.OTA.AllowUnsigned,
		Window:             parseMaintenanceWindow(cfg.Control.MaintenanceWindowStart, cfg.Control.MaintenanceWindowEnd),
		HealthcheckTimeout: parseDuration(cfg.OTA.HealthcheckWait, 5*time.Minute),
		SoftwareVersion:    softwareVersion,
		SiteID:             identity.EdgeID,
	}, mqttClient, signingKey)

	d := &Daemon{
		Config:        cfg,
		Store:         db,
		FieldBus:      fb,
		Messaging:     mqttClient,
		Safety:        evaluator,
		Engine:        engine,
		Sync:          syncMgr,
		Checker:       checker,
		Watchdog:      watchdog,
		Breaker:       breaker,
		Resources:     resources,
		OTA:           otaUpdater,
		Identity:      identity,
		Keypair:       kp,
		priceCache:    cache.NewManager[float64](),
		forecastCache: cache.NewManager[map[int]float64](),
	}
	return d, nil
}

func buildEngine(cfg Config) *control.Engine {
	ratedKW := cfg.Control.BatteryRatedPowerKW

	peakShave := control.NewPeakShavingController(
		cfg.Control.PeakShavingThresholdKW, cfg.Control.PeakShavingTriggerPercent,
		cfg.Safety.SOCMinPercent, ratedKW,
	)
	arbitrage := control.NewArbitrageController(
		cfg.Control.ArbitrageMinSpreadPerKWh, cfg.Control.ArbitrageMinSpreadPerKWh,
		cfg.Safety.SOCMinPercent, cfg.Safety.SOCMaxPercent, ratedKW, ratedKW,
	)
	solar := control.NewSolarSelfConsumptionController(
		0.5, (cfg.Safety.SOCMinPercent+cfg.Safety.SOCMaxPercent)/2, true, ratedKW, ratedKW,
	)
	limits := control.Limits{
		MaxChargeKW:    ratedKW,
		MaxDischargeKW: ratedKW,
		SafeModeMinSOC: cfg.Safety.SOCMinPercent,
		SafeModeMaxSOC: cfg.Safety.SOCMaxPercent,
	}
	return control.NewEngine(limits, peakShave, arbitrage, solar, 60*time.Second)
}

func dialFieldBus(cfg FieldBusConfig) (*fieldbus.Client, error) {
	timeout := time.Duration(cfg.TimeoutMS) * time.Millisecond
	switch cfg.Transport {
	case "rtu":
		return fieldbus.DialRTU(cfg.Address, cfg.UnitID, 9600, timeout)
	default:
		return fieldbus.Dial(cfg.Address, cfg.UnitID, timeout)
	}
}

// Provision runs the zero-touch bootstrap flow if this device has not yet
// been provisioned, or returns nil immediately when a saved device config
// already exists.
func (d *Daemon) Provision(ctx context.Context) error {
	paths := provisioning.Paths{
		DeviceConfigFile: filepath.Join(d.Config.Device.Home, "device_config.json"),
		PermanentCertDir: filepath.Join(d.Config.Device.Home, "certs", "device"),
	}
	if _, _, ok := provisioning.LoadExistingConfig(paths.DeviceConfigFile); ok {
		return nil
	}

	orchestrator := provisioning.NewOrchestrator(d.Messaging, paths, softwareVersion, 5*time.Minute)
	host, port := splitModbusAddress(d.Config.FieldBus.Address)
	return orchestrator.Run(ctx, host, port)
}

// Serve runs the control loop, background managers, and the local
// diagnostics HTTP server until ctx is cancelled or a termination signal
// arrives.
func (d *Daemon) Serve(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	d.cancel = cancel

	if err := d.Messaging.Connect(); err != nil {
		log.Printf("[daemon] initial mqtt connect failed, will retry: %v", err)
	}

	go d.Checker.Run(ctx)
	go d.runSyncLoop(ctx)
	go d.RunControlLoop(ctx)

	srv := statusapi.NewServer(d)
	addr := fmt.Sprintf("%s:%d", d.Config.API.Host, d.Config.API.Port)
	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv.Handler(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
		IdleTimeout:  1 * time.Minute,
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case <-sigCh:
		case <-ctx.Done():
		}
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		_ = httpServer.Shutdown(shutdownCtx)
		d.Close()
	}()

	log.Printf("[daemon] edge controller %s serving status API on http://%s", d.Identity.EdgeID, addr)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Close releases every resource the daemon opened.
func (d *Daemon) Close() {
	if d.cancel != nil {
		d.cancel()
	}
	if d.Messaging != nil {
		d.Messaging.Disconnect()
	}
	if d.FieldBus != nil {
		_ = d.FieldBus.Close()
	}
	if d.Store != nil {
		_ = d.Store.Close()
	}
}

func (d *Daemon) runSyncLoop(ctx context.Context) {
	ticker := time.NewTicker(2 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			level, acked, err := d.Sync.Drain()
			if err != nil {
				continue
			}
			if acked > 0 {
				metrics.SyncBatchesPublished.WithLabelValues("mixed").Inc()
			}
			_ = level
			metrics.MQTTConnected.Set(boolToFloat(d.Messaging.IsConnected()))
		}
	}
}

func secondsToDurations(secs []int) []time.Duration {
	out := make([]time.Duration, len(secs))
	for i, s := range secs {
		out[i] = time.Duration(s) * time.Second
	}
	return out
}

func parseMaintenanceWindow(start, end string) ota.MaintenanceWindow {
	sh := parseHour(start, 2)
	eh := parseHour(end, 5)
	return ota.MaintenanceWindow{StartHour: sh, EndHour: eh}
}

func parseHour(hhmm string, fallback int) int {
	var h, m int
	if n, err := fmt.Sscanf(hhmm, "%d:%d", &h, &m); err != nil || n != 2 {
		return fallback
	}
	return h
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if s == "" {
		return fallback
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}

func splitModbusAddress(addr string) (string, int) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return addr, 502
	}
	port := 502
	fmt.Sscanf(portStr, "%d", &port)
	return host, port
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
