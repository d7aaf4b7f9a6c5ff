// Package statusapi provides the local HTTP diagnostics server for the
// edge controller: a liveness probe, a point-in-time status snapshot,
// and a Prometheus scrape endpoint. It never accepts control commands —
// those arrive only over the cloud messaging topics.
package statusapi

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lifo4/edge-controller/internal/domain"
	"github.com/lifo4/edge-controller/internal/ota"
	"github.com/lifo4/edge-controller/internal/selfheal"
)

// Snapshot is the point-in-time view the status endpoint reports. The
// daemon composition root fills it from live state on every request.
type Snapshot struct {
	EdgeID          string               `json:"edge_id"`
	SoftwareVersion string               `json:"software_version"`
	Mode            domain.OperatingMode `json:"mode"`
	Telemetry       domain.TelemetrySnapshot `json:"telemetry"`
	LastDecision    domain.Decision      `json:"last_decision"`
	SafetyVerdict   domain.SafetyVerdict `json:"safety_verdict"`
	GridState       string               `json:"grid_state"`
	FieldBusHealthy bool                 `json:"fieldbus_healthy"`
	MQTTConnected   bool                 `json:"mqtt_connected"`
	SyncQueueDepth  map[string]int       `json:"sync_queue_depth"`
	OTAState        ota.State            `json:"ota_state"`
	Checks          []selfheal.Status    `json:"checks"`
}

// Provider supplies the current snapshot on demand. The daemon
// composition root implements this by closing over its live components.
type Provider interface {
	Snapshot() Snapshot
}

// Server is the local HTTP diagnostics API.
type Server struct {
	provider Provider
}

// NewServer creates a Server backed by the given Provider.
func NewServer(provider Provider) *Server {
	return &Server{provider: provider}
}

// Handler returns the chi router with every route mounted.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(10 * time.Second))

	r.Get("/healthz", s.handleHealthz)
	r.Get("/status", s.handleStatus)
	r.Handle("/metrics", promhttp.Handler())

	return r
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	snap := s.provider.Snapshot()
	healthy := true
	for _, c := range snap.Checks {
		if !c.Healthy {
			healthy = false
			break
		}
	}
	status := http.StatusOK
	if !healthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]any{
		"status": healthyLabel(healthy),
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.provider.Snapshot())
}

func healthyLabel(ok bool) string {
	if ok {
		return "ok"
	}
	return "degraded"
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
