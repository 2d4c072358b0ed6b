// Package health exposes the controller's liveness/readiness HTTP surface,
// grounded on the teacher's coordinator/internal/health/health_check.go
// (a HealthChecker wired from narrow store handles, two handlers on a
// dedicated net/http.ServeMux/Server).
package health

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/veniceio/venice-controller/internal/metadatastore"
)

// discoveryPinger is the subset of *discovery.Resolver the health checker
// needs, narrowed to an interface so tests can fake it without a Redis
// connection.
type discoveryPinger interface {
	Ping(ctx context.Context) error
}

// HealthChecker serves the liveness and readiness probes.
type HealthChecker struct {
	metadataStore metadatastore.MetadataStore
	discovery     discoveryPinger
	logger        *zap.Logger
}

// Status is the liveness/readiness JSON response body.
type Status struct {
	Status    string            `json:"status"`
	Timestamp int64             `json:"timestamp"`
	Checks    map[string]string `json:"checks,omitempty"`
}

func NewHealthChecker(metadataStore metadatastore.MetadataStore, discoveryR discoveryPinger, logger *zap.Logger) *HealthChecker {
	return &HealthChecker{metadataStore: metadataStore, discovery: discoveryR, logger: logger}
}

// LivenessHandler reports the process is up; it never touches a dependency.
func (h *HealthChecker) LivenessHandler(w http.ResponseWriter, r *http.Request) {
	status := Status{Status: "alive", Timestamp: time.Now().Unix()}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(status)
}

// ReadinessHandler checks every dependency the lifecycle engine needs to
// make progress on this process (metadata store, discovery cache) and
// reports not_ready if any is unreachable.
func (h *HealthChecker) ReadinessHandler(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	checks := make(map[string]string)
	allHealthy := true

	if err := h.checkMetadataStore(ctx); err != nil {
		h.logger.Error("metadata store health check failed", zap.Error(err))
		checks["metadata_store"] = "unhealthy: " + err.Error()
		allHealthy = false
	} else {
		checks["metadata_store"] = "healthy"
	}

	if err := h.checkDiscovery(ctx); err != nil {
		h.logger.Error("discovery cache health check failed", zap.Error(err))
		checks["discovery_cache"] = "unhealthy: " + err.Error()
		allHealthy = false
	} else {
		checks["discovery_cache"] = "healthy"
	}

	status := Status{Timestamp: time.Now().Unix(), Checks: checks}
	w.Header().Set("Content-Type", "application/json")
	if allHealthy {
		status.Status = "ready"
		w.WriteHeader(http.StatusOK)
	} else {
		status.Status = "not_ready"
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(status)
}

func (h *HealthChecker) checkMetadataStore(ctx context.Context) error {
	if h.metadataStore == nil {
		return nil
	}
	return h.metadataStore.Ping(ctx)
}

func (h *HealthChecker) checkDiscovery(ctx context.Context) error {
	if h.discovery == nil {
		return nil
	}
	return h.discovery.Ping(ctx)
}

// StartServer starts the liveness/readiness HTTP server; it blocks until
// the server stops (ListenAndServe's usual contract).
func StartServer(hc *HealthChecker, port int, logger *zap.Logger) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health/live", hc.LivenessHandler)
	mux.HandleFunc("/health/ready", hc.ReadinessHandler)

	addr := fmt.Sprintf(":%d", port)
	logger.Info("starting health check server", zap.String("address", addr))

	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return server.ListenAndServe()
}
