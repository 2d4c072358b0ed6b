package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/veniceio/venice-controller/internal/metadatastore"
)

type fakeDiscoveryPinger struct {
	err error
}

func (f *fakeDiscoveryPinger) Ping(_ context.Context) error { return f.err }

func TestHealthChecker_LivenessAlwaysOK(t *testing.T) {
	hc := NewHealthChecker(nil, nil, zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	w := httptest.NewRecorder()

	hc.LivenessHandler(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "alive", resp.Status)
}

func TestHealthChecker_ReadinessReportsReadyWhenDependenciesHealthy(t *testing.T) {
	store := metadatastore.NewInMemoryMetadataStore()
	hc := NewHealthChecker(store, &fakeDiscoveryPinger{}, zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	w := httptest.NewRecorder()

	hc.ReadinessHandler(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var resp Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "ready", resp.Status)
	assert.Equal(t, "healthy", resp.Checks["metadata_store"])
	assert.Equal(t, "healthy", resp.Checks["discovery_cache"])
}

func TestHealthChecker_ReadinessReportsNotReadyWhenDiscoveryDown(t *testing.T) {
	store := metadatastore.NewInMemoryMetadataStore()
	hc := NewHealthChecker(store, &fakeDiscoveryPinger{err: errors.New("connection refused")}, zap.NewNop())
	req := httptest.NewRequest(http.MethodGet, "/health/ready", nil)
	w := httptest.NewRecorder()

	hc.ReadinessHandler(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	var resp Status
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "not_ready", resp.Status)
	assert.Contains(t, resp.Checks["discovery_cache"], "unhealthy")
}
