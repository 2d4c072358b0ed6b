package adminapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/veniceio/venice-controller/internal/config"
	"github.com/veniceio/venice-controller/internal/lifecycle"
	"github.com/veniceio/venice-controller/internal/metadatastore"
	"github.com/veniceio/venice-controller/internal/pushstatus"
	"github.com/veniceio/venice-controller/internal/rescoord"
	"github.com/veniceio/venice-controller/internal/schemaregistry"
	"github.com/veniceio/venice-controller/internal/topicmanager"
)

const testCluster = "cluster0"

func newTestHandlers() *Handlers {
	store := metadatastore.NewInMemoryMetadataStore()
	planner := rescoord.NewPartitionPlanner(16)
	planner.AddInstance("instance-a")
	planner.AddInstance("instance-b")
	planner.AddInstance("instance-c")
	coord := rescoord.NewCoordinator(planner, nil, zap.NewNop())
	topics := topicmanager.NewFakeManager()
	schemas := schemaregistry.NewRegistry(store)

	cfg := config.DefaultConfig()
	cfg.Clusters[testCluster] = config.ClusterConfig{
		DefaultReplicationFactor: 3,
		MinActiveReplicas:        2,
		MinPartitionCount:        1,
		MaxPartitionCount:        256,
	}

	engine := lifecycle.New(store, coord, topics, schemas, nil, nil, pushstatus.NewFakeWriter(), cfg, zap.NewNop())
	return NewHandlers(engine, testCluster, 5*time.Second, zap.NewNop())
}

func TestHandlers_CreateStoreRoundTrip(t *testing.T) {
	h := newTestHandlers()
	mux := h.Mux()

	body, _ := json.Marshal(createStoreRequest{Name: "widgets", Owner: "team-widgets", KeySchema: `"string"`, ValueSchema: `"string"`})
	req := httptest.NewRequest(http.MethodPost, "/stores", bytes.NewReader(body))
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	require.Equal(t, http.StatusCreated, w.Code)
	var env Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.True(t, env.Success)
}

func TestHandlers_CreateStoreDuplicateReturnsConflict(t *testing.T) {
	h := newTestHandlers()
	mux := h.Mux()

	body, _ := json.Marshal(createStoreRequest{Name: "widgets", Owner: "team-widgets", KeySchema: `"string"`, ValueSchema: `"string"`})

	req1 := httptest.NewRequest(http.MethodPost, "/stores", bytes.NewReader(body))
	mux.ServeHTTP(httptest.NewRecorder(), req1)

	req2 := httptest.NewRequest(http.MethodPost, "/stores", bytes.NewReader(body))
	w2 := httptest.NewRecorder()
	mux.ServeHTTP(w2, req2)

	assert.Equal(t, http.StatusConflict, w2.Code)
	var env Envelope
	require.NoError(t, json.Unmarshal(w2.Body.Bytes(), &env))
	assert.False(t, env.Success)
	assert.NotEmpty(t, env.Error)
}

func TestHandlers_DeleteStoreMissingReturnsNotFound(t *testing.T) {
	h := newTestHandlers()
	mux := h.Mux()

	req := httptest.NewRequest(http.MethodDelete, "/stores/does-not-exist", nil)
	w := httptest.NewRecorder()

	mux.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandlers_AddVersionThenRetire(t *testing.T) {
	h := newTestHandlers()
	mux := h.Mux()

	createBody, _ := json.Marshal(createStoreRequest{Name: "widgets", Owner: "team-widgets", KeySchema: `"string"`, ValueSchema: `"string"`})
	mux.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodPost, "/stores", bytes.NewReader(createBody)))

	addBody, _ := json.Marshal(addVersionRequest{PushID: "push-1", Partitions: 4, Replication: 2})
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/stores/widgets/versions", bytes.NewReader(addBody)))
	require.Equal(t, http.StatusCreated, w.Code)

	retireW := httptest.NewRecorder()
	mux.ServeHTTP(retireW, httptest.NewRequest(http.MethodPost, "/stores/widgets/versions/1:retire", nil))
	assert.Equal(t, http.StatusOK, retireW.Code)
}
