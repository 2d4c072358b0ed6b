// Package adminapi exposes a JSON HTTP surface over the Store Lifecycle
// Engine (spec.md §4.5, §6), grounded on the teacher's
// api-gateway/internal/server/server.go + handler/handlers.go shape: a
// gorilla/mux router, a Handlers struct wired from narrow dependencies,
// one method per endpoint, a shared JSON-response helper, request-scoped
// timeouts via context. The teacher fronts a gRPC coordinator; here the
// handler calls internal/lifecycle directly, since this controller *is*
// the authoritative service rather than a gateway in front of one.
package adminapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/veniceio/venice-controller/internal/lifecycle"
	"github.com/veniceio/venice-controller/internal/model"
	"github.com/veniceio/venice-controller/internal/verrors"
)

// Envelope is the response wrapper spec.md §6 mandates: success flag,
// optional error string, and the operation's payload.
type Envelope struct {
	Success bool        `json:"success"`
	Error   string      `json:"error,omitempty"`
	Payload interface{} `json:"payload,omitempty"`
}

// Handlers wires the admin HTTP surface to a single cluster's Store
// Lifecycle Engine. Multi-cluster routing (picking which cluster's engine
// owns a given store) is left to cmd/controller's wiring, which is the
// layer that already knows which clusters this process masters.
type Handlers struct {
	engine  *lifecycle.Engine
	cluster string
	timeout time.Duration
	logger  *zap.Logger
}

func NewHandlers(engine *lifecycle.Engine, cluster string, timeout time.Duration, logger *zap.Logger) *Handlers {
	return &Handlers{engine: engine, cluster: cluster, timeout: timeout, logger: logger}
}

// Mux builds the admin HTTP surface on gorilla/mux, the same router the
// teacher's api-gateway/internal/server/server.go uses for its own
// HTTP-facing routes (path variables via mux.Vars, per-route .Methods()).
func (h *Handlers) Mux() *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/stores", h.CreateStore).Methods(http.MethodPost)
	router.HandleFunc("/stores/{name}/versions", h.AddVersion).Methods(http.MethodPost)
	router.HandleFunc("/stores/{name}/versions/{number}:retire", h.RetireVersion).Methods(http.MethodPost)
	router.HandleFunc("/stores/{name}", h.DeleteStore).Methods(http.MethodDelete)
	router.HandleFunc("/stores/{name}/migrate", h.MigrateStore).Methods(http.MethodPost)
	return router
}

type createStoreRequest struct {
	Name        string `json:"name"`
	Owner       string `json:"owner"`
	KeySchema   string `json:"keySchema"`
	ValueSchema string `json:"valueSchema"`
}

func (h *Handlers) CreateStore(w http.ResponseWriter, r *http.Request) {
	var req createStoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	store, err := h.engine.CreateStore(ctx, h.cluster, req.Name, req.Owner, req.KeySchema, req.ValueSchema)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writePayload(w, http.StatusCreated, store)
}

type addVersionRequest struct {
	PushID       string `json:"pushId"`
	NumberHint   int    `json:"numberHint"`
	Partitions   int    `json:"partitions"`
	Replication  int    `json:"replication"`
	StartMonitor bool   `json:"startMonitor"`
	SendSOP      bool   `json:"sendStartOfPush"`
}

func (h *Handlers) AddVersion(w http.ResponseWriter, r *http.Request) {
	storeName := mux.Vars(r)["name"]

	var req addVersionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if req.NumberHint == model.NonExistingVersion {
		req.NumberHint = model.UnsetVersionNumber
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	version, err := h.engine.AddVersion(ctx, h.cluster, storeName, req.PushID, req.NumberHint, req.Partitions, req.Replication, req.StartMonitor, req.SendSOP)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writePayload(w, http.StatusCreated, version)
}

func (h *Handlers) RetireVersion(w http.ResponseWriter, r *http.Request) {
	storeName := mux.Vars(r)["name"]

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.engine.RetireOldStoreVersions(ctx, h.cluster, storeName); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writePayload(w, http.StatusOK, nil)
}

func (h *Handlers) DeleteStore(w http.ResponseWriter, r *http.Request) {
	storeName := mux.Vars(r)["name"]

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.engine.DeleteStore(ctx, h.cluster, storeName, model.IgnoreVersion); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writePayload(w, http.StatusOK, nil)
}

type migrateStoreRequest struct {
	DestCluster string `json:"destCluster"`
}

func (h *Handlers) MigrateStore(w http.ResponseWriter, r *http.Request) {
	storeName := mux.Vars(r)["name"]

	var req migrateStoreRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.engine.MigrateStore(ctx, h.cluster, req.DestCluster, storeName); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writePayload(w, http.StatusAccepted, nil)
}

// statusFor maps a verrors.Kind to the HTTP status code spec.md §6
// specifies: conflict, missing, rejected mutation, unexpected, non-leader.
func statusFor(err error) int {
	switch verrors.KindOf(err) {
	case verrors.KindConflict, verrors.KindAlreadyExists:
		return http.StatusConflict
	case verrors.KindNotFound:
		return http.StatusNotFound
	case verrors.KindNotLeader:
		return http.StatusUnauthorized
	case verrors.KindCoordinatorUnavailable, verrors.KindTopicManagerUnavailable, verrors.KindMetadataUnavailable:
		return http.StatusServiceUnavailable
	case verrors.KindConcurrentUpdate, verrors.KindJoinTimeout, verrors.KindFatal:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}

func writePayload(w http.ResponseWriter, statusCode int, payload interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(Envelope{Success: true, Payload: payload})
}

func writeError(w http.ResponseWriter, statusCode int, err error) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(Envelope{Success: false, Error: err.Error()})
}
