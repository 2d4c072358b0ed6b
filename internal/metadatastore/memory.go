package metadatastore

import (
	"context"
	"sync"

	"github.com/veniceio/venice-controller/internal/model"
)

// InMemoryMetadataStore is a MetadataStore fake for tests, grounded on the
// teacher's in-memory Cache (coordinator/internal/store/memory_cache.go)
// pattern of a mutex-guarded map standing in for the real backend.
type InMemoryMetadataStore struct {
	mu            sync.Mutex
	stores        map[string]map[string]*model.Store // cluster -> name -> store
	storeConfigs  map[string]*model.StoreConfig       // storeName -> config
	graveyard     map[string]map[string]*model.GraveyardEntry
	keySchemas    map[string]map[string]string // cluster/store -> schema text
	valueSchemas  map[string]map[string]map[int]string
	executionIDs  map[string]int64
}

func NewInMemoryMetadataStore() *InMemoryMetadataStore {
	return &InMemoryMetadataStore{
		stores:       make(map[string]map[string]*model.Store),
		storeConfigs: make(map[string]*model.StoreConfig),
		graveyard:    make(map[string]map[string]*model.GraveyardEntry),
		keySchemas:   make(map[string]map[string]string),
		valueSchemas: make(map[string]map[string]map[int]string),
		executionIDs: make(map[string]int64),
	}
}

func (m *InMemoryMetadataStore) GetStore(_ context.Context, cluster, name string) (*model.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byName, ok := m.stores[cluster]
	if !ok {
		return nil, ErrNotFound
	}
	st, ok := byName[name]
	if !ok {
		return nil, ErrNotFound
	}
	return st.Clone(), nil
}

func (m *InMemoryMetadataStore) ListStores(_ context.Context, cluster string) ([]*model.Store, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.Store, 0)
	for _, st := range m.stores[cluster] {
		out = append(out, st.Clone())
	}
	return out, nil
}

func (m *InMemoryMetadataStore) CreateStore(_ context.Context, cluster string, st *model.Store) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.stores[cluster]; !ok {
		m.stores[cluster] = make(map[string]*model.Store)
	}
	if _, exists := m.stores[cluster][st.Name]; exists {
		return ErrVersionConflict
	}
	st.RowVersion = 1
	m.stores[cluster][st.Name] = st.Clone()
	return nil
}

func (m *InMemoryMetadataStore) UpdateStore(_ context.Context, cluster string, st *model.Store) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byName, ok := m.stores[cluster]
	if !ok {
		return ErrNotFound
	}
	existing, ok := byName[st.Name]
	if !ok {
		return ErrNotFound
	}
	if existing.RowVersion != st.RowVersion {
		return ErrVersionConflict
	}
	st.RowVersion++
	byName[st.Name] = st.Clone()
	return nil
}

func (m *InMemoryMetadataStore) DeleteStore(_ context.Context, cluster, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	byName, ok := m.stores[cluster]
	if !ok {
		return ErrNotFound
	}
	if _, ok := byName[name]; !ok {
		return ErrNotFound
	}
	delete(byName, name)
	return nil
}

func (m *InMemoryMetadataStore) GetStoreConfig(_ context.Context, storeName string) (*model.StoreConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cfg, ok := m.storeConfigs[storeName]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *cfg
	return &clone, nil
}

func (m *InMemoryMetadataStore) PutStoreConfig(_ context.Context, cfg *model.StoreConfig) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	existing, ok := m.storeConfigs[cfg.StoreName]
	if ok && existing.RowVersion != cfg.RowVersion {
		return ErrVersionConflict
	}
	cfg.RowVersion++
	clone := *cfg
	m.storeConfigs[cfg.StoreName] = &clone
	return nil
}

func (m *InMemoryMetadataStore) DeleteStoreConfig(_ context.Context, storeName string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.storeConfigs[storeName]; !ok {
		return ErrNotFound
	}
	delete(m.storeConfigs, storeName)
	return nil
}

// ListMigratingStoreConfigs returns every StoreConfig with a non-empty
// migration destination, the Store Migration Monitor's per-tick work list
// (spec.md §4.5.8).
func (m *InMemoryMetadataStore) ListMigratingStoreConfigs(_ context.Context) ([]*model.StoreConfig, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*model.StoreConfig, 0)
	for _, cfg := range m.storeConfigs {
		if cfg.IsMigrating() {
			clone := *cfg
			out = append(out, &clone)
		}
	}
	return out, nil
}

func (m *InMemoryMetadataStore) GetGraveyardEntry(_ context.Context, cluster, storeName string) (*model.GraveyardEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byStore, ok := m.graveyard[cluster]
	if !ok {
		return nil, ErrNotFound
	}
	entry, ok := byStore[storeName]
	if !ok {
		return nil, ErrNotFound
	}
	clone := *entry
	return &clone, nil
}

func (m *InMemoryMetadataStore) PutGraveyardEntry(_ context.Context, cluster string, entry *model.GraveyardEntry) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.graveyard[cluster]; !ok {
		m.graveyard[cluster] = make(map[string]*model.GraveyardEntry)
	}
	if existing, ok := m.graveyard[cluster][entry.StoreName]; ok && existing.LargestUsedVersionNumber > entry.LargestUsedVersionNumber {
		entry = existing
	}
	clone := *entry
	m.graveyard[cluster][entry.StoreName] = &clone
	return nil
}

func (m *InMemoryMetadataStore) GetKeySchema(_ context.Context, cluster, storeName string) (int, string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	byStore, ok := m.keySchemas[cluster]
	if !ok {
		return 0, "", ErrNotFound
	}
	text, ok := byStore[storeName]
	if !ok {
		return 0, "", ErrNotFound
	}
	return model.KeySchemaID, text, nil
}

func (m *InMemoryMetadataStore) PutKeySchema(_ context.Context, cluster, storeName, schemaText string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.keySchemas[cluster]; !ok {
		m.keySchemas[cluster] = make(map[string]string)
	}
	if _, exists := m.keySchemas[cluster][storeName]; exists {
		return nil
	}
	m.keySchemas[cluster][storeName] = schemaText
	return nil
}

func (m *InMemoryMetadataStore) ListValueSchemas(_ context.Context, cluster, storeName string) (map[int]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[int]string)
	if byStore, ok := m.valueSchemas[cluster]; ok {
		for id, text := range byStore[storeName] {
			out[id] = text
		}
	}
	return out, nil
}

func (m *InMemoryMetadataStore) AddValueSchema(_ context.Context, cluster, storeName, schemaText string) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.valueSchemas[cluster]; !ok {
		m.valueSchemas[cluster] = make(map[string]map[int]string)
	}
	if _, ok := m.valueSchemas[cluster][storeName]; !ok {
		m.valueSchemas[cluster][storeName] = make(map[int]string)
	}
	next := len(m.valueSchemas[cluster][storeName]) + 1
	m.valueSchemas[cluster][storeName][next] = schemaText
	return next, nil
}

// PutValueSchemaAtID inserts schemaText under an explicit id, used by
// migrateStore (spec.md §4.5.8) to copy a store's schema history onto the
// destination cluster without renumbering it.
func (m *InMemoryMetadataStore) PutValueSchemaAtID(_ context.Context, cluster, storeName string, schemaID int, schemaText string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.valueSchemas[cluster]; !ok {
		m.valueSchemas[cluster] = make(map[string]map[int]string)
	}
	if _, ok := m.valueSchemas[cluster][storeName]; !ok {
		m.valueSchemas[cluster][storeName] = make(map[int]string)
	}
	m.valueSchemas[cluster][storeName][schemaID] = schemaText
	return nil
}

func (m *InMemoryMetadataStore) NextExecutionID(_ context.Context, cluster string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.executionIDs[cluster]++
	return m.executionIDs[cluster], nil
}

func (m *InMemoryMetadataStore) Ping(_ context.Context) error { return nil }

func (m *InMemoryMetadataStore) Close() {}
