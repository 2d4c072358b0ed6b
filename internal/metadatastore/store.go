// Package metadatastore is the controller's persistent source of truth:
// stores, versions, discovery (StoreConfig), the graveyard, schemas, and
// the per-cluster execution-id counter (spec.md §4.1). It is grounded on
// the teacher's store.MetadataStore interface and PostgresMetadataStore
// (coordinator/internal/store/{interfaces,postgres_metadata_store}.go),
// generalized from a single tenants/storage_nodes/migrations schema to
// Venice's store/version/discovery/graveyard/schema schema, and from the
// teacher's "version = current-1" CAS idiom to an explicit row_version
// column, checked by UpdateStore and PutStoreConfig.
package metadatastore

import (
	"context"
	"errors"

	"github.com/veniceio/venice-controller/internal/model"
)

// ErrNotFound mirrors the teacher's store.ErrNotFound sentinel.
var ErrNotFound = errors.New("not found")

// ErrVersionConflict is returned when a CAS write's row_version predicate
// matched zero rows because another writer won the race.
var ErrVersionConflict = errors.New("row version conflict")

// MetadataStore is the controller's persistence interface. UpdateStore and
// PutStoreConfig are compare-and-swap writes guarded by RowVersion and
// return ErrVersionConflict when the stored row has moved on; the other
// mutating methods write without a RowVersion check. UpdateStore writes
// the store row and its version rows in two separate steps, so
// internal/lifecycle's locks are what keep same-store writers from
// interleaving.
type MetadataStore interface {
	// Store operations
	GetStore(ctx context.Context, cluster, name string) (*model.Store, error)
	ListStores(ctx context.Context, cluster string) ([]*model.Store, error)
	CreateStore(ctx context.Context, cluster string, store *model.Store) error
	UpdateStore(ctx context.Context, cluster string, store *model.Store) error
	DeleteStore(ctx context.Context, cluster, name string) error

	// Discovery (StoreConfig) operations
	GetStoreConfig(ctx context.Context, storeName string) (*model.StoreConfig, error)
	PutStoreConfig(ctx context.Context, cfg *model.StoreConfig) error
	DeleteStoreConfig(ctx context.Context, storeName string) error
	ListMigratingStoreConfigs(ctx context.Context) ([]*model.StoreConfig, error)

	// Graveyard operations
	GetGraveyardEntry(ctx context.Context, cluster, storeName string) (*model.GraveyardEntry, error)
	PutGraveyardEntry(ctx context.Context, cluster string, entry *model.GraveyardEntry) error

	// Schema operations
	GetKeySchema(ctx context.Context, cluster, storeName string) (schemaID int, schemaText string, err error)
	PutKeySchema(ctx context.Context, cluster, storeName, schemaText string) error
	ListValueSchemas(ctx context.Context, cluster, storeName string) (map[int]string, error)
	AddValueSchema(ctx context.Context, cluster, storeName, schemaText string) (schemaID int, err error)
	PutValueSchemaAtID(ctx context.Context, cluster, storeName string, schemaID int, schemaText string) error

	// ExecutionID operations (spec.md §4.1 [NEW] ExecutionIDStore)
	NextExecutionID(ctx context.Context, cluster string) (int64, error)

	Ping(ctx context.Context) error
	Close()
}
