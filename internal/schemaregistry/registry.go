package schemaregistry

import (
	"context"
	"fmt"

	"github.com/veniceio/venice-controller/internal/metadatastore"
	"github.com/veniceio/venice-controller/internal/verrors"
)

// Registry ties schema persistence (internal/metadatastore) to
// compatibility checking (Checker), giving the Store Lifecycle Engine a
// single addValueSchema entry point (spec.md §4.1).
type Registry struct {
	store   metadatastore.MetadataStore
	checker *Checker
}

func NewRegistry(store metadatastore.MetadataStore) *Registry {
	return &Registry{store: store, checker: NewChecker()}
}

// AddValueSchema is idempotent by exact text match: registering a schema
// byte-identical to one already on file returns its existing id without a
// compatibility check or a new id assignment (spec.md §4.1, §8's
// "addValueSchema(S) called twice returns the same id" law). Otherwise it
// checks newSchemaText for BACKWARD compatibility against every value
// schema already registered for the store, then persists it and returns
// its assigned schema id. Venice enforces BACKWARD compatibility against
// all prior schemas, not just the latest, since a consumer may still be
// reading data written under any of them.
func (r *Registry) AddValueSchema(ctx context.Context, cluster, storeName, schemaText string) (int, error) {
	existing, err := r.store.ListValueSchemas(ctx, cluster, storeName)
	if err != nil {
		return 0, fmt.Errorf("list value schemas: %w", err)
	}
	for id, oldText := range existing {
		if oldText == schemaText {
			return id, nil
		}
	}
	for id, oldText := range existing {
		result := r.checker.CheckBackward(schemaText, oldText)
		if !result.Compatible {
			return 0, verrors.New(verrors.KindConflict, "AddValueSchema",
				fmt.Sprintf("incompatible with schema id %d: %v", id, result.Messages))
		}
	}
	return r.store.AddValueSchema(ctx, cluster, storeName, schemaText)
}

// EnsureKeySchema registers the store's key schema if one is not already
// present; Venice key schemas are immutable once set (spec.md §4.1).
func (r *Registry) EnsureKeySchema(ctx context.Context, cluster, storeName, schemaText string) error {
	_, _, err := r.store.GetKeySchema(ctx, cluster, storeName)
	if err == nil {
		return nil
	}
	if err != metadatastore.ErrNotFound {
		return fmt.Errorf("get key schema: %w", err)
	}
	return r.store.PutKeySchema(ctx, cluster, storeName, schemaText)
}
