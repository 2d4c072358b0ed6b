package schemaregistry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veniceio/venice-controller/internal/metadatastore"
)

func TestRegistry_AddValueSchemaRejectsIncompatibleSchema(t *testing.T) {
	ctx := context.Background()
	store := metadatastore.NewInMemoryMetadataStore()
	reg := NewRegistry(store)

	id1, err := reg.AddValueSchema(ctx, "cluster0", "widgets", recordV1)
	require.NoError(t, err)
	assert.Equal(t, 1, id1)

	_, err = reg.AddValueSchema(ctx, "cluster0", "widgets", recordV2AddedFieldNoDefault)
	assert.Error(t, err)

	id2, err := reg.AddValueSchema(ctx, "cluster0", "widgets", recordV2AddedFieldWithDefault)
	require.NoError(t, err)
	assert.Equal(t, 2, id2)
}

func TestRegistry_AddValueSchemaIsIdempotentByExactText(t *testing.T) {
	ctx := context.Background()
	store := metadatastore.NewInMemoryMetadataStore()
	reg := NewRegistry(store)

	id1, err := reg.AddValueSchema(ctx, "cluster0", "widgets", `"string"`)
	require.NoError(t, err)
	assert.Equal(t, 1, id1)

	id1Again, err := reg.AddValueSchema(ctx, "cluster0", "widgets", `"string"`)
	require.NoError(t, err)
	assert.Equal(t, id1, id1Again)

	schemas, err := store.ListValueSchemas(ctx, "cluster0", "widgets")
	require.NoError(t, err)
	assert.Len(t, schemas, 1, "re-registering the same text must not mint a new id")
}

func TestRegistry_EnsureKeySchemaIsIdempotent(t *testing.T) {
	ctx := context.Background()
	store := metadatastore.NewInMemoryMetadataStore()
	reg := NewRegistry(store)

	require.NoError(t, reg.EnsureKeySchema(ctx, "cluster0", "widgets", `{"type":"string"}`))
	require.NoError(t, reg.EnsureKeySchema(ctx, "cluster0", "widgets", `{"type":"long"}`))

	_, text, err := store.GetKeySchema(ctx, "cluster0", "widgets")
	require.NoError(t, err)
	assert.Equal(t, `{"type":"string"}`, text)
}
