package metadatastore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veniceio/venice-controller/internal/model"
)

func TestInMemoryMetadataStore_CreateGetUpdateStore(t *testing.T) {
	ctx := context.Background()
	ms := NewInMemoryMetadataStore()

	st := &model.Store{Name: "widgets", Owner: "alice", CreatedAt: time.Now(), PartitionCount: 3}
	require.NoError(t, ms.CreateStore(ctx, "cluster0", st))
	assert.EqualValues(t, 1, st.RowVersion)

	fetched, err := ms.GetStore(ctx, "cluster0", "widgets")
	require.NoError(t, err)
	assert.Equal(t, "alice", fetched.Owner)

	fetched.Owner = "bob"
	require.NoError(t, ms.UpdateStore(ctx, "cluster0", fetched))

	again, err := ms.GetStore(ctx, "cluster0", "widgets")
	require.NoError(t, err)
	assert.Equal(t, "bob", again.Owner)
	assert.EqualValues(t, 2, again.RowVersion)
}

func TestInMemoryMetadataStore_UpdateStoreRejectsStaleRowVersion(t *testing.T) {
	ctx := context.Background()
	ms := NewInMemoryMetadataStore()

	st := &model.Store{Name: "widgets"}
	require.NoError(t, ms.CreateStore(ctx, "cluster0", st))

	stale := st.Clone()
	require.NoError(t, ms.UpdateStore(ctx, "cluster0", st))

	err := ms.UpdateStore(ctx, "cluster0", stale)
	assert.ErrorIs(t, err, ErrVersionConflict)
}

func TestInMemoryMetadataStore_GraveyardNeverRegresses(t *testing.T) {
	ctx := context.Background()
	ms := NewInMemoryMetadataStore()

	require.NoError(t, ms.PutGraveyardEntry(ctx, "cluster0", &model.GraveyardEntry{StoreName: "widgets", LargestUsedVersionNumber: 5}))
	require.NoError(t, ms.PutGraveyardEntry(ctx, "cluster0", &model.GraveyardEntry{StoreName: "widgets", LargestUsedVersionNumber: 2}))

	entry, err := ms.GetGraveyardEntry(ctx, "cluster0", "widgets")
	require.NoError(t, err)
	assert.Equal(t, 5, entry.LargestUsedVersionNumber)
}

func TestInMemoryMetadataStore_AddValueSchemaAssignsSequentialIDs(t *testing.T) {
	ctx := context.Background()
	ms := NewInMemoryMetadataStore()

	id1, err := ms.AddValueSchema(ctx, "cluster0", "widgets", `{"type":"record"}`)
	require.NoError(t, err)
	id2, err := ms.AddValueSchema(ctx, "cluster0", "widgets", `{"type":"record","fields":[]}`)
	require.NoError(t, err)

	assert.Equal(t, 1, id1)
	assert.Equal(t, 2, id2)

	schemas, err := ms.ListValueSchemas(ctx, "cluster0", "widgets")
	require.NoError(t, err)
	assert.Len(t, schemas, 2)
}

func TestInMemoryMetadataStore_NextExecutionIDIncrementsPerCluster(t *testing.T) {
	ctx := context.Background()
	ms := NewInMemoryMetadataStore()

	id1, err := ms.NextExecutionID(ctx, "cluster0")
	require.NoError(t, err)
	id2, err := ms.NextExecutionID(ctx, "cluster0")
	require.NoError(t, err)
	otherClusterID, err := ms.NextExecutionID(ctx, "cluster1")
	require.NoError(t, err)

	assert.EqualValues(t, 1, id1)
	assert.EqualValues(t, 2, id2)
	assert.EqualValues(t, 1, otherClusterID)
}

func TestInMemoryMetadataStore_GetStoreNotFound(t *testing.T) {
	ms := NewInMemoryMetadataStore()
	_, err := ms.GetStore(context.Background(), "cluster0", "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
