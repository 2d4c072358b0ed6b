package lifecycle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veniceio/venice-controller/internal/model"
)

func TestEngine_CreateStoreRegistersStoreConfigAndSchemas(t *testing.T) {
	e, store, _, _ := newTestEngine()
	ctx := context.Background()

	s, err := e.CreateStore(ctx, testCluster, "widgets", "team-a", `{"type":"string"}`, `{"type":"string"}`)
	require.NoError(t, err)
	assert.Equal(t, model.NonExistingVersion, s.CurrentVersion)
	assert.True(t, s.EnableReads)
	assert.True(t, s.EnableWrites)

	cfg, err := store.GetStoreConfig(ctx, "widgets")
	require.NoError(t, err)
	assert.Equal(t, testCluster, cfg.Cluster)
	assert.False(t, cfg.Deleting)

	schemaID, text, err := store.GetKeySchema(ctx, testCluster, "widgets")
	require.NoError(t, err)
	assert.Equal(t, model.KeySchemaID, schemaID)
	assert.Equal(t, `{"type":"string"}`, text)
}

func TestEngine_CreateStoreRejectsDuplicate(t *testing.T) {
	e, _, _, _ := newTestEngine()
	ctx := context.Background()

	_, err := e.CreateStore(ctx, testCluster, "widgets", "team-a", `"string"`, `"string"`)
	require.NoError(t, err)

	_, err = e.CreateStore(ctx, testCluster, "widgets", "team-a", `"string"`, `"string"`)
	assert.Error(t, err)
}

func TestEngine_CreateStoreAfterDeleteRecoversGraveyardFloor(t *testing.T) {
	e, _, _, _ := newTestEngine()
	ctx := context.Background()

	_, err := e.CreateStore(ctx, testCluster, "widgets", "team-a", `"string"`, `"string"`)
	require.NoError(t, err)

	_, err = e.AddVersion(ctx, testCluster, "widgets", "p-1", model.UnsetVersionNumber, 4, 3, false, false)
	require.NoError(t, err)

	readWrite := false
	_, err = e.UpdateStore(ctx, testCluster, "widgets", UpdateStoreOptions{EnableReads: &readWrite, EnableWrites: &readWrite})
	require.NoError(t, err)

	require.NoError(t, e.DeleteStore(ctx, testCluster, "widgets", model.IgnoreVersion))

	recreated, err := e.CreateStore(ctx, testCluster, "widgets", "team-a", `"string"`, `"string"`)
	require.NoError(t, err)
	assert.Equal(t, 1, recreated.LargestUsedVersionNumber)
}
