package lifecycle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veniceio/venice-controller/internal/model"
	"github.com/veniceio/venice-controller/internal/verrors"
)

func TestEngine_DeleteStoreRefusesWhileReadableOrWritable(t *testing.T) {
	e, _, _, _ := newTestEngine()
	ctx := context.Background()

	_, err := e.CreateStore(ctx, testCluster, "orders", "team-a", `"long"`, `"string"`)
	require.NoError(t, err)

	err = e.DeleteStore(ctx, testCluster, "orders", model.IgnoreVersion)
	assert.True(t, verrors.Is(err, verrors.KindConflict))

	noVal := false
	_, err = e.UpdateStore(ctx, testCluster, "orders", UpdateStoreOptions{EnableReads: &noVal, EnableWrites: &noVal})
	require.NoError(t, err)

	require.NoError(t, e.DeleteStore(ctx, testCluster, "orders", model.IgnoreVersion))
}

func TestEngine_DeleteStoreRecordsGraveyardFloor(t *testing.T) {
	e, store, _, _ := newTestEngine()
	ctx := context.Background()

	_, err := e.CreateStore(ctx, testCluster, "orders", "team-a", `"long"`, `"string"`)
	require.NoError(t, err)
	_, err = e.AddVersion(ctx, testCluster, "orders", "p-1", model.UnsetVersionNumber, 4, 3, false, false)
	require.NoError(t, err)

	noVal := false
	_, err = e.UpdateStore(ctx, testCluster, "orders", UpdateStoreOptions{EnableReads: &noVal, EnableWrites: &noVal})
	require.NoError(t, err)
	require.NoError(t, e.DeleteStore(ctx, testCluster, "orders", model.IgnoreVersion))

	entry, err := store.GetGraveyardEntry(ctx, testCluster, "orders")
	require.NoError(t, err)
	assert.Equal(t, 1, entry.LargestUsedVersionNumber)
}

func TestEngine_CheckResourceCleanupBeforeStoreCreation(t *testing.T) {
	e, _, _, topics := newTestEngine()
	ctx := context.Background()

	// lingering version topic only: must succeed (version topics ignored)
	require.NoError(t, topics.CreateTopic(ctx, model.VersionTopicName("widgets", 1), 4, 3, 0))
	assert.NoError(t, e.CheckResourceCleanupBeforeStoreCreation(ctx, testCluster, "widgets", true))

	// lingering real-time topic: must fail
	require.NoError(t, topics.CreateTopic(ctx, model.RealTimeTopicName("widgets"), 4, 3, 0))
	err := e.CheckResourceCleanupBeforeStoreCreation(ctx, testCluster, "widgets", true)
	assert.True(t, verrors.Is(err, verrors.KindConflict))
}
