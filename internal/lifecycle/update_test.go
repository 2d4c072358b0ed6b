package lifecycle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veniceio/venice-controller/internal/verrors"
)

func TestEngine_UpdateStoreHybridGuardsRejectPartitionAndIncrementalChanges(t *testing.T) {
	e, _, _, _ := newTestEngine()
	ctx := context.Background()

	_, err := e.CreateStore(ctx, testCluster, "hybrid-store", "team-a", `"long"`, `"string"`)
	require.NoError(t, err)

	rewind := int64(3600)
	lag := int64(100)
	_, err = e.UpdateStore(ctx, testCluster, "hybrid-store", UpdateStoreOptions{
		HybridRewindSeconds: &rewind, HybridOffsetLagThreshold: &lag,
	})
	require.NoError(t, err)

	newCount := 16
	_, err = e.UpdateStore(ctx, testCluster, "hybrid-store", UpdateStoreOptions{PartitionCount: &newCount})
	assert.True(t, verrors.Is(err, verrors.KindConflict))

	incr := true
	_, err = e.UpdateStore(ctx, testCluster, "hybrid-store", UpdateStoreOptions{IncrementalPushEnabled: &incr})
	assert.True(t, verrors.Is(err, verrors.KindConflict))

	s, err := e.store.GetStore(ctx, testCluster, "hybrid-store")
	require.NoError(t, err)
	assert.False(t, s.IncrementalPushEnabled)
}

func TestEngine_UpdateStoreHybridTransitionRequiresBothFields(t *testing.T) {
	e, _, _, _ := newTestEngine()
	ctx := context.Background()

	_, err := e.CreateStore(ctx, testCluster, "plain-store", "team-a", `"long"`, `"string"`)
	require.NoError(t, err)

	rewind := int64(60)
	_, err = e.UpdateStore(ctx, testCluster, "plain-store", UpdateStoreOptions{HybridRewindSeconds: &rewind})
	assert.True(t, verrors.Is(err, verrors.KindConflict))
}

func TestEngine_PeekNextVersionDoesNotMutate(t *testing.T) {
	e, store, _, _ := newTestEngine()
	ctx := context.Background()

	_, err := e.CreateStore(ctx, testCluster, "orders", "team-a", `"long"`, `"string"`)
	require.NoError(t, err)

	next, err := e.PeekNextVersion(ctx, testCluster, "orders")
	require.NoError(t, err)
	assert.Equal(t, 1, next)

	s, err := store.GetStore(ctx, testCluster, "orders")
	require.NoError(t, err)
	assert.Len(t, s.Versions, 0)
}
