package lifecycle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veniceio/venice-controller/internal/model"
)

func TestEngine_AddVersionThenIncrementIdempotentIsStable(t *testing.T) {
	e, _, _, topics := newTestEngine()
	ctx := context.Background()

	_, err := e.CreateStore(ctx, testCluster, "orders", "team-a", `"long"`, `"string"`)
	require.NoError(t, err)

	v1, err := e.IncrementVersionIdempotent(ctx, testCluster, "orders", "p-1", 4, 3, true, true)
	require.NoError(t, err)
	assert.Equal(t, 1, v1.Number)
	assert.Equal(t, model.VersionStatusStarted, v1.Status)

	exists, err := topics.ContainsTopic(ctx, model.VersionTopicName("orders", 1))
	require.NoError(t, err)
	assert.True(t, exists)

	v1Again, err := e.IncrementVersionIdempotent(ctx, testCluster, "orders", "p-1", 4, 3, true, true)
	require.NoError(t, err)
	assert.Equal(t, v1.Number, v1Again.Number)
}

func TestEngine_GetStartedVersionRejectsMultipleStarted(t *testing.T) {
	e, store, _, _ := newTestEngine()
	ctx := context.Background()

	_, err := e.CreateStore(ctx, testCluster, "orders", "team-a", `"long"`, `"string"`)
	require.NoError(t, err)
	_, err = e.AddVersion(ctx, testCluster, "orders", "p-1", model.UnsetVersionNumber, 4, 3, false, false)
	require.NoError(t, err)
	_, err = e.AddVersion(ctx, testCluster, "orders", "p-2", model.UnsetVersionNumber, 4, 3, false, false)
	require.NoError(t, err)

	s, err := store.GetStore(ctx, testCluster, "orders")
	require.NoError(t, err)
	_, err = e.GetStartedVersion(s)
	assert.Error(t, err)
}

func TestEngine_DeleteOneStoreVersionRemovesVersionAndResource(t *testing.T) {
	e, store, coord, _ := newTestEngine()
	ctx := context.Background()

	_, err := e.CreateStore(ctx, testCluster, "orders", "team-a", `"long"`, `"string"`)
	require.NoError(t, err)
	v, err := e.AddVersion(ctx, testCluster, "orders", "p-1", model.UnsetVersionNumber, 4, 3, true, false)
	require.NoError(t, err)

	require.NoError(t, e.DeleteOneStoreVersion(ctx, testCluster, "orders", v.Number))

	s, err := store.GetStore(ctx, testCluster, "orders")
	require.NoError(t, err)
	assert.Nil(t, s.VersionByNumber(v.Number))
	assert.False(t, coord.ResourceExistsForStore("orders"))
}

func TestEngine_RetireOldStoreVersionsKeepsCurrentAndRecent(t *testing.T) {
	e, store, _, _ := newTestEngine()
	ctx := context.Background()

	_, err := e.CreateStore(ctx, testCluster, "orders", "team-a", `"long"`, `"string"`)
	require.NoError(t, err)

	var last *model.Version
	for i := 0; i < 4; i++ {
		last, err = e.AddVersion(ctx, testCluster, "orders", "push-"+string(rune('a'+i)), model.UnsetVersionNumber, 4, 3, false, false)
		require.NoError(t, err)
		s, err := store.GetStore(ctx, testCluster, "orders")
		require.NoError(t, err)
		v := s.VersionByNumber(last.Number)
		v.Status = model.VersionStatusOnline
		require.NoError(t, store.UpdateStore(ctx, testCluster, s))
	}

	s, err := store.GetStore(ctx, testCluster, "orders")
	require.NoError(t, err)
	s.CurrentVersion = s.Versions[0].Number
	require.NoError(t, store.UpdateStore(ctx, testCluster, s))

	require.NoError(t, e.RetireOldStoreVersions(ctx, testCluster, "orders"))

	s, err = store.GetStore(ctx, testCluster, "orders")
	require.NoError(t, err)
	// minToPreserve defaults to 2 most-recent ONLINE, plus currentVersion.
	assert.LessOrEqual(t, len(s.Versions), 3)
	assert.NotNil(t, s.VersionByNumber(s.CurrentVersion))
}
