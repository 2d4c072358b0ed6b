package lifecycle

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veniceio/venice-controller/internal/model"
	"github.com/veniceio/venice-controller/internal/verrors"
)

// These tests each exercise one of spec.md §8's concrete end-to-end
// scenarios against the full Engine (metadata store, schema registry,
// topic manager, coordinator together), rather than a single package in
// isolation.

func TestScenario_HappyPushGoesLiveAsCurrentVersion(t *testing.T) {
	e, store, _, topics := newTestEngine()
	ctx := context.Background()

	_, err := e.CreateStore(ctx, testCluster, "widgets", "team-widgets", `"string"`, `"string"`)
	require.NoError(t, err)

	version, err := e.AddVersion(ctx, testCluster, "widgets", "push-1", model.UnsetVersionNumber, 4, 3, true, true)
	require.NoError(t, err)
	assert.Equal(t, 1, version.Number)
	assert.Equal(t, model.VersionStatusStarted, version.Status)

	topicName := model.VersionTopicName("widgets", 1)
	exists, err := topics.ContainsTopic(ctx, topicName)
	require.NoError(t, err)
	assert.True(t, exists, "version topic should have been created")

	updated, err := e.UpdateStore(ctx, testCluster, "widgets", UpdateStoreOptions{
		CurrentVersion: intPtr(1),
	})
	require.NoError(t, err)
	assert.Equal(t, 1, updated.CurrentVersion)

	persisted, err := store.GetStore(ctx, testCluster, "widgets")
	require.NoError(t, err)
	assert.Equal(t, 1, persisted.CurrentVersion)
}

func TestScenario_CannotDeleteStoreWithReadsOrWritesEnabled(t *testing.T) {
	e, _, _, _ := newTestEngine()
	ctx := context.Background()

	_, err := e.CreateStore(ctx, testCluster, "widgets", "team-widgets", `"string"`, `"string"`)
	require.NoError(t, err)

	err = e.DeleteStore(ctx, testCluster, "widgets", model.IgnoreVersion)
	require.Error(t, err)
	assert.Equal(t, verrors.KindConflict, verrors.KindOf(err))

	_, err = e.UpdateStore(ctx, testCluster, "widgets", UpdateStoreOptions{
		EnableReads:  boolPtr(false),
		EnableWrites: boolPtr(false),
	})
	require.NoError(t, err)

	require.NoError(t, e.DeleteStore(ctx, testCluster, "widgets", model.IgnoreVersion))
}

func TestScenario_IncompatibleValueSchemaIsRejected(t *testing.T) {
	e, _, _, _ := newTestEngine()
	ctx := context.Background()

	recordV1 := `{"type":"record","name":"V","fields":[{"name":"a","type":"string"}]}`
	_, err := e.CreateStore(ctx, testCluster, "widgets", "team-widgets", `"string"`, recordV1)
	require.NoError(t, err)

	// Dropping a field with no default breaks backward compatibility: old
	// readers built against recordV1 can't satisfy a field the writer no
	// longer supplies in the reverse direction, and the checker's
	// CheckBackward(new, old) also rejects removing a required field.
	recordV2Incompatible := `{"type":"record","name":"V","fields":[{"name":"b","type":"string"}]}`
	_, err = e.schemas.AddValueSchema(ctx, testCluster, "widgets", recordV2Incompatible)
	require.Error(t, err)
	assert.Equal(t, verrors.KindConflict, verrors.KindOf(err))

	recordV2Compatible := `{"type":"record","name":"V","fields":[{"name":"a","type":"string"},{"name":"b","type":"string","default":""}]}`
	id, err := e.schemas.AddValueSchema(ctx, testCluster, "widgets", recordV2Compatible)
	require.NoError(t, err)
	assert.Equal(t, 2, id)
}

func TestScenario_MigrationClonesStoreAndFlipsMigratingFlags(t *testing.T) {
	e, store, _, _ := newTestEngine()
	ctx := context.Background()

	e.cfg.Clusters["cluster1"] = e.cfg.Clusters[testCluster]

	_, err := e.CreateStore(ctx, testCluster, "widgets", "team-widgets", `"string"`, `"string"`)
	require.NoError(t, err)
	_, err = e.AddVersion(ctx, testCluster, "widgets", "push-1", model.UnsetVersionNumber, 4, 3, false, false)
	require.NoError(t, err)

	require.NoError(t, e.MigrateStore(ctx, testCluster, "cluster1", "widgets"))

	src, err := store.GetStore(ctx, testCluster, "widgets")
	require.NoError(t, err)
	assert.True(t, src.Migrating)

	dest, err := store.GetStore(ctx, "cluster1", "widgets")
	require.NoError(t, err)
	assert.True(t, dest.Migrating)
	assert.Equal(t, model.NonExistingVersion, dest.CurrentVersion)
	assert.Empty(t, dest.Versions)

	cfg, err := store.GetStoreConfig(ctx, "widgets")
	require.NoError(t, err)
	assert.Equal(t, testCluster, cfg.Cluster, "discovery stays at source until the migration monitor flips it")
	assert.Equal(t, "cluster1", cfg.MigrationDest)
}

func TestScenario_DeletedStoreCanBeRecreatedOnlyAfterCleanup(t *testing.T) {
	e, _, _, _ := newTestEngine()
	ctx := context.Background()

	_, err := e.CreateStore(ctx, testCluster, "widgets", "team-widgets", `"string"`, `"string"`)
	require.NoError(t, err)
	v, err := e.AddVersion(ctx, testCluster, "widgets", "push-1", model.UnsetVersionNumber, 4, 3, false, false)
	require.NoError(t, err)

	_, err = e.UpdateStore(ctx, testCluster, "widgets", UpdateStoreOptions{CurrentVersion: intPtr(v.Number)})
	require.NoError(t, err)

	// deleteStoreLocked (and so CreateStore's legacy-cleanup path) refuses
	// to tear down a store with reads or writes still enabled.
	_, err = e.UpdateStore(ctx, testCluster, "widgets", UpdateStoreOptions{
		EnableReads:  boolPtr(false),
		EnableWrites: boolPtr(false),
	})
	require.NoError(t, err)

	// CreateStore's own legacy-cleanup path deletes-then-recreates a store
	// that never finished tearing down, so a second CreateStore call
	// succeeds even without an explicit DeleteStore first.
	recreated, err := e.CreateStore(ctx, testCluster, "widgets", "team-widgets-2", `"string"`, `"string"`)
	require.NoError(t, err)
	assert.Equal(t, "team-widgets-2", recreated.Owner)
	assert.Equal(t, model.NonExistingVersion, recreated.CurrentVersion)
	assert.Equal(t, v.Number, recreated.LargestUsedVersionNumber, "graveyard floor carries forward across the implicit recreate")

	require.NoError(t, e.CheckResourceCleanupBeforeStoreCreation(ctx, testCluster, "does-not-exist", true))
}

func TestScenario_RouterCacheRejectedForHybridStore(t *testing.T) {
	e, _, _, _ := newTestEngine()
	ctx := context.Background()

	_, err := e.CreateStore(ctx, testCluster, "widgets", "team-widgets", `"string"`, `"string"`)
	require.NoError(t, err)

	_, err = e.UpdateStore(ctx, testCluster, "widgets", UpdateStoreOptions{
		HybridRewindSeconds:      int64Ptr(86400),
		HybridOffsetLagThreshold: int64Ptr(1000),
	})
	require.NoError(t, err)

	_, err = e.UpdateStore(ctx, testCluster, "widgets", UpdateStoreOptions{
		RouterCacheSingleGet: boolPtr(true),
	})
	require.Error(t, err)
	assert.Equal(t, verrors.KindConflict, verrors.KindOf(err))
}

func intPtr(i int) *int       { return &i }
func boolPtr(b bool) *bool    { return &b }
func int64Ptr(i int64) *int64 { return &i }
