package topicmanager

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veniceio/venice-controller/internal/verrors"
)

func TestFakeManager_CreateAndContainsTopic(t *testing.T) {
	ctx := context.Background()
	fm := NewFakeManager()

	require.NoError(t, fm.CreateTopic(ctx, "widgets_v1", 4, 3, 0))
	exists, err := fm.ContainsTopic(ctx, "widgets_v1")
	require.NoError(t, err)
	assert.True(t, exists)

	err = fm.CreateTopic(ctx, "widgets_v1", 4, 3, 0)
	assert.True(t, verrors.Is(err, verrors.KindAlreadyExists))
}

func TestFakeManager_UpdateRetentionAndThreshold(t *testing.T) {
	ctx := context.Background()
	fm := NewFakeManager()
	require.NoError(t, fm.CreateTopic(ctx, "widgets_rt", 4, 3, 86400000))

	below, err := fm.IsRetentionBelowThreshold(ctx, "widgets_rt", 1000)
	require.NoError(t, err)
	assert.False(t, below)

	require.NoError(t, fm.UpdateRetention(ctx, "widgets_rt", 500))
	below, err = fm.IsRetentionBelowThreshold(ctx, "widgets_rt", 1000)
	require.NoError(t, err)
	assert.True(t, below)
}

func TestFakeManager_DeleteTopic(t *testing.T) {
	ctx := context.Background()
	fm := NewFakeManager()
	require.NoError(t, fm.CreateTopic(ctx, "widgets_v1", 1, 1, 0))
	require.NoError(t, fm.DeleteTopic(ctx, "widgets_v1"))

	_, err := fm.ContainsTopic(ctx, "widgets_v1")
	require.NoError(t, err)

	err = fm.DeleteTopic(ctx, "widgets_v1")
	assert.True(t, verrors.Is(err, verrors.KindNotFound))
}
