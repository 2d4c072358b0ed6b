package rescoord

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/veniceio/venice-controller/internal/model"
	"github.com/veniceio/venice-controller/internal/verrors"
)

func newTestCoordinator() *Coordinator {
	planner := NewPartitionPlanner(16)
	planner.AddInstance("instance-a")
	planner.AddInstance("instance-b")
	planner.AddInstance("instance-c")
	return NewCoordinator(planner, nil, zap.NewNop())
}

func TestCoordinator_AddResourceAssignsAllPartitionsOffline(t *testing.T) {
	ctx := context.Background()
	c := newTestCoordinator()

	res, err := c.AddResource(ctx, "cluster0", "widgets_v1", 4, 2)
	require.NoError(t, err)
	assert.Len(t, res.Partitions, 4)
	for _, assignment := range res.Partitions {
		assert.Len(t, assignment, 2)
		for _, state := range assignment {
			assert.Equal(t, model.ReplicaOffline, state)
		}
	}
}

func TestCoordinator_AddResourceRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	c := newTestCoordinator()
	_, err := c.AddResource(ctx, "cluster0", "widgets_v1", 2, 2)
	require.NoError(t, err)

	_, err = c.AddResource(ctx, "cluster0", "widgets_v1", 2, 2)
	assert.True(t, verrors.Is(err, verrors.KindAlreadyExists))
}

func TestCoordinator_WaitForAssignmentReturnsAssignedNotOnline(t *testing.T) {
	ctx := context.Background()
	c := newTestCoordinator()
	res, err := c.AddResource(ctx, "cluster0", "widgets_v1", 1, 2)
	require.NoError(t, err)

	// assignLocked placed 2 replicas per partition, all OFFLINE; waiting
	// for 2 assigned replicas succeeds without any EnablePartition call,
	// since waitForAssignment tracks assignment, not bootstrap readiness
	// (spec.md §4.2).
	for _, state := range res.Partitions[0] {
		assert.Equal(t, model.ReplicaOffline, state)
	}
	require.NoError(t, c.WaitForAssignment(ctx, "widgets_v1", 2))
}

func TestCoordinator_WaitForAssignmentTimesOutWhenUnderReplicated(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	c := newTestCoordinator()
	_, err := c.AddResource(ctx, "cluster0", "widgets_v1", 1, 2)
	require.NoError(t, err)

	err = c.WaitForAssignment(ctx, "widgets_v1", 3)
	require.Error(t, err)
	assert.True(t, verrors.Is(err, verrors.KindCoordinatorUnavailable))
}

func TestCoordinator_EnablePartitionTransitionsReplicaState(t *testing.T) {
	ctx := context.Background()
	c := newTestCoordinator()
	res, err := c.AddResource(ctx, "cluster0", "widgets_v1", 1, 2)
	require.NoError(t, err)

	var instance string
	for i := range res.Partitions[0] {
		instance = i
		break
	}

	require.NoError(t, c.EnablePartition(ctx, "widgets_v1", 0, instance, true))
	view, err := c.ReadExternalView(ctx, "widgets_v1")
	require.NoError(t, err)
	assert.Equal(t, model.ReplicaOnline, view.Partitions[0][instance])
}

func TestCoordinator_DropResourceRemovesFromExternalView(t *testing.T) {
	ctx := context.Background()
	c := newTestCoordinator()
	_, err := c.AddResource(ctx, "cluster0", "widgets_v1", 1, 1)
	require.NoError(t, err)

	require.NoError(t, c.DropResource(ctx, "widgets_v1"))

	_, err = c.ReadExternalView(ctx, "widgets_v1")
	assert.True(t, verrors.Is(err, verrors.KindNotFound))
}
