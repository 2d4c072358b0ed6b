package rescoord

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/veniceio/venice-controller/internal/model"
	"github.com/veniceio/venice-controller/internal/verrors"
)

// Coordinator is the Resource Coordinator adapter's public surface
// (spec.md §4.2): addResource, dropResource, enablePartition,
// readExternalView, waitForAssignment, and sendMessageToParticipants.
// It composes Membership (liveInstances/broadcast) and PartitionPlanner
// (assignment) over an in-memory resource registry — the closest the
// example corpus gets to a cluster-manager external view, since nothing
// in the pack embeds an actual Helix/Zookeeper client.
type Coordinator struct {
	mu        sync.RWMutex
	resources map[string]*model.Resource // resource name -> view
	planner   *PartitionPlanner
	members   *Membership
	logger    *zap.Logger
}

func NewCoordinator(planner *PartitionPlanner, members *Membership, logger *zap.Logger) *Coordinator {
	return &Coordinator{
		resources: make(map[string]*model.Resource),
		planner:   planner,
		members:   members,
		logger:    logger,
	}
}

// AddResource registers a new resource (a store-version) and assigns its
// partitions across live instances immediately, per spec.md §4.2.
func (c *Coordinator) AddResource(ctx context.Context, cluster, name string, partitionCount, replicationFactor int) (*model.Resource, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.resources[name]; exists {
		return nil, verrors.New(verrors.KindAlreadyExists, "AddResource", "resource already exists: "+name)
	}

	res := &model.Resource{
		Name:              name,
		Cluster:           cluster,
		PartitionCount:    partitionCount,
		ReplicationFactor: replicationFactor,
		Partitions:        make(map[int]model.PartitionAssignment),
	}
	c.assignLocked(res)
	c.resources[name] = res
	c.logger.Info("resource added", zap.String("resource", name), zap.Int("partitions", partitionCount))
	return res.Clone(), nil
}

// DropResource removes a resource from the external view entirely,
// spec.md §4.5's terminal step of store-version deletion.
func (c *Coordinator) DropResource(ctx context.Context, name string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.resources[name]; !exists {
		return verrors.New(verrors.KindNotFound, "DropResource", "resource not found: "+name)
	}
	delete(c.resources, name)
	c.logger.Info("resource dropped", zap.String("resource", name))
	return nil
}

// ResourceExistsForStore reports whether any resource named after a
// version of storeName ("storeName_vN") is still registered, used by
// checkResourceCleanupBeforeStoreCreation (spec.md §4.5.11) since there is
// no prefix index on the resource map.
func (c *Coordinator) ResourceExistsForStore(storeName string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	prefix := storeName + "_v"
	for name := range c.resources {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}

// EnablePartition transitions a single partition/instance replica between
// ONLINE and OFFLINE, used when the cluster manager reports a storage
// node has finished bootstrapping a partition.
func (c *Coordinator) EnablePartition(ctx context.Context, resourceName string, partition int, instanceID string, online bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, exists := c.resources[resourceName]
	if !exists {
		return verrors.New(verrors.KindNotFound, "EnablePartition", "resource not found: "+resourceName)
	}
	assignment, exists := res.Partitions[partition]
	if !exists {
		return verrors.New(verrors.KindNotFound, "EnablePartition", "partition not found")
	}
	if _, exists := assignment[instanceID]; !exists {
		return verrors.New(verrors.KindNotFound, "EnablePartition", "instance not assigned to partition")
	}
	if online {
		assignment[instanceID] = model.ReplicaOnline
	} else {
		assignment[instanceID] = model.ReplicaOffline
	}
	return nil
}

// ReadExternalView returns the current partition/replica state for a
// resource, spec.md §4.2's readExternalView.
func (c *Coordinator) ReadExternalView(ctx context.Context, resourceName string) (*model.Resource, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	res, exists := c.resources[resourceName]
	if !exists {
		return nil, verrors.New(verrors.KindNotFound, "ReadExternalView", "resource not found: "+resourceName)
	}
	return res.Clone(), nil
}

// WaitForAssignment blocks until resourceName has at least
// replicationFactor replicas assigned to every partition, or ctx is done
// (spec.md §4.2: "blocking until at least replicationFactor replicas are
// assigned"). Assignment, not readiness, is what it waits for — planner
// placement happens synchronously in AddResource, so in practice this
// returns as soon as the external view for resourceName is readable.
// Whether those replicas have finished bootstrapping and gone ONLINE is a
// separate concern the cluster manager reports back via EnablePartition.
func (c *Coordinator) WaitForAssignment(ctx context.Context, resourceName string, replicationFactor int) error {
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	for {
		res, err := c.ReadExternalView(ctx, resourceName)
		if err != nil {
			return err
		}
		if assignedReplicaCount(res) >= replicationFactor {
			return nil
		}
		select {
		case <-ctx.Done():
			return verrors.Wrap(verrors.KindCoordinatorUnavailable, "WaitForAssignment", ctx.Err())
		case <-ticker.C:
		}
	}
}

// assignedReplicaCount returns the minimum number of replicas assigned to
// any single partition of res, regardless of ONLINE/OFFLINE state.
func assignedReplicaCount(res *model.Resource) int {
	min := -1
	for _, assignment := range res.Partitions {
		if min == -1 || len(assignment) < min {
			min = len(assignment)
		}
	}
	if min == -1 {
		return 0
	}
	return min
}

// SendMessageToParticipants broadcasts a fire-and-forget payload to all
// live instances via gossip, spec.md §4.2's sendMessageToParticipants.
func (c *Coordinator) SendMessageToParticipants(payload []byte) {
	c.members.Broadcast(payload)
}

// LiveInstances exposes the membership view directly.
func (c *Coordinator) LiveInstances() []string {
	return c.members.LiveInstances()
}

// assignLocked plans partition->instance assignment using the consistent
// hash ring, starting every replica OFFLINE until the cluster manager
// reports it caught up (mirrors the teacher's placement-then-bootstrap
// flow in coordinator's range-assignment services).
func (c *Coordinator) assignLocked(res *model.Resource) {
	for p := 0; p < res.PartitionCount; p++ {
		instances := c.planner.InstancesFor(partitionKeyFor(res.Name, p), res.ReplicationFactor)
		assignment := make(model.PartitionAssignment, len(instances))
		for _, instance := range instances {
			assignment[instance] = model.ReplicaOffline
		}
		res.Partitions[p] = assignment
	}
}

func partitionKeyFor(resourceName string, partition int) string {
	return resourceName + "_" + strconv.Itoa(partition)
}
