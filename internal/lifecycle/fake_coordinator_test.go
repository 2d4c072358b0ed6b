package lifecycle

import (
	"context"
	"strings"
	"sync"

	"github.com/veniceio/venice-controller/internal/model"
	"github.com/veniceio/venice-controller/internal/verrors"
)

// fakeCoordinator is an in-memory ResourceCoordinator for lifecycle tests,
// mirroring rescoord.Coordinator's AddResource/WaitForAssignment contract
// without real gossip membership. WaitForAssignment is a hard no-op here;
// every resource is fully assigned (every partition gets replicationFactor
// instances) the moment AddResource returns, same as the real Coordinator.
type fakeCoordinator struct {
	mu        sync.Mutex
	resources map[string]*model.Resource
	messages  [][]byte
}

func newFakeCoordinator() *fakeCoordinator {
	return &fakeCoordinator{resources: make(map[string]*model.Resource)}
}

func (f *fakeCoordinator) AddResource(ctx context.Context, cluster, name string, partitionCount, replicationFactor int) (*model.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.resources[name]; exists {
		return nil, verrors.New(verrors.KindAlreadyExists, "AddResource", "exists")
	}
	res := &model.Resource{
		Name: name, Cluster: cluster, PartitionCount: partitionCount, ReplicationFactor: replicationFactor,
		Partitions: make(map[int]model.PartitionAssignment),
	}
	for p := 0; p < partitionCount; p++ {
		assignment := make(model.PartitionAssignment)
		for r := 0; r < replicationFactor; r++ {
			assignment[instanceName(r)] = model.ReplicaOnline
		}
		res.Partitions[p] = assignment
	}
	f.resources[name] = res
	return res, nil
}

func instanceName(i int) string {
	return "instance-" + string(rune('a'+i))
}

func (f *fakeCoordinator) DropResource(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.resources[name]; !exists {
		return verrors.New(verrors.KindNotFound, "DropResource", "not found")
	}
	delete(f.resources, name)
	return nil
}

func (f *fakeCoordinator) EnablePartition(ctx context.Context, resourceName string, partition int, instanceID string, online bool) error {
	return nil
}

func (f *fakeCoordinator) ReadExternalView(ctx context.Context, resourceName string) (*model.Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	res, exists := f.resources[resourceName]
	if !exists {
		return nil, verrors.New(verrors.KindNotFound, "ReadExternalView", "not found")
	}
	return res, nil
}

func (f *fakeCoordinator) WaitForAssignment(ctx context.Context, resourceName string, replicationFactor int) error {
	return nil
}

func (f *fakeCoordinator) SendMessageToParticipants(payload []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages = append(f.messages, payload)
}

func (f *fakeCoordinator) LiveInstances() []string {
	return []string{"instance-a", "instance-b", "instance-c"}
}

func (f *fakeCoordinator) ResourceExistsForStore(storeName string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	prefix := storeName + "_v"
	for name := range f.resources {
		if strings.HasPrefix(name, prefix) {
			return true
		}
	}
	return false
}
