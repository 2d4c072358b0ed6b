package rescoord

import (
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"sort"
	"sync"
)

// PartitionPlanner assigns resource partitions to live instances using
// consistent hashing, adapted from the teacher's ConsistentHasher
// (coordinator/internal/algorithm/consistent_hash.go). The teacher's
// VirtualNode return type (keyed to its own sharded-database domain) is
// dropped in favor of plain instance-ID strings, since spec.md's
// partition-to-replica mapping has no notion of shard keys.
type PartitionPlanner struct {
	mu         sync.RWMutex
	ring       []uint64
	ringMap    map[uint64]string
	nodeVNodes map[string][]uint64
	vnodeCount int
}

// NewPartitionPlanner creates a planner with vnodeCount virtual nodes per
// instance, trading ring-balance quality for rebalance cost the same way
// the teacher's hasher does.
func NewPartitionPlanner(vnodeCount int) *PartitionPlanner {
	if vnodeCount <= 0 {
		vnodeCount = 64
	}
	return &PartitionPlanner{
		ring:       make([]uint64, 0),
		ringMap:    make(map[uint64]string),
		nodeVNodes: make(map[string][]uint64),
		vnodeCount: vnodeCount,
	}
}

// AddInstance adds a live instance to the ring.
func (p *PartitionPlanner) AddInstance(instanceID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if _, exists := p.nodeVNodes[instanceID]; exists {
		return
	}

	vnodeHashes := make([]uint64, 0, p.vnodeCount)
	for i := 0; i < p.vnodeCount; i++ {
		vnodeID := fmt.Sprintf("%s-vnode-%d", instanceID, i)
		hash := p.hash(vnodeID)
		p.ring = append(p.ring, hash)
		p.ringMap[hash] = instanceID
		vnodeHashes = append(vnodeHashes, hash)
	}
	p.nodeVNodes[instanceID] = vnodeHashes
	sort.Slice(p.ring, func(i, j int) bool { return p.ring[i] < p.ring[j] })
}

// RemoveInstance drops an instance and its virtual nodes from the ring.
func (p *PartitionPlanner) RemoveInstance(instanceID string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	vnodeHashes, exists := p.nodeVNodes[instanceID]
	if !exists {
		return
	}
	hashSet := make(map[uint64]bool, len(vnodeHashes))
	for _, h := range vnodeHashes {
		hashSet[h] = true
		delete(p.ringMap, h)
	}
	newRing := make([]uint64, 0, len(p.ring)-len(vnodeHashes))
	for _, h := range p.ring {
		if !hashSet[h] {
			newRing = append(newRing, h)
		}
	}
	p.ring = newRing
	delete(p.nodeVNodes, instanceID)
}

// InstancesFor returns up to count distinct instances for partition
// identified by partitionKey, walking the ring clockwise from the key's
// hash the way the teacher's GetNodes does.
func (p *PartitionPlanner) InstancesFor(partitionKey string, count int) []string {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if len(p.ring) == 0 {
		return nil
	}
	keyHash := p.hash(partitionKey)
	idx := sort.Search(len(p.ring), func(i int) bool { return p.ring[i] >= keyHash })
	if idx >= len(p.ring) {
		idx = 0
	}

	instances := make([]string, 0, count)
	seen := make(map[string]bool)
	for i := 0; i < len(p.ring) && len(instances) < count; i++ {
		hash := p.ring[(idx+i)%len(p.ring)]
		instanceID := p.ringMap[hash]
		if !seen[instanceID] {
			instances = append(instances, instanceID)
			seen[instanceID] = true
		}
	}
	return instances
}

// InstanceCount returns the number of distinct physical instances on the
// ring.
func (p *PartitionPlanner) InstanceCount() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.nodeVNodes)
}

func (p *PartitionPlanner) hash(key string) uint64 {
	h := sha256.Sum256([]byte(key))
	return binary.BigEndian.Uint64(h[:8])
}

// QuorumCalculator computes replica thresholds, adopted unchanged in
// spirit from coordinator/internal/algorithm/quorum.go; Venice has no
// tunable per-request consistency level, so only the majority-quorum and
// minActiveReplicas shapes survive (spec.md §4.2's minActiveReplicas).
type QuorumCalculator struct{}

func NewQuorumCalculator() *QuorumCalculator { return &QuorumCalculator{} }

// Majority returns the number of replicas required for a majority quorum.
func (q *QuorumCalculator) Majority(totalReplicas int) int {
	return (totalReplicas / 2) + 1
}

// MeetsMinActiveReplicas reports whether onlineCount satisfies the
// cluster's configured minActiveReplicas floor.
func (q *QuorumCalculator) MeetsMinActiveReplicas(onlineCount, minActiveReplicas int) bool {
	return onlineCount >= minActiveReplicas
}
