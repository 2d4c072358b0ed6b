// Package rescoord is the Resource Coordinator adapter (spec.md §4.2): it
// tracks live cluster-manager instances, plans and records partition
// assignment for each Resource (store-version), and lets the lifecycle
// engine push fire-and-forget messages to participants. No Helix/
// Zookeeper-equivalent library exists anywhere in the example corpus, so
// this package is built from parts the corpus DOES carry: the teacher's
// own hashicorp/memberlist gossip dependency (storage-node's
// gossip_service.go) for liveInstances and broadcast messaging, and the
// teacher's consistent-hash/quorum algorithm utilities
// (coordinator/internal/algorithm/{consistent_hash,quorum}.go) for
// partition planning and replica-count thresholds.
package rescoord

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/hashicorp/memberlist"
	"go.uber.org/zap"
)

// MembershipConfig configures the gossip substrate, generalized from the
// teacher's GossipConfig (storage-node/internal/service/gossip_service.go)
// from a single storage node's liveness broadcast to the controller's
// view of the instances participating in one managed cluster.
type MembershipConfig struct {
	Enabled        bool
	NodeName       string
	BindPort       int
	SeedNodes      []string
	GossipInterval time.Duration
	ProbeTimeout   time.Duration
	ProbeInterval  time.Duration
}

// instanceState is the payload gossiped between participants: which
// resources/partitions an instance currently hosts. It plays the role of
// a storage node's HealthStatus in the teacher's GossipService, but
// carries replica assignment instead of health metrics.
type instanceState struct {
	InstanceID string          `json:"instance_id"`
	Resources  map[string]bool `json:"resources"` // resource name -> hosting
}

// Membership wraps a memberlist.Memberlist to answer "which instances are
// alive" (liveInstances, spec.md §4.2) and to broadcast best-effort
// messages to participants.
type Membership struct {
	mu       sync.RWMutex
	ml       *memberlist.Memberlist
	queue    *memberlist.TransmitLimitedQueue
	state    instanceState
	logger   *zap.Logger
	messages chan []byte
}

// NewMembership creates and joins the gossip cluster, mirroring the
// teacher's NewGossipService constructor (memberlist.DefaultLocalConfig +
// Delegate + Events + Join).
func NewMembership(cfg *MembershipConfig, logger *zap.Logger) (*Membership, error) {
	m := &Membership{
		state:    instanceState{InstanceID: cfg.NodeName, Resources: make(map[string]bool)},
		logger:   logger,
		messages: make(chan []byte, 256),
	}

	mlConfig := memberlist.DefaultLocalConfig()
	mlConfig.Name = cfg.NodeName
	if cfg.BindPort > 0 {
		mlConfig.BindPort = cfg.BindPort
	}
	if cfg.GossipInterval > 0 {
		mlConfig.GossipInterval = cfg.GossipInterval
	}
	if cfg.ProbeTimeout > 0 {
		mlConfig.ProbeTimeout = cfg.ProbeTimeout
	}
	if cfg.ProbeInterval > 0 {
		mlConfig.ProbeInterval = cfg.ProbeInterval
	}
	mlConfig.Delegate = m
	mlConfig.Events = &membershipEvents{membership: m}

	ml, err := memberlist.Create(mlConfig)
	if err != nil {
		return nil, fmt.Errorf("create memberlist: %w", err)
	}
	m.ml = ml
	m.queue = &memberlist.TransmitLimitedQueue{
		NumNodes:       ml.NumMembers,
		RetransmitMult: 3,
	}

	if len(cfg.SeedNodes) > 0 {
		if _, err := ml.Join(cfg.SeedNodes); err != nil {
			logger.Warn("failed to join some seed nodes", zap.Error(err))
		}
	}

	return m, nil
}

// LiveInstances returns the instance IDs currently visible to gossip,
// spec.md §4.2's "live instances" view.
func (m *Membership) LiveInstances() []string {
	members := m.ml.Members()
	instances := make([]string, 0, len(members))
	for _, node := range members {
		instances = append(instances, node.Name)
	}
	return instances
}

// SetHostedResources updates the local instance's gossiped state with the
// set of resources it hosts. Coordinator does not call it, so its
// AddResource and DropResource leave the gossiped set unchanged.
func (m *Membership) SetHostedResources(resources map[string]bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.state.Resources = resources
}

// Broadcast enqueues a fire-and-forget message for gossip transmission to
// all participants (spec.md §4.2 sendMessageToParticipants), mirroring the
// teacher's GetBroadcasts/NotifyMsg delegate pair but driven by an
// explicit queue rather than only piggybacking on ping/ack traffic.
func (m *Membership) Broadcast(payload []byte) {
	if m.queue == nil {
		return
	}
	m.queue.QueueBroadcast(&simpleBroadcast{msg: payload})
}

// Messages returns the channel NotifyMsg delivers received broadcasts on.
func (m *Membership) Messages() <-chan []byte { return m.messages }

func (m *Membership) Shutdown() error {
	if m.ml == nil {
		return nil
	}
	return m.ml.Shutdown()
}

// memberlist.Delegate implementation

func (m *Membership) NodeMeta(limit int) []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, _ := json.Marshal(m.state)
	if len(data) > limit {
		return data[:limit]
	}
	return data
}

func (m *Membership) NotifyMsg(data []byte) {
	select {
	case m.messages <- append([]byte(nil), data...):
	default:
		m.logger.Warn("dropping gossip message, channel full")
	}
}

func (m *Membership) GetBroadcasts(overhead, limit int) [][]byte {
	if m.queue == nil {
		return nil
	}
	return m.queue.GetBroadcasts(overhead, limit)
}

func (m *Membership) LocalState(join bool) []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()
	data, _ := json.Marshal(m.state)
	return data
}

func (m *Membership) MergeRemoteState(buf []byte, join bool) {}

type simpleBroadcast struct{ msg []byte }

func (b *simpleBroadcast) Invalidates(other memberlist.Broadcast) bool { return false }
func (b *simpleBroadcast) Message() []byte                             { return b.msg }
func (b *simpleBroadcast) Finished()                                   {}

type membershipEvents struct {
	membership *Membership
}

func (e *membershipEvents) NotifyJoin(node *memberlist.Node) {
	e.membership.logger.Info("instance joined", zap.String("instance", node.Name), zap.String("addr", node.Addr.String()))
}

func (e *membershipEvents) NotifyLeave(node *memberlist.Node) {
	e.membership.logger.Info("instance left", zap.String("instance", node.Name))
}

func (e *membershipEvents) NotifyUpdate(node *memberlist.Node) {
	e.membership.logger.Debug("instance updated", zap.String("instance", node.Name))
}
