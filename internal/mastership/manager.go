package mastership

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Manager owns one Controller per managed cluster and retains the last
// observed start/stop error per cluster for diagnostics (spec.md §4.4:
// "Last observed exception per cluster is retained for diagnostics").
type Manager struct {
	mu           sync.RWMutex
	connString   string
	joinTimeout  time.Duration
	pollInterval time.Duration
	logger       *zap.Logger
	controllers  map[string]*Controller
	lastErr      map[string]error
}

func NewManager(connString string, joinTimeout, pollInterval time.Duration, logger *zap.Logger) *Manager {
	return &Manager{
		connString:   connString,
		joinTimeout:  joinTimeout,
		pollInterval: pollInterval,
		logger:       logger,
		controllers:  make(map[string]*Controller),
		lastErr:      make(map[string]error),
	}
}

// Start begins the mastership bid for cluster, creating its Controller on
// first use. Blocks per Controller.Start's contract.
func (m *Manager) Start(ctx context.Context, cluster string) error {
	m.mu.Lock()
	c, ok := m.controllers[cluster]
	if !ok {
		c = NewController(m.connString, cluster, m.joinTimeout, m.pollInterval, m.logger)
		m.controllers[cluster] = c
	}
	m.mu.Unlock()

	err := c.Start(ctx)
	m.mu.Lock()
	m.lastErr[cluster] = err
	m.mu.Unlock()
	return err
}

// Stop releases mastership of cluster, if held.
func (m *Manager) Stop(ctx context.Context, cluster string) error {
	m.mu.RLock()
	c, ok := m.controllers[cluster]
	m.mu.RUnlock()
	if !ok {
		return nil
	}
	err := c.Stop(ctx)
	m.mu.Lock()
	m.lastErr[cluster] = err
	m.mu.Unlock()
	return err
}

// IsLeader reports whether this process currently leads cluster. A
// cluster with no registered Controller has never had a Start attempt and
// is reported as not-led.
func (m *Manager) IsLeader(cluster string) bool {
	m.mu.RLock()
	c, ok := m.controllers[cluster]
	m.mu.RUnlock()
	if !ok {
		return false
	}
	return c.IsLeader()
}

// LastError returns the most recent Start/Stop error observed for
// cluster, or nil if none or the cluster is unknown.
func (m *Manager) LastError(cluster string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.lastErr[cluster]
}

// StopAll releases mastership of every cluster this manager has ever
// started, used on process shutdown.
func (m *Manager) StopAll(ctx context.Context) {
	m.mu.RLock()
	clusters := make([]string, 0, len(m.controllers))
	for cluster := range m.controllers {
		clusters = append(clusters, cluster)
	}
	m.mu.RUnlock()

	for _, cluster := range clusters {
		if err := m.Stop(ctx, cluster); err != nil {
			m.logger.Warn("error releasing mastership on shutdown", zap.String("cluster", cluster), zap.Error(err))
		}
	}
}
