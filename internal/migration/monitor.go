// Package migration implements the Store Migration Monitor (spec.md §4.5.8,
// §5): a background loop polling every 10 seconds for in-flight
// cross-cluster store migrations, flipping discovery to the destination
// cluster once its push has caught up to the source. Grounded on the
// teacher's cleanup_service.go goroutine+ticker+stop-channel shape and
// migration_service.go's "swallow all exceptions per iteration, keep
// looping" resilience pattern (spec.md §7: "The Store Migration Monitor
// swallows all exceptions per iteration and re-enters the loop").
package migration

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/veniceio/venice-controller/internal/discovery"
	"github.com/veniceio/venice-controller/internal/metadatastore"
	"github.com/veniceio/venice-controller/internal/model"
)

const tickInterval = 10 * time.Second

// LeaderChecker is the subset of *mastership.Manager the monitor needs,
// narrowed to an interface so tests can fake leadership without a real
// Postgres advisory-lock connection.
type LeaderChecker interface {
	IsLeader(cluster string) bool
}

// Monitor watches every in-flight migration this process's metadata store
// knows about and completes those whose destination has caught up.
type Monitor struct {
	store     metadatastore.MetadataStore
	leaders   LeaderChecker
	discovery *discovery.Resolver
	logger    *zap.Logger
}

func NewMonitor(store metadatastore.MetadataStore, leaders LeaderChecker, discoveryR *discovery.Resolver, logger *zap.Logger) *Monitor {
	return &Monitor{store: store, leaders: leaders, discovery: discoveryR, logger: logger}
}

// Run blocks, ticking every 10 seconds until ctx is cancelled, draining the
// current iteration before returning (spec.md §5's cancellable-worker
// shutdown contract).
func (m *Monitor) Run(ctx context.Context) {
	ticker := time.NewTicker(tickInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.tick(ctx)
		}
	}
}

// tick scans every migrating StoreConfig and completes the ones ready to
// flip. A single store's failure never aborts the tick for the rest.
func (m *Monitor) tick(ctx context.Context) {
	configs, err := m.store.ListMigratingStoreConfigs(ctx)
	if err != nil {
		m.logger.Warn("migration monitor: failed to list migrating stores", zap.Error(err))
		return
	}

	for _, cfg := range configs {
		if err := m.checkOne(ctx, cfg); err != nil {
			m.logger.Warn("migration monitor: iteration failed for store",
				zap.String("store", cfg.StoreName), zap.Error(err))
		}
	}
}

// checkOne implements spec.md §4.5.8's completion predicate: once dest has
// an ONLINE version number >= the latest ONLINE version on src, atomically
// flip StoreConfig.cluster to dest. Only the leader of dest acts, since
// that is the node authorized to mutate dest's state.
func (m *Monitor) checkOne(ctx context.Context, cfg *model.StoreConfig) error {
	if m.leaders != nil && !m.leaders.IsLeader(cfg.MigrationDest) {
		return nil
	}

	src, err := m.store.GetStore(ctx, cfg.MigrationSrc, cfg.StoreName)
	if err != nil {
		return err
	}
	dest, err := m.store.GetStore(ctx, cfg.MigrationDest, cfg.StoreName)
	if err != nil {
		return err
	}

	srcLatestOnline := latestOnlineVersion(src)
	destLatestOnline := latestOnlineVersion(dest)
	if destLatestOnline == 0 || destLatestOnline < srcLatestOnline {
		return nil // not caught up yet
	}

	cfg.Cluster = cfg.MigrationDest
	if err := m.store.PutStoreConfig(ctx, cfg); err != nil {
		return err
	}
	if m.discovery != nil {
		m.discovery.Invalidate(ctx, cfg.StoreName)
	}

	m.logger.Info("migration completed, discovery flipped to destination",
		zap.String("store", cfg.StoreName), zap.String("dest", cfg.MigrationDest))
	return nil
}

func latestOnlineVersion(store *model.Store) int {
	max := 0
	for _, v := range store.Versions {
		if v.Status == model.VersionStatusOnline && v.Number > max {
			max = v.Number
		}
	}
	return max
}
