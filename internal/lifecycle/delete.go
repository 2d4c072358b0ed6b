package lifecycle

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/veniceio/venice-controller/internal/metadatastore"
	"github.com/veniceio/venice-controller/internal/model"
	"github.com/veniceio/venice-controller/internal/verrors"
)

// DeleteStore implements spec.md §4.5.7.
func (e *Engine) DeleteStore(ctx context.Context, cluster, storeName string, largestUsedVersionOverride int) error {
	if err := e.requireLeader(cluster, "DeleteStore"); err != nil {
		return err
	}
	cl := e.locks.cluster(cluster)
	cl.Lock()
	defer cl.Unlock()

	sl := e.locks.store(cluster, storeName)
	sl.Lock()
	defer sl.Unlock()

	return e.deleteStoreLocked(ctx, cluster, storeName, largestUsedVersionOverride)
}

// deleteStoreLocked assumes the caller already holds both the cluster and
// store locks (DeleteStore itself, or CreateStore's legacy-cleanup path).
func (e *Engine) deleteStoreLocked(ctx context.Context, cluster, storeName string, largestUsedVersionOverride int) error {
	store, err := e.store.GetStore(ctx, cluster, storeName)
	if err != nil {
		if err == metadatastore.ErrNotFound {
			return verrors.New(verrors.KindNotFound, "DeleteStore", "store not found: "+storeName)
		}
		return fmt.Errorf("load store: %w", err)
	}

	if store.EnableReads || store.EnableWrites {
		return verrors.New(verrors.KindConflict, "DeleteStore", "store must have reads and writes disabled before deletion")
	}
	if largestUsedVersionOverride != model.IgnoreVersion && largestUsedVersionOverride < store.LargestUsedVersionNumber {
		return verrors.New(verrors.KindFatal, "DeleteStore", "largestUsedVersionNumber must not regress")
	}

	cfg, err := e.store.GetStoreConfig(ctx, storeName)
	deleting := false
	if err == nil && cfg != nil {
		// Migration leaves discovery pointed at a different cluster; in
		// that case we must not mark deleting, else an in-flight client
		// resolving the store would be told it no longer exists.
		if cfg.Cluster == cluster {
			cfg.Deleting = true
			deleting = true
			if err := e.store.PutStoreConfig(ctx, cfg); err != nil {
				return fmt.Errorf("mark store config deleting: %w", err)
			}
		}
	} else if err != nil && err != metadatastore.ErrNotFound {
		return fmt.Errorf("load store config: %w", err)
	}

	for _, v := range append([]*model.Version(nil), store.Versions...) {
		if err := e.deleteOneStoreVersionStoreLocked(ctx, cluster, storeName, v.Number); err != nil {
			return fmt.Errorf("delete version %d: %w", v.Number, err)
		}
	}

	if store.IsHybrid() {
		if err := e.topics.UpdateRetention(ctx, model.RealTimeTopicName(storeName), e.cfg.Topics.DeprecatedRetentionMs); err != nil && verrors.KindOf(err) != verrors.KindNotFound {
			return fmt.Errorf("truncate real-time topic: %w", err)
		}
	}

	largestUsed := store.LargestUsedVersionNumber
	if largestUsedVersionOverride != model.IgnoreVersion {
		largestUsed = largestUsedVersionOverride
	}
	if err := e.store.PutGraveyardEntry(ctx, cluster, &model.GraveyardEntry{StoreName: storeName, LargestUsedVersionNumber: largestUsed}); err != nil {
		return fmt.Errorf("persist graveyard entry: %w", err)
	}

	if err := e.store.DeleteStore(ctx, cluster, storeName); err != nil {
		return fmt.Errorf("remove store: %w", err)
	}
	if deleting {
		if err := e.store.DeleteStoreConfig(ctx, storeName); err != nil {
			return fmt.Errorf("remove store config: %w", err)
		}
	}
	if e.discoveryR != nil {
		e.discoveryR.Invalidate(ctx, storeName)
	}

	e.logger.Info("store deleted", zap.String("cluster", cluster), zap.String("store", storeName),
		zap.Int("largest_used_version", largestUsed))
	return nil
}

// CheckResourceCleanupBeforeStoreCreation implements spec.md §4.5.11.
// Version topics are deliberately ignored (spec.md §9 Open Question (a)):
// they may lag behind a deletion and are not evidence the store still
// exists.
func (e *Engine) CheckResourceCleanupBeforeStoreCreation(ctx context.Context, cluster, storeName string, includeHelix bool) error {
	if cfg, err := e.store.GetStoreConfig(ctx, storeName); err == nil && cfg != nil {
		return verrors.New(verrors.KindConflict, "CheckResourceCleanupBeforeStoreCreation", "store config still present for "+storeName)
	} else if err != nil && err != metadatastore.ErrNotFound {
		return fmt.Errorf("check store config: %w", err)
	}

	if _, err := e.store.GetStore(ctx, cluster, storeName); err == nil {
		return verrors.New(verrors.KindConflict, "CheckResourceCleanupBeforeStoreCreation", "live store still present for "+storeName)
	} else if err != metadatastore.ErrNotFound {
		return fmt.Errorf("check store: %w", err)
	}

	topics, err := e.topics.ListTopics(ctx)
	if err != nil {
		return fmt.Errorf("list topics: %w", err)
	}
	rt := model.RealTimeTopicName(storeName)
	if _, exists := topics[rt]; exists {
		return verrors.New(verrors.KindConflict, "CheckResourceCleanupBeforeStoreCreation", "real-time topic still present: "+rt)
	}
	systemRT := model.ReservedSystemStorePrefix + rt
	if _, exists := topics[systemRT]; exists {
		return verrors.New(verrors.KindConflict, "CheckResourceCleanupBeforeStoreCreation", "system-store real-time topic still present: "+systemRT)
	}

	if includeHelix && e.coordinator.ResourceExistsForStore(storeName) {
		return verrors.New(verrors.KindConflict, "CheckResourceCleanupBeforeStoreCreation", "coordinator resource still present for "+storeName)
	}

	return nil
}
