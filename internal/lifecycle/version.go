package lifecycle

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/veniceio/venice-controller/internal/metadatastore"
	"github.com/veniceio/venice-controller/internal/model"
	"github.com/veniceio/venice-controller/internal/verrors"
)

// AddVersion implements spec.md §4.5.2.
func (e *Engine) AddVersion(
	ctx context.Context,
	cluster, storeName, pushID string,
	numberHint, partitions, replication int,
	startMonitor, sendSOP bool,
) (*model.Version, error) {
	if err := e.requireLeader(cluster, "AddVersion"); err != nil {
		return nil, err
	}

	cl := e.locks.cluster(cluster)
	cl.Lock()
	defer cl.Unlock()

	sl := e.locks.store(cluster, storeName)
	sl.Lock()

	store, err := e.store.GetStore(ctx, cluster, storeName)
	if err != nil {
		sl.Unlock()
		if err == metadatastore.ErrNotFound {
			return nil, verrors.New(verrors.KindNotFound, "AddVersion", "store not found: "+storeName)
		}
		return nil, fmt.Errorf("load store: %w", err)
	}

	number := numberHint
	if number == model.UnsetVersionNumber {
		number = store.MaxVersionNumber() + 1
	} else if store.VersionByNumber(number) != nil {
		sl.Unlock()
		return nil, verrors.New(verrors.KindAlreadyExists, "AddVersion", fmt.Sprintf("version %d already exists", number))
	}

	if store.PartitionCount == 0 {
		store.PartitionCount = partitions
	}
	if replication <= 0 {
		replication = e.clusterConfig(cluster).DefaultReplicationFactor
	}

	version := &model.Version{
		StoreName:         storeName,
		Number:            number,
		PushJobID:         pushID,
		Status:            model.VersionStatusStarted,
		PartitionCount:    store.PartitionCount,
		ReplicationFactor: replication,
		ResourceName:      model.VersionTopicName(storeName, number),
	}
	store.Versions = append(store.Versions, version)
	if number > store.LargestUsedVersionNumber {
		store.LargestUsedVersionNumber = number
	}

	if err := e.store.UpdateStore(ctx, cluster, store); err != nil {
		sl.Unlock()
		return nil, fmt.Errorf("persist started version: %w", err)
	}
	sl.Unlock()

	// The remaining steps reach into the Topic Manager and Resource
	// Coordinator; spec.md §5 intentionally holds the metadata write lock
	// (cl) across them so "add version" appears atomic to other admins,
	// but releases the finer store lock (sl) first since those adapters
	// don't touch Store fields directly.
	topicName := model.VersionTopicName(storeName, number)
	if err := e.topics.CreateTopic(ctx, topicName, int32(store.PartitionCount), int16(replication), 0); err != nil {
		return nil, e.handleVersionCreationFailure(ctx, cluster, storeName, number, "create version topic", err)
	}

	if sendSOP {
		e.coordinator.SendMessageToParticipants([]byte(fmt.Sprintf("START_OF_PUSH:%s", topicName)))
	}

	if startMonitor {
		if _, err := e.coordinator.AddResource(ctx, cluster, topicName, store.PartitionCount, replication); err != nil {
			return nil, e.handleVersionCreationFailure(ctx, cluster, storeName, number, "add coordinator resource", err)
		}
		waitCtx := ctx
		if err := e.coordinator.WaitForAssignment(waitCtx, topicName, replication); err != nil {
			return nil, e.handleVersionCreationFailure(ctx, cluster, storeName, number, "wait for assignment", err)
		}
	}

	e.logger.Info("version started", zap.String("cluster", cluster), zap.String("store", storeName),
		zap.Int("version", number), zap.String("push_id", pushID))
	return version.Clone(), nil
}

// handleVersionCreationFailure marks the push ERROR, tears down whatever
// was partially created via deleteOneStoreVersion, and re-raises wrapped
// (spec.md §4.5.2's failure path).
func (e *Engine) handleVersionCreationFailure(ctx context.Context, cluster, storeName string, number int, step string, cause error) error {
	e.logger.Warn("version creation failed, rolling back",
		zap.String("cluster", cluster), zap.String("store", storeName),
		zap.Int("version", number), zap.String("step", step), zap.Error(cause))

	sl := e.locks.store(cluster, storeName)
	sl.Lock()
	if store, err := e.store.GetStore(ctx, cluster, storeName); err == nil {
		if v := store.VersionByNumber(number); v != nil {
			v.Status = model.VersionStatusError
			_ = e.store.UpdateStore(ctx, cluster, store)
		}
	}
	sl.Unlock()

	if err := e.deleteOneStoreVersionLocked(ctx, cluster, storeName, number); err != nil {
		e.logger.Warn("compensating deleteOneStoreVersion also failed",
			zap.String("cluster", cluster), zap.String("store", storeName), zap.Int("version", number), zap.Error(err))
	}

	return verrors.Wrap(verrors.KindCoordinatorUnavailable, "AddVersion: "+step, cause)
}

// IncrementVersionIdempotent implements spec.md §4.5.3: the only entry
// point that guarantees at-most-one Version per pushId.
func (e *Engine) IncrementVersionIdempotent(
	ctx context.Context,
	cluster, storeName, pushID string,
	partitions, replication int,
	startMonitor, sendSOP bool,
) (*model.Version, error) {
	store, err := e.store.GetStore(ctx, cluster, storeName)
	if err != nil {
		if err == metadatastore.ErrNotFound {
			return nil, verrors.New(verrors.KindNotFound, "IncrementVersionIdempotent", "store not found: "+storeName)
		}
		return nil, fmt.Errorf("load store: %w", err)
	}
	if existing := store.VersionByPushJobID(pushID); existing != nil {
		return existing.Clone(), nil
	}
	return e.AddVersion(ctx, cluster, storeName, pushID, model.UnsetVersionNumber, partitions, replication, startMonitor, sendSOP)
}

// GetStartedVersion implements spec.md §4.5.4.
func (e *Engine) GetStartedVersion(store *model.Store) (*model.Version, error) {
	var started *model.Version
	for _, v := range store.Versions {
		if v.Number <= store.CurrentVersion {
			continue
		}
		if v.Status == model.VersionStatusError {
			return nil, verrors.New(verrors.KindConflict, "GetStartedVersion", fmt.Sprintf("version %d is in ERROR", v.Number))
		}
		if v.Status == model.VersionStatusStarted {
			if started != nil {
				return nil, verrors.New(verrors.KindConflict, "GetStartedVersion", "multiple STARTED versions above current")
			}
			started = v
		}
	}
	return started, nil
}

// DeleteOneStoreVersion implements spec.md §4.5.5.
func (e *Engine) DeleteOneStoreVersion(ctx context.Context, cluster, storeName string, number int) error {
	if err := e.requireLeader(cluster, "DeleteOneStoreVersion"); err != nil {
		return err
	}
	cl := e.locks.cluster(cluster)
	cl.Lock()
	defer cl.Unlock()
	return e.deleteOneStoreVersionLocked(ctx, cluster, storeName, number)
}

// deleteOneStoreVersionLocked assumes the caller already holds the cluster
// lock; it takes the store lock itself. Every step
// is independently idempotent so a failure partway through is reconciled
// by a later retireOldStoreVersions pass (spec.md §4.5.5).
func (e *Engine) deleteOneStoreVersionLocked(ctx context.Context, cluster, storeName string, number int) error {
	sl := e.locks.store(cluster, storeName)
	sl.Lock()
	defer sl.Unlock()
	return e.deleteOneStoreVersionStoreLocked(ctx, cluster, storeName, number)
}

// deleteOneStoreVersionStoreLocked is deleteOneStoreVersionLocked for
// callers that already hold the store lock too (deleteStoreLocked).
func (e *Engine) deleteOneStoreVersionStoreLocked(ctx context.Context, cluster, storeName string, number int) error {
	resourceName := model.VersionTopicName(storeName, number)

	if err := e.coordinator.DropResource(ctx, resourceName); err != nil && verrors.KindOf(err) != verrors.KindNotFound {
		return fmt.Errorf("drop resource: %w", err)
	}
	e.coordinator.SendMessageToParticipants([]byte(fmt.Sprintf("KILL:%s", resourceName)))

	store, err := e.store.GetStore(ctx, cluster, storeName)
	if err != nil {
		if err == metadatastore.ErrNotFound {
			return nil // already gone; idempotent
		}
		return fmt.Errorf("load store: %w", err)
	}

	migrating := store.Migrating
	store.RemoveVersion(number)
	if err := e.store.UpdateStore(ctx, cluster, store); err != nil {
		return fmt.Errorf("persist version removal: %w", err)
	}

	if !migrating {
		if err := e.topics.UpdateRetention(ctx, resourceName, e.cfg.Topics.DeprecatedRetentionMs); err != nil && verrors.KindOf(err) != verrors.KindNotFound {
			return fmt.Errorf("truncate version topic: %w", err)
		}
	}

	e.logger.Info("store version deleted", zap.String("cluster", cluster), zap.String("store", storeName), zap.Int("version", number))
	return nil
}

// RetireOldStoreVersions implements spec.md §4.5.6.
func (e *Engine) RetireOldStoreVersions(ctx context.Context, cluster, storeName string) error {
	if err := e.requireLeader(cluster, "RetireOldStoreVersions"); err != nil {
		return err
	}
	cl := e.locks.cluster(cluster)
	cl.Lock()
	defer cl.Unlock()

	sl := e.locks.store(cluster, storeName)
	sl.Lock()
	store, err := e.store.GetStore(ctx, cluster, storeName)
	sl.Unlock()
	if err != nil {
		return fmt.Errorf("load store: %w", err)
	}

	minToPreserve := e.cfg.Topics.MinStoreVersionsToPreserve
	toDelete := store.RetrieveVersionsToDelete(minToPreserve)
	for _, v := range toDelete {
		if err := e.deleteOneStoreVersionLocked(ctx, cluster, storeName, v.Number); err != nil {
			return fmt.Errorf("retire version %d: %w", v.Number, err)
		}
	}

	return e.truncateOrphanedVersionTopics(ctx, cluster, storeName)
}

// truncateOrphanedVersionTopics scans topics for this store's version
// topics whose version number is no longer in the store's current set and
// truncates them, per spec.md §4.5.6's second half.
func (e *Engine) truncateOrphanedVersionTopics(ctx context.Context, cluster, storeName string) error {
	sl := e.locks.store(cluster, storeName)
	sl.Lock()
	store, err := e.store.GetStore(ctx, cluster, storeName)
	sl.Unlock()
	if err != nil {
		return fmt.Errorf("load store: %w", err)
	}

	topics, err := e.topics.ListTopics(ctx)
	if err != nil {
		return fmt.Errorf("list topics: %w", err)
	}

	for name, info := range topics {
		number, ok := parseVersionTopic(storeName, name)
		if !ok {
			continue
		}
		if store.VersionByNumber(number) != nil {
			continue
		}
		if info.RetentionMs <= e.cfg.Topics.DeprecatedMaxRetentionMs && info.RetentionMs > 0 {
			continue // already truncated
		}
		if err := e.topics.UpdateRetention(ctx, name, e.cfg.Topics.DeprecatedRetentionMs); err != nil {
			e.logger.Warn("failed to truncate orphaned version topic", zap.String("topic", name), zap.Error(err))
		}
	}
	return nil
}

func parseVersionTopic(storeName, topic string) (int, bool) {
	prefix := storeName + "_v"
	if len(topic) <= len(prefix) || topic[:len(prefix)] != prefix {
		return 0, false
	}
	var number int
	if _, err := fmt.Sscanf(topic[len(prefix):], "%d", &number); err != nil {
		return 0, false
	}
	return number, true
}
