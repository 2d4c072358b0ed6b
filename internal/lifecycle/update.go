package lifecycle

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/veniceio/venice-controller/internal/metadatastore"
	"github.com/veniceio/venice-controller/internal/model"
	"github.com/veniceio/venice-controller/internal/verrors"
)

// UpdateStoreOptions enumerates the nullable per-field mutations
// updateStore accepts (spec.md §4.5.9); a nil field is left untouched.
type UpdateStoreOptions struct {
	Owner                   *string
	EnableReads             *bool
	EnableWrites            *bool
	PartitionCount          *int
	StorageQuotaBytes       *int64
	ReadQuotaCU             *int64
	CurrentVersion          *int
	LargestUsedVersionNumber *int
	HybridRewindSeconds      *int64
	HybridOffsetLagThreshold *int64
	AccessControlled        *bool
	CompressionStrategy     *string
	ChunkingEnabled         *bool
	RouterCacheSingleGet    *bool
	RouterCacheBatchGet     *bool
	BatchGetLimit           *int
	NumVersionsToPreserve   *int
	IncrementalPushEnabled  *bool
	Migrating               *bool
}

// UpdateStore implements spec.md §4.5.9: every provided option is applied
// in a fixed order under the store write lock; any failure restores the
// pre-image and re-raises, leaving the store untouched from the caller's
// perspective.
func (e *Engine) UpdateStore(ctx context.Context, cluster, storeName string, opts UpdateStoreOptions) (*model.Store, error) {
	if err := e.requireLeader(cluster, "UpdateStore"); err != nil {
		return nil, err
	}
	cl := e.locks.cluster(cluster)
	cl.Lock()
	defer cl.Unlock()

	sl := e.locks.store(cluster, storeName)
	sl.Lock()
	defer sl.Unlock()

	store, err := e.store.GetStore(ctx, cluster, storeName)
	if err != nil {
		if err == metadatastore.ErrNotFound {
			return nil, verrors.New(verrors.KindNotFound, "UpdateStore", "store not found: "+storeName)
		}
		return nil, fmt.Errorf("load store: %w", err)
	}
	preImage := store.Clone()

	if err := e.applyUpdateOptions(cluster, store, opts); err != nil {
		return preImage, err
	}

	if err := e.store.UpdateStore(ctx, cluster, store); err != nil {
		return preImage, fmt.Errorf("persist store update: %w", err)
	}

	e.logger.Info("store updated", zap.String("cluster", cluster), zap.String("store", storeName))
	return store.Clone(), nil
}

func (e *Engine) applyUpdateOptions(cluster string, store *model.Store, opts UpdateStoreOptions) error {
	if opts.Owner != nil {
		store.Owner = *opts.Owner
	}
	if opts.EnableReads != nil {
		store.EnableReads = *opts.EnableReads
	}
	if opts.EnableWrites != nil {
		store.EnableWrites = *opts.EnableWrites
	}
	if opts.PartitionCount != nil {
		if store.IsHybrid() && *opts.PartitionCount != store.PartitionCount {
			return verrors.New(verrors.KindConflict, "UpdateStore", "partition count is pinned for hybrid stores")
		}
		cc := e.clusterConfig(cluster)
		count := *opts.PartitionCount
		if cc.MinPartitionCount > 0 && count < cc.MinPartitionCount {
			count = cc.MinPartitionCount
		}
		if cc.MaxPartitionCount > 0 && count > cc.MaxPartitionCount {
			count = cc.MaxPartitionCount
		}
		store.PartitionCount = count
	}
	if opts.StorageQuotaBytes != nil {
		if *opts.StorageQuotaBytes < 0 && *opts.StorageQuotaBytes != model.StorageQuotaUnlimited {
			return verrors.New(verrors.KindConflict, "UpdateStore", "storage quota must be >= 0 or UNLIMITED")
		}
		store.StorageQuotaBytes = *opts.StorageQuotaBytes
	}
	if opts.ReadQuotaCU != nil {
		if *opts.ReadQuotaCU < 0 {
			return verrors.New(verrors.KindConflict, "UpdateStore", "read quota must be >= 0")
		}
		store.ReadQuotaCU = *opts.ReadQuotaCU
	}
	if opts.CurrentVersion != nil {
		if store.CurrentVersion != model.NonExistingVersion && !store.EnableWrites {
			return verrors.New(verrors.KindConflict, "UpdateStore", "store must be writable to change current version")
		}
		if store.VersionByNumber(*opts.CurrentVersion) == nil {
			return verrors.New(verrors.KindNotFound, "UpdateStore", fmt.Sprintf("version %d does not exist", *opts.CurrentVersion))
		}
		store.CurrentVersion = *opts.CurrentVersion
	}
	if opts.LargestUsedVersionNumber != nil {
		if *opts.LargestUsedVersionNumber < store.LargestUsedVersionNumber {
			return verrors.New(verrors.KindFatal, "UpdateStore", "largestUsedVersionNumber must not regress")
		}
		store.LargestUsedVersionNumber = *opts.LargestUsedVersionNumber
	}
	if err := applyHybridMerge(store, opts); err != nil {
		return err
	}
	if opts.AccessControlled != nil {
		store.AccessControlled = *opts.AccessControlled
	}
	if opts.CompressionStrategy != nil {
		store.CompressionStrategy = *opts.CompressionStrategy
	}
	if opts.ChunkingEnabled != nil {
		store.ChunkingEnabled = *opts.ChunkingEnabled
	}
	if opts.RouterCacheSingleGet != nil || opts.RouterCacheBatchGet != nil {
		if store.IsHybrid() || store.IncrementalPushEnabled {
			return verrors.New(verrors.KindConflict, "UpdateStore", "router cache is incompatible with hybrid/incremental-push stores")
		}
		if opts.RouterCacheSingleGet != nil {
			store.RouterCacheSingleGet = *opts.RouterCacheSingleGet
		}
		if opts.RouterCacheBatchGet != nil {
			store.RouterCacheBatchGet = *opts.RouterCacheBatchGet
		}
	}
	if opts.BatchGetLimit != nil {
		store.BatchGetLimit = *opts.BatchGetLimit
	}
	if opts.NumVersionsToPreserve != nil {
		store.NumVersionsToPreserve = *opts.NumVersionsToPreserve
	}
	if opts.IncrementalPushEnabled != nil {
		if *opts.IncrementalPushEnabled && store.IsHybrid() {
			return verrors.New(verrors.KindConflict, "UpdateStore", "incremental push is incompatible with hybrid stores")
		}
		store.IncrementalPushEnabled = *opts.IncrementalPushEnabled
	}
	if opts.Migrating != nil {
		store.Migrating = *opts.Migrating
	}
	return nil
}

// applyHybridMerge implements spec.md §4.5.9's hybrid config merge table.
func applyHybridMerge(store *model.Store, opts UpdateStoreOptions) error {
	if opts.HybridRewindSeconds == nil && opts.HybridOffsetLagThreshold == nil {
		return nil // no-op regardless of current hybrid state
	}
	if store.IsHybrid() {
		if opts.HybridRewindSeconds != nil {
			store.Hybrid.RewindSeconds = *opts.HybridRewindSeconds
		}
		if opts.HybridOffsetLagThreshold != nil {
			store.Hybrid.OffsetLagThreshold = *opts.HybridOffsetLagThreshold
		}
		return nil
	}
	// spec.md §9 Open Question (c): non-hybrid -> hybrid transition is
	// supported going forward only when both fields are supplied together;
	// hybrid -> non-hybrid is not exercised by the source and is rejected.
	if opts.HybridRewindSeconds == nil || opts.HybridOffsetLagThreshold == nil {
		return verrors.New(verrors.KindConflict, "UpdateStore", "transitioning to hybrid requires both rewindSeconds and offsetLagThreshold")
	}
	store.Hybrid = &model.HybridConfig{
		RewindSeconds:      *opts.HybridRewindSeconds,
		OffsetLagThreshold: *opts.HybridOffsetLagThreshold,
	}
	return nil
}

// RealTimeTopicEnsurance implements spec.md §4.5.10.
func (e *Engine) RealTimeTopicEnsurance(ctx context.Context, cluster, storeName string) error {
	if err := e.requireLeader(cluster, "RealTimeTopicEnsurance"); err != nil {
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
		if err == metadatastore.ErrNotFound {
			return verrors.New(verrors.KindNotFound, "RealTimeTopicEnsurance", "store not found: "+storeName)
		}
		return fmt.Errorf("load store: %w", err)
	}
	if !store.IsHybrid() {
		return verrors.New(verrors.KindConflict, "RealTimeTopicEnsurance", "store is not hybrid: "+storeName)
	}
	if store.PartitionCount == 0 {
		return verrors.New(verrors.KindConflict, "RealTimeTopicEnsurance", "store has no partition count yet: "+storeName)
	}

	rt := model.RealTimeTopicName(storeName)
	exists, err := e.topics.ContainsTopic(ctx, rt)
	if err != nil {
		return fmt.Errorf("check real-time topic: %w", err)
	}
	if exists {
		return nil
	}
	replication := e.clusterConfig(cluster).DefaultReplicationFactor
	if err := e.topics.CreateTopic(ctx, rt, int32(store.PartitionCount), int16(replication), 0); err != nil {
		return fmt.Errorf("create real-time topic: %w", err)
	}
	e.logger.Info("real-time topic ensured", zap.String("cluster", cluster), zap.String("store", storeName), zap.String("topic", rt))
	return nil
}

// PeekNextVersion is a read-only preview of the version number AddVersion
// would assign, without mutating anything (grounded on
// VeniceHelixAdmin.peekNextVersion in original_source/venice-controller).
func (e *Engine) PeekNextVersion(ctx context.Context, cluster, storeName string) (int, error) {
	sl := e.locks.store(cluster, storeName)
	sl.Lock()
	defer sl.Unlock()

	store, err := e.store.GetStore(ctx, cluster, storeName)
	if err != nil {
		if err == metadatastore.ErrNotFound {
			return 0, verrors.New(verrors.KindNotFound, "PeekNextVersion", "store not found: "+storeName)
		}
		return 0, fmt.Errorf("load store: %w", err)
	}
	return store.MaxVersionNumber() + 1, nil
}

// GetCurrentVersionsForMultiColos is a stub in the child controller: it
// always returns an empty map (spec.md §9 Open Question (b)). Callers
// needing a cross-fabric view of current versions must route to the
// parent controller, which is out of this package's scope.
func (e *Engine) GetCurrentVersionsForMultiColos(ctx context.Context, storeName string) (map[string]int, error) {
	return map[string]int{}, nil
}
