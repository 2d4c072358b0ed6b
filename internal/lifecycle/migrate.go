package lifecycle

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/veniceio/venice-controller/internal/metadatastore"
	"github.com/veniceio/venice-controller/internal/model"
	"github.com/veniceio/venice-controller/internal/verrors"
)

// MigrateStore implements spec.md §4.5.8's first phase: cloning the store
// and its schemas onto destCluster and flipping both stores into the
// migrating state. The Store Migration Monitor (internal/migration) owns
// the second phase — watching dest's version state and flipping discovery
// once it catches up.
func (e *Engine) MigrateStore(ctx context.Context, srcCluster, destCluster, storeName string) error {
	if err := e.requireLeader(srcCluster, "MigrateStore"); err != nil {
		return err
	}
	if err := e.requireLeader(destCluster, "MigrateStore"); err != nil {
		return err
	}

	// spec.md §5: every lifecycle op takes its cluster's metadata lock in
	// write mode, serializing it against any other mutating op on that
	// cluster (e.g. a concurrent CreateStore/DeleteStore for a different
	// store). MigrateStore spans two clusters, so it takes both, in the
	// same cluster-name order used below for the store locks to stay
	// deadlock-free against a concurrent migrate in the opposite direction.
	srcClusterLock := e.locks.cluster(srcCluster)
	destClusterLock := e.locks.cluster(destCluster)
	srcLock := e.locks.store(srcCluster, storeName)
	destLock := e.locks.store(destCluster, storeName)
	if srcCluster < destCluster {
		srcClusterLock.Lock()
		defer srcClusterLock.Unlock()
		destClusterLock.Lock()
		defer destClusterLock.Unlock()
		srcLock.Lock()
		defer srcLock.Unlock()
		destLock.Lock()
		defer destLock.Unlock()
	} else {
		destClusterLock.Lock()
		defer destClusterLock.Unlock()
		srcClusterLock.Lock()
		defer srcClusterLock.Unlock()
		destLock.Lock()
		defer destLock.Unlock()
		srcLock.Lock()
		defer srcLock.Unlock()
	}

	src, err := e.store.GetStore(ctx, srcCluster, storeName)
	if err != nil {
		if err == metadatastore.ErrNotFound {
			return verrors.New(verrors.KindNotFound, "MigrateStore", "source store not found: "+storeName)
		}
		return fmt.Errorf("load source store: %w", err)
	}

	_, keySchemaText, err := e.store.GetKeySchema(ctx, srcCluster, storeName)
	if err != nil {
		return fmt.Errorf("load source key schema: %w", err)
	}

	valueSchemas, err := e.store.ListValueSchemas(ctx, srcCluster, storeName)
	if err != nil {
		return fmt.Errorf("load source value schemas: %w", err)
	}

	largestUsed := 0
	if entry, err := e.store.GetGraveyardEntry(ctx, destCluster, storeName); err == nil && entry != nil {
		largestUsed = entry.LargestUsedVersionNumber
	} else if err != nil && err != metadatastore.ErrNotFound {
		return fmt.Errorf("read dest graveyard: %w", err)
	}

	if _, err := e.store.GetStore(ctx, destCluster, storeName); err == nil {
		return verrors.New(verrors.KindAlreadyExists, "MigrateStore", "destination store already exists: "+storeName)
	} else if err != metadatastore.ErrNotFound {
		return fmt.Errorf("check destination store: %w", err)
	}

	dest := src.Clone()
	dest.CurrentVersion = model.NonExistingVersion
	dest.LargestUsedVersionNumber = largestUsed // zeroed (or graveyard floor) to force a fresh push cycle
	dest.Versions = nil
	dest.Migrating = true

	if err := e.store.CreateStore(ctx, destCluster, dest); err != nil {
		return fmt.Errorf("create destination store: %w", err)
	}
	if err := e.store.PutKeySchema(ctx, destCluster, storeName, keySchemaText); err != nil {
		return fmt.Errorf("copy key schema to destination: %w", err)
	}
	for id, text := range valueSchemas {
		if err := e.store.PutValueSchemaAtID(ctx, destCluster, storeName, id, text); err != nil {
			return fmt.Errorf("copy value schema %d to destination: %w", id, err)
		}
	}

	src.Migrating = true
	if err := e.store.UpdateStore(ctx, srcCluster, src); err != nil {
		return fmt.Errorf("flip source migrating flag: %w", err)
	}

	migCfg := &model.StoreConfig{
		StoreName:     storeName,
		Cluster:       srcCluster, // discovery remains at src until the monitor flips it
		MigrationSrc:  srcCluster,
		MigrationDest: destCluster,
	}
	if existing, err := e.store.GetStoreConfig(ctx, storeName); err == nil && existing != nil {
		migCfg.RowVersion = existing.RowVersion
	} else if err != nil && err != metadatastore.ErrNotFound {
		return fmt.Errorf("load store config: %w", err)
	}
	if err := e.store.PutStoreConfig(ctx, migCfg); err != nil {
		return fmt.Errorf("persist migration store config: %w", err)
	}
	if e.discoveryR != nil {
		e.discoveryR.Invalidate(ctx, storeName)
	}

	e.logger.Info("store migration started", zap.String("store", storeName),
		zap.String("src", srcCluster), zap.String("dest", destCluster))
	return nil
}
