package lifecycle

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/veniceio/venice-controller/internal/config"
	"github.com/veniceio/venice-controller/internal/discovery"
	"github.com/veniceio/venice-controller/internal/mastership"
	"github.com/veniceio/venice-controller/internal/metadatastore"
	"github.com/veniceio/venice-controller/internal/model"
	"github.com/veniceio/venice-controller/internal/pushstatus"
	"github.com/veniceio/venice-controller/internal/schemaregistry"
	"github.com/veniceio/venice-controller/internal/topicmanager"
	"github.com/veniceio/venice-controller/internal/verrors"
)

// ResourceCoordinator is the subset of *rescoord.Coordinator the engine
// depends on, narrowed to an interface so tests can substitute a fake
// without standing up real memberlist gossip (spec.md §9: "deep
// inheritance ... collapses to a tagged capability interface").
type ResourceCoordinator interface {
	AddResource(ctx context.Context, cluster, name string, partitionCount, replicationFactor int) (*model.Resource, error)
	DropResource(ctx context.Context, name string) error
	EnablePartition(ctx context.Context, resourceName string, partition int, instanceID string, online bool) error
	ReadExternalView(ctx context.Context, resourceName string) (*model.Resource, error)
	WaitForAssignment(ctx context.Context, resourceName string, replicationFactor int) error
	SendMessageToParticipants(payload []byte)
	LiveInstances() []string
	ResourceExistsForStore(storeName string) bool
}

// Engine is the Store Lifecycle Engine (spec.md §4.5), composing the four
// leaf adapters plus the metadata store behind a per-cluster/per-store
// lock table.
type Engine struct {
	store       metadatastore.MetadataStore
	coordinator ResourceCoordinator
	topics      topicmanager.TopicManager
	schemas     *schemaregistry.Registry
	discoveryR  *discovery.Resolver
	leaders     *mastership.Manager
	pushStatus  pushstatus.StatusWriter
	cfg         *config.Config
	locks       *lockTable
	logger      *zap.Logger
}

// New wires the Store Lifecycle Engine from its leaf adapters.
func New(
	store metadatastore.MetadataStore,
	coordinator ResourceCoordinator,
	topics topicmanager.TopicManager,
	schemas *schemaregistry.Registry,
	discoveryR *discovery.Resolver,
	leaders *mastership.Manager,
	pushStatus pushstatus.StatusWriter,
	cfg *config.Config,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		store:       store,
		coordinator: coordinator,
		topics:      topics,
		schemas:     schemas,
		discoveryR:  discoveryR,
		leaders:     leaders,
		pushStatus:  pushStatus,
		cfg:         cfg,
		locks:       newLockTable(),
		logger:      logger,
	}
}

// requireLeader enforces spec.md §4.4's "every admin operation begins with
// requireLeader(cluster)". A nil leaders manager means mastership is not
// wired (e.g. single-process tests); in that case every caller is treated
// as leader.
func (e *Engine) requireLeader(cluster, op string) error {
	if e.leaders == nil {
		return nil
	}
	if !e.leaders.IsLeader(cluster) {
		return verrors.New(verrors.KindNotLeader, op, "not leader for cluster "+cluster)
	}
	return nil
}

func (e *Engine) clusterConfig(cluster string) config.ClusterConfig {
	if e.cfg == nil {
		return config.ClusterConfig{}
	}
	return e.cfg.Clusters[cluster]
}

// createStore implements spec.md §4.5.1.
func (e *Engine) CreateStore(ctx context.Context, cluster, name, owner, keySchema, valueSchema string) (*model.Store, error) {
	if err := e.requireLeader(cluster, "CreateStore"); err != nil {
		return nil, err
	}

	cl := e.locks.cluster(cluster)
	cl.Lock()
	defer cl.Unlock()

	sl := e.locks.store(cluster, name)
	sl.Lock()
	defer sl.Unlock()

	// Legacy-cleanup path: a store already exists in repo under this name
	// but is not reachable any other way (e.g. a prior createStore crashed
	// between steps). Clear it out first so we always start from a clean
	// slate.
	if existing, err := e.store.GetStore(ctx, cluster, name); err == nil && existing != nil {
		e.logger.Warn("createStore found a legacy store, deleting before recreate",
			zap.String("cluster", cluster), zap.String("store", name))
		if err := e.deleteStoreLocked(ctx, cluster, name, model.IgnoreVersion); err != nil {
			return nil, fmt.Errorf("clear legacy store before create: %w", err)
		}
	} else if err != nil && err != metadatastore.ErrNotFound {
		return nil, fmt.Errorf("check for legacy store: %w", err)
	}

	newCfg := &model.StoreConfig{StoreName: name, Cluster: cluster, Deleting: false}
	if cfg, err := e.store.GetStoreConfig(ctx, name); err == nil && cfg != nil && !cfg.Deleting {
		return nil, verrors.New(verrors.KindAlreadyExists, "CreateStore", "store already registered: "+name)
	} else if err == nil && cfg != nil {
		newCfg.RowVersion = cfg.RowVersion // overwrite the deleting config in place
	} else if err != nil && err != metadatastore.ErrNotFound {
		return nil, fmt.Errorf("check existing store config: %w", err)
	}

	largestUsed := 0
	if entry, err := e.store.GetGraveyardEntry(ctx, cluster, name); err == nil && entry != nil {
		largestUsed = entry.LargestUsedVersionNumber
	} else if err != nil && err != metadatastore.ErrNotFound {
		return nil, fmt.Errorf("read graveyard: %w", err)
	}

	store := &model.Store{
		Name:                     name,
		Owner:                    owner,
		CreatedAt:                time.Now(),
		CurrentVersion:           model.NonExistingVersion,
		LargestUsedVersionNumber: largestUsed,
		EnableReads:              true,
		EnableWrites:             true,
		Persistence:              model.PersistenceRocksDB,
		Routing:                  model.RoutingConsistentHash,
		Read:                     model.ReadStrategyAny,
		OfflinePush:              model.OfflinePushWaitNMinusOneReplicas,
		NumVersionsToPreserve:    e.cfg.Topics.MinStoreVersionsToPreserve,
		StorageQuotaBytes:        model.StorageQuotaUnlimited,
	}
	if err := e.store.CreateStore(ctx, cluster, store); err != nil {
		return nil, fmt.Errorf("persist new store: %w", err)
	}

	if err := e.store.PutStoreConfig(ctx, newCfg); err != nil {
		return nil, fmt.Errorf("persist store config: %w", err)
	}

	schemaLock := e.locks.schema(cluster, name)
	schemaLock.Lock()
	defer schemaLock.Unlock()

	if err := e.schemas.EnsureKeySchema(ctx, cluster, name, keySchema); err != nil {
		return nil, fmt.Errorf("register key schema: %w", err)
	}
	if _, err := e.schemas.AddValueSchema(ctx, cluster, name, valueSchema); err != nil {
		return nil, fmt.Errorf("register value schema: %w", err)
	}

	if e.discoveryR != nil {
		e.discoveryR.Invalidate(ctx, name)
	}

	e.logger.Info("store created", zap.String("cluster", cluster), zap.String("store", name),
		zap.Int("largest_used_version", largestUsed))
	return store.Clone(), nil
}
