package lifecycle

import (
	"go.uber.org/zap"

	"github.com/veniceio/venice-controller/internal/config"
	"github.com/veniceio/venice-controller/internal/metadatastore"
	"github.com/veniceio/venice-controller/internal/pushstatus"
	"github.com/veniceio/venice-controller/internal/schemaregistry"
	"github.com/veniceio/venice-controller/internal/topicmanager"
)

const testCluster = "cluster0"

func newTestEngine() (*Engine, metadatastore.MetadataStore, *fakeCoordinator, topicmanager.TopicManager) {
	store := metadatastore.NewInMemoryMetadataStore()
	coord := newFakeCoordinator()
	topics := topicmanager.NewFakeManager()
	schemas := schemaregistry.NewRegistry(store)

	cfg := config.DefaultConfig()
	cfg.Clusters[testCluster] = config.ClusterConfig{
		DefaultReplicationFactor: 3,
		MinActiveReplicas:        2,
		MinPartitionCount:        1,
		MaxPartitionCount:        256,
	}

	e := New(store, coord, topics, schemas, nil, nil, pushstatus.NewFakeWriter(), cfg, zap.NewNop())
	return e, store, coord, topics
}
