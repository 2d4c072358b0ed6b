// Command controller runs the Venice Cluster Controller Core: it builds the
// process-wide handles (metadata store, discovery cache, topic manager,
// schema registry, push-status writer) and, for every configured cluster, a
// Resource Coordinator, lifecycle engine and admin mux; it contests
// mastership for each cluster and serves the admin HTTP surface, the Store
// Migration Monitor, and the metrics/health endpoints. The per-cluster
// graph is built at startup whether or not mastership is won and is not
// torn down when mastership is lost; the engine's leader check gates each
// operation instead.
//
// Wiring follows the teacher's coordinator/cmd/coordinator/main.go
// explicit-lifecycle shape: construct store -> construct services ->
// construct handlers -> serve -> graceful shutdown on signal.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/veniceio/venice-controller/internal/adminapi"
	"github.com/veniceio/venice-controller/internal/config"
	"github.com/veniceio/venice-controller/internal/discovery"
	"github.com/veniceio/venice-controller/internal/health"
	"github.com/veniceio/venice-controller/internal/lifecycle"
	"github.com/veniceio/venice-controller/internal/mastership"
	"github.com/veniceio/venice-controller/internal/metadatastore"
	"github.com/veniceio/venice-controller/internal/metrics"
	"github.com/veniceio/venice-controller/internal/migration"
	"github.com/veniceio/venice-controller/internal/pushstatus"
	"github.com/veniceio/venice-controller/internal/rescoord"
	"github.com/veniceio/venice-controller/internal/schemaregistry"
	"github.com/veniceio/venice-controller/internal/topicmanager"
)

// clusterResources is the per-cluster dependency graph, built at startup
// for each configured cluster and kept until process shutdown.
type clusterResources struct {
	coordinator *rescoord.Coordinator
	membership  *rescoord.Membership
	mux         http.Handler
}

func main() {
	logger, err := zap.NewProduction()
	if err != nil {
		panic(fmt.Sprintf("failed to initialize logger: %v", err))
	}
	defer logger.Sync()

	logger.Info("starting Venice Cluster Controller Core")

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	logger.Info("configuration loaded",
		zap.String("node_id", cfg.Server.NodeID),
		zap.Int("admin_port", cfg.Server.Port),
		zap.Int("clusters", len(cfg.Clusters)))

	ctx := context.Background()

	metadataStore, err := metadatastore.NewPostgresMetadataStore(
		ctx,
		cfg.Database.Host,
		cfg.Database.Port,
		cfg.Database.Database,
		cfg.Database.User,
		cfg.Database.Password,
		cfg.Database.MaxConnections,
		cfg.Database.MinConnections,
		logger,
	)
	if err != nil {
		logger.Fatal("failed to initialize metadata store", zap.Error(err))
	}
	logger.Info("metadata store initialized")

	discoveryR, err := discovery.NewResolver(cfg.Redis.Host, cfg.Redis.Port, cfg.Redis.Password, cfg.Redis.DB, cfg.Redis.TTL, metadataStore, logger)
	if err != nil {
		logger.Fatal("failed to initialize discovery resolver", zap.Error(err))
	}
	logger.Info("discovery resolver initialized")

	topics, err := topicmanager.NewManager(cfg.Kafka.BootstrapServers, cfg.Kafka.SSLEnabled, logger)
	if err != nil {
		logger.Fatal("failed to initialize topic manager", zap.Error(err))
	}
	logger.Info("topic manager initialized")

	schemas := schemaregistry.NewRegistry(metadataStore)

	pushStatusWriter := pushstatus.NewWriter(cfg.Kafka.BootstrapServers, "push_job_details_store_rt_v1", logger)

	mastershipConnString := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s",
		cfg.Database.Host, cfg.Database.Port, cfg.Database.Database, cfg.Database.User, cfg.Database.Password,
	)
	leaders := mastership.NewManager(mastershipConnString, cfg.Mastership.JoinTimeout, cfg.Mastership.PollInterval, logger)

	_ = metrics.NewMetrics()
	logger.Info("metrics initialized")

	healthChecker := health.NewHealthChecker(metadataStore, discoveryR, logger)

	// Build one Resource Coordinator + admin mux per managed cluster, and
	// contest mastership for each.
	clusters := make(map[string]*clusterResources, len(cfg.Clusters))
	for clusterName := range cfg.Clusters {
		planner := rescoord.NewPartitionPlanner(256)

		var members *rescoord.Membership
		if cfg.Gossip.Enabled {
			members, err = rescoord.NewMembership(&rescoord.MembershipConfig{
				Enabled:        true,
				NodeName:       fmt.Sprintf("%s-%s", cfg.Server.NodeID, clusterName),
				BindPort:       cfg.Gossip.BindPort,
				SeedNodes:      cfg.Gossip.SeedNodes,
				GossipInterval: cfg.Gossip.GossipInterval,
				ProbeTimeout:   cfg.Gossip.ProbeTimeout,
				ProbeInterval:  cfg.Gossip.ProbeInterval,
			}, logger)
			if err != nil {
				logger.Fatal("failed to join gossip cluster", zap.String("cluster", clusterName), zap.Error(err))
			}
		}

		coordinator := rescoord.NewCoordinator(planner, members, logger)
		engine := lifecycle.New(metadataStore, coordinator, topics, schemas, discoveryR, leaders, pushStatusWriter, cfg, logger)
		handlers := adminapi.NewHandlers(engine, clusterName, 30*time.Second, logger)

		clusters[clusterName] = &clusterResources{coordinator: coordinator, membership: members, mux: handlers.Mux()}

		if err := leaders.Start(ctx, clusterName); err != nil {
			logger.Warn("failed to acquire mastership, continuing as standby", zap.String("cluster", clusterName), zap.Error(err))
		}
	}

	// Store Migration Monitor: a single process-wide loop, since a
	// migration's destination leader (not its source) is the one
	// authorized to flip discovery (internal/migration).
	monitor := migration.NewMonitor(metadataStore, leaders, discoveryR, logger)
	monitorCtx, cancelMonitor := context.WithCancel(ctx)
	go monitor.Run(monitorCtx)
	logger.Info("store migration monitor started")

	// Admin HTTP surface: one mux per managed cluster, mounted under its
	// name so a single process can serve several clusters' lifecycle APIs.
	adminMux := http.NewServeMux()
	for clusterName, res := range clusters {
		adminMux.Handle(fmt.Sprintf("/clusters/%s/", clusterName), http.StripPrefix(fmt.Sprintf("/clusters/%s", clusterName), res.mux))
	}
	adminAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	adminServer := &http.Server{Addr: adminAddr, Handler: adminMux}
	go func() {
		logger.Info("starting admin HTTP server", zap.String("address", adminAddr))
		if err := adminServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("admin HTTP server failed", zap.Error(err))
		}
	}()

	if cfg.Metrics.Enabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle(cfg.Metrics.Path, promhttp.Handler())
			addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
			logger.Info("starting metrics server", zap.String("address", addr))
			if err := http.ListenAndServe(addr, mux); err != nil {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	go func() {
		if err := health.StartServer(healthChecker, 8080, logger); err != nil {
			logger.Error("health check server failed", zap.Error(err))
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
	sig := <-sigChan
	logger.Info("received signal, shutting down gracefully", zap.String("signal", sig.String()))

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()

	if err := adminServer.Shutdown(shutdownCtx); err != nil {
		logger.Warn("admin HTTP server shutdown error", zap.Error(err))
	}

	cancelMonitor()

	leaders.StopAll(shutdownCtx)
	for _, res := range clusters {
		if res.membership != nil {
			if err := res.membership.Shutdown(); err != nil {
				logger.Warn("gossip membership shutdown error", zap.Error(err))
			}
		}
	}

	if err := pushStatusWriter.Close(); err != nil {
		logger.Warn("push status writer close error", zap.Error(err))
	}
	if err := topics.Close(); err != nil {
		logger.Warn("topic manager close error", zap.Error(err))
	}
	if err := discoveryR.Close(); err != nil {
		logger.Warn("discovery resolver close error", zap.Error(err))
	}
	metadataStore.Close()

	logger.Info("venice cluster controller core stopped")
}
