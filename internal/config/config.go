// Package config holds the controller's configuration surface, modeled
// directly on the teacher's viper-backed Config/DefaultConfig/Validate
// trio, generalized from a single coordinator's settings to the
// environment-agnostic property map spec.md §6 describes (per-cluster
// sections, message-bus bootstrap addresses, deprecation thresholds).
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config is the controller process's full configuration.
type Config struct {
	Server      ServerConfig             `mapstructure:"server"`
	Database    DatabaseConfig           `mapstructure:"database"`
	Redis       RedisConfig              `mapstructure:"redis"`
	Kafka       KafkaConfig              `mapstructure:"kafka"`
	Mastership  MastershipConfig         `mapstructure:"mastership"`
	Gossip      GossipConfig             `mapstructure:"gossip"`
	Topics      TopicPolicyConfig        `mapstructure:"topics"`
	Metrics     MetricsConfig            `mapstructure:"metrics"`
	Logging     LoggingConfig            `mapstructure:"logging"`
	Clusters    map[string]ClusterConfig `mapstructure:"clusters"`
}

// ServerConfig configures the admin HTTP surface (internal/adminapi).
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"admin_port"`
	SecurePort      int           `mapstructure:"admin_secure_port"`
	NodeID          string        `mapstructure:"node_id"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// DatabaseConfig configures the Postgres-backed metadata store.
type DatabaseConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	MaxConnections  int           `mapstructure:"max_connections"`
	MinConnections  int           `mapstructure:"min_connections"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// RedisConfig configures the discovery read-through cache.
type RedisConfig struct {
	Host     string        `mapstructure:"host"`
	Port     int           `mapstructure:"port"`
	Password string        `mapstructure:"password"`
	DB       int           `mapstructure:"db"`
	TTL      time.Duration `mapstructure:"ttl"`
}

// KafkaConfig configures the Topic Manager's message-bus connection
// (spec.md §6: "message-bus bootstrap addresses (plain + TLS)").
type KafkaConfig struct {
	BootstrapServers    []string `mapstructure:"bootstrap_servers"`
	SSLBootstrapServers []string `mapstructure:"ssl_bootstrap_servers"`
	SSLEnabled          bool     `mapstructure:"ssl_enabled"`
}

// MastershipConfig configures leader acquisition timing (spec.md §4.4).
type MastershipConfig struct {
	JoinTimeout  time.Duration `mapstructure:"join_timeout"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// GossipConfig configures the Resource Coordinator's memberlist substrate
// (internal/rescoord.Membership), generalized from the teacher's
// storage-node GossipConfig (storage-node/internal/service/
// gossip_service.go) from a single node's health broadcast to the
// controller's per-cluster liveInstances/participant-messaging view.
type GossipConfig struct {
	Enabled        bool          `mapstructure:"enabled"`
	BindPort       int           `mapstructure:"bind_port"`
	SeedNodes      []string      `mapstructure:"seed_nodes"`
	GossipInterval time.Duration `mapstructure:"gossip_interval"`
	ProbeTimeout   time.Duration `mapstructure:"probe_timeout"`
	ProbeInterval  time.Duration `mapstructure:"probe_interval"`
}

// TopicPolicyConfig carries the deprecation/retention thresholds
// spec.md §6 names explicitly.
type TopicPolicyConfig struct {
	DeprecatedRetentionMs         int64 `mapstructure:"deprecated_job_topic_retention_ms"`
	DeprecatedMaxRetentionMs      int64 `mapstructure:"deprecated_job_topic_max_retention_ms"`
	MinUnusedTopicsToPreserve     int   `mapstructure:"min_number_of_unused_topics_to_preserve"`
	MinStoreVersionsToPreserve    int   `mapstructure:"min_number_of_store_versions_to_preserve"`
}

// MetricsConfig configures the Prometheus exporter.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Port    int    `mapstructure:"port"`
	Path    string `mapstructure:"path"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// ClusterConfig carries per-managed-cluster settings: controller cluster
// name/replica factor, native replication source fabric, and SSL allowlist
// toggles (spec.md §6).
type ClusterConfig struct {
	ControllerClusterName    string `mapstructure:"controller_cluster_name"`
	ControllerClusterReplica int    `mapstructure:"controller_cluster_replica"`
	NativeReplicationSourceFabric string `mapstructure:"native_replication_source_fabric"`
	SSLToOtherComponents     bool   `mapstructure:"ssl_to_other_components"`
	DefaultReplicationFactor int    `mapstructure:"default_replication_factor"`
	MinActiveReplicas        int    `mapstructure:"min_active_replicas"`
	MinPartitionCount        int    `mapstructure:"min_partition_count"`
	MaxPartitionCount        int    `mapstructure:"max_partition_count"`
}

// Validate checks the configuration for the obviously-missing settings a
// process should refuse to start without.
func (c *Config) Validate() error {
	if c.Server.NodeID == "" {
		return errors.New("server.node_id is required")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.New("server.admin_port must be between 1 and 65535")
	}
	if c.Database.Host == "" {
		return errors.New("database.host is required")
	}
	if c.Database.Database == "" {
		return errors.New("database.database is required")
	}
	if len(c.Kafka.BootstrapServers) == 0 {
		return errors.New("kafka.bootstrap_servers is required")
	}
	if len(c.Clusters) == 0 {
		return errors.New("at least one entry under clusters is required")
	}
	for name, cc := range c.Clusters {
		if cc.DefaultReplicationFactor <= 0 {
			return fmt.Errorf("clusters.%s.default_replication_factor must be positive", name)
		}
		if cc.MinPartitionCount <= 0 || cc.MaxPartitionCount < cc.MinPartitionCount {
			return fmt.Errorf("clusters.%s partition bounds are invalid", name)
		}
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	return nil
}

// DefaultConfig returns the baseline configuration, overridden by file and
// environment in Load.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            7036,
			SecurePort:      7037,
			NodeID:          "controller-1",
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Host:            "localhost",
			Port:            5432,
			Database:        "venice_controller",
			User:            "venice",
			MaxConnections:  50,
			MinConnections:  5,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Redis: RedisConfig{
			Host: "localhost",
			Port: 6379,
			TTL:  30 * time.Second,
		},
		Mastership: MastershipConfig{
			JoinTimeout:  5 * time.Minute,
			PollInterval: 500 * time.Millisecond,
		},
		Gossip: GossipConfig{
			Enabled:        true,
			BindPort:       7946,
			GossipInterval: 200 * time.Millisecond,
			ProbeTimeout:   500 * time.Millisecond,
			ProbeInterval:  time.Second,
		},
		Topics: TopicPolicyConfig{
			DeprecatedRetentionMs:      5 * 60 * 1000,            // 5 minutes
			DeprecatedMaxRetentionMs:   24 * 60 * 60 * 1000,      // 1 day
			MinUnusedTopicsToPreserve:  2,
			MinStoreVersionsToPreserve: 2,
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Port:    9090,
			Path:    "/metrics",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Clusters: map[string]ClusterConfig{},
	}
}
