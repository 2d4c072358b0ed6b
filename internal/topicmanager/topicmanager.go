// Package topicmanager wraps a sarama.ClusterAdmin to give the Store
// Lifecycle Engine spec.md §4.3's topic operations (listTopics,
// createTopic, containsTopic, updateRetention, deleteTopic). Grounded on
// the Sarama-Kafka-Wrapper vendored into
// united-manufacturing-hub-united-manufacturing-hub/golang: the same
// sarama.NewClusterAdmin construction, sarama.TopicDetail for creation,
// and admin.ListTopics()'s map[string]sarama.TopicDetail shape for
// existence checks.
package topicmanager

import (
	"context"
	"fmt"
	"strconv"

	"github.com/IBM/sarama"
	"go.uber.org/zap"

	"github.com/veniceio/venice-controller/internal/model"
	"github.com/veniceio/venice-controller/internal/verrors"
)

// Manager is the Topic Manager adapter (spec.md §4.3).
type Manager struct {
	admin  sarama.ClusterAdmin
	logger *zap.Logger
}

// NewManager dials the message bus and constructs a ClusterAdmin, mirroring
// the wrapper's sarama.NewClusterAdmin(brokers, config) call; TLS is wired
// the same way the wrapper toggles config.Net.TLS.Enable.
func NewManager(brokers []string, sslEnabled bool, logger *zap.Logger) (*Manager, error) {
	config := sarama.NewConfig()
	config.Version = sarama.V2_8_0_0
	config.Net.TLS.Enable = sslEnabled

	admin, err := sarama.NewClusterAdmin(brokers, config)
	if err != nil {
		return nil, fmt.Errorf("create cluster admin: %w", err)
	}
	return &Manager{admin: admin, logger: logger}, nil
}

// ListTopics returns every topic visible on the bus, keyed by name.
func (m *Manager) ListTopics(ctx context.Context) (map[string]model.TopicInfo, error) {
	topics, err := m.admin.ListTopics()
	if err != nil {
		return nil, verrors.Wrap(verrors.KindTopicManagerUnavailable, "ListTopics", err)
	}
	out := make(map[string]model.TopicInfo, len(topics))
	for name, detail := range topics {
		info := model.TopicInfo{
			Name:        name,
			Partitions:  detail.NumPartitions,
			Replication: detail.ReplicationFactor,
		}
		if raw, ok := detail.ConfigEntries["retention.ms"]; ok && raw != nil {
			if ms, err := strconv.ParseInt(*raw, 10, 64); err == nil {
				info.RetentionMs = ms
			}
		}
		out[name] = info
	}
	return out, nil
}

// ContainsTopic reports whether name exists on the bus.
func (m *Manager) ContainsTopic(ctx context.Context, name string) (bool, error) {
	topics, err := m.ListTopics(ctx)
	if err != nil {
		return false, err
	}
	_, exists := topics[name]
	return exists, nil
}

// CreateTopic creates a version or real-time topic, mirroring the
// wrapper's TopicCreator (existence check then CreateTopic with a
// sarama.TopicDetail carrying partitions/replication/retention).
func (m *Manager) CreateTopic(ctx context.Context, name string, partitions int32, replicationFactor int16, retentionMs int64) error {
	exists, err := m.ContainsTopic(ctx, name)
	if err != nil {
		return err
	}
	if exists {
		return verrors.New(verrors.KindAlreadyExists, "CreateTopic", "topic already exists: "+name)
	}

	retention := strconv.FormatInt(retentionMs, 10)
	detail := &sarama.TopicDetail{
		NumPartitions:     partitions,
		ReplicationFactor: replicationFactor,
		ConfigEntries: map[string]*string{
			"retention.ms": &retention,
		},
	}
	if err := m.admin.CreateTopic(name, detail, false); err != nil {
		return verrors.Wrap(verrors.KindTopicManagerUnavailable, "CreateTopic", err)
	}
	return nil
}

// UpdateRetention alters a topic's retention.ms, spec.md §4.3's retention
// tightening used ahead of deprecated-topic cleanup.
func (m *Manager) UpdateRetention(ctx context.Context, name string, retentionMs int64) error {
	retention := strconv.FormatInt(retentionMs, 10)
	err := m.admin.AlterConfig(sarama.TopicResource, name, map[string]*string{
		"retention.ms": &retention,
	}, false)
	if err != nil {
		return verrors.Wrap(verrors.KindTopicManagerUnavailable, "UpdateRetention", err)
	}
	return nil
}

// IsRetentionBelowThreshold reports whether a topic's current retention is
// at or below thresholdMs. No controller component calls it;
// truncateOrphanedVersionTopics reads retention from ListTopics instead.
func (m *Manager) IsRetentionBelowThreshold(ctx context.Context, name string, thresholdMs int64) (bool, error) {
	topics, err := m.ListTopics(ctx)
	if err != nil {
		return false, err
	}
	info, exists := topics[name]
	if !exists {
		return false, verrors.New(verrors.KindNotFound, "IsRetentionBelowThreshold", "topic not found: "+name)
	}
	return info.RetentionMs <= thresholdMs, nil
}

// DeleteTopic removes a topic from the bus.
func (m *Manager) DeleteTopic(ctx context.Context, name string) error {
	if err := m.admin.DeleteTopic(name); err != nil {
		return verrors.Wrap(verrors.KindTopicManagerUnavailable, "DeleteTopic", err)
	}
	return nil
}

func (m *Manager) Close() error {
	return m.admin.Close()
}
