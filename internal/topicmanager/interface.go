package topicmanager

import (
	"context"

	"github.com/veniceio/venice-controller/internal/model"
)

// TopicManager is the interface internal/lifecycle depends on, satisfied
// by both *Manager (real sarama-backed) and *FakeManager (tests).
type TopicManager interface {
	ListTopics(ctx context.Context) (map[string]model.TopicInfo, error)
	ContainsTopic(ctx context.Context, name string) (bool, error)
	CreateTopic(ctx context.Context, name string, partitions int32, replicationFactor int16, retentionMs int64) error
	UpdateRetention(ctx context.Context, name string, retentionMs int64) error
	IsRetentionBelowThreshold(ctx context.Context, name string, thresholdMs int64) (bool, error)
	DeleteTopic(ctx context.Context, name string) error
	Close() error
}

var (
	_ TopicManager = (*Manager)(nil)
	_ TopicManager = (*FakeManager)(nil)
)
