package topicmanager

import (
	"context"
	"sync"

	"github.com/veniceio/venice-controller/internal/model"
	"github.com/veniceio/venice-controller/internal/verrors"
)

// FakeManager is a topic manager test fake, the same in-memory-map
// pattern used throughout the corpus for swapping a real backend for
// tests (coordinator/internal/store/memory_cache.go).
type FakeManager struct {
	mu     sync.Mutex
	topics map[string]model.TopicInfo
}

func NewFakeManager() *FakeManager {
	return &FakeManager{topics: make(map[string]model.TopicInfo)}
}

func (f *FakeManager) ListTopics(ctx context.Context) (map[string]model.TopicInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]model.TopicInfo, len(f.topics))
	for k, v := range f.topics {
		out[k] = v
	}
	return out, nil
}

func (f *FakeManager) ContainsTopic(ctx context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, exists := f.topics[name]
	return exists, nil
}

func (f *FakeManager) CreateTopic(ctx context.Context, name string, partitions int32, replicationFactor int16, retentionMs int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.topics[name]; exists {
		return verrors.New(verrors.KindAlreadyExists, "CreateTopic", "topic already exists: "+name)
	}
	f.topics[name] = model.TopicInfo{Name: name, Partitions: partitions, Replication: replicationFactor, RetentionMs: retentionMs}
	return nil
}

func (f *FakeManager) UpdateRetention(ctx context.Context, name string, retentionMs int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, exists := f.topics[name]
	if !exists {
		return verrors.New(verrors.KindNotFound, "UpdateRetention", "topic not found: "+name)
	}
	info.RetentionMs = retentionMs
	f.topics[name] = info
	return nil
}

func (f *FakeManager) IsRetentionBelowThreshold(ctx context.Context, name string, thresholdMs int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	info, exists := f.topics[name]
	if !exists {
		return false, verrors.New(verrors.KindNotFound, "IsRetentionBelowThreshold", "topic not found: "+name)
	}
	return info.RetentionMs <= thresholdMs, nil
}

func (f *FakeManager) DeleteTopic(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, exists := f.topics[name]; !exists {
		return verrors.New(verrors.KindNotFound, "DeleteTopic", "topic not found: "+name)
	}
	delete(f.topics, name)
	return nil
}

func (f *FakeManager) Close() error { return nil }
