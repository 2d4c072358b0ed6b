package model

import "fmt"

// TopicInfo is the Topic Manager's view of one message-bus topic
// (spec.md §4.3).
type TopicInfo struct {
	Name        string
	Partitions  int32
	Replication int16
	RetentionMs int64
}

// VersionTopicName returns the wire name of a version's push topic
// (spec.md §6: "{store}_v{n}").
func VersionTopicName(storeName string, version int) string {
	return fmt.Sprintf("%s_v%d", storeName, version)
}

// RealTimeTopicName returns the wire name of a hybrid store's streaming
// topic (spec.md §6: "{store}_rt").
func RealTimeTopicName(storeName string) string {
	return storeName + "_rt"
}

// ReservedSystemStorePrefix marks system-store topics (spec.md §6).
const ReservedSystemStorePrefix = "venice_system_store_"
