// Package model holds the plain data types that describe a managed store's
// state: the Store aggregate, its Versions, discovery rows, and the
// adapter-facing views of resources and topics. Nothing in this package
// talks to a database, a message bus, or a cluster manager — it is pure
// data plus invariant helpers.
package model

import "time"

// NonExistingVersion is the sentinel currentVersion for a store with no
// push yet.
const NonExistingVersion = 0

// UnsetVersionNumber tells addVersion to compute the next version number
// itself rather than honor a caller-supplied hint.
const UnsetVersionNumber = -1

// IgnoreVersion tells deleteStore to skip the largestUsedVersionNumber
// regression check.
const IgnoreVersion = -1

// KeySchemaID is the fixed schema id every store's key schema is registered
// under; key schemas never evolve, so there is only ever one.
const KeySchemaID = 1

// PersistenceType selects the storage engine a version's data lands in.
// Out of scope to implement (the engine itself lives outside this module),
// but the store metadata still has to carry the choice through.
type PersistenceType string

const (
	PersistenceRocksDB  PersistenceType = "ROCKS_DB"
	PersistenceInMemory PersistenceType = "IN_MEMORY"
)

// RoutingStrategy selects how a client's router picks a partition for a key.
type RoutingStrategy string

const (
	RoutingConsistentHash RoutingStrategy = "CONSISTENT_HASH"
)

// ReadStrategy selects how a router fans a read out across replicas.
type ReadStrategy string

const (
	ReadStrategyAny        ReadStrategy = "ANY_OF_ONLINE"
	ReadStrategyRouterCache ReadStrategy = "ROUTER_CACHE"
)

// OfflinePushStrategy selects how a batch push's completion is judged.
type OfflinePushStrategy string

const (
	OfflinePushWaitAllReplicas      OfflinePushStrategy = "WAIT_ALL_REPLICAS"
	OfflinePushWaitNMinusOneReplicas OfflinePushStrategy = "WAIT_N_MINUS_ONE_REPLICAS"
)

// HybridConfig marks a store as accepting a continuous real-time stream on
// top of its batch versions.
type HybridConfig struct {
	RewindSeconds      int64
	OffsetLagThreshold int64
}

// Store is the authoritative description of one store on one cluster. A
// Store handed out of the metadata store is always obtained via Clone; the
// lifecycle engine is the only code that may construct or mutate one in
// place, and only while holding the store's lock.
type Store struct {
	Name                     string
	Owner                    string
	CreatedAt                time.Time
	PartitionCount           int
	CurrentVersion           int
	LargestUsedVersionNumber int
	EnableReads              bool
	EnableWrites             bool
	Migrating                bool
	AccessControlled         bool
	IncrementalPushEnabled   bool
	RouterCacheSingleGet     bool
	RouterCacheBatchGet      bool
	ChunkingEnabled          bool
	CompressionStrategy      string
	StorageQuotaBytes        int64
	ReadQuotaCU              int64
	BatchGetLimit            int
	NumVersionsToPreserve    int
	Persistence              PersistenceType
	Routing                  RoutingStrategy
	Read                     ReadStrategy
	OfflinePush              OfflinePushStrategy
	Hybrid                   *HybridConfig
	Versions                 []*Version

	// RowVersion is the optimistic-concurrency token the metadata store
	// hands back on read and requires on write (see
	// metadatastore.ErrVersionConflict).
	RowVersion int64
}

// StorageQuotaUnlimited is the sentinel for "no storage quota enforced".
const StorageQuotaUnlimited int64 = -1

// IsHybrid reports whether the store has an active hybrid configuration.
func (s *Store) IsHybrid() bool {
	return s.Hybrid != nil
}

// Clone returns a deep copy so callers can never mutate the engine's
// in-memory state through a handed-out reference.
func (s *Store) Clone() *Store {
	if s == nil {
		return nil
	}
	clone := *s
	if s.Hybrid != nil {
		h := *s.Hybrid
		clone.Hybrid = &h
	}
	clone.Versions = make([]*Version, len(s.Versions))
	for i, v := range s.Versions {
		clone.Versions[i] = v.Clone()
	}
	return &clone
}

// VersionByNumber returns the Version with the given number, or nil.
func (s *Store) VersionByNumber(number int) *Version {
	for _, v := range s.Versions {
		if v.Number == number {
			return v
		}
	}
	return nil
}

// VersionByPushJobID returns the Version created for the given pushJobId,
// or nil. Backs incrementVersionIdempotent's at-most-once guarantee.
func (s *Store) VersionByPushJobID(pushJobID string) *Version {
	for _, v := range s.Versions {
		if v.PushJobID == pushJobID {
			return v
		}
	}
	return nil
}

// RemoveVersion deletes the Version with the given number from the store,
// reporting whether one was found.
func (s *Store) RemoveVersion(number int) bool {
	for i, v := range s.Versions {
		if v.Number == number {
			s.Versions = append(s.Versions[:i], s.Versions[i+1:]...)
			return true
		}
	}
	return false
}

// MaxVersionNumber returns the largest version number present, or 0 if the
// store has no versions yet.
func (s *Store) MaxVersionNumber() int {
	max := 0
	for _, v := range s.Versions {
		if v.Number > max {
			max = v.Number
		}
	}
	return max
}

// RetrieveVersionsToDelete implements the store.retrieveVersionsToDelete(minToPreserve)
// rule from spec.md §4.5.6: keep currentVersion, the minToPreserve most
// recent ONLINE versions, and any STARTED version; everything else is
// eligible for retirement.
func (s *Store) RetrieveVersionsToDelete(minToPreserve int) []*Version {
	keep := map[int]bool{s.CurrentVersion: true}

	online := make([]*Version, 0, len(s.Versions))
	for _, v := range s.Versions {
		switch v.Status {
		case VersionStatusStarted:
			keep[v.Number] = true
		case VersionStatusOnline:
			online = append(online, v)
		}
	}
	// online versions are appended in store order, which is creation
	// order, so the tail is the most recent.
	start := len(online) - minToPreserve
	if start < 0 {
		start = 0
	}
	for _, v := range online[start:] {
		keep[v.Number] = true
	}

	toDelete := make([]*Version, 0)
	for _, v := range s.Versions {
		if !keep[v.Number] {
			toDelete = append(toDelete, v)
		}
	}
	return toDelete
}
