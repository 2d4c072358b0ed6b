// Package discovery resolves a store name to its authoritative cluster
// (spec.md §3 StoreConfig), grounded on the teacher's
// RedisIdempotencyStore (coordinator/internal/store/
// redis_idempotency_store.go): the same redis.NewClient + Ping-on-
// construct pattern, repurposed from caching idempotent admin responses
// to caching discovery resolutions, and the teacher's TenantService
// cache-aside pattern (GetTenant: cache lookup, miss falls through to the
// metadata store, then populates the cache) for Resolve's control flow.
package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/veniceio/venice-controller/internal/metadatastore"
	"github.com/veniceio/venice-controller/internal/model"
)

// Resolver answers "what cluster owns this store" with a Redis read-
// through cache in front of internal/metadatastore.
type Resolver struct {
	client *redis.Client
	store  metadatastore.MetadataStore
	ttl    time.Duration
	logger *zap.Logger
}

func NewResolver(host string, port int, password string, db int, ttl time.Duration, store metadatastore.MetadataStore, logger *zap.Logger) (*Resolver, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	return &Resolver{client: client, store: store, ttl: ttl, logger: logger}, nil
}

// Resolve returns the StoreConfig for storeName, trying the cache first
// and falling through to the metadata store on a miss (spec.md §4.1
// discovery).
func (r *Resolver) Resolve(ctx context.Context, storeName string) (*model.StoreConfig, error) {
	key := cacheKey(storeName)

	if cached, err := r.client.Get(ctx, key).Bytes(); err == nil {
		var cfg model.StoreConfig
		if err := json.Unmarshal(cached, &cfg); err == nil {
			r.logger.Debug("discovery cache hit", zap.String("store", storeName))
			return &cfg, nil
		}
	}

	r.logger.Debug("discovery cache miss", zap.String("store", storeName))
	cfg, err := r.store.GetStoreConfig(ctx, storeName)
	if err != nil {
		return nil, fmt.Errorf("resolve store cluster: %w", err)
	}

	if data, err := json.Marshal(cfg); err == nil {
		if err := r.client.Set(ctx, key, data, r.ttl).Err(); err != nil {
			r.logger.Warn("failed to cache discovery resolution", zap.String("store", storeName), zap.Error(err))
		}
	}
	return cfg, nil
}

// Invalidate removes a store's cached resolution; called whenever the
// lifecycle engine writes a new StoreConfig (creation, migration, or
// deletion) so the cache never serves a stale cluster mapping.
func (r *Resolver) Invalidate(ctx context.Context, storeName string) {
	if err := r.client.Del(ctx, cacheKey(storeName)).Err(); err != nil {
		r.logger.Warn("failed to invalidate discovery cache", zap.String("store", storeName), zap.Error(err))
	}
}

func (r *Resolver) Close() error {
	return r.client.Close()
}

// Ping checks the Redis connection backing the discovery cache, used by
// internal/health's readiness probe.
func (r *Resolver) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func cacheKey(storeName string) string {
	return "discovery:" + storeName
}
