package metadatastore

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/veniceio/venice-controller/internal/model"
)

// PostgresMetadataStore implements MetadataStore over PostgreSQL, grounded
// on the teacher's PostgresMetadataStore
// (coordinator/internal/store/postgres_metadata_store.go).
type PostgresMetadataStore struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

// NewPostgresMetadataStore opens a pool and verifies connectivity, exactly
// as the teacher's constructor does.
func NewPostgresMetadataStore(
	ctx context.Context,
	host string,
	port int,
	database, user, password string,
	maxConns, minConns int,
	logger *zap.Logger,
) (*PostgresMetadataStore, error) {
	connString := fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s pool_max_conns=%d pool_min_conns=%d",
		host, port, database, user, password, maxConns, minConns,
	)

	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresMetadataStore{pool: pool, logger: logger}, nil
}

func (s *PostgresMetadataStore) GetStore(ctx context.Context, cluster, name string) (*model.Store, error) {
	const q = `
		SELECT name, owner, created_at, partition_count, current_version,
		       largest_used_version_number, enable_reads, enable_writes,
		       migrating, access_controlled, incremental_push_enabled,
		       router_cache_single_get, router_cache_batch_get, chunking_enabled,
		       compression_strategy, storage_quota_bytes, read_quota_cu,
		       batch_get_limit, num_versions_to_preserve, persistence_type,
		       routing_strategy, read_strategy, offline_push_strategy,
		       hybrid_rewind_seconds, hybrid_offset_lag_threshold, row_version
		FROM stores WHERE cluster = $1 AND name = $2
	`
	st := &model.Store{}
	var hybridRewind, hybridLag *int64
	err := s.pool.QueryRow(ctx, q, cluster, name).Scan(
		&st.Name, &st.Owner, &st.CreatedAt, &st.PartitionCount, &st.CurrentVersion,
		&st.LargestUsedVersionNumber, &st.EnableReads, &st.EnableWrites,
		&st.Migrating, &st.AccessControlled, &st.IncrementalPushEnabled,
		&st.RouterCacheSingleGet, &st.RouterCacheBatchGet, &st.ChunkingEnabled,
		&st.CompressionStrategy, &st.StorageQuotaBytes, &st.ReadQuotaCU,
		&st.BatchGetLimit, &st.NumVersionsToPreserve, &st.Persistence,
		&st.Routing, &st.Read, &st.OfflinePush,
		&hybridRewind, &hybridLag, &st.RowVersion,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get store: %w", err)
	}
	if hybridRewind != nil && hybridLag != nil {
		st.Hybrid = &model.HybridConfig{RewindSeconds: *hybridRewind, OffsetLagThreshold: *hybridLag}
	}

	versions, err := s.listVersions(ctx, cluster, name)
	if err != nil {
		return nil, err
	}
	st.Versions = versions
	return st, nil
}

func (s *PostgresMetadataStore) listVersions(ctx context.Context, cluster, storeName string) ([]*model.Version, error) {
	const q = `
		SELECT number, push_job_id, status, partition_count, replication_factor, resource_name
		FROM store_versions WHERE cluster = $1 AND store_name = $2 ORDER BY number
	`
	rows, err := s.pool.Query(ctx, q, cluster, storeName)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	versions := make([]*model.Version, 0)
	for rows.Next() {
		v := &model.Version{StoreName: storeName}
		if err := rows.Scan(&v.Number, &v.PushJobID, &v.Status, &v.PartitionCount, &v.ReplicationFactor, &v.ResourceName); err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		versions = append(versions, v)
	}
	return versions, rows.Err()
}

func (s *PostgresMetadataStore) ListStores(ctx context.Context, cluster string) ([]*model.Store, error) {
	const q = `SELECT name FROM stores WHERE cluster = $1 ORDER BY name`
	rows, err := s.pool.Query(ctx, q, cluster)
	if err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}
	names := make([]string, 0)
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, err
		}
		names = append(names, name)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	stores := make([]*model.Store, 0, len(names))
	for _, name := range names {
		st, err := s.GetStore(ctx, cluster, name)
		if err != nil {
			return nil, err
		}
		stores = append(stores, st)
	}
	return stores, nil
}

func (s *PostgresMetadataStore) CreateStore(ctx context.Context, cluster string, st *model.Store) error {
	const q = `
		INSERT INTO stores (
			cluster, name, owner, created_at, partition_count, current_version,
			largest_used_version_number, enable_reads, enable_writes, migrating,
			access_controlled, incremental_push_enabled, router_cache_single_get,
			router_cache_batch_get, chunking_enabled, compression_strategy,
			storage_quota_bytes, read_quota_cu, batch_get_limit,
			num_versions_to_preserve, persistence_type, routing_strategy,
			read_strategy, offline_push_strategy, hybrid_rewind_seconds,
			hybrid_offset_lag_threshold, row_version
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15,
			$16, $17, $18, $19, $20, $21, $22, $23, $24, $25, $26, 1
		)
	`
	var hybridRewind, hybridLag *int64
	if st.Hybrid != nil {
		hybridRewind, hybridLag = &st.Hybrid.RewindSeconds, &st.Hybrid.OffsetLagThreshold
	}
	_, err := s.pool.Exec(ctx, q,
		cluster, st.Name, st.Owner, st.CreatedAt, st.PartitionCount, st.CurrentVersion,
		st.LargestUsedVersionNumber, st.EnableReads, st.EnableWrites, st.Migrating,
		st.AccessControlled, st.IncrementalPushEnabled, st.RouterCacheSingleGet,
		st.RouterCacheBatchGet, st.ChunkingEnabled, st.CompressionStrategy,
		st.StorageQuotaBytes, st.ReadQuotaCU, st.BatchGetLimit,
		st.NumVersionsToPreserve, st.Persistence, st.Routing,
		st.Read, st.OfflinePush, hybridRewind, hybridLag,
	)
	if err != nil {
		return fmt.Errorf("create store: %w", err)
	}
	st.RowVersion = 1
	return nil
}

// UpdateStore persists st's full state and its version list, gated on
// RowVersion in the teacher's compare-and-swap idiom (row_version = $N
// WHERE row_version = $N-1), then bumps RowVersion on the in-memory copy.
func (s *PostgresMetadataStore) UpdateStore(ctx context.Context, cluster string, st *model.Store) error {
	const q = `
		UPDATE stores SET
			owner = $3, partition_count = $4, current_version = $5,
			largest_used_version_number = $6, enable_reads = $7, enable_writes = $8,
			migrating = $9, access_controlled = $10, incremental_push_enabled = $11,
			router_cache_single_get = $12, router_cache_batch_get = $13,
			chunking_enabled = $14, compression_strategy = $15, storage_quota_bytes = $16,
			read_quota_cu = $17, batch_get_limit = $18, num_versions_to_preserve = $19,
			persistence_type = $20, routing_strategy = $21, read_strategy = $22,
			offline_push_strategy = $23, hybrid_rewind_seconds = $24,
			hybrid_offset_lag_threshold = $25, row_version = row_version + 1
		WHERE cluster = $1 AND name = $2 AND row_version = $26
	`
	var hybridRewind, hybridLag *int64
	if st.Hybrid != nil {
		hybridRewind, hybridLag = &st.Hybrid.RewindSeconds, &st.Hybrid.OffsetLagThreshold
	}
	tag, err := s.pool.Exec(ctx, q,
		cluster, st.Name, st.Owner, st.PartitionCount, st.CurrentVersion,
		st.LargestUsedVersionNumber, st.EnableReads, st.EnableWrites, st.Migrating,
		st.AccessControlled, st.IncrementalPushEnabled, st.RouterCacheSingleGet,
		st.RouterCacheBatchGet, st.ChunkingEnabled, st.CompressionStrategy,
		st.StorageQuotaBytes, st.ReadQuotaCU, st.BatchGetLimit,
		st.NumVersionsToPreserve, st.Persistence, st.Routing,
		st.Read, st.OfflinePush, hybridRewind, hybridLag, st.RowVersion,
	)
	if err != nil {
		return fmt.Errorf("update store: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	if err := s.replaceVersions(ctx, cluster, st); err != nil {
		return err
	}
	st.RowVersion++
	return nil
}

// replaceVersions rewrites a store's version rows to match st.Versions.
// Versions are append-mostly and status transitions are idempotent, so a
// delete-then-reinsert inside the same statement batch is simpler than
// diffing and carries no data-loss risk versus the in-memory struct it
// mirrors.
func (s *PostgresMetadataStore) replaceVersions(ctx context.Context, cluster string, st *model.Store) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin version replace: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM store_versions WHERE cluster = $1 AND store_name = $2`, cluster, st.Name); err != nil {
		return fmt.Errorf("clear versions: %w", err)
	}
	for _, v := range st.Versions {
		_, err := tx.Exec(ctx, `
			INSERT INTO store_versions (cluster, store_name, number, push_job_id, status, partition_count, replication_factor, resource_name)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, cluster, st.Name, v.Number, v.PushJobID, v.Status, v.PartitionCount, v.ReplicationFactor, v.ResourceName)
		if err != nil {
			return fmt.Errorf("insert version %d: %w", v.Number, err)
		}
	}
	return tx.Commit(ctx)
}

func (s *PostgresMetadataStore) DeleteStore(ctx context.Context, cluster, name string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM stores WHERE cluster = $1 AND name = $2`, cluster, name)
	if err != nil {
		return fmt.Errorf("delete store: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresMetadataStore) GetStoreConfig(ctx context.Context, storeName string) (*model.StoreConfig, error) {
	const q = `SELECT store_name, cluster, deleting, migration_src, migration_dest, row_version FROM store_configs WHERE store_name = $1`
	cfg := &model.StoreConfig{}
	err := s.pool.QueryRow(ctx, q, storeName).Scan(&cfg.StoreName, &cfg.Cluster, &cfg.Deleting, &cfg.MigrationSrc, &cfg.MigrationDest, &cfg.RowVersion)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get store config: %w", err)
	}
	return cfg, nil
}

// PutStoreConfig upserts the discovery row, CAS-gated on RowVersion for an
// existing row, insert-on-absence otherwise.
func (s *PostgresMetadataStore) PutStoreConfig(ctx context.Context, cfg *model.StoreConfig) error {
	const q = `
		INSERT INTO store_configs (store_name, cluster, deleting, migration_src, migration_dest, row_version)
		VALUES ($1, $2, $3, $4, $5, 1)
		ON CONFLICT (store_name) DO UPDATE SET
			cluster = $2, deleting = $3, migration_src = $4, migration_dest = $5,
			row_version = store_configs.row_version + 1
		WHERE store_configs.row_version = $6
	`
	tag, err := s.pool.Exec(ctx, q, cfg.StoreName, cfg.Cluster, cfg.Deleting, cfg.MigrationSrc, cfg.MigrationDest, cfg.RowVersion)
	if err != nil {
		return fmt.Errorf("put store config: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrVersionConflict
	}
	cfg.RowVersion++
	return nil
}

func (s *PostgresMetadataStore) DeleteStoreConfig(ctx context.Context, storeName string) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM store_configs WHERE store_name = $1`, storeName)
	if err != nil {
		return fmt.Errorf("delete store config: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ListMigratingStoreConfigs returns every StoreConfig with a non-empty
// migration destination, the Store Migration Monitor's per-tick work list
// (spec.md §4.5.8).
func (s *PostgresMetadataStore) ListMigratingStoreConfigs(ctx context.Context) ([]*model.StoreConfig, error) {
	const q = `
		SELECT store_name, cluster, deleting, migration_src, migration_dest, row_version
		FROM store_configs WHERE migration_dest != '' AND migration_src != ''
	`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list migrating store configs: %w", err)
	}
	defer rows.Close()

	var out []*model.StoreConfig
	for rows.Next() {
		cfg := &model.StoreConfig{}
		if err := rows.Scan(&cfg.StoreName, &cfg.Cluster, &cfg.Deleting, &cfg.MigrationSrc, &cfg.MigrationDest, &cfg.RowVersion); err != nil {
			return nil, fmt.Errorf("scan store config: %w", err)
		}
		out = append(out, cfg)
	}
	return out, rows.Err()
}

func (s *PostgresMetadataStore) GetGraveyardEntry(ctx context.Context, cluster, storeName string) (*model.GraveyardEntry, error) {
	const q = `SELECT store_name, largest_used_version_number FROM graveyard WHERE cluster = $1 AND store_name = $2`
	entry := &model.GraveyardEntry{}
	err := s.pool.QueryRow(ctx, q, cluster, storeName).Scan(&entry.StoreName, &entry.LargestUsedVersionNumber)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get graveyard entry: %w", err)
	}
	return entry, nil
}

// PutGraveyardEntry upserts the floor, taking the max of the existing and
// incoming largest-used-version-number so a store recreated under the same
// name can never regress it (spec.md §4.1 invariant).
func (s *PostgresMetadataStore) PutGraveyardEntry(ctx context.Context, cluster string, entry *model.GraveyardEntry) error {
	const q = `
		INSERT INTO graveyard (cluster, store_name, largest_used_version_number, row_version)
		VALUES ($1, $2, $3, 1)
		ON CONFLICT (cluster, store_name) DO UPDATE SET
			largest_used_version_number = GREATEST(graveyard.largest_used_version_number, $3),
			row_version = graveyard.row_version + 1
	`
	_, err := s.pool.Exec(ctx, q, cluster, entry.StoreName, entry.LargestUsedVersionNumber)
	if err != nil {
		return fmt.Errorf("put graveyard entry: %w", err)
	}
	return nil
}

func (s *PostgresMetadataStore) GetKeySchema(ctx context.Context, cluster, storeName string) (int, string, error) {
	const q = `SELECT schema_id, schema_text FROM key_schemas WHERE cluster = $1 AND store_name = $2`
	var id int
	var text string
	err := s.pool.QueryRow(ctx, q, cluster, storeName).Scan(&id, &text)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, "", ErrNotFound
		}
		return 0, "", fmt.Errorf("get key schema: %w", err)
	}
	return id, text, nil
}

func (s *PostgresMetadataStore) PutKeySchema(ctx context.Context, cluster, storeName, schemaText string) error {
	const q = `
		INSERT INTO key_schemas (cluster, store_name, schema_id, schema_text)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (cluster, store_name) DO NOTHING
	`
	_, err := s.pool.Exec(ctx, q, cluster, storeName, model.KeySchemaID, schemaText)
	if err != nil {
		return fmt.Errorf("put key schema: %w", err)
	}
	return nil
}

func (s *PostgresMetadataStore) ListValueSchemas(ctx context.Context, cluster, storeName string) (map[int]string, error) {
	const q = `SELECT schema_id, schema_text FROM value_schemas WHERE cluster = $1 AND store_name = $2 ORDER BY schema_id`
	rows, err := s.pool.Query(ctx, q, cluster, storeName)
	if err != nil {
		return nil, fmt.Errorf("list value schemas: %w", err)
	}
	defer rows.Close()

	schemas := make(map[int]string)
	for rows.Next() {
		var id int
		var text string
		if err := rows.Scan(&id, &text); err != nil {
			return nil, err
		}
		schemas[id] = text
	}
	return schemas, rows.Err()
}

// AddValueSchema assigns the next sequential schema id for the store
// inside a transaction, mirroring the teacher's migration-id assignment
// pattern but with an explicit max+1 select instead of a sequence, since
// schema ids are scoped per store rather than global.
func (s *PostgresMetadataStore) AddValueSchema(ctx context.Context, cluster, storeName, schemaText string) (int, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin add value schema: %w", err)
	}
	defer tx.Rollback(ctx)

	var maxID int
	err = tx.QueryRow(ctx, `SELECT COALESCE(MAX(schema_id), 0) FROM value_schemas WHERE cluster = $1 AND store_name = $2`, cluster, storeName).Scan(&maxID)
	if err != nil {
		return 0, fmt.Errorf("select max schema id: %w", err)
	}
	nextID := maxID + 1

	_, err = tx.Exec(ctx, `
		INSERT INTO value_schemas (cluster, store_name, schema_id, schema_text) VALUES ($1, $2, $3, $4)
	`, cluster, storeName, nextID, schemaText)
	if err != nil {
		return 0, fmt.Errorf("insert value schema: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit add value schema: %w", err)
	}
	return nextID, nil
}

// PutValueSchemaAtID inserts schemaText under an explicit id, used by
// migrateStore (spec.md §4.5.8) to copy a store's schema history onto the
// destination cluster without renumbering it.
func (s *PostgresMetadataStore) PutValueSchemaAtID(ctx context.Context, cluster, storeName string, schemaID int, schemaText string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO value_schemas (cluster, store_name, schema_id, schema_text) VALUES ($1, $2, $3, $4)
		ON CONFLICT (cluster, store_name, schema_id) DO UPDATE SET schema_text = EXCLUDED.schema_text
	`, cluster, storeName, schemaID, schemaText)
	if err != nil {
		return fmt.Errorf("put value schema at id: %w", err)
	}
	return nil
}

// NextExecutionID atomically increments and returns the cluster's
// execution-id counter, grounded on the admin-channel sequencing described
// in original_source and implemented as a single upsert that increments
// the counter unconditionally (no RowVersion check).
func (s *PostgresMetadataStore) NextExecutionID(ctx context.Context, cluster string) (int64, error) {
	const q = `
		INSERT INTO execution_ids (cluster, next_id, row_version) VALUES ($1, 1, 1)
		ON CONFLICT (cluster) DO UPDATE SET
			next_id = execution_ids.next_id + 1,
			row_version = execution_ids.row_version + 1
		RETURNING next_id
	`
	var id int64
	if err := s.pool.QueryRow(ctx, q, cluster).Scan(&id); err != nil {
		return 0, fmt.Errorf("next execution id: %w", err)
	}
	return id, nil
}

func (s *PostgresMetadataStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresMetadataStore) Close() {
	s.pool.Close()
}
