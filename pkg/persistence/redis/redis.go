package redis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/Layr-Labs/eigenx-payouts-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/types"
)

// Key prefixes for namespacing in Redis
const (
	keyPrefixSnapshot    = "snapshot:"
	keyPrefixRoot        = "root:"
	keySchemaVersion     = "metadata:schema_version"
	currentSchemaVersion = "v1"

	// Redis has no prefix iteration, listing goes through this set of ids
	keySetSnapshots = "snapshots:index"

	maxWatchRetries = 16
	opTimeout       = 5 * time.Second
)

// RedisPersistence stores snapshot tasks in Redis so several API replicas can share them.
// The PENDING -> terminal transition uses WATCH/MULTI, so exactly one replica completes a task.
type RedisPersistence struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string
	mu        sync.RWMutex
	closed    bool

	// beforeDeleteCommit runs inside DeleteSnapshot after the reads and before EXEC
	beforeDeleteCommit func()
}

var _ persistence.ISnapshotPersistence = (*RedisPersistence)(nil)

// RedisConfig holds the configuration for connecting to Redis
type RedisConfig struct {
	// Address is the Redis server address (host:port)
	Address string
	// Password is the optional Redis password
	Password string
	// DB is the Redis database number
	DB int
	// KeyPrefix is prepended to every key, e.g. "payouts:" gives "payouts:snapshot:<id>"
	KeyPrefix string
}

// NewRedisPersistence connects to Redis and validates the schema version.
func NewRedisPersistence(cfg *RedisConfig, logger *zap.Logger) (*RedisPersistence, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	rp := &RedisPersistence{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
	}

	if err := rp.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Sugar().Infow("Redis snapshot persistence initialized", "address", cfg.Address, "db", cfg.DB, "key_prefix", cfg.KeyPrefix)

	return rp, nil
}

func (r *RedisPersistence) prefixKey(key string) string {
	return r.keyPrefix + key
}

func (r *RedisPersistence) snapshotKey(id string) string {
	return r.prefixKey(keyPrefixSnapshot + id)
}

func (r *RedisPersistence) rootKey(key string) string {
	return r.prefixKey(keyPrefixRoot + key)
}

func (r *RedisPersistence) initSchema(ctx context.Context) error {
	schemaKey := r.prefixKey(keySchemaVersion)

	existingVersion, err := r.client.Get(ctx, schemaKey).Result()
	if errors.Is(err, redis.Nil) {
		return r.client.Set(ctx, schemaKey, currentSchemaVersion, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}
	if existingVersion != currentSchemaVersion {
		return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
	}
	return nil
}

// watch runs fn under WATCH on keys, replaying it when another client touched them first
func (r *RedisPersistence) watch(ctx context.Context, fn func(tx *redis.Tx) error, keys ...string) error {
	var err error
	for attempt := 0; attempt < maxWatchRetries; attempt++ {
		err = r.client.Watch(ctx, fn, keys...)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
	}
	return fmt.Errorf("transaction kept failing after %d attempts: %w", maxWatchRetries, err)
}

// reader is the part of the command set shared by *redis.Client and *redis.Tx that reads use
type reader interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	MGet(ctx context.Context, keys ...string) *redis.SliceCmd
	SMembers(ctx context.Context, key string) *redis.StringSliceCmd
	SRem(ctx context.Context, key string, members ...interface{}) *redis.IntCmd
}

func getSnapshot(ctx context.Context, c reader, key string) (*types.Snapshot, error) {
	data, err := c.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return persistence.UnmarshalSnapshot(data)
}

// SaveSnapshot persists a new snapshot and adds it to the index set
func (r *RedisPersistence) SaveSnapshot(snapshot *types.Snapshot) error {
	if err := persistence.ValidateNew(snapshot); err != nil {
		return err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	data, err := persistence.MarshalSnapshot(snapshot)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	key := r.snapshotKey(snapshot.ID)
	return r.watch(ctx, func(tx *redis.Tx) error {
		n, err := tx.Exists(ctx, key).Result()
		if err != nil {
			return fmt.Errorf("failed to check snapshot %s: %w", snapshot.ID, err)
		}
		if n > 0 {
			return fmt.Errorf("%w: %s", persistence.ErrSnapshotExists, snapshot.ID)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			pipe.SAdd(ctx, r.prefixKey(keySetSnapshots), snapshot.ID)
			if rk := persistence.RootKeyFor(snapshot); rk != "" {
				pipe.SetNX(ctx, r.rootKey(rk), snapshot.ID, 0)
			}
			return nil
		})
		return err
	}, key)
}

// LoadSnapshot retrieves a snapshot by id
func (r *RedisPersistence) LoadSnapshot(id string) (*types.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	return getSnapshot(ctx, r.client, r.snapshotKey(id))
}

// ListSnapshots loads every indexed snapshot with MGET and filters in process
func (r *RedisPersistence) ListSnapshots(filter *types.SnapshotFilter) ([]*types.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	all, err := r.loadAll(ctx, r.client)
	if err != nil {
		return nil, err
	}

	snapshots := make([]*types.Snapshot, 0, len(all))
	for _, s := range all {
		if filter.Matches(s) {
			snapshots = append(snapshots, s)
		}
	}
	persistence.SortSnapshots(snapshots)
	return snapshots, nil
}

func (r *RedisPersistence) loadAll(ctx context.Context, c reader) ([]*types.Snapshot, error) {
	indexKey := r.prefixKey(keySetSnapshots)

	ids, err := c.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshot ids: %w", err)
	}
	if len(ids) == 0 {
		return []*types.Snapshot{}, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.snapshotKey(id)
	}

	values, err := c.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch snapshots: %w", err)
	}

	snapshots := make([]*types.Snapshot, 0, len(values))
	for i, val := range values {
		if val == nil {
			// Key was in index but doesn't exist - clean up index
			c.SRem(ctx, indexKey, ids[i])
			continue
		}
		data, ok := val.(string)
		if !ok {
			r.logger.Sugar().Warnw("Unexpected value type for Snapshot", "key", keys[i])
			continue
		}
		s, err := persistence.UnmarshalSnapshot([]byte(data))
		if err != nil {
			r.logger.Sugar().Warnw("Failed to unmarshal Snapshot, skipping", "key", keys[i], "error", err)
			continue
		}
		snapshots = append(snapshots, s)
	}
	return snapshots, nil
}

// CompleteSnapshot moves a PENDING snapshot to its terminal state under WATCH
func (r *RedisPersistence) CompleteSnapshot(id string, completion *persistence.Completion) (*types.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	key := r.snapshotKey(id)
	var next *types.Snapshot
	err := r.watch(ctx, func(tx *redis.Tx) error {
		current, err := getSnapshot(ctx, tx, key)
		if err != nil {
			return err
		}
		if current == nil {
			return fmt.Errorf("%w: %s", persistence.ErrSnapshotNotFound, id)
		}
		next, err = persistence.ApplyCompletion(current, completion)
		if err != nil {
			return err
		}
		data, err := persistence.MarshalSnapshot(next)
		if err != nil {
			return err
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			if rk := persistence.RootKeyFor(next); rk != "" {
				pipe.SetNX(ctx, r.rootKey(rk), id, 0)
			}
			return nil
		})
		return err
	}, key)
	if err != nil {
		return nil, err
	}
	return next, nil
}

// LoadSnapshotByRoot resolves the root index
func (r *RedisPersistence) LoadSnapshotByRoot(chainId uint64, assetAddress string, rootHash string) (*types.Snapshot, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	id, err := r.client.Get(ctx, r.rootKey(persistence.RootKey(chainId, assetAddress, rootHash))).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read root index: %w", err)
	}
	return getSnapshot(ctx, r.client, r.snapshotKey(id))
}

// DeleteSnapshot removes a snapshot and repoints its root index entry when another snapshot
// produced the same tree
func (r *RedisPersistence) DeleteSnapshot(id string) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	key := r.snapshotKey(id)
	return r.watch(ctx, func(tx *redis.Tx) error {
		s, err := getSnapshot(ctx, tx, key)
		if err != nil {
			return err
		}
		if s == nil {
			_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
				pipe.SRem(ctx, r.prefixKey(keySetSnapshots), id)
				return nil
			})
			return err
		}

		rk := persistence.RootKeyFor(s)
		indexed := ""
		replacement := ""
		if rk != "" {
			// a concurrent delete or completion touching the index or a candidate aborts EXEC
			setKey := r.prefixKey(keySetSnapshots)
			if err := tx.Watch(ctx, r.rootKey(rk), setKey).Err(); err != nil {
				return fmt.Errorf("failed to watch root index: %w", err)
			}
			indexed, err = tx.Get(ctx, r.rootKey(rk)).Result()
			if err != nil && !errors.Is(err, redis.Nil) {
				return fmt.Errorf("failed to read root index: %w", err)
			}
			if indexed == id {
				members, err := tx.SMembers(ctx, setKey).Result()
				if err != nil {
					return fmt.Errorf("failed to list snapshots: %w", err)
				}
				if len(members) > 0 {
					keys := make([]string, 0, len(members))
					for _, m := range members {
						keys = append(keys, r.snapshotKey(m))
					}
					if err := tx.Watch(ctx, keys...).Err(); err != nil {
						return fmt.Errorf("failed to watch snapshots: %w", err)
					}
				}
				all, err := r.loadAll(ctx, tx)
				if err != nil {
					return err
				}
				for _, other := range all {
					if other.ID != id && persistence.RootKeyFor(other) == rk {
						replacement = other.ID
						break
					}
				}
			}
		}

		if r.beforeDeleteCommit != nil {
			r.beforeDeleteCommit()
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.SRem(ctx, r.prefixKey(keySetSnapshots), id)
			if rk != "" && indexed == id {
				if replacement != "" {
					pipe.Set(ctx, r.rootKey(rk), replacement, 0)
				} else {
					pipe.Del(ctx, r.rootKey(rk))
				}
			}
			return nil
		})
		return err
	}, key)
}

// Close closes the Redis client. Idempotent.
func (r *RedisPersistence) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed {
		return nil
	}
	r.closed = true

	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	r.logger.Sugar().Info("Redis snapshot persistence closed")
	return nil
}

// HealthCheck pings Redis and reads the schema version key
func (r *RedisPersistence) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), opTimeout)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	if err := r.client.Get(ctx, r.prefixKey(keySchemaVersion)).Err(); err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	return nil
}
