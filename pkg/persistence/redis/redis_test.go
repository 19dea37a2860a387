package redis

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/eigenx-payouts-go/pkg/logger"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/persistence/persistencetest"
)

// getTestRedisAddress returns REDIS_TEST_ADDRESS, defaulting to localhost:6379
func getTestRedisAddress() string {
	if addr := os.Getenv("REDIS_TEST_ADDRESS"); addr != "" {
		return addr
	}
	return "localhost:6379"
}

// requireRedis returns a store namespaced to this test, or skips when Redis is not reachable
func requireRedis(t *testing.T) *RedisPersistence {
	t.Helper()

	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	cfg := &RedisConfig{
		Address:   getTestRedisAddress(),
		DB:        15, // dedicated test database
		KeyPrefix: "test:" + uuid.NewString() + ":",
	}

	rp, err := NewRedisPersistence(cfg, testLogger)
	if err != nil {
		t.Skipf("Redis not available at %s: %v", cfg.Address, err)
		return nil
	}

	t.Cleanup(func() { cleanupRedis(cfg) })
	return rp
}

// cleanupRedis deletes every key under the test's prefix with a fresh client, since the store
// under test may already be closed
func cleanupRedis(cfg *RedisConfig) {
	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	rp, err := NewRedisPersistence(cfg, testLogger)
	if err != nil {
		return
	}
	defer func() { _ = rp.Close() }()

	ctx := context.Background()
	iter := rp.client.Scan(ctx, 0, cfg.KeyPrefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		rp.client.Del(ctx, iter.Val())
	}
}

func TestRedisPersistence(t *testing.T) {
	persistencetest.RunSuite(t, func(t *testing.T) persistence.ISnapshotPersistence {
		return requireRedis(t)
	})
}

func TestNewRedisPersistence_InvalidConfig(t *testing.T) {
	testLogger, _ := logger.NewLogger(&logger.LoggerConfig{Debug: false})

	_, err := NewRedisPersistence(nil, testLogger)
	assert.Error(t, err)

	_, err = NewRedisPersistence(&RedisConfig{}, testLogger)
	assert.Error(t, err)
}

func TestRedisPersistence_IndexCleanup(t *testing.T) {
	rp := requireRedis(t)
	defer func() { _ = rp.Close() }()

	require.NoError(t, rp.SaveSnapshot(persistencetest.NewPendingSnapshot("kept", 1)))
	require.NoError(t, rp.SaveSnapshot(persistencetest.NewPendingSnapshot("dangling", 2)))

	// Simulate a key that expired or was removed out of band
	ctx := context.Background()
	require.NoError(t, rp.client.Del(ctx, rp.snapshotKey("dangling")).Err())

	all, err := rp.ListSnapshots(nil)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "kept", all[0].ID)

	members, err := rp.client.SMembers(ctx, rp.prefixKey(keySetSnapshots)).Result()
	require.NoError(t, err)
	assert.Equal(t, []string{"kept"}, members)
}

func TestRedisPersistence_KeyPrefix(t *testing.T) {
	rp := requireRedis(t)
	defer func() { _ = rp.Close() }()

	require.NoError(t, rp.SaveSnapshot(persistencetest.NewPendingSnapshot("prefixed", 1)))

	n, err := rp.client.Exists(context.Background(), rp.keyPrefix+"snapshot:prefixed").Result()
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)
}

func TestRedisPersistence_DeleteRetriesOnConcurrentDelete(t *testing.T) {
	rp := requireRedis(t)
	defer func() { _ = rp.Close() }()

	for _, id := range []string{"first", "second"} {
		require.NoError(t, rp.SaveSnapshot(persistencetest.NewPendingSnapshot(id, 1)))
		_, err := rp.CompleteSnapshot(id, persistence.Succeeded(persistencetest.NewResult("0xshared"), 2))
		require.NoError(t, err)
	}
	indexed, err := rp.LoadSnapshotByRoot(11155111, "0x00000000000000000000000000000000000000aa", "0xshared")
	require.NoError(t, err)
	require.NotNil(t, indexed)
	other := "first"
	if indexed.ID == other {
		other = "second"
	}

	// the replacement disappears between the first attempt's reads and its EXEC
	attempts := 0
	rp.beforeDeleteCommit = func() {
		attempts++
		if attempts == 1 {
			rp.beforeDeleteCommit = nil
			require.NoError(t, rp.DeleteSnapshot(other))
			rp.beforeDeleteCommit = func() { attempts++ }
		}
	}
	require.NoError(t, rp.DeleteSnapshot(indexed.ID))
	assert.Equal(t, 2, attempts)

	rootKey := rp.rootKey(persistence.RootKey(11155111, "0x00000000000000000000000000000000000000aa", "0xshared"))
	n, err := rp.client.Exists(context.Background(), rootKey).Result()
	require.NoError(t, err)
	assert.Equal(t, int64(0), n)

	all, err := rp.ListSnapshots(nil)
	require.NoError(t, err)
	assert.Empty(t, all)
}
