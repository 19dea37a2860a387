// Package persistencetest holds the behavioral checks every ISnapshotPersistence backend must pass.
package persistencetest

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/eigenx-payouts-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/types"
)

// Factory returns an empty, open store. The suite closes it.
type Factory func(t *testing.T) persistence.ISnapshotPersistence

const (
	testAsset = "0x00000000000000000000000000000000000000aa"
	testOwner = "0x00000000000000000000000000000000000000cc"
)

// NewPendingSnapshot returns a PENDING record for tests
func NewPendingSnapshot(id string, createdAt int64) *types.Snapshot {
	return &types.Snapshot{
		ID:                     id,
		Name:                   "snapshot " + id,
		ChainID:                11155111,
		AssetAddress:           testAsset,
		BlockNumber:            1000,
		IgnoredHolderAddresses: []string{"0x00000000000000000000000000000000000000bb"},
		Owner:                  testOwner,
		Status:                 types.SnapshotStatusPending,
		CreatedAt:              createdAt,
		UpdatedAt:              createdAt,
	}
}

// NewResult returns a successful result with the given root
func NewResult(root string) *types.SnapshotResult {
	return &types.SnapshotResult{
		TotalAssetAmount:   "300",
		MerkleRootHash:     root,
		MerkleTreeDepth:    1,
		MerkleTreeIpfsHash: "bafkrei" + root,
		HashFn:             "KECCAK_256",
		Holders: []types.HolderBalance{
			{Address: "0x0000000000000000000000000000000000000001", Balance: "100"},
			{Address: "0x0000000000000000000000000000000000000002", Balance: "200"},
		},
	}
}

// RunSuite runs the conformance tests against stores built by newStore
func RunSuite(t *testing.T, newStore Factory) {
	open := func(t *testing.T) persistence.ISnapshotPersistence {
		store := newStore(t)
		t.Cleanup(func() { _ = store.Close() })
		return store
	}

	t.Run("SaveAndLoad", func(t *testing.T) {
		store := open(t)
		original := NewPendingSnapshot("snap-1", 10)
		require.NoError(t, store.SaveSnapshot(original))

		loaded, err := store.LoadSnapshot("snap-1")
		require.NoError(t, err)
		require.NotNil(t, loaded)
		assert.Equal(t, original, loaded)
	})

	t.Run("LoadNotFound", func(t *testing.T) {
		store := open(t)
		loaded, err := store.LoadSnapshot("missing")
		require.NoError(t, err)
		assert.Nil(t, loaded)
	})

	t.Run("SaveNil", func(t *testing.T) {
		store := open(t)
		assert.Error(t, store.SaveSnapshot(nil))
	})

	t.Run("SaveDuplicate", func(t *testing.T) {
		store := open(t)
		require.NoError(t, store.SaveSnapshot(NewPendingSnapshot("dup", 1)))
		err := store.SaveSnapshot(NewPendingSnapshot("dup", 2))
		assert.ErrorIs(t, err, persistence.ErrSnapshotExists)
	})

	t.Run("ReturnedRecordsAreCopies", func(t *testing.T) {
		store := open(t)
		original := NewPendingSnapshot("copy", 1)
		require.NoError(t, store.SaveSnapshot(original))
		original.Name = "mutated after save"

		loaded, err := store.LoadSnapshot("copy")
		require.NoError(t, err)
		loaded.IgnoredHolderAddresses[0] = "mutated after load"

		again, err := store.LoadSnapshot("copy")
		require.NoError(t, err)
		assert.Equal(t, "snapshot copy", again.Name)
		assert.Equal(t, "0x00000000000000000000000000000000000000bb", again.IgnoredHolderAddresses[0])
	})

	t.Run("ListSortedAndFiltered", func(t *testing.T) {
		store := open(t)
		a := NewPendingSnapshot("a", 30)
		b := NewPendingSnapshot("b", 10)
		c := NewPendingSnapshot("c", 20)
		c.ChainID = 1
		d := NewPendingSnapshot("d", 10)
		d.Owner = "0x00000000000000000000000000000000000000dd"
		for _, s := range []*types.Snapshot{a, b, c, d} {
			require.NoError(t, store.SaveSnapshot(s))
		}
		_, err := store.CompleteSnapshot("a", persistence.Failed(types.ErrCodeChainQuery, "rpc down", 40))
		require.NoError(t, err)

		all, err := store.ListSnapshots(nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "d", "c", "a"}, ids(all))

		byChain, err := store.ListSnapshots(&types.SnapshotFilter{ChainID: 11155111})
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "d", "a"}, ids(byChain))

		pending, err := store.ListSnapshots(&types.SnapshotFilter{Statuses: []types.SnapshotStatus{types.SnapshotStatusPending}})
		require.NoError(t, err)
		assert.Equal(t, []string{"b", "d", "c"}, ids(pending))

		byOwner, err := store.ListSnapshots(&types.SnapshotFilter{Owner: "0x00000000000000000000000000000000000000DD"})
		require.NoError(t, err)
		assert.Equal(t, []string{"d"}, ids(byOwner))
	})

	t.Run("ListEmpty", func(t *testing.T) {
		store := open(t)
		all, err := store.ListSnapshots(nil)
		require.NoError(t, err)
		assert.Empty(t, all)
	})

	t.Run("CompleteSuccessIndexesRoot", func(t *testing.T) {
		store := open(t)
		require.NoError(t, store.SaveSnapshot(NewPendingSnapshot("ok", 1)))

		done, err := store.CompleteSnapshot("ok", persistence.Succeeded(NewResult("0xroot1"), 5))
		require.NoError(t, err)
		assert.Equal(t, types.SnapshotStatusSuccess, done.Status)
		assert.Equal(t, int64(5), done.UpdatedAt)

		loaded, err := store.LoadSnapshot("ok")
		require.NoError(t, err)
		assert.Equal(t, done, loaded)

		byRoot, err := store.LoadSnapshotByRoot(11155111, "0x00000000000000000000000000000000000000AA", "0xROOT1")
		require.NoError(t, err)
		require.NotNil(t, byRoot)
		assert.Equal(t, "ok", byRoot.ID)

		other, err := store.LoadSnapshotByRoot(1, testAsset, "0xroot1")
		require.NoError(t, err)
		assert.Nil(t, other)
	})

	t.Run("CompleteFailureNotIndexed", func(t *testing.T) {
		store := open(t)
		require.NoError(t, store.SaveSnapshot(NewPendingSnapshot("bad", 1)))

		done, err := store.CompleteSnapshot("bad", persistence.Failed(types.ErrCodeInvalidBlock, "too far", 2))
		require.NoError(t, err)
		assert.Equal(t, types.SnapshotStatusFailed, done.Status)
		assert.Equal(t, types.ErrCodeInvalidBlock, done.FailureCode)
		assert.Nil(t, done.Result)
	})

	t.Run("CompleteIsOnce", func(t *testing.T) {
		store := open(t)
		require.NoError(t, store.SaveSnapshot(NewPendingSnapshot("once", 1)))

		_, err := store.CompleteSnapshot("once", persistence.Succeeded(NewResult("0xroot2"), 2))
		require.NoError(t, err)

		_, err = store.CompleteSnapshot("once", persistence.Failed(types.ErrCodeTaskTimeout, "stale", 3))
		assert.ErrorIs(t, err, persistence.ErrSnapshotNotPending)

		loaded, err := store.LoadSnapshot("once")
		require.NoError(t, err)
		assert.Equal(t, types.SnapshotStatusSuccess, loaded.Status)
	})

	t.Run("CompleteUnknown", func(t *testing.T) {
		store := open(t)
		_, err := store.CompleteSnapshot("ghost", persistence.Failed(types.ErrCodeTaskTimeout, "stale", 3))
		assert.ErrorIs(t, err, persistence.ErrSnapshotNotFound)
	})

	t.Run("CompleteConcurrentSingleWinner", func(t *testing.T) {
		store := open(t)
		require.NoError(t, store.SaveSnapshot(NewPendingSnapshot("race", 1)))

		const contenders = 8
		var wg sync.WaitGroup
		var mu sync.Mutex
		wins := 0
		for i := 0; i < contenders; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				_, err := store.CompleteSnapshot("race", persistence.Failed(types.ErrCodeInternal, fmt.Sprintf("contender %d", i), int64(i)))
				if err == nil {
					mu.Lock()
					wins++
					mu.Unlock()
					return
				}
				assert.ErrorIs(t, err, persistence.ErrSnapshotNotPending)
			}(i)
		}
		wg.Wait()
		assert.Equal(t, 1, wins)
	})

	t.Run("DeleteRemovesRootIndex", func(t *testing.T) {
		store := open(t)
		require.NoError(t, store.SaveSnapshot(NewPendingSnapshot("gone", 1)))
		_, err := store.CompleteSnapshot("gone", persistence.Succeeded(NewResult("0xroot3"), 2))
		require.NoError(t, err)

		require.NoError(t, store.DeleteSnapshot("gone"))

		loaded, err := store.LoadSnapshot("gone")
		require.NoError(t, err)
		assert.Nil(t, loaded)

		byRoot, err := store.LoadSnapshotByRoot(11155111, testAsset, "0xroot3")
		require.NoError(t, err)
		assert.Nil(t, byRoot)
	})

	t.Run("DeleteKeepsSharedRoot", func(t *testing.T) {
		store := open(t)
		for _, id := range []string{"first", "second"} {
			require.NoError(t, store.SaveSnapshot(NewPendingSnapshot(id, 1)))
			_, err := store.CompleteSnapshot(id, persistence.Succeeded(NewResult("0xshared"), 2))
			require.NoError(t, err)
		}

		byRoot, err := store.LoadSnapshotByRoot(11155111, testAsset, "0xshared")
		require.NoError(t, err)
		require.NotNil(t, byRoot)

		require.NoError(t, store.DeleteSnapshot(byRoot.ID))

		remaining, err := store.LoadSnapshotByRoot(11155111, testAsset, "0xshared")
		require.NoError(t, err)
		require.NotNil(t, remaining)
		assert.NotEqual(t, byRoot.ID, remaining.ID)
	})

	t.Run("DeleteIdempotent", func(t *testing.T) {
		store := open(t)
		assert.NoError(t, store.DeleteSnapshot("never-existed"))
	})

	t.Run("HealthCheckAndClose", func(t *testing.T) {
		store := newStore(t)
		require.NoError(t, store.HealthCheck())

		require.NoError(t, store.Close())
		require.NoError(t, store.Close())

		assert.ErrorIs(t, store.HealthCheck(), persistence.ErrClosed)
		assert.ErrorIs(t, store.SaveSnapshot(NewPendingSnapshot("late", 1)), persistence.ErrClosed)
		_, err := store.LoadSnapshot("late")
		assert.ErrorIs(t, err, persistence.ErrClosed)
		_, err = store.ListSnapshots(nil)
		assert.ErrorIs(t, err, persistence.ErrClosed)
	})
}

func ids(snapshots []*types.Snapshot) []string {
	out := make([]string, 0, len(snapshots))
	for _, s := range snapshots {
		out = append(out, s.ID)
	}
	return out
}
