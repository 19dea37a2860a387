package snapshotManager

import (
	"context"
	"encoding/json"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/eigenx-payouts-go/pkg/balances"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/contractCaller"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/logger"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/merkle"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/persistence/memory"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/treeStore"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/treeStore/inMemoryTreeStore"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/types"
)

const testChainId = uint64(31337)

var (
	token         = common.HexToAddress("0x5FbDB2315678afecb367f032d93F642f64180aa3")
	alice         = common.HexToAddress("0x70997970C51812dc3A010C7d01b50e0d17dc79C8")
	jane          = common.HexToAddress("0x3C44CdDdB6a900fa2b585dd299e03d12FA4293BC")
	frank         = common.HexToAddress("0x90F79bf6EB2c4f870365E785982E1f101E93b906")
	bob           = common.HexToAddress("0x15d34AAf54267DB7D7c367839AAf71A00a2C6A65")
	payoutManager = common.HexToAddress("0x9fE46736679d2D9a65F0992F2272dE9f3c7fa6e0")
	owner         = "0xf39Fd6e51aad88F6F4ce6aB8827279cffFb92266"
)

type testEnv struct {
	manager *Manager
	store   *memory.MemoryPersistence
	trees   *inMemoryTreeStore.InMemoryTreeStore
	chain   *balances.FakeChainReader
	clock   *clockwork.FakeClock
	caller  *contractCaller.FakeContractCaller
}

func newTestEnv(t *testing.T, cfg *ManagerConfig) *testEnv {
	t.Helper()
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: false})
	require.NoError(t, err)

	chain := &balances.FakeChainReader{Head: 20}
	chain.AddTransfer(token, 1, common.Address{}, alice, big.NewInt(10000))
	chain.AddTransfer(token, 2, common.Address{}, jane, big.NewInt(15000))
	chain.AddTransfer(token, 3, common.Address{}, frank, big.NewInt(20000))
	chain.AddTransfer(token, 10, common.Address{}, bob, big.NewInt(5000))

	caller := contractCaller.NewFakeContractCaller()
	callers := contractCaller.NewRegistry()
	callers.Add(testChainId, caller)

	env := &testEnv{
		store:  memory.NewMemoryPersistence(l),
		trees:  inMemoryTreeStore.NewInMemoryTreeStore(l),
		chain:  chain,
		clock:  clockwork.NewFakeClockAt(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)),
		caller: caller,
	}
	reconstructor := balances.NewReconstructor(&balances.ReconstructorConfig{
		LogPageSize: 100,
		Retry: balances.RetryConfig{
			MaxAttempts:     2,
			InitialBackoff:  time.Millisecond,
			BackoffMultiple: 1.0,
		},
	}, l)

	env.manager, err = NewManager(cfg, &Dependencies{
		Store:         env.store,
		Trees:         env.trees,
		Chains:        map[uint64]balances.IChainReader{testChainId: chain},
		Reconstructor: reconstructor,
		Callers:       callers,
		Clock:         env.clock,
	}, l)
	require.NoError(t, err)
	return env
}

func (e *testEnv) start(t *testing.T) {
	t.Helper()
	require.NoError(t, e.manager.Start(context.Background()))
	t.Cleanup(e.manager.Stop)
}

func scenarioRequest(block uint64) *types.CreateSnapshotRequest {
	return &types.CreateSnapshotRequest{
		Name:                   "Q2 dividend",
		ChainID:                testChainId,
		AssetAddress:           token.Hex(),
		BlockNumber:            block,
		IgnoredHolderAddresses: []string{frank.Hex()},
	}
}

func waitForTerminal(t *testing.T, m *Manager, id string) *types.Snapshot {
	t.Helper()
	var s *types.Snapshot
	require.Eventually(t, func() bool {
		var err error
		s, err = m.GetById(id)
		require.NoError(t, err)
		return s.Status.IsTerminal()
	}, 5*time.Second, 10*time.Millisecond)
	return s
}

func Test_CreateAndProcess(t *testing.T) {
	env := newTestEnv(t, &ManagerConfig{Workers: 2, QueueSize: 8})
	env.start(t)

	created, err := env.manager.Create(context.Background(), scenarioRequest(5), owner)
	require.NoError(t, err)
	assert.Equal(t, types.SnapshotStatusPending, created.Status)
	assert.Equal(t, strings.ToLower(owner), created.Owner)
	assert.Equal(t, strings.ToLower(token.Hex()), created.AssetAddress)

	s := waitForTerminal(t, env.manager, created.ID)
	require.Equal(t, types.SnapshotStatusSuccess, s.Status, s.FailureReason)
	require.NotNil(t, s.Result)

	assert.Equal(t, "25000", s.Result.TotalAssetAmount)
	assert.Equal(t, 1, s.Result.MerkleTreeDepth)
	assert.Equal(t, merkle.HashFnKeccak256, s.Result.HashFn)
	require.Len(t, s.Result.Holders, 2)
	for _, h := range s.Result.Holders {
		assert.NotEqual(t, strings.ToLower(frank.Hex()), h.Address)
		assert.NotEqual(t, strings.ToLower(bob.Hex()), h.Address)
	}

	expected, err := merkle.BuildPayoutTreeFromBalances(map[common.Address]*big.Int{
		alice: big.NewInt(10000),
		jane:  big.NewInt(15000),
	})
	require.NoError(t, err)
	assert.Equal(t, expected.RootHex(), s.Result.MerkleRootHash)

	t.Run("tree JSON is stored under its content id", func(t *testing.T) {
		data, err := env.trees.Get(context.Background(), s.Result.MerkleTreeIpfsHash)
		require.NoError(t, err)
		require.NoError(t, treeStore.VerifyContent(s.Result.MerkleTreeIpfsHash, data))

		var decoded map[string]interface{}
		require.NoError(t, json.Unmarshal(data, &decoded))
		assert.Equal(t, s.Result.MerkleRootHash, decoded["hash"])
		assert.Equal(t, merkle.HashFnKeccak256, decoded["hash_fn"])
	})

	t.Run("tree is loadable by root", func(t *testing.T) {
		tree, err := env.manager.LoadTree(context.Background(), testChainId, token.Hex(), common.Hash{1}.Hex())
		require.ErrorIs(t, err, types.ErrNotFound)
		assert.Nil(t, tree)

		tree, err = env.manager.LoadTree(context.Background(), testChainId, token.Hex(), s.Result.MerkleRootHash)
		require.NoError(t, err)
		assert.True(t, tree.Contains(alice))
		assert.False(t, tree.Contains(frank))
	})
}

func storeSucceeded(t *testing.T, env *testEnv, id string, result *types.SnapshotResult) {
	t.Helper()
	require.NoError(t, env.store.SaveSnapshot(pendingRecord(id, env.clock.Now())))
	_, err := env.store.CompleteSnapshot(id, persistence.Succeeded(result, env.clock.Now().Unix()))
	require.NoError(t, err)
}

func Test_LoadTreeSources(t *testing.T) {
	env := newTestEnv(t, &ManagerConfig{Workers: 1, QueueSize: 8})
	ctx := context.Background()

	tree, err := merkle.BuildPayoutTreeFromBalances(map[common.Address]*big.Int{
		alice: big.NewInt(10000),
		jane:  big.NewInt(15000),
		bob:   big.NewInt(5000),
	})
	require.NoError(t, err)
	data, err := json.Marshal(tree)
	require.NoError(t, err)
	contentId, err := env.trees.Put(ctx, data)
	require.NoError(t, err)

	result := func(contentId string, holders []types.HolderBalance) *types.SnapshotResult {
		return &types.SnapshotResult{
			TotalAssetAmount:   tree.Total.String(),
			MerkleRootHash:     tree.RootHex(),
			MerkleTreeDepth:    tree.Depth,
			MerkleTreeIpfsHash: contentId,
			HashFn:             merkle.HashFnKeccak256,
			Holders:            holders,
		}
	}

	t.Run("stored document", func(t *testing.T) {
		// the record carries no holders, so only the document can rebuild the tree
		storeSucceeded(t, env, "from-document", result(contentId, nil))

		loaded, err := env.manager.LoadTree(ctx, testChainId, token.Hex(), tree.RootHex())
		require.NoError(t, err)
		assert.Equal(t, tree.RootHash, loaded.RootHash)
		assert.Equal(t, big.NewInt(5000), loaded.BalanceOf(bob))
	})

	t.Run("holders when the document is missing", func(t *testing.T) {
		other := common.HexToAddress("0x976EA74026E726554dB657fA54763abd0C3a0aa9")
		fallback, err := merkle.BuildPayoutTreeFromBalances(map[common.Address]*big.Int{other: big.NewInt(7)})
		require.NoError(t, err)
		storeSucceeded(t, env, "from-holders", &types.SnapshotResult{
			TotalAssetAmount:   "7",
			MerkleRootHash:     fallback.RootHex(),
			MerkleTreeIpfsHash: "bafkreiunknown",
			HashFn:             merkle.HashFnKeccak256,
			Holders:            fallback.Holders(),
		})

		loaded, err := env.manager.LoadTree(ctx, testChainId, token.Hex(), fallback.RootHex())
		require.NoError(t, err)
		assert.True(t, loaded.Contains(other))
	})
}

func Test_Determinism(t *testing.T) {
	env := newTestEnv(t, &ManagerConfig{Workers: 2, QueueSize: 8})
	env.start(t)

	first, err := env.manager.Create(context.Background(), scenarioRequest(5), owner)
	require.NoError(t, err)
	second, err := env.manager.Create(context.Background(), scenarioRequest(5), "")
	require.NoError(t, err)
	require.NotEqual(t, first.ID, second.ID)

	a := waitForTerminal(t, env.manager, first.ID)
	b := waitForTerminal(t, env.manager, second.ID)
	require.Equal(t, types.SnapshotStatusSuccess, a.Status)
	require.Equal(t, types.SnapshotStatusSuccess, b.Status)
	assert.Equal(t, a.Result.MerkleRootHash, b.Result.MerkleRootHash)
	assert.Equal(t, a.Result.MerkleTreeIpfsHash, b.Result.MerkleTreeIpfsHash)
	assert.Equal(t, a.Result.Holders, b.Result.Holders)
}

func Test_FundedAfterBlock(t *testing.T) {
	env := newTestEnv(t, &ManagerConfig{Workers: 1, QueueSize: 8})
	env.start(t)

	before, err := env.manager.Create(context.Background(), scenarioRequest(9), owner)
	require.NoError(t, err)
	after, err := env.manager.Create(context.Background(), scenarioRequest(10), owner)
	require.NoError(t, err)

	s := waitForTerminal(t, env.manager, before.ID)
	require.Equal(t, types.SnapshotStatusSuccess, s.Status)
	assert.Equal(t, "25000", s.Result.TotalAssetAmount)

	s = waitForTerminal(t, env.manager, after.ID)
	require.Equal(t, types.SnapshotStatusSuccess, s.Status)
	assert.Equal(t, "30000", s.Result.TotalAssetAmount)
	assert.Len(t, s.Result.Holders, 3)
}

func Test_Create_Validation(t *testing.T) {
	env := newTestEnv(t, &ManagerConfig{Workers: 1, QueueSize: 8})

	tooMany := make([]string, MaxIgnoredAddresses+1)
	for i := range tooMany {
		tooMany[i] = common.BigToAddress(big.NewInt(int64(i + 1))).Hex()
	}

	tests := []struct {
		name   string
		mutate func(r *types.CreateSnapshotRequest)
		owner  string
	}{
		{name: "unknown chain", mutate: func(r *types.CreateSnapshotRequest) { r.ChainID = 1 }},
		{name: "malformed asset", mutate: func(r *types.CreateSnapshotRequest) { r.AssetAddress = "0x1234" }},
		{name: "name too long", mutate: func(r *types.CreateSnapshotRequest) { r.Name = strings.Repeat("x", MaxNameLength+1) }},
		{name: "malformed ignored address", mutate: func(r *types.CreateSnapshotRequest) {
			r.IgnoredHolderAddresses = []string{"not-an-address"}
		}},
		{name: "too many ignored addresses", mutate: func(r *types.CreateSnapshotRequest) { r.IgnoredHolderAddresses = tooMany }},
		{name: "malformed owner", mutate: func(r *types.CreateSnapshotRequest) {}, owner: "bob"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := scenarioRequest(5)
			tt.mutate(req)
			_, err := env.manager.Create(context.Background(), req, tt.owner)
			require.ErrorIs(t, err, types.ErrValidation)
		})
	}

	snapshots, err := env.manager.List(nil)
	require.NoError(t, err)
	assert.Empty(t, snapshots)
}

func Test_Create_NormalizesIgnoredAddresses(t *testing.T) {
	env := newTestEnv(t, &ManagerConfig{Workers: 1, QueueSize: 8})

	req := scenarioRequest(5)
	req.IgnoredHolderAddresses = []string{frank.Hex(), strings.ToLower(frank.Hex()), bob.Hex()}
	s, err := env.manager.Create(context.Background(), req, "")
	require.NoError(t, err)
	assert.Equal(t, []string{strings.ToLower(frank.Hex()), strings.ToLower(bob.Hex())}, s.IgnoredHolderAddresses)
}

func Test_FutureBlockFails(t *testing.T) {
	env := newTestEnv(t, &ManagerConfig{Workers: 1, QueueSize: 8})
	env.start(t)

	created, err := env.manager.Create(context.Background(), scenarioRequest(21), owner)
	require.NoError(t, err)

	s := waitForTerminal(t, env.manager, created.ID)
	assert.Equal(t, types.SnapshotStatusFailed, s.Status)
	assert.Equal(t, types.ErrCodeInvalidBlock, s.FailureCode)
	assert.Nil(t, s.Result)
}

func Test_QueueFull(t *testing.T) {
	env := newTestEnv(t, &ManagerConfig{Workers: 1, QueueSize: 1})

	first, err := env.manager.Create(context.Background(), scenarioRequest(5), owner)
	require.NoError(t, err)
	assert.Equal(t, types.SnapshotStatusPending, first.Status)

	second, err := env.manager.Create(context.Background(), scenarioRequest(5), owner)
	require.NoError(t, err)
	assert.Equal(t, types.SnapshotStatusFailed, second.Status)
	assert.Equal(t, types.ErrCodeQueueFull, second.FailureCode)

	stored, err := env.manager.GetById(second.ID)
	require.NoError(t, err)
	assert.Equal(t, types.SnapshotStatusFailed, stored.Status)
}

// blockLogs makes every log query wait until release is closed or the task context ends.
// entered receives once the first query is waiting.
func blockLogs(env *testEnv) (entered chan struct{}, release chan struct{}) {
	entered = make(chan struct{}, 1)
	release = make(chan struct{})
	env.chain.BeforeLogs = func(ctx context.Context) error {
		select {
		case entered <- struct{}{}:
		default:
		}
		select {
		case <-release:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return entered, release
}

func waitEntered(t *testing.T, entered chan struct{}) {
	t.Helper()
	select {
	case <-entered:
	case <-time.After(5 * time.Second):
		t.Fatal("snapshot task never queried logs")
	}
}

func Test_TaskTimeout(t *testing.T) {
	env := newTestEnv(t, &ManagerConfig{Workers: 1, QueueSize: 8, TaskTimeout: time.Minute, StaleTaskTimeout: time.Hour})
	entered, release := blockLogs(env)
	defer close(release)
	env.start(t)

	created, err := env.manager.Create(context.Background(), scenarioRequest(5), owner)
	require.NoError(t, err)
	waitEntered(t, entered)

	// the deadline follows the manager clock
	env.clock.Advance(59 * time.Second)
	s, err := env.manager.GetById(created.ID)
	require.NoError(t, err)
	assert.Equal(t, types.SnapshotStatusPending, s.Status)

	env.clock.Advance(time.Second)
	s = waitForTerminal(t, env.manager, created.ID)
	assert.Equal(t, types.SnapshotStatusFailed, s.Status)
	assert.Equal(t, types.ErrCodeTaskTimeout, s.FailureCode)
}

func Test_PanicIsRecorded(t *testing.T) {
	env := newTestEnv(t, &ManagerConfig{Workers: 1, QueueSize: 8})
	env.chain.BeforeLogs = func(ctx context.Context) error {
		panic("provider exploded")
	}
	env.start(t)

	created, err := env.manager.Create(context.Background(), scenarioRequest(5), owner)
	require.NoError(t, err)

	s := waitForTerminal(t, env.manager, created.ID)
	assert.Equal(t, types.SnapshotStatusFailed, s.Status)
	assert.Equal(t, types.ErrCodeInternal, s.FailureCode)
	assert.Contains(t, s.FailureReason, "provider exploded")

	// the worker survives the panic
	env.chain.BeforeLogs = nil
	next, err := env.manager.Create(context.Background(), scenarioRequest(5), owner)
	require.NoError(t, err)
	s = waitForTerminal(t, env.manager, next.ID)
	assert.Equal(t, types.SnapshotStatusSuccess, s.Status)
}

func pendingRecord(id string, createdAt time.Time) *types.Snapshot {
	return &types.Snapshot{
		ID:                     id,
		ChainID:                testChainId,
		AssetAddress:           strings.ToLower(token.Hex()),
		BlockNumber:            5,
		IgnoredHolderAddresses: []string{strings.ToLower(frank.Hex())},
		Status:                 types.SnapshotStatusPending,
		CreatedAt:              createdAt.Unix(),
		UpdatedAt:              createdAt.Unix(),
	}
}

func Test_StartRecoversPendingTasks(t *testing.T) {
	env := newTestEnv(t, &ManagerConfig{Workers: 1, QueueSize: 8, StaleTaskTimeout: time.Hour})

	now := env.clock.Now()
	require.NoError(t, env.store.SaveSnapshot(pendingRecord("fresh", now.Add(-time.Minute))))
	require.NoError(t, env.store.SaveSnapshot(pendingRecord("stale", now.Add(-2*time.Hour))))

	env.start(t)

	fresh := waitForTerminal(t, env.manager, "fresh")
	assert.Equal(t, types.SnapshotStatusSuccess, fresh.Status)
	assert.Equal(t, "25000", fresh.Result.TotalAssetAmount)

	stale := waitForTerminal(t, env.manager, "stale")
	assert.Equal(t, types.SnapshotStatusFailed, stale.Status)
	assert.Equal(t, types.ErrCodeTaskTimeout, stale.FailureCode)
}

func Test_SweepStale(t *testing.T) {
	env := newTestEnv(t, &ManagerConfig{Workers: 1, QueueSize: 8, TaskTimeout: time.Minute, StaleTaskTimeout: 30 * time.Minute})

	// not started, so the task stays queued
	created, err := env.manager.Create(context.Background(), scenarioRequest(5), owner)
	require.NoError(t, err)

	swept, err := env.manager.SweepStale()
	require.NoError(t, err)
	assert.Equal(t, 0, swept)

	env.clock.Advance(31 * time.Minute)
	swept, err = env.manager.SweepStale()
	require.NoError(t, err)
	assert.Equal(t, 1, swept)

	s, err := env.manager.GetById(created.ID)
	require.NoError(t, err)
	assert.Equal(t, types.SnapshotStatusFailed, s.Status)
	assert.Equal(t, types.ErrCodeTaskTimeout, s.FailureCode)

	// the queued task is skipped once workers pick it up
	env.start(t)
	require.Eventually(t, func() bool {
		env.manager.mu.Lock()
		defer env.manager.mu.Unlock()
		return len(env.manager.inFlight) == 0
	}, 5*time.Second, 10*time.Millisecond)
	s, err = env.manager.GetById(created.ID)
	require.NoError(t, err)
	assert.Equal(t, types.ErrCodeTaskTimeout, s.FailureCode)
}

func Test_SweepSkipsRunningTask(t *testing.T) {
	env := newTestEnv(t, &ManagerConfig{Workers: 1, QueueSize: 8, TaskTimeout: 2 * time.Hour, StaleTaskTimeout: 30 * time.Minute})
	entered, release := blockLogs(env)
	env.start(t)

	created, err := env.manager.Create(context.Background(), scenarioRequest(5), owner)
	require.NoError(t, err)
	waitEntered(t, entered)

	env.clock.Advance(31 * time.Minute)
	swept, err := env.manager.SweepStale()
	require.NoError(t, err)
	assert.Equal(t, 0, swept)

	s, err := env.manager.GetById(created.ID)
	require.NoError(t, err)
	assert.Equal(t, types.SnapshotStatusPending, s.Status)

	close(release)
	s = waitForTerminal(t, env.manager, created.ID)
	require.Equal(t, types.SnapshotStatusSuccess, s.Status, s.FailureReason)
	assert.Equal(t, "25000", s.Result.TotalAssetAmount)
}

func Test_GetAndDelete(t *testing.T) {
	env := newTestEnv(t, &ManagerConfig{Workers: 1, QueueSize: 8})
	env.start(t)

	_, err := env.manager.GetById("missing")
	require.ErrorIs(t, err, types.ErrNotFound)
	require.ErrorIs(t, env.manager.Delete("missing"), types.ErrNotFound)

	created, err := env.manager.Create(context.Background(), scenarioRequest(5), owner)
	require.NoError(t, err)
	s := waitForTerminal(t, env.manager, created.ID)
	require.Equal(t, types.SnapshotStatusSuccess, s.Status)

	_, err = env.manager.LoadTree(context.Background(), testChainId, s.AssetAddress, s.Result.MerkleRootHash)
	require.NoError(t, err)

	require.NoError(t, env.manager.Delete(created.ID))
	_, err = env.manager.GetById(created.ID)
	require.ErrorIs(t, err, types.ErrNotFound)

	_, err = env.manager.LoadTree(context.Background(), testChainId, s.AssetAddress, s.Result.MerkleRootHash)
	require.ErrorIs(t, err, types.ErrNotFound)
}

func Test_List(t *testing.T) {
	env := newTestEnv(t, &ManagerConfig{Workers: 1, QueueSize: 8})

	_, err := env.manager.Create(context.Background(), scenarioRequest(5), owner)
	require.NoError(t, err)
	env.clock.Advance(time.Second)
	_, err = env.manager.Create(context.Background(), scenarioRequest(6), "")
	require.NoError(t, err)

	all, err := env.manager.List(nil)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, uint64(5), all[0].BlockNumber)

	owned, err := env.manager.List(&types.SnapshotFilter{Owner: owner})
	require.NoError(t, err)
	require.Len(t, owned, 1)

	other, err := env.manager.List(&types.SnapshotFilter{ChainID: 1})
	require.NoError(t, err)
	assert.Empty(t, other)
}

func Test_GetPayoutTask(t *testing.T) {
	env := newTestEnv(t, &ManagerConfig{Workers: 1, QueueSize: 8})
	env.start(t)

	created, err := env.manager.Create(context.Background(), scenarioRequest(5), owner)
	require.NoError(t, err)
	s := waitForTerminal(t, env.manager, created.ID)
	require.Equal(t, types.SnapshotStatusSuccess, s.Status)

	task, err := env.manager.GetPayoutTask(context.Background(), testChainId, created.ID, nil)
	require.NoError(t, err)
	assert.Equal(t, types.PayoutTaskStatusProofCreated, task.Status)
	assert.Equal(t, s.Result.MerkleRootHash, task.MerkleRootHash)
	require.NotNil(t, task.MerkleTreeDepth)
	assert.Equal(t, 1, *task.MerkleTreeDepth)

	task, err = env.manager.GetPayoutTask(context.Background(), testChainId, created.ID, &payoutManager)
	require.NoError(t, err)
	assert.Equal(t, types.PayoutTaskStatusProofCreated, task.Status)

	issuer := common.HexToAddress(owner)
	env.caller.AddPayout(payoutManager, &contractCaller.PayoutInfo{
		PayoutId:                big.NewInt(7),
		PayoutOwner:             issuer,
		Asset:                   token,
		AssetSnapshotMerkleRoot: common.HexToHash(s.Result.MerkleRootHash),
	})

	task, err = env.manager.GetPayoutTask(context.Background(), testChainId, created.ID, &payoutManager)
	require.NoError(t, err)
	assert.Equal(t, types.PayoutTaskStatusPayoutCreated, task.Status)
	assert.Equal(t, "7", task.PayoutID)
	assert.Equal(t, strings.ToLower(owner), task.Issuer)

	_, err = env.manager.GetPayoutTask(context.Background(), 1, created.ID, nil)
	require.ErrorIs(t, err, types.ErrNotFound)
}
