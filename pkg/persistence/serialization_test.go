package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/eigenx-payouts-go/pkg/types"
)

func pendingSnapshot() *types.Snapshot {
	return &types.Snapshot{
		ID:                     "11111111-2222-3333-4444-555555555555",
		Name:                   "q3 dividends",
		ChainID:                11155111,
		AssetAddress:           "0x00000000000000000000000000000000000000aa",
		BlockNumber:            1234,
		IgnoredHolderAddresses: []string{"0x00000000000000000000000000000000000000bb"},
		Status:                 types.SnapshotStatusPending,
		CreatedAt:              100,
		UpdatedAt:              100,
	}
}

func testResult() *types.SnapshotResult {
	return &types.SnapshotResult{
		TotalAssetAmount:   "300",
		MerkleRootHash:     "0xABCDEF",
		MerkleTreeDepth:    1,
		MerkleTreeIpfsHash: "bafkreitest",
		HashFn:             "KECCAK_256",
		Holders: []types.HolderBalance{
			{Address: "0x0000000000000000000000000000000000000001", Balance: "100"},
			{Address: "0x0000000000000000000000000000000000000002", Balance: "200"},
		},
	}
}

func TestUnmarshalSnapshot_Empty(t *testing.T) {
	_, err := UnmarshalSnapshot(nil)
	require.Error(t, err)

	_, err = UnmarshalSnapshot([]byte(`{"name":"no id"}`))
	require.Error(t, err)
}

func TestMarshalSnapshot_Nil(t *testing.T) {
	_, err := MarshalSnapshot(nil)
	require.Error(t, err)
}

func TestMarshalSnapshot_UsesWireFieldNames(t *testing.T) {
	data, err := MarshalSnapshot(pendingSnapshot())
	require.NoError(t, err)
	assert.Contains(t, string(data), `"payout_block_number":1234`)
	assert.Contains(t, string(data), `"ignored_holder_addresses"`)
	assert.NotContains(t, string(data), `"result"`)
}

func TestApplyCompletion_Success(t *testing.T) {
	current := pendingSnapshot()
	next, err := ApplyCompletion(current, Succeeded(testResult(), 200))
	require.NoError(t, err)

	assert.Equal(t, types.SnapshotStatusSuccess, next.Status)
	assert.Equal(t, int64(200), next.UpdatedAt)
	require.NotNil(t, next.Result)
	assert.Len(t, next.Result.Holders, 2)

	// The input record is untouched
	assert.Equal(t, types.SnapshotStatusPending, current.Status)
	assert.Nil(t, current.Result)
}

func TestApplyCompletion_Failure(t *testing.T) {
	next, err := ApplyCompletion(pendingSnapshot(), Failed(types.ErrCodeInvalidBlock, "block 9 is ahead of head 5", 300))
	require.NoError(t, err)
	assert.Equal(t, types.SnapshotStatusFailed, next.Status)
	assert.Equal(t, types.ErrCodeInvalidBlock, next.FailureCode)
	assert.Nil(t, next.Result)
}

func TestApplyCompletion_NotPending(t *testing.T) {
	done, err := ApplyCompletion(pendingSnapshot(), Succeeded(testResult(), 200))
	require.NoError(t, err)

	_, err = ApplyCompletion(done, Failed(types.ErrCodeTaskTimeout, "late", 300))
	assert.ErrorIs(t, err, ErrSnapshotNotPending)
}

func TestCompletion_Validate(t *testing.T) {
	tests := []struct {
		name       string
		completion *Completion
		wantErr    bool
	}{
		{name: "nil", completion: nil, wantErr: true},
		{name: "pending is not terminal", completion: &Completion{Status: types.SnapshotStatusPending}, wantErr: true},
		{name: "success without result", completion: &Completion{Status: types.SnapshotStatusSuccess}, wantErr: true},
		{name: "success without root", completion: Succeeded(&types.SnapshotResult{}, 1), wantErr: true},
		{name: "failure without code", completion: &Completion{Status: types.SnapshotStatusFailed}, wantErr: true},
		{name: "success", completion: Succeeded(testResult(), 1)},
		{name: "failure", completion: Failed(types.ErrCodeChainQuery, "rpc down", 1)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.completion.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRootKeyFor(t *testing.T) {
	s := pendingSnapshot()
	assert.Empty(t, RootKeyFor(s))

	done, err := ApplyCompletion(s, Succeeded(testResult(), 200))
	require.NoError(t, err)
	assert.Equal(t, "11155111:0x00000000000000000000000000000000000000aa:0xabcdef", RootKeyFor(done))
	assert.Equal(t, RootKeyFor(done), RootKey(11155111, "0x00000000000000000000000000000000000000AA", "0xabcdef"))
}

func TestSortSnapshots(t *testing.T) {
	snapshots := []*types.Snapshot{
		{ID: "c", CreatedAt: 2},
		{ID: "b", CreatedAt: 1},
		{ID: "a", CreatedAt: 2},
	}
	SortSnapshots(snapshots)
	assert.Equal(t, "b", snapshots[0].ID)
	assert.Equal(t, "a", snapshots[1].ID)
	assert.Equal(t, "c", snapshots[2].ID)
}
