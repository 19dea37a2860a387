package merkle

import (
	"encoding/json"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Layr-Labs/eigenx-payouts-go/pkg/types"
)

// createTestLeaves creates n leaves with distinct addresses and balances
func createTestLeaves(n int) []Leaf {
	leaves := make([]Leaf, n)
	for i := 0; i < n; i++ {
		leaves[i] = Leaf{
			Address: common.BigToAddress(big.NewInt(int64(1000 + (n-i)*7))),
			Balance: big.NewInt(int64(100 * (i + 1))),
		}
	}
	return leaves
}

// TestBuildPayoutTree tests tree construction and proofs across sizes
func TestBuildPayoutTree(t *testing.T) {
	testCases := []struct {
		name      string
		numLeaves int
		depth     int
	}{
		{"Single leaf", 1, 0},
		{"Two leaves", 2, 1},
		{"Three leaves", 3, 2},
		{"Four leaves (power of 2)", 4, 2},
		{"Five leaves", 5, 3},
		{"Eight leaves (power of 2)", 8, 3},
		{"Fifteen leaves", 15, 4},
		{"Seventeen leaves", 17, 5},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			leaves := createTestLeaves(tc.numLeaves)
			tree, err := BuildPayoutTree(leaves)
			require.NoError(t, err)

			require.Equal(t, tc.depth, tree.Depth)
			require.Equal(t, tc.numLeaves, tree.Size())
			require.NotEqual(t, NilHash, tree.RootHash)

			expectedTotal := new(big.Int)
			for _, l := range leaves {
				expectedTotal.Add(expectedTotal, l.Balance)
			}
			require.Equal(t, 0, expectedTotal.Cmp(tree.Total))

			for _, l := range leaves {
				path, err := tree.GetPath(l.Address)
				require.NoError(t, err)
				require.Len(t, path.Proof, tc.depth)
				require.Equal(t, 0, l.Balance.Cmp(path.Balance))
				require.True(t, VerifyProof(path.LeafHash, path.Proof, tree.RootHash))
				require.True(t, VerifyPath(path, tree.RootHash))
			}
		})
	}
}

func TestBuildPayoutTreeEmpty(t *testing.T) {
	tree, err := BuildPayoutTree(nil)
	require.NoError(t, err)
	assert.Equal(t, 0, tree.Depth)
	assert.Equal(t, NilHash, tree.RootHash)
	assert.Equal(t, int64(0), tree.Total.Int64())
	assert.IsType(t, NilNode{}, tree.Root())

	_, err = tree.GetPath(common.HexToAddress("0x01"))
	require.ErrorIs(t, err, types.ErrNotIncluded)
}

func TestSingleLeafRootIsLeafHash(t *testing.T) {
	leaf := Leaf{Address: common.HexToAddress("0xaa"), Balance: big.NewInt(5)}
	tree, err := BuildPayoutTree([]Leaf{leaf})
	require.NoError(t, err)
	assert.Equal(t, HashLeaf(leaf), tree.RootHash)

	path, err := tree.GetPath(leaf.Address)
	require.NoError(t, err)
	assert.Empty(t, path.Proof)
	assert.True(t, VerifyPath(path, tree.RootHash))
}

// TestDeterminism tests that input order never changes the root or the proofs
func TestDeterminism(t *testing.T) {
	leaves := createTestLeaves(11)
	reversed := make([]Leaf, len(leaves))
	for i := range leaves {
		reversed[len(leaves)-1-i] = leaves[i]
	}

	a, err := BuildPayoutTree(leaves)
	require.NoError(t, err)
	b, err := BuildPayoutTree(reversed)
	require.NoError(t, err)
	require.Equal(t, a.RootHash, b.RootHash)

	for _, l := range leaves {
		pa, err := a.GetPath(l.Address)
		require.NoError(t, err)
		pb, err := b.GetPath(l.Address)
		require.NoError(t, err)
		require.Equal(t, pa.Proof, pb.Proof)
	}

	balances := make(map[common.Address]*big.Int)
	for _, l := range leaves {
		balances[l.Address] = l.Balance
	}
	c, err := BuildPayoutTreeFromBalances(balances)
	require.NoError(t, err)
	require.Equal(t, a.RootHash, c.RootHash)
}

func TestLeavesSortedByAddress(t *testing.T) {
	tree, err := BuildPayoutTree(createTestLeaves(9))
	require.NoError(t, err)
	holders := tree.Holders()
	for i := 1; i < len(holders); i++ {
		require.Less(t, holders[i-1].Address, holders[i].Address)
	}
}

func TestInvalidLeaves(t *testing.T) {
	addr := common.HexToAddress("0x1234")
	tooBig := new(big.Int).Lsh(big.NewInt(1), 256)

	testCases := []struct {
		name   string
		leaves []Leaf
	}{
		{"duplicate address", []Leaf{{addr, big.NewInt(1)}, {addr, big.NewInt(2)}}},
		{"zero balance", []Leaf{{addr, big.NewInt(0)}}},
		{"negative balance", []Leaf{{addr, big.NewInt(-3)}}},
		{"nil balance", []Leaf{{addr, nil}}},
		{"balance over uint256", []Leaf{{addr, tooBig}}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := BuildPayoutTree(tc.leaves)
			require.ErrorIs(t, err, types.ErrInternalInconsistency)
		})
	}
}

func TestHashLeafMatchesEncodePacked(t *testing.T) {
	leaf := Leaf{Address: common.HexToAddress("0x00000000000000000000000000000000000000ff"), Balance: big.NewInt(0x0102)}
	packed := append(leaf.Address.Bytes(), common.LeftPadBytes([]byte{0x01, 0x02}, 32)...)
	require.Len(t, packed, 52)
	assert.Equal(t, [32]byte(crypto.Keccak256Hash(packed)), HashLeaf(leaf))
}

func TestPathSegmentsAndNilPadding(t *testing.T) {
	leaves := createTestLeaves(3)
	tree, err := BuildPayoutTree(leaves)
	require.NoError(t, err)

	// the third leaf sits next to the padding slot
	last := tree.Leaves[2]
	path, err := tree.GetPath(last.Address)
	require.NoError(t, err)
	require.Len(t, path.Segments, 2)
	assert.Equal(t, NilHash, path.Segments[0].SiblingHash)
	// the nil hash sorts before every keccak output
	assert.True(t, path.Segments[0].IsLeft)

	first, err := tree.GetPath(tree.Leaves[0].Address)
	require.NoError(t, err)
	assert.Equal(t, HashLeaf(tree.Leaves[1]), first.Segments[0].SiblingHash)
}

// foldByFlags rebuilds the root from a path the way an off-chain client reads it
func foldByFlags(leafHash [32]byte, segments []PathSegment) [32]byte {
	current := leafHash
	for _, s := range segments {
		if s.IsLeft {
			current = [32]byte(crypto.Keccak256Hash(s.SiblingHash[:], current[:]))
		} else {
			current = [32]byte(crypto.Keccak256Hash(current[:], s.SiblingHash[:]))
		}
	}
	return current
}

func TestPathFlagsFoldToRoot(t *testing.T) {
	for _, n := range []int{2, 3, 5, 8, 13, 64} {
		t.Run(fmt.Sprintf("leaves_%d", n), func(t *testing.T) {
			tree, err := BuildPayoutTree(createTestLeaves(n))
			require.NoError(t, err)

			for _, leaf := range tree.Leaves {
				path, err := tree.GetPath(leaf.Address)
				require.NoError(t, err)
				assert.Equal(t, tree.RootHash, foldByFlags(path.LeafHash, path.Segments), leaf.Address.Hex())
				assert.True(t, VerifyPath(path, tree.RootHash))
				assert.True(t, VerifyProof(path.LeafHash, path.Proof, tree.RootHash))
			}
		})
	}
}

func TestVerifyPathRejectsFlippedFlag(t *testing.T) {
	tree, err := BuildPayoutTree(createTestLeaves(5))
	require.NoError(t, err)
	path, err := tree.GetPath(tree.Leaves[4].Address)
	require.NoError(t, err)
	require.NotEmpty(t, path.Segments)

	p := *path
	p.Segments = append([]PathSegment(nil), path.Segments...)
	p.Segments[0].IsLeft = !p.Segments[0].IsLeft
	assert.False(t, VerifyPath(&p, tree.RootHash))
}

func TestVerifyProofRejectsTampering(t *testing.T) {
	tree, err := BuildPayoutTree(createTestLeaves(6))
	require.NoError(t, err)
	leaf := tree.Leaves[3]
	path, err := tree.GetPath(leaf.Address)
	require.NoError(t, err)

	t.Run("wrong balance", func(t *testing.T) {
		forged := HashLeaf(Leaf{Address: leaf.Address, Balance: new(big.Int).Add(leaf.Balance, big.NewInt(1))})
		assert.False(t, VerifyProof(forged, path.Proof, tree.RootHash))
	})
	t.Run("wrong root", func(t *testing.T) {
		assert.False(t, VerifyProof(path.LeafHash, path.Proof, [32]byte{1}))
	})
	t.Run("tampered sibling", func(t *testing.T) {
		proof := append([][32]byte(nil), path.Proof...)
		proof[0][0] ^= 0xff
		assert.False(t, VerifyProof(path.LeafHash, proof, tree.RootHash))
	})
	t.Run("tampered path balance", func(t *testing.T) {
		p := *path
		p.Balance = big.NewInt(1)
		assert.False(t, VerifyPath(&p, tree.RootHash))
	})
	t.Run("nil path", func(t *testing.T) {
		assert.False(t, VerifyPath(nil, tree.RootHash))
	})
}

func TestNonMembership(t *testing.T) {
	tree, err := BuildPayoutTree(createTestLeaves(4))
	require.NoError(t, err)
	_, err = tree.GetPath(common.HexToAddress("0xdeadbeef"))
	require.ErrorIs(t, err, types.ErrNotIncluded)
	assert.Equal(t, types.ErrCodeNotIncluded, types.CodeOf(err))
}

func TestRootStructure(t *testing.T) {
	tree, err := BuildPayoutTree(createTestLeaves(3))
	require.NoError(t, err)

	root, ok := tree.Root().(*PathNode)
	require.True(t, ok)
	assert.Equal(t, tree.RootHash, root.Hash())

	right, ok := root.Right.(*PathNode)
	require.True(t, ok)
	_, ok = right.Left.(*LeafNode)
	assert.True(t, ok)
	_, ok = right.Right.(NilNode)
	assert.True(t, ok)
}

func TestMarshalJSON(t *testing.T) {
	t.Run("path root", func(t *testing.T) {
		tree, err := BuildPayoutTree(createTestLeaves(3))
		require.NoError(t, err)
		raw, err := json.Marshal(tree)
		require.NoError(t, err)

		var decoded map[string]interface{}
		require.NoError(t, json.Unmarshal(raw, &decoded))
		assert.Equal(t, float64(2), decoded["depth"])
		assert.Equal(t, tree.RootHex(), decoded["hash"])
		assert.Equal(t, HashFnKeccak256, decoded["hash_fn"])
		assert.NotContains(t, decoded, "data")

		right := decoded["right"].(map[string]interface{})
		nilNode := right["right"].(map[string]interface{})
		assert.Equal(t, fmt.Sprintf("0x%064x", 0), nilNode["hash"])
		assert.Len(t, nilNode, 1)

		leaf := right["left"].(map[string]interface{})
		data := leaf["data"].(map[string]interface{})
		assert.Equal(t, tree.Holders()[2].Address, data["address"])
		assert.Equal(t, tree.Holders()[2].Balance, data["balance"])
	})

	t.Run("leaf root", func(t *testing.T) {
		tree, err := BuildPayoutTree(createTestLeaves(1))
		require.NoError(t, err)
		raw, err := json.Marshal(tree)
		require.NoError(t, err)

		var decoded map[string]interface{}
		require.NoError(t, json.Unmarshal(raw, &decoded))
		assert.Equal(t, float64(0), decoded["depth"])
		assert.Contains(t, decoded, "data")
		assert.NotContains(t, decoded, "left")
	})
}

func TestLeavesFromHolders(t *testing.T) {
	tree, err := BuildPayoutTree(createTestLeaves(5))
	require.NoError(t, err)

	leaves, err := LeavesFromHolders(tree.Holders())
	require.NoError(t, err)
	rebuilt, err := BuildPayoutTree(leaves)
	require.NoError(t, err)
	assert.Equal(t, tree.RootHash, rebuilt.RootHash)

	_, err = LeavesFromHolders([]types.HolderBalance{{Address: "nope", Balance: "1"}})
	require.ErrorIs(t, err, types.ErrInternalInconsistency)
	_, err = LeavesFromHolders([]types.HolderBalance{{Address: "0x0000000000000000000000000000000000000001", Balance: "1.5"}})
	require.ErrorIs(t, err, types.ErrInternalInconsistency)
}

func TestLeavesFromTreeJSON(t *testing.T) {
	for _, n := range []int{0, 1, 3, 8} {
		t.Run(fmt.Sprintf("holders=%d", n), func(t *testing.T) {
			tree, err := BuildPayoutTree(createTestLeaves(n))
			require.NoError(t, err)
			data, err := json.Marshal(tree)
			require.NoError(t, err)

			leaves, err := LeavesFromTreeJSON(data)
			require.NoError(t, err)
			rebuilt, err := BuildPayoutTree(leaves)
			require.NoError(t, err)
			assert.Equal(t, tree.RootHash, rebuilt.RootHash)
			assert.Equal(t, tree.Holders(), rebuilt.Holders())
		})
	}

	_, err := LeavesFromTreeJSON([]byte(`{"depth":0,"hash":"0x00","hash_fn":"SHA_256"}`))
	assert.ErrorIs(t, err, types.ErrInternalInconsistency)
	_, err = LeavesFromTreeJSON([]byte(`not json`))
	assert.ErrorIs(t, err, types.ErrInternalInconsistency)
}
