package merkle

import (
	"bytes"
	"encoding/json"
	"math/big"
	"math/bits"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/Layr-Labs/eigenx-payouts-go/pkg/types"
)

// BuildPayoutTree creates a payout tree from holder leaves.
// Leaves are sorted by address bytes before placement so the same holder set always yields
// the same root. The leaf level is padded with nil leaves up to the next power of two.
func BuildPayoutTree(leaves []Leaf) (*PayoutTree, error) {
	sorted := SortLeaves(leaves)

	total := new(big.Int)
	index := make(map[common.Address]int, len(sorted))
	for i, leaf := range sorted {
		if leaf.Balance == nil || leaf.Balance.Sign() <= 0 {
			return nil, types.NewInconsistencyError("leaf %s has non-positive balance", addressString(leaf.Address))
		}
		if leaf.Balance.BitLen() > 256 {
			return nil, types.NewInconsistencyError("leaf %s balance exceeds uint256", addressString(leaf.Address))
		}
		if _, ok := index[leaf.Address]; ok {
			return nil, types.NewInconsistencyError("duplicate leaf address %s", addressString(leaf.Address))
		}
		index[leaf.Address] = i
		total.Add(total, leaf.Balance)
	}

	depth := depthFor(len(sorted))
	width := 1 << depth

	// Hash the leaf level, padding with nil leaves
	leafLevel := make([][32]byte, width)
	for i := range leafLevel {
		if i < len(sorted) {
			leafLevel[i] = HashLeaf(sorted[i])
		} else {
			leafLevel[i] = NilHash
		}
	}

	levels := make([][][32]byte, 0, depth+1)
	levels = append(levels, leafLevel)

	currentLevel := leafLevel
	for len(currentLevel) > 1 {
		nextLevel := make([][32]byte, len(currentLevel)/2)
		for i := 0; i < len(currentLevel); i += 2 {
			nextLevel[i/2] = hashPair(currentLevel[i], currentLevel[i+1])
		}
		levels = append(levels, nextLevel)
		currentLevel = nextLevel
	}

	rootHash := NilHash
	if len(sorted) > 0 {
		rootHash = currentLevel[0]
	}

	return &PayoutTree{
		Depth:    depth,
		RootHash: rootHash,
		Total:    total,
		Leaves:   sorted,
		levels:   levels,
		index:    index,
	}, nil
}

// BuildPayoutTreeFromBalances builds a tree from a holder -> balance map
func BuildPayoutTreeFromBalances(balances map[common.Address]*big.Int) (*PayoutTree, error) {
	leaves := make([]Leaf, 0, len(balances))
	for addr, bal := range balances {
		leaves = append(leaves, Leaf{Address: addr, Balance: bal})
	}
	return BuildPayoutTree(leaves)
}

// SortLeaves returns a copy of leaves ordered by address bytes, which is the same order as
// lowercase hex.
func SortLeaves(leaves []Leaf) []Leaf {
	sorted := make([]Leaf, len(leaves))
	copy(sorted, leaves)
	sort.SliceStable(sorted, func(i, j int) bool {
		return bytes.Compare(sorted[i].Address[:], sorted[j].Address[:]) < 0
	})
	return sorted
}

// HashLeaf computes keccak256(abi.encodePacked(address, uint256 balance))
func HashLeaf(leaf Leaf) [32]byte {
	data := make([]byte, 0, common.AddressLength+32)
	data = append(data, leaf.Address.Bytes()...)
	data = append(data, common.LeftPadBytes(leaf.Balance.Bytes(), 32)...)
	return [32]byte(crypto.Keccak256Hash(data))
}

// hashPair hashes two sibling hashes, smaller first
func hashPair(a, b [32]byte) [32]byte {
	if bytes.Compare(a[:], b[:]) > 0 {
		a, b = b, a
	}
	data := make([]byte, 64)
	copy(data[0:32], a[:])
	copy(data[32:64], b[:])
	return [32]byte(crypto.Keccak256Hash(data))
}

func depthFor(n int) int {
	if n <= 1 {
		return 0
	}
	return bits.Len(uint(n - 1))
}

// Size is the number of holder leaves
func (t *PayoutTree) Size() int {
	return len(t.Leaves)
}

// RootHex returns the 0x-prefixed root hash
func (t *PayoutTree) RootHex() string {
	return hexutil.Encode(t.RootHash[:])
}

// Contains reports whether address has a leaf in the tree
func (t *PayoutTree) Contains(address common.Address) bool {
	_, ok := t.index[address]
	return ok
}

// BalanceOf returns the leaf balance of address, or nil when it is not a leaf
func (t *PayoutTree) BalanceOf(address common.Address) *big.Int {
	i, ok := t.index[address]
	if !ok {
		return nil
	}
	return new(big.Int).Set(t.Leaves[i].Balance)
}

// Root materializes the tree structure. An empty tree is a single NilNode.
func (t *PayoutTree) Root() Node {
	if len(t.Leaves) == 0 {
		return NilNode{}
	}
	return t.node(t.Depth, 0)
}

func (t *PayoutTree) node(level, pos int) Node {
	if level == 0 {
		if pos >= len(t.Leaves) {
			return NilNode{}
		}
		return &LeafNode{Leaf: t.Leaves[pos], hash: t.levels[0][pos]}
	}
	return &PathNode{
		Left:  t.node(level-1, pos*2),
		Right: t.node(level-1, pos*2+1),
		hash:  t.levels[level][pos],
	}
}

// GetPath walks from the leaf of address to the root, collecting sibling hashes.
// Addresses without a leaf yield a NOT_INCLUDED error.
func (t *PayoutTree) GetPath(address common.Address) (*Path, error) {
	pos, ok := t.index[address]
	if !ok {
		return nil, types.NewNotIncludedError(addressString(address), t.RootHex())
	}

	segments := make([]PathSegment, 0, t.Depth)
	proof := make([][32]byte, 0, t.Depth)
	for level := 0; level < t.Depth; level++ {
		current := t.levels[level][pos]
		hash := t.levels[level][pos^1]
		segments = append(segments, PathSegment{SiblingHash: hash, IsLeft: bytes.Compare(hash[:], current[:]) < 0})
		proof = append(proof, hash)
		pos /= 2
	}

	leaf := t.Leaves[t.index[address]]
	return &Path{
		Address:  leaf.Address,
		Balance:  new(big.Int).Set(leaf.Balance),
		LeafHash: t.levels[0][t.index[address]],
		Segments: segments,
		Proof:    proof,
	}, nil
}

// VerifyProof recomputes the root from a leaf hash and a bare proof, the same way the on-chain
// contract does, and compares it with root.
func VerifyProof(leafHash [32]byte, proof [][32]byte, root [32]byte) bool {
	current := leafHash
	for _, sibling := range proof {
		current = hashPair(current, sibling)
	}
	return current == root
}

// VerifyPath checks that path proves its leaf against root
func VerifyPath(path *Path, root [32]byte) bool {
	if path == nil || path.Balance == nil {
		return false
	}
	leafHash := HashLeaf(Leaf{Address: path.Address, Balance: path.Balance})
	if leafHash != path.LeafHash {
		return false
	}
	current := leafHash
	for _, s := range path.Segments {
		if s.IsLeft != (bytes.Compare(s.SiblingHash[:], current[:]) < 0) {
			return false
		}
		current = foldSegment(current, s)
	}
	return current == root
}

// foldSegment concatenates the sibling first when IsLeft is set
func foldSegment(current [32]byte, s PathSegment) [32]byte {
	data := make([]byte, 0, 64)
	if s.IsLeft {
		data = append(append(data, s.SiblingHash[:]...), current[:]...)
	} else {
		data = append(append(data, current[:]...), s.SiblingHash[:]...)
	}
	return [32]byte(crypto.Keccak256Hash(data))
}

func addressString(a common.Address) string {
	return hexutil.Encode(a[:])
}

type leafDataJSON struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

type nodeJSON struct {
	Hash  string        `json:"hash"`
	Data  *leafDataJSON `json:"data,omitempty"`
	Left  *nodeJSON     `json:"left,omitempty"`
	Right *nodeJSON     `json:"right,omitempty"`
}

type treeJSON struct {
	Depth  int           `json:"depth"`
	Hash   string        `json:"hash"`
	HashFn string        `json:"hash_fn"`
	Data   *leafDataJSON `json:"data,omitempty"`
	Left   *nodeJSON     `json:"left,omitempty"`
	Right  *nodeJSON     `json:"right,omitempty"`
}

func encodeNode(n Node) *nodeJSON {
	h := n.Hash()
	out := &nodeJSON{Hash: hexutil.Encode(h[:])}
	switch v := n.(type) {
	case *LeafNode:
		out.Data = &leafDataJSON{Address: addressString(v.Leaf.Address), Balance: v.Leaf.Balance.String()}
	case *PathNode:
		out.Left = encodeNode(v.Left)
		out.Right = encodeNode(v.Right)
	}
	return out
}

// MarshalJSON renders the tree as {depth, hash, hash_fn, left, right}; a single-leaf tree
// carries the leaf data in place of children. left and right are tree positions: a node hash is
// keccak256 over its two child hashes with the smaller hash first, not left then right.
func (t *PayoutTree) MarshalJSON() ([]byte, error) {
	root := encodeNode(t.Root())
	return json.Marshal(&treeJSON{
		Depth:  t.Depth,
		Hash:   root.Hash,
		HashFn: HashFnKeccak256,
		Data:   root.Data,
		Left:   root.Left,
		Right:  root.Right,
	})
}

// Holders renders the leaves as lowercase address / decimal balance pairs in tree order
func (t *PayoutTree) Holders() []types.HolderBalance {
	holders := make([]types.HolderBalance, len(t.Leaves))
	for i, leaf := range t.Leaves {
		holders[i] = types.HolderBalance{Address: addressString(leaf.Address), Balance: leaf.Balance.String()}
	}
	return holders
}

// LeavesFromHolders parses stored holder balances back into leaves
func LeavesFromHolders(holders []types.HolderBalance) ([]Leaf, error) {
	leaves := make([]Leaf, 0, len(holders))
	for _, h := range holders {
		if !common.IsHexAddress(h.Address) {
			return nil, types.NewInconsistencyError("stored holder has invalid address %q", h.Address)
		}
		balance, ok := new(big.Int).SetString(h.Balance, 10)
		if !ok {
			return nil, types.NewInconsistencyError("stored holder %s has invalid balance %q", h.Address, h.Balance)
		}
		leaves = append(leaves, Leaf{Address: common.HexToAddress(h.Address), Balance: balance})
	}
	return leaves, nil
}

// LeavesFromTreeJSON collects the holder leaves of a tree document produced by MarshalJSON, in
// tree order. Padding slots carry no data and are skipped.
func LeavesFromTreeJSON(data []byte) ([]Leaf, error) {
	var doc treeJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, types.NewInconsistencyError("stored merkle tree is not valid JSON: %v", err)
	}
	if doc.HashFn != HashFnKeccak256 {
		return nil, types.NewInconsistencyError("stored merkle tree uses hash function %q", doc.HashFn)
	}

	holders := make([]types.HolderBalance, 0)
	var walk func(n *nodeJSON)
	walk = func(n *nodeJSON) {
		if n == nil {
			return
		}
		if n.Data != nil {
			holders = append(holders, types.HolderBalance{Address: n.Data.Address, Balance: n.Data.Balance})
			return
		}
		walk(n.Left)
		walk(n.Right)
	}
	walk(&nodeJSON{Hash: doc.Hash, Data: doc.Data, Left: doc.Left, Right: doc.Right})
	return LeavesFromHolders(holders)
}
