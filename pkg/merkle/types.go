package merkle

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// HashFnKeccak256 names the hash function used for leaves and internal nodes. Internal nodes hash
// the sorted pair of child hashes, so a bare proof verifies without leaf indices.
const HashFnKeccak256 = "KECCAK_256"

// NilHash is the hash of a padding leaf. No keccak256 output is all zero bytes, so a
// padding slot can never be mistaken for a holder leaf.
var NilHash = [32]byte{}

// Leaf is a single (address, balance) entry of a payout tree
type Leaf struct {
	Address common.Address
	Balance *big.Int
}

// Node is one of NilNode, LeafNode or PathNode
type Node interface {
	Hash() [32]byte
	isNode()
}

// NilNode is a padding slot
type NilNode struct{}

func (NilNode) Hash() [32]byte { return NilHash }
func (NilNode) isNode()        {}

// LeafNode is a holder leaf
type LeafNode struct {
	Leaf Leaf
	hash [32]byte
}

func (n *LeafNode) Hash() [32]byte { return n.hash }
func (*LeafNode) isNode()          {}

// PathNode is an internal node with exactly two children
type PathNode struct {
	Left  Node
	Right Node
	hash  [32]byte
}

func (n *PathNode) Hash() [32]byte { return n.hash }
func (*PathNode) isNode()          {}

// PayoutTree is a perfect binary keccak256 tree over holder balances, sorted by address.
type PayoutTree struct {
	// Depth is ceil(log2(len(Leaves))), 0 for zero or one leaf
	Depth int

	// RootHash is the hash of the root node, NilHash for an empty tree
	RootHash [32]byte

	// Total is the sum of all leaf balances
	Total *big.Int

	// Leaves holds the holder leaves in tree order
	Leaves []Leaf

	// levels[0] holds the padded leaf hashes, levels[Depth] holds the root
	levels [][][32]byte
	index  map[common.Address]int
}

// PathSegment is one step from a leaf towards the root. IsLeft reports whether the sibling hash
// is concatenated before the running hash, which is the case when it is the smaller of the two.
type PathSegment struct {
	SiblingHash [32]byte
	IsLeft      bool
}

// Path proves the inclusion of one holder leaf
type Path struct {
	Address  common.Address
	Balance  *big.Int
	LeafHash [32]byte
	Segments []PathSegment

	// Proof is the bare sibling list, leaf side first, as consumed by on-chain verification
	Proof [][32]byte
}

// HexProof renders Proof as 0x-prefixed hex strings
func (p *Path) HexProof() []string {
	out := make([]string, len(p.Proof))
	for i, h := range p.Proof {
		out[i] = hexutil.Encode(h[:])
	}
	return out
}
