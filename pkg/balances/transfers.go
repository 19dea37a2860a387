package balances

import (
	"math/big"
	"sort"

	"github.com/ethereum/go-ethereum/common"
	ethTypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/Layr-Labs/eigenx-payouts-go/pkg/clients/ethereum"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/types"
)

// Transfer is a decoded ERC-20 Transfer event
type Transfer struct {
	From        common.Address
	To          common.Address
	Value       *big.Int
	BlockNumber uint64
	TxIndex     uint
	LogIndex    uint
	Removed     bool
}

// DecodeTransfer decodes Transfer(address indexed from, address indexed to, uint256 value)
func DecodeTransfer(l ethTypes.Log) (*Transfer, error) {
	if len(l.Topics) != 3 || l.Topics[0] != ethereum.TransferTopic {
		return nil, types.NewInconsistencyError("log %d of block %d is not an ERC-20 Transfer (%d topics)", l.Index, l.BlockNumber, len(l.Topics))
	}
	if len(l.Data) != 32 {
		return nil, types.NewInconsistencyError("log %d of block %d has %d data bytes, expected 32", l.Index, l.BlockNumber, len(l.Data))
	}
	return &Transfer{
		From:        common.BytesToAddress(l.Topics[1].Bytes()),
		To:          common.BytesToAddress(l.Topics[2].Bytes()),
		Value:       new(big.Int).SetBytes(l.Data),
		BlockNumber: l.BlockNumber,
		TxIndex:     l.TxIndex,
		LogIndex:    l.Index,
		Removed:     l.Removed,
	}, nil
}

type eventKey struct {
	block    uint64
	logIndex uint
}

// DedupAndSort drops removed logs and duplicates of the same (block, log index), then orders the
// remaining transfers by (block, tx index, log index).
func DedupAndSort(transfers []*Transfer) []*Transfer {
	seen := make(map[eventKey]bool, len(transfers))
	out := make([]*Transfer, 0, len(transfers))
	for _, t := range transfers {
		if t.Removed {
			continue
		}
		k := eventKey{block: t.BlockNumber, logIndex: t.LogIndex}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].BlockNumber != out[j].BlockNumber {
			return out[i].BlockNumber < out[j].BlockNumber
		}
		if out[i].TxIndex != out[j].TxIndex {
			return out[i].TxIndex < out[j].TxIndex
		}
		return out[i].LogIndex < out[j].LogIndex
	})
	return out
}

// ApplyTransfers folds ordered transfers into a balance map. Mints come from the zero address and
// burns go to it; the zero address itself never holds a balance. A debit larger than the sender's
// running balance is an inconsistency.
func ApplyTransfers(transfers []*Transfer) (map[common.Address]*big.Int, error) {
	balances := make(map[common.Address]*big.Int)
	zero := common.Address{}

	for _, t := range transfers {
		if t.Value.Sign() < 0 {
			return nil, types.NewInconsistencyError("negative transfer value in block %d log %d", t.BlockNumber, t.LogIndex)
		}
		if t.From != zero {
			bal, ok := balances[t.From]
			if !ok || bal.Cmp(t.Value) < 0 {
				have := big.NewInt(0)
				if ok {
					have = bal
				}
				return nil, types.NewInconsistencyError("balance underflow for %s in block %d log %d: have %s, sending %s",
					t.From.Hex(), t.BlockNumber, t.LogIndex, have.String(), t.Value.String())
			}
			bal.Sub(bal, t.Value)
		}
		if t.To != zero {
			bal, ok := balances[t.To]
			if !ok {
				bal = new(big.Int)
				balances[t.To] = bal
			}
			bal.Add(bal, t.Value)
		}
	}
	return balances, nil
}

// FilterHolders drops zero balances and ignored addresses and returns the remaining holders with
// their total.
func FilterHolders(balances map[common.Address]*big.Int, ignored []common.Address) (map[common.Address]*big.Int, *big.Int) {
	skip := make(map[common.Address]bool, len(ignored))
	for _, a := range ignored {
		skip[a] = true
	}

	holders := make(map[common.Address]*big.Int, len(balances))
	total := new(big.Int)
	for addr, bal := range balances {
		if bal.Sign() == 0 || skip[addr] {
			continue
		}
		holders[addr] = new(big.Int).Set(bal)
		total.Add(total, bal)
	}
	return holders, total
}
