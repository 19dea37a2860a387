package balances

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	ethTypes "github.com/ethereum/go-ethereum/core/types"

	"github.com/Layr-Labs/eigenx-payouts-go/pkg/clients/ethereum"
)

// FakeChainReader serves canned Transfer logs for tests in other packages
type FakeChainReader struct {
	mu   sync.Mutex
	Head uint64
	Logs []ethTypes.Log

	// BeforeLogs, when set, runs before every TransferLogs call and may fail it
	BeforeLogs func(ctx context.Context) error
}

var _ IChainReader = (*FakeChainReader)(nil)

func (f *FakeChainReader) BlockNumber(ctx context.Context) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Head, nil
}

func (f *FakeChainReader) TransferLogs(ctx context.Context, token common.Address, fromBlock, toBlock uint64) ([]ethTypes.Log, error) {
	if f.BeforeLogs != nil {
		if err := f.BeforeLogs(ctx); err != nil {
			return nil, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]ethTypes.Log, 0)
	for _, l := range f.Logs {
		if l.Address == token && l.BlockNumber >= fromBlock && l.BlockNumber <= toBlock {
			out = append(out, l)
		}
	}
	return out, nil
}

// AddTransfer appends a Transfer log of token
func (f *FakeChainReader) AddTransfer(token common.Address, block uint64, from, to common.Address, value *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Logs = append(f.Logs, ethTypes.Log{
		Address: token,
		Topics: []common.Hash{
			ethereum.TransferTopic,
			common.BytesToHash(from.Bytes()),
			common.BytesToHash(to.Bytes()),
		},
		Data:        common.LeftPadBytes(value.Bytes(), 32),
		BlockNumber: block,
		Index:       uint(len(f.Logs)),
	})
}
