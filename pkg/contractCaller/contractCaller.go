package contractCaller

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Layr-Labs/eigenx-payouts-go/pkg/types"
)

// IContractCaller reads the payout contracts of one chain
type IContractCaller interface {
	GetPayoutsForAsset(ctx context.Context, payoutManager common.Address, asset common.Address) ([]*PayoutInfo, error)

	GetPayoutsForIssuer(
		ctx context.Context,
		payoutService common.Address,
		issuer common.Address,
		payoutManager common.Address,
		assetFactories []common.Address,
	) ([]*PayoutInfo, error)

	// GetPayoutStatesForInvestor returns claimed amounts keyed by payout id
	GetPayoutStatesForInvestor(
		ctx context.Context,
		payoutService common.Address,
		investor common.Address,
		payoutManager common.Address,
		payoutIds []*big.Int,
	) (map[string]*big.Int, error)

	GetAssetInstances(ctx context.Context, assetFactory common.Address) ([]common.Address, error)
}

// PayoutInfo is an on-chain payout as stored by the PayoutManager
type PayoutInfo struct {
	PayoutId                    *big.Int
	PayoutOwner                 common.Address
	Info                        string
	IsCanceled                  bool
	Asset                       common.Address
	TotalAssetAmount            *big.Int
	IgnoredHolderAddresses      []common.Address
	AssetSnapshotMerkleRoot     common.Hash
	AssetSnapshotMerkleDepth    uint8
	AssetSnapshotBlockNumber    *big.Int
	AssetSnapshotMerkleIpfsHash string
	RewardAsset                 common.Address
	TotalRewardAmount           *big.Int
	RemainingRewardAmount       *big.Int
}

// RootHex is the lowercase 0x form of the snapshot root
func (p *PayoutInfo) RootHex() string {
	return strings.ToLower(p.AssetSnapshotMerkleRoot.Hex())
}

// ToRecord converts the payout to its API shape
func (p *PayoutInfo) ToRecord() *types.PayoutRecord {
	ignored := make([]string, 0, len(p.IgnoredHolderAddresses))
	for _, a := range p.IgnoredHolderAddresses {
		ignored = append(ignored, lowerHex(a))
	}
	return &types.PayoutRecord{
		PayoutID:                    bigString(p.PayoutId),
		PayoutOwner:                 lowerHex(p.PayoutOwner),
		PayoutInfo:                  p.Info,
		IsCanceled:                  p.IsCanceled,
		Asset:                       lowerHex(p.Asset),
		TotalAssetAmount:            bigString(p.TotalAssetAmount),
		IgnoredHolderAddresses:      ignored,
		AssetSnapshotMerkleRoot:     p.RootHex(),
		AssetSnapshotMerkleDepth:    int(p.AssetSnapshotMerkleDepth),
		AssetSnapshotBlockNumber:    bigString(p.AssetSnapshotBlockNumber),
		AssetSnapshotMerkleIpfsHash: p.AssetSnapshotMerkleIpfsHash,
		RewardAsset:                 lowerHex(p.RewardAsset),
		TotalRewardAmount:           bigString(p.TotalRewardAmount),
		RemainingRewardAmount:       bigString(p.RemainingRewardAmount),
	}
}

func lowerHex(a common.Address) string {
	return strings.ToLower(a.Hex())
}

func bigString(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

// Registry holds one contract caller per chain
type Registry struct {
	mu      sync.RWMutex
	callers map[uint64]IContractCaller
}

func NewRegistry() *Registry {
	return &Registry{callers: make(map[uint64]IContractCaller)}
}

func (r *Registry) Add(chainId uint64, caller IContractCaller) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.callers[chainId] = caller
}

// CallerFor returns the caller of a configured chain
func (r *Registry) CallerFor(chainId uint64) (IContractCaller, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.callers[chainId]
	if !ok {
		return nil, types.NewValidationError("chain %d is not configured", chainId)
	}
	return c, nil
}

// ParseAddresses parses a comma separated list of hex addresses, skipping empty entries
func ParseAddresses(csv string) ([]common.Address, error) {
	out := make([]common.Address, 0)
	for _, part := range strings.Split(csv, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		if !common.IsHexAddress(part) {
			return nil, fmt.Errorf("invalid address: %q", part)
		}
		out = append(out, common.HexToAddress(part))
	}
	return out, nil
}
