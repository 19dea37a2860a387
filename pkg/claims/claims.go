package claims

import (
	"context"
	"errors"
	"math/big"
	"sort"
	"strings"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Layr-Labs/eigenx-payouts-go/pkg/contractCaller"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/merkle"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/snapshotManager"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/types"
)

// DefaultMaxConcurrentCalls bounds the contract calls issued in parallel for one request
const DefaultMaxConcurrentCalls = 8

// ISnapshotSource is the part of the snapshot manager the claim server reads from
type ISnapshotSource interface {
	LoadTree(ctx context.Context, chainId uint64, assetAddress string, rootHash string) (*merkle.PayoutTree, error)
	List(filter *types.SnapshotFilter) ([]*types.Snapshot, error)
}

// Service answers tree, proof and payout queries
type Service struct {
	snapshots          ISnapshotSource
	callers            snapshotManager.ICallerProvider
	maxConcurrentCalls int
	logger             *zap.Logger
}

func NewService(snapshots ISnapshotSource, callers snapshotManager.ICallerProvider, logger *zap.Logger) *Service {
	return &Service{
		snapshots:          snapshots,
		callers:            callers,
		maxConcurrentCalls: DefaultMaxConcurrentCalls,
		logger:             logger,
	}
}

// ContractAddresses locates the payout contracts of a chain.
// Issuer is optional and narrows the enumeration to the issuer's assets.
type ContractAddresses struct {
	AssetFactories []common.Address
	PayoutService  common.Address
	PayoutManager  common.Address
	Issuer         *common.Address
}

// GetTree returns the tree of asset on chainId with the given root
func (s *Service) GetTree(ctx context.Context, chainId uint64, assetAddress string, rootHash string) (*merkle.PayoutTree, error) {
	asset, root, err := parseTreeKey(assetAddress, rootHash)
	if err != nil {
		return nil, err
	}
	return s.snapshots.LoadTree(ctx, chainId, asset, root)
}

// GetPath returns the balance and inclusion proof of wallet, or NOT_INCLUDED
func (s *Service) GetPath(ctx context.Context, chainId uint64, assetAddress string, rootHash string, wallet string) (*types.MerkleTreePathResponse, error) {
	if !common.IsHexAddress(wallet) {
		return nil, types.NewValidationError("invalid wallet address %q", wallet)
	}
	tree, err := s.GetTree(ctx, chainId, assetAddress, rootHash)
	if err != nil {
		return nil, err
	}
	path, err := tree.GetPath(common.HexToAddress(wallet))
	if err != nil {
		return nil, err
	}
	return PathResponse(path), nil
}

// PathResponse renders a merkle path in its API shape
func PathResponse(path *merkle.Path) *types.MerkleTreePathResponse {
	segments := make([]types.PathSegment, len(path.Segments))
	for i, seg := range path.Segments {
		segments[i] = types.PathSegment{SiblingHash: hexutil.Encode(seg.SiblingHash[:]), IsLeft: seg.IsLeft}
	}
	return &types.MerkleTreePathResponse{
		WalletAddress: strings.ToLower(path.Address.Hex()),
		WalletBalance: path.Balance.String(),
		Path:          segments,
		Proof:         path.HexProof(),
	}
}

func parseTreeKey(assetAddress string, rootHash string) (string, string, error) {
	if !common.IsHexAddress(assetAddress) {
		return "", "", types.NewValidationError("invalid asset address %q", assetAddress)
	}
	root, err := hexutil.Decode(rootHash)
	if err != nil || len(root) != common.HashLength {
		return "", "", types.NewValidationError("invalid merkle root %q", rootHash)
	}
	return strings.ToLower(common.HexToAddress(assetAddress).Hex()), hexutil.Encode(root), nil
}

// Claimable is balance * totalReward / totalAssetAmount rounded down. Claimed, canceled and
// zero-supply payouts have nothing to claim.
func Claimable(balance *big.Int, payout *contractCaller.PayoutInfo, claimed *big.Int) *big.Int {
	if payout.IsCanceled || (claimed != nil && claimed.Sign() > 0) {
		return big.NewInt(0)
	}
	if balance == nil || payout.TotalRewardAmount == nil || payout.TotalAssetAmount == nil || payout.TotalAssetAmount.Sign() <= 0 {
		return big.NewInt(0)
	}
	amount := new(big.Int).Mul(balance, payout.TotalRewardAmount)
	return amount.Quo(amount, payout.TotalAssetAmount)
}

type investorLeaf struct {
	payout *contractCaller.PayoutInfo
	tree   *merkle.PayoutTree
}

// GetPayoutsForInvestor lists the payouts the investor holds a leaf in, with claimed and
// claimable amounts. Payouts whose tree this server never built are left out.
func (s *Service) GetPayoutsForInvestor(ctx context.Context, chainId uint64, investor common.Address, addrs *ContractAddresses) (*types.ClaimablePayoutsResponse, error) {
	caller, err := s.callers.CallerFor(chainId)
	if err != nil {
		return nil, err
	}
	payouts, err := s.enumeratePayouts(ctx, caller, addrs)
	if err != nil {
		return nil, err
	}

	included := make([]*investorLeaf, 0, len(payouts))
	for _, p := range payouts {
		tree, err := s.snapshots.LoadTree(ctx, chainId, strings.ToLower(p.Asset.Hex()), p.RootHex())
		if err != nil {
			if errors.Is(err, types.ErrNotFound) {
				s.logger.Sugar().Debugw("No snapshot for payout", "payoutId", p.PayoutId, "root", p.RootHex())
				continue
			}
			return nil, err
		}
		if !tree.Contains(investor) {
			continue
		}
		included = append(included, &investorLeaf{payout: p, tree: tree})
	}

	response := &types.ClaimablePayoutsResponse{ClaimablePayouts: make([]*types.InvestorPayout, 0, len(included))}
	if len(included) == 0 {
		return response, nil
	}

	ids := make([]*big.Int, len(included))
	for i, l := range included {
		ids[i] = l.payout.PayoutId
	}
	claimed, err := caller.GetPayoutStatesForInvestor(ctx, addrs.PayoutService, investor, addrs.PayoutManager, ids)
	if err != nil {
		return nil, err
	}

	for _, l := range included {
		amountClaimed := claimed[l.payout.PayoutId.String()]
		if amountClaimed == nil {
			amountClaimed = big.NewInt(0)
		}
		balance := l.tree.BalanceOf(investor)
		claimable := Claimable(balance, l.payout, amountClaimed)

		entry := &types.InvestorPayout{
			Payout:          *l.payout.ToRecord(),
			Investor:        strings.ToLower(investor.Hex()),
			AmountClaimed:   amountClaimed.String(),
			AmountClaimable: claimable.String(),
			Balance:         balance.String(),
		}
		if claimable.Sign() > 0 {
			path, err := l.tree.GetPath(investor)
			if err != nil {
				return nil, err
			}
			entry.Proof = path.HexProof()
		}
		response.ClaimablePayouts = append(response.ClaimablePayouts, entry)
	}
	return response, nil
}

// enumeratePayouts lists on-chain payouts either through the issuer index of the payout service
// or by walking every asset instance of the factories.
func (s *Service) enumeratePayouts(ctx context.Context, caller contractCaller.IContractCaller, addrs *ContractAddresses) ([]*contractCaller.PayoutInfo, error) {
	if addrs == nil {
		return nil, types.NewValidationError("payout contract addresses are required")
	}
	if addrs.Issuer != nil {
		payouts, err := caller.GetPayoutsForIssuer(ctx, addrs.PayoutService, *addrs.Issuer, addrs.PayoutManager, addrs.AssetFactories)
		if err != nil {
			return nil, err
		}
		sortPayouts(payouts)
		return payouts, nil
	}

	assets, err := s.assetInstances(ctx, caller, addrs.AssetFactories)
	if err != nil {
		return nil, err
	}

	perAsset := make([][]*contractCaller.PayoutInfo, len(assets))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrentCalls)
	for i, asset := range assets {
		g.Go(func() error {
			payouts, err := caller.GetPayoutsForAsset(gctx, addrs.PayoutManager, asset)
			if err != nil {
				return err
			}
			perAsset[i] = payouts
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]*contractCaller.PayoutInfo, 0)
	for _, payouts := range perAsset {
		out = append(out, payouts...)
	}
	sortPayouts(out)
	return out, nil
}

func (s *Service) assetInstances(ctx context.Context, caller contractCaller.IContractCaller, factories []common.Address) ([]common.Address, error) {
	perFactory := make([][]common.Address, len(factories))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.maxConcurrentCalls)
	for i, factory := range factories {
		g.Go(func() error {
			instances, err := caller.GetAssetInstances(gctx, factory)
			if err != nil {
				return err
			}
			perFactory[i] = instances
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	seen := make(map[common.Address]bool)
	assets := make([]common.Address, 0)
	for _, instances := range perFactory {
		for _, a := range instances {
			if seen[a] {
				continue
			}
			seen[a] = true
			assets = append(assets, a)
		}
	}
	return assets, nil
}

func sortPayouts(payouts []*contractCaller.PayoutInfo) {
	sort.SliceStable(payouts, func(i, j int) bool {
		if payouts[i].PayoutId == nil || payouts[j].PayoutId == nil {
			return payouts[j].PayoutId != nil
		}
		return payouts[i].PayoutId.Cmp(payouts[j].PayoutId) < 0
	})
}
