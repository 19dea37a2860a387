package caller

import (
	"context"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/Layr-Labs/eigenx-payouts-go/pkg/contractCaller"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/payout-bindings/IAssetFactory"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/payout-bindings/IPayoutManager"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/payout-bindings/IPayoutService"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/types"
)

// ContractCaller reads payout contracts through a bind.ContractCaller.
// Contract addresses are supplied per call because deployments differ per issuer.
type ContractCaller struct {
	backend bind.ContractCaller
	chainId uint64
	logger  *zap.Logger
}

var _ contractCaller.IContractCaller = (*ContractCaller)(nil)

func NewContractCaller(backend bind.ContractCaller, chainId uint64, logger *zap.Logger) *ContractCaller {
	return &ContractCaller{
		backend: backend,
		chainId: chainId,
		logger:  logger,
	}
}

func (cc *ContractCaller) callOpts(ctx context.Context) *bind.CallOpts {
	return &bind.CallOpts{Context: ctx}
}

func (cc *ContractCaller) wrap(method string, contract common.Address, err error) error {
	cc.logger.Sugar().Debugw("Contract call failed",
		"chainId", cc.chainId,
		"method", method,
		"contract", contract.Hex(),
		"error", err,
	)
	return types.NewChainQueryError(fmt.Sprintf("%s on %s failed", method, contract.Hex()), err)
}

func (cc *ContractCaller) GetPayoutsForAsset(ctx context.Context, payoutManager common.Address, asset common.Address) ([]*contractCaller.PayoutInfo, error) {
	pm, err := IPayoutManager.NewIPayoutManagerCaller(payoutManager, cc.backend)
	if err != nil {
		return nil, fmt.Errorf("failed to bind payout manager: %w", err)
	}
	infos, err := pm.GetPayoutsForAsset(cc.callOpts(ctx), asset)
	if err != nil {
		return nil, cc.wrap("getPayoutsForAsset", payoutManager, err)
	}
	out := make([]*contractCaller.PayoutInfo, 0, len(infos))
	for _, info := range infos {
		out = append(out, fromManagerInfo(info))
	}
	return out, nil
}

func (cc *ContractCaller) GetPayoutsForIssuer(
	ctx context.Context,
	payoutService common.Address,
	issuer common.Address,
	payoutManager common.Address,
	assetFactories []common.Address,
) ([]*contractCaller.PayoutInfo, error) {
	ps, err := IPayoutService.NewIPayoutServiceCaller(payoutService, cc.backend)
	if err != nil {
		return nil, fmt.Errorf("failed to bind payout service: %w", err)
	}
	infos, err := ps.GetPayoutsForIssuer(cc.callOpts(ctx), issuer, payoutManager, assetFactories)
	if err != nil {
		return nil, cc.wrap("getPayoutsForIssuer", payoutService, err)
	}
	out := make([]*contractCaller.PayoutInfo, 0, len(infos))
	for _, info := range infos {
		out = append(out, fromServiceInfo(info))
	}
	return out, nil
}

func (cc *ContractCaller) GetPayoutStatesForInvestor(
	ctx context.Context,
	payoutService common.Address,
	investor common.Address,
	payoutManager common.Address,
	payoutIds []*big.Int,
) (map[string]*big.Int, error) {
	claimed := make(map[string]*big.Int, len(payoutIds))
	if len(payoutIds) == 0 {
		return claimed, nil
	}

	ps, err := IPayoutService.NewIPayoutServiceCaller(payoutService, cc.backend)
	if err != nil {
		return nil, fmt.Errorf("failed to bind payout service: %w", err)
	}
	states, err := ps.GetPayoutStatesForInvestor(cc.callOpts(ctx), investor, payoutManager, payoutIds)
	if err != nil {
		return nil, cc.wrap("getPayoutStatesForInvestor", payoutService, err)
	}
	for _, s := range states {
		claimed[s.PayoutId.String()] = s.AmountClaimed
	}
	return claimed, nil
}

func (cc *ContractCaller) GetAssetInstances(ctx context.Context, assetFactory common.Address) ([]common.Address, error) {
	af, err := IAssetFactory.NewIAssetFactoryCaller(assetFactory, cc.backend)
	if err != nil {
		return nil, fmt.Errorf("failed to bind asset factory: %w", err)
	}
	instances, err := af.GetInstances(cc.callOpts(ctx))
	if err != nil {
		return nil, cc.wrap("getInstances", assetFactory, err)
	}
	return instances, nil
}

func fromManagerInfo(i IPayoutManager.StructsPayoutInfo) *contractCaller.PayoutInfo {
	return &contractCaller.PayoutInfo{
		PayoutId:                    i.PayoutId,
		PayoutOwner:                 i.PayoutOwner,
		Info:                        i.PayoutInfo,
		IsCanceled:                  i.IsCanceled,
		Asset:                       i.Asset,
		TotalAssetAmount:            i.TotalAssetAmount,
		IgnoredHolderAddresses:      i.IgnoredHolderAddresses,
		AssetSnapshotMerkleRoot:     common.Hash(i.AssetSnapshotMerkleRoot),
		AssetSnapshotMerkleDepth:    i.AssetSnapshotMerkleDepth,
		AssetSnapshotBlockNumber:    i.AssetSnapshotBlockNumber,
		AssetSnapshotMerkleIpfsHash: i.AssetSnapshotMerkleIpfsHash,
		RewardAsset:                 i.RewardAsset,
		TotalRewardAmount:           i.TotalRewardAmount,
		RemainingRewardAmount:       i.RemainingRewardAmount,
	}
}

// The service binding carries its own copy of the struct; the layouts are identical.
func fromServiceInfo(i IPayoutService.StructsPayoutInfo) *contractCaller.PayoutInfo {
	return fromManagerInfo(IPayoutManager.StructsPayoutInfo(i))
}
