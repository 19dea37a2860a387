// Package IPayoutService is a read-only binding for the PayoutService contract.
package IPayoutService

import (
	_ "embed"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

//go:embed abi.json
var abiJSON string

// IPayoutServiceMetaData contains all meta data concerning the IPayoutService contract.
var IPayoutServiceMetaData = &bind.MetaData{
	ABI: abiJSON,
}

// StructsPayoutInfo is an auto generated low-level Go binding around an user-defined struct.
type StructsPayoutInfo struct {
	PayoutId                    *big.Int
	PayoutOwner                 common.Address
	PayoutInfo                  string
	IsCanceled                  bool
	Asset                       common.Address
	TotalAssetAmount            *big.Int
	IgnoredHolderAddresses      []common.Address
	AssetSnapshotMerkleRoot     [32]byte
	AssetSnapshotMerkleDepth    uint8
	AssetSnapshotBlockNumber    *big.Int
	AssetSnapshotMerkleIpfsHash string
	RewardAsset                 common.Address
	TotalRewardAmount           *big.Int
	RemainingRewardAmount       *big.Int
}

// StructsPayoutStateForInvestor is an auto generated low-level Go binding around an user-defined struct.
type StructsPayoutStateForInvestor struct {
	PayoutId      *big.Int
	Investor      common.Address
	AmountClaimed *big.Int
}

// IPayoutServiceCaller is a read-only binding to the contract
type IPayoutServiceCaller struct {
	contract *bind.BoundContract
}

// NewIPayoutServiceCaller creates a new read-only instance of IPayoutService, bound to a specific deployed contract.
func NewIPayoutServiceCaller(address common.Address, caller bind.ContractCaller) (*IPayoutServiceCaller, error) {
	parsed, err := IPayoutServiceMetaData.GetAbi()
	if err != nil {
		return nil, err
	}
	return &IPayoutServiceCaller{contract: bind.NewBoundContract(address, *parsed, caller, nil, nil)}, nil
}

// GetPayoutsForIssuer is a free data retrieval call binding the contract method getPayoutsForIssuer(address issuer, address payoutManager, address[] assetFactories).
func (_IPayoutService *IPayoutServiceCaller) GetPayoutsForIssuer(opts *bind.CallOpts, issuer common.Address, payoutManager common.Address, assetFactories []common.Address) ([]StructsPayoutInfo, error) {
	var out []interface{}
	err := _IPayoutService.contract.Call(opts, &out, "getPayoutsForIssuer", issuer, payoutManager, assetFactories)
	if err != nil {
		return *new([]StructsPayoutInfo), err
	}

	out0 := *abi.ConvertType(out[0], new([]StructsPayoutInfo)).(*[]StructsPayoutInfo)
	return out0, err
}

// GetPayoutStatesForInvestor is a free data retrieval call binding the contract method getPayoutStatesForInvestor(address investor, address payoutManager, uint256[] payoutIds).
func (_IPayoutService *IPayoutServiceCaller) GetPayoutStatesForInvestor(opts *bind.CallOpts, investor common.Address, payoutManager common.Address, payoutIds []*big.Int) ([]StructsPayoutStateForInvestor, error) {
	var out []interface{}
	err := _IPayoutService.contract.Call(opts, &out, "getPayoutStatesForInvestor", investor, payoutManager, payoutIds)
	if err != nil {
		return *new([]StructsPayoutStateForInvestor), err
	}

	out0 := *abi.ConvertType(out[0], new([]StructsPayoutStateForInvestor)).(*[]StructsPayoutStateForInvestor)
	return out0, err
}
