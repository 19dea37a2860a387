// Package IPayoutManager is a read-only binding for the PayoutManager contract.
package IPayoutManager

import (
	_ "embed"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

//go:embed abi.json
var abiJSON string

// IPayoutManagerMetaData contains all meta data concerning the IPayoutManager contract.
var IPayoutManagerMetaData = &bind.MetaData{
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

// IPayoutManagerCaller is a read-only binding to the contract
type IPayoutManagerCaller struct {
	contract *bind.BoundContract
}

// NewIPayoutManagerCaller creates a new read-only instance of IPayoutManager, bound to a specific deployed contract.
func NewIPayoutManagerCaller(address common.Address, caller bind.ContractCaller) (*IPayoutManagerCaller, error) {
	parsed, err := IPayoutManagerMetaData.GetAbi()
	if err != nil {
		return nil, err
	}
	return &IPayoutManagerCaller{contract: bind.NewBoundContract(address, *parsed, caller, nil, nil)}, nil
}

// GetPayoutInfo is a free data retrieval call binding the contract method getPayoutInfo(uint256 payoutId).
func (_IPayoutManager *IPayoutManagerCaller) GetPayoutInfo(opts *bind.CallOpts, payoutId *big.Int) (StructsPayoutInfo, error) {
	var out []interface{}
	err := _IPayoutManager.contract.Call(opts, &out, "getPayoutInfo", payoutId)
	if err != nil {
		return *new(StructsPayoutInfo), err
	}

	out0 := *abi.ConvertType(out[0], new(StructsPayoutInfo)).(*StructsPayoutInfo)
	return out0, err
}

// GetPayoutsForAsset is a free data retrieval call binding the contract method getPayoutsForAsset(address asset).
func (_IPayoutManager *IPayoutManagerCaller) GetPayoutsForAsset(opts *bind.CallOpts, asset common.Address) ([]StructsPayoutInfo, error) {
	var out []interface{}
	err := _IPayoutManager.contract.Call(opts, &out, "getPayoutsForAsset", asset)
	if err != nil {
		return *new([]StructsPayoutInfo), err
	}

	out0 := *abi.ConvertType(out[0], new([]StructsPayoutInfo)).(*[]StructsPayoutInfo)
	return out0, err
}

// GetAmountOfClaimedFunds is a free data retrieval call binding the contract method getAmountOfClaimedFunds(uint256 payoutId, address investor).
func (_IPayoutManager *IPayoutManagerCaller) GetAmountOfClaimedFunds(opts *bind.CallOpts, payoutId *big.Int, investor common.Address) (*big.Int, error) {
	var out []interface{}
	err := _IPayoutManager.contract.Call(opts, &out, "getAmountOfClaimedFunds", payoutId, investor)
	if err != nil {
		return *new(*big.Int), err
	}

	out0 := *abi.ConvertType(out[0], new(*big.Int)).(**big.Int)
	return out0, err
}

// PackClaim encodes calldata for claim(uint256 payoutId, address investor, uint256 balance, bytes32[] proof).
// The service never submits it; the payout tool prints it for investors.
func PackClaim(payoutId *big.Int, investor common.Address, balance *big.Int, proof [][32]byte) ([]byte, error) {
	parsed, err := IPayoutManagerMetaData.GetAbi()
	if err != nil {
		return nil, err
	}
	return parsed.Pack("claim", payoutId, investor, balance, proof)
}
