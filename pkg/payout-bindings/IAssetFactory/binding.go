// Package IAssetFactory is a read-only binding for asset factory contracts.
package IAssetFactory

import (
	_ "embed"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
)

//go:embed abi.json
var abiJSON string

// IAssetFactoryMetaData contains all meta data concerning the IAssetFactory contract.
var IAssetFactoryMetaData = &bind.MetaData{
	ABI: abiJSON,
}

// IAssetFactoryCaller is a read-only binding to the contract
type IAssetFactoryCaller struct {
	contract *bind.BoundContract
}

// NewIAssetFactoryCaller creates a new read-only instance of IAssetFactory, bound to a specific deployed contract.
func NewIAssetFactoryCaller(address common.Address, caller bind.ContractCaller) (*IAssetFactoryCaller, error) {
	parsed, err := IAssetFactoryMetaData.GetAbi()
	if err != nil {
		return nil, err
	}
	return &IAssetFactoryCaller{contract: bind.NewBoundContract(address, *parsed, caller, nil, nil)}, nil
}

// GetInstances is a free data retrieval call binding the contract method getInstances().
func (_IAssetFactory *IAssetFactoryCaller) GetInstances(opts *bind.CallOpts) ([]common.Address, error) {
	var out []interface{}
	err := _IAssetFactory.contract.Call(opts, &out, "getInstances")
	if err != nil {
		return *new([]common.Address), err
	}

	out0 := *abi.ConvertType(out[0], new([]common.Address)).(*[]common.Address)
	return out0, err
}

// GetInstancesForIssuer is a free data retrieval call binding the contract method getInstancesForIssuer(address issuer).
func (_IAssetFactory *IAssetFactoryCaller) GetInstancesForIssuer(opts *bind.CallOpts, issuer common.Address) ([]common.Address, error) {
	var out []interface{}
	err := _IAssetFactory.contract.Call(opts, &out, "getInstancesForIssuer", issuer)
	if err != nil {
		return *new([]common.Address), err
	}

	out0 := *abi.ConvertType(out[0], new([]common.Address)).(*[]common.Address)
	return out0, err
}
