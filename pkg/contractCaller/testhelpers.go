package contractCaller

import (
	"context"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
)

// FakeContractCaller is an in-memory IContractCaller for tests.
// Payouts are registered per payout manager; issuers own asset instances per factory.
type FakeContractCaller struct {
	mu sync.Mutex

	// payoutManager -> payouts
	Payouts map[common.Address][]*PayoutInfo

	// payoutId -> investor -> claimed amount
	Claimed map[string]map[common.Address]*big.Int

	// assetFactory -> issuer -> instances
	Instances map[common.Address]map[common.Address][]common.Address

	// Err, when set, is returned by every call
	Err error

	Calls int
}

var _ IContractCaller = (*FakeContractCaller)(nil)

func NewFakeContractCaller() *FakeContractCaller {
	return &FakeContractCaller{
		Payouts:   make(map[common.Address][]*PayoutInfo),
		Claimed:   make(map[string]map[common.Address]*big.Int),
		Instances: make(map[common.Address]map[common.Address][]common.Address),
	}
}

// AddPayout registers a payout under a payout manager
func (f *FakeContractCaller) AddPayout(payoutManager common.Address, p *PayoutInfo) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Payouts[payoutManager] = append(f.Payouts[payoutManager], p)
}

// AddInstance registers an asset created by issuer through assetFactory
func (f *FakeContractCaller) AddInstance(assetFactory, issuer, asset common.Address) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.Instances[assetFactory] == nil {
		f.Instances[assetFactory] = make(map[common.Address][]common.Address)
	}
	f.Instances[assetFactory][issuer] = append(f.Instances[assetFactory][issuer], asset)
}

// SetClaimed records an amount already claimed by investor
func (f *FakeContractCaller) SetClaimed(payoutId *big.Int, investor common.Address, amount *big.Int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := payoutId.String()
	if f.Claimed[key] == nil {
		f.Claimed[key] = make(map[common.Address]*big.Int)
	}
	f.Claimed[key][investor] = amount
}

func (f *FakeContractCaller) enter() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls++
	return f.Err
}

func (f *FakeContractCaller) GetPayoutsForAsset(ctx context.Context, payoutManager common.Address, asset common.Address) ([]*PayoutInfo, error) {
	if err := f.enter(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*PayoutInfo, 0)
	for _, p := range f.Payouts[payoutManager] {
		if p.Asset == asset {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *FakeContractCaller) GetPayoutsForIssuer(
	ctx context.Context,
	payoutService common.Address,
	issuer common.Address,
	payoutManager common.Address,
	assetFactories []common.Address,
) ([]*PayoutInfo, error) {
	if err := f.enter(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	owned := make(map[common.Address]bool)
	for _, factory := range assetFactories {
		for _, a := range f.Instances[factory][issuer] {
			owned[a] = true
		}
	}
	out := make([]*PayoutInfo, 0)
	for _, p := range f.Payouts[payoutManager] {
		if owned[p.Asset] {
			out = append(out, p)
		}
	}
	return out, nil
}

func (f *FakeContractCaller) GetPayoutStatesForInvestor(
	ctx context.Context,
	payoutService common.Address,
	investor common.Address,
	payoutManager common.Address,
	payoutIds []*big.Int,
) (map[string]*big.Int, error) {
	if err := f.enter(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make(map[string]*big.Int, len(payoutIds))
	for _, id := range payoutIds {
		amount := big.NewInt(0)
		if claimed, ok := f.Claimed[id.String()][investor]; ok {
			amount = new(big.Int).Set(claimed)
		}
		out[id.String()] = amount
	}
	return out, nil
}

func (f *FakeContractCaller) GetAssetInstances(ctx context.Context, assetFactory common.Address) ([]common.Address, error) {
	if err := f.enter(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]common.Address, 0)
	for _, instances := range f.Instances[assetFactory] {
		out = append(out, instances...)
	}
	return out, nil
}
