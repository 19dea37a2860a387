package snapshotManager

import (
	"context"
	"strings"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Layr-Labs/eigenx-payouts-go/pkg/merkle"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/metrics"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/types"
)

// LoadTree returns the tree of a successful snapshot of asset on chainId whose root is rootHash.
// Trees are rebuilt from the stored tree document, or from the record's holders when the tree
// store cannot serve it, and the root is checked before they are served.
func (m *Manager) LoadTree(ctx context.Context, chainId uint64, assetAddress string, rootHash string) (*merkle.PayoutTree, error) {
	key := persistence.RootKey(chainId, assetAddress, rootHash)
	if tree, ok := m.cache.Get(key); ok {
		metrics.TreeCacheLookups.WithLabelValues("hit").Inc()
		return tree, nil
	}
	metrics.TreeCacheLookups.WithLabelValues("miss").Inc()

	s, err := m.store.LoadSnapshotByRoot(chainId, assetAddress, rootHash)
	if err != nil {
		return nil, err
	}
	if s == nil || s.Result == nil {
		return nil, types.NewNotFoundError("no snapshot of asset %s on chain %d has merkle root %s", strings.ToLower(assetAddress), chainId, strings.ToLower(rootHash))
	}

	leaves, err := m.storedLeaves(ctx, s)
	if err != nil {
		return nil, err
	}
	tree, err := merkle.BuildPayoutTree(leaves)
	if err != nil {
		return nil, err
	}
	if !strings.EqualFold(tree.RootHex(), rootHash) {
		return nil, types.NewInconsistencyError("snapshot %s rebuilds to root %s, expected %s", s.ID, tree.RootHex(), strings.ToLower(rootHash))
	}

	m.cache.Add(key, tree)
	return tree, nil
}

func (m *Manager) storedLeaves(ctx context.Context, s *types.Snapshot) ([]merkle.Leaf, error) {
	if contentId := s.Result.MerkleTreeIpfsHash; contentId != "" {
		data, err := m.trees.Get(ctx, contentId)
		if err == nil {
			return merkle.LeavesFromTreeJSON(data)
		}
		m.logger.Sugar().Warnw("Failed to read stored merkle tree, rebuilding from holders",
			"id", s.ID,
			"contentId", contentId,
			"error", err,
		)
	}
	return merkle.LeavesFromHolders(s.Result.Holders)
}

// GetPayoutTask returns the payout-task view of a snapshot. When payoutManager is given, a
// successful task whose root is carried by an on-chain payout for its asset is reported as
// PAYOUT_CREATED.
func (m *Manager) GetPayoutTask(ctx context.Context, chainId uint64, id string, payoutManager *common.Address) (*types.PayoutTask, error) {
	s, err := m.GetById(id)
	if err != nil {
		return nil, err
	}
	if s.ChainID != chainId {
		return nil, types.NewNotFoundError("payout task %s not found on chain %d", id, chainId)
	}

	task := types.NewPayoutTask(s)
	if s.Status != types.SnapshotStatusSuccess || s.Result == nil || payoutManager == nil || m.callers == nil {
		return task, nil
	}

	caller, err := m.callers.CallerFor(chainId)
	if err != nil {
		return nil, err
	}
	payouts, err := caller.GetPayoutsForAsset(ctx, *payoutManager, common.HexToAddress(s.AssetAddress))
	if err != nil {
		return nil, err
	}
	for _, p := range payouts {
		if strings.EqualFold(p.RootHex(), s.Result.MerkleRootHash) {
			task.Status = types.PayoutTaskStatusPayoutCreated
			task.PayoutID = p.PayoutId.String()
			task.Issuer = strings.ToLower(p.PayoutOwner.Hex())
			break
		}
	}
	return task, nil
}
