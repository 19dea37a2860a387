package claims

import (
	"context"
	"strings"

	"github.com/Layr-Labs/eigenx-payouts-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/types"
)

// AdminFilter narrows the admin payout listing. Zero values match everything.
type AdminFilter struct {
	Statuses []types.PayoutTaskStatus
	Owner    string
}

func (f *AdminFilter) matches(p *types.AdminPayout) bool {
	if f == nil {
		return true
	}
	if f.Owner != "" && !strings.EqualFold(f.Owner, p.Owner) {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, st := range f.Statuses {
		if st == p.Status {
			return true
		}
	}
	return false
}

// GetPayouts merges the on-chain payouts of chainId with the snapshot tasks of the chain that
// have not reached the chain yet. On-chain payouts come first, ordered by payout id, followed by
// tasks in creation order.
func (s *Service) GetPayouts(ctx context.Context, chainId uint64, addrs *ContractAddresses, filter *AdminFilter) (*types.AdminPayoutsResponse, error) {
	caller, err := s.callers.CallerFor(chainId)
	if err != nil {
		return nil, err
	}
	payouts, err := s.enumeratePayouts(ctx, caller, addrs)
	if err != nil {
		return nil, err
	}
	tasks, err := s.snapshots.List(&types.SnapshotFilter{ChainID: chainId})
	if err != nil {
		return nil, err
	}

	response := &types.AdminPayoutsResponse{Payouts: make([]*types.AdminPayout, 0, len(payouts)+len(tasks))}
	onChain := make(map[string]bool, len(payouts))
	for _, p := range payouts {
		record := p.ToRecord()
		onChain[persistence.RootKey(chainId, record.Asset, record.AssetSnapshotMerkleRoot)] = true

		entry := &types.AdminPayout{
			Status: types.PayoutTaskStatusPayoutCreated,
			Owner:  record.PayoutOwner,
			Payout: record,
		}
		if filter.matches(entry) {
			response.Payouts = append(response.Payouts, entry)
		}
	}

	for _, t := range tasks {
		if key := persistence.RootKeyFor(t); key != "" && onChain[key] {
			continue
		}
		task := types.NewPayoutTask(t)
		entry := &types.AdminPayout{
			Status: task.Status,
			Owner:  t.Owner,
			Task:   task,
		}
		if filter.matches(entry) {
			response.Payouts = append(response.Payouts, entry)
		}
	}
	return response, nil
}
