package persistence

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Layr-Labs/eigenx-payouts-go/pkg/types"
)

// Completion describes the terminal transition of a snapshot task
type Completion struct {
	Status        types.SnapshotStatus
	Result        *types.SnapshotResult
	FailureCode   types.ErrorCode
	FailureReason string
	UpdatedAt     int64
}

// Succeeded builds a SUCCESS completion
func Succeeded(result *types.SnapshotResult, at int64) *Completion {
	return &Completion{Status: types.SnapshotStatusSuccess, Result: result, UpdatedAt: at}
}

// Failed builds a FAILED completion
func Failed(code types.ErrorCode, reason string, at int64) *Completion {
	return &Completion{Status: types.SnapshotStatusFailed, FailureCode: code, FailureReason: reason, UpdatedAt: at}
}

// Validate checks that the completion is a legal terminal state
func (c *Completion) Validate() error {
	if c == nil {
		return fmt.Errorf("cannot apply nil Completion")
	}
	switch c.Status {
	case types.SnapshotStatusSuccess:
		if c.Result == nil {
			return fmt.Errorf("successful completion requires a result")
		}
		if c.Result.MerkleRootHash == "" {
			return fmt.Errorf("successful completion requires a merkle root")
		}
	case types.SnapshotStatusFailed:
		if c.FailureCode == "" {
			return fmt.Errorf("failed completion requires a failure code")
		}
	default:
		return fmt.Errorf("completion status must be terminal, got %q", c.Status)
	}
	return nil
}

// ApplyCompletion returns a copy of current moved to the completion's terminal state.
// Every backend runs this inside its own atomic section.
func ApplyCompletion(current *types.Snapshot, c *Completion) (*types.Snapshot, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if current.Status != types.SnapshotStatusPending {
		return nil, ErrSnapshotNotPending
	}

	next := current.Clone()
	next.Status = c.Status
	next.UpdatedAt = c.UpdatedAt
	if c.Status == types.SnapshotStatusSuccess {
		r := *c.Result
		r.Holders = append([]types.HolderBalance(nil), c.Result.Holders...)
		next.Result = &r
		next.FailureCode = ""
		next.FailureReason = ""
	} else {
		next.Result = nil
		next.FailureCode = c.FailureCode
		next.FailureReason = c.FailureReason
	}
	return next, nil
}

// RootKey is the backend independent key of the root index
func RootKey(chainId uint64, assetAddress string, rootHash string) string {
	return fmt.Sprintf("%d:%s:%s", chainId, strings.ToLower(assetAddress), strings.ToLower(rootHash))
}

// RootKeyFor returns the root index key of a successful snapshot, or "" when it has no root
func RootKeyFor(s *types.Snapshot) string {
	if s == nil || s.Status != types.SnapshotStatusSuccess || s.Result == nil {
		return ""
	}
	return RootKey(s.ChainID, s.AssetAddress, s.Result.MerkleRootHash)
}

// ValidateNew checks a record handed to SaveSnapshot
func ValidateNew(s *types.Snapshot) error {
	if s == nil {
		return fmt.Errorf("cannot save nil Snapshot")
	}
	if s.ID == "" {
		return fmt.Errorf("snapshot id is required")
	}
	if !s.Status.IsValid() {
		return fmt.Errorf("invalid snapshot status %q", s.Status)
	}
	return nil
}

// SortSnapshots orders by CreatedAt, then ID
func SortSnapshots(snapshots []*types.Snapshot) {
	sort.Slice(snapshots, func(i, j int) bool {
		if snapshots[i].CreatedAt != snapshots[j].CreatedAt {
			return snapshots[i].CreatedAt < snapshots[j].CreatedAt
		}
		return snapshots[i].ID < snapshots[j].ID
	})
}
