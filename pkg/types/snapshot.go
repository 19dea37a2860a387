package types

import (
	"strings"
)

// SnapshotStatus is the lifecycle state of a snapshot task.
// Transitions are PENDING -> SUCCESS or PENDING -> FAILED, exactly once.
type SnapshotStatus string

const (
	SnapshotStatusPending SnapshotStatus = "PENDING"
	SnapshotStatusSuccess SnapshotStatus = "SUCCESS"
	SnapshotStatusFailed  SnapshotStatus = "FAILED"
)

func (s SnapshotStatus) IsTerminal() bool {
	return s == SnapshotStatusSuccess || s == SnapshotStatusFailed
}

func (s SnapshotStatus) IsValid() bool {
	switch s {
	case SnapshotStatusPending, SnapshotStatusSuccess, SnapshotStatusFailed:
		return true
	}
	return false
}

// PayoutTaskStatus is the status vocabulary of the payout-task API
type PayoutTaskStatus string

const (
	PayoutTaskStatusProofPending  PayoutTaskStatus = "PROOF_PENDING"
	PayoutTaskStatusProofCreated  PayoutTaskStatus = "PROOF_CREATED"
	PayoutTaskStatusProofFailed   PayoutTaskStatus = "PROOF_FAILED"
	PayoutTaskStatusPayoutCreated PayoutTaskStatus = "PAYOUT_CREATED"
)

// PayoutTaskStatusFor maps a snapshot status onto the payout-task vocabulary
func PayoutTaskStatusFor(s SnapshotStatus) PayoutTaskStatus {
	switch s {
	case SnapshotStatusSuccess:
		return PayoutTaskStatusProofCreated
	case SnapshotStatusFailed:
		return PayoutTaskStatusProofFailed
	default:
		return PayoutTaskStatusProofPending
	}
}

// HolderBalance is a single (address, balance) leaf of a snapshot. Balance is a base-10 string of
// token base units.
type HolderBalance struct {
	Address string `json:"address"`
	Balance string `json:"balance"`
}

// SnapshotResult holds the computed data of a successful snapshot
type SnapshotResult struct {
	TotalAssetAmount   string          `json:"total_asset_amount"`
	MerkleRootHash     string          `json:"merkle_root_hash"`
	MerkleTreeDepth    int             `json:"merkle_tree_depth"`
	MerkleTreeIpfsHash string          `json:"merkle_tree_ipfs_hash"`
	HashFn             string          `json:"hash_fn"`
	Holders            []HolderBalance `json:"holders"`
}

// Snapshot is the persisted task record for one snapshot request
type Snapshot struct {
	ID                     string          `json:"id"`
	Name                   string          `json:"name"`
	ChainID                uint64          `json:"chain_id"`
	AssetAddress           string          `json:"asset_address"`
	BlockNumber            uint64          `json:"payout_block_number"`
	IgnoredHolderAddresses []string        `json:"ignored_holder_addresses"`
	Owner                  string          `json:"owner"`
	Status                 SnapshotStatus  `json:"status"`
	FailureCode            ErrorCode       `json:"failure_code,omitempty"`
	FailureReason          string          `json:"failure_reason,omitempty"`
	CreatedAt              int64           `json:"created_at"`
	UpdatedAt              int64           `json:"updated_at"`
	Result                 *SnapshotResult `json:"result,omitempty"`
}

// Clone returns a deep copy so stores never hand out references to their internal state
func (s *Snapshot) Clone() *Snapshot {
	if s == nil {
		return nil
	}
	c := *s
	c.IgnoredHolderAddresses = append([]string(nil), s.IgnoredHolderAddresses...)
	if s.Result != nil {
		r := *s.Result
		r.Holders = append([]HolderBalance(nil), s.Result.Holders...)
		c.Result = &r
	}
	return &c
}

// CreateSnapshotRequest is the body of POST /snapshots
type CreateSnapshotRequest struct {
	Name                   string   `json:"name"`
	ChainID                uint64   `json:"chain_id"`
	AssetAddress           string   `json:"asset_address"`
	BlockNumber            uint64   `json:"payout_block_number"`
	IgnoredHolderAddresses []string `json:"ignored_holder_addresses"`
}

// CreateSnapshotResponse is returned immediately after a task is accepted
type CreateSnapshotResponse struct {
	ID string `json:"id"`
}

// CreatePayoutTaskResponse is returned by the payout-task create endpoint
type CreatePayoutTaskResponse struct {
	TaskID string `json:"task_id"`
}

// PayoutTask is the payout-task view over a snapshot record
type PayoutTask struct {
	TaskID                string           `json:"task_id"`
	ChainID               uint64           `json:"chain_id"`
	AssetAddress          string           `json:"asset_address"`
	BlockNumber           uint64           `json:"payout_block_number"`
	IgnoredAssetAddresses []string         `json:"ignored_asset_addresses"`
	Issuer                string           `json:"issuer,omitempty"`
	Owner                 string           `json:"owner"`
	Status                PayoutTaskStatus `json:"status"`
	TotalAssetAmount      string           `json:"total_asset_amount,omitempty"`
	MerkleRootHash        string           `json:"merkle_root_hash,omitempty"`
	MerkleTreeIpfsHash    string           `json:"merkle_tree_ipfs_hash,omitempty"`
	MerkleTreeDepth       *int             `json:"merkle_tree_depth,omitempty"`
	PayoutID              string           `json:"payout_id,omitempty"`
	ErrorCode             ErrorCode        `json:"error_code,omitempty"`
	ErrorMessage          string           `json:"error_message,omitempty"`
	CreatedAt             int64            `json:"created_at"`
}

// NewPayoutTask builds the payout-task view of a snapshot
func NewPayoutTask(s *Snapshot) *PayoutTask {
	t := &PayoutTask{
		TaskID:                s.ID,
		ChainID:               s.ChainID,
		AssetAddress:          s.AssetAddress,
		BlockNumber:           s.BlockNumber,
		IgnoredAssetAddresses: append([]string{}, s.IgnoredHolderAddresses...),
		Owner:                 s.Owner,
		Status:                PayoutTaskStatusFor(s.Status),
		ErrorCode:             s.FailureCode,
		ErrorMessage:          s.FailureReason,
		CreatedAt:             s.CreatedAt,
	}
	if s.Result != nil {
		depth := s.Result.MerkleTreeDepth
		t.TotalAssetAmount = s.Result.TotalAssetAmount
		t.MerkleRootHash = s.Result.MerkleRootHash
		t.MerkleTreeIpfsHash = s.Result.MerkleTreeIpfsHash
		t.MerkleTreeDepth = &depth
	}
	return t
}

// SnapshotFilter narrows ListSnapshots results. Zero values match everything.
type SnapshotFilter struct {
	ChainID      uint64
	Statuses     []SnapshotStatus
	Owner        string
	AssetAddress string
}

// Matches reports whether s satisfies every set field of the filter
func (f *SnapshotFilter) Matches(s *Snapshot) bool {
	if f == nil {
		return true
	}
	if f.ChainID != 0 && s.ChainID != f.ChainID {
		return false
	}
	if f.Owner != "" && !strings.EqualFold(f.Owner, s.Owner) {
		return false
	}
	if f.AssetAddress != "" && !strings.EqualFold(f.AssetAddress, s.AssetAddress) {
		return false
	}
	if len(f.Statuses) > 0 {
		found := false
		for _, st := range f.Statuses {
			if st == s.Status {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

// ErrorResponse is the JSON body of every API error
type ErrorResponse struct {
	ErrCode     ErrorCode `json:"err_code"`
	Description string    `json:"description"`
	Message     string    `json:"message"`
}

// ListSnapshotsResponse wraps the snapshot listing
type ListSnapshotsResponse struct {
	Snapshots []*Snapshot `json:"snapshots"`
}

// CreatePayoutTaskRequest is the JSON body accepted by the payout-task create endpoint
type CreatePayoutTaskRequest struct {
	Name                  string   `json:"name"`
	BlockNumber           uint64   `json:"payout_block_number"`
	IgnoredAssetAddresses []string `json:"ignored_asset_addresses"`
}

// HealthResponse is the body of GET /health
type HealthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}
