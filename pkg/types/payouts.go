package types

// PathSegment is one step of a merkle path from leaf to root
type PathSegment struct {
	SiblingHash string `json:"sibling_hash"`
	IsLeft      bool   `json:"is_left"`
}

// MerkleTreePathResponse is the response of the wallet path endpoint
type MerkleTreePathResponse struct {
	WalletAddress string        `json:"wallet_address"`
	WalletBalance string        `json:"wallet_balance"`
	Path          []PathSegment `json:"path"`
	Proof         []string      `json:"proof"`
}

// PayoutRecord is the API shape of an on-chain payout
type PayoutRecord struct {
	PayoutID                    string   `json:"payout_id"`
	PayoutOwner                 string   `json:"payout_owner"`
	PayoutInfo                  string   `json:"payout_info"`
	IsCanceled                  bool     `json:"is_canceled"`
	Asset                       string   `json:"asset"`
	TotalAssetAmount            string   `json:"total_asset_amount"`
	IgnoredHolderAddresses      []string `json:"ignored_holder_addresses"`
	AssetSnapshotMerkleRoot     string   `json:"asset_snapshot_merkle_root"`
	AssetSnapshotMerkleDepth    int      `json:"asset_snapshot_merkle_depth"`
	AssetSnapshotBlockNumber    string   `json:"asset_snapshot_block_number"`
	AssetSnapshotMerkleIpfsHash string   `json:"asset_snapshot_merkle_ipfs_hash"`
	RewardAsset                 string   `json:"reward_asset"`
	TotalRewardAmount           string   `json:"total_reward_amount"`
	RemainingRewardAmount       string   `json:"remaining_reward_amount"`
}

// InvestorPayout is one entry of the claimable payouts list for an investor
type InvestorPayout struct {
	Payout          PayoutRecord `json:"payout"`
	Investor        string       `json:"investor"`
	AmountClaimed   string       `json:"amount_claimed"`
	AmountClaimable string       `json:"amount_claimable"`
	Balance         string       `json:"balance"`
	Proof           []string     `json:"proof,omitempty"`
}

// ClaimablePayoutsResponse wraps the investor payout list
type ClaimablePayoutsResponse struct {
	ClaimablePayouts []*InvestorPayout `json:"claimable_payouts"`
}

// AdminPayout is an entry of the admin payout listing. Payouts already created on-chain carry
// the Payout record; tasks that have not reached the chain carry only the Task.
type AdminPayout struct {
	Status PayoutTaskStatus `json:"status"`
	Owner  string           `json:"owner"`
	Payout *PayoutRecord    `json:"payout,omitempty"`
	Task   *PayoutTask      `json:"task,omitempty"`
}

// AdminPayoutsResponse wraps the admin payout list
type AdminPayoutsResponse struct {
	Payouts []*AdminPayout `json:"payouts"`
}
