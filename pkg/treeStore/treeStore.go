package treeStore

import (
	"context"
	"fmt"

	"github.com/ipfs/go-cid"
	"github.com/multiformats/go-multihash"
)

// ITreeStore is a content addressed blob store for serialized payout trees.
// Content ids are CIDv1 (raw codec, sha2-256) of the stored bytes.
type ITreeStore interface {
	// Put stores data and returns its content id. Storing the same bytes twice is a no-op.
	Put(ctx context.Context, data []byte) (string, error)

	// Get returns the bytes stored under contentId, or a NOT_FOUND error
	Get(ctx context.Context, contentId string) ([]byte, error)
}

// ContentID computes the CIDv1 of data
func ContentID(data []byte) (string, error) {
	mh, err := multihash.Sum(data, multihash.SHA2_256, -1)
	if err != nil {
		return "", fmt.Errorf("failed to hash content: %w", err)
	}
	return cid.NewCidV1(cid.Raw, mh).String(), nil
}

// VerifyContent checks that data hashes to contentId
func VerifyContent(contentId string, data []byte) error {
	expected, err := cid.Decode(contentId)
	if err != nil {
		return fmt.Errorf("invalid content id %q: %w", contentId, err)
	}
	actual, err := expected.Prefix().Sum(data)
	if err != nil {
		return fmt.Errorf("failed to hash content: %w", err)
	}
	if !actual.Equals(expected) {
		return fmt.Errorf("content does not match id %s", contentId)
	}
	return nil
}
