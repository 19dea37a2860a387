package persistence

import (
	"encoding/json"
	"fmt"

	"github.com/Layr-Labs/eigenx-payouts-go/pkg/types"
)

// MarshalSnapshot serializes a Snapshot to JSON bytes.
func MarshalSnapshot(s *types.Snapshot) ([]byte, error) {
	if s == nil {
		return nil, fmt.Errorf("cannot marshal nil Snapshot")
	}

	data, err := json.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal Snapshot to JSON: %w", err)
	}
	return data, nil
}

// UnmarshalSnapshot deserializes a Snapshot from JSON bytes.
func UnmarshalSnapshot(data []byte) (*types.Snapshot, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var s types.Snapshot
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to Snapshot: %w", err)
	}
	if s.ID == "" {
		return nil, fmt.Errorf("stored snapshot has no id")
	}
	return &s, nil
}
