package persistence

import (
	"errors"

	"github.com/Layr-Labs/eigenx-payouts-go/pkg/types"
)

var (
	// ErrSnapshotExists is returned by SaveSnapshot when the id is already taken
	ErrSnapshotExists = errors.New("snapshot already exists")

	// ErrSnapshotNotPending is returned by CompleteSnapshot when the stored record already left
	// the PENDING state. Callers treat it as "someone else finished this task".
	ErrSnapshotNotPending = errors.New("snapshot is not pending")

	// ErrSnapshotNotFound is returned by CompleteSnapshot for unknown ids
	ErrSnapshotNotFound = errors.New("snapshot not found")

	ErrClosed = errors.New("persistence layer is closed")
)

// ISnapshotPersistence stores snapshot task records.
// All implementations must be thread-safe; workers and API handlers use them concurrently.
//
// The interface supports:
// - Creating and reading task records
// - A single compare-and-set transition out of PENDING
// - Lookup of successful snapshots by (chain, asset, merkle root)
// - Lifecycle management (close, health check)
type ISnapshotPersistence interface {
	// SaveSnapshot persists a new snapshot record.
	// Returns ErrSnapshotExists if a record with the same id is already stored.
	SaveSnapshot(snapshot *types.Snapshot) error

	// LoadSnapshot retrieves a snapshot by id.
	// Returns nil if the snapshot doesn't exist, error only on storage failure.
	LoadSnapshot(id string) (*types.Snapshot, error)

	// ListSnapshots returns every snapshot matching filter, sorted by CreatedAt then ID.
	// A nil filter matches everything.
	ListSnapshots(filter *types.SnapshotFilter) ([]*types.Snapshot, error)

	// CompleteSnapshot atomically moves a PENDING snapshot to SUCCESS or FAILED and returns the
	// stored record. Exactly one caller wins; every other caller gets ErrSnapshotNotPending.
	// Successful snapshots are added to the root index.
	CompleteSnapshot(id string, completion *Completion) (*types.Snapshot, error)

	// LoadSnapshotByRoot returns a successful snapshot whose tree has the given root.
	// Returns nil if no such snapshot exists.
	LoadSnapshotByRoot(chainId uint64, assetAddress string, rootHash string) (*types.Snapshot, error)

	// DeleteSnapshot removes a snapshot and its root index entry.
	// Idempotent - returns nil if the snapshot doesn't exist.
	DeleteSnapshot(id string) error

	// Close releases resources. Safe to call more than once.
	Close() error

	// HealthCheck verifies the backend is reachable and usable.
	HealthCheck() error
}
