package memory

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/Layr-Labs/eigenx-payouts-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/types"
)

// MemoryPersistence is an in-memory implementation of ISnapshotPersistence.
// Intended for tests and local development.
//
// All data is lost when the process exits.
// Records are cloned on the way in and out so callers never share state with the store.
type MemoryPersistence struct {
	mu sync.RWMutex

	// id -> snapshot
	snapshots map[string]*types.Snapshot

	// root key -> snapshot id
	roots map[string]string

	closed bool
}

var _ persistence.ISnapshotPersistence = (*MemoryPersistence)(nil)

// NewMemoryPersistence creates a new in-memory persistence layer and warns that nothing survives a restart.
func NewMemoryPersistence(logger *zap.Logger) *MemoryPersistence {
	if logger != nil {
		logger.Sugar().Warnw("Using in-memory snapshot persistence, ALL TASKS WILL BE LOST ON RESTART",
			"hint", "set PAYOUT_PERSISTENCE_TYPE=badger or redis for production",
		)
	}

	return &MemoryPersistence{
		snapshots: make(map[string]*types.Snapshot),
		roots:     make(map[string]string),
	}
}

// SaveSnapshot persists a new snapshot.
func (m *MemoryPersistence) SaveSnapshot(snapshot *types.Snapshot) error {
	if err := persistence.ValidateNew(snapshot); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}
	if _, exists := m.snapshots[snapshot.ID]; exists {
		return fmt.Errorf("%w: %s", persistence.ErrSnapshotExists, snapshot.ID)
	}

	m.snapshots[snapshot.ID] = snapshot.Clone()
	m.indexRoot(snapshot)
	return nil
}

// LoadSnapshot retrieves a snapshot by id.
func (m *MemoryPersistence) LoadSnapshot(id string) (*types.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	s, exists := m.snapshots[id]
	if !exists {
		return nil, nil // Not found is not an error
	}
	return s.Clone(), nil
}

// ListSnapshots returns matching snapshots sorted by creation time.
func (m *MemoryPersistence) ListSnapshots(filter *types.SnapshotFilter) ([]*types.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	result := make([]*types.Snapshot, 0, len(m.snapshots))
	for _, s := range m.snapshots {
		if filter.Matches(s) {
			result = append(result, s.Clone())
		}
	}
	persistence.SortSnapshots(result)
	return result, nil
}

// CompleteSnapshot moves a PENDING snapshot to its terminal state under the write lock.
func (m *MemoryPersistence) CompleteSnapshot(id string, completion *persistence.Completion) (*types.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	current, exists := m.snapshots[id]
	if !exists {
		return nil, fmt.Errorf("%w: %s", persistence.ErrSnapshotNotFound, id)
	}
	next, err := persistence.ApplyCompletion(current, completion)
	if err != nil {
		return nil, err
	}

	m.snapshots[id] = next
	m.indexRoot(next)
	return next.Clone(), nil
}

// LoadSnapshotByRoot resolves the root index.
func (m *MemoryPersistence) LoadSnapshotByRoot(chainId uint64, assetAddress string, rootHash string) (*types.Snapshot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	id, ok := m.roots[persistence.RootKey(chainId, assetAddress, rootHash)]
	if !ok {
		return nil, nil
	}
	s, ok := m.snapshots[id]
	if !ok {
		return nil, nil
	}
	return s.Clone(), nil
}

// DeleteSnapshot removes a snapshot.
func (m *MemoryPersistence) DeleteSnapshot(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}

	s, exists := m.snapshots[id]
	if !exists {
		return nil
	}
	delete(m.snapshots, id)

	key := persistence.RootKeyFor(s)
	if key == "" || m.roots[key] != id {
		return nil
	}
	delete(m.roots, key)

	// Another snapshot with the same tree keeps the root resolvable
	for otherId, other := range m.snapshots {
		if persistence.RootKeyFor(other) == key {
			m.roots[key] = otherId
			break
		}
	}
	return nil
}

// Close shuts down the persistence layer.
func (m *MemoryPersistence) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closed = true
	return nil
}

// HealthCheck verifies the persistence layer is operational.
func (m *MemoryPersistence) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return persistence.ErrClosed
	}
	return nil
}

// indexRoot keeps the first snapshot that produced a root. Caller holds the write lock.
func (m *MemoryPersistence) indexRoot(s *types.Snapshot) {
	key := persistence.RootKeyFor(s)
	if key == "" {
		return
	}
	if _, exists := m.roots[key]; !exists {
		m.roots[key] = s.ID
	}
}
