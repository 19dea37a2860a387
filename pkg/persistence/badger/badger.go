package badger

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"

	"github.com/Layr-Labs/eigenx-payouts-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/types"
)

// Key prefixes for namespacing
const (
	keyPrefixSnapshot    = "snapshot:"
	keyPrefixRoot        = "root:"
	keySchemaVersion     = "metadata:schema_version"
	currentSchemaVersion = "v1"

	// maxConflictRetries bounds how often a transaction is replayed after badger reports a
	// write conflict with a concurrent transaction.
	maxConflictRetries = 16
)

// BadgerPersistence stores snapshot tasks on local disk.
// Read-modify-write operations run in badger transactions, so the PENDING -> terminal transition
// is serialized even across goroutines.
type BadgerPersistence struct {
	db       *badgerdb.DB
	logger   *zap.Logger
	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

var _ persistence.ISnapshotPersistence = (*BadgerPersistence)(nil)

// NewBadgerPersistence opens (or creates) the database at dataPath with SyncWrites enabled and
// starts background value log GC.
func NewBadgerPersistence(dataPath string, logger *zap.Logger) (*BadgerPersistence, error) {
	absPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	opts := badgerdb.DefaultOptions(absPath)
	opts.Logger = &badgerLoggerAdapter{logger: logger.With(zap.String("component", "badger"))}
	opts.SyncWrites = true
	opts.CompactL0OnClose = true
	opts.NumVersionsToKeep = 1

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", absPath, err)
	}

	bp := &BadgerPersistence{
		db:     db,
		logger: logger,
	}

	if err := bp.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	bp.gcCancel = cancel
	bp.gcWg.Add(1)
	go bp.runGC(ctx)

	logger.Sugar().Infow("Badger snapshot persistence initialized", "path", absPath)

	return bp, nil
}

func (b *BadgerPersistence) initSchema() error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return txn.Set([]byte(keySchemaVersion), []byte(currentSchemaVersion))
		}
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}

		existing, err := item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("failed to read schema version value: %w", err)
		}
		if string(existing) != currentSchemaVersion {
			return fmt.Errorf("unsupported schema version: %s (expected: %s)", existing, currentSchemaVersion)
		}
		return nil
	})
}

func (b *BadgerPersistence) runGC(ctx context.Context) {
	defer b.gcWg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := b.db.RunValueLogGC(0.5)
			if err != nil && !errors.Is(err, badgerdb.ErrNoRewrite) {
				b.logger.Sugar().Warnw("Badger GC error", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func snapshotKey(id string) []byte {
	return []byte(keyPrefixSnapshot + id)
}

func rootKey(key string) []byte {
	return []byte(keyPrefixRoot + key)
}

// update runs fn in a read-write transaction, replaying it when badger detects a conflict
func (b *BadgerPersistence) update(fn func(txn *badgerdb.Txn) error) error {
	var err error
	for attempt := 0; attempt < maxConflictRetries; attempt++ {
		err = b.db.Update(fn)
		if !errors.Is(err, badgerdb.ErrConflict) {
			return err
		}
	}
	return fmt.Errorf("transaction kept conflicting after %d attempts: %w", maxConflictRetries, err)
}

func getSnapshot(txn *badgerdb.Txn, id string) (*types.Snapshot, error) {
	item, err := txn.Get(snapshotKey(id))
	if errors.Is(err, badgerdb.ErrKeyNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get snapshot %s: %w", id, err)
	}
	data, err := item.ValueCopy(nil)
	if err != nil {
		return nil, fmt.Errorf("failed to read snapshot %s: %w", id, err)
	}
	return persistence.UnmarshalSnapshot(data)
}

func putSnapshot(txn *badgerdb.Txn, s *types.Snapshot) error {
	data, err := persistence.MarshalSnapshot(s)
	if err != nil {
		return err
	}
	return txn.Set(snapshotKey(s.ID), data)
}

// indexRoot keeps the first snapshot that produced a root
func indexRoot(txn *badgerdb.Txn, s *types.Snapshot) error {
	key := persistence.RootKeyFor(s)
	if key == "" {
		return nil
	}
	_, err := txn.Get(rootKey(key))
	if err == nil {
		return nil
	}
	if !errors.Is(err, badgerdb.ErrKeyNotFound) {
		return fmt.Errorf("failed to read root index: %w", err)
	}
	return txn.Set(rootKey(key), []byte(s.ID))
}

// SaveSnapshot persists a new snapshot
func (b *BadgerPersistence) SaveSnapshot(snapshot *types.Snapshot) error {
	if err := persistence.ValidateNew(snapshot); err != nil {
		return err
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	return b.update(func(txn *badgerdb.Txn) error {
		_, err := txn.Get(snapshotKey(snapshot.ID))
		if err == nil {
			return fmt.Errorf("%w: %s", persistence.ErrSnapshotExists, snapshot.ID)
		}
		if !errors.Is(err, badgerdb.ErrKeyNotFound) {
			return fmt.Errorf("failed to check snapshot %s: %w", snapshot.ID, err)
		}
		if err := putSnapshot(txn, snapshot); err != nil {
			return err
		}
		return indexRoot(txn, snapshot)
	})
}

// LoadSnapshot retrieves a snapshot by id
func (b *BadgerPersistence) LoadSnapshot(id string) (*types.Snapshot, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, persistence.ErrClosed
	}

	var s *types.Snapshot
	err := b.db.View(func(txn *badgerdb.Txn) error {
		var err error
		s, err = getSnapshot(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// ListSnapshots scans the snapshot prefix and filters in process
func (b *BadgerPersistence) ListSnapshots(filter *types.SnapshotFilter) ([]*types.Snapshot, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, persistence.ErrClosed
	}

	snapshots := make([]*types.Snapshot, 0)
	err := b.db.View(func(txn *badgerdb.Txn) error {
		return b.scanSnapshots(txn, func(s *types.Snapshot) bool {
			if filter.Matches(s) {
				snapshots = append(snapshots, s)
			}
			return true
		})
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}

	persistence.SortSnapshots(snapshots)
	return snapshots, nil
}

// scanSnapshots calls fn for every decodable snapshot until fn returns false
func (b *BadgerPersistence) scanSnapshots(txn *badgerdb.Txn, fn func(s *types.Snapshot) bool) error {
	opts := badgerdb.DefaultIteratorOptions
	opts.Prefix = []byte(keyPrefixSnapshot)

	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()
		data, err := item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("failed to read value: %w", err)
		}

		s, err := persistence.UnmarshalSnapshot(data)
		if err != nil {
			b.logger.Sugar().Warnw("Failed to unmarshal Snapshot, skipping",
				"key", string(item.Key()), "error", err)
			continue
		}
		if !fn(s) {
			return nil
		}
	}
	return nil
}

// CompleteSnapshot moves a PENDING snapshot to its terminal state in a single transaction
func (b *BadgerPersistence) CompleteSnapshot(id string, completion *persistence.Completion) (*types.Snapshot, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, persistence.ErrClosed
	}

	var next *types.Snapshot
	err := b.update(func(txn *badgerdb.Txn) error {
		current, err := getSnapshot(txn, id)
		if err != nil {
			return err
		}
		if current == nil {
			return fmt.Errorf("%w: %s", persistence.ErrSnapshotNotFound, id)
		}
		next, err = persistence.ApplyCompletion(current, completion)
		if err != nil {
			return err
		}
		if err := putSnapshot(txn, next); err != nil {
			return err
		}
		return indexRoot(txn, next)
	})
	if err != nil {
		return nil, err
	}
	return next, nil
}

// LoadSnapshotByRoot resolves the root index
func (b *BadgerPersistence) LoadSnapshotByRoot(chainId uint64, assetAddress string, rootHash string) (*types.Snapshot, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, persistence.ErrClosed
	}

	var s *types.Snapshot
	err := b.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(rootKey(persistence.RootKey(chainId, assetAddress, rootHash)))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read root index: %w", err)
		}
		id, err := item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("failed to read root index value: %w", err)
		}
		s, err = getSnapshot(txn, string(id))
		return err
	})
	if err != nil {
		return nil, err
	}
	return s, nil
}

// DeleteSnapshot removes a snapshot and repoints its root index entry when another snapshot
// produced the same tree
func (b *BadgerPersistence) DeleteSnapshot(id string) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	return b.update(func(txn *badgerdb.Txn) error {
		s, err := getSnapshot(txn, id)
		if err != nil {
			return err
		}
		if s == nil {
			return nil
		}
		if err := txn.Delete(snapshotKey(id)); err != nil {
			return fmt.Errorf("failed to delete snapshot %s: %w", id, err)
		}

		key := persistence.RootKeyFor(s)
		if key == "" {
			return nil
		}
		item, err := txn.Get(rootKey(key))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read root index: %w", err)
		}
		indexed, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}
		if string(indexed) != id {
			return nil
		}

		replacement := ""
		err = b.scanSnapshots(txn, func(other *types.Snapshot) bool {
			if other.ID != id && persistence.RootKeyFor(other) == key {
				replacement = other.ID
				return false
			}
			return true
		})
		if err != nil {
			return err
		}
		if replacement != "" {
			return txn.Set(rootKey(key), []byte(replacement))
		}
		return txn.Delete(rootKey(key))
	})
}

// Close stops GC and closes the database. Idempotent.
func (b *BadgerPersistence) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	if b.gcCancel != nil {
		b.gcCancel()
	}
	b.gcWg.Wait()

	if err := b.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger database: %w", err)
	}

	b.logger.Sugar().Info("Badger snapshot persistence closed")
	return nil
}

// HealthCheck reads the schema version key
func (b *BadgerPersistence) HealthCheck() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	return b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(keySchemaVersion))
		if err != nil {
			return fmt.Errorf("health check failed: %w", err)
		}
		return nil
	})
}
