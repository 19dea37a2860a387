package snapshotManager

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/Layr-Labs/eigenx-payouts-go/pkg/balances"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/config"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/contractCaller"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/merkle"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/metrics"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/treeStore"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/types"
)

const (
	MaxNameLength        = 256
	MaxIgnoredAddresses  = 1000
	DefaultSweepInterval = time.Minute
	DefaultTreeCacheSize = 64
)

// ICallerProvider resolves the payout contract caller of a chain
type ICallerProvider interface {
	CallerFor(chainId uint64) (contractCaller.IContractCaller, error)
}

type ManagerConfig struct {
	Workers          int
	QueueSize        int
	TaskTimeout      time.Duration
	StaleTaskTimeout time.Duration
	SweepInterval    time.Duration
	TreeCacheSize    int
}

// Dependencies are the collaborators of the manager. Callers is optional; without it payout
// tasks never report PAYOUT_CREATED.
type Dependencies struct {
	Store         persistence.ISnapshotPersistence
	Trees         treeStore.ITreeStore
	Chains        map[uint64]balances.IChainReader
	Reconstructor *balances.Reconstructor
	Callers       ICallerProvider
	Clock         clockwork.Clock
}

// Manager accepts snapshot tasks, runs them on a bounded worker pool and serves their results
type Manager struct {
	config        *ManagerConfig
	store         persistence.ISnapshotPersistence
	trees         treeStore.ITreeStore
	chains        map[uint64]balances.IChainReader
	reconstructor *balances.Reconstructor
	callers       ICallerProvider
	clock         clockwork.Clock
	logger        *zap.Logger

	queue chan string
	cache *lru.Cache[string, *merkle.PayoutTree]

	mu       sync.Mutex
	inFlight map[string]bool
	running  map[string]bool
	started  bool
	cancel   context.CancelFunc
	wg       sync.WaitGroup
}

func NewManager(cfg *ManagerConfig, deps *Dependencies, logger *zap.Logger) (*Manager, error) {
	if deps == nil || deps.Store == nil || deps.Trees == nil || deps.Reconstructor == nil {
		return nil, errors.New("store, tree store and reconstructor are required")
	}
	if cfg.Workers < 1 {
		cfg.Workers = config.DefaultWorkers
	}
	if cfg.QueueSize < 1 {
		cfg.QueueSize = config.DefaultQueueSize
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = config.DefaultTaskTimeout
	}
	if cfg.StaleTaskTimeout <= 0 {
		cfg.StaleTaskTimeout = config.DefaultStaleTaskTimeout
	}
	if cfg.SweepInterval <= 0 {
		cfg.SweepInterval = DefaultSweepInterval
	}
	if cfg.TreeCacheSize < 1 {
		cfg.TreeCacheSize = DefaultTreeCacheSize
	}

	cache, err := lru.New[string, *merkle.PayoutTree](cfg.TreeCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create tree cache: %w", err)
	}

	clock := deps.Clock
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	chains := deps.Chains
	if chains == nil {
		chains = make(map[uint64]balances.IChainReader)
	}

	return &Manager{
		config:        cfg,
		store:         deps.Store,
		trees:         deps.Trees,
		chains:        chains,
		reconstructor: deps.Reconstructor,
		callers:       deps.Callers,
		clock:         clock,
		logger:        logger,
		queue:         make(chan string, cfg.QueueSize),
		cache:         cache,
		inFlight:      make(map[string]bool),
		running:       make(map[string]bool),
	}, nil
}

// Start launches the workers, re-enqueues tasks left PENDING by a previous process and starts
// the stale task sweep.
func (m *Manager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return errors.New("snapshot manager already started")
	}
	ctx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.started = true
	m.mu.Unlock()

	for i := 0; i < m.config.Workers; i++ {
		m.wg.Add(1)
		go m.worker(ctx)
	}

	if err := m.recoverPending(); err != nil {
		m.Stop()
		return fmt.Errorf("failed to recover pending snapshots: %w", err)
	}

	m.wg.Add(1)
	go m.sweepLoop(ctx)

	m.logger.Sugar().Infow("Snapshot manager started",
		"workers", m.config.Workers,
		"queueSize", m.config.QueueSize,
		"taskTimeout", m.config.TaskTimeout.String(),
	)
	return nil
}

// Stop cancels running tasks and waits for the workers to exit. Interrupted tasks stay PENDING
// and are picked up again by the next Start.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	m.wg.Wait()
}

// Create validates the request, persists a PENDING task and hands it to the worker pool.
// The returned snapshot is already FAILED with QUEUE_FULL when no queue slot was free.
func (m *Manager) Create(ctx context.Context, req *types.CreateSnapshotRequest, owner string) (*types.Snapshot, error) {
	snapshot, err := m.newSnapshot(req, owner)
	if err != nil {
		return nil, err
	}

	if err := m.store.SaveSnapshot(snapshot); err != nil {
		return nil, fmt.Errorf("failed to save snapshot: %w", err)
	}
	metrics.SnapshotTasksCreated.WithLabelValues(strconv.FormatUint(snapshot.ChainID, 10)).Inc()

	if !m.enqueue(snapshot.ID) {
		m.logger.Sugar().Warnw("Snapshot queue is full, failing task",
			"id", snapshot.ID,
			"queueSize", m.config.QueueSize,
		)
		failed, err := m.complete(snapshot, persistence.Failed(types.ErrCodeQueueFull, "snapshot task queue is full", m.clock.Now().Unix()), 0)
		if err != nil {
			return nil, err
		}
		return failed, nil
	}

	m.logger.Sugar().Infow("Snapshot task accepted",
		"id", snapshot.ID,
		"chainId", snapshot.ChainID,
		"asset", snapshot.AssetAddress,
		"blockNumber", snapshot.BlockNumber,
	)
	return snapshot, nil
}

func (m *Manager) newSnapshot(req *types.CreateSnapshotRequest, owner string) (*types.Snapshot, error) {
	if req == nil {
		return nil, types.NewValidationError("request body is required")
	}
	if _, ok := m.chains[req.ChainID]; !ok {
		return nil, types.NewValidationError("chain %d is not configured", req.ChainID)
	}
	if utf8.RuneCountInString(req.Name) > MaxNameLength {
		return nil, types.NewValidationError("name must be at most %d characters", MaxNameLength)
	}
	asset, err := config.NormalizeAddress(req.AssetAddress)
	if err != nil {
		return nil, types.NewValidationError("asset_address: %v", err)
	}
	if len(req.IgnoredHolderAddresses) > MaxIgnoredAddresses {
		return nil, types.NewValidationError("at most %d ignored holder addresses are allowed", MaxIgnoredAddresses)
	}
	ignored, err := normalizeAddresses(req.IgnoredHolderAddresses)
	if err != nil {
		return nil, types.NewValidationError("ignored_holder_addresses: %v", err)
	}
	if owner != "" {
		if owner, err = config.NormalizeAddress(owner); err != nil {
			return nil, types.NewValidationError("owner: %v", err)
		}
	}

	now := m.clock.Now().Unix()
	return &types.Snapshot{
		ID:                     uuid.New().String(),
		Name:                   req.Name,
		ChainID:                req.ChainID,
		AssetAddress:           asset,
		BlockNumber:            req.BlockNumber,
		IgnoredHolderAddresses: ignored,
		Owner:                  owner,
		Status:                 types.SnapshotStatusPending,
		CreatedAt:              now,
		UpdatedAt:              now,
	}, nil
}

// normalizeAddresses lowercases and de-duplicates, keeping first occurrence order
func normalizeAddresses(addrs []string) ([]string, error) {
	out := make([]string, 0, len(addrs))
	seen := make(map[string]bool, len(addrs))
	for _, a := range addrs {
		n, err := config.NormalizeAddress(a)
		if err != nil {
			return nil, err
		}
		if seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	return out, nil
}

// GetById returns the task record, or NOT_FOUND
func (m *Manager) GetById(id string) (*types.Snapshot, error) {
	s, err := m.store.LoadSnapshot(id)
	if err != nil {
		return nil, fmt.Errorf("failed to load snapshot: %w", err)
	}
	if s == nil {
		return nil, types.NewNotFoundError("snapshot %s not found", id)
	}
	return s, nil
}

func (m *Manager) List(filter *types.SnapshotFilter) ([]*types.Snapshot, error) {
	snapshots, err := m.store.ListSnapshots(filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list snapshots: %w", err)
	}
	return snapshots, nil
}

// Delete removes a task record and drops its tree from the cache
func (m *Manager) Delete(id string) error {
	s, err := m.GetById(id)
	if err != nil {
		return err
	}
	if err := m.store.DeleteSnapshot(id); err != nil {
		return fmt.Errorf("failed to delete snapshot: %w", err)
	}
	if key := persistence.RootKeyFor(s); key != "" {
		m.cache.Remove(key)
	}
	m.logger.Sugar().Infow("Snapshot deleted", "id", id, "status", s.Status)
	return nil
}

// HealthCheck reports whether the task store is usable
func (m *Manager) HealthCheck() error {
	return m.store.HealthCheck()
}
