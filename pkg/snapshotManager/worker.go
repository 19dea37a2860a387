package snapshotManager

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/Layr-Labs/eigenx-payouts-go/pkg/balances"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/merkle"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/metrics"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/types"
)

// enqueue hands id to the worker pool without blocking. An id already queued or running is
// reported as accepted.
func (m *Manager) enqueue(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inFlight[id] {
		return true
	}
	select {
	case m.queue <- id:
		m.inFlight[id] = true
		metrics.SnapshotQueueDepth.Set(float64(len(m.queue)))
		return true
	default:
		return false
	}
}

func (m *Manager) release(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.inFlight, id)
}

func (m *Manager) setRunning(id string, running bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if running {
		m.running[id] = true
	} else {
		delete(m.running, id)
	}
}

func (m *Manager) isRunning(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.running[id]
}

// errTaskDeadline is the cancel cause of a task that ran past TaskTimeout on the manager clock
var errTaskDeadline = errors.New("snapshot task deadline exceeded")

// withTaskDeadline derives the per-task context. The deadline follows the manager clock, the
// same clock stale detection uses.
func (m *Manager) withTaskDeadline(ctx context.Context) (context.Context, func()) {
	taskCtx, cancel := context.WithCancelCause(ctx)
	timer := m.clock.AfterFunc(m.config.TaskTimeout, func() {
		cancel(errTaskDeadline)
	})
	return taskCtx, func() {
		timer.Stop()
		cancel(context.Canceled)
	}
}

func (m *Manager) worker(ctx context.Context) {
	defer m.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case id := <-m.queue:
			metrics.SnapshotQueueDepth.Set(float64(len(m.queue)))
			m.setRunning(id, true)
			m.process(ctx, id)
			m.setRunning(id, false)
			m.release(id)
		}
	}
}

// process runs the pipeline for one task and records its terminal state
func (m *Manager) process(ctx context.Context, id string) {
	sugar := m.logger.Sugar()

	snapshot, err := m.store.LoadSnapshot(id)
	if err != nil {
		sugar.Errorw("Failed to load queued snapshot", "id", id, "error", err)
		return
	}
	if snapshot == nil || snapshot.Status != types.SnapshotStatusPending {
		sugar.Debugw("Skipping snapshot that is no longer pending", "id", id)
		return
	}

	metrics.SnapshotTasksInFlight.Inc()
	defer metrics.SnapshotTasksInFlight.Dec()

	started := time.Now()
	taskCtx, cancel := m.withTaskDeadline(ctx)
	defer cancel()

	result, tree, err := m.runPipeline(taskCtx, snapshot)
	if err != nil {
		if ctx.Err() != nil {
			sugar.Infow("Snapshot interrupted by shutdown, leaving it pending", "id", id)
			return
		}
		code := types.CodeOf(err)
		if errors.Is(context.Cause(taskCtx), errTaskDeadline) {
			code = types.ErrCodeTaskTimeout
		}
		sugar.Warnw("Snapshot failed",
			"id", id,
			"code", code,
			"error", err,
		)
		_, _ = m.complete(snapshot, persistence.Failed(code, err.Error(), m.clock.Now().Unix()), time.Since(started))
		return
	}

	stored, err := m.complete(snapshot, persistence.Succeeded(result, m.clock.Now().Unix()), time.Since(started))
	if err != nil {
		return
	}
	m.cache.Add(persistence.RootKeyFor(stored), tree)
	metrics.SnapshotHolders.Observe(float64(len(tree.Leaves)))

	sugar.Infow("Snapshot completed",
		"id", id,
		"root", result.MerkleRootHash,
		"depth", result.MerkleTreeDepth,
		"holders", len(result.Holders),
		"total", result.TotalAssetAmount,
		"contentId", result.MerkleTreeIpfsHash,
		"duration", time.Since(started).String(),
	)
}

func (m *Manager) runPipeline(ctx context.Context, s *types.Snapshot) (result *types.SnapshotResult, tree *merkle.PayoutTree, err error) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Sugar().Errorw("Snapshot pipeline panicked",
				"id", s.ID,
				"panic", r,
				"stack", string(debug.Stack()),
			)
			err = &types.PayoutError{Code: types.ErrCodeInternal, Message: fmt.Sprintf("snapshot pipeline panicked: %v", r)}
		}
	}()
	return m.buildSnapshot(ctx, s)
}

// buildSnapshot reconstructs balances, builds and checks the tree and stores its JSON
func (m *Manager) buildSnapshot(ctx context.Context, s *types.Snapshot) (*types.SnapshotResult, *merkle.PayoutTree, error) {
	chain, ok := m.chains[s.ChainID]
	if !ok {
		return nil, nil, types.NewValidationError("chain %d is not configured", s.ChainID)
	}

	ignored := make([]common.Address, 0, len(s.IgnoredHolderAddresses))
	for _, a := range s.IgnoredHolderAddresses {
		ignored = append(ignored, common.HexToAddress(a))
	}

	res, err := m.reconstructor.Reconstruct(ctx, chain, &balances.ReconstructRequest{
		Token:       common.HexToAddress(s.AssetAddress),
		BlockNumber: s.BlockNumber,
		Ignored:     ignored,
	})
	if err != nil {
		return nil, nil, err
	}

	tree, err := merkle.BuildPayoutTreeFromBalances(res.Balances)
	if err != nil {
		return nil, nil, err
	}
	if tree.Total.Cmp(res.Total) != 0 {
		return nil, nil, types.NewInconsistencyError("tree total %s does not match reconstructed total %s", tree.Total, res.Total)
	}
	for _, a := range ignored {
		if tree.Contains(a) {
			return nil, nil, types.NewInconsistencyError("ignored address %s is a tree leaf", strings.ToLower(a.Hex()))
		}
	}

	data, err := json.Marshal(tree)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode merkle tree: %w", err)
	}
	contentId, err := m.trees.Put(ctx, data)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to store merkle tree: %w", err)
	}

	return &types.SnapshotResult{
		TotalAssetAmount:   tree.Total.String(),
		MerkleRootHash:     tree.RootHex(),
		MerkleTreeDepth:    tree.Depth,
		MerkleTreeIpfsHash: contentId,
		HashFn:             merkle.HashFnKeccak256,
		Holders:            tree.Holders(),
	}, tree, nil
}

// complete performs the single terminal write of a task. Losing the race to another writer is
// logged and reported as an error.
func (m *Manager) complete(s *types.Snapshot, c *persistence.Completion, elapsed time.Duration) (*types.Snapshot, error) {
	stored, err := m.store.CompleteSnapshot(s.ID, c)
	if err != nil {
		if errors.Is(err, persistence.ErrSnapshotNotPending) || errors.Is(err, persistence.ErrSnapshotNotFound) {
			m.logger.Sugar().Infow("Snapshot already finished elsewhere", "id", s.ID, "error", err)
		} else {
			m.logger.Sugar().Errorw("Failed to complete snapshot", "id", s.ID, "error", err)
		}
		return nil, fmt.Errorf("failed to complete snapshot %s: %w", s.ID, err)
	}
	metrics.RecordTaskCompleted(s.ChainID, string(c.Status), string(c.FailureCode), elapsed)
	return stored, nil
}

// recoverPending re-enqueues tasks a previous process left PENDING. Tasks already older than the
// stale timeout are failed instead.
func (m *Manager) recoverPending() error {
	pending, err := m.store.ListSnapshots(&types.SnapshotFilter{Statuses: []types.SnapshotStatus{types.SnapshotStatusPending}})
	if err != nil {
		return err
	}

	recovered := 0
	for _, s := range pending {
		if m.isStale(s) {
			m.failStale(s)
			continue
		}
		if !m.enqueue(s.ID) {
			_, _ = m.complete(s, persistence.Failed(types.ErrCodeQueueFull, "snapshot task queue is full", m.clock.Now().Unix()), 0)
			continue
		}
		recovered++
	}
	if len(pending) > 0 {
		m.logger.Sugar().Infow("Recovered pending snapshots", "pending", len(pending), "requeued", recovered)
	}
	return nil
}

func (m *Manager) sweepLoop(ctx context.Context) {
	defer m.wg.Done()
	ticker := m.clock.NewTicker(m.config.SweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.Chan():
			if _, err := m.SweepStale(); err != nil {
				m.logger.Sugar().Errorw("Stale snapshot sweep failed", "error", err)
			}
		}
	}
}

// SweepStale fails every task that has been PENDING for longer than the stale timeout and
// returns how many it failed. Tasks a worker is running are left to their own deadline.
func (m *Manager) SweepStale() (int, error) {
	pending, err := m.store.ListSnapshots(&types.SnapshotFilter{Statuses: []types.SnapshotStatus{types.SnapshotStatusPending}})
	if err != nil {
		return 0, err
	}
	swept := 0
	for _, s := range pending {
		if m.isRunning(s.ID) {
			continue
		}
		if m.isStale(s) && m.failStale(s) {
			swept++
		}
	}
	return swept, nil
}

func (m *Manager) isStale(s *types.Snapshot) bool {
	return m.clock.Since(time.Unix(s.CreatedAt, 0)) >= m.config.StaleTaskTimeout
}

func (m *Manager) failStale(s *types.Snapshot) bool {
	reason := fmt.Sprintf("snapshot was pending for more than %s", m.config.StaleTaskTimeout)
	_, err := m.complete(s, persistence.Failed(types.ErrCodeTaskTimeout, reason, m.clock.Now().Unix()), 0)
	if err != nil {
		return false
	}
	m.logger.Sugar().Warnw("Failed stale snapshot", "id", s.ID, "createdAt", s.CreatedAt)
	return true
}
