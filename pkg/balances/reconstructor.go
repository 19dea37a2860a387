package balances

import (
	"context"
	"errors"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"
	ethTypes "github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
	"k8s.io/apimachinery/pkg/util/wait"

	"github.com/Layr-Labs/eigenx-payouts-go/pkg/clients/ethereum"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/types"
)

// IChainReader is the subset of chain access the reconstructor needs
type IChainReader interface {
	BlockNumber(ctx context.Context) (uint64, error)
	TransferLogs(ctx context.Context, token common.Address, fromBlock, toBlock uint64) ([]ethTypes.Log, error)
}

// RetryConfig configures retry behavior for RPC calls
type RetryConfig struct {
	MaxAttempts     int
	InitialBackoff  time.Duration
	BackoffMultiple float64
}

// DefaultRetryConfig provides default retry settings
var DefaultRetryConfig = RetryConfig{
	MaxAttempts:     5,
	InitialBackoff:  250 * time.Millisecond,
	BackoffMultiple: 2.0,
}

func (rc RetryConfig) backoff() wait.Backoff {
	return wait.Backoff{
		Duration: rc.InitialBackoff,
		Factor:   rc.BackoffMultiple,
		Jitter:   0.1,
		Steps:    rc.MaxAttempts,
	}
}

type ReconstructorConfig struct {
	// StartBlock is the first block scanned for transfers
	StartBlock uint64

	// LogPageSize is the initial number of blocks per log query
	LogPageSize uint64

	Retry RetryConfig
}

// Reconstructor replays ERC-20 transfer history to compute holder balances at a block
type Reconstructor struct {
	config *ReconstructorConfig
	logger *zap.Logger
}

func NewReconstructor(cfg *ReconstructorConfig, logger *zap.Logger) *Reconstructor {
	if cfg.LogPageSize == 0 {
		cfg.LogPageSize = 10_000
	}
	if cfg.Retry.MaxAttempts < 1 {
		cfg.Retry = DefaultRetryConfig
	}
	return &Reconstructor{config: cfg, logger: logger}
}

type ReconstructRequest struct {
	Token       common.Address
	BlockNumber uint64
	Ignored     []common.Address
}

// Result holds the holder balances at the requested block
type Result struct {
	Balances      map[common.Address]*big.Int
	Total         *big.Int
	BlockNumber   uint64
	ChainHead     uint64
	TransferCount int
}

// Reconstruct computes the balance of every non-ignored holder of req.Token at req.BlockNumber.
// A block past the chain head fails with INVALID_BLOCK; exhausted RPC retries fail with
// CHAIN_QUERY_ERROR.
func (r *Reconstructor) Reconstruct(ctx context.Context, chain IChainReader, req *ReconstructRequest) (*Result, error) {
	var head uint64
	err := r.withRetry(ctx, "eth_blockNumber", func(ctx context.Context) error {
		var err error
		head, err = chain.BlockNumber(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}
	if req.BlockNumber > head {
		return nil, types.NewInvalidBlockError(req.BlockNumber, head)
	}

	transfers, err := r.FetchTransfers(ctx, chain, req.Token, r.config.StartBlock, req.BlockNumber)
	if err != nil {
		return nil, err
	}
	ordered := DedupAndSort(transfers)

	all, err := ApplyTransfers(ordered)
	if err != nil {
		return nil, err
	}
	holders, total := FilterHolders(all, req.Ignored)

	r.logger.Sugar().Infow("Reconstructed holder balances",
		"token", req.Token.Hex(),
		"blockNumber", req.BlockNumber,
		"chainHead", head,
		"transfers", len(ordered),
		"holders", len(holders),
		"total", total.String(),
	)

	return &Result{
		Balances:      holders,
		Total:         total,
		BlockNumber:   req.BlockNumber,
		ChainHead:     head,
		TransferCount: len(ordered),
	}, nil
}

// FetchTransfers pages through [fromBlock, toBlock]. A window rejected as too large is halved
// and fetched again. Returned transfers may contain duplicates when windows overlap; callers
// run them through DedupAndSort.
func (r *Reconstructor) FetchTransfers(ctx context.Context, chain IChainReader, token common.Address, fromBlock, toBlock uint64) ([]*Transfer, error) {
	transfers := make([]*Transfer, 0)
	if fromBlock > toBlock {
		return transfers, nil
	}

	window := r.config.LogPageSize
	from := fromBlock
	for from <= toBlock {
		end := toBlock
		if toBlock-from >= window {
			end = from + window - 1
		}

		var logs []ethTypes.Log
		err := r.withRetry(ctx, "eth_getLogs", func(ctx context.Context) error {
			var err error
			logs, err = chain.TransferLogs(ctx, token, from, end)
			return err
		})
		if err != nil {
			if ethereum.IsRangeTooLarge(err) && window > 1 {
				window /= 2
				r.logger.Sugar().Debugw("Log window too large, halving",
					"token", token.Hex(),
					"fromBlock", from,
					"window", window,
				)
				continue
			}
			if ethereum.IsRangeTooLarge(err) {
				return nil, types.NewChainQueryError("eth_getLogs rejected a single block window", err)
			}
			return nil, err
		}

		for _, l := range logs {
			t, err := DecodeTransfer(l)
			if err != nil {
				return nil, err
			}
			transfers = append(transfers, t)
		}

		if end == toBlock {
			break
		}
		from = end + 1
	}
	return transfers, nil
}

// withRetry runs fn with exponential backoff. Range-too-large errors are returned immediately so
// the caller can shrink the window.
func (r *Reconstructor) withRetry(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	var lastErr error
	attempt := 0
	err := wait.ExponentialBackoffWithContext(ctx, r.config.Retry.backoff(), func(ctx context.Context) (bool, error) {
		attempt++
		err := fn(ctx)
		if err == nil {
			return true, nil
		}
		if ethereum.IsRangeTooLarge(err) {
			return false, err
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return false, ctxErr
		}
		lastErr = err
		r.logger.Sugar().Warnw("Chain query failed, retrying",
			"op", op,
			"attempt", attempt,
			"error", err,
		)
		return false, nil
	})
	if err == nil {
		return nil
	}
	if ethereum.IsRangeTooLarge(err) {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	if lastErr == nil {
		lastErr = err
	}
	return types.NewChainQueryError(op+" failed after retries", lastErr)
}
