package ethereum

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	chainIndexerEthereum "github.com/Layr-Labs/chain-indexer/pkg/clients/ethereum"
	goEthereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethTypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	pkgErrors "github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Layr-Labs/eigenx-payouts-go/pkg/config"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/metrics"
)

// TransferTopic is keccak256("Transfer(address,address,uint256)")
var TransferTopic = common.BytesToHash(crypto.Keccak256([]byte("Transfer(address,address,uint256)")))

// ErrRangeTooLarge is returned when the node refuses a log query because the block range or the
// result set is too large. Callers should retry with a smaller window.
var ErrRangeTooLarge = errors.New("log query range too large")

var rangeTooLargeMessages = []string{
	"query returned more than",
	"block range",
	"range too large",
	"too many blocks",
	"limit exceeded",
	"response size exceeded",
	"exceed maximum block range",
}

// IsRangeTooLarge reports whether an RPC error rejects the size of a log query
func IsRangeTooLarge(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRangeTooLarge) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, m := range rangeTooLargeMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}

type ClientConfig struct {
	ChainID config.ChainId
	RpcUrl  string

	// RateLimit is the sustained number of requests per second
	RateLimit float64
}

// Client reads blocks and ERC-20 transfer logs from one chain
type Client struct {
	chainId config.ChainId
	eth     *ethclient.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewClient dials the chain's RPC endpoint through the chain-indexer client
func NewClient(cfg *ClientConfig, logger *zap.Logger) (*Client, error) {
	ciClient := chainIndexerEthereum.NewEthereumClient(&chainIndexerEthereum.EthereumClientConfig{
		BaseUrl:   cfg.RpcUrl,
		BlockType: chainIndexerEthereum.BlockType_Latest,
	}, logger)

	eth, err := ciClient.GetEthereumContractCaller()
	if err != nil {
		return nil, pkgErrors.Wrapf(err, "failed to dial chain %d", cfg.ChainID)
	}
	return NewClientFromEthClient(cfg, eth, logger), nil
}

// NewClientFromEthClient wraps an existing go-ethereum client
func NewClientFromEthClient(cfg *ClientConfig, eth *ethclient.Client, logger *zap.Logger) *Client {
	limit := rate.Limit(cfg.RateLimit)
	burst := int(cfg.RateLimit)
	if cfg.RateLimit <= 0 {
		limit = rate.Inf
	}
	if burst < 1 {
		burst = 1
	}
	return &Client{
		chainId: cfg.ChainID,
		eth:     eth,
		limiter: rate.NewLimiter(limit, burst),
		logger:  logger,
	}
}

func (c *Client) ChainID() config.ChainId {
	return c.chainId
}

// BlockNumber returns the current chain head
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}
	head, err := c.eth.BlockNumber(ctx)
	metrics.RecordChainQuery(uint64(c.chainId), "eth_blockNumber", err)
	if err != nil {
		return 0, pkgErrors.Wrapf(err, "failed to get block number for chain %d", c.chainId)
	}
	return head, nil
}

// TransferLogs returns the Transfer logs emitted by token in [fromBlock, toBlock]
func (c *Client) TransferLogs(ctx context.Context, token common.Address, fromBlock, toBlock uint64) ([]ethTypes.Log, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	query := goEthereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(fromBlock),
		ToBlock:   new(big.Int).SetUint64(toBlock),
		Addresses: []common.Address{token},
		Topics:    [][]common.Hash{{TransferTopic}},
	}
	logs, err := c.eth.FilterLogs(ctx, query)
	metrics.RecordChainQuery(uint64(c.chainId), "eth_getLogs", err)
	if err != nil {
		if IsRangeTooLarge(err) {
			return nil, fmt.Errorf("%w: blocks %d-%d: %v", ErrRangeTooLarge, fromBlock, toBlock, err)
		}
		return nil, pkgErrors.Wrapf(err, "failed to filter transfer logs for %s in blocks %d-%d", token.Hex(), fromBlock, toBlock)
	}
	c.logger.Sugar().Debugw("Fetched transfer logs",
		"chainId", c.chainId,
		"token", token.Hex(),
		"fromBlock", fromBlock,
		"toBlock", toBlock,
		"count", len(logs),
	)
	return logs, nil
}

// ContractBackend exposes the client for abi/bind contract callers
func (c *Client) ContractBackend() bind.ContractBackend {
	return c.eth
}

func (c *Client) Close() {
	c.eth.Close()
}

// Registry holds one client per configured chain
type Registry struct {
	mu      sync.RWMutex
	clients map[config.ChainId]*Client
}

func NewRegistry() *Registry {
	return &Registry{clients: make(map[config.ChainId]*Client)}
}

// NewRegistryFromConfig dials every configured chain
func NewRegistryFromConfig(chains []*config.ChainConfig, rateLimit float64, logger *zap.Logger) (*Registry, error) {
	r := NewRegistry()
	for _, chain := range chains {
		client, err := NewClient(&ClientConfig{
			ChainID:   chain.ChainID,
			RpcUrl:    chain.RpcUrl,
			RateLimit: rateLimit,
		}, logger)
		if err != nil {
			r.Close()
			return nil, err
		}
		r.Add(client)
		logger.Sugar().Infow("Registered chain", "chainId", chain.ChainID, "name", config.NameForChain(chain.ChainID))
	}
	return r, nil
}

func (r *Registry) Add(client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clients[client.chainId] = client
}

// Get returns the client of a chain, or false when the chain is not configured
func (r *Registry) Get(chainId config.ChainId) (*Client, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.clients[chainId]
	return c, ok
}

func (r *Registry) Has(chainId config.ChainId) bool {
	_, ok := r.Get(chainId)
	return ok
}

func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for id, c := range r.clients {
		c.Close()
		delete(r.clients, id)
	}
}
