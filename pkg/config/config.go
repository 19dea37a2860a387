package config

import (
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"k8s.io/apimachinery/pkg/util/validation/field"
)

// Environment variable names for payout server configuration
const (
	EnvPayoutPort             = "PAYOUT_PORT"
	EnvPayoutChains           = "PAYOUT_CHAINS"
	EnvPayoutPersistenceType  = "PAYOUT_PERSISTENCE_TYPE"
	EnvPayoutBadgerDir        = "PAYOUT_BADGER_DIR"
	EnvPayoutRedisAddress     = "PAYOUT_REDIS_ADDRESS"
	EnvPayoutRedisPassword    = "PAYOUT_REDIS_PASSWORD"
	EnvPayoutRedisDB          = "PAYOUT_REDIS_DB"
	EnvPayoutRedisKeyPrefix   = "PAYOUT_REDIS_KEY_PREFIX"
	EnvPayoutTreeStoreType    = "PAYOUT_TREE_STORE_TYPE"
	EnvPayoutS3Bucket         = "PAYOUT_S3_BUCKET"
	EnvPayoutS3Prefix         = "PAYOUT_S3_PREFIX"
	EnvPayoutS3Endpoint       = "PAYOUT_S3_ENDPOINT"
	EnvPayoutAWSRegion        = "PAYOUT_AWS_REGION"
	EnvPayoutJWTSecret        = "PAYOUT_JWT_SECRET"
	EnvPayoutWorkers          = "PAYOUT_WORKERS"
	EnvPayoutQueueSize        = "PAYOUT_QUEUE_SIZE"
	EnvPayoutTaskTimeout      = "PAYOUT_TASK_TIMEOUT"
	EnvPayoutStaleTaskTimeout = "PAYOUT_STALE_TASK_TIMEOUT"
	EnvPayoutLogPageSize      = "PAYOUT_LOG_PAGE_SIZE"
	EnvPayoutStartBlock       = "PAYOUT_START_BLOCK"
	EnvPayoutRPCRateLimit     = "PAYOUT_RPC_RATE_LIMIT"
	EnvPayoutRetrySteps       = "PAYOUT_RETRY_STEPS"
	EnvPayoutVerbose          = "PAYOUT_VERBOSE"
)

type ChainId uint

const (
	ChainId_EthereumMainnet ChainId = 1
	ChainId_PolygonMainnet  ChainId = 137
	ChainId_PolygonAmoy     ChainId = 80002
	ChainId_EthereumSepolia ChainId = 11155111
	ChainId_EthereumAnvil   ChainId = 31337
)

type ChainName string

const (
	ChainName_EthereumMainnet ChainName = "mainnet"
	ChainName_PolygonMainnet  ChainName = "polygon"
	ChainName_PolygonAmoy     ChainName = "amoy"
	ChainName_EthereumSepolia ChainName = "sepolia"
	ChainName_EthereumAnvil   ChainName = "devnet"
)

var ChainIdToName = map[ChainId]ChainName{
	ChainId_EthereumMainnet: ChainName_EthereumMainnet,
	ChainId_PolygonMainnet:  ChainName_PolygonMainnet,
	ChainId_PolygonAmoy:     ChainName_PolygonAmoy,
	ChainId_EthereumSepolia: ChainName_EthereumSepolia,
	ChainId_EthereumAnvil:   ChainName_EthereumAnvil,
}

// NameForChain returns the well-known name of a chain, or its decimal id for unnamed chains
func NameForChain(chainId ChainId) ChainName {
	if name, ok := ChainIdToName[chainId]; ok {
		return name
	}
	return ChainName(strconv.FormatUint(uint64(chainId), 10))
}

type PersistenceType string

const (
	PersistenceType_Memory PersistenceType = "memory"
	PersistenceType_Badger PersistenceType = "badger"
	PersistenceType_Redis  PersistenceType = "redis"
)

type TreeStoreType string

const (
	TreeStoreType_Memory TreeStoreType = "memory"
	TreeStoreType_S3     TreeStoreType = "s3"
)

const (
	DefaultPort             = 8080
	DefaultWorkers          = 4
	DefaultQueueSize        = 256
	DefaultTaskTimeout      = 10 * time.Minute
	DefaultStaleTaskTimeout = 30 * time.Minute
	DefaultLogPageSize      = 10_000
	DefaultRPCRateLimit     = 20
	DefaultRetrySteps       = 5
	DefaultRedisKeyPrefix   = "payouts:"
)

// ChainConfig binds a chain id to the RPC endpoint used to read it
type ChainConfig struct {
	ChainID ChainId `json:"chain_id"`
	RpcUrl  string  `json:"rpc_url"`
}

// ParseChainConfigs parses "chainId=rpcUrl" pairs
func ParseChainConfigs(pairs []string) ([]*ChainConfig, error) {
	chains := make([]*ChainConfig, 0, len(pairs))
	seen := make(map[ChainId]bool)
	for _, pair := range pairs {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		idStr, rpcUrl, ok := strings.Cut(pair, "=")
		if !ok {
			return nil, fmt.Errorf("invalid chain config %q, expected chainId=rpcUrl", pair)
		}
		id, err := strconv.ParseUint(strings.TrimSpace(idStr), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid chain id in %q: %w", pair, err)
		}
		chainId := ChainId(id)
		if seen[chainId] {
			return nil, fmt.Errorf("chain %d configured more than once", id)
		}
		seen[chainId] = true
		chains = append(chains, &ChainConfig{ChainID: chainId, RpcUrl: strings.TrimSpace(rpcUrl)})
	}
	sort.Slice(chains, func(i, j int) bool { return chains[i].ChainID < chains[j].ChainID })
	return chains, nil
}

type BadgerConfig struct {
	Dir string `json:"dir"`
}

type RedisConfig struct {
	Address   string `json:"address"`
	Password  string `json:"password"`
	DB        int    `json:"db"`
	KeyPrefix string `json:"key_prefix"`
}

type S3Config struct {
	Bucket   string `json:"bucket"`
	Prefix   string `json:"prefix"`
	Region   string `json:"region"`
	Endpoint string `json:"endpoint"`
}

// PayoutServerConfig represents the complete configuration for a payout server
type PayoutServerConfig struct {
	Port   int            `json:"port"`
	Chains []*ChainConfig `json:"chains"`

	PersistenceType PersistenceType `json:"persistence_type"`
	Badger          BadgerConfig    `json:"badger"`
	Redis           RedisConfig     `json:"redis"`

	TreeStoreType TreeStoreType `json:"tree_store_type"`
	S3            S3Config      `json:"s3"`

	// JWTSecret is the HS256 key for investor bearer tokens. Empty disables authentication.
	JWTSecret string `json:"-"`

	Workers          int           `json:"workers"`
	QueueSize        int           `json:"queue_size"`
	TaskTimeout      time.Duration `json:"task_timeout"`
	StaleTaskTimeout time.Duration `json:"stale_task_timeout"`

	LogPageSize  uint64  `json:"log_page_size"`
	StartBlock   uint64  `json:"start_block"`
	RPCRateLimit float64 `json:"rpc_rate_limit"`
	RetrySteps   int     `json:"retry_steps"`

	Debug bool `json:"debug"`
}

// Validate validates the payout server configuration, reporting every problem at once
func (c *PayoutServerConfig) Validate() error {
	var allErrors field.ErrorList

	if c.Port < 1 || c.Port > 65535 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("port"), c.Port, "must be between 1-65535"))
	}

	chainsPath := field.NewPath("chains")
	if len(c.Chains) == 0 {
		allErrors = append(allErrors, field.Required(chainsPath, "at least one chain is required"))
	}
	for i, chain := range c.Chains {
		if chain.ChainID == 0 {
			allErrors = append(allErrors, field.Invalid(chainsPath.Index(i).Child("chainId"), chain.ChainID, "must be non-zero"))
		}
		if u, err := url.Parse(chain.RpcUrl); err != nil || u.Scheme == "" || u.Host == "" {
			allErrors = append(allErrors, field.Invalid(chainsPath.Index(i).Child("rpcUrl"), chain.RpcUrl, "must be an absolute URL"))
		}
	}

	switch c.PersistenceType {
	case PersistenceType_Memory:
	case PersistenceType_Badger:
		if c.Badger.Dir == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("badger", "dir"), "dir is required for badger persistence"))
		}
	case PersistenceType_Redis:
		if c.Redis.Address == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("redis", "address"), "address is required for redis persistence"))
		}
		if c.Redis.DB < 0 {
			allErrors = append(allErrors, field.Invalid(field.NewPath("redis", "db"), c.Redis.DB, "must be non-negative"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(field.NewPath("persistenceType"), c.PersistenceType,
			[]string{string(PersistenceType_Memory), string(PersistenceType_Badger), string(PersistenceType_Redis)}))
	}

	switch c.TreeStoreType {
	case TreeStoreType_Memory:
	case TreeStoreType_S3:
		if c.S3.Bucket == "" {
			allErrors = append(allErrors, field.Required(field.NewPath("s3", "bucket"), "bucket is required for s3 tree store"))
		}
	default:
		allErrors = append(allErrors, field.NotSupported(field.NewPath("treeStoreType"), c.TreeStoreType,
			[]string{string(TreeStoreType_Memory), string(TreeStoreType_S3)}))
	}

	if c.Workers < 1 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("workers"), c.Workers, "must be at least 1"))
	}
	if c.QueueSize < 1 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("queueSize"), c.QueueSize, "must be at least 1"))
	}
	if c.TaskTimeout <= 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("taskTimeout"), c.TaskTimeout.String(), "must be positive"))
	}
	if c.StaleTaskTimeout < c.TaskTimeout {
		allErrors = append(allErrors, field.Invalid(field.NewPath("staleTaskTimeout"), c.StaleTaskTimeout.String(), "must not be shorter than taskTimeout"))
	}
	if c.LogPageSize == 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("logPageSize"), c.LogPageSize, "must be positive"))
	}
	if c.RPCRateLimit <= 0 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("rpcRateLimit"), c.RPCRateLimit, "must be positive"))
	}
	if c.RetrySteps < 1 {
		allErrors = append(allErrors, field.Invalid(field.NewPath("retrySteps"), c.RetrySteps, "must be at least 1"))
	}

	if len(allErrors) > 0 {
		return allErrors.ToAggregate()
	}
	return nil
}

// GetChain returns the configuration of a chain, or nil
func (c *PayoutServerConfig) GetChain(chainId ChainId) *ChainConfig {
	for _, chain := range c.Chains {
		if chain.ChainID == chainId {
			return chain
		}
	}
	return nil
}

// ChainIdsString renders configured chains for logging
func (c *PayoutServerConfig) ChainIdsString() string {
	names := make([]string, 0, len(c.Chains))
	for _, chain := range c.Chains {
		names = append(names, fmt.Sprintf("%d (%s)", chain.ChainID, NameForChain(chain.ChainID)))
	}
	return strings.Join(names, ", ")
}

// NormalizeAddress validates a hex address and returns its lowercase 0x form
func NormalizeAddress(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if !common.IsHexAddress(addr) {
		return "", fmt.Errorf("invalid address: %q", addr)
	}
	return strings.ToLower(common.HexToAddress(addr).Hex()), nil
}
