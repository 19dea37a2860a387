package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	internalAws "github.com/Layr-Labs/eigenx-payouts-go/internal/aws"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/api"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/auth"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/balances"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/claims"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/clients/ethereum"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/config"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/contractCaller"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/contractCaller/caller"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/logger"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/metrics"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/persistence"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/persistence/badger"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/persistence/memory"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/persistence/redis"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/snapshotManager"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/treeStore"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/treeStore/inMemoryTreeStore"
	"github.com/Layr-Labs/eigenx-payouts-go/pkg/treeStore/s3TreeStore"
)

// set with -ldflags at build time
var (
	version = "dev"
	commit  = "unknown"
)

const shutdownTimeout = 30 * time.Second

func main() {
	app := &cli.App{
		Name:  "payout-server",
		Usage: "EigenX payout snapshot and claim proof server",
		Description: `Builds Merkle snapshots of ERC-20 holder balances and serves claim proofs.

Snapshot tasks replay the Transfer history of an asset up to a block, build a Merkle tree
over the resulting holders and keep it for proof requests. Payouts created on-chain with a
snapshot root become claimable through the proof endpoints.`,
		Version: version,
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "port",
				Aliases: []string{"p"},
				Value:   config.DefaultPort,
				Usage:   "HTTP server port",
				EnvVars: []string{config.EnvPayoutPort},
			},
			&cli.StringSliceFlag{
				Name:     "chain",
				Usage:    "Chain to serve as chainId=rpcUrl, repeatable",
				EnvVars:  []string{config.EnvPayoutChains},
				Required: true,
			},
			&cli.StringFlag{
				Name:    "persistence-type",
				Value:   string(config.PersistenceType_Memory),
				Usage:   "Snapshot record store: memory, badger or redis",
				EnvVars: []string{config.EnvPayoutPersistenceType},
			},
			&cli.StringFlag{
				Name:    "badger-dir",
				Usage:   "Data directory for badger persistence",
				EnvVars: []string{config.EnvPayoutBadgerDir},
			},
			&cli.StringFlag{
				Name:    "redis-address",
				Usage:   "Redis host:port for redis persistence",
				EnvVars: []string{config.EnvPayoutRedisAddress},
			},
			&cli.StringFlag{
				Name:    "redis-password",
				Usage:   "Redis password",
				EnvVars: []string{config.EnvPayoutRedisPassword},
			},
			&cli.IntFlag{
				Name:    "redis-db",
				Usage:   "Redis database number",
				EnvVars: []string{config.EnvPayoutRedisDB},
			},
			&cli.StringFlag{
				Name:    "redis-key-prefix",
				Value:   config.DefaultRedisKeyPrefix,
				Usage:   "Prefix of every redis key",
				EnvVars: []string{config.EnvPayoutRedisKeyPrefix},
			},
			&cli.StringFlag{
				Name:    "tree-store-type",
				Value:   string(config.TreeStoreType_Memory),
				Usage:   "Merkle tree blob store: memory or s3",
				EnvVars: []string{config.EnvPayoutTreeStoreType},
			},
			&cli.StringFlag{
				Name:    "s3-bucket",
				Usage:   "Bucket for the s3 tree store",
				EnvVars: []string{config.EnvPayoutS3Bucket},
			},
			&cli.StringFlag{
				Name:    "s3-prefix",
				Value:   "trees/",
				Usage:   "Key prefix of tree objects",
				EnvVars: []string{config.EnvPayoutS3Prefix},
			},
			&cli.StringFlag{
				Name:    "s3-endpoint",
				Usage:   "Custom S3 endpoint (MinIO, LocalStack)",
				EnvVars: []string{config.EnvPayoutS3Endpoint},
			},
			&cli.StringFlag{
				Name:    "aws-region",
				Usage:   "AWS region override",
				EnvVars: []string{config.EnvPayoutAWSRegion},
			},
			&cli.StringFlag{
				Name:    "jwt-secret",
				Usage:   "HS256 secret for investor bearer tokens; empty disables authentication",
				EnvVars: []string{config.EnvPayoutJWTSecret},
			},
			&cli.IntFlag{
				Name:    "workers",
				Value:   config.DefaultWorkers,
				Usage:   "Concurrent snapshot tasks",
				EnvVars: []string{config.EnvPayoutWorkers},
			},
			&cli.IntFlag{
				Name:    "queue-size",
				Value:   config.DefaultQueueSize,
				Usage:   "Pending snapshot tasks accepted before QUEUE_FULL",
				EnvVars: []string{config.EnvPayoutQueueSize},
			},
			&cli.DurationFlag{
				Name:    "task-timeout",
				Value:   config.DefaultTaskTimeout,
				Usage:   "Maximum run time of one snapshot task",
				EnvVars: []string{config.EnvPayoutTaskTimeout},
			},
			&cli.DurationFlag{
				Name:    "stale-task-timeout",
				Value:   config.DefaultStaleTaskTimeout,
				Usage:   "Age after which a pending task is failed with TASK_TIMEOUT",
				EnvVars: []string{config.EnvPayoutStaleTaskTimeout},
			},
			&cli.Uint64Flag{
				Name:    "log-page-size",
				Value:   config.DefaultLogPageSize,
				Usage:   "Initial block range of one eth_getLogs query",
				EnvVars: []string{config.EnvPayoutLogPageSize},
			},
			&cli.Uint64Flag{
				Name:    "start-block",
				Usage:   "First block scanned for transfers",
				EnvVars: []string{config.EnvPayoutStartBlock},
			},
			&cli.Float64Flag{
				Name:    "rpc-rate-limit",
				Value:   config.DefaultRPCRateLimit,
				Usage:   "RPC requests per second per chain",
				EnvVars: []string{config.EnvPayoutRPCRateLimit},
			},
			&cli.IntFlag{
				Name:    "retry-steps",
				Value:   config.DefaultRetrySteps,
				Usage:   "Attempts per RPC call before the task fails",
				EnvVars: []string{config.EnvPayoutRetrySteps},
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Usage:   "Enable verbose logging",
				EnvVars: []string{config.EnvPayoutVerbose},
			},
		},
		Action: runPayoutServer,
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatalf("Application error: %v", err)
	}
}

func runPayoutServer(c *cli.Context) error {
	l, err := logger.NewLogger(&logger.LoggerConfig{Debug: c.Bool("verbose")})
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = l.Sync() }()

	cfg, err := parsePayoutConfig(c)
	if err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	metrics.BuildInfo.WithLabelValues(version, commit).Set(1)
	l.Sugar().Infow("Using chains", "chains", cfg.ChainIdsString())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := newPersistence(cfg, l)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	trees, err := newTreeStore(ctx, cfg, l)
	if err != nil {
		return err
	}

	clients, err := ethereum.NewRegistryFromConfig(cfg.Chains, cfg.RPCRateLimit, l)
	if err != nil {
		return fmt.Errorf("failed to connect to chains: %w", err)
	}
	defer clients.Close()

	chains := make(map[uint64]balances.IChainReader, len(cfg.Chains))
	callers := contractCaller.NewRegistry()
	for _, chain := range cfg.Chains {
		client, ok := clients.Get(chain.ChainID)
		if !ok {
			return fmt.Errorf("chain %d was not registered", chain.ChainID)
		}
		chainId := uint64(chain.ChainID)
		chains[chainId] = client
		callers.Add(chainId, caller.NewContractCaller(client.ContractBackend(), chainId, l))
	}

	retry := balances.DefaultRetryConfig
	retry.MaxAttempts = cfg.RetrySteps
	reconstructor := balances.NewReconstructor(&balances.ReconstructorConfig{
		StartBlock:  cfg.StartBlock,
		LogPageSize: cfg.LogPageSize,
		Retry:       retry,
	}, l)

	manager, err := snapshotManager.NewManager(&snapshotManager.ManagerConfig{
		Workers:          cfg.Workers,
		QueueSize:        cfg.QueueSize,
		TaskTimeout:      cfg.TaskTimeout,
		StaleTaskTimeout: cfg.StaleTaskTimeout,
	}, &snapshotManager.Dependencies{
		Store:         store,
		Trees:         trees,
		Chains:        chains,
		Reconstructor: reconstructor,
		Callers:       callers,
	}, l)
	if err != nil {
		return fmt.Errorf("failed to create snapshot manager: %w", err)
	}
	if err := manager.Start(ctx); err != nil {
		return fmt.Errorf("failed to start snapshot manager: %w", err)
	}
	defer manager.Stop()

	var verifier *auth.Verifier
	if cfg.JWTSecret != "" {
		verifier = auth.NewVerifier(cfg.JWTSecret, l)
	} else {
		l.Sugar().Warn("No JWT secret configured, investor endpoints take ?investor= without authentication")
	}

	server := api.NewServer(&api.ServerConfig{Port: cfg.Port}, manager, claims.NewService(manager, callers, l), verifier, l)
	if err := server.Start(); err != nil {
		return fmt.Errorf("failed to start server: %w", err)
	}

	l.Sugar().Infow("Payout server running",
		"port", cfg.Port,
		"version", version,
		"persistence", cfg.PersistenceType,
		"treeStore", cfg.TreeStoreType,
		"workers", cfg.Workers,
	)

	<-ctx.Done()
	l.Sugar().Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		l.Sugar().Warnw("HTTP server did not shut down cleanly", "error", err)
	}
	return nil
}

func parsePayoutConfig(c *cli.Context) (*config.PayoutServerConfig, error) {
	chains, err := config.ParseChainConfigs(c.StringSlice("chain"))
	if err != nil {
		return nil, err
	}
	return &config.PayoutServerConfig{
		Port:            c.Int("port"),
		Chains:          chains,
		PersistenceType: config.PersistenceType(c.String("persistence-type")),
		Badger: config.BadgerConfig{
			Dir: c.String("badger-dir"),
		},
		Redis: config.RedisConfig{
			Address:   c.String("redis-address"),
			Password:  c.String("redis-password"),
			DB:        c.Int("redis-db"),
			KeyPrefix: c.String("redis-key-prefix"),
		},
		TreeStoreType: config.TreeStoreType(c.String("tree-store-type")),
		S3: config.S3Config{
			Bucket:   c.String("s3-bucket"),
			Prefix:   c.String("s3-prefix"),
			Region:   c.String("aws-region"),
			Endpoint: c.String("s3-endpoint"),
		},
		JWTSecret:        c.String("jwt-secret"),
		Workers:          c.Int("workers"),
		QueueSize:        c.Int("queue-size"),
		TaskTimeout:      c.Duration("task-timeout"),
		StaleTaskTimeout: c.Duration("stale-task-timeout"),
		LogPageSize:      c.Uint64("log-page-size"),
		StartBlock:       c.Uint64("start-block"),
		RPCRateLimit:     c.Float64("rpc-rate-limit"),
		RetrySteps:       c.Int("retry-steps"),
		Debug:            c.Bool("verbose"),
	}, nil
}

func newPersistence(cfg *config.PayoutServerConfig, l *zap.Logger) (persistence.ISnapshotPersistence, error) {
	switch cfg.PersistenceType {
	case config.PersistenceType_Badger:
		store, err := badger.NewBadgerPersistence(cfg.Badger.Dir, l)
		if err != nil {
			return nil, fmt.Errorf("failed to open badger persistence: %w", err)
		}
		return store, nil
	case config.PersistenceType_Redis:
		store, err := redis.NewRedisPersistence(&redis.RedisConfig{
			Address:   cfg.Redis.Address,
			Password:  cfg.Redis.Password,
			DB:        cfg.Redis.DB,
			KeyPrefix: cfg.Redis.KeyPrefix,
		}, l)
		if err != nil {
			return nil, fmt.Errorf("failed to open redis persistence: %w", err)
		}
		return store, nil
	default:
		l.Sugar().Warn("Using in-memory persistence, snapshot records are lost on restart")
		return memory.NewMemoryPersistence(l), nil
	}
}

func newTreeStore(ctx context.Context, cfg *config.PayoutServerConfig, l *zap.Logger) (treeStore.ITreeStore, error) {
	if cfg.TreeStoreType != config.TreeStoreType_S3 {
		return inMemoryTreeStore.NewInMemoryTreeStore(l), nil
	}
	client, err := internalAws.NewS3Client(ctx, &internalAws.S3ClientConfig{
		Region:   cfg.S3.Region,
		Endpoint: cfg.S3.Endpoint,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 client: %w", err)
	}
	return s3TreeStore.NewS3TreeStore(client, &s3TreeStore.S3TreeStoreConfig{
		Bucket: cfg.S3.Bucket,
		Prefix: cfg.S3.Prefix,
	}, l), nil
}
