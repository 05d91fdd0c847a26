package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"marketScope/internal/chain"
	"marketScope/internal/config"
	"marketScope/internal/indexer"
	"marketScope/internal/lease"
	"marketScope/internal/market"
	"marketScope/internal/storage"
	"marketScope/internal/storage/memory"
	"marketScope/internal/storage/postgres"
	"marketScope/internal/storage/sqlite"
)

// openStore opens the configured store and brings its schema up to date.
func openStore(ctx context.Context, cfg config.Config) (storage.Store, error) {
	switch cfg.Store {
	case config.StoreMemory:
		return memory.New(), nil
	case config.StoreSQLite:
		store, err := sqlite.Open(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	case config.StorePostgres:
		store, err := postgres.NewStore(ctx, cfg.PGDSN, cfg.PGMaxConns)
		if err != nil {
			return nil, err
		}
		if err := store.Migrate(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil
	default:
		return nil, fmt.Errorf("unknown store %q", cfg.Store)
	}
}

// app holds everything a pass needs; close releases it in reverse order.
type app struct {
	store  storage.Store
	chain  *chain.Client
	runner *indexer.Runner
	close  func()
}

func buildApp(ctx context.Context, cfg config.Config, logger *zap.Logger) (*app, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	contract, err := indexer.ParseAddress(cfg.Contract)
	if err != nil {
		return nil, err
	}
	decoder, err := market.NewDecoder(market.DecoderConfig{Topic0Map: cfg.Topic0Map})
	if err != nil {
		return nil, err
	}

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL, cfg.RPCTimeout)
	if err != nil {
		return nil, fmt.Errorf("connect rpc: %w", err)
	}

	if chainID, err := chainClient.ChainID(ctx); err != nil {
		logger.Warn("chain id unavailable", zap.Error(err))
	} else {
		logger.Info("connected to chain", zap.Uint64("chain_id", chainID))
	}

	store, err := openStore(ctx, cfg)
	if err != nil {
		chainClient.Close()
		return nil, err
	}

	closers := []func(){func() { chainClient.Close() }, func() { _ = store.Close() }}

	var locker lease.Locker = lease.NewLocal()
	if cfg.RedisAddr != "" {
		redisLocker, err := lease.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
			return nil, err
		}
		locker = redisLocker
		closers = append(closers, func() { _ = redisLocker.Close() })
	}

	runner := indexer.NewRunner(indexer.RunConfig{
		Contract:        contract,
		DeploymentBlock: cfg.DeploymentBlock,
		BatchSize:       cfg.BatchSize,
		MaxRetries:      cfg.MaxRetries,
		RetryBackoff:    cfg.RetryBackoff,
		LeaseTTL:        cfg.LeaseTTL,
	}, chainClient, store, decoder, locker, logger)

	logger.Info("indexer configured",
		zap.String("rpc", cfg.RPCURL),
		zap.String("contract", cfg.Contract),
		zap.Uint64("deployment_block", cfg.DeploymentBlock),
		zap.Uint64("batch_size", cfg.BatchSize),
		zap.String("store", cfg.Store),
		zap.Bool("shared_lease", cfg.RedisAddr != ""),
	)

	return &app{
		store:  store,
		chain:  chainClient,
		runner: runner,
		close: func() {
			for i := len(closers) - 1; i >= 0; i-- {
				closers[i]()
			}
		},
	}, nil
}
