package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"marketScope/internal/chain"
	"marketScope/internal/config"
	"marketScope/internal/indexer"
	"marketScope/internal/storage"
)

func runExport(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadExport(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	contract, err := indexer.ParseAddress(cfg.Contract)
	if err != nil {
		return err
	}
	topic0, err := indexer.ParseTopic0(cfg.Topic0)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	chainClient, err := chain.NewClient(ctx, cfg.RPCURL, cfg.RPCTimeout)
	if err != nil {
		return fmt.Errorf("connect rpc: %w", err)
	}
	defer chainClient.Close()

	exporter := indexer.NewExporter(indexer.ExportConfig{
		Contract:       contract,
		FromBlock:      cfg.FromBlock,
		ToBlock:        cfg.ToBlock,
		Topic0:         topic0,
		BatchSize:      cfg.BatchSize,
		CheckpointPath: cfg.Checkpoint,
		MaxRetries:     cfg.MaxRetries,
		RetryBackoff:   cfg.RetryBackoff,
	}, chainClient, storage.NewJsonlStorage(cfg.Out), logger)

	logger.Info("export start",
		zap.String("rpc", cfg.RPCURL),
		zap.String("contract", cfg.Contract),
		zap.Uint64("from", cfg.FromBlock),
		zap.Uint64("to", cfg.ToBlock),
		zap.Int("topic0", len(topic0)),
		zap.String("out", cfg.Out),
		zap.String("checkpoint", cfg.Checkpoint),
	)

	written, err := exporter.Run(ctx)
	if err != nil {
		return err
	}
	logger.Info("export complete", zap.Int("logs", written))
	return nil
}
