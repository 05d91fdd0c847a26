package indexer

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"marketScope/internal/chain"
	"marketScope/internal/model"
	"marketScope/internal/storage"
)

// ExportConfig selects the raw logs an Exporter copies out.
type ExportConfig struct {
	Contract       common.Address
	FromBlock      uint64
	ToBlock        uint64 // 0 means the current head
	Topic0         []common.Hash
	BatchSize      uint64
	CheckpointPath string
	MaxRetries     int
	RetryBackoff   time.Duration
}

// Exporter streams raw contract logs into a LogSink, batch by batch, resuming
// from its checkpoint file. It never touches the event store or the cursor.
type Exporter struct {
	cfg        ExportConfig
	source     LogSource
	sink       storage.LogSink
	checkpoint *CheckpointStore
	logger     *zap.Logger
}

func NewExporter(cfg ExportConfig, source LogSource, sink storage.LogSink, logger *zap.Logger) *Exporter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Exporter{
		cfg:        cfg,
		source:     source,
		sink:       sink,
		checkpoint: NewCheckpointStore(cfg.CheckpointPath),
		logger:     logger,
	}
}

// Run exports every batch in the configured range and returns the number of logs written.
func (e *Exporter) Run(ctx context.Context) (int, error) {
	if e.source == nil {
		return 0, fmt.Errorf("chain client is nil")
	}
	if e.sink == nil {
		return 0, fmt.Errorf("log sink is nil")
	}
	if e.cfg.BatchSize == 0 {
		return 0, fmt.Errorf("batch size must be greater than zero")
	}

	contract := strings.ToLower(e.cfg.Contract.Hex())
	from := e.cfg.FromBlock
	to := e.cfg.ToBlock
	if to == 0 {
		err := withRetry(ctx, e.cfg.MaxRetries, e.cfg.RetryBackoff, func(ctx context.Context) error {
			var err error
			to, err = e.source.BlockNumber(ctx)
			return err
		})
		if err != nil {
			return 0, fmt.Errorf("get latest block: %w", err)
		}
	}

	cp, ok, err := e.checkpoint.Load(contract)
	if err != nil {
		return 0, err
	}
	if ok && cp.LastExportedBlock >= from {
		from = cp.LastExportedBlock + 1
		e.logger.Info("resume from checkpoint", zap.Uint64("last_exported", cp.LastExportedBlock), zap.Uint64("from", from))
	}

	if from > to {
		e.logger.Info("nothing to export", zap.Uint64("from", from), zap.Uint64("to", to))
		return 0, nil
	}

	ranges, err := SplitRange(from, to, e.cfg.BatchSize)
	if err != nil {
		return 0, err
	}

	written := 0
	for _, blockRange := range ranges {
		select {
		case <-ctx.Done():
			return written, ctx.Err()
		default:
		}

		q := chain.LogQuery{
			Address:   e.cfg.Contract,
			FromBlock: blockRange.From,
			ToBlock:   blockRange.To,
			Topic0:    e.cfg.Topic0,
		}
		var logs []model.RawLog
		err := withRetry(ctx, e.cfg.MaxRetries, e.cfg.RetryBackoff, func(ctx context.Context) error {
			var err error
			logs, err = e.source.FetchLogs(ctx, q)
			if err != nil {
				e.logger.Warn("fetch logs failed", zap.Error(err), zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
			}
			return err
		})
		if err != nil {
			return written, fmt.Errorf("fetch logs: %w", err)
		}

		if err := e.sink.PutLogBatch(logs); err != nil {
			return written, fmt.Errorf("write logs: %w", err)
		}
		if err := e.checkpoint.Save(contract, blockRange.To); err != nil {
			return written, err
		}
		written += len(logs)

		e.logger.Info("batch exported", zap.Int("logs", len(logs)), zap.Uint64("from", blockRange.From), zap.Uint64("to", blockRange.To))
	}

	return written, nil
}
