package main

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"marketScope/internal/config"
	"marketScope/internal/market"
	"marketScope/internal/model"
	"marketScope/internal/storage"
)

func runDecode(cmd *cobra.Command, _ []string) error {
	cfgFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.LoadDecode(cfgFile, cmd.Flags())
	if err != nil {
		return err
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer logger.Sync()

	if cfg.In == "" {
		return fmt.Errorf("input path is required")
	}
	if cfg.Out == "" {
		return fmt.Errorf("output path is required")
	}
	if cfg.Errors == "" {
		return fmt.Errorf("errors path is required")
	}

	decoder, err := market.NewDecoder(market.DecoderConfig{Topic0Map: cfg.Topic0Map})
	if err != nil {
		return err
	}

	outWriter, err := newJSONLWriter(cfg.Out)
	if err != nil {
		return err
	}
	defer outWriter.Close()

	errWriter, err := newJSONLWriter(cfg.Errors)
	if err != nil {
		return err
	}
	defer errWriter.Close()

	logger.Info("decode start",
		zap.String("in", cfg.In),
		zap.String("out", cfg.Out),
		zap.String("errors", cfg.Errors),
	)

	stats, err := decodeFile(cfg.In, decoder, outWriter, errWriter)
	if err != nil {
		return err
	}

	logger.Info("decode complete",
		zap.Int("total", stats.total),
		zap.Int("decoded", stats.decoded),
		zap.Int("skipped", stats.skipped),
		zap.Int("failed", stats.failed),
	)
	return nil
}

type decodeStats struct {
	total, decoded, skipped, failed int
}

func decodeFile(path string, decoder *market.Decoder, out, errs *jsonlWriter) (decodeStats, error) {
	var stats decodeStats
	err := storage.ReadLogs(path, func(_ int, record model.RawLog, readErr error) error {
		stats.total++
		if readErr != nil {
			stats.failed++
			return errs.Write(model.DecodeError{Error: readErr.Error()})
		}
		if len(record.Topics) == 0 {
			stats.failed++
			return errs.Write(decodeErrorFromRecord(record, fmt.Errorf("missing topic0")))
		}

		event, err := decoder.Decode(record)
		if errors.Is(err, market.ErrUnknownEvent) {
			stats.skipped++
			return nil
		}
		if err != nil {
			stats.failed++
			return errs.Write(decodeErrorFromRecord(record, err))
		}

		stats.decoded++
		return out.Write(model.NewTypedEvent(record, event))
	})
	return stats, err
}

type jsonlWriter struct {
	file   *os.File
	writer *bufio.Writer
}

// newJSONLWriter truncates path, creating its directory when missing.
func newJSONLWriter(path string) (*jsonlWriter, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create dir: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	return &jsonlWriter{
		file:   file,
		writer: bufio.NewWriter(file),
	}, nil
}

func (w *jsonlWriter) Write(value any) error {
	line, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	if _, err := w.writer.Write(line); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	if err := w.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("write newline: %w", err)
	}
	return nil
}

func (w *jsonlWriter) Close() error {
	if w == nil {
		return nil
	}
	if err := w.writer.Flush(); err != nil {
		w.file.Close()
		return err
	}
	return w.file.Close()
}

func decodeErrorFromRecord(record model.RawLog, err error) model.DecodeError {
	return model.DecodeError{
		BlockNumber: record.BlockNumber,
		TxHash:      record.TxHash,
		LogIndex:    record.LogIndex,
		Address:     record.Address,
		Topic0:      record.Topic0(),
		Error:       err.Error(),
	}
}
