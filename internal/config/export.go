package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"
)

// ExportConfig holds configuration for the export command.
type ExportConfig struct {
	RPCURL       string
	Contract     string
	FromBlock    uint64
	ToBlock      uint64
	Topic0       []string
	BatchSize    uint64
	RPCTimeout   time.Duration
	Out          string
	Checkpoint   string
	MaxRetries   int
	RetryBackoff time.Duration
	LogLevel     string
}

// LoadExport merges config file, environment variables, and flags into ExportConfig.
// The start block falls back to deployment-block when from is unset.
func LoadExport(cfgFile string, flags *pflag.FlagSet) (ExportConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"batch-size":    uint64(2000),
		"rpc-timeout":   15 * time.Second,
		"out":           "./data/logs.jsonl",
		"checkpoint":    "./data/export_checkpoint.json",
		"max-retries":   3,
		"retry-backoff": 500 * time.Millisecond,
		"log-level":     "info",
	})
	if err != nil {
		return ExportConfig{}, err
	}

	from := v.GetUint64("from")
	if !v.IsSet("from") || from == 0 {
		from = v.GetUint64("deployment-block")
	}

	cfg := ExportConfig{
		RPCURL:       v.GetString("rpc"),
		Contract:     v.GetString("contract"),
		FromBlock:    from,
		ToBlock:      v.GetUint64("to"),
		Topic0:       getStringSlice(v, "topic0"),
		BatchSize:    v.GetUint64("batch-size"),
		RPCTimeout:   v.GetDuration("rpc-timeout"),
		Out:          v.GetString("out"),
		Checkpoint:   v.GetString("checkpoint"),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		LogLevel:     v.GetString("log-level"),
	}
	if cfg.RPCURL == "" {
		return ExportConfig{}, fmt.Errorf("rpc is required")
	}
	if cfg.Contract == "" {
		return ExportConfig{}, fmt.Errorf("contract is required")
	}
	if cfg.ToBlock != 0 && cfg.ToBlock < cfg.FromBlock {
		return ExportConfig{}, fmt.Errorf("to block must be >= from block")
	}
	return cfg, nil
}
