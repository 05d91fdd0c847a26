package main

import (
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func main() {
	root := &cobra.Command{
		Use:          "indexer",
		Short:        "Prediction market event indexer",
		SilenceUsage: true,
	}

	root.PersistentFlags().String("config", "", "config file path")

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the HTTP API and index on a schedule",
		RunE:  runServe,
	}
	addPassFlags(serveCmd.Flags())
	serveCmd.Flags().String("listen", ":8080", "HTTP listen address")
	serveCmd.Flags().Duration("interval", 30*time.Second, "time between scheduled passes")
	root.AddCommand(serveCmd)

	indexCmd := &cobra.Command{
		Use:   "index",
		Short: "Run one indexing pass and print its summary",
		RunE:  runIndex,
	}
	addPassFlags(indexCmd.Flags())
	root.AddCommand(indexCmd)

	exportCmd := &cobra.Command{
		Use:   "export",
		Short: "Export raw contract logs in a block range to JSONL",
		RunE:  runExport,
	}
	exportCmd.Flags().String("rpc", "", "RPC URL")
	exportCmd.Flags().String("contract", "", "market contract address")
	exportCmd.Flags().Uint64("from", 0, "start block (inclusive), 0 means deployment-block")
	exportCmd.Flags().Uint64("to", 0, "end block (inclusive), 0 means latest")
	exportCmd.Flags().StringSlice("topic0", nil, "topic0 filter (comma-separated), empty means all")
	exportCmd.Flags().Uint64("batch-size", 2000, "blocks per batch")
	exportCmd.Flags().Duration("rpc-timeout", 15*time.Second, "timeout per RPC call")
	exportCmd.Flags().String("out", "./data/logs.jsonl", "output JSONL path")
	exportCmd.Flags().String("checkpoint", "./data/export_checkpoint.json", "checkpoint file path, empty disables")
	exportCmd.Flags().Int("max-retries", 3, "maximum retry attempts")
	exportCmd.Flags().Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	exportCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(exportCmd)

	decodeCmd := &cobra.Command{
		Use:   "decode",
		Short: "Decode exported raw logs into typed events",
		RunE:  runDecode,
	}
	decodeCmd.Flags().String("in", "./data/logs.jsonl", "input raw logs JSONL")
	decodeCmd.Flags().String("out", "./data/typed_events.jsonl", "output typed events JSONL")
	decodeCmd.Flags().String("errors", "./data/decode_errors.jsonl", "decode errors JSONL")
	decodeCmd.Flags().String("topic0-map", "", "extra topic0->event mappings (comma-separated key=value)")
	decodeCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(decodeCmd)

	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or upgrade the store schema",
		RunE:  runMigrate,
	}
	addStoreFlags(migrateCmd.Flags())
	migrateCmd.Flags().String("log-level", "info", "log level (debug, info, warn, error)")
	root.AddCommand(migrateCmd)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func addPassFlags(flags *pflag.FlagSet) {
	flags.String("rpc", "", "RPC URL")
	flags.String("contract", "", "market contract address")
	flags.Uint64("deployment-block", 0, "block the contract was deployed at; first cursor value")
	flags.Uint64("batch-size", 2000, "maximum blocks per pass")
	flags.Duration("rpc-timeout", 15*time.Second, "timeout per RPC call")
	flags.Int("max-retries", 3, "maximum retry attempts per RPC call")
	flags.Duration("retry-backoff", 500*time.Millisecond, "initial retry backoff")
	flags.String("topic0-map", "", "extra topic0->event mappings (comma-separated key=value)")
	flags.String("redis-addr", "", "redis address for the shared pass lease; empty uses an in-process lease")
	flags.String("redis-password", "", "redis password")
	flags.Int("redis-db", 0, "redis database")
	flags.Duration("lease-ttl", 5*time.Minute, "pass lease expiry")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	addStoreFlags(flags)
}

func addStoreFlags(flags *pflag.FlagSet) {
	flags.String("store", "sqlite", "store driver (memory, sqlite, postgres)")
	flags.String("pg-dsn", "", "Postgres DSN")
	flags.Int("pg-max-conns", 10, "Postgres pool size")
	flags.String("sqlite-path", "./data/indexer.db", "SQLite database file")
}

func newLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevel()
	if err := cfg.Level.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}

	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder

	return cfg.Build()
}
