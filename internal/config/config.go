package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"
)

// Config holds configuration values loaded from flags, env, or config file.
type Config struct {
	RPCURL          string
	Contract        string
	DeploymentBlock uint64
	BatchSize       uint64
	RPCTimeout      time.Duration
	MaxRetries      int
	RetryBackoff    time.Duration
	Topic0Map       map[string]string

	Store      string
	PGDSN      string
	PGMaxConns int
	SQLitePath string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	LeaseTTL      time.Duration

	Listen   string
	Interval time.Duration
	LogLevel string
}

// Load merges .env, config file, environment variables, and flags into Config.
func Load(cfgFile string, flags *pflag.FlagSet) (Config, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"batch-size":    uint64(2000),
		"rpc-timeout":   15 * time.Second,
		"max-retries":   3,
		"retry-backoff": 500 * time.Millisecond,
		"store":         StoreSQLite,
		"pg-max-conns":  10,
		"sqlite-path":   "./data/indexer.db",
		"lease-ttl":     5 * time.Minute,
		"listen":        ":8080",
		"interval":      30 * time.Second,
		"log-level":     "info",
	})
	if err != nil {
		return Config{}, err
	}

	cfg := Config{
		RPCURL:          v.GetString("rpc"),
		Contract:        strings.TrimSpace(v.GetString("contract")),
		DeploymentBlock: v.GetUint64("deployment-block"),
		BatchSize:       v.GetUint64("batch-size"),
		RPCTimeout:      v.GetDuration("rpc-timeout"),
		MaxRetries:      v.GetInt("max-retries"),
		RetryBackoff:    v.GetDuration("retry-backoff"),
		Topic0Map:       getStringMap(v, "topic0-map"),
		Store:           strings.ToLower(v.GetString("store")),
		PGDSN:           v.GetString("pg-dsn"),
		PGMaxConns:      v.GetInt("pg-max-conns"),
		SQLitePath:      v.GetString("sqlite-path"),
		RedisAddr:       v.GetString("redis-addr"),
		RedisPassword:   v.GetString("redis-password"),
		RedisDB:         v.GetInt("redis-db"),
		LeaseTTL:        v.GetDuration("lease-ttl"),
		Listen:          v.GetString("listen"),
		Interval:        v.GetDuration("interval"),
		LogLevel:        v.GetString("log-level"),
	}
	return cfg, nil
}

// ValidateStore checks the store selection alone, for commands that never touch the chain.
func (c Config) ValidateStore() error {
	switch c.Store {
	case StoreMemory, StoreSQLite:
	case StorePostgres:
		if c.PGDSN == "" {
			return fmt.Errorf("pg-dsn is required for store %q", c.Store)
		}
	default:
		return fmt.Errorf("unknown store %q (want memory, sqlite or postgres)", c.Store)
	}
	if c.Store == StoreSQLite && c.SQLitePath == "" {
		return fmt.Errorf("sqlite-path is required for store %q", c.Store)
	}
	return nil
}

// Validate checks everything an indexing pass needs.
func (c Config) Validate() error {
	if c.RPCURL == "" {
		return fmt.Errorf("rpc is required")
	}
	if c.Contract == "" {
		return fmt.Errorf("contract is required")
	}
	if c.BatchSize == 0 {
		return fmt.Errorf("batch-size must be greater than zero")
	}
	if c.RPCTimeout <= 0 {
		return fmt.Errorf("rpc-timeout must be positive")
	}
	return c.ValidateStore()
}

func newViper(cfgFile string, flags *pflag.FlagSet, defaults map[string]interface{}) (*viper.Viper, error) {
	// A missing .env is fine; real env vars still apply.
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("INDEXER")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
	}

	if flags != nil {
		if err := v.BindPFlags(flags); err != nil {
			return nil, fmt.Errorf("bind flags: %w", err)
		}
	}

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}
	return v, nil
}

func getStringSlice(v *viper.Viper, key string) []string {
	if !v.IsSet(key) {
		return nil
	}

	val := v.Get(key)
	switch typed := val.(type) {
	case []string:
		return cleanStrings(typed)
	case string:
		return splitAndClean(typed)
	case []interface{}:
		items := make([]string, 0, len(typed))
		for _, item := range typed {
			items = append(items, fmt.Sprintf("%v", item))
		}
		return cleanStrings(items)
	default:
		return nil
	}
}

func splitAndClean(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	return cleanStrings(parts)
}

func cleanStrings(items []string) []string {
	out := make([]string, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		out = append(out, item)
	}
	return out
}
