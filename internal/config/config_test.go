package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/spf13/pflag"
)

func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(prev) })
}

func TestLoadDefaults(t *testing.T) {
	chdir(t, t.TempDir())
	cfg, err := Load("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.BatchSize != 2000 || cfg.Store != StoreSQLite || cfg.RPCTimeout != 15*time.Second || cfg.Interval != 30*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadPrecedence(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	cfgFile := filepath.Join(dir, "indexer.yaml")
	body := "rpc: http://file\ncontract: \"0x1111111111111111111111111111111111111111\"\ndeployment-block: 1000\nbatch-size: 500\ntopic0-map:\n  \"0xabc\": trade\n"
	if err := os.WriteFile(cfgFile, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	t.Setenv("INDEXER_BATCH_SIZE", "700")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("rpc", "", "")
	flags.String("store", "", "")
	if err := flags.Parse([]string{"--rpc=http://flag"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	cfg, err := Load(cfgFile, flags)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.RPCURL != "http://flag" {
		t.Fatalf("flag should win: %s", cfg.RPCURL)
	}
	if cfg.BatchSize != 700 {
		t.Fatalf("env should beat file: %d", cfg.BatchSize)
	}
	if cfg.DeploymentBlock != 1000 {
		t.Fatalf("file value missing: %d", cfg.DeploymentBlock)
	}
	if !reflect.DeepEqual(cfg.Topic0Map, map[string]string{"0xabc": "trade"}) {
		t.Fatalf("unexpected topic0 map: %v", cfg.Topic0Map)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}
}

func TestValidate(t *testing.T) {
	base := Config{RPCURL: "http://x", Contract: "0x1", BatchSize: 1, RPCTimeout: time.Second, Store: StoreMemory}
	if err := base.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cases := map[string]func(c *Config){
		"missing rpc":      func(c *Config) { c.RPCURL = "" },
		"zero batch":       func(c *Config) { c.BatchSize = 0 },
		"unknown store":    func(c *Config) { c.Store = "mongo" },
		"postgres, no dsn": func(c *Config) { c.Store = StorePostgres },
	}
	for name, mutate := range cases {
		c := base
		mutate(&c)
		if err := c.Validate(); err == nil {
			t.Fatalf("%s: expected error", name)
		}
	}
}

func TestParseStringMap(t *testing.T) {
	got := parseStringMap("0xaa=trade, 0xbb = market_created,broken,=x")
	want := map[string]string{"0xaa": "trade", "0xbb": "market_created"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("map mismatch: %v != %v", got, want)
	}
}

func TestLoadExportFallsBackToDeploymentBlock(t *testing.T) {
	chdir(t, t.TempDir())
	t.Setenv("INDEXER_RPC", "http://rpc")
	t.Setenv("INDEXER_CONTRACT", "0x1111111111111111111111111111111111111111")
	t.Setenv("INDEXER_DEPLOYMENT_BLOCK", "1234")

	cfg, err := LoadExport("", nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.FromBlock != 1234 {
		t.Fatalf("expected deployment block, got %d", cfg.FromBlock)
	}
}
