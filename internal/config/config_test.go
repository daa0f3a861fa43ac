package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const sampleYAML = `
engine:
  account: "0x00000000000000000000000000000000000000aa"
  want: "0x0000000000000000000000000000000000000102"
  receiver: "0x00000000000000000000000000000000000000c0"
  governance: "0x00000000000000000000000000000000000000b0"
  starting_price: "1.25"
  step_duration: 60s
  step_decay_rate_bps: 500

tokens:
  - address: "0x0000000000000000000000000000000000000101"
    symbol: WETH
    decimals: 18
    balance: "1000.5"
  - address: "0x0000000000000000000000000000000000000102"
    symbol: USDC
    decimals: 6

trigger:
  cooldown: 5m

keeper:
  enabled: true
  poll_interval: 15s

store:
  data_dir: data

logging:
  level: info
  format: json

api:
  enabled: true
  port: 8080
`

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadAndValidate(t *testing.T) {
	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	if cfg.Engine.StepDuration != time.Minute {
		t.Errorf("StepDuration = %v, want 1m", cfg.Engine.StepDuration)
	}
	if cfg.Engine.StepDecayRateBps != 500 {
		t.Errorf("StepDecayRateBps = %d, want 500", cfg.Engine.StepDecayRateBps)
	}
	if len(cfg.Tokens) != 2 || cfg.Tokens[0].Symbol != "WETH" {
		t.Errorf("tokens = %+v, want WETH and USDC", cfg.Tokens)
	}

	wad, err := cfg.Engine.StartingPriceWad()
	if err != nil {
		t.Fatalf("StartingPriceWad: %v", err)
	}
	if wad.String() != "1250000000000000000" {
		t.Errorf("starting price wad = %s, want 1.25e18", wad)
	}

	units, err := cfg.Tokens[0].BalanceUnits()
	if err != nil {
		t.Fatalf("BalanceUnits: %v", err)
	}
	if units.String() != "1000500000000000000000" {
		t.Errorf("weth balance = %s, want 1000.5e18", units)
	}
	// No balance configured means zero, not an error.
	units, err = cfg.Tokens[1].BalanceUnits()
	if err != nil || units.Sign() != 0 {
		t.Errorf("usdc balance = %s, %v, want 0", units, err)
	}
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("AUCTION_GOVERNANCE", "0x00000000000000000000000000000000000000ff")
	t.Setenv("AUCTION_DATA_DIR", "/var/lib/auctioneer")

	cfg, err := Load(writeConfig(t, sampleYAML))
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Engine.Governance != "0x00000000000000000000000000000000000000ff" {
		t.Errorf("governance = %s, want env override", cfg.Engine.Governance)
	}
	if cfg.Store.DataDir != "/var/lib/auctioneer" {
		t.Errorf("data_dir = %s, want env override", cfg.Store.DataDir)
	}
}

func TestValidateRejections(t *testing.T) {
	cases := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{"bad governance", func(c *Config) { c.Engine.Governance = "not-an-address" }, "not a valid address"},
		{"zero price", func(c *Config) { c.Engine.StartingPrice = "0" }, "starting_price"},
		{"too precise price", func(c *Config) { c.Engine.StartingPrice = "0.0000000000000000001" }, "18 decimal"},
		{"full decay", func(c *Config) { c.Engine.StepDecayRateBps = 10_000 }, "step_decay_rate_bps"},
		{"zero step", func(c *Config) { c.Engine.StepDuration = 0 }, "step_duration"},
		{"no tokens", func(c *Config) { c.Tokens = nil }, "at least one token"},
		{"duplicate token", func(c *Config) { c.Tokens = append(c.Tokens, c.Tokens[0]) }, "twice"},
		{"bad decimals", func(c *Config) { c.Tokens[0].Decimals = 19 }, "decimals"},
		{"want unregistered", func(c *Config) { c.Engine.Want = "0x00000000000000000000000000000000000000ee" }, "not among"},
		{"zero cooldown", func(c *Config) { c.Trigger.Cooldown = 0 }, "cooldown"},
		{"no data dir", func(c *Config) { c.Store.DataDir = "" }, "data_dir"},
		{"bad port", func(c *Config) { c.API.Port = 70_000 }, "port"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := Load(writeConfig(t, sampleYAML))
			if err != nil {
				t.Fatalf("Load: %v", err)
			}
			tc.mutate(cfg)
			err = cfg.Validate()
			if err == nil {
				t.Fatal("Validate should fail")
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Errorf("error %q does not mention %q", err, tc.wantSub)
			}
		})
	}
}
