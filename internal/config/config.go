// Package config defines all configuration for the auctioneer.
// Config is loaded from a YAML file (default: configs/config.yaml) with
// selected fields overridable via AUCTION_* environment variables.
package config

import (
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/shopspring/decimal"
	"github.com/spf13/viper"
)

// Config is the top-level configuration. Maps directly to the YAML file structure.
type Config struct {
	Engine  EngineConfig  `mapstructure:"engine"`
	Tokens  []TokenConfig `mapstructure:"tokens"`
	Trigger TriggerConfig `mapstructure:"trigger"`
	Keeper  KeeperConfig  `mapstructure:"keeper"`
	Store   StoreConfig   `mapstructure:"store"`
	Logging LoggingConfig `mapstructure:"logging"`
	API     APIConfig     `mapstructure:"api"`
}

// EngineConfig holds the auction parameters.
//
//   - Account:    the engine's own token account; holds the inventory being
//     auctioned and acts as the allowance spender when collecting payment.
//   - Want:       settlement token address, fixed for the engine's lifetime.
//   - Receiver:   address credited with settlement proceeds.
//   - Governance: address authorized to configure auctions.
//   - StartingPrice: human-readable decimal (e.g. "1.25"), want per whole
//     unit of the auctioned token; converted to 1e18 fixed point on load.
//   - StepDuration: length of one decay step.
//   - StepDecayRateBps: bps price reduction per elapsed step, [0, 9999].
type EngineConfig struct {
	Account          string        `mapstructure:"account"`
	Want             string        `mapstructure:"want"`
	Receiver         string        `mapstructure:"receiver"`
	Governance       string        `mapstructure:"governance"`
	StartingPrice    string        `mapstructure:"starting_price"`
	StepDuration     time.Duration `mapstructure:"step_duration"`
	StepDecayRateBps uint64        `mapstructure:"step_decay_rate_bps"`
}

// StartingPriceWad parses the human-readable starting price into 1e18 fixed
// point. "0.95" becomes 950000000000000000.
func (e EngineConfig) StartingPriceWad() (*big.Int, error) {
	d, err := decimal.NewFromString(e.StartingPrice)
	if err != nil {
		return nil, fmt.Errorf("parse starting_price %q: %w", e.StartingPrice, err)
	}
	if d.Sign() <= 0 {
		return nil, fmt.Errorf("starting_price must be positive, got %q", e.StartingPrice)
	}
	wad := d.Shift(18)
	if !wad.IsInteger() {
		return nil, fmt.Errorf("starting_price %q has more than 18 decimal places", e.StartingPrice)
	}
	return wad.BigInt(), nil
}

// TokenConfig registers one token ledger. Balance is the engine account's
// initial holding in whole units (decimal string, e.g. "1000.5"); auctioned
// tokens list a balance, the want token normally starts at zero.
type TokenConfig struct {
	Address  string `mapstructure:"address"`
	Symbol   string `mapstructure:"symbol"`
	Decimals uint8  `mapstructure:"decimals"`
	Balance  string `mapstructure:"balance"`
}

// BalanceUnits parses Balance into the token's native precision. An empty
// balance is zero.
func (t TokenConfig) BalanceUnits() (*big.Int, error) {
	if t.Balance == "" {
		return new(big.Int), nil
	}
	d, err := decimal.NewFromString(t.Balance)
	if err != nil {
		return nil, fmt.Errorf("parse balance %q for %s: %w", t.Balance, t.Symbol, err)
	}
	if d.Sign() < 0 {
		return nil, fmt.Errorf("balance for %s must not be negative", t.Symbol)
	}
	units := d.Shift(int32(t.Decimals))
	if !units.IsInteger() {
		return nil, fmt.Errorf("balance %q for %s exceeds %d decimals", t.Balance, t.Symbol, t.Decimals)
	}
	return units.BigInt(), nil
}

// TriggerConfig selects the kick-decision policy.
//
//   - Cooldown: minimum interval between kicks of the same token (default
//     trigger).
//   - PolicyURL: optional HTTP policy service consulted first; its failures
//     fall back to the cooldown trigger.
type TriggerConfig struct {
	Cooldown  time.Duration `mapstructure:"cooldown"`
	PolicyURL string        `mapstructure:"policy_url"`
}

// KeeperConfig controls the maintenance loop.
type KeeperConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
}

// StoreConfig sets where auction slot state is persisted (JSON files).
type StoreConfig struct {
	DataDir string `mapstructure:"data_dir"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// APIConfig controls the read-only HTTP/WebSocket server.
type APIConfig struct {
	Enabled        bool     `mapstructure:"enabled"`
	Port           int      `mapstructure:"port"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// Load reads config from a YAML file with env var overrides.
// Overridable fields: AUCTION_GOVERNANCE, AUCTION_POLICY_URL, AUCTION_DATA_DIR.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix("AUCTION")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	// Override deploy-specific fields from env
	if gov := os.Getenv("AUCTION_GOVERNANCE"); gov != "" {
		cfg.Engine.Governance = gov
	}
	if url := os.Getenv("AUCTION_POLICY_URL"); url != "" {
		cfg.Trigger.PolicyURL = url
	}
	if dir := os.Getenv("AUCTION_DATA_DIR"); dir != "" {
		cfg.Store.DataDir = dir
	}

	return &cfg, nil
}

// Validate checks all required fields and value ranges.
func (c *Config) Validate() error {
	for name, addr := range map[string]string{
		"engine.account":    c.Engine.Account,
		"engine.want":       c.Engine.Want,
		"engine.receiver":   c.Engine.Receiver,
		"engine.governance": c.Engine.Governance,
	} {
		if addr == "" {
			return fmt.Errorf("%s is required", name)
		}
		if !common.IsHexAddress(addr) {
			return fmt.Errorf("%s is not a valid address: %q", name, addr)
		}
	}
	if _, err := c.Engine.StartingPriceWad(); err != nil {
		return fmt.Errorf("engine.starting_price: %w", err)
	}
	if c.Engine.StepDuration <= 0 {
		return fmt.Errorf("engine.step_duration must be > 0")
	}
	if c.Engine.StepDecayRateBps >= 10_000 {
		return fmt.Errorf("engine.step_decay_rate_bps must be below 10000 (full decay in one step)")
	}

	if len(c.Tokens) == 0 {
		return fmt.Errorf("at least one token must be configured")
	}
	seen := make(map[common.Address]bool)
	wantSeen := false
	for _, t := range c.Tokens {
		if !common.IsHexAddress(t.Address) {
			return fmt.Errorf("token %s address is invalid: %q", t.Symbol, t.Address)
		}
		addr := common.HexToAddress(t.Address)
		if seen[addr] {
			return fmt.Errorf("token %s is configured twice", t.Address)
		}
		seen[addr] = true
		if t.Decimals == 0 || t.Decimals > 18 {
			return fmt.Errorf("token %s decimals must be in [1, 18], got %d", t.Symbol, t.Decimals)
		}
		if _, err := t.BalanceUnits(); err != nil {
			return err
		}
		if addr == common.HexToAddress(c.Engine.Want) {
			wantSeen = true
		}
	}
	if !wantSeen {
		return fmt.Errorf("engine.want %s is not among the configured tokens", c.Engine.Want)
	}

	if c.Trigger.Cooldown <= 0 {
		return fmt.Errorf("trigger.cooldown must be > 0")
	}
	if c.Keeper.Enabled && c.Keeper.PollInterval <= 0 {
		return fmt.Errorf("keeper.poll_interval must be > 0 when the keeper is enabled")
	}
	if c.Store.DataDir == "" {
		return fmt.Errorf("store.data_dir is required")
	}
	if c.API.Enabled && (c.API.Port <= 0 || c.API.Port > 65535) {
		return fmt.Errorf("api.port must be a valid TCP port")
	}
	return nil
}
