// Package config loads the market daemon configuration from a JSON file,
// with secrets and paths overridable through the environment (a .env file is
// honoured if present).
package config

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"

	"github.com/openlot/openlot/core"
	"github.com/openlot/openlot/fees"
)

// AssetSeed declares one asset that exists at market start.
type AssetSeed struct {
	ID      string `json:"id"`
	Owner   string `json:"owner"`   // pubkey hex
	Creator string `json:"creator"` // pubkey hex
}

// GenesisConfig describes the market's initial state: account balances,
// pre-minted assets, and their royalty terms. Minting and royalty
// registration are outside the operation surface, so everything tradeable
// must be declared here (or written by an external tool sharing the DB).
type GenesisConfig struct {
	Alloc     map[string]uint64            `json:"alloc"`     // pubkey hex → initial balance
	Assets    []AssetSeed                  `json:"assets"`    // pre-minted assets
	Royalties map[string]*core.RoyaltyInfo `json:"royalties"` // asset ID → royalty terms
}

// Config holds all daemon configuration.
type Config struct {
	MarketID     string        `json:"market_id"` // replay-protection domain for signed operations
	DataDir      string        `json:"data_dir"`
	RPCPort      int           `json:"rpc_port"`
	RPCAuthToken string        `json:"rpc_auth_token,omitempty"`
	FeeBps       uint64        `json:"fee_bps"`  // platform fee in basis points
	Treasury     string        `json:"treasury"` // platform fee recipient, pubkey hex
	Genesis      GenesisConfig `json:"genesis"`
}

// DefaultConfig returns a single-node development configuration.
func DefaultConfig() *Config {
	return &Config{
		MarketID: "openlot-dev",
		DataDir:  "./data",
		RPCPort:  8676,
		FeeBps:   250,
		Genesis: GenesisConfig{
			Alloc: map[string]uint64{},
		},
	}
}

// Load reads a JSON config file from path and applies environment
// overrides. A .env file in the working directory is loaded first if
// present (OPENLOT_AUTH_TOKEN, OPENLOT_DATA_DIR, OPENLOT_RPC_PORT).
func Load(path string) (*Config, error) {
	_ = godotenv.Load() // best-effort; absence of .env is fine

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := DefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrapf(err, "parse config %q", path)
	}
	applyEnv(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config to path as formatted JSON.
func Save(cfg *Config, path string) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("OPENLOT_AUTH_TOKEN"); v != "" {
		cfg.RPCAuthToken = v
	}
	if v := os.Getenv("OPENLOT_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("OPENLOT_RPC_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.RPCPort = port
		}
	}
}

// Validate rejects configurations that would break fund conservation at
// trade time. Misconfigured fees must fail at startup, not mid-sale.
func (cfg *Config) Validate() error {
	if cfg.MarketID == "" {
		return errors.New("market_id is required")
	}
	if cfg.FeeBps > fees.BpsDenominator {
		return errors.Errorf("fee_bps %d exceeds %d (100%%)", cfg.FeeBps, fees.BpsDenominator)
	}
	if cfg.FeeBps > 0 && cfg.Treasury == "" {
		return errors.New("treasury address is required when fee_bps > 0")
	}
	for assetID, r := range cfg.Genesis.Royalties {
		if r == nil {
			continue
		}
		if r.Denominator == 0 {
			return errors.Errorf("royalty for asset %q: denominator must be > 0", assetID)
		}
		if r.Numerator > r.Denominator {
			return errors.Errorf("royalty for asset %q: numerator %d exceeds denominator %d",
				assetID, r.Numerator, r.Denominator)
		}
		if r.Numerator > 0 && r.Payee == "" {
			return errors.Errorf("royalty for asset %q: payee is required", assetID)
		}
	}
	return nil
}
