package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlot/openlot/core"
	"github.com/openlot/openlot/internal/testutil"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `{
		"market_id": "openlot-main",
		"rpc_port": 9000,
		"fee_bps": 250,
		"treasury": "t1",
		"genesis": {
			"alloc": {"alice": 1000},
			"assets": [{"id": "sword-1", "owner": "alice", "creator": "carol"}],
			"royalties": {"sword-1": {"numerator": 5, "denominator": 100, "payee": "carol"}}
		}
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "openlot-main", cfg.MarketID)
	assert.Equal(t, 9000, cfg.RPCPort)
	assert.Equal(t, uint64(250), cfg.FeeBps)
	assert.Equal(t, uint64(1000), cfg.Genesis.Alloc["alice"])
	require.Len(t, cfg.Genesis.Assets, 1)
	assert.Equal(t, "sword-1", cfg.Genesis.Assets[0].ID)
}

func TestLoadAppliesDefaults(t *testing.T) {
	// The default fee rate needs a treasury to pass validation; everything
	// else falls back to defaults.
	cfg, err := Load(writeConfig(t, `{"treasury": "t1"}`))
	require.NoError(t, err)
	assert.Equal(t, "openlot-dev", cfg.MarketID)
	assert.Equal(t, 8676, cfg.RPCPort)
	assert.Equal(t, uint64(250), cfg.FeeBps)
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("OPENLOT_AUTH_TOKEN", "sekrit")
	t.Setenv("OPENLOT_RPC_PORT", "9999")

	cfg, err := Load(writeConfig(t, `{"rpc_port": 9000, "treasury": "t1"}`))
	require.NoError(t, err)
	assert.Equal(t, "sekrit", cfg.RPCAuthToken)
	assert.Equal(t, 9999, cfg.RPCPort)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.True(t, os.IsNotExist(err))
}

func TestValidate(t *testing.T) {
	cases := map[string]struct {
		mutate  func(*Config)
		wantErr bool
	}{
		"defaults without fee treasury": {
			mutate:  func(cfg *Config) { cfg.Treasury = "" },
			wantErr: true, // default fee_bps 250 needs a treasury
		},
		"zero fee without treasury": {
			mutate:  func(cfg *Config) { cfg.FeeBps = 0; cfg.Treasury = "" },
			wantErr: false,
		},
		"missing market id": {
			mutate:  func(cfg *Config) { cfg.MarketID = "" },
			wantErr: true,
		},
		"fee over 100%": {
			mutate:  func(cfg *Config) { cfg.FeeBps = 10_001 },
			wantErr: true,
		},
		"royalty zero denominator": {
			mutate: func(cfg *Config) {
				cfg.Genesis.Royalties = map[string]*core.RoyaltyInfo{
					"a1": {Numerator: 1, Denominator: 0, Payee: "carol"},
				}
			},
			wantErr: true,
		},
		"royalty over 100%": {
			mutate: func(cfg *Config) {
				cfg.Genesis.Royalties = map[string]*core.RoyaltyInfo{
					"a1": {Numerator: 2, Denominator: 1, Payee: "carol"},
				}
			},
			wantErr: true,
		},
		"royalty without payee": {
			mutate: func(cfg *Config) {
				cfg.Genesis.Royalties = map[string]*core.RoyaltyInfo{
					"a1": {Numerator: 1, Denominator: 10},
				}
			},
			wantErr: true,
		},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Treasury = "treasury"
			tc.mutate(cfg)
			err := cfg.Validate()
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestSeedGenesis(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Treasury = "treasury"
	cfg.Genesis = GenesisConfig{
		Alloc: map[string]uint64{"alice": 1_000, "bob": 500},
		Assets: []AssetSeed{
			{ID: "sword-1", Owner: "alice", Creator: "carol"},
		},
		Royalties: map[string]*core.RoyaltyInfo{
			"sword-1": {Numerator: 5, Denominator: 100, Payee: "carol"},
		},
	}

	state := testutil.NewStateDB()
	root, err := SeedGenesis(cfg, state, 42)
	require.NoError(t, err)
	assert.NotEmpty(t, root)

	acc, err := state.GetAccount("alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(1_000), acc.Balance)

	asset, err := state.GetAsset("sword-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", asset.Owner)
	assert.Equal(t, "carol", asset.Creator)
	assert.Equal(t, int64(42), asset.MintedAt)

	r, err := state.GetRoyalty("sword-1")
	require.NoError(t, err)
	assert.Equal(t, uint64(5), r.Numerator)

	// Seeding is deterministic: same config, same root.
	root2, err := SeedGenesis(cfg, testutil.NewStateDB(), 42)
	require.NoError(t, err)
	assert.Equal(t, root, root2)
}

func TestSeedGenesisRejectsBadAssetSeed(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Genesis.Assets = []AssetSeed{{ID: "", Owner: "alice"}}
	_, err := SeedGenesis(cfg, testutil.NewStateDB(), 0)
	assert.Error(t, err)
}
