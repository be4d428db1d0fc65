package config

import (
	"github.com/pkg/errors"

	"github.com/openlot/openlot/core"
)

// SeedGenesis writes the configured initial state (account balances,
// pre-minted assets, royalty terms) and commits. Call exactly once on a
// fresh database; re-seeding an existing market would reset balances.
// Returns the resulting state root.
func SeedGenesis(cfg *Config, state core.State, mintedAt int64) (string, error) {
	for pubkeyHex, balance := range cfg.Genesis.Alloc {
		acc := &core.Account{
			Address: pubkeyHex,
			Balance: balance,
			Nonce:   0,
		}
		if err := state.SetAccount(acc); err != nil {
			return "", errors.Wrapf(err, "alloc account %s", pubkeyHex)
		}
	}

	for _, seed := range cfg.Genesis.Assets {
		if seed.ID == "" || seed.Owner == "" {
			return "", errors.Errorf("asset seed needs id and owner: %+v", seed)
		}
		asset := &core.Asset{
			ID:       seed.ID,
			Owner:    seed.Owner,
			Creator:  seed.Creator,
			MintedAt: mintedAt,
		}
		if err := state.SetAsset(asset); err != nil {
			return "", errors.Wrapf(err, "seed asset %s", seed.ID)
		}
	}

	for assetID, r := range cfg.Genesis.Royalties {
		if r == nil {
			continue
		}
		if err := state.SetRoyalty(assetID, r); err != nil {
			return "", errors.Wrapf(err, "seed royalty for %s", assetID)
		}
	}

	root := state.ComputeRoot()
	if err := state.Commit(); err != nil {
		return "", errors.Wrap(err, "commit genesis")
	}
	return root, nil
}
