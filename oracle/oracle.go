// Package oracle defines the asset-ownership boundary the trade paths call
// outward through, plus the default implementation backed by asset records
// in the market state.
package oracle

import (
	"fmt"

	"github.com/openlot/openlot/core"
)

// Ownership is the authoritative record of who owns which asset, and the
// read-only source of creator-royalty terms. The engine only ever calls
// these three methods; minting, metadata, and royalty registration live
// behind this boundary.
type Ownership interface {
	// OwnerOf returns the current owner's address.
	OwnerOf(assetID string) (string, error)
	// TransferOwnership moves the asset from one owner to another. It
	// re-checks that from is the current owner even though callers verify
	// first; a mismatch is fatal to the operation.
	TransferOwnership(assetID, from, to string) error
	// ResolveRoyalty returns the asset's royalty terms, or ok=false when
	// none are registered.
	ResolveRoyalty(assetID string) (royalty *core.RoyaltyInfo, ok bool, err error)
}

// StateOracle implements Ownership against the asset and royalty records in
// a core.State. Because it shares the state's write buffer, ownership
// transfers participate in the same snapshot/rollback as the rest of the
// operation.
type StateOracle struct {
	state core.State
}

// NewStateOracle creates a StateOracle over state.
func NewStateOracle(state core.State) *StateOracle {
	return &StateOracle{state: state}
}

func (o *StateOracle) OwnerOf(assetID string) (string, error) {
	asset, err := o.state.GetAsset(assetID)
	if err != nil {
		return "", fmt.Errorf("asset %q: %w", assetID, err)
	}
	return asset.Owner, nil
}

func (o *StateOracle) TransferOwnership(assetID, from, to string) error {
	asset, err := o.state.GetAsset(assetID)
	if err != nil {
		return fmt.Errorf("asset %q: %w", assetID, err)
	}
	if asset.Owner != from {
		return fmt.Errorf("transfer of asset %q: %s is not the current owner", assetID, from)
	}
	asset.Owner = to
	return o.state.SetAsset(asset)
}

func (o *StateOracle) ResolveRoyalty(assetID string) (*core.RoyaltyInfo, bool, error) {
	r, err := o.state.GetRoyalty(assetID)
	if err == nil {
		return r, true, nil
	}
	if err == core.ErrNotFound {
		return nil, false, nil
	}
	return nil, false, err
}
