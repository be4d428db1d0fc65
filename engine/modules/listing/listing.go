// Package listing implements the fixed-price listing registry: at most one
// active listing per asset, created by the current owner and removed by
// cancellation or sale.
package listing

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openlot/openlot/core"
	"github.com/openlot/openlot/engine"
	"github.com/openlot/openlot/events"
)

func init() {
	engine.Register(core.OpListAsset, handleListAsset)
	engine.Register(core.OpCancelListing, handleCancelListing)
}

func handleListAsset(ctx *engine.Context, payload json.RawMessage) error {
	var p core.ListAssetPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode list_asset payload: %w", err)
	}
	if p.Price == 0 {
		return core.ErrZeroPrice
	}

	owner, err := ctx.Oracle.OwnerOf(p.AssetID)
	if err != nil {
		return err
	}
	if owner != ctx.Op.From {
		return core.ErrNotOwner
	}

	// One listing per asset. A price change is cancel+relist.
	if _, err := ctx.State.GetListing(p.AssetID); err == nil {
		return core.ErrAlreadyListed
	} else if !errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("checking listing for %q: %w", p.AssetID, err)
	}

	l := &core.Listing{
		AssetID:   p.AssetID,
		Seller:    ctx.Op.From,
		Price:     p.Price,
		CreatedAt: ctx.Now,
	}
	if err := ctx.State.SetListing(l); err != nil {
		return err
	}

	if ctx.Emitter != nil {
		ctx.Emitter.Emit(events.Event{
			Type: events.EventListingCreated,
			OpID: ctx.Op.ID,
			Data: map[string]any{"asset_id": p.AssetID, "seller": ctx.Op.From, "price": p.Price},
		})
	}
	return nil
}

func handleCancelListing(ctx *engine.Context, payload json.RawMessage) error {
	var p core.CancelListingPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode cancel_listing payload: %w", err)
	}

	l, err := ctx.State.GetListing(p.AssetID)
	if errors.Is(err, core.ErrNotFound) {
		return core.ErrNotListed
	}
	if err != nil {
		return err
	}
	if l.Seller != ctx.Op.From {
		return core.ErrNotOwner
	}

	if err := ctx.State.DeleteListing(p.AssetID); err != nil {
		return err
	}

	if ctx.Emitter != nil {
		ctx.Emitter.Emit(events.Event{
			Type: events.EventListingCancelled,
			OpID: ctx.Op.ID,
			Data: map[string]any{"asset_id": p.AssetID, "seller": l.Seller},
		})
	}
	return nil
}
