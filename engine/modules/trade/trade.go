// Package trade implements the two sale paths: buying a listed asset at its
// asking price and accepting an escrow-backed offer. Both are all-or-nothing:
// any failed step rolls the whole operation back via the executor's snapshot.
package trade

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openlot/openlot/core"
	"github.com/openlot/openlot/engine"
	"github.com/openlot/openlot/events"
	"github.com/openlot/openlot/fees"
)

func init() {
	engine.Register(core.OpBuyAsset, handleBuyAsset)
	engine.Register(core.OpAcceptOffer, handleAcceptOffer)
}

func handleBuyAsset(ctx *engine.Context, payload json.RawMessage) error {
	var p core.BuyAssetPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode buy_asset payload: %w", err)
	}

	l, err := ctx.State.GetListing(p.AssetID)
	if errors.Is(err, core.ErrNotFound) {
		return core.ErrNotListed
	}
	if err != nil {
		return err
	}

	// A listing whose seller no longer owns the asset is void: accepting an
	// offer transfers ownership without deleting the listing, and a stale
	// entry must never double-sell.
	owner, err := ctx.Oracle.OwnerOf(p.AssetID)
	if err != nil {
		return err
	}
	if owner != l.Seller {
		return core.ErrNotListed
	}
	if ctx.Op.From == l.Seller {
		return core.ErrSelfTrade
	}

	split, err := resolveSplit(ctx, p.AssetID, l.Price)
	if err != nil {
		return err
	}

	buyer, err := ctx.State.GetAccount(ctx.Op.From)
	if err != nil {
		return err
	}
	if buyer.Balance < l.Price {
		return core.ErrInsufficientFunds
	}
	buyer.Balance -= l.Price
	if err := ctx.State.SetAccount(buyer); err != nil {
		return err
	}

	if err := disburse(ctx, l.Seller, split); err != nil {
		return err
	}

	if err := ctx.Oracle.TransferOwnership(p.AssetID, l.Seller, ctx.Op.From); err != nil {
		return err
	}

	if err := ctx.State.DeleteListing(p.AssetID); err != nil {
		return err
	}

	if ctx.Emitter != nil {
		ctx.Emitter.Emit(events.Event{
			Type: events.EventSale,
			OpID: ctx.Op.ID,
			Data: saleData(p.AssetID, l.Seller, ctx.Op.From, l.Price, split),
		})
	}
	return nil
}

func handleAcceptOffer(ctx *engine.Context, payload json.RawMessage) error {
	var p core.AcceptOfferPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode accept_offer payload: %w", err)
	}

	owner, err := ctx.Oracle.OwnerOf(p.AssetID)
	if err != nil {
		return err
	}
	if owner != ctx.Op.From {
		return core.ErrNotOwner
	}

	o, err := ctx.State.GetOffer(p.AssetID, p.Buyer)
	if errors.Is(err, core.ErrNotFound) {
		return core.ErrOfferNotFound
	}
	if err != nil {
		return err
	}
	if o.Expired(ctx.Now) {
		return core.ErrOfferExpired
	}

	split, err := resolveSplit(ctx, p.AssetID, o.Amount)
	if err != nil {
		return err
	}

	escrow, err := ctx.State.GetEscrow(p.Buyer)
	if err != nil {
		return err
	}
	if escrow.Locked < o.Amount {
		return fmt.Errorf("escrow ledger underflow for buyer %s: locked %d < offer %d",
			p.Buyer, escrow.Locked, o.Amount)
	}
	escrow.Locked -= o.Amount
	if err := ctx.State.SetEscrow(escrow); err != nil {
		return err
	}

	if err := disburse(ctx, ctx.Op.From, split); err != nil {
		return err
	}

	if err := ctx.Oracle.TransferOwnership(p.AssetID, ctx.Op.From, p.Buyer); err != nil {
		return err
	}

	// Only the accepted offer is consumed. Other buyers' offers on this
	// asset stay live; their escrow entries still back them and a later
	// cancel_offer refunds them in full. The asset's active listing, if
	// any, is left in place and becomes void via the owner re-check on buy.
	if err := ctx.State.DeleteOffer(p.AssetID, p.Buyer); err != nil {
		return err
	}

	if ctx.Emitter != nil {
		ctx.Emitter.Emit(events.Event{
			Type: events.EventOfferAccepted,
			OpID: ctx.Op.ID,
			Data: map[string]any{"asset_id": p.AssetID, "seller": ctx.Op.From, "buyer": p.Buyer, "amount": o.Amount},
		})
		ctx.Emitter.Emit(events.Event{
			Type: events.EventSale,
			OpID: ctx.Op.ID,
			Data: saleData(p.AssetID, ctx.Op.From, p.Buyer, o.Amount, split),
		})
	}
	return nil
}

// resolveSplit looks up the asset's royalty terms and computes the exact
// disbursement of price.
func resolveSplit(ctx *engine.Context, assetID string, price uint64) (fees.Split, error) {
	royalty, ok, err := ctx.Oracle.ResolveRoyalty(assetID)
	if err != nil {
		return fees.Split{}, fmt.Errorf("resolve royalty for %q: %w", assetID, err)
	}
	if !ok {
		royalty = nil
	}
	return ctx.Fees.Resolve(price, royalty)
}

// disburse credits the royalty payee, the platform treasury, and the seller
// per the resolved split. Credits go through the state's write buffer, so
// repeated credits to the same account (seller == payee, say) accumulate.
func disburse(ctx *engine.Context, seller string, s fees.Split) error {
	if err := credit(ctx.State, s.RoyaltyPayee, s.RoyaltyAmount); err != nil {
		return err
	}
	if err := credit(ctx.State, ctx.Treasury, s.PlatformFee); err != nil {
		return err
	}
	return credit(ctx.State, seller, s.SellerProceeds)
}

func credit(state core.State, address string, amount uint64) error {
	if amount == 0 {
		return nil
	}
	acc, err := state.GetAccount(address)
	if err != nil {
		return err
	}
	acc.Balance += amount
	return state.SetAccount(acc)
}

func saleData(assetID, seller, buyer string, price uint64, s fees.Split) map[string]any {
	return map[string]any{
		"asset_id":      assetID,
		"seller":        seller,
		"buyer":         buyer,
		"price":         price,
		"fee":           s.PlatformFee,
		"royalty":       s.RoyaltyAmount,
		"royalty_payee": s.RoyaltyPayee,
		"proceeds":      s.SellerProceeds,
	}
}
