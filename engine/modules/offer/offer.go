// Package offer implements the escrow-backed offer book: one offer per
// (asset, buyer), funds locked on creation, refunded on cancellation.
// Offer creation and the escrow credit happen in the same operation, so
// the reconciliation invariant (locked balance == sum of live offer
// amounts) survives every path, including aborts.
package offer

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/openlot/openlot/core"
	"github.com/openlot/openlot/engine"
	"github.com/openlot/openlot/events"
)

func init() {
	engine.Register(core.OpMakeOffer, handleMakeOffer)
	engine.Register(core.OpCancelOffer, handleCancelOffer)
}

func handleMakeOffer(ctx *engine.Context, payload json.RawMessage) error {
	var p core.MakeOfferPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode make_offer payload: %w", err)
	}
	if p.Amount == 0 {
		return core.ErrZeroAmount
	}
	if p.Duration < 0 {
		return fmt.Errorf("duration must be >= 0, got %d", p.Duration)
	}

	owner, err := ctx.Oracle.OwnerOf(p.AssetID)
	if err != nil {
		return err
	}
	if owner == ctx.Op.From {
		return core.ErrSelfTrade
	}

	// Lock the funds first: debit the buyer's spendable balance and credit
	// their escrow entry. If the buyer is short, nothing has been written.
	buyer, err := ctx.State.GetAccount(ctx.Op.From)
	if err != nil {
		return err
	}
	if buyer.Balance < p.Amount {
		return core.ErrInsufficientFunds
	}
	buyer.Balance -= p.Amount
	if err := ctx.State.SetAccount(buyer); err != nil {
		return err
	}

	escrow, err := ctx.State.GetEscrow(ctx.Op.From)
	if err != nil {
		return err
	}
	if escrow.Locked > math.MaxUint64-p.Amount {
		return fmt.Errorf("escrow overflow for buyer %s", ctx.Op.From)
	}
	escrow.Locked += p.Amount
	if err := ctx.State.SetEscrow(escrow); err != nil {
		return err
	}

	var expiresAt int64
	if p.Duration > 0 {
		expiresAt = ctx.Now + p.Duration
	}

	// A repeat offer from the same buyer tops up the existing entry instead
	// of creating a duplicate, which would orphan the old escrow amount.
	// The top-up re-affirms the bid, so the expiry window restarts too.
	toppedUp := false
	o, err := ctx.State.GetOffer(p.AssetID, ctx.Op.From)
	switch {
	case err == nil:
		if o.Amount > math.MaxUint64-p.Amount {
			return fmt.Errorf("offer amount overflow for asset %q", p.AssetID)
		}
		o.Amount += p.Amount
		o.ExpiresAt = expiresAt
		toppedUp = true
	case errors.Is(err, core.ErrNotFound):
		o = &core.Offer{
			AssetID:   p.AssetID,
			Buyer:     ctx.Op.From,
			Amount:    p.Amount,
			CreatedAt: ctx.Now,
			ExpiresAt: expiresAt,
		}
	default:
		return fmt.Errorf("checking offer on %q: %w", p.AssetID, err)
	}
	if err := ctx.State.SetOffer(o); err != nil {
		return err
	}

	if ctx.Emitter != nil {
		ctx.Emitter.Emit(events.Event{
			Type: events.EventOfferCreated,
			OpID: ctx.Op.ID,
			Data: map[string]any{
				"asset_id":   p.AssetID,
				"buyer":      ctx.Op.From,
				"amount":     o.Amount,
				"expires_at": o.ExpiresAt,
				"topped_up":  toppedUp,
			},
		})
	}
	return nil
}

func handleCancelOffer(ctx *engine.Context, payload json.RawMessage) error {
	var p core.CancelOfferPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		return fmt.Errorf("decode cancel_offer payload: %w", err)
	}

	// Refund authority derives from the buyer's own escrow entry, not from
	// current asset ownership: cancellation must succeed even after the
	// asset was sold to someone else, and even past expiry.
	o, err := ctx.State.GetOffer(p.AssetID, ctx.Op.From)
	if errors.Is(err, core.ErrNotFound) {
		return core.ErrOfferNotFound
	}
	if err != nil {
		return err
	}

	escrow, err := ctx.State.GetEscrow(ctx.Op.From)
	if err != nil {
		return err
	}
	if escrow.Locked < o.Amount {
		return fmt.Errorf("escrow ledger underflow for buyer %s: locked %d < offer %d",
			ctx.Op.From, escrow.Locked, o.Amount)
	}
	escrow.Locked -= o.Amount
	if err := ctx.State.SetEscrow(escrow); err != nil {
		return err
	}

	buyer, err := ctx.State.GetAccount(ctx.Op.From)
	if err != nil {
		return err
	}
	buyer.Balance += o.Amount
	if err := ctx.State.SetAccount(buyer); err != nil {
		return err
	}

	if err := ctx.State.DeleteOffer(p.AssetID, ctx.Op.From); err != nil {
		return err
	}

	if ctx.Emitter != nil {
		ctx.Emitter.Emit(events.Event{
			Type: events.EventOfferCancelled,
			OpID: ctx.Op.ID,
			Data: map[string]any{"asset_id": p.AssetID, "buyer": ctx.Op.From, "amount": o.Amount},
		})
	}
	return nil
}
