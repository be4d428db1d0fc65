package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/openlot/openlot/crypto"
)

// OpType identifies the kind of market operation an envelope carries.
type OpType string

const (
	OpListAsset     OpType = "list_asset"
	OpCancelListing OpType = "cancel_listing"
	OpBuyAsset      OpType = "buy_asset"
	OpMakeOffer     OpType = "make_offer"
	OpCancelOffer   OpType = "cancel_offer"
	OpAcceptOffer   OpType = "accept_offer"
)

// Operation is the atomic unit of work submitted to the engine.
// From holds the caller's full hex-encoded ed25519 public key and is the
// verified seller/buyer identity for the operation. MarketID pins the
// envelope to one deployment so signed operations cannot be replayed
// against another market. Signature covers all fields except Signature
// itself.
type Operation struct {
	ID        string          `json:"id"`
	MarketID  string          `json:"market_id"`
	Type      OpType          `json:"type"`
	From      string          `json:"from"` // hex-encoded ed25519 public key
	Nonce     uint64          `json:"nonce"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
	Signature string          `json:"signature"`
}

// signingBody holds the fields that are covered by the signature.
type signingBody struct {
	MarketID  string          `json:"market_id"`
	Type      OpType          `json:"type"`
	From      string          `json:"from"`
	Nonce     uint64          `json:"nonce"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// Hash returns a deterministic hash of the operation (sans Signature).
// Returns an empty string if marshalling fails (which cannot happen in practice).
func (op *Operation) Hash() string {
	body := signingBody{
		MarketID:  op.MarketID,
		Type:      op.Type,
		From:      op.From,
		Nonce:     op.Nonce,
		Timestamp: op.Timestamp,
		Payload:   op.Payload,
	}
	data, err := json.Marshal(body)
	if err != nil {
		return ""
	}
	return crypto.Hash(data)
}

// Sign computes the signature and sets ID.
func (op *Operation) Sign(priv crypto.PrivateKey) {
	hash := op.Hash()
	op.Signature = crypto.Sign(priv, []byte(hash))
	op.ID = hash
}

// Verify checks the signature and that From is a valid public key.
func (op *Operation) Verify() error {
	if op.From == "" {
		return errors.New("missing from field")
	}
	pub, err := crypto.PubKeyFromHex(op.From)
	if err != nil {
		return fmt.Errorf("invalid from (must be ed25519 pubkey hex): %w", err)
	}
	return crypto.Verify(pub, []byte(op.Hash()), op.Signature)
}

// NewOperation creates an unsigned operation with the current timestamp.
func NewOperation(marketID string, typ OpType, from string, nonce uint64, payload any) (*Operation, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return &Operation{
		MarketID:  marketID,
		Type:      typ,
		From:      from,
		Nonce:     nonce,
		Timestamp: time.Now().UnixNano(),
		Payload:   raw,
	}, nil
}

// ---- Payload types ----

// ListAssetPayload puts an asset up for fixed-price sale.
type ListAssetPayload struct {
	AssetID string `json:"asset_id"`
	Price   uint64 `json:"price"`
}

// CancelListingPayload withdraws an active listing.
type CancelListingPayload struct {
	AssetID string `json:"asset_id"`
}

// BuyAssetPayload purchases a listed asset at its asking price.
type BuyAssetPayload struct {
	AssetID string `json:"asset_id"`
}

// MakeOfferPayload lodges (or tops up) an escrow-backed bid.
// Duration is in seconds from execution time; 0 means the offer never expires.
type MakeOfferPayload struct {
	AssetID  string `json:"asset_id"`
	Amount   uint64 `json:"amount"`
	Duration int64  `json:"duration,omitempty"`
}

// CancelOfferPayload withdraws the caller's offer and refunds its escrow.
type CancelOfferPayload struct {
	AssetID string `json:"asset_id"`
}

// AcceptOfferPayload sells the asset to the named buyer at their offer amount.
type AcceptOfferPayload struct {
	AssetID string `json:"asset_id"`
	Buyer   string `json:"buyer"` // pubkey hex of the offer's buyer
}
