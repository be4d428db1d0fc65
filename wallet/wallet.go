// Package wallet provides key management and operation-signing helpers for
// market participants.
package wallet

import (
	"github.com/openlot/openlot/core"
	"github.com/openlot/openlot/crypto"
)

// Wallet holds a key pair and provides operation-building helpers.
type Wallet struct {
	priv crypto.PrivateKey
	pub  crypto.PublicKey
}

// New creates a Wallet from an existing private key.
func New(priv crypto.PrivateKey) *Wallet {
	return &Wallet{priv: priv, pub: priv.Public()}
}

// Generate creates a Wallet with a freshly generated key pair.
func Generate() (*Wallet, error) {
	priv, _, err := crypto.GenerateKeyPair()
	if err != nil {
		return nil, err
	}
	return New(priv), nil
}

// PrivKey returns the raw private key (handle with care).
func (w *Wallet) PrivKey() crypto.PrivateKey {
	return w.priv
}

// Address returns the hex-encoded ed25519 public key used as the account
// address throughout the market.
func (w *Wallet) Address() string {
	return w.pub.Hex()
}

// NewOp creates a signed operation. marketID must match the target
// deployment; nonce must match the account's current nonce.
func (w *Wallet) NewOp(marketID string, typ core.OpType, nonce uint64, payload any) (*core.Operation, error) {
	op, err := core.NewOperation(marketID, typ, w.pub.Hex(), nonce, payload)
	if err != nil {
		return nil, err
	}
	op.Sign(w.priv)
	return op, nil
}

// ListAsset creates a signed list_asset operation.
func (w *Wallet) ListAsset(marketID, assetID string, price, nonce uint64) (*core.Operation, error) {
	return w.NewOp(marketID, core.OpListAsset, nonce, core.ListAssetPayload{AssetID: assetID, Price: price})
}

// CancelListing creates a signed cancel_listing operation.
func (w *Wallet) CancelListing(marketID, assetID string, nonce uint64) (*core.Operation, error) {
	return w.NewOp(marketID, core.OpCancelListing, nonce, core.CancelListingPayload{AssetID: assetID})
}

// BuyAsset creates a signed buy_asset operation.
func (w *Wallet) BuyAsset(marketID, assetID string, nonce uint64) (*core.Operation, error) {
	return w.NewOp(marketID, core.OpBuyAsset, nonce, core.BuyAssetPayload{AssetID: assetID})
}

// MakeOffer creates a signed make_offer operation. duration is in seconds;
// 0 means the offer never expires.
func (w *Wallet) MakeOffer(marketID, assetID string, amount uint64, duration int64, nonce uint64) (*core.Operation, error) {
	return w.NewOp(marketID, core.OpMakeOffer, nonce, core.MakeOfferPayload{
		AssetID:  assetID,
		Amount:   amount,
		Duration: duration,
	})
}

// CancelOffer creates a signed cancel_offer operation.
func (w *Wallet) CancelOffer(marketID, assetID string, nonce uint64) (*core.Operation, error) {
	return w.NewOp(marketID, core.OpCancelOffer, nonce, core.CancelOfferPayload{AssetID: assetID})
}

// AcceptOffer creates a signed accept_offer operation.
func (w *Wallet) AcceptOffer(marketID, assetID, buyer string, nonce uint64) (*core.Operation, error) {
	return w.NewOp(marketID, core.OpAcceptOffer, nonce, core.AcceptOfferPayload{AssetID: assetID, Buyer: buyer})
}
