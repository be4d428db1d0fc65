package core

// Account holds a participant's spendable token balance and replay-protection
// nonce. Address is the hex-encoded ed25519 public key.
type Account struct {
	Address string `json:"address"` // pubkey hex
	Balance uint64 `json:"balance"`
	Nonce   uint64 `json:"nonce"`
}

// Asset is a unique, non-fungible tradeable item. The Owner field is the
// authoritative ownership record; the oracle package is the only reader and
// writer of it on behalf of the trade paths.
type Asset struct {
	ID       string `json:"id"`
	Owner    string `json:"owner"`   // pubkey hex
	Creator  string `json:"creator"` // pubkey hex of the minter
	MintedAt int64  `json:"minted_at"`
}

// Listing is an active fixed-price sale offer for one asset. At most one
// Listing exists per asset; it is keyed by AssetID in state. Price changes
// are modeled as cancel+relist, never in-place mutation.
type Listing struct {
	AssetID   string `json:"asset_id"`
	Seller    string `json:"seller"` // pubkey hex
	Price     uint64 `json:"price"`
	CreatedAt int64  `json:"created_at"`
}

// Offer is a buyer's standing bid on an asset, backed one-to-one by locked
// escrow funds. At most one Offer exists per (asset, buyer); a repeat
// make_offer tops up Amount instead of creating a second entry.
// ExpiresAt == 0 means the offer never expires. Expiry is advisory: an
// expired offer can still be cancelled for a refund but cannot be accepted.
type Offer struct {
	AssetID   string `json:"asset_id"`
	Buyer     string `json:"buyer"` // pubkey hex
	Amount    uint64 `json:"amount"`
	CreatedAt int64  `json:"created_at"`
	ExpiresAt int64  `json:"expires_at,omitempty"`
}

// Expired reports whether the offer has passed its deadline at time now.
func (o *Offer) Expired(now int64) bool {
	return o.ExpiresAt != 0 && now >= o.ExpiresAt
}

// EscrowAccount tracks the funds a buyer has locked against outstanding
// offers. Invariant: Locked equals the sum of Amount over the buyer's live
// offers across all assets, after every operation including aborted ones.
type EscrowAccount struct {
	Buyer  string `json:"buyer"` // pubkey hex
	Locked uint64 `json:"locked"`
}

// RoyaltyInfo holds creator-royalty terms for an asset. Read-only to the
// trade paths; resolved through the ownership oracle.
type RoyaltyInfo struct {
	Numerator   uint64 `json:"numerator"`
	Denominator uint64 `json:"denominator"`
	Payee       string `json:"payee"` // pubkey hex
}

// State is the full market state interface. Implementations must be
// snapshot-able so the executor can roll back failed operations.
type State interface {
	// Accounts
	GetAccount(address string) (*Account, error)
	SetAccount(account *Account) error

	// Assets
	GetAsset(id string) (*Asset, error)
	SetAsset(asset *Asset) error

	// Listings, keyed by asset ID (at most one per asset)
	GetListing(assetID string) (*Listing, error)
	SetListing(l *Listing) error
	DeleteListing(assetID string) error

	// Offers, keyed by (asset ID, buyer)
	GetOffer(assetID, buyer string) (*Offer, error)
	SetOffer(o *Offer) error
	DeleteOffer(assetID, buyer string) error

	// Escrow ledger, keyed by buyer
	GetEscrow(buyer string) (*EscrowAccount, error)
	SetEscrow(e *EscrowAccount) error

	// Royalty terms, keyed by asset ID
	GetRoyalty(assetID string) (*RoyaltyInfo, error)
	SetRoyalty(assetID string, r *RoyaltyInfo) error

	// Snapshot / rollback / commit
	Snapshot() (int, error)
	RevertToSnapshot(id int) error
	// ComputeRoot returns the deterministic state root from the current write
	// buffer without flushing.
	ComputeRoot() string
	// Commit flushes the write buffer to the underlying DB and clears it.
	Commit() error
}
