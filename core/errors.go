package core

import "errors"

// ErrNotFound is returned when a requested object does not exist in storage.
var ErrNotFound = errors.New("not found")

// Operation error kinds. Every precondition violation maps to exactly one of
// these so the RPC boundary can hand clients a stable machine-readable kind.
// Each aborts the single operation; the engine never retries internally.
var (
	ErrNotOwner          = errors.New("caller is not the owner")
	ErrNotListed         = errors.New("asset is not listed")
	ErrAlreadyListed     = errors.New("asset is already listed")
	ErrZeroPrice         = errors.New("price must be > 0")
	ErrZeroAmount        = errors.New("amount must be > 0")
	ErrSelfTrade         = errors.New("caller cannot trade with themselves")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrOfferNotFound     = errors.New("offer not found")
	ErrOfferExpired      = errors.New("offer expired")
	ErrFeeExceedsPrice   = errors.New("fee and royalty exceed price")
)

var errorKinds = []struct {
	err  error
	kind string
}{
	{ErrNotOwner, "NotOwner"},
	{ErrNotListed, "NotListed"},
	{ErrAlreadyListed, "AlreadyListed"},
	{ErrZeroPrice, "ZeroPrice"},
	{ErrZeroAmount, "ZeroAmount"},
	{ErrSelfTrade, "SelfTrade"},
	{ErrInsufficientFunds, "InsufficientFunds"},
	{ErrOfferNotFound, "OfferNotFound"},
	{ErrOfferExpired, "OfferExpired"},
	{ErrFeeExceedsPrice, "FeeExceedsPrice"},
}

// ErrorKind returns the stable kind string for a known operation error.
// Unknown errors (storage faults, bad signatures) return "" and should be
// reported as internal.
func ErrorKind(err error) string {
	for _, ek := range errorKinds {
		if errors.Is(err, ek.err) {
			return ek.kind
		}
	}
	return ""
}
