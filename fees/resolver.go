// Package fees computes the exact platform-fee / royalty / seller split of a
// sale price. The arithmetic is pure uint64 with 128-bit intermediates, so
// the conservation invariant fee+royalty+proceeds == price holds for every
// price up to math.MaxUint64.
package fees

import (
	"math/bits"

	"github.com/openlot/openlot/core"
)

// BpsDenominator is the basis-point scale: 10_000 bps == 100%.
const BpsDenominator = 10_000

// Split is the resolved disbursement of one sale.
type Split struct {
	PlatformFee    uint64
	RoyaltyAmount  uint64
	RoyaltyPayee   string // empty when no royalty is registered
	SellerProceeds uint64
}

// Resolver computes splits for a fixed platform fee rate.
type Resolver struct {
	feeBps uint64
}

// NewResolver creates a Resolver charging feeBps basis points per sale.
func NewResolver(feeBps uint64) *Resolver {
	return &Resolver{feeBps: feeBps}
}

// FeeBps returns the configured platform fee rate.
func (r *Resolver) FeeBps() uint64 {
	return r.feeBps
}

// Resolve splits price into platform fee, royalty, and seller proceeds.
// royalty may be nil (no royalty registered for the asset). Integer division
// truncates on the fee and royalty sides, so the seller absorbs the rounding
// remainder and never gains at the protocol's expense. A configuration where
// fee plus royalty exceeds the price is fatal (ErrFeeExceedsPrice), never
// silently clamped.
func (r *Resolver) Resolve(price uint64, royalty *core.RoyaltyInfo) (Split, error) {
	// Rates above 100% can only come from misconfiguration. Reject before
	// dividing: mulDiv requires rate <= scale.
	if r.feeBps > BpsDenominator {
		return Split{}, core.ErrFeeExceedsPrice
	}
	fee := mulDiv(price, r.feeBps, BpsDenominator)

	// Royalty terms without a payee or a denominator are treated as no
	// royalty; crediting nobody would break fund conservation.
	var royaltyAmt uint64
	var payee string
	if royalty != nil && royalty.Denominator != 0 && royalty.Payee != "" {
		if royalty.Numerator > royalty.Denominator {
			return Split{}, core.ErrFeeExceedsPrice
		}
		royaltyAmt = mulDiv(price, royalty.Numerator, royalty.Denominator)
		payee = royalty.Payee
	}

	if royaltyAmt > price-fee {
		return Split{}, core.ErrFeeExceedsPrice
	}

	return Split{
		PlatformFee:    fee,
		RoyaltyAmount:  royaltyAmt,
		RoyaltyPayee:   payee,
		SellerProceeds: price - fee - royaltyAmt,
	}, nil
}

// mulDiv returns a*b/d with a 128-bit intermediate product, truncated.
// Callers guarantee b <= d and d != 0, which bounds the quotient by a and
// keeps the high word below d as bits.Div64 requires.
func mulDiv(a, b, d uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	q, _ := bits.Div64(hi, lo, d)
	return q
}
