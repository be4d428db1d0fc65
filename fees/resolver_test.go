package fees

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlot/openlot/core"
)

func TestResolveSplitsExactly(t *testing.T) {
	r := NewResolver(250) // 2.5%
	royalty := &core.RoyaltyInfo{Numerator: 5, Denominator: 100, Payee: "carol"}

	// 900 * 250/10000 = 22.5 → 22; 900 * 5/100 = 45; seller gets the rest.
	s, err := r.Resolve(900, royalty)
	require.NoError(t, err)
	assert.Equal(t, uint64(22), s.PlatformFee)
	assert.Equal(t, uint64(45), s.RoyaltyAmount)
	assert.Equal(t, "carol", s.RoyaltyPayee)
	assert.Equal(t, uint64(833), s.SellerProceeds)
	assert.Equal(t, uint64(900), s.PlatformFee+s.RoyaltyAmount+s.SellerProceeds)
}

func TestResolveNoRoyalty(t *testing.T) {
	r := NewResolver(250)

	s, err := r.Resolve(1000, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(25), s.PlatformFee)
	assert.Zero(t, s.RoyaltyAmount)
	assert.Empty(t, s.RoyaltyPayee)
	assert.Equal(t, uint64(975), s.SellerProceeds)
}

func TestResolveRoyaltyWithoutPayeeIgnored(t *testing.T) {
	r := NewResolver(0)

	s, err := r.Resolve(1000, &core.RoyaltyInfo{Numerator: 1, Denominator: 10})
	require.NoError(t, err)
	assert.Zero(t, s.RoyaltyAmount)
	assert.Equal(t, uint64(1000), s.SellerProceeds)
}

// TestResolveConservation checks fee+royalty+proceeds == price exactly,
// including at the top of the uint64 range where naive multiplication
// overflows.
func TestResolveConservation(t *testing.T) {
	r := NewResolver(250)
	royalty := &core.RoyaltyInfo{Numerator: 7, Denominator: 93, Payee: "carol"}

	prices := []uint64{1, 2, 3, 9, 39, 999, 10_001, 1 << 40, math.MaxUint64 - 1, math.MaxUint64}
	for _, price := range prices {
		s, err := r.Resolve(price, royalty)
		require.NoError(t, err, "price %d", price)
		assert.Equal(t, price, s.PlatformFee+s.RoyaltyAmount+s.SellerProceeds, "price %d", price)
	}
}

func TestResolveTruncationFavorsProtocol(t *testing.T) {
	r := NewResolver(333) // 3.33%

	// 100 * 333/10000 = 3.33 → fee truncates to 3, remainder goes to seller.
	s, err := r.Resolve(100, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), s.PlatformFee)
	assert.Equal(t, uint64(97), s.SellerProceeds)
}

func TestResolveFeeExceedsPrice(t *testing.T) {
	// Fee rate above 100% is a configuration error, never clamped.
	_, err := NewResolver(10_001).Resolve(100, nil)
	assert.ErrorIs(t, err, core.ErrFeeExceedsPrice)

	// Royalty above 100%.
	_, err = NewResolver(0).Resolve(100, &core.RoyaltyInfo{Numerator: 2, Denominator: 1, Payee: "carol"})
	assert.ErrorIs(t, err, core.ErrFeeExceedsPrice)

	// Fee plus royalty together exceeding the price.
	_, err = NewResolver(10_000).Resolve(100, &core.RoyaltyInfo{Numerator: 1, Denominator: 2, Payee: "carol"})
	assert.ErrorIs(t, err, core.ErrFeeExceedsPrice)
}

func TestResolveFullFeeNoRoyalty(t *testing.T) {
	// 100% fee is legal (if unkind): seller gets zero, conservation holds.
	s, err := NewResolver(10_000).Resolve(100, nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(100), s.PlatformFee)
	assert.Zero(t, s.SellerProceeds)
}
