package oracle

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlot/openlot/core"
	"github.com/openlot/openlot/internal/testutil"
)

func TestStateOracleOwnerOf(t *testing.T) {
	state := testutil.NewStateDB()
	o := NewStateOracle(state)
	require.NoError(t, state.SetAsset(&core.Asset{ID: "sword-1", Owner: "alice"}))

	owner, err := o.OwnerOf("sword-1")
	require.NoError(t, err)
	assert.Equal(t, "alice", owner)

	_, err = o.OwnerOf("nope")
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestStateOracleTransferOwnership(t *testing.T) {
	state := testutil.NewStateDB()
	o := NewStateOracle(state)
	require.NoError(t, state.SetAsset(&core.Asset{ID: "sword-1", Owner: "alice"}))

	require.NoError(t, o.TransferOwnership("sword-1", "alice", "bob"))
	owner, err := o.OwnerOf("sword-1")
	require.NoError(t, err)
	assert.Equal(t, "bob", owner)

	// from must be the current owner.
	assert.Error(t, o.TransferOwnership("sword-1", "alice", "carol"))
	owner, err = o.OwnerOf("sword-1")
	require.NoError(t, err)
	assert.Equal(t, "bob", owner)
}

func TestStateOracleResolveRoyalty(t *testing.T) {
	state := testutil.NewStateDB()
	o := NewStateOracle(state)

	_, ok, err := o.ResolveRoyalty("sword-1")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, state.SetRoyalty("sword-1", &core.RoyaltyInfo{Numerator: 5, Denominator: 100, Payee: "carol"}))
	r, ok, err := o.ResolveRoyalty("sword-1")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "carol", r.Payee)
}
