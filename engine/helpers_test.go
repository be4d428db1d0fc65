package engine_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/openlot/openlot/core"
	"github.com/openlot/openlot/engine"
	"github.com/openlot/openlot/events"
	"github.com/openlot/openlot/fees"
	"github.com/openlot/openlot/internal/testutil"
	"github.com/openlot/openlot/oracle"
	"github.com/openlot/openlot/storage"
	"github.com/openlot/openlot/wallet"

	_ "github.com/openlot/openlot/engine/modules/listing"
	_ "github.com/openlot/openlot/engine/modules/offer"
	_ "github.com/openlot/openlot/engine/modules/trade"
)

const (
	testMarketID = "openlot-test"
	testTreasury = "treasury"
)

// market bundles a fresh in-memory state and executor with a pinned clock,
// plus helpers that build signed operations and track per-account nonces.
type market struct {
	t       *testing.T
	state   *storage.StateDB
	exec    *engine.Executor
	emitter *events.Emitter
	events  []events.Event
	now     int64
	nonces  map[string]uint64
}

func newMarket(t *testing.T, feeBps uint64) *market {
	t.Helper()
	state := testutil.NewStateDB()
	emitter := events.NewEmitter(nil)
	exec := engine.NewExecutor(state, oracle.NewStateOracle(state), fees.NewResolver(feeBps), testTreasury, emitter)

	m := &market{
		t:       t,
		state:   state,
		exec:    exec,
		emitter: emitter,
		now:     1_000_000,
		nonces:  make(map[string]uint64),
	}
	exec.SetClock(func() int64 { return m.now })
	for _, typ := range []events.EventType{
		events.EventListingCreated, events.EventListingCancelled, events.EventSale,
		events.EventOfferCreated, events.EventOfferCancelled, events.EventOfferAccepted,
	} {
		emitter.Subscribe(typ, func(ev events.Event) { m.events = append(m.events, ev) })
	}
	return m
}

func (m *market) newWallet() *wallet.Wallet {
	m.t.Helper()
	w, err := wallet.Generate()
	require.NoError(m.t, err)
	return w
}

func (m *market) fund(address string, amount uint64) {
	m.t.Helper()
	acc, err := m.state.GetAccount(address)
	require.NoError(m.t, err)
	acc.Balance = amount
	require.NoError(m.t, m.state.SetAccount(acc))
}

func (m *market) mint(assetID, owner, creator string) {
	m.t.Helper()
	require.NoError(m.t, m.state.SetAsset(&core.Asset{
		ID: assetID, Owner: owner, Creator: creator, MintedAt: m.now,
	}))
}

func (m *market) setRoyalty(assetID string, num, den uint64, payee string) {
	m.t.Helper()
	require.NoError(m.t, m.state.SetRoyalty(assetID, &core.RoyaltyInfo{
		Numerator: num, Denominator: den, Payee: payee,
	}))
}

// run executes op and advances the local nonce counter only on success,
// mirroring the executor's rollback of the nonce bump on failure.
func (m *market) run(op *core.Operation, buildErr error) error {
	m.t.Helper()
	require.NoError(m.t, buildErr)
	err := m.exec.Execute(op)
	if err == nil {
		m.nonces[op.From]++
	}
	return err
}

func (m *market) nonce(w *wallet.Wallet) uint64 { return m.nonces[w.Address()] }

func (m *market) list(w *wallet.Wallet, assetID string, price uint64) error {
	op, err := w.ListAsset(testMarketID, assetID, price, m.nonce(w))
	return m.run(op, err)
}

func (m *market) cancelListing(w *wallet.Wallet, assetID string) error {
	op, err := w.CancelListing(testMarketID, assetID, m.nonce(w))
	return m.run(op, err)
}

func (m *market) buy(w *wallet.Wallet, assetID string) error {
	op, err := w.BuyAsset(testMarketID, assetID, m.nonce(w))
	return m.run(op, err)
}

func (m *market) offer(w *wallet.Wallet, assetID string, amount uint64, duration int64) error {
	op, err := w.MakeOffer(testMarketID, assetID, amount, duration, m.nonce(w))
	return m.run(op, err)
}

func (m *market) cancelOffer(w *wallet.Wallet, assetID string) error {
	op, err := w.CancelOffer(testMarketID, assetID, m.nonce(w))
	return m.run(op, err)
}

func (m *market) accept(w *wallet.Wallet, assetID, buyer string) error {
	op, err := w.AcceptOffer(testMarketID, assetID, buyer, m.nonce(w))
	return m.run(op, err)
}

func (m *market) balance(address string) uint64 {
	m.t.Helper()
	acc, err := m.state.GetAccount(address)
	require.NoError(m.t, err)
	return acc.Balance
}

func (m *market) locked(address string) uint64 {
	m.t.Helper()
	escrow, err := m.state.GetEscrow(address)
	require.NoError(m.t, err)
	return escrow.Locked
}

func (m *market) owner(assetID string) string {
	m.t.Helper()
	asset, err := m.state.GetAsset(assetID)
	require.NoError(m.t, err)
	return asset.Owner
}

func (m *market) eventsOf(typ events.EventType) []events.Event {
	var out []events.Event
	for _, ev := range m.events {
		if ev.Type == typ {
			out = append(out, ev)
		}
	}
	return out
}
