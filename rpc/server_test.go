package rpc

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openlot/openlot/core"
	"github.com/openlot/openlot/engine"
	"github.com/openlot/openlot/events"
	"github.com/openlot/openlot/fees"
	"github.com/openlot/openlot/indexer"
	"github.com/openlot/openlot/internal/testutil"
	"github.com/openlot/openlot/oracle"
	"github.com/openlot/openlot/storage"
	"github.com/openlot/openlot/wallet"

	_ "github.com/openlot/openlot/engine/modules/listing"
	_ "github.com/openlot/openlot/engine/modules/offer"
	_ "github.com/openlot/openlot/engine/modules/trade"
)

const testMarketID = "openlot-test"

type testServer struct {
	t      *testing.T
	ts     *httptest.Server
	state  *storage.StateDB
	token  string
	nextID int
}

func newTestServer(t *testing.T, authToken string) *testServer {
	t.Helper()
	state := testutil.NewStateDB()
	emitter := events.NewEmitter(nil)
	idx := indexer.New(testutil.NewMemDB(), emitter, nil)
	exec := engine.NewExecutor(state, oracle.NewStateOracle(state), fees.NewResolver(250), "treasury", emitter)

	h := NewHandler(exec, state, idx, testMarketID)
	s := NewServer("127.0.0.1:0", h, authToken, nil)

	ts := httptest.NewServer(s.srv.Handler)
	t.Cleanup(ts.Close)
	return &testServer{t: t, ts: ts, state: state, token: authToken}
}

func (s *testServer) call(method string, params any) Response {
	s.t.Helper()
	s.nextID++
	raw, err := json.Marshal(params)
	require.NoError(s.t, err)
	body, err := json.Marshal(Request{JSONRPC: "2.0", ID: s.nextID, Method: method, Params: raw})
	require.NoError(s.t, err)

	req, err := http.NewRequest(http.MethodPost, s.ts.URL+"/rpc", bytes.NewReader(body))
	require.NoError(s.t, err)
	if s.token != "" {
		req.Header.Set("Authorization", "Bearer "+s.token)
	}
	resp, err := s.ts.Client().Do(req)
	require.NoError(s.t, err)
	defer resp.Body.Close()

	var out Response
	require.NoError(s.t, json.NewDecoder(resp.Body).Decode(&out))
	return out
}

func TestSubmitOpAndQuery(t *testing.T) {
	s := newTestServer(t, "")
	alice, err := wallet.Generate()
	require.NoError(t, err)
	require.NoError(t, s.state.SetAsset(&core.Asset{ID: "sword-1", Owner: alice.Address()}))

	op, err := alice.ListAsset(testMarketID, "sword-1", 900, 0)
	require.NoError(t, err)

	resp := s.call("submitOp", op)
	require.Nil(t, resp.Error)
	result, ok := resp.Result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, op.ID, result["op_id"])

	resp = s.call("getListing", map[string]string{"asset_id": "sword-1"})
	require.Nil(t, resp.Error)
	listing, ok := resp.Result.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, alice.Address(), listing["seller"])
	assert.Equal(t, float64(900), listing["price"])

	resp = s.call("getListingsBySeller", map[string]string{"seller": alice.Address()})
	require.Nil(t, resp.Error)
	assert.Equal(t, []any{"sword-1"}, resp.Result)

	resp = s.call("getStateRoot", struct{}{})
	require.Nil(t, resp.Error)
	assert.NotEmpty(t, resp.Result)
}

func TestSubmitOpRejectedCarriesKind(t *testing.T) {
	s := newTestServer(t, "")
	alice, err := wallet.Generate()
	require.NoError(t, err)
	require.NoError(t, s.state.SetAsset(&core.Asset{ID: "sword-1", Owner: alice.Address()}))

	op, err := alice.ListAsset(testMarketID, "sword-1", 0, 0)
	require.NoError(t, err)

	resp := s.call("submitOp", op)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeOpRejected, resp.Error.Code)
	data, ok := resp.Error.Data.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "ZeroPrice", data["kind"])
}

func TestSubmitOpMarketMismatch(t *testing.T) {
	s := newTestServer(t, "")
	alice, err := wallet.Generate()
	require.NoError(t, err)

	op, err := alice.ListAsset("some-other-market", "sword-1", 900, 0)
	require.NoError(t, err)

	resp := s.call("submitOp", op)
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeInvalidParams, resp.Error.Code)
}

func TestQueryNotFound(t *testing.T) {
	s := newTestServer(t, "")

	resp := s.call("getListing", map[string]string{"asset_id": "nope"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeNotFound, resp.Error.Code)

	resp = s.call("getAsset", map[string]string{"id": "nope"})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeNotFound, resp.Error.Code)
}

func TestMethodNotFound(t *testing.T) {
	s := newTestServer(t, "")
	resp := s.call("mintAsset", struct{}{})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeMethodNotFound, resp.Error.Code)
}

func TestAuthRequired(t *testing.T) {
	s := newTestServer(t, "sekrit")

	// Without the token the request is refused.
	unauthed := &testServer{t: t, ts: s.ts}
	resp := unauthed.call("getStateRoot", struct{}{})
	require.NotNil(t, resp.Error)
	assert.Equal(t, CodeUnauthorized, resp.Error.Code)

	// With it, served normally.
	resp = s.call("getStateRoot", struct{}{})
	assert.Nil(t, resp.Error)
}

func TestHealthzUnauthenticated(t *testing.T) {
	s := newTestServer(t, "sekrit")
	resp, err := s.ts.Client().Get(s.ts.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestRejectsWrongJSONRPCVersion(t *testing.T) {
	s := newTestServer(t, "")
	body := []byte(`{"jsonrpc":"1.0","id":1,"method":"getStateRoot"}`)
	resp, err := s.ts.Client().Post(s.ts.URL+"/rpc", "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()

	var out Response
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	require.NotNil(t, out.Error)
	assert.Equal(t, CodeInvalidRequest, out.Error.Code)
}
