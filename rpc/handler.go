package rpc

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/openlot/openlot/core"
	"github.com/openlot/openlot/engine"
	"github.com/openlot/openlot/indexer"
)

// Handler holds all dependencies needed to serve RPC methods.
type Handler struct {
	exec     *engine.Executor
	state    core.State
	indexer  *indexer.Indexer
	marketID string // expected market_id; rejects operations signed for another deployment
}

// NewHandler creates an RPC Handler.
func NewHandler(exec *engine.Executor, state core.State, idx *indexer.Indexer, marketID string) *Handler {
	return &Handler{exec: exec, state: state, indexer: idx, marketID: marketID}
}

// Dispatch routes an RPC request to the correct method.
func (h *Handler) Dispatch(req Request) Response {
	switch req.Method {
	case "submitOp":
		return h.submitOp(req)

	case "getBalance":
		return h.getBalance(req)

	case "getEscrow":
		return h.getEscrow(req)

	case "getAsset":
		return h.getAsset(req)

	case "getListing":
		return h.getListing(req)

	case "getOffer":
		return h.getOffer(req)

	case "getListingsBySeller":
		return h.getListingsBySeller(req)

	case "getOffersByBuyer":
		return h.getOffersByBuyer(req)

	case "getSalesByAsset":
		return h.getSalesByAsset(req)

	case "getStateRoot":
		return okResponse(req.ID, h.exec.StateRoot())

	default:
		return errResponse(req.ID, CodeMethodNotFound, fmt.Sprintf("method %q not found", req.Method))
	}
}

// submitOp executes a signed operation synchronously. The host contract is
// one operation at a time; the executor serializes internally.
func (h *Handler) submitOp(req Request) Response {
	var op core.Operation
	if err := json.Unmarshal(req.Params, &op); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	// Reject operations destined for a different deployment to prevent
	// cross-market replay.
	if op.MarketID != h.marketID {
		return errResponse(req.ID, CodeInvalidParams,
			fmt.Sprintf("market ID mismatch: got %q want %q", op.MarketID, h.marketID))
	}
	// Recompute the ID server-side; do not trust the client-provided value.
	op.ID = op.Hash()

	if err := h.exec.Execute(&op); err != nil {
		if kind := core.ErrorKind(err); kind != "" {
			return errResponseKind(req.ID, CodeOpRejected, err.Error(), kind)
		}
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, map[string]string{"op_id": op.ID})
}

func (h *Handler) getBalance(req Request) Response {
	var params struct {
		Address string `json:"address"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if params.Address == "" {
		return errResponse(req.ID, CodeInvalidParams, "address is required")
	}
	acc, err := h.state.GetAccount(params.Address)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, map[string]any{"address": params.Address, "balance": acc.Balance, "nonce": acc.Nonce})
}

func (h *Handler) getEscrow(req Request) Response {
	var params struct {
		Buyer string `json:"buyer"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if params.Buyer == "" {
		return errResponse(req.ID, CodeInvalidParams, "buyer is required")
	}
	escrow, err := h.state.GetEscrow(params.Buyer)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, escrow)
}

func (h *Handler) getAsset(req Request) Response {
	var params struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if params.ID == "" {
		return errResponse(req.ID, CodeInvalidParams, "id is required")
	}
	asset, err := h.state.GetAsset(params.ID)
	if errors.Is(err, core.ErrNotFound) {
		return errResponse(req.ID, CodeNotFound, fmt.Sprintf("asset %q not found", params.ID))
	}
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, asset)
}

func (h *Handler) getListing(req Request) Response {
	var params struct {
		AssetID string `json:"asset_id"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if params.AssetID == "" {
		return errResponse(req.ID, CodeInvalidParams, "asset_id is required")
	}
	l, err := h.state.GetListing(params.AssetID)
	if errors.Is(err, core.ErrNotFound) {
		return errResponse(req.ID, CodeNotFound, fmt.Sprintf("asset %q is not listed", params.AssetID))
	}
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, l)
}

func (h *Handler) getOffer(req Request) Response {
	var params struct {
		AssetID string `json:"asset_id"`
		Buyer   string `json:"buyer"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if params.AssetID == "" || params.Buyer == "" {
		return errResponse(req.ID, CodeInvalidParams, "asset_id and buyer are required")
	}
	o, err := h.state.GetOffer(params.AssetID, params.Buyer)
	if errors.Is(err, core.ErrNotFound) {
		return errResponse(req.ID, CodeNotFound,
			fmt.Sprintf("no offer from %s on asset %q", params.Buyer, params.AssetID))
	}
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, o)
}

func (h *Handler) getListingsBySeller(req Request) Response {
	var params struct {
		Seller string `json:"seller"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if params.Seller == "" {
		return errResponse(req.ID, CodeInvalidParams, "seller is required")
	}
	ids, err := h.indexer.ListingsBySeller(params.Seller)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, ids)
}

func (h *Handler) getOffersByBuyer(req Request) Response {
	var params struct {
		Buyer string `json:"buyer"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if params.Buyer == "" {
		return errResponse(req.ID, CodeInvalidParams, "buyer is required")
	}
	ids, err := h.indexer.OffersByBuyer(params.Buyer)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, ids)
}

func (h *Handler) getSalesByAsset(req Request) Response {
	var params struct {
		AssetID string `json:"asset_id"`
	}
	if err := json.Unmarshal(req.Params, &params); err != nil {
		return errResponse(req.ID, CodeInvalidParams, err.Error())
	}
	if params.AssetID == "" {
		return errResponse(req.ID, CodeInvalidParams, "asset_id is required")
	}
	sales, err := h.indexer.SalesByAsset(params.AssetID)
	if err != nil {
		return errResponse(req.ID, CodeInternalError, err.Error())
	}
	return okResponse(req.ID, sales)
}
