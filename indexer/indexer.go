// Package indexer maintains secondary indexes over committed market events
// so clients can query listings by seller, offers by buyer, and sale history
// by asset without scanning full state.
package indexer

import (
	"encoding/json"

	pkgerrors "github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/openlot/openlot/core"
	"github.com/openlot/openlot/events"
	"github.com/openlot/openlot/storage"
)

const (
	prefixSellerListings = "idx:seller:listing:"
	prefixBuyerOffers    = "idx:buyer:offer:"
	prefixAssetSales     = "idx:asset:sale:"
)

// SaleRecord is one completed trade as recorded in the per-asset history.
type SaleRecord struct {
	OpID    string `json:"op_id"`
	Seller  string `json:"seller"`
	Buyer   string `json:"buyer"`
	Price   uint64 `json:"price"`
	Fee     uint64 `json:"fee"`
	Royalty uint64 `json:"royalty"`
}

// Indexer subscribes to engine events and updates secondary lookup tables.
// Index writes are best-effort: a failed index update is logged, never
// propagated back into the engine (the primary ledgers are authoritative).
type Indexer struct {
	db  storage.DB
	log *zap.Logger
}

// New creates an Indexer backed by db and subscribes to market events.
// log may be nil.
func New(db storage.DB, emitter *events.Emitter, log *zap.Logger) *Indexer {
	if log == nil {
		log = zap.NewNop()
	}
	idx := &Indexer{db: db, log: log}
	emitter.Subscribe(events.EventListingCreated, idx.onListingCreated)
	emitter.Subscribe(events.EventListingCancelled, idx.onListingRemoved)
	emitter.Subscribe(events.EventOfferCreated, idx.onOfferCreated)
	emitter.Subscribe(events.EventOfferCancelled, idx.onOfferRemoved)
	emitter.Subscribe(events.EventOfferAccepted, idx.onOfferRemoved)
	emitter.Subscribe(events.EventSale, idx.onSale)
	return idx
}

// ListingsBySeller returns the asset IDs the seller currently has listed.
func (idx *Indexer) ListingsBySeller(seller string) ([]string, error) {
	return idx.getList(prefixSellerListings + seller)
}

// OffersByBuyer returns the asset IDs the buyer has live offers on.
func (idx *Indexer) OffersByBuyer(buyer string) ([]string, error) {
	return idx.getList(prefixBuyerOffers + buyer)
}

// SalesByAsset returns the asset's completed trades, oldest first.
func (idx *Indexer) SalesByAsset(assetID string) ([]SaleRecord, error) {
	data, err := idx.db.Get([]byte(prefixAssetSales + assetID))
	if err != nil {
		if pkgerrors.Is(err, core.ErrNotFound) {
			return nil, nil
		}
		return nil, err
	}
	var sales []SaleRecord
	if err := json.Unmarshal(data, &sales); err != nil {
		return nil, pkgerrors.Wrap(err, "indexer unmarshal sales")
	}
	return sales, nil
}

// ---- event handlers ----

func (idx *Indexer) onListingCreated(ev events.Event) {
	seller, _ := ev.Data["seller"].(string)
	assetID, _ := ev.Data["asset_id"].(string)
	if seller == "" || assetID == "" {
		return
	}
	idx.addToList(prefixSellerListings+seller, assetID)
}

func (idx *Indexer) onListingRemoved(ev events.Event) {
	seller, _ := ev.Data["seller"].(string)
	assetID, _ := ev.Data["asset_id"].(string)
	if seller == "" || assetID == "" {
		return
	}
	idx.removeFromList(prefixSellerListings+seller, assetID)
}

func (idx *Indexer) onOfferCreated(ev events.Event) {
	buyer, _ := ev.Data["buyer"].(string)
	assetID, _ := ev.Data["asset_id"].(string)
	toppedUp, _ := ev.Data["topped_up"].(bool)
	if buyer == "" || assetID == "" || toppedUp {
		return
	}
	idx.addToList(prefixBuyerOffers+buyer, assetID)
}

func (idx *Indexer) onOfferRemoved(ev events.Event) {
	buyer, _ := ev.Data["buyer"].(string)
	assetID, _ := ev.Data["asset_id"].(string)
	if buyer == "" || assetID == "" {
		return
	}
	idx.removeFromList(prefixBuyerOffers+buyer, assetID)
}

func (idx *Indexer) onSale(ev events.Event) {
	assetID, _ := ev.Data["asset_id"].(string)
	if assetID == "" {
		return
	}
	seller, _ := ev.Data["seller"].(string)
	buyer, _ := ev.Data["buyer"].(string)
	price, _ := ev.Data["price"].(uint64)
	fee, _ := ev.Data["fee"].(uint64)
	royalty, _ := ev.Data["royalty"].(uint64)

	// A sale consumes the listing (buy path) or voids it (accept path with a
	// stale listing); drop the seller's listing index entry either way.
	idx.removeFromList(prefixSellerListings+seller, assetID)

	sales, err := idx.SalesByAsset(assetID)
	if err != nil {
		idx.log.Warn("indexer: load sale history", zap.String("asset", assetID), zap.Error(err))
		return
	}
	sales = append(sales, SaleRecord{
		OpID:    ev.OpID,
		Seller:  seller,
		Buyer:   buyer,
		Price:   price,
		Fee:     fee,
		Royalty: royalty,
	})
	data, err := json.Marshal(sales)
	if err != nil {
		idx.log.Warn("indexer: marshal sale history", zap.String("asset", assetID), zap.Error(err))
		return
	}
	if err := idx.db.Set([]byte(prefixAssetSales+assetID), data); err != nil {
		idx.log.Warn("indexer: persist sale history", zap.String("asset", assetID), zap.Error(err))
	}
}

// ---- list helpers ----

func (idx *Indexer) getList(key string) ([]string, error) {
	data, err := idx.db.Get([]byte(key))
	if err != nil {
		if pkgerrors.Is(err, core.ErrNotFound) {
			return nil, nil // empty list
		}
		return nil, err
	}
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return nil, pkgerrors.Wrap(err, "indexer unmarshal")
	}
	return ids, nil
}

func (idx *Indexer) addToList(key, value string) {
	ids, err := idx.getList(key)
	if err != nil {
		idx.log.Warn("indexer: load list", zap.String("key", key), zap.Error(err))
		return
	}
	ids = append(ids, value)
	idx.putList(key, ids)
}

func (idx *Indexer) removeFromList(key, value string) {
	ids, err := idx.getList(key)
	if err != nil {
		idx.log.Warn("indexer: load list", zap.String("key", key), zap.Error(err))
		return
	}
	filtered := ids[:0]
	for _, id := range ids {
		if id != value {
			filtered = append(filtered, id)
		}
	}
	idx.putList(key, filtered)
}

func (idx *Indexer) putList(key string, ids []string) {
	data, err := json.Marshal(ids)
	if err != nil {
		idx.log.Warn("indexer: marshal list", zap.String("key", key), zap.Error(err))
		return
	}
	if err := idx.db.Set([]byte(key), data); err != nil {
		idx.log.Warn("indexer: persist list", zap.String("key", key), zap.Error(err))
	}
}
