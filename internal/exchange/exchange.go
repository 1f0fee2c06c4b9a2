// Package exchange is a thin multi-instrument façade over
// internal/book: it owns one MatchingEngine per instrument, assigns
// globally-unique order ids, and exposes the operations
// internal/ingest needs without any matching logic of its own. Grounded
// on the teacher's Engine interface (internal/net/server.go) and its
// AssetType-keyed dispatch in internal/engine/engine.go, generalized
// from a single hardcoded book to a uint32-keyed instrument registry.
package exchange

import (
	"sync"
	"sync/atomic"

	"fenrir/internal/book"
	"fenrir/internal/marketdata"

	"github.com/rs/zerolog/log"
)

var ErrUnknownInstrument = book.ErrWrongInstrument

// Exchange owns one MatchingEngine per registered instrument and a
// process-wide order id sequence. Safe for concurrent use by ingest's
// worker pool: each instrument's engine is only ever touched while
// holding that instrument's own mutex, so two workers processing
// different instruments never contend.
type Exchange struct {
	mu      sync.RWMutex
	books   map[uint32]*instrumentBook
	nextID  uint64
}

type instrumentBook struct {
	mu     sync.Mutex
	engine *book.MatchingEngine
}

// New constructs an empty registry.
func New() *Exchange {
	return &Exchange{books: make(map[uint32]*instrumentBook)}
}

// RegisterInstrument adds a tradable instrument, publishing its deltas
// to sink (book.NullSink{} if no market-data feed is wanted).
func (x *Exchange) RegisterInstrument(instrument uint32, sink book.DeltaSink) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if sink == nil {
		sink = book.NullSink{}
	}
	x.books[instrument] = &instrumentBook{engine: book.New(instrument, sink)}
}

// RegisterPublishedInstrument is a convenience wrapper that builds a
// marketdata.Adapter over a fresh marketdata.RingSink and registers the
// instrument against it, returning both so a caller can attach a
// marketdata.Publisher to the same adapter the book itself writes
// through — sharing one adapter keeps its sequence counter the single
// source of truth for that instrument's delta stream (spec.md §8's
// contiguous-sequence invariant would break if the publisher minted
// heartbeats from a second, independently-seeded adapter).
func (x *Exchange) RegisterPublishedInstrument(instrument uint32) (*marketdata.RingSink, *marketdata.Adapter) {
	ring := marketdata.NewRingSink()
	adapter := marketdata.NewAdapter(instrument, ring)
	x.RegisterInstrument(instrument, adapter)
	return ring, adapter
}

func (x *Exchange) lookup(instrument uint32) (*instrumentBook, bool) {
	x.mu.RLock()
	defer x.mu.RUnlock()
	ib, ok := x.books[instrument]
	return ib, ok
}

func (x *Exchange) assignOrderID() uint64 {
	return atomic.AddUint64(&x.nextID, 1)
}

// PlaceLimitOrder assigns an order id, constructs a book.Order, and
// submits it to the named instrument's engine. Returns the assigned id,
// or 0 alongside the error on rejection (including rejections by the
// engine after an id was assigned).
func (x *Exchange) PlaceLimitOrder(instrument uint32, clientRef, owner string, side book.Side, tif book.TimeInForce, price int64, quantity uint32) (uint64, []book.Fill, error) {
	ib, ok := x.lookup(instrument)
	if !ok {
		return 0, nil, ErrUnknownInstrument
	}

	id := x.assignOrderID()
	order := book.Order{
		ID:         id,
		ClientRef:  clientRef,
		Owner:      owner,
		Instrument: instrument,
		Side:       side,
		TIF:        tif,
		Price:      price,
		InitialQty: quantity,
		Residual:   quantity,
	}

	ib.mu.Lock()
	defer ib.mu.Unlock()
	fills, err := ib.engine.AddLimitOrder(order)
	if err != nil {
		return 0, nil, err
	}
	return id, fills, nil
}

// PlaceMarketOrder submits a marketable order that never rests.
func (x *Exchange) PlaceMarketOrder(instrument uint32, side book.Side, quantity uint32) ([]book.Fill, uint32, error) {
	ib, ok := x.lookup(instrument)
	if !ok {
		return nil, quantity, ErrUnknownInstrument
	}

	ib.mu.Lock()
	defer ib.mu.Unlock()
	if side == book.Buy {
		fills, residual := ib.engine.PlaceMarketBuy(quantity)
		return fills, residual, nil
	}
	fills, residual := ib.engine.PlaceMarketSell(quantity)
	return fills, residual, nil
}

// Contains reports whether id is still resting on the named instrument's
// book. Used by internal/ingest to drop its order-owner index entries for
// orders that can no longer be matched again.
func (x *Exchange) Contains(instrument uint32, id uint64) bool {
	ib, ok := x.lookup(instrument)
	if !ok {
		return false
	}
	ib.mu.Lock()
	defer ib.mu.Unlock()
	return ib.engine.Contains(id)
}

// CancelOrder cancels id on the named instrument's book.
func (x *Exchange) CancelOrder(instrument uint32, id uint64) error {
	ib, ok := x.lookup(instrument)
	if !ok {
		return ErrUnknownInstrument
	}
	ib.mu.Lock()
	defer ib.mu.Unlock()
	return ib.engine.CancelOrder(id)
}

// AmendOrder amends id on the named instrument's book, assigning the
// replacement a fresh order id (amend never reuses the cancelled id,
// since spec.md §6.1 models amend as cancel+submit_limit of a wholly
// new order).
func (x *Exchange) AmendOrder(instrument uint32, id uint64, clientRef, owner string, side book.Side, tif book.TimeInForce, price int64, quantity uint32) (uint64, []book.Fill, error) {
	ib, ok := x.lookup(instrument)
	if !ok {
		return 0, nil, ErrUnknownInstrument
	}

	newID := x.assignOrderID()
	newOrder := book.Order{
		ID:         newID,
		ClientRef:  clientRef,
		Owner:      owner,
		Instrument: instrument,
		Side:       side,
		TIF:        tif,
		Price:      price,
		InitialQty: quantity,
		Residual:   quantity,
	}

	ib.mu.Lock()
	defer ib.mu.Unlock()
	fills, err := ib.engine.AmendOrder(id, newOrder)
	if err != nil {
		return 0, nil, err
	}
	return newID, fills, nil
}

// LogBook emits a structured snapshot of every registered instrument's
// top-of-book state, for operational visibility. Grounded on the
// teacher's Engine.LogBook (internal/engine/engine.go).
func (x *Exchange) LogBook() {
	x.mu.RLock()
	defer x.mu.RUnlock()
	for instrument, ib := range x.books {
		ib.mu.Lock()
		bid, hasBid := ib.engine.BestBidPrice()
		ask, hasAsk := ib.engine.BestAskPrice()
		count := ib.engine.Count()
		matched := ib.engine.MatchedQuantityTotal()
		ib.mu.Unlock()

		event := log.Info().Uint32("instrument", instrument).Int("restingOrders", count).Uint64("matchedTotal", matched)
		if hasBid {
			event = event.Int64("bestBid", bid)
		}
		if hasAsk {
			event = event.Int64("bestAsk", ask)
		}
		event.Msg("book snapshot")
	}
}
