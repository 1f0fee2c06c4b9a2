package book

import (
	"fmt"
	"math"
)

// Fill describes one match produced by a single public call, in the
// order it occurred (spec.md §6.1's Fills sequence).
type Fill struct {
	RestingOrderID uint64
	Price          int64
	Quantity       uint32
}

// MatchingEngine owns both ladders, the index, and the matched-quantity
// counter for a single instrument. It is strictly single-threaded: every
// public method runs to completion synchronously with no suspension
// points (spec.md §5). Grounded on the teacher's
// internal/engine/orderbook.go OrderBook, generalized from float64
// prices to spec.md's signed-int minor units and from a re-sliced
// []*Order per level to the arena-free doubly-linked PriceLevel.
type MatchingEngine struct {
	instrument uint32
	bids       *ladder
	asks       *ladder
	index      *OrderIndex
	sink       DeltaSink

	matchedQty   uint64
	nextTradeID  uint64
	adapterDrops uint64

	debugInvariants bool
}

// New constructs an empty book for instrument, emitting deltas to sink.
// Pass book.NullSink{} where no market-data feed is wanted.
func New(instrument uint32, sink DeltaSink) *MatchingEngine {
	return &MatchingEngine{
		instrument: instrument,
		bids:       newBidLadder(),
		asks:       newAskLadder(),
		index:      newOrderIndex(),
		sink:       sink,
	}
}

// NewDebug is New plus invariant checking after every mutating call.
// Selection is construction-time per spec.md §9, never per-call: a
// production book never pays this cost, and a test or simulation book
// that wants the stronger guarantee asks for it up front.
func NewDebug(instrument uint32, sink DeltaSink) *MatchingEngine {
	e := New(instrument, sink)
	e.debugInvariants = true
	return e
}

// checkInvariants re-derives spec.md §8 invariants 2 and 5 from first
// principles and panics with a *FatalError on mismatch, per spec.md §7:
// a fatal condition aborts rather than lets the book silently corrupt.
// Only ever called when debugInvariants is set.
func (e *MatchingEngine) checkInvariants() {
	indexTotal := 0
	check := func(l *ladder) {
		l.iterFromBest(func(lvl *PriceLevel) bool {
			indexTotal += lvl.Count()

			var queueLen int
			var sumResidual uint64
			lvl.forEach(func(n *levelNode) bool {
				queueLen++
				sumResidual += uint64(n.order.Residual)
				return true
			})
			if queueLen != lvl.Count() {
				panic(newFatal(fmt.Sprintf("level %d: count %d != queue length %d", lvl.Price(), lvl.Count(), queueLen)))
			}
			if sumResidual != lvl.AggregateQuantity() {
				panic(newFatal(fmt.Sprintf("level %d: aggregate %d != sum of residuals %d", lvl.Price(), lvl.AggregateQuantity(), sumResidual)))
			}
			return true
		})
	}
	check(e.bids)
	check(e.asks)

	if indexTotal != e.index.size() {
		panic(newFatal(fmt.Sprintf("index size %d != total resting across ladders %d", e.index.size(), indexTotal)))
	}
}

func (e *MatchingEngine) maybeCheckInvariants() {
	if e.debugInvariants {
		e.checkInvariants()
	}
}

func (e *MatchingEngine) Instrument() uint32 { return e.instrument }

// AddLimitOrder admits a limit order: it is first matched against the
// opposite ladder, then, if residual remains and it isn't IOC, rested.
func (e *MatchingEngine) AddLimitOrder(o Order) ([]Fill, error) {
	if o.InitialQty == 0 || o.Residual != o.InitialQty {
		return nil, ErrInvalidQuantity
	}
	if o.Instrument != e.instrument {
		return nil, ErrWrongInstrument
	}
	if e.index.contains(o.ID) {
		return nil, ErrDuplicateOrder
	}
	o.Type = LimitOrder

	order := o
	fills := e.tryMatch(&order)

	if order.Residual == 0 {
		e.maybeCheckInvariants()
		return fills, nil
	}
	if order.TIF == IOC {
		// IOC discards residual rather than resting it.
		e.maybeCheckInvariants()
		return fills, nil
	}

	e.rest(&order)
	e.maybeCheckInvariants()
	return fills, nil
}

// rest inserts order into its same-side ladder at order.Price, appends
// it to that level's FIFO tail, records it in the index, and emits
// NEW or CHANGE for the level.
func (e *MatchingEngine) rest(order *Order) {
	side := e.ladderFor(order.Side)
	lvl := side.levelFor(order.Price)
	wasEmpty := lvl.IsEmpty()

	node := lvl.append(order)
	e.index.insert(order.ID, lvl, node)

	if err := e.sink.EmitLevelUpdate(order.Side, lvl.Price(), lvl.AggregateQuantity(), wasEmpty); err != nil {
		e.adapterDrops++
	}
}

// PlaceMarketBuy submits a synthetic marketable order with price +inf
// and the given quantity. Any residual left after sweeping the ask
// ladder is discarded; the order never rests. If the opposite ladder
// is empty on entry, this is a no-op and returns residual == quantity.
func (e *MatchingEngine) PlaceMarketBuy(quantity uint32) ([]Fill, uint32) {
	return e.placeMarket(Buy, quantity)
}

// PlaceMarketSell is the sell-side counterpart of PlaceMarketBuy.
func (e *MatchingEngine) PlaceMarketSell(quantity uint32) ([]Fill, uint32) {
	return e.placeMarket(Sell, quantity)
}

func (e *MatchingEngine) placeMarket(side Side, quantity uint32) ([]Fill, uint32) {
	opposite := e.ladderFor(oppositeSide(side))
	if _, ok := opposite.best(); !ok {
		return nil, quantity
	}

	price := int64(math.MaxInt64)
	if side == Sell {
		price = math.MinInt64
	}
	order := Order{
		Side:     side,
		Type:     MarketOrder,
		TIF:      IOC,
		Price:    price,
		Residual: quantity,
	}
	fills := e.tryMatch(&order)
	e.maybeCheckInvariants()
	return fills, order.Residual
}

// CancelOrder removes a resting order from its level. Fails cleanly
// with ErrOrderNotFound if id is not resting; no state changes in that
// case.
func (e *MatchingEngine) CancelOrder(id uint64) error {
	h, ok := e.index.lookup(id)
	if !ok {
		return ErrOrderNotFound
	}

	lvl, node := h.level, h.node
	side := node.order.Side
	lvl.removeSpecific(node)
	e.index.remove(id)

	if lvl.IsEmpty() {
		e.ladderFor(side).erase(lvl.Price())
		if err := e.sink.EmitLevelDelete(side, lvl.Price()); err != nil {
			e.adapterDrops++
		}
	} else {
		if err := e.sink.EmitLevelUpdate(side, lvl.Price(), lvl.AggregateQuantity(), false); err != nil {
			e.adapterDrops++
		}
	}
	e.maybeCheckInvariants()
	return nil
}

// AmendOrder is cancel_order(id) followed by add_limit_order(newOrder).
// The implementer MUST NOT preserve time priority: newOrder always
// lands at its level's FIFO tail (spec.md §4.5, §8 "Amend loses
// priority" law).
func (e *MatchingEngine) AmendOrder(id uint64, newOrder Order) ([]Fill, error) {
	if err := e.CancelOrder(id); err != nil {
		return nil, err
	}
	return e.AddLimitOrder(newOrder)
}

// Clear empties both ladders and the index in one synchronous call,
// emitting a single BOOK_CLEAR delta. Supplements spec.md per
// SPEC_FULL.md §5, grounded on the original implementation's reset path
// used between simulation runs.
func (e *MatchingEngine) Clear(reasonCode uint32) {
	e.bids = newBidLadder()
	e.asks = newAskLadder()
	e.index = newOrderIndex()
	if err := e.sink.EmitBookClear(reasonCode); err != nil {
		e.adapterDrops++
	}
}

// crosses implements spec.md §4.5's crossing predicate.
func crosses(incoming *Order, opposingPrice int64) bool {
	if incoming.Side == Buy {
		return incoming.Price >= opposingPrice
	}
	return incoming.Price <= opposingPrice
}

func oppositeSide(s Side) Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

func (e *MatchingEngine) ladderFor(s Side) *ladder {
	if s == Buy {
		return e.bids
	}
	return e.asks
}

// tryMatch is the inner matcher: it walks the opposite ladder from its
// best level inward while incoming crosses, consuming resting orders in
// strict FIFO order within each level. Grounded line-for-line on
// spec.md §4.5's try_match pseudocode (itself grounded on the teacher's
// OrderBook.Match()/handleMarket() sweep loops).
func (e *MatchingEngine) tryMatch(incoming *Order) []Fill {
	opposite := e.ladderFor(oppositeSide(incoming.Side))
	var fills []Fill

	for incoming.Residual > 0 {
		lvl, ok := opposite.best()
		if !ok {
			break
		}
		if !crosses(incoming, lvl.Price()) {
			break
		}

		for incoming.Residual > 0 && lvl.Head() != nil {
			node := lvl.head
			resting := node.order

			m := resting.Residual
			if incoming.Residual < m {
				m = incoming.Residual
			}

			resting.Residual -= m
			incoming.Residual -= m
			_ = lvl.decreaseAggregate(uint64(m))
			e.matchedQty += uint64(m)
			e.nextTradeID++

			if err := e.sink.EmitTrade(e.nextTradeID, lvl.Price(), m, incoming.Side); err != nil {
				e.adapterDrops++
			}
			fills = append(fills, Fill{RestingOrderID: resting.ID, Price: lvl.Price(), Quantity: m})

			if resting.Residual == 0 {
				lvl.unlink(node)
				e.index.remove(resting.ID)

				if lvl.IsEmpty() {
					side := oppositeSide(incoming.Side)
					opposite.erase(lvl.Price())
					if err := e.sink.EmitLevelDelete(side, lvl.Price()); err != nil {
						e.adapterDrops++
					}
					break // level gone; re-check outer loop for the next best level
				}
				side := oppositeSide(incoming.Side)
				if err := e.sink.EmitLevelUpdate(side, lvl.Price(), lvl.AggregateQuantity(), false); err != nil {
					e.adapterDrops++
				}
			} else {
				side := oppositeSide(incoming.Side)
				if err := e.sink.EmitLevelUpdate(side, lvl.Price(), lvl.AggregateQuantity(), false); err != nil {
					e.adapterDrops++
				}
				break // resting is partial; incoming must now be exhausted
			}
		}
	}

	return fills
}

// --- Read-only accessors (spec.md §6.1) ---

func (e *MatchingEngine) BestBidPrice() (int64, bool) {
	lvl, ok := e.bids.best()
	if !ok {
		return 0, false
	}
	return lvl.Price(), true
}

func (e *MatchingEngine) BestAskPrice() (int64, bool) {
	lvl, ok := e.asks.best()
	if !ok {
		return 0, false
	}
	return lvl.Price(), true
}

// Spread returns ask - bid when both sides have resting interest.
func (e *MatchingEngine) Spread() (int64, bool) {
	bid, ok := e.BestBidPrice()
	if !ok {
		return 0, false
	}
	ask, ok := e.BestAskPrice()
	if !ok {
		return 0, false
	}
	return ask - bid, true
}

func (e *MatchingEngine) Contains(id uint64) bool { return e.index.contains(id) }

func (e *MatchingEngine) Count() int { return e.index.size() }

func (e *MatchingEngine) MatchedQuantityTotal() uint64 { return e.matchedQty }

func (e *MatchingEngine) AdapterDrops() uint64 { return e.adapterDrops }

// PriceQuantity is one (price, aggregate quantity) entry in a ladder
// snapshot returned by BidQuantities/AskQuantities.
type PriceQuantity struct {
	Price    int64
	Quantity uint64
}

// BidQuantities returns resting bid liquidity, best (highest) first.
func (e *MatchingEngine) BidQuantities() []PriceQuantity {
	return quantitiesOf(e.bids)
}

// AskQuantities returns resting ask liquidity, best (lowest) first.
func (e *MatchingEngine) AskQuantities() []PriceQuantity {
	return quantitiesOf(e.asks)
}

func quantitiesOf(l *ladder) []PriceQuantity {
	out := make([]PriceQuantity, 0, l.len())
	l.iterFromBest(func(lvl *PriceLevel) bool {
		out = append(out, PriceQuantity{Price: lvl.Price(), Quantity: lvl.AggregateQuantity()})
		return true
	})
	return out
}
