package book

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

const instrument uint32 = 1

func newTestOrder(id uint64, side Side, price int64, qty uint32) Order {
	return Order{
		ID:         id,
		Instrument: instrument,
		Side:       side,
		Type:       LimitOrder,
		Price:      price,
		InitialQty: qty,
		Residual:   qty,
	}
}

// S1 — Equal-quantity cross.
func TestEqualQuantityCross(t *testing.T) {
	e := New(instrument, NullSink{})

	_, err := e.AddLimitOrder(newTestOrder(1, Buy, 51, 20))
	assert.NoError(t, err)

	fills, err := e.AddLimitOrder(newTestOrder(2, Sell, 49, 20))
	assert.NoError(t, err)

	assert.Equal(t, 0, e.Count())
	_, hasBid := e.BestBidPrice()
	_, hasAsk := e.BestAskPrice()
	assert.False(t, hasBid)
	assert.False(t, hasAsk)
	assert.Equal(t, uint64(20), e.MatchedQuantityTotal())

	if assert.Len(t, fills, 1) {
		assert.Equal(t, uint64(1), fills[0].RestingOrderID)
		assert.Equal(t, int64(51), fills[0].Price) // trade price = resting (bid) price
		assert.Equal(t, uint32(20), fills[0].Quantity)
	}
}

// S2 — Aggressive bid partially filled by a thin book.
func TestAggressiveBidPartialFill(t *testing.T) {
	e := New(instrument, NullSink{})

	_, err := e.AddLimitOrder(newTestOrder(1, Sell, 49, 15))
	assert.NoError(t, err)

	_, err = e.AddLimitOrder(newTestOrder(2, Buy, 51, 20))
	assert.NoError(t, err)

	assert.Equal(t, 1, e.Count())
	bid, ok := e.BestBidPrice()
	assert.True(t, ok)
	assert.Equal(t, int64(51), bid)
	_, hasAsk := e.BestAskPrice()
	assert.False(t, hasAsk)

	bids := e.BidQuantities()
	if assert.Len(t, bids, 1) {
		assert.Equal(t, uint64(5), bids[0].Quantity)
	}
	assert.Equal(t, uint64(15), e.MatchedQuantityTotal())
}

// S3 — Two bids at the same level, strict FIFO consumption.
func TestFIFOAtLevel(t *testing.T) {
	e := New(instrument, NullSink{})

	_, err := e.AddLimitOrder(newTestOrder(1, Buy, 45, 3))
	assert.NoError(t, err)
	_, err = e.AddLimitOrder(newTestOrder(2, Buy, 45, 5))
	assert.NoError(t, err)

	fills, err := e.AddLimitOrder(newTestOrder(3, Sell, 45, 4))
	assert.NoError(t, err)

	if assert.Len(t, fills, 2) {
		assert.Equal(t, uint64(1), fills[0].RestingOrderID)
		assert.Equal(t, uint32(3), fills[0].Quantity)
		assert.Equal(t, uint64(2), fills[1].RestingOrderID)
		assert.Equal(t, uint32(1), fills[1].Quantity)
	}

	assert.False(t, e.Contains(1))
	assert.True(t, e.Contains(2))
	assert.Equal(t, 1, e.Count())

	bids := e.BidQuantities()
	if assert.Len(t, bids, 1) {
		assert.Equal(t, int64(45), bids[0].Price)
		assert.Equal(t, uint64(4), bids[0].Quantity)
	}
}

// S4 — Cancel restores pre-add state.
func TestCancelRestoresState(t *testing.T) {
	e := New(instrument, NullSink{})

	_, err := e.AddLimitOrder(newTestOrder(1, Buy, 50, 20))
	assert.NoError(t, err)

	assert.NoError(t, e.CancelOrder(1))

	assert.Equal(t, 0, e.Count())
	_, ok := e.BestBidPrice()
	assert.False(t, ok)
	assert.False(t, e.Contains(1))
}

func TestCancelNotFound(t *testing.T) {
	e := New(instrument, NullSink{})
	err := e.CancelOrder(999)
	assert.ErrorIs(t, err, ErrOrderNotFound)
}

// S5 — Market order against an empty opposite side is a no-op.
func TestMarketOrderOnEmptyBook(t *testing.T) {
	e := New(instrument, NullSink{})

	fills, residual := e.PlaceMarketBuy(100)
	assert.Nil(t, fills)
	assert.Equal(t, uint32(100), residual)
	assert.Equal(t, 0, e.Count())
	assert.Equal(t, uint64(0), e.MatchedQuantityTotal())
}

// S6 — Spread.
func TestSpread(t *testing.T) {
	e := New(instrument, NullSink{})

	for _, o := range []Order{
		newTestOrder(1, Buy, 48, 15),
		newTestOrder(2, Buy, 47, 10),
		newTestOrder(3, Sell, 50, 5),
		newTestOrder(4, Sell, 51, 20),
	} {
		_, err := e.AddLimitOrder(o)
		assert.NoError(t, err)
	}

	spread, ok := e.Spread()
	assert.True(t, ok)
	assert.Equal(t, int64(2), spread)
	assert.Equal(t, 4, e.Count())

	bid, _ := e.BestBidPrice()
	ask, _ := e.BestAskPrice()
	assert.Equal(t, int64(48), bid)
	assert.Equal(t, int64(50), ask)
}

func TestDuplicateOrderRejected(t *testing.T) {
	e := New(instrument, NullSink{})
	_, err := e.AddLimitOrder(newTestOrder(1, Buy, 50, 10))
	assert.NoError(t, err)

	_, err = e.AddLimitOrder(newTestOrder(1, Buy, 51, 5))
	assert.ErrorIs(t, err, ErrDuplicateOrder)
}

func TestWrongInstrumentRejected(t *testing.T) {
	e := New(instrument, NullSink{})
	bad := newTestOrder(1, Buy, 50, 10)
	bad.Instrument = instrument + 1
	_, err := e.AddLimitOrder(bad)
	assert.ErrorIs(t, err, ErrWrongInstrument)
}

func TestInvalidQuantityRejected(t *testing.T) {
	e := New(instrument, NullSink{})
	o := newTestOrder(1, Buy, 50, 0)
	_, err := e.AddLimitOrder(o)
	assert.ErrorIs(t, err, ErrInvalidQuantity)
}

// Amend loses priority: the amended order lands at its level's tail.
func TestAmendLosesPriority(t *testing.T) {
	e := New(instrument, NullSink{})

	_, err := e.AddLimitOrder(newTestOrder(1, Buy, 50, 10))
	assert.NoError(t, err)
	_, err = e.AddLimitOrder(newTestOrder(2, Buy, 50, 10))
	assert.NoError(t, err)

	fills, err := e.AmendOrder(1, newTestOrder(3, Buy, 50, 10))
	assert.NoError(t, err)
	assert.Empty(t, fills)

	assert.False(t, e.Contains(1))
	assert.True(t, e.Contains(3))

	// Order 2 (never touched) should still be filled before order 3
	// when an aggressor arrives, proving 3 lost queue priority.
	fills, err = e.AddLimitOrder(newTestOrder(4, Sell, 50, 10))
	assert.NoError(t, err)
	if assert.Len(t, fills, 1) {
		assert.Equal(t, uint64(2), fills[0].RestingOrderID)
	}
}

func TestIOCDiscardsResidual(t *testing.T) {
	e := New(instrument, NullSink{})

	_, err := e.AddLimitOrder(newTestOrder(1, Sell, 50, 5))
	assert.NoError(t, err)

	ioc := newTestOrder(2, Buy, 50, 10)
	ioc.TIF = IOC
	fills, err := e.AddLimitOrder(ioc)
	assert.NoError(t, err)
	assert.Len(t, fills, 1)

	assert.False(t, e.Contains(2))
	assert.Equal(t, 0, e.Count())
}

func TestClearEmptiesBook(t *testing.T) {
	e := New(instrument, NullSink{})
	_, _ = e.AddLimitOrder(newTestOrder(1, Buy, 50, 10))
	_, _ = e.AddLimitOrder(newTestOrder(2, Sell, 51, 10))

	e.Clear(1)

	assert.Equal(t, 0, e.Count())
	_, ok := e.BestBidPrice()
	assert.False(t, ok)
	_, ok = e.BestAskPrice()
	assert.False(t, ok)
}

func TestSweepAcrossMultipleLevels(t *testing.T) {
	e := New(instrument, NullSink{})

	_, _ = e.AddLimitOrder(newTestOrder(1, Sell, 100, 100))
	_, _ = e.AddLimitOrder(newTestOrder(2, Sell, 100, 90))
	_, _ = e.AddLimitOrder(newTestOrder(3, Sell, 101, 20))

	fills, err := e.AddLimitOrder(newTestOrder(4, Buy, 103, 120))
	assert.NoError(t, err)

	asks := e.AskQuantities()
	if assert.Len(t, asks, 1) {
		assert.Equal(t, int64(101), asks[0].Price)
		assert.Equal(t, uint64(10), asks[0].Quantity)
	}
	assert.NotEmpty(t, fills)
}
