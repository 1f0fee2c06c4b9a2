package marketdata

import (
	"testing"

	"fenrir/internal/book"

	"github.com/stretchr/testify/assert"
)

type captureSink struct {
	messages []Message
}

func (c *captureSink) Push(m Message) error {
	c.messages = append(c.messages, m)
	return nil
}

func TestEmitLevelUpdateDistinguishesNewFromChange(t *testing.T) {
	sink := &captureSink{}
	a := NewAdapter(1, sink)

	assert.NoError(t, a.EmitLevelUpdate(book.Buy, 5100, 20, true))
	assert.NoError(t, a.EmitLevelUpdate(book.Buy, 5100, 15, false))

	assert.Len(t, sink.messages, 2)
	first := decodePriceLevelUpdateBody(sink.messages[0].Body)
	second := decodePriceLevelUpdateBody(sink.messages[1].Body)

	assert.Equal(t, ActionNew, first.Action)
	assert.Equal(t, ActionChange, second.Action)
	assert.Equal(t, uint64(20), first.Quantity)
	assert.Equal(t, uint64(15), second.Quantity)
}

func TestSequenceNumbersAreContiguous(t *testing.T) {
	sink := &captureSink{}
	a := NewAdapter(1, sink)

	assert.NoError(t, a.EmitLevelUpdate(book.Buy, 100, 1, true))
	assert.NoError(t, a.EmitTrade(1, 100, 1, book.Sell))
	assert.NoError(t, a.EmitLevelDelete(book.Buy, 100))

	for i, m := range sink.messages {
		assert.Equal(t, uint64(i+1), m.Header.SequenceNumber)
	}
}

func TestEmitTradeBody(t *testing.T) {
	sink := &captureSink{}
	a := NewAdapter(7, sink)

	assert.NoError(t, a.EmitTrade(42, 5100, 20, book.Sell))

	assert.Len(t, sink.messages, 1)
	m := sink.messages[0]
	assert.Equal(t, MsgTrade, m.Header.MessageType)
	assert.Equal(t, uint32(7), m.Header.InstrumentID)

	body := decodeTradeBody(m.Body)
	assert.Equal(t, uint64(42), body.TradeID)
	assert.Equal(t, uint64(5100), body.Price)
	assert.Equal(t, uint64(20), body.Quantity)
	assert.Equal(t, sideSell, body.AggressorSide)
}

func TestSnapshotBracketsEntriesAndChecksums(t *testing.T) {
	sink := &captureSink{}
	a := NewAdapter(1, sink)

	bids := []book.PriceQuantity{{Price: 100, Quantity: 5}}
	asks := []book.PriceQuantity{{Price: 105, Quantity: 3}}

	assert.NoError(t, a.Snapshot(bids, asks))

	assert.Len(t, sink.messages, 4) // BEGIN, 2 entries, END
	assert.Equal(t, MsgSnapshotBegin, sink.messages[0].Header.MessageType)
	assert.Equal(t, MsgSnapshotEntry, sink.messages[1].Header.MessageType)
	assert.Equal(t, MsgSnapshotEntry, sink.messages[2].Header.MessageType)
	assert.Equal(t, MsgSnapshotEnd, sink.messages[3].Header.MessageType)

	end := decodeSnapshotEndBody(sink.messages[3].Body)
	assert.NotZero(t, end.Checksum)
}

func TestHeartbeatHasNoBody(t *testing.T) {
	sink := &captureSink{}
	a := NewAdapter(1, sink)

	assert.NoError(t, a.Heartbeat())
	assert.Len(t, sink.messages[0].Body, 0)
	assert.Equal(t, MsgHeartbeat, sink.messages[0].Header.MessageType)
}
