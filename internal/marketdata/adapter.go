// Package marketdata turns book-level quantity transitions into the
// bit-exact delta stream spec.md §6.2 defines, and drains that stream
// to a UDP multicast publisher. Grounded on
// lib/MDFeed/include/publisher/DeltaGenerator.h /
// lib/MDFeed/src/publisher/DeltaGenerator.cpp in original_source, and
// on the teacher's own manual encoding/binary wire packing in
// internal/net/messages.go.
package marketdata

import (
	"sync/atomic"
	"time"

	"fenrir/internal/book"

	"github.com/rs/zerolog/log"
)

// Adapter implements book.DeltaSink. It assigns each emission the next
// monotonic sequence number and a nanosecond timestamp, encodes it to
// the wire format, and hands the bytes to a Sink for delivery. Exactly
// one delta is produced per quantity transition (spec.md §4.4); the
// reference policy is per-fill (spec.md §9), so the matcher's inner
// loop — not this adapter — is responsible for calling Emit* once per
// sub-fill.
type Adapter struct {
	instrument uint32
	seq        uint64
	sink       Sink
}

// NewAdapter builds an adapter for instrument, publishing wire-encoded
// deltas to sink.
func NewAdapter(instrument uint32, sink Sink) *Adapter {
	return &Adapter{instrument: instrument, sink: sink}
}

var _ book.DeltaSink = (*Adapter)(nil)

func (a *Adapter) nextSeq() uint64 { return atomic.AddUint64(&a.seq, 1) }

func (a *Adapter) header(msgType MessageType, bodyLen int) Header {
	return Header{
		SequenceNumber: a.nextSeq(),
		MessageLength:  uint32(headerLen + bodyLen),
		MessageType:    msgType,
		TimestampNs:    uint64(time.Now().UnixNano()),
		InstrumentID:   a.instrument,
	}
}

// EmitLevelUpdate implements book.DeltaSink: NEW when isNew, otherwise
// CHANGE (spec.md §4.4's emission rules collapse "old=0,new>0" and
// "old>0,new>0,old!=new" into the same wire message type, 2, with a
// distinguishing action byte).
func (a *Adapter) EmitLevelUpdate(side book.Side, price int64, qty uint64, isNew bool) error {
	action := ActionChange
	if isNew {
		action = ActionNew
	}
	body := PriceLevelUpdateBody{
		Price:    uint64(price),
		Quantity: qty,
		Side:     wireSide(side),
		Action:   action,
	}
	return a.sink.Push(Message{Header: a.header(MsgPriceLevelUpdate, priceLevelUpdateBodyLen), Body: body.encode()})
}

// EmitLevelDelete implements book.DeltaSink.
func (a *Adapter) EmitLevelDelete(side book.Side, price int64) error {
	body := PriceLevelDeleteBody{Price: uint64(price), Side: wireSide(side)}
	return a.sink.Push(Message{Header: a.header(MsgPriceLevelDelete, priceLevelDeleteBodyLen), Body: body.encode()})
}

// EmitTrade implements book.DeltaSink. Price is always the resting
// order's price (spec.md's firm contract), never the aggressor's —
// enforced by the caller (internal/book's matcher), not here.
func (a *Adapter) EmitTrade(tradeID uint64, price int64, qty uint32, aggressor book.Side) error {
	body := TradeBody{
		TradeID:        tradeID,
		Price:          uint64(price),
		Quantity:       uint64(qty),
		AggressorSide:  wireSide(aggressor),
	}
	return a.sink.Push(Message{Header: a.header(MsgTrade, tradeBodyLen), Body: body.encode()})
}

// EmitBookClear implements book.DeltaSink.
func (a *Adapter) EmitBookClear(reason uint32) error {
	body := BookClearBody{ReasonCode: reason}
	return a.sink.Push(Message{Header: a.header(MsgBookClear, bookClearBodyLen), Body: body.encode()})
}

// Heartbeat emits a zero-body HEARTBEAT message, used by the publisher
// loop to keep downstream sequence-gap detectors confident the feed is
// alive during quiet periods.
func (a *Adapter) Heartbeat() error {
	return a.sink.Push(Message{Header: a.header(MsgHeartbeat, 0)})
}

// Snapshot emits a bracketed SNAPSHOT_BEGIN / SNAPSHOT_ENTRY* /
// SNAPSHOT_END sequence describing every resting level on both sides,
// for a newly connecting consumer. Supplements spec.md per SPEC_FULL.md
// §5, grounded on original_source's MarketDataPublisher snapshot-on-
// connect behavior.
func (a *Adapter) Snapshot(bids, asks []book.PriceQuantity) error {
	total := uint32(len(bids) + len(asks))
	if err := a.sink.Push(Message{
		Header: a.header(MsgSnapshotBegin, snapshotBeginBodyLen),
		Body:   (&SnapshotBeginBody{TotalEntries: total}).encode(),
	}); err != nil {
		log.Error().Err(err).Msg("dropped SNAPSHOT_BEGIN")
	}

	var checksum uint32
	emitEntry := func(pq book.PriceQuantity, side book.Side) {
		body := SnapshotEntryBody{Price: uint64(pq.Price), Quantity: pq.Quantity, Side: wireSide(side)}
		checksum = fnv1a32Update(checksum, body.encode())
		if err := a.sink.Push(Message{Header: a.header(MsgSnapshotEntry, snapshotEntryBodyLen), Body: body.encode()}); err != nil {
			log.Error().Err(err).Msg("dropped SNAPSHOT_ENTRY")
		}
	}
	for _, pq := range bids {
		emitEntry(pq, book.Buy)
	}
	for _, pq := range asks {
		emitEntry(pq, book.Sell)
	}

	return a.sink.Push(Message{
		Header: a.header(MsgSnapshotEnd, snapshotEndBodyLen),
		Body:   (&SnapshotEndBody{Checksum: checksum}).encode(),
	})
}

func wireSide(s book.Side) uint8 {
	if s == book.Buy {
		return sideBuy
	}
	return sideSell
}

// fnv1a32Update folds data into a running FNV-1a checksum, used to
// checksum a snapshot's entries in SNAPSHOT_END.
func fnv1a32Update(h uint32, data []byte) uint32 {
	if h == 0 {
		h = 2166136261
	}
	for _, b := range data {
		h ^= uint32(b)
		h *= 16777619
	}
	return h
}
