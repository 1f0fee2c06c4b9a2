package marketdata

import "encoding/binary"

// MessageType is the u16 wire discriminant from spec.md §6.2.
type MessageType uint16

const (
	MsgHeartbeat        MessageType = 1
	MsgPriceLevelUpdate MessageType = 2
	MsgPriceLevelDelete MessageType = 3
	MsgTrade            MessageType = 4
	MsgSnapshotBegin    MessageType = 5
	MsgSnapshotEntry    MessageType = 6
	MsgSnapshotEnd      MessageType = 7
	MsgBookClear        MessageType = 8
)

const (
	sideBuy  uint8 = 1
	sideSell uint8 = 2

	ActionNew    uint8 = 1
	ActionChange uint8 = 2
)

// headerLen is the fixed 28-byte packed header size (spec.md §6.2).
const headerLen = 28

// Header is the 28-byte little-endian, zero-padding header that
// precedes every wire message. Field layout is bit-exact and must not
// be reordered.
type Header struct {
	SequenceNumber uint64
	MessageLength  uint32
	MessageType    MessageType
	TimestampNs    uint64
	InstrumentID   uint32
}

// encode packs h into a 28-byte little-endian buffer matching spec.md
// §6.2's layout exactly, including the 2 reserved trailing bytes.
func (h Header) encode() [headerLen]byte {
	var buf [headerLen]byte
	binary.LittleEndian.PutUint64(buf[0:8], h.SequenceNumber)
	binary.LittleEndian.PutUint32(buf[8:12], h.MessageLength)
	binary.LittleEndian.PutUint16(buf[12:14], uint16(h.MessageType))
	binary.LittleEndian.PutUint64(buf[14:22], h.TimestampNs)
	binary.LittleEndian.PutUint32(buf[22:26], h.InstrumentID)
	// buf[26:28] left zero: padding to 28.
	return buf
}

// decodeHeader parses a 28-byte header off the front of buf.
func decodeHeader(buf []byte) Header {
	_ = buf[headerLen-1] // bounds check hint, mirrors encoding/binary idiom
	return Header{
		SequenceNumber: binary.LittleEndian.Uint64(buf[0:8]),
		MessageLength:  binary.LittleEndian.Uint32(buf[8:12]),
		MessageType:    MessageType(binary.LittleEndian.Uint16(buf[12:14])),
		TimestampNs:    binary.LittleEndian.Uint64(buf[14:22]),
		InstrumentID:   binary.LittleEndian.Uint32(buf[22:26]),
	}
}

// Message is a fully-encoded wire message ready for transmission:
// header plus an already-packed body (nil/empty for HEARTBEAT).
type Message struct {
	Header Header
	Body   []byte
}

// Bytes concatenates the header and body into one contiguous frame
// suitable for a single UDP datagram.
func (m Message) Bytes() []byte {
	out := make([]byte, 0, headerLen+len(m.Body))
	hdr := m.Header.encode()
	out = append(out, hdr[:]...)
	out = append(out, m.Body...)
	return out
}

const (
	priceLevelUpdateBodyLen = 24 // price(8) qty(8) side(1) action(1) reserved(6)
	priceLevelDeleteBodyLen = 16 // price(8) side(1) reserved(7)
	tradeBodyLen            = 32 // trade_id(8) price(8) qty(8) aggressor(1) reserved(7)
	snapshotBeginBodyLen    = 8  // total_entries(4) reserved(4)
	snapshotEntryBodyLen    = 24 // price(8) qty(8) side(1) reserved(7)
	snapshotEndBodyLen      = 8  // checksum(4) reserved(4)
	bookClearBodyLen        = 8  // reason_code(4) reserved(4)
)

// PriceLevelUpdateBody is the PRICE_LEVEL_UPDATE message body.
type PriceLevelUpdateBody struct {
	Price    uint64
	Quantity uint64
	Side     uint8
	Action   uint8
}

func (b PriceLevelUpdateBody) encode() []byte {
	buf := make([]byte, priceLevelUpdateBodyLen)
	binary.LittleEndian.PutUint64(buf[0:8], b.Price)
	binary.LittleEndian.PutUint64(buf[8:16], b.Quantity)
	buf[16] = b.Side
	buf[17] = b.Action
	return buf
}

func decodePriceLevelUpdateBody(buf []byte) PriceLevelUpdateBody {
	return PriceLevelUpdateBody{
		Price:    binary.LittleEndian.Uint64(buf[0:8]),
		Quantity: binary.LittleEndian.Uint64(buf[8:16]),
		Side:     buf[16],
		Action:   buf[17],
	}
}

// PriceLevelDeleteBody is the PRICE_LEVEL_DELETE message body.
type PriceLevelDeleteBody struct {
	Price uint64
	Side  uint8
}

func (b PriceLevelDeleteBody) encode() []byte {
	buf := make([]byte, priceLevelDeleteBodyLen)
	binary.LittleEndian.PutUint64(buf[0:8], b.Price)
	buf[8] = b.Side
	return buf
}

func decodePriceLevelDeleteBody(buf []byte) PriceLevelDeleteBody {
	return PriceLevelDeleteBody{
		Price: binary.LittleEndian.Uint64(buf[0:8]),
		Side:  buf[8],
	}
}

// TradeBody is the TRADE message body.
type TradeBody struct {
	TradeID       uint64
	Price         uint64
	Quantity      uint64
	AggressorSide uint8
}

func (b TradeBody) encode() []byte {
	buf := make([]byte, tradeBodyLen)
	binary.LittleEndian.PutUint64(buf[0:8], b.TradeID)
	binary.LittleEndian.PutUint64(buf[8:16], b.Price)
	binary.LittleEndian.PutUint64(buf[16:24], b.Quantity)
	buf[24] = b.AggressorSide
	return buf
}

func decodeTradeBody(buf []byte) TradeBody {
	return TradeBody{
		TradeID:       binary.LittleEndian.Uint64(buf[0:8]),
		Price:         binary.LittleEndian.Uint64(buf[8:16]),
		Quantity:      binary.LittleEndian.Uint64(buf[16:24]),
		AggressorSide: buf[24],
	}
}

// BookClearBody is the BOOK_CLEAR message body.
type BookClearBody struct {
	ReasonCode uint32
}

func (b BookClearBody) encode() []byte {
	buf := make([]byte, bookClearBodyLen)
	binary.LittleEndian.PutUint32(buf[0:4], b.ReasonCode)
	return buf
}

func decodeBookClearBody(buf []byte) BookClearBody {
	return BookClearBody{ReasonCode: binary.LittleEndian.Uint32(buf[0:4])}
}

// SnapshotBeginBody is the SNAPSHOT_BEGIN message body.
type SnapshotBeginBody struct {
	TotalEntries uint32
}

func (b *SnapshotBeginBody) encode() []byte {
	buf := make([]byte, snapshotBeginBodyLen)
	binary.LittleEndian.PutUint32(buf[0:4], b.TotalEntries)
	return buf
}

// SnapshotEntryBody is one SNAPSHOT_ENTRY message body.
type SnapshotEntryBody struct {
	Price    uint64
	Quantity uint64
	Side     uint8
}

func (b SnapshotEntryBody) encode() []byte {
	buf := make([]byte, snapshotEntryBodyLen)
	binary.LittleEndian.PutUint64(buf[0:8], b.Price)
	binary.LittleEndian.PutUint64(buf[8:16], b.Quantity)
	buf[16] = b.Side
	return buf
}

func decodeSnapshotEntryBody(buf []byte) SnapshotEntryBody {
	return SnapshotEntryBody{
		Price:    binary.LittleEndian.Uint64(buf[0:8]),
		Quantity: binary.LittleEndian.Uint64(buf[8:16]),
		Side:     buf[16],
	}
}

// SnapshotEndBody is the SNAPSHOT_END message body.
type SnapshotEndBody struct {
	Checksum uint32
}

func (b *SnapshotEndBody) encode() []byte {
	buf := make([]byte, snapshotEndBodyLen)
	binary.LittleEndian.PutUint32(buf[0:4], b.Checksum)
	return buf
}

func decodeSnapshotEndBody(buf []byte) SnapshotEndBody {
	return SnapshotEndBody{Checksum: binary.LittleEndian.Uint32(buf[0:4])}
}
