package marketdata

import "testing"

func TestHeaderRoundTrip(t *testing.T) {
	h := Header{
		SequenceNumber: 42,
		MessageLength:  headerLen + priceLevelUpdateBodyLen,
		MessageType:    MsgPriceLevelUpdate,
		TimestampNs:    1234567890,
		InstrumentID:   7,
	}
	buf := h.encode()
	if len(buf) != headerLen {
		t.Fatalf("expected %d-byte header, got %d", headerLen, len(buf))
	}

	got := decodeHeader(buf[:])
	if got != h {
		t.Fatalf("round trip mismatch: want %+v got %+v", h, got)
	}
}

func TestHeaderLayoutOffsets(t *testing.T) {
	h := Header{
		SequenceNumber: 1,
		MessageLength:  99,
		MessageType:    5,
		TimestampNs:    2,
		InstrumentID:   3,
	}
	buf := h.encode()

	// sequence_number at offset 0, little-endian.
	if buf[0] != 1 || buf[1] != 0 {
		t.Fatalf("sequence_number not at offset 0 little-endian: %v", buf[0:8])
	}
	// message_type at offset 12 (u16).
	if buf[12] != 5 || buf[13] != 0 {
		t.Fatalf("message_type not at offset 12: %v", buf[12:14])
	}
	// trailing 2 bytes are padding.
	if buf[26] != 0 || buf[27] != 0 {
		t.Fatalf("expected zero padding at [26:28], got %v", buf[26:28])
	}
}

func TestPriceLevelUpdateBodyRoundTrip(t *testing.T) {
	b := PriceLevelUpdateBody{Price: 5100, Quantity: 20, Side: sideBuy, Action: ActionNew}
	enc := b.encode()
	if len(enc) != priceLevelUpdateBodyLen {
		t.Fatalf("expected %d bytes, got %d", priceLevelUpdateBodyLen, len(enc))
	}
	got := decodePriceLevelUpdateBody(enc)
	if got != b {
		t.Fatalf("round trip mismatch: want %+v got %+v", b, got)
	}
}

func TestTradeBodyRoundTrip(t *testing.T) {
	b := TradeBody{TradeID: 1, Price: 5100, Quantity: 20, AggressorSide: sideSell}
	enc := b.encode()
	if len(enc) != tradeBodyLen {
		t.Fatalf("expected %d bytes, got %d", tradeBodyLen, len(enc))
	}
	got := decodeTradeBody(enc)
	if got != b {
		t.Fatalf("round trip mismatch: want %+v got %+v", b, got)
	}
}

func TestMessageBytesConcatenatesHeaderAndBody(t *testing.T) {
	m := Message{
		Header: Header{SequenceNumber: 1, MessageType: MsgBookClear, MessageLength: headerLen + bookClearBodyLen},
		Body:   (&BookClearBody{ReasonCode: 9}).encode(),
	}
	frame := m.Bytes()
	if len(frame) != headerLen+bookClearBodyLen {
		t.Fatalf("expected frame length %d, got %d", headerLen+bookClearBodyLen, len(frame))
	}

	gotBody := decodeBookClearBody(frame[headerLen:])
	if gotBody.ReasonCode != 9 {
		t.Fatalf("expected reason code 9, got %d", gotBody.ReasonCode)
	}
}
