// Package ingest implements the TCP order-entry protocol: parsing
// inbound client messages into NewOrder/Cancel/Amend message values
// (internal/exchange builds the book.Order from them) and framing
// outbound execution/error reports. Grounded on the teacher's
// internal/net/messages.go, generalized from float64 prices and a
// single-ticker string field to spec.md §6.3's signed-int64 prices,
// uint32 quantities, and a uint32 instrument id.
package ingest

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"fenrir/internal/book"

	"github.com/google/uuid"
)

var (
	ErrInvalidMessageType = errors.New("ingest: invalid message type")
	ErrMessageTooShort    = errors.New("ingest: message too short")
)

// MessageType is the wire discriminant for inbound order-entry
// messages.
type MessageType uint16

const (
	MsgNewOrder MessageType = iota + 1
	MsgCancelOrder
	MsgAmendOrder
)

// ReportType is the wire discriminant for outbound reports.
type ReportType uint8

const (
	ReportExecution ReportType = iota + 1
	ReportError
)

const baseHeaderLen = 2 // message type, u16 big-endian

// NewOrderMessage is the wire form of a limit or market order
// submission. Fixed-length fields only; order ids are assigned by the
// engine, not chosen by the client.
//
//	offset  size  field
//	0       4     instrument_id (u32)
//	4       1     side (1=buy, 2=sell)
//	5       1     order_type (0=limit, 1=market)
//	6       1     time_in_force (0=day, 1=ioc)
//	7       8     price (i64, ignored for market orders)
//	15      4     quantity (u32)
const newOrderBodyLen = 4 + 1 + 1 + 1 + 8 + 4

type NewOrderMessage struct {
	Instrument uint32
	Side       book.Side
	Type       book.OrderType
	TIF        book.TimeInForce
	Price      int64
	Quantity   uint32
}

func parseNewOrder(body []byte) (NewOrderMessage, error) {
	if len(body) < newOrderBodyLen {
		return NewOrderMessage{}, ErrMessageTooShort
	}
	return NewOrderMessage{
		Instrument: binary.BigEndian.Uint32(body[0:4]),
		Side:       book.Side(body[4]),
		Type:       book.OrderType(body[5]),
		TIF:        book.TimeInForce(body[6]),
		Price:      int64(binary.BigEndian.Uint64(body[7:15])),
		Quantity:   binary.BigEndian.Uint32(body[15:19]),
	}, nil
}

// CancelOrderMessage requests cancellation of a previously-assigned
// order id on a given instrument's book.
//
//	offset  size  field
//	0       4     instrument_id (u32)
//	4       8     order_id (u64)
const cancelOrderBodyLen = 4 + 8

type CancelOrderMessage struct {
	Instrument uint32
	OrderID    uint64
}

func parseCancelOrder(body []byte) (CancelOrderMessage, error) {
	if len(body) < cancelOrderBodyLen {
		return CancelOrderMessage{}, ErrMessageTooShort
	}
	return CancelOrderMessage{
		Instrument: binary.BigEndian.Uint32(body[0:4]),
		OrderID:    binary.BigEndian.Uint64(body[4:12]),
	}, nil
}

// AmendOrderMessage requests cancel_order(order_id) followed by
// submit_limit(new order fields) (spec.md §6.1's amend contract).
//
//	offset  size  field
//	0       8     order_id (u64)
//	8..     ..    NewOrderMessage body
const amendOrderBodyLen = 8 + newOrderBodyLen

type AmendOrderMessage struct {
	OrderID  uint64
	NewOrder NewOrderMessage
}

func parseAmendOrder(body []byte) (AmendOrderMessage, error) {
	if len(body) < amendOrderBodyLen {
		return AmendOrderMessage{}, ErrMessageTooShort
	}
	newOrder, err := parseNewOrder(body[8:])
	if err != nil {
		return AmendOrderMessage{}, err
	}
	return AmendOrderMessage{
		OrderID:  binary.BigEndian.Uint64(body[0:8]),
		NewOrder: newOrder,
	}, nil
}

// InboundMessage is the parsed form of one client frame, tagged with a
// correlation id minted at ingest so responses and logs can be tied
// back to the request that produced them without trusting client input
// for identity.
type InboundMessage struct {
	ClientRef string
	Type      MessageType
	NewOrder  NewOrderMessage
	Cancel    CancelOrderMessage
	Amend     AmendOrderMessage
}

// parseMessage decodes one client frame: a 2-byte big-endian message
// type followed by a fixed-length body.
func parseMessage(raw []byte) (InboundMessage, error) {
	if len(raw) < baseHeaderLen {
		return InboundMessage{}, ErrMessageTooShort
	}
	typeOf := MessageType(binary.BigEndian.Uint16(raw[0:2]))
	body := raw[2:]
	ref := uuid.New().String()

	switch typeOf {
	case MsgNewOrder:
		m, err := parseNewOrder(body)
		if err != nil {
			return InboundMessage{}, err
		}
		return InboundMessage{ClientRef: ref, Type: typeOf, NewOrder: m}, nil
	case MsgCancelOrder:
		m, err := parseCancelOrder(body)
		if err != nil {
			return InboundMessage{}, err
		}
		return InboundMessage{ClientRef: ref, Type: typeOf, Cancel: m}, nil
	case MsgAmendOrder:
		m, err := parseAmendOrder(body)
		if err != nil {
			return InboundMessage{}, err
		}
		return InboundMessage{ClientRef: ref, Type: typeOf, Amend: m}, nil
	default:
		return InboundMessage{}, ErrInvalidMessageType
	}
}

// Report is a wire-framed response to a client: either an execution
// report carrying fills, or an error report. Grounded on the teacher's
// Report/Serialize (internal/net/messages.go), generalized to the
// book package's Fill type and widened error text field.
//
//	offset  size  field
//	0       1     report_type
//	1       8     order_id
//	9       4     fill_count
//	13      4     err_len
//	17..    ..    fills (order_id-independent: price i64, qty u32) * fill_count
//	..      ..    error text (err_len bytes)
const reportFixedHeaderLen = 1 + 8 + 4 + 4
const fillEncodedLen = 8 + 4

type Report struct {
	Type    ReportType
	OrderID uint64
	Fills   []book.Fill
	Err     string
}

// Serialize packs r into its wire form.
func (r *Report) Serialize() []byte {
	total := reportFixedHeaderLen + len(r.Fills)*fillEncodedLen + len(r.Err)
	buf := make([]byte, total)

	buf[0] = byte(r.Type)
	binary.BigEndian.PutUint64(buf[1:9], r.OrderID)
	binary.BigEndian.PutUint32(buf[9:13], uint32(len(r.Fills)))
	binary.BigEndian.PutUint32(buf[13:17], uint32(len(r.Err)))

	offset := reportFixedHeaderLen
	for _, f := range r.Fills {
		binary.BigEndian.PutUint64(buf[offset:offset+8], uint64(f.Price))
		binary.BigEndian.PutUint32(buf[offset+8:offset+12], f.Quantity)
		offset += fillEncodedLen
	}
	copy(buf[offset:], r.Err)
	return buf
}

func executionReport(orderID uint64, fills []book.Fill) *Report {
	return &Report{Type: ReportExecution, OrderID: orderID, Fills: fills}
}

func errorReport(orderID uint64, err error) *Report {
	return &Report{Type: ReportError, OrderID: orderID, Err: fmt.Sprintf("%v", err)}
}

// ReportHeaderLen is the fixed-length prefix of a Report frame a client
// must read before it knows how much variable-length trailer (fills
// plus error text) follows.
const ReportHeaderLen = reportFixedHeaderLen

// ReadReport reads one full Report frame from r: the fixed header
// first, then exactly as much trailer as that header specifies. r must
// deliver bytes in order (a net.Conn, not a packet socket).
func ReadReport(r io.Reader) (Report, error) {
	hdr := make([]byte, reportFixedHeaderLen)
	if _, err := io.ReadFull(r, hdr); err != nil {
		return Report{}, err
	}

	rep := Report{
		Type:    ReportType(hdr[0]),
		OrderID: binary.BigEndian.Uint64(hdr[1:9]),
	}
	fillCount := int(binary.BigEndian.Uint32(hdr[9:13]))
	errLen := int(binary.BigEndian.Uint32(hdr[13:17]))

	trailer := make([]byte, fillCount*fillEncodedLen+errLen)
	if len(trailer) > 0 {
		if _, err := io.ReadFull(r, trailer); err != nil {
			return Report{}, err
		}
	}

	offset := 0
	for i := 0; i < fillCount; i++ {
		price := int64(binary.BigEndian.Uint64(trailer[offset : offset+8]))
		qty := binary.BigEndian.Uint32(trailer[offset+8 : offset+12])
		rep.Fills = append(rep.Fills, book.Fill{Price: price, Quantity: qty})
		offset += fillEncodedLen
	}
	rep.Err = string(trailer[offset : offset+errLen])
	return rep, nil
}

// EncodeNewOrder packs a NEW_ORDER client frame ready for transmission.
func EncodeNewOrder(m NewOrderMessage) []byte {
	buf := make([]byte, baseHeaderLen+newOrderBodyLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(MsgNewOrder))
	binary.BigEndian.PutUint32(buf[2:6], m.Instrument)
	buf[6] = byte(m.Side)
	buf[7] = byte(m.Type)
	buf[8] = byte(m.TIF)
	binary.BigEndian.PutUint64(buf[9:17], uint64(m.Price))
	binary.BigEndian.PutUint32(buf[17:21], m.Quantity)
	return buf
}

// EncodeCancelOrder packs a CANCEL_ORDER client frame.
func EncodeCancelOrder(m CancelOrderMessage) []byte {
	buf := make([]byte, baseHeaderLen+cancelOrderBodyLen)
	binary.BigEndian.PutUint16(buf[0:2], uint16(MsgCancelOrder))
	binary.BigEndian.PutUint32(buf[2:6], m.Instrument)
	binary.BigEndian.PutUint64(buf[6:14], m.OrderID)
	return buf
}
