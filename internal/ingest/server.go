package ingest

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"fenrir/internal/book"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const (
	maxRecvSize        = 4 * 1024
	defaultNWorkers    = 10
	defaultConnTimeout = 30 * time.Second
)

var (
	ErrImproperConversion = errors.New("ingest: improper task type conversion")
	ErrClientDoesNotExist = errors.New("ingest: client does not exist")
)

// clientSession tracks one live TCP connection.
type clientSession struct {
	conn net.Conn
}

// clientMessage links a parsed inbound message back to the connection
// that sent it, for routing reports to the right socket.
type clientMessage struct {
	clientAddress string
	message       InboundMessage
}

// Exchange is the subset of internal/exchange.Exchange the order-entry
// server needs. Declared here (not imported as a concrete type) so
// ingest has no import-time dependency on the exchange package's full
// surface — mirrors the teacher's own Engine interface in
// internal/net/server.go.
type Exchange interface {
	PlaceLimitOrder(instrument uint32, clientRef, owner string, side book.Side, tif book.TimeInForce, price int64, quantity uint32) (uint64, []book.Fill, error)
	PlaceMarketOrder(instrument uint32, side book.Side, quantity uint32) ([]book.Fill, uint32, error)
	CancelOrder(instrument uint32, id uint64) error
	AmendOrder(instrument uint32, id uint64, clientRef, owner string, side book.Side, tif book.TimeInForce, price int64, quantity uint32) (uint64, []book.Fill, error)
	Contains(instrument uint32, id uint64) bool
	LogBook()
}

// Server accepts order-entry TCP connections, parses one message per
// read, and dispatches it to an Exchange. Grounded line-for-line on the
// teacher's internal/net/server.go Server, adapted from a single-book
// Engine call surface to the multi-instrument Exchange interface above.
type Server struct {
	address string
	port    int
	xchg    Exchange
	pool    WorkerPool

	cancel context.CancelFunc

	sessionsMu sync.Mutex
	sessions   map[string]clientSession

	ownersMu    sync.Mutex
	orderOwners map[uint64]string

	inbound chan clientMessage
}

// New constructs a server listening on address:port, dispatching
// parsed order-entry messages to xchg.
func New(address string, port int, xchg Exchange) *Server {
	return &Server{
		address:     address,
		port:        port,
		xchg:        xchg,
		pool:        NewWorkerPool(defaultNWorkers),
		sessions:    make(map[string]clientSession),
		orderOwners: make(map[uint64]string),
		inbound:     make(chan clientMessage, 64),
	}
}

// Shutdown cancels the server's context, unwinding Run.
func (s *Server) Shutdown() {
	log.Info().Msg("ingest server shutting down")
	if s.cancel != nil {
		s.cancel()
	}
}

// Run accepts connections until ctx is cancelled or Shutdown is called.
func (s *Server) Run(ctx context.Context) error {
	defer s.Shutdown()

	ctx, s.cancel = context.WithCancel(ctx)
	t, ctx := tomb.WithContext(ctx)

	var lc net.ListenConfig
	listener, err := lc.Listen(ctx, "tcp", fmt.Sprintf("%s:%d", s.address, s.port))
	if err != nil {
		return fmt.Errorf("starting order-entry listener: %w", err)
	}
	defer func() {
		if err := listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			log.Error().Err(err).Msg("error closing order-entry listener")
		}
	}()
	go func() {
		<-ctx.Done()
		_ = listener.Close()
	}()

	t.Go(func() error {
		s.pool.Setup(t, s.handleConnection)
		return nil
	})
	t.Go(func() error {
		return s.dispatchLoop(t)
	})

	log.Info().Str("address", s.address).Int("port", s.port).Msg("ingest server running")

	for {
		select {
		case <-ctx.Done():
			return nil
		default:
			conn, err := listener.Accept()
			if err != nil {
				if ctx.Err() != nil {
					return nil
				}
				log.Error().Err(err).Msg("error accepting order-entry connection")
				continue
			}
			s.addSession(conn)
			s.pool.AddTask(conn)
		}
	}
}

// dispatchLoop drains parsed messages and routes each to the exchange,
// reporting the outcome back to the originating client.
func (s *Server) dispatchLoop(t *tomb.Tomb) error {
	for {
		select {
		case <-t.Dying():
			return nil
		case msg := <-s.inbound:
			s.handleMessage(msg)
		}
	}
}

func (s *Server) handleMessage(cm clientMessage) {
	switch cm.message.Type {
	case MsgNewOrder:
		m := cm.message.NewOrder
		if m.Type == book.MarketOrder {
			fills, _, err := s.xchg.PlaceMarketOrder(m.Instrument, m.Side, m.Quantity)
			s.report(cm.clientAddress, 0, fills, err)
			s.notifyCounterparties(m.Instrument, cm.clientAddress, fills)
			return
		}
		id, fills, err := s.xchg.PlaceLimitOrder(m.Instrument, cm.message.ClientRef, cm.clientAddress, m.Side, m.TIF, m.Price, m.Quantity)
		if err == nil {
			s.recordOwner(id, cm.clientAddress)
		}
		s.report(cm.clientAddress, id, fills, err)
		s.notifyCounterparties(m.Instrument, cm.clientAddress, fills)
	case MsgCancelOrder:
		m := cm.message.Cancel
		err := s.xchg.CancelOrder(m.Instrument, m.OrderID)
		if err == nil {
			s.forgetOwner(m.OrderID)
		}
		s.report(cm.clientAddress, m.OrderID, nil, err)
	case MsgAmendOrder:
		m := cm.message.Amend
		s.forgetOwner(m.OrderID)
		id, fills, err := s.xchg.AmendOrder(m.NewOrder.Instrument, m.OrderID, cm.message.ClientRef, cm.clientAddress, m.NewOrder.Side, m.NewOrder.TIF, m.NewOrder.Price, m.NewOrder.Quantity)
		if err == nil {
			s.recordOwner(id, cm.clientAddress)
		}
		s.report(cm.clientAddress, id, fills, err)
		s.notifyCounterparties(m.NewOrder.Instrument, cm.clientAddress, fills)
	default:
		log.Error().Int("type", int(cm.message.Type)).Msg("unhandled inbound message type")
	}
}

// recordOwner remembers which client address owns a resting order id, so
// a later fill against it can be reported back to that client rather than
// only to whoever submitted the aggressing order.
func (s *Server) recordOwner(id uint64, clientAddress string) {
	s.ownersMu.Lock()
	defer s.ownersMu.Unlock()
	s.orderOwners[id] = clientAddress
}

func (s *Server) ownerOf(id uint64) (string, bool) {
	s.ownersMu.Lock()
	defer s.ownersMu.Unlock()
	addr, ok := s.orderOwners[id]
	return addr, ok
}

func (s *Server) forgetOwner(id uint64) {
	s.ownersMu.Lock()
	defer s.ownersMu.Unlock()
	delete(s.orderOwners, id)
}

// notifyCounterparties reports each consumed resting order's own fill
// back to that order's owner, mirroring the teacher's
// generateWireTradeReports (one report per side of a trade, not only the
// aggressor's). A resting order fully consumed is also forgotten from the
// owner index, since it can no longer be matched again.
func (s *Server) notifyCounterparties(instrument uint32, aggressorAddress string, fills []book.Fill) {
	for _, f := range fills {
		addr, ok := s.ownerOf(f.RestingOrderID)
		if !ok {
			continue
		}
		if !s.xchg.Contains(instrument, f.RestingOrderID) {
			s.forgetOwner(f.RestingOrderID)
		}
		if addr == aggressorAddress {
			continue
		}

		s.sessionsMu.Lock()
		session, ok := s.sessions[addr]
		s.sessionsMu.Unlock()
		if !ok {
			continue
		}

		rep := executionReport(f.RestingOrderID, []book.Fill{f})
		if _, err := session.conn.Write(rep.Serialize()); err != nil {
			log.Error().Err(err).Str("clientAddress", addr).Msg("failed writing counterparty report")
			s.removeSession(addr)
		}
	}
}

func (s *Server) report(clientAddress string, orderID uint64, fills []book.Fill, err error) {
	var rep *Report
	if err != nil {
		rep = errorReport(orderID, err)
		log.Error().Err(err).Str("clientAddress", clientAddress).Uint64("orderID", orderID).Msg("order rejected")
	} else {
		rep = executionReport(orderID, fills)
	}

	s.sessionsMu.Lock()
	session, ok := s.sessions[clientAddress]
	s.sessionsMu.Unlock()
	if !ok {
		log.Error().Str("clientAddress", clientAddress).Msg("no session to report to")
		return
	}
	if _, err := session.conn.Write(rep.Serialize()); err != nil {
		log.Error().Err(err).Str("clientAddress", clientAddress).Msg("failed writing report")
		s.removeSession(clientAddress)
	}
}

// handleConnection reads exactly one message from conn, parses it, and
// forwards it for dispatch. Resubmits itself to the pool so the same
// connection gets serviced again for its next message, matching the
// teacher's one-read-per-task worker shape.
func (s *Server) handleConnection(t *tomb.Tomb, task any) error {
	conn, ok := task.(net.Conn)
	if !ok {
		return ErrImproperConversion
	}

	if err := conn.SetDeadline(time.Now().Add(defaultConnTimeout)); err != nil {
		log.Error().Err(err).Str("address", conn.RemoteAddr().String()).Msg("failed setting read deadline")
		s.closeAndRemove(conn)
		return nil
	}

	buf := make([]byte, maxRecvSize)
	select {
	case <-t.Dying():
		return nil
	default:
	}

	n, err := conn.Read(buf)
	if err != nil {
		s.closeAndRemove(conn)
		return nil
	}

	msg, err := parseMessage(buf[:n])
	if err != nil {
		log.Error().Err(err).Str("address", conn.RemoteAddr().String()).Msg("failed parsing inbound message")
		s.closeAndRemove(conn)
		return nil
	}

	select {
	case s.inbound <- clientMessage{clientAddress: conn.RemoteAddr().String(), message: msg}:
	case <-t.Dying():
		return nil
	}

	s.pool.AddTask(conn)
	return nil
}

func (s *Server) addSession(conn net.Conn) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	s.sessions[conn.RemoteAddr().String()] = clientSession{conn: conn}
}

func (s *Server) removeSession(address string) {
	s.sessionsMu.Lock()
	defer s.sessionsMu.Unlock()
	delete(s.sessions, address)
}

func (s *Server) closeAndRemove(conn net.Conn) {
	address := conn.RemoteAddr().String()
	if err := conn.Close(); err != nil {
		log.Error().Err(err).Str("address", address).Msg("error closing connection")
	}
	s.removeSession(address)
}
