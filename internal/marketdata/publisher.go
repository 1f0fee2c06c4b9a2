package marketdata

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"
)

const (
	drainBatchSize     = 256
	heartbeatInterval  = time.Second
	maxDatagramPayload = 1500 // conservative MTU-sized cap, one message per datagram
)

// Publisher drains a RingSink and writes each message as its own UDP
// datagram to a multicast group, emitting periodic HEARTBEATs when the
// feed is otherwise quiet. Grounded on the teacher's tomb-supervised
// Server.Run loop (internal/net/server.go), adapted from an accept loop
// to a drain loop; UDP multicast has no analogue in the retrieval pack,
// so the stdlib net.DialUDP is used directly to send to the group — no
// third-party dependency in the pack covers multicast transport.
type Publisher struct {
	groupAddr string
	ring      *RingSink
	adapter   *Adapter
	conn      *net.UDPConn
}

// NewPublisher builds a publisher that will dial groupAddr (e.g.
// "239.0.0.1:9001") on Run and drain ring, using adapter only to emit
// heartbeats during idle periods.
func NewPublisher(groupAddr string, ring *RingSink, adapter *Adapter) *Publisher {
	return &Publisher{groupAddr: groupAddr, ring: ring, adapter: adapter}
}

// Run dials the multicast group and drains the ring until ctx is
// cancelled, supervised by a tomb so a panic in the drain loop doesn't
// silently wedge the process.
func (p *Publisher) Run(ctx context.Context) error {
	t, ctx := tomb.WithContext(ctx)

	addr, err := net.ResolveUDPAddr("udp", p.groupAddr)
	if err != nil {
		return fmt.Errorf("resolve multicast group: %w", err)
	}
	conn, err := net.DialUDP("udp", nil, addr)
	if err != nil {
		return fmt.Errorf("dial multicast group: %w", err)
	}
	p.conn = conn
	defer func() {
		if err := conn.Close(); err != nil {
			log.Error().Err(err).Msg("error closing multicast socket")
		}
	}()

	t.Go(func() error {
		return p.drainLoop(t)
	})

	log.Info().Str("group", p.groupAddr).Msg("market data publisher running")

	<-ctx.Done()
	t.Kill(nil)
	_ = t.Wait()

	p.flush()
	return nil
}

// drainLoop busy-drains the ring in batches and writes each message as
// its own datagram, falling back to a HEARTBEAT on a quiet feed.
func (p *Publisher) drainLoop(t *tomb.Tomb) error {
	batch := make([]Message, drainBatchSize)
	lastActivity := time.Now()

	for {
		select {
		case <-t.Dying():
			return nil
		default:
		}

		n := p.ring.TryDrain(batch)
		if n == 0 {
			if time.Since(lastActivity) >= heartbeatInterval {
				if err := p.adapter.Heartbeat(); err != nil {
					log.Error().Err(err).Msg("failed to enqueue heartbeat")
				}
				lastActivity = time.Now()
			}
			continue
		}

		lastActivity = time.Now()
		for _, m := range batch[:n] {
			p.write(m)
		}
	}
}

func (p *Publisher) write(m Message) {
	frame := m.Bytes()
	if len(frame) > maxDatagramPayload {
		log.Error().Int("len", len(frame)).Msg("market data frame exceeds datagram cap, dropping")
		return
	}
	if _, err := p.conn.Write(frame); err != nil {
		log.Error().Err(err).Msg("error writing market data datagram")
	}
}

// flush drains and writes whatever remains in the ring after the
// drain loop has stopped, so a clean shutdown doesn't silently discard
// the tail of the stream.
func (p *Publisher) flush() {
	batch := make([]Message, drainBatchSize)
	for {
		n := p.ring.TryDrain(batch)
		if n == 0 {
			return
		}
		for _, m := range batch[:n] {
			p.write(m)
		}
	}
}
