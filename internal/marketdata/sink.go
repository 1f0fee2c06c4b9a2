package marketdata

import (
	"sync/atomic"
)

// Sink accepts wire-encoded messages from an Adapter and is responsible
// for getting them to a consumer without ever blocking or suspending
// the matching engine that feeds it (spec.md §9's capability-set
// design note: "a publishing sink that writes to a bounded
// single-producer single-consumer ring buffer drained by an external
// publisher").
type Sink interface {
	Push(m Message) error
}

// ringCapacity is the fixed power-of-two slot count. Must stay a power
// of two for the mask-based indexing below.
const ringCapacity = 1 << 14 // 16384
const ringMask = ringCapacity - 1

// RingSink is a single-producer/single-consumer ring buffer of
// pre-encoded Messages. Unlike the RingBuffer[T] in
// (ejyy-femto_go/ringbuffer.go), which busy-waits on both Push and
// Read, this variant never blocks the producer: when full, Push drops
// the message and increments a counter instead of spinning, because the
// producer here is the matching engine's hot path and spec.md §9
// forbids suspending it. Draining still busy-waits, since the consumer
// (the publisher goroutine) has nothing better to do while idle.
type RingSink struct {
	buffer [ringCapacity]Message

	writePos uint64
	readPos  uint64

	dropped uint64
}

// NewRingSink constructs an empty ring.
func NewRingSink() *RingSink {
	return &RingSink{}
}

var _ Sink = (*RingSink)(nil)

// Push stores m for the consumer. If the ring is full, m is dropped and
// the drop counter is incremented; Push never blocks or retries.
func (r *RingSink) Push(m Message) error {
	write := atomic.LoadUint64(&r.writePos)
	read := atomic.LoadUint64(&r.readPos)

	if write-read >= ringCapacity {
		atomic.AddUint64(&r.dropped, 1)
		return ErrSinkFull
	}

	r.buffer[write&ringMask] = m
	atomic.StoreUint64(&r.writePos, write+1)
	return nil
}

// Drain blocks (busy-waiting) until at least one message is available,
// then copies up to len(out) messages into it and returns the count
// actually read.
func (r *RingSink) Drain(out []Message) uint32 {
	for {
		write := atomic.LoadUint64(&r.writePos)
		read := atomic.LoadUint64(&r.readPos)

		available := write - read
		if available == 0 {
			continue
		}

		count := available
		if uint64(len(out)) < count {
			count = uint64(len(out))
		}
		for i := uint64(0); i < count; i++ {
			out[i] = r.buffer[(read+i)&ringMask]
		}
		atomic.StoreUint64(&r.readPos, read+count)
		return uint32(count)
	}
}

// TryDrain is the non-blocking counterpart of Drain, returning 0 at once
// on an empty ring. The publisher uses it both in its drain loop (so it
// can send heartbeats while idle) and on shutdown to flush what remains.
func (r *RingSink) TryDrain(out []Message) uint32 {
	write := atomic.LoadUint64(&r.writePos)
	read := atomic.LoadUint64(&r.readPos)

	available := write - read
	if available == 0 {
		return 0
	}
	count := available
	if uint64(len(out)) < count {
		count = uint64(len(out))
	}
	for i := uint64(0); i < count; i++ {
		out[i] = r.buffer[(read+i)&ringMask]
	}
	atomic.StoreUint64(&r.readPos, read+count)
	return uint32(count)
}

// Dropped reports the cumulative count of messages discarded because
// the ring was full when Push was called.
func (r *RingSink) Dropped() uint64 {
	return atomic.LoadUint64(&r.dropped)
}
