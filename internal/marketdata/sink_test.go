package marketdata

import "testing"

func TestRingSinkDrainReturnsPushedMessages(t *testing.T) {
	r := NewRingSink()
	for i := 0; i < 5; i++ {
		if err := r.Push(Message{Header: Header{SequenceNumber: uint64(i + 1)}}); err != nil {
			t.Fatalf("unexpected push error: %v", err)
		}
	}

	out := make([]Message, 10)
	n := r.TryDrain(out)
	if n != 5 {
		t.Fatalf("expected to drain 5 messages, got %d", n)
	}
	for i := 0; i < 5; i++ {
		if out[i].Header.SequenceNumber != uint64(i+1) {
			t.Fatalf("expected in-order sequence %d, got %d", i+1, out[i].Header.SequenceNumber)
		}
	}
}

func TestRingSinkDropsWhenFullAndCounts(t *testing.T) {
	r := NewRingSink()
	for i := 0; i < ringCapacity; i++ {
		if err := r.Push(Message{}); err != nil {
			t.Fatalf("unexpected drop while under capacity at %d: %v", i, err)
		}
	}

	if err := r.Push(Message{}); err != ErrSinkFull {
		t.Fatalf("expected ErrSinkFull once full, got %v", err)
	}
	if r.Dropped() != 1 {
		t.Fatalf("expected dropped count 1, got %d", r.Dropped())
	}
}

func TestRingSinkTryDrainEmptyReturnsZero(t *testing.T) {
	r := NewRingSink()
	out := make([]Message, 4)
	if n := r.TryDrain(out); n != 0 {
		t.Fatalf("expected 0 from empty ring, got %d", n)
	}
}
