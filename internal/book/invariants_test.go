package book

import "testing"

func TestDebugEngineDetectsHealthyStateWithoutPanicking(t *testing.T) {
	e := NewDebug(instrument, NullSink{})

	if _, err := e.AddLimitOrder(newTestOrder(1, Buy, 50, 10)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := e.AddLimitOrder(newTestOrder(2, Sell, 50, 4)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := e.CancelOrder(1); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestCheckInvariantsPanicsOnCorruptedAggregate(t *testing.T) {
	e := NewDebug(instrument, NullSink{})
	if _, err := e.AddLimitOrder(newTestOrder(1, Buy, 50, 10)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	lvl, _ := e.bids.lookup(50)
	lvl.aggregateQty = 999 // corrupt the invariant directly

	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected panic on corrupted aggregate quantity")
		}
		if _, ok := r.(*FatalError); !ok {
			t.Fatalf("expected *FatalError, got %T: %v", r, r)
		}
	}()
	e.checkInvariants()
}
