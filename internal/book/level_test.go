package book

import "testing"

func TestPriceLevelAppendAndRemove(t *testing.T) {
	lvl := newPriceLevel(100)
	o1 := &Order{ID: 1, Residual: 5}
	o2 := &Order{ID: 2, Residual: 7}

	n1 := lvl.append(o1)
	lvl.append(o2)

	if lvl.Count() != 2 {
		t.Fatalf("expected count 2, got %d", lvl.Count())
	}
	if lvl.AggregateQuantity() != 12 {
		t.Fatalf("expected aggregate 12, got %d", lvl.AggregateQuantity())
	}
	if lvl.Head() != o1 || lvl.Tail() != o2 {
		t.Fatalf("expected head=o1 tail=o2")
	}

	lvl.removeSpecific(n1)
	if lvl.Count() != 1 {
		t.Fatalf("expected count 1 after remove, got %d", lvl.Count())
	}
	if lvl.AggregateQuantity() != 7 {
		t.Fatalf("expected aggregate 7 after remove, got %d", lvl.AggregateQuantity())
	}
	if lvl.IsEmpty() {
		t.Fatalf("level should not report empty while an order remains")
	}
}

func TestPriceLevelDecreaseAggregateOverflow(t *testing.T) {
	lvl := newPriceLevel(100)
	lvl.append(&Order{ID: 1, Residual: 5})

	if err := lvl.decreaseAggregate(10); err != ErrInvalidDecrement {
		t.Fatalf("expected ErrInvalidDecrement, got %v", err)
	}
}

func TestPriceLevelEmptyAfterLastRemoval(t *testing.T) {
	lvl := newPriceLevel(100)
	n := lvl.append(&Order{ID: 1, Residual: 5})
	lvl.removeSpecific(n)

	if !lvl.IsEmpty() {
		t.Fatalf("expected level empty after last order removed")
	}
	if lvl.Head() != nil || lvl.Tail() != nil {
		t.Fatalf("expected head/tail nil on empty level")
	}
}
