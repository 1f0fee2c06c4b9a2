package book

// DeltaSink is the capability set the matching core hands quantity
// transitions to. It is a "polymorphism over market-data sinks"
// boundary (spec.md §9): construction-time selection, never per-call
// dispatch decisions inside the matcher. Two implementations are
// required by spec.md: NullSink here, and marketdata.Adapter (which
// wraps a ring buffer and the wire codec) in internal/marketdata.
type DeltaSink interface {
	// EmitLevelUpdate reports a level's aggregate quantity going from
	// zero to non-zero (isNew=true, NEW) or changing between two
	// non-zero values (isNew=false, CHANGE).
	EmitLevelUpdate(side Side, price int64, qty uint64, isNew bool) error
	// EmitLevelDelete reports a level's aggregate quantity going to zero.
	EmitLevelDelete(side Side, price int64) error
	// EmitTrade reports an execution. price is always the resting
	// order's limit price, never the aggressor's.
	EmitTrade(tradeID uint64, price int64, qty uint32, aggressor Side) error
	// EmitBookClear reports the book being reset wholesale.
	EmitBookClear(reason uint32) error
}

// NullSink discards every emission. Used by tests and simulation runs
// where the market-data feed is unwanted (spec.md §9).
type NullSink struct{}

func (NullSink) EmitLevelUpdate(Side, int64, uint64, bool) error { return nil }
func (NullSink) EmitLevelDelete(Side, int64) error               { return nil }
func (NullSink) EmitTrade(uint64, int64, uint32, Side) error     { return nil }
func (NullSink) EmitBookClear(uint32) error                      { return nil }
