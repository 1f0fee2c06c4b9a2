// Package sim drives a deterministic synthetic order flow against an
// exchange for load testing and demonstration. Grounded on
// ejyy-femto_go/main.go's fixed-seed xorshift input generator, adapted
// from that program's single in-process engine call to exchange.Exchange's
// multi-instrument, per-instrument-locked call surface, and on
// original_source's simulation driver for the scenario mix (order/cancel
// ratio, price banding around a walk).
package sim

import (
	"fmt"
	"time"

	"fenrir/internal/book"
)

// Exchange is the subset of internal/exchange.Exchange the driver
// needs, declared locally so sim has no import-time coupling to the
// exchange package's full surface.
type Exchange interface {
	PlaceLimitOrder(instrument uint32, clientRef, owner string, side book.Side, tif book.TimeInForce, price int64, quantity uint32) (uint64, []book.Fill, error)
	CancelOrder(instrument uint32, id uint64) error
}

// Driver generates synthetic order flow for a fixed set of instruments
// using a deterministic xorshift PRNG, so a run with the same Seed
// reproduces byte-identical traffic.
type Driver struct {
	xchg        Exchange
	instruments []uint32
	seed        uint64

	restingIDs []restingOrder
	cursor     int
}

type restingOrder struct {
	instrument uint32
	id         uint64
}

// Config configures a Driver. Only Instruments, Seed and RecentIDWindow
// are kept by the Driver; the cancel ratio, price band and quantity
// range of the generated flow come from the arguments of Step and Run,
// and the CancelRatio, PriceFloor, PriceCeiling, MinQty and MaxQty
// fields here have no effect on it.
type Config struct {
	Instruments    []uint32
	Seed           uint64
	CancelRatio    uint32 // out of 100
	PriceFloor     int64
	PriceCeiling   int64
	MinQty         uint32
	MaxQty         uint32
	RecentIDWindow int
}

// New constructs a driver from cfg, falling back to sane defaults for
// zero-valued fields.
func New(xchg Exchange, cfg Config) *Driver {
	if cfg.Seed == 0 {
		cfg.Seed = 1755956219406641000
	}
	if cfg.CancelRatio == 0 {
		cfg.CancelRatio = 10
	}
	if cfg.PriceCeiling == 0 {
		cfg.PriceCeiling = cfg.PriceFloor + 200
	}
	if cfg.MaxQty == 0 {
		cfg.MaxQty = 1000
	}
	if cfg.MinQty == 0 {
		cfg.MinQty = 1
	}
	window := cfg.RecentIDWindow
	if window == 0 {
		window = 4096
	}
	if len(cfg.Instruments) == 0 {
		cfg.Instruments = []uint32{1}
	}

	return &Driver{
		xchg:        xchg,
		instruments: cfg.Instruments,
		seed:        cfg.Seed,
		restingIDs:  make([]restingOrder, 0, window),
	}
}

// next advances the xorshift generator in place, mirroring
// ejyy-femto_go's fastRand exactly so a fixed seed reproduces the same
// traffic regardless of which process runs it.
func (d *Driver) next() uint32 {
	d.seed ^= d.seed << 13
	d.seed ^= d.seed >> 7
	d.seed ^= d.seed << 17
	return uint32(d.seed)
}

// Step submits or cancels exactly one order, returning a short
// description of the action taken, suitable for logging.
func (d *Driver) Step(cancelRatio uint32, priceFloor, priceSpan int64, minQty, maxQty uint32) string {
	if cancelRatio > 0 && d.next()%100 < cancelRatio && len(d.restingIDs) > 0 {
		idx := int(d.next()) % len(d.restingIDs)
		target := d.restingIDs[idx]
		d.removeResting(idx)
		if err := d.xchg.CancelOrder(target.instrument, target.id); err != nil {
			return fmt.Sprintf("cancel instrument=%d id=%d failed: %v", target.instrument, target.id, err)
		}
		return fmt.Sprintf("cancel instrument=%d id=%d", target.instrument, target.id)
	}

	instrument := d.instruments[int(d.next())%len(d.instruments)]
	side := book.Buy
	if d.next()%2 == 1 {
		side = book.Sell
	}
	price := priceFloor + int64(d.next())%priceSpan
	qtySpan := maxQty - minQty + 1
	qty := minQty + d.next()%qtySpan

	id, fills, err := d.xchg.PlaceLimitOrder(instrument, "", "sim", side, book.DAY, price, qty)
	if err != nil {
		return fmt.Sprintf("order instrument=%d side=%s price=%d qty=%d failed: %v", instrument, side, price, qty, err)
	}
	if len(fills) == 0 {
		d.addResting(instrument, id)
	}
	return fmt.Sprintf("order id=%d instrument=%d side=%s price=%d qty=%d fills=%d", id, instrument, side, price, qty, len(fills))
}

func (d *Driver) addResting(instrument uint32, id uint64) {
	if cap(d.restingIDs) == len(d.restingIDs) {
		d.restingIDs[d.cursor%cap(d.restingIDs)] = restingOrder{instrument, id}
		d.cursor++
		return
	}
	d.restingIDs = append(d.restingIDs, restingOrder{instrument, id})
}

func (d *Driver) removeResting(idx int) {
	last := len(d.restingIDs) - 1
	d.restingIDs[idx] = d.restingIDs[last]
	d.restingIDs = d.restingIDs[:last]
}

// Run drives n steps, sleeping pace between each (pace == 0 runs as
// fast as possible), logging every step to onStep.
func (d *Driver) Run(n int, pace time.Duration, cancelRatio uint32, priceFloor, priceSpan int64, minQty, maxQty uint32, onStep func(string)) {
	for i := 0; i < n; i++ {
		msg := d.Step(cancelRatio, priceFloor, priceSpan, minQty, maxQty)
		if onStep != nil {
			onStep(msg)
		}
		if pace > 0 {
			time.Sleep(pace)
		}
	}
}
