// Command fenrir-sim drives deterministic synthetic order flow against
// an in-process exchange, for load shaping and demonstration without a
// network round trip. Grounded on ejyy-femto_go/main.go's
// generate-and-push loop.
package main

import (
	"flag"
	"os"
	"time"

	"fenrir/internal/exchange"
	"fenrir/internal/sim"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	steps := flag.Int("steps", 100_000, "number of simulated order-entry actions")
	seed := flag.Uint64("seed", 1755956219406641000, "xorshift PRNG seed")
	priceFloor := flag.Int64("price-floor", 100, "lowest simulated limit price")
	priceSpan := flag.Int64("price-span", 200, "width of the simulated price band above price-floor")
	cancelRatio := flag.Uint("cancel-ratio", 10, "percent chance a step is a cancel rather than a new order")
	quiet := flag.Bool("quiet", true, "suppress per-step logging")
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	xchg := exchange.New()
	xchg.RegisterInstrument(1, nil)

	driver := sim.New(xchg, sim.Config{
		Instruments: []uint32{1},
		Seed:        *seed,
		CancelRatio: uint32(*cancelRatio),
		PriceFloor:  *priceFloor,
	})

	start := time.Now()
	onStep := func(msg string) {
		if !*quiet {
			log.Info().Msg(msg)
		}
	}
	driver.Run(*steps, 0, uint32(*cancelRatio), *priceFloor, *priceSpan, 1, 1000, onStep)

	xchg.LogBook()
	log.Info().
		Int("steps", *steps).
		Dur("elapsed", time.Since(start)).
		Msg("simulation complete")
}
