// Command fenrir-server runs the order-entry TCP listener and the
// UDP multicast market-data feed for a fixed set of instruments.
// Consolidates the teacher's cmd/main.go and cmd/server/server.go,
// which wired the same pieces together in two slightly divergent ways
// as the net.Server API evolved; this keeps the later (SetReporter-era)
// wiring style but drives it through the ingest/exchange/marketdata
// split instead of a single Engine+Server pair.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"fenrir/internal/exchange"
	"fenrir/internal/ingest"
	"fenrir/internal/marketdata"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	address := flag.String("address", "0.0.0.0", "order-entry listen address")
	port := flag.Int("port", 9001, "order-entry listen port")
	mdGroup := flag.String("md-group", "239.0.0.1:9002", "market-data multicast group address:port")
	instruments := flag.String("instruments", "1", "comma-separated instrument ids to register")
	verbose := flag.Bool("v", false, "enable debug logging")
	flag.Parse()

	log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
	if *verbose {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	xchg := exchange.New()
	ids := parseInstrumentList(*instruments)
	var publishers []*marketdata.Publisher
	for _, id := range ids {
		ring, adapter := xchg.RegisterPublishedInstrument(uint32(id))
		pub := marketdata.NewPublisher(*mdGroup, ring, adapter)
		publishers = append(publishers, pub)
	}

	for _, pub := range publishers {
		go func(p *marketdata.Publisher) {
			if err := p.Run(ctx); err != nil {
				log.Error().Err(err).Msg("market data publisher exited")
			}
		}(pub)
	}

	srv := ingest.New(*address, *port, xchg)
	go func() {
		if err := srv.Run(ctx); err != nil {
			log.Error().Err(err).Msg("ingest server exited")
		}
	}()

	log.Info().Ints("instruments", ids).Msg("fenrir-server running")
	<-ctx.Done()
}

func parseInstrumentList(csv string) []int {
	var ids []int
	start := 0
	for i := 0; i <= len(csv); i++ {
		if i == len(csv) || csv[i] == ',' {
			if i > start {
				ids = append(ids, atoiOrOne(csv[start:i]))
			}
			start = i + 1
		}
	}
	if len(ids) == 0 {
		ids = []int{1}
	}
	return ids
}

func atoiOrOne(s string) int {
	n := 0
	for _, c := range s {
		if c < '0' || c > '9' {
			return 1
		}
		n = n*10 + int(c-'0')
	}
	if n == 0 {
		return 1
	}
	return n
}
