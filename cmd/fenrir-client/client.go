// Command fenrir-client is a manual TCP order-entry CLI, used to place
// and cancel orders against a running fenrir-server and watch execution
// reports stream back. Adapted from the teacher's cmd/client/client.go,
// generalized from its float64-price/ticker-string wire shape to
// internal/ingest's signed-int64-price/instrument-id protocol.
package main

import (
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"fenrir/internal/book"
	"fenrir/internal/ingest"
)

func main() {
	serverAddr := flag.String("server", "127.0.0.1:9001", "address of the order-entry server")
	action := flag.String("action", "place", "action to perform: place, cancel")
	instrument := flag.Uint("instrument", 1, "instrument id")
	sideStr := flag.String("side", "buy", "order side: buy or sell")
	typeStr := flag.String("type", "limit", "order type: limit or market")
	tifStr := flag.String("tif", "day", "time in force: day or ioc")
	price := flag.Int64("price", 100, "limit price in minor units")
	qtyStr := flag.String("qty", "10", "quantity, or a comma-separated list to send several orders")
	orderID := flag.Uint64("order-id", 0, "order id to cancel")
	flag.Parse()

	conn, err := net.Dial("tcp", *serverAddr)
	if err != nil {
		log.Fatalf("failed to connect to %s: %v", *serverAddr, err)
	}
	defer conn.Close()
	fmt.Printf("connected to %s\n", *serverAddr)

	go readReports(conn)

	side := book.Buy
	if strings.ToLower(*sideStr) == "sell" {
		side = book.Sell
	}
	orderType := book.LimitOrder
	if strings.ToLower(*typeStr) == "market" {
		orderType = book.MarketOrder
	}
	tif := book.DAY
	if strings.ToLower(*tifStr) == "ioc" {
		tif = book.IOC
	}

	switch strings.ToLower(*action) {
	case "place":
		for _, qty := range parseQuantities(*qtyStr) {
			frame := ingest.EncodeNewOrder(ingest.NewOrderMessage{
				Instrument: uint32(*instrument),
				Side:       side,
				Type:       orderType,
				TIF:        tif,
				Price:      *price,
				Quantity:   qty,
			})
			if _, err := conn.Write(frame); err != nil {
				log.Printf("failed to send order (qty %d): %v", qty, err)
				continue
			}
			fmt.Printf("-> sent %s %d @ %d instrument=%d\n", strings.ToUpper(*sideStr), qty, *price, *instrument)
			time.Sleep(5 * time.Millisecond)
		}
	case "cancel":
		if *orderID == 0 {
			log.Fatal("-order-id is required for cancel")
		}
		frame := ingest.EncodeCancelOrder(ingest.CancelOrderMessage{
			Instrument: uint32(*instrument),
			OrderID:    *orderID,
		})
		if _, err := conn.Write(frame); err != nil {
			log.Fatalf("failed to send cancel: %v", err)
		}
		fmt.Printf("-> sent cancel for order %d\n", *orderID)
	default:
		log.Fatalf("unknown action: %s", *action)
	}

	fmt.Println("listening for reports... (Ctrl+C to exit)")
	select {}
}

func parseQuantities(input string) []uint32 {
	var out []uint32
	for _, p := range strings.Split(input, ",") {
		p = strings.TrimSpace(p)
		v, err := strconv.ParseUint(p, 10, 32)
		if err != nil {
			log.Printf("skipping invalid quantity %q: %v", p, err)
			continue
		}
		out = append(out, uint32(v))
	}
	return out
}

func readReports(conn net.Conn) {
	for {
		rep, err := ingest.ReadReport(conn)
		if err != nil {
			if err != io.EOF {
				log.Printf("connection lost: %v", err)
			}
			os.Exit(0)
		}

		if rep.Type == ingest.ReportError {
			fmt.Printf("\n[ERROR] order=%d %s\n", rep.OrderID, rep.Err)
			continue
		}
		fmt.Printf("\n[EXECUTION] order=%d fills=%d\n", rep.OrderID, len(rep.Fills))
		for _, f := range rep.Fills {
			fmt.Printf("  resting=%d price=%d qty=%d\n", f.RestingOrderID, f.Price, f.Quantity)
		}
	}
}
