// Command probe is the operator's toolbox: dump the trade ledger as CSV,
// probe which exchange endpoint candidates answer for the configured
// account, or look up an order by id.
package main

import (
	"context"
	"encoding/csv"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"flipbot/internal/domain"
	"flipbot/internal/infra"
	"flipbot/internal/infra/bitget"
	"flipbot/internal/storage"
)

func main() {
	_ = godotenv.Load()

	var (
		mode       = flag.String("mode", "trades", "trades | endpoints | order")
		status     = flag.String("status", "", "filter trades by status")
		limit      = flag.Int("limit", 0, "max trades to export (0 = default)")
		orderID    = flag.String("order-id", "", "order id for -mode=order")
		instrument = flag.String("instrument", "BTCUSDT", "instrument for -mode=endpoints")
	)
	flag.Parse()

	cfg, err := infra.LoadConfig(infra.ResolveConfigPath())
	if err != nil {
		slog.Error("Failed to load config", slog.Any("error", err))
		os.Exit(1)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	switch *mode {
	case "trades":
		err = dumpTrades(ctx, cfg, domain.Status(*status), *limit)
	case "endpoints":
		err = probeEndpoints(ctx, cfg, *instrument)
	case "order":
		err = lookupOrder(ctx, cfg, *orderID)
	default:
		err = fmt.Errorf("unknown mode %q", *mode)
	}
	if err != nil {
		slog.Error("Probe failed", slog.Any("error", err))
		os.Exit(1)
	}
}

func dumpTrades(ctx context.Context, cfg *infra.Config, status domain.Status, limit int) error {
	store, err := storage.OpenTradeStore(cfg.Storage.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	trades, err := store.List(ctx, status, limit)
	if err != nil {
		return err
	}

	w := csv.NewWriter(os.Stdout)
	defer w.Flush()

	header := []string{"id", "instrument", "direction", "price", "size", "size_usd",
		"leverage", "margin", "liq_price", "exit_price", "realized_pnl",
		"status", "created_at", "response"}
	if err := w.Write(header); err != nil {
		return err
	}

	for _, tr := range trades {
		row := []string{
			tr.ID, tr.Instrument, string(tr.Direction),
			formatFloat(tr.Price), formatFloat(tr.Size), formatFloat(tr.SizeUSD),
			formatFloat(tr.Leverage), formatFloat(tr.Margin), formatFloat(tr.LiqPrice),
			formatOptional(tr.ExitPrice), formatOptional(tr.RealizedPnL),
			string(tr.Status), tr.CreatedAt.Format(time.RFC3339),
			preview(tr.Response, 120),
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	return nil
}

// probeEndpoints exercises the public and signed candidate endpoints so an
// operator can see which API generation the configured account answers on.
func probeEndpoints(ctx context.Context, cfg *infra.Config, instrument string) error {
	client := bitget.NewClient(cfg)

	price, err := client.MarkPrice(ctx, instrument)
	if err != nil {
		fmt.Printf("ticker      %-10s FAIL  %v\n", instrument, err)
	} else {
		fmt.Printf("ticker      %-10s OK    price=%g\n", instrument, price)
	}

	snap, err := client.Position(ctx, instrument)
	switch {
	case err != nil:
		fmt.Printf("position    %-10s FAIL  %v\n", instrument, err)
	case snap.IsFlat():
		fmt.Printf("position    %-10s OK    flat\n", instrument)
	default:
		fmt.Printf("position    %-10s OK    %s size=%g entry=%g\n",
			instrument, snap.Side, snap.Size, snap.EntryPrice)
	}

	if err := client.EnsureOneWayMode(ctx); err != nil {
		fmt.Printf("posmode     %-10s FAIL  %v\n", instrument, err)
	} else {
		fmt.Printf("posmode     %-10s OK    one-way\n", instrument)
	}
	return nil
}

func lookupOrder(ctx context.Context, cfg *infra.Config, orderID string) error {
	if orderID == "" {
		return fmt.Errorf("-order-id is required for -mode=order")
	}
	client := bitget.NewClient(cfg)

	res, err := client.OrderDetail(ctx, orderID)
	if err != nil {
		return err
	}
	fmt.Printf("order %s: code=%s\n%s\n", orderID, res.Code, res.Raw)
	return nil
}

func formatFloat(v float64) string {
	if v == 0 {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func formatOptional(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func preview(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
