package execution

import (
	"fmt"
	"log/slog"
	"os"

	"flipbot/internal/infra"
	"flipbot/internal/infra/bitget"
)

// Mode selects which gateway the engine drives.
type Mode string

const (
	ModeDryRun Mode = "DRY_RUN"
	ModeLive   Mode = "LIVE"
)

// NewGateway builds the gateway for the configured mode. Missing exchange
// credentials do not fail here; they surface on the first live placement.
func NewGateway(cfg *infra.Config, priceFeed *infra.PriceFeed) (Gateway, error) {
	mode := Mode(cfg.Trading.Mode)

	slog.Info("Initializing execution gateway", slog.String("mode", string(mode)))

	switch mode {
	case ModeDryRun:
		slog.Info("🧪 DRY_RUN mode: orders are simulated, nothing reaches the exchange")
		return NewDryRunGateway(priceFeed), nil

	case ModeLive:
		if cfg.Trading.Paptrading {
			slog.Info("🔒 LIVE mode on Bitget demo (paptrading) account")
		} else {
			// Real funds. Require an explicit latch.
			if os.Getenv("CONFIRM_REAL_MONEY") != "true" {
				return nil, fmt.Errorf("live trading with real funds requires CONFIRM_REAL_MONEY=true")
			}
			slog.Warn("🚨 LIVE mode on Bitget mainnet with real funds 🚨")
		}
		return NewLiveGateway(bitget.NewClient(cfg)), nil

	default:
		return nil, fmt.Errorf("unknown execution mode: %s", mode)
	}
}
