package app

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"flipbot/internal/engine"
	"flipbot/internal/execution"
	"flipbot/internal/infra"
	"flipbot/internal/infra/bitget"
	"flipbot/internal/notify"
	"flipbot/internal/server"
	"flipbot/internal/signal"
	"flipbot/internal/storage"
)

// Bootstrap orchestrates the application startup sequence.
type Bootstrap struct {
	Config  *infra.Config
	Store   *storage.TradeStore
	Gateway execution.Gateway
	Hub     *notify.Hub
	Server  *server.Server
}

func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize wires every component: config, logger, ledger, price feed,
// gateway, notification fanout, engine, HTTP server.
func (b *Bootstrap) Initialize(ctx context.Context) error {
	slog.Info("🚀 Bootstrapping flipbot...")

	// 1. Load config
	cfg, err := infra.LoadConfig(infra.ResolveConfigPath())
	if err != nil {
		return err
	}
	b.Config = cfg

	// 2. Logger
	slog.SetDefault(infra.NewLogger(cfg))

	// 3. Trade ledger (WAL SQLite)
	if err := infra.EnsureParentDir(cfg.Storage.Path); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}
	store, err := storage.OpenTradeStore(cfg.Storage.Path)
	if err != nil {
		return err
	}
	b.Store = store
	slog.Info("✅ Trade ledger initialized (WAL-mode)", "path", cfg.Storage.Path)

	// 4. Price feed + execution gateway
	priceFeed := infra.NewPriceFeed(cfg)
	gateway, err := execution.NewGateway(cfg, priceFeed)
	if err != nil {
		return err
	}
	b.Gateway = gateway

	// One-way position mode keeps the at-most-one-position invariant on the
	// venue side too. Best-effort: a dead exchange must not block startup.
	if strings.ToUpper(cfg.Trading.Mode) == infra.ModeLive {
		client := bitget.NewClient(cfg)
		if err := client.EnsureOneWayMode(ctx); err != nil {
			slog.Warn("Could not ensure one-way position mode", slog.Any("error", err))
		} else {
			slog.Info("✅ Exchange account in one-way position mode")
		}
	}

	// 5. Notification fanout
	b.Hub = notify.NewHub()
	backends := []notify.Notifier{b.Hub, notify.LogNotifier{}}
	if cfg.Notify.Telegram.BotToken != "" && cfg.Notify.Telegram.ChatID != "" {
		backends = append(backends, notify.NewTelegramNotifier(
			cfg.Notify.Telegram.BotToken, cfg.Notify.Telegram.ChatID))
		slog.Info("✅ Telegram notifications enabled")
	}
	if cfg.Notify.WebhookURL != "" {
		backends = append(backends, notify.NewWebhookNotifier(cfg.Notify.WebhookURL))
		slog.Info("✅ Webhook notifications enabled", "url", cfg.Notify.WebhookURL)
	}
	fanout := notify.NewFanout(backends...)

	// 6. Engine + HTTP surface
	oracle := engine.NewOracle(gateway, store)
	rotator := engine.NewRotator(oracle, gateway, store, fanout)
	normalizer := signal.NewNormalizer(priceFeed, cfg.Trading.MinOrderQty)
	b.Server = server.New(cfg, normalizer, rotator, store, gateway, fanout, b.Hub)

	return nil
}

// Close releases held resources.
func (b *Bootstrap) Close() {
	if b.Store != nil {
		if err := b.Store.Close(); err != nil {
			slog.Warn("Ledger close failed", slog.Any("error", err))
		}
	}
}
