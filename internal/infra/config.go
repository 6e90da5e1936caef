package infra

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Trading mode constants. DRY_RUN simulates order placement; LIVE signs and
// submits real requests (against the demo account when paptrading is set).
const (
	ModeDryRun = "DRY_RUN"
	ModeLive   = "LIVE"
)

// Config holds every runtime setting. Secrets can be overridden by
// environment variables after the file is loaded.
type Config struct {
	App struct {
		Name    string `yaml:"name"`
		Version string `yaml:"version"`
	} `yaml:"app"`

	Server struct {
		Addr          string `yaml:"addr"`
		WebhookSecret string `yaml:"webhook_secret"`
	} `yaml:"server"`

	Trading struct {
		Mode        string  `yaml:"mode"`       // DRY_RUN or LIVE
		Paptrading  bool    `yaml:"paptrading"` // demo-account header on live requests
		MinOrderQty float64 `yaml:"min_order_qty"`
	} `yaml:"trading"`

	API struct {
		Bitget struct {
			RestURL      string `yaml:"rest_url"`
			AccessKey    string `yaml:"access_key"`
			SecretKey    string `yaml:"secret_key"`
			Passphrase   string `yaml:"passphrase"`
			ProductType  string `yaml:"product_type"` // e.g. "USDT-FUTURES" (v2), "UMCBL" (v1)
			MarginCoin   string `yaml:"margin_coin"`
			TimeoutSec   int    `yaml:"timeout_sec"`
		} `yaml:"bitget"`
		PriceFeed struct {
			URL        string `yaml:"url"` // %s is replaced with the instrument
			Attempts   int    `yaml:"attempts"`
			BaseMillis int    `yaml:"base_millis"`
		} `yaml:"price_feed"`
	} `yaml:"api"`

	Storage struct {
		Path string `yaml:"path"`
	} `yaml:"storage"`

	Notify struct {
		Telegram struct {
			BotToken string `yaml:"bot_token"`
			ChatID   string `yaml:"chat_id"`
		} `yaml:"telegram"`
		WebhookURL string `yaml:"webhook_url"`
	} `yaml:"notify"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// LoadConfig reads and parses the config file, applies environment
// overrides, and validates the result.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}

	applyDefaults(&cfg)
	overrideWithEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8000"
	}
	if cfg.Trading.Mode == "" {
		cfg.Trading.Mode = ModeDryRun
	}
	cfg.Trading.Mode = strings.ToUpper(cfg.Trading.Mode)
	if cfg.Trading.MinOrderQty <= 0 {
		cfg.Trading.MinOrderQty = 0.001
	}
	if cfg.API.Bitget.RestURL == "" {
		cfg.API.Bitget.RestURL = "https://api.bitget.com"
	}
	if cfg.API.Bitget.ProductType == "" {
		cfg.API.Bitget.ProductType = "USDT-FUTURES"
	}
	if cfg.API.Bitget.MarginCoin == "" {
		cfg.API.Bitget.MarginCoin = "USDT"
	}
	if cfg.API.Bitget.TimeoutSec <= 0 {
		cfg.API.Bitget.TimeoutSec = 10
	}
	if cfg.API.PriceFeed.URL == "" {
		cfg.API.PriceFeed.URL = "https://api.binance.com/api/v3/ticker/price?symbol=%s"
	}
	if cfg.API.PriceFeed.Attempts <= 0 {
		cfg.API.PriceFeed.Attempts = 3
	}
	if cfg.API.PriceFeed.BaseMillis <= 0 {
		cfg.API.PriceFeed.BaseMillis = 1000
	}
	if cfg.Storage.Path == "" {
		cfg.Storage.Path = "trades.db"
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
}

// Validate checks configuration validity
func (c *Config) Validate() error {
	if c.Trading.Mode != ModeDryRun && c.Trading.Mode != ModeLive {
		return fmt.Errorf("unknown trading mode: %s", c.Trading.Mode)
	}
	if !strings.HasPrefix(c.API.Bitget.RestURL, "http://") && !strings.HasPrefix(c.API.Bitget.RestURL, "https://") {
		return fmt.Errorf("invalid Bitget REST URL: %s", c.API.Bitget.RestURL)
	}
	if !strings.Contains(c.API.PriceFeed.URL, "%s") {
		return fmt.Errorf("price feed URL must contain a %%s symbol placeholder: %s", c.API.PriceFeed.URL)
	}
	return nil
}

// overrideWithEnv lets environment variables take precedence over file
// values, so secrets never need to live on disk.
func overrideWithEnv(cfg *Config) {
	if cfg.API.Bitget.SecretKey != "" {
		fmt.Println("⚠️  SECURITY WARNING: API secret found in config file.")
		fmt.Println("   Recommendation: use environment variables instead:")
		fmt.Println("   - FLIPBOT_BITGET_KEY, FLIPBOT_BITGET_SECRET, FLIPBOT_BITGET_PASSPHRASE")
	}

	if key := os.Getenv("FLIPBOT_BITGET_KEY"); key != "" {
		cfg.API.Bitget.AccessKey = key
	}
	if secret := os.Getenv("FLIPBOT_BITGET_SECRET"); secret != "" {
		cfg.API.Bitget.SecretKey = secret
	}
	if pass := os.Getenv("FLIPBOT_BITGET_PASSPHRASE"); pass != "" {
		cfg.API.Bitget.Passphrase = pass
	}
	if secret := os.Getenv("FLIPBOT_WEBHOOK_SECRET"); secret != "" {
		cfg.Server.WebhookSecret = secret
	}
	if token := os.Getenv("FLIPBOT_TELEGRAM_TOKEN"); token != "" {
		cfg.Notify.Telegram.BotToken = token
	}
	if mode := os.Getenv("FLIPBOT_MODE"); mode != "" {
		cfg.Trading.Mode = strings.ToUpper(mode)
	}
}
