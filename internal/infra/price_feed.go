package infra

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"time"
)

// ErrPriceUnavailable is returned when no price could be resolved within the
// bounded retry budget. Callers must fail the signal rather than guess.
var ErrPriceUnavailable = errors.New("price unavailable")

// binanceTickerResponse is the public ticker shape; price arrives as a string.
type binanceTickerResponse struct {
	Symbol string `json:"symbol"`
	Price  string `json:"price"`
}

// PriceFeed resolves a reference price for an instrument from a public
// ticker endpoint, with bounded exponential-backoff retries. It is
// consulted when a signal carries a notional amount but no price, and when
// a close response omits the exit price.
type PriceFeed struct {
	urlTemplate string // %s replaced with the instrument code
	attempts    int
	base        time.Duration
	httpClient  *http.Client
}

// NewPriceFeed creates a feed from config.
func NewPriceFeed(cfg *Config) *PriceFeed {
	return &PriceFeed{
		urlTemplate: cfg.API.PriceFeed.URL,
		attempts:    cfg.API.PriceFeed.Attempts,
		base:        time.Duration(cfg.API.PriceFeed.BaseMillis) * time.Millisecond,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// NewPriceFeedWithURL creates a feed against a specific endpoint, used by tests.
func NewPriceFeedWithURL(urlTemplate string, attempts int, base time.Duration) *PriceFeed {
	return &PriceFeed{
		urlTemplate: urlTemplate,
		attempts:    attempts,
		base:        base,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Price fetches the current price for the canonical instrument code.
// Returns ErrPriceUnavailable after exhausting retries.
func (f *PriceFeed) Price(ctx context.Context, instrument string) (float64, error) {
	var price float64

	err := Retry(ctx, f.attempts, f.base, func(ctx context.Context) error {
		p, err := f.fetch(ctx, instrument)
		if err != nil {
			slog.Warn("Price fetch attempt failed",
				slog.String("instrument", instrument),
				slog.Any("error", err))
			return err
		}
		price = p
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("%w: %s: %v", ErrPriceUnavailable, instrument, err)
	}
	return price, nil
}

func (f *PriceFeed) fetch(ctx context.Context, instrument string) (float64, error) {
	url := fmt.Sprintf(f.urlTemplate, instrument)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, err
	}

	var data binanceTickerResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return 0, err
	}

	price, err := strconv.ParseFloat(data.Price, 64)
	if err != nil {
		return 0, fmt.Errorf("unparseable price %q: %w", data.Price, err)
	}
	if price <= 0 {
		return 0, fmt.Errorf("non-positive price %v for %s", price, instrument)
	}
	return price, nil
}
