// Package yfinance implements the Yahoo Finance data provider.
// It serves last-price quotes from Yahoo's public v8 chart API, which needs
// no API key and covers US and Indian listings alike.
package yfinance

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/seenimoa/moatscore/internal/infra"
	"github.com/seenimoa/moatscore/internal/provider"
)

const (
	providerName   = "yfinance"
	defaultBaseURL = "https://query1.finance.yahoo.com"
)

// Options configure the provider.
type Options struct {
	// BaseURL replaces the public API host.
	BaseURL string

	// Suffix is appended to bare tickers, e.g. ".NS" to quote NSE listings
	// for companies read from Screener.in.
	Suffix string
}

// Provider implements provider.Provider for Yahoo Finance.
type Provider struct {
	provider.BaseProvider
	baseURL string
	suffix  string
}

// New creates a new YFinance provider and registers its fetchers.
func New(opts Options) *Provider {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = defaultBaseURL
	}
	p := &Provider{
		BaseProvider: provider.NewBaseProvider(
			providerName,
			"Yahoo Finance - free global quotes",
			"https://finance.yahoo.com",
			nil, // no credentials required
		),
		baseURL: base,
		suffix:  opts.Suffix,
	}

	p.RegisterFetcher(newEquityQuoteFetcher(p.baseURL, p.suffix))
	return p
}

// Ping checks connectivity to Yahoo Finance.
func (p *Provider) Ping(ctx context.Context) error {
	body, _, err := infra.DoGet(ctx, chartURL(p.baseURL, "AAPL"), jsonHeaders())
	if err != nil {
		return fmt.Errorf("yfinance ping: %w", err)
	}
	body.Close()
	return nil
}

// --- Shared helpers ---

func jsonHeaders() map[string]string {
	return map[string]string{"Accept": "application/json"}
}

func chartURL(base, yfTicker string) string {
	return fmt.Sprintf("%s/v8/finance/chart/%s?range=1d&interval=1d", base, yfTicker)
}

// fetchJSON performs a GET request and decodes the response into dest.
func fetchJSON(ctx context.Context, url string, dest any) error {
	body, _, err := infra.DoGet(ctx, url, jsonHeaders())
	if err != nil {
		return err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("parse JSON: %w", err)
	}
	return nil
}

// toYFTicker converts a symbol to Yahoo Finance format.
func toYFTicker(symbol, suffix string) string {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	// If it already looks like a global YF ticker (has . or ^), leave it.
	if strings.Contains(symbol, ".") || strings.HasPrefix(symbol, "^") {
		return symbol
	}
	return symbol + suffix
}

// fromYFTicker strips the exchange suffix from a Yahoo Finance ticker.
func fromYFTicker(yfTicker string) string {
	if i := strings.LastIndex(yfTicker, "."); i > 0 {
		return yfTicker[:i]
	}
	return yfTicker
}
