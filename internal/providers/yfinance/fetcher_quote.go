package yfinance

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/seenimoa/moatscore/internal/infra"
	"github.com/seenimoa/moatscore/internal/provider"
	"github.com/seenimoa/moatscore/pkg/models"
)

// --- EquityQuote fetcher ---

type equityQuoteFetcher struct {
	provider.BaseFetcher
	baseURL string
	suffix  string
}

func newEquityQuoteFetcher(baseURL, suffix string) *equityQuoteFetcher {
	return &equityQuoteFetcher{
		BaseFetcher: provider.NewBaseFetcherWithOpts(
			provider.ModelEquityQuote,
			"Last traded price from the Yahoo Finance chart API",
			[]string{provider.ParamSymbol},
			nil,
			5*time.Minute, 5, time.Second,
		),
		baseURL: baseURL,
		suffix:  suffix,
	}
}

func (f *equityQuoteFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	symbol := params[provider.ParamSymbol]
	if symbol == "" {
		return nil, &provider.ErrMissingParam{Param: provider.ParamSymbol}
	}
	yfTicker := toYFTicker(symbol, f.suffix)

	cacheKey := provider.CacheKey(f.ModelType(), params)
	if cached, ok := f.CacheGet(cacheKey); ok {
		return provider.NewCachedResult(cached), nil
	}

	if err := f.RateLimit(ctx); err != nil {
		return nil, err
	}

	var resp yfChartResponse
	if err := fetchJSON(ctx, chartURL(f.baseURL, yfTicker), &resp); err != nil {
		var se *infra.StatusError
		if errors.As(err, &se) && se.NotFound() {
			return nil, &provider.ErrNoData{Provider: providerName, Query: yfTicker}
		}
		return nil, fmt.Errorf("yfinance chart %s: %w", yfTicker, err)
	}

	if resp.Chart.Error != nil {
		return nil, fmt.Errorf("yfinance chart error: %s", resp.Chart.Error.Description)
	}
	if len(resp.Chart.Result) == 0 || resp.Chart.Result[0].Meta.RegularMarketPrice <= 0 {
		return nil, &provider.ErrNoData{Provider: providerName, Query: yfTicker}
	}

	meta := resp.Chart.Result[0].Meta
	q := models.Quote{
		Ticker:    fromYFTicker(meta.Symbol),
		LastPrice: meta.RegularMarketPrice,
		Timestamp: time.Unix(meta.RegularMarketTime, 0).UTC(),
	}
	f.CacheSet(cacheKey, q)
	return provider.NewResult(q), nil
}
