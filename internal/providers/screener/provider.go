// Package screener implements a data provider that scrapes the multi-year
// financial tables of Screener.in company pages.
//
// No API key required. Pages are HTML; be conservative with request rates.
package screener

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/seenimoa/moatscore/internal/infra"
	"github.com/seenimoa/moatscore/internal/provider"
	"github.com/seenimoa/moatscore/pkg/models"
)

const (
	providerName   = "screener"
	defaultBaseURL = "https://www.screener.in"
	defaultLimit   = 10
)

// Provider implements provider.Provider for Screener.in.
type Provider struct {
	provider.BaseProvider
	baseURL string
}

// New creates a Screener.in provider. An empty baseURL selects the public site.
func New(baseURL string) *Provider {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	p := &Provider{
		BaseProvider: provider.NewBaseProvider(
			providerName,
			"Screener.in - Indian company annual financials",
			defaultBaseURL,
			nil,
		),
		baseURL: strings.TrimRight(baseURL, "/"),
	}
	p.RegisterFetcher(newFinancialRecordsFetcher(p.baseURL))
	return p
}

// Ping checks that the site answers.
func (p *Provider) Ping(ctx context.Context) error {
	body, _, err := infra.DoGet(ctx, p.baseURL+"/", htmlHeaders())
	if err != nil {
		return fmt.Errorf("screener ping: %w", err)
	}
	body.Close()
	return nil
}

func htmlHeaders() map[string]string {
	return map[string]string{
		"Accept":     "text/html",
		"User-Agent": "Mozilla/5.0 (compatible; moatscore/1.0)",
	}
}

// --- FinancialRecords fetcher ---

type financialRecordsFetcher struct {
	provider.BaseFetcher
	baseURL string
}

func newFinancialRecordsFetcher(baseURL string) *financialRecordsFetcher {
	return &financialRecordsFetcher{
		BaseFetcher: provider.NewBaseFetcherWithOpts(
			provider.ModelFinancialRecords,
			"Annual profit & loss, balance sheet, cash flow and ratios scraped from Screener.in",
			[]string{provider.ParamSymbol},
			[]string{provider.ParamLimit},
			1*time.Hour, 1, time.Second,
		),
		baseURL: baseURL,
	}
}

func (f *financialRecordsFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	symbol := strings.ToUpper(strings.TrimSpace(params[provider.ParamSymbol]))

	cacheKey := provider.CacheKey(f.ModelType(), params)
	if cached, ok := f.CacheGet(cacheKey); ok {
		return provider.NewCachedResult(cached), nil
	}

	limit := defaultLimit
	if n, err := strconv.Atoi(params[provider.ParamLimit]); err == nil && n > 0 {
		limit = n
	}

	doc, err := f.fetchPage(ctx, symbol)
	if err != nil {
		return nil, err
	}

	records := parseRecords(doc)
	if len(records) == 0 {
		return nil, &provider.ErrNoData{Provider: providerName, Query: symbol}
	}
	if len(records) > limit {
		records = records[:limit]
	}

	name := strings.TrimSpace(doc.Find("h1").First().Text())
	out := &provider.FinancialRecords{
		Company: models.Company{ID: symbol, Ticker: symbol, Name: name, Exchange: "NSE"},
		Records: records,
	}
	f.CacheSet(cacheKey, out)
	return provider.NewResult(out), nil
}

// fetchPage downloads the consolidated company page, falling back to the
// standalone page when the company has no consolidated accounts.
func (f *financialRecordsFetcher) fetchPage(ctx context.Context, symbol string) (*goquery.Document, error) {
	if err := f.RateLimit(ctx); err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/company/%s/consolidated/", f.baseURL, symbol)
	body, _, err := infra.DoGet(ctx, url, htmlHeaders())
	if err != nil {
		var se *infra.StatusError
		if !errors.As(err, &se) || !se.NotFound() {
			return nil, fmt.Errorf("screener.in %s: %w", symbol, err)
		}
		url = fmt.Sprintf("%s/company/%s/", f.baseURL, symbol)
		body, _, err = infra.DoGet(ctx, url, htmlHeaders())
		if err != nil {
			if errors.As(err, &se) && se.NotFound() {
				return nil, &provider.ErrNoData{Provider: providerName, Query: symbol}
			}
			return nil, fmt.Errorf("screener.in %s: %w", symbol, err)
		}
	}
	defer body.Close()

	doc, err := goquery.NewDocumentFromReader(body)
	if err != nil {
		return nil, fmt.Errorf("parse screener HTML: %w", err)
	}
	return doc, nil
}
