package fmp

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/moatscore/internal/provider"
	"github.com/seenimoa/moatscore/pkg/models"
)

const defaultLimit = 10

// statementEndpoints are merged into one record per fiscal year in this
// order; a field already set by an earlier endpoint is kept.
var statementEndpoints = []string{
	"/income-statement/%s",
	"/balance-sheet-statement/%s",
	"/cash-flow-statement/%s",
	"/key-metrics/%s",
}

// ratioFields are reported by key-metrics as fractions and stored as percent.
var ratioFields = []string{"roic", "roe"}

// --- FinancialRecords fetcher ---

type financialRecordsFetcher struct {
	provider.BaseFetcher
	baseURL string
}

func newFinancialRecordsFetcher(baseURL string) *financialRecordsFetcher {
	return &financialRecordsFetcher{
		BaseFetcher: provider.NewBaseFetcherWithOpts(
			provider.ModelFinancialRecords,
			"Annual income, balance sheet, cash flow and key metrics from Financial Modeling Prep",
			[]string{provider.ParamSymbol},
			[]string{provider.ParamLimit},
			1*time.Hour, 5, time.Second,
		),
		baseURL: baseURL,
	}
}

func (f *financialRecordsFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	symbol := strings.ToUpper(params[provider.ParamSymbol])
	apiKey := params[paramAPIKey]

	cacheKey := provider.CacheKey(f.ModelType(), params)
	if cached, ok := f.CacheGet(cacheKey); ok {
		return provider.NewCachedResult(cached), nil
	}

	limit := defaultLimit
	if n, err := strconv.Atoi(params[provider.ParamLimit]); err == nil && n > 0 {
		limit = n
	}

	rows := make([][]fmpRow, len(statementEndpoints))
	g, gctx := errgroup.WithContext(ctx)
	for i, endpoint := range statementEndpoints {
		i, endpoint := i, endpoint
		g.Go(func() error {
			if err := f.RateLimit(gctx); err != nil {
				return err
			}
			path := fmt.Sprintf(endpoint, symbol) + "?period=annual&limit=" + strconv.Itoa(limit)
			if err := fetchFMPJSON(gctx, f.baseURL, path, apiKey, &rows[i]); err != nil {
				return fmt.Errorf("fmp %s %s: %w", strings.Split(endpoint, "/")[1], symbol, err)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	records := mergeRecords(rows)
	if len(records) == 0 {
		return nil, &provider.ErrNoData{Provider: providerName, Query: symbol}
	}
	if len(records) > limit {
		records = records[:limit]
	}

	out := &provider.FinancialRecords{
		Company: models.Company{ID: symbol, Ticker: symbol},
		Records: records,
	}
	f.CacheSet(cacheKey, out)
	return provider.NewResult(out), nil
}

// mergeRecords joins the endpoint rows by fiscal year, newest first.
func mergeRecords(endpoints [][]fmpRow) []models.ProviderRecord {
	byYear := make(map[int]*models.ProviderRecord)
	for i, rows := range endpoints {
		isMetrics := i == len(statementEndpoints)-1
		for _, row := range rows {
			if p := row.str("period"); p != "" && p != models.PeriodFY {
				continue
			}
			fy := row.fiscalYear()
			if fy <= 1 {
				continue
			}
			rec, ok := byYear[fy]
			if !ok {
				rec = &models.ProviderRecord{
					FiscalYear: fy,
					PeriodEnd:  row.date(),
					Source:     providerName,
					Fields:     make(map[string]float64),
				}
				byYear[fy] = rec
			}
			nums := row.numbers()
			if isMetrics {
				for _, k := range ratioFields {
					if v, ok := nums[k]; ok {
						nums[k] = v * 100
					}
				}
			}
			for k, v := range nums {
				if _, set := rec.Fields[k]; !set {
					rec.Fields[k] = v
				}
			}
		}
	}

	out := make([]models.ProviderRecord, 0, len(byYear))
	for _, rec := range byYear {
		out = append(out, *rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FiscalYear > out[j].FiscalYear })
	return out
}

// --- EquityQuote fetcher ---

type equityQuoteFetcher struct {
	provider.BaseFetcher
	baseURL string
}

func newEquityQuoteFetcher(baseURL string) *equityQuoteFetcher {
	return &equityQuoteFetcher{
		BaseFetcher: provider.NewBaseFetcherWithOpts(
			provider.ModelEquityQuote,
			"Real-time equity quote from Financial Modeling Prep",
			[]string{provider.ParamSymbol},
			nil,
			15*time.Second, 5, time.Second,
		),
		baseURL: baseURL,
	}
}

func (f *equityQuoteFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	symbol := strings.ToUpper(params[provider.ParamSymbol])
	apiKey := params[paramAPIKey]

	cacheKey := provider.CacheKey(f.ModelType(), params)
	if cached, ok := f.CacheGet(cacheKey); ok {
		return provider.NewCachedResult(cached), nil
	}
	if err := f.RateLimit(ctx); err != nil {
		return nil, err
	}

	var results []fmpQuote
	if err := fetchFMPJSON(ctx, f.baseURL, "/quote/"+symbol, apiKey, &results); err != nil {
		return nil, fmt.Errorf("fmp quote %s: %w", symbol, err)
	}
	if len(results) == 0 || results[0].Price <= 0 {
		return nil, &provider.ErrNoData{Provider: providerName, Query: symbol}
	}

	r := results[0]
	q := models.Quote{
		Ticker:    r.Symbol,
		LastPrice: r.Price,
		Timestamp: time.Unix(r.Timestamp, 0).UTC(),
	}
	f.CacheSet(cacheKey, q)
	return provider.NewResult(q), nil
}
