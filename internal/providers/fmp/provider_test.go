package fmp

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/moatscore/internal/provider"
	"github.com/seenimoa/moatscore/pkg/models"
)

var fixtures = map[string]string{
	"/income-statement/AAPL": `[
		{"date": "2023-09-30", "symbol": "AAPL", "calendarYear": "2023", "period": "FY", "revenue": 383285000000, "netIncome": 96995000000, "eps": 6.16, "epsdiluted": 6.13, "weightedAverageShsOut": 15744231000, "operatingIncome": 114301000000},
		{"date": "2022-09-24", "symbol": "AAPL", "calendarYear": "2022", "period": "FY", "revenue": 394328000000, "netIncome": 99803000000, "eps": 6.15, "operatingIncome": null}
	]`,
	"/balance-sheet-statement/AAPL": `[
		{"date": "2023-09-30", "calendarYear": "2023", "period": "FY", "totalStockholdersEquity": 62146000000, "longTermDebt": 95281000000, "netIncome": 1},
		{"date": "2022-09-24", "calendarYear": "2022", "period": "FY", "totalStockholdersEquity": 50672000000}
	]`,
	"/cash-flow-statement/AAPL": `[
		{"date": "2023-09-30", "calendarYear": "2023", "period": "FY", "operatingCashFlow": 110543000000, "capitalExpenditure": -10959000000, "freeCashFlow": 99584000000}
	]`,
	"/key-metrics/AAPL": `[
		{"date": "2023-09-30", "calendarYear": "2023", "period": "FY", "roic": 0.5598, "roe": 1.5608, "bookValuePerShare": 3.99},
		{"date": "2021-09-25", "fiscalYear": 2021, "period": "FY", "roic": 0.5}
	]`,
	"/quote/AAPL": `[{"symbol": "AAPL", "name": "Apple Inc.", "price": 189.95, "eps": 6.13, "timestamp": 1700000000}]`,
	"/quote/NONE": `[]`,
	"/income-statement/LIMIT": `{"Error Message": "Limit Reach . Please upgrade your plan."}`,
}

func newTestProvider(t *testing.T) *Provider {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test_key", r.URL.Query().Get("apikey"))
		body, ok := fixtures[r.URL.Path]
		if !ok {
			body = "[]"
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	p := New(srv.URL)
	require.NoError(t, p.Init(map[string]string{"api_key": "test_key"}))
	return p
}

func TestProviderInfo(t *testing.T) {
	p := New("")
	info := p.Info()
	if info.Name != "fmp" {
		t.Errorf("expected name fmp, got %s", info.Name)
	}
	if len(info.Credentials) != 1 {
		t.Fatalf("expected 1 credential, got %d", len(info.Credentials))
	}
	if info.Credentials[0].Name != "api_key" || !info.Credentials[0].Required {
		t.Errorf("expected required api_key credential, got %+v", info.Credentials[0])
	}
	assert.Equal(t, []provider.ModelType{provider.ModelEquityQuote, provider.ModelFinancialRecords}, p.SupportedModels())
}

func TestProviderInit(t *testing.T) {
	p := New("")
	if err := p.Init(map[string]string{}); err == nil {
		t.Error("expected error for missing api_key")
	}
	if err := p.Init(map[string]string{"api_key": "test_key_123"}); err != nil {
		t.Fatalf("Init: %v", err)
	}
	if p.APIKey() != "test_key_123" {
		t.Errorf("expected api key test_key_123, got %s", p.APIKey())
	}
}

func TestFetcherIsWrapped(t *testing.T) {
	p := New("")
	f := p.Fetcher(provider.ModelFinancialRecords)
	wrapper, ok := f.(*apiKeyInjector)
	if !ok {
		t.Fatalf("expected apiKeyInjector, got %T", f)
	}
	if wrapper.ModelType() != provider.ModelFinancialRecords {
		t.Errorf("wrong model type: %s", wrapper.ModelType())
	}
	if got := wrapper.RequiredParams(); len(got) != 1 || got[0] != provider.ParamSymbol {
		t.Errorf("unexpected required params: %v", got)
	}
	if p.Fetcher(provider.ModelCompanyFacts) != nil {
		t.Error("expected nil fetcher for unsupported model")
	}
}

func TestFinancialRecords(t *testing.T) {
	p := newTestProvider(t)
	res, err := p.Fetcher(provider.ModelFinancialRecords).Fetch(context.Background(), provider.QueryParams{
		provider.ParamSymbol: "aapl",
	})
	require.NoError(t, err)

	fr, ok := res.Data.(*provider.FinancialRecords)
	require.True(t, ok, "got %T", res.Data)
	assert.Equal(t, "AAPL", fr.Company.Ticker)
	require.Len(t, fr.Records, 3)
	assert.Equal(t, []int{2023, 2022, 2021}, []int{fr.Records[0].FiscalYear, fr.Records[1].FiscalYear, fr.Records[2].FiscalYear})

	latest := fr.Records[0]
	assert.Equal(t, "fmp", latest.Source)
	assert.Equal(t, 2023, latest.PeriodEnd.Year())
	assert.Equal(t, 383285000000.0, latest.Fields["revenue"])
	assert.Equal(t, 62146000000.0, latest.Fields["totalStockholdersEquity"])
	assert.Equal(t, -10959000000.0, latest.Fields["capitalExpenditure"])
	assert.Equal(t, 96995000000.0, latest.Fields["netIncome"], "income statement wins over later endpoints")
	assert.InDelta(t, 55.98, latest.Fields["roic"], 1e-9)
	assert.InDelta(t, 156.08, latest.Fields["roe"], 1e-9)

	_, hasOpInc := fr.Records[1].Get("operatingIncome")
	assert.False(t, hasOpInc, "null stays absent")
	_, hasDate := latest.Get("date")
	assert.False(t, hasDate)
}

func TestFinancialRecordsLimit(t *testing.T) {
	p := newTestProvider(t)
	res, err := p.Fetcher(provider.ModelFinancialRecords).Fetch(context.Background(), provider.QueryParams{
		provider.ParamSymbol: "AAPL",
		provider.ParamLimit:  "2",
	})
	require.NoError(t, err)
	assert.Len(t, res.Data.(*provider.FinancialRecords).Records, 2)
}

func TestFinancialRecordsErrors(t *testing.T) {
	p := newTestProvider(t)
	ctx := context.Background()

	_, err := p.Fetcher(provider.ModelFinancialRecords).Fetch(ctx, provider.QueryParams{provider.ParamSymbol: "EMPTY"})
	var noData *provider.ErrNoData
	assert.True(t, errors.As(err, &noData), "got %v", err)

	_, err = p.Fetcher(provider.ModelFinancialRecords).Fetch(ctx, provider.QueryParams{provider.ParamSymbol: "LIMIT"})
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "Limit Reach"), err.Error())
}

func TestEquityQuote(t *testing.T) {
	p := newTestProvider(t)
	q, _, err := provider.FetchAs[models.Quote](context.Background(), registryWith(t, p), provider.ModelEquityQuote,
		provider.QueryParams{provider.ParamSymbol: "AAPL"})
	require.NoError(t, err)
	assert.Equal(t, "AAPL", q.Ticker)
	assert.Equal(t, 189.95, q.LastPrice)
	assert.Equal(t, int64(1700000000), q.Timestamp.Unix())

	_, err = p.Fetcher(provider.ModelEquityQuote).Fetch(context.Background(), provider.QueryParams{provider.ParamSymbol: "NONE"})
	var noData *provider.ErrNoData
	assert.True(t, errors.As(err, &noData), "got %v", err)
}

func registryWith(t *testing.T, p provider.Provider) *provider.Registry {
	t.Helper()
	reg := provider.NewRegistry()
	require.NoError(t, reg.Register(p))
	return reg
}

func TestHelperFmpURL(t *testing.T) {
	tests := []struct {
		path, key, want string
	}{
		{"/quote/AAPL", "abc", "https://financialmodelingprep.com/api/v3/quote/AAPL?apikey=abc"},
		{"/key-metrics/AAPL?period=annual&limit=10", "xyz", "https://financialmodelingprep.com/api/v3/key-metrics/AAPL?period=annual&limit=10&apikey=xyz"},
	}

	for _, tt := range tests {
		got := fmpURL(defaultBaseURL, tt.path, tt.key)
		if got != tt.want {
			t.Errorf("fmpURL(%q, %q) = %q, want %q", tt.path, tt.key, got, tt.want)
		}
	}
}
