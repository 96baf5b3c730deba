package service

import (
	"context"
	"errors"
	"math"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/moatscore/internal/config"
	"github.com/seenimoa/moatscore/internal/provider"
	"github.com/seenimoa/moatscore/internal/store"
	"github.com/seenimoa/moatscore/pkg/models"
)

var now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func clock() time.Time { return now }

type fakeFetcher struct {
	provider.BaseFetcher
	fn func(provider.QueryParams) (any, error)
}

func (f *fakeFetcher) Fetch(_ context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	data, err := f.fn(params)
	if err != nil {
		return nil, err
	}
	return provider.NewResult(data), nil
}

type fakeProvider struct {
	provider.BaseProvider
}

func newFakeProvider(name string) *fakeProvider {
	return &fakeProvider{BaseProvider: provider.NewBaseProvider(name, "fake "+name, "", nil)}
}

func (p *fakeProvider) serve(model provider.ModelType, fn func(provider.QueryParams) (any, error)) *fakeProvider {
	p.RegisterFetcher(&fakeFetcher{
		BaseFetcher: provider.NewBaseFetcher(model, "fake", []string{provider.ParamSymbol}, nil),
		fn:          fn,
	})
	return p
}

func fact(tag, unit string, fy int, val float64) models.RawFact {
	end := time.Date(fy, time.September, 30, 0, 0, 0, 0, time.UTC)
	start := end.AddDate(-1, 0, 1)
	return models.RawFact{
		ConceptTags:  []string{tag},
		Unit:         unit,
		FiscalYear:   fy,
		FiscalPeriod: models.PeriodFY,
		Form:         models.FormAnnual,
		PeriodStart:  &start,
		PeriodEnd:    end,
		Filed:        end.AddDate(0, 1, 0),
		Value:        val,
	}
}

// growerFacts is ten years of a debt-free company growing 15% a year.
func growerFacts() []models.RawFact {
	var out []models.RawFact
	for i := 0; i < 10; i++ {
		fy := 2024 - i
		k := math.Pow(1.15, float64(-i))
		out = append(out,
			fact("Revenues", "USD", fy, 1000*k),
			fact("NetIncomeLoss", "USD", fy, 100*k),
			fact("EarningsPerShareBasic", "USD/shares", fy, 5*k),
			fact("StockholdersEquity", "USD", fy, 400*k),
			fact("OperatingIncomeLoss", "USD", fy, 120*k),
			fact("NetCashProvidedByUsedInOperatingActivities", "USD", fy, 110*k),
			fact("PaymentsToAcquirePropertyPlantAndEquipment", "USD", fy, 20*k),
		)
	}
	return out
}

type fixture struct {
	svc      *Service
	store    store.Store
	factHits atomic.Int32

	mu      sync.Mutex
	filedAt time.Time
}

func newFixture(t *testing.T, cfg *config.Config, extra ...provider.Provider) *fixture {
	t.Helper()
	fx := &fixture{filedAt: now.AddDate(0, -3, 0)}

	sec := newFakeProvider("sec").
		serve(provider.ModelCompanyFacts, func(p provider.QueryParams) (any, error) {
			fx.factHits.Add(1)
			if p[provider.ParamSymbol] != "GRO" {
				return nil, &provider.ErrNoData{Provider: "sec", Query: p[provider.ParamSymbol]}
			}
			return &provider.CompanyFacts{
				Company: models.Company{ID: "0000000042", CIK: "0000000042", Ticker: "GRO", Name: "Grower Inc"},
				Facts:   growerFacts(),
			}, nil
		}).
		serve(provider.ModelAnnualFilings, func(p provider.QueryParams) (any, error) {
			fx.mu.Lock()
			defer fx.mu.Unlock()
			return []models.Filing{{CompanyID: "0000000042", Form: p[provider.ParamForm], FiledAt: fx.filedAt}}, nil
		})

	reg := provider.NewRegistry()
	require.NoError(t, reg.Register(sec))
	for _, p := range extra {
		require.NoError(t, reg.Register(p))
	}

	st, err := store.OpenBadger(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	fx.store = st
	fx.svc = New(reg, st, cfg, nil, WithClock(clock))
	return fx
}

func testConfig() *config.Config {
	cfg := config.Default()
	cfg.Analysis.Workers = 2
	return cfg
}

func TestAnalyzeFromSECFacts(t *testing.T) {
	fx := newFixture(t, testConfig())

	a, err := fx.svc.Analyze(context.Background(), Request{Ticker: " gro ", Price: models.Float(40)})
	require.NoError(t, err)

	assert.Equal(t, "GRO", a.Ticker)
	assert.Equal(t, "0000000042", a.CompanyID)
	assert.Equal(t, "Grower Inc", a.Name)
	assert.Equal(t, now, a.CalculatedAt)
	require.Len(t, a.Statements, 10)
	assert.Equal(t, 2024, a.Statements[0].FiscalYear)
	assert.Equal(t, "GRO", a.Statements[0].Ticker)

	require.NotNil(t, a.Valuation)
	assert.Equal(t, models.RecommendBuy, a.Recommendation)

	_, err = fx.svc.Latest(context.Background(), "GRO")
	assert.ErrorIs(t, err, store.ErrNotFound, "Analyze does not store")
}

func TestAnalyzeUsesConfiguredHorizon(t *testing.T) {
	cfg := testConfig()
	cfg.Analysis.MinReturnRate = 12
	cfg.Analysis.Years = 7
	fx := newFixture(t, cfg)

	a, err := fx.svc.Analyze(context.Background(), Request{Ticker: "GRO"})
	require.NoError(t, err)
	assert.Equal(t, 12.0, a.Assumptions.MinReturnRate)
	assert.Equal(t, 7, a.Assumptions.Years)
	assert.Nil(t, a.CurrentPrice, "no quote provider registered")
	assert.Empty(t, a.Recommendation)
}

func TestAnalyzeQuotesPrice(t *testing.T) {
	quotes := newFakeProvider("quotes").serve(provider.ModelEquityQuote, func(p provider.QueryParams) (any, error) {
		return models.Quote{Ticker: p[provider.ParamSymbol], LastPrice: 1000}, nil
	})
	fx := newFixture(t, testConfig(), quotes)

	a, err := fx.svc.Analyze(context.Background(), Request{Ticker: "GRO"})
	require.NoError(t, err)
	require.NotNil(t, a.CurrentPrice)
	assert.Equal(t, 1000.0, *a.CurrentPrice)
	assert.Equal(t, models.RecommendAvoid, a.Recommendation)
}

func TestAnalyzeQuoteFallsBack(t *testing.T) {
	down := newFakeProvider("down").serve(provider.ModelEquityQuote, func(p provider.QueryParams) (any, error) {
		return nil, errors.New("quota exceeded")
	})
	up := newFakeProvider("up").serve(provider.ModelEquityQuote, func(p provider.QueryParams) (any, error) {
		return models.Quote{Ticker: p[provider.ParamSymbol], LastPrice: 40}, nil
	})
	fx := newFixture(t, testConfig(), down, up)

	a, err := fx.svc.Analyze(context.Background(), Request{Ticker: "GRO"})
	require.NoError(t, err)
	require.NotNil(t, a.CurrentPrice)
	assert.Equal(t, 40.0, *a.CurrentPrice)
}

func TestAnalyzeErrors(t *testing.T) {
	fx := newFixture(t, testConfig())

	_, err := fx.svc.Analyze(context.Background(), Request{Ticker: "  "})
	assert.EqualError(t, err, "ticker is required")

	_, err = fx.svc.Analyze(context.Background(), Request{Ticker: "NOPE"})
	var noData *provider.ErrNoData
	assert.True(t, errors.As(err, &noData))

	_, err = fx.svc.Analyze(context.Background(), Request{
		Ticker:      "GRO",
		Assumptions: &models.ValuationInput{FuturePE: -1},
	})
	assert.ErrorContains(t, err, "future_pe")
}

func TestAnalyzeFromRecords(t *testing.T) {
	records := newFakeProvider("screener").serve(provider.ModelFinancialRecords, func(p provider.QueryParams) (any, error) {
		assert.Equal(t, "3", p[provider.ParamLimit])
		var recs []models.ProviderRecord
		for fy := 2024; fy > 2019; fy-- {
			recs = append(recs, models.ProviderRecord{
				FiscalYear: fy,
				Source:     "screener",
				Fields: map[string]float64{
					"Sales":     float64(fy),
					"EPS in Rs": 10,
				},
			})
		}
		return &provider.FinancialRecords{
			Company: models.Company{ID: "TCS", Ticker: "TCS", Exchange: "NSE"},
			Records: recs,
		}, nil
	})

	cfg := testConfig()
	cfg.Providers.Source = "screener"
	cfg.Analysis.Depth = 3
	fx := newFixture(t, cfg, records)

	a, err := fx.svc.Analyze(context.Background(), Request{Ticker: "TCS", Price: models.Float(100)})
	require.NoError(t, err)
	require.Len(t, a.Statements, 3)
	assert.Equal(t, 2024, a.Statements[0].FiscalYear)
	assert.Equal(t, "TCS", a.Statements[0].CompanyID)
	assert.Equal(t, int32(0), fx.factHits.Load())
}

func TestRefreshStoresAndLatest(t *testing.T) {
	fx := newFixture(t, testConfig())
	ctx := context.Background()

	a, err := fx.svc.Refresh(ctx, Request{Ticker: "GRO", Price: models.Float(40)})
	require.NoError(t, err)

	got, err := fx.svc.Latest(ctx, "gro")
	require.NoError(t, err)
	assert.Equal(t, a.ID, got.ID)
	assert.Equal(t, a.Score.ValueScore, got.Score.ValueScore)

	stmts, err := fx.store.Statements(ctx, "0000000042", 0)
	require.NoError(t, err)
	assert.Len(t, stmts, 10)
}

func TestStale(t *testing.T) {
	cfg := testConfig()
	cfg.Analysis.StaleAfter = 24
	fx := newFixture(t, cfg)
	ctx := context.Background()

	stale, err := fx.svc.Stale(ctx, "GRO")
	require.NoError(t, err)
	assert.True(t, stale, "nothing stored")

	_, err = fx.svc.Refresh(ctx, Request{Ticker: "GRO"})
	require.NoError(t, err)

	stale, err = fx.svc.Stale(ctx, "GRO")
	require.NoError(t, err)
	assert.False(t, stale)

	// A 10-K filed after the analysis makes it stale.
	fx.mu.Lock()
	fx.filedAt = now.Add(time.Hour)
	fx.mu.Unlock()
	stale, err = fx.svc.Stale(ctx, "GRO")
	require.NoError(t, err)
	assert.True(t, stale)

	fx.mu.Lock()
	fx.filedAt = now.AddDate(-1, 0, 0)
	fx.mu.Unlock()
	fx.svc.now = func() time.Time { return now.Add(25 * time.Hour) }
	stale, err = fx.svc.Stale(ctx, "GRO")
	require.NoError(t, err)
	assert.True(t, stale, "older than stale_after")
}

func TestRefreshAll(t *testing.T) {
	fx := newFixture(t, testConfig())
	ctx := context.Background()

	var calls atomic.Int32
	res, err := fx.svc.RefreshAll(ctx, []string{"gro", "GRO", "NOPE", ""}, false,
		func(done, total int, a *models.CompanyAnalysis, err error) {
			calls.Add(1)
			assert.Equal(t, 2, total)
		})
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())
	require.Len(t, res.Analyses, 1)
	assert.Equal(t, "GRO", res.Analyses[0].Ticker)
	require.Len(t, res.Failures, 1)
	assert.Equal(t, "NOPE", res.Failures[0].Ticker)
	assert.Equal(t, int32(2), fx.factHits.Load())

	// Fresh analyses come from the store.
	res, err = fx.svc.RefreshAll(ctx, []string{"GRO"}, false, nil)
	require.NoError(t, err)
	require.Len(t, res.Analyses, 1)
	assert.Equal(t, int32(2), fx.factHits.Load())

	_, err = fx.svc.RefreshAll(ctx, []string{"GRO"}, true, nil)
	require.NoError(t, err)
	assert.Equal(t, int32(3), fx.factHits.Load())
}

func TestNoStore(t *testing.T) {
	reg := provider.NewRegistry()
	svc := New(reg, nil, testConfig(), nil)
	_, err := svc.Latest(context.Background(), "GRO")
	assert.ErrorIs(t, err, store.ErrNotFound)
}
