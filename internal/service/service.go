// Package service wires the data providers, the statement normalizer, the
// scoring engine and the store into refresh and lookup operations.
package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/phuslu/log"

	"github.com/seenimoa/moatscore/internal/config"
	"github.com/seenimoa/moatscore/internal/engine"
	"github.com/seenimoa/moatscore/internal/logging"
	"github.com/seenimoa/moatscore/internal/normalize"
	"github.com/seenimoa/moatscore/internal/provider"
	"github.com/seenimoa/moatscore/internal/store"
	"github.com/seenimoa/moatscore/pkg/models"
)

const sourceSEC = "sec"

// Request describes one company to analyze.
type Request struct {
	Ticker string

	// Price is the current share price. When nil the service asks any
	// provider serving quotes and carries on without one if none answers.
	Price *float64

	// Assumptions replace the estimated valuation inputs.
	Assumptions *models.ValuationInput
}

// Service runs the fetch, normalize, analyze and store pipeline.
type Service struct {
	reg    *provider.Registry
	store  store.Store
	source string
	cfg    config.AnalysisConfig
	logger *log.Logger
	now    func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New creates a Service. st may be nil for analysis without persistence and
// logger nil to log nothing.
func New(reg *provider.Registry, st store.Store, cfg *config.Config, logger *log.Logger, opts ...Option) *Service {
	s := &Service{
		reg:    reg,
		store:  st,
		source: cfg.Providers.Source,
		cfg:    cfg.Analysis,
		logger: logger,
		now:    time.Now,
	}
	if s.source == "" {
		s.source = sourceSEC
	}
	if s.logger == nil {
		s.logger = logging.Discard()
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Analyze fetches and scores one company without storing anything.
func (s *Service) Analyze(ctx context.Context, req Request) (*models.CompanyAnalysis, error) {
	ticker := strings.ToUpper(strings.TrimSpace(req.Ticker))
	if ticker == "" {
		return nil, errors.New("ticker is required")
	}

	start := s.now()
	company, stmts, err := s.statements(ctx, ticker)
	if err != nil {
		return nil, err
	}

	price := req.Price
	if price == nil {
		price = s.quote(ctx, ticker)
	}

	a, err := engine.Analyze(company, stmts, engine.Options{
		Assumptions:   req.Assumptions,
		CurrentPrice:  price,
		MinReturnRate: s.cfg.MinReturnRate,
		Years:         s.cfg.Years,
		Now:           s.now,
	})
	if err != nil {
		return nil, fmt.Errorf("analyze %s: %w", ticker, err)
	}

	s.logger.Info().
		Str("ticker", ticker).
		Str("company_id", company.ID).
		Int("statements", len(stmts)).
		Int("value_score", a.Score.ValueScore).
		Dur("took", s.now().Sub(start)).
		Msg("company analyzed")
	return &a, nil
}

// Refresh analyzes one company and stores its statements and analysis.
func (s *Service) Refresh(ctx context.Context, req Request) (*models.CompanyAnalysis, error) {
	a, err := s.Analyze(ctx, req)
	if err != nil {
		return nil, err
	}
	if s.store == nil {
		return a, nil
	}
	if err := s.store.SaveStatements(ctx, a.Statements); err != nil {
		return nil, err
	}
	if err := s.store.SaveAnalysis(ctx, *a); err != nil {
		return nil, err
	}
	return a, nil
}

// RefreshAll refreshes tickers concurrently. Unless force is set, companies
// whose stored analysis is still fresh are returned from the store.
func (s *Service) RefreshAll(ctx context.Context, tickers []string, force bool, progress engine.Progress) (*engine.BatchResult, error) {
	seen := make(map[string]bool, len(tickers))
	companies := make([]models.Company, 0, len(tickers))
	for _, t := range tickers {
		t = strings.ToUpper(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		companies = append(companies, models.Company{Ticker: t})
	}

	s.logger.Info().Int("companies", len(companies)).Int("workers", s.cfg.Workers).Bool("force", force).Msg("batch refresh started")

	res, err := engine.Run(ctx, companies, s.cfg.Workers, func(ctx context.Context, c models.Company) (models.CompanyAnalysis, error) {
		if !force {
			if a, ok := s.freshAnalysis(ctx, c.Ticker); ok {
				return *a, nil
			}
		}
		a, err := s.Refresh(ctx, Request{Ticker: c.Ticker})
		if err != nil {
			return models.CompanyAnalysis{}, err
		}
		return *a, nil
	}, progress)
	if err != nil {
		return nil, err
	}

	for _, f := range res.Failures {
		s.logger.Warn().Str("ticker", f.Ticker).Err(f.Err).Msg("company refresh failed")
	}
	s.logger.Info().Int("analyzed", len(res.Analyses)).Int("failed", len(res.Failures)).Msg("batch refresh finished")
	return res, nil
}

// Latest returns the stored analysis for ticker.
func (s *Service) Latest(ctx context.Context, ticker string) (*models.CompanyAnalysis, error) {
	if s.store == nil {
		return nil, store.ErrNotFound
	}
	return s.store.LatestAnalysisByTicker(ctx, ticker)
}

// Stale reports whether the stored analysis for ticker should be
// recomputed: none exists, it is older than the configured age, or (for
// SEC data) an annual report was filed after it was calculated.
func (s *Service) Stale(ctx context.Context, ticker string) (bool, error) {
	a, err := s.Latest(ctx, ticker)
	if errors.Is(err, store.ErrNotFound) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	if s.cfg.StaleAfter > 0 && s.now().Sub(a.CalculatedAt) > time.Duration(s.cfg.StaleAfter)*time.Hour {
		return true, nil
	}
	if s.source != sourceSEC {
		return false, nil
	}

	filing, err := s.LatestAnnualFiling(ctx, ticker)
	if err != nil {
		var noData *provider.ErrNoData
		if errors.As(err, &noData) {
			return false, nil
		}
		return false, err
	}
	return filing.FiledAt.After(a.CalculatedAt), nil
}

// LatestAnnualFiling returns the newest 10-K listed for ticker.
func (s *Service) LatestAnnualFiling(ctx context.Context, ticker string) (*models.Filing, error) {
	filings, _, err := provider.FetchAs[[]models.Filing](ctx, s.reg, provider.ModelAnnualFilings, provider.QueryParams{
		provider.ParamSymbol: ticker,
		provider.ParamForm:   models.FormAnnual,
		provider.ParamLimit:  "1",
	})
	if err != nil {
		return nil, err
	}
	if len(filings) == 0 {
		return nil, &provider.ErrNoData{Provider: sourceSEC, Query: ticker}
	}
	return &filings[0], nil
}

func (s *Service) freshAnalysis(ctx context.Context, ticker string) (*models.CompanyAnalysis, bool) {
	stale, err := s.Stale(ctx, ticker)
	if err != nil {
		s.logger.Debug().Str("ticker", ticker).Err(err).Msg("freshness check failed")
		return nil, false
	}
	if stale {
		return nil, false
	}
	a, err := s.Latest(ctx, ticker)
	if err != nil {
		return nil, false
	}
	s.logger.Debug().Str("ticker", ticker).Time("calculated_at", a.CalculatedAt).Msg("stored analysis is fresh")
	return a, true
}

// statements fetches and normalizes up to the configured depth of annual
// statements from the configured source.
func (s *Service) statements(ctx context.Context, ticker string) (models.Company, []models.NormalizedFinancialStatement, error) {
	depth := s.cfg.Depth
	if depth <= 0 {
		depth = normalize.DefaultDepth
	}

	var (
		company models.Company
		stmts   []models.NormalizedFinancialStatement
	)
	if s.source == sourceSEC {
		facts, _, err := provider.FetchAs[*provider.CompanyFacts](ctx, s.reg, provider.ModelCompanyFacts, provider.QueryParams{
			provider.ParamSymbol: ticker,
		})
		if err != nil {
			return models.Company{}, nil, err
		}
		company = facts.Company
		stmts = normalize.FromFacts(company.ID, models.NewFactSet(company.ID, facts.Facts), depth)
	} else {
		recs, _, err := provider.FetchAs[*provider.FinancialRecords](ctx, s.reg, provider.ModelFinancialRecords, provider.QueryParams{
			provider.ParamSymbol:   ticker,
			provider.ParamLimit:    strconv.Itoa(depth),
			provider.ParamProvider: s.source,
		})
		if err != nil {
			return models.Company{}, nil, err
		}
		company = recs.Company
		stmts = normalize.FromRecords(company.ID, recs.Records, depth)
	}

	if company.Ticker == "" {
		company.Ticker = ticker
	}
	for i := range stmts {
		stmts[i].Ticker = company.Ticker
	}
	return company, stmts, nil
}

// quote returns the last price from the first provider that can quote
// ticker, or nil when none can.
func (s *Service) quote(ctx context.Context, ticker string) *float64 {
	if len(s.reg.ProvidersFor(provider.ModelEquityQuote)) == 0 {
		return nil
	}
	res, err := s.reg.FetchWithFallback(ctx, provider.ModelEquityQuote, provider.QueryParams{
		provider.ParamSymbol: ticker,
	})
	if err != nil {
		s.logger.Debug().Str("ticker", ticker).Err(err).Msg("no quote, analyzing without price")
		return nil
	}
	q, ok := res.Data.(models.Quote)
	if !ok || q.LastPrice <= 0 {
		return nil
	}
	return models.Float(q.LastPrice)
}
