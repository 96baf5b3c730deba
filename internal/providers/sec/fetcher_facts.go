package sec

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/seenimoa/moatscore/internal/infra"
	"github.com/seenimoa/moatscore/internal/provider"
	"github.com/seenimoa/moatscore/pkg/models"
)

// ---- CompanyFacts fetcher ----
// Downloads the XBRL company facts document and flattens it into raw facts.

type companyFactsFetcher struct {
	provider.BaseFetcher
	client *client
	ciks   *CIKCache
}

func newCompanyFactsFetcher(c *client, ciks *CIKCache) *companyFactsFetcher {
	return &companyFactsFetcher{
		BaseFetcher: provider.NewBaseFetcherWithOpts(
			provider.ModelCompanyFacts,
			"XBRL company facts from SEC EDGAR",
			[]string{provider.ParamSymbol},
			[]string{provider.ParamCIK},
			1*time.Hour, 8, time.Second,
		),
		client: c,
		ciks:   ciks,
	}
}

func (f *companyFactsFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	symbol := params[provider.ParamSymbol]
	cacheKey := provider.CacheKey(f.ModelType(), params)
	if cached, ok := f.CacheGet(cacheKey); ok {
		return provider.NewCachedResult(cached), nil
	}

	company, err := resolveCompany(ctx, f.ciks, params)
	if err != nil {
		return nil, fmt.Errorf("sec company facts resolve CIK for %s: %w", symbol, err)
	}
	if err := f.RateLimit(ctx); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/api/xbrl/companyfacts/CIK%s.json", f.client.dataURL, company.CIK)
	var resp edgarCompanyFactsResponse
	if err := f.client.getJSON(ctx, u, &resp); err != nil {
		var se *infra.StatusError
		if errors.As(err, &se) && se.NotFound() {
			return nil, &provider.ErrNoData{Provider: providerName, Query: symbol}
		}
		return nil, fmt.Errorf("sec company facts: %w", err)
	}
	if resp.EntityName != "" {
		company.Name = resp.EntityName
	}

	out := &provider.CompanyFacts{Company: company, Facts: flattenFacts(resp)}
	if len(out.Facts) == 0 {
		return nil, &provider.ErrNoData{Provider: providerName, Query: symbol}
	}

	f.CacheSet(cacheKey, out)
	return provider.NewResult(out), nil
}

// flattenFacts turns the taxonomy/concept/unit tree into one RawFact per
// reported value, in a stable order. Entries without a parseable period end
// are skipped.
func flattenFacts(resp edgarCompanyFactsResponse) []models.RawFact {
	var out []models.RawFact
	for _, taxonomy := range sortedKeys(resp.Facts) {
		concepts := resp.Facts[taxonomy]
		for _, concept := range sortedKeys(concepts) {
			units := concepts[concept].Units
			for _, unit := range sortedKeys(units) {
				for _, u := range units[unit] {
					end := parseSECDate(u.End)
					if end.IsZero() {
						continue
					}
					fact := models.RawFact{
						ConceptTags:  []string{concept},
						Taxonomy:     taxonomy,
						Unit:         unit,
						FiscalYear:   u.FY,
						FiscalPeriod: u.FP,
						Form:         u.Form,
						PeriodEnd:    end,
						Filed:        parseSECDate(u.Filed),
						Value:        u.Val,
					}
					if start := parseSECDate(u.Start); !start.IsZero() {
						fact.PeriodStart = &start
					}
					out = append(out, fact)
				}
			}
		}
	}
	return out
}

// resolveCompany maps the symbol (or an explicit CIK param) to a company.
func resolveCompany(ctx context.Context, ciks *CIKCache, params provider.QueryParams) (models.Company, error) {
	symbol := params[provider.ParamSymbol]
	if cik := params[provider.ParamCIK]; cik != "" {
		if _, err := strconv.Atoi(cik); err != nil {
			return models.Company{}, fmt.Errorf("invalid CIK %q", cik)
		}
		cik = padCIK(cik)
		return models.Company{ID: cik, CIK: cik, Ticker: symbol}, nil
	}
	m, err := ciks.Lookup(ctx, symbol)
	if err != nil {
		return models.Company{}, err
	}
	return models.Company{ID: m.CIK, CIK: m.CIK, Ticker: m.Symbol, Name: m.Name}, nil
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ---- CikMap fetcher ----
// Resolves one ticker through the shared CIK cache.

type cikMapFetcher struct {
	provider.BaseFetcher
	ciks *CIKCache
}

func newCikMapFetcher(ciks *CIKCache) *cikMapFetcher {
	return &cikMapFetcher{
		BaseFetcher: provider.NewBaseFetcher(
			provider.ModelCIKMap,
			"SEC ticker to CIK mapping",
			[]string{provider.ParamSymbol},
			nil,
		),
		ciks: ciks,
	}
}

func (f *cikMapFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	m, err := f.ciks.Lookup(ctx, params[provider.ParamSymbol])
	if err != nil {
		return nil, fmt.Errorf("sec cik map: %w", err)
	}
	return provider.NewResult(m), nil
}
