package sec

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"github.com/seenimoa/moatscore/internal/infra"
	"github.com/seenimoa/moatscore/internal/provider"
	"github.com/seenimoa/moatscore/pkg/models"
)

// ---- AnnualFilings fetcher ----
// Reads the browse-edgar Atom feed of a company's filings of one form type.

const defaultFilingsLimit = 10

type annualFilingsFetcher struct {
	provider.BaseFetcher
	client *client
	ciks   *CIKCache
	parser *gofeed.Parser
}

func newAnnualFilingsFetcher(c *client, ciks *CIKCache) *annualFilingsFetcher {
	return &annualFilingsFetcher{
		BaseFetcher: provider.NewBaseFetcherWithOpts(
			provider.ModelAnnualFilings,
			"Recent annual report filings from the SEC EDGAR Atom feed",
			[]string{provider.ParamSymbol},
			[]string{provider.ParamCIK, provider.ParamForm, provider.ParamLimit},
			10*time.Minute, 8, time.Second,
		),
		client: c,
		ciks:   ciks,
		parser: gofeed.NewParser(),
	}
}

func (f *annualFilingsFetcher) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	symbol := params[provider.ParamSymbol]
	cacheKey := provider.CacheKey(f.ModelType(), params)
	if cached, ok := f.CacheGet(cacheKey); ok {
		return provider.NewCachedResult(cached), nil
	}

	company, err := resolveCompany(ctx, f.ciks, params)
	if err != nil {
		return nil, fmt.Errorf("sec filings resolve CIK for %s: %w", symbol, err)
	}
	form := params[provider.ParamForm]
	if form == "" {
		form = models.FormAnnual
	}
	limit := defaultFilingsLimit
	if n, err := strconv.Atoi(params[provider.ParamLimit]); err == nil && n > 0 {
		limit = n
	}
	if err := f.RateLimit(ctx); err != nil {
		return nil, err
	}

	q := url.Values{}
	q.Set("action", "getcompany")
	q.Set("CIK", company.CIK)
	q.Set("type", form)
	q.Set("dateb", "")
	q.Set("owner", "include")
	q.Set("count", strconv.Itoa(limit))
	q.Set("output", "atom")
	u := f.client.wwwURL + "/cgi-bin/browse-edgar?" + q.Encode()

	body, _, err := infra.DoGet(ctx, u, f.client.headers("application/atom+xml"))
	if err != nil {
		return nil, fmt.Errorf("sec filings feed: %w", err)
	}
	defer body.Close()

	feed, err := f.parser.Parse(body)
	if err != nil {
		return nil, fmt.Errorf("parse sec filings feed: %w", err)
	}

	filings := filingsFromFeed(company.ID, form, feed)
	if len(filings) > limit {
		filings = filings[:limit]
	}

	f.CacheSet(cacheKey, filings)
	return provider.NewResult(filings), nil
}

// filingsFromFeed keeps the feed items of the requested form, newest first.
// browse-edgar's type filter is a prefix match, so amendments and other
// forms are dropped here.
func filingsFromFeed(companyID, form string, feed *gofeed.Feed) []models.Filing {
	var out []models.Filing
	for _, item := range feed.Items {
		itemForm := feedItemForm(item)
		if !strings.EqualFold(itemForm, form) {
			continue
		}
		var filed time.Time
		switch {
		case item.UpdatedParsed != nil:
			filed = *item.UpdatedParsed
		case item.PublishedParsed != nil:
			filed = *item.PublishedParsed
		}
		out = append(out, models.Filing{
			CompanyID: companyID,
			Form:      itemForm,
			Title:     strings.TrimSpace(item.Title),
			URL:       item.Link,
			FiledAt:   filed.UTC(),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].FiledAt.After(out[j].FiledAt) })
	return out
}

// feedItemForm reads the form type from the entry category, falling back to
// the title prefix ("10-K  - Annual report ...").
func feedItemForm(item *gofeed.Item) string {
	if len(item.Categories) > 0 && item.Categories[0] != "" {
		return strings.TrimSpace(item.Categories[0])
	}
	if i := strings.Index(item.Title, " - "); i > 0 {
		return strings.TrimSpace(item.Title[:i])
	}
	return ""
}
