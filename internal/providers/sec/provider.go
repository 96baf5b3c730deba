// Package sec implements the SEC EDGAR data provider.
// EDGAR serves XBRL company facts, the ticker to CIK map and per-company
// filing feeds.
//
// No API key required. Must include a User-Agent header per SEC policy.
// Docs: https://www.sec.gov/edgar/sec-api-documentation
// Rate limit: 10 requests/second per user-agent.
package sec

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
	providerName = "sec"

	// SEC EDGAR endpoints.
	edgarDataURL = "https://data.sec.gov" // JSON data API
	edgarWWWURL  = "https://www.sec.gov"  // ticker file, browse-edgar feeds

	// SEC requires a User-Agent with company name and email for EDGAR requests.
	DefaultUserAgent = "moatscore/1.0 (github.com/seenimoa/moatscore)"
)

// Options configure the provider. Zero values select the public EDGAR
// endpoints and a process-wide CIK cache.
type Options struct {
	UserAgent string
	DataURL   string
	WWWURL    string
	CIKs      *CIKCache
}

// Provider implements provider.Provider for SEC EDGAR.
type Provider struct {
	provider.BaseProvider
	client *client
	ciks   *CIKCache
}

// New creates a new SEC provider and registers all fetchers.
func New(opts Options) *Provider {
	c := &client{
		userAgent: opts.UserAgent,
		dataURL:   strings.TrimRight(opts.DataURL, "/"),
		wwwURL:    strings.TrimRight(opts.WWWURL, "/"),
	}
	if c.userAgent == "" {
		c.userAgent = DefaultUserAgent
	}
	if c.dataURL == "" {
		c.dataURL = edgarDataURL
	}
	if c.wwwURL == "" {
		c.wwwURL = edgarWWWURL
	}
	ciks := opts.CIKs
	if ciks == nil {
		ciks = NewCIKCache(c.loadTickers)
	}

	p := &Provider{
		BaseProvider: provider.NewBaseProvider(
			providerName,
			"SEC EDGAR - XBRL company facts and annual filings",
			"https://www.sec.gov/edgar",
			nil, // No credentials required
		),
		client: c,
		ciks:   ciks,
	}

	p.RegisterFetcher(newCompanyFactsFetcher(c, ciks))
	p.RegisterFetcher(newCikMapFetcher(ciks))
	p.RegisterFetcher(newAnnualFilingsFetcher(c, ciks))
	return p
}

// CIKs returns the ticker map the provider resolves symbols with.
func (p *Provider) CIKs() *CIKCache { return p.ciks }

// Ping checks connectivity to SEC EDGAR.
func (p *Provider) Ping(ctx context.Context) error {
	url := p.client.dataURL + "/submissions/CIK0000320193.json" // Apple
	body, _, err := infra.DoGet(ctx, url, p.client.headers("application/json"))
	if err != nil {
		return fmt.Errorf("sec ping: %w", err)
	}
	body.Close()
	return nil
}

// --- Shared helpers ---

type client struct {
	userAgent string
	dataURL   string
	wwwURL    string
}

func (c *client) headers(accept string) map[string]string {
	return map[string]string{
		"User-Agent": c.userAgent,
		"Accept":     accept,
	}
}

// getJSON performs a GET request to the SEC API and decodes JSON.
func (c *client) getJSON(ctx context.Context, url string, dest any) error {
	body, _, err := infra.DoGet(ctx, url, c.headers("application/json"))
	if err != nil {
		return err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read SEC response: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("parse SEC JSON: %w", err)
	}
	return nil
}

// padCIK pads a CIK number to 10 digits with leading zeros.
func padCIK(cik string) string {
	for len(cik) < 10 {
		cik = "0" + cik
	}
	return cik
}
