// Package fmp implements the Financial Modeling Prep (FMP) data provider.
// FMP serves pre-normalized annual statements, key metrics and quotes over a
// REST API with API key authentication.
//
// Free tier: 250 requests/day.
// Docs: https://financialmodelingprep.com/developer/docs
package fmp

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
	providerName   = "fmp"
	defaultBaseURL = "https://financialmodelingprep.com/api/v3"
	credAPIKey     = "api_key"
	paramAPIKey    = "_fmp_api_key"
)

// Provider implements provider.Provider for FMP.
type Provider struct {
	provider.BaseProvider
	baseURL string
	apiKey  string
}

// New creates a new FMP provider and registers all fetchers. An empty
// baseURL selects the public API.
func New(baseURL string) *Provider {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	p := &Provider{
		BaseProvider: provider.NewBaseProvider(
			providerName,
			"Financial Modeling Prep - annual statements, key metrics and quotes",
			"https://financialmodelingprep.com",
			[]provider.ProviderCredential{
				{
					Name:        credAPIKey,
					Description: "FMP API key from financialmodelingprep.com",
					Required:    true,
					EnvVar:      "MOATSCORE_PROVIDERS_FMP_API_KEY",
				},
			},
		),
		baseURL: strings.TrimRight(baseURL, "/"),
	}

	p.RegisterFetcher(newFinancialRecordsFetcher(p.baseURL))
	p.RegisterFetcher(newEquityQuoteFetcher(p.baseURL))
	return p
}

// Init stores the API key.
func (p *Provider) Init(credentials map[string]string) error {
	if err := p.BaseProvider.Init(credentials); err != nil {
		return err
	}
	p.apiKey = credentials[credAPIKey]
	return nil
}

// Ping checks connectivity to FMP.
func (p *Provider) Ping(ctx context.Context) error {
	body, _, err := infra.DoGet(ctx, fmpURL(p.baseURL, "/quote/AAPL", p.apiKey), jsonHeaders())
	if err != nil {
		return fmt.Errorf("fmp ping: %w", err)
	}
	body.Close()
	return nil
}

// APIKey returns the stored API key (used by fetchers).
func (p *Provider) APIKey() string {
	return p.apiKey
}

// Fetcher overrides BaseProvider.Fetcher to return a wrapper that
// auto-injects the FMP API key into query params before delegating.
func (p *Provider) Fetcher(model provider.ModelType) provider.Fetcher {
	inner := p.BaseProvider.Fetcher(model)
	if inner == nil {
		return nil
	}
	return &apiKeyInjector{inner: inner, apiKey: &p.apiKey}
}

// apiKeyInjector wraps a Fetcher and injects the FMP API key.
type apiKeyInjector struct {
	inner  provider.Fetcher
	apiKey *string
}

func (w *apiKeyInjector) ModelType() provider.ModelType { return w.inner.ModelType() }
func (w *apiKeyInjector) Description() string           { return w.inner.Description() }
func (w *apiKeyInjector) RequiredParams() []string      { return w.inner.RequiredParams() }
func (w *apiKeyInjector) OptionalParams() []string      { return w.inner.OptionalParams() }

func (w *apiKeyInjector) Fetch(ctx context.Context, params provider.QueryParams) (*provider.FetchResult, error) {
	enriched := make(provider.QueryParams, len(params)+1)
	for k, v := range params {
		enriched[k] = v
	}
	enriched[paramAPIKey] = *w.apiKey
	return w.inner.Fetch(ctx, enriched)
}

// --- Shared helpers ---

func jsonHeaders() map[string]string {
	return map[string]string{"Accept": "application/json"}
}

// fmpURL builds a full FMP API URL with the API key appended.
func fmpURL(base, path, apiKey string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return base + path + sep + "apikey=" + apiKey
}

// fetchFMPJSON performs a GET request to FMP and decodes the response.
func fetchFMPJSON(ctx context.Context, base, path, apiKey string, dest any) error {
	body, _, err := infra.DoGet(ctx, fmpURL(base, path, apiKey), jsonHeaders())
	if err != nil {
		return err
	}
	defer body.Close()

	data, err := io.ReadAll(body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	// FMP reports quota and key problems as a JSON object with 200 OK.
	var apiErr struct {
		Message string `json:"Error Message"`
	}
	if json.Unmarshal(data, &apiErr) == nil && apiErr.Message != "" {
		return fmt.Errorf("fmp: %s", apiErr.Message)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("parse FMP JSON: %w", err)
	}
	return nil
}
