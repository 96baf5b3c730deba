// Package provider defines the data provider abstraction. A Provider
// registers one Fetcher per model type it can serve, and a Registry routes
// requests to a provider by name or by per-model default.
package provider

import (
	"context"
	"fmt"
	"time"
)

// ProviderCredential describes a credential a provider needs.
type ProviderCredential struct {
	Name        string `json:"name"`        // e.g., "api_key"
	Description string `json:"description"` // e.g., "FMP API key from financialmodelingprep.com"
	Required    bool   `json:"required"`
	EnvVar      string `json:"env_var"` // e.g., "MOATSCORE_PROVIDERS_FMP_API_KEY"
}

// ProviderInfo holds metadata about a registered provider.
type ProviderInfo struct {
	Name        string               `json:"name"` // e.g., "sec", "fmp"
	Description string               `json:"description"`
	Website     string               `json:"website"`
	Credentials []ProviderCredential `json:"credentials"`
	Models      []ModelType          `json:"models"`
}

// Provider is implemented by every data source.
type Provider interface {
	// Info returns metadata about this provider.
	Info() ProviderInfo

	// Init stores credentials and fails when a required one is missing.
	Init(credentials map[string]string) error

	// Fetcher returns the fetcher for model, or nil if unsupported.
	Fetcher(model ModelType) Fetcher

	// SupportedModels returns all model types this provider can fetch.
	SupportedModels() []ModelType

	// Ping verifies connectivity and credentials.
	Ping(ctx context.Context) error
}

// QueryParams is the generic parameter map passed to fetchers.
// Each fetcher declares which keys it requires.
type QueryParams map[string]string

// Common query parameter keys.
const (
	ParamSymbol   = "symbol"   // ticker, e.g. "AAPL" or "TCS"
	ParamCIK      = "cik"      // SEC central index key
	ParamLimit    = "limit"    // max periods to return
	ParamForm     = "form"     // SEC form type, e.g. "10-K"
	ParamProvider = "provider" // override the default provider
)

// FetchResult wraps fetched data with metadata.
type FetchResult struct {
	Provider  string    `json:"provider"`
	Model     ModelType `json:"model"`
	Data      any       `json:"data"` // typed per model, see ModelType
	FetchedAt time.Time `json:"fetched_at"`
	Cached    bool      `json:"cached"`
}

// Fetcher fetches a single model type.
type Fetcher interface {
	ModelType() ModelType
	Description() string
	RequiredParams() []string
	OptionalParams() []string

	// Fetch retrieves data for params. The Data type is fixed per model.
	Fetch(ctx context.Context, params QueryParams) (*FetchResult, error)
}

// ErrProviderNotFound is returned when a requested provider is not registered.
type ErrProviderNotFound struct {
	Name string
}

func (e *ErrProviderNotFound) Error() string {
	return fmt.Sprintf("provider %q not found", e.Name)
}

// ErrModelNotSupported is returned when a provider doesn't support a model type.
type ErrModelNotSupported struct {
	Provider string
	Model    ModelType
}

func (e *ErrModelNotSupported) Error() string {
	return fmt.Sprintf("provider %q does not support model %q", e.Provider, e.Model)
}

// ErrMissingParam is returned when a required query parameter is missing.
type ErrMissingParam struct {
	Param string
}

func (e *ErrMissingParam) Error() string {
	return fmt.Sprintf("missing required parameter %q", e.Param)
}

// ErrInvalidCredentials is returned when provider credentials are invalid.
type ErrInvalidCredentials struct {
	Provider string
	Detail   string
}

func (e *ErrInvalidCredentials) Error() string {
	return fmt.Sprintf("invalid credentials for provider %q: %s", e.Provider, e.Detail)
}

// ErrNoData is returned when a provider answered but had nothing for the query.
type ErrNoData struct {
	Provider string
	Query    string
}

func (e *ErrNoData) Error() string {
	return fmt.Sprintf("provider %q has no data for %s", e.Provider, e.Query)
}

// ErrUnexpectedData is returned when a result's Data does not have the
// type its model promises.
type ErrUnexpectedData struct {
	Model ModelType
	Got   any
}

func (e *ErrUnexpectedData) Error() string {
	return fmt.Sprintf("model %s returned unexpected data type %T", e.Model, e.Got)
}

// ValidateParams checks that every required parameter is present and non-empty.
func ValidateParams(params QueryParams, required []string) error {
	for _, key := range required {
		if v, ok := params[key]; !ok || v == "" {
			return &ErrMissingParam{Param: key}
		}
	}
	return nil
}
