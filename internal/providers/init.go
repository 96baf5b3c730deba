// Package providers initializes and registers all concrete data providers
// with a provider registry.
package providers

import (
	"fmt"

	"github.com/seenimoa/moatscore/internal/config"
	"github.com/seenimoa/moatscore/internal/provider"
	"github.com/seenimoa/moatscore/internal/providers/fmp"
	"github.com/seenimoa/moatscore/internal/providers/screener"
	"github.com/seenimoa/moatscore/internal/providers/sec"
	"github.com/seenimoa/moatscore/internal/providers/yfinance"
)

// Provider names accepted by config.ProvidersConfig.Source.
const (
	SourceSEC      = "sec"
	SourceFMP      = "fmp"
	SourceScreener = "screener"
)

// RegisterAllTo registers every available provider to reg. SEC EDGAR and
// Screener.in need no key and are always registered; FMP is registered only
// when an API key is configured. Yahoo Finance quotes are registered last so
// FMP quotes win when both are present. The configured source becomes the
// default for the models it serves.
func RegisterAllTo(reg *provider.Registry, cfg config.ProvidersConfig) error {
	// --- SEC EDGAR (free, User-Agent required) ---
	if err := reg.Register(sec.New(sec.Options{
		UserAgent: cfg.SEC.UserAgent,
		DataURL:   cfg.SEC.DataURL,
		WWWURL:    cfg.SEC.WWWURL,
	})); err != nil {
		return err
	}

	// --- Screener.in (free, HTML) ---
	if err := reg.Register(screener.New(cfg.Screener.BaseURL)); err != nil {
		return err
	}

	// --- FMP (requires API key) ---
	if cfg.FMP.APIKey != "" {
		fp := fmp.New(cfg.FMP.BaseURL)
		if err := fp.Init(map[string]string{"api_key": cfg.FMP.APIKey}); err != nil {
			return err
		}
		if err := reg.Register(fp); err != nil {
			return err
		}
	}

	// --- Yahoo Finance (free, quotes only) ---
	if cfg.Yahoo.Enabled {
		suffix := cfg.Yahoo.Suffix
		if suffix == "" && cfg.Source == SourceScreener {
			suffix = ".NS"
		}
		if err := reg.Register(yfinance.New(yfinance.Options{
			BaseURL: cfg.Yahoo.BaseURL,
			Suffix:  suffix,
		})); err != nil {
			return err
		}
	}

	switch cfg.Source {
	case "", SourceSEC:
		return nil
	case SourceFMP, SourceScreener:
		if err := reg.SetDefault(provider.ModelFinancialRecords, cfg.Source); err != nil {
			return fmt.Errorf("providers: source %q: %w", cfg.Source, err)
		}
		return nil
	default:
		return fmt.Errorf("providers: unknown source %q", cfg.Source)
	}
}
