package providers

import (
	"testing"

	"github.com/seenimoa/moatscore/internal/config"
	"github.com/seenimoa/moatscore/internal/provider"
)

func TestRegisterAllTo(t *testing.T) {
	reg := provider.NewRegistry()
	if err := RegisterAllTo(reg, config.ProvidersConfig{Source: SourceSEC}); err != nil {
		t.Fatalf("RegisterAllTo: %v", err)
	}

	for _, name := range []string{"sec", "screener"} {
		if _, err := reg.Get(name); err != nil {
			t.Errorf("%s not registered: %v", name, err)
		}
	}
	// No key configured, so FMP must be absent.
	if _, err := reg.Get("fmp"); err == nil {
		t.Error("fmp registered without an API key")
	}

	if name, _ := reg.DefaultProvider(provider.ModelCompanyFacts); name != "sec" {
		t.Errorf("CompanyFacts default = %q, want sec", name)
	}
	if name, _ := reg.DefaultProvider(provider.ModelFinancialRecords); name != "screener" {
		t.Errorf("FinancialRecords default = %q, want screener", name)
	}
}

func TestRegisterAllToWithFMP(t *testing.T) {
	reg := provider.NewRegistry()
	cfg := config.ProvidersConfig{
		Source: SourceFMP,
		FMP:    config.FMPConfig{APIKey: "test_key"},
	}
	if err := RegisterAllTo(reg, cfg); err != nil {
		t.Fatalf("RegisterAllTo: %v", err)
	}

	if name, _ := reg.DefaultProvider(provider.ModelFinancialRecords); name != "fmp" {
		t.Errorf("FinancialRecords default = %q, want fmp", name)
	}
	if got := reg.ProvidersFor(provider.ModelFinancialRecords); len(got) != 2 {
		t.Errorf("FinancialRecords providers = %v, want screener and fmp", got)
	}
	if got := reg.ProvidersFor(provider.ModelEquityQuote); len(got) != 1 || got[0] != "fmp" {
		t.Errorf("EquityQuote providers = %v, want [fmp]", got)
	}
}

func TestRegisterAllToWithYahoo(t *testing.T) {
	tests := []struct {
		name  string
		cfg   config.ProvidersConfig
		quote []string
	}{
		{
			name:  "yahoo only",
			cfg:   config.ProvidersConfig{Source: SourceScreener, Yahoo: config.YahooConfig{Enabled: true}},
			quote: []string{"yfinance"},
		},
		{
			name: "fmp quotes first",
			cfg: config.ProvidersConfig{
				FMP:   config.FMPConfig{APIKey: "k"},
				Yahoo: config.YahooConfig{Enabled: true},
			},
			quote: []string{"fmp", "yfinance"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			reg := provider.NewRegistry()
			if err := RegisterAllTo(reg, tt.cfg); err != nil {
				t.Fatalf("RegisterAllTo: %v", err)
			}
			got := reg.ProvidersFor(provider.ModelEquityQuote)
			if len(got) != len(tt.quote) {
				t.Fatalf("EquityQuote providers = %v, want %v", got, tt.quote)
			}
			for i := range got {
				if got[i] != tt.quote[i] {
					t.Errorf("EquityQuote providers = %v, want %v", got, tt.quote)
				}
			}
		})
	}
}

func TestRegisterAllToModelCoverage(t *testing.T) {
	reg := provider.NewRegistry()
	cfg := config.ProvidersConfig{FMP: config.FMPConfig{APIKey: "k"}}
	if err := RegisterAllTo(reg, cfg); err != nil {
		t.Fatalf("RegisterAllTo: %v", err)
	}
	for _, m := range provider.AllModels() {
		if len(reg.ProvidersFor(m)) == 0 {
			t.Errorf("no providers for model %s", m)
		}
	}
}

func TestRegisterAllToErrors(t *testing.T) {
	tests := []struct {
		name string
		cfg  config.ProvidersConfig
	}{
		{"fmp without key", config.ProvidersConfig{Source: SourceFMP}},
		{"unknown source", config.ProvidersConfig{Source: "bloomberg"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := RegisterAllTo(provider.NewRegistry(), tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestRegisterAllIdempotent(t *testing.T) {
	reg := provider.NewRegistry()
	cfg := config.ProvidersConfig{Source: SourceScreener}
	if err := RegisterAllTo(reg, cfg); err != nil {
		t.Fatalf("first RegisterAllTo: %v", err)
	}
	// Registering again should overwrite without error.
	if err := RegisterAllTo(reg, cfg); err != nil {
		t.Fatalf("second RegisterAllTo: %v", err)
	}
	if n := len(reg.List()); n != 2 {
		t.Errorf("expected 2 providers, got %d", n)
	}
}
