package models

import (
	"errors"
	"fmt"
	"time"
)

// GrowthFallback is a CAGR measured over the longest available history,
// recorded when the 10-year window has no value.
type GrowthFallback struct {
	Value float64 `json:"value"`
	Years int     `json:"years"`
}

// GrowthRates holds one metric family's compound growth rates (percent).
type GrowthRates struct {
	OneYear  *float64        `json:"one_year"`
	FiveYear *float64        `json:"five_year"`
	TenYear  *float64        `json:"ten_year"`
	MaxYear  *GrowthFallback `json:"max_year,omitempty"`
}

// BigFiveMetrics is the set of trend metrics derived from a company's
// statement history.
type BigFiveMetrics struct {
	ROIC1Year  *float64 `json:"roic_1y"`
	ROIC5Year  *float64 `json:"roic_5y"`
	ROIC10Year *float64 `json:"roic_10y"`

	EPSGrowth     GrowthRates `json:"eps_growth"`
	RevenueGrowth GrowthRates `json:"revenue_growth"`
	EquityGrowth  GrowthRates `json:"equity_growth"`
	FCFGrowth     GrowthRates `json:"fcf_growth"`

	YearsOfData   int  `json:"years_of_data"`
	IsPredictable bool `json:"is_predictable"`
}

// Families returns the four growth families in a fixed order:
// EPS, revenue, equity, free cash flow.
func (m BigFiveMetrics) Families() []GrowthRates {
	return []GrowthRates{m.EPSGrowth, m.RevenueGrowth, m.EquityGrowth, m.FCFGrowth}
}

// ScoreResult is an immutable snapshot of a company's quality scores and
// valuation. Scores are 0-100.
type ScoreResult struct {
	ValueScore      int       `json:"value_score"`
	ROICScore       int       `json:"roic_score"`
	MoatScore       int       `json:"moat_score"`
	DebtScore       int       `json:"debt_score"`
	ManagementScore int       `json:"management_score"`
	StickerPrice    *float64  `json:"sticker_price"`
	MOSPrice        *float64  `json:"mos_price"`
	PaybackTime     *int      `json:"payback_time"`
	CalculatedAt    time.Time `json:"calculated_at"`
}

// Valuation defaults.
const (
	DefaultMinReturnRate = 15.0 // percent
	DefaultYears         = 10
)

// ValuationInput holds the assumptions of a sticker price computation.
// Rates are percentages (15 means 15%).
type ValuationInput struct {
	CurrentEPS    float64 `json:"current_eps"`
	GrowthRate    float64 `json:"growth_rate"`
	FuturePE      float64 `json:"future_pe"`
	MinReturnRate float64 `json:"min_return_rate,omitempty"`
	Years         int     `json:"years,omitempty"`
}

// WithDefaults fills unset optional fields with their documented defaults.
func (in ValuationInput) WithDefaults() ValuationInput {
	if in.MinReturnRate == 0 {
		in.MinReturnRate = DefaultMinReturnRate
	}
	if in.Years == 0 {
		in.Years = DefaultYears
	}
	return in
}

// Validate checks the input once at the boundary. Non-positive EPS is not an
// error: it yields an empty valuation.
func (in ValuationInput) Validate() error {
	var errs []error
	if in.Years < 0 {
		errs = append(errs, fmt.Errorf("years must be positive, got %d", in.Years))
	}
	if in.FuturePE < 0 {
		errs = append(errs, fmt.Errorf("future_pe must not be negative, got %.2f", in.FuturePE))
	}
	if in.MinReturnRate <= -100 {
		errs = append(errs, fmt.Errorf("min_return_rate must be greater than -100, got %.2f", in.MinReturnRate))
	}
	if in.GrowthRate <= -100 {
		errs = append(errs, fmt.Errorf("growth_rate must be greater than -100, got %.2f", in.GrowthRate))
	}
	return errors.Join(errs...)
}

// ValuationResult is the output of a sticker price computation.
type ValuationResult struct {
	FutureEPS    float64 `json:"future_eps"`
	FuturePrice  float64 `json:"future_price"`
	StickerPrice float64 `json:"sticker_price"`
	MOSPrice     float64 `json:"mos_price"`
}

// Recommendation classifies a current price against sticker and MOS prices.
type Recommendation string

const (
	RecommendBuy   Recommendation = "BUY"
	RecommendHold  Recommendation = "HOLD"
	RecommendAvoid Recommendation = "AVOID"
)

// CompanyAnalysis bundles everything computed for one company in a scoring pass.
type CompanyAnalysis struct {
	ID             string                         `json:"id"`
	CompanyID      string                         `json:"company_id"`
	Ticker         string                         `json:"ticker"`
	Name           string                         `json:"name,omitempty"`
	Statements     []NormalizedFinancialStatement `json:"statements,omitempty"`
	Metrics        BigFiveMetrics                 `json:"metrics"`
	Score          ScoreResult                    `json:"score"`
	Assumptions    *ValuationInput                `json:"assumptions,omitempty"`
	Valuation      *ValuationResult               `json:"valuation,omitempty"`
	CurrentPrice   *float64                       `json:"current_price,omitempty"`
	Recommendation Recommendation                 `json:"recommendation,omitempty"`
	CalculatedAt   time.Time                      `json:"calculated_at"`
}
