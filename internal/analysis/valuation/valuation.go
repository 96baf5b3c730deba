// Package valuation computes Rule #1 style intrinsic values: the sticker
// price, the margin-of-safety price and payback time.
package valuation

import (
	"math"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/seenimoa/moatscore/pkg/models"
)

const (
	// MarginOfSafety is the fraction of the sticker price a buyer should pay.
	MarginOfSafety = 0.5

	// MaxPaybackYears caps the payback simulation.
	MaxPaybackYears = 50

	// NoPayback is returned by PaybackTime when earnings are not positive.
	// It equals the simulation cap so callers see a single sentinel.
	NoPayback = MaxPaybackYears

	DefaultGrowthRate = 10.0 // percent
	MinGrowthRate     = 0.0
	MaxGrowthRate     = 30.0

	MinFuturePE = 10.0
	MaxFuturePE = 50.0
)

// StickerPrice projects eps forward years at growth, prices it at futurePE
// and discounts it back at minReturn. Rates are decimals (0.15 means 15%).
// Monetary outputs are rounded to cents. ok is false when eps is not positive.
func StickerPrice(eps, growth, futurePE, minReturn float64, years int) (res models.ValuationResult, ok bool) {
	if eps <= 0 {
		return models.ValuationResult{}, false
	}
	n := float64(years)
	futureEPS := eps * math.Pow(1+growth, n)
	futurePrice := futureEPS * futurePE
	sticker := futurePrice / math.Pow(1+minReturn, n)

	return models.ValuationResult{
		FutureEPS:    round2(futureEPS),
		FuturePrice:  round2(futurePrice),
		StickerPrice: round2(sticker),
		MOSPrice:     round2(sticker * MarginOfSafety),
	}, true
}

// Compute validates in, applies defaults and runs StickerPrice with the
// percentage rates converted to decimals. It returns a nil result, and no
// error, when the current EPS is not positive.
func Compute(in models.ValuationInput) (*models.ValuationResult, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	in = in.WithDefaults()
	res, ok := StickerPrice(in.CurrentEPS, in.GrowthRate/100, in.FuturePE, in.MinReturnRate/100, in.Years)
	if !ok {
		return nil, nil
	}
	return &res, nil
}

// PaybackTime counts the years of growing earnings needed to add up to price.
// growth is a decimal. It returns 0 when price is not positive, NoPayback when
// eps is not positive, and MaxPaybackYears when the sum never reaches price.
func PaybackTime(price, eps, growth float64) int {
	if price <= 0 {
		return 0
	}
	if eps <= 0 {
		return NoPayback
	}
	var (
		cumulative float64
		year       int
	)
	for cumulative < price && year < MaxPaybackYears {
		year++
		eps *= 1 + growth
		cumulative += eps
	}
	return year
}

// EstimateGrowthRate returns the median of the usable candidates (percent),
// clamped to [MinGrowthRate, MaxGrowthRate], or DefaultGrowthRate when none
// are usable.
func EstimateGrowthRate(candidates []*float64) float64 {
	vals := make([]float64, 0, len(candidates))
	for _, c := range candidates {
		if c == nil || math.IsNaN(*c) || math.IsInf(*c, 0) {
			continue
		}
		vals = append(vals, *c)
	}
	if len(vals) == 0 {
		return DefaultGrowthRate
	}
	return clamp(median(vals), MinGrowthRate, MaxGrowthRate)
}

// EstimateFuturePE is twice the growth rate (percent), clamped to
// [MinFuturePE, MaxFuturePE].
func EstimateFuturePE(growthRate float64) float64 {
	return clamp(growthRate*2, MinFuturePE, MaxFuturePE)
}

// Recommend classifies price against the sticker and MOS prices. Boundaries
// fall toward the cheaper class.
func Recommend(price, sticker, mos float64) models.Recommendation {
	switch {
	case price <= mos:
		return models.RecommendBuy
	case price <= sticker:
		return models.RecommendHold
	default:
		return models.RecommendAvoid
	}
}

// Assumptions estimates valuation inputs from historical growth. Equity
// growth (falling back to its longest-history rate when the 10 year value is
// missing) and EPS growth at 10, 5 and 1 years are the growth candidates.
func Assumptions(m models.BigFiveMetrics, currentEPS float64) models.ValuationInput {
	equity10 := m.EquityGrowth.TenYear
	if equity10 == nil && m.EquityGrowth.MaxYear != nil {
		v := m.EquityGrowth.MaxYear.Value
		equity10 = &v
	}
	growth := EstimateGrowthRate([]*float64{
		equity10,
		m.EquityGrowth.FiveYear,
		m.EquityGrowth.OneYear,
		m.EPSGrowth.TenYear,
		m.EPSGrowth.FiveYear,
		m.EPSGrowth.OneYear,
	})
	return models.ValuationInput{
		CurrentEPS:    currentEPS,
		GrowthRate:    growth,
		FuturePE:      EstimateFuturePE(growth),
		MinReturnRate: models.DefaultMinReturnRate,
		Years:         models.DefaultYears,
	}
}

func median(vals []float64) float64 {
	sorted := append([]float64(nil), vals...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

func round2(v float64) float64 {
	return decimal.NewFromFloat(v).Round(2).InexactFloat64()
}
