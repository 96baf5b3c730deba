package valuation

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/moatscore/pkg/models"
)

var f = models.Float

func TestStickerPriceWorkedExample(t *testing.T) {
	res, ok := StickerPrice(5, 0.15, 30, 0.15, 10)
	require.True(t, ok)
	assert.Equal(t, 150.00, res.StickerPrice)
	assert.Equal(t, 75.00, res.MOSPrice)
	assert.Equal(t, 20.23, res.FutureEPS)
	assert.Equal(t, 606.83, res.FuturePrice)
}

func TestStickerPriceNonPositiveEPS(t *testing.T) {
	for _, eps := range []float64{0, -1.5} {
		_, ok := StickerPrice(eps, 0.1, 20, 0.15, 10)
		assert.False(t, ok, "eps %v", eps)
	}
}

func TestCompute(t *testing.T) {
	res, err := Compute(models.ValuationInput{CurrentEPS: 5, GrowthRate: 15, FuturePE: 30})
	require.NoError(t, err)
	require.NotNil(t, res)
	assert.Equal(t, 150.00, res.StickerPrice)
	assert.Equal(t, 75.00, res.MOSPrice)

	res, err = Compute(models.ValuationInput{CurrentEPS: -2, GrowthRate: 15, FuturePE: 30})
	require.NoError(t, err)
	assert.Nil(t, res)

	_, err = Compute(models.ValuationInput{CurrentEPS: 5, GrowthRate: -150, FuturePE: -1, Years: -2})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "years")
	assert.Contains(t, err.Error(), "future_pe")
	assert.Contains(t, err.Error(), "growth_rate")
}

func TestPaybackTime(t *testing.T) {
	tests := []struct {
		name               string
		price, eps, growth float64
		want               int
	}{
		{"zero price", 0, 5, 0.1, 0},
		{"negative price", -10, 5, 0.1, 0},
		{"zero eps", 100, 0, 0.1, NoPayback},
		{"negative eps", 100, -1, 0.1, NoPayback},
		// 1.1, 2.31, 3.641, ...
		{"first year covers", 1.05, 1, 0.1, 1},
		{"three years", 3.6, 1, 0.1, 3},
		{"no growth", 10, 1, 0, 10},
		{"never converges", 1e9, 1, 0.01, MaxPaybackYears},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PaybackTime(tt.price, tt.eps, tt.growth))
		})
	}
}

func TestPaybackTimeMonotonic(t *testing.T) {
	prev := 0
	for price := 1.0; price <= 2000; price += 7 {
		got := PaybackTime(price, 2, 0.12)
		if got < prev {
			t.Fatalf("payback fell from %d to %d at price %.0f", prev, got, price)
		}
		prev = got
	}

	prev = MaxPaybackYears
	for growth := 0.0; growth <= 0.5; growth += 0.01 {
		got := PaybackTime(500, 2, growth)
		if got > prev {
			t.Fatalf("payback rose from %d to %d at growth %.2f", prev, got, growth)
		}
		prev = got
	}
}

func TestEstimateGrowthRate(t *testing.T) {
	tests := []struct {
		name string
		in   []*float64
		want float64
	}{
		{"median of five", []*float64{f(8), f(10), f(12), f(15), f(20)}, 12},
		{"unsorted", []*float64{f(20), f(8), f(15), f(10), f(12)}, 12},
		{"even count", []*float64{f(8), f(10), f(12), f(16)}, 11},
		{"empty", nil, DefaultGrowthRate},
		{"only unusable", []*float64{nil, f(math.NaN()), f(math.Inf(1))}, DefaultGrowthRate},
		{"nil entries skipped", []*float64{nil, f(14), nil}, 14},
		{"clamp high", []*float64{f(45), f(60)}, 30},
		{"clamp low", []*float64{f(-5), f(-12)}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, EstimateGrowthRate(tt.in))
		})
	}
}

func TestEstimateFuturePE(t *testing.T) {
	assert.Equal(t, 10.0, EstimateFuturePE(0))
	assert.Equal(t, 10.0, EstimateFuturePE(4))
	assert.Equal(t, 24.0, EstimateFuturePE(12))
	assert.Equal(t, 50.0, EstimateFuturePE(30))
}

func TestRecommend(t *testing.T) {
	tests := []struct {
		price float64
		want  models.Recommendation
	}{
		{50, models.RecommendBuy},
		{75, models.RecommendBuy},
		{75.01, models.RecommendHold},
		{150, models.RecommendHold},
		{150.01, models.RecommendAvoid},
	}
	for _, tt := range tests {
		if got := Recommend(tt.price, 150, 75); got != tt.want {
			t.Errorf("Recommend(%v) = %s, want %s", tt.price, got, tt.want)
		}
	}
}

func TestAssumptions(t *testing.T) {
	m := models.BigFiveMetrics{
		EquityGrowth: models.GrowthRates{
			FiveYear: f(14),
			OneYear:  f(9),
			MaxYear:  &models.GrowthFallback{Value: 12, Years: 7},
		},
		EPSGrowth: models.GrowthRates{TenYear: f(11), FiveYear: f(16), OneYear: f(40)},
	}
	in := Assumptions(m, 3.2)
	// candidates 12, 14, 9, 11, 16, 40 -> median 13
	assert.Equal(t, 13.0, in.GrowthRate)
	assert.Equal(t, 26.0, in.FuturePE)
	assert.Equal(t, 3.2, in.CurrentEPS)
	assert.Equal(t, models.DefaultMinReturnRate, in.MinReturnRate)
	assert.Equal(t, models.DefaultYears, in.Years)

	in = Assumptions(models.BigFiveMetrics{}, 1)
	assert.Equal(t, DefaultGrowthRate, in.GrowthRate)
	assert.Equal(t, 20.0, in.FuturePE)
}
