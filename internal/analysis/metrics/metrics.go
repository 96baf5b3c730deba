// Package metrics computes the Big Five trend metrics (ROIC and four growth
// families) from a company's annual statement history.
package metrics

import (
	"math"

	"github.com/seenimoa/moatscore/pkg/models"
)

// DefaultTaxRate is used when the effective tax rate is missing or implausible.
const DefaultTaxRate = 0.21

const (
	maxTaxRate         = 0.5
	minPredictableData = 5
	unpredictableBelow = -10.0 // percent
	minMaxYearSpan     = 6
)

// CAGR returns the compound annual growth rate from start to end over years,
// as a percentage. It returns nil when an operand is missing, either value is
// not positive, or years is not positive.
func CAGR(start, end *float64, years float64) *float64 {
	if start == nil || end == nil || years <= 0 {
		return nil
	}
	if *start <= 0 || *end <= 0 {
		return nil
	}
	g := (math.Pow(*end / *start, 1/years) - 1) * 100
	return &g
}

// ROIC returns after-tax operating income over invested capital, as a
// percentage. Missing debt legs count as zero.
func ROIC(operatingIncome, incomeTaxExpense, incomeBeforeTax, totalEquity, longTermDebt, shortTermDebt *float64) *float64 {
	if operatingIncome == nil || totalEquity == nil {
		return nil
	}
	invested := *totalEquity + models.Value(longTermDebt) + models.Value(shortTermDebt)
	if invested <= 0 {
		return nil
	}
	nopat := *operatingIncome * (1 - taxRate(incomeTaxExpense, incomeBeforeTax))
	r := nopat / invested * 100
	return &r
}

func taxRate(taxExpense, preTax *float64) float64 {
	if taxExpense == nil || preTax == nil || *preTax <= 0 {
		return DefaultTaxRate
	}
	rate := *taxExpense / *preTax
	if rate < 0 || rate > maxTaxRate {
		return DefaultTaxRate
	}
	return rate
}

// StatementROIC prefers a provider-computed ROIC and falls back to ROIC.
func StatementROIC(s models.NormalizedFinancialStatement) *float64 {
	if s.ROIC != nil {
		return s.ROIC
	}
	return ROIC(s.OperatingIncome, s.IncomeTaxExpense, s.IncomeBeforeTax, s.TotalEquity, s.LongTermDebt, s.ShortTermDebt)
}

// BigFive derives the trend metrics from statements. The input may be in any
// order and is not modified.
func BigFive(statements []models.NormalizedFinancialStatement) models.BigFiveMetrics {
	stmts := models.SortNewestFirst(statements)
	m := models.BigFiveMetrics{YearsOfData: len(stmts)}
	if len(stmts) == 0 {
		return m
	}

	roics := make([]*float64, len(stmts))
	for i, s := range stmts {
		roics[i] = StatementROIC(s)
	}
	m.ROIC1Year = roics[0]
	m.ROIC5Year = meanOf(roics, 5, 3)
	m.ROIC10Year = meanOf(roics, 10, 5)

	m.EPSGrowth = growth(stmts, func(s models.NormalizedFinancialStatement) *float64 { return s.EPS })
	m.RevenueGrowth = growth(stmts, func(s models.NormalizedFinancialStatement) *float64 { return s.Revenue })
	m.EquityGrowth = growth(stmts, func(s models.NormalizedFinancialStatement) *float64 { return s.TotalEquity })
	m.FCFGrowth = growth(stmts, func(s models.NormalizedFinancialStatement) *float64 { return s.FreeCashFlow })

	m.IsPredictable = Predictable(m)
	return m
}

// meanOf averages the non-nil values among the first window entries, or
// returns nil when fewer than minValues are present.
func meanOf(values []*float64, window, minValues int) *float64 {
	if len(values) > window {
		values = values[:window]
	}
	var (
		sum float64
		n   int
	)
	for _, v := range values {
		if v != nil {
			sum += *v
			n++
		}
	}
	if n < minValues {
		return nil
	}
	avg := sum / float64(n)
	return &avg
}

// growth computes one family's rates. stmts must be newest first.
// The ten-year rate spans ten data points, i.e. nine years back.
func growth(stmts []models.NormalizedFinancialStatement, value func(models.NormalizedFinancialStatement) *float64) models.GrowthRates {
	at := func(i int) *float64 {
		if i >= len(stmts) {
			return nil
		}
		return value(stmts[i])
	}

	var g models.GrowthRates
	latest := at(0)
	g.OneYear = CAGR(at(1), latest, 1)
	g.FiveYear = CAGR(at(5), latest, 5)
	g.TenYear = CAGR(at(9), latest, 10)

	span := len(stmts) - 1
	if g.TenYear == nil && span >= minMaxYearSpan {
		if v := CAGR(at(span), latest, float64(span)); v != nil {
			g.MaxYear = &models.GrowthFallback{Value: *v, Years: span}
		}
	}
	return g
}

// Predictable reports whether the growth history is steady enough to
// project. Fewer than five years of data is never predictable; otherwise a
// company is unpredictable when more than half of its available five-year
// growth rates are below -10%.
func Predictable(m models.BigFiveMetrics) bool {
	if m.YearsOfData < minPredictableData {
		return false
	}
	var total, declining int
	for _, family := range m.Families() {
		if family.FiveYear == nil {
			continue
		}
		total++
		if *family.FiveYear < unpredictableBelow {
			declining++
		}
	}
	return declining*2 <= total
}
