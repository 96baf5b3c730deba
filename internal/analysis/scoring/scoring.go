// Package scoring turns Big Five metrics into 0-100 quality scores.
//
// Every function here is pure. Missing inputs lower a score but never make it
// undefined: a company with no usable data scores 0.
package scoring

import (
	"math"

	"github.com/seenimoa/moatscore/pkg/models"
)

// Component weights.
const (
	roicWeight1Year  = 0.2
	roicWeight5Year  = 0.3
	roicWeight10Year = 0.5

	moatWeight1Year  = 1.0
	moatWeight5Year  = 2.0
	moatWeight10Year = 3.0

	managementROICWeight = 0.8
	managementDebtWeight = 0.2

	valueMoatWeight = 0.5
	valueROICWeight = 0.4
	valueDebtWeight = 0.1
)

// payoffStep maps a maximum debt payoff period, in years, to a score.
type payoffStep struct {
	maxYears float64
	score    int
}

var payoffStaircase = []payoffStep{
	{1, 100},
	{2, 90},
	{3, 80},
	{4, 70},
	{5, 60},
	{6, 50},
	{7, 40},
	{8, 30},
	{10, 20},
}

const payoffFloorScore = 10

// Bucket maps a percentage (ROIC or growth) to a score. Missing is 0.
func Bucket(v *float64) float64 {
	switch {
	case v == nil:
		return 0
	case *v >= 15:
		return 100
	case *v >= 10:
		return 80
	case *v >= 5:
		return 50
	case *v >= 0:
		return 25
	default:
		return 0
	}
}

// weighted accumulates bucket scores, renormalizing over present values.
type weighted struct {
	sum, weight float64
}

func (w *weighted) add(v *float64, weight float64) {
	if v == nil {
		return
	}
	w.sum += Bucket(v) * weight
	w.weight += weight
}

func (w *weighted) score() int {
	if w.weight == 0 {
		return 0
	}
	return round(w.sum / w.weight)
}

// ROICScore weights the 1, 5 and 10 year ROIC buckets 0.2, 0.3 and 0.5.
func ROICScore(m models.BigFiveMetrics) int {
	var w weighted
	w.add(m.ROIC1Year, roicWeight1Year)
	w.add(m.ROIC5Year, roicWeight5Year)
	w.add(m.ROIC10Year, roicWeight10Year)
	return w.score()
}

// MoatScore buckets all twelve growth rates, weighting 10, 5 and 1 year
// rates 3, 2 and 1 within each family.
func MoatScore(m models.BigFiveMetrics) int {
	var w weighted
	for _, g := range m.Families() {
		w.add(g.TenYear, moatWeight10Year)
		w.add(g.FiveYear, moatWeight5Year)
		w.add(g.OneYear, moatWeight1Year)
	}
	return w.score()
}

// DebtScore rates how many years of free cash flow the latest statement's
// debt would take to repay. Missing debt legs count as zero. A company with no
// statements scores 0.
func DebtScore(latest *models.NormalizedFinancialStatement) int {
	if latest == nil {
		return 0
	}
	total := models.Value(latest.LongTermDebt) + models.Value(latest.ShortTermDebt)
	return DebtScoreForPayoff(total, latest.FreeCashFlow)
}

// DebtScoreForPayoff scores totalDebt against free cash flow.
func DebtScoreForPayoff(totalDebt float64, freeCashFlow *float64) int {
	if totalDebt <= 0 {
		return 100
	}
	if freeCashFlow == nil || *freeCashFlow <= 0 {
		return 0
	}
	years := totalDebt / *freeCashFlow
	for _, step := range payoffStaircase {
		if years <= step.maxYears {
			return step.score
		}
	}
	return payoffFloorScore
}

// ManagementScore = 0.8 roic + 0.2 debt.
func ManagementScore(roicScore, debtScore int) int {
	return round(managementROICWeight*float64(roicScore) + managementDebtWeight*float64(debtScore))
}

// ValueScore = 0.5 moat + 0.4 roic + 0.1 debt.
func ValueScore(moatScore, roicScore, debtScore int) int {
	return round(valueMoatWeight*float64(moatScore) + valueROICWeight*float64(roicScore) + valueDebtWeight*float64(debtScore))
}

// Score computes every component score. statements may be in any order; the
// debt score uses the newest one. Valuation fields are left nil.
func Score(statements []models.NormalizedFinancialStatement, m models.BigFiveMetrics) models.ScoreResult {
	var latest *models.NormalizedFinancialStatement
	if len(statements) > 0 {
		sorted := models.SortNewestFirst(statements)
		latest = &sorted[0]
	}

	roic := ROICScore(m)
	moat := MoatScore(m)
	debt := DebtScore(latest)

	return models.ScoreResult{
		ValueScore:      ValueScore(moat, roic, debt),
		ROICScore:       roic,
		MoatScore:       moat,
		DebtScore:       debt,
		ManagementScore: ManagementScore(roic, debt),
	}
}

func round(v float64) int {
	return int(math.Round(v))
}
