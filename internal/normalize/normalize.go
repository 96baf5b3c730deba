// Package normalize assembles canonical financial statements from resolved
// facts or from provider records.
//
// Normalization never fails: data a source did not report stays nil.
package normalize

import (
	"math"
	"sort"
	"time"

	"github.com/seenimoa/moatscore/internal/tags"
	"github.com/seenimoa/moatscore/pkg/models"
)

// DefaultDepth is the number of fiscal years normalized when the caller
// does not ask for a specific depth.
const DefaultDepth = 10

// SourceSEC marks statements built from SEC XBRL facts.
const SourceSEC = "sec"

// yearConcepts are tried in order to find the fiscal years a company has
// reported. The first field with any annual fact defines the year set.
var yearConcepts = []string{tags.Revenue, tags.NetIncome, tags.TotalAssets}

// FromFacts builds up to depth annual statements, newest first.
func FromFacts(companyID string, facts *models.FactSet, depth int) []models.NormalizedFinancialStatement {
	if depth <= 0 {
		depth = DefaultDepth
	}
	years, ends := FiscalYears(facts)
	if len(years) > depth {
		years = years[:depth]
	}

	r := tags.NewResolver(facts)
	out := make([]models.NormalizedFinancialStatement, 0, len(years))
	for _, fy := range years {
		s := models.NormalizedFinancialStatement{
			CompanyID:  companyID,
			FiscalYear: fy,
			PeriodEnd:  ends[fy],
			Source:     SourceSEC,
		}
		s.Revenue = r.Named(tags.Revenue, fy)
		s.CostOfRevenue = r.Named(tags.CostOfRevenue, fy)
		s.OperatingIncome = r.Named(tags.OperatingIncome, fy)
		s.IncomeBeforeTax = r.Named(tags.IncomeBeforeTax, fy)
		s.IncomeTaxExpense = r.Named(tags.IncomeTaxExpense, fy)
		s.NetIncome = r.Named(tags.NetIncome, fy)
		s.EPS = r.Named(tags.EPS, fy)
		s.EPSDiluted = r.Named(tags.EPSDiluted, fy)
		s.SharesOutstanding = r.Named(tags.SharesOutstanding, fy)
		s.Cash = r.Named(tags.Cash, fy)
		s.TotalAssets = r.Named(tags.TotalAssets, fy)
		s.ShortTermDebt = r.Named(tags.ShortTermDebt, fy)
		s.LongTermDebt = r.Named(tags.LongTermDebt, fy)
		s.TotalLiabilities = r.Named(tags.TotalLiabilities, fy)
		s.TotalEquity = r.Named(tags.TotalEquity, fy)
		s.OperatingCashFlow = r.Named(tags.OperatingCashFlow, fy)
		s.CapitalExpenditures = r.Named(tags.CapitalExpenditures, fy)
		s.DividendsPaid = r.Named(tags.DividendsPaid, fy)

		out = append(out, Finalize(s))
	}
	return out
}

// FiscalYears returns the distinct fiscal years, newest first, of the first
// year-defining concept tag that has annual facts, along with the latest
// period end seen for each year.
func FiscalYears(facts *models.FactSet) ([]int, map[int]time.Time) {
	ends := make(map[int]time.Time)
	for _, name := range yearConcepts {
		field, _ := tags.Lookup(name)
		for _, tag := range field.Tags {
			for _, f := range facts.Facts(tag) {
				if !f.IsAnnual() {
					continue
				}
				if cur, ok := ends[f.FiscalYear]; !ok || f.PeriodEnd.After(cur) {
					ends[f.FiscalYear] = f.PeriodEnd
				}
			}
			if len(ends) > 0 {
				years := make([]int, 0, len(ends))
				for fy := range ends {
					years = append(years, fy)
				}
				sort.Sort(sort.Reverse(sort.IntSlice(years)))
				return years, ends
			}
		}
	}
	return nil, ends
}

// Finalize applies the derived-field formulas to s and returns the result.
//
//   - free cash flow = operating cash flow - |capex|, only when both are present
//   - book value per share = equity / shares, only when shares > 0
//   - eps = net income / shares, only when no eps was reported and shares > 0
//   - diluted eps falls back to basic eps
func Finalize(s models.NormalizedFinancialStatement) models.NormalizedFinancialStatement {
	if s.OperatingCashFlow != nil && s.CapitalExpenditures != nil {
		s.FreeCashFlow = models.Float(*s.OperatingCashFlow - math.Abs(*s.CapitalExpenditures))
	}

	hasShares := s.SharesOutstanding != nil && *s.SharesOutstanding > 0
	if hasShares && s.TotalEquity != nil {
		s.BookValuePerShare = models.Float(*s.TotalEquity / *s.SharesOutstanding)
	}
	if s.EPS == nil && hasShares && s.NetIncome != nil {
		s.EPS = models.Float(*s.NetIncome / *s.SharesOutstanding)
	}
	if s.EPSDiluted == nil && s.EPS != nil {
		s.EPSDiluted = models.Float(*s.EPS)
	}
	return s
}
