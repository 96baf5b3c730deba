package normalize

import (
	"sort"

	"github.com/seenimoa/moatscore/pkg/models"
)

// accessor extracts one canonical value from a provider record.
type accessor func(models.ProviderRecord) (float64, bool)

// key reads a single provider field.
func key(name string) accessor {
	return func(r models.ProviderRecord) (float64, bool) {
		return r.Get(name)
	}
}

// sum adds fields that a provider splits across rows. All parts must be present.
func sum(names ...string) accessor {
	return func(r models.ProviderRecord) (float64, bool) {
		var total float64
		for _, n := range names {
			v, ok := r.Get(n)
			if !ok {
				return 0, false
			}
			total += v
		}
		return total, true
	}
}

// first evaluates accessors in order and returns the first value found.
func first(r models.ProviderRecord, accessors []accessor) *float64 {
	for _, get := range accessors {
		if v, ok := get(r); ok {
			return models.Float(v)
		}
	}
	return nil
}

// recordFields is the accessor table for provider records. Keys cover FMP
// statement JSON and Screener.in row labels.
var recordFields = struct {
	revenue, costOfRevenue, operatingIncome, incomeBeforeTax, incomeTaxExpense []accessor
	netIncome, eps, epsDiluted, shares                                         []accessor
	cash, totalAssets, shortTermDebt, longTermDebt, totalLiabilities, equity   []accessor
	operatingCashFlow, capex, freeCashFlow, dividendsPaid                      []accessor
	bookValuePerShare, roic, roe                                               []accessor
}{
	revenue:          []accessor{key("revenue"), key("totalRevenue"), key("Sales"), key("Revenue")},
	costOfRevenue:    []accessor{key("costOfRevenue"), key("Cost of Revenue")},
	operatingIncome:  []accessor{key("operatingIncome"), key("ebit"), key("Operating Profit"), key("Financing Profit")},
	incomeBeforeTax:  []accessor{key("incomeBeforeTax"), key("Profit before tax")},
	incomeTaxExpense: []accessor{key("incomeTaxExpense"), key("Tax")},
	netIncome:        []accessor{key("netIncome"), key("Net Profit")},
	eps:              []accessor{key("eps"), key("EPS in Rs"), key("EPS")},
	epsDiluted:       []accessor{key("epsdiluted"), key("epsDiluted")},
	shares:           []accessor{key("weightedAverageShsOut"), key("sharesOutstanding"), key("No. of Shares")},

	cash:             []accessor{key("cashAndCashEquivalents"), key("cashAndShortTermInvestments"), key("Cash Equivalents")},
	totalAssets:      []accessor{key("totalAssets"), key("Total Assets")},
	shortTermDebt:    []accessor{key("shortTermDebt"), key("Short term Borrowings")},
	longTermDebt:     []accessor{key("longTermDebt"), key("Borrowings")},
	totalLiabilities: []accessor{key("totalLiabilities"), key("Total Liabilities")},

	equity: []accessor{
		key("totalStockholdersEquity"),
		key("totalEquity"),
		sum("Equity Capital", "Reserves"),
	},

	operatingCashFlow: []accessor{key("operatingCashFlow"), key("netCashProvidedByOperatingActivities"), key("Cash from Operating Activity")},
	capex:             []accessor{key("capitalExpenditure"), key("capitalExpenditures"), key("Fixed Assets Purchased")},
	freeCashFlow:      []accessor{key("freeCashFlow"), key("Free Cash Flow")},
	dividendsPaid:     []accessor{key("dividendsPaid"), key("commonDividendsPaid"), key("Dividend Paid")},

	bookValuePerShare: []accessor{key("bookValuePerShare"), key("Book Value")},
	roic:              []accessor{key("roic"), key("ROCE %")},
	roe:               []accessor{key("roe"), key("ROE %")},
}

// FromRecords converts provider records into statements, newest first, keeping
// at most depth fiscal years. When a provider returns several records for the
// same fiscal year the first one is used.
func FromRecords(companyID string, records []models.ProviderRecord, depth int) []models.NormalizedFinancialStatement {
	if depth <= 0 {
		depth = DefaultDepth
	}

	sorted := make([]models.ProviderRecord, len(records))
	copy(sorted, records)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].FiscalYear > sorted[j].FiscalYear
	})

	seen := make(map[int]bool)
	out := make([]models.NormalizedFinancialStatement, 0, len(sorted))
	for _, r := range sorted {
		if len(out) == depth {
			break
		}
		if seen[r.FiscalYear] {
			continue
		}
		seen[r.FiscalYear] = true
		out = append(out, Finalize(FromRecord(companyID, r)))
	}
	return out
}

// FromRecord maps one provider record onto the canonical schema without
// applying derived-field formulas.
func FromRecord(companyID string, r models.ProviderRecord) models.NormalizedFinancialStatement {
	f := recordFields
	return models.NormalizedFinancialStatement{
		CompanyID:  companyID,
		FiscalYear: r.FiscalYear,
		PeriodEnd:  r.PeriodEnd,
		Source:     r.Source,

		Revenue:           first(r, f.revenue),
		CostOfRevenue:     first(r, f.costOfRevenue),
		OperatingIncome:   first(r, f.operatingIncome),
		IncomeBeforeTax:   first(r, f.incomeBeforeTax),
		IncomeTaxExpense:  first(r, f.incomeTaxExpense),
		NetIncome:         first(r, f.netIncome),
		EPS:               first(r, f.eps),
		EPSDiluted:        first(r, f.epsDiluted),
		SharesOutstanding: first(r, f.shares),

		Cash:             first(r, f.cash),
		TotalAssets:      first(r, f.totalAssets),
		ShortTermDebt:    first(r, f.shortTermDebt),
		LongTermDebt:     first(r, f.longTermDebt),
		TotalLiabilities: first(r, f.totalLiabilities),
		TotalEquity:      first(r, f.equity),

		OperatingCashFlow:   first(r, f.operatingCashFlow),
		CapitalExpenditures: first(r, f.capex),
		FreeCashFlow:        first(r, f.freeCashFlow),
		DividendsPaid:       first(r, f.dividendsPaid),

		BookValuePerShare: first(r, f.bookValuePerShare),
		ROIC:              first(r, f.roic),
		ROE:               first(r, f.roe),
	}
}
