// Package tags resolves provider-specific concept identifiers onto canonical
// financial statement fields.
//
// Each canonical field carries an ordered list of candidate concept tags.
// Order encodes which reporting convention is most standard: the first tag
// with any matching fact wins, even when a later tag would also match.
package tags

// UnitKind is the unit a fact must be reported in to match a field.
type UnitKind string

const (
	UnitUSD      UnitKind = "USD"
	UnitPerShare UnitKind = "USD/shares"
	UnitShares   UnitKind = "shares"
)

// Canonical field names.
const (
	Revenue             = "revenue"
	CostOfRevenue       = "costOfRevenue"
	OperatingIncome     = "operatingIncome"
	IncomeBeforeTax     = "incomeBeforeTax"
	IncomeTaxExpense    = "incomeTaxExpense"
	NetIncome           = "netIncome"
	EPS                 = "eps"
	EPSDiluted          = "epsDiluted"
	SharesOutstanding   = "sharesOutstanding"
	Cash                = "cash"
	TotalAssets         = "totalAssets"
	ShortTermDebt       = "shortTermDebt"
	LongTermDebt        = "longTermDebt"
	TotalLiabilities    = "totalLiabilities"
	TotalEquity         = "totalEquity"
	OperatingCashFlow   = "operatingCashFlow"
	CapitalExpenditures = "capitalExpenditures"
	DividendsPaid       = "dividendsPaid"
)

// Field describes how one canonical field is found in reported facts.
// Instant fields are point-in-time balances and do not require a period start.
type Field struct {
	Name    string
	Tags    []string
	Unit    UnitKind
	Instant bool
}

// Table is the default US-GAAP priority table.
var Table = []Field{
	{Name: Revenue, Unit: UnitUSD, Tags: []string{
		"Revenues",
		"RevenueFromContractWithCustomerExcludingAssessedTax",
		"RevenueFromContractWithCustomerIncludingAssessedTax",
		"SalesRevenueNet",
		"SalesRevenueGoodsNet",
		"SalesRevenueServicesNet",
	}},
	{Name: CostOfRevenue, Unit: UnitUSD, Tags: []string{
		"CostOfRevenue",
		"CostOfGoodsAndServicesSold",
		"CostOfGoodsSold",
		"CostOfServices",
	}},
	{Name: OperatingIncome, Unit: UnitUSD, Tags: []string{
		"OperatingIncomeLoss",
	}},
	{Name: IncomeBeforeTax, Unit: UnitUSD, Tags: []string{
		"IncomeLossFromContinuingOperationsBeforeIncomeTaxesExtraordinaryItemsNoncontrollingInterest",
		"IncomeLossFromContinuingOperationsBeforeIncomeTaxesMinorityInterestAndIncomeLossFromEquityMethodInvestments",
		"IncomeLossFromContinuingOperationsBeforeIncomeTaxesDomestic",
	}},
	{Name: IncomeTaxExpense, Unit: UnitUSD, Tags: []string{
		"IncomeTaxExpenseBenefit",
	}},
	{Name: NetIncome, Unit: UnitUSD, Tags: []string{
		"NetIncomeLoss",
		"ProfitLoss",
		"NetIncomeLossAvailableToCommonStockholdersBasic",
	}},
	{Name: EPS, Unit: UnitPerShare, Tags: []string{
		"EarningsPerShareBasic",
		"EarningsPerShareBasicAndDiluted",
	}},
	{Name: EPSDiluted, Unit: UnitPerShare, Tags: []string{
		"EarningsPerShareDiluted",
		"EarningsPerShareBasicAndDiluted",
	}},
	// Weighted average shares are duration facts; they still match in instant
	// mode since instant mode only drops the period start requirement.
	{Name: SharesOutstanding, Unit: UnitShares, Instant: true, Tags: []string{
		"WeightedAverageNumberOfSharesOutstandingBasic",
		"CommonStockSharesOutstanding",
		"EntityCommonStockSharesOutstanding",
	}},
	{Name: Cash, Unit: UnitUSD, Instant: true, Tags: []string{
		"CashAndCashEquivalentsAtCarryingValue",
		"CashCashEquivalentsRestrictedCashAndRestrictedCashEquivalents",
		"Cash",
	}},
	{Name: TotalAssets, Unit: UnitUSD, Instant: true, Tags: []string{
		"Assets",
	}},
	{Name: ShortTermDebt, Unit: UnitUSD, Instant: true, Tags: []string{
		"LongTermDebtCurrent",
		"DebtCurrent",
		"ShortTermBorrowings",
		"CommercialPaper",
	}},
	{Name: LongTermDebt, Unit: UnitUSD, Instant: true, Tags: []string{
		"LongTermDebtNoncurrent",
		"LongTermDebt",
		"LongTermDebtAndCapitalLeaseObligations",
	}},
	{Name: TotalLiabilities, Unit: UnitUSD, Instant: true, Tags: []string{
		"Liabilities",
	}},
	{Name: TotalEquity, Unit: UnitUSD, Instant: true, Tags: []string{
		"StockholdersEquity",
		"StockholdersEquityIncludingPortionAttributableToNoncontrollingInterest",
	}},
	{Name: OperatingCashFlow, Unit: UnitUSD, Tags: []string{
		"NetCashProvidedByUsedInOperatingActivities",
		"NetCashProvidedByUsedInOperatingActivitiesContinuingOperations",
	}},
	{Name: CapitalExpenditures, Unit: UnitUSD, Tags: []string{
		"PaymentsToAcquirePropertyPlantAndEquipment",
		"PaymentsToAcquireProductiveAssets",
	}},
	{Name: DividendsPaid, Unit: UnitUSD, Tags: []string{
		"PaymentsOfDividends",
		"PaymentsOfDividendsCommonStock",
	}},
}

// Lookup returns the table entry for a canonical field name.
func Lookup(name string) (Field, bool) {
	for _, f := range Table {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// AllTags returns every concept tag referenced by the table, in table order
// and without duplicates. Providers use it to limit what they extract.
func AllTags() []string {
	seen := make(map[string]bool)
	var out []string
	for _, f := range Table {
		for _, t := range f.Tags {
			if !seen[t] {
				seen[t] = true
				out = append(out, t)
			}
		}
	}
	return out
}
