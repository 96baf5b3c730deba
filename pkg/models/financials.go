package models

import (
	"sort"
	"time"
)

// Filing form and fiscal period values used by annual facts.
const (
	FormAnnual   = "10-K"
	PeriodFY     = "FY"
	PeriodAnnual = 0 // FiscalQuarter value for full-year statements
)

// RawFact is one reported value as delivered by a data provider.
// ConceptTags lists the candidate identifiers the value was reported under,
// most specific first.
type RawFact struct {
	ConceptTags  []string   `json:"concept_tags"`
	Taxonomy     string     `json:"taxonomy,omitempty"` // e.g., "us-gaap", "dei"
	Unit         string     `json:"unit"`               // "USD", "USD/shares", "shares"
	FiscalYear   int        `json:"fy"`
	FiscalPeriod string     `json:"fp"`   // "FY", "Q1".."Q4"
	Form         string     `json:"form"` // "10-K", "10-Q", ...
	PeriodStart  *time.Time `json:"start,omitempty"`
	PeriodEnd    time.Time  `json:"end"`
	Filed        time.Time  `json:"filed"`
	Value        float64    `json:"val"`
}

// Concept returns the primary concept identifier of the fact.
func (f RawFact) Concept() string {
	if len(f.ConceptTags) == 0 {
		return ""
	}
	return f.ConceptTags[0]
}

// IsAnnual reports whether the fact comes from an annual filing's full-year period.
func (f RawFact) IsAnnual() bool {
	return f.Form == FormAnnual && f.FiscalPeriod == PeriodFY
}

// FactSet indexes one company's facts by concept tag. Build it once with
// NewFactSet and treat it as read-only afterwards.
type FactSet struct {
	CompanyID string
	Name      string
	byTag     map[string][]RawFact
}

// NewFactSet indexes facts under every tag listed in their ConceptTags.
func NewFactSet(companyID string, facts []RawFact) *FactSet {
	fs := &FactSet{
		CompanyID: companyID,
		byTag:     make(map[string][]RawFact),
	}
	for _, f := range facts {
		for _, tag := range f.ConceptTags {
			fs.byTag[tag] = append(fs.byTag[tag], f)
		}
	}
	return fs
}

// Facts returns the facts reported under tag. The slice must not be modified.
func (fs *FactSet) Facts(tag string) []RawFact {
	if fs == nil {
		return nil
	}
	return fs.byTag[tag]
}

// Len returns the number of distinct concept tags in the set.
func (fs *FactSet) Len() int {
	if fs == nil {
		return 0
	}
	return len(fs.byTag)
}

// NormalizedFinancialStatement is one fiscal year (or quarter) of a company in
// the canonical schema. Every numeric field is nil when the source did not
// report it.
type NormalizedFinancialStatement struct {
	CompanyID     string    `json:"company_id"`
	Ticker        string    `json:"ticker,omitempty"`
	FiscalYear    int       `json:"fiscal_year"`
	FiscalQuarter int       `json:"fiscal_quarter"` // 0 = annual
	PeriodEnd     time.Time `json:"period_end,omitempty"`
	Source        string    `json:"source,omitempty"`

	// Income statement
	Revenue           *float64 `json:"revenue"`
	CostOfRevenue     *float64 `json:"cost_of_revenue"`
	OperatingIncome   *float64 `json:"operating_income"`
	IncomeBeforeTax   *float64 `json:"income_before_tax"`
	IncomeTaxExpense  *float64 `json:"income_tax_expense"`
	NetIncome         *float64 `json:"net_income"`
	EPS               *float64 `json:"eps"`
	EPSDiluted        *float64 `json:"eps_diluted"`
	SharesOutstanding *float64 `json:"shares_outstanding"`

	// Balance sheet
	Cash             *float64 `json:"cash"`
	TotalAssets      *float64 `json:"total_assets"`
	ShortTermDebt    *float64 `json:"short_term_debt"`
	LongTermDebt     *float64 `json:"long_term_debt"`
	TotalLiabilities *float64 `json:"total_liabilities"`
	TotalEquity      *float64 `json:"total_equity"`

	// Cash flow
	OperatingCashFlow   *float64 `json:"operating_cash_flow"`
	CapitalExpenditures *float64 `json:"capital_expenditures"`
	FreeCashFlow        *float64 `json:"free_cash_flow"`
	DividendsPaid       *float64 `json:"dividends_paid"`

	// Derived
	BookValuePerShare *float64 `json:"book_value_per_share"`

	// Provider-computed ratios (percent), used in preference to recomputation.
	ROIC *float64 `json:"roic,omitempty"`
	ROE  *float64 `json:"roe,omitempty"`
}

// Key returns the storage key components of the statement.
func (s NormalizedFinancialStatement) Key() (companyID string, fiscalYear, fiscalQuarter int) {
	return s.CompanyID, s.FiscalYear, s.FiscalQuarter
}

// SortNewestFirst returns a copy of stmts ordered by fiscal year (then quarter)
// descending. The input is left untouched.
func SortNewestFirst(stmts []NormalizedFinancialStatement) []NormalizedFinancialStatement {
	out := make([]NormalizedFinancialStatement, len(stmts))
	copy(out, stmts)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].FiscalYear != out[j].FiscalYear {
			return out[i].FiscalYear > out[j].FiscalYear
		}
		return out[i].FiscalQuarter > out[j].FiscalQuarter
	})
	return out
}

// ProviderRecord is one period of a provider's already semi-normalized
// statement data. Fields are keyed by the provider's own field names; a
// missing key means the provider did not report the value.
type ProviderRecord struct {
	FiscalYear int                `json:"fiscal_year"`
	PeriodEnd  time.Time          `json:"period_end,omitempty"`
	Source     string             `json:"source"`
	Fields     map[string]float64 `json:"fields"`
}

// Get returns the value stored under key, if present.
func (r ProviderRecord) Get(key string) (float64, bool) {
	v, ok := r.Fields[key]
	return v, ok
}

// Float returns a pointer to a copy of v.
func Float(v float64) *float64 {
	return &v
}

// Value dereferences p, returning 0 for nil.
func Value(p *float64) float64 {
	if p == nil {
		return 0
	}
	return *p
}
