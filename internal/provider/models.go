package provider

import "github.com/seenimoa/moatscore/pkg/models"

// ModelType names a kind of data a fetcher returns. The comment on each
// constant is the concrete type stored in FetchResult.Data.
type ModelType string

const (
	ModelCompanyFacts     ModelType = "CompanyFacts"     // *CompanyFacts
	ModelFinancialRecords ModelType = "FinancialRecords" // *FinancialRecords
	ModelCIKMap           ModelType = "CIKMap"           // models.CIKMapping
	ModelAnnualFilings    ModelType = "AnnualFilings"    // []models.Filing
	ModelEquityQuote      ModelType = "EquityQuote"      // models.Quote
)

// AllModels returns every model type.
func AllModels() []ModelType {
	return []ModelType{
		ModelCompanyFacts,
		ModelFinancialRecords,
		ModelCIKMap,
		ModelAnnualFilings,
		ModelEquityQuote,
	}
}

// CompanyFacts is a company's raw reported facts, e.g. SEC XBRL company facts.
type CompanyFacts struct {
	Company models.Company   `json:"company"`
	Facts   []models.RawFact `json:"facts"`
}

// FinancialRecords is a company's pre-normalized statement history, one
// record per fiscal year, newest first.
type FinancialRecords struct {
	Company models.Company          `json:"company"`
	Records []models.ProviderRecord `json:"records"`
}
