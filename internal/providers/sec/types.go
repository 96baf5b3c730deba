package sec

import "time"

// --- EDGAR Company Facts (XBRL) ---

// edgarCompanyFactsResponse is the response from the company facts endpoint.
type edgarCompanyFactsResponse struct {
	CIK        int                             `json:"cik"`
	EntityName string                          `json:"entityName"`
	Facts      map[string]map[string]edgarFact `json:"facts"` // taxonomy -> concept -> fact
}

type edgarFact struct {
	Label       string                     `json:"label"`
	Description string                     `json:"description"`
	Units       map[string][]edgarFactUnit `json:"units"` // unit type ("USD", "shares") -> values
}

type edgarFactUnit struct {
	Start string  `json:"start"`
	End   string  `json:"end"`
	Val   float64 `json:"val"`
	Accn  string  `json:"accn"`
	FY    int     `json:"fy"`
	FP    string  `json:"fp"` // "Q1", "Q2", "Q3", "FY"
	Form  string  `json:"form"`
	Filed string  `json:"filed"`
	Frame string  `json:"frame,omitempty"`
}

// --- CIK / Ticker Mapping ---

// edgarTickerEntry is a row from company_tickers.json, which is a map of
// row index to entry: {"0": {cik_str, ticker, title}, ...}
type edgarTickerEntry struct {
	CIK    int    `json:"cik_str"`
	Ticker string `json:"ticker"`
	Title  string `json:"title"`
}

// --- Helper for date parsing ---

func parseSECDate(s string) time.Time {
	// Try common SEC date formats.
	for _, layout := range []string{
		"2006-01-02",
		"2006-01-02T15:04:05.000Z",
		"01/02/2006",
		time.RFC3339,
	} {
		if t, err := time.Parse(layout, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
