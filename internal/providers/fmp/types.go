package fmp

import (
	"encoding/json"
	"strconv"
	"time"
)

// fmpQuote represents a real-time quote from FMP.
type fmpQuote struct {
	Symbol    string  `json:"symbol"`
	Name      string  `json:"name"`
	Price     float64 `json:"price"`
	Exchange  string  `json:"exchange"`
	EPS       float64 `json:"eps"`
	Timestamp int64   `json:"timestamp"`
}

// fmpRow is one period of a statement endpoint, decoded loosely so that
// absent and null fields stay absent instead of reading as zero.
type fmpRow map[string]json.RawMessage

// numbers returns the numeric fields of the row.
func (r fmpRow) numbers() map[string]float64 {
	out := make(map[string]float64, len(r))
	for k, raw := range r {
		if string(raw) == "null" {
			continue
		}
		var v float64
		if err := json.Unmarshal(raw, &v); err == nil {
			out[k] = v
		}
	}
	return out
}

func (r fmpRow) str(key string) string {
	var s string
	if err := json.Unmarshal(r[key], &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(r[key], &n); err == nil {
		return n.String()
	}
	return ""
}

// fiscalYear reads calendarYear (older API) or fiscalYear (stable API), and
// falls back to the year of the period end date.
func (r fmpRow) fiscalYear() int {
	for _, key := range []string{"calendarYear", "fiscalYear"} {
		if y, err := strconv.Atoi(r.str(key)); err == nil && y > 0 {
			return y
		}
	}
	return r.date().Year()
}

func (r fmpRow) date() time.Time {
	t, _ := time.Parse("2006-01-02", r.str("date"))
	return t
}
