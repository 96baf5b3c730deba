package screener

import (
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/seenimoa/moatscore/pkg/models"
)

// Annual sections of a company page, in merge order. A label already set by
// an earlier section is kept.
var sections = []string{"#profit-loss", "#balance-sheet", "#cash-flow", "#ratios"}

// crore is the unit of every monetary table cell.
const crore = 1e7

// parseRecords reads the annual tables into one record per fiscal year,
// newest first. Monetary rows are converted from crores to rupees; per-share
// and percentage rows are kept as shown. The "Tax %" row becomes a "Tax"
// amount computed from profit before tax.
func parseRecords(doc *goquery.Document) []models.ProviderRecord {
	byYear := make(map[int]*models.ProviderRecord)
	var yearEnd time.Month // fiscal year end month, from the first dated column

	for _, id := range sections {
		section := doc.Find(id)
		if section.Length() == 0 {
			continue
		}
		table := section.Find("table").First()

		// Header cells name the periods; column 0 is the row label.
		var columns []*models.ProviderRecord
		table.Find("thead th").Each(func(i int, th *goquery.Selection) {
			if i == 0 {
				return
			}
			end, ok := parsePeriod(th.Text())
			if ok && yearEnd == 0 {
				yearEnd = end.Month()
			}
			if !ok || end.Month() != yearEnd {
				columns = append(columns, nil) // TTM and interim columns
				return
			}
			rec, seen := byYear[end.Year()]
			if !seen {
				rec = &models.ProviderRecord{
					FiscalYear: end.Year(),
					PeriodEnd:  end,
					Source:     providerName,
					Fields:     make(map[string]float64),
				}
				byYear[end.Year()] = rec
			}
			columns = append(columns, rec)
		})

		table.Find("tbody tr").Each(func(_ int, row *goquery.Selection) {
			label := cleanLabel(row.Find("td").First().Text())
			if label == "" {
				return
			}
			scale := crore
			if strings.Contains(label, "%") || strings.Contains(label, "EPS") {
				scale = 1
			}
			row.Find("td").Each(func(i int, cell *goquery.Selection) {
				if i == 0 || i-1 >= len(columns) || columns[i-1] == nil {
					return
				}
				v, ok := parseNumber(cell.Text())
				if !ok {
					return
				}
				rec := columns[i-1]
				if _, set := rec.Fields[label]; !set {
					rec.Fields[label] = v * scale
				}
			})
		})
	}

	out := make([]models.ProviderRecord, 0, len(byYear))
	for _, rec := range byYear {
		if pct, ok := rec.Fields["Tax %"]; ok {
			if pbt, ok := rec.Fields["Profit before tax"]; ok {
				rec.Fields["Tax"] = pbt * pct / 100
			}
		}
		if len(rec.Fields) > 0 {
			out = append(out, *rec)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].FiscalYear > out[j].FiscalYear })
	return out
}

// parsePeriod reads a column header such as "Mar 2024" as the last day of
// that month.
func parsePeriod(s string) (time.Time, bool) {
	t, err := time.Parse("Jan 2006", strings.TrimSpace(s))
	if err != nil {
		return time.Time{}, false
	}
	return t.AddDate(0, 1, -1), true
}

// cleanLabel strips the expand button ("Sales +") and collapses whitespace.
func cleanLabel(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.TrimSuffix(s, "+")
	return strings.TrimSpace(s)
}

// parseNumber parses a number in Screener.in format, handling commas and
// percent signs. Empty cells report false.
func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	s = strings.ReplaceAll(s, ",", "")
	s = strings.ReplaceAll(s, "%", "")
	s = strings.ReplaceAll(s, "₹", "")
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
