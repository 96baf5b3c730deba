package screener

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/moatscore/internal/provider"
)

const companyPage = `<html><body>
<h1>Tata Consultancy Services Ltd</h1>
<section id="profit-loss">
  <table>
    <thead><tr><th></th><th>Mar 2022</th><th>Mar 2023</th><th>Mar 2024</th><th>TTM</th></tr></thead>
    <tbody>
      <tr><td class="text">Sales&nbsp;<button>+</button></td><td>1,91,754</td><td>2,25,458</td><td>2,40,893</td><td>2,45,315</td></tr>
      <tr><td class="text">Operating Profit</td><td>53,057</td><td>59,259</td><td>64,296</td><td>65,000</td></tr>
      <tr><td class="text">Profit before tax</td><td>51,687</td><td>56,907</td><td>61,997</td><td>62,000</td></tr>
      <tr><td class="text">Tax %</td><td>25%</td><td>25%</td><td>26%</td><td></td></tr>
      <tr><td class="text">Net Profit +</td><td>38,449</td><td>42,303</td><td>46,099</td><td>46,500</td></tr>
      <tr><td class="text">EPS in Rs</td><td>103.62</td><td>115.19</td><td>125.88</td><td>127.0</td></tr>
    </tbody>
  </table>
</section>
<section id="balance-sheet">
  <table>
    <thead><tr><th></th><th>Mar 2022</th><th>Mar 2023</th><th>Mar 2024</th><th>Sep 2024</th></tr></thead>
    <tbody>
      <tr><td>Equity Capital</td><td>366</td><td>366</td><td>362</td><td>362</td></tr>
      <tr><td>Reserves</td><td>88,773</td><td>90,058</td><td>90,127</td><td>95,000</td></tr>
      <tr><td>Borrowings +</td><td>7,818</td><td>7,688</td><td>8,021</td><td></td></tr>
    </tbody>
  </table>
</section>
<section id="cash-flow">
  <table>
    <thead><tr><th></th><th>Mar 2023</th><th>Mar 2024</th></tr></thead>
    <tbody>
      <tr><td>Cash from Operating Activity +</td><td>41,965</td><td>44,338</td></tr>
    </tbody>
  </table>
</section>
<section id="ratios">
  <table>
    <thead><tr><th></th><th>Mar 2023</th><th>Mar 2024</th></tr></thead>
    <tbody>
      <tr><td>ROCE %</td><td>59%</td><td>64%</td></tr>
    </tbody>
  </table>
</section>
</body></html>`

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/company/TCS/consolidated/", "/company/INFY/":
			w.Write([]byte(companyPage))
		case "/company/EMPTY/consolidated/":
			w.Write([]byte("<html><body><h1>Nothing</h1></body></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestProviderInfo(t *testing.T) {
	p := New("")
	if p.Info().Name != "screener" {
		t.Errorf("expected name screener, got %s", p.Info().Name)
	}
	if err := p.Init(nil); err != nil {
		t.Fatalf("Init: %v", err)
	}
	assert.Equal(t, []provider.ModelType{provider.ModelFinancialRecords}, p.SupportedModels())
}

func TestFinancialRecords(t *testing.T) {
	p := New(newTestServer(t).URL)
	res, err := p.Fetcher(provider.ModelFinancialRecords).Fetch(context.Background(), provider.QueryParams{
		provider.ParamSymbol: "tcs",
	})
	require.NoError(t, err)

	fr := res.Data.(*provider.FinancialRecords)
	assert.Equal(t, "TCS", fr.Company.Ticker)
	assert.Equal(t, "Tata Consultancy Services Ltd", fr.Company.Name)
	require.Len(t, fr.Records, 3, "TTM and interim columns are skipped")

	latest := fr.Records[0]
	assert.Equal(t, 2024, latest.FiscalYear)
	assert.Equal(t, time.Date(2024, 3, 31, 0, 0, 0, 0, time.UTC), latest.PeriodEnd)
	assert.Equal(t, "screener", latest.Source)
	assert.Equal(t, 240893*crore, latest.Fields["Sales"])
	assert.Equal(t, 46099*crore, latest.Fields["Net Profit"])
	assert.Equal(t, 125.88, latest.Fields["EPS in Rs"])
	assert.Equal(t, 64.0, latest.Fields["ROCE %"])
	assert.InDelta(t, 61997*crore*0.26, latest.Fields["Tax"], 1)
	assert.Equal(t, 362*crore, latest.Fields["Equity Capital"])
	assert.Equal(t, 44338*crore, latest.Fields["Cash from Operating Activity"])

	oldest := fr.Records[2]
	assert.Equal(t, 2022, oldest.FiscalYear)
	_, ok := oldest.Get("Cash from Operating Activity")
	assert.False(t, ok)
}

func TestFinancialRecordsStandaloneFallback(t *testing.T) {
	p := New(newTestServer(t).URL)
	res, err := p.Fetcher(provider.ModelFinancialRecords).Fetch(context.Background(), provider.QueryParams{
		provider.ParamSymbol: "INFY",
		provider.ParamLimit:  "2",
	})
	require.NoError(t, err)
	assert.Len(t, res.Data.(*provider.FinancialRecords).Records, 2)
}

func TestFinancialRecordsNoData(t *testing.T) {
	p := New(newTestServer(t).URL)
	for _, sym := range []string{"EMPTY", "MISSING"} {
		_, err := p.Fetcher(provider.ModelFinancialRecords).Fetch(context.Background(), provider.QueryParams{
			provider.ParamSymbol: sym,
		})
		var noData *provider.ErrNoData
		assert.True(t, errors.As(err, &noData), "%s: got %v", sym, err)
	}
}

func TestParseRecordsEmptyDocument(t *testing.T) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader("<html></html>"))
	require.NoError(t, err)
	assert.Empty(t, parseRecords(doc))
}

func TestParseNumber(t *testing.T) {
	tests := []struct {
		input string
		want  float64
		ok    bool
	}{
		{"1,91,754", 191754, true},
		{"25%", 25, true},
		{"-1,234.5", -1234.5, true},
		{"₹ 3,500", 3500, true},
		{"", 0, false},
		{"--", 0, false},
	}
	for _, tt := range tests {
		got, ok := parseNumber(tt.input)
		if ok != tt.ok || got != tt.want {
			t.Errorf("parseNumber(%q) = %v, %v; want %v, %v", tt.input, got, ok, tt.want, tt.ok)
		}
	}
}

func TestCleanLabel(t *testing.T) {
	tests := map[string]string{
		"Sales\u00a0+":                   "Sales",
		"  Net Profit +  ":               "Net Profit",
		"Cash from Operating Activity +": "Cash from Operating Activity",
		"ROCE %":                         "ROCE %",
	}
	for in, want := range tests {
		if got := cleanLabel(in); got != want {
			t.Errorf("cleanLabel(%q) = %q, want %q", in, got, want)
		}
	}
}
