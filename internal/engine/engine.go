// Package engine runs the scoring pipeline for one company or many:
// metrics, scores, valuation, payback time and a recommendation.
package engine

import (
	"time"

	"github.com/google/uuid"

	"github.com/seenimoa/moatscore/internal/analysis/metrics"
	"github.com/seenimoa/moatscore/internal/analysis/scoring"
	"github.com/seenimoa/moatscore/internal/analysis/valuation"
	"github.com/seenimoa/moatscore/pkg/models"
)

// Options tune a single analysis.
type Options struct {
	// Assumptions replace the estimated valuation inputs. A zero CurrentEPS
	// is filled from the latest statement.
	Assumptions *models.ValuationInput

	// CurrentPrice enables the recommendation and prices payback time.
	// Without it payback time is measured at the MOS price.
	CurrentPrice *float64

	// MinReturnRate (percent) and Years replace the defaults of estimated
	// assumptions when set. Explicit assumptions carry their own.
	MinReturnRate float64
	Years         int

	// Now stamps the analysis; defaults to time.Now.
	Now func() time.Time
}

// Analyze scores one company from its statements. It fails only when
// explicit assumptions are invalid; missing data lowers scores instead.
func Analyze(company models.Company, statements []models.NormalizedFinancialStatement, opts Options) (models.CompanyAnalysis, error) {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	stmts := models.SortNewestFirst(statements)

	a := models.CompanyAnalysis{
		ID:           uuid.NewString(),
		CompanyID:    company.ID,
		Ticker:       company.Ticker,
		Name:         company.Name,
		Statements:   stmts,
		CurrentPrice: opts.CurrentPrice,
		CalculatedAt: now().UTC(),
	}

	a.Metrics = metrics.BigFive(stmts)
	a.Score = scoring.Score(stmts, a.Metrics)
	a.Score.CalculatedAt = a.CalculatedAt

	var eps float64
	if len(stmts) > 0 {
		eps = models.Value(stmts[0].EPS)
	}

	var in models.ValuationInput
	if opts.Assumptions != nil {
		in = *opts.Assumptions
		if in.CurrentEPS == 0 {
			in.CurrentEPS = eps
		}
	} else {
		in = valuation.Assumptions(a.Metrics, eps)
		if opts.MinReturnRate != 0 {
			in.MinReturnRate = opts.MinReturnRate
		}
		if opts.Years != 0 {
			in.Years = opts.Years
		}
	}
	in = in.WithDefaults()
	a.Assumptions = &in

	res, err := valuation.Compute(in)
	if err != nil {
		return models.CompanyAnalysis{}, err
	}
	a.Valuation = res
	if res != nil {
		a.Score.StickerPrice = models.Float(res.StickerPrice)
		a.Score.MOSPrice = models.Float(res.MOSPrice)
	}

	price := opts.CurrentPrice
	if price == nil && res != nil {
		price = models.Float(res.MOSPrice)
	}
	if price != nil {
		years := valuation.PaybackTime(*price, in.CurrentEPS, in.GrowthRate/100)
		a.Score.PaybackTime = &years
	}

	if opts.CurrentPrice != nil && res != nil {
		a.Recommendation = valuation.Recommend(*opts.CurrentPrice, res.StickerPrice, res.MOSPrice)
	}
	return a, nil
}
