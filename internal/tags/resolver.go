package tags

import (
	"time"

	"github.com/seenimoa/moatscore/pkg/models"
)

// minAnnualSpan filters quarterly disclosures that annual reports sometimes
// carry with fp=FY (e.g. fourth-quarter tables in the notes).
const minAnnualSpan = 300 * 24 * time.Hour

// Resolver looks up canonical field values in one company's facts.
// It is a pure lookup and safe for concurrent use.
type Resolver struct {
	facts *models.FactSet
}

// NewResolver creates a resolver over facts.
func NewResolver(facts *models.FactSet) *Resolver {
	return &Resolver{facts: facts}
}

// Duration returns the full-year value reported under the first tag, in
// priority order, that has a matching annual fact for fiscalYear.
func (r *Resolver) Duration(tags []string, fiscalYear int, unit UnitKind) (float64, bool) {
	return r.resolve(tags, fiscalYear, unit, false)
}

// Instant is Duration for point-in-time balances: the period start is not
// required, but the fact must still come from an annual filing.
func (r *Resolver) Instant(tags []string, fiscalYear int, unit UnitKind) (float64, bool) {
	return r.resolve(tags, fiscalYear, unit, true)
}

// Field resolves a table entry for fiscalYear, or nil when no tag matches.
func (r *Resolver) Field(f Field, fiscalYear int) *float64 {
	var (
		v  float64
		ok bool
	)
	if f.Instant {
		v, ok = r.Instant(f.Tags, fiscalYear, f.Unit)
	} else {
		v, ok = r.Duration(f.Tags, fiscalYear, f.Unit)
	}
	if !ok {
		return nil
	}
	return models.Float(v)
}

// Named resolves a canonical field by name.
func (r *Resolver) Named(name string, fiscalYear int) *float64 {
	f, ok := Lookup(name)
	if !ok {
		return nil
	}
	return r.Field(f, fiscalYear)
}

func (r *Resolver) resolve(tags []string, fiscalYear int, unit UnitKind, instant bool) (float64, bool) {
	for _, tag := range tags {
		if best, ok := pick(r.facts.Facts(tag), fiscalYear, unit, instant); ok {
			return best.Value, true
		}
	}
	return 0, false
}

// pick chooses among one tag's facts. An annual report restates prior years
// under its own fiscal year, so the fact with the latest period end is the
// current one; ties go to the latest filing.
func pick(facts []models.RawFact, fiscalYear int, unit UnitKind, instant bool) (models.RawFact, bool) {
	var (
		best  models.RawFact
		found bool
	)
	for _, f := range facts {
		if !matches(f, fiscalYear, unit, instant) {
			continue
		}
		if !found ||
			f.PeriodEnd.After(best.PeriodEnd) ||
			(f.PeriodEnd.Equal(best.PeriodEnd) && f.Filed.After(best.Filed)) {
			best = f
			found = true
		}
	}
	return best, found
}

func matches(f models.RawFact, fiscalYear int, unit UnitKind, instant bool) bool {
	if !f.IsAnnual() || f.FiscalYear != fiscalYear || f.Unit != string(unit) {
		return false
	}
	if instant {
		return true
	}
	if f.PeriodStart == nil {
		return false
	}
	return f.PeriodEnd.Sub(*f.PeriodStart) >= minAnnualSpan
}
