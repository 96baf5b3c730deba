package engine

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/seenimoa/moatscore/pkg/models"
)

// Job is one company's input to Batch.
type Job struct {
	Company    models.Company
	Statements []models.NormalizedFinancialStatement
	Options    Options
}

// Failure records a company that could not be analyzed.
type Failure struct {
	Ticker string `json:"ticker"`
	Err    error  `json:"-"`
}

func (f Failure) Error() string {
	return fmt.Sprintf("%s: %v", f.Ticker, f.Err)
}

// Unwrap returns the underlying error.
func (f Failure) Unwrap() error { return f.Err }

// BatchResult holds ranked analyses and per-company failures.
type BatchResult struct {
	Analyses []models.CompanyAnalysis
	Failures []Failure
}

// Progress is called after each company finishes, from the worker that ran
// it. Exactly one of analysis and err is set; err is a Failure.
type Progress func(done, total int, analysis *models.CompanyAnalysis, err error)

// AnalyzeFunc produces one company's analysis.
type AnalyzeFunc func(ctx context.Context, company models.Company) (models.CompanyAnalysis, error)

// Batch analyzes every job on up to workers goroutines. Jobs are keyed by
// ticker: a later job replaces an earlier one for the same ticker.
func Batch(ctx context.Context, jobs []Job, workers int, progress Progress) (*BatchResult, error) {
	byTicker := make(map[string]Job, len(jobs))
	companies := make([]models.Company, 0, len(jobs))
	for _, j := range jobs {
		if _, dup := byTicker[j.Company.Ticker]; !dup {
			companies = append(companies, j.Company)
		}
		byTicker[j.Company.Ticker] = j
	}
	return Run(ctx, companies, workers, func(_ context.Context, c models.Company) (models.CompanyAnalysis, error) {
		j := byTicker[c.Ticker]
		return Analyze(j.Company, j.Statements, j.Options)
	}, progress)
}

// Run calls fn for every company on up to workers goroutines (GOMAXPROCS when
// workers is not positive). Failures of single companies are collected; only
// cancellation of ctx fails the run. Analyses are ranked by value score, best
// first, with ties broken by ticker.
func Run(ctx context.Context, companies []models.Company, workers int, fn AnalyzeFunc, progress Progress) (*BatchResult, error) {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	var (
		mu   sync.Mutex
		done int
		out  = &BatchResult{}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)

	for _, c := range companies {
		c := c
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			a, err := fn(gctx, c)

			mu.Lock()
			done++
			n := done
			fail := Failure{Ticker: c.Ticker, Err: err}
			if err != nil {
				out.Failures = append(out.Failures, fail)
			} else {
				out.Analyses = append(out.Analyses, a)
			}
			mu.Unlock()

			if progress != nil {
				if err != nil {
					progress(n, len(companies), nil, fail)
				} else {
					progress(n, len(companies), &a, nil)
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	Rank(out.Analyses)
	sort.Slice(out.Failures, func(i, j int) bool {
		return out.Failures[i].Ticker < out.Failures[j].Ticker
	})
	return out, nil
}

// Rank sorts analyses by value score descending, then ticker ascending.
func Rank(analyses []models.CompanyAnalysis) {
	sort.SliceStable(analyses, func(i, j int) bool {
		a, b := analyses[i], analyses[j]
		if a.Score.ValueScore != b.Score.ValueScore {
			return a.Score.ValueScore > b.Score.ValueScore
		}
		return a.Ticker < b.Ticker
	})
}
