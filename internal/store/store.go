// Package store persists normalized statements and company analyses.
//
// Two backends are available: an embedded badgerhold database for local use
// and PostgreSQL (JSONB documents) for shared deployments.
package store

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/seenimoa/moatscore/internal/config"
	"github.com/seenimoa/moatscore/pkg/models"
)

// ErrNotFound is returned when no record matches a lookup.
var ErrNotFound = errors.New("store: not found")

// Store is the persistence layer used by the service.
type Store interface {
	// SaveStatements upserts statements keyed by company, fiscal year and
	// fiscal quarter.
	SaveStatements(ctx context.Context, stmts []models.NormalizedFinancialStatement) error

	// Statements returns up to depth statements for a company, newest first.
	// A non-positive depth returns all of them.
	Statements(ctx context.Context, companyID string, depth int) ([]models.NormalizedFinancialStatement, error)

	// SaveAnalysis stores an analysis keyed by company and calculation time.
	SaveAnalysis(ctx context.Context, a models.CompanyAnalysis) error

	// LatestAnalysis returns the most recent analysis for a company.
	LatestAnalysis(ctx context.Context, companyID string) (*models.CompanyAnalysis, error)

	// LatestAnalysisByTicker is LatestAnalysis keyed by ticker, case-insensitive.
	LatestAnalysisByTicker(ctx context.Context, ticker string) (*models.CompanyAnalysis, error)

	Close() error
}

// Open returns the backend named by cfg.Driver.
func Open(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "badger":
		return OpenBadger(cfg.BadgerPath)
	case "postgres":
		return OpenPostgres(ctx, cfg.PostgresURL)
	default:
		return nil, fmt.Errorf("store: unknown driver %q", cfg.Driver)
	}
}

func statementKey(companyID string, fy, fq int) string {
	return fmt.Sprintf("%s/%04d/%d", companyID, fy, fq)
}

func normTicker(t string) string {
	return strings.ToUpper(strings.TrimSpace(t))
}
