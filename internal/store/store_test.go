package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seenimoa/moatscore/internal/config"
	"github.com/seenimoa/moatscore/pkg/models"
)

func stmt(companyID string, fy int, eps float64) models.NormalizedFinancialStatement {
	return models.NormalizedFinancialStatement{
		CompanyID:  companyID,
		FiscalYear: fy,
		EPS:        models.Float(eps),
		Revenue:    models.Float(float64(fy)),
	}
}

// exerciseStore runs the behaviour every backend must share.
func exerciseStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()

	zero := stmt("0000320193", 2021, 0)
	require.NoError(t, s.SaveStatements(ctx, []models.NormalizedFinancialStatement{
		stmt("0000320193", 2022, 5.5),
		zero,
		stmt("0000320193", 2023, 6.1),
		stmt("0000789019", 2023, 9.7),
	}))
	// Upsert replaces the existing 2023 row.
	require.NoError(t, s.SaveStatements(ctx, []models.NormalizedFinancialStatement{
		stmt("0000320193", 2023, 6.2),
	}))

	all, err := s.Statements(ctx, "0000320193", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, []int{2023, 2022, 2021}, []int{all[0].FiscalYear, all[1].FiscalYear, all[2].FiscalYear})
	assert.Equal(t, 6.2, *all[0].EPS)
	require.NotNil(t, all[2].EPS, "a stored zero is not a missing value")
	assert.Equal(t, 0.0, *all[2].EPS)
	assert.Nil(t, all[2].NetIncome)

	two, err := s.Statements(ctx, "0000320193", 2)
	require.NoError(t, err)
	assert.Len(t, two, 2)

	none, err := s.Statements(ctx, "missing", 5)
	require.NoError(t, err)
	assert.Empty(t, none)

	base := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)
	for i, vs := range []int{40, 70, 55} {
		require.NoError(t, s.SaveAnalysis(ctx, models.CompanyAnalysis{
			ID:           "id",
			CompanyID:    "0000320193",
			Ticker:       "aapl",
			Score:        models.ScoreResult{ValueScore: vs},
			CalculatedAt: base.Add(time.Duration(i-1) * time.Hour),
		}))
	}

	latest, err := s.LatestAnalysis(ctx, "0000320193")
	require.NoError(t, err)
	assert.Equal(t, 55, latest.Score.ValueScore)
	assert.True(t, latest.CalculatedAt.Equal(base.Add(time.Hour)))

	byTicker, err := s.LatestAnalysisByTicker(ctx, " AAPL ")
	require.NoError(t, err)
	assert.Equal(t, 55, byTicker.Score.ValueScore)

	_, err = s.LatestAnalysis(ctx, "0000789019")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = s.LatestAnalysisByTicker(ctx, "MSFT")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestBadgerStore(t *testing.T) {
	s, err := OpenBadger(filepath.Join(t.TempDir(), "db"))
	require.NoError(t, err)
	defer s.Close()

	exerciseStore(t, s)
}

func TestBadgerReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := OpenBadger(dir)
	require.NoError(t, err)
	require.NoError(t, s.SaveStatements(ctx, []models.NormalizedFinancialStatement{stmt("1", 2024, 3)}))
	require.NoError(t, s.Close())

	s, err = OpenBadger(dir)
	require.NoError(t, err)
	defer s.Close()
	got, err := s.Statements(ctx, "1", 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, 3.0, *got[0].EPS)
}

func TestBadgerCancelledContext(t *testing.T) {
	s, err := OpenBadger(t.TempDir())
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, s.SaveStatements(ctx, []models.NormalizedFinancialStatement{stmt("1", 2024, 3)}), context.Canceled)
	_, err = s.LatestAnalysis(ctx, "1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPostgresStore(t *testing.T) {
	url := os.Getenv("MOATSCORE_TEST_POSTGRES_URL")
	if url == "" {
		t.Skip("MOATSCORE_TEST_POSTGRES_URL not set")
	}
	ctx := context.Background()
	s, err := OpenPostgres(ctx, url)
	require.NoError(t, err)
	defer s.Close()

	_, err = s.pool.Exec(ctx, "TRUNCATE financial_statements, company_analyses")
	require.NoError(t, err)

	exerciseStore(t, s)
}

func TestOpen(t *testing.T) {
	ctx := context.Background()

	s, err := Open(ctx, config.StorageConfig{Driver: "badger", BadgerPath: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &Badger{}, s)
	require.NoError(t, s.Close())

	_, err = Open(ctx, config.StorageConfig{Driver: "sqlite"})
	assert.ErrorContains(t, err, `unknown driver "sqlite"`)

	_, err = Open(ctx, config.StorageConfig{Driver: "badger"})
	assert.ErrorContains(t, err, "badger path is empty")

	_, err = Open(ctx, config.StorageConfig{Driver: "postgres"})
	assert.ErrorContains(t, err, "postgres url is empty")
}
