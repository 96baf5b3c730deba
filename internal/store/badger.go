package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/timshannon/badgerhold/v4"

	"github.com/seenimoa/moatscore/pkg/models"
)

// statementRow is the badgerhold record for one statement.
type statementRow struct {
	Key           string
	CompanyID     string `badgerhold:"index"`
	FiscalYear    int
	FiscalQuarter int
	Statement     models.NormalizedFinancialStatement
}

// analysisRow is the badgerhold record for one analysis.
type analysisRow struct {
	Key          string
	CompanyID    string `badgerhold:"index"`
	Ticker       string `badgerhold:"index"`
	CalculatedAt time.Time
	Analysis     models.CompanyAnalysis
}

// Badger is an embedded Store backed by badgerhold.
type Badger struct {
	db *badgerhold.Store
}

// OpenBadger opens (or creates) a database in dir.
func OpenBadger(dir string) (*Badger, error) {
	if dir == "" {
		return nil, errors.New("store: badger path is empty")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("store: create %s: %w", dir, err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = dir
	options.ValueDir = dir
	options.Logger = nil
	// JSON keeps a pointer to zero distinct from a missing value; gob does not.
	options.Encoder = json.Marshal
	options.Decoder = json.Unmarshal

	db, err := badgerhold.Open(options)
	if err != nil {
		return nil, fmt.Errorf("store: open badger at %s: %w", dir, err)
	}
	return &Badger{db: db}, nil
}

func (b *Badger) SaveStatements(ctx context.Context, stmts []models.NormalizedFinancialStatement) error {
	for _, s := range stmts {
		if err := ctx.Err(); err != nil {
			return err
		}
		key := statementKey(s.CompanyID, s.FiscalYear, s.FiscalQuarter)
		row := statementRow{
			Key:           key,
			CompanyID:     s.CompanyID,
			FiscalYear:    s.FiscalYear,
			FiscalQuarter: s.FiscalQuarter,
			Statement:     s,
		}
		if err := b.db.Upsert(key, row); err != nil {
			return fmt.Errorf("store: save statement %s: %w", key, err)
		}
	}
	return nil
}

func (b *Badger) Statements(ctx context.Context, companyID string, depth int) ([]models.NormalizedFinancialStatement, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	query := badgerhold.Where("CompanyID").Eq(companyID).Index("CompanyID").
		SortBy("FiscalYear", "FiscalQuarter").Reverse()
	if depth > 0 {
		query = query.Limit(depth)
	}

	var rows []statementRow
	if err := b.db.Find(&rows, query); err != nil {
		return nil, fmt.Errorf("store: statements for %s: %w", companyID, err)
	}
	out := make([]models.NormalizedFinancialStatement, len(rows))
	for i, r := range rows {
		out[i] = r.Statement
	}
	return out, nil
}

func (b *Badger) SaveAnalysis(ctx context.Context, a models.CompanyAnalysis) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	key := fmt.Sprintf("%s/%s", a.CompanyID, a.CalculatedAt.UTC().Format(time.RFC3339Nano))
	row := analysisRow{
		Key:          key,
		CompanyID:    a.CompanyID,
		Ticker:       normTicker(a.Ticker),
		CalculatedAt: a.CalculatedAt.UTC(),
		Analysis:     a,
	}
	if err := b.db.Upsert(key, row); err != nil {
		return fmt.Errorf("store: save analysis %s: %w", key, err)
	}
	return nil
}

func (b *Badger) LatestAnalysis(ctx context.Context, companyID string) (*models.CompanyAnalysis, error) {
	return b.latest(ctx, "CompanyID", companyID)
}

func (b *Badger) LatestAnalysisByTicker(ctx context.Context, ticker string) (*models.CompanyAnalysis, error) {
	return b.latest(ctx, "Ticker", normTicker(ticker))
}

func (b *Badger) latest(ctx context.Context, field, value string) (*models.CompanyAnalysis, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var rows []analysisRow
	query := badgerhold.Where(field).Eq(value).Index(field).SortBy("CalculatedAt").Reverse().Limit(1)
	if err := b.db.Find(&rows, query); err != nil {
		return nil, fmt.Errorf("store: latest analysis for %s: %w", value, err)
	}
	if len(rows) == 0 {
		return nil, ErrNotFound
	}
	return &rows[0].Analysis, nil
}

// Close closes the database.
func (b *Badger) Close() error {
	if b.db != nil {
		return b.db.Close()
	}
	return nil
}
