package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/seenimoa/moatscore/pkg/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS financial_statements (
	company_id     TEXT        NOT NULL,
	fiscal_year    INT         NOT NULL,
	fiscal_quarter INT         NOT NULL,
	statement      JSONB       NOT NULL,
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (company_id, fiscal_year, fiscal_quarter)
);

CREATE TABLE IF NOT EXISTS company_analyses (
	company_id    TEXT        NOT NULL,
	calculated_at TIMESTAMPTZ NOT NULL,
	ticker        TEXT        NOT NULL,
	analysis      JSONB       NOT NULL,
	PRIMARY KEY (company_id, calculated_at)
);

CREATE INDEX IF NOT EXISTS company_analyses_ticker_idx
	ON company_analyses (ticker, calculated_at DESC);
`

// Postgres is a Store backed by PostgreSQL JSONB documents.
type Postgres struct {
	pool *pgxpool.Pool
}

// OpenPostgres connects to url and creates the tables when missing.
func OpenPostgres(ctx context.Context, url string) (*Postgres, error) {
	if url == "" {
		return nil, errors.New("store: postgres url is empty")
	}
	cfg, err := pgxpool.ParseConfig(url)
	if err != nil {
		return nil, fmt.Errorf("store: parse postgres config: %w", err)
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("store: connect postgres: %w", err)
	}
	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: ensure schema: %w", err)
	}
	return &Postgres{pool: pool}, nil
}

func (p *Postgres) SaveStatements(ctx context.Context, stmts []models.NormalizedFinancialStatement) error {
	if len(stmts) == 0 {
		return nil
	}
	const q = `
		INSERT INTO financial_statements (company_id, fiscal_year, fiscal_quarter, statement, updated_at)
		VALUES ($1, $2, $3, $4, now())
		ON CONFLICT (company_id, fiscal_year, fiscal_quarter)
		DO UPDATE SET statement = EXCLUDED.statement, updated_at = EXCLUDED.updated_at`

	batch := &pgx.Batch{}
	for _, s := range stmts {
		doc, err := json.Marshal(s)
		if err != nil {
			return fmt.Errorf("store: marshal statement %s: %w", statementKey(s.CompanyID, s.FiscalYear, s.FiscalQuarter), err)
		}
		batch.Queue(q, s.CompanyID, s.FiscalYear, s.FiscalQuarter, doc)
	}

	br := p.pool.SendBatch(ctx, batch)
	defer br.Close()
	for range stmts {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("store: save statements: %w", err)
		}
	}
	return nil
}

func (p *Postgres) Statements(ctx context.Context, companyID string, depth int) ([]models.NormalizedFinancialStatement, error) {
	q := `
		SELECT statement FROM financial_statements
		WHERE company_id = $1
		ORDER BY fiscal_year DESC, fiscal_quarter DESC`
	args := []any{companyID}
	if depth > 0 {
		q += " LIMIT $2"
		args = append(args, depth)
	}

	rows, err := p.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("store: statements for %s: %w", companyID, err)
	}
	docs, err := pgx.CollectRows(rows, pgx.RowTo[[]byte])
	if err != nil {
		return nil, fmt.Errorf("store: statements for %s: %w", companyID, err)
	}

	out := make([]models.NormalizedFinancialStatement, 0, len(docs))
	for _, doc := range docs {
		var s models.NormalizedFinancialStatement
		if err := json.Unmarshal(doc, &s); err != nil {
			return nil, fmt.Errorf("store: decode statement for %s: %w", companyID, err)
		}
		out = append(out, s)
	}
	return out, nil
}

func (p *Postgres) SaveAnalysis(ctx context.Context, a models.CompanyAnalysis) error {
	doc, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("store: marshal analysis: %w", err)
	}
	const q = `
		INSERT INTO company_analyses (company_id, calculated_at, ticker, analysis)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (company_id, calculated_at)
		DO UPDATE SET ticker = EXCLUDED.ticker, analysis = EXCLUDED.analysis`
	if _, err := p.pool.Exec(ctx, q, a.CompanyID, a.CalculatedAt.UTC(), normTicker(a.Ticker), doc); err != nil {
		return fmt.Errorf("store: save analysis for %s: %w", a.Ticker, err)
	}
	return nil
}

func (p *Postgres) LatestAnalysis(ctx context.Context, companyID string) (*models.CompanyAnalysis, error) {
	return p.latest(ctx, `
		SELECT analysis FROM company_analyses
		WHERE company_id = $1
		ORDER BY calculated_at DESC LIMIT 1`, companyID)
}

func (p *Postgres) LatestAnalysisByTicker(ctx context.Context, ticker string) (*models.CompanyAnalysis, error) {
	return p.latest(ctx, `
		SELECT analysis FROM company_analyses
		WHERE ticker = $1
		ORDER BY calculated_at DESC LIMIT 1`, normTicker(ticker))
}

func (p *Postgres) latest(ctx context.Context, q, arg string) (*models.CompanyAnalysis, error) {
	var doc []byte
	if err := p.pool.QueryRow(ctx, q, arg).Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("store: latest analysis for %s: %w", arg, err)
	}
	var a models.CompanyAnalysis
	if err := json.Unmarshal(doc, &a); err != nil {
		return nil, fmt.Errorf("store: decode analysis for %s: %w", arg, err)
	}
	return &a, nil
}

// Close releases the connection pool.
func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}
