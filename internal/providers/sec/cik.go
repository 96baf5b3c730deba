package sec

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/seenimoa/moatscore/internal/provider"
	"github.com/seenimoa/moatscore/pkg/models"
)

// TickerLoader returns the full ticker map keyed by upper-case ticker.
type TickerLoader func(ctx context.Context) (map[string]models.CIKMapping, error)

// CIKCache resolves tickers to CIKs. The map is loaded on first use and kept
// for the life of the process; a failed load is retried on the next lookup.
// It is safe for concurrent use.
type CIKCache struct {
	load TickerLoader

	mu      sync.Mutex
	entries map[string]models.CIKMapping
}

// NewCIKCache creates a cache that fills itself with load.
func NewCIKCache(load TickerLoader) *CIKCache {
	return &CIKCache{load: load}
}

// NewStaticCIKCache creates a preloaded cache that never calls upstream.
func NewStaticCIKCache(entries []models.CIKMapping) *CIKCache {
	m := make(map[string]models.CIKMapping, len(entries))
	for _, e := range entries {
		e.CIK = padCIK(e.CIK)
		m[strings.ToUpper(e.Symbol)] = e
	}
	return &CIKCache{entries: m}
}

// Lookup returns the mapping for ticker. A purely numeric ticker is taken to
// be a CIK already.
func (c *CIKCache) Lookup(ctx context.Context, ticker string) (models.CIKMapping, error) {
	sym := strings.ToUpper(strings.TrimSpace(ticker))
	entries, err := c.ensure(ctx)
	if err != nil {
		return models.CIKMapping{}, err
	}
	if m, ok := entries[sym]; ok {
		return m, nil
	}
	if isNumeric(sym) {
		return models.CIKMapping{CIK: padCIK(sym), Symbol: sym}, nil
	}
	return models.CIKMapping{}, fmt.Errorf("CIK not found for symbol %s: %w", ticker, &provider.ErrNoData{Provider: providerName, Query: ticker})
}

// Len returns the number of loaded tickers.
func (c *CIKCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *CIKCache) ensure(ctx context.Context) (map[string]models.CIKMapping, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.entries != nil {
		return c.entries, nil
	}
	if c.load == nil {
		return map[string]models.CIKMapping{}, nil
	}
	entries, err := c.load(ctx)
	if err != nil {
		return nil, fmt.Errorf("load ticker map: %w", err)
	}
	c.entries = entries
	return entries, nil
}

// loadTickers fetches company_tickers.json.
func (c *client) loadTickers(ctx context.Context) (map[string]models.CIKMapping, error) {
	var rows map[string]edgarTickerEntry
	if err := c.getJSON(ctx, c.wwwURL+"/files/company_tickers.json", &rows); err != nil {
		return nil, err
	}
	out := make(map[string]models.CIKMapping, len(rows))
	for _, r := range rows {
		sym := strings.ToUpper(r.Ticker)
		if sym == "" {
			continue
		}
		out[sym] = models.CIKMapping{
			CIK:    padCIK(strconv.Itoa(r.CIK)),
			Symbol: sym,
			Name:   r.Title,
		}
	}
	return out, nil
}

func isNumeric(s string) bool {
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return len(s) > 0
}
