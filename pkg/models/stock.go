// Package models defines the core data structures used throughout moatscore.
package models

import "time"

// Company identifies an issuer across providers.
type Company struct {
	ID       string `json:"id"`                 // provider-neutral id; SEC CIK when known
	Ticker   string `json:"ticker"`             // e.g., "AAPL"
	Name     string `json:"name,omitempty"`     // e.g., "Apple Inc."
	CIK      string `json:"cik,omitempty"`      // zero-padded 10 digit CIK
	Exchange string `json:"exchange,omitempty"` // e.g., "NASDAQ"
}

// CIKMapping maps an SEC Central Index Key to a ticker symbol.
type CIKMapping struct {
	CIK    string `json:"cik"`
	Symbol string `json:"symbol"`
	Name   string `json:"name"`
}

// Filing is a single SEC filing entry, as announced by the EDGAR feed.
type Filing struct {
	CompanyID string    `json:"company_id"`
	Form      string    `json:"form"`
	Title     string    `json:"title"`
	URL       string    `json:"url"`
	FiledAt   time.Time `json:"filed_at"`
}

// Quote is the minimal price information the valuation needs.
type Quote struct {
	Ticker    string    `json:"ticker"`
	LastPrice float64   `json:"last_price"`
	Timestamp time.Time `json:"timestamp"`
}
