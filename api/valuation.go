package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/seenimoa/moatscore/internal/analysis/valuation"
	"github.com/seenimoa/moatscore/internal/engine"
	"github.com/seenimoa/moatscore/internal/infra"
	"github.com/seenimoa/moatscore/internal/provider"
	"github.com/seenimoa/moatscore/internal/store"
	"github.com/seenimoa/moatscore/pkg/models"
)

// handleValuation computes a sticker price from explicit assumptions.
func (s *Server) handleValuation(w http.ResponseWriter, r *http.Request) {
	var in models.ValuationInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	res, err := valuation.Compute(in)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if res == nil {
		writeError(w, http.StatusUnprocessableEntity, "current_eps must be positive to compute a sticker price")
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: res})
}

// handlePayback counts the years of growing earnings that repay a price.
func (s *Server) handlePayback(w http.ResponseWriter, r *http.Request) {
	var req PaybackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.GrowthRate <= -100 {
		writeError(w, http.StatusBadRequest, "growth_rate must be greater than -100")
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data:    PaybackResponse{Years: valuation.PaybackTime(req.Price, req.EPS, req.GrowthRate/100)},
	})
}

// handleAnalyze scores caller-supplied statements. Nothing is fetched or
// stored.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	var req AnalyzeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	req.Ticker = strings.ToUpper(strings.TrimSpace(req.Ticker))
	if req.Ticker == "" {
		writeError(w, http.StatusBadRequest, "ticker is required")
		return
	}

	companyID := req.CompanyID
	if companyID == "" {
		companyID = req.Ticker
	}
	stmts := make([]models.NormalizedFinancialStatement, len(req.Statements))
	for i, st := range req.Statements {
		if st.CompanyID == "" {
			st.CompanyID = companyID
		}
		stmts[i] = st
	}

	a, err := engine.Analyze(
		models.Company{ID: companyID, Ticker: req.Ticker, Name: req.Name},
		stmts,
		engine.Options{
			Assumptions:   req.Assumptions,
			CurrentPrice:  req.CurrentPrice,
			MinReturnRate: s.cfg.Analysis.MinReturnRate,
			Years:         s.cfg.Analysis.Years,
		},
	)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: a})
}

// statusFor maps pipeline errors to HTTP statuses.
func statusFor(err error) int {
	var (
		noData      *provider.ErrNoData
		missing     *provider.ErrMissingParam
		notFound    *provider.ErrProviderNotFound
		unsupported *provider.ErrModelNotSupported
		upstream    *infra.StatusError
	)
	switch {
	case errors.Is(err, store.ErrNotFound), errors.As(err, &noData):
		return http.StatusNotFound
	case errors.As(err, &missing):
		return http.StatusBadRequest
	case errors.As(err, &notFound), errors.As(err, &unsupported):
		return http.StatusServiceUnavailable
	case errors.As(err, &upstream):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}
