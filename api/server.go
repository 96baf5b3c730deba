// Package api provides the HTTP REST API server for moatscore.
//
// It exposes pure valuation endpoints, stored company analyses, refreshes
// and a WebSocket stream of batch progress.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/phuslu/log"

	"github.com/seenimoa/moatscore/internal/config"
	"github.com/seenimoa/moatscore/internal/engine"
	"github.com/seenimoa/moatscore/internal/logging"
	"github.com/seenimoa/moatscore/internal/service"
	"github.com/seenimoa/moatscore/pkg/models"
)

// CompanyService is the part of service.Service the server calls.
type CompanyService interface {
	Refresh(ctx context.Context, req service.Request) (*models.CompanyAnalysis, error)
	Latest(ctx context.Context, ticker string) (*models.CompanyAnalysis, error)
	RefreshAll(ctx context.Context, tickers []string, force bool, progress engine.Progress) (*engine.BatchResult, error)
}

// Server is the HTTP API server.
type Server struct {
	router chi.Router
	cfg    *config.Config
	svc    CompanyService
	wsHub  *WSHub
	logger *log.Logger
}

// NewServer creates a configured API server with all routes and middleware.
// svc may be nil, in which case only the stateless endpoints answer.
func NewServer(cfg *config.Config, svc CompanyService, logger *log.Logger) *Server {
	if logger == nil {
		logger = logging.Discard()
	}
	s := &Server{
		cfg:    cfg,
		svc:    svc,
		wsHub:  NewWSHub(),
		logger: logger,
	}
	s.router = s.buildRouter()
	return s
}

// Router returns the chi router for testing.
func (s *Server) Router() chi.Router {
	return s.router
}

// Hub returns the WebSocket hub.
func (s *Server) Hub() *WSHub {
	return s.wsHub
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	httpSrv := &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	hubCtx, stopHub := context.WithCancel(ctx)
	defer stopHub()
	go s.wsHub.Run(hubCtx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info().Str("addr", addr).Msg("api server listening")
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info().Msg("shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return httpSrv.Shutdown(shutdownCtx)
}

// buildRouter configures all routes and middleware.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	// CORS
	origins := []string{"*"}
	if len(s.cfg.API.CORSOrigins) > 0 {
		origins = s.cfg.API.CORSOrigins
	}
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		// WebSocket upgrades must not sit behind the timeout handler.
		r.Get("/ws", s.handleWebSocket)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Timeout(120 * time.Second))

			// Stateless valuation
			r.Post("/valuation", s.handleValuation)
			r.Post("/payback", s.handlePayback)
			r.Post("/analyze", s.handleAnalyze)

			// Companies
			r.Get("/companies/{ticker}/analysis", s.handleCompanyAnalysis)
			r.Post("/companies/{ticker}/refresh", s.handleCompanyRefresh)
			r.Post("/batch", s.handleBatch)

			// Configuration
			r.Get("/config", s.handleGetConfig)
			r.Get("/config/keys", s.handleGetConfigKeys)
		})
	})

	return r
}

// requestLogger logs one line per request.
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.logger.Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Int("bytes", ww.BytesWritten()).
			Str("request_id", middleware.GetReqID(r.Context())).
			Dur("took", time.Since(start)).
			Msg("http request")
	})
}

// ============================================================
// Request / Response types
// ============================================================

// APIResponse is the standard JSON envelope.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// PaybackRequest is the body for POST /api/v1/payback.
type PaybackRequest struct {
	Price      float64 `json:"price"`
	EPS        float64 `json:"eps"`
	GrowthRate float64 `json:"growth_rate"` // percent
}

// PaybackResponse is the data of POST /api/v1/payback.
type PaybackResponse struct {
	Years int `json:"years"`
}

// AnalyzeRequest is the body for POST /api/v1/analyze.
type AnalyzeRequest struct {
	Ticker       string                                `json:"ticker"`
	CompanyID    string                                `json:"company_id,omitempty"`
	Name         string                                `json:"name,omitempty"`
	Statements   []models.NormalizedFinancialStatement `json:"statements"`
	CurrentPrice *float64                              `json:"current_price,omitempty"`
	Assumptions  *models.ValuationInput                `json:"assumptions,omitempty"`
}

// RefreshRequest is the optional body for POST /companies/{ticker}/refresh.
type RefreshRequest struct {
	CurrentPrice *float64              `json:"current_price,omitempty"`
	Assumptions  *models.ValuationInput `json:"assumptions,omitempty"`
}

// BatchRequest is the body for POST /api/v1/batch.
type BatchRequest struct {
	Tickers []string `json:"tickers"`
	Force   bool     `json:"force,omitempty"`
}

// BatchResponse is the data of POST /api/v1/batch.
type BatchResponse struct {
	Analyses []models.CompanyAnalysis `json:"analyses"`
	Failures []BatchFailure           `json:"failures,omitempty"`
}

// BatchFailure names a company the batch could not analyze.
type BatchFailure struct {
	Ticker string `json:"ticker"`
	Error  string `json:"error"`
}

// HealthResponse is the data of GET /health.
type HealthResponse struct {
	Status    string `json:"status"`
	Version   string `json:"version"`
	WSClients int    `json:"ws_clients"`
}

// Version is reported by the health endpoint; set by the CLI.
var Version = "dev"

// ============================================================
// Handlers
// ============================================================

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, APIResponse{
		Success: true,
		Data: HealthResponse{
			Status:    "ok",
			Version:   Version,
			WSClients: s.wsHub.ClientCount(),
		},
	})
}

func (s *Server) handleCompanyAnalysis(w http.ResponseWriter, r *http.Request) {
	if s.svc == nil {
		writeError(w, http.StatusServiceUnavailable, "company service not configured")
		return
	}
	ticker := strings.ToUpper(chi.URLParam(r, "ticker"))
	a, err := s.svc.Latest(r.Context(), ticker)
	if err != nil {
		s.writeServiceError(w, ticker, err)
		return
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: a})
}

func (s *Server) handleCompanyRefresh(w http.ResponseWriter, r *http.Request) {
	if s.svc == nil {
		writeError(w, http.StatusServiceUnavailable, "company service not configured")
		return
	}
	ticker := strings.ToUpper(chi.URLParam(r, "ticker"))

	var req RefreshRequest
	if r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	if req.Assumptions != nil {
		if err := req.Assumptions.Validate(); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}

	a, err := s.svc.Refresh(r.Context(), service.Request{
		Ticker:      ticker,
		Price:       req.CurrentPrice,
		Assumptions: req.Assumptions,
	})
	if err != nil {
		s.writeServiceError(w, ticker, err)
		return
	}
	s.wsHub.Broadcast(WSMessage{Type: MsgAnalysis, Data: a})
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: a})
}

func (s *Server) handleBatch(w http.ResponseWriter, r *http.Request) {
	if s.svc == nil {
		writeError(w, http.StatusServiceUnavailable, "company service not configured")
		return
	}
	var req BatchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if len(req.Tickers) == 0 {
		writeError(w, http.StatusBadRequest, "tickers is required")
		return
	}

	res, err := s.svc.RefreshAll(r.Context(), req.Tickers, req.Force, s.broadcastProgress)
	if err != nil {
		s.writeServiceError(w, "", err)
		return
	}

	out := BatchResponse{Analyses: res.Analyses}
	for _, f := range res.Failures {
		out.Failures = append(out.Failures, BatchFailure{Ticker: f.Ticker, Error: f.Err.Error()})
	}
	if out.Analyses == nil {
		out.Analyses = []models.CompanyAnalysis{}
	}
	writeJSON(w, http.StatusOK, APIResponse{Success: true, Data: out})
}

// broadcastProgress relays batch progress to WebSocket clients.
func (s *Server) broadcastProgress(done, total int, a *models.CompanyAnalysis, err error) {
	p := ProgressMessage{Done: done, Total: total, Analysis: a}
	msgType := MsgAnalysis
	if err != nil {
		msgType = MsgFailure
		p.Error = err.Error()
		var f engine.Failure
		if errors.As(err, &f) {
			p.Ticker = f.Ticker
		}
	} else {
		p.Ticker = a.Ticker
	}
	s.wsHub.Broadcast(WSMessage{Type: msgType, Data: p})
}

// writeServiceError maps service errors onto HTTP statuses.
func (s *Server) writeServiceError(w http.ResponseWriter, ticker string, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error().Str("ticker", ticker).Err(err).Msg("request failed")
	}
	writeError(w, status, err.Error())
}

// ============================================================
// Helpers
// ============================================================

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write JSON response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, APIResponse{
		Success: false,
		Error:   msg,
	})
}
