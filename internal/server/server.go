// Package server exposes the indexer and its read views over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"marketScope/internal/model"
	"marketScope/internal/query"
)

// Reader is the read side the handlers need.
type Reader interface {
	TraderTrades(ctx context.Context, trader string) ([]model.TradeEvent, error)
	CreatorMarkets(ctx context.Context, creator string) ([]model.MarketCreatedEvent, error)
	MarketTrades(ctx context.Context, marketID int64) (query.MarketTrades, error)
	GlobalActivity(ctx context.Context) ([]model.ActivityItem, error)
	Stats(ctx context.Context) (model.Stats, error)
}

// Passer runs one indexing pass on demand.
type Passer interface {
	RunPass(ctx context.Context) (model.PassSummary, error)
}

// Endpoints lists the public routes, reported by the 404 handler.
var Endpoints = []string{
	"GET /health",
	"GET /stats",
	"GET /trades/:address",
	"GET /markets/:address",
	"GET /market-trades/:id",
	"GET /global-activity",
	"GET /index",
	"GET /metrics",
}

type Server struct {
	reader Reader
	passer Passer
	logger *zap.Logger
	router *mux.Router
	now    func() time.Time
}

func New(reader Reader, passer Passer, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		reader: reader,
		passer: passer,
		logger: logger,
		router: mux.NewRouter(),
		now:    time.Now,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	s.router.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	s.router.HandleFunc("/trades/{address}", s.handleTraderTrades).Methods(http.MethodGet)
	s.router.HandleFunc("/markets/{address}", s.handleCreatorMarkets).Methods(http.MethodGet)
	s.router.HandleFunc("/market-trades/{id}", s.handleMarketTrades).Methods(http.MethodGet)
	s.router.HandleFunc("/global-activity", s.handleGlobalActivity).Methods(http.MethodGet)
	s.router.HandleFunc("/index", s.handleIndex).Methods(http.MethodGet, http.MethodPost)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	s.router.NotFoundHandler = http.HandlerFunc(s.handleNotFound)
	s.router.MethodNotAllowedHandler = http.HandlerFunc(s.handleMethodNotAllowed)
}

// Handler returns the router wrapped in CORS, panic recovery, and request logging.
func (s *Server) Handler() http.Handler {
	return corsMiddleware(s.recoverMiddleware(s.logMiddleware(s.router)))
}

// Run serves on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context, addr string) error {
	server := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		// /index runs a full pass synchronously.
		WriteTimeout: 5 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("http server listening", zap.String("addr", addr))
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
