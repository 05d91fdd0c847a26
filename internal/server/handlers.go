package server

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"marketScope/internal/model"
	"marketScope/internal/query"
)

type healthResponse struct {
	Success   bool   `json:"success"`
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

type statsResponse struct {
	Success bool `json:"success"`
	model.Stats
}

type tradesResponse struct {
	Success bool               `json:"success"`
	Address string             `json:"address"`
	Count   int                `json:"count"`
	Trades  []model.TradeEvent `json:"trades"`
}

type marketsResponse struct {
	Success bool                       `json:"success"`
	Address string                     `json:"address"`
	Count   int                        `json:"count"`
	Markets []model.MarketCreatedEvent `json:"markets"`
}

type marketTradesResponse struct {
	Success bool `json:"success"`
	Count   int  `json:"count"`
	query.MarketTrades
}

type activityResponse struct {
	Success  bool                 `json:"success"`
	Count    int                  `json:"count"`
	Activity []model.ActivityItem `json:"activity"`
}

type indexResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
	model.PassSummary
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Success:   true,
		Status:    "ok",
		Timestamp: s.now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.reader.Stats(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{Success: true, Stats: stats})
}

func (s *Server) handleTraderTrades(w http.ResponseWriter, r *http.Request) {
	address, ok := addressParam(w, r)
	if !ok {
		return
	}
	trades, err := s.reader.TraderTrades(r.Context(), address)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tradesResponse{Success: true, Address: address, Count: len(trades), Trades: trades})
}

func (s *Server) handleCreatorMarkets(w http.ResponseWriter, r *http.Request) {
	address, ok := addressParam(w, r)
	if !ok {
		return
	}
	markets, err := s.reader.CreatorMarkets(r.Context(), address)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, marketsResponse{Success: true, Address: address, Count: len(markets), Markets: markets})
}

func (s *Server) handleMarketTrades(w http.ResponseWriter, r *http.Request) {
	raw := mux.Vars(r)["id"]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id < 0 {
		writeError(w, http.StatusBadRequest, "invalid market id: "+raw)
		return
	}
	result, err := s.reader.MarketTrades(r.Context(), id)
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, marketTradesResponse{Success: true, Count: len(result.Trades), MarketTrades: result})
}

func (s *Server) handleGlobalActivity(w http.ResponseWriter, r *http.Request) {
	items, err := s.reader.GlobalActivity(r.Context())
	if err != nil {
		s.internalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, activityResponse{Success: true, Count: len(items), Activity: items})
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	summary, err := s.passer.RunPass(r.Context())
	if err != nil {
		s.logger.Error("index pass failed", zap.Error(err),
			zap.Uint64("from", summary.FromBlock), zap.Uint64("to", summary.ToBlock))
		if summary.Status == "" {
			summary.Status = model.PassFailed
		}
		writeJSON(w, http.StatusInternalServerError, indexResponse{Error: err.Error(), PassSummary: summary})
		return
	}
	writeJSON(w, http.StatusOK, indexResponse{Success: true, PassSummary: summary})
}

func (s *Server) handleNotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, errorResponse{
		Error:     "not found: " + r.URL.Path,
		Endpoints: Endpoints,
	})
}

func (s *Server) handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	writeError(w, http.StatusMethodNotAllowed, "method not allowed: "+r.Method)
}

func (s *Server) internalError(w http.ResponseWriter, r *http.Request, err error) {
	s.logger.Error("request failed", zap.Error(err), zap.String("path", r.URL.Path))
	writeError(w, http.StatusInternalServerError, err.Error())
}

// addressParam validates the {address} path variable and returns it lowercased.
func addressParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	raw := mux.Vars(r)["address"]
	if !common.IsHexAddress(raw) || !strings.HasPrefix(strings.ToLower(raw), "0x") {
		writeError(w, http.StatusBadRequest, "invalid address: "+raw)
		return "", false
	}
	return strings.ToLower(raw), true
}
