package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/commodex/paper-engine/internal/market"
)

// handleQuotes handles GET /api/v1/prices.
func (s *Server) handleQuotes(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.market.Quotes())
}

// handlePriceHistory handles GET /api/v1/prices/{symbol}/history.
func (s *Server) handlePriceHistory(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	points, err := s.market.HistoryOf(symbol)
	if err != nil {
		if errors.Is(err, market.ErrUnknownSymbol) {
			writeError(w, "unknown symbol: "+symbol, http.StatusNotFound)
			return
		}
		writeError(w, "price history failed", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, points)
}

// handleInsights handles GET /api/v1/insights.
func (s *Server) handleInsights(w http.ResponseWriter, _ *http.Request) {
	respondJSON(w, http.StatusOK, s.insights.All())
}

// handleInsight handles GET /api/v1/insights/{symbol}.
func (s *Server) handleInsight(w http.ResponseWriter, r *http.Request) {
	symbol := chi.URLParam(r, "symbol")
	ins, ok := s.insights.For(symbol)
	if !ok {
		writeError(w, "no insight for symbol: "+symbol, http.StatusNotFound)
		return
	}
	respondJSON(w, http.StatusOK, ins)
}
