package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"github.com/commodex/paper-engine/internal/metrics"
	"github.com/commodex/paper-engine/internal/model"
	"github.com/commodex/paper-engine/internal/position"
	"github.com/commodex/paper-engine/internal/trade"
)

type tradeRequest struct {
	Side     string          `json:"side"`
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
}

type tradeResponse struct {
	Trade   model.TradeRecord `json:"trade"`
	Balance decimal.Decimal   `json:"balance"`
	Holding *model.Holding    `json:"holding,omitempty"` // absent when the position closed
}

// handleTrade handles POST /api/v1/trade. Orders execute at the current
// simulated quote; clients send only side, symbol, and quantity.
func (s *Server) handleTrade(w http.ResponseWriter, r *http.Request) {
	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, "invalid request body", http.StatusBadRequest)
		return
	}

	quote, err := s.market.Quote(req.Symbol)
	if err != nil {
		writeError(w, "unknown symbol: "+req.Symbol, http.StatusBadRequest)
		return
	}

	username := userFrom(r.Context())
	start := time.Now()
	rec, err := s.engine.Execute(r.Context(), username, req.Side, req.Symbol, req.Quantity, quote.Price)
	if err != nil {
		metrics.TradeRejections.WithLabelValues(rejectionReason(err)).Inc()
		writeTradeError(w, err)
		return
	}
	metrics.TradesTotal.WithLabelValues(string(rec.Side)).Inc()
	metrics.TradeLatency.WithLabelValues(string(rec.Side)).Observe(time.Since(start).Seconds())

	if s.hub != nil {
		s.hub.Broadcast(Message{
			Type:     "trade",
			Symbol:   rec.Symbol,
			Price:    rec.Price.String(),
			Side:     string(rec.Side),
			Quantity: rec.Quantity.String(),
		})
	}

	resp := tradeResponse{Trade: rec, Balance: rec.BalanceAfter}
	if sum, err := s.engine.Summary(r.Context(), username); err == nil {
		if h, ok := sum.Holdings[rec.Symbol]; ok {
			resp.Holding = &h
		}
	}
	respondJSON(w, http.StatusOK, resp)
}

func writeTradeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, trade.ErrInvalidSide),
		errors.Is(err, trade.ErrInvalidSymbol),
		errors.Is(err, trade.ErrInvalidAmount):
		writeError(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, trade.ErrUnknownAccount):
		writeError(w, err.Error(), http.StatusNotFound)
	case errors.Is(err, trade.ErrInsufficientFunds),
		errors.Is(err, trade.ErrInsufficientPosition):
		writeError(w, err.Error(), http.StatusConflict)
	default:
		slog.Error("trade failed", "err", err)
		writeError(w, "trade failed", http.StatusInternalServerError)
	}
}

func rejectionReason(err error) string {
	switch {
	case errors.Is(err, trade.ErrInvalidSide):
		return "invalid_side"
	case errors.Is(err, trade.ErrInvalidSymbol):
		return "invalid_symbol"
	case errors.Is(err, trade.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, trade.ErrUnknownAccount):
		return "unknown_account"
	case errors.Is(err, trade.ErrInsufficientFunds):
		return "insufficient_funds"
	case errors.Is(err, trade.ErrInsufficientPosition):
		return "insufficient_position"
	default:
		return "internal"
	}
}

// --- Account views ---

type holdingView struct {
	Symbol        string           `json:"symbol"`
	Position      decimal.Decimal  `json:"position"`
	AverageCost   decimal.Decimal  `json:"averageCost"`
	CurrentPrice  *decimal.Decimal `json:"currentPrice,omitempty"`
	MarketValue   *decimal.Decimal `json:"marketValue,omitempty"`
	UnrealizedPnL *decimal.Decimal `json:"unrealizedPnl,omitempty"`
}

type summaryResponse struct {
	Username string          `json:"username"`
	Balance  decimal.Decimal `json:"balance"`
	Equity   decimal.Decimal `json:"equity"` // balance plus the value of priced holdings
	Holdings []holdingView   `json:"holdings"`
}

// handleSummary handles GET /api/v1/account/summary. Holdings are enriched
// with current quotes where the symbol is still listed.
func (s *Server) handleSummary(w http.ResponseWriter, r *http.Request) {
	sum, err := s.engine.Summary(r.Context(), userFrom(r.Context()))
	if err != nil {
		if errors.Is(err, trade.ErrUnknownAccount) {
			writeError(w, err.Error(), http.StatusNotFound)
			return
		}
		slog.Error("summary failed", "err", err)
		writeError(w, "summary failed", http.StatusInternalServerError)
		return
	}

	symbols := make([]string, 0, len(sum.Holdings))
	for symbol := range sum.Holdings {
		symbols = append(symbols, symbol)
	}
	sort.Strings(symbols)

	equity := sum.Balance
	views := make([]holdingView, 0, len(symbols))
	for _, symbol := range symbols {
		h := sum.Holdings[symbol]
		view := holdingView{Symbol: symbol, Position: h.Position, AverageCost: h.AverageCost}
		if quote, err := s.market.Quote(symbol); err == nil {
			price := quote.Price
			value := position.MarketValue(h, price)
			pnl := position.UnrealizedPnL(h, price)
			view.CurrentPrice = &price
			view.MarketValue = &value
			view.UnrealizedPnL = &pnl
			equity = equity.Add(value)
		}
		views = append(views, view)
	}

	respondJSON(w, http.StatusOK, summaryResponse{
		Username: sum.Username,
		Balance:  sum.Balance,
		Equity:   equity,
		Holdings: views,
	})
}

// handleHistory handles GET /api/v1/account/history?symbol=HOG. Without a
// symbol it returns the full history, newest first.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	records, err := s.engine.History(r.Context(), userFrom(r.Context()), r.URL.Query().Get("symbol"))
	if err != nil {
		if errors.Is(err, trade.ErrUnknownAccount) {
			writeError(w, err.Error(), http.StatusNotFound)
			return
		}
		slog.Error("history failed", "err", err)
		writeError(w, "history failed", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, records)
}
