package handler

import (
	"log/slog"
	"net/http"

	"github.com/en-exe/calci-trade/internal/domain"
)

// TradeHandler serves the trade history endpoints.
type TradeHandler struct {
	trades domain.TradeStore
	logger *slog.Logger
}

// NewTradeHandler creates a TradeHandler.
func NewTradeHandler(trades domain.TradeStore, logger *slog.Logger) *TradeHandler {
	return &TradeHandler{trades: trades, logger: logger}
}

// ListTrades returns the most recent trades, newest first.
// GET /api/trades?limit=N
func (h *TradeHandler) ListTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := h.trades.List(r.Context(), parseLimit(r, 100))
	if err != nil {
		h.logger.Error("trades: list", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to load trades")
		return
	}
	if trades == nil {
		trades = []domain.Trade{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"trades": trades})
}

// ListOpenTrades returns all trades still awaiting an outcome.
// GET /api/trades/open
func (h *TradeHandler) ListOpenTrades(w http.ResponseWriter, r *http.Request) {
	trades, err := h.trades.ListOpen(r.Context())
	if err != nil {
		h.logger.Error("trades: list open", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to load open trades")
		return
	}
	if trades == nil {
		trades = []domain.Trade{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"trades": trades})
}
