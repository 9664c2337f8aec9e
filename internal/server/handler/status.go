package handler

import (
	"log/slog"
	"net/http"

	"github.com/en-exe/calci-trade/internal/domain"
)

// SnapshotProvider yields the latest dashboard view. The engine publishes a
// fresh snapshot after every trading cycle.
type SnapshotProvider interface {
	Snapshot() domain.DashboardSnapshot
}

// StatusHandler serves the dashboard status endpoint.
type StatusHandler struct {
	snapshots SnapshotProvider
	trades    domain.TradeStore
	logger    *slog.Logger
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(snapshots SnapshotProvider, trades domain.TradeStore, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{snapshots: snapshots, trades: trades, logger: logger}
}

type statusResponse struct {
	domain.DashboardSnapshot
	Stats domain.TradeStats `json:"stats"`
}

// GetStatus returns the latest dashboard snapshot together with lifetime
// trade statistics.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	stats, err := h.trades.Stats(r.Context())
	if err != nil {
		h.logger.Error("status: trade stats", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to load trade stats")
		return
	}

	writeJSON(w, http.StatusOK, statusResponse{
		DashboardSnapshot: h.snapshots.Snapshot(),
		Stats:             stats,
	})
}
