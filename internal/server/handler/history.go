package handler

import (
	"log/slog"
	"net/http"

	"github.com/en-exe/calci-trade/internal/domain"
)

// HistoryHandler serves the activity log, scan history, and portfolio curve.
type HistoryHandler struct {
	activity  domain.ActivityStore
	scans     domain.ScanStore
	snapshots domain.SnapshotStore
	logger    *slog.Logger
}

// NewHistoryHandler creates a HistoryHandler.
func NewHistoryHandler(activity domain.ActivityStore, scans domain.ScanStore, snapshots domain.SnapshotStore, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{activity: activity, scans: scans, snapshots: snapshots, logger: logger}
}

// ListActivity returns the most recent activity log entries.
// GET /api/activity?limit=N
func (h *HistoryHandler) ListActivity(w http.ResponseWriter, r *http.Request) {
	entries, err := h.activity.List(r.Context(), parseLimit(r, 50))
	if err != nil {
		h.logger.Error("history: list activity", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to load activity log")
		return
	}
	if entries == nil {
		entries = []domain.ActivityEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"activity": entries})
}

// ListScans returns recent scan summaries.
// GET /api/scans?limit=N
func (h *HistoryHandler) ListScans(w http.ResponseWriter, r *http.Request) {
	scans, err := h.scans.ListRecent(r.Context(), parseLimit(r, 20))
	if err != nil {
		h.logger.Error("history: list scans", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to load scan history")
		return
	}
	if scans == nil {
		scans = []domain.ScanRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"scans": scans})
}

// ListSnapshots returns the recent portfolio history curve.
// GET /api/portfolio/history?limit=N
func (h *HistoryHandler) ListSnapshots(w http.ResponseWriter, r *http.Request) {
	snaps, err := h.snapshots.ListRecent(r.Context(), parseLimit(r, 100))
	if err != nil {
		h.logger.Error("history: list snapshots", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to load portfolio history")
		return
	}
	if snaps == nil {
		snaps = []domain.PortfolioSnapshot{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"snapshots": snaps})
}
