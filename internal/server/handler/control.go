package handler

import (
	"log/slog"
	"net/http"

	"github.com/en-exe/calci-trade/internal/domain"
)

const pauseKey = "paused"

// ControlHandler serves the pause/resume endpoints. The flag is durable:
// a restarted bot stays paused until explicitly resumed.
type ControlHandler struct {
	settings domain.SettingsStore
	activity domain.ActivityStore
	logger   *slog.Logger
}

// NewControlHandler creates a ControlHandler.
func NewControlHandler(settings domain.SettingsStore, activity domain.ActivityStore, logger *slog.Logger) *ControlHandler {
	return &ControlHandler{settings: settings, activity: activity, logger: logger}
}

// Pause halts order placement starting with the next trading cycle.
// POST /api/control/pause
func (h *ControlHandler) Pause(w http.ResponseWriter, r *http.Request) {
	h.setPaused(w, r, true)
}

// Resume re-enables order placement starting with the next trading cycle.
// POST /api/control/resume
func (h *ControlHandler) Resume(w http.ResponseWriter, r *http.Request) {
	h.setPaused(w, r, false)
}

func (h *ControlHandler) setPaused(w http.ResponseWriter, r *http.Request, paused bool) {
	value := "false"
	message := "Trading resumed by user."
	if paused {
		value = "true"
		message = "Trading paused by user."
	}

	if err := h.settings.Set(r.Context(), pauseKey, value); err != nil {
		h.logger.Error("control: set pause flag", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "failed to update pause flag")
		return
	}

	if err := h.activity.Append(r.Context(), "info", message); err != nil {
		h.logger.Warn("control: append activity", slog.String("error", err.Error()))
	}

	writeJSON(w, http.StatusOK, map[string]any{"paused": paused})
}
