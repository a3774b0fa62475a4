package handlers

import (
	"errors"
	"net/http"

	"github.com/ternarybob/arbor"

	"github.com/ternarybob/finagent/internal/scheduler"
)

// WatchlistScheduler is the scheduler surface used by the API
type WatchlistScheduler interface {
	Status() scheduler.Status
	Trigger() error
}

// SchedulerHandler serves /api/scheduler
type SchedulerHandler struct {
	scheduler WatchlistScheduler
	logger    arbor.ILogger
}

// NewSchedulerHandler creates a scheduler handler
func NewSchedulerHandler(s WatchlistScheduler, logger arbor.ILogger) *SchedulerHandler {
	return &SchedulerHandler{scheduler: s, logger: logger}
}

// StatusHandler returns the scheduler state
func (h *SchedulerHandler) StatusHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "GET") {
		return
	}
	WriteJSON(w, http.StatusOK, h.scheduler.Status())
}

// TriggerHandler starts a watchlist refresh in the background
func (h *SchedulerHandler) TriggerHandler(w http.ResponseWriter, r *http.Request) {
	if !RequireMethod(w, r, "POST") {
		return
	}
	if err := h.scheduler.Trigger(); err != nil {
		if errors.Is(err, scheduler.ErrAlreadyRunning) {
			WriteError(w, http.StatusConflict, err.Error())
			return
		}
		h.logger.Error().Err(err).Msg("Failed to start watchlist refresh")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteStarted(w, "watchlist refresh started")
}
