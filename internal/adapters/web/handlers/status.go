package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"linepulse/internal/application/usecases"
)

// StatusHandler handles status requests
type StatusHandler struct {
	pipelineUseCase *usecases.PipelineUseCase
	logger          *slog.Logger
}

// NewStatusHandler creates a new status handler
func NewStatusHandler(pipelineUseCase *usecases.PipelineUseCase, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{
		pipelineUseCase: pipelineUseCase,
		logger:          logger,
	}
}

// Handle reports the tracked sessions and the pipeline's running totals
func (h *StatusHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]interface{}{
		"status":   "running",
		"sessions": h.pipelineUseCase.Sessions(),
		"counters": h.pipelineUseCase.Counters(),
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}
