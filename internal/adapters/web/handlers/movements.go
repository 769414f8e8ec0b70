package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"linepulse/internal/application/usecases"
	"linepulse/internal/domain/models"
)

const defaultLimit = 50

// MovementsHandler handles movement query requests
type MovementsHandler struct {
	movementUseCase *usecases.MovementQueryUseCase
	logger          *slog.Logger
}

// NewMovementsHandler creates a new movements handler
func NewMovementsHandler(movementUseCase *usecases.MovementQueryUseCase, logger *slog.Logger) *MovementsHandler {
	return &MovementsHandler{
		movementUseCase: movementUseCase,
		logger:          logger,
	}
}

// Handle routes movement queries: /movements/recent and /movements/top,
// both taking an optional limit query parameter
func (h *MovementsHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	operation := strings.TrimPrefix(r.URL.Path, "/movements/")

	limit := defaultLimit
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		parsed, err := strconv.Atoi(limitStr)
		if err != nil || parsed <= 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = parsed
	}

	ctx := r.Context()
	var response []models.Movement
	var err error

	switch operation {
	case "recent":
		response, err = h.movementUseCase.Recent(ctx, limit)
	case "top":
		response, err = h.movementUseCase.Top(ctx, limit)
	default:
		http.Error(w, "Unknown operation", http.StatusBadRequest)
		return
	}

	if err != nil {
		h.logger.Error("Failed to process request", "error", err, "operation", operation)
		http.Error(w, "Internal server error", http.StatusInternalServerError)
		return
	}

	if response == nil {
		response = []models.Movement{}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(response)
}
