package usecases

import (
	"context"
	"log/slog"

	"linepulse/internal/application/ports"
	"linepulse/internal/domain/models"
)

// MovementQueryUseCase serves read queries over stored movements
type MovementQueryUseCase struct {
	storage ports.StoragePort
	cache   ports.CachePort
	logger  *slog.Logger
}

// NewMovementQueryUseCase creates a new MovementQueryUseCase. cache may
// be nil.
func NewMovementQueryUseCase(storage ports.StoragePort, cache ports.CachePort, logger *slog.Logger) *MovementQueryUseCase {
	return &MovementQueryUseCase{
		storage: storage,
		cache:   cache,
		logger:  logger,
	}
}

// Recent returns stored movements newest first
func (uc *MovementQueryUseCase) Recent(ctx context.Context, limit int) ([]models.Movement, error) {
	return uc.storage.RecentMovements(ctx, limit)
}

// Top returns stored movements by steam index descending
func (uc *MovementQueryUseCase) Top(ctx context.Context, limit int) ([]models.Movement, error) {
	return uc.storage.TopMovements(ctx, limit)
}

// LatestQuote returns the cached latest quote for a session, nil when
// no cache is configured or nothing is stored
func (uc *MovementQueryUseCase) LatestQuote(ctx context.Context, sessionID string) (*models.Quote, error) {
	if uc.cache == nil {
		return nil, nil
	}
	return uc.cache.GetLatestQuote(ctx, sessionID)
}
