package ports

import (
	"context"

	"linepulse/internal/domain/models"
)

// StoragePort defines the interface for the append-only movement store
type StoragePort interface {
	// InsertMovement stores a movement with insert-or-ignore semantics
	// keyed by the dedup hash. The returned bool is false when an
	// equal-keyed row already existed; that is not an error.
	InsertMovement(ctx context.Context, m models.Movement) (bool, error)

	// RecentMovements returns stored movements ordered by recency
	RecentMovements(ctx context.Context, limit int) ([]models.Movement, error)

	// TopMovements returns stored movements ordered by steam index descending
	TopMovements(ctx context.Context, limit int) ([]models.Movement, error)

	// Close closes the storage connection
	Close() error
}
