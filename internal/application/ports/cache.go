package ports

import (
	"context"

	"linepulse/internal/domain/models"
)

// CachePort defines the interface for the hot status cache
type CachePort interface {
	// SetLatestQuote stores the most recent quote for a session
	SetLatestQuote(ctx context.Context, q models.Quote) error

	// GetLatestQuote returns the most recent quote for a session, nil when absent
	GetLatestQuote(ctx context.Context, sessionID string) (*models.Quote, error)

	// SetSessionSnapshot stores the latest lifecycle snapshot for a session
	SetSessionSnapshot(ctx context.Context, s models.Session) error

	// GetSessionSnapshots returns the stored snapshots for all sessions
	GetSessionSnapshots(ctx context.Context) ([]models.Session, error)

	// Close closes the cache connection
	Close() error
}
