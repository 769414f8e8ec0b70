package ports

import (
	"context"

	"linepulse/internal/domain/models"
)

// FeedPort defines the interface for a per-session feed transport.
// Start returns one quote stream and one ordered lifecycle event
// stream; both are closed when the transport shuts down for good.
type FeedPort interface {
	// Start begins the connect/read/reconnect loop
	Start(ctx context.Context) (<-chan models.Quote, <-chan models.SessionEvent, error)

	// Stop tears the transport down and cancels all pending timers
	Stop() error

	// SessionID returns the feed channel this transport serves
	SessionID() string
}

// TickNormalizer converts a raw feed frame into a typed quote.
// Wire-format details live behind this boundary.
type TickNormalizer interface {
	Normalize(sessionID string, payload []byte) (models.Quote, error)
}
