package ports

import "context"

// NotifierPort defines the interface for the outbound alert channel
type NotifierPort interface {
	// Send delivers a formatted message and returns the provider message id
	Send(ctx context.Context, text string) (int64, error)

	// Pin promotes a delivered message, optionally scoped to a thread.
	// Best effort: failures are reported but carry no retry obligation.
	Pin(ctx context.Context, messageID int64) error
}
