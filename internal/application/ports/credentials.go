package ports

import (
	"context"
	"time"
)

// Token is a bearer credential with a known lifetime
type Token struct {
	Value    string
	TTL      time.Duration
	IssuedAt time.Time
}

// CredentialPort defines the interface for the credential endpoint.
// Fetch is called once per connection attempt and again on renewal.
type CredentialPort interface {
	Fetch(ctx context.Context, sessionID string) (Token, error)
}
