// Package feederr defines the error taxonomy for the feed pipeline.
// Only configuration errors and intentional shutdown are fatal; every
// error type here is locally recoverable per its retry policy.
package feederr

import (
	"errors"
	"fmt"
	"net/http"
)

// AuthKind discriminates authentication failures by retry policy
type AuthKind string

const (
	// AuthRateLimited applies a longer cool-down before the next attempt
	AuthRateLimited AuthKind = "rate_limited"
	// AuthBlocked suspends retries for an extended cool-down
	AuthBlocked AuthKind = "blocked"
	// AuthInvalid aborts retries for the session entirely
	AuthInvalid AuthKind = "invalid"
)

// NetworkError is a transient transport failure, retried with standard backoff
type NetworkError struct {
	Op  string
	Err error
}

func (e *NetworkError) Error() string { return fmt.Sprintf("network: %s: %v", e.Op, e.Err) }
func (e *NetworkError) Unwrap() error { return e.Err }

// AuthError is a credential fetch or validation failure
type AuthError struct {
	Kind AuthKind
	Err  error
}

func (e *AuthError) Error() string { return fmt.Sprintf("auth (%s): %v", e.Kind, e.Err) }
func (e *AuthError) Unwrap() error { return e.Err }

// ProtocolError marks a single malformed frame; the frame is dropped and logged
type ProtocolError struct {
	SessionID string
	Err       error
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("protocol: session %s: %v", e.SessionID, e.Err)
}
func (e *ProtocolError) Unwrap() error { return e.Err }

// DeliveryError is an alert send failure; counted, never blocks the pipeline
type DeliveryError struct {
	Err error
}

func (e *DeliveryError) Error() string { return fmt.Sprintf("delivery: %v", e.Err) }
func (e *DeliveryError) Unwrap() error { return e.Err }

// PinError is a best-effort escalation failure; logged only
type PinError struct {
	MessageID int64
	Err       error
}

func (e *PinError) Error() string { return fmt.Sprintf("pin message %d: %v", e.MessageID, e.Err) }
func (e *PinError) Unwrap() error { return e.Err }

// ClassifyStatus maps an HTTP status from the credential or feed endpoint
// onto the taxonomy. Statuses outside the auth range are transient.
func ClassifyStatus(status int) error {
	switch {
	case status == http.StatusTooManyRequests:
		return &AuthError{Kind: AuthRateLimited, Err: fmt.Errorf("status %d", status)}
	case status == http.StatusForbidden:
		return &AuthError{Kind: AuthBlocked, Err: fmt.Errorf("status %d", status)}
	case status == http.StatusUnauthorized:
		return &AuthError{Kind: AuthInvalid, Err: fmt.Errorf("status %d", status)}
	case status >= 400:
		return &NetworkError{Op: "request", Err: fmt.Errorf("status %d", status)}
	default:
		return nil
	}
}

// AuthKindOf returns the auth kind when err is an AuthError
func AuthKindOf(err error) (AuthKind, bool) {
	var ae *AuthError
	if errors.As(err, &ae) {
		return ae.Kind, true
	}
	return "", false
}

// IsFatalAuth reports whether retrying is pointless for this session
func IsFatalAuth(err error) bool {
	kind, ok := AuthKindOf(err)
	return ok && kind == AuthInvalid
}
