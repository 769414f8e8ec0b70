// Package auth implements the credential endpoint client.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"time"

	"linepulse/internal/application/ports"
	"linepulse/internal/domain/feederr"
)

type tokenRequest struct {
	SessionID string `json:"session_id"`
}

type tokenResponse struct {
	Token      string `json:"token"`
	TTLSeconds int64  `json:"ttl_seconds"`
}

// Client fetches bearer tokens from the credential endpoint
type Client struct {
	url        string
	httpClient *http.Client
}

var _ ports.CredentialPort = (*Client)(nil)

// New creates a credential client
func New(url string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 8 * time.Second
	}
	return &Client{
		url: url,
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// Fetch requests a fresh token for a session. Failures map onto the
// feed error taxonomy so callers can pick the right retry policy.
func (c *Client) Fetch(ctx context.Context, sessionID string) (ports.Token, error) {
	body, err := json.Marshal(tokenRequest{SessionID: sessionID})
	if err != nil {
		return ports.Token{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return ports.Token{}, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return ports.Token{}, &feederr.NetworkError{Op: "token fetch", Err: err}
	}
	defer resp.Body.Close()

	if cerr := feederr.ClassifyStatus(resp.StatusCode); cerr != nil {
		return ports.Token{}, cerr
	}

	var tr tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tr); err != nil {
		return ports.Token{}, &feederr.NetworkError{Op: "token decode", Err: err}
	}

	return ports.Token{
		Value:    tr.Token,
		TTL:      time.Duration(tr.TTLSeconds) * time.Second,
		IssuedAt: time.Now(),
	}, nil
}
