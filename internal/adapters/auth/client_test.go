package auth

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linepulse/internal/domain/feederr"
)

func TestFetchReturnsTokenWithTTL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)

		var req map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "nba-1", req["session_id"])

		json.NewEncoder(w).Encode(map[string]any{"token": "tok-abc", "ttl_seconds": 1800})
	}))
	defer srv.Close()

	c := New(srv.URL, time.Second)
	tok, err := c.Fetch(context.Background(), "nba-1")
	require.NoError(t, err)

	assert.Equal(t, "tok-abc", tok.Value)
	assert.Equal(t, 30*time.Minute, tok.TTL)
	assert.False(t, tok.IssuedAt.IsZero())
}

func TestFetchClassifiesAuthFailures(t *testing.T) {
	cases := []struct {
		status int
		kind   feederr.AuthKind
	}{
		{http.StatusTooManyRequests, feederr.AuthRateLimited},
		{http.StatusForbidden, feederr.AuthBlocked},
		{http.StatusUnauthorized, feederr.AuthInvalid},
	}

	for _, tc := range cases {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(tc.status)
		}))

		c := New(srv.URL, time.Second)
		_, err := c.Fetch(context.Background(), "nba-1")
		require.Error(t, err, "status %d", tc.status)

		kind, ok := feederr.AuthKindOf(err)
		require.True(t, ok, "status %d", tc.status)
		assert.Equal(t, tc.kind, kind)

		srv.Close()
	}
}

func TestFetchWrapsTransportFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	srv.Close() // refuse connections

	c := New(srv.URL, time.Second)
	_, err := c.Fetch(context.Background(), "nba-1")

	var ne *feederr.NetworkError
	assert.ErrorAs(t, err, &ne)
}
