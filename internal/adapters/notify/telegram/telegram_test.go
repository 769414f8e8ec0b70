package telegram

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linepulse/internal/domain/feederr"
)

func TestSendReturnsMessageID(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botsecret/sendMessage", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.EqualValues(t, 42, req["chat_id"])
		assert.Equal(t, "line moved", req["text"])

		json.NewEncoder(w).Encode(map[string]any{
			"ok":     true,
			"result": map[string]any{"message_id": 777},
		})
	}))
	defer srv.Close()

	c := New(Config{APIURL: srv.URL, BotToken: "secret", ChatID: 42})
	id, err := c.Send(context.Background(), "line moved")
	require.NoError(t, err)
	assert.Equal(t, int64(777), id)
}

func TestSendFailureIsDeliveryError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"ok": false, "description": "chat not found"})
	}))
	defer srv.Close()

	c := New(Config{APIURL: srv.URL, BotToken: "secret", ChatID: 42})
	_, err := c.Send(context.Background(), "x")

	var de *feederr.DeliveryError
	require.ErrorAs(t, err, &de)
	assert.Contains(t, err.Error(), "chat not found")
}

func TestPinScopedToThread(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/botsecret/pinChatMessage", r.URL.Path)

		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.EqualValues(t, 777, req["message_id"])
		assert.EqualValues(t, 9, req["message_thread_id"])

		json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": true})
	}))
	defer srv.Close()

	c := New(Config{APIURL: srv.URL, BotToken: "secret", ChatID: 42, ThreadID: 9})
	require.NoError(t, c.Pin(context.Background(), 777))
}

func TestPinFailureIsPinError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"ok": false, "description": "not enough rights"})
	}))
	defer srv.Close()

	c := New(Config{APIURL: srv.URL, BotToken: "secret", ChatID: 42})
	err := c.Pin(context.Background(), 777)

	var pe *feederr.PinError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, int64(777), pe.MessageID)
}
