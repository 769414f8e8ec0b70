// Package telegram implements the alert channel over the Telegram Bot
// API: sendMessage for delivery, pinChatMessage for escalation.
package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"linepulse/internal/application/ports"
	"linepulse/internal/domain/feederr"
)

// Config holds the bot credentials and target chat
type Config struct {
	APIURL   string
	BotToken string
	ChatID   int64
	// ThreadID scopes pins to a forum topic when non-zero
	ThreadID int64
	Timeout  time.Duration
}

// Client is a NotifierPort over the Telegram Bot API
type Client struct {
	cfg        Config
	httpClient *http.Client
}

var _ ports.NotifierPort = (*Client)(nil)

// New creates a Telegram notifier
func New(cfg Config) *Client {
	if cfg.APIURL == "" {
		cfg.APIURL = "https://api.telegram.org"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Client{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}
}

type sendMessageRequest struct {
	ChatID    int64  `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode,omitempty"`
}

type pinMessageRequest struct {
	ChatID          int64 `json:"chat_id"`
	MessageID       int64 `json:"message_id"`
	MessageThreadID int64 `json:"message_thread_id,omitempty"`
}

type apiResponse struct {
	OK          bool            `json:"ok"`
	Description string          `json:"description"`
	Result      json.RawMessage `json:"result"`
}

type messageResult struct {
	MessageID int64 `json:"message_id"`
}

// Send delivers a message and returns the provider message id
func (c *Client) Send(ctx context.Context, text string) (int64, error) {
	req := sendMessageRequest{ChatID: c.cfg.ChatID, Text: text, ParseMode: "HTML"}

	var result messageResult
	if err := c.call(ctx, "sendMessage", req, &result); err != nil {
		return 0, &feederr.DeliveryError{Err: err}
	}
	return result.MessageID, nil
}

// Pin promotes a delivered message. Best effort only.
func (c *Client) Pin(ctx context.Context, messageID int64) error {
	req := pinMessageRequest{
		ChatID:          c.cfg.ChatID,
		MessageID:       messageID,
		MessageThreadID: c.cfg.ThreadID,
	}

	if err := c.call(ctx, "pinChatMessage", req, nil); err != nil {
		return &feederr.PinError{MessageID: messageID, Err: err}
	}
	return nil
}

func (c *Client) call(ctx context.Context, method string, payload, result any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/bot%s/%s", c.cfg.APIURL, c.cfg.BotToken, method)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var ar apiResponse
	if err := json.NewDecoder(resp.Body).Decode(&ar); err != nil {
		return fmt.Errorf("decode %s response: %w", method, err)
	}
	if !ar.OK {
		return fmt.Errorf("%s failed: %s", method, ar.Description)
	}
	if result != nil {
		if err := json.Unmarshal(ar.Result, result); err != nil {
			return fmt.Errorf("decode %s result: %w", method, err)
		}
	}
	return nil
}
