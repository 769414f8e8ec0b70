// Package normalize converts raw quote frames into typed quotes.
package normalize

import (
	"encoding/json"
	"fmt"
	"time"

	"linepulse/internal/application/ports"
	"linepulse/internal/domain/models"
)

type wireQuote struct {
	Line      *float64 `json:"line"`
	Over      *float64 `json:"over"`
	Under     *float64 `json:"under"`
	Providers []string `json:"providers"`
	Timestamp int64    `json:"ts"`
}

// JSON normalizes the default JSON quote payload
type JSON struct{}

var _ ports.TickNormalizer = JSON{}

// Normalize parses one quote payload for a session
func (JSON) Normalize(sessionID string, payload []byte) (models.Quote, error) {
	var w wireQuote
	if err := json.Unmarshal(payload, &w); err != nil {
		return models.Quote{}, fmt.Errorf("decode quote: %w", err)
	}
	if w.Timestamp == 0 {
		return models.Quote{}, fmt.Errorf("quote missing timestamp")
	}

	return models.Quote{
		SessionID:  sessionID,
		Line:       w.Line,
		OverPrice:  w.Over,
		UnderPrice: w.Under,
		Providers:  w.Providers,
		Timestamp:  w.Timestamp,
		ReceivedAt: time.Now(),
	}, nil
}
