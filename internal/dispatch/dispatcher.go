// Package dispatch classifies, formats, delivers, and escalates alerts
// for detected movements.
package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"linepulse/internal/application/ports"
	"linepulse/internal/domain/models"
	"linepulse/internal/metrics"
)

// Config holds severity and escalation thresholds
type Config struct {
	// CriticalDelta promotes an alert to CRITICAL when |delta| reaches it
	CriticalDelta float64
	// PinDelta and PinSteam gate escalation: pin when |delta| >= PinDelta
	// or steamIndex > PinSteam
	PinDelta float64
	PinSteam float64
	// SendTimeout bounds each delivery and pin call
	SendTimeout time.Duration
}

// Counters are the dispatcher's running totals, safe for concurrent
// writers
type Counters struct {
	QuotesProcessed atomic.Int64
	Inserts         atomic.Int64
	Errors          atomic.Int64
	AlertsSent      atomic.Int64
	AlertsPinned    atomic.Int64
}

// Snapshot is a point-in-time copy of the counters
type Snapshot struct {
	QuotesProcessed int64 `json:"quotes_processed"`
	Inserts         int64 `json:"inserts"`
	Errors          int64 `json:"errors"`
	AlertsSent      int64 `json:"alerts_sent"`
	AlertsPinned    int64 `json:"alerts_pinned"`
}

// Snapshot returns a copy of the current totals
func (c *Counters) Snapshot() Snapshot {
	return Snapshot{
		QuotesProcessed: c.QuotesProcessed.Load(),
		Inserts:         c.Inserts.Load(),
		Errors:          c.Errors.Load(),
		AlertsSent:      c.AlertsSent.Load(),
		AlertsPinned:    c.AlertsPinned.Load(),
	}
}

// Dispatcher delivers movement alerts. Delivery is asynchronous and
// never blocks detection or persistence of subsequent quotes.
type Dispatcher struct {
	cfg      Config
	notifier ports.NotifierPort
	logger   *slog.Logger
	counters *Counters
	wg       sync.WaitGroup
}

// New creates a dispatcher
func New(cfg Config, notifier ports.NotifierPort, counters *Counters, logger *slog.Logger) *Dispatcher {
	if cfg.CriticalDelta <= 0 {
		cfg.CriticalDelta = 1.0
	}
	if cfg.PinDelta <= 0 {
		cfg.PinDelta = 1.0
	}
	if cfg.PinSteam <= 0 {
		cfg.PinSteam = 2.0
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = 10 * time.Second
	}
	return &Dispatcher{
		cfg:      cfg,
		notifier: notifier,
		logger:   logger,
		counters: counters,
	}
}

// Severity classifies a movement
func (d *Dispatcher) Severity(m models.Movement) models.Severity {
	if math.Abs(m.Delta) >= d.cfg.CriticalDelta {
		return models.SeverityCritical
	}
	return models.SeverityWarning
}

// ShouldPin reports whether a delivered alert qualifies for escalation
func (d *Dispatcher) ShouldPin(m models.Movement) bool {
	return math.Abs(m.Delta) >= d.cfg.PinDelta || m.SteamIndex > d.cfg.PinSteam
}

// Dispatch sends an alert for a freshly stored movement. A movement
// whose dedup key collided in storage is skipped: the earlier
// equivalent already alerted.
func (d *Dispatcher) Dispatch(ctx context.Context, m models.Movement, inserted bool) *models.Alert {
	if !inserted {
		d.logger.Debug("suppressing duplicate alert", "session_id", m.SessionID, "dedup_hash", m.DedupHash)
		return nil
	}

	alert := &models.Alert{
		ID:        uuid.NewString(),
		SessionID: m.SessionID,
		Severity:  d.Severity(m),
		DedupHash: m.DedupHash,
	}

	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		d.deliver(ctx, alert, m)
	}()

	return alert
}

// Wait blocks until all in-flight deliveries settle
func (d *Dispatcher) Wait() {
	d.wg.Wait()
}

func (d *Dispatcher) deliver(ctx context.Context, alert *models.Alert, m models.Movement) {
	sendCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	defer cancel()

	msgID, err := d.notifier.Send(sendCtx, d.format(alert.Severity, m))
	if err != nil {
		d.counters.Errors.Add(1)
		metrics.PipelineErrors.WithLabelValues("delivery").Inc()
		d.logger.Error("alert delivery failed", "session_id", m.SessionID, "error", err)
		return
	}

	alert.Delivered = true
	alert.MessageID = msgID
	d.counters.AlertsSent.Add(1)
	metrics.AlertsSent.WithLabelValues(string(alert.Severity)).Inc()

	if !d.ShouldPin(m) {
		return
	}

	pinCtx, cancel := context.WithTimeout(ctx, d.cfg.SendTimeout)
	defer cancel()

	if err := d.notifier.Pin(pinCtx, msgID); err != nil {
		// Best effort: an unpinned alert is still a delivered alert
		d.counters.Errors.Add(1)
		metrics.PipelineErrors.WithLabelValues("pin").Inc()
		d.logger.Warn("pin failed", "session_id", m.SessionID, "message_id", msgID, "error", err)
		return
	}

	alert.Pinned = true
	d.counters.AlertsPinned.Add(1)
	metrics.AlertsPinned.Inc()
}

func (d *Dispatcher) format(severity models.Severity, m models.Movement) string {
	arrow := "⬆"
	if m.Delta < 0 {
		arrow = "⬇"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%s <b>%s</b> %s\n", severityEmoji(severity), m.SessionID, arrow)
	fmt.Fprintf(&b, "Line %.1f → %.1f (%+.1f)\n", m.PrevLine, m.CurrLine, m.Delta)
	if m.OverPct != nil {
		fmt.Fprintf(&b, "Over %+.1f%%  ", *m.OverPct)
	}
	if m.UnderPct != nil {
		fmt.Fprintf(&b, "Under %+.1f%%", *m.UnderPct)
	}
	if m.OverPct != nil || m.UnderPct != nil {
		b.WriteString("\n")
	}
	fmt.Fprintf(&b, "Steam %.2f | ticks %d", m.SteamIndex, m.TickCount)
	if m.OpeningLine != nil {
		fmt.Fprintf(&b, " | opened %.1f", *m.OpeningLine)
	}
	if len(m.Providers) > 0 {
		fmt.Fprintf(&b, "\n%s", strings.Join(m.Providers, ", "))
	}
	return b.String()
}

func severityEmoji(s models.Severity) string {
	if s == models.SeverityCritical {
		return "🚨"
	}
	return "⚠️"
}
