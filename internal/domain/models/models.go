package models

import "time"

// Quote represents a normalized two-sided quote for one feed session
type Quote struct {
	SessionID  string    `json:"session_id"`
	Line       *float64  `json:"line"`
	OverPrice  *float64  `json:"over_price"`
	UnderPrice *float64  `json:"under_price"`
	Providers  []string  `json:"providers"`
	Timestamp  int64     `json:"timestamp"`
	ReceivedAt time.Time `json:"received_at"`
}

// Movement represents a detected threshold-crossing line change.
// Created once per qualifying quote pair and immutable afterwards.
type Movement struct {
	ID          string    `db:"id" json:"id"`
	SessionID   string    `db:"session_id" json:"session_id"`
	QuoteTS     int64     `db:"quote_ts" json:"quote_ts"`
	PrevLine    float64   `db:"prev_line" json:"prev_line"`
	CurrLine    float64   `db:"curr_line" json:"curr_line"`
	Delta       float64   `db:"delta" json:"delta"`
	OverPrev    *float64  `db:"over_prev" json:"over_prev,omitempty"`
	OverCurr    *float64  `db:"over_curr" json:"over_curr,omitempty"`
	OverPct     *float64  `db:"over_pct" json:"over_pct,omitempty"`
	UnderPrev   *float64  `db:"under_prev" json:"under_prev,omitempty"`
	UnderCurr   *float64  `db:"under_curr" json:"under_curr,omitempty"`
	UnderPct    *float64  `db:"under_pct" json:"under_pct,omitempty"`
	SteamIndex  float64   `db:"steam_index" json:"steam_index"`
	OpeningLine *float64  `db:"opening_line" json:"opening_line,omitempty"`
	TickCount   int       `db:"tick_count" json:"tick_count"`
	Providers   []string  `db:"providers" json:"providers"`
	DedupHash   string    `db:"dedup_hash" json:"dedup_hash"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// Phase represents one state in the session lifecycle state machine
type Phase string

const (
	PhaseInit   Phase = "INIT"
	PhaseAuth   Phase = "AUTH"
	PhaseActive Phase = "ACTIVE"
	PhaseRenew  Phase = "RENEW"
	PhaseEvict  Phase = "EVICT"
)

// Forecast is the qualitative health forecast derived from the tension score
type Forecast string

const (
	ForecastStable        Forecast = "STABLE"
	ForecastEvictImminent Forecast = "EVICT_IMMINENT"
)

// TensionMetrics are the runtime inputs to tension scoring.
// Zero values are valid and mean "not measured".
type TensionMetrics struct {
	LatencyMS   float64 `json:"latency_ms"`
	ErrorRate   float64 `json:"error_rate"`
	QueueDepth  float64 `json:"queue_depth"`
	MemPressure float64 `json:"mem_pressure"`
}

// TensionSample is the scored health snapshot taken on a phase transition
type TensionSample struct {
	Phase    Phase          `json:"phase"`
	Score    float64        `json:"score"`
	Metrics  TensionMetrics `json:"metrics"`
	Forecast Forecast       `json:"forecast"`
	TakenAt  time.Time      `json:"taken_at"`
}

// Session represents one live feed subscription and its lifecycle state
type Session struct {
	ID               string        `json:"id"`
	Phase            Phase         `json:"phase"`
	Tension          TensionSample `json:"tension"`
	CreatedAt        time.Time     `json:"created_at"`
	LastTransitionAt time.Time     `json:"last_transition_at"`
}

// Severity ranks an alert
type Severity string

const (
	SeverityWarning  Severity = "WARNING"
	SeverityCritical Severity = "CRITICAL"
)

// Alert captures one dispatched notification and its delivery outcome
type Alert struct {
	ID        string   `json:"id"`
	SessionID string   `json:"session_id"`
	Severity  Severity `json:"severity"`
	DedupHash string   `json:"dedup_hash"`
	Delivered bool     `json:"delivered"`
	MessageID int64    `json:"message_id,omitempty"`
	Pinned    bool     `json:"pinned"`
}

// EventKind identifies a transport lifecycle event
type EventKind string

const (
	EventConnected          EventKind = "connected"
	EventAuthenticated      EventKind = "authenticated"
	EventHeartbeat          EventKind = "heartbeat"
	EventRenewStarted       EventKind = "renew_started"
	EventRenewed            EventKind = "renewed"
	EventError              EventKind = "error"
	EventClosed             EventKind = "closed"
	EventReconnectScheduled EventKind = "reconnect_scheduled"
)

// SessionEvent is one entry in a session's ordered lifecycle event stream
type SessionEvent struct {
	SessionID string        `json:"session_id"`
	Kind      EventKind     `json:"kind"`
	Err       error         `json:"-"`
	Latency   time.Duration `json:"latency,omitempty"`
	Delay     time.Duration `json:"delay,omitempty"`
	At        time.Time     `json:"at"`
}
