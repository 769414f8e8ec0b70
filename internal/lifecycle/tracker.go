// Package lifecycle tracks per-session phase state and tension scores.
package lifecycle

import (
	"log/slog"
	"sync"
	"time"

	"linepulse/internal/domain/models"
)

// Config holds the tension scoring weights and sweep settings. The
// blend and phase weights are empirical values; callers may tune them.
type Config struct {
	BaseWeight     float64
	AdvancedWeight float64
	EvictThreshold float64
	PhaseWeights   map[models.Phase]float64
}

// DefaultConfig returns the scoring weights used in production
func DefaultConfig() Config {
	return Config{
		BaseWeight:     0.6,
		AdvancedWeight: 0.4,
		EvictThreshold: 0.7,
		PhaseWeights: map[models.Phase]float64{
			models.PhaseInit:   1.0,
			models.PhaseAuth:   1.5,
			models.PhaseActive: 1.0,
			models.PhaseRenew:  2.0,
			models.PhaseEvict:  1.0,
		},
	}
}

type entry struct {
	mu      sync.Mutex
	session models.Session
}

// Tracker is the single owner of all session lifecycle state.
// Transitions for different sessions run concurrently; transitions for
// one session serialize on its entry lock.
type Tracker struct {
	cfg    Config
	logger *slog.Logger
	now    func() time.Time

	mu      sync.RWMutex
	entries map[string]*entry
}

// New creates a tracker
func New(cfg Config, logger *slog.Logger) *Tracker {
	if cfg.PhaseWeights == nil {
		cfg = DefaultConfig()
	}
	return &Tracker{
		cfg:     cfg,
		logger:  logger,
		now:     time.Now,
		entries: make(map[string]*entry),
	}
}

// Transition moves a session into phase, rescoring tension from the
// given metrics. A transition to INIT replaces any prior state for the
// id. The updated session snapshot is returned by value.
func (t *Tracker) Transition(sessionID string, phase models.Phase, metrics models.TensionMetrics) models.Session {
	e := t.entry(sessionID)

	e.mu.Lock()
	defer e.mu.Unlock()

	now := t.now()
	if phase == models.PhaseInit && e.session.Phase != "" {
		// A fresh INIT replaces prior state rather than duplicating it
		e.session = models.Session{ID: sessionID, CreatedAt: now}
	}
	if e.session.CreatedAt.IsZero() {
		e.session.CreatedAt = now
	}

	sample := t.Score(phase, metrics)
	sample.TakenAt = now

	e.session.ID = sessionID
	e.session.Phase = phase
	e.session.Tension = sample
	e.session.LastTransitionAt = now

	t.logger.Debug("session transition",
		"session_id", sessionID,
		"phase", string(phase),
		"score", sample.Score,
		"forecast", string(sample.Forecast))

	return e.session
}

// Score computes a bounded tension sample for the phase and metrics
func (t *Tracker) Score(phase models.Phase, m models.TensionMetrics) models.TensionSample {
	base := m.LatencyMS/100 + m.ErrorRate
	advanced := m.QueueDepth/100 + m.MemPressure/(1<<30)
	combined := base*t.cfg.BaseWeight + advanced*t.cfg.AdvancedWeight

	weight, ok := t.cfg.PhaseWeights[phase]
	if !ok {
		weight = 1.0
	}

	score := combined * weight
	if score > 1 {
		score = 1
	}
	if score < 0 {
		score = 0
	}

	forecast := models.ForecastStable
	if score > t.cfg.EvictThreshold {
		forecast = models.ForecastEvictImminent
	}

	return models.TensionSample{
		Phase:    phase,
		Score:    score,
		Metrics:  m,
		Forecast: forecast,
	}
}

// Get returns the current snapshot for a session
func (t *Tracker) Get(sessionID string) (models.Session, bool) {
	t.mu.RLock()
	e, ok := t.entries[sessionID]
	t.mu.RUnlock()
	if !ok {
		return models.Session{}, false
	}

	e.mu.Lock()
	defer e.mu.Unlock()
	return e.session, e.session.Phase != ""
}

// Sessions returns snapshots for every tracked session
func (t *Tracker) Sessions() []models.Session {
	t.mu.RLock()
	entries := make([]*entry, 0, len(t.entries))
	for _, e := range t.entries {
		entries = append(entries, e)
	}
	t.mu.RUnlock()

	out := make([]models.Session, 0, len(entries))
	for _, e := range entries {
		e.mu.Lock()
		if e.session.Phase != "" {
			out = append(out, e.session)
		}
		e.mu.Unlock()
	}
	return out
}

// Sweep removes sessions whose last transition predates now-maxAge and
// returns the removed ids. maxAge zero clears every session.
func (t *Tracker) Sweep(maxAge time.Duration) []string {
	cutoff := t.now().Add(-maxAge)

	t.mu.Lock()
	defer t.mu.Unlock()

	var removed []string
	for id, e := range t.entries {
		e.mu.Lock()
		stale := maxAge == 0 || e.session.LastTransitionAt.Before(cutoff)
		e.mu.Unlock()
		if stale {
			delete(t.entries, id)
			removed = append(removed, id)
		}
	}

	if len(removed) > 0 {
		t.logger.Info("swept stale sessions", "count", len(removed), "max_age", maxAge)
	}
	return removed
}

func (t *Tracker) entry(sessionID string) *entry {
	t.mu.RLock()
	e, ok := t.entries[sessionID]
	t.mu.RUnlock()
	if ok {
		return e
	}

	t.mu.Lock()
	defer t.mu.Unlock()
	if e, ok = t.entries[sessionID]; ok {
		return e
	}
	e = &entry{}
	t.entries[sessionID] = e
	return e
}
