// Package detector implements stateful movement detection over
// consecutive quotes. The Detector owns all per-session comparison
// state; callers never share it.
package detector

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"linepulse/internal/domain/models"
)

// Config holds detection thresholds
type Config struct {
	// Threshold is the minimum |delta| between consecutive lines that
	// qualifies as a movement
	Threshold float64

	// IdleGap resets the tick counter when this much time passes
	// without an emitted movement
	IdleGap time.Duration
}

type sessionState struct {
	lastQuote   *models.Quote
	openingLine *float64
	tickCount   int
	lastAlertAt time.Time
}

// Detector compares consecutive quotes per session and emits a
// Movement when the line delta crosses the threshold
type Detector struct {
	cfg Config
	now func() time.Time

	mu       sync.Mutex
	sessions map[string]*sessionState
}

// New creates a detector with the given thresholds
func New(cfg Config) *Detector {
	if cfg.Threshold <= 0 {
		cfg.Threshold = 0.5
	}
	if cfg.IdleGap <= 0 {
		cfg.IdleGap = 5 * time.Minute
	}
	return &Detector{
		cfg:      cfg,
		now:      time.Now,
		sessions: make(map[string]*sessionState),
	}
}

// Process records the quote and returns a Movement when the session's
// line moved at least Threshold since the previous quote. The first
// quote for a session never yields a movement: there is no baseline.
func (d *Detector) Process(q models.Quote) *models.Movement {
	d.mu.Lock()
	defer d.mu.Unlock()

	st, ok := d.sessions[q.SessionID]
	if !ok {
		st = &sessionState{}
		d.sessions[q.SessionID] = st
	}

	now := d.now()
	if st.tickCount > 0 && !st.lastAlertAt.IsZero() && now.Sub(st.lastAlertAt) > d.cfg.IdleGap {
		// Fresh observation window after a quiet stretch
		st.tickCount = 0
	}
	st.tickCount++

	if st.openingLine == nil && q.Line != nil {
		v := *q.Line
		st.openingLine = &v
	}

	prev := st.lastQuote
	cp := q
	st.lastQuote = &cp

	if prev == nil || prev.Line == nil || q.Line == nil {
		return nil
	}

	delta := *q.Line - *prev.Line
	if math.Abs(delta) < d.cfg.Threshold {
		return nil
	}

	overPct := pctChange(prev.OverPrice, q.OverPrice)
	underPct := pctChange(prev.UnderPrice, q.UnderPrice)
	steam := math.Abs(delta) * (sumAbs(overPct, underPct) / 100)

	providers := q.Providers
	if len(providers) == 0 {
		providers = []string{"consensus"}
	}

	m := &models.Movement{
		ID:          uuid.NewString(),
		SessionID:   q.SessionID,
		QuoteTS:     q.Timestamp,
		PrevLine:    *prev.Line,
		CurrLine:    *q.Line,
		Delta:       delta,
		OverPrev:    prev.OverPrice,
		OverCurr:    q.OverPrice,
		OverPct:     overPct,
		UnderPrev:   prev.UnderPrice,
		UnderCurr:   q.UnderPrice,
		UnderPct:    underPct,
		SteamIndex:  steam,
		OpeningLine: st.openingLine,
		TickCount:   st.tickCount,
		Providers:   providers,
		DedupHash:   DedupHash(q.SessionID, q.Timestamp, *q.Line),
		CreatedAt:   now,
	}

	st.lastAlertAt = now
	return m
}

// Forget drops all comparison state for a session
func (d *Detector) Forget(sessionID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.sessions, sessionID)
}

// DedupHash derives the stable storage key for a
// (session, timestamp, line) triple
func DedupHash(sessionID string, ts int64, line float64) string {
	s := fmt.Sprintf("%s|%d|%s", sessionID, ts, strconv.FormatFloat(line, 'g', -1, 64))
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

// pctChange computes (curr-prev)/|prev|*100, or nil when the previous
// price is absent or zero
func pctChange(prev, curr *float64) *float64 {
	if prev == nil || curr == nil || *prev == 0 {
		return nil
	}
	v := (*curr - *prev) / math.Abs(*prev) * 100
	return &v
}

func sumAbs(vals ...*float64) float64 {
	var total float64
	for _, v := range vals {
		if v != nil {
			total += math.Abs(*v)
		}
	}
	return total
}
