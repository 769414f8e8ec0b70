// Package replay generates synthetic quotes for local runs without a
// live feed endpoint.
package replay

import (
	"context"
	"math/rand"
	"time"

	"linepulse/internal/application/ports"
	"linepulse/internal/domain/models"
)

// Adapter implements FeedPort with a random-walk quote generator
type Adapter struct {
	sessionID string
	interval  time.Duration

	quotes chan models.Quote
	events chan models.SessionEvent
	cancel context.CancelFunc
}

var _ ports.FeedPort = (*Adapter)(nil)

// New creates a replay adapter emitting one quote per interval
func New(sessionID string, interval time.Duration) *Adapter {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	return &Adapter{
		sessionID: sessionID,
		interval:  interval,
		quotes:    make(chan models.Quote, 64),
		events:    make(chan models.SessionEvent, 8),
	}
}

// SessionID returns the simulated feed channel
func (a *Adapter) SessionID() string { return a.sessionID }

// Start begins generating quotes
func (a *Adapter) Start(ctx context.Context) (<-chan models.Quote, <-chan models.SessionEvent, error) {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancel = cancel

	go a.generate(runCtx)
	return a.quotes, a.events, nil
}

// Stop halts generation
func (a *Adapter) Stop() error {
	if a.cancel != nil {
		a.cancel()
	}
	return nil
}

func (a *Adapter) generate(ctx context.Context) {
	defer close(a.quotes)
	defer close(a.events)

	now := time.Now()
	a.send(ctx, models.SessionEvent{Kind: models.EventConnected, At: now})
	a.send(ctx, models.SessionEvent{Kind: models.EventAuthenticated, At: now})

	line := 200 + rand.Float64()*30
	over := -110.0
	under := -110.0

	ticker := time.NewTicker(a.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			select {
			case a.events <- models.SessionEvent{SessionID: a.sessionID, Kind: models.EventClosed, At: time.Now()}:
			default:
			}
			return
		case tick := <-ticker.C:
			// Mostly noise, occasionally a full-point steam move
			step := (rand.Float64() - 0.5) * 0.4
			if rand.Float64() < 0.05 {
				step = 1.0 + rand.Float64()
				if rand.Float64() < 0.5 {
					step = -step
				}
			}
			line += step
			over += (rand.Float64() - 0.5) * 8
			under += (rand.Float64() - 0.5) * 8

			l, o, u := line, over, under
			q := models.Quote{
				SessionID:  a.sessionID,
				Line:       &l,
				OverPrice:  &o,
				UnderPrice: &u,
				Providers:  []string{"replay"},
				Timestamp:  tick.UnixMilli(),
				ReceivedAt: tick,
			}

			select {
			case a.quotes <- q:
			case <-ctx.Done():
			}

			a.send(ctx, models.SessionEvent{Kind: models.EventHeartbeat, Latency: time.Millisecond, At: tick})
		}
	}
}

func (a *Adapter) send(ctx context.Context, ev models.SessionEvent) {
	ev.SessionID = a.sessionID
	select {
	case a.events <- ev:
	case <-ctx.Done():
	}
}
