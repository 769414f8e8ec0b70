package usecases

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linepulse/internal/adapters/storage/memory"
	"linepulse/internal/application/ports"
	"linepulse/internal/detector"
	"linepulse/internal/dispatch"
	"linepulse/internal/domain/models"
	"linepulse/internal/lifecycle"
)

// fakeFeed hands the test direct control over one session's quote and
// event streams
type fakeFeed struct {
	id       string
	startErr error
	quotes   chan models.Quote
	events   chan models.SessionEvent

	closeOnce sync.Once
	stopped   atomic.Bool
}

func newFakeFeed(id string) *fakeFeed {
	return &fakeFeed{
		id:     id,
		quotes: make(chan models.Quote, 16),
		events: make(chan models.SessionEvent, 16),
	}
}

func (f *fakeFeed) Start(ctx context.Context) (<-chan models.Quote, <-chan models.SessionEvent, error) {
	if f.startErr != nil {
		return nil, nil, f.startErr
	}
	return f.quotes, f.events, nil
}

func (f *fakeFeed) Stop() error {
	f.stopped.Store(true)
	f.finish()
	return nil
}

func (f *fakeFeed) SessionID() string { return f.id }

func (f *fakeFeed) finish() {
	f.closeOnce.Do(func() {
		close(f.quotes)
		close(f.events)
	})
}

type countingNotifier struct {
	mu   sync.Mutex
	sent int
}

func (n *countingNotifier) Send(ctx context.Context, text string) (int64, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent++
	return int64(n.sent), nil
}

func (n *countingNotifier) Pin(ctx context.Context, messageID int64) error { return nil }

func (n *countingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.sent
}

func fp(v float64) *float64 { return &v }

func testQuote(session string, ts int64, line float64) models.Quote {
	return models.Quote{
		SessionID:  session,
		Line:       fp(line),
		OverPrice:  fp(-110),
		UnderPrice: fp(-110),
		Providers:  []string{"book-a"},
		Timestamp:  ts,
	}
}

func newPipeline(t *testing.T, feeds []*fakeFeed, notifier *countingNotifier) (*PipelineUseCase, *memory.Adapter, *lifecycle.Tracker) {
	t.Helper()

	store := memory.New()
	counters := &dispatch.Counters{}
	tracker := lifecycle.New(lifecycle.DefaultConfig(), slog.Default())
	det := detector.New(detector.Config{Threshold: 0.5})
	disp := dispatch.New(dispatch.Config{}, notifier, counters, slog.Default())

	feedPorts := make([]ports.FeedPort, len(feeds))
	for i, f := range feeds {
		feedPorts[i] = f
	}

	uc := NewPipelineUseCase(
		feedPorts, det, tracker, store, nil, disp, counters,
		time.Hour, 0, slog.Default(),
	)
	return uc, store, tracker
}

func TestPipelineStoresAndAlertsOnce(t *testing.T) {
	feed := newFakeFeed("nba-1")
	notifier := &countingNotifier{}
	uc, store, _ := newPipeline(t, []*fakeFeed{feed}, notifier)

	done := make(chan error, 1)
	go func() { done <- uc.Start(context.Background()) }()

	feed.quotes <- testQuote("nba-1", 1, 45.5)
	feed.quotes <- testQuote("nba-1", 2, 46.5)
	// Upstream retransmission of the last quote: equal lines never emit
	feed.quotes <- testQuote("nba-1", 2, 46.5)
	feed.finish()

	require.NoError(t, <-done)

	rows, err := store.RecentMovements(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, rows, 1, "retransmission must not reach storage")
	assert.Equal(t, 1.0, rows[0].Delta)

	assert.Equal(t, 1, notifier.count(), "retransmission must not re-alert")

	snap := uc.Counters()
	assert.Equal(t, int64(3), snap.QuotesProcessed)
	assert.Equal(t, int64(1), snap.Inserts)
	assert.Equal(t, int64(1), snap.AlertsSent)
}

func TestPipelineTracksLifecycle(t *testing.T) {
	feed := newFakeFeed("nba-1")
	notifier := &countingNotifier{}
	uc, _, tracker := newPipeline(t, []*fakeFeed{feed}, notifier)

	done := make(chan error, 1)
	go func() { done <- uc.Start(context.Background()) }()

	now := time.Now()
	feed.events <- models.SessionEvent{SessionID: "nba-1", Kind: models.EventConnected, At: now}
	feed.events <- models.SessionEvent{SessionID: "nba-1", Kind: models.EventAuthenticated, At: now}
	feed.events <- models.SessionEvent{SessionID: "nba-1", Kind: models.EventHeartbeat, Latency: 20 * time.Millisecond, At: now}
	feed.finish()

	require.NoError(t, <-done)

	s, ok := tracker.Get("nba-1")
	require.True(t, ok)
	assert.Equal(t, models.PhaseActive, s.Phase)
	assert.GreaterOrEqual(t, s.Tension.Score, 0.0)
	assert.LessOrEqual(t, s.Tension.Score, 1.0)
}

func TestPipelineStartFailureStopsStartedFeeds(t *testing.T) {
	ok := newFakeFeed("nba-1")
	broken := newFakeFeed("nba-2")
	broken.startErr = errors.New("listener unavailable")

	notifier := &countingNotifier{}
	uc, _, _ := newPipeline(t, []*fakeFeed{ok, broken}, notifier)

	err := uc.Start(context.Background())
	require.ErrorIs(t, err, broken.startErr)

	assert.True(t, ok.stopped.Load(), "feeds started before the failure must be stopped")
	assert.False(t, broken.stopped.Load())
}

func TestPipelineSessionsRunIndependently(t *testing.T) {
	a := newFakeFeed("nba-1")
	b := newFakeFeed("nba-2")
	notifier := &countingNotifier{}
	uc, store, _ := newPipeline(t, []*fakeFeed{a, b}, notifier)

	done := make(chan error, 1)
	go func() { done <- uc.Start(context.Background()) }()

	a.quotes <- testQuote("nba-1", 1, 45.5)
	a.quotes <- testQuote("nba-1", 2, 46.5)
	// Session b only ever sees one quote: no baseline, no movement
	b.quotes <- testQuote("nba-2", 1, 210.0)

	a.finish()
	b.finish()
	require.NoError(t, <-done)

	rows, _ := store.RecentMovements(context.Background(), 10)
	require.Len(t, rows, 1)
	assert.Equal(t, "nba-1", rows[0].SessionID)
}
