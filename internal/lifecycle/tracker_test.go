package lifecycle

import (
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linepulse/internal/domain/models"
)

func newTestTracker() *Tracker {
	return New(DefaultConfig(), slog.Default())
}

func TestScoreAlwaysBounded(t *testing.T) {
	tr := newTestTracker()

	inputs := []models.TensionMetrics{
		{},
		{LatencyMS: 50, ErrorRate: 0.1},
		{LatencyMS: 10_000, ErrorRate: 5, QueueDepth: 100_000, MemPressure: 1 << 40},
		{QueueDepth: 42},
		{MemPressure: 1 << 30},
	}
	phases := []models.Phase{
		models.PhaseInit, models.PhaseAuth, models.PhaseActive,
		models.PhaseRenew, models.PhaseEvict,
	}

	for _, m := range inputs {
		for _, p := range phases {
			s := tr.Score(p, m)
			assert.GreaterOrEqual(t, s.Score, 0.0)
			assert.LessOrEqual(t, s.Score, 1.0)
		}
	}
}

func TestScoreBlendFormula(t *testing.T) {
	tr := newTestTracker()

	m := models.TensionMetrics{LatencyMS: 50, ErrorRate: 0.1, QueueDepth: 20, MemPressure: 1 << 29}
	s := tr.Score(models.PhaseActive, m)

	// base = 0.5 + 0.1, advanced = 0.2 + 0.5, combined = 0.6*0.6 + 0.7*0.4
	assert.InDelta(t, 0.64, s.Score, 1e-9)
	assert.Equal(t, models.ForecastStable, s.Forecast)
}

func TestRenewOutweighsActive(t *testing.T) {
	tr := newTestTracker()

	m := models.TensionMetrics{LatencyMS: 30, ErrorRate: 0.05, QueueDepth: 10}
	renew := tr.Score(models.PhaseRenew, m)
	active := tr.Score(models.PhaseActive, m)

	assert.GreaterOrEqual(t, renew.Score, active.Score)
}

func TestForecastFlipsAboveThreshold(t *testing.T) {
	tr := newTestTracker()

	s := tr.Score(models.PhaseActive, models.TensionMetrics{LatencyMS: 200})
	assert.Equal(t, models.ForecastEvictImminent, s.Forecast)

	s = tr.Score(models.PhaseActive, models.TensionMetrics{LatencyMS: 50})
	assert.Equal(t, models.ForecastStable, s.Forecast)
}

func TestTransitionUpdatesSnapshot(t *testing.T) {
	tr := newTestTracker()

	s := tr.Transition("nba-1", models.PhaseInit, models.TensionMetrics{})
	assert.Equal(t, models.PhaseInit, s.Phase)
	assert.False(t, s.CreatedAt.IsZero())

	s = tr.Transition("nba-1", models.PhaseAuth, models.TensionMetrics{LatencyMS: 10})
	assert.Equal(t, models.PhaseAuth, s.Phase)

	got, ok := tr.Get("nba-1")
	require.True(t, ok)
	assert.Equal(t, models.PhaseAuth, got.Phase)
}

func TestInitReplacesPriorState(t *testing.T) {
	tr := newTestTracker()

	tr.Transition("nba-1", models.PhaseInit, models.TensionMetrics{})
	tr.Transition("nba-1", models.PhaseAuth, models.TensionMetrics{})
	first, _ := tr.Get("nba-1")

	tr.Transition("nba-1", models.PhaseInit, models.TensionMetrics{})
	second, ok := tr.Get("nba-1")
	require.True(t, ok)

	assert.Equal(t, models.PhaseInit, second.Phase)
	assert.False(t, second.CreatedAt.Before(first.CreatedAt))
	assert.Len(t, tr.Sessions(), 1, "re-INIT must replace, not duplicate")
}

func TestSweepZeroMaxAgeClearsImmediately(t *testing.T) {
	tr := newTestTracker()

	tr.Transition("nba-1", models.PhaseInit, models.TensionMetrics{})
	removed := tr.Sweep(0)

	assert.Equal(t, []string{"nba-1"}, removed)
	_, ok := tr.Get("nba-1")
	assert.False(t, ok)
}

func TestSweepRetainsRecentSessions(t *testing.T) {
	tr := newTestTracker()

	tr.Transition("nba-1", models.PhaseActive, models.TensionMetrics{})
	removed := tr.Sweep(time.Hour)

	assert.Empty(t, removed)
	_, ok := tr.Get("nba-1")
	assert.True(t, ok)
}

func TestSweepRemovesStaleSessions(t *testing.T) {
	tr := newTestTracker()
	now := time.Unix(1_700_000_000, 0)
	tr.now = func() time.Time { return now }

	tr.Transition("old", models.PhaseActive, models.TensionMetrics{})
	now = now.Add(2 * time.Hour)
	tr.Transition("fresh", models.PhaseActive, models.TensionMetrics{})

	removed := tr.Sweep(time.Hour)
	assert.Equal(t, []string{"old"}, removed)

	_, ok := tr.Get("fresh")
	assert.True(t, ok)
}

func TestConcurrentTransitionsAcrossSessions(t *testing.T) {
	tr := newTestTracker()

	var wg sync.WaitGroup
	ids := []string{"a", "b", "c", "d"}
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			tr.Transition(id, models.PhaseInit, models.TensionMetrics{})
			tr.Transition(id, models.PhaseAuth, models.TensionMetrics{})
			tr.Transition(id, models.PhaseActive, models.TensionMetrics{})
		}(id)
	}
	wg.Wait()

	assert.Len(t, tr.Sessions(), len(ids))
	for _, id := range ids {
		s, ok := tr.Get(id)
		require.True(t, ok)
		assert.Equal(t, models.PhaseActive, s.Phase)
	}
}
