package dispatch

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"linepulse/internal/domain/models"
)

// fakeNotifier records sends and pins; sendErr/pinErr simulate channel
// failures
type fakeNotifier struct {
	mu      sync.Mutex
	sent    []string
	pinned  []int64
	sendErr error
	pinErr  error
	nextID  int64
}

func (f *fakeNotifier) Send(ctx context.Context, text string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.sendErr != nil {
		return 0, f.sendErr
	}
	f.nextID++
	f.sent = append(f.sent, text)
	return f.nextID, nil
}

func (f *fakeNotifier) Pin(ctx context.Context, messageID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pinErr != nil {
		return f.pinErr
	}
	f.pinned = append(f.pinned, messageID)
	return nil
}

func (f *fakeNotifier) sentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.sent)
}

func (f *fakeNotifier) pinnedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.pinned)
}

func newTestDispatcher(n *fakeNotifier) (*Dispatcher, *Counters) {
	counters := &Counters{}
	d := New(Config{}, n, counters, slog.Default())
	return d, counters
}

func move(delta, steam float64) models.Movement {
	return models.Movement{
		ID:         "m-1",
		SessionID:  "nba-1",
		PrevLine:   45.5,
		CurrLine:   45.5 + delta,
		Delta:      delta,
		SteamIndex: steam,
		DedupHash:  "h-1",
		TickCount:  3,
	}
}

func TestSeverityThreshold(t *testing.T) {
	d, _ := newTestDispatcher(&fakeNotifier{})

	assert.Equal(t, models.SeverityWarning, d.Severity(move(0.5, 0)))
	assert.Equal(t, models.SeverityWarning, d.Severity(move(-0.99, 0)))
	assert.Equal(t, models.SeverityCritical, d.Severity(move(1.0, 0)))
	assert.Equal(t, models.SeverityCritical, d.Severity(move(-1.5, 0)))
}

func TestShouldPin(t *testing.T) {
	d, _ := newTestDispatcher(&fakeNotifier{})

	assert.False(t, d.ShouldPin(move(0.5, 1.0)))
	assert.True(t, d.ShouldPin(move(1.0, 0)), "delta gate")
	assert.True(t, d.ShouldPin(move(-1.2, 0)))
	assert.True(t, d.ShouldPin(move(0.5, 2.5)), "steam gate")
	assert.False(t, d.ShouldPin(move(0.5, 2.0)), "steam gate is strict")
}

func TestDispatchDeliversAndPins(t *testing.T) {
	n := &fakeNotifier{}
	d, counters := newTestDispatcher(n)

	alert := d.Dispatch(context.Background(), move(1.5, 3.0), true)
	require.NotNil(t, alert)
	assert.Equal(t, models.SeverityCritical, alert.Severity)

	d.Wait()

	assert.Equal(t, 1, n.sentCount())
	assert.Equal(t, 1, n.pinnedCount())
	assert.True(t, alert.Delivered)
	assert.True(t, alert.Pinned)
	assert.Equal(t, int64(1), counters.AlertsSent.Load())
	assert.Equal(t, int64(1), counters.AlertsPinned.Load())
}

func TestDuplicateMovementIsSuppressed(t *testing.T) {
	n := &fakeNotifier{}
	d, counters := newTestDispatcher(n)

	alert := d.Dispatch(context.Background(), move(1.5, 3.0), false)
	d.Wait()

	assert.Nil(t, alert)
	assert.Equal(t, 0, n.sentCount())
	assert.Equal(t, int64(0), counters.AlertsSent.Load())
}

func TestWarningBelowPinGateIsNotPinned(t *testing.T) {
	n := &fakeNotifier{}
	d, counters := newTestDispatcher(n)

	d.Dispatch(context.Background(), move(0.6, 0.3), true)
	d.Wait()

	assert.Equal(t, 1, n.sentCount())
	assert.Equal(t, 0, n.pinnedCount())
	assert.Equal(t, int64(0), counters.AlertsPinned.Load())
}

func TestDeliveryFailureCountsButDoesNotPin(t *testing.T) {
	n := &fakeNotifier{sendErr: errors.New("channel down")}
	d, counters := newTestDispatcher(n)

	alert := d.Dispatch(context.Background(), move(1.5, 3.0), true)
	require.NotNil(t, alert)
	d.Wait()

	assert.False(t, alert.Delivered)
	assert.Equal(t, 0, n.pinnedCount(), "no pin without a message id")
	assert.Equal(t, int64(1), counters.Errors.Load())
	assert.Equal(t, int64(0), counters.AlertsSent.Load())
}

func TestPinFailureNeverFailsTheAlert(t *testing.T) {
	n := &fakeNotifier{pinErr: errors.New("not enough rights")}
	d, counters := newTestDispatcher(n)

	alert := d.Dispatch(context.Background(), move(2.0, 0), true)
	require.NotNil(t, alert)
	d.Wait()

	assert.True(t, alert.Delivered)
	assert.False(t, alert.Pinned)
	assert.Equal(t, int64(1), counters.AlertsSent.Load())
	assert.Equal(t, int64(1), counters.Errors.Load())
}

func TestDispatchNeverBlocksCaller(t *testing.T) {
	slow := &slowNotifier{release: make(chan struct{})}
	counters := &Counters{}
	d := New(Config{SendTimeout: time.Minute}, slow, counters, slog.Default())

	done := make(chan struct{})
	go func() {
		d.Dispatch(context.Background(), move(1.5, 0), true)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Dispatch blocked on a slow delivery")
	}

	close(slow.release)
	d.Wait()
}

type slowNotifier struct {
	release chan struct{}
}

func (s *slowNotifier) Send(ctx context.Context, text string) (int64, error) {
	select {
	case <-s.release:
	case <-ctx.Done():
	}
	return 1, nil
}

func (s *slowNotifier) Pin(ctx context.Context, messageID int64) error { return nil }
