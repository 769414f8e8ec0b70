package usecases

import (
	"context"
	"log/slog"
	"runtime"
	"time"

	"linepulse/internal/application/ports"
	"linepulse/internal/concurrency"
	"linepulse/internal/detector"
	"linepulse/internal/dispatch"
	"linepulse/internal/domain/models"
	"linepulse/internal/lifecycle"
	"linepulse/internal/metrics"
)

// PipelineUseCase owns the session registry and runs one pipeline per
// configured feed channel: transport events drive the lifecycle
// tracker, quotes drive the detector, detected movements fan in to the
// shared store and dispatcher.
type PipelineUseCase struct {
	feeds      []ports.FeedPort
	detector   *detector.Detector
	tracker    *lifecycle.Tracker
	store      ports.StoragePort
	cache      ports.CachePort
	dispatcher *dispatch.Dispatcher
	counters   *dispatch.Counters
	logger     *slog.Logger

	maxSessionAge time.Duration
	sweepInterval time.Duration
}

// NewPipelineUseCase creates the coordinator. cache may be nil when no
// cache is configured.
func NewPipelineUseCase(
	feeds []ports.FeedPort,
	det *detector.Detector,
	tracker *lifecycle.Tracker,
	store ports.StoragePort,
	cache ports.CachePort,
	dispatcher *dispatch.Dispatcher,
	counters *dispatch.Counters,
	maxSessionAge, sweepInterval time.Duration,
	logger *slog.Logger,
) *PipelineUseCase {
	return &PipelineUseCase{
		feeds:         feeds,
		detector:      det,
		tracker:       tracker,
		store:         store,
		cache:         cache,
		dispatcher:    dispatcher,
		counters:      counters,
		logger:        logger,
		maxSessionAge: maxSessionAge,
		sweepInterval: sweepInterval,
	}
}

// Start runs all session pipelines until the context ends. It returns
// after every feed has shut down and in-flight alerts have settled.
func (uc *PipelineUseCase) Start(ctx context.Context) error {
	movementChans := make([]<-chan models.Movement, 0, len(uc.feeds))

	for i, feed := range uc.feeds {
		quotes, events, err := feed.Start(ctx)
		if err != nil {
			for _, started := range uc.feeds[:i] {
				if serr := started.Stop(); serr != nil {
					uc.logger.Warn("feed stop failed", "session_id", started.SessionID(), "error", serr)
				}
			}
			return err
		}

		out := make(chan models.Movement, 64)
		movementChans = append(movementChans, out)

		go uc.consumeEvents(ctx, feed.SessionID(), quotes, events)
		go uc.consumeQuotes(ctx, feed.SessionID(), quotes, out)
	}

	if uc.sweepInterval > 0 {
		go uc.sweepLoop(ctx)
	}

	for m := range concurrency.Merge(ctx, movementChans) {
		uc.handleMovement(ctx, m)
	}

	uc.dispatcher.Wait()
	return nil
}

// consumeQuotes runs one session's detection loop. A failed cycle is
// isolated: it counts an error and moves on.
func (uc *PipelineUseCase) consumeQuotes(ctx context.Context, sessionID string, quotes <-chan models.Quote, out chan<- models.Movement) {
	defer close(out)

	for q := range quotes {
		uc.counters.QuotesProcessed.Add(1)
		metrics.QuotesProcessed.WithLabelValues(sessionID).Inc()

		if uc.cache != nil {
			if err := uc.cache.SetLatestQuote(ctx, q); err != nil {
				uc.counters.Errors.Add(1)
				metrics.PipelineErrors.WithLabelValues("cache").Inc()
				uc.logger.Warn("latest-quote cache write failed", "session_id", sessionID, "error", err)
			}
		}

		m := uc.detector.Process(q)
		if m == nil {
			continue
		}

		select {
		case out <- *m:
		case <-ctx.Done():
			return
		}
	}
}

// consumeEvents maps one session's transport lifecycle events onto
// tracker phase transitions
func (uc *PipelineUseCase) consumeEvents(ctx context.Context, sessionID string, quotes <-chan models.Quote, events <-chan models.SessionEvent) {
	var eventCount, errorCount float64

	for ev := range events {
		eventCount++

		var (
			phase      models.Phase
			transition bool
		)

		switch ev.Kind {
		case models.EventConnected:
			phase, transition = models.PhaseInit, true
		case models.EventAuthenticated:
			phase, transition = models.PhaseAuth, true
		case models.EventHeartbeat:
			// Only the first heartbeat of a connection activates
			if s, ok := uc.tracker.Get(sessionID); !ok || s.Phase != models.PhaseActive {
				phase, transition = models.PhaseActive, true
			}
		case models.EventRenewStarted:
			phase, transition = models.PhaseRenew, true
		case models.EventRenewed:
			phase, transition = models.PhaseActive, true
		case models.EventClosed:
			phase, transition = models.PhaseEvict, true
		case models.EventReconnectScheduled:
			metrics.Reconnects.WithLabelValues(sessionID).Inc()
		case models.EventError:
			errorCount++
			uc.counters.Errors.Add(1)
			metrics.PipelineErrors.WithLabelValues("transport").Inc()
			uc.logger.Warn("transport error", "session_id", sessionID, "error", ev.Err)
		}

		if !transition {
			continue
		}

		var mem runtime.MemStats
		runtime.ReadMemStats(&mem)

		tm := models.TensionMetrics{
			LatencyMS:   float64(ev.Latency.Milliseconds()),
			ErrorRate:   errorCount / eventCount,
			QueueDepth:  float64(len(quotes)),
			MemPressure: float64(mem.HeapAlloc),
		}

		session := uc.tracker.Transition(sessionID, phase, tm)
		metrics.TensionScore.WithLabelValues(sessionID, string(phase)).Set(session.Tension.Score)

		if uc.cache != nil {
			if err := uc.cache.SetSessionSnapshot(ctx, session); err != nil {
				uc.logger.Warn("session snapshot cache write failed", "session_id", sessionID, "error", err)
			}
		}
	}
}

// handleMovement persists one movement and hands it to the dispatcher.
// The dedup verdict from storage gates alerting.
func (uc *PipelineUseCase) handleMovement(ctx context.Context, m models.Movement) {
	inserted, err := uc.store.InsertMovement(ctx, m)
	if err != nil {
		uc.counters.Errors.Add(1)
		metrics.PipelineErrors.WithLabelValues("storage").Inc()
		uc.logger.Error("movement insert failed", "session_id", m.SessionID, "error", err)
		return
	}

	if inserted {
		uc.counters.Inserts.Add(1)
		metrics.MovementsInserted.Inc()
		uc.logger.Info("movement stored",
			"session_id", m.SessionID,
			"delta", m.Delta,
			"steam_index", m.SteamIndex)
	}

	uc.dispatcher.Dispatch(ctx, m, inserted)
}

func (uc *PipelineUseCase) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(uc.sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			for _, id := range uc.tracker.Sweep(uc.maxSessionAge) {
				uc.detector.Forget(id)
			}
		}
	}
}

// Sessions returns the current lifecycle snapshots
func (uc *PipelineUseCase) Sessions() []models.Session {
	return uc.tracker.Sessions()
}

// Counters returns the running totals
func (uc *PipelineUseCase) Counters() dispatch.Snapshot {
	return uc.counters.Snapshot()
}
