// Package ws implements the websocket feed transport: one logical,
// reconnecting connection per session with heartbeat supervision and
// proactive credential renewal.
package ws

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"linepulse/internal/application/ports"
	"linepulse/internal/domain/feederr"
	"linepulse/internal/domain/models"
)

// State is the transport connection state
type State string

const (
	StateDisconnected   State = "disconnected"
	StateConnecting     State = "connecting"
	StateAuthenticating State = "authenticating"
	StateOpen           State = "open"
	StateRenewing       State = "renewing"
	StateClosing        State = "closing"
)

// opcode values on the wire envelope
const (
	opQuote = 0
	opAuth  = 2
	// opRenew is the reserved server signal meaning "renew credentials now"
	opRenew = 9
)

type envelope struct {
	Op      int             `json:"op"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

type authFrame struct {
	Op    int    `json:"op"`
	Token string `json:"token"`
}

// Config holds per-session transport settings
type Config struct {
	SessionID    string
	URL          string
	Subprotocols []string

	HeartbeatInterval time.Duration
	CallTimeout       time.Duration

	Backoff BackoffConfig

	RateLimitCooldown time.Duration
	BlockCooldown     time.Duration

	RenewRetryDelay time.Duration
	RenewRetryMax   int
}

// Transport is a FeedPort over a reconnecting websocket
type Transport struct {
	cfg        Config
	creds      ports.CredentialPort
	normalizer ports.TickNormalizer
	logger     *slog.Logger
	dialer     *websocket.Dialer
	backoff    *Backoff

	quotes chan models.Quote
	events chan models.SessionEvent

	mu     sync.Mutex
	state  State
	cancel context.CancelFunc
}

var _ ports.FeedPort = (*Transport)(nil)

// New creates a transport for one feed channel
func New(cfg Config, creds ports.CredentialPort, normalizer ports.TickNormalizer, logger *slog.Logger) *Transport {
	if cfg.HeartbeatInterval <= 0 {
		cfg.HeartbeatInterval = 15 * time.Second
	}
	if cfg.CallTimeout <= 0 {
		cfg.CallTimeout = 8 * time.Second
	}
	if cfg.RenewRetryDelay <= 0 {
		cfg.RenewRetryDelay = 5 * time.Second
	}
	if cfg.RenewRetryMax <= 0 {
		cfg.RenewRetryMax = 3
	}

	dialer := &websocket.Dialer{
		Subprotocols:     cfg.Subprotocols,
		HandshakeTimeout: cfg.CallTimeout,
	}

	return &Transport{
		cfg:        cfg,
		creds:      creds,
		normalizer: normalizer,
		logger:     logger.With("session_id", cfg.SessionID),
		dialer:     dialer,
		backoff:    NewBackoff(cfg.Backoff),
		quotes:     make(chan models.Quote, 256),
		events:     make(chan models.SessionEvent, 32),
		state:      StateDisconnected,
	}
}

// SessionID returns the feed channel this transport serves
func (t *Transport) SessionID() string { return t.cfg.SessionID }

// State returns the current connection state
func (t *Transport) State() State {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state
}

func (t *Transport) setState(s State) {
	t.mu.Lock()
	t.state = s
	t.mu.Unlock()
}

// Start begins the connect/read/reconnect loop
func (t *Transport) Start(ctx context.Context) (<-chan models.Quote, <-chan models.SessionEvent, error) {
	runCtx, cancel := context.WithCancel(ctx)

	t.mu.Lock()
	if t.cancel != nil {
		t.mu.Unlock()
		cancel()
		return nil, nil, fmt.Errorf("transport for %s already started", t.cfg.SessionID)
	}
	t.cancel = cancel
	t.mu.Unlock()

	go t.run(runCtx)
	return t.quotes, t.events, nil
}

// Stop tears the transport down. All timers and in-flight backoff waits
// are cancelled through the run context; no reconnect survives Stop.
func (t *Transport) Stop() error {
	t.setState(StateClosing)
	t.mu.Lock()
	cancel := t.cancel
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return nil
}

func (t *Transport) run(ctx context.Context) {
	defer close(t.quotes)
	defer close(t.events)
	defer t.setState(StateDisconnected)

	attempt := 0
	for {
		if ctx.Err() != nil {
			return
		}

		t.setState(StateConnecting)
		opened, err := t.connectOnce(ctx)
		if ctx.Err() != nil {
			t.emit(ctx, models.SessionEvent{Kind: models.EventClosed})
			return
		}
		if opened {
			// A session that reached OPEN earns a fresh backoff schedule
			attempt = 0
		}

		t.emit(ctx, models.SessionEvent{Kind: models.EventClosed, Err: err})

		if feederr.IsFatalAuth(err) {
			t.logger.Error("credentials rejected, giving up on session", "error", err)
			return
		}
		if t.backoff.Exhausted(attempt) {
			t.logger.Error("retry budget exhausted", "attempts", attempt)
			return
		}

		delay := t.cooldownFor(err, t.backoff.Delay(attempt))
		attempt++

		t.emit(ctx, models.SessionEvent{Kind: models.EventReconnectScheduled, Delay: delay, Err: err})
		t.logger.Warn("reconnect scheduled", "delay", delay, "attempt", attempt, "error", err)

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return
		}
	}
}

// cooldownFor stretches the standard backoff delay for rate-limit and
// block responses
func (t *Transport) cooldownFor(err error, delay time.Duration) time.Duration {
	kind, ok := feederr.AuthKindOf(err)
	if !ok {
		return delay
	}
	switch kind {
	case feederr.AuthRateLimited:
		if t.cfg.RateLimitCooldown > delay {
			return t.cfg.RateLimitCooldown
		}
	case feederr.AuthBlocked:
		if t.cfg.BlockCooldown > delay {
			return t.cfg.BlockCooldown
		}
	}
	return delay
}

// connectOnce runs one full connection lifetime: token fetch, dial,
// read/heartbeat/renewal supervision. It returns whether the session
// reached OPEN and the error that ended it.
func (t *Transport) connectOnce(ctx context.Context) (bool, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, t.cfg.CallTimeout)
	token, err := t.creds.Fetch(fetchCtx, t.cfg.SessionID)
	cancel()
	if err != nil {
		t.emit(ctx, models.SessionEvent{Kind: models.EventError, Err: err})
		return false, err
	}

	t.setState(StateAuthenticating)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+token.Value)

	conn, resp, err := t.dialer.DialContext(ctx, t.cfg.URL, header)
	if err != nil {
		if resp != nil {
			if cerr := feederr.ClassifyStatus(resp.StatusCode); cerr != nil {
				err = cerr
			}
		} else {
			err = &feederr.NetworkError{Op: "dial", Err: err}
		}
		t.emit(ctx, models.SessionEvent{Kind: models.EventError, Err: err})
		return false, err
	}
	defer conn.Close()

	t.logger.Info("feed connected", "subprotocol", conn.Subprotocol())
	t.emit(ctx, models.SessionEvent{Kind: models.EventConnected})
	t.emit(ctx, models.SessionEvent{Kind: models.EventAuthenticated})
	t.setState(StateOpen)

	return true, t.supervise(ctx, conn, token)
}

// supervise owns a live connection until it fails or the context ends
func (t *Transport) supervise(ctx context.Context, conn *websocket.Conn, token ports.Token) error {
	connCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	var (
		writeMu  sync.Mutex
		errOnce  sync.Once
		errCh    = make(chan error, 1)
		renewCh  = make(chan struct{}, 1)
		lastPong atomicTime
		lastPing atomicTime
	)
	fail := func(err error) {
		errOnce.Do(func() { errCh <- err })
		cancel()
		conn.Close()
	}

	lastPong.Store(time.Now())
	conn.SetPongHandler(func(string) error {
		now := time.Now()
		lastPong.Store(now)
		t.emit(connCtx, models.SessionEvent{Kind: models.EventHeartbeat, Latency: now.Sub(lastPing.Load())})
		return nil
	})

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		t.readLoop(connCtx, conn, renewCh, fail)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		t.heartbeatLoop(connCtx, conn, &writeMu, &lastPing, &lastPong, fail)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		t.renewalLoop(connCtx, conn, &writeMu, token, renewCh, fail)
	}()

	select {
	case err := <-errCh:
		cancel()
		conn.Close()
		wg.Wait()
		return err
	case <-ctx.Done():
		// Intentional close: send a close frame, best effort
		writeMu.Lock()
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, "shutdown"),
			time.Now().Add(time.Second))
		writeMu.Unlock()
		conn.Close()
		wg.Wait()
		return ctx.Err()
	}
}

func (t *Transport) readLoop(ctx context.Context, conn *websocket.Conn, renewCh chan struct{}, fail func(error)) {
	for {
		_, payload, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil {
				fail(&feederr.NetworkError{Op: "read", Err: err})
			}
			return
		}

		var env envelope
		if err := json.Unmarshal(payload, &env); err != nil {
			// One malformed frame never takes the session down
			perr := &feederr.ProtocolError{SessionID: t.cfg.SessionID, Err: err}
			t.logger.Warn("dropping malformed frame", "error", perr)
			continue
		}

		switch env.Op {
		case opRenew:
			select {
			case renewCh <- struct{}{}:
			default:
			}
		case opQuote:
			quote, err := t.normalizer.Normalize(t.cfg.SessionID, env.Payload)
			if err != nil {
				perr := &feederr.ProtocolError{SessionID: t.cfg.SessionID, Err: err}
				t.logger.Warn("dropping unparseable quote", "error", perr)
				continue
			}
			select {
			case t.quotes <- quote:
			case <-ctx.Done():
				return
			}
		default:
			t.logger.Debug("ignoring frame", "op", env.Op)
		}
	}
}

// heartbeatLoop pings at the configured interval and treats a stale
// pong exactly like a transport error
func (t *Transport) heartbeatLoop(ctx context.Context, conn *websocket.Conn, writeMu *sync.Mutex, lastPing, lastPong *atomicTime, fail func(error)) {
	ticker := time.NewTicker(t.cfg.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if time.Since(lastPong.Load()) > 2*t.cfg.HeartbeatInterval {
				fail(&feederr.NetworkError{Op: "heartbeat", Err: errors.New("missed heartbeat")})
				return
			}

			lastPing.Store(time.Now())
			writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(t.cfg.CallTimeout))
			writeMu.Unlock()
			if err != nil {
				fail(&feederr.NetworkError{Op: "ping", Err: err})
				return
			}
		}
	}
}

// renewalLoop re-fetches the token at 80% of its TTL, or immediately on
// the server's renew signal. Renewal failures retry on their own bounded
// schedule; only exhausting that schedule tears the connection down.
func (t *Transport) renewalLoop(ctx context.Context, conn *websocket.Conn, writeMu *sync.Mutex, token ports.Token, renewCh chan struct{}, fail func(error)) {
	ttl := token.TTL
	if ttl <= 0 {
		ttl = time.Hour
	}
	timer := time.NewTimer(ttl * 8 / 10)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
		case <-renewCh:
			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
		}

		t.setState(StateRenewing)
		t.emit(ctx, models.SessionEvent{Kind: models.EventRenewStarted})

		next, err := t.renewOnce(ctx, conn, writeMu)
		if err != nil {
			fail(err)
			return
		}

		t.setState(StateOpen)
		t.emit(ctx, models.SessionEvent{Kind: models.EventRenewed})

		ttl = next.TTL
		if ttl <= 0 {
			ttl = time.Hour
		}
		timer.Reset(ttl * 8 / 10)
	}
}

func (t *Transport) renewOnce(ctx context.Context, conn *websocket.Conn, writeMu *sync.Mutex) (ports.Token, error) {
	var lastErr error
	for i := 0; i < t.cfg.RenewRetryMax; i++ {
		if i > 0 {
			select {
			case <-time.After(t.cfg.RenewRetryDelay):
			case <-ctx.Done():
				return ports.Token{}, ctx.Err()
			}
		}

		fetchCtx, cancel := context.WithTimeout(ctx, t.cfg.CallTimeout)
		token, err := t.creds.Fetch(fetchCtx, t.cfg.SessionID)
		cancel()
		if err != nil {
			if feederr.IsFatalAuth(err) {
				return ports.Token{}, err
			}
			lastErr = err
			t.logger.Warn("token renewal failed", "attempt", i+1, "error", err)
			continue
		}

		frame, _ := json.Marshal(authFrame{Op: opAuth, Token: token.Value})
		writeMu.Lock()
		_ = conn.SetWriteDeadline(time.Now().Add(t.cfg.CallTimeout))
		err = conn.WriteMessage(websocket.TextMessage, frame)
		writeMu.Unlock()
		if err != nil {
			return ports.Token{}, &feederr.NetworkError{Op: "renew-send", Err: err}
		}
		return token, nil
	}
	return ports.Token{}, fmt.Errorf("renewal retries exhausted: %w", lastErr)
}

func (t *Transport) emit(ctx context.Context, ev models.SessionEvent) {
	ev.SessionID = t.cfg.SessionID
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	select {
	case t.events <- ev:
	case <-ctx.Done():
	}
}

// atomicTime is a timestamp cell shared between the pong handler and
// the heartbeat watchdog
type atomicTime struct {
	mu sync.Mutex
	t  time.Time
}

func (a *atomicTime) Store(t time.Time) {
	a.mu.Lock()
	a.t = t
	a.mu.Unlock()
}

func (a *atomicTime) Load() time.Time {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.t
}
