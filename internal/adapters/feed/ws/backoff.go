package ws

import (
	"math/rand"
	"time"
)

// BackoffConfig describes the reconnect delay schedule
type BackoffConfig struct {
	InitialDelay time.Duration
	MaxDelay     time.Duration
	Multiplier   float64
	Jitter       bool
	// MaxRetries caps reconnect attempts; zero means retry forever
	MaxRetries int
}

// Backoff produces capped exponential delays:
// delay(0) = initial, delay(n+1) = min(max, delay(n)*multiplier).
type Backoff struct {
	cfg BackoffConfig
}

// NewBackoff creates a backoff schedule
func NewBackoff(cfg BackoffConfig) *Backoff {
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = time.Second
	}
	if cfg.MaxDelay < cfg.InitialDelay {
		cfg.MaxDelay = cfg.InitialDelay
	}
	if cfg.Multiplier < 1 {
		cfg.Multiplier = 2
	}
	return &Backoff{cfg: cfg}
}

// Delay returns the delay before attempt n (zero-based)
func (b *Backoff) Delay(attempt int) time.Duration {
	d := float64(b.cfg.InitialDelay)
	maxD := float64(b.cfg.MaxDelay)
	for i := 0; i < attempt; i++ {
		d *= b.cfg.Multiplier
		if d >= maxD {
			d = maxD
			break
		}
	}

	delay := time.Duration(d)
	if b.cfg.Jitter {
		// Up to 25% shaved off so reconnect herds spread out
		delay -= time.Duration(rand.Int63n(int64(delay)/4 + 1))
	}
	return delay
}

// Exhausted reports whether attempt exceeds the retry cap
func (b *Backoff) Exhausted(attempt int) bool {
	return b.cfg.MaxRetries > 0 && attempt >= b.cfg.MaxRetries
}
