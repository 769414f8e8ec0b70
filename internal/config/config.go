package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Config represents the application configuration
type Config struct {
	Feed      FeedConfig
	Detector  DetectorConfig
	Lifecycle LifecycleConfig
	Alert     AlertConfig
	Database  DatabaseConfig
	Cache     CacheConfig
	Server    ServerConfig
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
}

// FeedConfig represents the websocket feed and reconnection settings
type FeedConfig struct {
	URL          string   `envconfig:"FEED_URL"`
	AuthURL      string   `envconfig:"FEED_AUTH_URL"`
	Channels     []string `envconfig:"FEED_CHANNELS" default:"demo-1"`
	Subprotocols []string `envconfig:"FEED_SUBPROTOCOLS" default:"linefeed.v2,linefeed.v1"`

	PollInterval      time.Duration `envconfig:"FEED_POLL_INTERVAL" default:"2s"`
	HeartbeatInterval time.Duration `envconfig:"FEED_HEARTBEAT_INTERVAL" default:"15s"`
	CallTimeout       time.Duration `envconfig:"FEED_CALL_TIMEOUT" default:"8s"`

	InitialDelay time.Duration `envconfig:"FEED_BACKOFF_INITIAL" default:"1s"`
	MaxDelay     time.Duration `envconfig:"FEED_BACKOFF_MAX" default:"60s"`
	Multiplier   float64       `envconfig:"FEED_BACKOFF_MULTIPLIER" default:"2"`
	Jitter       bool          `envconfig:"FEED_BACKOFF_JITTER" default:"true"`
	MaxRetries   int           `envconfig:"FEED_MAX_RETRIES" default:"0"`

	RateLimitCooldown time.Duration `envconfig:"FEED_RATELIMIT_COOLDOWN" default:"2m"`
	BlockCooldown     time.Duration `envconfig:"FEED_BLOCK_COOLDOWN" default:"15m"`

	RenewRetryDelay time.Duration `envconfig:"FEED_RENEW_RETRY_DELAY" default:"5s"`
	RenewRetryMax   int           `envconfig:"FEED_RENEW_RETRY_MAX" default:"3"`
}

// DetectorConfig represents movement detection thresholds
type DetectorConfig struct {
	MovementThreshold float64       `envconfig:"MOVEMENT_THRESHOLD" default:"0.5"`
	IdleGap           time.Duration `envconfig:"DETECTOR_IDLE_GAP" default:"5m"`
}

// LifecycleConfig represents tension scoring and sweep settings.
// The blend and phase weights are empirical constants carried as
// configuration, not hard-coded invariants.
type LifecycleConfig struct {
	BaseWeight     float64 `envconfig:"TENSION_BASE_WEIGHT" default:"0.6"`
	AdvancedWeight float64 `envconfig:"TENSION_ADVANCED_WEIGHT" default:"0.4"`
	EvictThreshold float64 `envconfig:"TENSION_EVICT_THRESHOLD" default:"0.7"`

	InitWeight   float64 `envconfig:"PHASE_WEIGHT_INIT" default:"1.0"`
	AuthWeight   float64 `envconfig:"PHASE_WEIGHT_AUTH" default:"1.5"`
	ActiveWeight float64 `envconfig:"PHASE_WEIGHT_ACTIVE" default:"1.0"`
	RenewWeight  float64 `envconfig:"PHASE_WEIGHT_RENEW" default:"2.0"`
	EvictWeight  float64 `envconfig:"PHASE_WEIGHT_EVICT" default:"1.0"`

	MaxSessionAge time.Duration `envconfig:"SESSION_MAX_AGE" default:"24h"`
	SweepInterval time.Duration `envconfig:"SESSION_SWEEP_INTERVAL" default:"1h"`
}

// AlertConfig represents the alert channel and escalation thresholds
type AlertConfig struct {
	APIURL   string `envconfig:"ALERT_API_URL" default:"https://api.telegram.org"`
	BotToken string `envconfig:"ALERT_BOT_TOKEN"`
	ChatID   int64  `envconfig:"ALERT_CHAT_ID"`
	ThreadID int64  `envconfig:"ALERT_THREAD_ID"`

	CriticalDelta     float64 `envconfig:"ALERT_CRITICAL_DELTA" default:"1.0"`
	PinDeltaThreshold float64 `envconfig:"ALERT_PIN_DELTA" default:"1.0"`
	PinSteamThreshold float64 `envconfig:"ALERT_PIN_STEAM" default:"2.0"`
}

// DatabaseConfig represents PostgreSQL configuration
type DatabaseConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     int    `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" default:"linepulse"`
	Password string `envconfig:"DB_PASSWORD"`
	Database string `envconfig:"DB_NAME" default:"linepulse"`
	SSLMode  string `envconfig:"DB_SSLMODE" default:"disable"`
	Enabled  bool   `envconfig:"DB_ENABLED" default:"false"`
}

// CacheConfig represents Redis configuration
type CacheConfig struct {
	Host     string `envconfig:"REDIS_HOST" default:"localhost"`
	Port     int    `envconfig:"REDIS_PORT" default:"6379"`
	Password string `envconfig:"REDIS_PASSWORD"`
	Database int    `envconfig:"REDIS_DB" default:"0"`
	Enabled  bool   `envconfig:"REDIS_ENABLED" default:"false"`
}

// ServerConfig represents the HTTP API configuration
type ServerConfig struct {
	Port int `envconfig:"SERVER_PORT" default:"8080"`
}

// Load reads configuration from the environment, consulting a .env file
// when one is present. A missing .env is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Detector.MovementThreshold <= 0 {
		return fmt.Errorf("movement threshold must be positive, got %g", c.Detector.MovementThreshold)
	}
	if c.Feed.Multiplier < 1 {
		return fmt.Errorf("backoff multiplier must be >= 1, got %g", c.Feed.Multiplier)
	}
	if c.Feed.InitialDelay <= 0 || c.Feed.MaxDelay < c.Feed.InitialDelay {
		return fmt.Errorf("invalid backoff window: initial=%s max=%s", c.Feed.InitialDelay, c.Feed.MaxDelay)
	}
	if len(c.Feed.Channels) == 0 {
		return fmt.Errorf("no feed channels configured")
	}
	return nil
}
