package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"linepulse/internal/application/ports"
	"linepulse/internal/config"
	"linepulse/internal/domain/models"
)

// Adapter implements the CachePort interface for Redis
type Adapter struct {
	client *redis.Client
}

var _ ports.CachePort = (*Adapter)(nil)

// New creates a new Redis adapter
func New(cfg config.CacheConfig) (ports.CachePort, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.Database,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Adapter{
		client: client,
	}, nil
}

// SetLatestQuote stores the most recent quote for a session with a TTL
func (a *Adapter) SetLatestQuote(ctx context.Context, q models.Quote) error {
	key := fmt.Sprintf("latest:%s", q.SessionID)

	data, err := json.Marshal(q)
	if err != nil {
		return err
	}
	return a.client.Set(ctx, key, data, 2*time.Minute).Err()
}

// GetLatestQuote returns the most recent quote for a session, nil when absent
func (a *Adapter) GetLatestQuote(ctx context.Context, sessionID string) (*models.Quote, error) {
	key := fmt.Sprintf("latest:%s", sessionID)

	data, err := a.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}

	var q models.Quote
	if err := json.Unmarshal([]byte(data), &q); err != nil {
		return nil, err
	}
	return &q, nil
}

// SetSessionSnapshot stores the latest lifecycle snapshot for a session
func (a *Adapter) SetSessionSnapshot(ctx context.Context, s models.Session) error {
	key := fmt.Sprintf("session:%s", s.ID)

	data, err := json.Marshal(s)
	if err != nil {
		return err
	}
	return a.client.Set(ctx, key, data, 24*time.Hour).Err()
}

// GetSessionSnapshots returns the stored snapshots for all sessions
func (a *Adapter) GetSessionSnapshots(ctx context.Context) ([]models.Session, error) {
	keys, err := a.client.Keys(ctx, "session:*").Result()
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return []models.Session{}, nil
	}

	values, err := a.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, err
	}

	var sessions []models.Session
	for _, value := range values {
		if value == nil {
			continue
		}
		var s models.Session
		if err := json.Unmarshal([]byte(value.(string)), &s); err != nil {
			continue
		}
		sessions = append(sessions, s)
	}
	return sessions, nil
}

// Close closes the cache connection
func (a *Adapter) Close() error {
	return a.client.Close()
}
