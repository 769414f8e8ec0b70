// Package memory implements the StoragePort in process memory, for
// tests and DB-less runs.
package memory

import (
	"context"
	"sort"
	"sync"

	"linepulse/internal/application/ports"
	"linepulse/internal/domain/models"
)

// Adapter is an in-memory movement store with the same dedup semantics
// as the PostgreSQL adapter
type Adapter struct {
	mu        sync.RWMutex
	movements []models.Movement
	byHash    map[string]struct{}
}

var _ ports.StoragePort = (*Adapter)(nil)

// New creates an empty in-memory store
func New() *Adapter {
	return &Adapter{
		byHash: make(map[string]struct{}),
	}
}

// InsertMovement appends a movement unless its dedup hash already exists
func (a *Adapter) InsertMovement(ctx context.Context, m models.Movement) (bool, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.byHash[m.DedupHash]; exists {
		return false, nil
	}
	a.byHash[m.DedupHash] = struct{}{}
	a.movements = append(a.movements, m)
	return true, nil
}

// RecentMovements returns movements newest first
func (a *Adapter) RecentMovements(ctx context.Context, limit int) ([]models.Movement, error) {
	return a.sorted(limit, func(x, y models.Movement) bool {
		return x.CreatedAt.After(y.CreatedAt)
	}), nil
}

// TopMovements returns movements by steam index descending
func (a *Adapter) TopMovements(ctx context.Context, limit int) ([]models.Movement, error) {
	return a.sorted(limit, func(x, y models.Movement) bool {
		return x.SteamIndex > y.SteamIndex
	}), nil
}

func (a *Adapter) sorted(limit int, less func(x, y models.Movement) bool) []models.Movement {
	if limit <= 0 {
		limit = 50
	}

	a.mu.RLock()
	out := make([]models.Movement, len(a.movements))
	copy(out, a.movements)
	a.mu.RUnlock()

	sort.SliceStable(out, func(i, j int) bool { return less(out[i], out[j]) })
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Close is a no-op for the in-memory store
func (a *Adapter) Close() error {
	return nil
}
