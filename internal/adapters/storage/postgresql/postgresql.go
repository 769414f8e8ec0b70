package postgresql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"linepulse/internal/application/ports"
	"linepulse/internal/config"
	"linepulse/internal/domain/models"
)

// Adapter implements the StoragePort interface for PostgreSQL
type Adapter struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS movements (
	id           UUID PRIMARY KEY,
	session_id   TEXT NOT NULL,
	quote_ts     BIGINT NOT NULL,
	prev_line    DOUBLE PRECISION NOT NULL,
	curr_line    DOUBLE PRECISION NOT NULL,
	delta        DOUBLE PRECISION NOT NULL,
	over_prev    DOUBLE PRECISION,
	over_curr    DOUBLE PRECISION,
	over_pct     DOUBLE PRECISION,
	under_prev   DOUBLE PRECISION,
	under_curr   DOUBLE PRECISION,
	under_pct    DOUBLE PRECISION,
	steam_index  DOUBLE PRECISION NOT NULL,
	opening_line DOUBLE PRECISION,
	tick_count   INTEGER NOT NULL,
	providers    TEXT[] NOT NULL DEFAULT '{}',
	dedup_hash   TEXT NOT NULL UNIQUE,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS movements_created_at_idx ON movements (created_at DESC);
CREATE INDEX IF NOT EXISTS movements_steam_idx ON movements (steam_index DESC);
`

// New creates a new PostgreSQL adapter
func New(cfg config.DatabaseConfig) (ports.StoragePort, error) {
	dsn := fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Password, cfg.Database, cfg.SSLMode)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("failed to ensure schema: %w", err)
	}

	return &Adapter{
		db: db,
	}, nil
}

// InsertMovement stores a movement, ignoring dedup-hash collisions.
// The returned bool reports whether a new row was written.
func (a *Adapter) InsertMovement(ctx context.Context, m models.Movement) (bool, error) {
	query := `INSERT INTO movements
			  (id, session_id, quote_ts, prev_line, curr_line, delta,
			   over_prev, over_curr, over_pct, under_prev, under_curr, under_pct,
			   steam_index, opening_line, tick_count, providers, dedup_hash, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)
			  ON CONFLICT (dedup_hash) DO NOTHING`

	res, err := a.db.ExecContext(ctx, query,
		m.ID, m.SessionID, m.QuoteTS, m.PrevLine, m.CurrLine, m.Delta,
		m.OverPrev, m.OverCurr, m.OverPct, m.UnderPrev, m.UnderCurr, m.UnderPct,
		m.SteamIndex, m.OpeningLine, m.TickCount, pq.Array(m.Providers), m.DedupHash, m.CreatedAt)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// RecentMovements retrieves stored movements ordered by recency
func (a *Adapter) RecentMovements(ctx context.Context, limit int) ([]models.Movement, error) {
	return a.query(ctx, `ORDER BY created_at DESC`, limit)
}

// TopMovements retrieves stored movements ordered by steam index descending
func (a *Adapter) TopMovements(ctx context.Context, limit int) ([]models.Movement, error) {
	return a.query(ctx, `ORDER BY steam_index DESC`, limit)
}

func (a *Adapter) query(ctx context.Context, order string, limit int) ([]models.Movement, error) {
	if limit <= 0 {
		limit = 50
	}

	query := `SELECT id, session_id, quote_ts, prev_line, curr_line, delta,
			  over_prev, over_curr, over_pct, under_prev, under_curr, under_pct,
			  steam_index, opening_line, tick_count, providers, dedup_hash, created_at
			  FROM movements ` + order + ` LIMIT $1`

	rows, err := a.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Movement
	for rows.Next() {
		var m models.Movement
		var providers pq.StringArray
		err := rows.Scan(&m.ID, &m.SessionID, &m.QuoteTS, &m.PrevLine, &m.CurrLine, &m.Delta,
			&m.OverPrev, &m.OverCurr, &m.OverPct, &m.UnderPrev, &m.UnderCurr, &m.UnderPct,
			&m.SteamIndex, &m.OpeningLine, &m.TickCount, &providers, &m.DedupHash, &m.CreatedAt)
		if err != nil {
			return nil, err
		}
		m.Providers = providers
		out = append(out, m)
	}

	return out, rows.Err()
}

// Close closes the storage connection
func (a *Adapter) Close() error {
	return a.db.Close()
}
