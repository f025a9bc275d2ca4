package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"pricedeck/internal/store"
)

// Lookup returns the freshest unexpired entry for cacheKey, or nil, nil
// on a miss. Expired rows are filtered here rather than evicted; the
// table only grows and nothing depends on cleanup running.
func (s *Store) Lookup(ctx context.Context, cacheKey string) (*store.CacheEntry, error) {
	query := `
		SELECT cache_key, summary, calendar, meta, expires_at, created_at
		FROM pricing_cache
		WHERE cache_key = $1 AND expires_at > NOW()
		ORDER BY created_at DESC
		LIMIT 1
	`

	var (
		e        store.CacheEntry
		summary  []byte
		calendar []byte
		meta     []byte
	)
	err := s.db.QueryRowContext(ctx, query, cacheKey).Scan(
		&e.CacheKey, &summary, &calendar, &meta, &e.ExpiresAt, &e.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}

	e.Summary = json.RawMessage(summary)
	e.Calendar = json.RawMessage(calendar)
	e.Meta = json.RawMessage(meta)

	return &e, nil
}

// Store appends a cache entry valid for ttl. Existing entries for the
// same key are left in place; Lookup prefers the newest.
func (s *Store) Store(ctx context.Context, cacheKey string, summary, calendar, meta json.RawMessage, ttl time.Duration) error {
	if len(meta) == 0 {
		meta = json.RawMessage(`{}`)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO pricing_cache (cache_key, summary, calendar, meta, expires_at)
		VALUES ($1, $2, $3, $4, NOW() + ($5 * INTERVAL '1 second'))
	`, cacheKey, []byte(summary), []byte(calendar), []byte(meta), ttl.Seconds())
	return err
}
