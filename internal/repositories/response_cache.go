package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/labeltree/internal/metrics"
)

// ResponseCacheRepository stores raw response bodies keyed by request key.
//
// A row older than the TTL is a miss; expired rows are deleted on the next [ResponseCacheRepository.Put].
type ResponseCacheRepository struct {
	db      *sql.DB
	ttl     time.Duration
	now     func() time.Time
	metrics *metrics.Metrics
}

// NewResponseCacheRepository creates a repository with the given TTL.
func NewResponseCacheRepository(db *sql.DB, ttl time.Duration, m *metrics.Metrics) *ResponseCacheRepository {
	return &ResponseCacheRepository{db: db, ttl: ttl, now: time.Now, metrics: m}
}

// SetClock replaces time.Now.
func (r *ResponseCacheRepository) SetClock(now func() time.Time) {
	r.now = now
}

// Get returns the body stored under key if it is still fresh.
func (r *ResponseCacheRepository) Get(key string) ([]byte, bool, error) {
	var body []byte
	var createdAt int64

	err := r.db.QueryRow("SELECT body, created_at FROM response_cache WHERE key = ?", key).Scan(&body, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		r.record(false)
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("failed to read cached response: %w", err)
	}

	if r.now().Sub(time.UnixMilli(createdAt)) > r.ttl {
		r.record(false)
		return nil, false, nil
	}

	r.record(true)
	return body, true, nil
}

// Put upserts body under key and deletes every expired row.
func (r *ResponseCacheRepository) Put(key, resource string, body []byte) error {
	now := r.now()
	cutoff := now.Add(-r.ttl).UnixMilli()

	return inTx(r.db, func(tx *sql.Tx) error {
		if _, err := tx.Exec("DELETE FROM response_cache WHERE created_at < ?", cutoff); err != nil {
			return fmt.Errorf("failed to sweep cached responses: %w", err)
		}

		_, err := tx.Exec(`
			INSERT INTO response_cache (key, resource, body, created_at)
			VALUES (?, ?, ?, ?)
			ON CONFLICT(key) DO UPDATE SET resource = excluded.resource, body = excluded.body, created_at = excluded.created_at
		`, key, resource, body, now.UnixMilli())
		if err != nil {
			return fmt.Errorf("failed to store cached response: %w", err)
		}
		return nil
	})
}

// Count returns the number of stored rows, expired ones included.
func (r *ResponseCacheRepository) Count() (int, error) {
	var n int
	if err := r.db.QueryRow("SELECT COUNT(*) FROM response_cache").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count cached responses: %w", err)
	}
	return n, nil
}

// Purge deletes every row.
func (r *ResponseCacheRepository) Purge() error {
	if _, err := r.db.Exec("DELETE FROM response_cache"); err != nil {
		return fmt.Errorf("failed to purge cached responses: %w", err)
	}
	return nil
}

func (r *ResponseCacheRepository) record(hit bool) {
	if r.metrics == nil {
		return
	}
	if hit {
		r.metrics.CacheHits.WithLabelValues("sqlite").Inc()
	} else {
		r.metrics.CacheMisses.WithLabelValues("sqlite").Inc()
	}
}
