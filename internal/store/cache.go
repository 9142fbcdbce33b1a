package store

import (
	"context"
	"database/sql"
	"encoding/hex"
	"fmt"
	"time"

	"golang.org/x/crypto/sha3"
)

// Digest returns the cache key for a chunk of text.
func Digest(text string) string {
	sum := sha3.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// Verdict looks up a cached classifier verdict for text.
func (s *DB) Verdict(ctx context.Context, text string) (spoiler, ok bool, err error) {
	var v int
	err = s.db.QueryRowContext(ctx, `SELECT spoiler FROM classifier_cache WHERE digest = ?`, Digest(text)).Scan(&v)
	if err == sql.ErrNoRows {
		return false, false, nil
	}
	if err != nil {
		return false, false, fmt.Errorf("failed to read cached verdict: %w", err)
	}
	return v != 0, true, nil
}

// StoreVerdicts caches classifier verdicts keyed by text.
func (s *DB) StoreVerdicts(ctx context.Context, verdicts map[string]bool) error {
	if len(verdicts) == 0 {
		return nil
	}
	return s.withTx(ctx, func(tx *sql.Tx) error {
		for text, spoiler := range verdicts {
			v := 0
			if spoiler {
				v = 1
			}
			_, err := tx.ExecContext(ctx, `
			INSERT INTO classifier_cache (digest, spoiler) VALUES (?, ?)
			ON CONFLICT(digest) DO UPDATE SET spoiler = excluded.spoiler, created_at = CURRENT_TIMESTAMP
			`, Digest(text), v)
			if err != nil {
				return fmt.Errorf("failed to cache verdict: %w", err)
			}
		}
		return nil
	})
}

// PruneVerdicts deletes cached verdicts older than maxAge and returns how
// many were removed.
func (s *DB) PruneVerdicts(ctx context.Context, maxAge time.Duration) (int64, error) {
	modifier := fmt.Sprintf("-%d seconds", int(maxAge.Seconds()))
	res, err := s.db.ExecContext(ctx, `DELETE FROM classifier_cache WHERE created_at < datetime('now', ?)`, modifier)
	if err != nil {
		return 0, fmt.Errorf("failed to prune classifier cache: %w", err)
	}
	return res.RowsAffected()
}

// CacheStats describes the persistent classifier cache.
type CacheStats struct {
	Entries int
	Oldest  time.Time
}

// CacheStats returns the size and age of the classifier cache.
func (s *DB) CacheStats(ctx context.Context) (CacheStats, error) {
	var stats CacheStats
	var oldest sql.NullString
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*), MIN(created_at) FROM classifier_cache`).Scan(&stats.Entries, &oldest)
	if err != nil {
		return CacheStats{}, fmt.Errorf("failed to read cache stats: %w", err)
	}
	if oldest.Valid {
		stats.Oldest = parseTimestamp(oldest.String)
	}
	return stats, nil
}
