package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/nao1215/spoilerguard/internal/keyword"
	"github.com/nao1215/spoilerguard/internal/model"
)

const settingDetectionMode = "detection_mode"

// Keywords returns the active keywords in insertion order.
func (s *DB) Keywords(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT keyword FROM keywords ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query keywords: %w", err)
	}
	defer rows.Close()

	return scanStrings(rows)
}

// AddKeywords appends keywords that are not stored yet and returns how many
// were added. Keywords are normalized before storing.
func (s *DB) AddKeywords(ctx context.Context, keywords []string) (int, error) {
	added := 0
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		for _, k := range keyword.NormalizeList(keywords) {
			res, err := tx.ExecContext(ctx, `INSERT OR IGNORE INTO keywords (keyword) VALUES (?)`, k)
			if err != nil {
				return fmt.Errorf("failed to insert keyword %q: %w", k, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("failed to insert keyword %q: %w", k, err)
			}
			added += int(n)
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return added, nil
}

// RemoveKeyword deletes a keyword and reports whether it existed.
func (s *DB) RemoveKeyword(ctx context.Context, k string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM keywords WHERE keyword = ?`, keyword.Normalize(k))
	if err != nil {
		return false, fmt.Errorf("failed to remove keyword: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to remove keyword: %w", err)
	}
	return n > 0, nil
}

// SetKeywords replaces the whole keyword list.
func (s *DB) SetKeywords(ctx context.Context, keywords []string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM keywords`); err != nil {
			return fmt.Errorf("failed to clear keywords: %w", err)
		}
		for _, k := range keyword.NormalizeList(keywords) {
			if _, err := tx.ExecContext(ctx, `INSERT INTO keywords (keyword) VALUES (?)`, k); err != nil {
				return fmt.Errorf("failed to insert keyword %q: %w", k, err)
			}
		}
		return nil
	})
}

// IgnoredKeywords is the persisted ignore list and the page it belongs to.
type IgnoredKeywords struct {
	PageURL  string
	Keywords []string
}

// IgnoredKeywords returns the persisted ignore list. PageURL is empty when
// nothing is stored.
func (s *DB) IgnoredKeywords(ctx context.Context) (IgnoredKeywords, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT keyword, page_url FROM ignored_keywords ORDER BY id`)
	if err != nil {
		return IgnoredKeywords{}, fmt.Errorf("failed to query ignored keywords: %w", err)
	}
	defer rows.Close()

	var out IgnoredKeywords
	for rows.Next() {
		var k, pageURL string
		if err := rows.Scan(&k, &pageURL); err != nil {
			return IgnoredKeywords{}, fmt.Errorf("failed to scan ignored keyword: %w", err)
		}
		out.Keywords = append(out.Keywords, k)
		out.PageURL = pageURL
	}
	return out, rows.Err()
}

// SetIgnoredKeywords replaces the ignore list and ties it to pageURL.
func (s *DB) SetIgnoredKeywords(ctx context.Context, pageURL string, keywords []string) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM ignored_keywords`); err != nil {
			return fmt.Errorf("failed to clear ignored keywords: %w", err)
		}
		for _, k := range keyword.NormalizeList(keywords) {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO ignored_keywords (keyword, page_url) VALUES (?, ?)`, k, pageURL); err != nil {
				return fmt.Errorf("failed to insert ignored keyword %q: %w", k, err)
			}
		}
		return nil
	})
}

// ClearIgnoredKeywords drops the ignore list.
func (s *DB) ClearIgnoredKeywords(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM ignored_keywords`); err != nil {
		return fmt.Errorf("failed to clear ignored keywords: %w", err)
	}
	return nil
}

// DetectionMode returns the stored mode, or the default when none is set.
func (s *DB) DetectionMode(ctx context.Context) (model.DetectionMode, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, settingDetectionMode).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DefaultDetectionMode, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read detection mode: %w", err)
	}
	return model.ParseDetectionMode(value)
}

// SetDetectionMode stores the detection mode.
func (s *DB) SetDetectionMode(ctx context.Context, mode model.DetectionMode) error {
	if !mode.IsValid() {
		return fmt.Errorf("%w: %q", model.ErrInvalidDetectionMode, mode)
	}
	_, err := s.db.ExecContext(ctx, `
	INSERT INTO settings (key, value) VALUES (?, ?)
	ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = CURRENT_TIMESTAMP
	`, settingDetectionMode, string(mode))
	if err != nil {
		return fmt.Errorf("failed to store detection mode: %w", err)
	}
	return nil
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
