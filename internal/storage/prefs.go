package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
)

// Preference storage: typed key-value reads with caller-supplied defaults.
// A missing key or an unparsable value yields the default, never an error.

const PrefChurchID = "church_id"

// GetIntPref returns the stored integer for key, or def when the key is
// absent or not an integer.
func (s *CacheStore) GetIntPref(ctx context.Context, key string, def int64) int64 {
	raw, err := s.getPref(ctx, key)
	if err != nil {
		return def
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return def
	}
	return v
}

// GetStringPref returns the stored string for key, or def when absent.
func (s *CacheStore) GetStringPref(ctx context.Context, key string, def string) string {
	raw, err := s.getPref(ctx, key)
	if err != nil {
		return def
	}
	return raw
}

// SetIntPref stores an integer preference.
func (s *CacheStore) SetIntPref(ctx context.Context, key string, value int64) error {
	return s.setPref(ctx, key, strconv.FormatInt(value, 10))
}

// SetStringPref stores a string preference.
func (s *CacheStore) SetStringPref(ctx context.Context, key, value string) error {
	return s.setPref(ctx, key, value)
}

func (s *CacheStore) getPref(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", err
	}
	if err != nil {
		return "", fmt.Errorf("get preference %s: %w", key, err)
	}
	return value, nil
}

func (s *CacheStore) setPref(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO preferences (key, value) VALUES (?, ?)`, key, value)
	if err != nil {
		return fmt.Errorf("set preference %s: %w", key, err)
	}
	return nil
}
