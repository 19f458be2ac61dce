package storage

import (
	"database/sql"
	"errors"
	"time"
)

// SetProfileKey upserts one slot of the profile key/value table. The style
// profile lives in a single slot as JSON.
func (s *Store) SetProfileKey(key, value string) error {
	return setProfileKey(s.db, key, value)
}

func setProfileKey(db execer, key, value string) error {
	_, err := db.Exec(`
		INSERT INTO profile_kv (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		key, value, formatTime(time.Now()),
	)
	return err
}

// GetProfileKey returns ErrNotFound for an unknown key.
func (s *Store) GetProfileKey(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM profile_kv WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return value, err
}
