package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/ayusman/loom/internal/config"
)

// ActiveConfigKey is the settings key holding the last applied config.
const ActiveConfigKey = "active_config"

// SettingsRepository reads and writes key-value settings.
type SettingsRepository struct {
	db *sql.DB
}

// Settings returns the settings repository for this store.
func (s *Store) Settings() *SettingsRepository {
	return &SettingsRepository{db: s.db}
}

// Get returns the value for key, or ErrNotFound.
func (r *SettingsRepository) Get(key string) (string, error) {
	var v string
	err := r.db.QueryRow(`SELECT value FROM settings WHERE key = ?`, key).Scan(&v)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	return v, err
}

// Set stores value under key, replacing any previous value.
func (r *SettingsRepository) Set(key, value string) error {
	_, err := r.db.Exec(
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		key, value,
	)
	return err
}

// Delete removes key. Missing keys are not an error.
func (r *SettingsRepository) Delete(key string) error {
	_, err := r.db.Exec(`DELETE FROM settings WHERE key = ?`, key)
	return err
}

// SaveActiveConfig records c as the config to restore on the next start.
func (r *SettingsRepository) SaveActiveConfig(c config.Config) error {
	data, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("encode active config: %w", err)
	}
	return r.Set(ActiveConfigKey, string(data))
}

// ActiveConfig returns the last saved config over the defaults, or
// ErrNotFound if none was saved.
func (r *SettingsRepository) ActiveConfig() (config.Config, error) {
	v, err := r.Get(ActiveConfigKey)
	if err != nil {
		return config.Config{}, err
	}
	c := config.Default()
	if err := json.Unmarshal([]byte(v), &c); err != nil {
		return config.Config{}, fmt.Errorf("decode active config: %w", err)
	}
	return c, nil
}
