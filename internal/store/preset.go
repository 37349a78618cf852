package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ayusman/loom/internal/config"
)

// Preset is a named, saved configuration.
type Preset struct {
	ID        string        `json:"id"`
	Name      string        `json:"name"`
	Config    config.Config `json:"config"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

// PresetRepository provides CRUD operations for presets.
type PresetRepository struct {
	db *sql.DB
}

// Presets returns the preset repository for this store.
func (s *Store) Presets() *PresetRepository {
	return &PresetRepository{db: s.db}
}

// Create inserts p, assigning a new id and timestamps.
func (r *PresetRepository) Create(p *Preset) error {
	if p.Name == "" {
		return errors.New("preset name is required")
	}
	data, err := json.Marshal(p.Config)
	if err != nil {
		return fmt.Errorf("encode preset config: %w", err)
	}

	now := time.Now().UTC()
	id := uuid.NewString()

	_, err = r.db.Exec(
		`INSERT INTO presets (id, name, config, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?)`,
		id, p.Name, string(data), now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("preset %q: %w", p.Name, ErrDuplicate)
		}
		return err
	}

	p.ID = id
	p.CreatedAt = now
	p.UpdatedAt = now
	return nil
}

// Get retrieves a preset by id.
func (r *PresetRepository) Get(id string) (*Preset, error) {
	return r.scanOne(r.db.QueryRow(
		`SELECT id, name, config, created_at, updated_at FROM presets WHERE id = ?`, id))
}

// GetByName retrieves a preset by name.
func (r *PresetRepository) GetByName(name string) (*Preset, error) {
	return r.scanOne(r.db.QueryRow(
		`SELECT id, name, config, created_at, updated_at FROM presets WHERE name = ?`, name))
}

// List returns all presets ordered by name.
func (r *PresetRepository) List() ([]*Preset, error) {
	rows, err := r.db.Query(
		`SELECT id, name, config, created_at, updated_at FROM presets ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	presets := []*Preset{}
	for rows.Next() {
		p, err := scanPreset(rows)
		if err != nil {
			return nil, err
		}
		presets = append(presets, p)
	}
	return presets, rows.Err()
}

// Update replaces the name and config of an existing preset.
func (r *PresetRepository) Update(p *Preset) error {
	data, err := json.Marshal(p.Config)
	if err != nil {
		return fmt.Errorf("encode preset config: %w", err)
	}
	now := time.Now().UTC()

	res, err := r.db.Exec(
		`UPDATE presets SET name = ?, config = ?, updated_at = ? WHERE id = ?`,
		p.Name, string(data), now, p.ID,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("preset %q: %w", p.Name, ErrDuplicate)
		}
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	p.UpdatedAt = now
	return nil
}

// Delete removes a preset by id.
func (r *PresetRepository) Delete(id string) error {
	res, err := r.db.Exec(`DELETE FROM presets WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func (r *PresetRepository) scanOne(row *sql.Row) (*Preset, error) {
	p, err := scanPreset(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

func scanPreset(s scanner) (*Preset, error) {
	p := &Preset{}
	var data string
	if err := s.Scan(&p.ID, &p.Name, &data, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Config = config.Default()
	if err := json.Unmarshal([]byte(data), &p.Config); err != nil {
		return nil, fmt.Errorf("decode preset %s: %w", p.ID, err)
	}
	return p, nil
}
