package storage

import (
	"database/sql"
	"errors"
	"fmt"
)

const generationColumns = `id, created_at, prompt, style_prompt, model, output, fallback, latency_ms, error`

// SaveGeneration appends one entry to the generation log.
func (s *Store) SaveGeneration(g Generation) error {
	_, err := s.db.Exec(`
		INSERT INTO generations (`+generationColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		g.ID, formatTime(g.CreatedAt), g.Prompt, g.StylePrompt,
		g.Model, g.Output, g.Fallback, g.LatencyMS, g.Error,
	)
	return err
}

func (s *Store) GetGeneration(id string) (Generation, error) {
	g, err := scanGeneration(s.db.QueryRow(`SELECT `+generationColumns+` FROM generations WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Generation{}, ErrNotFound
	}
	return g, err
}

// ListGenerations returns logged generations newest first.
func (s *Store) ListGenerations(limit, offset int) ([]Generation, error) {
	rows, err := s.db.Query(`SELECT `+generationColumns+` FROM generations
		ORDER BY created_at DESC, rowid DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Generation
	for rows.Next() {
		g, err := scanGeneration(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, g)
	}
	return results, rows.Err()
}

func (s *Store) DeleteGeneration(id string) error {
	res, err := s.db.Exec(`DELETE FROM generations WHERE id = ?`, id)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func scanGeneration(r rowScanner) (Generation, error) {
	var g Generation
	var createdAt string
	if err := r.Scan(&g.ID, &createdAt, &g.Prompt, &g.StylePrompt, &g.Model, &g.Output, &g.Fallback, &g.LatencyMS, &g.Error); err != nil {
		return Generation{}, err
	}
	t, err := parseTime(createdAt)
	if err != nil {
		return Generation{}, fmt.Errorf("parsing created_at: %w", err)
	}
	g.CreatedAt = t
	return g, nil
}
