package storage

import (
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// timeLayout is fixed-width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const sampleColumns = `id, text, source, added_at, word_count, trained_at`

// AddSample stores a writing sample. WordCount is computed from the text
// when left at zero.
func (s *Store) AddSample(sm Sample) error {
	source := sm.Source
	if source == "" {
		source = SourceManual
	}
	wordCount := sm.WordCount
	if wordCount == 0 {
		wordCount = len(strings.Fields(sm.Text))
	}
	_, err := s.db.Exec(`
		INSERT INTO writing_samples (id, text, source, added_at, word_count, trained_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		sm.ID, sm.Text, source, formatTime(sm.AddedAt), wordCount, nullTime(sm.TrainedAt),
	)
	return err
}

func (s *Store) GetSample(id string) (Sample, error) {
	row := s.db.QueryRow(`SELECT `+sampleColumns+` FROM writing_samples WHERE id = ?`, id)
	sm, err := scanSample(row)
	if err == sql.ErrNoRows {
		return Sample{}, ErrNotFound
	}
	return sm, err
}

// ListSamples returns samples newest first.
func (s *Store) ListSamples(limit, offset int) ([]Sample, error) {
	rows, err := s.db.Query(`SELECT `+sampleColumns+` FROM writing_samples
		ORDER BY added_at DESC, rowid DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, err
	}
	return collectSamples(rows)
}

// ListUntrainedSamples returns samples that have not been folded into the
// profile yet, oldest first. Notes are skipped unless includeNotes is set.
func (s *Store) ListUntrainedSamples(includeNotes bool) ([]Sample, error) {
	query := `SELECT ` + sampleColumns + ` FROM writing_samples WHERE trained_at IS NULL`
	var args []interface{}
	if !includeNotes {
		query += ` AND source = ?`
		args = append(args, SourceManual)
	}
	query += ` ORDER BY added_at ASC, rowid ASC`

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	return collectSamples(rows)
}

func (s *Store) CountSamples() (int, error) {
	var n int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM writing_samples`).Scan(&n)
	return n, err
}

// MarkSamplesTrained stamps the given samples with the training time.
func (s *Store) MarkSamplesTrained(ids []string, at time.Time) error {
	return markTrained(s.db, ids, at)
}

// CommitTraining writes a trained profile under key and stamps ids as
// trained in one transaction. Either both writes land or neither does.
func (s *Store) CommitTraining(key, value string, ids []string, at time.Time) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning training commit: %w", err)
	}
	defer tx.Rollback()

	if err := setProfileKey(tx, key, value); err != nil {
		return fmt.Errorf("saving profile: %w", err)
	}
	if err := markTrained(tx, ids, at); err != nil {
		return fmt.Errorf("marking samples trained: %w", err)
	}
	return tx.Commit()
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func markTrained(db execer, ids []string, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	args := make([]any, 0, len(ids)+1)
	args = append(args, formatTime(at))
	for _, id := range ids {
		args = append(args, id)
	}
	_, err := db.Exec(`UPDATE writing_samples SET trained_at = ? WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	return err
}

func (s *Store) DeleteSample(id string) error {
	res, err := s.db.Exec(`DELETE FROM writing_samples WHERE id = ?`, id)
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

// DeleteSamples removes the given samples and returns how many were deleted.
func (s *Store) DeleteSamples(ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		args[i] = id
	}
	res, err := s.db.Exec(`DELETE FROM writing_samples WHERE id IN (`+placeholders(len(ids))+`)`, args...)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// PruneSamples keeps the newest keep samples and deletes the rest.
func (s *Store) PruneSamples(keep int) (int64, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.db.Exec(`DELETE FROM writing_samples WHERE id NOT IN (
		SELECT id FROM writing_samples ORDER BY added_at DESC, rowid DESC LIMIT ?)`, keep)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanSample(r rowScanner) (Sample, error) {
	var sm Sample
	var addedAt string
	var trainedAt sql.NullString
	if err := r.Scan(&sm.ID, &sm.Text, &sm.Source, &addedAt, &sm.WordCount, &trainedAt); err != nil {
		return Sample{}, err
	}
	t, err := parseTime(addedAt)
	if err != nil {
		return Sample{}, fmt.Errorf("parsing added_at: %w", err)
	}
	sm.AddedAt = t
	if trainedAt.Valid {
		tt, err := parseTime(trainedAt.String)
		if err != nil {
			return Sample{}, fmt.Errorf("parsing trained_at: %w", err)
		}
		sm.TrainedAt = &tt
	}
	return sm, nil
}

func collectSamples(rows *sql.Rows) ([]Sample, error) {
	defer rows.Close()

	var results []Sample
	for rows.Next() {
		sm, err := scanSample(rows)
		if err != nil {
			return nil, err
		}
		results = append(results, sm)
	}
	return results, rows.Err()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}

func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func placeholders(n int) string {
	return "?" + strings.Repeat(",?", n-1)
}
