package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite"

	"github.com/valpere/hadithfeed/internal"
)

// Store persists run state: the per-collection cursor, the retrieval history
// and the memory of completed translations.
type Store struct {
	db *sql.DB
}

func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	-- cursors holds the last accepted hadith number per collection
	CREATE TABLE IF NOT EXISTS cursors (
		collection TEXT PRIMARY KEY,
		number INTEGER NOT NULL,
		updated_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS retrievals (
		id TEXT PRIMARY KEY,
		collection TEXT NOT NULL,
		start_number INTEGER NOT NULL,
		number INTEGER NOT NULL,
		original TEXT NOT NULL,
		grade TEXT,
		translations TEXT,
		missing TEXT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	-- translation_memory caches completed translations so an index is never completed twice
	CREATE TABLE IF NOT EXISTS translation_memory (
		id TEXT PRIMARY KEY,
		collection TEXT NOT NULL,
		number INTEGER NOT NULL,
		source_text TEXT NOT NULL,
		target_lang TEXT NOT NULL,
		translated_text TEXT NOT NULL,
		backend TEXT,
		model TEXT,
		confidence TEXT,
		usage_count INTEGER DEFAULT 1,
		invalidated BOOLEAN DEFAULT FALSE,
		last_used TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		UNIQUE(collection, number, source_text, target_lang)
	);

	CREATE INDEX IF NOT EXISTS idx_memory_lookup ON translation_memory(collection, number, target_lang);
	CREATE INDEX IF NOT EXISTS idx_retrievals_collection ON retrievals(collection, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// GetCursor returns the last accepted number for a collection.
func (s *Store) GetCursor(ctx context.Context, collection string) (int, bool, error) {
	var number int
	err := s.db.QueryRowContext(ctx,
		`SELECT number FROM cursors WHERE collection = ?`, collection).Scan(&number)
	if err == sql.ErrNoRows {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return number, true, nil
}

// SetCursor records number as the last accepted hadith of a collection.
func (s *Store) SetCursor(ctx context.Context, collection string, number int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO cursors (collection, number, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(collection) DO UPDATE SET number = excluded.number, updated_at = excluded.updated_at`,
		collection, number, time.Now())
	return err
}

// ResetCursor forgets the cursor of a collection.
func (s *Store) ResetCursor(ctx context.Context, collection string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM cursors WHERE collection = ?`, collection)
	return err
}

// Cursor is a row from the cursors table.
type Cursor struct {
	Collection string
	Number     int
	UpdatedAt  time.Time
}

func (s *Store) ListCursors(ctx context.Context) ([]Cursor, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT collection, number, updated_at FROM cursors ORDER BY collection`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cursors []Cursor
	for rows.Next() {
		var c Cursor
		if err := rows.Scan(&c.Collection, &c.Number, &c.UpdatedAt); err != nil {
			return nil, err
		}
		cursors = append(cursors, c)
	}
	return cursors, rows.Err()
}

func (s *Store) SaveRetrieval(ctx context.Context, r internal.Retrieval) error {
	translations, err := json.Marshal(r.Translations)
	if err != nil {
		return fmt.Errorf("failed to marshal translations: %w", err)
	}
	missing, err := json.Marshal(r.Missing)
	if err != nil {
		return fmt.Errorf("failed to marshal missing languages: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO retrievals (id, collection, start_number, number, original, grade, translations, missing, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.Collection, r.StartNumber, r.Number, r.Original, r.Grade, string(translations), string(missing), r.Timestamp)
	return err
}

// ListRetrievals returns the most recent retrievals first. limit ≤ 0 returns all.
func (s *Store) ListRetrievals(ctx context.Context, collection string, limit int) ([]internal.Retrieval, error) {
	query := `SELECT id, collection, start_number, number, original, grade, translations, missing, created_at FROM retrievals`
	var args []interface{}
	if collection != "" {
		query += ` WHERE collection = ?`
		args = append(args, collection)
	}
	query += ` ORDER BY created_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []internal.Retrieval
	for rows.Next() {
		var r internal.Retrieval
		var grade, translations, missing sql.NullString
		if err := rows.Scan(&r.ID, &r.Collection, &r.StartNumber, &r.Number, &r.Original, &grade, &translations, &missing, &r.Timestamp); err != nil {
			return nil, err
		}
		r.Grade = grade.String
		if translations.String != "" {
			if err := json.Unmarshal([]byte(translations.String), &r.Translations); err != nil {
				return nil, fmt.Errorf("retrieval %s: %w", r.ID, err)
			}
		}
		if missing.String != "" && missing.String != "null" {
			if err := json.Unmarshal([]byte(missing.String), &r.Missing); err != nil {
				return nil, fmt.Errorf("retrieval %s: %w", r.ID, err)
			}
		}
		results = append(results, r)
	}
	return results, rows.Err()
}

// MemoryEntry is a row from the translation_memory table.
type MemoryEntry struct {
	ID             string
	Collection     string
	Number         int
	TargetLang     string
	TranslatedText string
	Backend        string
	Model          string
	Confidence     string
	UsageCount     int
	Invalidated    bool
	LastUsed       time.Time
}

// GetCachedTranslation returns a remembered completion for the same hadith and
// source text.
func (s *Store) GetCachedTranslation(ctx context.Context, collection string, number int, sourceText, targetLang string) (*MemoryEntry, bool, error) {
	e := &MemoryEntry{Collection: collection, Number: number, TargetLang: targetLang}
	var backend, model, confidence sql.NullString

	err := s.db.QueryRowContext(ctx,
		`SELECT id, translated_text, backend, model, confidence, usage_count, invalidated FROM translation_memory
		 WHERE collection = ? AND number = ? AND source_text = ? AND target_lang = ?`,
		collection, number, normalizeText(sourceText), targetLang).
		Scan(&e.ID, &e.TranslatedText, &backend, &model, &confidence, &e.UsageCount, &e.Invalidated)

	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	if e.Invalidated {
		return nil, false, nil
	}
	e.Backend, e.Model, e.Confidence = backend.String, model.String, confidence.String

	_, err = s.db.ExecContext(ctx,
		`UPDATE translation_memory SET usage_count = usage_count + 1, last_used = ? WHERE id = ?`,
		time.Now(), e.ID)

	return e, true, err
}

func (s *Store) SaveToMemory(ctx context.Context, collection string, number int, sourceText, targetLang, translatedText, backend, model, confidence string) error {
	id := "mem_" + uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO translation_memory (id, collection, number, source_text, target_lang, translated_text, backend, model, confidence, usage_count, invalidated, last_used, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, FALSE, ?, ?)`,
		id, collection, number, normalizeText(sourceText), targetLang, translatedText, backend, model, confidence, time.Now(), time.Now())
	return err
}

// CacheStats summarises translation memory usage.
type CacheStats struct {
	TotalEntries   int
	ActiveEntries  int
	InvalidEntries int
	TotalUsage     int
}

func (s *Store) InvalidateMemory(ctx context.Context, id string) error {
	_, err := s.db.ExecContext(ctx, `UPDATE translation_memory SET invalidated = TRUE WHERE id = ?`, id)
	return err
}

// ClearMemory removes all translation memory entries.
func (s *Store) ClearMemory(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM translation_memory`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// ListMemory returns all translation memory entries ordered by most recently used.
func (s *Store) ListMemory(ctx context.Context) ([]MemoryEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, collection, number, target_lang, translated_text, backend, model, confidence, usage_count, invalidated, last_used FROM translation_memory ORDER BY last_used DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []MemoryEntry
	for rows.Next() {
		var e MemoryEntry
		var backend, model, confidence sql.NullString
		if err := rows.Scan(&e.ID, &e.Collection, &e.Number, &e.TargetLang, &e.TranslatedText, &backend, &model, &confidence, &e.UsageCount, &e.Invalidated, &e.LastUsed); err != nil {
			return nil, err
		}
		e.Backend, e.Model, e.Confidence = backend.String, model.String, confidence.String
		results = append(results, e)
	}

	return results, rows.Err()
}

// Stats returns summary statistics for the translation memory.
func (s *Store) Stats(ctx context.Context) (*CacheStats, error) {
	stats := &CacheStats{}

	err := s.db.QueryRowContext(ctx, `
		SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN NOT invalidated THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN invalidated THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(usage_count), 0)
		FROM translation_memory`).Scan(
		&stats.TotalEntries,
		&stats.ActiveEntries,
		&stats.InvalidEntries,
		&stats.TotalUsage,
	)
	if err != nil {
		return nil, err
	}
	return stats, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// normalizeText trims whitespace and applies Unicode NFC normalization
// for consistent cache key comparison.
func normalizeText(text string) string {
	return norm.NFC.String(strings.TrimSpace(text))
}
