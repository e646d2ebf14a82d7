// Package local reads hadith content pre-seeded into a SQLite database.
//
// Absence is a normal outcome: lookups return found=false with a nil error
// when a row does not exist.
package local

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"golang.org/x/text/unicode/norm"
	_ "modernc.org/sqlite"

	"github.com/valpere/hadithfeed/internal/hadith"
)

type DB struct {
	db *sql.DB
}

// Open opens (and if needed creates) the content database at path.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open content database: %w", err)
	}

	d := &DB{db: db}
	if err := d.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate content database: %w", err)
	}
	return d, nil
}

func (d *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS hadiths (
		collection TEXT NOT NULL,
		number INTEGER NOT NULL,
		arabic TEXT NOT NULL,
		grade TEXT NOT NULL DEFAULT '',
		graded_by TEXT NOT NULL DEFAULT '',
		PRIMARY KEY (collection, number)
	);

	CREATE TABLE IF NOT EXISTS hadith_translations (
		collection TEXT NOT NULL,
		number INTEGER NOT NULL,
		lang TEXT NOT NULL,
		text TEXT NOT NULL,
		PRIMARY KEY (collection, number, lang)
	);
	`
	_, err := d.db.Exec(schema)
	return err
}

// LookupTranslation returns the stored translation of one hadith.
func (d *DB) LookupTranslation(ctx context.Context, collection string, number int, lang hadith.Language) (string, bool, error) {
	var text string
	err := d.db.QueryRowContext(ctx,
		`SELECT text FROM hadith_translations WHERE collection = ? AND number = ? AND lang = ?`,
		collection, number, string(lang)).Scan(&text)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	text = cleanText(text)
	if text == "" {
		return "", false, nil
	}
	return text, true, nil
}

// LookupRecord returns the full stored record: Arabic text, grade and every
// stored translation.
func (d *DB) LookupRecord(ctx context.Context, collection string, number int) (*hadith.Record, bool, error) {
	rec := &hadith.Record{
		Collection:   collection,
		Number:       number,
		Translations: make(map[hadith.Language]string),
		Provenance: hadith.Provenance{
			Original:     hadith.OriginLocal,
			Translations: make(map[hadith.Language]hadith.TranslationSource),
		},
	}

	err := d.db.QueryRowContext(ctx,
		`SELECT arabic, grade, graded_by FROM hadiths WHERE collection = ? AND number = ?`,
		collection, number).Scan(&rec.OriginalText, &rec.Grade, &rec.GradedBy)
	if err == sql.ErrNoRows {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}

	rec.OriginalText = cleanText(rec.OriginalText)
	if rec.OriginalText == "" {
		return nil, false, nil
	}
	if rec.Grade != "" {
		rec.Provenance.Grade = hadith.OriginLocal
	}

	rows, err := d.db.QueryContext(ctx,
		`SELECT lang, text FROM hadith_translations WHERE collection = ? AND number = ?`,
		collection, number)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	for rows.Next() {
		var lang, text string
		if err := rows.Scan(&lang, &text); err != nil {
			return nil, false, err
		}
		if text = cleanText(text); text == "" {
			continue
		}
		rec.Translations[hadith.Language(lang)] = text
		rec.Provenance.Translations[hadith.Language(lang)] = hadith.TranslationSource{Origin: hadith.OriginLocal}
	}

	return rec, true, rows.Err()
}

// FirstNumber returns the lowest stored number of a collection.
func (d *DB) FirstNumber(ctx context.Context, collection string) (int, bool, error) {
	var n sql.NullInt64
	err := d.db.QueryRowContext(ctx,
		`SELECT MIN(number) FROM hadiths WHERE collection = ?`, collection).Scan(&n)
	if err != nil {
		return 0, false, err
	}
	return int(n.Int64), n.Valid, nil
}

// NextNumber returns the lowest stored number greater than after.
func (d *DB) NextNumber(ctx context.Context, collection string, after int) (int, bool, error) {
	var n sql.NullInt64
	err := d.db.QueryRowContext(ctx,
		`SELECT MIN(number) FROM hadiths WHERE collection = ? AND number > ?`, collection, after).Scan(&n)
	if err != nil {
		return 0, false, err
	}
	return int(n.Int64), n.Valid, nil
}

// Count returns the number of stored hadiths in a collection.
func (d *DB) Count(ctx context.Context, collection string) (int, error) {
	var n int
	err := d.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM hadiths WHERE collection = ?`, collection).Scan(&n)
	return n, err
}

func (d *DB) Close() error {
	return d.db.Close()
}

// cleanText flattens escaped line breaks left in seeded rows and applies NFC.
func cleanText(text string) string {
	text = strings.NewReplacer(`\n`, " ", "\n", " ", "\r", " ").Replace(text)
	return norm.NFC.String(strings.Join(strings.Fields(text), " "))
}
