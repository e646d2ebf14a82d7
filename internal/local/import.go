package local

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// Entry is one line of a seed file.
type Entry struct {
	Collection   string            `json:"collection"`
	Number       int               `json:"number"`
	Arabic       string            `json:"arabic"`
	Grade        string            `json:"grade,omitempty"`
	GradedBy     string            `json:"graded_by,omitempty"`
	Translations map[string]string `json:"translations,omitempty"`
}

// Upsert stores one entry, replacing any existing row. Translations of the
// previous row that the entry omits are removed.
func (d *DB) Upsert(ctx context.Context, e Entry) error {
	if e.Collection == "" || e.Number <= 0 {
		return fmt.Errorf("entry needs a collection and a positive number")
	}
	if strings.TrimSpace(e.Arabic) == "" {
		return fmt.Errorf("entry %s:%d has no Arabic text", e.Collection, e.Number)
	}

	tx, err := d.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		`INSERT OR REPLACE INTO hadiths (collection, number, arabic, grade, graded_by) VALUES (?, ?, ?, ?, ?)`,
		e.Collection, e.Number, e.Arabic, e.Grade, e.GradedBy); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM hadith_translations WHERE collection = ? AND number = ?`,
		e.Collection, e.Number); err != nil {
		return err
	}

	for lang, text := range e.Translations {
		if strings.TrimSpace(text) == "" {
			continue
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO hadith_translations (collection, number, lang, text) VALUES (?, ?, ?, ?)`,
			e.Collection, e.Number, lang, text); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// Import reads JSON lines from r and upserts each entry. Blank lines are
// skipped. It returns the number of stored entries.
func (d *DB) Import(ctx context.Context, r io.Reader) (int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	count := 0
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}

		var e Entry
		if err := json.Unmarshal([]byte(raw), &e); err != nil {
			return count, fmt.Errorf("line %d: %w", line, err)
		}
		if err := d.Upsert(ctx, e); err != nil {
			return count, fmt.Errorf("line %d: %w", line, err)
		}
		count++
	}
	return count, scanner.Err()
}
