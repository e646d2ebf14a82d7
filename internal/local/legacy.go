package local

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// ImportLegacy copies the mishkaat(HadithNumber, Arabic, Urdu) table of an
// older content database into collection. The legacy file is opened read
// only. Rows without Arabic text are skipped.
func (d *DB) ImportLegacy(ctx context.Context, path, collection string) (int, error) {
	if collection == "" {
		return 0, fmt.Errorf("collection is required")
	}

	legacy, err := sql.Open("sqlite", "file:"+path+"?mode=ro")
	if err != nil {
		return 0, fmt.Errorf("failed to open legacy database: %w", err)
	}
	defer legacy.Close()

	rows, err := legacy.QueryContext(ctx,
		`SELECT HadithNumber, Arabic, Urdu FROM mishkaat ORDER BY HadithNumber`)
	if err != nil {
		return 0, fmt.Errorf("failed to read legacy table: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			number int
			arabic sql.NullString
			urdu   sql.NullString
		)
		if err := rows.Scan(&number, &arabic, &urdu); err != nil {
			return 0, err
		}
		if strings.TrimSpace(arabic.String) == "" {
			continue
		}
		e := Entry{Collection: collection, Number: number, Arabic: arabic.String}
		if urdu.Valid && strings.TrimSpace(urdu.String) != "" {
			e.Translations = map[string]string{"ur": urdu.String}
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return 0, err
	}

	for i, e := range entries {
		if err := d.Upsert(ctx, e); err != nil {
			return i, fmt.Errorf("hadith %d: %w", e.Number, err)
		}
	}
	return len(entries), nil
}
