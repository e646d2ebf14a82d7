/*
Copyright © 2025 Valentyn Solomko <valentyn.solomko@gmail.com>

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

	http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/valpere/hadithfeed/internal"
	"github.com/valpere/hadithfeed/internal/hadith"
	"github.com/valpere/hadithfeed/internal/provider"
)

var (
	collection  string
	startNumber int
	maxAttempts int
	asJSON      bool
	dryRun      bool
	wrap        bool
)

var nextCmd = &cobra.Command{
	Use:   "next",
	Short: "Retrieve the next acceptable hadith and advance the cursor",
	Long: `Retrieve the next hadith after the stored cursor of a collection.

Sources are tried in order: sunnah.com, al-hadees.com, then the local
database. Hadiths graded weak are skipped, up to --max-attempts candidates.
The cursor is advanced only after a successful retrieval.

With --wrap, reaching the end of the collection restarts from the first
hadith stored in the local database.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		a, err := buildApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		coll := collectionName()
		start := startNumber
		if start <= 0 {
			start, err = resumePoint(ctx, a, coll)
			if err != nil {
				return err
			}
		}

		rec, err := a.provider.GetNext(ctx, coll, start, maxAttempts)
		if errors.Is(err, provider.ErrNoSource) && wrap {
			first, ok, ferr := a.content.FirstNumber(ctx, coll)
			if ferr == nil && ok && first < start {
				logger.Info("end of collection reached, wrapping around",
					zap.String("collection", coll), zap.Int("from", start), zap.Int("to", first))
				start = first
				rec, err = a.provider.GetNext(ctx, coll, start, maxAttempts)
			}
		}
		if err != nil {
			return err
		}

		if !dryRun {
			if err := a.state.SetCursor(ctx, coll, rec.Number); err != nil {
				return fmt.Errorf("failed to save cursor: %w", err)
			}
			if err := a.state.SaveRetrieval(ctx, toRetrieval(rec, start)); err != nil {
				logger.Warn("failed to record retrieval", zap.Error(err))
			}
		}

		return printRecord(cmd.OutOrStdout(), rec, asJSON)
	},
}

func collectionName() string {
	if collection != "" {
		return collection
	}
	return cfg.Collection
}

// resumePoint is the number after the stored cursor, or the first number in
// the local database for a collection never retrieved before.
func resumePoint(ctx context.Context, a *app, coll string) (int, error) {
	cur, found, err := a.state.GetCursor(ctx, coll)
	if err != nil {
		return 0, fmt.Errorf("failed to read cursor: %w", err)
	}
	if found {
		return cur + 1, nil
	}
	first, ok, err := a.content.FirstNumber(ctx, coll)
	if err != nil {
		return 0, fmt.Errorf("failed to read content database: %w", err)
	}
	if ok {
		return first, nil
	}
	return 1, nil
}

func toRetrieval(rec *hadith.Record, start int) internal.Retrieval {
	r := internal.Retrieval{
		ID:           uuid.New().String(),
		Collection:   rec.Collection,
		StartNumber:  start,
		Number:       rec.Number,
		Original:     rec.OriginalText,
		Grade:        rec.Grade,
		Translations: make(map[string]string, len(rec.Translations)),
		Timestamp:    time.Now(),
	}
	for lang, text := range rec.Translations {
		r.Translations[string(lang)] = text
	}
	for _, lang := range rec.Missing {
		r.Missing = append(r.Missing, string(lang))
	}
	return r
}

func printRecord(w io.Writer, rec *hadith.Record, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(rec)
	}

	fmt.Fprintf(w, "%s #%d (from %s)\n\n", rec.Collection, rec.Number, rec.Provenance.Original)
	fmt.Fprintf(w, "%s\n", rec.OriginalText)
	for _, lang := range rec.Languages() {
		src := rec.Provenance.Translations[lang]
		label := string(src.Origin)
		if src.Origin == hadith.OriginCompletion {
			label = fmt.Sprintf("%s %s, %s confidence", src.Origin, src.Backend, src.Confidence)
		}
		fmt.Fprintf(w, "\n[%s, %s]\n%s\n", lang, label, rec.Translations[lang])
	}
	if rec.Grade != "" {
		fmt.Fprintf(w, "\nGrade: %s", rec.Grade)
		if rec.GradedBy != "" {
			fmt.Fprintf(w, " %s", rec.GradedBy)
		}
		fmt.Fprintln(w)
	}
	if len(rec.Missing) > 0 {
		missing := make([]string, len(rec.Missing))
		for i, lang := range rec.Missing {
			missing[i] = string(lang)
		}
		fmt.Fprintf(w, "\nMissing translations: %s\n", strings.Join(missing, ", "))
	}
	return nil
}

func init() {
	rootCmd.AddCommand(nextCmd)

	nextCmd.Flags().StringVar(&collection, "collection", "", "Collection to read (defaults to the configured one)")
	nextCmd.Flags().IntVar(&startNumber, "start", 0, "Start at this number instead of the stored cursor")
	nextCmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "Candidates to try before giving up (0 = configured value)")
	nextCmd.Flags().BoolVar(&asJSON, "json", false, "Print the record as JSON")
	nextCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Do not advance the cursor")
	nextCmd.Flags().BoolVar(&wrap, "wrap", false, "Restart from the first stored hadith at the end of the collection")
}
