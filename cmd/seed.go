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
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var seedLegacy bool

var seedCmd = &cobra.Command{
	Use:   "seed <file.jsonl | legacy.db>",
	Short: "Import hadiths into the local database",
	Long: `Import hadiths from a JSON lines file into the local content database.
Each line holds one hadith:

  {"collection":"mishkat","number":1,"arabic":"...","grade":"...","graded_by":"...","translations":{"ur":"...","en":"..."}}

Existing rows with the same collection and number are replaced. Use "-" to
read from standard input.

With --legacy the argument is an older content database; its mishkaat table
(HadithNumber, Arabic, Urdu) is copied into --collection.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if seedLegacy {
			return seedFromLegacy(cmd, args[0])
		}

		in := os.Stdin
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open seed file: %w", err)
			}
			defer f.Close()
			in = f
		}

		db, err := openContent(cfg.DatabasePath)
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := context.Background()
		n, err := db.Import(ctx, in)
		if err != nil {
			return fmt.Errorf("import stopped after %d entries: %w", n, err)
		}

		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d hadiths into %s\n", n, cfg.DatabasePath)
		return nil
	},
}

func seedFromLegacy(cmd *cobra.Command, path string) error {
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("failed to open legacy database: %w", err)
	}

	db, err := openContent(cfg.DatabasePath)
	if err != nil {
		return err
	}
	defer db.Close()

	coll := collectionName()
	n, err := db.ImportLegacy(context.Background(), path, coll)
	if err != nil {
		return fmt.Errorf("legacy import stopped after %d entries: %w", n, err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d %s hadiths from %s into %s\n", n, coll, path, cfg.DatabasePath)
	return nil
}

func init() {
	rootCmd.AddCommand(seedCmd)

	seedCmd.Flags().BoolVar(&seedLegacy, "legacy", false, "Read an older content database with a mishkaat table")
	seedCmd.Flags().StringVar(&collection, "collection", "", "Collection for --legacy rows (defaults to the configured one)")
}
