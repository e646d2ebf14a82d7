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
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent retrievals",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openState(cfg.StatePath)
		if err != nil {
			return err
		}
		defer st.Close()

		list, err := st.ListRetrievals(context.Background(), collection, historyLimit)
		if err != nil {
			return fmt.Errorf("failed to list retrievals: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(list) == 0 {
			fmt.Fprintln(out, "No retrievals recorded.")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "WHEN\tCOLLECTION\tSTART\tNUMBER\tGRADE\tMISSING")
		for _, r := range list {
			grade := r.Grade
			if runes := []rune(grade); len(runes) > 30 {
				grade = string(runes[:27]) + "..."
			}
			fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
				r.Timestamp.Format("2006-01-02 15:04"), r.Collection, r.StartNumber, r.Number,
				grade, strings.Join(r.Missing, ","))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(historyCmd)

	historyCmd.Flags().StringVar(&collection, "collection", "", "Only show this collection")
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of entries to show (0 = all)")
}
