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
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var cursorCmd = &cobra.Command{
	Use:   "cursor",
	Short: "Inspect or move the per-collection cursor",
}

var cursorShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show stored cursors and the configured sources",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := context.Background()
		a, err := buildApp(ctx, cfg)
		if err != nil {
			return err
		}
		defer a.close()

		info := a.provider.Info()
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Mode:             %s\n", info.Mode)
		fmt.Fprintf(out, "Origins:          %v\n", info.Origins)
		fmt.Fprintf(out, "Local database:   %v\n", info.LocalAvailable)
		fmt.Fprintf(out, "Local fallback:   %v\n", info.FallbackEnabled)
		fmt.Fprintf(out, "AI translation:   %v %s\n", info.AIEnabled, info.Completer)
		fmt.Fprintf(out, "Max attempts:     %d\n\n", info.MaxAttempts)

		cursors, err := a.state.ListCursors(ctx)
		if err != nil {
			return fmt.Errorf("failed to list cursors: %w", err)
		}
		if len(cursors) == 0 {
			fmt.Fprintln(out, "No cursors stored.")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "COLLECTION\tLAST\tSTORED\tUPDATED")
		for _, c := range cursors {
			count, err := a.content.Count(ctx, c.Collection)
			if err != nil {
				return fmt.Errorf("failed to count %s: %w", c.Collection, err)
			}
			fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", c.Collection, c.Number, count, c.UpdatedAt.Format("2006-01-02 15:04"))
		}
		return w.Flush()
	},
}

var cursorSetCmd = &cobra.Command{
	Use:   "set <number>",
	Short: "Set the last retrieved number; the next run starts after it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		number, err := strconv.Atoi(args[0])
		if err != nil || number < 0 {
			return fmt.Errorf("invalid hadith number %q", args[0])
		}

		st, err := openState(cfg.StatePath)
		if err != nil {
			return err
		}
		defer st.Close()

		coll := collectionName()
		if err := st.SetCursor(context.Background(), coll, number); err != nil {
			return fmt.Errorf("failed to save cursor: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cursor for %s set to %d\n", coll, number)
		return nil
	},
}

var cursorResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget the cursor; the next run starts from the first stored hadith",
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openState(cfg.StatePath)
		if err != nil {
			return err
		}
		defer st.Close()

		coll := collectionName()
		if err := st.ResetCursor(context.Background(), coll); err != nil {
			return fmt.Errorf("failed to reset cursor: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Cursor for %s reset\n", coll)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cursorCmd)

	cursorCmd.PersistentFlags().StringVar(&collection, "collection", "", "Collection (defaults to the configured one)")

	cursorCmd.AddCommand(cursorShowCmd)
	cursorCmd.AddCommand(cursorSetCmd)
	cursorCmd.AddCommand(cursorResetCmd)
}
