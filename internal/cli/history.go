// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newHistoryCmd(a *app) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List or clear the saved input history",
		Long: `List the prompts recalled with up/down in the console and chat, oldest
first. Use "history clear" to forget them.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			total, err := store.Count(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to count history: %w", err)
			}
			if total == 0 {
				fmt.Fprintln(a.out, mutedStyle.Render("No saved prompts."))
				return nil
			}
			prompts, err := store.Recent(cmd.Context(), limit)
			if err != nil {
				return err
			}
			for i, p := range prompts {
				fmt.Fprintf(a.out, "%s %s\n", mutedStyle.Render(fmt.Sprintf("%4d", total-len(prompts)+i+1)), p)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of prompts to show (0 for all)")

	cmd.AddCommand(&cobra.Command{
		Use:   "clear",
		Short: "Delete all saved prompts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.openStore()
			if err != nil {
				return err
			}
			defer store.Close()

			n, err := store.Count(cmd.Context())
			if err != nil {
				return fmt.Errorf("failed to count history: %w", err)
			}
			if err := store.ClearHistory(cmd.Context()); err != nil {
				return fmt.Errorf("failed to clear history: %w", err)
			}
			fmt.Fprintln(a.out, successStyle.Render(fmt.Sprintf("Removed %d saved prompts", n)))
			return nil
		},
	})
	return cmd
}
