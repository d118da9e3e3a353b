package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Reset data in the database",
	Long: `Reset data in the database.

Examples:
  invoicer reset invoices   # Delete all invoices; their entries become unbilled
  invoicer reset entries    # Delete all time entries and invoices
  invoicer reset all        # Wipe everything: clients, entries, invoices`,
}

var resetEntriesCmd = &cobra.Command{
	Use:   "entries",
	Short: "Delete all time entries and invoices",
	RunE: func(cmd *cobra.Command, args []string) error {
		return resetTables(cmd,
			"This will delete ALL time entries and invoices. Continue?",
			"All time entries and invoices have been deleted.",
			"invoices", "entry_history", "time_entries",
		)
	},
}

var resetInvoicesCmd = &cobra.Command{
	Use:   "invoices",
	Short: "Delete all invoices and release their time entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		return resetTables(cmd,
			"This will delete ALL invoices and release their time entries. Continue?",
			"All invoices have been deleted and their time entries released.",
			"invoices",
		)
	},
}

var resetAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Delete ALL data: clients, entries, invoices, everything",
	RunE: func(cmd *cobra.Command, args []string) error {
		return resetTables(cmd,
			"This will delete ALL data (clients, entries, invoices, everything). Continue?",
			"All data has been deleted.",
			"invoices", "entry_history", "time_entries", "clients",
		)
	},
}

// resetTables clears the tables in order inside one transaction. Invoice
// references are cleared first so entries never point at a deleted invoice.
func resetTables(cmd *cobra.Command, prompt, done string, tables ...string) error {
	ok, err := confirm(cmd, prompt)
	if err != nil {
		return err
	}
	if !ok {
		fmt.Println("Cancelled.")
		return nil
	}

	db := appInstance.DB
	err = db.WithTx(cmd.Context(), func(ctx context.Context) error {
		q := db.Conn(ctx)
		if _, err := q.ExecContext(ctx, "UPDATE time_entries SET invoice_id = NULL WHERE invoice_id IS NOT NULL"); err != nil {
			return fmt.Errorf("failed to release entries: %w", err)
		}
		for _, table := range tables {
			if _, err := q.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s", table)); err != nil {
				return fmt.Errorf("failed to clear %s: %w", table, err)
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	fmt.Println(done)
	return nil
}

func init() {
	resetCmd.AddCommand(resetEntriesCmd)
	resetCmd.AddCommand(resetInvoicesCmd)
	resetCmd.AddCommand(resetAllCmd)

	resetCmd.PersistentFlags().BoolP("yes", "y", false, "Skip confirmation")
}
