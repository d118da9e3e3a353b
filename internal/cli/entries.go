package cli

import (
	"fmt"
	"strconv"

	"github.com/andy/invoicer/internal/repository"
	"github.com/andy/invoicer/internal/service"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var entriesCmd = &cobra.Command{
	Use:   "entries",
	Short: "Manage time entries",
	Long:  `List, log, and edit time entries. Every edit is recorded in the entry history.`,
}

var entriesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List time entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// Parse filters
		var filter repository.EntryFilter
		if cmd.Flags().Changed("client") {
			clientArg, _ := cmd.Flags().GetString("client")
			id, err := resolveClientID(ctx, clientArg)
			if err != nil {
				return err
			}
			filter.ClientID = &id
		}
		if cmd.Flags().Changed("invoice") {
			invoiceArg, _ := cmd.Flags().GetString("invoice")
			id, err := resolveInvoiceID(ctx, invoiceArg)
			if err != nil {
				return err
			}
			filter.InvoiceID = &id
		}
		if cmd.Flags().Changed("month") {
			monthStr, _ := cmd.Flags().GetString("month")
			month, err := parseMonth(monthStr)
			if err != nil {
				return fmt.Errorf("invalid month (use YYYY-MM): %w", err)
			}
			filter.Month = &month
		}
		filter.UnbilledOnly, _ = cmd.Flags().GetBool("unbilled")
		filter.BillableOnly, _ = cmd.Flags().GetBool("billable")

		entries, err := appInstance.EntryService.ListEntries(ctx, filter)
		if err != nil {
			return fmt.Errorf("failed to list entries: %w", err)
		}

		if len(entries) == 0 {
			fmt.Println("No entries found")
			return nil
		}

		// Print table header
		fmt.Printf("%-5s %-18s %-10s %-7s %-10s %-11s %-10s %s\n", "ID", "Client", "Date", "Hours", "Rate", "Amount", "Invoice", "Description")
		fmt.Println("----------------------------------------------------------------------------------------------------")

		clientNames := make(map[int64]string)
		totalHours := decimal.Zero
		totalAmount := decimal.Zero

		for _, entry := range entries {
			name, ok := clientNames[entry.ClientID]
			if !ok {
				name = fmt.Sprintf("Client #%d", entry.ClientID)
				if client, err := appInstance.ClientRepo.GetByID(ctx, entry.ClientID); err == nil {
					name = client.Name
				}
				clientNames[entry.ClientID] = name
			}

			invoice := "-"
			if entry.InvoiceID != nil {
				invoice = fmt.Sprintf("#%d", *entry.InvoiceID)
			}
			amount := money(entry.Amount())
			if !entry.IsBillable {
				amount = "n/b"
			}

			fmt.Printf("%-5d %-18s %-10s %-7s %-10s %-11s %-10s %s\n",
				entry.ID,
				truncate(name, 18),
				entry.Date.Format("2006-01-02"),
				entry.Hours.StringFixed(2),
				money(entry.Rate),
				amount,
				invoice,
				truncate(entry.Description, 40),
			)

			if entry.IsBillable {
				totalHours = totalHours.Add(entry.Hours)
				totalAmount = totalAmount.Add(entry.Amount())
			}
		}

		fmt.Println("----------------------------------------------------------------------------------------------------")
		fmt.Printf("Billable: %s hours, %s\n", totalHours.StringFixed(2), money(totalAmount))
		return nil
	},
}

var entriesAddCmd = &cobra.Command{
	Use:   "add [client] [date] [hours] [description]",
	Short: "Log a time entry",
	Long: `Log hours worked for a client on a date (YYYY-MM-DD, "today" or "yesterday").
The client's default rate applies unless --rate is given.`,
	Args: cobra.ExactArgs(4),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		clientID, err := resolveClientID(ctx, args[0])
		if err != nil {
			return err
		}
		date, err := parseDate(args[1])
		if err != nil {
			return fmt.Errorf("invalid date: %w", err)
		}
		hours, err := parseDecimal("hours", args[2])
		if err != nil {
			return err
		}

		req := service.LogEntryRequest{
			ClientID:    clientID,
			Date:        date,
			Hours:       hours,
			Description: args[3],
		}
		req.NonBillable, _ = cmd.Flags().GetBool("non-billable")
		if cmd.Flags().Changed("rate") {
			rateStr, _ := cmd.Flags().GetString("rate")
			rate, err := parseDecimal("rate", rateStr)
			if err != nil {
				return err
			}
			req.Rate = &rate
		}

		entry, err := appInstance.EntryService.Log(ctx, req)
		if err != nil {
			return fmt.Errorf("failed to log entry: %w", err)
		}

		fmt.Printf("✓ Entry logged (ID: %d)\n", entry.ID)
		fmt.Printf("  %s  %s hours @ %s/hr = %s\n",
			entry.Date.Format("2006-01-02"), entry.Hours.StringFixed(2), money(entry.Rate), money(entry.Amount()))
		return nil
	},
}

var entriesEditCmd = &cobra.Command{
	Use:   "edit [id]",
	Short: "Edit a time entry",
	Long: `Edit a time entry. Changes are recorded in the entry history; if the entry
is on an invoice, that invoice's amount and description are regenerated.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid ID: %w", err)
		}

		entry, err := appInstance.EntryService.GetEntry(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get entry: %w", err)
		}

		// Update fields if flags provided
		if cmd.Flags().Changed("date") {
			dateStr, _ := cmd.Flags().GetString("date")
			if entry.Date, err = parseDate(dateStr); err != nil {
				return fmt.Errorf("invalid date: %w", err)
			}
		}
		if cmd.Flags().Changed("hours") {
			hoursStr, _ := cmd.Flags().GetString("hours")
			if entry.Hours, err = parseDecimal("hours", hoursStr); err != nil {
				return err
			}
		}
		if cmd.Flags().Changed("rate") {
			rateStr, _ := cmd.Flags().GetString("rate")
			if entry.Rate, err = parseDecimal("rate", rateStr); err != nil {
				return err
			}
		}
		if cmd.Flags().Changed("description") {
			entry.Description, _ = cmd.Flags().GetString("description")
		}
		if cmd.Flags().Changed("billable") {
			entry.IsBillable, _ = cmd.Flags().GetBool("billable")
		}

		reason, _ := cmd.Flags().GetString("reason")

		inv, err := appInstance.EntryService.Update(ctx, entry, reason)
		if err != nil {
			return fmt.Errorf("failed to update entry: %w", err)
		}

		fmt.Printf("✓ Entry updated (ID: %d)\n", entry.ID)
		if inv != nil {
			fmt.Printf("  Invoice %s regenerated: %s\n", inv.Number, money(inv.Amount))
		}
		return nil
	},
}

var entriesHistoryCmd = &cobra.Command{
	Use:   "history [id]",
	Short: "Show the change history of a time entry",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid ID: %w", err)
		}

		history, err := appInstance.EntryService.History(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get history: %w", err)
		}

		if len(history) == 0 {
			fmt.Println("No changes recorded")
			return nil
		}

		fmt.Printf("%-20s %-12s %-16s %-16s %s\n", "When", "Field", "From", "To", "Reason")
		fmt.Println("--------------------------------------------------------------------------------")
		for _, h := range history {
			fmt.Printf("%-20s %-12s %-16s %-16s %s\n",
				h.ChangedAt.Local().Format("2006-01-02 15:04"),
				h.FieldName,
				truncate(h.OldValue, 16),
				truncate(h.NewValue, 16),
				h.ChangeReason,
			)
		}
		return nil
	},
}

func init() {
	entriesCmd.AddCommand(entriesListCmd)
	entriesCmd.AddCommand(entriesAddCmd)
	entriesCmd.AddCommand(entriesEditCmd)
	entriesCmd.AddCommand(entriesHistoryCmd)

	// List flags
	entriesListCmd.Flags().String("client", "", "Filter by client (ID, code or name)")
	entriesListCmd.Flags().String("invoice", "", "Filter by invoice (ID or number)")
	entriesListCmd.Flags().String("month", "", "Filter by month (YYYY-MM)")
	entriesListCmd.Flags().Bool("unbilled", false, "Only entries not on an invoice")
	entriesListCmd.Flags().Bool("billable", false, "Only billable entries")

	// Add flags
	entriesAddCmd.Flags().String("rate", "", "Hourly rate (defaults to the client's rate)")
	entriesAddCmd.Flags().Bool("non-billable", false, "Record the hours without billing them")

	// Edit flags
	entriesEditCmd.Flags().String("date", "", "New date (YYYY-MM-DD)")
	entriesEditCmd.Flags().String("hours", "", "New hours")
	entriesEditCmd.Flags().String("rate", "", "New hourly rate")
	entriesEditCmd.Flags().String("description", "", "New description")
	entriesEditCmd.Flags().Bool("billable", true, "Whether the entry is billable")
	entriesEditCmd.Flags().String("reason", "", "Reason for the change (stored in history)")
}
