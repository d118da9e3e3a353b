package cli

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/andy/invoicer/internal/billing"
	"github.com/andy/invoicer/internal/domain"
	"github.com/andy/invoicer/internal/repository"
	"github.com/andy/invoicer/internal/service"
	"github.com/andy/invoicer/internal/tui"
	"github.com/spf13/cobra"
)

var invoicesCmd = &cobra.Command{
	Use:   "invoices",
	Short: "Manage invoices",
	Long: `Create, list, and manage invoices.

An invoice claims every billable, unbilled entry of its client in the month
of the invoice date. Its amount and description are always derived from the
entries linked to it.`,
}

var invoicesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List invoices",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		// Parse filters
		var filter repository.InvoiceFilter
		if cmd.Flags().Changed("client") {
			clientArg, _ := cmd.Flags().GetString("client")
			id, err := resolveClientID(ctx, clientArg)
			if err != nil {
				return err
			}
			filter.ClientID = &id
		}
		if cmd.Flags().Changed("status") {
			statusStr, _ := cmd.Flags().GetString("status")
			s := domain.InvoiceStatus(statusStr)
			switch s {
			case domain.InvoiceStatusDraft, domain.InvoiceStatusSent, domain.InvoiceStatusPaid:
			default:
				return fmt.Errorf("invalid status %q (use draft, sent or paid)", statusStr)
			}
			filter.Status = &s
		}
		overdueOnly, _ := cmd.Flags().GetBool("overdue")

		invoices, err := appInstance.InvoiceService.ListInvoices(ctx, filter)
		if err != nil {
			return fmt.Errorf("failed to list invoices: %w", err)
		}

		now := time.Now()
		if overdueOnly {
			kept := invoices[:0]
			for _, inv := range invoices {
				if inv.IsOverdue(now) {
					kept = append(kept, inv)
				}
			}
			invoices = kept
		}

		if len(invoices) == 0 {
			fmt.Println("No invoices found")
			return nil
		}

		// Print table header
		fmt.Printf("%-5s %-18s %-20s %-10s %-10s %-12s %s\n", "ID", "Number", "Client", "Date", "Due", "Amount", "Status")
		fmt.Println("------------------------------------------------------------------------------------------")

		for _, inv := range invoices {
			clientName := fmt.Sprintf("Client #%d", inv.ClientID)
			if inv.Client != nil {
				clientName = inv.Client.Name
			}

			fmt.Printf("%-5d %-18s %-20s %-10s %-10s %-12s %s\n",
				inv.ID,
				inv.Number,
				truncate(clientName, 20),
				inv.Date.Format("2006-01-02"),
				inv.DueDate.Format("2006-01-02"),
				money(inv.Amount),
				tui.StatusLabel(inv, inv.IsOverdue(now)),
			)
		}

		fmt.Printf("\nTotal: %d invoice(s)\n", len(invoices))
		return nil
	},
}

var invoicesCreateCmd = &cobra.Command{
	Use:   "create [client]",
	Short: "Create an invoice from the month's unbilled entries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		clientID, err := resolveClientID(ctx, args[0])
		if err != nil {
			return err
		}

		dateStr, _ := cmd.Flags().GetString("date")
		date, err := parseDate(dateStr)
		if err != nil {
			return fmt.Errorf("invalid date: %w", err)
		}

		var dueDate *time.Time
		if cmd.Flags().Changed("due") {
			dueStr, _ := cmd.Flags().GetString("due")
			due, err := parseDate(dueStr)
			if err != nil {
				return fmt.Errorf("invalid due date: %w", err)
			}
			dueDate = &due
		}

		res, err := appInstance.InvoiceService.Create(ctx, clientID, date, dueDate)
		if errors.Is(err, service.ErrNotRegenerated) {
			fmt.Printf("✓ Invoice created: %s (ID: %d)\n", res.Invoice.Number, res.Invoice.ID)
			fmt.Printf("  Entries claimed: %d\n", res.Claimed)
			fmt.Println(tui.WarningStyle.Render("! Totals were not saved; run: invoicer invoices regenerate " + res.Invoice.Number))
			return err
		}
		if err != nil {
			if errors.Is(err, repository.ErrDuplicateNumber) {
				return fmt.Errorf("an invoice for this client already exists on %s: %w", date.Format("2006-01-02"), err)
			}
			return fmt.Errorf("failed to create invoice: %w", err)
		}

		fmt.Printf("✓ Invoice created: %s (ID: %d)\n", res.Invoice.Number, res.Invoice.ID)
		fmt.Printf("  Entries claimed: %d\n", res.Claimed)
		fmt.Printf("  Amount: %s, due %s\n", money(res.Invoice.Amount), res.Invoice.DueDate.Format("2006-01-02"))
		fmt.Println()
		fmt.Println(tui.BoxStyle.Render(res.Invoice.Description))
		return nil
	},
}

var invoicesPreviewCmd = &cobra.Command{
	Use:   "preview [client]",
	Short: "Show what an invoice would contain without creating it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		clientID, err := resolveClientID(ctx, args[0])
		if err != nil {
			return err
		}

		dateStr, _ := cmd.Flags().GetString("date")
		date, err := parseDate(dateStr)
		if err != nil {
			return fmt.Errorf("invalid date: %w", err)
		}

		p, err := appInstance.InvoiceService.Preview(ctx, clientID, date)
		if err != nil {
			return fmt.Errorf("failed to preview invoice: %w", err)
		}

		fmt.Println(tui.TitleStyle.Render(fmt.Sprintf("Invoice %s for %s", p.Number, p.Client.Name)))
		fmt.Printf("Date: %s   Due: %s\n", p.Date.Format("2006-01-02"), p.DueDate.Format("2006-01-02"))
		fmt.Printf("Entries: %d   Amount: %s\n", len(p.Entries), money(p.Details.Amount))
		if p.Details.Summary != "" {
			fmt.Println(tui.MutedStyle.Render(p.Details.Summary))
		}
		if !p.Details.Breakdown.Empty {
			fmt.Println()
			for _, line := range p.Details.Breakdown.Lines {
				text := "  " + billing.FormatLine(line)
				if line.MixedRates {
					text += tui.WarningStyle.Render(" (mixed rates)")
				}
				fmt.Println(text)
			}
		}
		fmt.Println()
		fmt.Println(tui.BoxStyle.Render(p.Details.Description))
		fmt.Println(tui.MutedStyle.Render("Nothing was saved."))
		return nil
	},
}

var invoicesShowCmd = &cobra.Command{
	Use:   "show [id|number]",
	Short: "Show invoice details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		id, err := resolveInvoiceID(ctx, args[0])
		if err != nil {
			return err
		}

		inv, err := appInstance.InvoiceService.GetInvoice(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get invoice: %w", err)
		}

		entries, err := appInstance.EntryService.ListEntries(ctx, repository.EntryFilter{InvoiceID: &inv.ID})
		if err != nil {
			return fmt.Errorf("failed to list entries: %w", err)
		}

		clientName := fmt.Sprintf("Client #%d", inv.ClientID)
		if inv.Client != nil {
			clientName = inv.Client.Name
		}

		fmt.Println(tui.TitleStyle.Render(fmt.Sprintf("Invoice %s", inv.Number)))
		fmt.Printf("Client:  %s\n", clientName)
		fmt.Printf("Date:    %s\n", inv.Date.Format("2006-01-02"))
		fmt.Printf("Due:     %s\n", inv.DueDate.Format("2006-01-02"))
		fmt.Printf("Status:  %s\n", tui.StatusLabel(inv, inv.IsOverdue(time.Now())))
		if inv.SentAt != nil {
			fmt.Printf("Sent:    %s\n", inv.SentAt.Local().Format("2006-01-02 15:04"))
		}
		if inv.PaidAt != nil {
			fmt.Printf("Paid:    %s\n", inv.PaidAt.Local().Format("2006-01-02 15:04"))
		}
		fmt.Printf("Amount:  %s\n", money(inv.Amount))
		fmt.Println()
		fmt.Println(tui.BoxStyle.Render(inv.Description))

		if len(entries) > 0 {
			fmt.Println()
			fmt.Printf("%-5s %-10s %-7s %-10s %s\n", "ID", "Date", "Hours", "Rate", "Description")
			for _, e := range entries {
				fmt.Printf("%-5d %-10s %-7s %-10s %s\n",
					e.ID,
					e.Date.Format("2006-01-02"),
					e.Hours.StringFixed(2),
					money(e.Rate),
					truncate(e.Description, 50),
				)
			}
		}
		return nil
	},
}

var invoicesAddEntriesCmd = &cobra.Command{
	Use:   "add-entries [invoice] [entry_id...]",
	Short: "Link unbilled entries to an invoice",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		invoiceID, err := resolveInvoiceID(ctx, args[0])
		if err != nil {
			return err
		}
		entryIDs, err := parseIDs(args[1:])
		if err != nil {
			return err
		}

		res, err := appInstance.LinkageService.Associate(ctx, invoiceID, entryIDs)
		if err != nil {
			return fmt.Errorf("failed to add entries: %w", err)
		}

		for _, id := range res.Linked {
			fmt.Printf("✓ Entry %d linked\n", id)
		}
		for _, id := range res.Unchanged {
			fmt.Printf("- Entry %d already on this invoice\n", id)
		}
		for _, s := range res.Skipped {
			fmt.Println(tui.WarningStyle.Render(fmt.Sprintf("! Entry %d skipped: %v", s.EntryID, s.Err)))
		}
		if len(res.Linked) > 0 {
			fmt.Printf("Invoice %s now %s\n", res.Invoice.Number, money(res.Invoice.Amount))
		}
		return nil
	},
}

var invoicesRemoveEntryCmd = &cobra.Command{
	Use:   "remove-entry [invoice] [entry_id]",
	Short: "Unlink an entry from an invoice",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		invoiceID, err := resolveInvoiceID(ctx, args[0])
		if err != nil {
			return err
		}
		entryID, err := strconv.ParseInt(args[1], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid entry ID: %w", err)
		}

		ok, err := confirm(cmd, fmt.Sprintf("Remove entry %d from invoice %s?", entryID, args[0]))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Cancelled.")
			return nil
		}

		inv, err := appInstance.LinkageService.Disassociate(ctx, invoiceID, entryID)
		if err != nil {
			if errors.Is(err, service.ErrEntryNotOnInvoice) {
				return fmt.Errorf("entry %d is not on invoice %s", entryID, args[0])
			}
			return fmt.Errorf("failed to remove entry: %w", err)
		}

		fmt.Printf("✓ Entry %d removed, invoice %s now %s\n", entryID, inv.Number, money(inv.Amount))
		return nil
	},
}

var invoicesRegenerateCmd = &cobra.Command{
	Use:   "regenerate [id|number]",
	Short: "Recompute amount and description from linked entries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		id, err := resolveInvoiceID(ctx, args[0])
		if err != nil {
			return err
		}

		regenerate := appInstance.LinkageService.Regenerate
		if keep, _ := cmd.Flags().GetBool("keep-description"); keep {
			regenerate = appInstance.LinkageService.RefreshSummary
		}

		inv, err := regenerate(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to regenerate invoice: %w", err)
		}

		fmt.Printf("✓ Invoice %s regenerated: %s\n", inv.Number, money(inv.Amount))
		fmt.Println()
		fmt.Println(tui.BoxStyle.Render(inv.Description))
		return nil
	},
}

var invoicesDescribeCmd = &cobra.Command{
	Use:   "describe [id|number] [text]",
	Short: "Replace an invoice description with your own text",
	Long: `Replace an invoice description with your own text. The amount and the
"Total Hours (N)" summary line are refreshed from the linked entries, so an
existing summary line in the text is replaced rather than repeated.`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		id, err := resolveInvoiceID(ctx, args[0])
		if err != nil {
			return err
		}

		inv, err := appInstance.InvoiceService.SetDescription(ctx, id, args[1])
		if err != nil {
			return fmt.Errorf("failed to update description: %w", err)
		}

		fmt.Printf("✓ Invoice %s description updated\n", inv.Number)
		fmt.Println()
		fmt.Println(tui.BoxStyle.Render(inv.Description))
		return nil
	},
}

// lifecycleCmd builds the mark-sent / mark-paid commands, which share an --at flag
func lifecycleCmd(use, short, verb string, apply func(cmd *cobra.Command, id int64, at time.Time) (*domain.Invoice, error)) *cobra.Command {
	c := &cobra.Command{
		Use:   use + " [id|number]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := resolveInvoiceID(cmd.Context(), args[0])
			if err != nil {
				return err
			}

			atStr, _ := cmd.Flags().GetString("at")
			at, err := parseTimestamp(atStr)
			if err != nil {
				return fmt.Errorf("invalid timestamp: %w", err)
			}

			inv, err := apply(cmd, id, at)
			if err != nil {
				return fmt.Errorf("failed to mark invoice %s: %w", verb, err)
			}

			fmt.Printf("✓ Invoice %s marked %s\n", inv.Number, verb)
			return nil
		},
	}
	c.Flags().String("at", "", "When it happened (RFC3339 or YYYY-MM-DD, default now)")
	return c
}

var invoicesMarkSentCmd = lifecycleCmd("mark-sent", "Mark an invoice as sent", "sent",
	func(cmd *cobra.Command, id int64, at time.Time) (*domain.Invoice, error) {
		return appInstance.InvoiceService.MarkSent(cmd.Context(), id, at)
	})

var invoicesMarkPaidCmd = lifecycleCmd("mark-paid", "Mark an invoice as paid", "paid",
	func(cmd *cobra.Command, id int64, at time.Time) (*domain.Invoice, error) {
		return appInstance.InvoiceService.MarkPaid(cmd.Context(), id, at)
	})

var invoicesReopenCmd = &cobra.Command{
	Use:   "reopen [id|number]",
	Short: "Return an invoice to draft",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		id, err := resolveInvoiceID(ctx, args[0])
		if err != nil {
			return err
		}

		inv, err := appInstance.InvoiceService.Reopen(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to reopen invoice: %w", err)
		}

		fmt.Printf("✓ Invoice %s reopened\n", inv.Number)
		return nil
	},
}

var invoicesReconcileCmd = &cobra.Command{
	Use:   "reconcile",
	Short: "Claim entries for invoices that have none",
	RunE: func(cmd *cobra.Command, args []string) error {
		res, err := appInstance.InvoiceService.Reconcile(cmd.Context())
		if err != nil {
			return fmt.Errorf("failed to reconcile invoices: %w", err)
		}

		for _, inv := range res.Repaired {
			fmt.Printf("✓ Invoice %s repaired: %s\n", inv.Number, money(inv.Amount))
		}
		fmt.Printf("Checked %d invoice(s) without entries, repaired %d\n", res.Checked, len(res.Repaired))
		return nil
	},
}

var invoicesParseCmd = &cobra.Command{
	Use:         "parse [number]",
	Short:       "Split an invoice number into client code and date",
	Args:        cobra.ExactArgs(1),
	Annotations: map[string]string{standalone: "true"},
	RunE: func(cmd *cobra.Command, args []string) error {
		code, ok := billing.ExtractClientCode(args[0])
		if !ok {
			return fmt.Errorf("%q is not a valid invoice number", args[0])
		}
		date, _ := billing.ExtractDate(args[0])

		fmt.Printf("Client code: %s\n", code)
		fmt.Printf("Date:        %s\n", date.Format("2006-01-02"))
		return nil
	},
}

var invoicesDeleteCmd = &cobra.Command{
	Use:   "delete [id|number]",
	Short: "Delete an invoice and release its entries",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		id, err := resolveInvoiceID(ctx, args[0])
		if err != nil {
			return err
		}

		ok, err := confirm(cmd, fmt.Sprintf("Delete invoice %s? Its entries become unbilled.", args[0]))
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("Cancelled.")
			return nil
		}

		if err := appInstance.InvoiceService.Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to delete invoice: %w", err)
		}

		fmt.Printf("✓ Invoice %s deleted\n", args[0])
		return nil
	},
}

func init() {
	invoicesCmd.AddCommand(invoicesListCmd)
	invoicesCmd.AddCommand(invoicesCreateCmd)
	invoicesCmd.AddCommand(invoicesPreviewCmd)
	invoicesCmd.AddCommand(invoicesShowCmd)
	invoicesCmd.AddCommand(invoicesAddEntriesCmd)
	invoicesCmd.AddCommand(invoicesRemoveEntryCmd)
	invoicesCmd.AddCommand(invoicesRegenerateCmd)
	invoicesCmd.AddCommand(invoicesDescribeCmd)
	invoicesCmd.AddCommand(invoicesMarkSentCmd)
	invoicesCmd.AddCommand(invoicesMarkPaidCmd)
	invoicesCmd.AddCommand(invoicesReopenCmd)
	invoicesCmd.AddCommand(invoicesReconcileCmd)
	invoicesCmd.AddCommand(invoicesParseCmd)
	invoicesCmd.AddCommand(invoicesDeleteCmd)

	// List flags
	invoicesListCmd.Flags().String("client", "", "Filter by client (ID, code or name)")
	invoicesListCmd.Flags().String("status", "", "Filter by status (draft, sent, paid)")
	invoicesListCmd.Flags().Bool("overdue", false, "Only unpaid invoices past their due date")

	// Create flags
	invoicesCreateCmd.Flags().String("date", "today", "Invoice date (YYYY-MM-DD); its month selects the entries")
	invoicesCreateCmd.Flags().String("due", "", "Due date (default: client terms or configured days)")

	// Preview flags
	invoicesPreviewCmd.Flags().String("date", "today", "Invoice date (YYYY-MM-DD)")

	invoicesRegenerateCmd.Flags().Bool("keep-description", false, "Keep the current text and only refresh the amount and summary line")

	invoicesRemoveEntryCmd.Flags().BoolP("yes", "y", false, "Skip confirmation")
	invoicesDeleteCmd.Flags().BoolP("yes", "y", false, "Skip confirmation")
}
