package cli

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/andy/invoicer/internal/app"
	"github.com/andy/invoicer/internal/config"
	"github.com/andy/invoicer/internal/repository"
	"github.com/andy/invoicer/internal/tui"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"
)

var (
	appInstance *app.App
	configFlag  string
)

// standalone marks commands that run without opening the database
const standalone = "standalone"

var rootCmd = &cobra.Command{
	Use:   "invoicer",
	Short: "Turn logged hours into numbered, narrated invoices",
	Long: `Invoicer keeps time entries for your clients and turns each month of
billable work into an invoice: numbered from the client code and date, with
an amount derived from the linked entries and a written description.

Entries stay linked to the invoice that claimed them; adding or removing one
recomputes the invoice.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if appInstance != nil || skipsApp(cmd) {
			return nil
		}
		a, err := app.New(cmd.Context(), config.ResolvePath(configFlag))
		if err != nil {
			return fmt.Errorf("failed to initialize app: %w", err)
		}
		appInstance = a
		return nil
	},
}

// Execute runs the root command and closes the app it opened
func Execute(ctx context.Context) error {
	err := rootCmd.ExecuteContext(ctx)
	if appInstance != nil {
		err = errors.Join(err, appInstance.Close())
		appInstance = nil
	}
	return err
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFlag, "config", "", "config file (default $INVOICER_CONFIG or ~/.config/invoicer/config.yaml)")

	rootCmd.AddCommand(clientsCmd)
	rootCmd.AddCommand(entriesCmd)
	rootCmd.AddCommand(invoicesCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(resetCmd)
}

// skipsApp reports whether cmd runs without opening the database
func skipsApp(cmd *cobra.Command) bool {
	switch cmd.Name() {
	case "help", "completion", cobra.ShellCompRequestCmd, cobra.ShellCompNoDescRequestCmd:
		return true
	}
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations[standalone] == "true" {
			return true
		}
	}
	return false
}

// resolveClientID accepts a numeric ID, a client code or a client name
func resolveClientID(ctx context.Context, arg string) (int64, error) {
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return id, nil
	}

	if client, err := appInstance.ClientRepo.GetByCode(ctx, strings.ToUpper(arg)); err == nil {
		return client.ID, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return 0, err
	}

	client, err := appInstance.ClientRepo.GetByName(ctx, arg)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return 0, fmt.Errorf("no client with ID, code or name %q", arg)
		}
		return 0, err
	}
	return client.ID, nil
}

// resolveInvoiceID accepts a numeric ID or an invoice number
func resolveInvoiceID(ctx context.Context, arg string) (int64, error) {
	if id, err := strconv.ParseInt(arg, 10, 64); err == nil {
		return id, nil
	}

	inv, err := appInstance.InvoiceService.GetByNumber(ctx, arg)
	if err != nil {
		return 0, err
	}
	return inv.ID, nil
}

// parseDate parses YYYY-MM-DD, "today" or "yesterday"
func parseDate(s string) (time.Time, error) {
	now := time.Now()
	switch strings.ToLower(s) {
	case "", "today":
		return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC), nil
	case "yesterday":
		y := now.AddDate(0, 0, -1)
		return time.Date(y.Year(), y.Month(), y.Day(), 0, 0, 0, 0, time.UTC), nil
	}
	return time.Parse("2006-01-02", s)
}

// parseMonth parses YYYY-MM into the first day of that month
func parseMonth(s string) (time.Time, error) {
	return time.Parse("2006-01", s)
}

// parseTimestamp parses RFC3339 or a plain date, defaulting to now
func parseTimestamp(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t, nil
	}
	return parseDate(s)
}

func parseIDs(args []string) ([]int64, error) {
	ids := make([]int64, 0, len(args))
	for _, a := range args {
		id, err := strconv.ParseInt(a, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid ID %q: %w", a, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func parseDecimal(name, s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", name, s, err)
	}
	return d, nil
}

func money(d decimal.Decimal) string {
	return "$" + d.StringFixed(2)
}

// confirm asks before a destructive action unless --yes was given
func confirm(cmd *cobra.Command, prompt string) (bool, error) {
	if yes, _ := cmd.Flags().GetBool("yes"); yes {
		return true, nil
	}
	return tui.Confirm(prompt)
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
