package cli

import (
	"fmt"
	"strings"

	"github.com/andy/invoicer/internal/domain"
	"github.com/spf13/cobra"
)

var clientsCmd = &cobra.Command{
	Use:   "clients",
	Short: "Manage clients",
	Long:  `List, add, edit, and archive clients. A client's code prefixes its invoice numbers.`,
}

var clientsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all clients",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		includeArchived, _ := cmd.Flags().GetBool("archived")

		clients, err := appInstance.ClientRepo.List(ctx, includeArchived)
		if err != nil {
			return fmt.Errorf("failed to list clients: %w", err)
		}

		if len(clients) == 0 {
			fmt.Println("No clients found")
			return nil
		}

		fmt.Printf("%-5s %-28s %-10s %-12s %-6s %-10s\n", "ID", "Name", "Code", "Rate", "Terms", "Status")
		fmt.Println("--------------------------------------------------------------------------")

		for _, client := range clients {
			status := "Active"
			if client.IsArchived {
				status = "Archived"
			}
			terms := "-"
			if client.PaymentTermsDays > 0 {
				terms = fmt.Sprintf("%dd", client.PaymentTermsDays)
			}
			fmt.Printf("%-5d %-28s %-10s %-12s %-6s %-10s\n",
				client.ID,
				truncate(client.Name, 28),
				client.Code,
				money(client.DefaultRate),
				terms,
				status,
			)
		}

		fmt.Printf("\nTotal: %d client(s)\n", len(clients))
		return nil
	},
}

var clientsAddCmd = &cobra.Command{
	Use:   "add [name]",
	Short: "Add a new client",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		code, _ := cmd.Flags().GetString("code")
		rateStr, _ := cmd.Flags().GetString("rate")
		rate, err := parseDecimal("rate", rateStr)
		if err != nil {
			return err
		}

		client := domain.NewClient(args[0], code, rate)
		client.PaymentTermsDays, _ = cmd.Flags().GetInt("terms")
		client.Email, _ = cmd.Flags().GetString("email")
		client.Notes, _ = cmd.Flags().GetString("notes")

		if err := appInstance.ClientRepo.Create(ctx, client); err != nil {
			return fmt.Errorf("failed to create client: %w", err)
		}

		fmt.Printf("✓ Client created: %s (ID: %d, code %s)\n", client.Name, client.ID, client.Code)
		fmt.Printf("  Default Rate: %s/hr\n", money(client.DefaultRate))

		return nil
	},
}

var clientsEditCmd = &cobra.Command{
	Use:   "edit [id|code|name]",
	Short: "Edit an existing client",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		id, err := resolveClientID(ctx, args[0])
		if err != nil {
			return err
		}

		client, err := appInstance.ClientRepo.GetByID(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to get client: %w", err)
		}

		// Update fields if flags provided
		if cmd.Flags().Changed("name") {
			client.Name, _ = cmd.Flags().GetString("name")
		}
		if cmd.Flags().Changed("code") {
			code, _ := cmd.Flags().GetString("code")
			client.Code = strings.ToUpper(strings.TrimSpace(code))
		}
		if cmd.Flags().Changed("rate") {
			rateStr, _ := cmd.Flags().GetString("rate")
			if client.DefaultRate, err = parseDecimal("rate", rateStr); err != nil {
				return err
			}
		}
		if cmd.Flags().Changed("terms") {
			client.PaymentTermsDays, _ = cmd.Flags().GetInt("terms")
		}
		if cmd.Flags().Changed("email") {
			client.Email, _ = cmd.Flags().GetString("email")
		}
		if cmd.Flags().Changed("notes") {
			client.Notes, _ = cmd.Flags().GetString("notes")
		}

		if err := appInstance.ClientRepo.Update(ctx, client); err != nil {
			return fmt.Errorf("failed to update client: %w", err)
		}

		fmt.Printf("✓ Client updated: %s\n", client.Name)
		return nil
	},
}

var clientsArchiveCmd = &cobra.Command{
	Use:   "archive [id|code|name]",
	Short: "Archive a client",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		id, err := resolveClientID(ctx, args[0])
		if err != nil {
			return err
		}

		if err := appInstance.ClientRepo.Archive(ctx, id); err != nil {
			return fmt.Errorf("failed to archive client: %w", err)
		}

		fmt.Printf("✓ Client archived (ID: %d)\n", id)
		return nil
	},
}

var clientsUnarchiveCmd = &cobra.Command{
	Use:   "unarchive [id|code|name]",
	Short: "Unarchive a client",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		id, err := resolveClientID(ctx, args[0])
		if err != nil {
			return err
		}

		if err := appInstance.ClientRepo.Unarchive(ctx, id); err != nil {
			return fmt.Errorf("failed to unarchive client: %w", err)
		}

		fmt.Printf("✓ Client unarchived (ID: %d)\n", id)
		return nil
	},
}

func init() {
	clientsCmd.AddCommand(clientsListCmd)
	clientsCmd.AddCommand(clientsAddCmd)
	clientsCmd.AddCommand(clientsEditCmd)
	clientsCmd.AddCommand(clientsArchiveCmd)
	clientsCmd.AddCommand(clientsUnarchiveCmd)

	// List flags
	clientsListCmd.Flags().Bool("archived", false, "Include archived clients")

	// Add flags
	clientsAddCmd.Flags().String("code", "", "Short alphanumeric code used in invoice numbers (required)")
	clientsAddCmd.MarkFlagRequired("code")
	clientsAddCmd.Flags().String("rate", "0", "Default hourly rate")
	clientsAddCmd.Flags().Int("terms", 0, "Payment terms in days (0 = configured default)")
	clientsAddCmd.Flags().String("email", "", "Client email")
	clientsAddCmd.Flags().String("notes", "", "Notes about the client")

	// Edit flags
	clientsEditCmd.Flags().String("name", "", "New name")
	clientsEditCmd.Flags().String("code", "", "New invoice code")
	clientsEditCmd.Flags().String("rate", "", "New default hourly rate")
	clientsEditCmd.Flags().Int("terms", 0, "New payment terms in days")
	clientsEditCmd.Flags().String("email", "", "New email")
	clientsEditCmd.Flags().String("notes", "", "New notes")
}
