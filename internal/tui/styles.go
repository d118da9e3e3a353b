package tui

import (
	"github.com/andy/invoicer/internal/domain"
	"github.com/charmbracelet/lipgloss"
)

var (
	// Colors
	primaryColor = lipgloss.Color("39")  // Blue
	mutedColor   = lipgloss.Color("241") // Gray
	successColor = lipgloss.Color("76")  // Green
	warningColor = lipgloss.Color("214") // Orange
	errorColor   = lipgloss.Color("196") // Red

	TitleStyle   = lipgloss.NewStyle().Bold(true).Foreground(primaryColor)
	MutedStyle   = lipgloss.NewStyle().Foreground(mutedColor)
	SuccessStyle = lipgloss.NewStyle().Foreground(successColor)
	WarningStyle = lipgloss.NewStyle().Foreground(warningColor)
	ErrorStyle   = lipgloss.NewStyle().Bold(true).Foreground(errorColor)

	// Box around invoice descriptions
	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("63")).
			Padding(0, 1)
)

// StatusLabel renders an invoice status, flagging overdue invoices
func StatusLabel(inv *domain.Invoice, overdue bool) string {
	if overdue {
		return ErrorStyle.Render("overdue")
	}
	switch inv.Status() {
	case domain.InvoiceStatusPaid:
		return SuccessStyle.Render(string(domain.InvoiceStatusPaid))
	case domain.InvoiceStatusSent:
		return WarningStyle.Render(string(domain.InvoiceStatusSent))
	default:
		return MutedStyle.Render(string(domain.InvoiceStatusDraft))
	}
}
