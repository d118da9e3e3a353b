package billing

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/andy/invoicer/internal/domain"
	"github.com/shopspring/decimal"
)

const monthLayout = "January 2006"

// Narrator turns a non-empty breakdown into an invoice description
type Narrator interface {
	Narrate(ctx context.Context, b *Breakdown) string
}

// Details is what an invoice takes from its linked entries
type Details struct {
	Amount      decimal.Decimal
	Summary     string // "Total Hours (N)", empty when there are no entries
	Description string
	Breakdown   *Breakdown
}

// Generator aggregates entries and hands the result to a narrator
type Generator struct {
	narrator Narrator
}

// NewGenerator creates a generator. A nil narrator means the template one.
func NewGenerator(narrator Narrator) *Generator {
	if narrator == nil {
		narrator = TemplateNarrator{}
	}
	return &Generator{narrator: narrator}
}

// Generate produces amount, summary and description for entries. The amount
// always comes from the aggregation, whatever the narrator does.
func (g *Generator) Generate(ctx context.Context, entries []*domain.TimeEntry, period time.Time) *Details {
	d := Summarize(entries, period)
	if d.Breakdown.Empty {
		d.Description = EmptyDescription(period)
		return d
	}
	d.Description = g.narrator.Narrate(ctx, d.Breakdown)
	return d
}

// Summarize computes amount and summary line without writing a description
func Summarize(entries []*domain.TimeEntry, period time.Time) *Details {
	b := Aggregate(entries, period)
	if b.Empty {
		return &Details{Amount: decimal.Zero, Breakdown: b}
	}
	return &Details{
		Amount:    b.Total,
		Summary:   SummaryLine(b.TotalHours),
		Breakdown: b,
	}
}

// TemplateNarrator builds the description from a fixed layout
type TemplateNarrator struct{}

func (TemplateNarrator) Narrate(_ context.Context, b *Breakdown) string {
	return Describe(b)
}

// Describe renders the deterministic description of a breakdown
func Describe(b *Breakdown) string {
	if b.Empty {
		return EmptyDescription(b.Period)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Professional Services for %s\n\n", b.Period.Format(monthLayout))
	for _, line := range b.Lines {
		fmt.Fprintf(&sb, "- %s\n", FormatLine(line))
	}
	fmt.Fprintf(&sb, "\nTotal Hours: %s\nTotal Amount: $%s",
		b.TotalHours.StringFixed(2),
		b.Total.StringFixed(2),
	)
	return sb.String()
}

// FormatLine renders "<description> (<hours> hours @ $<rate>/hr) = $<amount>"
func FormatLine(line Line) string {
	return fmt.Sprintf("%s (%s hours @ $%s/hr) = $%s",
		line.Description,
		line.Hours.StringFixed(2),
		line.Rate.StringFixed(2),
		line.Amount.StringFixed(2),
	)
}

// SummaryLine renders "Total Hours (<hours>)"
func SummaryLine(hours decimal.Decimal) string {
	return fmt.Sprintf("Total Hours (%s)", hours.StringFixed(2))
}

// EmptyDescription is the description of an invoice with no entries
func EmptyDescription(period time.Time) string {
	return fmt.Sprintf("No billable time entries found for %s.", period.Format(monthLayout))
}

var summaryLinePattern = regexp.MustCompile(`^Total Hours \(\d+(\.\d+)?\)$`)

// ReplaceSummary drops any existing "Total Hours (N)" lines from text and
// appends summary, so refreshing a hand-edited description never stacks
// summary lines.
func ReplaceSummary(text, summary string) string {
	kept := make([]string, 0)
	for _, line := range strings.Split(text, "\n") {
		if summaryLinePattern.MatchString(strings.TrimSpace(line)) {
			continue
		}
		kept = append(kept, line)
	}

	body := strings.TrimSpace(strings.Join(kept, "\n"))
	if summary == "" {
		return body
	}
	if body == "" {
		return summary
	}
	return body + "\n" + summary
}
