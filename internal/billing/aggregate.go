package billing

import (
	"time"

	"github.com/andy/invoicer/internal/domain"
	"github.com/shopspring/decimal"
)

// Line is one consolidated invoice line: every entry sharing a description.
type Line struct {
	Description string
	Hours       decimal.Decimal
	Rate        decimal.Decimal // rate of the first entry, for display
	Amount      decimal.Decimal // sum of each entry's own hours * rate
	MixedRates  bool            // entries in the line do not share one rate
	EntryCount  int
}

// Breakdown is the aggregated view of a set of time entries
type Breakdown struct {
	Period     time.Time
	Lines      []Line
	TotalHours decimal.Decimal
	Total      decimal.Decimal
	Empty      bool
}

// Aggregate groups entries by exact description, in first-seen order. Grand
// totals are summed over the entries themselves so line grouping never
// changes the financial result. The caller has already filtered by client,
// billability and period; period is only used for captions.
func Aggregate(entries []*domain.TimeEntry, period time.Time) *Breakdown {
	s := &Breakdown{
		Period:     period,
		TotalHours: decimal.Zero,
		Total:      decimal.Zero,
	}
	if len(entries) == 0 {
		s.Empty = true
		return s
	}

	index := make(map[string]int)
	for _, e := range entries {
		amount := e.Amount()
		s.TotalHours = s.TotalHours.Add(e.Hours)
		s.Total = s.Total.Add(amount)

		i, ok := index[e.Description]
		if !ok {
			index[e.Description] = len(s.Lines)
			s.Lines = append(s.Lines, Line{
				Description: e.Description,
				Hours:       e.Hours,
				Rate:        e.Rate,
				Amount:      amount,
				EntryCount:  1,
			})
			continue
		}

		line := &s.Lines[i]
		line.Hours = line.Hours.Add(e.Hours)
		line.Amount = line.Amount.Add(amount)
		line.EntryCount++
		if !e.Rate.Equal(line.Rate) {
			line.MixedRates = true
		}
	}

	return s
}
