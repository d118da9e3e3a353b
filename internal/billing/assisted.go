package billing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// MaxNarrativeLength is the length the external service is asked to stay under
const MaxNarrativeLength = 600

// DefaultNarrativeAttempts is the total number of calls made before falling
// back to the template description.
const DefaultNarrativeAttempts = 2

var ErrEmptyNarrative = errors.New("narrative service returned no text")

// TextGenerator is an external text generation service
type TextGenerator interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// AssistedConfig tunes the retry policy of an AssistedNarrator
type AssistedConfig struct {
	Attempts   int
	RetryDelay time.Duration
}

// AssistedNarrator asks a TextGenerator for the description and falls back to
// another narrator when every attempt fails or returns nothing. It never
// reports an error to its caller.
type AssistedNarrator struct {
	generator TextGenerator
	fallback  Narrator
	attempts  int
	delay     time.Duration
	logger    zerolog.Logger
}

// NewAssistedNarrator wraps generator. A nil fallback means the template
// narrator.
func NewAssistedNarrator(generator TextGenerator, fallback Narrator, cfg AssistedConfig, logger zerolog.Logger) *AssistedNarrator {
	if fallback == nil {
		fallback = TemplateNarrator{}
	}
	attempts := cfg.Attempts
	if attempts <= 0 {
		attempts = DefaultNarrativeAttempts
	}
	return &AssistedNarrator{
		generator: generator,
		fallback:  fallback,
		attempts:  attempts,
		delay:     cfg.RetryDelay,
		logger:    logger.With().Str("component", "narrator").Logger(),
	}
}

func (n *AssistedNarrator) Narrate(ctx context.Context, b *Breakdown) string {
	prompt := BuildPrompt(b)

	var text string
	attempt := 0
	operation := func() error {
		attempt++
		out, err := n.generator.GenerateText(ctx, prompt)
		if err == nil {
			out, err = normalizeNarrative(out, b.TotalHours)
		}
		if err != nil {
			n.logger.Warn().
				Err(err).
				Int("attempt", attempt).
				Int("max_attempts", n.attempts).
				Msg("narrative generation failed")
			return err
		}
		text = out
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(n.delay), uint64(n.attempts-1)),
		ctx,
	)
	if err := backoff.Retry(operation, policy); err != nil {
		n.logger.Info().Int("attempts", attempt).Msg("using template description")
		return n.fallback.Narrate(ctx, b)
	}

	return text
}

// BuildPrompt renders the instruction sent to the text generation service
func BuildPrompt(b *Breakdown) string {
	month := b.Period.Format(monthLayout)

	var sb strings.Builder
	fmt.Fprintf(&sb, "Write a concise invoice description for professional services performed during %s.\n\n", month)
	sb.WriteString("Rules:\n")
	fmt.Fprintf(&sb, "- Begin with exactly: %q\n", NarrativeOpening(b.Period))
	sb.WriteString("- Summarize the work as plain prose. Do not mention rates or dollar amounts.\n")
	sb.WriteString("- Write in the third person. Never use \"I\", \"we\", \"our\" or \"us\".\n")
	sb.WriteString("- Do not use em dashes or en dashes.\n")
	fmt.Fprintf(&sb, "- Stay under %d characters.\n", MaxNarrativeLength)
	fmt.Fprintf(&sb, "- Finish with a blank line followed by exactly: %s\n\n", SummaryLine(b.TotalHours))
	sb.WriteString("Work performed:\n")
	for _, line := range b.Lines {
		fmt.Fprintf(&sb, "- %s\n", FormatLine(line))
	}
	fmt.Fprintf(&sb, "\nTotal hours: %s\n", b.TotalHours.StringFixed(2))
	fmt.Fprintf(&sb, "Total amount (context only): $%s\n", b.Total.StringFixed(2))
	return sb.String()
}

// NarrativeOpening is the phrase every generated description starts with
func NarrativeOpening(period time.Time) string {
	return "Professional services for " + period.Format(monthLayout)
}

var dashReplacer = strings.NewReplacer("—", "-", "–", "-")

// normalizeNarrative trims generated text, replaces em/en dashes and makes
// sure it ends with exactly one canonical summary line.
func normalizeNarrative(text string, hours decimal.Decimal) (string, error) {
	lines := strings.Split(dashReplacer.Replace(strings.TrimSpace(text)), "\n")
	for len(lines) > 0 {
		last := strings.TrimSpace(lines[len(lines)-1])
		if last != "" && !summaryLinePattern.MatchString(last) {
			break
		}
		lines = lines[:len(lines)-1]
	}

	body := strings.TrimSpace(strings.Join(lines, "\n"))
	if body == "" {
		return "", ErrEmptyNarrative
	}
	return body + "\n\n" + SummaryLine(hours), nil
}
