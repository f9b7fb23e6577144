// Package insights turns report figures into short written observations,
// asking a text model first and falling back to fixed rules.
package insights

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/Gargee-Buva/Finora/internal/domain"
	"github.com/Gargee-Buva/Finora/internal/money"
)

// TextGenerator produces free text for a prompt.
type TextGenerator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// Input holds the figures insights are written about. Amounts are in rupees.
// SavingsRate keeps two decimals; it is rounded only for display.
type Input struct {
	Period      string
	Income      float64
	Expenses    float64
	Balance     float64
	SavingsRate float64
	Categories  []domain.CategoryTotal
}

// Generator writes insights for a report.
type Generator struct {
	gen      TextGenerator
	log      zerolog.Logger
	locale   string
	currency string
}

// NewGenerator creates a Generator. A nil gen always uses the fallback.
func NewGenerator(gen TextGenerator, locale, currency string, log zerolog.Logger) *Generator {
	if locale == "" {
		locale = money.DefaultLocale
	}
	if currency == "" {
		currency = money.DefaultCurrency
	}
	return &Generator{gen: gen, log: log, locale: locale, currency: currency}
}

// Generate returns the model's insights for in. It never fails: model errors
// and unusable output fall back to the rule-based insights.
func (g *Generator) Generate(ctx context.Context, in Input) []string {
	if g.gen == nil {
		return g.Fallback(in)
	}

	text, err := g.gen.Generate(ctx, g.Prompt(in))
	if err != nil {
		g.log.Warn().Err(err).Str("period", in.Period).Msg("Insight generation failed, using fallback")
		return g.Fallback(in)
	}

	insights, ok := Parse(text)
	if !ok {
		g.log.Info().Str("period", in.Period).Msg("Model returned no usable insights, using fallback")
		return g.Fallback(in)
	}
	return insights
}

// Prompt builds the instruction sent to the model.
func (g *Generator) Prompt(in Input) string {
	var b strings.Builder
	b.WriteString("You are a personal finance assistant writing a short monthly summary.\n\n")
	fmt.Fprintf(&b, "Period: %s\n", in.Period)
	fmt.Fprintf(&b, "Total income: %s\n", g.format(in.Income))
	fmt.Fprintf(&b, "Total expenses: %s\n", g.format(in.Expenses))
	fmt.Fprintf(&b, "Available balance: %s\n", g.format(in.Balance))
	fmt.Fprintf(&b, "Savings rate: %s%%\n", percent(in.SavingsRate))

	b.WriteString("Spending by category:\n")
	if len(in.Categories) == 0 {
		b.WriteString("- none\n")
	}
	for _, c := range in.Categories {
		fmt.Fprintf(&b, "- %s: %s (%s%%)\n", c.Name, g.format(c.Amount), percent(c.Percent))
	}

	b.WriteString("\nRules:\n" +
		"- Write 3 to 5 short, specific, actionable insights about this data.\n" +
		"- Quote amounts with the currency symbol shown above.\n" +
		"- Output a JSON array of strings and nothing else.\n" +
		"- Do NOT wrap the response in code fences.\n")
	return b.String()
}

// Fallback writes insights from the figures alone. It performs no I/O.
func (g *Generator) Fallback(in Input) []string {
	insights := []string{
		fmt.Sprintf("Report for %s.", in.Period),
		fmt.Sprintf("Total income: %s. Total expenses: %s.", g.format(in.Income), g.format(in.Expenses)),
		fmt.Sprintf("Available balance: %s. Savings rate: %s%%.", g.format(in.Balance), percent(in.SavingsRate)),
	}

	cats := append([]domain.CategoryTotal(nil), in.Categories...)
	sort.SliceStable(cats, func(i, j int) bool { return cats[i].Amount > cats[j].Amount })
	if len(cats) > 3 {
		cats = cats[:3]
	}
	if len(cats) == 0 {
		insights = append(insights, "No expense categories to show.")
	} else {
		parts := make([]string, len(cats))
		for i, c := range cats {
			parts[i] = fmt.Sprintf("%s: %s (%s%%)", c.Name, g.format(c.Amount), percent(c.Percent))
		}
		insights = append(insights, "Top spending categories: "+strings.Join(parts, ", "))
	}

	switch {
	case in.SavingsRate < 10:
		insights = append(insights, "Suggestion: Your savings rate is low. Consider reviewing discretionary spending.")
	case in.SavingsRate < 25:
		insights = append(insights, "Suggestion: Decent savings. Small tweaks could increase it further.")
	default:
		insights = append(insights, "Great job, your savings rate looks healthy!")
	}
	return insights
}

func (g *Generator) format(v float64) string {
	return money.Format(v, g.locale, g.currency)
}

func percent(v float64) string {
	return strconv.FormatFloat(money.Round(v, 1), 'f', -1, 64)
}

// Parse extracts insights from model output. Fenced or bare JSON arrays are
// split into their elements; any other non-empty text becomes one insight.
// The boolean is false when nothing usable remains.
func Parse(raw string) ([]string, bool) {
	clean := StripFences(raw)
	if clean == "" {
		return nil, false
	}

	if items, ok := parseArray(clean); ok {
		return items, len(items) > 0
	}
	if start, end := strings.Index(clean, "["), strings.LastIndex(clean, "]"); start != -1 && end > start {
		if items, ok := parseArray(clean[start : end+1]); ok {
			return items, len(items) > 0
		}
	}
	return []string{clean}, true
}

func parseArray(s string) ([]string, bool) {
	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(s), &elems); err != nil {
		return nil, false
	}

	items := make([]string, 0, len(elems))
	for _, e := range elems {
		var str string
		if err := json.Unmarshal(e, &str); err == nil {
			if str = strings.TrimSpace(str); str != "" {
				items = append(items, str)
			}
			continue
		}
		if t := strings.TrimSpace(string(e)); t != "" && t != "null" {
			items = append(items, t)
		}
	}
	return items, true
}

// StripFences removes a surrounding ``` or ```json fence.
func StripFences(raw string) string {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "```") {
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return strings.TrimSpace(strings.Trim(s, "`"))
		}
		s = s[idx+1:]
	}
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "```")
	return strings.TrimSpace(s)
}
