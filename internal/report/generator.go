package report

import (
	"context"
	"fmt"
	"time"

	"github.com/Gargee-Buva/Finora/internal/domain"
	"github.com/Gargee-Buva/Finora/internal/insights"
	"github.com/Gargee-Buva/Finora/internal/schedule"
)

// InsightWriter writes insights for a set of report figures.
type InsightWriter interface {
	Generate(ctx context.Context, in insights.Input) []string
}

// Generator produces complete reports: figures plus insights.
type Generator struct {
	agg      *Aggregator
	insights InsightWriter
}

// NewGenerator creates a Generator.
func NewGenerator(agg *Aggregator, w InsightWriter) *Generator {
	return &Generator{agg: agg, insights: w}
}

// Generate builds the report for userID over [from, to]. The result is never
// persisted.
func (g *Generator) Generate(ctx context.Context, userID string, from, to time.Time) (*domain.AggregatedReport, error) {
	totals, err := g.agg.Aggregate(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("Generate: %w", err)
	}

	period := schedule.PeriodLabel(from, to)
	summary := totals.Summary()

	return &domain.AggregatedReport{
		Period:  period,
		Summary: summary,
		Insights: g.insights.Generate(ctx, insights.Input{
			Period:      period,
			Income:      summary.Income,
			Expenses:    summary.Expenses,
			Balance:     summary.Balance,
			SavingsRate: totals.SavingsRate(),
			Categories:  summary.TopCategories,
		}),
	}, nil
}
