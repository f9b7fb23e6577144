// Package report builds a user's periodic financial report from their ledger.
package report

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"google.golang.org/api/iterator"

	"github.com/Gargee-Buva/Finora/internal/domain"
	"github.com/Gargee-Buva/Finora/internal/money"
	"github.com/Gargee-Buva/Finora/internal/store"
)

// TopCategoryLimit is how many expense categories a report lists.
const TopCategoryLimit = 5

// CategoryMinor is one category's total expense in minor units.
type CategoryMinor struct {
	Name  string
	Total int64
}

// Totals are the raw sums for a period, in minor units.
type Totals struct {
	Income        int64
	Expenses      int64
	Transactions  int
	TopCategories []CategoryMinor
}

// Balance is income minus expenses.
func (t *Totals) Balance() int64 {
	return t.Income - t.Expenses
}

// SavingsRate is the share of income not spent, in percent with two decimals.
// It is 0 when there is no income.
func (t *Totals) SavingsRate() float64 {
	if t.Income <= 0 {
		return 0
	}
	return money.Round(float64(t.Income-t.Expenses)/float64(t.Income)*100, 2)
}

// Summary converts the totals to the report's major-unit summary.
func (t *Totals) Summary() domain.ReportSummary {
	cats := make([]domain.CategoryTotal, 0, len(t.TopCategories))
	for _, c := range t.TopCategories {
		pct := 0.0
		if t.Expenses > 0 {
			pct = money.Round(float64(c.Total)/float64(t.Expenses)*100, 0)
		}
		cats = append(cats, domain.CategoryTotal{Name: c.Name, Amount: money.ToMajor(c.Total), Percent: pct})
	}
	return domain.ReportSummary{
		Income:        money.ToMajor(t.Income),
		Expenses:      money.ToMajor(t.Expenses),
		Balance:       money.ToMajor(t.Balance()),
		SavingsRate:   money.Round(t.SavingsRate(), 1),
		TopCategories: cats,
	}
}

// Aggregator sums a user's transactions over a period.
type Aggregator struct {
	reader store.TransactionReader
}

// NewAggregator creates an Aggregator reading from r.
func NewAggregator(r store.TransactionReader) *Aggregator {
	return &Aggregator{reader: r}
}

// Aggregate streams the user's transactions dated within [from, to] and
// returns their totals. Amounts count by magnitude regardless of sign.
func (a *Aggregator) Aggregate(ctx context.Context, userID string, from, to time.Time) (*Totals, error) {
	cur, err := a.reader.UserTransactions(ctx, userID, from, to)
	if err != nil {
		return nil, fmt.Errorf("Aggregate: opening transactions: %w", err)
	}
	defer cur.Close()

	totals := &Totals{}
	byCategory := make(map[string]int64)
	for {
		tx, err := cur.Next()
		if errors.Is(err, iterator.Done) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("Aggregate: reading transactions: %w", err)
		}

		totals.Transactions++
		amount := abs(tx.Amount)
		switch tx.Type {
		case domain.TransactionTypeIncome:
			totals.Income += amount
		case domain.TransactionTypeExpense:
			totals.Expenses += amount
			byCategory[tx.Category] += amount
		}
	}

	totals.TopCategories = topCategories(byCategory, TopCategoryLimit)
	return totals, nil
}

func topCategories(byCategory map[string]int64, limit int) []CategoryMinor {
	cats := make([]CategoryMinor, 0, len(byCategory))
	for name, total := range byCategory {
		cats = append(cats, CategoryMinor{Name: name, Total: total})
	}
	sort.Slice(cats, func(i, j int) bool {
		if cats[i].Total != cats[j].Total {
			return cats[i].Total > cats[j].Total
		}
		return cats[i].Name < cats[j].Name
	})
	if len(cats) > limit {
		cats = cats[:limit]
	}
	return cats
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
