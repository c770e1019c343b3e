package budget

import "github.com/orchidnexus/orchid/internal/domain"

// TotalExpenses sums the expense amounts of b. A nil budget totals 0.
func TotalExpenses(b *domain.Budget) float64 {
	if b == nil {
		return 0
	}
	var total float64
	for _, e := range b.Expenses {
		total += e.Amount
	}
	return total
}

// BurnRatio is TotalExpenses / TotalAmount, or 0 when no positive total is
// set. The ratio is unclamped; over-budget spend yields values above 1.
func BurnRatio(b *domain.Budget) float64 {
	if b == nil || b.TotalAmount <= 0 {
		return 0
	}
	return TotalExpenses(b) / b.TotalAmount
}

// DisplayPercent is BurnRatio as a percentage clamped to [0, 100].
func DisplayPercent(b *domain.Budget) float64 {
	p := BurnRatio(b) * 100
	if p > 100 {
		return 100
	}
	if p < 0 {
		return 0
	}
	return p
}

// Remaining is TotalAmount minus TotalExpenses; negative when over budget.
func Remaining(b *domain.Budget) float64 {
	if b == nil {
		return 0
	}
	return b.TotalAmount - TotalExpenses(b)
}

func OverBudget(b *domain.Budget) bool {
	return BurnRatio(b) > 1
}

// ExpensesRecentFirst returns a reversed copy of the expenses. The budget's
// own slice is left in insertion order.
func ExpensesRecentFirst(b *domain.Budget) []domain.Expense {
	if b == nil {
		return nil
	}
	out := make([]domain.Expense, len(b.Expenses))
	for i, e := range b.Expenses {
		out[len(b.Expenses)-1-i] = e
	}
	return out
}

// Summary bundles the derived figures for one activity budget.
type Summary struct {
	ActivityID   int
	ActivityName string
	Total        float64
	Spent        float64
	Remaining    float64
	Ratio        float64
	DisplayPct   float64
}

func Summarize(activityID int, name string, b *domain.Budget) Summary {
	s := Summary{
		ActivityID:   activityID,
		ActivityName: name,
		Spent:        TotalExpenses(b),
		Remaining:    Remaining(b),
		Ratio:        BurnRatio(b),
		DisplayPct:   DisplayPercent(b),
	}
	if b != nil {
		s.Total = b.TotalAmount
	}
	return s
}

// ForProject summarizes every budgeted activity of p in tree order.
func ForProject(p domain.Project) []Summary {
	var out []Summary
	for _, o := range p.Objectives {
		for _, a := range o.Activities {
			if a.Budget == nil {
				continue
			}
			out = append(out, Summarize(a.ID, a.Name, a.Budget))
		}
	}
	return out
}
