package formatter

import (
	"strconv"

	"github.com/orchidnexus/orchid/internal/budget"
	"github.com/orchidnexus/orchid/internal/domain"
)

func FormatKPIs(kpis []domain.KPI) string {
	if len(kpis) == 0 {
		return Dim("No KPIs.") + "\n"
	}
	rows := make([][]string, 0, len(kpis))
	for _, k := range kpis {
		rows = append(rows, []string{
			strconv.Itoa(k.ID),
			Bold(k.Name),
			Number(k.CurrentValue) + " / " + Number(k.TargetValue) + " " + Dim(k.Unit),
			RenderProgress(k.DisplayPct()/100, 16),
		})
	}
	return RenderTable([]string{"ID", "KPI", "VALUE", "PROGRESS"}, rows)
}

// FormatKPIHistory lists entries oldest first, as the backend returns them.
func FormatKPIHistory(k domain.KPI, entries []domain.KPIEntry) string {
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{e.Timestamp.Format("2006-01-02 15:04"), Number(e.Value)})
	}
	return Header(k.Name) + "\n" + RenderTable([]string{"WHEN", "VALUE " + k.Unit}, rows)
}

// FormatBudget renders one activity's budget with expenses newest first.
func FormatBudget(s budget.Summary, b *domain.Budget) string {
	remaining := Money(s.Remaining)
	if s.Remaining < 0 {
		remaining = StyleRedBold.Render(remaining)
	}
	body := RenderTable([]string{"TOTAL", "SPENT", "REMAINING"},
		[][]string{{Money(s.Total), Money(s.Spent), remaining}}) +
		"\n" + RenderBurn(s.Ratio, 24) + "\n"

	expenses := budget.ExpensesRecentFirst(b)
	if len(expenses) > 0 {
		rows := make([][]string, 0, len(expenses))
		for _, e := range expenses {
			rows = append(rows, []string{e.Timestamp.Format("2006-01-02"), e.Description, Money(e.Amount)})
		}
		body += "\n" + RenderTable([]string{"DATE", "DESCRIPTION", "AMOUNT"}, rows)
	}
	return RenderBox(s.ActivityName+" budget", body)
}

// FormatBudgets renders one row per budgeted activity.
func FormatBudgets(summaries []budget.Summary) string {
	if len(summaries) == 0 {
		return Dim("No budgets.") + "\n"
	}
	rows := make([][]string, 0, len(summaries))
	for _, s := range summaries {
		rows = append(rows, []string{
			strconv.Itoa(s.ActivityID),
			s.ActivityName,
			Money(s.Total),
			Money(s.Spent),
			RenderBurn(s.Ratio, 12),
		})
	}
	return RenderTable([]string{"ACTIVITY", "NAME", "TOTAL", "SPENT", "USED"}, rows)
}
