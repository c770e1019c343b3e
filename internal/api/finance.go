package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/orchidnexus/orchid/internal/domain"
)

type NewKPI struct {
	Name        string  `json:"name"`
	Unit        string  `json:"unit,omitempty"`
	TargetValue float64 `json:"target_value"`
	ActivityID  int     `json:"activity_id"`
}

func (c *Client) CreateKPI(ctx context.Context, k NewKPI) (domain.KPI, error) {
	var out domain.KPI
	err := c.do(ctx, http.MethodPost, "/kpis/", k, &out)
	return out, err
}

// AddKPIEntry logs a value and returns the KPI with its server-derived
// current value.
func (c *Client) AddKPIEntry(ctx context.Context, kpiID int, value float64) (domain.KPI, error) {
	body := struct {
		Value float64 `json:"value"`
	}{value}
	var out domain.KPI
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("/kpis/%d/entries", kpiID), body, &out)
	return out, err
}

func (c *Client) KPIHistory(ctx context.Context, kpiID int) ([]domain.KPIEntry, error) {
	var out []domain.KPIEntry
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/kpis/%d/history", kpiID), nil, &out)
	return out, err
}

func (c *Client) DeleteKPI(ctx context.Context, kpiID int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/kpis/%d", kpiID), nil, nil)
}

// SetBudget creates or replaces the budget of an activity.
func (c *Client) SetBudget(ctx context.Context, activityID int, total float64) (domain.Budget, error) {
	body := struct {
		ActivityID  int     `json:"activity_id"`
		TotalAmount float64 `json:"total_amount"`
	}{activityID, total}
	var out domain.Budget
	err := c.do(ctx, http.MethodPost, "/budgets/", body, &out)
	return out, err
}

type NewExpense struct {
	BudgetID    int     `json:"budget_id"`
	Amount      float64 `json:"amount"`
	Description string  `json:"description"`
}

func (c *Client) LogExpense(ctx context.Context, e NewExpense) (domain.Expense, error) {
	var out domain.Expense
	err := c.do(ctx, http.MethodPost, "/expenses/", e, &out)
	return out, err
}
