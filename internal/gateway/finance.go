package gateway

import (
	"context"
	"fmt"

	"github.com/orchidnexus/orchid/internal/api"
	"github.com/orchidnexus/orchid/internal/authz"
	"github.com/orchidnexus/orchid/internal/domain"
	"github.com/orchidnexus/orchid/internal/tree"
	"go.uber.org/zap"
)

func (g *Gateway) CreateKPI(ctx context.Context, k api.NewKPI) (domain.KPI, error) {
	var out domain.KPI
	err := g.run(authz.CreateKPI, func() error {
		scope, err := g.scope()
		if err != nil {
			return err
		}
		out, err = g.backend.CreateKPI(ctx, k)
		if err != nil {
			return err
		}
		g.settle(ctx, scope, authz.CreateKPI,
			g.tree.ApplyLocalCreate(scope, tree.ActivityRef(k.ActivityID), out))
		return nil
	})
	return out, err
}

// AddKPIEntry logs a value. The cached KPI takes the current value computed
// by the backend.
func (g *Gateway) AddKPIEntry(ctx context.Context, kpiID int, value float64) (domain.KPI, error) {
	var out domain.KPI
	err := g.run(authz.AddKPIEntry, func() error {
		scope, err := g.scope()
		if err != nil {
			return err
		}
		out, err = g.backend.AddKPIEntry(ctx, kpiID, value)
		if err != nil {
			return err
		}
		g.settle(ctx, scope, authz.AddKPIEntry,
			g.tree.ApplyLocalUpdate(scope, tree.KPIRef(kpiID), out))
		return nil
	})
	return out, err
}

func (g *Gateway) DeleteKPI(ctx context.Context, kpiID int) error {
	return g.deleteLeaf(ctx, authz.DeleteKPI, tree.KPIRef(kpiID), g.backend.DeleteKPI)
}

// SetBudget creates or replaces the budget of an activity.
func (g *Gateway) SetBudget(ctx context.Context, activityID int, total float64) (domain.Budget, error) {
	var out domain.Budget
	err := g.run(authz.SetBudget, func() error {
		scope, err := g.scope()
		if err != nil {
			return err
		}
		out, err = g.backend.SetBudget(ctx, activityID, total)
		if err != nil {
			return err
		}
		g.settle(ctx, scope, authz.SetBudget,
			g.tree.ApplyLocalCreate(scope, tree.ActivityRef(activityID), out))
		return nil
	})
	return out, err
}

// LogExpense records spend against the activity's budget. The budget must be
// present in the cached tree before anything is sent.
func (g *Gateway) LogExpense(ctx context.Context, activityID int, amount float64, description string) (domain.Expense, error) {
	var out domain.Expense
	err := g.run(authz.LogExpense, func() error {
		scope, err := g.scope()
		if err != nil {
			return err
		}
		b, ok := g.tree.ActivityBudget(activityID)
		if !ok {
			return fmt.Errorf("log expense for activity %d: %w", activityID, ErrNoBudget)
		}
		out, err = g.backend.LogExpense(ctx, api.NewExpense{
			BudgetID:    b.ID,
			Amount:      amount,
			Description: description,
		})
		if err != nil {
			return err
		}
		g.settle(ctx, scope, authz.LogExpense,
			g.tree.ApplyLocalCreate(scope, tree.BudgetRef(b.ID), out))
		return nil
	})
	return out, err
}

func zapRef(ref tree.Ref) zap.Field { return zap.String("ref", ref.String()) }

func zapErr(err error) zap.Field { return zap.Error(err) }
