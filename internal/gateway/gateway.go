// Package gateway performs every mutation of shared state: the role is
// checked, the backend is called, and only then is the cached tree updated.
// A failed call leaves the tree untouched.
package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/orchidnexus/orchid/internal/api"
	"github.com/orchidnexus/orchid/internal/authz"
	"github.com/orchidnexus/orchid/internal/domain"
	"github.com/orchidnexus/orchid/internal/inventory"
	"github.com/orchidnexus/orchid/internal/logging"
	"github.com/orchidnexus/orchid/internal/metrics"
	"github.com/orchidnexus/orchid/internal/tree"
	"go.uber.org/zap"
)

// ErrNoBudget is returned when an expense is logged against an activity
// that has no budget in the cached tree.
var ErrNoBudget = errors.New("activity has no budget")

// Backend is the subset of the REST client the gateway drives.
type Backend interface {
	CreateProject(ctx context.Context, name string) (domain.Project, error)
	DeleteProject(ctx context.Context, id int) error
	CreateObjective(ctx context.Context, projectID int, name string) (domain.Objective, error)
	UpdateObjective(ctx context.Context, id int, name string) (domain.Objective, error)
	DeleteObjective(ctx context.Context, id int) error
	CreateActivity(ctx context.Context, objectiveID int, name string) (domain.Activity, error)
	UpdateActivity(ctx context.Context, id int, name string) (domain.Activity, error)
	DeleteActivity(ctx context.Context, id int) error
	CreateTask(ctx context.Context, t api.NewTask) (domain.Task, error)
	ToggleTaskStatus(ctx context.Context, id int) (domain.Task, error)
	DeleteTask(ctx context.Context, id int) error
	SubmitDeliverable(ctx context.Context, d api.NewDeliverable) (domain.Deliverable, error)
	CreateKPI(ctx context.Context, k api.NewKPI) (domain.KPI, error)
	AddKPIEntry(ctx context.Context, kpiID int, value float64) (domain.KPI, error)
	DeleteKPI(ctx context.Context, kpiID int) error
	SetBudget(ctx context.Context, activityID int, total float64) (domain.Budget, error)
	LogExpense(ctx context.Context, e api.NewExpense) (domain.Expense, error)
	Distribute(ctx context.Context, m inventory.Movement) (domain.InventoryRecord, error)
	Stock(ctx context.Context, m inventory.Movement) (domain.InventoryRecord, error)
	CreateItem(ctx context.Context, name string) (domain.Item, error)
	CreateLocation(ctx context.Context, name string) (domain.Location, error)
}

type Gateway struct {
	backend Backend
	tree    *tree.Tree
	role    domain.Role
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func New(backend Backend, t *tree.Tree, role domain.Role, logger *zap.Logger, m *metrics.Metrics) *Gateway {
	if m == nil {
		m = metrics.Discard()
	}
	return &Gateway{
		backend: backend,
		tree:    t,
		role:    role,
		logger:  logging.OrNop(logger),
		metrics: m,
	}
}

func (g *Gateway) Role() domain.Role { return g.role }

// Can reports whether the gateway's role may perform action.
func (g *Gateway) Can(action authz.Action) bool {
	return authz.IsAllowed(g.role, action)
}

// run checks the capability table, runs call and records the outcome.
func (g *Gateway) run(action authz.Action, call func() error) error {
	if err := authz.Check(g.role, action); err != nil {
		g.metrics.ObserveMutation(string(action), metrics.OutcomeForbidden)
		return err
	}
	err := call()
	g.metrics.ObserveMutation(string(action), outcome(err))
	if err != nil {
		g.logger.Debug("mutation failed", zap.String("action", string(action)), zap.Error(err))
	}
	return err
}

func outcome(err error) string {
	switch {
	case err == nil:
		return metrics.OutcomeOK
	case errors.Is(err, ErrNoBudget),
		errors.Is(err, tree.ErrNoActiveProject),
		errors.Is(err, tree.ErrNotFound),
		errors.Is(err, inventory.ErrInvalidQuantity),
		errors.Is(err, inventory.ErrInvalidThreshold),
		errors.Is(err, inventory.ErrMissingItem),
		errors.Is(err, inventory.ErrMissingLocation):
		return metrics.OutcomeInvalid
	}
	switch api.Classify(err) {
	case api.KindAuth:
		return metrics.OutcomeAuth
	case api.KindValidation:
		return metrics.OutcomeValidation
	}
	return metrics.OutcomeNetwork
}

// settle handles a tree update that failed after the backend had already
// confirmed the mutation. A stale scope means the project was left and the
// result is simply dropped; anything else is repaired by a full reconcile.
func (g *Gateway) settle(ctx context.Context, scope tree.Scope, action authz.Action, err error) {
	if err == nil || tree.IsStale(err) || errors.Is(err, tree.ErrNoActiveProject) {
		return
	}
	g.logger.Warn("local tree update failed, reconciling",
		zap.String("action", string(action)), zap.Int("project_id", scope.ProjectID), zap.Error(err))
	g.reconcile(ctx, scope)
}

// reconcile refreshes the tree for scope's project. Failures are logged; the
// mutation itself has already succeeded.
func (g *Gateway) reconcile(ctx context.Context, scope tree.Scope) {
	if _, err := g.tree.ReconcileProject(ctx, scope.ProjectID); err != nil && !tree.IsStale(err) {
		g.logger.Warn("reconcile after mutation failed",
			zap.Int("project_id", scope.ProjectID), zap.Error(err))
	}
}

func (g *Gateway) scope() (tree.Scope, error) {
	s, err := g.tree.Scope()
	if err != nil {
		return tree.Scope{}, fmt.Errorf("resolve active project: %w", err)
	}
	return s, nil
}
