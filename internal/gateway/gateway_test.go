package gateway

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/orchidnexus/orchid/internal/api"
	"github.com/orchidnexus/orchid/internal/authz"
	"github.com/orchidnexus/orchid/internal/domain"
	"github.com/orchidnexus/orchid/internal/inventory"
	"github.com/orchidnexus/orchid/internal/metrics"
	"github.com/orchidnexus/orchid/internal/tree"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubBackend records calls and answers from canned values. failWith makes
// every mutating call fail.
type stubBackend struct {
	mu       sync.Mutex
	project  domain.Project
	calls    []string
	fetches  int
	failWith error
	toggled  domain.Task
	kpi      domain.KPI
	nextID   int
}

func (s *stubBackend) record(call string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, call)
	s.nextID++
	return s.failWith
}

func (s *stubBackend) Calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.calls...)
}

func (s *stubBackend) GetProject(context.Context, int) (domain.Project, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetches++
	return s.project, nil
}

func (s *stubBackend) CreateProject(_ context.Context, name string) (domain.Project, error) {
	return domain.Project{ID: 77, Name: name}, s.record("CreateProject")
}
func (s *stubBackend) DeleteProject(context.Context, int) error { return s.record("DeleteProject") }
func (s *stubBackend) CreateObjective(_ context.Context, _ int, name string) (domain.Objective, error) {
	return domain.Objective{ID: 12, Name: name}, s.record("CreateObjective")
}
func (s *stubBackend) UpdateObjective(_ context.Context, id int, name string) (domain.Objective, error) {
	return domain.Objective{ID: id, Name: name}, s.record("UpdateObjective")
}
func (s *stubBackend) DeleteObjective(context.Context, int) error { return s.record("DeleteObjective") }
func (s *stubBackend) CreateActivity(_ context.Context, _ int, name string) (domain.Activity, error) {
	return domain.Activity{ID: 102, Name: name}, s.record("CreateActivity")
}
func (s *stubBackend) UpdateActivity(_ context.Context, id int, name string) (domain.Activity, error) {
	return domain.Activity{ID: id, Name: name}, s.record("UpdateActivity")
}
func (s *stubBackend) DeleteActivity(context.Context, int) error { return s.record("DeleteActivity") }
func (s *stubBackend) CreateTask(_ context.Context, t api.NewTask) (domain.Task, error) {
	return domain.Task{ID: 1002, Description: t.Description, Status: domain.TaskPending}, s.record("CreateTask")
}
func (s *stubBackend) ToggleTaskStatus(context.Context, int) (domain.Task, error) {
	return s.toggled, s.record("ToggleTaskStatus")
}
func (s *stubBackend) DeleteTask(context.Context, int) error { return s.record("DeleteTask") }
func (s *stubBackend) SubmitDeliverable(_ context.Context, d api.NewDeliverable) (domain.Deliverable, error) {
	return domain.Deliverable{ID: 5001, TextContent: &d.Text}, s.record("SubmitDeliverable")
}
func (s *stubBackend) CreateKPI(_ context.Context, k api.NewKPI) (domain.KPI, error) {
	return domain.KPI{ID: 301, Name: k.Name, TargetValue: k.TargetValue}, s.record("CreateKPI")
}
func (s *stubBackend) AddKPIEntry(context.Context, int, float64) (domain.KPI, error) {
	return s.kpi, s.record("AddKPIEntry")
}
func (s *stubBackend) DeleteKPI(context.Context, int) error { return s.record("DeleteKPI") }
func (s *stubBackend) SetBudget(_ context.Context, activityID int, total float64) (domain.Budget, error) {
	return domain.Budget{ID: 402, ActivityID: activityID, TotalAmount: total}, s.record("SetBudget")
}
func (s *stubBackend) LogExpense(_ context.Context, e api.NewExpense) (domain.Expense, error) {
	return domain.Expense{ID: 3, Amount: e.Amount, Description: e.Description}, s.record("LogExpense")
}
func (s *stubBackend) Distribute(_ context.Context, m inventory.Movement) (domain.InventoryRecord, error) {
	return domain.InventoryRecord{ID: 1, Quantity: 10 - m.Quantity}, s.record("Distribute")
}
func (s *stubBackend) Stock(_ context.Context, m inventory.Movement) (domain.InventoryRecord, error) {
	return domain.InventoryRecord{ID: 1, Quantity: m.Quantity}, s.record("Stock")
}
func (s *stubBackend) CreateItem(_ context.Context, name string) (domain.Item, error) {
	return domain.Item{ID: 1, Name: name}, s.record("CreateItem")
}
func (s *stubBackend) CreateLocation(_ context.Context, name string) (domain.Location, error) {
	return domain.Location{ID: 1, Name: name}, s.record("CreateLocation")
}

func fixture() domain.Project {
	return domain.Project{
		ID:   1,
		Name: "Water Access",
		Objectives: []domain.Objective{{
			ID:   10,
			Name: "Improve access",
			Activities: []domain.Activity{
				{
					ID:     100,
					Name:   "Drill wells",
					Tasks:  []domain.Task{{ID: 1000, Description: "Survey", Status: domain.TaskPending}},
					KPIs:   []domain.KPI{{ID: 300, Name: "Wells", TargetValue: 15, CurrentValue: 7}},
					Budget: &domain.Budget{ID: 400, TotalAmount: 1000, Expenses: []domain.Expense{{ID: 1, Amount: 200}}},
				},
				{ID: 101, Name: "Training"},
			},
		}},
	}
}

func setup(t *testing.T, role domain.Role) (*Gateway, *stubBackend, *tree.Tree, *metrics.Metrics) {
	t.Helper()
	b := &stubBackend{project: fixture()}
	m := metrics.Discard()
	tr := tree.New(b, nil, m)
	_, err := tr.Load(context.Background(), 1)
	require.NoError(t, err)
	return New(b, tr, role, nil, m), b, tr, m
}

func snapshot(t *testing.T, tr *tree.Tree) domain.Project {
	t.Helper()
	p, err := tr.Snapshot()
	require.NoError(t, err)
	return p
}

func TestForbiddenNeverReachesBackend(t *testing.T) {
	g, b, _, m := setup(t, domain.RoleFieldOfficer)
	ctx := context.Background()

	assert.ErrorIs(t, g.DeleteObjective(ctx, 10), authz.ErrForbidden)
	_, err := g.CreateTask(ctx, api.NewTask{ActivityID: 100, Description: "x"})
	assert.ErrorIs(t, err, authz.ErrForbidden)
	_, err = g.SetBudget(ctx, 100, 10)
	assert.ErrorIs(t, err, authz.ErrForbidden)
	_, err = g.CreateItem(ctx, "Tarp")
	assert.ErrorIs(t, err, authz.ErrForbidden)

	assert.Empty(t, b.Calls())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Mutations.WithLabelValues(string(authz.DeleteObjective), metrics.OutcomeForbidden)))
}

func TestCreateObjective_AppendsUnderProject(t *testing.T) {
	g, _, tr, _ := setup(t, domain.RoleProjectManager)

	o, err := g.CreateObjective(context.Background(), "Sanitation")
	require.NoError(t, err)
	assert.Equal(t, 12, o.ID)

	p := snapshot(t, tr)
	require.Len(t, p.Objectives, 2)
	assert.Equal(t, "Sanitation", p.Objectives[1].Name)
}

func TestFailedCallLeavesTreeUntouched(t *testing.T) {
	g, b, tr, m := setup(t, domain.RoleProjectManager)
	before := snapshot(t, tr)
	b.failWith = &api.ValidationError{Op: "POST /tasks/", Status: 400, Detail: "Activity not found"}

	_, err := g.CreateTask(context.Background(), api.NewTask{ActivityID: 100, Description: "Dig"})
	require.Error(t, err)
	assert.Equal(t, "Activity not found", api.UserMessage(err))
	assert.Equal(t, before, snapshot(t, tr))

	assert.Error(t, g.DeleteObjective(context.Background(), 10))
	assert.Equal(t, before, snapshot(t, tr))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Mutations.WithLabelValues(string(authz.CreateTask), metrics.OutcomeValidation)))
}

func TestDeleteObjective_RemovesSubtreeAndReconciles(t *testing.T) {
	g, b, tr, _ := setup(t, domain.RoleProjectManager)

	// The backend's view after the cascade.
	b.mu.Lock()
	b.project = domain.Project{ID: 1, Name: "Water Access"}
	b.mu.Unlock()

	require.NoError(t, g.DeleteObjective(context.Background(), 10))

	p := snapshot(t, tr)
	assert.Empty(t, p.Objectives)
	for _, ref := range []tree.Ref{tree.ActivityRef(100), tree.TaskRef(1000), tree.KPIRef(300), tree.BudgetRef(400)} {
		_, ok := tr.Find(ref)
		assert.False(t, ok, ref.String())
	}
	assert.Equal(t, 2, b.fetches, "load plus one reconcile")
}

func TestToggleTask_Optimistic(t *testing.T) {
	g, b, tr, _ := setup(t, domain.RoleFieldOfficer)
	b.toggled = domain.Task{ID: 1000, Description: "Survey", Status: domain.TaskComplete}

	task, err := g.ToggleTask(context.Background(), 1000)
	require.NoError(t, err)
	assert.Equal(t, domain.TaskComplete, task.Status)
	assert.Equal(t, 0, tr.Pending())

	confirmed, _ := tr.Confirmed()
	assert.Equal(t, domain.TaskComplete, confirmed.Objectives[0].Activities[0].Tasks[0].Status)
}

func TestToggleTask_FailureWithdrawsOverlay(t *testing.T) {
	g, b, tr, _ := setup(t, domain.RoleFieldOfficer)
	b.failWith = &api.NetworkError{Op: "PATCH", Err: errors.New("reset")}

	_, err := g.ToggleTask(context.Background(), 1000)
	require.Error(t, err)
	assert.Equal(t, 0, tr.Pending())

	task, ok := tr.Task(1000)
	require.True(t, ok)
	assert.Equal(t, domain.TaskPending, task.Status)
}

func TestToggleTask_Unknown(t *testing.T) {
	g, b, _, _ := setup(t, domain.RoleFieldOfficer)
	_, err := g.ToggleTask(context.Background(), 999)
	assert.ErrorIs(t, err, tree.ErrNotFound)
	assert.Empty(t, b.Calls())
}

func TestAddKPIEntry_UsesServerValue(t *testing.T) {
	g, b, tr, _ := setup(t, domain.RoleFieldOfficer)
	b.kpi = domain.KPI{ID: 300, Name: "Wells", TargetValue: 15, CurrentValue: 10}

	_, err := g.AddKPIEntry(context.Background(), 300, 3)
	require.NoError(t, err)

	v, ok := tr.Find(tree.KPIRef(300))
	require.True(t, ok)
	assert.Equal(t, 10.0, v.(domain.KPI).CurrentValue)
}

func TestLogExpense_RequiresBudget(t *testing.T) {
	g, b, tr, _ := setup(t, domain.RoleFieldOfficer)

	_, err := g.LogExpense(context.Background(), 101, 50, "fuel")
	assert.ErrorIs(t, err, ErrNoBudget)
	assert.Empty(t, b.Calls())

	e, err := g.LogExpense(context.Background(), 100, 150, "pipes")
	require.NoError(t, err)
	assert.Equal(t, 150.0, e.Amount)

	bud, ok := tr.ActivityBudget(100)
	require.True(t, ok)
	require.Len(t, bud.Expenses, 2)
	assert.Equal(t, "pipes", bud.Expenses[1].Description)
}

func TestSetBudget_ReplacesExisting(t *testing.T) {
	g, _, tr, _ := setup(t, domain.RoleProjectManager)

	_, err := g.SetBudget(context.Background(), 100, 2500)
	require.NoError(t, err)

	bud, ok := tr.ActivityBudget(100)
	require.True(t, ok)
	assert.Equal(t, 402, bud.ID)
	assert.Equal(t, 2500.0, bud.TotalAmount)
}

func TestDistribute_RejectsNonPositive(t *testing.T) {
	g, b, _, _ := setup(t, domain.RoleFieldOfficer)

	_, err := g.Distribute(context.Background(), inventory.Movement{ItemID: 1, LocationID: 1, Quantity: 0})
	assert.ErrorIs(t, err, inventory.ErrInvalidQuantity)
	assert.Empty(t, b.Calls())

	_, err = g.Distribute(context.Background(), inventory.Movement{ItemID: 1, LocationID: 1, Quantity: 3})
	require.NoError(t, err)
	assert.Equal(t, []string{"Distribute"}, b.Calls())
}

func TestStock_ThresholdNeedsManager(t *testing.T) {
	thr := 5
	g, b, _, _ := setup(t, domain.RoleMonitoringOfficer)

	_, err := g.Stock(context.Background(), inventory.Movement{ItemID: 1, LocationID: 1, Quantity: 10, Threshold: &thr})
	assert.ErrorIs(t, err, authz.ErrForbidden)
	_, err = g.Stock(context.Background(), inventory.Movement{ItemID: 1, LocationID: 1, Quantity: 10})
	require.NoError(t, err)
	assert.Equal(t, []string{"Stock"}, b.Calls())

	pm, pb, _, _ := setup(t, domain.RoleProjectManager)
	_, err = pm.Stock(context.Background(), inventory.Movement{ItemID: 1, LocationID: 1, Quantity: 10, Threshold: &thr})
	require.NoError(t, err)
	assert.Equal(t, []string{"Stock"}, pb.Calls())
}

func TestRenameAndDeleteLeaves(t *testing.T) {
	g, _, tr, _ := setup(t, domain.RoleProjectManager)
	ctx := context.Background()

	_, err := g.RenameActivity(ctx, 100, "Drill boreholes")
	require.NoError(t, err)
	require.NoError(t, g.DeleteTask(ctx, 1000))
	require.NoError(t, g.DeleteKPI(ctx, 300))

	a, ok := tr.Find(tree.ActivityRef(100))
	require.True(t, ok)
	act := a.(domain.Activity)
	assert.Equal(t, "Drill boreholes", act.Name)
	assert.Empty(t, act.Tasks)
	assert.Empty(t, act.KPIs)
	assert.NotNil(t, act.Budget)
}

func TestMutationWithoutProject(t *testing.T) {
	b := &stubBackend{project: fixture()}
	g := New(b, tree.New(b, nil, nil), domain.RoleProjectManager, nil, nil)

	_, err := g.CreateObjective(context.Background(), "x")
	assert.ErrorIs(t, err, tree.ErrNoActiveProject)
	assert.Empty(t, b.Calls())
}

func TestDeleteActiveProjectDisposesTree(t *testing.T) {
	g, _, tr, _ := setup(t, domain.RoleProjectManager)
	require.NoError(t, g.DeleteProject(context.Background(), 1))
	_, err := tr.Snapshot()
	assert.ErrorIs(t, err, tree.ErrNoActiveProject)
}

func TestCreateBelowDeliversIntoTree(t *testing.T) {
	g, _, tr, _ := setup(t, domain.RoleMonitoringOfficer)
	ctx := context.Background()

	_, err := g.CreateTask(ctx, api.NewTask{ActivityID: 101, Description: "Book venue"})
	require.NoError(t, err)
	_, err = g.CreateKPI(ctx, api.NewKPI{ActivityID: 101, Name: "Trained", TargetValue: 40})
	require.NoError(t, err)
	_, err = g.SubmitDeliverable(ctx, api.NewDeliverable{TaskID: 1002, Text: "signed"})
	require.NoError(t, err)

	v, ok := tr.Find(tree.ActivityRef(101))
	require.True(t, ok)
	act := v.(domain.Activity)
	require.Len(t, act.Tasks, 1)
	assert.Len(t, act.Tasks[0].Deliverables, 1)
	assert.Len(t, act.KPIs, 1)
}
