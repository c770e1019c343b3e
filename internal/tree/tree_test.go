package tree

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/orchidnexus/orchid/internal/domain"
	"github.com/orchidnexus/orchid/internal/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeFetcher serves projects from a map. When gate is non-nil every fetch
// blocks until gate is closed, ignoring cancellation so late arrivals can
// be observed.
type fakeFetcher struct {
	mu       sync.Mutex
	projects map[int]domain.Project
	err      error
	gate     chan struct{}
	started  chan int
	calls    int32
}

func newFakeFetcher(projects ...domain.Project) *fakeFetcher {
	f := &fakeFetcher{projects: map[int]domain.Project{}, started: make(chan int, 16)}
	for _, p := range projects {
		f.projects[p.ID] = p
	}
	return f
}

func (f *fakeFetcher) GetProject(_ context.Context, id int) (domain.Project, error) {
	atomic.AddInt32(&f.calls, 1)
	f.started <- id
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return domain.Project{}, f.err
	}
	p, ok := f.projects[id]
	if !ok {
		return domain.Project{}, errors.New("not found")
	}
	return p, nil
}

func (f *fakeFetcher) block() chan struct{} {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gate = make(chan struct{})
	return f.gate
}

func (f *fakeFetcher) set(p domain.Project) {
	f.mu.Lock()
	f.projects[p.ID] = p
	f.mu.Unlock()
}

func (f *fakeFetcher) Calls() int { return int(atomic.LoadInt32(&f.calls)) }

func loadedTree(t *testing.T, f *fakeFetcher, id int) (*Tree, *metrics.Metrics) {
	t.Helper()
	m := metrics.Discard()
	tr := New(f, nil, m)
	_, err := tr.Load(context.Background(), id)
	require.NoError(t, err)
	<-f.started
	return tr, m
}

func otherProject() domain.Project {
	return domain.Project{ID: 2, Name: "Clinics", Objectives: []domain.Objective{{ID: 20, Name: "Staff"}}}
}

func TestLoad_PopulatesSnapshot(t *testing.T) {
	f := newFakeFetcher(sampleProject())
	tr, _ := loadedTree(t, f, 1)

	snap, err := tr.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, sampleProject(), snap)
	assert.Equal(t, 1, tr.ProjectID())
}

func TestSnapshot_BeforeLoad(t *testing.T) {
	tr := New(newFakeFetcher(), nil, nil)
	_, err := tr.Snapshot()
	assert.ErrorIs(t, err, ErrNoActiveProject)
	_, err = tr.Reconcile(context.Background())
	assert.ErrorIs(t, err, ErrNoActiveProject)
}

func TestLoad_PropagatesFetchError(t *testing.T) {
	f := newFakeFetcher()
	f.err = errors.New("connection refused")
	tr := New(f, nil, nil)

	_, err := tr.Load(context.Background(), 1)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
	assert.Equal(t, 1, f.Calls())
}

func TestReconcile_ConcurrentTriggersShareOneFetch(t *testing.T) {
	f := newFakeFetcher(sampleProject())
	tr, m := loadedTree(t, f, 1)

	updated := sampleProject()
	updated.Name = "Water Access (revised)"
	f.set(updated)
	release := f.block()

	type result struct {
		p   domain.Project
		err error
	}
	results := make(chan result, 2)
	trigger := func() {
		p, err := tr.Reconcile(context.Background())
		results <- result{p, err}
	}

	go trigger()
	<-f.started
	go trigger()
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.ReconcileJoined) == 1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)

	close(release)
	r1, r2 := <-results, <-results
	require.NoError(t, r1.err)
	require.NoError(t, r2.err)
	assert.Equal(t, r1.p, r2.p)
	assert.Equal(t, "Water Access (revised)", r1.p.Name)
	assert.Equal(t, 2, f.Calls(), "one load plus one shared reconcile")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ReconcileFetches))
}

func TestReconcile_ReplacesWholesale(t *testing.T) {
	f := newFakeFetcher(sampleProject())
	tr, _ := loadedTree(t, f, 1)

	scope, err := tr.Scope()
	require.NoError(t, err)
	require.NoError(t, tr.ApplyLocalCreate(scope, ObjectiveRef(11), domain.Activity{ID: 555, Name: "local only"}))

	_, err = tr.Reconcile(context.Background())
	require.NoError(t, err)
	<-f.started

	_, found := tr.Find(ActivityRef(555))
	assert.False(t, found, "reconcile must not merge local state into the fetched snapshot")
}

func TestStaleGuard_ProjectSwitchDiscardsPendingFetch(t *testing.T) {
	f := newFakeFetcher(sampleProject(), otherProject())
	tr, m := loadedTree(t, f, 1)

	release := f.block()
	errs := make(chan error, 1)
	go func() {
		_, err := tr.Reconcile(context.Background())
		errs <- err
	}()
	<-f.started

	// Switch to project 2 while project 1's fetch is still pending. The new
	// load is let through by a fresh gate.
	f.mu.Lock()
	f.gate = nil
	f.mu.Unlock()
	_, err := tr.Load(context.Background(), 2)
	require.NoError(t, err)
	<-f.started

	close(release)
	assert.ErrorIs(t, <-errs, ErrStaleResult)

	snap, err := tr.Snapshot()
	require.NoError(t, err)
	assert.Equal(t, 2, snap.ID)
	assert.Equal(t, "Clinics", snap.Name)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ReconcileStale))
}

func TestStaleGuard_DisposeDiscardsResult(t *testing.T) {
	f := newFakeFetcher(sampleProject())
	tr, _ := loadedTree(t, f, 1)

	release := f.block()
	errs := make(chan error, 1)
	go func() {
		_, err := tr.Reconcile(context.Background())
		errs <- err
	}()
	<-f.started
	tr.Dispose()
	close(release)

	assert.ErrorIs(t, <-errs, ErrStaleResult)
	_, err := tr.Snapshot()
	assert.ErrorIs(t, err, ErrNoActiveProject)
}

func TestReconcileProject_WrongProjectDropped(t *testing.T) {
	f := newFakeFetcher(sampleProject())
	tr, _ := loadedTree(t, f, 1)

	_, err := tr.ReconcileProject(context.Background(), 2)
	assert.ErrorIs(t, err, ErrStaleResult)
	assert.Equal(t, 1, f.Calls())
}

func TestReconcile_CallerCancelDoesNotCancelFetch(t *testing.T) {
	f := newFakeFetcher(sampleProject())
	tr, m := loadedTree(t, f, 1)
	release := f.block()

	ctx, cancel := context.WithCancel(context.Background())
	errs := make(chan error, 1)
	go func() {
		_, err := tr.Reconcile(ctx)
		errs <- err
	}()
	<-f.started
	cancel()
	assert.ErrorIs(t, <-errs, context.Canceled)

	done := make(chan error, 1)
	go func() {
		_, err := tr.Reconcile(context.Background())
		done <- err
	}()
	require.Eventually(t, func() bool {
		return testutil.ToFloat64(m.ReconcileJoined) == 1
	}, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	close(release)
	assert.NoError(t, <-done)
	assert.Equal(t, 2, f.Calls())
}

func TestApplyLocalDelete_RemovesDescendants(t *testing.T) {
	f := newFakeFetcher(sampleProject())
	tr, _ := loadedTree(t, f, 1)
	scope, _ := tr.Scope()

	require.NoError(t, tr.ApplyLocalDelete(scope, ObjectiveRef(10)))

	snap, _ := tr.Snapshot()
	require.Len(t, snap.Objectives, 1)
	for _, ref := range []Ref{ObjectiveRef(10), ActivityRef(100), ActivityRef(101), TaskRef(1000),
		TaskRef(1001), DeliverableRef(5000), KPIRef(300), BudgetRef(400), ExpenseRef(2)} {
		_, ok := tr.Find(ref)
		assert.False(t, ok, ref.String())
	}

	assert.ErrorIs(t, tr.ApplyLocalDelete(scope, ObjectiveRef(10)), ErrNotFound)
}

func TestApplyLocal_RejectsStaleScope(t *testing.T) {
	f := newFakeFetcher(sampleProject(), otherProject())
	tr, _ := loadedTree(t, f, 1)
	scope, _ := tr.Scope()

	_, err := tr.Load(context.Background(), 2)
	require.NoError(t, err)
	<-f.started

	assert.ErrorIs(t, tr.ApplyLocalCreate(scope, ProjectRef(1), domain.Objective{ID: 12}), ErrStaleResult)
	snap, _ := tr.Snapshot()
	assert.Len(t, snap.Objectives, 1)
}

func TestApplyLocalUpdate(t *testing.T) {
	f := newFakeFetcher(sampleProject())
	tr, _ := loadedTree(t, f, 1)
	scope, _ := tr.Scope()

	require.NoError(t, tr.ApplyLocalUpdate(scope, KPIRef(300), domain.KPI{ID: 300, Name: "Wells", TargetValue: 15, CurrentValue: 9}))
	v, ok := tr.Find(KPIRef(300))
	require.True(t, ok)
	assert.Equal(t, 9.0, v.(domain.KPI).CurrentValue)
}

func TestOverlay_MergedAtReadAndSettled(t *testing.T) {
	f := newFakeFetcher(sampleProject())
	tr, _ := loadedTree(t, f, 1)
	scope, _ := tr.Scope()

	task, ok := tr.Task(1000)
	require.True(t, ok)
	task.Status = task.Status.Toggle()
	id, err := tr.StageUpdate(scope, TaskRef(1000), task)
	require.NoError(t, err)
	assert.Equal(t, 1, tr.Pending())

	viewed, _ := tr.Task(1000)
	assert.Equal(t, domain.TaskComplete, viewed.Status)
	assert.Len(t, viewed.Deliverables, 1)
	confirmed, _ := tr.Confirmed()
	assert.Equal(t, domain.TaskPending, confirmed.Objectives[0].Activities[0].Tasks[0].Status)

	tr.Settle(id)
	assert.Equal(t, 0, tr.Pending())
	viewed, _ = tr.Task(1000)
	assert.Equal(t, domain.TaskPending, viewed.Status)
}

func TestOverlay_ConfirmAppliesServerValue(t *testing.T) {
	f := newFakeFetcher(sampleProject())
	tr, _ := loadedTree(t, f, 1)
	scope, _ := tr.Scope()

	optimistic := domain.Task{ID: 1000, Description: "Survey", Status: domain.TaskComplete}
	id, err := tr.StageUpdate(scope, TaskRef(1000), optimistic)
	require.NoError(t, err)

	server := domain.Task{ID: 1000, Description: "Survey (server)", Status: domain.TaskComplete}
	require.NoError(t, tr.Confirm(scope, id, TaskRef(1000), server))

	assert.Equal(t, 0, tr.Pending())
	confirmed, _ := tr.Confirmed()
	assert.Equal(t, "Survey (server)", confirmed.Objectives[0].Activities[0].Tasks[0].Description)
}

func TestOverlay_StageMissingTarget(t *testing.T) {
	f := newFakeFetcher(sampleProject())
	tr, _ := loadedTree(t, f, 1)
	scope, _ := tr.Scope()

	_, err := tr.StageUpdate(scope, TaskRef(404), domain.Task{ID: 404})
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = tr.StageDelete(scope, TaskRef(404))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestOverlay_SurvivesReconcileUntilSettled(t *testing.T) {
	f := newFakeFetcher(sampleProject())
	tr, _ := loadedTree(t, f, 1)
	scope, _ := tr.Scope()

	id, err := tr.StageDelete(scope, TaskRef(1001))
	require.NoError(t, err)
	_, err = tr.Reconcile(context.Background())
	require.NoError(t, err)
	<-f.started

	_, found := tr.Task(1001)
	assert.False(t, found)
	tr.Settle(id)
	_, found = tr.Task(1001)
	assert.True(t, found)
}

func TestParentAndBudgetLookups(t *testing.T) {
	f := newFakeFetcher(sampleProject())
	tr, _ := loadedTree(t, f, 1)

	parent, ok := tr.Parent(TaskRef(1000))
	require.True(t, ok)
	assert.Equal(t, ActivityRef(100), parent)

	b, ok := tr.ActivityBudget(100)
	require.True(t, ok)
	assert.Equal(t, 400, b.ID)
	_, ok = tr.ActivityBudget(101)
	assert.False(t, ok)
}

func TestOnChangeFires(t *testing.T) {
	f := newFakeFetcher(sampleProject())
	tr := New(f, nil, nil)
	var n int32
	tr.OnChange(func() { atomic.AddInt32(&n, 1) })

	_, err := tr.Load(context.Background(), 1)
	require.NoError(t, err)
	assert.GreaterOrEqual(t, atomic.LoadInt32(&n), int32(2))
}
