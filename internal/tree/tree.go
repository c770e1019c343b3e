// Package tree caches one project's nested graph and keeps it in step with
// the backend.
//
// The confirmed layer only ever holds server-confirmed state: it is replaced
// wholesale by a reconcile, or patched by ApplyLocal* after the backend has
// accepted a mutation. Optimistic changes live in a separate overlay of
// pending operations that is merged in at read time.
//
// At most one full-tree fetch per project generation is in flight. Dispose
// starts a new generation, so results of fetches issued before it are
// discarded on arrival.
package tree

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/orchidnexus/orchid/internal/domain"
	"github.com/orchidnexus/orchid/internal/logging"
	"github.com/orchidnexus/orchid/internal/metrics"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

// Fetcher loads the authoritative tree of one project.
type Fetcher interface {
	GetProject(ctx context.Context, id int) (domain.Project, error)
}

// Scope identifies one project generation. Mutations applied with a scope
// that is no longer current fail with ErrStaleResult.
type Scope struct {
	ProjectID  int
	generation uint64
}

type Tree struct {
	fetch   Fetcher
	logger  *zap.Logger
	metrics *metrics.Metrics
	group   singleflight.Group

	mu         sync.RWMutex
	projectID  int
	generation uint64
	genCtx     context.Context
	cancel     context.CancelFunc
	confirmed  *store
	pending    []pendingOp
	inflight   string
	onChange   func()
}

func New(fetch Fetcher, logger *zap.Logger, m *metrics.Metrics) *Tree {
	if m == nil {
		m = metrics.Discard()
	}
	t := &Tree{
		fetch:   fetch,
		logger:  logging.OrNop(logger),
		metrics: m,
	}
	t.genCtx, t.cancel = context.WithCancel(context.Background())
	return t
}

// OnChange registers fn to run after every change to the visible tree. fn
// runs without the tree lock held.
func (t *Tree) OnChange(fn func()) {
	t.mu.Lock()
	t.onChange = fn
	t.mu.Unlock()
}

func (t *Tree) changed() {
	t.mu.RLock()
	fn := t.onChange
	t.mu.RUnlock()
	if fn != nil {
		fn()
	}
}

// ProjectID returns the active project id, or 0.
func (t *Tree) ProjectID() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.projectID
}

func (t *Tree) Scope() (Scope, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.projectID == 0 {
		return Scope{}, ErrNoActiveProject
	}
	return Scope{ProjectID: t.projectID, generation: t.generation}, nil
}

// Load makes projectID the active project, evicting whatever was cached,
// and fetches its tree.
func (t *Tree) Load(ctx context.Context, projectID int) (domain.Project, error) {
	t.mu.Lock()
	t.disposeLocked()
	t.projectID = projectID
	t.mu.Unlock()
	t.changed()

	p, err := t.ReconcileProject(ctx, projectID)
	if err != nil {
		return domain.Project{}, fmt.Errorf("load project %d: %w", projectID, err)
	}
	return p, nil
}

// Dispose evicts the cache. In-flight fetches are cancelled and their
// results, should they still arrive, are dropped.
func (t *Tree) Dispose() {
	t.mu.Lock()
	t.disposeLocked()
	t.mu.Unlock()
	t.changed()
}

func (t *Tree) disposeLocked() {
	t.cancel()
	t.generation++
	t.genCtx, t.cancel = context.WithCancel(context.Background())
	t.projectID = 0
	t.confirmed = nil
	t.pending = nil
	t.inflight = ""
}

// Reconcile re-fetches the active project and replaces the cache wholesale.
func (t *Tree) Reconcile(ctx context.Context) (domain.Project, error) {
	t.mu.RLock()
	id := t.projectID
	t.mu.RUnlock()
	if id == 0 {
		return domain.Project{}, ErrNoActiveProject
	}
	return t.ReconcileProject(ctx, id)
}

// ReconcileProject reconciles only if projectID is still the active
// project. Concurrent callers for the same generation share one fetch and
// all observe its result. Cancelling ctx abandons the wait, not the fetch.
func (t *Tree) ReconcileProject(ctx context.Context, projectID int) (domain.Project, error) {
	t.mu.Lock()
	active, gen, genCtx := t.projectID, t.generation, t.genCtx
	if active == 0 {
		t.mu.Unlock()
		return domain.Project{}, ErrNoActiveProject
	}
	if active != projectID {
		t.mu.Unlock()
		t.metrics.ReconcileStale.Inc()
		t.logger.Debug("dropping reconcile for inactive project",
			zap.Int("project_id", projectID), zap.Int("active_project_id", active))
		return domain.Project{}, ErrStaleResult
	}
	key := fmt.Sprintf("%d/%d", projectID, gen)
	if t.inflight == key {
		t.metrics.ReconcileJoined.Inc()
	} else {
		t.inflight = key
	}
	t.mu.Unlock()

	ch := t.group.DoChan(key, func() (any, error) {
		return t.fetchAndInstall(genCtx, key, projectID, gen)
	})
	select {
	case res := <-ch:
		if res.Err != nil {
			return domain.Project{}, res.Err
		}
		return res.Val.(domain.Project), nil
	case <-ctx.Done():
		return domain.Project{}, ctx.Err()
	}
}

func (t *Tree) fetchAndInstall(ctx context.Context, key string, projectID int, gen uint64) (domain.Project, error) {
	t.metrics.ReconcileFetches.Inc()
	p, err := t.fetch.GetProject(ctx, projectID)

	t.mu.Lock()
	if t.inflight == key {
		t.inflight = ""
	}
	if t.generation != gen || t.projectID != projectID {
		t.mu.Unlock()
		t.metrics.ReconcileStale.Inc()
		t.logger.Debug("discarding stale project fetch", zap.Int("project_id", projectID))
		if err != nil {
			return domain.Project{}, fmt.Errorf("fetch project %d: %w: %w", projectID, ErrStaleResult, err)
		}
		return domain.Project{}, ErrStaleResult
	}
	if err != nil {
		t.mu.Unlock()
		t.metrics.ReconcileFailures.Inc()
		return domain.Project{}, fmt.Errorf("fetch project %d: %w", projectID, err)
	}
	if p.ID != projectID {
		t.mu.Unlock()
		return domain.Project{}, fmt.Errorf("fetch project %d: backend returned project %d", projectID, p.ID)
	}
	t.confirmed = newStore(p)
	snap := t.viewLocked().project()
	t.mu.Unlock()

	t.changed()
	return snap, nil
}

// Snapshot returns a fresh nested copy of the tree with pending optimistic
// operations applied.
func (t *Tree) Snapshot() (domain.Project, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.confirmed == nil {
		return domain.Project{}, ErrNoActiveProject
	}
	return t.viewLocked().project(), nil
}

// Confirmed returns the tree without the pending overlay.
func (t *Tree) Confirmed() (domain.Project, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.confirmed == nil {
		return domain.Project{}, ErrNoActiveProject
	}
	return t.confirmed.project(), nil
}

// Find materializes the subtree at ref from the merged view.
func (t *Tree) Find(ref Ref) (any, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.confirmed == nil {
		return nil, false
	}
	return t.viewLocked().entity(ref)
}

// Parent returns the parent of ref in the merged view.
func (t *Tree) Parent(ref Ref) (Ref, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.confirmed == nil {
		return Ref{}, false
	}
	n, ok := t.viewLocked().nodes[ref]
	if !ok || ref.Kind == KindProject {
		return Ref{}, false
	}
	return n.parent, true
}

// Task returns a cached task with its deliverables.
func (t *Tree) Task(id int) (domain.Task, bool) {
	v, ok := t.Find(TaskRef(id))
	if !ok {
		return domain.Task{}, false
	}
	return v.(domain.Task), true
}

// ActivityBudget returns the cached budget of an activity, if any.
func (t *Tree) ActivityBudget(activityID int) (*domain.Budget, bool) {
	v, ok := t.Find(ActivityRef(activityID))
	if !ok {
		return nil, false
	}
	a := v.(domain.Activity)
	return a.Budget, a.Budget != nil
}

// ApplyLocalCreate appends a backend-confirmed entity, with any nested
// children, under parent.
func (t *Tree) ApplyLocalCreate(scope Scope, parent Ref, entity any) error {
	return t.mutate(scope, func(s *store) error {
		_, err := s.add(parent, -1, entity)
		return err
	})
}

// ApplyLocalDelete removes ref and everything beneath it.
func (t *Tree) ApplyLocalDelete(scope Scope, ref Ref) error {
	return t.mutate(scope, func(s *store) error {
		if ref.Kind == KindProject {
			return fmt.Errorf("delete %s: %w", ref, ErrWrongParent)
		}
		if s.remove(ref) == 0 {
			return fmt.Errorf("delete %s: %w", ref, ErrNotFound)
		}
		return nil
	})
}

// ApplyLocalUpdate replaces the attributes of ref with those of value,
// keeping the node's children.
func (t *Tree) ApplyLocalUpdate(scope Scope, ref Ref, value any) error {
	return t.mutate(scope, func(s *store) error {
		return s.update(ref, value)
	})
}

func (t *Tree) mutate(scope Scope, fn func(*store) error) error {
	t.mu.Lock()
	if err := t.checkScopeLocked(scope); err != nil {
		t.mu.Unlock()
		return err
	}
	err := fn(t.confirmed)
	t.mu.Unlock()
	if err != nil {
		return err
	}
	t.changed()
	return nil
}

func (t *Tree) checkScopeLocked(scope Scope) error {
	if t.projectID == 0 {
		return ErrNoActiveProject
	}
	if scope.ProjectID != t.projectID || scope.generation != t.generation {
		return ErrStaleResult
	}
	if t.confirmed == nil {
		return ErrNoActiveProject
	}
	return nil
}

// IsStale reports whether err means a result was dropped because the
// project it belonged to is no longer active.
func IsStale(err error) bool {
	return errors.Is(err, ErrStaleResult)
}

type pendingOp struct {
	id    uuid.UUID
	label string
	apply func(*store) error
}

// viewLocked returns the confirmed store, or a copy with pending operations
// applied. Operations whose target has vanished are skipped.
func (t *Tree) viewLocked() *store {
	if len(t.pending) == 0 {
		return t.confirmed
	}
	v := t.confirmed.clone()
	for _, op := range t.pending {
		if err := op.apply(v); err != nil {
			t.logger.Debug("pending operation no longer applies",
				zap.String("op", op.label), zap.Error(err))
		}
	}
	return v
}
