package gateway

import (
	"context"

	"github.com/orchidnexus/orchid/internal/api"
	"github.com/orchidnexus/orchid/internal/authz"
	"github.com/orchidnexus/orchid/internal/domain"
	"github.com/orchidnexus/orchid/internal/tree"
)

func (g *Gateway) CreateProject(ctx context.Context, name string) (domain.Project, error) {
	var out domain.Project
	err := g.run(authz.CreateProject, func() error {
		var err error
		out, err = g.backend.CreateProject(ctx, name)
		return err
	})
	return out, err
}

// DeleteProject evicts the cached tree when the deleted project is the one
// being viewed.
func (g *Gateway) DeleteProject(ctx context.Context, id int) error {
	return g.run(authz.DeleteProject, func() error {
		if err := g.backend.DeleteProject(ctx, id); err != nil {
			return err
		}
		if g.tree.ProjectID() == id {
			g.tree.Dispose()
		}
		return nil
	})
}

func (g *Gateway) CreateObjective(ctx context.Context, name string) (domain.Objective, error) {
	var out domain.Objective
	err := g.run(authz.CreateObjective, func() error {
		scope, err := g.scope()
		if err != nil {
			return err
		}
		out, err = g.backend.CreateObjective(ctx, scope.ProjectID, name)
		if err != nil {
			return err
		}
		g.settle(ctx, scope, authz.CreateObjective,
			g.tree.ApplyLocalCreate(scope, tree.ProjectRef(scope.ProjectID), out))
		return nil
	})
	return out, err
}

func (g *Gateway) RenameObjective(ctx context.Context, id int, name string) (domain.Objective, error) {
	var out domain.Objective
	err := g.run(authz.UpdateObjective, func() error {
		scope, err := g.scope()
		if err != nil {
			return err
		}
		out, err = g.backend.UpdateObjective(ctx, id, name)
		if err != nil {
			return err
		}
		g.settle(ctx, scope, authz.UpdateObjective,
			g.tree.ApplyLocalUpdate(scope, tree.ObjectiveRef(id), out))
		return nil
	})
	return out, err
}

// DeleteObjective removes the objective's subtree once the backend confirms,
// then reconciles to pick up any server-side cascade.
func (g *Gateway) DeleteObjective(ctx context.Context, id int) error {
	return g.deleteCascading(ctx, authz.DeleteObjective, tree.ObjectiveRef(id), g.backend.DeleteObjective)
}

func (g *Gateway) CreateActivity(ctx context.Context, objectiveID int, name string) (domain.Activity, error) {
	var out domain.Activity
	err := g.run(authz.CreateActivity, func() error {
		scope, err := g.scope()
		if err != nil {
			return err
		}
		out, err = g.backend.CreateActivity(ctx, objectiveID, name)
		if err != nil {
			return err
		}
		g.settle(ctx, scope, authz.CreateActivity,
			g.tree.ApplyLocalCreate(scope, tree.ObjectiveRef(objectiveID), out))
		return nil
	})
	return out, err
}

func (g *Gateway) RenameActivity(ctx context.Context, id int, name string) (domain.Activity, error) {
	var out domain.Activity
	err := g.run(authz.UpdateActivity, func() error {
		scope, err := g.scope()
		if err != nil {
			return err
		}
		out, err = g.backend.UpdateActivity(ctx, id, name)
		if err != nil {
			return err
		}
		g.settle(ctx, scope, authz.UpdateActivity,
			g.tree.ApplyLocalUpdate(scope, tree.ActivityRef(id), out))
		return nil
	})
	return out, err
}

func (g *Gateway) DeleteActivity(ctx context.Context, id int) error {
	return g.deleteCascading(ctx, authz.DeleteActivity, tree.ActivityRef(id), g.backend.DeleteActivity)
}

func (g *Gateway) deleteCascading(ctx context.Context, action authz.Action, ref tree.Ref, del func(context.Context, int) error) error {
	return g.run(action, func() error {
		scope, err := g.scope()
		if err != nil {
			return err
		}
		if err := del(ctx, ref.ID); err != nil {
			return err
		}
		// The subtree may already be gone if a push-driven reconcile won.
		if err := g.tree.ApplyLocalDelete(scope, ref); err != nil && !tree.IsStale(err) {
			g.logger.Debug("local delete skipped", zapRef(ref), zapErr(err))
		}
		g.reconcile(ctx, scope)
		return nil
	})
}

func (g *Gateway) CreateTask(ctx context.Context, t api.NewTask) (domain.Task, error) {
	var out domain.Task
	err := g.run(authz.CreateTask, func() error {
		scope, err := g.scope()
		if err != nil {
			return err
		}
		out, err = g.backend.CreateTask(ctx, t)
		if err != nil {
			return err
		}
		g.settle(ctx, scope, authz.CreateTask,
			g.tree.ApplyLocalCreate(scope, tree.ActivityRef(t.ActivityID), out))
		return nil
	})
	return out, err
}

// ToggleTask flips a task's status optimistically: the flipped status is
// visible at once through the overlay and replaced by the server's task on
// success, or withdrawn on failure.
func (g *Gateway) ToggleTask(ctx context.Context, id int) (domain.Task, error) {
	var out domain.Task
	err := g.run(authz.ToggleTask, func() error {
		scope, err := g.scope()
		if err != nil {
			return err
		}
		current, ok := g.tree.Task(id)
		if !ok {
			return tree.ErrNotFound
		}
		optimistic := current
		optimistic.Status = current.Status.Toggle()
		opID, err := g.tree.StageUpdate(scope, tree.TaskRef(id), optimistic)
		if err != nil {
			return err
		}

		out, err = g.backend.ToggleTaskStatus(ctx, id)
		if err != nil {
			g.tree.Settle(opID)
			return err
		}
		g.settle(ctx, scope, authz.ToggleTask, g.tree.Confirm(scope, opID, tree.TaskRef(id), out))
		return nil
	})
	return out, err
}

func (g *Gateway) DeleteTask(ctx context.Context, id int) error {
	return g.deleteLeaf(ctx, authz.DeleteTask, tree.TaskRef(id), g.backend.DeleteTask)
}

func (g *Gateway) SubmitDeliverable(ctx context.Context, d api.NewDeliverable) (domain.Deliverable, error) {
	var out domain.Deliverable
	err := g.run(authz.SubmitDeliverable, func() error {
		scope, err := g.scope()
		if err != nil {
			return err
		}
		out, err = g.backend.SubmitDeliverable(ctx, d)
		if err != nil {
			return err
		}
		g.settle(ctx, scope, authz.SubmitDeliverable,
			g.tree.ApplyLocalCreate(scope, tree.TaskRef(d.TaskID), out))
		return nil
	})
	return out, err
}

func (g *Gateway) deleteLeaf(ctx context.Context, action authz.Action, ref tree.Ref, del func(context.Context, int) error) error {
	return g.run(action, func() error {
		scope, err := g.scope()
		if err != nil {
			return err
		}
		if err := del(ctx, ref.ID); err != nil {
			return err
		}
		if err := g.tree.ApplyLocalDelete(scope, ref); err != nil && !tree.IsStale(err) {
			g.logger.Debug("local delete skipped", zapRef(ref), zapErr(err))
		}
		return nil
	})
}
