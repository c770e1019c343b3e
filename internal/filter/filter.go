// Package filter selects tasks with boolean expressions such as
//
//	overdue && !mine
//	status == "Pending" && assignee == "fo@example.org"
//
// evaluated per task by expr-lang/expr.
package filter

import (
	"fmt"
	"strings"
	"time"

	exprlang "github.com/expr-lang/expr"
	exprvm "github.com/expr-lang/expr/vm"
	"github.com/orchidnexus/orchid/internal/domain"
)

// Env is the per-task evaluation environment.
type Env struct {
	Description string `expr:"description"`
	Status      string `expr:"status"`
	Assignee    string `expr:"assignee"`
	AssigneeID  int    `expr:"assignee_id"`
	Activity    string `expr:"activity"`
	Objective   string `expr:"objective"`
	Overdue     bool   `expr:"overdue"`
	DueSoon     bool   `expr:"due_soon"`
	Complete    bool   `expr:"complete"`
	Mine        bool   `expr:"mine"`
}

// EnvFor builds the environment of t. Assignee is empty when unassigned.
func EnvFor(t domain.Task, objective, activity string, now time.Time, userID int) Env {
	env := Env{
		Description: t.Description,
		Status:      string(t.Status),
		Activity:    activity,
		Objective:   objective,
		Complete:    t.Status == domain.TaskComplete,
		Mine:        t.AssignedTo(userID),
	}
	if t.Assignee != nil {
		env.Assignee = t.Assignee.Email
		env.AssigneeID = t.Assignee.ID
	}
	switch t.DueState(now) {
	case domain.DueOverdue:
		env.Overdue = true
	case domain.DueSoon:
		env.DueSoon = true
	}
	return env
}

type Filter struct {
	source  string
	program *exprvm.Program
}

// Compile type-checks source against Env; it must yield a bool.
func Compile(source string) (*Filter, error) {
	source = strings.TrimSpace(source)
	if source == "" {
		return nil, fmt.Errorf("filter expression must not be empty")
	}
	program, err := exprlang.Compile(source, exprlang.Env(Env{}), exprlang.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile filter %q: %w", source, err)
	}
	return &Filter{source: source, program: program}, nil
}

// Mine keeps tasks assigned to the viewing user.
func Mine() *Filter {
	f, err := Compile("mine")
	if err != nil {
		panic(err)
	}
	return f
}

func (f *Filter) String() string { return f.source }

func (f *Filter) Match(env Env) (bool, error) {
	out, err := exprlang.Run(f.program, env)
	if err != nil {
		return false, fmt.Errorf("evaluate filter %q: %w", f.source, err)
	}
	return out.(bool), nil
}

// Apply returns a copy of p keeping only matching tasks. Objectives,
// activities, KPIs and budgets are kept even when all their tasks are
// filtered out. A nil filter returns p unchanged.
func Apply(p domain.Project, f *Filter, now time.Time, userID int) (domain.Project, error) {
	if f == nil {
		return p, nil
	}
	out := p
	out.Objectives = make([]domain.Objective, len(p.Objectives))
	for oi, o := range p.Objectives {
		o.Activities = append([]domain.Activity(nil), o.Activities...)
		for ai, a := range o.Activities {
			kept := make([]domain.Task, 0, len(a.Tasks))
			for _, t := range a.Tasks {
				ok, err := f.Match(EnvFor(t, o.Name, a.Name, now, userID))
				if err != nil {
					return domain.Project{}, err
				}
				if ok {
					kept = append(kept, t)
				}
			}
			a.Tasks = kept
			o.Activities[ai] = a
		}
		out.Objectives[oi] = o
	}
	return out, nil
}

// Count returns how many tasks of p match f.
func Count(p domain.Project, f *Filter, now time.Time, userID int) (int, error) {
	filtered, err := Apply(p, f, now, userID)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, o := range filtered.Objectives {
		for _, a := range o.Activities {
			n += len(a.Tasks)
		}
	}
	return n, nil
}
