package testutil

import (
	"time"

	"github.com/orchidnexus/orchid/internal/domain"
)

type ProjectOption func(*domain.Project)

func WithObjectives(objs ...domain.Objective) ProjectOption {
	return func(p *domain.Project) {
		p.Objectives = append(p.Objectives, objs...)
	}
}

func NewTestProject(id int, name string, opts ...ProjectOption) domain.Project {
	p := domain.Project{ID: id, Name: name, Objectives: []domain.Objective{}}
	for _, opt := range opts {
		opt(&p)
	}
	return p
}

type ObjectiveOption func(*domain.Objective)

func WithActivities(acts ...domain.Activity) ObjectiveOption {
	return func(o *domain.Objective) {
		o.Activities = append(o.Activities, acts...)
	}
}

func NewTestObjective(id int, name string, opts ...ObjectiveOption) domain.Objective {
	o := domain.Objective{ID: id, Name: name, Activities: []domain.Activity{}}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

type ActivityOption func(*domain.Activity)

func WithTasks(tasks ...domain.Task) ActivityOption {
	return func(a *domain.Activity) {
		a.Tasks = append(a.Tasks, tasks...)
	}
}

func WithKPIs(kpis ...domain.KPI) ActivityOption {
	return func(a *domain.Activity) {
		a.KPIs = append(a.KPIs, kpis...)
	}
}

// WithBudget attaches a budget with the given expense amounts. Expense ids
// are derived from the budget id.
func WithBudget(id int, total float64, expenses ...float64) ActivityOption {
	return func(a *domain.Activity) {
		b := &domain.Budget{ID: id, ActivityID: a.ID, TotalAmount: total, Expenses: []domain.Expense{}}
		for i, amt := range expenses {
			b.Expenses = append(b.Expenses, domain.Expense{
				ID:          id*100 + i + 1,
				Amount:      amt,
				Description: "expense",
				Timestamp:   domain.Timestamp{Time: time.Date(2025, 6, 1+i, 9, 0, 0, 0, time.UTC)},
			})
		}
		a.Budget = b
	}
}

func NewTestActivity(id int, name string, opts ...ActivityOption) domain.Activity {
	a := domain.Activity{ID: id, Name: name, Tasks: []domain.Task{}, KPIs: []domain.KPI{}}
	for _, opt := range opts {
		opt(&a)
	}
	return a
}

type TaskOption func(*domain.Task)

func AssignedTo(u domain.User) TaskOption {
	return func(t *domain.Task) {
		t.Assignee = &u
	}
}

func DueOn(year int, month time.Month, day int) TaskOption {
	return func(t *domain.Task) {
		d := domain.Date{Year: year, Month: month, Day: day}
		t.EndDate = &d
	}
}

func Completed() TaskOption {
	return func(t *domain.Task) {
		t.Status = domain.TaskComplete
	}
}

func NewTestTask(id int, desc string, opts ...TaskOption) domain.Task {
	t := domain.Task{ID: id, Description: desc, Status: domain.TaskPending, Deliverables: []domain.Deliverable{}}
	for _, opt := range opts {
		opt(&t)
	}
	return t
}

func NewTestKPI(id int, name string, target, current float64) domain.KPI {
	return domain.KPI{ID: id, Name: name, Unit: "count", TargetValue: target, CurrentValue: current}
}

// NewTestInventoryRecord reuses id for the item and location ids.
func NewTestInventoryRecord(id int, item, location string, qty, threshold int) domain.InventoryRecord {
	return domain.InventoryRecord{
		ID:                id,
		Quantity:          qty,
		LowStockThreshold: threshold,
		ItemID:            id,
		LocationID:        id,
		Item:              domain.Item{ID: id, Name: item},
		Location:          domain.Location{ID: id, Name: location},
	}
}
