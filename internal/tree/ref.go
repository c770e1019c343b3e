package tree

import (
	"errors"
	"fmt"
)

var (
	ErrNoActiveProject = errors.New("no project loaded")
	ErrStaleResult     = errors.New("result belongs to a project that is no longer active")
	ErrNotFound        = errors.New("entity not found in tree")
	ErrWrongParent     = errors.New("entity cannot be placed under that parent")
	ErrUnknownEntity   = errors.New("unsupported entity type")
)

type Kind string

const (
	KindProject     Kind = "project"
	KindObjective   Kind = "objective"
	KindActivity    Kind = "activity"
	KindTask        Kind = "task"
	KindDeliverable Kind = "deliverable"
	KindKPI         Kind = "kpi"
	KindBudget      Kind = "budget"
	KindExpense     Kind = "expense"
)

// parentKinds is the containment rule of the hierarchy.
var parentKinds = map[Kind]Kind{
	KindObjective:   KindProject,
	KindActivity:    KindObjective,
	KindTask:        KindActivity,
	KindKPI:         KindActivity,
	KindBudget:      KindActivity,
	KindDeliverable: KindTask,
	KindExpense:     KindBudget,
}

// Ref addresses one node. IDs are only unique within a kind.
type Ref struct {
	Kind Kind
	ID   int
}

func (r Ref) String() string {
	return fmt.Sprintf("%s:%d", r.Kind, r.ID)
}

func ProjectRef(id int) Ref     { return Ref{KindProject, id} }
func ObjectiveRef(id int) Ref   { return Ref{KindObjective, id} }
func ActivityRef(id int) Ref    { return Ref{KindActivity, id} }
func TaskRef(id int) Ref        { return Ref{KindTask, id} }
func DeliverableRef(id int) Ref { return Ref{KindDeliverable, id} }
func KPIRef(id int) Ref         { return Ref{KindKPI, id} }
func BudgetRef(id int) Ref      { return Ref{KindBudget, id} }
func ExpenseRef(id int) Ref     { return Ref{KindExpense, id} }
