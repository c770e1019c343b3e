package tree

import (
	"fmt"

	"github.com/orchidnexus/orchid/internal/domain"
)

// node holds an entity's own attributes; its nested slices are always nil
// and the structure lives in children.
type node struct {
	parent   Ref
	value    any
	children []Ref
}

// store is a normalized index of one project's graph. Mutations touch the
// affected node and its parent only.
type store struct {
	root  Ref
	nodes map[Ref]*node
}

func newStore(p domain.Project) *store {
	s := &store{
		root:  ProjectRef(p.ID),
		nodes: make(map[Ref]*node),
	}
	s.nodes[s.root] = &node{value: domain.Project{ID: p.ID, Name: p.Name}}
	for _, o := range p.Objectives {
		// A decoded backend tree is well formed; anything else is skipped.
		_, _ = s.add(s.root, -1, o)
	}
	return s
}

// split separates an entity into its ref, its attribute-only value and its
// direct children.
func split(entity any) (Ref, any, []any, error) {
	switch e := entity.(type) {
	case *domain.Objective:
		return split(*e)
	case *domain.Activity:
		return split(*e)
	case *domain.Task:
		return split(*e)
	case *domain.Deliverable:
		return split(*e)
	case *domain.KPI:
		return split(*e)
	case *domain.Budget:
		return split(*e)
	case *domain.Expense:
		return split(*e)

	case domain.Objective:
		kids := make([]any, 0, len(e.Activities))
		for _, a := range e.Activities {
			kids = append(kids, a)
		}
		e.Activities = nil
		return ObjectiveRef(e.ID), e, kids, nil
	case domain.Activity:
		kids := make([]any, 0, len(e.Tasks)+len(e.KPIs)+1)
		for _, t := range e.Tasks {
			kids = append(kids, t)
		}
		for _, k := range e.KPIs {
			kids = append(kids, k)
		}
		if e.Budget != nil {
			kids = append(kids, *e.Budget)
		}
		e.Tasks, e.KPIs, e.Budget = nil, nil, nil
		return ActivityRef(e.ID), e, kids, nil
	case domain.Task:
		kids := make([]any, 0, len(e.Deliverables))
		for _, d := range e.Deliverables {
			kids = append(kids, d)
		}
		e.Deliverables = nil
		return TaskRef(e.ID), e, kids, nil
	case domain.Deliverable:
		return DeliverableRef(e.ID), e, nil, nil
	case domain.KPI:
		return KPIRef(e.ID), e, nil, nil
	case domain.Budget:
		kids := make([]any, 0, len(e.Expenses))
		for _, x := range e.Expenses {
			kids = append(kids, x)
		}
		e.Expenses = nil
		return BudgetRef(e.ID), e, kids, nil
	case domain.Expense:
		return ExpenseRef(e.ID), e, nil, nil
	}
	return Ref{}, nil, nil, fmt.Errorf("%w: %T", ErrUnknownEntity, entity)
}

// add indexes entity and its descendants under parent at position pos, or
// appends when pos < 0. An entity already present is replaced, in place when
// it keeps its parent, so no node ever has two parents.
func (s *store) add(parent Ref, pos int, entity any) (Ref, error) {
	ref, attrs, kids, err := split(entity)
	if err != nil {
		return Ref{}, err
	}
	p, ok := s.nodes[parent]
	if !ok {
		return Ref{}, fmt.Errorf("add %s under %s: %w", ref, parent, ErrNotFound)
	}
	if parentKinds[ref.Kind] != parent.Kind {
		return Ref{}, fmt.Errorf("add %s under %s: %w", ref, parent, ErrWrongParent)
	}

	if old, exists := s.nodes[ref]; exists {
		if old.parent == parent && pos < 0 {
			pos = indexOf(p.children, ref)
		}
		s.remove(ref)
	}
	if ref.Kind == KindBudget {
		// An activity has at most one budget.
		for _, c := range append([]Ref(nil), p.children...) {
			if c.Kind == KindBudget {
				s.remove(c)
			}
		}
	}

	s.nodes[ref] = &node{parent: parent, value: attrs}
	p.children = insertAt(p.children, pos, ref)
	for _, k := range kids {
		if _, err := s.add(ref, -1, k); err != nil {
			return Ref{}, err
		}
	}
	return ref, nil
}

// remove deletes ref and its whole subtree, returning the number of nodes
// removed. The root cannot be removed.
func (s *store) remove(ref Ref) int {
	n, ok := s.nodes[ref]
	if !ok || ref == s.root {
		return 0
	}
	count := 0
	for _, c := range append([]Ref(nil), n.children...) {
		count += s.remove(c)
	}
	if p, ok := s.nodes[n.parent]; ok {
		if i := indexOf(p.children, ref); i >= 0 {
			p.children = append(p.children[:i], p.children[i+1:]...)
		}
	}
	delete(s.nodes, ref)
	return count + 1
}

// update replaces the attributes of ref and keeps its children.
func (s *store) update(ref Ref, value any) error {
	got, attrs, _, err := split(value)
	if err != nil {
		return err
	}
	if got != ref {
		return fmt.Errorf("update %s with %s: %w", ref, got, ErrNotFound)
	}
	n, ok := s.nodes[ref]
	if !ok {
		return fmt.Errorf("update %s: %w", ref, ErrNotFound)
	}
	n.value = attrs
	return nil
}

func (s *store) has(ref Ref) bool {
	_, ok := s.nodes[ref]
	return ok
}

func (s *store) clone() *store {
	c := &store{root: s.root, nodes: make(map[Ref]*node, len(s.nodes))}
	for ref, n := range s.nodes {
		c.nodes[ref] = &node{
			parent:   n.parent,
			value:    n.value,
			children: append([]Ref(nil), n.children...),
		}
	}
	return c
}

// project materializes a fresh nested copy of the whole graph.
func (s *store) project() domain.Project {
	root := s.nodes[s.root]
	p := root.value.(domain.Project)
	for _, c := range root.children {
		p.Objectives = append(p.Objectives, s.objective(c))
	}
	return p
}

// entity materializes the subtree rooted at ref.
func (s *store) entity(ref Ref) (any, bool) {
	if !s.has(ref) {
		return nil, false
	}
	switch ref.Kind {
	case KindProject:
		return s.project(), true
	case KindObjective:
		return s.objective(ref), true
	case KindActivity:
		return s.activity(ref), true
	case KindTask:
		return s.task(ref), true
	case KindBudget:
		return s.budget(ref), true
	}
	return s.nodes[ref].value, true
}

func (s *store) objective(ref Ref) domain.Objective {
	n := s.nodes[ref]
	o := n.value.(domain.Objective)
	for _, c := range n.children {
		o.Activities = append(o.Activities, s.activity(c))
	}
	return o
}

func (s *store) activity(ref Ref) domain.Activity {
	n := s.nodes[ref]
	a := n.value.(domain.Activity)
	for _, c := range n.children {
		switch c.Kind {
		case KindTask:
			a.Tasks = append(a.Tasks, s.task(c))
		case KindKPI:
			a.KPIs = append(a.KPIs, s.nodes[c].value.(domain.KPI))
		case KindBudget:
			b := s.budget(c)
			a.Budget = &b
		}
	}
	return a
}

func (s *store) task(ref Ref) domain.Task {
	n := s.nodes[ref]
	t := n.value.(domain.Task)
	for _, c := range n.children {
		t.Deliverables = append(t.Deliverables, s.nodes[c].value.(domain.Deliverable))
	}
	return t
}

func (s *store) budget(ref Ref) domain.Budget {
	n := s.nodes[ref]
	b := n.value.(domain.Budget)
	for _, c := range n.children {
		b.Expenses = append(b.Expenses, s.nodes[c].value.(domain.Expense))
	}
	return b
}

func indexOf(refs []Ref, ref Ref) int {
	for i, r := range refs {
		if r == ref {
			return i
		}
	}
	return -1
}

func insertAt(refs []Ref, pos int, ref Ref) []Ref {
	if pos < 0 || pos >= len(refs) {
		return append(refs, ref)
	}
	refs = append(refs, Ref{})
	copy(refs[pos+1:], refs[pos:])
	refs[pos] = ref
	return refs
}
