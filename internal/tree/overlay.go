package tree

import (
	"fmt"

	"github.com/google/uuid"
)

// StageUpdate records an optimistic attribute change for ref. It is visible
// through Snapshot until Settle removes it.
func (t *Tree) StageUpdate(scope Scope, ref Ref, value any) (uuid.UUID, error) {
	if _, _, _, err := split(value); err != nil {
		return uuid.Nil, err
	}
	return t.stage(scope, fmt.Sprintf("update %s", ref), ref, func(s *store) error {
		return s.update(ref, value)
	})
}

// StageCreate records an optimistic insertion under parent.
func (t *Tree) StageCreate(scope Scope, parent Ref, entity any) (uuid.UUID, error) {
	if _, _, _, err := split(entity); err != nil {
		return uuid.Nil, err
	}
	return t.stage(scope, fmt.Sprintf("create under %s", parent), parent, func(s *store) error {
		_, err := s.add(parent, -1, entity)
		return err
	})
}

// StageDelete records an optimistic removal of ref's subtree.
func (t *Tree) StageDelete(scope Scope, ref Ref) (uuid.UUID, error) {
	return t.stage(scope, fmt.Sprintf("delete %s", ref), ref, func(s *store) error {
		s.remove(ref)
		return nil
	})
}

func (t *Tree) stage(scope Scope, label string, target Ref, apply func(*store) error) (uuid.UUID, error) {
	t.mu.Lock()
	if err := t.checkScopeLocked(scope); err != nil {
		t.mu.Unlock()
		return uuid.Nil, err
	}
	if !t.viewLocked().has(target) {
		t.mu.Unlock()
		return uuid.Nil, fmt.Errorf("%s: %w", label, ErrNotFound)
	}
	id := uuid.New()
	t.pending = append(t.pending, pendingOp{id: id, label: label, apply: apply})
	t.mu.Unlock()

	t.changed()
	return id, nil
}

// Settle drops a pending operation, whether its backend call was confirmed
// or failed. Unknown ids are ignored.
func (t *Tree) Settle(id uuid.UUID) {
	t.mu.Lock()
	found := false
	for i, op := range t.pending {
		if op.id == id {
			t.pending = append(t.pending[:i], t.pending[i+1:]...)
			found = true
			break
		}
	}
	t.mu.Unlock()
	if found {
		t.changed()
	}
}

// Confirm settles a pending operation and applies the backend's
// authoritative value for ref in a single step.
func (t *Tree) Confirm(scope Scope, id uuid.UUID, ref Ref, value any) error {
	t.mu.Lock()
	for i, op := range t.pending {
		if op.id == id {
			t.pending = append(t.pending[:i], t.pending[i+1:]...)
			break
		}
	}
	if err := t.checkScopeLocked(scope); err != nil {
		t.mu.Unlock()
		return err
	}
	err := t.confirmed.update(ref, value)
	t.mu.Unlock()

	t.changed()
	return err
}

// Pending returns the number of unsettled optimistic operations.
func (t *Tree) Pending() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.pending)
}
