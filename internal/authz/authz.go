// Package authz holds the role capability table. Every mutation is checked
// here before it is sent to the backend.
package authz

import (
	"errors"
	"fmt"

	"github.com/orchidnexus/orchid/internal/domain"
)

type Action string

const (
	CreateProject     Action = "create_project"
	DeleteProject     Action = "delete_project"
	CreateObjective   Action = "create_objective"
	UpdateObjective   Action = "update_objective"
	DeleteObjective   Action = "delete_objective"
	CreateActivity    Action = "create_activity"
	UpdateActivity    Action = "update_activity"
	DeleteActivity    Action = "delete_activity"
	CreateTask        Action = "create_task"
	DeleteTask        Action = "delete_task"
	ToggleTask        Action = "toggle_task"
	SubmitDeliverable Action = "submit_deliverable"
	CreateKPI         Action = "create_kpi"
	DeleteKPI         Action = "delete_kpi"
	AddKPIEntry       Action = "add_kpi_entry"
	SetThreshold      Action = "set_low_stock_threshold"
	Distribute        Action = "distribute"
	AddStock          Action = "add_stock"
	SetBudget         Action = "set_budget"
	LogExpense        Action = "log_expense"
	CreateItem        Action = "create_item"
	CreateLocation    Action = "create_location"
)

// ErrForbidden is matched by every ForbiddenError.
var ErrForbidden = errors.New("action not permitted for role")

type ForbiddenError struct {
	Role   domain.Role
	Action Action
}

func (e *ForbiddenError) Error() string {
	return fmt.Sprintf("%s may not %s", e.Role, e.Action)
}

func (e *ForbiddenError) Is(target error) bool {
	return target == ErrForbidden
}

var (
	managerOnly = []domain.Role{domain.RoleProjectManager}
	privileged  = []domain.Role{domain.RoleMonitoringOfficer, domain.RoleProjectManager}
	everyone    = domain.Roles
)

var capabilities = map[Action][]domain.Role{
	CreateProject:     managerOnly,
	DeleteProject:     managerOnly,
	CreateObjective:   managerOnly,
	UpdateObjective:   managerOnly,
	DeleteObjective:   managerOnly,
	CreateActivity:    managerOnly,
	UpdateActivity:    managerOnly,
	DeleteActivity:    managerOnly,
	CreateTask:        privileged,
	CreateKPI:         privileged,
	DeleteTask:        managerOnly,
	DeleteKPI:         managerOnly,
	ToggleTask:        everyone,
	SubmitDeliverable: everyone,
	AddKPIEntry:       everyone,
	SetThreshold:      managerOnly,
	Distribute:        everyone,
	AddStock:          everyone,
	SetBudget:         managerOnly,
	LogExpense:        everyone,
	CreateItem:        managerOnly,
	CreateLocation:    managerOnly,
}

// Actions lists every action in the capability table, in declaration order.
var Actions = []Action{
	CreateProject, DeleteProject,
	CreateObjective, UpdateObjective, DeleteObjective,
	CreateActivity, UpdateActivity, DeleteActivity,
	CreateTask, DeleteTask, ToggleTask, SubmitDeliverable,
	CreateKPI, DeleteKPI, AddKPIEntry,
	SetThreshold, Distribute, AddStock,
	SetBudget, LogExpense,
	CreateItem, CreateLocation,
}

// IsAllowed is total: unknown roles and unknown actions are denied.
func IsAllowed(role domain.Role, action Action) bool {
	for _, r := range capabilities[action] {
		if r == role {
			return true
		}
	}
	return false
}

// Check returns a *ForbiddenError when role may not perform action.
func Check(role domain.Role, action Action) error {
	if !IsAllowed(role, action) {
		return &ForbiddenError{Role: role, Action: action}
	}
	return nil
}

// Allowed returns the subset of Actions the role may perform.
func Allowed(role domain.Role) []Action {
	var out []Action
	for _, a := range Actions {
		if IsAllowed(role, a) {
			out = append(out, a)
		}
	}
	return out
}
