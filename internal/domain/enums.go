package domain

import (
	"fmt"
	"strings"
)

type Role string

const (
	RoleFieldOfficer      Role = "Field Officer"
	RoleMonitoringOfficer Role = "Monitoring Officer"
	RoleProjectManager    Role = "Project Manager"
)

// Roles is the canonical ordered set of user roles.
var Roles = []Role{RoleFieldOfficer, RoleMonitoringOfficer, RoleProjectManager}

// ParseRole accepts the wire form ("Project Manager") as well as compact
// forms such as "project-manager", "ProjectManager" or "pm".
func ParseRole(s string) (Role, error) {
	key := strings.ToLower(strings.TrimSpace(s))
	key = strings.NewReplacer(" ", "", "-", "", "_", "").Replace(key)
	switch key {
	case "fieldofficer", "fo":
		return RoleFieldOfficer, nil
	case "monitoringofficer", "mo":
		return RoleMonitoringOfficer, nil
	case "projectmanager", "pm":
		return RoleProjectManager, nil
	}
	return "", fmt.Errorf("unknown role %q (expected one of: Field Officer, Monitoring Officer, Project Manager)", s)
}

func (r Role) Valid() bool {
	switch r {
	case RoleFieldOfficer, RoleMonitoringOfficer, RoleProjectManager:
		return true
	}
	return false
}

// Privileged reports whether the role is a MonitoringOfficer or ProjectManager.
func (r Role) Privileged() bool {
	return r == RoleMonitoringOfficer || r == RoleProjectManager
}

type TaskStatus string

const (
	TaskPending  TaskStatus = "Pending"
	TaskComplete TaskStatus = "Complete"
)

// Toggle flips Pending and Complete. Any other value is treated as Pending.
func (s TaskStatus) Toggle() TaskStatus {
	if s == TaskComplete {
		return TaskPending
	}
	return TaskComplete
}

type DueState string

const (
	DueNone     DueState = "none"
	DueSoon     DueState = "due_soon"
	DueOverdue  DueState = "overdue"
	DueComplete DueState = "complete"
)
