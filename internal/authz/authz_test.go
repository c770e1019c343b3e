package authz

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/orchidnexus/orchid/internal/domain"
)

func TestManagerOnlyActionsDeniedToOthers(t *testing.T) {
	managerOnlyActions := []Action{
		CreateProject, DeleteProject,
		CreateObjective, UpdateObjective, DeleteObjective,
		CreateActivity, UpdateActivity, DeleteActivity,
		DeleteTask, DeleteKPI,
		SetThreshold, SetBudget,
		CreateItem, CreateLocation,
	}
	for _, a := range managerOnlyActions {
		assert.True(t, IsAllowed(domain.RoleProjectManager, a), a)
		assert.False(t, IsAllowed(domain.RoleMonitoringOfficer, a), a)
		assert.False(t, IsAllowed(domain.RoleFieldOfficer, a), a)
	}
}

func TestPrivilegedActions(t *testing.T) {
	for _, a := range []Action{CreateTask, CreateKPI} {
		assert.False(t, IsAllowed(domain.RoleFieldOfficer, a), a)
		assert.True(t, IsAllowed(domain.RoleMonitoringOfficer, a), a)
		assert.True(t, IsAllowed(domain.RoleProjectManager, a), a)
	}
}

func TestEveryoneActions(t *testing.T) {
	for _, a := range []Action{ToggleTask, SubmitDeliverable, AddKPIEntry, Distribute, AddStock, LogExpense} {
		for _, r := range domain.Roles {
			assert.True(t, IsAllowed(r, a), "%s %s", r, a)
		}
	}
}

func TestIsAllowed_TotalOverUnknowns(t *testing.T) {
	assert.False(t, IsAllowed(domain.Role("Auditor"), ToggleTask))
	assert.False(t, IsAllowed(domain.RoleProjectManager, Action("launch_rocket")))
}

func TestEveryActionHasTableRow(t *testing.T) {
	require.Len(t, capabilities, len(Actions))
	for _, a := range Actions {
		_, ok := capabilities[a]
		assert.True(t, ok, a)
	}
}

func TestCheck(t *testing.T) {
	require.NoError(t, Check(domain.RoleProjectManager, DeleteObjective))

	err := Check(domain.RoleFieldOfficer, DeleteObjective)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrForbidden))

	var fe *ForbiddenError
	require.True(t, errors.As(err, &fe))
	assert.Equal(t, domain.RoleFieldOfficer, fe.Role)
	assert.Equal(t, DeleteObjective, fe.Action)
	assert.Contains(t, err.Error(), "delete_objective")
}

func TestAllowed(t *testing.T) {
	assert.Len(t, Allowed(domain.RoleProjectManager), len(Actions))
	assert.ElementsMatch(t,
		[]Action{ToggleTask, SubmitDeliverable, AddKPIEntry, Distribute, AddStock, LogExpense},
		Allowed(domain.RoleFieldOfficer))
}
