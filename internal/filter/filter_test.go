package filter

import (
	"testing"
	"time"

	"github.com/orchidnexus/orchid/internal/domain"
	"github.com/orchidnexus/orchid/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	testNow = time.Date(2025, 6, 15, 12, 0, 0, 0, time.UTC)
	alice   = domain.User{ID: 1, Email: "alice@example.org", Role: domain.RoleFieldOfficer}
	bob     = domain.User{ID: 2, Email: "bob@example.org", Role: domain.RoleFieldOfficer}
)

func fieldProject() domain.Project {
	return testutil.NewTestProject(1, "Water", testutil.WithObjectives(
		testutil.NewTestObjective(10, "Access", testutil.WithActivities(
			testutil.NewTestActivity(100, "Wells",
				testutil.WithTasks(
					testutil.NewTestTask(1, "Survey", testutil.AssignedTo(alice), testutil.DueOn(2025, time.June, 1)),
					testutil.NewTestTask(2, "Drill", testutil.AssignedTo(bob), testutil.DueOn(2025, time.June, 17)),
					testutil.NewTestTask(3, "Report", testutil.AssignedTo(alice), testutil.Completed()),
					testutil.NewTestTask(4, "Unassigned"),
				),
				testutil.WithKPIs(testutil.NewTestKPI(300, "Wells drilled", 15, 7)),
			),
			testutil.NewTestActivity(101, "Training"),
		)),
	))
}

func taskIDs(p domain.Project) []int {
	var ids []int
	for _, o := range p.Objectives {
		for _, a := range o.Activities {
			for _, t := range a.Tasks {
				ids = append(ids, t.ID)
			}
		}
	}
	return ids
}

func TestCompile_Rejects(t *testing.T) {
	for name, src := range map[string]string{
		"empty":         "  ",
		"syntax":        "overdue &&",
		"unknown field": "priority > 2",
		"non-boolean":   "description",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Compile(src)
			assert.Error(t, err)
		})
	}
}

func TestApply(t *testing.T) {
	tests := []struct {
		name string
		expr string
		want []int
	}{
		{"mine", "mine", []int{1, 3}},
		{"overdue", "overdue", []int{1}},
		{"due soon", "due_soon", []int{2}},
		{"open and not mine", "!complete && !mine", []int{2, 4}},
		{"by assignee", `assignee == "bob@example.org"`, []int{2}},
		{"unassigned", "assignee_id == 0", []int{4}},
		{"by activity", `activity == "Wells" && description contains "r"`, []int{1, 2, 3}},
		{"status string", `status == "Complete"`, []int{3}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f, err := Compile(tt.expr)
			require.NoError(t, err)
			got, err := Apply(fieldProject(), f, testNow, alice.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, taskIDs(got))
		})
	}
}

func TestApply_KeepsStructure(t *testing.T) {
	p := fieldProject()
	got, err := Apply(p, mustCompile(t, "false"), testNow, alice.ID)
	require.NoError(t, err)

	require.Len(t, got.Objectives, 1)
	require.Len(t, got.Objectives[0].Activities, 2)
	assert.Empty(t, got.Objectives[0].Activities[0].Tasks)
	assert.Len(t, got.Objectives[0].Activities[0].KPIs, 1)
	assert.Len(t, p.Objectives[0].Activities[0].Tasks, 4, "input is not modified")
}

func TestApply_NilFilter(t *testing.T) {
	p := fieldProject()
	got, err := Apply(p, nil, testNow, alice.ID)
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestMine_MatchesMyTasks(t *testing.T) {
	n, err := Count(fieldProject(), Mine(), testNow, bob.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func mustCompile(t *testing.T, src string) *Filter {
	t.Helper()
	f, err := Compile(src)
	require.NoError(t, err)
	return f
}
