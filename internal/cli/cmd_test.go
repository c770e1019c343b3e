package cli

import (
	"bytes"
	"errors"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	"github.com/orchidnexus/orchid/internal/api"
	"github.com/orchidnexus/orchid/internal/clock"
	"github.com/orchidnexus/orchid/internal/config"
	"github.com/orchidnexus/orchid/internal/domain"
	"github.com/orchidnexus/orchid/internal/session"
	"github.com/orchidnexus/orchid/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
)

const (
	pmEmail  = "pm@example.org"
	foEmail  = "fo@example.org"
	password = "secret"
)

var ansiRE = regexp.MustCompile(`\x1b\[[0-9;]*m`)

func stripANSI(s string) string { return ansiRE.ReplaceAllString(s, "") }

type cliEnv struct {
	fake *testutil.FakeBackend
	app  *App
}

func waterProject() domain.Project {
	return testutil.NewTestProject(1, "Water Access", testutil.WithObjectives(
		testutil.NewTestObjective(10, "Access", testutil.WithActivities(
			testutil.NewTestActivity(100, "Wells",
				testutil.WithTasks(
					testutil.NewTestTask(1000, "Survey sites"),
					testutil.NewTestTask(1001, "Dig well", testutil.Completed()),
				),
				testutil.WithKPIs(testutil.NewTestKPI(500, "Wells dug", 10, 4)),
				testutil.WithBudget(700, 1000, 400, 250),
			),
			testutil.NewTestActivity(101, "Training"),
		)),
	))
}

// newCLIEnv wires an App against a fake backend and an in-memory database.
func newCLIEnv(t *testing.T) *cliEnv {
	t.Helper()
	fake := testutil.NewFakeBackend(t)
	fake.AddUser(pmEmail, password, domain.RoleProjectManager)
	fake.AddUser(foEmail, password, domain.RoleFieldOfficer)
	fake.PutProject(waterProject())
	fake.SetInventory(
		testutil.NewTestInventoryRecord(1, "Chlorine", "Depot", 5, 10),
		testutil.NewTestInventoryRecord(2, "Buckets", "Depot", 0, 0),
		testutil.NewTestInventoryRecord(3, "Pipes", "Field", 40, 10),
	)

	client := api.New(api.Config{BaseURL: fake.URL(), Timeout: 2 * time.Second}, nil)
	s := session.New(session.Deps{Client: client, DB: testutil.NewTestDB(t)})
	t.Cleanup(s.Leave)

	cfg := config.Default()
	cfg.APIURL = fake.URL()
	cfg.Live = false
	return &cliEnv{
		fake: fake,
		app: &App{
			Session: s,
			Config:  cfg,
			Clock:   clock.Fake(time.Date(2025, 6, 10, 12, 0, 0, 0, time.UTC)),
		},
	}
}

// executeCmd runs a cobra command and captures its output.
func executeCmd(t *testing.T, app *App, args ...string) (string, error) {
	t.Helper()
	root := NewRootCmd(app)
	buf := new(bytes.Buffer)
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs(args)
	err := root.Execute()
	return stripANSI(buf.String()), err
}

func (e *cliEnv) login(t *testing.T, email string) {
	t.Helper()
	_, err := executeCmd(t, e.app, "login", "--email", email, "--password", password)
	require.NoError(t, err)
}

func (e *cliEnv) open(t *testing.T) {
	t.Helper()
	_, err := executeCmd(t, e.app, "project", "open", "1")
	require.NoError(t, err)
}

// --- auth ---

func TestLogin_ThenWhoami(t *testing.T) {
	e := newCLIEnv(t)

	out, err := executeCmd(t, e.app, "login", "-e", pmEmail, "--password", password)
	require.NoError(t, err)
	assert.Contains(t, out, "Logged in as pm@example.org")

	out, err = executeCmd(t, e.app, "whoami")
	require.NoError(t, err)
	assert.Contains(t, out, pmEmail)
	assert.Contains(t, out, "Project Manager")
}

func TestLogin_WrongPassword(t *testing.T) {
	e := newCLIEnv(t)

	_, err := executeCmd(t, e.app, "login", "-e", pmEmail, "--password", "nope")
	require.Error(t, err)
	assert.Equal(t, "incorrect email or password", ErrorMessage(err))
}

func TestSignup_RoleParsedAtFlagTime(t *testing.T) {
	e := newCLIEnv(t)

	_, err := executeCmd(t, e.app, "signup", "-e", "new@example.org", "--password", "pw", "--role", "boss")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown role")
	assert.Zero(t, e.fake.Hits("POST /users/"))
}

func TestSignup_RoleRequiredWithoutTerminal(t *testing.T) {
	e := newCLIEnv(t)

	_, err := executeCmd(t, e.app, "signup", "-e", "new@example.org", "--password", "pw")
	require.Error(t, err)
	assert.Equal(t, "--role is required", err.Error())
}

func TestLogin_PasswordFromEnv(t *testing.T) {
	e := newCLIEnv(t)
	t.Setenv(passwordEnv, password)

	_, err := executeCmd(t, e.app, "login", "-e", foEmail)
	require.NoError(t, err)
	u, ok := e.app.Session.User()
	require.True(t, ok)
	assert.Equal(t, domain.RoleFieldOfficer, u.Role)
}

func TestLogin_NonInteractiveNeedsCredentials(t *testing.T) {
	e := newCLIEnv(t)
	t.Setenv(passwordEnv, "")

	_, err := executeCmd(t, e.app, "login", "-e", pmEmail)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "email and password are required")
	assert.Equal(t, 0, e.fake.Hits(testutil.RouteToken))
}

func TestCommands_RequireLogin(t *testing.T) {
	e := newCLIEnv(t)

	for _, args := range [][]string{
		{"project", "list"},
		{"project", "show"},
		{"objective", "add", "X"},
		{"inventory", "list"},
		{"notices"},
	} {
		_, err := executeCmd(t, e.app, args...)
		require.Error(t, err, args)
		assert.ErrorIs(t, err, session.ErrNotLoggedIn, args)
		assert.Equal(t, "not logged in, run `orchid login` first", ErrorMessage(err))
	}
}

func TestLogout_ForgetsSession(t *testing.T) {
	e := newCLIEnv(t)
	e.login(t, pmEmail)
	e.open(t)

	out, err := executeCmd(t, e.app, "logout")
	require.NoError(t, err)
	assert.Contains(t, out, "Logged out")

	_, err = executeCmd(t, e.app, "whoami")
	assert.ErrorIs(t, err, session.ErrNotLoggedIn)
}

func TestExpiredToken_TearsDownAndReportsExpiry(t *testing.T) {
	e := newCLIEnv(t)
	e.login(t, pmEmail)
	e.open(t)
	e.fake.ExpireTokens()

	_, err := executeCmd(t, e.app, "project", "show")
	require.Error(t, err)
	assert.Equal(t, api.MsgSessionExpired, ErrorMessage(err))

	_, ok := e.app.Session.User()
	assert.False(t, ok, "401 logs the user out")
	_, err = executeCmd(t, e.app, "whoami")
	assert.ErrorIs(t, err, session.ErrNotLoggedIn)
}

// --- projects ---

func TestProjectList_MarksOpenProject(t *testing.T) {
	e := newCLIEnv(t)
	e.login(t, pmEmail)
	e.open(t)

	out, err := executeCmd(t, e.app, "project", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Water Access")
	assert.Contains(t, out, "●")
}

func TestProjectOpenAndShow(t *testing.T) {
	e := newCLIEnv(t)
	e.login(t, pmEmail)

	out, err := executeCmd(t, e.app, "project", "open", "1")
	require.NoError(t, err)
	assert.Contains(t, out, "Opened Water Access #1")

	out, err = executeCmd(t, e.app, "project", "show")
	require.NoError(t, err)
	for _, want := range []string{"Access", "Wells", "Survey sites", "Dig well", "Training"} {
		assert.Contains(t, out, want)
	}
}

func TestProjectShow_NothingOpen(t *testing.T) {
	e := newCLIEnv(t)
	e.login(t, pmEmail)

	_, err := executeCmd(t, e.app, "project", "show")
	require.Error(t, err)
	assert.Equal(t, "no project open, run `orchid project open <id>` first", ErrorMessage(err))
}

func TestProjectShow_Filter(t *testing.T) {
	e := newCLIEnv(t)
	e.login(t, pmEmail)
	e.open(t)

	out, err := executeCmd(t, e.app, "project", "show", "--filter", "complete")
	require.NoError(t, err)
	assert.Contains(t, out, "Dig well")
	assert.NotContains(t, out, "Survey sites")

	_, err = executeCmd(t, e.app, "project", "show", "--filter", "complete &&")
	assert.Error(t, err)
}

func TestProjectSummary(t *testing.T) {
	e := newCLIEnv(t)
	e.login(t, pmEmail)
	e.open(t)

	out, err := executeCmd(t, e.app, "project", "summary")
	require.NoError(t, err)
	assert.Contains(t, out, "WATER ACCESS")
	assert.Contains(t, out, "Wells dug")
	assert.Contains(t, out, "1,000.00")
	assert.Contains(t, out, "650.00")
}

func TestProjectOpen_InvalidID(t *testing.T) {
	e := newCLIEnv(t)
	e.login(t, pmEmail)

	_, err := executeCmd(t, e.app, "project", "open", "abc")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `invalid project id "abc"`)
}

// --- hierarchy ---

func TestObjectiveAdd_AppearsInTree(t *testing.T) {
	e := newCLIEnv(t)
	e.login(t, pmEmail)
	e.open(t)

	out, err := executeCmd(t, e.app, "objective", "add", "Hygiene")
	require.NoError(t, err)
	assert.Contains(t, out, "Added objective Hygiene")

	p, err := e.app.Session.Tree().Snapshot()
	require.NoError(t, err)
	require.Len(t, p.Objectives, 2)
	assert.Equal(t, "Hygiene", p.Objectives[1].Name)
}

func TestObjectiveAdd_ForbiddenNeverReachesBackend(t *testing.T) {
	e := newCLIEnv(t)
	e.login(t, foEmail)
	e.open(t)

	_, err := executeCmd(t, e.app, "objective", "add", "Hygiene")
	require.Error(t, err)
	assert.Equal(t, "your role (Field Officer) may not do that", ErrorMessage(err))
	assert.Equal(t, 0, e.fake.Hits(testutil.RouteObjectives))
}

func TestObjectiveAdd_ValidationDetailShownVerbatim(t *testing.T) {
	e := newCLIEnv(t)
	e.login(t, pmEmail)
	e.open(t)

	_, err := executeCmd(t, e.app, "objective", "add", " ")
	require.Error(t, err)
	assert.Equal(t, "name: field required", ErrorMessage(err))

	p, err := e.app.Session.Tree().Snapshot()
	require.NoError(t, err)
	assert.Len(t, p.Objectives, 1, "failed call leaves the tree untouched")
}

func TestTaskToggle(t *testing.T) {
	e := newCLIEnv(t)
	e.login(t, foEmail)
	e.open(t)

	out, err := executeCmd(t, e.app, "task", "toggle", "1000")
	require.NoError(t, err)
	assert.Contains(t, out, "Task #1000 is now")
	assert.Contains(t, out, "Complete")

	task, ok := e.app.Session.Tree().Task(1000)
	require.True(t, ok)
	assert.Equal(t, domain.TaskComplete, task.Status)
}

func TestTaskShow_Unknown(t *testing.T) {
	e := newCLIEnv(t)
	e.login(t, pmEmail)
	e.open(t)

	_, err := executeCmd(t, e.app, "task", "show", "4242")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "task #4242 is not in the open project")
}

func TestTaskAdd_EndBeforeStart(t *testing.T) {
	e := newCLIEnv(t)
	e.login(t, pmEmail)
	e.open(t)

	_, err := executeCmd(t, e.app, "task", "add", "Late", "-a", "100", "--start", "2025-07-01", "--end", "2025-06-01")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--end is before --start")
}

func TestDeliverableSubmit_NeedsContent(t *testing.T) {
	e := newCLIEnv(t)
	e.login(t, pmEmail)
	e.open(t)

	_, err := executeCmd(t, e.app, "deliverable", "submit", "-t", "1000")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "provide --text, --file or both")
}

// --- finance ---

func TestKPIList(t *testing.T) {
	e := newCLIEnv(t)
	e.login(t, pmEmail)
	e.open(t)

	out, err := executeCmd(t, e.app, "kpi", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Wells dug")
	assert.Contains(t, out, "4 / 10")
}

func TestBudgetShow_Activity(t *testing.T) {
	e := newCLIEnv(t)
	e.login(t, pmEmail)
	e.open(t)

	out, err := executeCmd(t, e.app, "budget", "show", "-a", "100")
	require.NoError(t, err)
	assert.Contains(t, out, "WELLS BUDGET")
	assert.Contains(t, out, "350.00")

	out, err = executeCmd(t, e.app, "budget", "show", "-a", "101")
	require.NoError(t, err)
	assert.Contains(t, out, `Activity "Training" has no budget.`)
}

func TestExpenseLog_NoBudgetRejectedLocally(t *testing.T) {
	e := newCLIEnv(t)
	e.login(t, foEmail)
	e.open(t)

	_, err := executeCmd(t, e.app, "expense", "log", "-a", "101", "--amount", "20", "-d", "Chalk")
	require.Error(t, err)
	assert.Contains(t, ErrorMessage(err), "activity #101 has no budget")
}

func TestExpenseLog_NonPositiveAmount(t *testing.T) {
	e := newCLIEnv(t)
	e.login(t, foEmail)
	e.open(t)

	_, err := executeCmd(t, e.app, "expense", "log", "-a", "100", "--amount", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "--amount must be positive")
}

// --- inventory ---

func TestInventoryList(t *testing.T) {
	e := newCLIEnv(t)
	e.login(t, foEmail)

	out, err := executeCmd(t, e.app, "inventory", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "Chlorine")
	assert.Contains(t, out, "N/A", "a zero threshold renders as disabled")
	assert.Contains(t, out, "LOW")
}

func TestInventoryAlerts_SkipsDisabledThresholds(t *testing.T) {
	e := newCLIEnv(t)
	e.login(t, foEmail)

	out, err := executeCmd(t, e.app, "inventory", "alerts")
	require.NoError(t, err)
	assert.Contains(t, out, "Chlorine")
	assert.NotContains(t, out, "Buckets", "threshold 0 means no alert even at zero stock")
	assert.NotContains(t, out, "Pipes")
}

func TestInventoryAlerts_FromServer(t *testing.T) {
	e := newCLIEnv(t)
	e.login(t, foEmail)

	out, err := executeCmd(t, e.app, "inventory", "alerts", "--server")
	require.NoError(t, err)
	assert.Contains(t, out, "Chlorine")
	assert.Equal(t, 1, e.fake.Hits(testutil.RouteLowStock))
	assert.Zero(t, e.fake.Hits(testutil.RouteInventory))
}

func TestInventoryDistribute_NonPositiveNeverReachesBackend(t *testing.T) {
	e := newCLIEnv(t)
	e.login(t, foEmail)

	_, err := executeCmd(t, e.app, "inventory", "distribute", "-i", "1", "-l", "1", "-q", "0")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quantity must be positive")
	assert.Equal(t, 0, e.fake.Hits(testutil.RouteDistribute))
}

func TestInventoryDistribute_BackendEnforcesStock(t *testing.T) {
	e := newCLIEnv(t)
	e.login(t, foEmail)

	_, err := executeCmd(t, e.app, "inventory", "distribute", "-i", "3", "-l", "3", "-q", "50")
	require.Error(t, err)
	assert.Equal(t, "Insufficient stock", ErrorMessage(err))

	out, err := executeCmd(t, e.app, "inventory", "distribute", "-i", "3", "-l", "3", "-q", "35")
	require.NoError(t, err)
	assert.Contains(t, out, "Distributed 35, 5 left at location #3")
	assert.Contains(t, out, "Low stock")
}

func TestInventoryStock_ThresholdNeedsManager(t *testing.T) {
	e := newCLIEnv(t)
	e.login(t, foEmail)

	_, err := executeCmd(t, e.app, "inventory", "stock", "-i", "1", "-l", "1", "-q", "5", "--threshold", "3")
	require.Error(t, err)
	assert.Equal(t, "your role (Field Officer) may not do that", ErrorMessage(err))
}

// --- notices & export ---

func TestNotices_Empty(t *testing.T) {
	e := newCLIEnv(t)
	e.login(t, pmEmail)
	e.open(t)

	out, err := executeCmd(t, e.app, "notices")
	require.NoError(t, err)
	assert.Contains(t, out, "No notices.")
}

func TestExport_WritesWorkbook(t *testing.T) {
	e := newCLIEnv(t)
	e.login(t, pmEmail)
	e.open(t)
	path := filepath.Join(t.TempDir(), "report.xlsx")

	out, err := executeCmd(t, e.app, "export", "-o", path)
	require.NoError(t, err)
	assert.Contains(t, out, "Wrote "+path)

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()
	assert.Equal(t, []string{"KPIs", "Budgets", "Expenses", "Inventory"}, f.GetSheetList())

	rows, err := f.GetRows("Inventory")
	require.NoError(t, err)
	assert.Len(t, rows, 4)
}

func TestErrorMessage_PlainErrorsPassThrough(t *testing.T) {
	assert.Equal(t, "", ErrorMessage(nil))
	assert.Equal(t, api.MsgRequestFailed, ErrorMessage(&api.NetworkError{Op: "GET /projects/", Status: 502}))
	assert.Equal(t, "bad flag", ErrorMessage(errors.New("bad flag")))
}
