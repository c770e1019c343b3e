package formatter

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/orchidnexus/orchid/internal/budget"
	"github.com/orchidnexus/orchid/internal/domain"
)

// FormatProjectList renders projects in a box, marking the active one.
func FormatProjectList(projects []domain.Project, activeID int) string {
	rows := make([][]string, 0, len(projects))
	for _, p := range projects {
		marker := ""
		if p.ID == activeID {
			marker = StyleGreen.Render("●")
		}
		rows = append(rows, []string{marker, strconv.Itoa(p.ID), Bold(p.Name)})
	}
	return RenderBox("Projects", RenderTable([]string{"", "ID", "NAME"}, rows))
}

// FormatProjectTree renders the objective > activity > task hierarchy.
func FormatProjectTree(p domain.Project, now time.Time) string {
	var items []TreeItem
	for oi, o := range p.Objectives {
		lastObj := oi == len(p.Objectives)-1
		items = append(items, TreeItem{
			Title: o.Name, Kind: "objective", ID: o.ID, Level: 1, IsLast: lastObj,
		})
		for ai, a := range o.Activities {
			lastAct := ai == len(o.Activities)-1
			items = append(items, TreeItem{
				Title: a.Name, Kind: "activity", ID: a.ID, Level: 2, IsLast: lastAct,
				Ancestors: []bool{lastObj},
				Detail:    activityDetail(a),
			})
			for ti, t := range a.Tasks {
				items = append(items, TreeItem{
					Title: t.Description, Kind: "task", ID: t.ID, Level: 3,
					IsLast:    ti == len(a.Tasks)-1,
					Ancestors: []bool{lastObj, lastAct},
					Status:    taskStatus(t, now),
					Detail:    taskDetail(t, now),
				})
			}
		}
	}

	title := Bold(p.Name) + " " + Dim(fmt.Sprintf("#%d", p.ID))
	if len(items) == 0 {
		return title + "\n" + Dim("  no objectives yet") + "\n"
	}
	return title + "\n" + RenderTree(items)
}

func taskStatus(t domain.Task, now time.Time) string {
	switch t.DueState(now) {
	case domain.DueComplete:
		return "complete"
	case domain.DueOverdue:
		return "overdue"
	case domain.DueSoon:
		return "due_soon"
	}
	return "pending"
}

func taskDetail(t domain.Task, now time.Time) string {
	var parts []string
	if t.Assignee != nil {
		parts = append(parts, t.Assignee.Email)
	}
	if t.EndDate != nil && t.Status != domain.TaskComplete {
		parts = append(parts, "due "+RelativeDateFrom(t.EndDate.In(now.Location()), now))
	}
	if n := len(t.Deliverables); n > 0 {
		parts = append(parts, fmt.Sprintf("%d deliverable(s)", n))
	}
	return strings.Join(parts, " · ")
}

func activityDetail(a domain.Activity) string {
	var parts []string
	if n := len(a.KPIs); n > 0 {
		parts = append(parts, fmt.Sprintf("%d KPI(s)", n))
	}
	if a.Budget != nil {
		parts = append(parts, fmt.Sprintf("budget %.0f%% used", budget.BurnRatio(a.Budget)*100))
	}
	return strings.Join(parts, " · ")
}

// FormatSummary renders the server-side task rollup.
func FormatSummary(name string, s domain.ProjectSummary) string {
	frac := 0.0
	if s.TotalTasks > 0 {
		frac = float64(s.CompletedTasks) / float64(s.TotalTasks)
	}
	overdue := strconv.Itoa(s.OverdueTasks)
	if s.OverdueTasks > 0 {
		overdue = StyleRed.Render(overdue)
	}
	rows := [][]string{
		{"Total", strconv.Itoa(s.TotalTasks)},
		{"Completed", StyleGreen.Render(strconv.Itoa(s.CompletedTasks))},
		{"Pending", strconv.Itoa(s.Pending())},
		{"Overdue", overdue},
	}
	body := RenderTable([]string{"TASKS", ""}, rows) + "\n" + RenderProgress(frac, 24)
	return RenderBox(name, body)
}

// FormatTask renders a single task with its deliverables.
func FormatTask(t domain.Task, now time.Time) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s\n", Bold(t.Description), Dim(fmt.Sprintf("#%d", t.ID)))
	fmt.Fprintf(&b, "  %s  %s\n", StatusPill(t.Status), DueIndicator(t.DueState(now)))
	if t.Assignee != nil {
		fmt.Fprintf(&b, "  assignee  %s\n", t.Assignee.Email)
	}
	for _, d := range t.Deliverables {
		text := Dim("(no text)")
		if d.TextContent != nil && *d.TextContent != "" {
			text = *d.TextContent
		}
		file := ""
		if d.FilePath != nil && *d.FilePath != "" {
			file = " " + StyleBlue.Render(*d.FilePath)
		}
		fmt.Fprintf(&b, "  • %s%s %s\n", text, file, Dim("by "+d.Submitter.Email))
	}
	return b.String()
}
