package domain

import "time"

type User struct {
	ID    int    `json:"id"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

type Project struct {
	ID         int         `json:"id"`
	Name       string      `json:"name"`
	Objectives []Objective `json:"objectives"`
}

type Objective struct {
	ID         int        `json:"id"`
	Name       string     `json:"name"`
	Activities []Activity `json:"activities"`
}

type Activity struct {
	ID     int     `json:"id"`
	Name   string  `json:"name"`
	Tasks  []Task  `json:"tasks"`
	KPIs   []KPI   `json:"kpis"`
	Budget *Budget `json:"budget,omitempty"`
}

type Task struct {
	ID           int           `json:"id"`
	Description  string        `json:"description"`
	Status       TaskStatus    `json:"status"`
	Assignee     *User         `json:"assignee,omitempty"`
	StartDate    *Date         `json:"start_date,omitempty"`
	EndDate      *Date         `json:"end_date,omitempty"`
	Deliverables []Deliverable `json:"deliverables"`
}

type Deliverable struct {
	ID          int       `json:"id"`
	TextContent *string   `json:"text_content,omitempty"`
	FilePath    *string   `json:"file_path,omitempty"`
	Timestamp   Timestamp `json:"timestamp"`
	Submitter   User      `json:"submitter"`
}

// ProjectSummary is the server-computed task rollup for a project.
type ProjectSummary struct {
	TotalTasks     int `json:"total_tasks"`
	CompletedTasks int `json:"completed_tasks"`
	OverdueTasks   int `json:"overdue_tasks"`
}

// Pending returns the number of tasks not yet complete.
func (s ProjectSummary) Pending() int {
	return s.TotalTasks - s.CompletedTasks
}

// DueState classifies a task by its end date relative to now. Tasks with no
// end date are DueNone unless complete.
func (t Task) DueState(now time.Time) DueState {
	if t.Status == TaskComplete {
		return DueComplete
	}
	if t.EndDate == nil {
		return DueNone
	}
	y, m, d := now.Date()
	today := time.Date(y, m, d, 0, 0, 0, 0, now.Location())
	end := t.EndDate.In(now.Location())
	if end.Before(today) {
		return DueOverdue
	}
	if end.Sub(today) <= 3*24*time.Hour {
		return DueSoon
	}
	return DueNone
}

// AssignedTo reports whether the task's assignee has the given user id.
func (t Task) AssignedTo(userID int) bool {
	return t.Assignee != nil && t.Assignee.ID == userID
}
