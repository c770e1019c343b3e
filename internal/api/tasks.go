package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/orchidnexus/orchid/internal/domain"
)

type NewTask struct {
	Description string       `json:"description"`
	ActivityID  int          `json:"activity_id"`
	AssigneeID  *int         `json:"assignee_id,omitempty"`
	StartDate   *domain.Date `json:"start_date,omitempty"`
	EndDate     *domain.Date `json:"end_date,omitempty"`
}

func (c *Client) CreateTask(ctx context.Context, t NewTask) (domain.Task, error) {
	var out domain.Task
	err := c.do(ctx, http.MethodPost, "/tasks/", t, &out)
	return out, err
}

// ToggleTaskStatus flips Pending and Complete server-side and returns the
// updated task.
func (c *Client) ToggleTaskStatus(ctx context.Context, id int) (domain.Task, error) {
	var out domain.Task
	err := c.do(ctx, http.MethodPatch, fmt.Sprintf("/tasks/%d/status", id), nil, &out)
	return out, err
}

func (c *Client) DeleteTask(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/tasks/%d", id), nil, nil)
}

// NewDeliverable is a text note, a file, or both. File is read once.
type NewDeliverable struct {
	TaskID   int
	Text     string
	FileName string
	File     io.Reader
}

func (c *Client) SubmitDeliverable(ctx context.Context, d NewDeliverable) (domain.Deliverable, error) {
	fields := map[string]string{"task_id": strconv.Itoa(d.TaskID)}
	if d.Text != "" {
		fields["text_content"] = d.Text
	}

	var out domain.Deliverable
	req := c.request(ctx).
		SetMultipartFormData(fields).
		SetResult(&out).
		ForceContentType("application/json")
	if d.File != nil {
		req.SetFileReader("proof_file", d.FileName, d.File)
	}
	resp, err := req.Post("/deliverables/")
	if err := c.check("POST /deliverables/", resp, err); err != nil {
		return domain.Deliverable{}, err
	}
	return out, nil
}
