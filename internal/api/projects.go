package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/orchidnexus/orchid/internal/domain"
)

type nameBody struct {
	Name string `json:"name"`
}

func (c *Client) ListProjects(ctx context.Context) ([]domain.Project, error) {
	var out []domain.Project
	err := c.do(ctx, http.MethodGet, "/projects/", nil, &out)
	return out, err
}

func (c *Client) CreateProject(ctx context.Context, name string) (domain.Project, error) {
	var out domain.Project
	err := c.do(ctx, http.MethodPost, "/projects/", nameBody{Name: name}, &out)
	return out, err
}

func (c *Client) DeleteProject(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/projects/%d", id), nil, nil)
}

// GetProject fetches the full nested tree of one project.
func (c *Client) GetProject(ctx context.Context, id int) (domain.Project, error) {
	var out domain.Project
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/projects/%d", id), nil, &out)
	return out, err
}

func (c *Client) GetSummary(ctx context.Context, id int) (domain.ProjectSummary, error) {
	var out domain.ProjectSummary
	err := c.do(ctx, http.MethodGet, fmt.Sprintf("/projects/%d/summary", id), nil, &out)
	return out, err
}

func (c *Client) CreateObjective(ctx context.Context, projectID int, name string) (domain.Objective, error) {
	body := struct {
		Name      string `json:"name"`
		ProjectID int    `json:"project_id"`
	}{name, projectID}
	var out domain.Objective
	err := c.do(ctx, http.MethodPost, "/objectives/", body, &out)
	return out, err
}

func (c *Client) UpdateObjective(ctx context.Context, id int, name string) (domain.Objective, error) {
	var out domain.Objective
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/objectives/%d", id), nameBody{Name: name}, &out)
	return out, err
}

func (c *Client) DeleteObjective(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/objectives/%d", id), nil, nil)
}

func (c *Client) CreateActivity(ctx context.Context, objectiveID int, name string) (domain.Activity, error) {
	body := struct {
		Name        string `json:"name"`
		ObjectiveID int    `json:"objective_id"`
	}{name, objectiveID}
	var out domain.Activity
	err := c.do(ctx, http.MethodPost, "/activities/", body, &out)
	return out, err
}

func (c *Client) UpdateActivity(ctx context.Context, id int, name string) (domain.Activity, error) {
	var out domain.Activity
	err := c.do(ctx, http.MethodPut, fmt.Sprintf("/activities/%d", id), nameBody{Name: name}, &out)
	return out, err
}

func (c *Client) DeleteActivity(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/activities/%d", id), nil, nil)
}
