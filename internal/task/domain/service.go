package domain

import (
	"context"
	"encoding/json"
	"errors"
)

type CreateTaskRequest struct {
	Title      string  `json:"title"`
	ProjectID  string  `json:"projectId"`
	Status     string  `json:"status"`
	AssignedTo *string `json:"assignedTo"`
}

type ListTaskRequest struct {
	ProjectID string `form:"projectId"`
}

type UpdateTaskStatusRequest struct {
	Status string `json:"status"`
}

// Assignment is the assignedTo field of an update. Absent leaves the assignee alone;
// null or "" unassigns.
type Assignment struct {
	Set bool
	ID  string
}

// AssignTo returns a set Assignment; an empty id unassigns.
func AssignTo(id string) Assignment {
	return Assignment{Set: true, ID: id}
}

func (a *Assignment) UnmarshalJSON(data []byte) error {
	a.Set = true
	a.ID = ""
	if string(data) == "null" {
		return nil
	}
	return json.Unmarshal(data, &a.ID)
}

type UpdateTaskRequest struct {
	Title      *string    `json:"title"`
	Status     *string    `json:"status"`
	AssignedTo Assignment `json:"assignedTo"`
}

type Service interface {
	Create(ctx context.Context, req CreateTaskRequest) (Task, error)
	List(ctx context.Context, req ListTaskRequest) ([]Task, error)
	GetByID(ctx context.Context, id string) (Task, error)
	UpdateStatus(ctx context.Context, id string, req UpdateTaskStatusRequest) (Task, error)
	Update(ctx context.Context, id string, req UpdateTaskRequest) (Task, error)
	Delete(ctx context.Context, id string) error
}

var (
	ErrInvalidTitle    = errors.New("invalid_title")
	ErrInvalidStatus   = errors.New("invalid_status")
	ErrInvalidID       = errors.New("invalid_id")
	ErrInvalidProject  = errors.New("invalid_project")
	ErrInvalidAssignee = errors.New("invalid_assignee")
	ErrProjectNotFound = errors.New("project_not_found")
	ErrNotFound        = errors.New("not_found")
)
