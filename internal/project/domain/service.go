package domain

import (
	"context"
	"errors"
)

type CreateProjectRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Status      string `json:"status"`
}

type UpdateProjectRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
	Status      *string `json:"status"`
}

type Service interface {
	Create(ctx context.Context, req CreateProjectRequest) (Project, error)
	List(ctx context.Context) ([]Project, error)
	GetByID(ctx context.Context, id string) (Project, error)
	Update(ctx context.Context, id string, req UpdateProjectRequest) (Project, error)
	Delete(ctx context.Context, id string) error
}

var (
	ErrInvalidName   = errors.New("invalid_name")
	ErrInvalidStatus = errors.New("invalid_status")
	ErrInvalidID     = errors.New("invalid_id")
	ErrNotFound      = errors.New("not_found")
)
