package domain

import (
	"context"
	"errors"
	"net/mail"
	"strings"
)

const MinPasswordLength = 8

type CreateUserRequest struct {
	FullName string `json:"fullName"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type UpdateUserRequest struct {
	FullName *string `json:"fullName"`
	Role     *string `json:"role"`
}

type Service interface {
	Create(ctx context.Context, req CreateUserRequest) (User, error)
	List(ctx context.Context) ([]User, error)
	Update(ctx context.Context, id string, req UpdateUserRequest) (User, error)
	Delete(ctx context.Context, id string) error
}

var (
	ErrInvalidFullName = errors.New("invalid_full_name")
	ErrInvalidEmail    = errors.New("invalid_email")
	ErrInvalidPassword = errors.New("invalid_password")
	ErrInvalidRole     = errors.New("invalid_role")
	ErrInvalidID       = errors.New("invalid_id")
	ErrEmailTaken      = errors.New("email_taken")
	ErrNotFound        = errors.New("not_found")
)

// NormalizeEmail lowercases and trims an address, returning "" when it is not one.
func NormalizeEmail(raw string) string {
	email := strings.ToLower(strings.TrimSpace(raw))
	if email == "" || !strings.Contains(email, "@") {
		return ""
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return ""
	}
	return email
}

// ValidateNewAccount checks the fields every account creation path shares.
func ValidateNewAccount(fullName, email, password string) (string, string, error) {
	fullName = strings.TrimSpace(fullName)
	if fullName == "" {
		return "", "", ErrInvalidFullName
	}
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return "", "", ErrInvalidEmail
	}
	if len(password) < MinPasswordLength {
		return "", "", ErrInvalidPassword
	}
	return fullName, normalized, nil
}
