package domain

import "errors"

// Login failures. Each maps to one fixed message at the transport.
var (
	ErrMissingCredentials = errors.New("missing_credentials")
	ErrInvalidCredentials = errors.New("invalid_credentials")
	ErrSubdomainRequired  = errors.New("subdomain_required")
	ErrWorkspaceNotFound  = errors.New("workspace_not_found")
	ErrWrongWorkspace     = errors.New("wrong_workspace")
)
