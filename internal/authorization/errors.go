package authorization

import "errors"

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNoTenantScope   = errors.New("no_tenant_scope")
	ErrSelfDeletion    = errors.New("self_deletion")
	ErrInvalidRole     = errors.New("invalid_role")
	ErrInvalidObject   = errors.New("invalid_object")
	ErrInvalidAction   = errors.New("invalid_action")
)
