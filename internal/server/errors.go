package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/taskhub/internal/audit/domain"
	authdomain "github.com/smallbiznis/taskhub/internal/auth/domain"
	"github.com/smallbiznis/taskhub/internal/auth/token"
	"github.com/smallbiznis/taskhub/internal/authorization"
	projectdomain "github.com/smallbiznis/taskhub/internal/project/domain"
	"github.com/smallbiznis/taskhub/internal/quota"
	taskdomain "github.com/smallbiznis/taskhub/internal/task/domain"
	tenantdomain "github.com/smallbiznis/taskhub/internal/tenant/domain"
	userdomain "github.com/smallbiznis/taskhub/internal/user/domain"
	"gorm.io/gorm"
)

type ValidationError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

type ValidationErrors struct {
	Errors []ValidationError `json:"errors"`
}

func (v ValidationErrors) Error() string {
	return "validation error"
}

type errorPayload struct {
	Type    string            `json:"type"`
	Message string            `json:"message"`
	Errors  []ValidationError `json:"errors,omitempty"`
}

type errorResponse struct {
	Error errorPayload `json:"error"`
}

var (
	ErrUnauthorized       = errors.New("unauthorized")
	ErrForbidden          = errors.New("forbidden")
	ErrInternal           = errors.New("internal_error")
	ErrNotFound           = errors.New("not_found")
	ErrInvalidRequest     = errors.New("invalid_request")
	ErrRateLimited        = errors.New("rate_limited")
	ErrServiceUnavailable = errors.New("service_unavailable")
)

// Fixed reasons returned for login and tenant state failures.
const (
	msgInvalidCredentials = "Invalid credentials"
	msgSubdomainRequired  = "Workspace subdomain required"
	msgWorkspaceNotFound  = "Workspace not found"
	msgWrongWorkspace     = "User does not belong to this workspace"
	msgTenantSuspended    = "Tenant is suspended"
)

func ErrorHandlingMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if c.Writer.Written() {
			return
		}

		lastErr := c.Errors.Last()
		if lastErr == nil {
			return
		}

		status, payload := mapError(lastErr.Err)
		c.Header("Content-Type", "application/json")
		c.AbortWithStatusJSON(status, errorResponse{Error: payload})
	}
}

func AbortWithError(c *gin.Context, err error) {
	if err == nil {
		return
	}
	_ = c.Error(err)
	c.Abort()
}

func invalidRequestError() error {
	return newValidationError("request", "invalid_request", "invalid request")
}

func newValidationError(field, code, message string) error {
	return &ValidationErrors{
		Errors: []ValidationError{
			{
				Field:   field,
				Code:    code,
				Message: message,
			},
		},
	}
}

func mapError(err error) (int, errorPayload) {
	if err == nil {
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}

	if vErr := asValidationErrors(err); vErr != nil {
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors:  vErr.Errors,
		}
	}

	if isValidationError(err) {
		code := validationErrorCode(err)
		return http.StatusBadRequest, errorPayload{
			Type:    "validation_error",
			Message: "validation error",
			Errors: []ValidationError{
				{
					Field:   validationErrorField(code),
					Code:    code,
					Message: validationErrorMessage(code),
				},
			},
		}
	}

	var limitErr *quota.LimitError
	if errors.As(err, &limitErr) {
		return http.StatusForbidden, errorPayload{
			Type:    "quota_exceeded",
			Message: limitErr.Error(),
		}
	}

	switch {
	case errors.Is(err, authdomain.ErrInvalidCredentials):
		return unauthorized(msgInvalidCredentials)
	case errors.Is(err, authdomain.ErrSubdomainRequired):
		return unauthorized(msgSubdomainRequired)
	case errors.Is(err, authdomain.ErrWrongWorkspace):
		return unauthorized(msgWrongWorkspace)
	case errors.Is(err, authdomain.ErrWorkspaceNotFound):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: msgWorkspaceNotFound,
		}
	case errors.Is(err, tenantdomain.ErrSuspended):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: msgTenantSuspended,
		}
	case errors.Is(err, ErrUnauthorized),
		errors.Is(err, authorization.ErrUnauthenticated),
		errors.Is(err, token.ErrInvalidToken),
		errors.Is(err, token.ErrExpiredToken):
		return unauthorized("unauthorized")
	case errors.Is(err, ErrForbidden),
		errors.Is(err, authorization.ErrForbidden),
		errors.Is(err, authorization.ErrNoTenantScope),
		errors.Is(err, authorization.ErrSelfDeletion),
		errors.Is(err, quota.ErrLimitReached):
		return http.StatusForbidden, errorPayload{
			Type:    "forbidden",
			Message: forbiddenMessage(err),
		}
	case errors.Is(err, tenantdomain.ErrSubdomainTaken),
		errors.Is(err, userdomain.ErrEmailTaken):
		return http.StatusConflict, errorPayload{
			Type:    "conflict",
			Message: conflictMessage(err),
		}
	case isNotFoundError(err):
		return http.StatusNotFound, errorPayload{
			Type:    "not_found",
			Message: "not found",
		}
	case errors.Is(err, ErrRateLimited):
		return http.StatusTooManyRequests, errorPayload{
			Type:    "rate_limited",
			Message: "too many requests",
		}
	case errors.Is(err, ErrServiceUnavailable):
		return http.StatusServiceUnavailable, errorPayload{
			Type:    "service_unavailable",
			Message: "service unavailable",
		}
	default:
		return http.StatusInternalServerError, errorPayload{
			Type:    "internal_error",
			Message: "internal server error",
		}
	}
}

func unauthorized(message string) (int, errorPayload) {
	return http.StatusUnauthorized, errorPayload{
		Type:    "unauthorized",
		Message: message,
	}
}

func forbiddenMessage(err error) string {
	switch {
	case errors.Is(err, authorization.ErrNoTenantScope):
		return "tenant context required"
	case errors.Is(err, authorization.ErrSelfDeletion):
		return "cannot delete your own account"
	default:
		return "forbidden"
	}
}

func conflictMessage(err error) string {
	switch {
	case errors.Is(err, tenantdomain.ErrSubdomainTaken):
		return "subdomain already registered"
	case errors.Is(err, userdomain.ErrEmailTaken):
		return "email already registered in this workspace"
	default:
		return "conflict"
	}
}

func asValidationErrors(err error) *ValidationErrors {
	var vErr *ValidationErrors
	if errors.As(err, &vErr) && vErr != nil {
		return vErr
	}
	return nil
}

func isValidationError(err error) bool {
	switch {
	case errors.Is(err, ErrInvalidRequest),
		errors.Is(err, authdomain.ErrMissingCredentials),
		errors.Is(err, authorization.ErrInvalidRole):
		return true
	case isTenantValidationError(err),
		isUserValidationError(err),
		isProjectValidationError(err),
		isTaskValidationError(err),
		isAuditValidationError(err):
		return true
	default:
		return false
	}
}

func isTenantValidationError(err error) bool {
	switch {
	case errors.Is(err, tenantdomain.ErrInvalidName),
		errors.Is(err, tenantdomain.ErrInvalidSubdomain),
		errors.Is(err, tenantdomain.ErrInvalidID),
		errors.Is(err, tenantdomain.ErrInvalidStatus),
		errors.Is(err, tenantdomain.ErrInvalidPlan),
		errors.Is(err, tenantdomain.ErrInvalidLimit):
		return true
	default:
		return false
	}
}

func isUserValidationError(err error) bool {
	switch {
	case errors.Is(err, userdomain.ErrInvalidFullName),
		errors.Is(err, userdomain.ErrInvalidEmail),
		errors.Is(err, userdomain.ErrInvalidPassword),
		errors.Is(err, userdomain.ErrInvalidRole),
		errors.Is(err, userdomain.ErrInvalidID):
		return true
	default:
		return false
	}
}

func isProjectValidationError(err error) bool {
	switch {
	case errors.Is(err, projectdomain.ErrInvalidName),
		errors.Is(err, projectdomain.ErrInvalidStatus),
		errors.Is(err, projectdomain.ErrInvalidID):
		return true
	default:
		return false
	}
}

func isTaskValidationError(err error) bool {
	switch {
	case errors.Is(err, taskdomain.ErrInvalidTitle),
		errors.Is(err, taskdomain.ErrInvalidStatus),
		errors.Is(err, taskdomain.ErrInvalidID),
		errors.Is(err, taskdomain.ErrInvalidProject),
		errors.Is(err, taskdomain.ErrInvalidAssignee):
		return true
	default:
		return false
	}
}

func isAuditValidationError(err error) bool {
	switch {
	case errors.Is(err, auditdomain.ErrInvalidAction),
		errors.Is(err, auditdomain.ErrInvalidPageToken),
		errors.Is(err, auditdomain.ErrInvalidTenant):
		return true
	default:
		return false
	}
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, ErrNotFound),
		errors.Is(err, tenantdomain.ErrNotFound),
		errors.Is(err, userdomain.ErrNotFound),
		errors.Is(err, projectdomain.ErrNotFound),
		errors.Is(err, taskdomain.ErrNotFound),
		errors.Is(err, taskdomain.ErrProjectNotFound),
		errors.Is(err, gorm.ErrRecordNotFound):
		return true
	default:
		return false
	}
}

func validationErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return "invalid_request"
	case errors.Is(err, authdomain.ErrMissingCredentials):
		return "missing_credentials"
	default:
		return err.Error()
	}
}

func validationErrorField(code string) string {
	switch code {
	case "invalid_request":
		return "request"
	case "missing_credentials":
		return "credentials"
	case "invalid_project":
		return "projectId"
	case "invalid_assignee":
		return "assignedTo"
	case "invalid_full_name":
		return "fullName"
	case "invalid_page_token":
		return "page_token"
	case "invalid_tenant":
		return "tenantId"
	}
	if strings.HasPrefix(code, "invalid_") {
		return strings.TrimPrefix(code, "invalid_")
	}
	return ""
}

func validationErrorMessage(code string) string {
	switch code {
	case "invalid_request":
		return "invalid request"
	case "missing_credentials":
		return "email and password are required"
	case "invalid_email":
		return "a valid email address is required"
	case "invalid_password":
		return "password must be at least 8 characters"
	case "invalid_subdomain":
		return "subdomain may only contain lowercase letters, digits and hyphens"
	case "invalid_assignee":
		return "assignee must be a user of this workspace"
	case "invalid_limit":
		return "limits must be non-negative"
	default:
		return "invalid value"
	}
}

// classifyErrorForLog returns the error type and code written on the request log line.
func classifyErrorForLog(err error) (string, string) {
	status, payload := mapError(err)
	if status >= http.StatusInternalServerError {
		return payload.Type, "internal"
	}
	if len(payload.Errors) > 0 {
		return payload.Type, payload.Errors[0].Code
	}
	return payload.Type, err.Error()
}
