package server

import (
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/taskhub/internal/observability/context"
	"github.com/smallbiznis/taskhub/internal/observability/logger"
	"github.com/smallbiznis/taskhub/internal/tenantcontext"
	"go.uber.org/zap"
)

const (
	headerAuthorization = "Authorization"
	bearerPrefix        = "bearer "

	rateLimitReasonClientRate = "client-rate"
)

// AuthRequired resolves the bearer credential to a caller and stores it on the request context.
func (s *Server) AuthRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := bearerToken(c.GetHeader(headerAuthorization))
		if raw == "" {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		principal, err := s.authSvc.Authenticate(c.Request.Context(), raw)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		caller := principal.Caller()
		ctx := tenantcontext.WithCaller(c.Request.Context(), caller)
		ctx = obscontext.WithActor(ctx, caller.Role.String(), caller.UserID.String())
		if caller.TenantID != nil {
			ctx = obscontext.WithTenantID(ctx, caller.TenantID.String())
		}
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// authorize checks the caller's role against the capability table before the handler runs.
func (s *Server) authorize(object, action string) gin.HandlerFunc {
	return func(c *gin.Context) {
		caller, err := tenantcontext.MustCaller(c.Request.Context())
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if err := s.authzSvc.Authorize(c.Request.Context(), caller, object, action); err != nil {
			AbortWithError(c, err)
			return
		}
		c.Next()
	}
}

// LoginRateLimit throttles login attempts per client address when a limiter is configured.
func (s *Server) LoginRateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !s.loginLimiter.Enabled() {
			c.Next()
			return
		}

		ctx := c.Request.Context()
		result, err := s.loginLimiter.Allow(ctx, c.ClientIP())
		if err != nil {
			logger.FromContext(ctx).Warn("login rate limit check failed", zap.Error(err))
			AbortWithError(c, ErrServiceUnavailable)
			return
		}
		if !result.Allowed {
			endpoint := normalizeRateLimitEndpoint(c)
			logger.FromContext(ctx).Warn("login rate limit exceeded",
				zap.String("reason", rateLimitReasonClientRate),
				zap.String("endpoint", endpoint),
			)
			s.obsMetrics.RecordRateLimitDenied(ctx, endpoint, rateLimitReasonClientRate)

			retryAfter := int(result.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))
			AbortWithError(c, ErrRateLimited)
			return
		}
		c.Next()
	}
}

func bearerToken(header string) string {
	header = strings.TrimSpace(header)
	if len(header) <= len(bearerPrefix) || !strings.EqualFold(header[:len(bearerPrefix)], bearerPrefix) {
		return ""
	}
	return strings.TrimSpace(header[len(bearerPrefix):])
}

func normalizeRateLimitEndpoint(c *gin.Context) string {
	if c == nil {
		return "unknown"
	}
	endpoint := strings.TrimSpace(c.FullPath())
	if endpoint == "" {
		endpoint = strings.TrimSpace(c.Request.URL.Path)
	}
	if endpoint == "" {
		endpoint = "unknown"
	}
	return endpoint
}
