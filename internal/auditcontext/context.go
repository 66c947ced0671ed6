package auditcontext

import (
	"context"
	"strings"
)

type ctxKey int

const (
	ipAddressKey ctxKey = iota
	userAgentKey
	requestIDKey
)

func WithIPAddress(ctx context.Context, ip string) context.Context {
	return context.WithValue(ctx, ipAddressKey, strings.TrimSpace(ip))
}

func IPAddressFromContext(ctx context.Context) string {
	return value(ctx, ipAddressKey)
}

func WithUserAgent(ctx context.Context, ua string) context.Context {
	return context.WithValue(ctx, userAgentKey, strings.TrimSpace(ua))
}

func UserAgentFromContext(ctx context.Context) string {
	return value(ctx, userAgentKey)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, strings.TrimSpace(requestID))
}

func RequestIDFromContext(ctx context.Context) string {
	return value(ctx, requestIDKey)
}

func value(ctx context.Context, key ctxKey) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(key).(string)
	return v
}
