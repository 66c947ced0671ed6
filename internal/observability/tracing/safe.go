package tracing

import (
	"errors"
	"strings"

	"go.opentelemetry.io/otel/attribute"
)

var blockedAttributeKeys = []string{"password", "token", "authorization", "secret", "email"}

// SafeAttributes drops attributes whose key looks like a credential or personal data.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if blockedKey(string(attr.Key)) {
			continue
		}
		out = append(out, attr)
	}
	return out
}

func blockedKey(key string) bool {
	key = strings.ToLower(key)
	for _, blocked := range blockedAttributeKeys {
		if strings.Contains(key, blocked) {
			return true
		}
	}
	return false
}

const maxErrorLength = 256

// SafeError truncates err's message so span events never carry full driver payloads.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	msg := err.Error()
	if len(msg) > maxErrorLength {
		msg = msg[:maxErrorLength]
	}
	return errors.New(msg)
}
