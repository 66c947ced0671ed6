package masking

import "strings"

const maskToken = "****"

var sensitiveKeys = []string{"password", "token", "secret", "hash"}

// MaskSecret redacts a secret while keeping a minimal suffix for auditing.
func MaskSecret(value string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return ""
	}
	if len(trimmed) <= 8 {
		return maskToken
	}
	return maskToken + trimmed[len(trimmed)-4:]
}

// MaskDetails returns a copy of details where values under credential-like keys are redacted.
// Nested maps are walked; other values are copied as is.
func MaskDetails(details map[string]any) map[string]any {
	if len(details) == 0 {
		return nil
	}

	out := make(map[string]any, len(details))
	for key, value := range details {
		trimmedKey := strings.TrimSpace(key)
		if trimmedKey == "" {
			continue
		}
		if isSensitive(trimmedKey) {
			if s, ok := value.(string); ok {
				out[trimmedKey] = MaskSecret(s)
			} else {
				out[trimmedKey] = maskToken
			}
			continue
		}
		if nested, ok := value.(map[string]any); ok {
			out[trimmedKey] = MaskDetails(nested)
			continue
		}
		out[trimmedKey] = value
	}

	if len(out) == 0 {
		return nil
	}
	return out
}

func isSensitive(key string) bool {
	key = strings.ToLower(key)
	for _, s := range sensitiveKeys {
		if strings.Contains(key, s) {
			return true
		}
	}
	return false
}
