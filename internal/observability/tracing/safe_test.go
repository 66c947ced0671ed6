package tracing

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsSensitiveKeys(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("http.route", "/api/tasks"),
		attribute.String("user.password", "secret"),
		attribute.String("Authorization", "Bearer x"),
		attribute.String("user.email", "a@b.c"),
	)

	assert.Len(t, attrs, 1)
	assert.Equal(t, attribute.Key("http.route"), attrs[0].Key)
}

func TestSafeErrorTruncates(t *testing.T) {
	assert.Nil(t, SafeError(nil))

	long := errors.New(strings.Repeat("x", 1000))
	assert.Len(t, SafeError(long).Error(), maxErrorLength)
	assert.Equal(t, "boom", SafeError(errors.New("boom")).Error())
}

func TestSamplingRatioClamps(t *testing.T) {
	assert.Equal(t, 0.0, samplingRatio(-1))
	assert.Equal(t, 1.0, samplingRatio(3))
	assert.Equal(t, 0.25, samplingRatio(0.25))
}
