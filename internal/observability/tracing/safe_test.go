package tracing

import (
	"fmt"
	"testing"

	"github.com/smallbiznis/incomeengine/pkg/errutil"
	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/attribute"
)

func TestSafeAttributesDropsDestinations(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("engine", "micro-tasks"),
		attribute.String("destination", "someone@example.com"),
	)
	assert.Len(t, attrs, 1)
	assert.Equal(t, attribute.Key("engine"), attrs[0].Key)
}

func TestSafeErrorUsesDomainCode(t *testing.T) {
	err := fmt.Errorf("payout to someone@example.com: %w", errutil.Unavailable("payout_failed"))
	assert.EqualError(t, SafeError(err), "payout_failed")
	assert.Nil(t, SafeError(nil))
}
