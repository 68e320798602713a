package context

import (
	stdcontext "context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEngineRunRoundTrip(t *testing.T) {
	ctx := WithEngineRun(stdcontext.Background(), "micro-tasks", "42", "manual")
	ctx = WithRequestID(ctx, " req-1 ")

	assert.Equal(t, "micro-tasks", EngineFromContext(ctx))
	assert.Equal(t, "42", RunIDFromContext(ctx))
	assert.Equal(t, "manual", TriggerFromContext(ctx))
	assert.Equal(t, "req-1", RequestIDFromContext(ctx))
}

func TestEmptyValuesAreNotStored(t *testing.T) {
	ctx := WithRequestID(stdcontext.Background(), "   ")
	assert.Equal(t, "", RequestIDFromContext(ctx))
	assert.Equal(t, "", EngineFromContext(nil))
}
