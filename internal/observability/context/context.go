// Package context carries correlation identifiers used by logs and spans.
package context

import (
	stdcontext "context"
	"strings"
)

type requestIDKey struct{}
type engineKey struct{}
type runIDKey struct{}
type triggerKey struct{}

func WithRequestID(ctx stdcontext.Context, requestID string) stdcontext.Context {
	return withString(ctx, requestIDKey{}, requestID)
}

func RequestIDFromContext(ctx stdcontext.Context) string {
	return stringFrom(ctx, requestIDKey{})
}

// WithEngineRun tags ctx with the engine being run, its run id and what
// triggered it ("schedule" or "manual").
func WithEngineRun(ctx stdcontext.Context, engine, runID, trigger string) stdcontext.Context {
	ctx = withString(ctx, engineKey{}, engine)
	ctx = withString(ctx, runIDKey{}, runID)
	return withString(ctx, triggerKey{}, trigger)
}

func EngineFromContext(ctx stdcontext.Context) string {
	return stringFrom(ctx, engineKey{})
}

func RunIDFromContext(ctx stdcontext.Context) string {
	return stringFrom(ctx, runIDKey{})
}

func TriggerFromContext(ctx stdcontext.Context) string {
	return stringFrom(ctx, triggerKey{})
}

func withString(ctx stdcontext.Context, key any, value string) stdcontext.Context {
	if ctx == nil {
		ctx = stdcontext.Background()
	}
	value = strings.TrimSpace(value)
	if value == "" {
		return ctx
	}
	return stdcontext.WithValue(ctx, key, value)
}

func stringFrom(ctx stdcontext.Context, key any) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(key).(string)
	return value
}
