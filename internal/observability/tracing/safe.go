package tracing

import (
	"context"
	"errors"

	"github.com/smallbiznis/incomeengine/pkg/errutil"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
)

var blockedAttributeKeys = map[attribute.Key]struct{}{
	"destination":    {},
	"receiver":       {},
	"paypal.email":   {},
	"cashapp.tag":    {},
	"authorization":  {},
	"provider.token": {},
}

// SafeAttributes drops attributes that could leak payout destinations or
// credentials into traces.
func SafeAttributes(attrs ...attribute.KeyValue) []attribute.KeyValue {
	out := make([]attribute.KeyValue, 0, len(attrs))
	for _, attr := range attrs {
		if _, blocked := blockedAttributeKeys[attr.Key]; blocked {
			continue
		}
		out = append(out, attr)
	}
	return out
}

// SafeError reduces err to its domain code when it has one.
func SafeError(err error) error {
	if err == nil {
		return nil
	}
	if code := errutil.CodeOf(err); code != "" {
		return errors.New(code)
	}
	return err
}

// ExtractContext restores an upstream span context from carrier.
func ExtractContext(ctx context.Context, carrier propagation.TextMapCarrier) context.Context {
	return otel.GetTextMapPropagator().Extract(ctx, carrier)
}
