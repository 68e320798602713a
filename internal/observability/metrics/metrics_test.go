package metrics

import (
	"context"
	"testing"

	"go.opentelemetry.io/otel/attribute"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("engine", "content-writer"),
		attribute.String("destination", "someone@example.com"),
		attribute.String("platform", "paypal"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	if attrs[0].Key != "engine" && attrs[1].Key != "engine" {
		t.Fatalf("expected engine to be retained")
	}
	if attrs[0].Key != "platform" && attrs[1].Key != "platform" {
		t.Fatalf("expected platform to be retained")
	}
}

func TestNoopMetricsAcceptRecords(t *testing.T) {
	m := NewNoop()
	if m == nil {
		t.Fatalf("expected metrics")
	}
	ctx := context.Background()
	m.RecordEarning(ctx, "micro-tasks")
	m.RecordContent(ctx, "medium")
	m.RecordWithdrawal(ctx, "paypal", "processing")
	m.RecordPayoutEvent(ctx, "paypal", "payout")

	var nilMetrics *Metrics
	nilMetrics.RecordEarning(ctx, "x")
}
