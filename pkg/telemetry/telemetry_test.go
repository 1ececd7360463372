package telemetry

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
)

func TestNoopTelemetry(t *testing.T) {
	tel := NewNoop()
	ctx := context.Background()

	tel.RecordHistogram(ctx, "test.histogram", 1.5, attribute.String("key", "value"))
	tel.RecordCounter(ctx, "test.counter", 10, attribute.String("key", "value"))

	spanCtx, span := tel.StartSpan(ctx, "test.span", attribute.String("test", "value"))
	if spanCtx == nil {
		t.Error("StartSpan returned nil context")
	}
	if span == nil {
		t.Error("StartSpan returned nil span")
	}
	span.End()

	if err := tel.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown returned error: %v", err)
	}
}

func TestNewForTestingAndDisabled(t *testing.T) {
	for _, tel := range []Telemetry{NewForTesting(), NewDisabled()} {
		if tel == nil {
			t.Fatal("expected a non-nil no-op telemetry instance")
		}
		ctx := context.Background()
		tel.RecordHistogram(ctx, "test", 1.0)
		tel.RecordCounter(ctx, "test", 1)
	}
}

func TestRecordDuration(t *testing.T) {
	tel := NewNoop()
	ctx := context.Background()
	start := time.Now()
	time.Sleep(time.Millisecond)
	RecordDuration(ctx, tel, "test.duration", start, attribute.String("op", "test"))
}

func TestRecordBytes(t *testing.T) {
	tel := NewNoop()
	ctx := context.Background()
	RecordBytes(ctx, tel, "test.bytes", 1024, attribute.String("op", "test"))
}

func TestAttributeConstants(t *testing.T) {
	attributes := []string{
		AttrOperationType,
		AttrOperationName,
		AttrComponent,
		AttrLayer,
		AttrStatus,
		AttrSuccess,
		AttrErrorType,
		AttrSegmentID,
		AttrChainID,
		AttrReason,
	}
	for _, attr := range attributes {
		if attr == "" {
			t.Errorf("attribute constant is empty: %s", attr)
		}
	}
}

func TestOperationTypeConstants(t *testing.T) {
	opTypes := []string{OpTypePut, OpTypeDelete, OpTypeReorg, OpTypeRewrite, OpTypeFlatten}
	for _, opType := range opTypes {
		if opType == "" {
			t.Errorf("operation type constant is empty: %s", opType)
		}
	}
}

func TestStatusConstants(t *testing.T) {
	statuses := []string{StatusSuccess, StatusError}
	for _, status := range statuses {
		if status == "" {
			t.Errorf("status constant is empty: %s", status)
		}
	}
}

func TestComponentConstants(t *testing.T) {
	components := []string{ComponentMemTable, ComponentReorg, ComponentSegment}
	for _, component := range components {
		if component == "" {
			t.Errorf("component constant is empty: %s", component)
		}
	}
}

func TestTelemetryInterfaceComplianceNoOp(t *testing.T) {
	var tel Telemetry = &NoopTelemetry{}
	ctx := context.Background()

	tel.RecordHistogram(ctx, "test", 1.0)
	tel.RecordCounter(ctx, "test", 1)

	spanCtx, span := tel.StartSpan(ctx, "test")
	if spanCtx == nil || span == nil {
		t.Error("StartSpan should return valid context and span")
	}
	span.End()

	if err := tel.Shutdown(ctx); err != nil {
		t.Errorf("Shutdown should not return error for no-op: %v", err)
	}
}
