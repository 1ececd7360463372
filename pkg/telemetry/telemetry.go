// Package telemetry provides a thin abstraction over OpenTelemetry so the
// reorg/rewrite core can be instrumented without depending on a particular
// provider or exporter wiring; an embedding application supplies a real
// Telemetry implementation (or none, via NewNoop).
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// Telemetry is the core abstraction over OpenTelemetry that other packages
// depend on. Components use this interface to record metrics and spans
// without depending directly on OpenTelemetry.
type Telemetry interface {
	// RecordHistogram records a histogram value with optional attributes.
	RecordHistogram(ctx context.Context, name string, value float64, attrs ...attribute.KeyValue)

	// RecordCounter records a counter increment with optional attributes.
	RecordCounter(ctx context.Context, name string, value int64, attrs ...attribute.KeyValue)

	// StartSpan creates a new tracing span with the given name and attributes.
	StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span)

	// Shutdown gracefully shuts down all telemetry providers and exports remaining data.
	Shutdown(ctx context.Context) error
}

// ComponentMetrics is a marker interface for component-specific metrics that
// hold releasable resources. The memtable, reorg and segment Metrics
// interfaces do not embed it.
type ComponentMetrics interface {
	// Close releases any resources held by the metrics implementation.
	Close() error
}

// NoopTelemetry provides a no-operation implementation of Telemetry for testing or disabled scenarios.
type NoopTelemetry struct{}

// NewNoop creates a new no-operation telemetry instance.
func NewNoop() Telemetry {
	return &NoopTelemetry{}
}

// RecordHistogram is a no-op.
func (n *NoopTelemetry) RecordHistogram(ctx context.Context, name string, value float64, attrs ...attribute.KeyValue) {
	// No-op
}

// RecordCounter is a no-op.
func (n *NoopTelemetry) RecordCounter(ctx context.Context, name string, value int64, attrs ...attribute.KeyValue) {
	// No-op
}

// StartSpan returns the original context and a no-op span.
func (n *NoopTelemetry) StartSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return ctx, trace.SpanFromContext(ctx)
}

// Shutdown is a no-op.
func (n *NoopTelemetry) Shutdown(ctx context.Context) error {
	return nil
}

// Common telemetry utilities

// RecordDuration is a helper function to record operation duration in a histogram.
func RecordDuration(ctx context.Context, tel Telemetry, name string, start time.Time, attrs ...attribute.KeyValue) {
	duration := time.Since(start).Seconds()
	tel.RecordHistogram(ctx, name, duration, attrs...)
}

// RecordBytes is a helper function to record byte counts in a counter.
func RecordBytes(ctx context.Context, tel Telemetry, name string, bytes int64, attrs ...attribute.KeyValue) {
	tel.RecordCounter(ctx, name, bytes, attrs...)
}

// Common attribute keys for consistent naming across components
const (
	// Operation type attributes
	AttrOperationType = "operation.type"
	AttrOperationName = "operation.name"

	// Component attributes
	AttrComponent = "component"
	AttrLayer     = "layer"

	// Status attributes
	AttrStatus    = "status"
	AttrSuccess   = "success"
	AttrErrorType = "error.type"

	// Resource attributes
	AttrSegmentID = "segment.id"
	AttrChainID   = "chain.id"
	AttrReason    = "reason"
)

// Common attribute values
const (
	// Operation types
	OpTypePut    = "put"
	OpTypeDelete = "delete"
	OpTypeReorg  = "reorg"
	OpTypeRewrite = "rewrite"
	OpTypeFlatten = "flatten"

	// Status values
	StatusSuccess = "success"
	StatusError   = "error"

	// Component names
	ComponentMemTable = "memtable"
	ComponentReorg    = "reorg"
	ComponentSegment  = "segment"
)
