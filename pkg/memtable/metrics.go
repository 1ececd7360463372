package memtable

import (
	"context"

	"github.com/flowkv/flowkv/pkg/telemetry"
	"go.opentelemetry.io/otel/attribute"
)

// Metrics defines the instrumentation points a MemTable reports through.
// All metrics are optional; a nil Telemetry yields a no-op implementation.
type Metrics interface {
	RecordPut(keyLen, valueLen int)
	RecordDelete(keyLen int)
}

type otelMetrics struct {
	tel telemetry.Telemetry
}

// NewMetrics returns a Metrics implementation backed by tel. If tel is nil,
// it returns a no-op implementation.
func NewMetrics(tel telemetry.Telemetry) Metrics {
	if tel == nil {
		return NewNoopMetrics()
	}
	return &otelMetrics{tel: tel}
}

// NewNoopMetrics returns a Metrics implementation that discards everything.
func NewNoopMetrics() Metrics {
	return noopMetrics{}
}

func (m *otelMetrics) RecordPut(keyLen, valueLen int) {
	ctx := context.Background()
	m.tel.RecordCounter(ctx, "flowkv.memtable.put.count", 1)
	m.tel.RecordHistogram(ctx, "flowkv.memtable.entry.size", float64(keyLen+valueLen),
		attribute.String("op", "put"))
}

func (m *otelMetrics) RecordDelete(keyLen int) {
	ctx := context.Background()
	m.tel.RecordCounter(ctx, "flowkv.memtable.delete.count", 1)
	m.tel.RecordHistogram(ctx, "flowkv.memtable.entry.size", float64(keyLen),
		attribute.String("op", "delete"))
}

type noopMetrics struct{}

func (noopMetrics) RecordPut(int, int) {}
func (noopMetrics) RecordDelete(int)   {}
