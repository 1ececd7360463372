package segment

import (
	"context"

	"github.com/flowkv/flowkv/pkg/telemetry"
)

// Metrics defines the instrumentation points a SegmentRewriter or
// ChainFlattener reports through, following the same optional-Telemetry
// pattern as pkg/reorg.Metrics.
type Metrics interface {
	RecordRewrite(oldSegments, newSegments int)
	RecordPagesWritten(n int)
}

type otelMetrics struct {
	tel telemetry.Telemetry
}

// NewMetrics returns a Metrics implementation backed by tel.
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

func (m *otelMetrics) RecordRewrite(oldSegments, newSegments int) {
	ctx := context.Background()
	m.tel.RecordCounter(ctx, "flowkv.segment.rewrite.count", 1)
	m.tel.RecordHistogram(ctx, "flowkv.segment.rewrite.old_segments", float64(oldSegments))
	m.tel.RecordHistogram(ctx, "flowkv.segment.rewrite.new_segments", float64(newSegments))
}

func (m *otelMetrics) RecordPagesWritten(n int) {
	m.tel.RecordCounter(context.Background(), "flowkv.segment.pages_written", int64(n))
}

type noopMetrics struct{}

func (noopMetrics) RecordRewrite(int, int) {}
func (noopMetrics) RecordPagesWritten(int) {}
