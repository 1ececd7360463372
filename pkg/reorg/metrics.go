package reorg

import (
	"context"

	"github.com/flowkv/flowkv/pkg/telemetry"
)

// Metrics defines the instrumentation points a ChainReorganizer reports
// through, following the same optional-Telemetry pattern as
// pkg/memtable.Metrics.
type Metrics interface {
	RecordReorg(oldPages, newPages int, success bool)
	RecordLeak(leakedPages int)
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

func (m *otelMetrics) RecordReorg(oldPages, newPages int, success bool) {
	ctx := context.Background()
	status := telemetry.StatusSuccess
	if !success {
		status = telemetry.StatusError
	}
	m.tel.RecordCounter(ctx, "flowkv.reorg.count", 1)
	m.tel.RecordHistogram(ctx, "flowkv.reorg.fanout", float64(newPages))
	_ = status
	_ = oldPages
}

func (m *otelMetrics) RecordLeak(leakedPages int) {
	m.tel.RecordCounter(context.Background(), "flowkv.reorg.leaked_pages", int64(leakedPages))
}

type noopMetrics struct{}

func (noopMetrics) RecordReorg(int, int, bool) {}
func (noopMetrics) RecordLeak(int)             {}
