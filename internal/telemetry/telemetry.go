// Package telemetry wires the push pipeline's pushed/skipped/conflicts/errors
// counters into OpenTelemetry, with a stdout exporter for periodic export
// and an in-process reader `hc status --metrics` can poll without
// performing network I/O.
package telemetry

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel/exporters/stdout/stdoutmetric"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// PushCounters accumulates the four push-pipeline counters that make up
// the pipeline's aggregate stats shape: pushed, skipped, conflicts, errors.
type PushCounters struct {
	provider *sdkmetric.MeterProvider
	reader   *sdkmetric.ManualReader

	pushed    metric.Int64Counter
	skipped   metric.Int64Counter
	conflicts metric.Int64Counter
	errors    metric.Int64Counter
}

// NewPushCounters builds a meter provider with two readers: a stdout
// exporter on a periodic reader (for background export), and a manual
// reader used by Snapshot for synchronous, network-free polling.
func NewPushCounters() (*PushCounters, error) {
	exporter, err := stdoutmetric.New(stdoutmetric.WithoutTimestamps())
	if err != nil {
		return nil, fmt.Errorf("telemetry: create stdout exporter: %w", err)
	}

	manual := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)),
		sdkmetric.WithReader(manual),
	)

	meter := provider.Meter("hardcopy/push")

	pushed, err := meter.Int64Counter("hardcopy.push.pushed", metric.WithDescription("nodes successfully pushed"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: pushed counter: %w", err)
	}
	skipped, err := meter.Int64Counter("hardcopy.push.skipped", metric.WithDescription("candidate changes skipped (no diff, no provider)"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: skipped counter: %w", err)
	}
	conflicts, err := meter.Int64Counter("hardcopy.push.conflicts", metric.WithDescription("unresolvable three-way conflicts detected"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: conflicts counter: %w", err)
	}
	errs, err := meter.Int64Counter("hardcopy.push.errors", metric.WithDescription("provider push failures"))
	if err != nil {
		return nil, fmt.Errorf("telemetry: errors counter: %w", err)
	}

	return &PushCounters{
		provider:  provider,
		reader:    manual,
		pushed:    pushed,
		skipped:   skipped,
		conflicts: conflicts,
		errors:    errs,
	}, nil
}

func (c *PushCounters) IncPushed(ctx context.Context)    { c.pushed.Add(ctx, 1) }
func (c *PushCounters) IncSkipped(ctx context.Context)   { c.skipped.Add(ctx, 1) }
func (c *PushCounters) IncConflicts(ctx context.Context) { c.conflicts.Add(ctx, 1) }
func (c *PushCounters) IncErrors(ctx context.Context)    { c.errors.Add(ctx, 1) }

// Snapshot reads current counter totals without performing network I/O,
// backing `hc status --metrics`.
func (c *PushCounters) Snapshot(ctx context.Context) (map[string]int64, error) {
	var rm metricdata.ResourceMetrics
	if err := c.reader.Collect(ctx, &rm); err != nil {
		return nil, fmt.Errorf("telemetry: collect: %w", err)
	}

	out := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			sum, ok := m.Data.(metricdata.Sum[int64])
			if !ok {
				continue
			}
			var total int64
			for _, dp := range sum.DataPoints {
				total += dp.Value
			}
			out[m.Name] = total
		}
	}
	return out, nil
}

// Shutdown flushes and releases the underlying meter provider's resources.
func (c *PushCounters) Shutdown(ctx context.Context) error {
	return c.provider.Shutdown(ctx)
}
