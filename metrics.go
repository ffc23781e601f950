package meshdust

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

const instrumentationName = "github.com/gekko3d/meshdust"

// engineMetrics records frame and regeneration counts through the global
// OpenTelemetry meter. Without an SDK installed every call is a no-op.
type engineMetrics struct {
	frames        metric.Int64Counter
	regenerations metric.Int64Counter
	decodeErrors  metric.Int64Counter
	instances     metric.Int64UpDownCounter
}

func newEngineMetrics(mp metric.MeterProvider) (*engineMetrics, error) {
	if mp == nil {
		mp = otel.GetMeterProvider()
	}
	m := mp.Meter(instrumentationName)

	var (
		em  engineMetrics
		err error
	)
	em.frames, err = m.Int64Counter("meshdust.frames",
		metric.WithDescription("Animation frames composed"))
	if err != nil {
		return nil, fmt.Errorf("creating frames counter: %w", err)
	}
	em.regenerations, err = m.Int64Counter("meshdust.regenerations",
		metric.WithDescription("Instance set regenerations"))
	if err != nil {
		return nil, fmt.Errorf("creating regenerations counter: %w", err)
	}
	em.decodeErrors, err = m.Int64Counter("meshdust.decode.errors",
		metric.WithDescription("Failed mesh decodes"))
	if err != nil {
		return nil, fmt.Errorf("creating decode errors counter: %w", err)
	}
	em.instances, err = m.Int64UpDownCounter("meshdust.instances",
		metric.WithDescription("Live particle instances"))
	if err != nil {
		return nil, fmt.Errorf("creating instances counter: %w", err)
	}
	return &em, nil
}

// nopEngineMetrics stands in when the meter provider cannot build the
// instruments.
func nopEngineMetrics() *engineMetrics {
	return &engineMetrics{
		frames:        noop.Int64Counter{},
		regenerations: noop.Int64Counter{},
		decodeErrors:  noop.Int64Counter{},
		instances:     noop.Int64UpDownCounter{},
	}
}

func (m *engineMetrics) frame() {
	m.frames.Add(context.Background(), 1)
}

func (m *engineMetrics) regenerated(newMesh bool, before, after int) {
	ctx := context.Background()
	m.regenerations.Add(ctx, 1, metric.WithAttributes(attribute.Bool("new_mesh", newMesh)))
	m.instances.Add(ctx, int64(after-before))
}

func (m *engineMetrics) decodeFailed(format string) {
	m.decodeErrors.Add(context.Background(), 1, metric.WithAttributes(attribute.String("format", format)))
}

func (m *engineMetrics) released(count int) {
	m.instances.Add(context.Background(), -int64(count))
}
