package meshdust

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

var errMeterBroken = errors.New("meter broken")

type brokenMeter struct {
	noop.Meter
}

func (brokenMeter) Int64Counter(string, ...metric.Int64CounterOption) (metric.Int64Counter, error) {
	return nil, errMeterBroken
}

type brokenMeterProvider struct {
	noop.MeterProvider
}

func (brokenMeterProvider) Meter(string, ...metric.MeterOption) metric.Meter {
	return brokenMeter{}
}

func TestNewEngineMetrics(t *testing.T) {
	m, err := newEngineMetrics(noop.NewMeterProvider())
	require.NoError(t, err)
	assert.NotNil(t, m.frames)
	assert.NotNil(t, m.instances)

	_, err = newEngineMetrics(brokenMeterProvider{})
	require.ErrorIs(t, err, errMeterBroken)
	assert.Contains(t, err.Error(), "frames counter")
}

func TestEngine_MeterFailureFallsBackToNop(t *testing.T) {
	var buf bytes.Buffer
	e, _ := newTestEngine(t,
		WithLogger(NewLogger(&buf, "engine", false)),
		WithMeterProvider(brokenMeterProvider{}),
	)
	assert.Contains(t, buf.String(), "metrics disabled")

	require.NoError(t, e.LoadMesh(lineMesh(5)))
	require.NotPanics(t, e.Tick)
	assert.Equal(t, 5, e.Current().Count())
}
