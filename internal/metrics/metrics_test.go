package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_NilRegistererIsNoop(t *testing.T) {
	m, err := New(nil)
	require.NoError(t, err)
	assert.Nil(t, m)

	// every method must be safe on a nil receiver
	m.ObserveScan(10, 1, 5)
	m.AddReading(0)
	m.AddOverflow(3)
	m.AddSinkRows(2)
	m.SetRetained(0, 4)
	m.MarkInputClosed()
}

func TestNew_DoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := New(reg)
	require.NoError(t, err)

	_, err = New(reg)
	assert.Error(t, err)
}

func TestMetrics_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m, err := New(reg)
	require.NoError(t, err)

	m.ObserveScan(128, 2, 40)
	m.ObserveScan(64, 0, 104)
	m.AddReading(0)
	m.AddReading(0)
	m.AddReading(1)
	m.AddOverflow(7)
	m.AddSinkRows(3)
	m.SetRetained(1, 9)
	m.MarkInputClosed()

	assert.Equal(t, float64(2), testutil.ToFloat64(m.scans))
	assert.Equal(t, float64(192), testutil.ToFloat64(m.bytesRead))
	assert.Equal(t, float64(104), testutil.ToFloat64(m.carryBytes))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.readings.WithLabelValues("0")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.readings.WithLabelValues("1")))
	assert.Equal(t, float64(7), testutil.ToFloat64(m.overflowBytes))
	assert.Equal(t, float64(3), testutil.ToFloat64(m.sinkRows))
	assert.Equal(t, float64(9), testutil.ToFloat64(m.retainedPoints.WithLabelValues("1")))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.inputClosed))
}
