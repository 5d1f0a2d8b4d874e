// Package metrics exposes Prometheus instrumentation for the extraction
// pipeline.
//
// A nil *Metrics is valid and turns every method into a no-op, so
// components can be built with or without instrumentation.
package metrics

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "pipeplot"

// Metrics holds the collectors for one pipeline run.
type Metrics struct {
	scans          prometheus.Counter
	bytesRead      prometheus.Counter
	readings       *prometheus.CounterVec
	batchSize      prometheus.Histogram
	carryBytes     prometheus.Gauge
	overflowBytes  prometheus.Counter
	sinkRows       prometheus.Counter
	retainedPoints *prometheus.GaugeVec
	inputClosed    prometheus.Gauge
}

// New creates the collectors and registers them with reg.
// A nil registerer yields a nil *Metrics.
func New(reg prometheus.Registerer) (*Metrics, error) {
	if reg == nil {
		return nil, nil
	}

	m := &Metrics{
		scans: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extractor",
			Name:      "scans_total",
			Help:      "Chunks read and scanned by the extractor",
		}),
		bytesRead: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extractor",
			Name:      "bytes_read_total",
			Help:      "Bytes read from the input stream",
		}),
		readings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extractor",
			Name:      "readings_total",
			Help:      "Readings accepted per channel",
		}, []string{"channel"}),
		batchSize: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "extractor",
			Name:      "batch_size",
			Help:      "Readings emitted per scan",
			Buckets:   []float64{0, 1, 2, 5, 10, 20, 50, 100},
		}),
		carryBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "extractor",
			Name:      "carry_buffer_bytes",
			Help:      "Bytes held in the carry buffer after the last scan",
		}),
		overflowBytes: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "extractor",
			Name:      "overflow_bytes_total",
			Help:      "Bytes discarded because the carry buffer exceeded its cap",
		}),
		sinkRows: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sink",
			Name:      "rows_total",
			Help:      "Rows written to the output sink",
		}),
		retainedPoints: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "series",
			Name:      "retained_points",
			Help:      "Readings currently retained in the window per channel",
		}, []string{"channel"}),
		inputClosed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "extractor",
			Name:      "input_closed",
			Help:      "1 once the input stream has closed",
		}),
	}

	collectors := []prometheus.Collector{
		m.scans, m.bytesRead, m.readings, m.batchSize, m.carryBytes,
		m.overflowBytes, m.sinkRows, m.retainedPoints, m.inputClosed,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// ObserveScan records one completed scan.
func (m *Metrics) ObserveScan(bytesRead, batch, carry int) {
	if m == nil {
		return
	}
	m.scans.Inc()
	m.bytesRead.Add(float64(bytesRead))
	m.batchSize.Observe(float64(batch))
	m.carryBytes.Set(float64(carry))
}

// AddReading counts one accepted reading for a channel.
func (m *Metrics) AddReading(channel int) {
	if m == nil {
		return
	}
	m.readings.WithLabelValues(strconv.Itoa(channel)).Inc()
}

// AddOverflow counts bytes dropped from the carry buffer.
func (m *Metrics) AddOverflow(n int) {
	if m == nil {
		return
	}
	m.overflowBytes.Add(float64(n))
}

// AddSinkRows counts rows written to the sink.
func (m *Metrics) AddSinkRows(n int) {
	if m == nil {
		return
	}
	m.sinkRows.Add(float64(n))
}

// SetRetained records how many readings a channel currently retains.
func (m *Metrics) SetRetained(channel, n int) {
	if m == nil {
		return
	}
	m.retainedPoints.WithLabelValues(strconv.Itoa(channel)).Set(float64(n))
}

// MarkInputClosed flags the end of the input stream.
func (m *Metrics) MarkInputClosed() {
	if m == nil {
		return
	}
	m.inputClosed.Set(1)
}
