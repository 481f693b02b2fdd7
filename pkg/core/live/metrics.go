package live

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the session instrumentation. All record methods are safe
// on a nil receiver so callers never need to guard instrumentation.
type Metrics struct {
	registry *prometheus.Registry

	interruptionsTotal prometheus.Counter
	resumesTotal       prometheus.Counter
	audioBytesTotal    *prometheus.CounterVec
	segmentsTotal      *prometheus.CounterVec
	sessionsActive     prometheus.Gauge
	captureDropsTotal  prometheus.Counter
}

// NewMetrics builds and registers the session metric set on its own
// registry, keeping the exposition surface limited to what this process
// owns.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		interruptionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "livescribe_interruptions_total",
			Help: "Number of model turns cut off by user barge-in.",
		}),
		resumesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "livescribe_resume_messages_total",
			Help: "Number of interruption-context resume messages sent.",
		}),
		audioBytesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "livescribe_audio_bytes_total",
			Help: "PCM bytes moved, labeled by direction.",
		}, []string{"direction"}),
		segmentsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "livescribe_transcript_segments_total",
			Help: "Transcript segments emitted, labeled by stage.",
		}, []string{"stage"}),
		sessionsActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "livescribe_sessions_active",
			Help: "Live sessions currently running.",
		}),
		captureDropsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "livescribe_capture_frames_dropped_total",
			Help: "Microphone frames dropped by the bounded capture queue.",
		}),
	}
	reg.MustRegister(
		m.interruptionsTotal,
		m.resumesTotal,
		m.audioBytesTotal,
		m.segmentsTotal,
		m.sessionsActive,
		m.captureDropsTotal,
	)
	return m
}

// Handler serves the registry in Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) RecordInterruption() {
	if m == nil {
		return
	}
	m.interruptionsTotal.Inc()
}

func (m *Metrics) RecordResume() {
	if m == nil {
		return
	}
	m.resumesTotal.Inc()
}

func (m *Metrics) RecordAudioBytes(direction string, n int) {
	if m == nil {
		return
	}
	m.audioBytesTotal.WithLabelValues(direction).Add(float64(n))
}

func (m *Metrics) RecordSegment(stage string) {
	if m == nil {
		return
	}
	m.segmentsTotal.WithLabelValues(stage).Inc()
}

func (m *Metrics) RecordCaptureDrop() {
	if m == nil {
		return
	}
	m.captureDropsTotal.Inc()
}

func (m *Metrics) SessionStarted() {
	if m == nil {
		return
	}
	m.sessionsActive.Inc()
}

func (m *Metrics) SessionEnded() {
	if m == nil {
		return
	}
	m.sessionsActive.Dec()
}
