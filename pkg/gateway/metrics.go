package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bft-labs/pushgate/pkg/redo"
	"github.com/bft-labs/pushgate/pkg/wire"
)

// Metrics holds the Prometheus collectors for a Connection. A nil *Metrics
// records nothing.
type Metrics struct {
	sent         prometheus.Counter
	skipped      prometheus.Counter
	writeErrors  prometheus.Counter
	dialErrors   prometheus.Counter
	connects     prometheus.Counter
	rewinds      prometheus.Counter
	lost         prometheus.Counter
	statusErrors *prometheus.CounterVec
}

// NewMetrics registers the gateway collectors with reg under the "pushgate"
// namespace.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	counter := func(name, help string) prometheus.Counter {
		return factory.NewCounter(prometheus.CounterOpts{
			Namespace: "pushgate",
			Subsystem: "gateway",
			Name:      name,
			Help:      help,
		})
	}

	return &Metrics{
		sent:        counter("notifications_sent_total", "Notification frames written to the gateway"),
		skipped:     counter("notifications_skipped_total", "Sends skipped because a replay was already scheduled"),
		writeErrors: counter("write_errors_total", "Failed socket writes"),
		dialErrors:  counter("dial_errors_total", "Failed connection attempts"),
		connects:    counter("connects_total", "Connections opened to the gateway"),
		rewinds:     counter("rewinds_total", "Queue rewinds after a reported error"),
		lost:        counter("loss_events_total", "Errors after which notifications could not be replayed"),
		statusErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "pushgate",
			Subsystem: "gateway",
			Name:      "status_errors_total",
			Help:      "Errors reported by the gateway, by status",
		}, []string{"status"}),
	}
}

// ObserveQueue exports the tape occupancy reported by stats.
func ObserveQueue(reg prometheus.Registerer, stats func() redo.Stats) {
	factory := promauto.With(reg)
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "pushgate",
		Subsystem: "queue",
		Name:      "pending_entries",
		Help:      "Queue entries not yet sent",
	}, func() float64 { return float64(stats().Pending) })
	factory.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: "pushgate",
		Subsystem: "queue",
		Name:      "retained_entries",
		Help:      "Sent queue entries still available for replay",
	}, func() float64 { return float64(stats().Retained) })
}

func (m *Metrics) incSent() {
	if m != nil {
		m.sent.Inc()
	}
}

func (m *Metrics) incSkipped() {
	if m != nil {
		m.skipped.Inc()
	}
}

func (m *Metrics) incWriteErrors() {
	if m != nil {
		m.writeErrors.Inc()
	}
}

func (m *Metrics) incDialErrors() {
	if m != nil {
		m.dialErrors.Inc()
	}
}

func (m *Metrics) incConnects() {
	if m != nil {
		m.connects.Inc()
	}
}

func (m *Metrics) incRewinds() {
	if m != nil {
		m.rewinds.Inc()
	}
}

func (m *Metrics) incLost() {
	if m != nil {
		m.lost.Inc()
	}
}

func (m *Metrics) incStatus(s wire.Status) {
	if m != nil {
		m.statusErrors.WithLabelValues(s.String()).Inc()
	}
}
