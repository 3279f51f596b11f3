package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "shardcoord"

// Metrics collects the statistics of the state update queue and the
// publications it runs. All methods are safe to call on a nil receiver, so
// components may be used without metrics.
type Metrics struct {
	publications    *prometheus.CounterVec
	nacks           prometheus.Counter
	ackTimeouts     prometheus.Counter
	tasks           *prometheus.CounterVec
	queueLength     prometheus.Gauge
	stateVersion    prometheus.Gauge
	publishDuration prometheus.Histogram
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		publications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publications_total",
			Help:      "Number of published cluster state versions by result.",
		}, []string{"result"}),
		nacks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publication_nacks_total",
			Help:      "Number of nodes that rejected a published state.",
		}),
		ackTimeouts: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "publication_ack_timeouts_total",
			Help:      "Number of nodes that did not acknowledge a published state in time.",
		}),
		tasks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tasks_total",
			Help:      "Number of processed state update tasks by outcome.",
		}, []string{"outcome"}),
		queueLength: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "queue_length",
			Help:      "Number of tasks waiting in the queue.",
		}),
		stateVersion: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "state_version",
			Help:      "Version of the current cluster state.",
		}),
		publishDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "publication_duration_seconds",
			Help:      "Time from sending a state until every node has responded or timed out.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}

	reg.MustRegister(
		m.publications,
		m.nacks,
		m.ackTimeouts,
		m.tasks,
		m.queueLength,
		m.stateVersion,
		m.publishDuration,
	)

	return m
}

// ObservePublication records a finished publication.
func (m *Metrics) ObservePublication(committed bool, nacks, timeouts int, took time.Duration) {
	if m == nil {
		return
	}

	result := "committed"
	if !committed {
		result = "not_committed"
	}

	m.publications.WithLabelValues(result).Inc()
	m.nacks.Add(float64(nacks))
	m.ackTimeouts.Add(float64(timeouts))
	m.publishDuration.Observe(took.Seconds())
}

func (m *Metrics) ObserveTask(outcome string) {
	if m == nil {
		return
	}

	m.tasks.WithLabelValues(outcome).Inc()
}

func (m *Metrics) SetQueueLength(n int) {
	if m == nil {
		return
	}

	m.queueLength.Set(float64(n))
}

func (m *Metrics) SetStateVersion(version uint64) {
	if m == nil {
		return
	}

	m.stateVersion.Set(float64(version))
}
