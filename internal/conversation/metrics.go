package conversation

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors that report turn activity.
type Metrics struct {
	turnDuration   *prometheus.HistogramVec
	turnFailures   *prometheus.CounterVec
	summarizations prometheus.Counter
	retrievedHits  prometheus.Counter
	promptTokens   prometheus.Histogram
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// defaultMetrics returns the package-level metrics instance registered with
// the global Prometheus registry. The collectors are created only once to
// avoid duplicate registration panics when several managers share a process.
func defaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics constructs a Metrics instance using the provided registerer.
// Pass a fresh registry when unique metric names are required (tests). Any
// registration error other than AlreadyRegistered panics, mirroring the
// promauto helpers.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	turnDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mnemo",
			Subsystem: "conversation",
			Name:      "turn_duration_seconds",
			Help:      "Duration of each turn phase.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"phase", "status"},
	)
	turnFailures := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mnemo",
			Subsystem: "conversation",
			Name:      "turn_failures_total",
			Help:      "Turns that failed, labelled by phase.",
		},
		[]string{"phase"},
	)
	summarizations := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mnemo",
			Subsystem: "conversation",
			Name:      "summarizations_total",
			Help:      "Number of rolling-summary compactions performed.",
		},
	)
	retrievedHits := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mnemo",
			Subsystem: "conversation",
			Name:      "retrieved_records_total",
			Help:      "Vector records injected into prompts.",
		},
	)
	promptTokens := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mnemo",
			Subsystem: "conversation",
			Name:      "prompt_tokens",
			Help:      "Estimated token size of outbound payloads.",
			Buckets:   prometheus.ExponentialBuckets(64, 2, 10),
		},
	)

	collectors := map[prometheus.Collector]func(prometheus.Collector){
		turnDuration:   func(c prometheus.Collector) { turnDuration = c.(*prometheus.HistogramVec) },
		turnFailures:   func(c prometheus.Collector) { turnFailures = c.(*prometheus.CounterVec) },
		summarizations: func(c prometheus.Collector) { summarizations = c.(prometheus.Counter) },
		retrievedHits:  func(c prometheus.Collector) { retrievedHits = c.(prometheus.Counter) },
		promptTokens:   func(c prometheus.Collector) { promptTokens = c.(prometheus.Histogram) },
	}
	for collector, replace := range collectors {
		if err := reg.Register(collector); err != nil {
			if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
				replace(already.ExistingCollector)
				continue
			}
			panic(err)
		}
	}

	return &Metrics{
		turnDuration:   turnDuration,
		turnFailures:   turnFailures,
		summarizations: summarizations,
		retrievedHits:  retrievedHits,
		promptTokens:   promptTokens,
	}
}

// ObserveTurnDuration records time spent in a turn phase.
func (m *Metrics) ObserveTurnDuration(phase, status string, duration time.Duration) {
	if m == nil || m.turnDuration == nil {
		return
	}
	m.turnDuration.WithLabelValues(phase, status).Observe(duration.Seconds())
}

// IncTurnFailure counts a failed phase.
func (m *Metrics) IncTurnFailure(phase string) {
	if m == nil || m.turnFailures == nil {
		return
	}
	m.turnFailures.WithLabelValues(phase).Inc()
}

// IncSummarization counts one rolling-summary compaction.
func (m *Metrics) IncSummarization() {
	if m == nil || m.summarizations == nil {
		return
	}
	m.summarizations.Inc()
}

// AddRetrievedRecords counts records injected into a prompt by retrieval.
func (m *Metrics) AddRetrievedRecords(n int) {
	if m == nil || m.retrievedHits == nil || n <= 0 {
		return
	}
	m.retrievedHits.Add(float64(n))
}

// ObservePromptTokens records the estimated size of an outbound payload.
func (m *Metrics) ObservePromptTokens(tokens int) {
	if m == nil || m.promptTokens == nil {
		return
	}
	m.promptTokens.Observe(float64(tokens))
}
