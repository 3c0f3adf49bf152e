package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "jobscout"

// Metrics holds the Prometheus collectors of the scrape pipeline. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	FetchAttempts *prometheus.CounterVec
	FetchErrors   *prometheus.CounterVec
	JobsScraped   *prometheus.CounterVec
	JobsSaved     prometheus.Counter
	Runs          *prometheus.CounterVec
	RunDuration   prometheus.Histogram
}

// New registers the collectors with reg. Passing nil uses the default registerer.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		FetchAttempts: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_attempts_total",
			Help:      "The total number of fetch attempts",
		}, []string{"source", "outcome"}), // outcome: ok, error
		FetchErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "fetch_errors_total",
			Help:      "The total number of classified fetch errors",
		}, []string{"source", "kind"}),
		JobsScraped: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_scraped_total",
			Help:      "The total number of jobs extracted from source pages",
		}, []string{"source"}),
		JobsSaved: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "jobs_saved_total",
			Help:      "The total number of newly inserted jobs",
		}),
		Runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scrape_runs_total",
			Help:      "The total number of scrape runs by final status",
		}, []string{"status"}),
		RunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scrape_run_duration_seconds",
			Help:      "Duration of scrape runs",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
	}
}

func (m *Metrics) IncFetchAttempt(source string, ok bool) {
	if m == nil {
		return
	}
	outcome := "ok"
	if !ok {
		outcome = "error"
	}
	m.FetchAttempts.WithLabelValues(source, outcome).Inc()
}

func (m *Metrics) IncFetchError(source, kind string) {
	if m == nil {
		return
	}
	m.FetchErrors.WithLabelValues(source, kind).Inc()
}

func (m *Metrics) AddJobsScraped(source string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.JobsScraped.WithLabelValues(source).Add(float64(n))
}

func (m *Metrics) AddJobsSaved(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.JobsSaved.Add(float64(n))
}

func (m *Metrics) ObserveRun(status string, d time.Duration) {
	if m == nil {
		return
	}
	m.Runs.WithLabelValues(status).Inc()
	m.RunDuration.Observe(d.Seconds())
}
