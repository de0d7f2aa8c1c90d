package metrics

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "console"

var (
	registry = prometheus.NewRegistry()

	pollTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "poll_total",
		Help:      "Backend fetches issued by view pollers.",
	}, []string{"view", "outcome"})

	pollDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "poll_duration_seconds",
		Help:      "Duration of backend fetches issued by view pollers.",
		Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
	}, []string{"view"})

	decisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "decisions_total",
		Help:      "Review decisions submitted.",
	}, []string{"decision", "outcome"})

	deletesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "deletes_total",
		Help:      "Workflow deletions attempted.",
	}, []string{"outcome"})

	submissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "submissions_total",
		Help:      "Invoice submissions by resulting workflow status.",
	}, []string{"status"})
)

func init() {
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		pollTotal,
		pollDuration,
		decisionsTotal,
		deletesTotal,
		submissionsTotal,
	)
}

// ObservePoll records one poller fetch for view.
func ObservePoll(view string, d time.Duration, err error) {
	pollTotal.WithLabelValues(view, outcome(err)).Inc()
	pollDuration.WithLabelValues(view).Observe(d.Seconds())
}

// IncDecision counts a submitted review decision.
func IncDecision(decision string, err error) {
	decisionsTotal.WithLabelValues(decision, outcome(err)).Inc()
}

// IncDelete counts a workflow deletion attempt.
func IncDelete(err error) {
	deletesTotal.WithLabelValues(outcome(err)).Inc()
}

// IncSubmission counts an invoice submission. status is the workflow status or "error".
func IncSubmission(status string) {
	if status == "" {
		status = "unknown"
	}
	submissionsTotal.WithLabelValues(status).Inc()
}

// Registry exposes the console registry for tests and extra collectors.
func Registry() *prometheus.Registry {
	return registry
}

// Handler exposes metrics in Prometheus text format.
func Handler() gin.HandlerFunc {
	return gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
