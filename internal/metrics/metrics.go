package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/shopspring/decimal"
)

const (
	SubmissionAccepted   = "accepted"
	SubmissionDuplicate  = "duplicate"
	SubmissionIncomplete = "incomplete"
	SubmissionInvalid    = "invalid"
	SubmissionInProgress = "in_progress"
	SubmissionError      = "error"
)

// Recorder captures shift reconciliation signals on a private registry.
type Recorder struct {
	registry       *prometheus.Registry
	submissions    *prometheus.CounterVec
	audits         prometheus.Counter
	variance       prometheus.Histogram
	continuityGaps prometheus.Counter
}

func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "fuelos_shift_submissions_total",
			Help: "Shift submissions by outcome.",
		}, []string{"result"}),
		audits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fuelos_shift_audits_total",
			Help: "Manager audit amendments applied to submitted shifts.",
		}),
		variance: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "fuelos_shift_variance_amount",
			Help:    "Absolute cash variance of accepted shifts in rupees.",
			Buckets: []float64{0, 50, 100, 300, 500, 1000, 2500, 5000, 10000},
		}),
		continuityGaps: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "fuelos_continuity_gaps_total",
			Help: "Opening readings resolved across a missing shift.",
		}),
	}
	r.registry.MustRegister(r.submissions, r.audits, r.variance, r.continuityGaps)
	return r
}

func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

func (r *Recorder) ObserveSubmission(result string) {
	if r == nil {
		return
	}
	r.submissions.WithLabelValues(result).Inc()
}

func (r *Recorder) ObserveVariance(v decimal.Decimal) {
	if r == nil {
		return
	}
	f, _ := v.Abs().Float64()
	r.variance.Observe(f)
}

func (r *Recorder) ObserveAudit() {
	if r == nil {
		return
	}
	r.audits.Inc()
}

func (r *Recorder) ObserveContinuityGaps(n int) {
	if r == nil || n <= 0 {
		return
	}
	r.continuityGaps.Add(float64(n))
}
