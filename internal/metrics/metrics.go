package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type Registry struct {
	reg *prometheus.Registry

	OrdersCommitted       prometheus.Counter
	OrderNumberConflicts  prometheus.Counter
	OrderNumberExhausted  prometheus.Counter
	OrderCommitLatencySec prometheus.Histogram
	IntakeRejected        *prometheus.CounterVec
	EnvelopesPrinted      prometheus.Counter
	PrintHistoryFailures  prometheus.Counter
	ReportExports         *prometheus.CounterVec
	StagingPurged         prometheus.Counter
}

func NewRegistry() *Registry {
	r := prometheus.NewRegistry()
	committed := prometheus.NewCounter(prometheus.CounterOpts{Name: "kinder_orders_committed_total"})
	conflicts := prometheus.NewCounter(prometheus.CounterOpts{Name: "kinder_order_number_conflicts_total"})
	exhausted := prometheus.NewCounter(prometheus.CounterOpts{Name: "kinder_order_number_exhausted_total"})
	commitLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "kinder_order_commit_latency_seconds",
		Buckets: prometheus.DefBuckets,
	})
	rejected := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "kinder_intake_rejected_total"}, []string{"reason"})
	printed := prometheus.NewCounter(prometheus.CounterOpts{Name: "kinder_envelopes_printed_total"})
	historyFailures := prometheus.NewCounter(prometheus.CounterOpts{Name: "kinder_print_history_failures_total"})
	exports := prometheus.NewCounterVec(prometheus.CounterOpts{Name: "kinder_report_exports_total"}, []string{"type", "format"})
	purged := prometheus.NewCounter(prometheus.CounterOpts{Name: "kinder_staging_purged_total"})

	r.MustRegister(committed, conflicts, exhausted, commitLatency, rejected, printed, historyFailures, exports, purged)
	return &Registry{
		reg:                   r,
		OrdersCommitted:       committed,
		OrderNumberConflicts:  conflicts,
		OrderNumberExhausted:  exhausted,
		OrderCommitLatencySec: commitLatency,
		IntakeRejected:        rejected,
		EnvelopesPrinted:      printed,
		PrintHistoryFailures:  historyFailures,
		ReportExports:         exports,
		StagingPurged:         purged,
	}
}

func (r *Registry) Handler() http.Handler { return promhttp.HandlerFor(r.reg, promhttp.HandlerOpts{}) }
