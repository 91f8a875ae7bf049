package provision

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the reconcile-loop metrics exposed in serve mode.
type Metrics struct {
	ApplyDuration prometheus.Histogram
	ApplyTotal    *prometheus.CounterVec
	Changes       *prometheus.CounterVec
	HostFailures  *prometheus.CounterVec
}

// NewMetrics registers the provisioning metrics on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ApplyDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "cronverge_apply_duration_seconds",
			Help:    "Duration of each provisioning pass",
			Buckets: prometheus.DefBuckets,
		}),
		ApplyTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cronverge_apply_total",
			Help: "Total provisioning passes",
		}, []string{"result"}),
		Changes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cronverge_changes_total",
			Help: "Crontab entry changes by kind and action",
		}, []string{"kind", "action"}),
		HostFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "cronverge_host_failures_total",
			Help: "Hosts that failed to converge",
		}, []string{"host"}),
	}
}
