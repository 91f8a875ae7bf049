package provision

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/edvin/cronverge/internal/inventory"
	"github.com/edvin/cronverge/internal/model"
	"github.com/edvin/cronverge/internal/playbook"
)

// Reconciler re-applies a playbook on an interval, converging hosts whose
// crontabs drifted between runs.
type Reconciler struct {
	logger   zerolog.Logger
	prov     *Provisioner
	pb       *playbook.Playbook
	hosts    []inventory.Host
	interval time.Duration
	opts     Options
	metrics  *Metrics

	mu   sync.RWMutex
	last *model.RunReport
}

// NewReconciler creates a reconciler and registers its metrics on reg.
func NewReconciler(
	logger zerolog.Logger,
	prov *Provisioner,
	pb *playbook.Playbook,
	hosts []inventory.Host,
	interval time.Duration,
	opts Options,
	reg prometheus.Registerer,
) *Reconciler {
	return &Reconciler{
		logger:   logger.With().Str("component", "reconciler").Logger(),
		prov:     prov,
		pb:       pb,
		hosts:    hosts,
		interval: interval,
		opts:     opts,
		metrics:  NewMetrics(reg),
	}
}

// RunOnce performs one provisioning pass and records its metrics.
func (r *Reconciler) RunOnce(ctx context.Context) *model.RunReport {
	start := time.Now()
	report, err := r.prov.Apply(ctx, r.pb, r.hosts, r.opts)
	r.metrics.ApplyDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		r.metrics.ApplyTotal.WithLabelValues("failure").Inc()
		r.logger.Error().Err(err).Msg("provisioning pass aborted")
		return nil
	}

	failed := 0
	for _, h := range report.Hosts {
		if h.Failed() {
			failed++
			r.metrics.HostFailures.WithLabelValues(h.Host).Inc()
			continue
		}
		for _, e := range h.Events {
			r.metrics.Changes.WithLabelValues(e.Kind, e.Action).Inc()
		}
	}

	result := "success"
	if failed > 0 {
		result = "failure"
	}
	r.metrics.ApplyTotal.WithLabelValues(result).Inc()

	r.logger.Info().
		Str("run_id", report.RunID).
		Int("hosts", len(report.Hosts)).
		Int("failed", failed).
		Interface("summary", report.Summary()).
		Msg("provisioning pass completed")

	r.mu.Lock()
	r.last = report
	r.mu.Unlock()
	return report
}

// RunLoop converges immediately, then on every interval tick until the
// context is cancelled.
func (r *Reconciler) RunLoop(ctx context.Context) {
	r.logger.Info().Dur("interval", r.interval).Msg("starting reconcile loop")

	r.RunOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			r.logger.Info().Msg("reconcile loop stopped")
			return
		case <-ticker.C:
			r.RunOnce(ctx)
		}
	}
}

// LastReport returns the most recent completed run, or nil before the
// first pass finishes.
func (r *Reconciler) LastReport() *model.RunReport {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.last
}
