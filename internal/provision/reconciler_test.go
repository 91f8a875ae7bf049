package provision

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/cronverge/internal/inventory"
)

func TestReconciler_RunOnce(t *testing.T) {
	stores := map[string]*fakeStore{"web-1": newFakeStore()}
	p := New(zerolog.Nop(), fakeFactory(stores))
	pb := mustParse(t, basePlaybook)

	rec := NewReconciler(zerolog.Nop(), p, pb, []inventory.Host{webHost()}, time.Minute, Options{}, prometheus.NewRegistry())

	assert.Nil(t, rec.LastReport())

	report := rec.RunOnce(context.Background())
	require.NotNil(t, report)
	assert.Same(t, report, rec.LastReport())

	assert.Equal(t, float64(1), testutil.ToFloat64(rec.metrics.ApplyTotal.WithLabelValues("success")))
	assert.Zero(t, testutil.ToFloat64(rec.metrics.HostFailures.WithLabelValues("web-1")))
}

func TestReconciler_RunOnceCountsFailures(t *testing.T) {
	// Empty store map: every host is unreachable.
	p := New(zerolog.Nop(), fakeFactory(map[string]*fakeStore{}))
	pb := mustParse(t, basePlaybook)

	rec := NewReconciler(zerolog.Nop(), p, pb, []inventory.Host{webHost()}, time.Minute, Options{}, prometheus.NewRegistry())
	report := rec.RunOnce(context.Background())
	require.NotNil(t, report)

	assert.Equal(t, float64(1), testutil.ToFloat64(rec.metrics.ApplyTotal.WithLabelValues("failure")))
	assert.Equal(t, float64(1), testutil.ToFloat64(rec.metrics.HostFailures.WithLabelValues("web-1")))
}
