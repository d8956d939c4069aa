package obs_test

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-pos/internal/obs"
)

func TestDomainMetricsRegisterOnce(t *testing.T) {
	reg := prometheus.NewRegistry()
	obs.MustRegisterDomainMetrics("pos", reg)
	obs.MustRegisterDomainMetrics("pos", reg)

	require.NotNil(t, obs.ReconcileSavesTotal)
	obs.ReconcileSavesTotal.WithLabelValues("order", "ok").Inc()
	obs.ReconcileStepFailuresTotal.WithLabelValues("purchase", "insert_items").Inc()

	require.Equal(t, float64(1), testutil.ToFloat64(obs.ReconcileSavesTotal.WithLabelValues("order", "ok")))
	require.Equal(t, float64(1), testutil.ToFloat64(obs.ReconcileStepFailuresTotal.WithLabelValues("purchase", "insert_items")))

	count, err := testutil.GatherAndCount(reg, "pos_reconcile_saves_total")
	require.NoError(t, err)
	require.Equal(t, 1, count)
}
