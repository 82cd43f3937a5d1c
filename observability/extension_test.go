package observability_test

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"

	"github.com/xraph/payout"
	"github.com/xraph/payout/observability"
	"github.com/xraph/payout/pairing"
	"github.com/xraph/payout/types"
)

func TestPrometheusFactoryNamesAndReuse(t *testing.T) {
	reg := prometheus.NewRegistry()
	f := observability.NewPrometheusFactory(reg)

	c1 := f.Counter("payout.pairing.created")
	c2 := f.Counter("payout.pairing.created")
	require.Same(t, c1, c2)

	c1.Inc()
	c2.Add(2)

	families, err := reg.Gather()
	require.NoError(t, err)
	require.Len(t, families, 1)
	require.Equal(t, "payout_pairing_created", families[0].GetName())
	require.InDelta(t, 3, families[0].GetMetric()[0].GetCounter().GetValue(), 0)
}

func TestMetricsExtensionCountsMatching(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := observability.NewMetricsExtension(observability.NewPrometheusFactory(reg))
	ctx := context.Background()

	require.NoError(t, m.OnPairingCreated(ctx, &pairing.Pairing{AmountMatched: types.KES(500)}))
	require.NoError(t, m.OnPassCompleted(ctx, "matching", &payout.MatchingSummary{
		DemandFunded:  2,
		DemandPartial: 1,
		Failed:        1,
	}, 15*time.Millisecond))
	require.NoError(t, m.OnPassCompleted(ctx, "matching", &payout.MatchingSummary{Skipped: true}, time.Millisecond))

	got := counters(t, reg)
	require.InDelta(t, 1, got["payout_pairing_created"], 0)
	require.InDelta(t, 2, got["payout_matching_demand_funded"], 0)
	require.InDelta(t, 1, got["payout_matching_demand_partial"], 0)
	require.InDelta(t, 1, got["payout_matching_failed"], 0)
	require.InDelta(t, 1, got["payout_matching_skipped"], 0)
}

func counters(t *testing.T, reg *prometheus.Registry) map[string]float64 {
	t.Helper()
	families, err := reg.Gather()
	require.NoError(t, err)

	out := make(map[string]float64)
	for _, fam := range families {
		for _, m := range fam.GetMetric() {
			if c := m.GetCounter(); c != nil {
				out[fam.GetName()] += c.GetValue()
			}
		}
	}
	return out
}
