package metric

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetricsRegistry(t *testing.T) {
	r := NewMetricsRegistry()

	require.NotNil(t, r.CoreMetrics())
	require.NotNil(t, r.PrometheusRegistry())

	// Pipeline metrics are registered and gatherable.
	r.Metrics.RecordsSeen.Inc()
	r.Metrics.RecordsDropped.WithLabelValues(ReasonSampling).Inc()
	r.Metrics.SamplingRate.Set(0.85)

	families, err := r.PrometheusRegistry().Gather()
	require.NoError(t, err)

	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	assert.True(t, names["streamcep_admission_records_seen_total"])
	assert.True(t, names["streamcep_admission_records_dropped_total"])
	assert.True(t, names["streamcep_shedding_sampling_rate"])
}

func TestRegisterCollector(t *testing.T) {
	r := NewMetricsRegistry()

	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "extra_total"})
	require.NoError(t, r.RegisterCollector("extra", c))

	err := r.RegisterCollector("extra", c)
	require.Error(t, err)

	assert.True(t, r.Unregister("extra"))
	assert.False(t, r.Unregister("extra"))
}

func TestMetricsEndpoint(t *testing.T) {
	r := NewMetricsRegistry()
	r.Metrics.MatchesTotal.Inc()

	srv := NewServer(0, "/metrics", r)
	ts := httptest.NewServer(r.Handler())
	defer ts.Close()

	resp, err := http.Get(ts.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	assert.Equal(t, "http://localhost:9090/metrics", srv.Address())
}
