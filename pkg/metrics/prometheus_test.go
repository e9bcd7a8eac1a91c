package metrics

import (
	"strings"
	"testing"

	"MorningBrief/internal/domain/repository"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var _ repository.Metrics = (*Recorder)(nil)

func TestRecorderCounts(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := NewWithRegisterer(reg)

	r.RecordFetch("binance", "derivatives", "success")
	r.RecordFetch("mock", "derivatives", "fallback")
	r.RecordFetch("mock", "derivatives", "fallback")
	r.RecordSignal("critical")
	r.RecordRegime("risk_off")
	r.RecordDelivery("telegram", "failed")
	r.RecordLatency("brief.generate", 0.2)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.fetches.WithLabelValues("mock", "derivatives", "fallback")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.deliveries.WithLabelValues("telegram", "failed")))

	expected := `
# HELP morningbrief_regime_total Regime classifications, by label
# TYPE morningbrief_regime_total counter
morningbrief_regime_total{label="risk_off"} 1
`
	require.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected), "morningbrief_regime_total"))
}
