package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Speedtest_Selector_Go/pkg/model"
)

func TestObserve(t *testing.T) {
	before := testutil.ToFloat64(TransferFailures.WithLabelValues("upload"))

	ObserveMeasurement(model.MeasurementResult{DownloadMbps: 87.5})
	assert.Equal(t, 87.5, testutil.ToFloat64(ThroughputMbps.WithLabelValues("download")))
	assert.Equal(t, 0.0, testutil.ToFloat64(ThroughputMbps.WithLabelValues("upload")))
	assert.Equal(t, before+1, testutil.ToFloat64(TransferFailures.WithLabelValues("upload")))

	reachable := testutil.ToFloat64(ProbesTotal.WithLabelValues("reachable"))
	unreachable := testutil.ToFloat64(ProbesTotal.WithLabelValues("unreachable"))
	ObserveProbes(3, 5)
	assert.Equal(t, reachable+3, testutil.ToFloat64(ProbesTotal.WithLabelValues("reachable")))
	assert.Equal(t, unreachable+2, testutil.ToFloat64(ProbesTotal.WithLabelValues("unreachable")))
}

func TestHandler(t *testing.T) {
	ObserveRun("ok")

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), `speedtest_runs_total{outcome="ok"}`))
}
