package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Counters(t *testing.T) {
	m, err := NewWithRegistry(prometheus.NewRegistry())
	require.NoError(t, err)

	m.RecordPrediction("success")
	m.RecordPrediction("success")
	m.RecordPrediction("invalid_image")
	m.RecordConsumption("computed", true)
	m.RecordLogin("failure")
	m.RecordSignup("created")
	m.ObserveDetection(120*time.Millisecond, nil)
	m.ObserveDetection(time.Second, errors.New("down"))

	assert.Equal(t, 2.0, testutil.ToFloat64(m.predictionsTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.predictionsTotal.WithLabelValues("invalid_image")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.consumptionTotal.WithLabelValues("computed", "true")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.loginsTotal.WithLabelValues("failure")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.detectionDuration))
}

func TestMetrics_Handler(t *testing.T) {
	m, err := New()
	require.NoError(t, err)
	m.RecordSignup("created")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Equal(t, 200, rec.Code)
	assert.Contains(t, string(body), `meterease_signups_total{result="created"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func TestMetrics_DoubleRegistrationFails(t *testing.T) {
	reg := prometheus.NewRegistry()
	_, err := NewWithRegistry(reg)
	require.NoError(t, err)

	_, err = NewWithRegistry(reg)
	assert.Error(t, err)
}
