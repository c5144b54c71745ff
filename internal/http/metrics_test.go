package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fyrsmithlabs/decisiond/internal/logging"
	"github.com/fyrsmithlabs/decisiond/internal/slack"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

// sumBy totals an int64 counter's data points grouped by one attribute.
func sumBy(t *testing.T, rm metricdata.ResourceMetrics, name, key string) map[string]int64 {
	t.Helper()
	out := map[string]int64{}
	for _, sm := range rm.ScopeMetrics {
		for _, md := range sm.Metrics {
			if md.Name != name {
				continue
			}
			sum, ok := md.Data.(metricdata.Sum[int64])
			require.True(t, ok, "%s is not an int64 sum", name)
			for _, dp := range sum.DataPoints {
				v, _ := dp.Attributes.Value(attribute.Key(key))
				out[v.Emit()] += dp.Value
			}
		}
	}
	return out
}

func TestIngressMetrics(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	h := newRecordingHandler()
	s, err := NewServer(slack.NewVerifier(testSecret), h, logging.NewNop(), &Config{Meter: mp.Meter(meterName)})
	require.NoError(t, err)

	serve := func(req *http.Request) int {
		rec := httptest.NewRecorder()
		s.Handler().ServeHTTP(rec, req)
		return rec.Code
	}

	assert.Equal(t, http.StatusOK, serve(signedRequest(t, `{"type":"url_verification","challenge":"abc"}`)))

	bad := signedRequest(t, mentionBody)
	bad.Header.Set(slack.HeaderSignature, "v0=deadbeef")
	assert.Equal(t, http.StatusUnauthorized, serve(bad))

	assert.Equal(t, http.StatusOK, serve(signedRequest(t, mentionBody)))
	h.wait(t)

	retry := signedRequest(t, mentionBody)
	retry.Header.Set(slack.HeaderRetryNum, "1")
	assert.Equal(t, http.StatusOK, serve(retry))

	assert.Equal(t, http.StatusOK, serve(httptest.NewRequest(http.MethodGet, "/health", nil)))

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	assert.Equal(t, map[string]int64{
		"challenge":  1,
		"rejected":   1,
		"dispatched": 1,
		"retry":      1,
	}, sumBy(t, rm, "decisiond.slack.events", "disposition"))

	assert.Equal(t, map[string]int64{
		"/slack/events": 4,
		"/health":       1,
	}, sumBy(t, rm, "decisiond.http.requests", "route"))

	statuses := sumBy(t, rm, "decisiond.http.requests", "status")
	assert.Equal(t, int64(1), statuses["401"])
	assert.Equal(t, int64(4), statuses["200"])
}
