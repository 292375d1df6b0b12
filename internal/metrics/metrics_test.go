package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	r := New()

	r.ObserveRender("intro", 5*time.Millisecond)
	r.ObserveRender("intro", 7*time.Millisecond)
	r.Interaction("intro", ResultOK)
	r.Interaction("intro", ResultRejected)
	r.LiveBlockFailed("intro", "write-demo")
	r.SessionCreated()

	assert.Equal(t, 2.0, testutil.ToFloat64(r.renders.WithLabelValues("intro")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.interactions.WithLabelValues("intro", ResultOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.interactions.WithLabelValues("intro", ResultRejected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.liveFailures.WithLabelValues("intro", "write-demo")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.sessions))
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	assert.NotPanics(t, func() {
		r.ObserveRender("p", time.Second)
		r.Interaction("p", ResultError)
		r.LiveBlockFailed("p", "b")
		r.SessionCreated()
	})
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := New()
	r.ObserveRender("intro", time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `walkthrough_renders_total{page="intro"} 1`)
	assert.Contains(t, string(body), "walkthrough_render_duration_seconds_bucket")
}
