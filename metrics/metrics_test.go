package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordPostureCheckFoldsUnknownStatus(t *testing.T) {
	before := testutil.ToFloat64(postureChecks.WithLabelValues("other"))
	RecordPostureCheck("sideways")
	assert.Equal(t, before+1, testutil.ToFloat64(postureChecks.WithLabelValues("other")))
}

func TestRecordPointsIgnoresNegative(t *testing.T) {
	before := testutil.ToFloat64(pointsAwarded.WithLabelValues("manual"))
	RecordPointsAwarded("manual", -20)
	RecordPointsAwarded("manual", 30)
	assert.Equal(t, before+30, testutil.ToFloat64(pointsAwarded.WithLabelValues("manual")))
}

func TestRequestStarted(t *testing.T) {
	done := RequestStarted("get", "/api/health")
	assert.Equal(t, 1.0, testutil.ToFloat64(httpInFlight))
	done(http.StatusOK)
	assert.Equal(t, 0.0, testutil.ToFloat64(httpInFlight))
	assert.Equal(t, 1.0, testutil.ToFloat64(httpRequests.WithLabelValues("GET", "/api/health", "200")))
}

func TestHandlerExposesRegistry(t *testing.T) {
	RecordSweep(0, true)
	RecordSweep(time.Second, false)

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "posturemon_jobs_achievement_sweeps_total")
}
