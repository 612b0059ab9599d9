package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/tidwall/gjson"

	"github.com/cppla/posturemon/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func serve(r *gin.Engine, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func TestRateLimitMiddleware(t *testing.T) {
	r := gin.New()
	r.Use(RateLimitMiddleware(4)) // burst of 2
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	req := func(ip string) *http.Request {
		rq := httptest.NewRequest(http.MethodGet, "/ping", nil)
		rq.RemoteAddr = ip + ":1234"
		return rq
	}

	assert.Equal(t, http.StatusNoContent, serve(r, req("10.0.0.1")).Code)
	assert.Equal(t, http.StatusNoContent, serve(r, req("10.0.0.1")).Code)
	rec := serve(r, req("10.0.0.1"))
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
	assert.Equal(t, int64(42901), gjson.Get(rec.Body.String(), "code").Int())

	assert.Equal(t, http.StatusNoContent, serve(r, req("10.0.0.2")).Code)
}

func TestRateLimitDisabled(t *testing.T) {
	r := gin.New()
	r.Use(RateLimitMiddleware(0))
	r.GET("/ping", func(c *gin.Context) { c.Status(http.StatusNoContent) })
	for i := 0; i < 10; i++ {
		assert.Equal(t, http.StatusNoContent, serve(r, httptest.NewRequest(http.MethodGet, "/ping", nil)).Code)
	}
}

func TestLimiterSetDropsIdleBuckets(t *testing.T) {
	now := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	s := newLimiterSet(60)
	s.now = func() time.Time { return now }

	assert.True(t, s.allow("a"))
	assert.Len(t, s.buckets, 1)

	now = now.Add(limiterIdleTTL + time.Second)
	assert.True(t, s.allow("b"))
	assert.Len(t, s.buckets, 1)
	_, ok := s.buckets["b"]
	assert.True(t, ok)
}

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.Use(RequestID())
	r.GET("/id", func(c *gin.Context) { c.String(http.StatusOK, c.GetString(utils.RequestIDKey)) })

	rec := serve(r, httptest.NewRequest(http.MethodGet, "/id", nil))
	id := rec.Header().Get(RequestIDHeader)
	_, err := uuid.Parse(id)
	assert.NoError(t, err)
	assert.Equal(t, id, rec.Body.String())

	given := uuid.NewString()
	rq := httptest.NewRequest(http.MethodGet, "/id", nil)
	rq.Header.Set(RequestIDHeader, given)
	assert.Equal(t, given, serve(r, rq).Header().Get(RequestIDHeader))

	rq = httptest.NewRequest(http.MethodGet, "/id", nil)
	rq.Header.Set(RequestIDHeader, "not a uuid")
	assert.NotEqual(t, "not a uuid", serve(r, rq).Header().Get(RequestIDHeader))
}

func TestMetricsMiddlewarePassesThrough(t *testing.T) {
	r := gin.New()
	r.Use(Metrics())
	r.GET("/api/health", func(c *gin.Context) { c.Status(http.StatusOK) })

	assert.Equal(t, http.StatusOK, serve(r, httptest.NewRequest(http.MethodGet, "/api/health", nil)).Code)
	assert.Equal(t, http.StatusNotFound, serve(r, httptest.NewRequest(http.MethodGet, "/nope", nil)).Code)
}
