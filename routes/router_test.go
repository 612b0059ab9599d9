package routes

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/cppla/posturemon/config"
	"github.com/cppla/posturemon/services"
	"github.com/cppla/posturemon/store"
)

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()
	cfg := config.AppConfig{
		GinMode:            "test",
		GinPath:            filepath.Join(t.TempDir(), "gin.log"),
		StoreDriver:        "memory",
		AllowedOrigins:     []string{"*"},
		DefaultUserID:      "user_001",
		RateLimitPerMinute: 0,
		LogLevel:           "info",
	}
	st := store.NewMemoryStore()
	return SetupRouter(cfg, Deps{
		Store:   st,
		Posture: services.NewPostureService(st, cfg.DefaultUserID, nil),
		Rewards: services.NewRewardsService(st, nil, nil),
	})
}

func do(t *testing.T, h http.Handler, method, path, body string) (int, gjson.Result) {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"), "%s %s", method, path)
	return w.Code, gjson.Parse(w.Body.String())
}

func TestSessionLifecycle(t *testing.T) {
	h := newTestRouter(t)

	code, res := do(t, h, http.MethodPost, "/api/session/start", `{"user_id":"alice"}`)
	require.Equal(t, http.StatusCreated, code)
	assert.True(t, res.Get("success").Bool())
	sid := res.Get("session_id").String()
	require.Len(t, sid, 24)

	for _, body := range []string{
		`{"session_id":"` + sid + `","posture_status":"good","left_angle":12.5}`,
		`{"session_id":"` + sid + `","posture_status":"good"}`,
		`{"session_id":"` + sid + `","posture_status":"bad","issues":["slouching"],"was_corrected":true}`,
	} {
		code, res = do(t, h, http.MethodPost, "/api/posture/log", body)
		require.Equal(t, http.StatusCreated, code, res.Raw)
		assert.NotEmpty(t, res.Get("log_id").String())
	}

	code, res = do(t, h, http.MethodGet, "/api/posture/report/"+sid, "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(3), res.Get("logs.#").Int())
	assert.Equal(t, int64(3), res.Get("session.total_checks").Int())
	assert.Equal(t, int64(1), res.Get("session.corrections").Int())
	assert.Equal(t, 66.7, res.Get("session.score").Float())
	assert.Equal(t, gjson.Null, res.Get("session.duration_seconds").Type)
	assert.Equal(t, "slouching", res.Get("logs.2.issues.0").String())

	code, _ = do(t, h, http.MethodPost, "/api/session/end", `{"session_id":"`+sid+`"}`)
	require.Equal(t, http.StatusOK, code)

	code, res = do(t, h, http.MethodPost, "/api/session/end", `{"session_id":"`+sid+`"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, int64(40002), res.Get("code").Int())
	assert.False(t, res.Get("success").Bool())

	code, res = do(t, h, http.MethodPost, "/api/posture/log", `{"session_id":"`+sid+`","posture_status":"good"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, int64(40002), res.Get("code").Int())

	code, res = do(t, h, http.MethodGet, "/api/session/recent?user_id=alice", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(1), res.Get("sessions.#").Int())
	assert.Equal(t, sid, res.Get("sessions.0.session_id").String())

	for _, path := range []string{"/api/dashboard/stats?user_id=alice", "/dashboard/stats?user_id=alice&days=7"} {
		code, res = do(t, h, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, int64(1), res.Get("hero_stats.total_sessions").Int())
		assert.Equal(t, int64(2), res.Get("posture_distribution.good").Int())
		assert.Equal(t, int64(7), res.Get("daily_trends.#").Int())
		assert.Equal(t, int64(1), res.Get("recent_sessions.#").Int())
	}
}

func TestSessionErrors(t *testing.T) {
	h := newTestRouter(t)

	code, res := do(t, h, http.MethodPost, "/api/session/start", "")
	require.Equal(t, http.StatusCreated, code, "an empty body falls back to the default user")

	code, res = do(t, h, http.MethodGet, "/api/session/recent", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "user_001", res.Get("sessions.0.user_id").String())

	code, res = do(t, h, http.MethodPost, "/api/session/end", `{}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, int64(40001), res.Get("code").Int())

	code, res = do(t, h, http.MethodPost, "/api/session/end", `{"session_id":`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, int64(40001), res.Get("code").Int())

	code, res = do(t, h, http.MethodGet, "/api/posture/report/not-an-id", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, res = do(t, h, http.MethodGet, "/api/posture/report/"+store.NewID(), "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, int64(40401), res.Get("code").Int())
	assert.Equal(t, "Session not found", res.Get("error").String())

	code, res = do(t, h, http.MethodGet, "/api/session/recent?limit=abc", "")
	assert.Equal(t, http.StatusBadRequest, code)

	code, res = do(t, h, http.MethodGet, "/api/dashboard/stats?days=0", "")
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, int64(40001), res.Get("code").Int())
}

func TestRewardsFlow(t *testing.T) {
	h := newTestRouter(t)
	base := "/api/rewards/user/bob"

	code, res := do(t, h, http.MethodPost, base+"/unlock-badge", `{"badge_id":"first_steps"}`)
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, int64(40402), res.Get("code").Int())

	code, res = do(t, h, http.MethodPost, base+"/award-points", `{"points":100,"reason":"test"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(100), res.Get("points_awarded").Int())
	assert.Equal(t, int64(100), res.Get("new_total").Int())
	assert.Equal(t, "test", res.Get("reason").String())

	code, res = do(t, h, http.MethodPost, base+"/unlock-badge", `{"badge_id":"first_steps"}`)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "First Steps", res.Get("badge.name").String())
	assert.Equal(t, int64(150), res.Get("new_total").Int())

	code, res = do(t, h, http.MethodPost, base+"/unlock-badge", `{"badge_id":"first_steps"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, int64(40003), res.Get("code").Int())

	code, res = do(t, h, http.MethodPost, base+"/unlock-badge", `{"badge_id":"nonexistent"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, int64(40004), res.Get("code").Int())

	code, res = do(t, h, http.MethodPost, base+"/check-achievements", "")
	require.Equal(t, http.StatusOK, code)
	assert.True(t, res.Get("new_badges").IsArray())
	assert.Equal(t, int64(0), res.Get("new_badges.#").Int())

	code, res = do(t, h, http.MethodGet, base+"/achievements", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(150), res.Get("total_points").Int())
	assert.Equal(t, int64(1), res.Get("level").Int())
	assert.Equal(t, int64(200), res.Get("next_level_points").Int())
	assert.Equal(t, int64(50), res.Get("points_to_next_level").Int())
	assert.Equal(t, int64(1), res.Get("unlocked_badges.#").Int())
	assert.Equal(t, int64(7), res.Get("locked_badges.#").Int())
	assert.Equal(t, int64(2), res.Get("points_history.#").Int())

	code, res = do(t, h, http.MethodGet, "/api/rewards/badges", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(8), res.Get("badges.#").Int())
}

func TestHealthMetricsAndNoRoute(t *testing.T) {
	h := newTestRouter(t)

	for _, path := range []string{"/health", "/api/health"} {
		code, res := do(t, h, http.MethodGet, path, "")
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "healthy", res.Get("status").String())
		assert.Equal(t, "memory", res.Get("store.driver").String())
	}

	code, res := do(t, h, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Equal(t, int64(40400), res.Get("code").Int())

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "posturemon_http_requests_total")
}
