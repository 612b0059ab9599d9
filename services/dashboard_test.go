package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDashboardEmptyWindow(t *testing.T) {
	svc, _, _ := newPosture(t)
	stats, err := svc.Dashboard(context.Background(), "nobody", 7)
	require.NoError(t, err)

	assert.Equal(t, HeroStats{}, stats.HeroStats)
	assert.Equal(t, PostureDistribution{}, stats.PostureDistribution)
	assert.Empty(t, stats.RecentSessions)
	require.Len(t, stats.DailyTrends, 7)
	for _, d := range stats.DailyTrends {
		assert.Equal(t, 0.0, d.GoodPercentage)
		assert.Zero(t, d.Good+d.Bad)
	}
	// window ends today (2025-05-07, a Wednesday)
	assert.Equal(t, "2025-05-01", stats.DailyTrends[0].Date)
	assert.Equal(t, "Thu", stats.DailyTrends[0].DayLabel)
	assert.Equal(t, "2025-05-07", stats.DailyTrends[6].Date)
	assert.Equal(t, "Wed", stats.DailyTrends[6].DayLabel)
}

func TestDashboardAggregates(t *testing.T) {
	svc, st, _ := newPosture(t)
	ctx := context.Background()
	today := time.Date(2025, 5, 7, 0, 0, 0, 0, time.UTC)

	addSession(t, st, "u1", today.Add(9*time.Hour), 30*time.Minute, 10, 9)
	addSession(t, st, "u1", today.Add(-24*time.Hour+8*time.Hour), 90*time.Minute, 4, 1)
	addSession(t, st, "u1", today.Add(10*time.Hour), 0, 0, 0)
	// outside a 2 day window
	addSession(t, st, "u1", today.Add(-48*time.Hour), time.Hour, 100, 100)
	addSession(t, st, "u2", today.Add(9*time.Hour), time.Hour, 5, 5)

	stats, err := svc.Dashboard(ctx, "u1", 2)
	require.NoError(t, err)

	assert.Equal(t, 3, stats.HeroStats.TotalSessions)
	assert.Equal(t, 2.0, stats.HeroStats.TotalMonitoringTimeHours)
	assert.Equal(t, 71.4, stats.HeroStats.OverallPostureScore) // 10 of 14
	assert.Equal(t, PostureDistribution{Good: 10, Bad: 4}, stats.PostureDistribution)

	require.Len(t, stats.DailyTrends, 2)
	assert.Equal(t, DailyTrend{Date: "2025-05-06", DayLabel: "Tue", Good: 1, Bad: 3, GoodPercentage: 25}, stats.DailyTrends[0])
	assert.Equal(t, DailyTrend{Date: "2025-05-07", DayLabel: "Wed", Good: 9, Bad: 1, GoodPercentage: 90}, stats.DailyTrends[1])

	require.Len(t, stats.RecentSessions, 3)
	assert.Equal(t, today.Add(10*time.Hour), stats.RecentSessions[0].StartTime)
	assert.Equal(t, 0, stats.RecentSessions[0].DurationSeconds)
	assert.Equal(t, 0.0, stats.RecentSessions[0].Score)
	assert.Equal(t, 1800, stats.RecentSessions[1].DurationSeconds)
	assert.Equal(t, 90.0, stats.RecentSessions[1].Score)
}

func TestDashboardRecentCappedAtTen(t *testing.T) {
	svc, st, _ := newPosture(t)
	for i := 0; i < 12; i++ {
		addSession(t, st, "u1", testNow.Add(-time.Duration(i)*time.Minute), 0, 0, 0)
	}
	stats, err := svc.Dashboard(context.Background(), "u1", 1)
	require.NoError(t, err)
	assert.Equal(t, 12, stats.HeroStats.TotalSessions)
	assert.Len(t, stats.RecentSessions, 10)
}

func TestDashboardRejectsDays(t *testing.T) {
	svc, _, _ := newPosture(t)
	for _, days := range []int{0, -3, 366} {
		_, err := svc.Dashboard(context.Background(), "u1", days)
		assert.True(t, errors.Is(err, ErrInvalidInput), "days=%d", days)
	}
}
