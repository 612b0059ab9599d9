package services

import (
	"context"
	"fmt"
	"time"

	"github.com/cppla/posturemon/models"
	"github.com/cppla/posturemon/store"
)

// HeroStats are the headline totals over the dashboard window.
type HeroStats struct {
	TotalSessions            int     `json:"total_sessions"`
	TotalMonitoringTimeHours float64 `json:"total_monitoring_time_hours"`
	OverallPostureScore      float64 `json:"overall_posture_score"`
	TotalCorrections         int     `json:"total_corrections"`
}

// PostureDistribution counts good and bad checks over the window.
type PostureDistribution struct {
	Good int `json:"good"`
	Bad  int `json:"bad"`
}

// DailyTrend is one UTC calendar day of the window.
type DailyTrend struct {
	Date           string  `json:"date"`
	DayLabel       string  `json:"day_label"`
	Good           int     `json:"good"`
	Bad            int     `json:"bad"`
	GoodPercentage float64 `json:"good_percentage"`
}

// RecentSession is the compact session row shown on the dashboard.
type RecentSession struct {
	SessionID       string     `json:"session_id"`
	StartTime       time.Time  `json:"start_time"`
	EndTime         *time.Time `json:"end_time"`
	DurationSeconds int        `json:"duration_seconds"`
	TotalChecks     int        `json:"total_checks"`
	GoodCount       int        `json:"good_count"`
	BadCount        int        `json:"bad_count"`
	Corrections     int        `json:"corrections"`
	Score           float64    `json:"score"`
}

// DashboardStats is the dashboard payload.
type DashboardStats struct {
	HeroStats           HeroStats           `json:"hero_stats"`
	PostureDistribution PostureDistribution `json:"posture_distribution"`
	DailyTrends         []DailyTrend        `json:"daily_trends"`
	RecentSessions      []RecentSession     `json:"recent_sessions"`
}

// Dashboard aggregates the sessions started within the last days UTC calendar days, today included.
func (s *PostureService) Dashboard(ctx context.Context, userID string, days int) (*DashboardStats, error) {
	if days < 1 || days > maxDashboardDays {
		return nil, invalid(fmt.Sprintf("days must be between 1 and %d", maxDashboardDays))
	}
	now := s.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	start := today.AddDate(0, 0, -(days - 1))

	sessions, err := s.store.ListSessions(ctx, s.UserOrDefault(userID), store.ListOptions{
		Since:       start,
		NewestFirst: true,
	})
	if err != nil {
		return nil, fmt.Errorf("dashboard sessions: %w", err)
	}

	out := &DashboardStats{
		DailyTrends:    make([]DailyTrend, 0, days),
		RecentSessions: []RecentSession{},
	}

	var totalChecks int
	var totalSeconds float64
	for _, sess := range sessions {
		totalChecks += sess.TotalChecks
		out.PostureDistribution.Good += sess.GoodPostureCount
		out.PostureDistribution.Bad += sess.BadPostureCount
		out.HeroStats.TotalCorrections += sess.Corrections
		if d, ok := sess.Duration(); ok {
			totalSeconds += d.Seconds()
		}
	}
	out.HeroStats.TotalSessions = len(sessions)
	out.HeroStats.TotalMonitoringTimeHours = models.Round1(totalSeconds / 3600)
	out.HeroStats.OverallPostureScore = percent(out.PostureDistribution.Good, totalChecks)

	for i := 0; i < days; i++ {
		dayStart := start.AddDate(0, 0, i)
		dayEnd := dayStart.AddDate(0, 0, 1)
		trend := DailyTrend{
			Date:     dayStart.Format("2006-01-02"),
			DayLabel: dayStart.Format("Mon"),
		}
		for _, sess := range sessions {
			if sess.StartTime.Before(dayStart) || !sess.StartTime.Before(dayEnd) {
				continue
			}
			trend.Good += sess.GoodPostureCount
			trend.Bad += sess.BadPostureCount
		}
		trend.GoodPercentage = percent(trend.Good, trend.Good+trend.Bad)
		out.DailyTrends = append(out.DailyTrends, trend)
	}

	for i, sess := range sessions {
		if i == dashboardRecent {
			break
		}
		row := RecentSession{
			SessionID:   sess.ID,
			StartTime:   sess.StartTime,
			EndTime:     sess.EndTime,
			TotalChecks: sess.TotalChecks,
			GoodCount:   sess.GoodPostureCount,
			BadCount:    sess.BadPostureCount,
			Corrections: sess.Corrections,
			Score:       percent(sess.GoodPostureCount, sess.TotalChecks),
		}
		if d, ok := sess.Duration(); ok {
			row.DurationSeconds = int(d.Seconds())
		}
		out.RecentSessions = append(out.RecentSessions, row)
	}
	return out, nil
}

// percent is part/whole*100 rounded to one decimal, or 0 for an empty whole.
func percent(part, whole int) float64 {
	if whole <= 0 {
		return 0
	}
	return models.Round1(float64(part) / float64(whole) * 100)
}
