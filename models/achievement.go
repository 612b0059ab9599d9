package models

import (
	"slices"
	"time"

	"gorm.io/datatypes"
)

// Achievement is the per-user gamification record: points, unlocked badges and the points ledger.
// The level is derived from TotalPoints on read and is not stored.
type Achievement struct {
	UserID        string                               `gorm:"primaryKey;size:128" json:"user_id"`
	TotalPoints   int                                  `gorm:"not null;default:0" json:"total_points"`
	Badges        datatypes.JSONSlice[string]          `gorm:"type:json" json:"badges"`
	PointsHistory datatypes.JSONSlice[PointsEntry]     `gorm:"type:json" json:"points_history"`
	Stats         datatypes.JSONType[AchievementStats] `gorm:"type:json" json:"stats"`
	CreatedAt     time.Time                            `json:"created_at"`
	LastUpdated   time.Time                            `json:"last_updated"`
}

// PointsEntry is one point-awarding event in the ledger.
type PointsEntry struct {
	Points    int       `json:"points"`
	Reason    string    `json:"reason"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"session_id,omitempty"`
	BadgeID   string    `json:"badge_id,omitempty"`
}

// AchievementStats is the last aggregate snapshot computed by the badge engine.
type AchievementStats struct {
	TotalSessions           int     `json:"total_sessions"`
	TotalMonitoringHours    float64 `json:"total_monitoring_hours"`
	BestSessionScore        float64 `json:"best_session_score"`
	TotalCorrections        int     `json:"total_corrections"`
	ConsecutiveGoodSessions int     `json:"consecutive_good_sessions"`
}

// NewAchievement returns the zero-valued record created on first access.
func NewAchievement(userID string, now time.Time) *Achievement {
	return &Achievement{
		UserID:        userID,
		Badges:        datatypes.JSONSlice[string]{},
		PointsHistory: datatypes.JSONSlice[PointsEntry]{},
		Stats:         datatypes.NewJSONType(AchievementStats{}),
		CreatedAt:     now,
		LastUpdated:   now,
	}
}

// HasBadge reports whether badgeID is already unlocked.
func (a *Achievement) HasBadge(badgeID string) bool {
	return slices.Contains(a.Badges, badgeID)
}

// RecentHistory returns at most n of the newest ledger entries, oldest first.
func (a *Achievement) RecentHistory(n int) []PointsEntry {
	h := []PointsEntry(a.PointsHistory)
	if len(h) > n {
		h = h[len(h)-n:]
	}
	out := make([]PointsEntry, len(h))
	copy(out, h)
	return out
}

// TableName keeps the table name aligned with the document collection.
func (Achievement) TableName() string {
	return "user_achievements"
}
