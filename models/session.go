package models

import (
	"math"
	"time"
)

// Session is one monitoring interval for a user. Counters only grow while the session is open.
type Session struct {
	ID               string     `gorm:"primaryKey;size:24" json:"session_id"`
	UserID           string     `gorm:"index:idx_sessions_user_start;size:128;not null" json:"user_id"`
	StartTime        time.Time  `gorm:"index:idx_sessions_user_start;not null" json:"start_time"`
	EndTime          *time.Time `gorm:"index" json:"end_time"`
	TotalChecks      int        `gorm:"not null;default:0" json:"total_checks"`
	GoodPostureCount int        `gorm:"not null;default:0" json:"good_posture_count"`
	BadPostureCount  int        `gorm:"not null;default:0" json:"bad_posture_count"`
	Corrections      int        `gorm:"not null;default:0" json:"corrections"`
}

// SessionCounters is the increment applied to a session for one posture check.
type SessionCounters struct {
	TotalChecks      int
	GoodPostureCount int
	BadPostureCount  int
	Corrections      int
}

// Ended reports whether the session has an end time.
func (s Session) Ended() bool {
	return s.EndTime != nil
}

// Duration returns end-start, and false while the session is still open.
func (s Session) Duration() (time.Duration, bool) {
	if s.EndTime == nil || s.StartTime.IsZero() {
		return 0, false
	}
	return s.EndTime.Sub(s.StartTime), true
}

// Score is the good-posture percentage rounded to one decimal; 0 when no checks were taken.
func (s Session) Score() float64 {
	total := s.TotalChecks
	if total < 1 {
		total = 1
	}
	return Round1(float64(s.GoodPostureCount) / float64(total) * 100)
}

// Round1 rounds to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
