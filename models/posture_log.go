package models

import (
	"time"

	"gorm.io/datatypes"
)

// Posture statuses recognised by the session counters. Other values are stored as-is.
const (
	PostureGood = "good"
	PostureBad  = "bad"
)

// PostureLog is a single posture check. Entries are append-only.
type PostureLog struct {
	ID              string                      `gorm:"primaryKey;size:24" json:"log_id"`
	SessionID       string                      `gorm:"index:idx_posture_logs_session_ts;size:24;not null" json:"session_id"`
	Timestamp       time.Time                   `gorm:"index:idx_posture_logs_session_ts;not null" json:"timestamp"`
	PostureStatus   string                      `gorm:"size:32" json:"posture_status"`
	LeftAngle       *float64                    `json:"left_angle"`
	RightAngle      *float64                    `json:"right_angle"`
	TotalAngle      *float64                    `json:"total_angle"`
	Issues          datatypes.JSONSlice[string] `gorm:"type:json" json:"issues"`
	Feedback        *string                     `gorm:"type:text" json:"feedback"`
	WasCorrected    bool                        `gorm:"not null;default:false" json:"was_corrected"`
	DurationSeconds float64                     `gorm:"not null;default:10" json:"duration_seconds"`
}

// Counters returns the session increment this entry contributes.
func (l PostureLog) Counters() SessionCounters {
	c := SessionCounters{TotalChecks: 1}
	switch l.PostureStatus {
	case PostureGood:
		c.GoodPostureCount = 1
	case PostureBad:
		c.BadPostureCount = 1
	}
	if l.WasCorrected {
		c.Corrections = 1
	}
	return c
}
