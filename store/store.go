// Package store persists sessions, posture logs and achievement records.
//
// Three backends implement Store: MongoDB (the production default), MySQL
// through GORM, and an in-process memory store used for local runs and tests.
package store

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/cppla/posturemon/models"
)

var (
	// ErrNotFound is returned when the addressed document does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidID is returned for identifiers that are not 24-hex ObjectIDs.
	ErrInvalidID = errors.New("invalid identifier")
)

// ListOptions narrows a session listing.
type ListOptions struct {
	// Since keeps sessions that started at or after this time. Zero means no bound.
	Since time.Time
	// Limit caps the result size. Zero means no cap.
	Limit int
	// NewestFirst sorts by start time descending. When false the backend's stored order is kept.
	NewestFirst bool
}

// SessionStore persists monitoring sessions.
type SessionStore interface {
	CreateSession(ctx context.Context, s *models.Session) error
	GetSession(ctx context.Context, id string) (*models.Session, error)
	// EndSession sets the end time of an open session. It reports whether a session was updated;
	// (false, nil) means the session exists but was already ended.
	EndSession(ctx context.Context, id string, end time.Time) (bool, error)
	// IncrementCounters applies delta atomically.
	IncrementCounters(ctx context.Context, id string, delta models.SessionCounters) error
	ListSessions(ctx context.Context, userID string, opts ListOptions) ([]models.Session, error)
	// UsersWithSessionsEndedSince lists distinct user ids having a session that ended at or after since.
	UsersWithSessionsEndedSince(ctx context.Context, since time.Time) ([]string, error)
}

// PostureLogStore persists posture check entries.
type PostureLogStore interface {
	CreatePostureLog(ctx context.Context, l *models.PostureLog) error
	// ListPostureLogs returns a session's entries by ascending timestamp; ties keep insertion order.
	ListPostureLogs(ctx context.Context, sessionID string) ([]models.PostureLog, error)
}

// AchievementStore persists per-user achievement records.
type AchievementStore interface {
	GetAchievement(ctx context.Context, userID string) (*models.Achievement, error)
	CreateAchievement(ctx context.Context, a *models.Achievement) error
	// SaveAchievement upserts by user id, overwriting points, badges, history and last update time.
	SaveAchievement(ctx context.Context, a *models.Achievement) error
	// GrantBadge adds badgeID to the set, adds entry.Points to the total and appends entry,
	// creating the record when absent. It returns the resulting total and whether the badge
	// was granted; a badge already in the set is left alone and reported as (total, false).
	GrantBadge(ctx context.Context, userID, badgeID string, entry models.PointsEntry) (int, bool, error)
	// SaveStats upserts the stats snapshot.
	SaveStats(ctx context.Context, userID string, stats models.AchievementStats) error
}

// Store groups every collection behind one handle created at startup.
type Store interface {
	SessionStore
	PostureLogStore
	AchievementStore
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
	Driver() string
}

// NewID returns a fresh opaque identifier in ObjectID hex form.
func NewID() string {
	return primitive.NewObjectID().Hex()
}

// ValidID reports whether id is a well-formed identifier.
func ValidID(id string) bool {
	_, err := primitive.ObjectIDFromHex(id)
	return err == nil
}
