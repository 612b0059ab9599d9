package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/posturemon/metrics"
	"github.com/cppla/posturemon/models"
	"github.com/cppla/posturemon/store"
	"github.com/cppla/posturemon/utils"
)

const (
	defaultCheckSeconds = 10
	defaultRecentLimit  = 10
	maxRecentLimit      = 100
	maxDashboardDays    = 365
	dashboardRecent     = 10
)

// PostureService handles session commands and the read-only views over sessions and logs.
type PostureService struct {
	store         store.Store
	defaultUserID string
	logger        *zap.Logger
	now           func() time.Time
}

// NewPostureService builds the service. defaultUserID is used when a caller names no user.
func NewPostureService(st store.Store, defaultUserID string, logger *zap.Logger) *PostureService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostureService{
		store:         st,
		defaultUserID: defaultUserID,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// UserOrDefault returns userID, or the configured default when it is empty.
func (s *PostureService) UserOrDefault(userID string) string {
	if userID == "" {
		return s.defaultUserID
	}
	return userID
}

// StartSession opens a session with zeroed counters.
func (s *PostureService) StartSession(ctx context.Context, userID string) (*models.Session, error) {
	sess := &models.Session{
		UserID:    s.UserOrDefault(userID),
		StartTime: s.now(),
	}
	if err := s.store.CreateSession(ctx, sess); err != nil {
		return nil, fmt.Errorf("start session: %w", err)
	}
	metrics.RecordSessionStarted()
	s.logger.Info("session started", zap.String("session_id", sess.ID), zap.String("user_id", sess.UserID))
	return sess, nil
}

// EndSession stamps the end time. Ending an already ended session fails with ErrSessionEnded.
func (s *PostureService) EndSession(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return invalid("session_id required")
	}
	updated, err := s.store.EndSession(ctx, sessionID, s.now())
	if err != nil {
		return storeErr("end session", err)
	}
	if !updated {
		return ErrSessionEnded
	}
	s.logger.Info("session ended", zap.String("session_id", sessionID))
	return nil
}

// PostureInput is one posture check reported by a client.
type PostureInput struct {
	SessionID       string
	PostureStatus   string
	LeftAngle       *float64
	RightAngle      *float64
	TotalAngle      *float64
	Issues          []string
	Feedback        *string
	WasCorrected    bool
	DurationSeconds *float64
}

// LogPosture records a check against an open session and bumps the session counters.
// The entry is kept even when the counter update fails afterwards.
func (s *PostureService) LogPosture(ctx context.Context, in PostureInput) (*models.PostureLog, error) {
	if in.SessionID == "" {
		return nil, invalid("session_id required")
	}
	sess, err := s.store.GetSession(ctx, in.SessionID)
	if err != nil {
		return nil, storeErr("log posture", err)
	}
	if sess.Ended() {
		return nil, ErrSessionEnded
	}

	entry := &models.PostureLog{
		SessionID:       sess.ID,
		Timestamp:       s.now(),
		PostureStatus:   in.PostureStatus,
		LeftAngle:       in.LeftAngle,
		RightAngle:      in.RightAngle,
		TotalAngle:      in.TotalAngle,
		Issues:          []string{},
		WasCorrected:    in.WasCorrected,
		DurationSeconds: defaultCheckSeconds,
	}
	for _, issue := range in.Issues {
		entry.Issues = append(entry.Issues, utils.SanitizeText(issue))
	}
	if in.Feedback != nil {
		clean := utils.SanitizeText(*in.Feedback)
		entry.Feedback = &clean
	}
	if in.DurationSeconds != nil {
		entry.DurationSeconds = *in.DurationSeconds
	}

	if err := s.store.CreatePostureLog(ctx, entry); err != nil {
		return nil, storeErr("insert posture log", err)
	}
	if err := s.store.IncrementCounters(ctx, sess.ID, entry.Counters()); err != nil {
		s.logger.Warn("posture log stored but session counters not updated",
			zap.String("session_id", sess.ID),
			zap.String("log_id", entry.ID),
			zap.Error(err),
		)
		return nil, storeErr("update session counters", err)
	}
	metrics.RecordPostureCheck(entry.PostureStatus)
	return entry, nil
}

// SessionView is a session with its derived duration and score.
type SessionView struct {
	models.Session
	DurationSeconds *float64 `json:"duration_seconds"`
	Score           float64  `json:"score"`
}

func viewOf(sess models.Session) SessionView {
	v := SessionView{Session: sess, Score: sess.Score()}
	if d, ok := sess.Duration(); ok {
		secs := d.Seconds()
		v.DurationSeconds = &secs
	}
	return v
}

// SessionReport is a session together with its posture checks in time order.
type SessionReport struct {
	Session SessionView         `json:"session"`
	Logs    []models.PostureLog `json:"logs"`
}

// SessionReport loads a session and every posture check recorded for it.
func (s *PostureService) SessionReport(ctx context.Context, sessionID string) (*SessionReport, error) {
	if sessionID == "" {
		return nil, invalid("session_id required")
	}
	sess, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, storeErr("session report", err)
	}
	logs, err := s.store.ListPostureLogs(ctx, sess.ID)
	if err != nil {
		return nil, storeErr("session report", err)
	}
	return &SessionReport{Session: viewOf(*sess), Logs: logs}, nil
}

// RecentSessions lists the user's newest sessions first. A zero limit means the default of 10.
func (s *PostureService) RecentSessions(ctx context.Context, userID string, limit int) ([]SessionView, error) {
	if limit == 0 {
		limit = defaultRecentLimit
	}
	if limit < 1 || limit > maxRecentLimit {
		return nil, invalid(fmt.Sprintf("limit must be between 1 and %d", maxRecentLimit))
	}
	sessions, err := s.store.ListSessions(ctx, s.UserOrDefault(userID), store.ListOptions{
		Limit:       limit,
		NewestFirst: true,
	})
	if err != nil {
		return nil, fmt.Errorf("recent sessions: %w", err)
	}
	out := make([]SessionView, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, viewOf(sess))
	}
	return out, nil
}
