package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/cppla/posturemon/metrics"
	"github.com/cppla/posturemon/models"
	"github.com/cppla/posturemon/rewards"
	"github.com/cppla/posturemon/store"
	"github.com/cppla/posturemon/utils"
)

const (
	historyWindow = 50
	defaultReason = "Action completed"
)

// RewardsService applies the points ledger and the badge rules to achievement records.
type RewardsService struct {
	store  store.Store
	locker Locker
	logger *zap.Logger
	now    func() time.Time
}

// NewRewardsService builds the ledger service. A nil locker disables per-user locking.
func NewRewardsService(st store.Store, locker Locker, logger *zap.Logger) *RewardsService {
	if locker == nil {
		locker = NoopLocker{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RewardsService{
		store:  st,
		locker: locker,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// AchievementSummary is the achievements view of one user.
type AchievementSummary struct {
	UserID      string `json:"user_id"`
	TotalPoints int    `json:"total_points"`
	rewards.Progress
	UnlockedBadges []rewards.Badge         `json:"unlocked_badges"`
	LockedBadges   []rewards.Badge         `json:"locked_badges"`
	PointsHistory  []models.PointsEntry    `json:"points_history"`
	Stats          models.AchievementStats `json:"stats"`
}

// Achievements returns the user's summary, creating a zero record on first access.
func (s *RewardsService) Achievements(ctx context.Context, userID string) (*AchievementSummary, error) {
	if userID == "" {
		return nil, invalid("user_id required")
	}
	a, err := s.getOrCreate(ctx, userID)
	if err != nil {
		return nil, err
	}
	have, locked := rewards.SplitBadges(a.Badges)
	return &AchievementSummary{
		UserID:         a.UserID,
		TotalPoints:    a.TotalPoints,
		Progress:       rewards.ProgressFor(a.TotalPoints),
		UnlockedBadges: have,
		LockedBadges:   locked,
		PointsHistory:  a.RecentHistory(historyWindow),
		Stats:          a.Stats.Data(),
	}, nil
}

func (s *RewardsService) getOrCreate(ctx context.Context, userID string) (*models.Achievement, error) {
	a, err := s.store.GetAchievement(ctx, userID)
	if err == nil {
		return a, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, fmt.Errorf("load achievements: %w", err)
	}

	a = models.NewAchievement(userID, s.now())
	if err := s.store.CreateAchievement(ctx, a); err != nil {
		// lost a creation race; the other writer's record wins
		if existing, getErr := s.store.GetAchievement(ctx, userID); getErr == nil {
			return existing, nil
		}
		return nil, fmt.Errorf("create achievements: %w", err)
	}
	s.logger.Info("achievement record created", zap.String("user_id", userID))
	return a, nil
}

// Award appends a ledger entry and adds points to the user's total, creating the record if absent.
// Points may be negative. It returns the stored entry and the new total.
func (s *RewardsService) Award(ctx context.Context, userID string, points int, reason, sessionID string) (models.PointsEntry, int, error) {
	if userID == "" {
		return models.PointsEntry{}, 0, invalid("user_id required")
	}
	reason = strings.TrimSpace(utils.SanitizeText(reason))
	if reason == "" {
		reason = defaultReason
	}

	unlock, err := s.locker.Lock(ctx, ledgerKey(userID))
	if err != nil {
		return models.PointsEntry{}, 0, fmt.Errorf("lock ledger: %w", err)
	}
	defer unlock()

	now := s.now()
	a, err := s.store.GetAchievement(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		a = models.NewAchievement(userID, now)
	} else if err != nil {
		return models.PointsEntry{}, 0, fmt.Errorf("load achievements: %w", err)
	}

	entry := models.PointsEntry{
		Points:    points,
		Reason:    reason,
		Timestamp: now,
		SessionID: sessionID,
	}
	a.TotalPoints += points
	a.PointsHistory = append(a.PointsHistory, entry)
	a.LastUpdated = now
	if err := s.store.SaveAchievement(ctx, a); err != nil {
		return models.PointsEntry{}, 0, fmt.Errorf("save achievements: %w", err)
	}

	metrics.RecordPointsAwarded("manual", points)
	s.logger.Info("points awarded",
		zap.String("user_id", userID),
		zap.Int("points", points),
		zap.Int("new_total", a.TotalPoints),
	)
	return entry, a.TotalPoints, nil
}

// Unlock grants a catalog badge to an existing record and awards its points.
func (s *RewardsService) Unlock(ctx context.Context, userID, badgeID string) (rewards.Badge, int, error) {
	badge, ok := rewards.LookupBadge(badgeID)
	if !ok {
		return rewards.Badge{}, 0, fmt.Errorf("%w: %q", ErrUnknownBadge, badgeID)
	}

	unlock, err := s.locker.Lock(ctx, ledgerKey(userID))
	if err != nil {
		return rewards.Badge{}, 0, fmt.Errorf("lock ledger: %w", err)
	}
	defer unlock()

	a, err := s.store.GetAchievement(ctx, userID)
	if errors.Is(err, store.ErrNotFound) {
		return rewards.Badge{}, 0, ErrUserNotFound
	} else if err != nil {
		return rewards.Badge{}, 0, fmt.Errorf("load achievements: %w", err)
	}
	if a.HasBadge(badge.ID) {
		return rewards.Badge{}, 0, ErrAlreadyUnlocked
	}

	now := s.now()
	a.Badges = append(a.Badges, badge.ID)
	a.TotalPoints += badge.Points
	a.PointsHistory = append(a.PointsHistory, unlockEntry(badge, now))
	a.LastUpdated = now
	if err := s.store.SaveAchievement(ctx, a); err != nil {
		return rewards.Badge{}, 0, fmt.Errorf("save achievements: %w", err)
	}

	metrics.RecordBadgeUnlocked(badge.ID, badge.Points)
	s.logger.Info("badge unlocked", zap.String("user_id", userID), zap.String("badge", badge.ID))
	return badge, a.TotalPoints, nil
}

// CheckAchievements runs the badge rules over the user's whole session history and
// grants every newly qualifying badge. The aggregate stats are stored on the record.
func (s *RewardsService) CheckAchievements(ctx context.Context, userID string) ([]rewards.Badge, error) {
	if userID == "" {
		return nil, invalid("user_id required")
	}

	unlock, err := s.locker.Lock(ctx, ledgerKey(userID))
	if err != nil {
		return nil, fmt.Errorf("lock ledger: %w", err)
	}
	defer unlock()

	sessions, err := s.store.ListSessions(ctx, userID, store.ListOptions{})
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	granted := []rewards.Badge{}
	if len(sessions) == 0 {
		return granted, nil
	}

	var unlocked []string
	a, err := s.store.GetAchievement(ctx, userID)
	switch {
	case err == nil:
		unlocked = a.Badges
	case !errors.Is(err, store.ErrNotFound):
		return nil, fmt.Errorf("load achievements: %w", err)
	}

	stats := rewards.Aggregate(sessions)
	for _, id := range rewards.EvaluateStats(stats, unlocked) {
		badge, _ := rewards.LookupBadge(id)
		total, ok, err := s.store.GrantBadge(ctx, userID, id, unlockEntry(badge, s.now()))
		if err != nil {
			return granted, err
		}
		if !ok {
			// a concurrent check got there first
			continue
		}
		granted = append(granted, badge)
		metrics.RecordBadgeUnlocked(id, badge.Points)
		s.logger.Info("badge earned",
			zap.String("user_id", userID),
			zap.String("badge", id),
			zap.Int("new_total", total),
		)
	}

	if err := s.store.SaveStats(ctx, userID, stats.Snapshot()); err != nil {
		return granted, fmt.Errorf("save stats: %w", err)
	}
	return granted, nil
}

func unlockEntry(b rewards.Badge, at time.Time) models.PointsEntry {
	return models.PointsEntry{
		Points:    b.Points,
		Reason:    "Unlocked badge: " + b.Name,
		Timestamp: at,
		BadgeID:   b.ID,
	}
}
