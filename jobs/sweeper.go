// Package jobs runs background work on a cron schedule.
package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/cppla/posturemon/metrics"
	"github.com/cppla/posturemon/rewards"
)

// DefaultLookback bounds the first sweep after start.
const DefaultLookback = 24 * time.Hour

// UserSource lists users whose sessions ended recently.
type UserSource interface {
	UsersWithSessionsEndedSince(ctx context.Context, since time.Time) ([]string, error)
}

// AchievementChecker grants newly earned badges to one user.
type AchievementChecker interface {
	CheckAchievements(ctx context.Context, userID string) ([]rewards.Badge, error)
}

// AchievementSweeper periodically runs the badge rules for users with recently ended sessions,
// so badges are granted even when the client never calls check-achievements.
type AchievementSweeper struct {
	users   UserSource
	checker AchievementChecker
	logger  *zap.Logger
	now     func() time.Time
	timeout time.Duration

	mu      sync.Mutex
	since   time.Time
	pending map[string]struct{} // users whose last check failed
	cron    *cron.Cron
}

// NewAchievementSweeper builds a sweeper whose first run looks back DefaultLookback.
func NewAchievementSweeper(users UserSource, checker AchievementChecker, logger *zap.Logger) *AchievementSweeper {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &AchievementSweeper{
		users:   users,
		checker: checker,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
		timeout: 5 * time.Minute,
		pending: map[string]struct{}{},
	}
	s.since = s.now().Add(-DefaultLookback)
	return s
}

// SetSince moves the watermark used by the next RunOnce.
func (s *AchievementSweeper) SetSince(t time.Time) {
	s.mu.Lock()
	s.since = t
	s.mu.Unlock()
}

// SweepResult summarises one sweep.
type SweepResult struct {
	Users   int
	Granted int
	Failed  int
}

// RunOnce checks every user with a session ended since the previous sweep, plus users whose
// check failed last time. Failed users are kept for the next run; the watermark only advances
// when the user listing succeeds.
func (s *AchievementSweeper) RunOnce(ctx context.Context) (SweepResult, error) {
	start := s.now()
	s.mu.Lock()
	since := s.since
	s.mu.Unlock()

	var res SweepResult
	users, err := s.users.UsersWithSessionsEndedSince(ctx, since)
	if err != nil {
		metrics.RecordSweep(time.Since(start), false)
		return res, fmt.Errorf("list users: %w", err)
	}

	s.mu.Lock()
	seen := make(map[string]struct{}, len(users)+len(s.pending))
	for _, userID := range users {
		seen[userID] = struct{}{}
	}
	for userID := range s.pending {
		if _, ok := seen[userID]; !ok {
			users = append(users, userID)
			seen[userID] = struct{}{}
		}
	}
	s.mu.Unlock()
	res.Users = len(users)

	failed := map[string]struct{}{}
	for _, userID := range users {
		badges, err := s.checker.CheckAchievements(ctx, userID)
		res.Granted += len(badges)
		if err != nil {
			res.Failed++
			failed[userID] = struct{}{}
			s.logger.Warn("achievement check failed", zap.String("user_id", userID), zap.Error(err))
		}
	}

	s.mu.Lock()
	s.since = start
	s.pending = failed
	s.mu.Unlock()

	metrics.RecordSweep(s.now().Sub(start), res.Failed == 0)
	s.logger.Info("achievement sweep finished",
		zap.Time("since", since),
		zap.Int("users", res.Users),
		zap.Int("granted", res.Granted),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

// Start schedules RunOnce on spec. Overlapping runs are skipped.
func (s *AchievementSweeper) Start(spec string) error {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{s.logger.Sugar()})))
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
		defer cancel()
		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.Error("achievement sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return fmt.Errorf("schedule achievement sweep %q: %w", spec, err)
	}
	s.mu.Lock()
	s.cron = c
	s.mu.Unlock()
	c.Start()
	s.logger.Info("achievement sweep scheduled", zap.String("spec", spec))
	return nil
}

// Stop halts scheduling and waits for a running sweep or ctx, whichever ends first.
func (s *AchievementSweeper) Stop(ctx context.Context) error {
	s.mu.Lock()
	c := s.cron
	s.mu.Unlock()
	if c == nil {
		return nil
	}
	select {
	case <-c.Stop().Done():
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// cronLogger routes cron's own messages into zap.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}
