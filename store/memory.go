package store

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"gorm.io/datatypes"

	"github.com/cppla/posturemon/models"
)

// MemoryStore keeps everything in process memory. Data is lost on restart.
type MemoryStore struct {
	mu           sync.RWMutex
	sessions     []*models.Session
	sessionIdx   map[string]*models.Session
	logs         []models.PostureLog
	achievements map[string]*models.Achievement
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessionIdx:   map[string]*models.Session{},
		achievements: map[string]*models.Achievement{},
	}
}

func (m *MemoryStore) Driver() string { return "memory" }

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) Close(context.Context) error { return nil }

func (m *MemoryStore) CreateSession(_ context.Context, s *models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if s.ID == "" {
		s.ID = NewID()
	}
	if _, dup := m.sessionIdx[s.ID]; dup {
		return fmt.Errorf("session %s already exists", s.ID)
	}
	cp := copySession(*s)
	m.sessions = append(m.sessions, &cp)
	m.sessionIdx[cp.ID] = &cp
	return nil
}

func (m *MemoryStore) GetSession(_ context.Context, id string) (*models.Session, error) {
	if !ValidID(id) {
		return nil, ErrInvalidID
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessionIdx[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := copySession(*s)
	return &cp, nil
}

func (m *MemoryStore) EndSession(_ context.Context, id string, end time.Time) (bool, error) {
	if !ValidID(id) {
		return false, ErrInvalidID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessionIdx[id]
	if !ok {
		return false, ErrNotFound
	}
	if s.EndTime != nil {
		return false, nil
	}
	s.EndTime = &end
	return true, nil
}

func (m *MemoryStore) IncrementCounters(_ context.Context, id string, d models.SessionCounters) error {
	if !ValidID(id) {
		return ErrInvalidID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessionIdx[id]
	if !ok {
		return ErrNotFound
	}
	s.TotalChecks += d.TotalChecks
	s.GoodPostureCount += d.GoodPostureCount
	s.BadPostureCount += d.BadPostureCount
	s.Corrections += d.Corrections
	return nil
}

func (m *MemoryStore) ListSessions(_ context.Context, userID string, opts ListOptions) ([]models.Session, error) {
	m.mu.RLock()
	out := []models.Session{}
	for _, s := range m.sessions {
		if s.UserID != userID {
			continue
		}
		if !opts.Since.IsZero() && s.StartTime.Before(opts.Since) {
			continue
		}
		out = append(out, copySession(*s))
	}
	m.mu.RUnlock()

	if opts.NewestFirst {
		sort.SliceStable(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	}
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func (m *MemoryStore) UsersWithSessionsEndedSince(_ context.Context, since time.Time) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	seen := map[string]struct{}{}
	users := []string{}
	for _, s := range m.sessions {
		if s.EndTime == nil || s.EndTime.Before(since) {
			continue
		}
		if _, ok := seen[s.UserID]; ok {
			continue
		}
		seen[s.UserID] = struct{}{}
		users = append(users, s.UserID)
	}
	return users, nil
}

func (m *MemoryStore) CreatePostureLog(_ context.Context, l *models.PostureLog) error {
	if !ValidID(l.SessionID) {
		return ErrInvalidID
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if l.ID == "" {
		l.ID = NewID()
	}
	cp := *l
	cp.Issues = slices.Clone(l.Issues)
	m.logs = append(m.logs, cp)
	return nil
}

func (m *MemoryStore) ListPostureLogs(_ context.Context, sessionID string) ([]models.PostureLog, error) {
	if !ValidID(sessionID) {
		return nil, ErrInvalidID
	}
	m.mu.RLock()
	out := []models.PostureLog{}
	for _, l := range m.logs {
		if l.SessionID == sessionID {
			cp := l
			cp.Issues = slices.Clone(l.Issues)
			out = append(out, cp)
		}
	}
	m.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *MemoryStore) GetAchievement(_ context.Context, userID string) (*models.Achievement, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	a, ok := m.achievements[userID]
	if !ok {
		return nil, ErrNotFound
	}
	return copyAchievement(a), nil
}

func (m *MemoryStore) CreateAchievement(_ context.Context, a *models.Achievement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, dup := m.achievements[a.UserID]; dup {
		return fmt.Errorf("achievement record for %s already exists", a.UserID)
	}
	m.achievements[a.UserID] = copyAchievement(a)
	return nil
}

func (m *MemoryStore) SaveAchievement(_ context.Context, a *models.Achievement) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := copyAchievement(a)
	if cur, ok := m.achievements[a.UserID]; ok {
		cp.CreatedAt = cur.CreatedAt
		cp.Stats = cur.Stats
	}
	m.achievements[a.UserID] = cp
	return nil
}

func (m *MemoryStore) GrantBadge(_ context.Context, userID, badgeID string, entry models.PointsEntry) (int, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.achievements[userID]
	if !ok {
		a = models.NewAchievement(userID, entry.Timestamp)
		m.achievements[userID] = a
	}
	if a.HasBadge(badgeID) {
		return a.TotalPoints, false, nil
	}
	a.Badges = append(a.Badges, badgeID)
	a.TotalPoints += entry.Points
	a.PointsHistory = append(a.PointsHistory, entry)
	a.LastUpdated = entry.Timestamp
	return a.TotalPoints, true, nil
}

func (m *MemoryStore) SaveStats(_ context.Context, userID string, stats models.AchievementStats) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.achievements[userID]
	if !ok {
		a = models.NewAchievement(userID, time.Now().UTC())
		m.achievements[userID] = a
	}
	a.Stats = datatypes.NewJSONType(stats)
	return nil
}

func copySession(s models.Session) models.Session {
	if s.EndTime != nil {
		end := *s.EndTime
		s.EndTime = &end
	}
	return s
}

func copyAchievement(a *models.Achievement) *models.Achievement {
	cp := *a
	cp.Badges = slices.Clone(a.Badges)
	cp.PointsHistory = slices.Clone(a.PointsHistory)
	if cp.Badges == nil {
		cp.Badges = datatypes.JSONSlice[string]{}
	}
	if cp.PointsHistory == nil {
		cp.PointsHistory = datatypes.JSONSlice[models.PointsEntry]{}
	}
	return &cp
}
