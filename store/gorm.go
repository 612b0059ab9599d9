package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/cppla/posturemon/models"
)

// GormStore keeps the three collections as MySQL tables. Slices are JSON columns.
type GormStore struct {
	db *gorm.DB
}

// NewGormStore wraps an opened gorm connection.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

// Migrate creates missing tables. Existing tables are left untouched.
func (s *GormStore) Migrate() error {
	for _, model := range []interface{}{&models.Session{}, &models.PostureLog{}, &models.Achievement{}} {
		if s.db.Migrator().HasTable(model) {
			continue
		}
		if err := s.db.AutoMigrate(model); err != nil {
			return fmt.Errorf("auto migration failed for %T: %w", model, err)
		}
	}
	return nil
}

func (s *GormStore) Driver() string { return "mysql" }

func (s *GormStore) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func (s *GormStore) Close(context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func (s *GormStore) CreateSession(ctx context.Context, m *models.Session) error {
	if m.ID == "" {
		m.ID = NewID()
	} else if !ValidID(m.ID) {
		return ErrInvalidID
	}
	if err := s.db.WithContext(ctx).Create(m).Error; err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *GormStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	if !ValidID(id) {
		return nil, ErrInvalidID
	}
	var m models.Session
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&m).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	return &m, nil
}

func (s *GormStore) EndSession(ctx context.Context, id string, end time.Time) (bool, error) {
	if !ValidID(id) {
		return false, ErrInvalidID
	}
	res := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("id = ? AND end_time IS NULL", id).
		Update("end_time", end)
	if res.Error != nil {
		return false, fmt.Errorf("end session: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return true, nil
	}
	var n int64
	if err := s.db.WithContext(ctx).Model(&models.Session{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return false, fmt.Errorf("count session: %w", err)
	}
	if n == 0 {
		return false, ErrNotFound
	}
	return false, nil
}

func (s *GormStore) IncrementCounters(ctx context.Context, id string, d models.SessionCounters) error {
	if !ValidID(id) {
		return ErrInvalidID
	}
	res := s.db.WithContext(ctx).Model(&models.Session{}).Where("id = ?", id).Updates(map[string]interface{}{
		"total_checks":       gorm.Expr("total_checks + ?", d.TotalChecks),
		"good_posture_count": gorm.Expr("good_posture_count + ?", d.GoodPostureCount),
		"bad_posture_count":  gorm.Expr("bad_posture_count + ?", d.BadPostureCount),
		"corrections":        gorm.Expr("corrections + ?", d.Corrections),
	})
	if res.Error != nil {
		return fmt.Errorf("increment session counters: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *GormStore) ListSessions(ctx context.Context, userID string, opts ListOptions) ([]models.Session, error) {
	q := s.db.WithContext(ctx).Where("user_id = ?", userID)
	if !opts.Since.IsZero() {
		q = q.Where("start_time >= ?", opts.Since)
	}
	if opts.NewestFirst {
		q = q.Order("start_time DESC")
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	out := []models.Session{}
	if err := q.Find(&out).Error; err != nil {
		return nil, fmt.Errorf("find sessions: %w", err)
	}
	return out, nil
}

func (s *GormStore) UsersWithSessionsEndedSince(ctx context.Context, since time.Time) ([]string, error) {
	users := []string{}
	err := s.db.WithContext(ctx).Model(&models.Session{}).
		Where("end_time >= ?", since).
		Distinct().
		Pluck("user_id", &users).Error
	if err != nil {
		return nil, fmt.Errorf("distinct session users: %w", err)
	}
	return users, nil
}

func (s *GormStore) CreatePostureLog(ctx context.Context, l *models.PostureLog) error {
	if !ValidID(l.SessionID) {
		return ErrInvalidID
	}
	if l.ID == "" {
		l.ID = NewID()
	}
	if l.Issues == nil {
		l.Issues = datatypes.JSONSlice[string]{}
	}
	if err := s.db.WithContext(ctx).Create(l).Error; err != nil {
		return fmt.Errorf("insert posture log: %w", err)
	}
	return nil
}

func (s *GormStore) ListPostureLogs(ctx context.Context, sessionID string) ([]models.PostureLog, error) {
	if !ValidID(sessionID) {
		return nil, ErrInvalidID
	}
	out := []models.PostureLog{}
	err := s.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("timestamp ASC").
		Order("id ASC").
		Find(&out).Error
	if err != nil {
		return nil, fmt.Errorf("find posture logs: %w", err)
	}
	return out, nil
}

func (s *GormStore) GetAchievement(ctx context.Context, userID string) (*models.Achievement, error) {
	var a models.Achievement
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).First(&a).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find achievement: %w", err)
	}
	return &a, nil
}

func (s *GormStore) CreateAchievement(ctx context.Context, a *models.Achievement) error {
	if err := s.db.WithContext(ctx).Create(a).Error; err != nil {
		return fmt.Errorf("insert achievement: %w", err)
	}
	return nil
}

func (s *GormStore) SaveAchievement(ctx context.Context, a *models.Achievement) error {
	row := *a
	if row.CreatedAt.IsZero() {
		row.CreatedAt = row.LastUpdated
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"total_points", "badges", "points_history", "last_updated"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("save achievement: %w", err)
	}
	return nil
}

func (s *GormStore) GrantBadge(ctx context.Context, userID, badgeID string, entry models.PointsEntry) (int, bool, error) {
	var (
		total   int
		granted bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var a models.Achievement
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).Where("user_id = ?", userID).First(&a).Error
		created := false
		if errors.Is(err, gorm.ErrRecordNotFound) {
			a = *models.NewAchievement(userID, entry.Timestamp)
			created = true
		} else if err != nil {
			return err
		}

		total = a.TotalPoints
		if a.HasBadge(badgeID) {
			return nil
		}
		a.Badges = append(a.Badges, badgeID)
		a.TotalPoints += entry.Points
		a.PointsHistory = append(a.PointsHistory, entry)
		a.LastUpdated = entry.Timestamp
		total, granted = a.TotalPoints, true

		if created {
			return tx.Create(&a).Error
		}
		return tx.Save(&a).Error
	})
	if err != nil {
		return 0, false, fmt.Errorf("grant badge %s: %w", badgeID, err)
	}
	return total, granted, nil
}

func (s *GormStore) SaveStats(ctx context.Context, userID string, stats models.AchievementStats) error {
	row := models.NewAchievement(userID, time.Now().UTC())
	row.Stats = datatypes.NewJSONType(stats)
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"stats"}),
	}).Create(row).Error
	if err != nil {
		return fmt.Errorf("save stats: %w", err)
	}
	return nil
}
