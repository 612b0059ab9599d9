package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/cppla/posturemon/models"
)

func newMockGormStore(t *testing.T) (*GormStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	gdb, err := gorm.Open(mysql.New(mysql.Config{Conn: db, SkipInitializeWithVersion: true}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return NewGormStore(gdb), mock
}

func TestGormCreateSessionAssignsID(t *testing.T) {
	s, mock := newMockGormStore(t)
	mock.ExpectExec("INSERT INTO `sessions`").WillReturnResult(sqlmock.NewResult(1, 1))

	sess := &models.Session{UserID: "u1", StartTime: time.Now().UTC()}
	require.NoError(t, s.CreateSession(context.Background(), sess))
	assert.True(t, ValidID(sess.ID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormGetSessionNotFound(t *testing.T) {
	s, mock := newMockGormStore(t)
	mock.ExpectQuery("SELECT \\* FROM `sessions`").WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := s.GetSession(context.Background(), NewID())
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormGetSessionRejectsMalformedID(t *testing.T) {
	s, mock := newMockGormStore(t)

	_, err := s.GetSession(context.Background(), "abc")
	assert.True(t, errors.Is(err, ErrInvalidID))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormIncrementCountersUsesSQLExpression(t *testing.T) {
	s, mock := newMockGormStore(t)
	mock.ExpectExec("UPDATE `sessions` SET .*total_checks \\+").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := s.IncrementCounters(context.Background(), NewID(), models.SessionCounters{TotalChecks: 1, GoodPostureCount: 1})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormIncrementCountersMissingSession(t *testing.T) {
	s, mock := newMockGormStore(t)
	mock.ExpectExec("UPDATE `sessions`").WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.IncrementCounters(context.Background(), NewID(), models.SessionCounters{TotalChecks: 1})
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGormListPostureLogsOrdersByTimestamp(t *testing.T) {
	s, mock := newMockGormStore(t)
	sid := NewID()
	ts := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"id", "session_id", "timestamp", "posture_status", "issues", "was_corrected", "duration_seconds"}).
		AddRow(NewID(), sid, ts, "good", []byte(`[]`), false, 10.0).
		AddRow(NewID(), sid, ts.Add(time.Second), "bad", []byte(`["slouching"]`), true, 10.0)
	mock.ExpectQuery("SELECT \\* FROM `posture_logs` WHERE session_id = \\? ORDER BY timestamp ASC").
		WithArgs(sid).
		WillReturnRows(rows)

	logs, err := s.ListPostureLogs(context.Background(), sid)
	require.NoError(t, err)
	require.Len(t, logs, 2)
	assert.Equal(t, "good", logs[0].PostureStatus)
	assert.Equal(t, []string{"slouching"}, []string(logs[1].Issues))
	assert.True(t, logs[1].WasCorrected)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func achievementRows(badges string, total int) *sqlmock.Rows {
	now := time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC)
	return sqlmock.NewRows([]string{"user_id", "total_points", "badges", "points_history", "stats", "created_at", "last_updated"}).
		AddRow("u1", total, []byte(badges), []byte(`[]`), []byte(`{}`), now, now)
}

func TestGormGrantBadgeSkipsHeldBadge(t *testing.T) {
	s, mock := newMockGormStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `user_achievements` WHERE user_id = \\?.*FOR UPDATE").
		WillReturnRows(achievementRows(`["first_steps"]`, 50))
	mock.ExpectCommit()

	total, granted, err := s.GrantBadge(context.Background(), "u1", "first_steps", models.PointsEntry{Points: 50, BadgeID: "first_steps"})
	require.NoError(t, err)
	assert.False(t, granted)
	assert.Equal(t, 50, total)
	assert.NoError(t, mock.ExpectationsWereMet(), "no write for a held badge")
}

func TestGormGrantBadgeCreatesRecord(t *testing.T) {
	s, mock := newMockGormStore(t)
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT \\* FROM `user_achievements`").
		WillReturnRows(sqlmock.NewRows([]string{"user_id"}))
	mock.ExpectExec("INSERT INTO `user_achievements`").WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	total, granted, err := s.GrantBadge(context.Background(), "u1", "first_steps", models.PointsEntry{Points: 50, BadgeID: "first_steps"})
	require.NoError(t, err)
	assert.True(t, granted)
	assert.Equal(t, 50, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
