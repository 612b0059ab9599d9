package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cppla/posturemon/models"
	"github.com/cppla/posturemon/store"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time { return c.t }

func newPosture(t *testing.T) (*PostureService, *store.MemoryStore, *clock) {
	t.Helper()
	st := store.NewMemoryStore()
	svc := NewPostureService(st, "user_001", nil)
	c := &clock{t: testNow}
	svc.now = c.now
	return svc, st, c
}

func ptr[T any](v T) *T { return &v }

func TestStartSessionDefaultsUser(t *testing.T) {
	svc, _, _ := newPosture(t)
	sess, err := svc.StartSession(context.Background(), "")
	require.NoError(t, err)
	assert.Equal(t, "user_001", sess.UserID)
	assert.True(t, store.ValidID(sess.ID))
	assert.Nil(t, sess.EndTime)
	assert.Equal(t, testNow, sess.StartTime)
}

func TestEndSession(t *testing.T) {
	svc, st, c := newPosture(t)
	ctx := context.Background()
	sess, err := svc.StartSession(ctx, "u1")
	require.NoError(t, err)

	c.t = testNow.Add(time.Hour)
	require.NoError(t, svc.EndSession(ctx, sess.ID))

	c.t = testNow.Add(2 * time.Hour)
	assert.True(t, errors.Is(svc.EndSession(ctx, sess.ID), ErrSessionEnded))

	got, err := st.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, testNow.Add(time.Hour), *got.EndTime)

	assert.True(t, errors.Is(svc.EndSession(ctx, ""), ErrInvalidInput))
	assert.True(t, errors.Is(svc.EndSession(ctx, "xyz"), ErrInvalidInput))
	assert.True(t, errors.Is(svc.EndSession(ctx, store.NewID()), ErrNotFound))
}

func TestLogPostureUpdatesCounters(t *testing.T) {
	svc, st, _ := newPosture(t)
	ctx := context.Background()
	sess, err := svc.StartSession(ctx, "u1")
	require.NoError(t, err)

	entry, err := svc.LogPosture(ctx, PostureInput{
		SessionID:     sess.ID,
		PostureStatus: models.PostureGood,
		LeftAngle:     ptr(12.5),
		Feedback:      ptr("<b>Nice</b> work"),
	})
	require.NoError(t, err)
	assert.Equal(t, 10.0, entry.DurationSeconds)
	assert.Equal(t, "Nice work", *entry.Feedback)
	assert.NotNil(t, entry.Issues)

	_, err = svc.LogPosture(ctx, PostureInput{
		SessionID:       sess.ID,
		PostureStatus:   models.PostureBad,
		Issues:          []string{"slouching"},
		WasCorrected:    true,
		DurationSeconds: ptr(5.0),
	})
	require.NoError(t, err)
	_, err = svc.LogPosture(ctx, PostureInput{SessionID: sess.ID, PostureStatus: "unknown"})
	require.NoError(t, err)

	got, err := st.GetSession(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.TotalChecks)
	assert.Equal(t, 1, got.GoodPostureCount)
	assert.Equal(t, 1, got.BadPostureCount)
	assert.Equal(t, 1, got.Corrections)
}

func TestLogPostureRejects(t *testing.T) {
	svc, _, _ := newPosture(t)
	ctx := context.Background()

	_, err := svc.LogPosture(ctx, PostureInput{})
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = svc.LogPosture(ctx, PostureInput{SessionID: "bogus"})
	assert.True(t, errors.Is(err, ErrInvalidInput))

	_, err = svc.LogPosture(ctx, PostureInput{SessionID: store.NewID()})
	assert.True(t, errors.Is(err, ErrNotFound))

	sess, err := svc.StartSession(ctx, "u1")
	require.NoError(t, err)
	require.NoError(t, svc.EndSession(ctx, sess.ID))
	_, err = svc.LogPosture(ctx, PostureInput{SessionID: sess.ID, PostureStatus: models.PostureGood})
	assert.True(t, errors.Is(err, ErrSessionEnded))
}

func TestSessionReport(t *testing.T) {
	svc, _, c := newPosture(t)
	ctx := context.Background()

	_, err := svc.SessionReport(ctx, store.NewID())
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = svc.SessionReport(ctx, "nope")
	assert.True(t, errors.Is(err, ErrInvalidInput))

	sess, err := svc.StartSession(ctx, "u1")
	require.NoError(t, err)
	for _, status := range []string{"good", "bad", "good"} {
		_, err := svc.LogPosture(ctx, PostureInput{SessionID: sess.ID, PostureStatus: status})
		require.NoError(t, err)
	}
	c.t = testNow.Add(-time.Minute)
	_, err = svc.LogPosture(ctx, PostureInput{SessionID: sess.ID, PostureStatus: "earliest"})
	require.NoError(t, err)

	report, err := svc.SessionReport(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, report.Logs, 4)
	got := []string{}
	for _, l := range report.Logs {
		got = append(got, l.PostureStatus)
	}
	assert.Equal(t, []string{"earliest", "good", "bad", "good"}, got)
	assert.Equal(t, 50.0, report.Session.Score)
	assert.Nil(t, report.Session.DurationSeconds)
}

func TestRecentSessions(t *testing.T) {
	svc, _, c := newPosture(t)
	ctx := context.Background()
	for i := 0; i < 12; i++ {
		c.t = testNow.Add(time.Duration(i) * time.Minute)
		_, err := svc.StartSession(ctx, "u1")
		require.NoError(t, err)
	}
	_, err := svc.StartSession(ctx, "u2")
	require.NoError(t, err)

	rows, err := svc.RecentSessions(ctx, "u1", 0)
	require.NoError(t, err)
	require.Len(t, rows, 10)
	assert.Equal(t, testNow.Add(11*time.Minute), rows[0].StartTime)
	assert.Equal(t, 0.0, rows[0].Score)

	rows, err = svc.RecentSessions(ctx, "u1", 3)
	require.NoError(t, err)
	assert.Len(t, rows, 3)

	_, err = svc.RecentSessions(ctx, "u1", 101)
	assert.True(t, errors.Is(err, ErrInvalidInput))
	_, err = svc.RecentSessions(ctx, "u1", -1)
	assert.True(t, errors.Is(err, ErrInvalidInput))
}
