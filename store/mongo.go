package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"gorm.io/datatypes"

	"github.com/cppla/posturemon/models"
)

// Collection names.
const (
	SessionsCollection     = "sessions"
	PostureLogsCollection  = "posture_logs"
	AchievementsCollection = "user_achievements"
)

// MongoConfig describes how to reach the document database.
type MongoConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

// MongoStore is the document-database backend. Session ids are stored as ObjectIDs.
type MongoStore struct {
	client       *mongo.Client
	sessions     *mongo.Collection
	logs         *mongo.Collection
	achievements *mongo.Collection
}

type sessionDoc struct {
	ID               primitive.ObjectID `bson:"_id,omitempty"`
	UserID           string             `bson:"user_id"`
	StartTime        time.Time          `bson:"start_time"`
	EndTime          *time.Time         `bson:"end_time"`
	TotalChecks      int                `bson:"total_checks"`
	GoodPostureCount int                `bson:"good_posture_count"`
	BadPostureCount  int                `bson:"bad_posture_count"`
	Corrections      int                `bson:"corrections"`
}

type postureLogDoc struct {
	ID              primitive.ObjectID `bson:"_id,omitempty"`
	SessionID       primitive.ObjectID `bson:"session_id"`
	Timestamp       time.Time          `bson:"timestamp"`
	PostureStatus   string             `bson:"posture_status"`
	LeftAngle       *float64           `bson:"left_angle"`
	RightAngle      *float64           `bson:"right_angle"`
	TotalAngle      *float64           `bson:"total_angle"`
	Issues          []string           `bson:"issues"`
	Feedback        *string            `bson:"feedback"`
	WasCorrected    bool               `bson:"was_corrected"`
	DurationSeconds float64            `bson:"duration_seconds"`
}

type pointsEntryDoc struct {
	Points    int       `bson:"points"`
	Reason    string    `bson:"reason"`
	Timestamp time.Time `bson:"timestamp"`
	SessionID string    `bson:"session_id,omitempty"`
	BadgeID   string    `bson:"badge_id,omitempty"`
}

type statsDoc struct {
	TotalSessions           int     `bson:"total_sessions"`
	TotalMonitoringHours    float64 `bson:"total_monitoring_hours"`
	BestSessionScore        float64 `bson:"best_session_score"`
	TotalCorrections        int     `bson:"total_corrections"`
	ConsecutiveGoodSessions int     `bson:"consecutive_good_sessions"`
}

type achievementDoc struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	UserID        string             `bson:"user_id"`
	TotalPoints   int                `bson:"total_points"`
	Badges        []string           `bson:"badges"`
	PointsHistory []pointsEntryDoc   `bson:"points_history"`
	Stats         statsDoc           `bson:"stats"`
	CreatedAt     time.Time          `bson:"created_at"`
	LastUpdated   time.Time          `bson:"last_updated"`
}

// NewMongoStore connects, pings the primary and ensures indexes.
func NewMongoStore(ctx context.Context, cfg MongoConfig) (*MongoStore, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	opts := options.Client().
		ApplyURI(cfg.URI).
		SetServerSelectionTimeout(cfg.Timeout).
		SetConnectTimeout(cfg.Timeout)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, cfg.Timeout)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("mongo ping: %w", err)
	}

	s := newMongoStore(client, client.Database(cfg.Database))
	if err := s.ensureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

func newMongoStore(client *mongo.Client, db *mongo.Database) *MongoStore {
	return &MongoStore{
		client:       client,
		sessions:     db.Collection(SessionsCollection),
		logs:         db.Collection(PostureLogsCollection),
		achievements: db.Collection(AchievementsCollection),
	}
}

func (s *MongoStore) ensureIndexes(ctx context.Context) error {
	if _, err := s.sessions.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "start_time", Value: -1}}},
		{Keys: bson.D{{Key: "end_time", Value: 1}}},
	}); err != nil {
		return fmt.Errorf("create session indexes: %w", err)
	}
	if _, err := s.logs.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "session_id", Value: 1}, {Key: "timestamp", Value: 1}},
	}); err != nil {
		return fmt.Errorf("create posture log index: %w", err)
	}
	if _, err := s.achievements.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "user_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return fmt.Errorf("create achievement index: %w", err)
	}
	return nil
}

func (s *MongoStore) Driver() string { return "mongo" }

func (s *MongoStore) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) CreateSession(ctx context.Context, m *models.Session) error {
	doc := sessionDoc{
		ID:               primitive.NewObjectID(),
		UserID:           m.UserID,
		StartTime:        m.StartTime,
		EndTime:          m.EndTime,
		TotalChecks:      m.TotalChecks,
		GoodPostureCount: m.GoodPostureCount,
		BadPostureCount:  m.BadPostureCount,
		Corrections:      m.Corrections,
	}
	if m.ID != "" {
		oid, err := primitive.ObjectIDFromHex(m.ID)
		if err != nil {
			return ErrInvalidID
		}
		doc.ID = oid
	}
	if _, err := s.sessions.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	m.ID = doc.ID.Hex()
	return nil
}

func (s *MongoStore) GetSession(ctx context.Context, id string) (*models.Session, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, ErrInvalidID
	}
	var doc sessionDoc
	if err := s.sessions.FindOne(ctx, bson.M{"_id": oid}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find session: %w", err)
	}
	m := doc.toModel()
	return &m, nil
}

func (s *MongoStore) EndSession(ctx context.Context, id string, end time.Time) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, ErrInvalidID
	}
	res, err := s.sessions.UpdateOne(ctx,
		bson.M{"_id": oid, "end_time": nil},
		bson.M{"$set": bson.M{"end_time": end}},
	)
	if err != nil {
		return false, fmt.Errorf("end session: %w", err)
	}
	if res.MatchedCount > 0 {
		return true, nil
	}
	n, err := s.sessions.CountDocuments(ctx, bson.M{"_id": oid})
	if err != nil {
		return false, fmt.Errorf("count session: %w", err)
	}
	if n == 0 {
		return false, ErrNotFound
	}
	return false, nil
}

func (s *MongoStore) IncrementCounters(ctx context.Context, id string, d models.SessionCounters) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return ErrInvalidID
	}
	res, err := s.sessions.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$inc": bson.M{
		"total_checks":       d.TotalChecks,
		"good_posture_count": d.GoodPostureCount,
		"bad_posture_count":  d.BadPostureCount,
		"corrections":        d.Corrections,
	}})
	if err != nil {
		return fmt.Errorf("increment session counters: %w", err)
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *MongoStore) ListSessions(ctx context.Context, userID string, opts ListOptions) ([]models.Session, error) {
	filter := bson.M{"user_id": userID}
	if !opts.Since.IsZero() {
		filter["start_time"] = bson.M{"$gte": opts.Since}
	}
	findOpts := options.Find()
	if opts.NewestFirst {
		findOpts.SetSort(bson.D{{Key: "start_time", Value: -1}})
	}
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}

	cur, err := s.sessions.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, fmt.Errorf("find sessions: %w", err)
	}
	var docs []sessionDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode sessions: %w", err)
	}
	out := make([]models.Session, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.toModel())
	}
	return out, nil
}

func (s *MongoStore) UsersWithSessionsEndedSince(ctx context.Context, since time.Time) ([]string, error) {
	raw, err := s.sessions.Distinct(ctx, "user_id", bson.M{"end_time": bson.M{"$gte": since}})
	if err != nil {
		return nil, fmt.Errorf("distinct session users: %w", err)
	}
	users := make([]string, 0, len(raw))
	for _, v := range raw {
		if id, ok := v.(string); ok {
			users = append(users, id)
		}
	}
	return users, nil
}

func (s *MongoStore) CreatePostureLog(ctx context.Context, l *models.PostureLog) error {
	sid, err := primitive.ObjectIDFromHex(l.SessionID)
	if err != nil {
		return ErrInvalidID
	}
	issues := []string(l.Issues)
	if issues == nil {
		issues = []string{}
	}
	doc := postureLogDoc{
		ID:              primitive.NewObjectID(),
		SessionID:       sid,
		Timestamp:       l.Timestamp,
		PostureStatus:   l.PostureStatus,
		LeftAngle:       l.LeftAngle,
		RightAngle:      l.RightAngle,
		TotalAngle:      l.TotalAngle,
		Issues:          issues,
		Feedback:        l.Feedback,
		WasCorrected:    l.WasCorrected,
		DurationSeconds: l.DurationSeconds,
	}
	if _, err := s.logs.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert posture log: %w", err)
	}
	l.ID = doc.ID.Hex()
	return nil
}

func (s *MongoStore) ListPostureLogs(ctx context.Context, sessionID string) ([]models.PostureLog, error) {
	sid, err := primitive.ObjectIDFromHex(sessionID)
	if err != nil {
		return nil, ErrInvalidID
	}
	// _id breaks timestamp ties; ObjectIDs grow with insertion.
	findOpts := options.Find().SetSort(bson.D{{Key: "timestamp", Value: 1}, {Key: "_id", Value: 1}})
	cur, err := s.logs.Find(ctx, bson.M{"session_id": sid}, findOpts)
	if err != nil {
		return nil, fmt.Errorf("find posture logs: %w", err)
	}
	var docs []postureLogDoc
	if err := cur.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode posture logs: %w", err)
	}
	out := make([]models.PostureLog, 0, len(docs))
	for _, d := range docs {
		out = append(out, models.PostureLog{
			ID:              d.ID.Hex(),
			SessionID:       d.SessionID.Hex(),
			Timestamp:       d.Timestamp,
			PostureStatus:   d.PostureStatus,
			LeftAngle:       d.LeftAngle,
			RightAngle:      d.RightAngle,
			TotalAngle:      d.TotalAngle,
			Issues:          datatypes.JSONSlice[string](d.Issues),
			Feedback:        d.Feedback,
			WasCorrected:    d.WasCorrected,
			DurationSeconds: d.DurationSeconds,
		})
	}
	return out, nil
}

func (s *MongoStore) GetAchievement(ctx context.Context, userID string) (*models.Achievement, error) {
	var doc achievementDoc
	if err := s.achievements.FindOne(ctx, bson.M{"user_id": userID}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find achievement: %w", err)
	}
	return doc.toModel(), nil
}

func (s *MongoStore) CreateAchievement(ctx context.Context, a *models.Achievement) error {
	doc := achievementDocFrom(a)
	doc.ID = primitive.NewObjectID()
	if _, err := s.achievements.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("insert achievement: %w", err)
	}
	return nil
}

func (s *MongoStore) SaveAchievement(ctx context.Context, a *models.Achievement) error {
	doc := achievementDocFrom(a)
	_, err := s.achievements.UpdateOne(ctx,
		bson.M{"user_id": a.UserID},
		bson.M{
			"$set": bson.M{
				"total_points":   doc.TotalPoints,
				"badges":         doc.Badges,
				"points_history": doc.PointsHistory,
				"last_updated":   doc.LastUpdated,
			},
			"$setOnInsert": bson.M{
				"created_at": doc.CreatedAt,
				"stats":      doc.Stats,
			},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("save achievement: %w", err)
	}
	return nil
}

// GrantBadge only matches a record that lacks badgeID. When the record exists and already holds
// the badge, the upsert collides with the unique user_id index and the current total is returned.
func (s *MongoStore) GrantBadge(ctx context.Context, userID, badgeID string, entry models.PointsEntry) (int, bool, error) {
	update := bson.M{
		"$addToSet": bson.M{"badges": badgeID},
		"$inc":      bson.M{"total_points": entry.Points},
		"$push":     bson.M{"points_history": pointsEntryDocFrom(entry)},
		"$set":      bson.M{"last_updated": entry.Timestamp},
		"$setOnInsert": bson.M{
			"created_at": entry.Timestamp,
			"stats":      statsDoc{},
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	filter := bson.M{"user_id": userID, "badges": bson.M{"$ne": badgeID}}
	var doc achievementDoc
	err := s.achievements.FindOneAndUpdate(ctx, filter, update, opts).Decode(&doc)
	switch {
	case err == nil:
		return doc.TotalPoints, true, nil
	case mongo.IsDuplicateKeyError(err):
		current, err := s.GetAchievement(ctx, userID)
		if err != nil {
			return 0, false, fmt.Errorf("grant badge %s: %w", badgeID, err)
		}
		return current.TotalPoints, false, nil
	default:
		return 0, false, fmt.Errorf("grant badge %s: %w", badgeID, err)
	}
}

func (s *MongoStore) SaveStats(ctx context.Context, userID string, stats models.AchievementStats) error {
	now := time.Now().UTC()
	_, err := s.achievements.UpdateOne(ctx,
		bson.M{"user_id": userID},
		bson.M{
			"$set": bson.M{"stats": statsDocFrom(stats)},
			"$setOnInsert": bson.M{
				"total_points":   0,
				"badges":         []string{},
				"points_history": []pointsEntryDoc{},
				"created_at":     now,
				"last_updated":   now,
			},
		},
		options.Update().SetUpsert(true),
	)
	if err != nil {
		return fmt.Errorf("save stats: %w", err)
	}
	return nil
}

func (d sessionDoc) toModel() models.Session {
	return models.Session{
		ID:               d.ID.Hex(),
		UserID:           d.UserID,
		StartTime:        d.StartTime,
		EndTime:          d.EndTime,
		TotalChecks:      d.TotalChecks,
		GoodPostureCount: d.GoodPostureCount,
		BadPostureCount:  d.BadPostureCount,
		Corrections:      d.Corrections,
	}
}

func (d achievementDoc) toModel() *models.Achievement {
	history := make(datatypes.JSONSlice[models.PointsEntry], 0, len(d.PointsHistory))
	for _, e := range d.PointsHistory {
		history = append(history, models.PointsEntry{
			Points:    e.Points,
			Reason:    e.Reason,
			Timestamp: e.Timestamp,
			SessionID: e.SessionID,
			BadgeID:   e.BadgeID,
		})
	}
	badges := datatypes.JSONSlice[string](d.Badges)
	if badges == nil {
		badges = datatypes.JSONSlice[string]{}
	}
	return &models.Achievement{
		UserID:        d.UserID,
		TotalPoints:   d.TotalPoints,
		Badges:        badges,
		PointsHistory: history,
		Stats: datatypes.NewJSONType(models.AchievementStats{
			TotalSessions:           d.Stats.TotalSessions,
			TotalMonitoringHours:    d.Stats.TotalMonitoringHours,
			BestSessionScore:        d.Stats.BestSessionScore,
			TotalCorrections:        d.Stats.TotalCorrections,
			ConsecutiveGoodSessions: d.Stats.ConsecutiveGoodSessions,
		}),
		CreatedAt:   d.CreatedAt,
		LastUpdated: d.LastUpdated,
	}
}

func achievementDocFrom(a *models.Achievement) achievementDoc {
	history := make([]pointsEntryDoc, 0, len(a.PointsHistory))
	for _, e := range a.PointsHistory {
		history = append(history, pointsEntryDocFrom(e))
	}
	badges := []string(a.Badges)
	if badges == nil {
		badges = []string{}
	}
	return achievementDoc{
		UserID:        a.UserID,
		TotalPoints:   a.TotalPoints,
		Badges:        badges,
		PointsHistory: history,
		Stats:         statsDocFrom(a.Stats.Data()),
		CreatedAt:     a.CreatedAt,
		LastUpdated:   a.LastUpdated,
	}
}

func pointsEntryDocFrom(e models.PointsEntry) pointsEntryDoc {
	return pointsEntryDoc{
		Points:    e.Points,
		Reason:    e.Reason,
		Timestamp: e.Timestamp,
		SessionID: e.SessionID,
		BadgeID:   e.BadgeID,
	}
}

func statsDocFrom(st models.AchievementStats) statsDoc {
	return statsDoc{
		TotalSessions:           st.TotalSessions,
		TotalMonitoringHours:    st.TotalMonitoringHours,
		BestSessionScore:        st.BestSessionScore,
		TotalCorrections:        st.TotalCorrections,
		ConsecutiveGoodSessions: st.ConsecutiveGoodSessions,
	}
}
