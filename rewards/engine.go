package rewards

import "github.com/cppla/posturemon/models"

// Thresholds for the unlock predicates.
const (
	firstStepsSeconds   = 600
	newbieHours         = 1
	proHours            = 10
	perfectScore        = 95
	centurySessions     = 100
	goodSessionScore    = 90
	accuracyStreak      = 5
	correctionKingCount = 100
	marathonSessionSecs = 7200
	secondsPerHour      = 3600.0
)

// Stats is the summary of a user's session history the unlock predicates run against.
type Stats struct {
	TotalSessions         int
	TotalDurationSeconds  float64
	TotalCorrections      int
	BestScore             float64
	GoodSessionStreak     int
	LongestSessionSeconds float64
}

// TotalHours is TotalDurationSeconds expressed in hours.
func (s Stats) TotalHours() float64 {
	return s.TotalDurationSeconds / secondsPerHour
}

// Snapshot converts the stats into the form stored on the achievement record.
func (s Stats) Snapshot() models.AchievementStats {
	return models.AchievementStats{
		TotalSessions:           s.TotalSessions,
		TotalMonitoringHours:    models.Round1(s.TotalHours()),
		BestSessionScore:        models.Round1(s.BestScore),
		TotalCorrections:        s.TotalCorrections,
		ConsecutiveGoodSessions: s.GoodSessionStreak,
	}
}

// Aggregate folds sessions into Stats in the order given.
//
// GoodSessionStreak is the trailing run at the end of iteration: it grows on a
// session scoring 90 or more and resets on a lower one. Sessions without any
// checks have no score and leave the streak untouched.
func Aggregate(sessions []models.Session) Stats {
	st := Stats{TotalSessions: len(sessions)}
	for _, s := range sessions {
		if d, ok := s.Duration(); ok {
			secs := d.Seconds()
			st.TotalDurationSeconds += secs
			if secs > st.LongestSessionSeconds {
				st.LongestSessionSeconds = secs
			}
		}
		st.TotalCorrections += s.Corrections

		if s.TotalChecks > 0 {
			score := float64(s.GoodPostureCount) / float64(s.TotalChecks) * 100
			if score > st.BestScore {
				st.BestScore = score
			}
			if score >= goodSessionScore {
				st.GoodSessionStreak++
			} else {
				st.GoodSessionStreak = 0
			}
		}
	}
	return st
}

type rule struct {
	badge string
	met   func(Stats) bool
}

// rules are evaluated in catalog order.
var rules = []rule{
	{BadgeFirstSteps, func(s Stats) bool { return s.TotalDurationSeconds >= firstStepsSeconds }},
	{BadgePostureNewbie, func(s Stats) bool { return s.TotalHours() >= newbieHours }},
	{BadgePosturePro, func(s Stats) bool { return s.TotalHours() >= proHours }},
	{BadgePerfectPosture, func(s Stats) bool { return s.BestScore >= perfectScore }},
	{BadgeCenturyClub, func(s Stats) bool { return s.TotalSessions >= centurySessions }},
	{BadgeAccuracyMaster, func(s Stats) bool { return s.GoodSessionStreak >= accuracyStreak }},
	{BadgeCorrectionKing, func(s Stats) bool { return s.TotalCorrections >= correctionKingCount }},
	{BadgeMarathonMonitor, func(s Stats) bool { return s.LongestSessionSeconds >= marathonSessionSecs }},
}

// Evaluate returns the ids of badges whose predicate holds and that are not in unlocked.
func Evaluate(sessions []models.Session, unlocked []string) []string {
	if len(sessions) == 0 {
		return []string{}
	}
	return EvaluateStats(Aggregate(sessions), unlocked)
}

// EvaluateStats runs the unlock predicates against precomputed stats.
func EvaluateStats(st Stats, unlocked []string) []string {
	have := make(map[string]struct{}, len(unlocked))
	for _, id := range unlocked {
		have[id] = struct{}{}
	}
	out := []string{}
	for _, r := range rules {
		if _, ok := have[r.badge]; ok {
			continue
		}
		if r.met(st) {
			out = append(out, r.badge)
		}
	}
	return out
}
